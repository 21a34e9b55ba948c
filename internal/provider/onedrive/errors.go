package onedrive

import (
	"encoding/json"
	"net/http"

	"github.com/cloudboss/cloudboss/internal/cloud"
)

// codeMap folds Graph API error codes onto the shared taxonomy. Unlisted
// codes pass through verbatim.
var codeMap = map[string]string{
	"itemNotFound":               cloud.CodeNotFound,
	"nameAlreadyExists":          cloud.CodeFolderConflict,
	"unauthenticated":            cloud.CodeAuth,
	"InvalidAuthenticationToken": cloud.CodeAuth,
}

// graphError is the body of a failed Graph API call.
type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func normalize(status int, body []byte) *cloud.Error {
	var e graphError
	if err := json.Unmarshal(body, &e); err != nil || e.Error.Code == "" {
		if status == http.StatusUnauthorized {
			return cloud.NewError(cloud.CodeAuth, http.StatusText(status))
		}

		return cloud.StatusError(status)
	}

	code, ok := codeMap[e.Error.Code]
	if !ok {
		code = e.Error.Code
	}

	if status == http.StatusUnauthorized {
		code = cloud.CodeAuth
	}

	return cloud.NewError(code, e.Error.Message)
}

// Normalizer maps Graph API failures to *cloud.Error.
var Normalizer cloud.Normalizer = cloud.NormalizerFunc(normalize)
