package gdrive

import (
	"encoding/json"
	"net/http"

	"github.com/cloudboss/cloudboss/internal/cloud"
)

// reasonMap folds Drive error reasons onto the shared taxonomy.
var reasonMap = map[string]string{
	"notFound":          cloud.CodeNotFound,
	"authError":         cloud.CodeAuth,
	"insufficientScope": cloud.CodeAuth,
}

// apiError is the body of a failed Drive v3 response.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Errors  []struct {
			Reason  string `json:"reason"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"error"`
}

func normalize(status int, body []byte) *cloud.Error {
	var e apiError
	if err := json.Unmarshal(body, &e); err != nil {
		return cloud.StatusError(status)
	}

	code := e.Error.Status
	if len(e.Error.Errors) > 0 && e.Error.Errors[0].Reason != "" {
		code = e.Error.Errors[0].Reason
	}

	if code == "" {
		return cloud.StatusError(status)
	}

	if mapped, ok := reasonMap[code]; ok {
		code = mapped
	}

	if status == http.StatusUnauthorized {
		code = cloud.CodeAuth
	}

	return cloud.NewError(code, e.Error.Message)
}

// Normalizer is the Google Drive error normalizer.
var Normalizer cloud.Normalizer = cloud.NormalizerFunc(normalize)
