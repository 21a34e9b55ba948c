package dropbox

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cloudboss/cloudboss/internal/cloud"
)

// summaryPrefixes folds Dropbox error summaries onto the shared taxonomy.
// Summaries look like "path/not_found/.." and are matched by prefix.
var summaryPrefixes = []struct {
	prefix string
	code   string
}{
	{"path/conflict/folder", cloud.CodeFolderConflict},
	{"path/conflict/file", cloud.CodeNotAFolder}, // also file_ancestor
	{"path/not_found", cloud.CodeNotFound},
	{"path_lookup/not_found", cloud.CodeNotFound},
	{"expired_access_token", cloud.CodeAuth},
	{"invalid_access_token", cloud.CodeAuth},
	{"missing_scope", cloud.CodeAuth},
}

// apiError is the body of a failed Dropbox RPC or content call.
type apiError struct {
	ErrorSummary string `json:"error_summary"`
	Error        struct {
		Tag string `json:".tag"`
	} `json:"error"`
}

// normalize turns a failed response into a *cloud.Error. Dropbox reports
// 400 errors as plain text, which falls back to the numeric status.
func normalize(status int, body []byte) *cloud.Error {
	var e apiError
	if err := json.Unmarshal(body, &e); err != nil || (e.Error.Tag == "" && e.ErrorSummary == "") {
		if status == http.StatusUnauthorized {
			return cloud.NewError(cloud.CodeAuth, strings.TrimSpace(string(body)))
		}

		return cloud.StatusError(status)
	}

	for _, m := range summaryPrefixes {
		if strings.HasPrefix(e.ErrorSummary, m.prefix) {
			return cloud.NewError(m.code, e.ErrorSummary)
		}
	}

	code := e.Error.Tag
	if code == "" {
		code = cloud.CodeGeneric
	}

	if status == http.StatusUnauthorized {
		code = cloud.CodeAuth
	}

	return cloud.NewError(code, e.ErrorSummary)
}

// Normalizer is the Dropbox error normalizer.
var Normalizer cloud.Normalizer = cloud.NormalizerFunc(normalize)
