package yandex

import (
	"encoding/json"

	"github.com/cloudboss/cloudboss/internal/cloud"
)

// codeMap folds Yandex.Disk error identifiers onto the shared taxonomy.
var codeMap = map[string]string{
	"UnauthorizedError":                      cloud.CodeAuth,
	"DiskNotFoundError":                      cloud.CodeNotFound,
	"DiskPathDoesntExistsError":              cloud.CodeNotFound,
	"DiskPathPointsToExistentDirectoryError": cloud.CodeFolderConflict,
}

// apiError is the body of every failed Yandex.Disk response.
type apiError struct {
	Error       string `json:"error"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

// normalize turns a failed response into a *cloud.Error.
func normalize(status int, body []byte) *cloud.Error {
	var e apiError
	if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
		return cloud.StatusError(status)
	}

	code := e.Error
	if mapped, ok := codeMap[code]; ok {
		code = mapped
	}

	msg := e.Message
	if msg == "" {
		msg = e.Description
	}

	return cloud.NewError(code, msg)
}

// Normalizer is the Yandex.Disk error normalizer.
var Normalizer cloud.Normalizer = cloud.NormalizerFunc(normalize)
