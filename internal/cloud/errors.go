package cloud

import (
	"errors"
	"strconv"
)

// Stable error codes shared by every provider adapter. Provider-specific
// identifiers that have no equivalent here pass through verbatim.
const (
	CodeAuth           = "AuthError"
	CodeNotFound       = "NotFoundError"
	CodeNotAFolder     = "NotAFolderError"
	CodeNotAFile       = "NotAFileError"
	CodeFolderConflict = "FolderConflictError"
	CodeFileNotFound   = "FileNotFoundError"
	CodeGeneric        = "Error"
)

// Sentinel errors for code classification.
// Use errors.Is(err, cloud.ErrFolderConflict) to check.
var (
	ErrAuth           = &Error{Code: CodeAuth}
	ErrNotFound       = &Error{Code: CodeNotFound}
	ErrNotAFolder     = &Error{Code: CodeNotAFolder}
	ErrNotAFile       = &Error{Code: CodeNotAFile}
	ErrFolderConflict = &Error{Code: CodeFolderConflict}
	ErrFileNotFound   = &Error{Code: CodeFileNotFound}
)

// Error is the normalized shape of every provider failure: a stable code
// plus a human-readable message. Values are never mutated after
// construction.
type Error struct {
	Code    string
	Message string
}

// NewError returns a normalized error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// StatusError is the fallback used when a provider response cannot be
// parsed into its error schema: the generic code and the numeric status.
func StatusError(status int) *Error {
	return &Error{Code: CodeGeneric, Message: strconv.Itoa(status)}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}

	return e.Code + ". " + e.Message
}

// Is matches on code. A target without a message (the exported sentinels)
// matches any error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	if t.Code != e.Code {
		return false
	}

	return t.Message == "" || t.Message == e.Message
}

// CodeOf returns the code of the first normalized error in err's chain,
// or the empty string if there is none.
func CodeOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}

	return ""
}

// Normalizer translates a raw failed provider response into a normalized
// error. Implementations always return a non-nil *Error: an unparseable
// body falls back to StatusError.
type Normalizer interface {
	Normalize(status int, body []byte) *Error
}

// NormalizerFunc adapts a plain function to the Normalizer interface.
type NormalizerFunc func(status int, body []byte) *Error

// Normalize calls f.
func (f NormalizerFunc) Normalize(status int, body []byte) *Error {
	return f(status, body)
}
