package s3

import (
	"errors"
	"fmt"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"

	"github.com/cloudboss/cloudboss/internal/cloud"
)

// codeMap folds S3 error codes onto the shared taxonomy.
var codeMap = map[string]string{
	"NoSuchKey":             cloud.CodeNotFound,
	"NotFound":              cloud.CodeNotFound,
	"NoSuchBucket":          cloud.CodeNotFound,
	"AccessDenied":          cloud.CodeAuth,
	"InvalidAccessKeyId":    cloud.CodeAuth,
	"SignatureDoesNotMatch": cloud.CodeAuth,
	"ExpiredToken":          cloud.CodeAuth,
}

// normalizeErr converts an SDK error into a *cloud.Error. Service errors
// keep their code (mapped where an equivalent exists); responses without
// a parseable code fall back to the HTTP status. Transport failures are
// wrapped unchanged.
func normalizeErr(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() != "" {
		code := apiErr.ErrorCode()
		if mapped, ok := codeMap[code]; ok {
			code = mapped
		}

		msg := apiErr.ErrorMessage()
		if msg == "" {
			msg = apiErr.ErrorCode()
		}

		return cloud.NewError(code, msg)
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return cloud.StatusError(respErr.HTTPStatusCode())
	}

	return fmt.Errorf("s3: %w", err)
}
