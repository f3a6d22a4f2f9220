package objectstore

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/smithy-go"
	"github.com/minio/minio-go/v7"
)

var (
	// ErrAccessDenied is returned when the credentials are missing, invalid or
	// not allowed to read the bucket
	ErrAccessDenied = errors.New("access denied")

	// ErrBucketNotFound is returned when the bucket does not exist
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrObjectNotFound is returned when a listed object disappeared before
	// its body could be read
	ErrObjectNotFound = errors.New("object not found")
)

// S3 error codes shared by AWS and S3-compatible services
const (
	codeAccessDenied          = "AccessDenied"
	codeInvalidAccessKeyID    = "InvalidAccessKeyId"
	codeSignatureDoesNotMatch = "SignatureDoesNotMatch"
	codeExpiredToken          = "ExpiredToken"
	codeNoSuchBucket          = "NoSuchBucket"
	codeNoSuchKey             = "NoSuchKey"
	codeNotFound              = "NotFound"
	codeInvalidRange          = "InvalidRange"
)

func sentinelForCode(code string) error {
	switch code {
	case codeAccessDenied, codeInvalidAccessKeyID, codeSignatureDoesNotMatch, codeExpiredToken:
		return ErrAccessDenied
	case codeNoSuchBucket:
		return ErrBucketNotFound
	case codeNoSuchKey, codeNotFound:
		return ErrObjectNotFound
	}
	return nil
}

// translateError maps S3 API errors onto the package sentinels while keeping
// the original error in the chain
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if sentinel := sentinelForCode(apiErr.ErrorCode()); sentinel != nil {
			return fmt.Errorf("%s: %w: %w", op, sentinel, err)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

// translateMinioError does the same for errors returned by minio-go
func translateMinioError(op string, err error) error {
	if err == nil {
		return nil
	}

	resp := minio.ToErrorResponse(err)
	if sentinel := sentinelForCode(resp.Code); sentinel != nil {
		return fmt.Errorf("%s: %w: %w", op, sentinel, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

// isInvalidRange reports whether err is S3 refusing a ranged GET, which is
// what a range request against an empty object gets back
func isInvalidRange(err error) bool {
	if err == nil {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == codeInvalidRange {
		return true
	}

	var respErr interface{ HTTPStatusCode() int }
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusRequestedRangeNotSatisfiable
}
