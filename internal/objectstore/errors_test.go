package objectstore

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		sentinel error
	}{
		{name: "access denied", code: "AccessDenied", sentinel: ErrAccessDenied},
		{name: "bad key id", code: "InvalidAccessKeyId", sentinel: ErrAccessDenied},
		{name: "bad signature", code: "SignatureDoesNotMatch", sentinel: ErrAccessDenied},
		{name: "expired token", code: "ExpiredToken", sentinel: ErrAccessDenied},
		{name: "missing bucket", code: "NoSuchBucket", sentinel: ErrBucketNotFound},
		{name: "missing key", code: "NoSuchKey", sentinel: ErrObjectNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := &smithy.GenericAPIError{Code: tt.code, Message: "test"}

			err := translateError("list objects", apiErr)
			assert.ErrorIs(t, err, tt.sentinel)

			var got smithy.APIError
			assert.ErrorAs(t, err, &got)
			assert.Equal(t, tt.code, got.ErrorCode())
			assert.Contains(t, err.Error(), "list objects")
		})
	}
}

func TestTranslateErrorPassthrough(t *testing.T) {
	assert.NoError(t, translateError("op", nil))

	plain := errors.New("dial tcp: connection refused")
	err := translateError("list objects", plain)
	assert.ErrorIs(t, err, plain)
	assert.NotErrorIs(t, err, ErrAccessDenied)
	assert.NotErrorIs(t, err, ErrBucketNotFound)

	unknown := &smithy.GenericAPIError{Code: "SlowDown"}
	err = translateError("list objects", unknown)
	assert.NotErrorIs(t, err, ErrAccessDenied)
	assert.ErrorIs(t, err, unknown)
}

func TestTranslateMinioError(t *testing.T) {
	assert.NoError(t, translateMinioError("op", nil))

	resp := minio.ErrorResponse{
		Code:       "NoSuchBucket",
		Message:    "The specified bucket does not exist",
		BucketName: "missing",
		StatusCode: http.StatusNotFound,
	}
	err := translateMinioError("list objects", resp)
	assert.ErrorIs(t, err, ErrBucketNotFound)

	denied := minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}
	assert.ErrorIs(t, translateMinioError("get object", denied), ErrAccessDenied)

	plain := errors.New("connection reset")
	err = translateMinioError("get object", plain)
	assert.ErrorIs(t, err, plain)
	assert.NotErrorIs(t, err, ErrObjectNotFound)
}

func TestIsInvalidRange(t *testing.T) {
	assert.False(t, isInvalidRange(nil))
	assert.False(t, isInvalidRange(errors.New("connection reset")))
	assert.False(t, isInvalidRange(&smithy.GenericAPIError{Code: "NoSuchKey"}))

	rangeErr := &smithy.GenericAPIError{Code: "InvalidRange", Message: "The requested range is not satisfiable"}
	assert.True(t, isInvalidRange(rangeErr))
	assert.True(t, isInvalidRange(fmt.Errorf("download: %w", rangeErr)))

	statusErr := &smithyhttp.ResponseError{
		Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusRequestedRangeNotSatisfiable}},
		Err:      errors.New("range not satisfiable"),
	}
	assert.True(t, isInvalidRange(statusErr))
}
