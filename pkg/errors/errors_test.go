package errors

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want ErrorType
	}{
		{401, ErrorTypeAuth},
		{403, ErrorTypeAuth},
		{404, ErrorTypeNotFound},
		{429, ErrorTypeRateLimit},
		{500, ErrorTypeServerError},
		{503, ErrorTypeServerError},
		{418, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.code), func(t *testing.T) {
			err := FromStatusCode(tt.code)
			assert.Equal(t, tt.want, err.Type)
			assert.Equal(t, tt.code, err.Code)
		})
	}
}

func TestTypeOfWrapped(t *testing.T) {
	base := Storage(io.ErrUnexpectedEOF, "insert record")
	wrapped := fmt.Errorf("category post: %w", base)

	assert.Equal(t, ErrorTypeStorage, TypeOf(wrapped))
	assert.True(t, Is(wrapped, ErrorTypeStorage))
	assert.True(t, errors.Is(wrapped, io.ErrUnexpectedEOF))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(io.EOF))
	assert.False(t, Is(nil, ErrorTypeStorage))
}

func TestSentinels(t *testing.T) {
	err := fmt.Errorf("start: %w", ErrRunInProgress)
	assert.True(t, errors.Is(err, ErrRunInProgress))
	assert.Equal(t, ErrorTypeConflict, TypeOf(err))
	assert.Equal(t, ErrorTypeInput, TypeOf(ErrEmptyMediaURL))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.True(t, IsRetryable(ErrorTypeRateLimit))
	assert.False(t, IsRetryable(ErrorTypeNotFound))
	assert.False(t, IsRetryable(ErrorTypeStorage))

	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(502))
	assert.False(t, IsRetryableStatusCode(404))
}

func TestErrorString(t *testing.T) {
	err := &Error{Type: ErrorTypeNetwork, Message: "fetch media", Code: 502, Err: io.EOF}
	assert.Equal(t, "network error (code 502): fetch media: EOF", err.Error())
	assert.Equal(t, "conflict error: an ingestion run is already in progress", ErrRunInProgress.Error())
}
