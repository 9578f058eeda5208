package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	plain := NewError(ErrRateLimited, "too many requests")
	assert.Equal(t, "[RATE_LIMITED] too many requests", plain.Error())

	cause := errors.New("connection reset")
	wrapped := NewError(ErrNetwork, "request failed").WithCause(cause)
	assert.Equal(t, "[NETWORK_ERROR] request failed: connection reset", wrapped.Error())
	assert.Equal(t, cause, errors.Unwrap(wrapped))
}

func TestErrorChainExtraction(t *testing.T) {
	inner := NewError(ErrUnauthorized, "bad key").WithHTTPStatus(401)
	outer := fmt.Errorf("adapter call: %w", inner)

	assert.Equal(t, ErrUnauthorized, CodeOf(outer))

	var e *Error
	assert.True(t, errors.As(outer, &e))
	assert.Equal(t, 401, e.HTTPStatus)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(NewError(ErrInvalidRequest, "bad request")))
	assert.True(t, IsRetryable(NewError(ErrRateLimited, "slow down").WithRetryable(true)))
	// unknown error types are presumed transient
	assert.True(t, IsRetryable(errors.New("connection refused")))
}

func TestCodeOfNonTyped(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}

func TestErrorBuilders(t *testing.T) {
	e := NewError(ErrGenerationFailed, "exhausted").
		WithModel("luma").WithJobID("job-1").WithRetryCount(3)
	assert.Equal(t, "luma", e.Model)
	assert.Equal(t, "job-1", e.JobID)
	assert.Equal(t, 3, e.RetryCount)
}
