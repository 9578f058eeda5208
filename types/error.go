package types

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failure so callers can branch on the kind of
// error instead of matching message text.
type ErrorCode string

const (
	ErrInvalidConfig     ErrorCode = "INVALID_CONFIG"     // config failed validation
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"    // backend rejected the request (HTTP 400)
	ErrUnauthorized      ErrorCode = "UNAUTHORIZED"       // auth failure (HTTP 401)
	ErrQuotaExceeded     ErrorCode = "QUOTA_EXCEEDED"     // billing/credits exhausted (HTTP 402)
	ErrRateLimited       ErrorCode = "RATE_LIMITED"       // retries against HTTP 429 exhausted
	ErrNetwork           ErrorCode = "NETWORK_ERROR"      // transport failure after retries
	ErrUpstream          ErrorCode = "UPSTREAM_ERROR"     // backend 5xx or malformed response
	ErrNoSuitableModel   ErrorCode = "NO_SUITABLE_MODEL"  // no enabled adapter validates the config
	ErrGenerationFailed  ErrorCode = "GENERATION_FAILED"  // all fallback attempts exhausted
	ErrJobNotFound       ErrorCode = "JOB_NOT_FOUND"      // no adapter recognizes the job id
	ErrTimeout           ErrorCode = "TIMEOUT"            // wait-for-completion deadline elapsed
	ErrCircuitOpen       ErrorCode = "CIRCUIT_OPEN"       // circuit breaker short-circuited the call
	ErrCancelUnsupported ErrorCode = "CANCEL_UNSUPPORTED" // backend has no cancel endpoint
	ErrAlreadyRegistered ErrorCode = "ALREADY_REGISTERED" // duplicate adapter name
)

// Error is the structured error carried across the adapter/engine
// boundary. RetryCount is populated when the engine surfaces a failure
// after exhausting its fallback budget.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Model      string    `json:"model,omitempty"`
	JobID      string    `json:"job_id,omitempty"`
	RetryCount int       `json:"retry_count,omitempty"`
	Cause      error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus records the backend HTTP status.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks whether the engine may retry on another adapter.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithModel records the adapter the failure came from.
func (e *Error) WithModel(model string) *Error {
	e.Model = model
	return e
}

// WithJobID records the backend job the failure relates to.
func (e *Error) WithJobID(jobID string) *Error {
	e.JobID = jobID
	return e
}

// WithRetryCount records how many fallback attempts were spent.
func (e *Error) WithRetryCount(n int) *Error {
	e.RetryCount = n
	return e
}

// IsRetryable reports whether err carries a retryable Error anywhere in
// its chain. Unknown error types are treated as retryable so transient
// transport failures are not dropped on the floor.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return err != nil
}

// CodeOf extracts the ErrorCode from err, or "" when err is not an Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
