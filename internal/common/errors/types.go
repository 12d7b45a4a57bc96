package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeConnection represents connection-related errors
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeValidation represents validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeTimeout represents timeout errors
	ErrTypeTimeout ErrorType = "timeout"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
	// ErrTypeRateLimit represents local quota exhaustion; the request never reached upstream
	ErrTypeRateLimit ErrorType = "rate_limit"
	// ErrTypeUpstreamThrottled represents a single-attempt throttling signal from the provider
	ErrTypeUpstreamThrottled ErrorType = "upstream_throttled"
	// ErrTypeUpstreamRateLimit represents upstream throttling that persisted through all retries
	ErrTypeUpstreamRateLimit ErrorType = "upstream_rate_limited"
	// ErrTypeUpstreamUnavailable represents a transient upstream failure that exhausted retries
	ErrTypeUpstreamUnavailable ErrorType = "upstream_unavailable"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`

	// RetryAfter is set on rate-limit errors to tell the caller how long to wait
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.RetryAfter > 0 {
		parts = append(parts, fmt.Sprintf("retry_after=%s", e.RetryAfter))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// TimeoutError creates a new timeout error
func TimeoutError(operation string) *AppError {
	return &AppError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// RateLimitError signals that the local quota window is exhausted.
// The request was never sent upstream; retryAfter is the remaining window time.
func RateLimitError(retryAfter time.Duration) *AppError {
	return &AppError{
		Type:       ErrTypeRateLimit,
		Message:    fmt.Sprintf("request quota exhausted, retry in %s", retryAfter.Round(time.Second)),
		RetryAfter: retryAfter,
	}
}

// UpstreamThrottledError signals a throttling response from the provider on one attempt.
// The retry controller consumes this type; it never reaches the HTTP layer.
func UpstreamThrottledError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeUpstreamThrottled,
		Message: msg,
		Cause:   cause,
	}
}

// UpstreamRateLimitedError signals that upstream throttling persisted through every retry
func UpstreamRateLimitedError(retryAfter time.Duration, cause error) *AppError {
	return &AppError{
		Type:       ErrTypeUpstreamRateLimit,
		Message:    fmt.Sprintf("upstream provider is throttling requests, retry in %s", retryAfter.Round(time.Second)),
		RetryAfter: retryAfter,
		Cause:      cause,
	}
}

// UpstreamUnavailableError signals a transient upstream failure that exhausted all retries.
// The last underlying error is preserved as the cause.
func UpstreamUnavailableError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeUpstreamUnavailable,
		Message: msg,
		Cause:   cause,
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}

	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return ErrTypeInternal
	}

	return appErr.Type
}

// IsRateLimited reports whether the error is either local quota exhaustion or
// persistent upstream throttling. These are the only two kinds that are
// recoverable by waiting.
func IsRateLimited(err error) bool {
	t := GetType(err)
	return t == ErrTypeRateLimit || t == ErrTypeUpstreamRateLimit
}

// RetryAfterOf returns the retry-after hint carried by a rate-limit error,
// or zero when the error carries none.
func RetryAfterOf(err error) time.Duration {
	if appErr, ok := err.(*AppError); ok {
		return appErr.RetryAfter
	}
	return 0
}
