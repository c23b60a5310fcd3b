// Package i18n provides internationalization support for the asset service.
package i18n

// Error message translation keys.
const (
	// ErrKeyInvalidRequest indicates an invalid request.
	ErrKeyInvalidRequest = "error.invalid_request"
	// ErrKeyInvalidRequestBody indicates an invalid request body.
	ErrKeyInvalidRequestBody = "error.invalid_request_body"
	// ErrKeyInternalError indicates an internal server error.
	ErrKeyInternalError = "error.internal_error"
	// ErrKeyNotFound indicates a resource was not found.
	ErrKeyNotFound = "error.not_found"
	// ErrKeyRateLimitExceeded indicates rate limit exceeded.
	ErrKeyRateLimitExceeded = "error.rate_limit_exceeded"
	// ErrKeyConflict indicates a conflict with current state.
	ErrKeyConflict = "error.conflict"
	// ErrKeyTimeout indicates a request timeout.
	ErrKeyTimeout = "error.timeout"
	// ErrKeyValidationItems indicates an invalid batch items list.
	ErrKeyValidationItems = "error.validation.items"
	// ErrKeyUpstreamFailure indicates the analyzer or generation service failed.
	ErrKeyUpstreamFailure = "error.upstream_failure"
	// ErrKeyCapacityExceeded indicates the fetch executor is saturated.
	ErrKeyCapacityExceeded = "error.capacity_exceeded"
)
