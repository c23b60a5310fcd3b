package dto

import (
	"net/http"
	"time"

	"github.com/charforge/asset-service/internal/domain/model"
)

const (
	// ErrCodeInvalidRequest indicates an invalid request.
	ErrCodeInvalidRequest = "invalid_request"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound = "not_found"
	// ErrCodeRateLimit indicates rate limit exceeded.
	ErrCodeRateLimit = "rate_limit_exceeded"
	// ErrCodeConflict indicates a conflict with current state.
	ErrCodeConflict = "conflict"
	// ErrCodeTimeout indicates a request or item timeout.
	ErrCodeTimeout = "timeout"
	// ErrCodeUpstream indicates the analyzer or generation capability failed.
	ErrCodeUpstream = "upstream_failure"
	// ErrCodeCapacity indicates the fetch worker pool is saturated.
	ErrCodeCapacity = "capacity_exceeded"
)

// SuccessResponse wraps successful API responses with metadata.
// @Description Successful API response wrapper
type SuccessResponse struct {
	// Data contains the actual response data
	Data interface{} `json:"data" swaggertype:"object"`
	// RequestID is the unique request identifier
	RequestID string `json:"request_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
	// Timestamp is when the response was generated
	Timestamp time.Time `json:"timestamp" example:"2025-01-28T10:00:00Z"`
} // @name SuccessResponse

// ErrorResponse represents a standardized error response for the API.
// @Description Standardized error response
type ErrorResponse struct {
	Error     string            `json:"error" example:"invalid_request"`
	Message   string            `json:"message,omitempty" example:"items: must contain at least one asset identifier"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
	Timestamp time.Time         `json:"timestamp" example:"2025-01-28T10:00:00Z"`
} // @name ErrorResponse

// NewError creates a new ErrorResponse with the given code and message.
func NewError(code, message string) ErrorResponse {
	return ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithRequestID adds a request ID to the error response.
func (e ErrorResponse) WithRequestID(requestID string) ErrorResponse {
	e.RequestID = requestID
	return e
}

// ErrCodeFromStatus returns the appropriate error code for an HTTP status.
func ErrCodeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return ErrCodeInvalidRequest
	case http.StatusNotFound:
		return ErrCodeNotFound
	case http.StatusConflict:
		return ErrCodeConflict
	case http.StatusTooManyRequests:
		return ErrCodeRateLimit
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return ErrCodeTimeout
	case http.StatusBadGateway:
		return ErrCodeUpstream
	case http.StatusServiceUnavailable:
		return ErrCodeCapacity
	default:
		return ErrCodeInternal
	}
}

// BatchItemResult is the per-item outcome of a batch resolution.
//
// @Description Result for one asset identifier in a resolve call
type BatchItemResult struct {
	Key      string               `json:"key" example:"asset:42"`
	Metadata *model.AssetMetadata `json:"metadata,omitempty"`
	// Error holds the per-item error code when resolution failed.
	Error string `json:"error,omitempty" example:"timeout"`
	// Cached marks results served from the cache store.
	Cached bool `json:"cached,omitempty"`
} // @name BatchItemResult

// ResolveBatchResponse is the response body for batch resolution.
//
// @Description Per-item results for a resolve call
type ResolveBatchResponse struct {
	Results []BatchItemResult `json:"results"`
} // @name ResolveBatchResponse

// GenerationJobResponse is the public view of a generation job.
//
// @Description Generation job status
type GenerationJobResponse struct {
	ID         string    `json:"id"`
	AssetID    string    `json:"asset_id"`
	State      string    `json:"state" example:"polling"`
	Attempts   int       `json:"attempts"`
	Progress   int       `json:"progress"`
	ResultRef  string    `json:"result_ref,omitempty" example:"mesh-42"`
	FailReason string    `json:"fail_reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
} // @name GenerationJobResponse

// NewGenerationJobResponse maps a job to its public view.
func NewGenerationJobResponse(job *model.GenerationJob) GenerationJobResponse {
	return GenerationJobResponse{
		ID:         job.ID,
		AssetID:    job.AssetID,
		State:      string(job.State),
		Attempts:   job.Attempts,
		Progress:   job.Progress,
		ResultRef:  job.ResultRef,
		FailReason: job.FailReason,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
	}
}
