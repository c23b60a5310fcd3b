// Package dto defines Data Transfer Objects for HTTP request and response handling.
//
// DTOs decouple the HTTP layer from the domain model, providing validation
// and serialization for API communication.
package dto

import "time"

// MaxBatchItems is the hard upper bound on items per resolve request,
// independent of the configured batch size.
const MaxBatchItems = 50

// ResolveBatchRequest represents the JSON request body for batch asset resolution.
//
// @Description Request to resolve a batch of asset identifiers to their metadata
// @Example {"items": ["asset:42", "asset:43"]}
type ResolveBatchRequest struct {
	// Items is the ordered list of asset identifiers to resolve.
	Items []string `json:"items" binding:"required,min=1" example:"asset:42,asset:43"`
	// RequestedAt is an optional client timestamp used for prefetch hints.
	RequestedAt time.Time `json:"requested_at,omitempty"`
} // @name ResolveBatchRequest

// SubmitGenerationRequest represents the JSON request body for starting a
// 3D generation job.
//
// @Description Request to generate a 3D mesh from an asset image
type SubmitGenerationRequest struct {
	// AssetID is the parent asset the mesh belongs to.
	AssetID string `json:"asset_id" binding:"required" example:"asset:42"`
	// ImageURL is the source image for image-to-3D generation.
	ImageURL string `json:"image_url" binding:"required,url"`
} // @name SubmitGenerationRequest

// CreateAssetRequest represents the JSON request body for creating an asset.
//
// @Description Request to register a new asset
type CreateAssetRequest struct {
	Name     string `json:"name" binding:"required"`
	Type     string `json:"type" binding:"required" example:"character"`
	ImageURL string `json:"image_url,omitempty"`
} // @name CreateAssetRequest

// ValidationError represents a field validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the error message for ValidationError.
func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

var (
	// ErrEmptyBatch is returned when a resolve request carries no items.
	ErrEmptyBatch = &ValidationError{
		Field:   "items",
		Message: "must contain at least one asset identifier",
	}
	// ErrBatchTooLarge is returned when a resolve request exceeds the batch cap.
	ErrBatchTooLarge = &ValidationError{
		Field:   "items",
		Message: "exceeds the maximum batch size",
	}
	// ErrBlankItem is returned when a resolve request contains an empty identifier.
	ErrBlankItem = &ValidationError{
		Field:   "items",
		Message: "identifiers must be non-empty",
	}
)

// Validate performs custom validation on the resolve request.
func (r *ResolveBatchRequest) Validate() error {
	if len(r.Items) == 0 {
		return ErrEmptyBatch
	}
	if len(r.Items) > MaxBatchItems {
		return ErrBatchTooLarge
	}
	for _, item := range r.Items {
		if item == "" {
			return ErrBlankItem
		}
	}
	return nil
}

// Validate performs custom validation on the generation request.
func (r *SubmitGenerationRequest) Validate() error {
	if r.AssetID == "" {
		return &ValidationError{Field: "asset_id", Message: "must be provided"}
	}
	if r.ImageURL == "" {
		return &ValidationError{Field: "image_url", Message: "must be provided"}
	}
	return nil
}
