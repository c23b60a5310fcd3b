// Package analyzer defines the external analysis capability used to compute
// asset metadata, and its Gemini-backed implementation.
package analyzer

import (
	"context"
	"errors"

	"github.com/charforge/asset-service/internal/domain/model"
)

var (
	// ErrUnavailable marks an upstream analyzer failure. The batch
	// coordinator caches it briefly (negative caching) to shed load.
	ErrUnavailable = errors.New("analyzer unavailable")
	// ErrRateLimited marks a rate-limit rejection. Classified as
	// retryable-immediately: no negative cache entry is written for it.
	ErrRateLimited = errors.New("analyzer rate limited")
	// ErrInvalidResponse marks a response that could not be interpreted.
	ErrInvalidResponse = errors.New("invalid analyzer response")
)

// Analyzer is the analysis capability: possibly slow, possibly rate limited,
// treated as opaque by the rest of the service.
type Analyzer interface {
	// Analyze computes metadata for the asset referenced by assetRef
	// (an asset identifier or image URL).
	Analyze(ctx context.Context, assetRef string) (model.AssetMetadata, error)
}

// Func adapts a plain function to the Analyzer interface. Used in tests.
type Func func(ctx context.Context, assetRef string) (model.AssetMetadata, error)

// Analyze implements Analyzer.
func (f Func) Analyze(ctx context.Context, assetRef string) (model.AssetMetadata, error) {
	return f(ctx, assetRef)
}
