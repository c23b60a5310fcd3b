package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/charforge/asset-service/internal/analyzer"
	"github.com/charforge/asset-service/internal/batch"
	"github.com/charforge/asset-service/internal/domain/dto"
	"github.com/charforge/asset-service/internal/domain/model"
	"github.com/charforge/asset-service/internal/executor"
	"github.com/charforge/asset-service/internal/i18n"
	"github.com/charforge/asset-service/internal/repository"
)

// AssetStore is the asset persistence capability used by the HTTP layer.
// Implemented by repository.AssetsRepository.
type AssetStore interface {
	Create(ctx context.Context, asset *model.Asset) error
	GetByID(ctx context.Context, id string) (*model.Asset, error)
	List(ctx context.Context, category string, limit int) ([]model.Asset, error)
}

// Handler handles asset resolution and asset CRUD endpoints.
type Handler struct {
	coordinator *batch.Coordinator
	assets      AssetStore
}

// NewHandler creates a new Handler. The asset store may be nil when the
// service runs without a database; asset CRUD routes are then not registered.
func NewHandler(coordinator *batch.Coordinator, assets AssetStore) *Handler {
	return &Handler{
		coordinator: coordinator,
		assets:      assets,
	}
}

// ResolveAssets handles batch asset metadata resolution.
// @Summary     Resolve a batch of assets
// @Description Resolves up to 50 asset identifiers to their analyzed metadata in one call. Cached entries are served immediately; misses are computed in parallel with per-item failure isolation, so one bad identifier never fails its siblings.
// @Tags        Assets
// @Accept      json
// @Produce     json
// @Param       request body dto.ResolveBatchRequest true "Asset identifiers to resolve"
// @Success     200 {object} dto.SuccessResponse{data=dto.ResolveBatchResponse} "Per-item results"
// @Failure     400 {object} dto.ErrorResponse "Invalid request"
// @Failure     429 {object} dto.ErrorResponse "Rate limit exceeded"
// @Router      /api/assets/resolve [post]
func (h *Handler) ResolveAssets(c *gin.Context) {
	rb := NewResponseBuilder(c)

	req, err := BuildRequestAndValidate[dto.ResolveBatchRequest](c)
	if err != nil {
		var vErr *dto.ValidationError
		if errors.As(err, &vErr) {
			rb.ErrorWithMessage(http.StatusBadRequest, vErr.Error(), err)
		} else {
			rb.Error(http.StatusBadRequest, i18n.ErrKeyInvalidRequestBody, err)
		}
		return
	}

	results := h.coordinator.Resolve(c.Request.Context(), batch.Request{
		Items:       req.Items,
		RequestedAt: req.RequestedAt,
	})

	resp := dto.ResolveBatchResponse{Results: make([]dto.BatchItemResult, 0, len(results))}
	for _, r := range results {
		item := dto.BatchItemResult{Key: r.Key, Cached: r.Cached}
		if r.Err != nil {
			item.Error = itemErrorCode(r.Err)
		} else {
			value := r.Value
			item.Metadata = &value
		}
		resp.Results = append(resp.Results, item)
	}

	rb.SuccessOK(resp)
}

// itemErrorCode maps a per-item resolution error to its public error code.
func itemErrorCode(err error) string {
	switch {
	case errors.Is(err, batch.ErrDeadlineExceeded), errors.Is(err, executor.ErrTaskTimeout):
		return dto.ErrCodeTimeout
	case errors.Is(err, executor.ErrCapacityExceeded), errors.Is(err, executor.ErrPoolClosed):
		return dto.ErrCodeCapacity
	case errors.Is(err, analyzer.ErrRateLimited):
		return dto.ErrCodeRateLimit
	case errors.Is(err, batch.ErrUpstream),
		errors.Is(err, analyzer.ErrUnavailable),
		errors.Is(err, analyzer.ErrInvalidResponse):
		return dto.ErrCodeUpstream
	default:
		return dto.ErrCodeInternal
	}
}

// CreateAsset handles asset registration.
// @Summary     Register an asset
// @Description Registers a new character asset. Metadata is filled in later by resolution.
// @Tags        Assets
// @Accept      json
// @Produce     json
// @Param       request body dto.CreateAssetRequest true "Asset to register"
// @Success     201 {object} dto.SuccessResponse{data=model.Asset} "Created asset"
// @Failure     400 {object} dto.ErrorResponse "Invalid request"
// @Router      /api/assets [post]
func (h *Handler) CreateAsset(c *gin.Context) {
	rb := NewResponseBuilder(c)

	req, err := BuildRequest[dto.CreateAssetRequest](c)
	if err != nil {
		rb.Error(http.StatusBadRequest, i18n.ErrKeyInvalidRequestBody, err)
		return
	}

	asset := &model.Asset{
		Name:     req.Name,
		Type:     req.Type,
		ImageURL: req.ImageURL,
	}
	if err := h.assets.Create(c.Request.Context(), asset); err != nil {
		rb.Error(http.StatusInternalServerError, i18n.ErrKeyInternalError, err)
		return
	}

	rb.SuccessCreated(asset)
}

// GetAsset handles fetching a single asset by ID.
// @Summary     Get an asset
// @Description Returns the asset with the given ID, including any analyzed metadata.
// @Tags        Assets
// @Produce     json
// @Param       id path string true "Asset ID"
// @Success     200 {object} dto.SuccessResponse{data=model.Asset} "Asset"
// @Failure     404 {object} dto.ErrorResponse "Asset not found"
// @Router      /api/assets/{id} [get]
func (h *Handler) GetAsset(c *gin.Context) {
	rb := NewResponseBuilder(c)

	asset, err := h.assets.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrAssetNotFound) {
			rb.Error(http.StatusNotFound, i18n.ErrKeyNotFound, err)
		} else {
			rb.Error(http.StatusInternalServerError, i18n.ErrKeyInternalError, err)
		}
		return
	}

	rb.SuccessOK(asset)
}

// ListAssets handles listing assets.
// @Summary     List assets
// @Description Lists registered assets, newest first, optionally filtered by metadata category.
// @Tags        Assets
// @Produce     json
// @Param       category query string false "Filter by metadata category"
// @Param       limit    query int    false "Maximum number of assets to return" default(50)
// @Success     200 {object} dto.SuccessResponse{data=[]model.Asset} "Assets"
// @Router      /api/assets [get]
func (h *Handler) ListAssets(c *gin.Context) {
	rb := NewResponseBuilder(c)

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			rb.Error(http.StatusBadRequest, i18n.ErrKeyInvalidRequest, err)
			return
		}
		limit = parsed
	}

	assets, err := h.assets.List(c.Request.Context(), c.Query("category"), limit)
	if err != nil {
		rb.Error(http.StatusInternalServerError, i18n.ErrKeyInternalError, err)
		return
	}

	rb.SuccessOK(assets)
}
