package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charforge/asset-service/internal/domain/dto"
	"github.com/charforge/asset-service/internal/generation"
	"github.com/charforge/asset-service/internal/i18n"
	"github.com/charforge/asset-service/internal/meshy"
)

// GenerationHandler handles 3D generation job endpoints.
type GenerationHandler struct {
	tracker *generation.Tracker
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(tracker *generation.Tracker) *GenerationHandler {
	return &GenerationHandler{tracker: tracker}
}

// SubmitGeneration handles starting a new 3D generation job.
// @Summary     Start a 3D generation job
// @Description Submits an image-to-3D generation task upstream and tracks it as an async job. The job is polled in the background; query its status with GET /api/generations/{id}.
// @Tags        Generations
// @Accept      json
// @Produce     json
// @Param       request body dto.SubmitGenerationRequest true "Generation to start"
// @Success     202 {object} dto.SuccessResponse{data=dto.GenerationJobResponse} "Job accepted"
// @Failure     400 {object} dto.ErrorResponse "Invalid request"
// @Failure     502 {object} dto.ErrorResponse "Generation service unavailable"
// @Router      /api/generations [post]
func (h *GenerationHandler) SubmitGeneration(c *gin.Context) {
	rb := NewResponseBuilder(c)

	req, err := BuildRequestAndValidate[dto.SubmitGenerationRequest](c)
	if err != nil {
		var vErr *dto.ValidationError
		if errors.As(err, &vErr) {
			rb.ErrorWithMessage(http.StatusBadRequest, vErr.Error(), err)
		} else {
			rb.Error(http.StatusBadRequest, i18n.ErrKeyInvalidRequestBody, err)
		}
		return
	}

	job, err := h.tracker.Submit(c.Request.Context(), req.AssetID, req.ImageURL)
	if err != nil {
		switch {
		case errors.Is(err, meshy.ErrBadRequest):
			rb.Error(http.StatusBadRequest, i18n.ErrKeyInvalidRequest, err)
		case errors.Is(err, meshy.ErrUnavailable):
			rb.Error(http.StatusBadGateway, i18n.ErrKeyUpstreamFailure, err)
		default:
			rb.Error(http.StatusInternalServerError, i18n.ErrKeyInternalError, err)
		}
		return
	}

	rb.SuccessAccepted(dto.NewGenerationJobResponse(job))
}

// GetGeneration handles fetching a generation job's status.
// @Summary     Get a generation job
// @Description Returns the current state of a generation job, including the mesh reference once it has succeeded.
// @Tags        Generations
// @Produce     json
// @Param       id path string true "Job ID"
// @Success     200 {object} dto.SuccessResponse{data=dto.GenerationJobResponse} "Job status"
// @Failure     404 {object} dto.ErrorResponse "Job not found"
// @Router      /api/generations/{id} [get]
func (h *GenerationHandler) GetGeneration(c *gin.Context) {
	rb := NewResponseBuilder(c)

	job, err := h.tracker.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, generation.ErrJobNotFound) {
			rb.Error(http.StatusNotFound, i18n.ErrKeyNotFound, err)
		} else {
			rb.Error(http.StatusInternalServerError, i18n.ErrKeyInternalError, err)
		}
		return
	}

	rb.SuccessOK(dto.NewGenerationJobResponse(job))
}

// CancelGeneration handles cancelling a live generation job.
// @Summary     Cancel a generation job
// @Description Cancels a job that has not finished. Cancelling a job that already reached a terminal state is a no-op and returns the job unchanged.
// @Tags        Generations
// @Produce     json
// @Param       id path string true "Job ID"
// @Success     200 {object} dto.SuccessResponse{data=dto.GenerationJobResponse} "Job after cancellation"
// @Failure     404 {object} dto.ErrorResponse "Job not found"
// @Router      /api/generations/{id} [delete]
func (h *GenerationHandler) CancelGeneration(c *gin.Context) {
	rb := NewResponseBuilder(c)

	job, err := h.tracker.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, generation.ErrJobNotFound) {
			rb.Error(http.StatusNotFound, i18n.ErrKeyNotFound, err)
		} else {
			rb.Error(http.StatusInternalServerError, i18n.ErrKeyInternalError, err)
		}
		return
	}

	rb.SuccessOK(dto.NewGenerationJobResponse(job))
}
