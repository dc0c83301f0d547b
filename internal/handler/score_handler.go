package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-performance-api/internal/dto"
	appErrors "github.com/noah-isme/sma-performance-api/pkg/errors"
	"github.com/noah-isme/sma-performance-api/pkg/response"
)

type scoreService interface {
	Upload(ctx context.Context, req dto.ScoreUploadRequest) (*dto.ScoreUploadResponse, error)
	UploadResponses(ctx context.Context, req dto.ResponseUploadRequest) (*dto.ResponseUploadResponse, error)
}

// ScoreHandler accepts score and answer-sheet uploads.
type ScoreHandler struct {
	service scoreService
}

// NewScoreHandler constructs the handler.
func NewScoreHandler(service scoreService) *ScoreHandler {
	return &ScoreHandler{service: service}
}

// Upload godoc
// @Summary Upload raw score records of a batch
// @Tags Scores
// @Accept json
// @Produce json
// @Param payload body dto.ScoreUploadRequest true "Score records"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /scores/upload [post]
func (h *ScoreHandler) Upload(c *gin.Context) {
	var req dto.ScoreUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid score upload payload"))
		return
	}
	if _, err := requireBatchAccess(c, req.BatchID); err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.Upload(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// UploadResponses godoc
// @Summary Upload per-question responses of one test
// @Tags Scores
// @Accept json
// @Produce json
// @Param payload body dto.ResponseUploadRequest true "Question responses"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /scores/responses [post]
func (h *ScoreHandler) UploadResponses(c *gin.Context) {
	var req dto.ResponseUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid response upload payload"))
		return
	}
	if _, err := requireBatchAccess(c, req.BatchID); err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.UploadResponses(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}
