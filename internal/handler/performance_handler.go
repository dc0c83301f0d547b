package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-performance-api/internal/models"
	appErrors "github.com/noah-isme/sma-performance-api/pkg/errors"
	"github.com/noah-isme/sma-performance-api/pkg/response"
)

type performanceService interface {
	Trend(ctx context.Context, filter models.PerformanceFilter) (*models.TrendView, bool, error)
	SubjectTrends(ctx context.Context, filter models.PerformanceFilter) ([]models.SubjectTrend, bool, error)
	Donuts(ctx context.Context, filter models.PerformanceFilter) ([]models.DonutAggregate, bool, error)
	Improvement(ctx context.Context, filter models.PerformanceFilter) (*models.Improvement, bool, error)
	QuestionStats(ctx context.Context, filter models.PerformanceFilter) (*models.QuestionStatsView, bool, error)
	StudentProgress(ctx context.Context, filter models.PerformanceFilter) (*models.StudentProgress, bool, error)
	TeacherReport(ctx context.Context, filter models.PerformanceFilter) (*models.TeacherReport, error)
}

// PerformanceHandler serves the chart and table views of a batch.
type PerformanceHandler struct {
	service  performanceService
	validate *validator.Validate
}

// NewPerformanceHandler constructs the handler.
func NewPerformanceHandler(service performanceService, validate *validator.Validate) *PerformanceHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &PerformanceHandler{service: service, validate: validate}
}

// filter binds and validates query parameters, then scopes students to their own records.
func (h *PerformanceHandler) filter(c *gin.Context) (models.PerformanceFilter, error) {
	var filter models.PerformanceFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		return filter, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters")
	}
	filter.BatchID = strings.TrimSpace(filter.BatchID)
	if err := h.validate.Struct(filter); err != nil {
		return filter, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "batch_id is required")
	}
	claims, err := requireBatchAccess(c, filter.BatchID)
	if err != nil {
		return filter, err
	}
	if claims.Role == models.RoleStudent {
		filter.StudentID = claims.UserID
	}
	return filter, nil
}

func serve[T any](h *PerformanceHandler, c *gin.Context, load func(context.Context, models.PerformanceFilter) (T, bool, error)) {
	filter, err := h.filter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	data, hit, err := load(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, data, nil, responseMeta(c, start, hit))
}

// Trend godoc
// @Summary Overall score trend
// @Tags Performance
// @Produce json
// @Param batch_id query string true "Batch ID"
// @Param test_num query string false "Target test number, 0 for latest"
// @Param student_id query string false "Restrict to one student"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /performance/trend [get]
func (h *PerformanceHandler) Trend(c *gin.Context) {
	serve(h, c, h.service.Trend)
}

// Subjects godoc
// @Summary Per-subject score trends
// @Tags Performance
// @Produce json
// @Param batch_id query string true "Batch ID"
// @Param test_num query string false "Target test number, 0 for latest"
// @Success 200 {object} response.Envelope
// @Router /performance/subjects [get]
func (h *PerformanceHandler) Subjects(c *gin.Context) {
	serve(h, c, h.service.SubjectTrends)
}

// Donuts godoc
// @Summary Correct, incorrect and skipped split per subject
// @Tags Performance
// @Produce json
// @Param batch_id query string true "Batch ID"
// @Param test_num query string false "Target test number, 0 for latest"
// @Success 200 {object} response.Envelope
// @Router /performance/donuts [get]
func (h *PerformanceHandler) Donuts(c *gin.Context) {
	serve(h, c, h.service.Donuts)
}

// Improvement godoc
// @Summary Improvement between the two latest tests
// @Tags Performance
// @Produce json
// @Param batch_id query string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /performance/improvement [get]
func (h *PerformanceHandler) Improvement(c *gin.Context) {
	serve(h, c, h.service.Improvement)
}

// Questions godoc
// @Summary Per-question statistics of one test
// @Tags Performance
// @Produce json
// @Param batch_id query string true "Batch ID"
// @Param test_num query string false "Test number, 0 for latest"
// @Param page query int false "Page number"
// @Param page_size query int false "Rows per page"
// @Success 200 {object} response.Envelope
// @Router /performance/questions [get]
func (h *PerformanceHandler) Questions(c *gin.Context) {
	filter, err := h.filter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	view, hit, err := h.service.QuestionStats(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	var pagination *models.Pagination
	if filter.Page > 0 {
		page := models.PrintPage{PageNumber: filter.Page}
		if filter.Page <= len(view.Pages) {
			page = view.Pages[filter.Page-1]
		}
		pageSize := len(page.Rows)
		if len(view.Pages) > 0 {
			pageSize = len(view.Pages[0].Rows)
		}
		pagination = &models.Pagination{Page: filter.Page, PageSize: pageSize, TotalCount: len(view.Rows)}
		view = &models.QuestionStatsView{TestNum: view.TestNum, Rows: page.Rows, Pages: []models.PrintPage{page}}
	}
	response.JSON(c, http.StatusOK, view, pagination, responseMeta(c, start, hit))
}

// Report godoc
// @Summary Full teacher report including print pages
// @Tags Performance
// @Produce json
// @Param batch_id query string true "Batch ID"
// @Param test_num query string false "Target test number, 0 for latest"
// @Success 200 {object} response.Envelope
// @Router /performance/report [get]
func (h *PerformanceHandler) Report(c *gin.Context) {
	serve(h, c, func(ctx context.Context, filter models.PerformanceFilter) (*models.TeacherReport, bool, error) {
		report, err := h.service.TeacherReport(ctx, filter)
		return report, false, err
	})
}

// StudentProgress godoc
// @Summary Progress of one student across tests
// @Tags Performance
// @Produce json
// @Param id path string true "Student ID"
// @Param batch_id query string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/progress [get]
func (h *PerformanceHandler) StudentProgress(c *gin.Context) {
	serve(h, c, func(ctx context.Context, filter models.PerformanceFilter) (*models.StudentProgress, bool, error) {
		filter.StudentID = c.Param("id")
		return h.service.StudentProgress(ctx, filter)
	})
}
