package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-performance-api/internal/dto"
	"github.com/noah-isme/sma-performance-api/internal/models"
	"github.com/noah-isme/sma-performance-api/internal/pipeline"
	appErrors "github.com/noah-isme/sma-performance-api/pkg/errors"
)

// ScoreWriter persists uploaded score data.
type ScoreWriter interface {
	InsertRecords(ctx context.Context, rows []models.StoredScoreRecord) error
	DeleteBatch(ctx context.Context, batchID string) (int64, error)
	ReplaceResponses(ctx context.Context, batchID string, testNum int, responses []models.QuestionResponse) error
}

// ScoreService ingests score records and question responses.
type ScoreService struct {
	repo      ScoreWriter
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	maxRows   int
}

// NewScoreService constructs the upload service. maxRows caps a single upload.
func NewScoreService(repo ScoreWriter, cache *CacheService, validate *validator.Validate, logger *zap.Logger, maxRows int) *ScoreService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = 5000
	}
	return &ScoreService{repo: repo, cache: cache, validator: validate, logger: logger, maxRows: maxRows}
}

// canonicalSubject maps known spellings ("phy", "physics") to the display name and keeps
// anything else as sent.
func canonicalSubject(raw string) string {
	if parsed, ok := models.ParseSubject(raw); ok {
		return string(parsed)
	}
	if label := strings.TrimSpace(raw); label != "" {
		return label
	}
	return models.UnknownSubject
}

func hasSubjectData(rec models.NormalizedRecord) bool {
	for _, subject := range models.Subjects {
		if rec.Subject(subject).Present {
			return true
		}
	}
	return false
}

// Upload validates and stores raw score records. Rows without any recognisable subject field
// are reported back instead of stored. A missing test number stores the row under test 0.
func (s *ScoreService) Upload(ctx context.Context, req dto.ScoreUploadRequest) (*dto.ScoreUploadResponse, error) {
	if err := s.validator.StructCtx(ctx, req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score upload payload")
	}
	if len(req.Records) > s.maxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("upload exceeds %d records", s.maxRows))
	}

	batchID := strings.TrimSpace(req.BatchID)
	result := &dto.ScoreUploadResponse{BatchID: batchID}
	rows := make([]models.StoredScoreRecord, 0, len(req.Records))
	for i, record := range req.Records {
		normalized := pipeline.Normalize(record)
		if !hasSubjectData(normalized) {
			result.Rejected = append(result.Rejected, dto.RejectedRecord{Index: i, Reason: "no recognised subject fields"})
			continue
		}
		payload, err := json.Marshal(record)
		if err != nil {
			result.Rejected = append(result.Rejected, dto.RejectedRecord{Index: i, Reason: "payload is not serialisable"})
			continue
		}
		rows = append(rows, models.StoredScoreRecord{
			BatchID:   batchID,
			StudentID: normalized.StudentID,
			TestNum:   normalized.TestNum,
			Payload:   payload,
		})
	}

	if len(rows) == 0 {
		return result, appErrors.Clone(appErrors.ErrValidation, "no valid score records in upload")
	}

	if req.Replace {
		deleted, err := s.repo.DeleteBatch(ctx, batchID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace score batch")
		}
		result.Replaced = deleted
	}

	if err := s.repo.InsertRecords(ctx, rows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store score records")
	}
	result.Accepted = len(rows)

	s.invalidate(ctx, batchID)
	s.logger.Info("score records uploaded",
		zap.String("batch_id", batchID),
		zap.Int("accepted", result.Accepted),
		zap.Int("rejected", len(result.Rejected)),
	)
	return result, nil
}

// UploadResponses replaces the per-question responses of one test.
func (s *ScoreService) UploadResponses(ctx context.Context, req dto.ResponseUploadRequest) (*dto.ResponseUploadResponse, error) {
	if err := s.validator.StructCtx(ctx, req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid response upload payload")
	}

	batchID := strings.TrimSpace(req.BatchID)
	responses := make([]models.QuestionResponse, 0, len(req.Questions)*8)
	for _, q := range req.Questions {
		subject := canonicalSubject(q.Subject)
		for studentID, raw := range q.Responses {
			responses = append(responses, models.QuestionResponse{
				QuestionNumber: q.QuestionNumber,
				Subject:        subject,
				StudentID:      studentID,
				Outcome:        string(pipeline.NormalizeOutcome(raw)),
			})
		}
	}

	if err := s.repo.ReplaceResponses(ctx, batchID, req.TestNum, responses); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store question responses")
	}

	s.invalidate(ctx, batchID)
	return &dto.ResponseUploadResponse{
		BatchID:   batchID,
		TestNum:   req.TestNum,
		Questions: len(req.Questions),
		Responses: len(responses),
	}, nil
}

func (s *ScoreService) invalidate(ctx context.Context, batchID string) {
	if err := s.cache.Invalidate(ctx, BatchPattern(batchID)); err != nil {
		s.logger.Warn("failed to invalidate performance cache", zap.String("batch_id", batchID), zap.Error(err))
	}
}
