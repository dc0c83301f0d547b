package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-performance-api/internal/dto"
	"github.com/noah-isme/sma-performance-api/internal/models"
)

type fakeScoreSrv struct {
	uploads   []dto.ScoreUploadRequest
	responses []dto.ResponseUploadRequest
}

func (f *fakeScoreSrv) Upload(_ context.Context, req dto.ScoreUploadRequest) (*dto.ScoreUploadResponse, error) {
	f.uploads = append(f.uploads, req)
	return &dto.ScoreUploadResponse{BatchID: req.BatchID, Accepted: len(req.Records)}, nil
}

func (f *fakeScoreSrv) UploadResponses(_ context.Context, req dto.ResponseUploadRequest) (*dto.ResponseUploadResponse, error) {
	f.responses = append(f.responses, req)
	return &dto.ResponseUploadResponse{BatchID: req.BatchID, TestNum: req.TestNum, Questions: len(req.Questions)}, nil
}

func TestScoreHandlerUpload(t *testing.T) {
	srv := &fakeScoreSrv{}
	h := NewScoreHandler(srv)
	body := dto.ScoreUploadRequest{
		BatchID: "b1",
		Records: []models.ScoreRecord{{"student_id": "s1", "test_num": 1, "phy_score": 100}},
	}
	c, rec := newTestContext(http.MethodPost, "/scores/upload", body, teacherClaims)

	h.Upload(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, srv.uploads, 1)
	assert.Equal(t, "b1", srv.uploads[0].BatchID)
}

func TestScoreHandlerUploadRejectsForeignBatch(t *testing.T) {
	srv := &fakeScoreSrv{}
	h := NewScoreHandler(srv)
	body := dto.ScoreUploadRequest{BatchID: "b9", Records: []models.ScoreRecord{{"test_num": 1}}}
	c, rec := newTestContext(http.MethodPost, "/scores/upload", body, teacherClaims)

	h.Upload(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, srv.uploads)
}

func TestScoreHandlerUploadInvalidJSON(t *testing.T) {
	h := NewScoreHandler(&fakeScoreSrv{})
	c, rec := newTestContext(http.MethodPost, "/scores/upload", "not an object", adminClaims)

	h.Upload(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScoreHandlerUploadResponses(t *testing.T) {
	srv := &fakeScoreSrv{}
	h := NewScoreHandler(srv)
	body := dto.ResponseUploadRequest{
		BatchID:   "b1",
		TestNum:   3,
		Questions: []dto.QuestionUpload{{QuestionNumber: 1, Subject: "Physics", Responses: map[string]string{"s1": "correct"}}},
	}
	c, rec := newTestContext(http.MethodPost, "/scores/responses", body, adminClaims)

	h.UploadResponses(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, srv.responses, 1)
	assert.Equal(t, 3, srv.responses[0].TestNum)
}
