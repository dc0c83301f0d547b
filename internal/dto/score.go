package dto

import "github.com/noah-isme/sma-performance-api/internal/models"

// ScoreUploadRequest captures POST /scores/upload payload.
type ScoreUploadRequest struct {
	BatchID string               `json:"batchId" validate:"required,max=64"`
	Records []models.ScoreRecord `json:"records" validate:"required,min=1,max=5000"`
	// Replace drops the batch's stored records before inserting.
	Replace bool `json:"replace"`
}

// RejectedRecord explains why an uploaded row was skipped.
type RejectedRecord struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ScoreUploadResponse summarises an upload.
type ScoreUploadResponse struct {
	BatchID  string           `json:"batchId"`
	Accepted int              `json:"accepted"`
	Replaced int64            `json:"replaced,omitempty"`
	Rejected []RejectedRecord `json:"rejected,omitempty"`
}

// QuestionUpload is one question with the outcome of every student.
type QuestionUpload struct {
	QuestionNumber int               `json:"questionNumber" validate:"required,min=1"`
	Subject        string            `json:"subject" validate:"max=32"`
	Responses      map[string]string `json:"responses" validate:"required"`
}

// ResponseUploadRequest captures POST /scores/responses payload.
type ResponseUploadRequest struct {
	BatchID   string           `json:"batchId" validate:"required,max=64"`
	TestNum   int              `json:"testNum" validate:"required,min=1"`
	Questions []QuestionUpload `json:"questions" validate:"required,min=1,dive"`
}

// ResponseUploadResponse summarises a response upload.
type ResponseUploadResponse struct {
	BatchID   string `json:"batchId"`
	TestNum   int    `json:"testNum"`
	Questions int    `json:"questions"`
	Responses int    `json:"responses"`
}
