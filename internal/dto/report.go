package dto

import (
	"time"

	"github.com/noah-isme/sma-performance-api/internal/models"
)

// ReportRequest captures POST /reports/generate payload.
type ReportRequest struct {
	Type        models.ReportType   `json:"type" validate:"required,oneof=teacher_performance question_analysis student_progress"`
	BatchID     string              `json:"batchId" validate:"required,max=64"`
	Target      string              `json:"target" validate:"omitempty,numeric"`
	StudentID   string              `json:"studentId" validate:"required_if=Type student_progress"`
	Subject     string              `json:"subject"`
	Format      models.ReportFormat `json:"format" validate:"omitempty,oneof=pdf csv"`
	NotifyEmail string              `json:"notifyEmail" validate:"omitempty,email"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID         string              `json:"id"`
	Type       models.ReportType   `json:"type"`
	Status     models.ReportStatus `json:"status"`
	Progress   int                 `json:"progress"`
	ResultURL  *string             `json:"resultUrl,omitempty"`
	Error      *string             `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
	FinishedAt *time.Time          `json:"finishedAt,omitempty"`
}
