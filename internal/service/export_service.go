package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-performance-api/internal/models"
	"github.com/noah-isme/sma-performance-api/internal/pipeline"
	appErrors "github.com/noah-isme/sma-performance-api/pkg/errors"
	"github.com/noah-isme/sma-performance-api/pkg/export"
	"github.com/noah-isme/sma-performance-api/pkg/storage"
)

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	RenderDocument(doc export.Document) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix    string
	ResultTTL    time.Duration
	ReadyTimeout time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService renders report jobs and persists the files behind signed download links.
type ExportService struct {
	perf    *PerformanceService
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService. Nil renderers fall back to the stock exporters.
func NewExportService(perf *PerformanceService, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 30 * time.Second
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		perf:    perf,
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// rendering is the format-independent content of one report.
type rendering struct {
	title    string
	subtitle string
	table    export.Dataset
	pages    []models.PrintPage
}

// Generate builds the report described by job, renders it and stores the file.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	content, err := s.build(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(content.table)
	case models.ReportFormatPDF:
		payload, err = s.pdf.RenderDocument(export.Document{
			Title:    content.title,
			Subtitle: content.subtitle,
			Summary:  content.table,
			Pages:    content.pages,
		})
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}

	signed, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Debug("report rendered",
		zap.String("job_id", job.ID),
		zap.String("path", relPath),
		zap.Int("bytes", len(payload)),
	)

	return &ExportResult{
		RelativePath: relPath,
		Token:        signed.Token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, signed.Token),
		Format:       job.Params.Format,
		ExpiresAt:    signed.ExpiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (storage.SignedToken, error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	id := job.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s_%s_%s_%s.%s",
		strings.ToLower(string(job.Type)), sanitizeFilename(job.Params.BatchID), sanitizeFilename(id), timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) build(ctx context.Context, job *models.ReportJob) (*rendering, error) {
	params := job.Params
	switch job.Type {
	case models.ReportTypeTeacherPerformance, models.ReportTypeQuestionAnalysis:
		report, err := s.awaitReport(ctx, params)
		if err != nil {
			return nil, err
		}
		if job.Type == models.ReportTypeQuestionAnalysis {
			return s.questionRendering(report, params.Subject), nil
		}
		return teacherRendering(report, params.Subject), nil
	case models.ReportTypeStudentProgress:
		progress, _, err := s.perf.StudentProgress(ctx, models.PerformanceFilter{
			BatchID:   params.BatchID,
			StudentID: params.StudentID,
			Target:    params.Target,
		})
		if err != nil {
			return nil, err
		}
		return progressRendering(params.BatchID, progress), nil
	default:
		return nil, fmt.Errorf("unsupported report type %s", job.Type)
	}
}

// awaitReport fetches a batch and blocks on its readiness before any rendering happens.
func (s *ExportService) awaitReport(ctx context.Context, params models.ReportJobParams) (*models.TeacherReport, error) {
	if s.perf == nil {
		return nil, fmt.Errorf("performance service not configured")
	}
	snap := s.perf.Fetch(ctx, params.BatchID, params.Target, SourceAll)

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadyTimeout)
	defer cancel()
	if err := snap.Wait(waitCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, appErrors.Wrap(err, appErrors.ErrNotReady.Code, appErrors.ErrNotReady.Status, appErrors.ErrNotReady.Message)
		}
		return nil, err
	}
	return s.perf.ReportFromSnapshot(snap, params.Target)
}

func matchesSubject(filter, subject string) bool {
	return filter == "" || strings.EqualFold(filter, subject)
}

func addTrendRows(table *export.Dataset, label string, points []models.AggregateRow) {
	for _, p := range points {
		table.AddRow(strconv.Itoa(p.TestNum), label, strconv.Itoa(p.Count), formatScore(p.Average), formatScore(p.Max), formatScore(p.Min))
	}
}

var trendHeaders = []string{"Test", "Subject", "Students", "Average", "Max", "Min"}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func trendDataset(overall models.TrendView, subjects []models.SubjectTrend, subject string) export.Dataset {
	table := export.NewDataset(trendHeaders...)
	if subject == "" {
		addTrendRows(&table, "Overall", overall.Points)
	}
	for _, trend := range subjects {
		if matchesSubject(subject, string(trend.Subject)) {
			addTrendRows(&table, string(trend.Subject), trend.Points)
		}
	}
	return table
}

func teacherRendering(report *models.TeacherReport, subject string) *rendering {
	pages := make([]models.PrintPage, 0, len(report.Pages))
	for _, page := range report.Pages {
		if matchesSubject(subject, page.Subject) {
			pages = append(pages, page)
		}
	}
	renumber(pages)
	return &rendering{
		title:    "Teacher performance report",
		subtitle: fmt.Sprintf("Batch %s, %d students, generated %s", report.BatchID, report.Students, report.GeneratedAt.Format(time.RFC822)),
		table:    trendDataset(report.Trend, report.Subjects, subject),
		pages:    pages,
	}
}

var questionHeaders = []string{"Question", "Subject", "Correct", "Incorrect", "Unattempted", "Students", "Correct %", "Unattempted %", "Severity %", "Level"}

func (s *ExportService) questionRendering(report *models.TeacherReport, subject string) *rendering {
	rows := make([]models.QuestionStatRow, 0, len(report.Questions))
	for _, row := range report.Questions {
		if matchesSubject(subject, row.Subject) {
			rows = append(rows, row)
		}
	}
	table := export.NewDataset(questionHeaders...)
	for _, row := range rows {
		table.AddRow(
			strconv.Itoa(row.QuestionNumber),
			row.Subject,
			strconv.Itoa(row.Correct),
			strconv.Itoa(row.Incorrect),
			strconv.Itoa(row.Unattempted),
			strconv.Itoa(row.TotalStudents),
			formatPercent(row.PercentCorrect),
			formatPercent(row.PercentUnattempted),
			formatPercent(row.Severity),
			string(row.SeverityLevel),
		)
	}
	return &rendering{
		title:    "Question analysis",
		subtitle: fmt.Sprintf("Batch %s", report.BatchID),
		table:    table,
		pages:    pipeline.FlatPages(rows, s.perf.Layout().PageSize),
	}
}

func progressRendering(batchID string, progress *models.StudentProgress) *rendering {
	name := progress.StudentName
	if name == "" {
		name = progress.StudentID
	}
	return &rendering{
		title:    "Student progress report",
		subtitle: fmt.Sprintf("%s, batch %s, %d tests", name, batchID, progress.Tests),
		table:    trendDataset(progress.Trend, progress.Subjects, ""),
	}
}

func renumber(pages []models.PrintPage) {
	for i := range pages {
		pages[i].PageNumber = i + 1
	}
}
