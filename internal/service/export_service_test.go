package service

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-performance-api/internal/models"
	appErrors "github.com/noah-isme/sma-performance-api/pkg/errors"
	"github.com/noah-isme/sma-performance-api/pkg/export"
	"github.com/noah-isme/sma-performance-api/pkg/storage"
)

func newExportServiceForTest(t *testing.T, repo ScoreReader) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	perf, _ := newPerformanceService(repo, false)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour, ReadyTimeout: time.Second}
	svc := NewExportService(perf, store, signer, cfg, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return svc, store
}

func readStored(t *testing.T, store *storage.LocalStorage, name string) []byte {
	t.Helper()
	file, err := store.Open(name)
	require.NoError(t, err)
	defer file.Close()
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	return data
}

func TestExportServiceTeacherPerformanceCSV(t *testing.T) {
	svc, store := newExportServiceForTest(t, &stubScoreReader{records: sampleRecords(), responses: sampleResponses()})
	job := &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeTeacherPerformance,
		Params: models.ReportJobParams{BatchID: "b1", Format: models.ReportFormatCSV},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"))
	assert.Equal(t, result.Token, extractToken(result.URL))

	rows, err := csv.NewReader(strings.NewReader(string(readStored(t, store, result.RelativePath)))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Test", "Subject", "Students", "Average", "Max", "Min"}, rows[0])
	assert.Equal(t, []string{"1", "Overall", "2", "390.00", "420.00", "360.00"}, rows[1])
}

func TestExportServiceSubjectFilter(t *testing.T) {
	svc, store := newExportServiceForTest(t, &stubScoreReader{records: sampleRecords(), responses: sampleResponses()})
	job := &models.ReportJob{
		ID:     "job-2",
		Type:   models.ReportTypeQuestionAnalysis,
		Params: models.ReportJobParams{BatchID: "b1", Subject: "physics", Format: models.ReportFormatCSV},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(string(readStored(t, store, result.RelativePath)))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Physics", rows[1][1])
}

func TestExportServicePDFFormats(t *testing.T) {
	svc, store := newExportServiceForTest(t, &stubScoreReader{records: sampleRecords(), responses: sampleResponses()})

	cases := []models.ReportJob{
		{ID: "job-3", Type: models.ReportTypeTeacherPerformance, Params: models.ReportJobParams{BatchID: "b1", Format: models.ReportFormatPDF}},
		{ID: "job-4", Type: models.ReportTypeQuestionAnalysis, Params: models.ReportJobParams{BatchID: "b1", Format: models.ReportFormatPDF}},
		{ID: "job-5", Type: models.ReportTypeStudentProgress, Params: models.ReportJobParams{BatchID: "b1", StudentID: "s1", Format: models.ReportFormatPDF}},
	}
	for i := range cases {
		job := cases[i]
		t.Run(string(job.Type), func(t *testing.T) {
			result, err := svc.Generate(context.Background(), &job)
			require.NoError(t, err)
			assert.Equal(t, models.ReportFormatPDF, result.Format)
			assert.True(t, strings.HasPrefix(string(readStored(t, store, result.RelativePath)), "%PDF"))
		})
	}
}

func TestExportServiceSurfacesFetchFailure(t *testing.T) {
	svc, _ := newExportServiceForTest(t, &stubScoreReader{recordsErr: errors.New("db down")})
	job := &models.ReportJob{ID: "job-6", Type: models.ReportTypeTeacherPerformance, Params: models.ReportJobParams{BatchID: "b1", Format: models.ReportFormatPDF}}

	_, err := svc.Generate(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, appErrors.FromError(err).Status)
}

func TestExportServiceReadyTimeout(t *testing.T) {
	svc, _ := newExportServiceForTest(t, &stubScoreReader{records: sampleRecords(), delay: 200 * time.Millisecond})
	svc.cfg.ReadyTimeout = 10 * time.Millisecond
	job := &models.ReportJob{ID: "job-7", Type: models.ReportTypeTeacherPerformance, Params: models.ReportJobParams{BatchID: "b1", Format: models.ReportFormatCSV}}

	_, err := svc.Generate(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotReady.Code, appErrors.FromError(err).Code)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "na", sanitizeFilename(""))
	assert.Equal(t, "batch-2024_a", sanitizeFilename("batch/2024 a"))
}
