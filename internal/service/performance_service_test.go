package service

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-performance-api/internal/models"
	appErrors "github.com/noah-isme/sma-performance-api/pkg/errors"
)

type stubScoreReader struct {
	records      []models.ScoreRecord
	responses    []models.QuestionResponse
	recordsErr   error
	responsesErr error
	delay        time.Duration

	recordCalls   int32
	responseCalls int32
	lastTestNum   int32
}

func (s *stubScoreReader) ListRecords(ctx context.Context, _ string) ([]models.ScoreRecord, error) {
	atomic.AddInt32(&s.recordCalls, 1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.records, s.recordsErr
}

func (s *stubScoreReader) ListQuestionResponses(_ context.Context, _ string, testNum int) ([]models.QuestionResponse, error) {
	atomic.AddInt32(&s.responseCalls, 1)
	atomic.StoreInt32(&s.lastTestNum, int32(testNum))
	return s.responses, s.responsesErr
}

func sampleRecords() []models.ScoreRecord {
	return []models.ScoreRecord{
		{"student_id": "s1", "student_name": "Asha", "test_num": 1, "phy_score": 100, "chem_score": 120, "bio_score": 200, "phy_correct": 30, "phy_attended": 40, "phy_total": 45},
		{"student_id": "s2", "test_num": 1, "phy_score": 80, "chem_score": 100, "bio_score": 180, "phy_correct": 20, "phy_attended": 35, "phy_total": 45},
		{"student_id": "s1", "test_num": 2, "phy_score": 140, "chem_score": 130, "bio_score": 250, "phy_correct": 36, "phy_attended": 42, "phy_total": 45},
		{"student_id": "s2", "test_num": 2, "phy_score": 90, "chem_score": 110, "bio_score": 160, "phy_correct": 22, "phy_attended": 30, "phy_total": 45},
	}
}

func sampleResponses() []models.QuestionResponse {
	return []models.QuestionResponse{
		{BatchID: "b1", TestNum: 2, QuestionNumber: 1, Subject: "Physics", StudentID: "s1", Outcome: "correct"},
		{BatchID: "b1", TestNum: 2, QuestionNumber: 1, Subject: "Physics", StudentID: "s2", Outcome: "incorrect"},
		{BatchID: "b1", TestNum: 2, QuestionNumber: 2, Subject: "Chemistry", StudentID: "s1", Outcome: ""},
		{BatchID: "b1", TestNum: 2, QuestionNumber: 2, Subject: "Chemistry", StudentID: "s2", Outcome: "correct"},
	}
}

func newPerformanceService(repo ScoreReader, cacheEnabled bool) (*PerformanceService, *memoryCacheRepo) {
	cacheRepo := newMemoryCacheRepo()
	metrics := NewMetricsService()
	cache := NewCacheService(cacheRepo, metrics, time.Minute, nil, cacheEnabled)
	return NewPerformanceService(repo, cache, metrics, nil, PerformanceOptions{}), cacheRepo
}

func TestPerformanceServiceTrend(t *testing.T) {
	repo := &stubScoreReader{records: sampleRecords()}
	svc, _ := newPerformanceService(repo, false)

	view, hit, err := svc.Trend(context.Background(), models.PerformanceFilter{BatchID: "b1"})
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, view.Points, 2)
	assert.Equal(t, 390.0, view.Points[0].Average)
	assert.Equal(t, 440.0, view.Points[1].Average)
	assert.Equal(t, 415.0, view.Average)
}

func TestPerformanceServiceCachesViews(t *testing.T) {
	repo := &stubScoreReader{records: sampleRecords()}
	svc, cacheRepo := newPerformanceService(repo, true)
	filter := models.PerformanceFilter{BatchID: "b1", Target: "0"}

	first, hit, err := svc.Trend(context.Background(), filter)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := svc.Trend(context.Background(), filter)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&repo.recordCalls))
	assert.Equal(t, 1, cacheRepo.sets)
}

func TestPerformanceServiceFetchFailureFiresReadiness(t *testing.T) {
	repo := &stubScoreReader{recordsErr: errors.New("connection refused"), responses: sampleResponses()}
	svc, _ := newPerformanceService(repo, false)

	snap := svc.Fetch(context.Background(), "b1", "0", SourceAll)
	select {
	case <-snap.Ready().Done():
	case <-time.After(time.Second):
		t.Fatal("readiness never fired")
	}

	err := snap.Wait(context.Background())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErr.Code)
	assert.Equal(t, http.StatusBadGateway, appErr.Status)
	assert.Contains(t, appErr.Message, "Unable to load score records")
	assert.Equal(t, uint64(1), svc.metrics.Snapshot().FetchFailures)
}

func TestPerformanceServiceFetchWaitsForBothSources(t *testing.T) {
	repo := &stubScoreReader{records: sampleRecords(), responses: sampleResponses(), delay: 20 * time.Millisecond}
	svc, _ := newPerformanceService(repo, false)

	snap := svc.Fetch(context.Background(), "b1", "2", SourceAll)
	assert.False(t, snap.Ready().Fired())
	require.NoError(t, snap.Wait(context.Background()))
	assert.Len(t, snap.Records, 4)
	assert.Len(t, snap.Responses, 4)
	assert.Equal(t, int32(2), atomic.LoadInt32(&repo.lastTestNum))
}

func TestPerformanceServiceTrendSurfacesUpstreamError(t *testing.T) {
	repo := &stubScoreReader{recordsErr: errors.New("timeout")}
	svc, cacheRepo := newPerformanceService(repo, true)

	_, _, err := svc.Trend(context.Background(), models.PerformanceFilter{BatchID: "b1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErrors.FromError(err).Code)
	assert.Zero(t, cacheRepo.sets)
}

func TestPerformanceServiceEmptyBatchIsNotFound(t *testing.T) {
	svc, _ := newPerformanceService(&stubScoreReader{}, false)

	_, _, err := svc.SubjectTrends(context.Background(), models.PerformanceFilter{BatchID: "b1"})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestPerformanceServiceRequiresBatch(t *testing.T) {
	svc, _ := newPerformanceService(&stubScoreReader{}, false)

	_, _, err := svc.Donuts(context.Background(), models.PerformanceFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPerformanceServiceSubjectTrendsMirrorsBiology(t *testing.T) {
	svc, _ := newPerformanceService(&stubScoreReader{records: sampleRecords()}, false)

	trends, _, err := svc.SubjectTrends(context.Background(), models.PerformanceFilter{BatchID: "b1"})
	require.NoError(t, err)

	subjects := make([]models.Subject, 0, len(trends))
	for _, tr := range trends {
		subjects = append(subjects, tr.Subject)
	}
	assert.Contains(t, subjects, models.SubjectBotany)
	assert.Contains(t, subjects, models.SubjectZoology)
	assert.Contains(t, subjects, models.SubjectPhysics)
}

func TestPerformanceServiceDonutsLatestTest(t *testing.T) {
	svc, _ := newPerformanceService(&stubScoreReader{records: sampleRecords()}, false)

	donuts, _, err := svc.Donuts(context.Background(), models.PerformanceFilter{BatchID: "b1", Target: "0"})
	require.NoError(t, err)

	var physics *models.DonutAggregate
	for i := range donuts {
		if donuts[i].Subject == models.SubjectPhysics {
			physics = &donuts[i]
		}
	}
	require.NotNil(t, physics)
	assert.Equal(t, 2, physics.TestNum)
	assert.Equal(t, 29.0, physics.AvgCorrect)
	assert.Equal(t, 7.0, physics.AvgIncorrect)
	assert.Equal(t, 9.0, physics.AvgSkipped)
}

func TestPerformanceServiceImprovement(t *testing.T) {
	svc, _ := newPerformanceService(&stubScoreReader{records: sampleRecords()}, false)

	improvement, _, err := svc.Improvement(context.Background(), models.PerformanceFilter{BatchID: "b1"})
	require.NoError(t, err)
	assert.True(t, improvement.Available)
	assert.Equal(t, 2, improvement.LatestTest)
	assert.Equal(t, 1, improvement.PreviousTest)
	assert.Equal(t, 7.0, improvement.Delta)
}

func TestPerformanceServiceQuestionStats(t *testing.T) {
	repo := &stubScoreReader{responses: sampleResponses()}
	svc, _ := newPerformanceService(repo, false)

	view, _, err := svc.QuestionStats(context.Background(), models.PerformanceFilter{BatchID: "b1"})
	require.NoError(t, err)
	assert.Equal(t, 2, view.TestNum)
	require.Len(t, view.Rows, 2)
	assert.Equal(t, 50.0, view.Rows[0].PercentCorrect)
	assert.Equal(t, 50.0, view.Rows[1].PercentUnattempted)
	require.Len(t, view.Pages, 1)
	assert.Zero(t, atomic.LoadInt32(&repo.recordCalls))
}

func TestPerformanceServiceQuestionStatsPageSize(t *testing.T) {
	svc, _ := newPerformanceService(&stubScoreReader{responses: sampleResponses()}, true)

	view, _, err := svc.QuestionStats(context.Background(), models.PerformanceFilter{BatchID: "b1", PageSize: 1})
	require.NoError(t, err)
	require.Len(t, view.Pages, 2)
	assert.Len(t, view.Pages[0].Rows, 1)
	assert.Equal(t, 2, view.Pages[1].PageNumber)

	view, hit, err := svc.QuestionStats(context.Background(), models.PerformanceFilter{BatchID: "b1"})
	require.NoError(t, err)
	assert.False(t, hit, "different page sizes are cached separately")
	require.Len(t, view.Pages, 1)
	assert.Len(t, view.Pages[0].Rows, 2)
}

func TestPerformanceServiceStudentProgress(t *testing.T) {
	svc, _ := newPerformanceService(&stubScoreReader{records: sampleRecords()}, false)

	progress, _, err := svc.StudentProgress(context.Background(), models.PerformanceFilter{BatchID: "b1", StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "Asha", progress.StudentName)
	assert.Equal(t, 2, progress.Tests)
	require.Len(t, progress.Trend.Points, 2)
	assert.Equal(t, 420.0, progress.Trend.Points[0].Average)
	assert.Equal(t, 520.0, progress.Trend.Points[1].Average)

	_, _, err = svc.StudentProgress(context.Background(), models.PerformanceFilter{BatchID: "b1", StudentID: "missing"})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestPerformanceServiceTeacherReport(t *testing.T) {
	svc, _ := newPerformanceService(&stubScoreReader{records: sampleRecords(), responses: sampleResponses()}, false)

	report, err := svc.TeacherReport(context.Background(), models.PerformanceFilter{BatchID: "b1"})
	require.NoError(t, err)
	assert.Equal(t, "b1", report.BatchID)
	assert.Equal(t, 2, report.Students)
	assert.Len(t, report.Questions, 2)
	require.NotEmpty(t, report.Pages)
	assert.Equal(t, models.PageOverview, report.Pages[0].Kind)
	assert.Equal(t, "Physics", report.Pages[0].Subject)

	for i, page := range report.Pages {
		assert.Equal(t, i+1, page.PageNumber)
	}

	// Biology has records but no question rows.
	var biology *models.PrintPage
	for i := range report.Pages {
		if report.Pages[i].Subject == "Biology" {
			biology = &report.Pages[i]
		}
	}
	require.NotNil(t, biology)
	assert.False(t, biology.DataAvailable)
}

func TestPerformanceServiceReportFromSnapshotRequiresReadiness(t *testing.T) {
	svc, _ := newPerformanceService(&stubScoreReader{}, false)
	snap := &Snapshot{BatchID: "b1", ready: NewReadiness()}

	_, err := svc.ReportFromSnapshot(snap, "0")
	require.ErrorIs(t, err, appErrors.ErrNotReady)
}
