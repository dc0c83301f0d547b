package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-performance-api/internal/models"
	"github.com/noah-isme/sma-performance-api/internal/pipeline"
	appErrors "github.com/noah-isme/sma-performance-api/pkg/errors"
)

// ScoreReader loads the raw inputs of the performance pipeline.
type ScoreReader interface {
	ListRecords(ctx context.Context, batchID string) ([]models.ScoreRecord, error)
	ListQuestionResponses(ctx context.Context, batchID string, testNum int) ([]models.QuestionResponse, error)
}

// Source selects which inputs a view needs.
type Source uint8

const (
	SourceRecords Source = 1 << iota
	SourceResponses

	SourceAll = SourceRecords | SourceResponses
)

// PerformanceOptions tunes the pipeline and caching.
type PerformanceOptions struct {
	CacheTTL   time.Duration
	WindowSize int
	FullMarks  float64
	Layout     models.PageLayout
	Thresholds models.SeverityThresholds
	Aliases    *pipeline.AliasTable
}

// Snapshot holds the raw inputs of one batch while they are being fetched. Its fields may only
// be read after Wait returns.
type Snapshot struct {
	BatchID   string
	TestNum   int
	Records   []models.ScoreRecord
	Responses []models.QuestionResponse

	ready *Readiness
}

// Ready exposes the completion event of the fetch.
func (s *Snapshot) Ready() *Readiness {
	return s.ready
}

// Wait blocks until every requested source has settled and returns the first fetch failure.
func (s *Snapshot) Wait(ctx context.Context) error {
	return s.ready.Wait(ctx)
}

// PerformanceService turns stored score data into chart, table and print views.
type PerformanceService struct {
	repo     ScoreReader
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	resolver *pipeline.Resolver
	opts     PerformanceOptions
}

// NewPerformanceService constructs the service.
func NewPerformanceService(repo ScoreReader, cache *CacheService, metrics *MetricsService, logger *zap.Logger, opts PerformanceOptions) *PerformanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = pipeline.DefaultWindowSize
	}
	if opts.FullMarks <= 0 {
		opts.FullMarks = pipeline.DefaultFullMarks
	}
	if opts.Thresholds == (models.SeverityThresholds{}) {
		opts.Thresholds = models.DefaultSeverityThresholds
	}
	opts.Layout = pipeline.WithDefaults(opts.Layout)
	aliases := pipeline.DefaultAliasTable()
	if opts.Aliases != nil {
		aliases = *opts.Aliases
	}
	return &PerformanceService{
		repo:     repo,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		resolver: pipeline.NewResolver(aliases),
		opts:     opts,
	}
}

// Layout returns the effective print layout.
func (s *PerformanceService) Layout() models.PageLayout {
	return s.opts.Layout
}

// targetTest maps a target to the test whose responses are shown. Zero means the latest test.
func targetTest(target string) int {
	n, err := strconv.Atoi(strings.TrimSpace(target))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func normalizeTarget(target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return pipeline.OverallTarget
	}
	return target
}

// Fetch starts loading the requested sources of a batch concurrently and returns immediately.
// The snapshot's readiness fires once every source has settled, successfully or not.
func (s *PerformanceService) Fetch(ctx context.Context, batchID, target string, sources Source) *Snapshot {
	snap := &Snapshot{BatchID: batchID, TestNum: targetTest(target), ready: NewReadiness()}

	var (
		wg           sync.WaitGroup
		recordsErr   error
		responsesErr error
	)

	if sources&SourceRecords != 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			records, err := s.repo.ListRecords(ctx, batchID)
			s.metrics.ObserveDBQuery("score_records.list", time.Since(start))
			if err != nil {
				recordsErr = s.fetchFailed("records", batchID, err, "Unable to load score records. Please try again later.")
				return
			}
			snap.Records = records
		}()
	}

	if sources&SourceResponses != 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			responses, err := s.repo.ListQuestionResponses(ctx, batchID, snap.TestNum)
			s.metrics.ObserveDBQuery("question_responses.list", time.Since(start))
			if err != nil {
				responsesErr = s.fetchFailed("responses", batchID, err, "Unable to load question analysis. Please try again later.")
				return
			}
			snap.Responses = responses
		}()
	}

	go func() {
		wg.Wait()
		if recordsErr != nil {
			snap.ready.Mark(recordsErr)
			return
		}
		snap.ready.Mark(responsesErr)
	}()

	return snap
}

func (s *PerformanceService) fetchFailed(source, batchID string, err error, display string) error {
	s.metrics.RecordFetchFailure(source)
	s.logger.Warn("performance fetch failed",
		zap.String("source", source),
		zap.String("batch_id", batchID),
		zap.Error(err),
	)
	return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, display)
}

// dataset is a settled snapshot with normalized records.
type dataset struct {
	target    string
	testNum   int
	records   []models.NormalizedRecord
	responses []models.QuestionResponse
}

func (s *PerformanceService) load(ctx context.Context, filter models.PerformanceFilter, sources Source) (*dataset, error) {
	if strings.TrimSpace(filter.BatchID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "batch_id is required")
	}
	target := normalizeTarget(filter.Target)
	snap := s.Fetch(ctx, filter.BatchID, target, sources)
	if err := snap.Wait(ctx); err != nil {
		return nil, err
	}

	data := &dataset{target: target, testNum: snap.TestNum, responses: snap.Responses}
	if sources&SourceRecords == 0 {
		return data, nil
	}

	start := time.Now()
	data.records = s.resolver.NormalizeAll(snap.Records)
	if filter.StudentID != "" {
		data.records = pipeline.FilterByStudent(data.records, filter.StudentID)
	}
	s.metrics.ObservePipelineStage("normalize", time.Since(start))

	if len(data.records) == 0 {
		msg := "no score records found for batch"
		if filter.StudentID != "" {
			msg = "no score records found for student"
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, msg)
	}
	return data, nil
}

func (s *PerformanceService) cacheKey(filter models.PerformanceFilter, view string) string {
	return PerformanceKey(filter.BatchID, view, normalizeTarget(filter.Target), filter.StudentID)
}

func (s *PerformanceService) timed(stage string, fn func()) {
	start := time.Now()
	fn()
	s.metrics.ObservePipelineStage(stage, time.Since(start))
}

func (s *PerformanceService) trend(records []models.NormalizedRecord, target string) models.TrendView {
	var view models.TrendView
	s.timed("trend", func() {
		view = pipeline.OverallTrend(records, target, s.opts.WindowSize)
	})
	return view
}

func (s *PerformanceService) subjectTrends(records []models.NormalizedRecord, target string) []models.SubjectTrend {
	var trends []models.SubjectTrend
	s.timed("subject_trends", func() {
		trends = pipeline.SubjectTrends(pipeline.ApplyBiologyFallback(records), target, s.opts.WindowSize)
	})
	return trends
}

func (s *PerformanceService) donuts(records []models.NormalizedRecord, target string) []models.DonutAggregate {
	var donuts []models.DonutAggregate
	s.timed("donuts", func() {
		charted := pipeline.ApplyBiologyFallback(records)
		summaries := pipeline.SubjectSummaries(charted)
		donuts = make([]models.DonutAggregate, 0, len(summaries))
		for _, summary := range summaries {
			donuts = append(donuts, pipeline.Donut(charted, summary.Subject, target))
		}
	})
	return donuts
}

func (s *PerformanceService) questionRows(responses []models.QuestionResponse) []models.QuestionStatRow {
	var rows []models.QuestionStatRow
	s.timed("question_stats", func() {
		rows = pipeline.BuildQuestionStats(pipeline.GroupResponses(responses), s.opts.Thresholds)
	})
	return rows
}

// Trend returns the windowed overall score trend. The boolean reports a cache hit.
func (s *PerformanceService) Trend(ctx context.Context, filter models.PerformanceFilter) (*models.TrendView, bool, error) {
	return Remember(ctx, s.cache, s.cacheKey(filter, "trend"), s.opts.CacheTTL, func() (*models.TrendView, error) {
		data, err := s.load(ctx, filter, SourceRecords)
		if err != nil {
			return nil, err
		}
		view := s.trend(data.records, data.target)
		return &view, nil
	})
}

// SubjectTrends returns one windowed series per subject present in the batch.
func (s *PerformanceService) SubjectTrends(ctx context.Context, filter models.PerformanceFilter) ([]models.SubjectTrend, bool, error) {
	return Remember(ctx, s.cache, s.cacheKey(filter, "subjects"), s.opts.CacheTTL, func() ([]models.SubjectTrend, error) {
		data, err := s.load(ctx, filter, SourceRecords)
		if err != nil {
			return nil, err
		}
		return s.subjectTrends(data.records, data.target), nil
	})
}

// Donuts returns the correct/incorrect/skipped split per subject for the target test.
func (s *PerformanceService) Donuts(ctx context.Context, filter models.PerformanceFilter) ([]models.DonutAggregate, bool, error) {
	return Remember(ctx, s.cache, s.cacheKey(filter, "donuts"), s.opts.CacheTTL, func() ([]models.DonutAggregate, error) {
		data, err := s.load(ctx, filter, SourceRecords)
		if err != nil {
			return nil, err
		}
		return s.donuts(data.records, data.target), nil
	})
}

// Improvement compares the two most recent tests of the batch.
func (s *PerformanceService) Improvement(ctx context.Context, filter models.PerformanceFilter) (*models.Improvement, bool, error) {
	return Remember(ctx, s.cache, s.cacheKey(filter, "improvement"), s.opts.CacheTTL, func() (*models.Improvement, error) {
		data, err := s.load(ctx, filter, SourceRecords)
		if err != nil {
			return nil, err
		}
		improvement := pipeline.ImprovementRate(data.records, s.opts.FullMarks)
		return &improvement, nil
	})
}

// QuestionStats returns per-question statistics for the target test, paginated for print.
func (s *PerformanceService) QuestionStats(ctx context.Context, filter models.PerformanceFilter) (*models.QuestionStatsView, bool, error) {
	filter.StudentID = ""
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = s.opts.Layout.PageSize
	}
	key := PerformanceKey(filter.BatchID, "questions", normalizeTarget(filter.Target), strconv.Itoa(pageSize))
	return Remember(ctx, s.cache, key, s.opts.CacheTTL, func() (*models.QuestionStatsView, error) {
		data, err := s.load(ctx, filter, SourceResponses)
		if err != nil {
			return nil, err
		}
		rows := s.questionRows(data.responses)
		testNum := data.testNum
		if len(data.responses) > 0 {
			testNum = data.responses[0].TestNum
		}
		return &models.QuestionStatsView{
			TestNum: testNum,
			Rows:    rows,
			Pages:   pipeline.FlatPages(rows, pageSize),
		}, nil
	})
}

// StudentProgress returns the full history of one student in a batch.
func (s *PerformanceService) StudentProgress(ctx context.Context, filter models.PerformanceFilter) (*models.StudentProgress, bool, error) {
	if strings.TrimSpace(filter.StudentID) == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	return Remember(ctx, s.cache, s.cacheKey(filter, "progress"), s.opts.CacheTTL, func() (*models.StudentProgress, error) {
		data, err := s.load(ctx, filter, SourceRecords)
		if err != nil {
			return nil, err
		}
		progress := &models.StudentProgress{
			StudentID:   filter.StudentID,
			Tests:       len(pipeline.AggregateByTest(data.records)),
			Trend:       s.trend(data.records, data.target),
			Subjects:    s.subjectTrends(data.records, data.target),
			Summaries:   pipeline.SubjectSummaries(data.records),
			Improvement: pipeline.ImprovementRate(data.records, s.opts.FullMarks),
		}
		for _, rec := range data.records {
			if rec.StudentName != "" {
				progress.StudentName = rec.StudentName
				break
			}
		}
		return progress, nil
	})
}

// TeacherReport builds every view of a batch including the print pages. It is computed from
// the settled snapshot and never served from cache.
func (s *PerformanceService) TeacherReport(ctx context.Context, filter models.PerformanceFilter) (*models.TeacherReport, error) {
	filter.StudentID = ""
	data, err := s.load(ctx, filter, SourceAll)
	if err != nil {
		return nil, err
	}
	return s.buildReport(filter.BatchID, data), nil
}

// ReportFromSnapshot builds the teacher report from a snapshot whose readiness has fired.
func (s *PerformanceService) ReportFromSnapshot(snap *Snapshot, target string) (*models.TeacherReport, error) {
	if !snap.Ready().Fired() {
		return nil, appErrors.ErrNotReady
	}
	if err := snap.Ready().Err(); err != nil {
		return nil, err
	}
	records := s.resolver.NormalizeAll(snap.Records)
	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no score records found for batch")
	}
	return s.buildReport(snap.BatchID, &dataset{
		target:    normalizeTarget(target),
		testNum:   snap.TestNum,
		records:   records,
		responses: snap.Responses,
	}), nil
}

func (s *PerformanceService) buildReport(batchID string, data *dataset) *models.TeacherReport {
	// Biology fallback is not applied here; pages only list subjects the records carry.
	summaries := pipeline.SubjectSummaries(data.records)
	known := make([]string, 0, len(summaries))
	for _, summary := range summaries {
		known = append(known, string(summary.Subject))
	}

	students := make(map[string]struct{})
	for _, rec := range data.records {
		if rec.StudentID != "" {
			students[rec.StudentID] = struct{}{}
		}
	}

	questions := s.questionRows(data.responses)
	var pages []models.PrintPage
	s.timed("paginate", func() {
		pages = pipeline.AssemblePages(questions, known, s.opts.Layout)
	})

	return &models.TeacherReport{
		BatchID:     batchID,
		Target:      data.target,
		Students:    len(students),
		Trend:       s.trend(data.records, data.target),
		Subjects:    s.subjectTrends(data.records, data.target),
		Donuts:      s.donuts(data.records, data.target),
		Summaries:   summaries,
		Improvement: pipeline.ImprovementRate(data.records, s.opts.FullMarks),
		Questions:   questions,
		Pages:       pages,
		GeneratedAt: time.Now().UTC(),
	}
}
