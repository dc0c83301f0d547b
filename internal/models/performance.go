package models

import (
	"strings"
	"time"
)

// Subject identifies one of the scored subjects of a test paper.
type Subject string

const (
	SubjectPhysics   Subject = "Physics"
	SubjectChemistry Subject = "Chemistry"
	SubjectBiology   Subject = "Biology"
	SubjectBotany    Subject = "Botany"
	SubjectZoology   Subject = "Zoology"
)

// Subjects lists every scored subject in field-resolution order.
var Subjects = []Subject{SubjectPhysics, SubjectChemistry, SubjectBiology, SubjectBotany, SubjectZoology}

// ParseSubject matches a subject by display name or field prefix, case-insensitively.
func ParseSubject(raw string) (Subject, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "physics", "phy":
		return SubjectPhysics, true
	case "chemistry", "chem":
		return SubjectChemistry, true
	case "biology", "bio":
		return SubjectBiology, true
	case "botany", "bot":
		return SubjectBotany, true
	case "zoology", "zoo":
		return SubjectZoology, true
	default:
		return "", false
	}
}

// ScoreRecord is a raw score row as delivered by upstream sources. Key names vary between sources.
type ScoreRecord map[string]interface{}

// SubjectMetrics captures the canonical per-subject counters of a normalized record.
// Present reports whether any alias for the subject resolved; a zero score with Present=false
// means the subject was absent from the source row.
type SubjectMetrics struct {
	Score    float64 `json:"score"`
	Correct  float64 `json:"correct"`
	Attended float64 `json:"attended"`
	Total    float64 `json:"total"`
	Present  bool    `json:"present"`
}

// NormalizedRecord is the canonical, immutable form of a ScoreRecord.
type NormalizedRecord struct {
	StudentID        string                     `json:"student_id"`
	StudentName      string                     `json:"student_name,omitempty"`
	TestNum          int                        `json:"test_num"`
	TotalScore       float64                    `json:"total_score"`
	HasExplicitTotal bool                       `json:"has_explicit_total"`
	Metrics          map[Subject]SubjectMetrics `json:"metrics"`
}

// Subject returns the metrics for s, zero-valued when absent.
func (r NormalizedRecord) Subject(s Subject) SubjectMetrics {
	if r.Metrics == nil {
		return SubjectMetrics{}
	}
	return r.Metrics[s]
}

// WithSubject returns a copy of the record with s replaced by m.
func (r NormalizedRecord) WithSubject(s Subject, m SubjectMetrics) NormalizedRecord {
	metrics := make(map[Subject]SubjectMetrics, len(r.Metrics)+1)
	for k, v := range r.Metrics {
		metrics[k] = v
	}
	metrics[s] = m
	r.Metrics = metrics
	return r
}

// AggregateRow summarises the records sharing a test number (and optionally a subject).
type AggregateRow struct {
	TestNum int     `json:"test_num"`
	Subject Subject `json:"subject,omitempty"`
	Total   float64 `json:"total"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Max     float64 `json:"max"`
	Min     float64 `json:"min"`
}

// DonutAggregate holds the mean correct/incorrect/skipped split for one subject.
type DonutAggregate struct {
	Subject      Subject `json:"subject"`
	TestNum      int     `json:"test_num"`
	Count        int     `json:"count"`
	AvgCorrect   float64 `json:"avg_correct"`
	AvgIncorrect float64 `json:"avg_incorrect"`
	AvgSkipped   float64 `json:"avg_skipped"`
}

// AxisScale describes chart Y-axis ticks.
type AxisScale struct {
	Step  float64   `json:"step"`
	Max   float64   `json:"max"`
	Ticks []float64 `json:"ticks"`
}

// SubjectTrend is a windowed subject series plus its axis scale.
type SubjectTrend struct {
	Subject Subject        `json:"subject"`
	Points  []AggregateRow `json:"points"`
	Average float64        `json:"average"`
	Axis    AxisScale      `json:"axis"`
}

// Improvement compares the two most recent tests.
type Improvement struct {
	Available       bool    `json:"available"`
	LatestTest      int     `json:"latest_test,omitempty"`
	PreviousTest    int     `json:"previous_test,omitempty"`
	LatestPercent   float64 `json:"latest_percent"`
	PreviousPercent float64 `json:"previous_percent"`
	Delta           float64 `json:"delta"`
}

// SubjectSummary reports score extrema for one subject across present records.
type SubjectSummary struct {
	Subject Subject `json:"subject"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Max     float64 `json:"max"`
	Min     float64 `json:"min"`
}

// PerformanceFilter scopes performance queries.
type PerformanceFilter struct {
	BatchID   string `form:"batch_id" json:"batchId" validate:"required,max=64"`
	StudentID string `form:"student_id" json:"studentId,omitempty" validate:"max=64"`
	// Target is the test number selecting the visible window; "0" means the latest tests.
	Target   string `form:"test_num" json:"target,omitempty"`
	Page     int    `form:"page" json:"-" validate:"min=0"`
	PageSize int    `form:"page_size" json:"-" validate:"min=0,max=200"`
}

// TrendView is the windowed overall score series.
type TrendView struct {
	Points  []AggregateRow `json:"points"`
	Average float64        `json:"average"`
	Axis    AxisScale      `json:"axis"`
}

// QuestionStatsView lists per-question statistics of one test.
type QuestionStatsView struct {
	TestNum int               `json:"test_num"`
	Rows    []QuestionStatRow `json:"rows"`
	Pages   []PrintPage       `json:"pages"`
}

// StudentProgress aggregates one student's results across tests.
type StudentProgress struct {
	StudentID   string           `json:"student_id"`
	StudentName string           `json:"student_name,omitempty"`
	Tests       int              `json:"tests"`
	Trend       TrendView        `json:"trend"`
	Subjects    []SubjectTrend   `json:"subjects"`
	Summaries   []SubjectSummary `json:"summaries"`
	Improvement Improvement      `json:"improvement"`
}

// TeacherReport bundles every view of a batch for the printable report.
type TeacherReport struct {
	BatchID     string            `json:"batch_id"`
	Target      string            `json:"target"`
	Students    int               `json:"students"`
	Trend       TrendView         `json:"trend"`
	Subjects    []SubjectTrend    `json:"subjects"`
	Donuts      []DonutAggregate  `json:"donuts"`
	Summaries   []SubjectSummary  `json:"summaries"`
	Improvement Improvement       `json:"improvement"`
	Questions   []QuestionStatRow `json:"questions"`
	Pages       []PrintPage       `json:"pages"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// StoredScoreRecord is a persisted raw score row.
type StoredScoreRecord struct {
	ID        string    `db:"id" json:"id"`
	BatchID   string    `db:"batch_id" json:"batch_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	TestNum   int       `db:"test_num" json:"test_num"`
	Payload   []byte    `db:"payload" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
