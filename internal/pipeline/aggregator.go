package pipeline

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/sma-performance-api/internal/models"
)

const (
	// DefaultWindowSize is the number of trend points shown per subject chart.
	DefaultWindowSize = 5
	// DefaultFullMarks is the maximum attainable total score of a full test paper.
	DefaultFullMarks = 720.0
	// OverallTarget selects the most recent tests.
	OverallTarget = "0"
)

type accumulator struct {
	total float64
	count int
	max   float64
	min   float64
}

func (a *accumulator) add(v float64) {
	if a.count == 0 || v > a.max {
		a.max = v
	}
	if a.count == 0 || v < a.min {
		a.min = v
	}
	a.total += v
	a.count++
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func aggregate(records []models.NormalizedRecord, subject models.Subject, value func(models.NormalizedRecord) float64) []models.AggregateRow {
	groups := make(map[int]*accumulator)
	for _, rec := range records {
		acc, ok := groups[rec.TestNum]
		if !ok {
			acc = &accumulator{}
			groups[rec.TestNum] = acc
		}
		acc.add(value(rec))
	}
	rows := make([]models.AggregateRow, 0, len(groups))
	for testNum, acc := range groups {
		rows = append(rows, models.AggregateRow{
			TestNum: testNum,
			Subject: subject,
			Total:   acc.total,
			Count:   acc.count,
			Average: round2(acc.total / float64(acc.count)),
			Max:     acc.max,
			Min:     acc.min,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].TestNum < rows[j].TestNum })
	return rows
}

// AggregateByTest groups records by test number and averages their total scores.
func AggregateByTest(records []models.NormalizedRecord) []models.AggregateRow {
	return aggregate(records, "", func(r models.NormalizedRecord) float64 { return r.TotalScore })
}

// AggregateSubjectByTest groups records by test number and averages one subject's score.
// Records without the subject count as zero.
func AggregateSubjectByTest(records []models.NormalizedRecord, subject models.Subject) []models.AggregateRow {
	return aggregate(records, subject, func(r models.NormalizedRecord) float64 { return r.Subject(subject).Score })
}

// parseTarget reports the numeric target and whether it parsed as a non-negative integer.
func parseTarget(target string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(target))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// SelectWindow picks the visible trend points for a target test. Rows must be sorted by test.
// A positive target N keeps tests in [max(1, N-size+1), N]; "0" keeps the last size rows;
// anything else keeps every row.
func SelectWindow(rows []models.AggregateRow, target string, size int) []models.AggregateRow {
	if size <= 0 {
		size = DefaultWindowSize
	}
	n, ok := parseTarget(target)
	if !ok {
		return append([]models.AggregateRow(nil), rows...)
	}
	if n == 0 {
		start := len(rows) - size
		if start < 0 {
			start = 0
		}
		return append([]models.AggregateRow(nil), rows[start:]...)
	}
	lo := n - size + 1
	if lo < 1 {
		lo = 1
	}
	window := make([]models.AggregateRow, 0, size)
	for _, row := range rows {
		if row.TestNum >= lo && row.TestNum <= n {
			window = append(window, row)
		}
	}
	return window
}

// relevantRecords narrows records to the donut test set for target.
func relevantRecords(records []models.NormalizedRecord, target string) ([]models.NormalizedRecord, int) {
	n, ok := parseTarget(target)
	if !ok || len(records) == 0 {
		return records, 0
	}
	if n == 0 {
		latest := records[0].TestNum
		for _, rec := range records[1:] {
			if rec.TestNum > latest {
				latest = rec.TestNum
			}
		}
		n = latest
	}
	matched := make([]models.NormalizedRecord, 0, len(records))
	for _, rec := range records {
		if rec.TestNum == n {
			matched = append(matched, rec)
		}
	}
	if len(matched) == 0 {
		return records, 0
	}
	return matched, n
}

// Donut computes the mean correct, incorrect and skipped counts for subject over the
// records relevant to target. Derived counts are floored at zero.
func Donut(records []models.NormalizedRecord, subject models.Subject, target string) models.DonutAggregate {
	rel, testNum := relevantRecords(records, target)
	donut := models.DonutAggregate{Subject: subject, TestNum: testNum, Count: len(rel)}
	if len(rel) == 0 {
		return donut
	}
	var correct, attended, possible float64
	for _, rec := range rel {
		m := rec.Subject(subject)
		correct += m.Correct
		attended += m.Attended
		possible += m.Total
	}
	count := float64(len(rel))
	avgCorrect := correct / count
	avgAttended := attended / count
	avgPossible := possible / count

	donut.AvgCorrect = round2(avgCorrect)
	donut.AvgIncorrect = round2(math.Max(0, avgAttended-avgCorrect))
	donut.AvgSkipped = round2(math.Max(0, avgPossible-avgAttended))
	return donut
}

// YAxis derives chart ticks: a step of 50 above 50 (10 otherwise), a ceiling padded to the
// next step multiple plus a fifth of a step, and the average always present as a tick.
func YAxis(maxValue, average float64) models.AxisScale {
	if maxValue < 0 || math.IsNaN(maxValue) {
		maxValue = 0
	}
	step := 10.0
	if maxValue > 50 {
		step = 50
	}
	ceiling := math.Ceil(maxValue/step)*step + 0.2*step
	ticks := make([]float64, 0, int(ceiling/step)+2)
	for v := 0.0; v <= ceiling; v += step {
		ticks = append(ticks, v)
	}
	avg := round2(average)
	found := false
	for _, t := range ticks {
		if math.Abs(t-avg) < 1e-9 {
			found = true
			break
		}
	}
	if !found {
		ticks = append(ticks, avg)
		sort.Float64s(ticks)
	}
	return models.AxisScale{Step: step, Max: ceiling, Ticks: ticks}
}

// seriesStats averages the visible points and derives their axis.
func seriesStats(points []models.AggregateRow) (float64, models.AxisScale) {
	var sum, maxAvg float64
	for _, p := range points {
		sum += p.Average
		if p.Average > maxAvg {
			maxAvg = p.Average
		}
	}
	var average float64
	if len(points) > 0 {
		average = round2(sum / float64(len(points)))
	}
	return average, YAxis(maxAvg, average)
}

// OverallTrend builds the windowed total score series.
func OverallTrend(records []models.NormalizedRecord, target string, size int) models.TrendView {
	points := SelectWindow(AggregateByTest(records), target, size)
	average, axis := seriesStats(points)
	return models.TrendView{Points: points, Average: average, Axis: axis}
}

// SubjectTrends builds the windowed series for every subject present in records. Callers
// apply ApplyBiologyFallback beforehand when charts should mirror Biology.
func SubjectTrends(records []models.NormalizedRecord, target string, size int) []models.SubjectTrend {
	trends := make([]models.SubjectTrend, 0, len(models.Subjects))
	for _, subject := range models.Subjects {
		if !anyPresent(records, subject) {
			continue
		}
		points := SelectWindow(AggregateSubjectByTest(records, subject), target, size)
		average, axis := seriesStats(points)
		trends = append(trends, models.SubjectTrend{
			Subject: subject,
			Points:  points,
			Average: average,
			Axis:    axis,
		})
	}
	return trends
}

func anyPresent(records []models.NormalizedRecord, subject models.Subject) bool {
	for _, rec := range records {
		if rec.Subject(subject).Present {
			return true
		}
	}
	return false
}

// ImprovementRate compares the mean total score of the two most recent tests as a
// percentage of fullMarks. Delta is rounded to whole percentage points.
func ImprovementRate(records []models.NormalizedRecord, fullMarks float64) models.Improvement {
	if fullMarks <= 0 {
		fullMarks = DefaultFullMarks
	}
	tests := AggregateByTest(records)
	if len(tests) < 2 {
		return models.Improvement{}
	}
	latest := tests[len(tests)-1]
	previous := tests[len(tests)-2]
	latestPct := latest.Average / fullMarks * 100
	previousPct := previous.Average / fullMarks * 100
	return models.Improvement{
		Available:       true,
		LatestTest:      latest.TestNum,
		PreviousTest:    previous.TestNum,
		LatestPercent:   round2(latestPct),
		PreviousPercent: round2(previousPct),
		Delta:           math.Round(latestPct - previousPct),
	}
}

// SubjectSummaries reports per-subject averages over the records where the subject is present.
func SubjectSummaries(records []models.NormalizedRecord) []models.SubjectSummary {
	summaries := make([]models.SubjectSummary, 0, len(models.Subjects))
	for _, subject := range models.Subjects {
		var acc accumulator
		for _, rec := range records {
			m := rec.Subject(subject)
			if !m.Present {
				continue
			}
			acc.add(m.Score)
		}
		if acc.count == 0 {
			continue
		}
		summaries = append(summaries, models.SubjectSummary{
			Subject: subject,
			Count:   acc.count,
			Average: round2(acc.total / float64(acc.count)),
			Max:     acc.max,
			Min:     acc.min,
		})
	}
	return summaries
}

// FilterByStudent keeps the records belonging to studentID.
func FilterByStudent(records []models.NormalizedRecord, studentID string) []models.NormalizedRecord {
	out := make([]models.NormalizedRecord, 0)
	for _, rec := range records {
		if rec.StudentID == studentID {
			out = append(out, rec)
		}
	}
	return out
}
