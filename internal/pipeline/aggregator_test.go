package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-performance-api/internal/models"
)

func rowsForTests(nums ...int) []models.AggregateRow {
	rows := make([]models.AggregateRow, 0, len(nums))
	for _, n := range nums {
		rows = append(rows, models.AggregateRow{TestNum: n})
	}
	return rows
}

func testNums(rows []models.AggregateRow) []int {
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.TestNum)
	}
	return out
}

func TestAggregateByTest(t *testing.T) {
	records := NormalizeAll([]models.ScoreRecord{
		{"test_num": 2, "total_score": 300},
		{"test_num": 1, "total_score": 100},
		{"test_num": 2, "total_score": 401},
		{"test_num": 1, "total_score": 200},
		{"test_num": 2, "total_score": 350},
	})
	rows := AggregateByTest(records)
	require.Len(t, rows, 2)
	assert.Equal(t, models.AggregateRow{TestNum: 1, Total: 300, Count: 2, Average: 150, Max: 200, Min: 100}, rows[0])
	assert.Equal(t, 2, rows[1].TestNum)
	assert.Equal(t, 350.33, rows[1].Average)
	assert.Equal(t, 401.0, rows[1].Max)
	assert.Equal(t, 300.0, rows[1].Min)
}

func TestAggregateByTestEmpty(t *testing.T) {
	assert.Empty(t, AggregateByTest(nil))
	assert.NotNil(t, AggregateByTest([]models.NormalizedRecord{}))
}

func TestSelectWindow(t *testing.T) {
	rows := rowsForTests(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)

	assert.Equal(t, []int{6, 7, 8, 9, 10}, testNums(SelectWindow(rows, "10", 5)))
	assert.Equal(t, []int{1, 2, 3, 4}, testNums(SelectWindow(rows, "4", 5)))
	assert.Equal(t, []int{6, 7, 8, 9, 10}, testNums(SelectWindow(rows, OverallTarget, 5)))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, testNums(SelectWindow(rows, "latest", 5)))
	assert.Equal(t, []int{3, 4, 5, 6, 7}, testNums(SelectWindow(rows, "7", 0)))
}

func TestSelectWindowWithGaps(t *testing.T) {
	rows := rowsForTests(1, 3, 8, 9)
	assert.Equal(t, []int{8, 9}, testNums(SelectWindow(rows, "9", 5)))
	assert.Equal(t, []int{1, 3, 8, 9}, testNums(SelectWindow(rows, "0", 5)))
}

func TestDonutClampsNegatives(t *testing.T) {
	records := NormalizeAll([]models.ScoreRecord{
		{"test_num": 1, "phy_correct": 40, "phy_attended": 30, "phy_total": 20},
		{"test_num": 2, "phy_correct": 20, "phy_attended": 30, "phy_total": 45},
		{"test_num": 2, "phy_correct": 10, "phy_attended": 20, "phy_total": 45},
	})

	overall := Donut(records, models.SubjectPhysics, OverallTarget)
	assert.Equal(t, 2, overall.TestNum)
	assert.Equal(t, 2, overall.Count)
	assert.Equal(t, 15.0, overall.AvgCorrect)
	assert.Equal(t, 10.0, overall.AvgIncorrect)
	assert.Equal(t, 20.0, overall.AvgSkipped)

	skewed := Donut(records, models.SubjectPhysics, "1")
	assert.Equal(t, 0.0, skewed.AvgIncorrect)
	assert.Equal(t, 0.0, skewed.AvgSkipped)
	assert.GreaterOrEqual(t, skewed.AvgCorrect, 0.0)
}

func TestDonutFallsBackToFullSet(t *testing.T) {
	records := NormalizeAll([]models.ScoreRecord{
		{"test_num": 1, "chem_correct": 10, "chem_attended": 10, "chem_total": 10},
		{"test_num": 2, "chem_correct": 20, "chem_attended": 20, "chem_total": 20},
	})
	donut := Donut(records, models.SubjectChemistry, "7")
	assert.Equal(t, 2, donut.Count)
	assert.Equal(t, 0, donut.TestNum)
	assert.Equal(t, 15.0, donut.AvgCorrect)

	empty := Donut(nil, models.SubjectChemistry, OverallTarget)
	assert.Equal(t, 0, empty.Count)
}

func TestYAxis(t *testing.T) {
	small := YAxis(42, 25)
	assert.Equal(t, 10.0, small.Step)
	assert.Equal(t, 52.0, small.Max)
	assert.Equal(t, []float64{0, 10, 20, 25, 30, 40, 50}, small.Ticks)

	large := YAxis(180, 100)
	assert.Equal(t, 50.0, large.Step)
	assert.Equal(t, 210.0, large.Max)
	assert.Equal(t, []float64{0, 50, 100, 150, 200}, large.Ticks)
}

func TestImprovementRate(t *testing.T) {
	records := NormalizeAll([]models.ScoreRecord{
		{"test_num": 1, "total_score": 540},
		{"test_num": 2, "total_score": 360},
		{"test_num": 3, "total_score": 432},
		{"test_num": 3, "total_score": 468},
	})
	imp := ImprovementRate(records, 0)
	require.True(t, imp.Available)
	assert.Equal(t, 3, imp.LatestTest)
	assert.Equal(t, 2, imp.PreviousTest)
	assert.Equal(t, 62.5, imp.LatestPercent)
	assert.Equal(t, 50.0, imp.PreviousPercent)
	assert.Equal(t, 13.0, imp.Delta)

	decline := ImprovementRate(records[:2], DefaultFullMarks)
	assert.Equal(t, -25.0, decline.Delta)

	assert.False(t, ImprovementRate(records[:1], DefaultFullMarks).Available)
}

func TestSubjectTrendsSkipsAbsentSubjects(t *testing.T) {
	records := NormalizeAll([]models.ScoreRecord{
		{"test_num": 1, "phy_score": 40},
		{"test_num": 2, "phy_score": 60},
		{"test_num": 2, "phy_score": 80},
	})
	trends := SubjectTrends(records, OverallTarget, 5)
	require.Len(t, trends, 1)
	assert.Equal(t, models.SubjectPhysics, trends[0].Subject)
	assert.Equal(t, []int{1, 2}, testNums(trends[0].Points))
	assert.Equal(t, 55.0, trends[0].Average)
	assert.Contains(t, trends[0].Axis.Ticks, 55.0)
}

func TestSubjectSummaries(t *testing.T) {
	records := NormalizeAll([]models.ScoreRecord{
		{"test_num": 1, "phy_score": 40},
		{"test_num": 1, "phy_score": 60, "chem_score": 10},
		{"test_num": 1},
	})
	summaries := SubjectSummaries(records)
	require.Len(t, summaries, 2)
	assert.Equal(t, models.SubjectSummary{Subject: models.SubjectPhysics, Count: 2, Average: 50, Max: 60, Min: 40}, summaries[0])
	assert.Equal(t, models.SubjectChemistry, summaries[1].Subject)
}

func TestFilterByStudent(t *testing.T) {
	records := NormalizeAll([]models.ScoreRecord{
		{"student_id": "a", "test_num": 1},
		{"student_id": "b", "test_num": 1},
		{"student_id": "a", "test_num": 2},
	})
	assert.Len(t, FilterByStudent(records, "a"), 2)
	assert.Empty(t, FilterByStudent(records, "z"))
}

func TestOverallTrendWindowAndAverage(t *testing.T) {
	raw := make([]models.ScoreRecord, 0, 7)
	for i := 1; i <= 7; i++ {
		raw = append(raw, models.ScoreRecord{"test_num": i, "total_score": float64(i * 100)})
	}
	view := OverallTrend(NormalizeAll(raw), "6", 5)

	assert.Equal(t, []int{2, 3, 4, 5, 6}, testNums(view.Points))
	assert.Equal(t, 400.0, view.Average)
	assert.Equal(t, 50.0, view.Axis.Step)
	assert.Contains(t, view.Axis.Ticks, 400.0)
}

func TestOverallTrendEmpty(t *testing.T) {
	view := OverallTrend(nil, OverallTarget, 5)
	assert.Empty(t, view.Points)
	assert.Zero(t, view.Average)
}
