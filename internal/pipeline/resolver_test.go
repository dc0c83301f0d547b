package pipeline

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-performance-api/internal/models"
)

func TestResolveFieldSkipsNilAndBlank(t *testing.T) {
	record := models.ScoreRecord{"phy_score": nil, "phy__score": "  ", "phy_marks": "42"}
	value, ok := ResolveField(record, []string{"phy_score", "phy__score", "phy_marks", "phy"})
	require.True(t, ok)
	assert.Equal(t, "42", value)

	_, ok = ResolveField(record, []string{"chem_score"})
	assert.False(t, ok)
}

func TestToNumber(t *testing.T) {
	cases := map[string]struct {
		in   interface{}
		want float64
	}{
		"float":       {in: 12.5, want: 12.5},
		"int":         {in: 7, want: 7},
		"json number": {in: json.Number("88"), want: 88},
		"string":      {in: " 19.5 ", want: 19.5},
		"garbage":     {in: "abc", want: 0},
		"nan":         {in: math.NaN(), want: 0},
		"nan string":  {in: "NaN", want: 0},
		"nil":         {in: nil, want: 0},
		"bool":        {in: true, want: 1},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ToNumber(tc.in))
		})
	}
}

func TestNormalizeResolvesAliasesInOrder(t *testing.T) {
	record := models.ScoreRecord{
		"studentId":   "S-1",
		"test_number": "3",
		"phy_marks":   120.0,
		"phy":         999.0,
		"chemMarks":   "80",
		"bio_obtained": json.Number("150"),
		"bio_correct": 40,
		"bio_attempted": 45,
		"bio_total_questions": 50,
	}
	n := Normalize(record)

	assert.Equal(t, "S-1", n.StudentID)
	assert.Equal(t, 3, n.TestNum)
	assert.Equal(t, 120.0, n.Subject(models.SubjectPhysics).Score)
	assert.Equal(t, 80.0, n.Subject(models.SubjectChemistry).Score)
	bio := n.Subject(models.SubjectBiology)
	assert.Equal(t, models.SubjectMetrics{Score: 150, Correct: 40, Attended: 45, Total: 50, Present: true}, bio)
	assert.False(t, n.Subject(models.SubjectBotany).Present)
	assert.False(t, n.HasExplicitTotal)
	assert.Equal(t, 350.0, n.TotalScore)
}

func TestNormalizeSumInvariant(t *testing.T) {
	records := []models.ScoreRecord{
		{"test_num": 1},
		{"test_num": 2, "phy_score": "10", "zoo_mark": 5},
		{"test_num": 3, "chem_score_obtained": 30.5, "bot__score": "x", "bio": 12},
	}
	for _, rec := range NormalizeAll(records) {
		var sum float64
		for _, s := range models.Subjects {
			sum += rec.Subject(s).Score
		}
		assert.Equal(t, sum, rec.TotalScore)
	}
}

func TestNormalizePrefersExplicitTotal(t *testing.T) {
	n := Normalize(models.ScoreRecord{"total_marks": "500", "phy_score": 100})
	assert.True(t, n.HasExplicitTotal)
	assert.Equal(t, 500.0, n.TotalScore)
}

func TestNormalizeMissingTestNumDefaultsToZero(t *testing.T) {
	n := Normalize(models.ScoreRecord{"phy_score": 10})
	assert.Equal(t, 0, n.TestNum)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raw := models.ScoreRecord{
		"student_id":   "S-9",
		"name":         "Asha",
		"testNum":      4,
		"phy_obtained": "140",
		"phy_right":    35,
		"chem__score":  99,
		"zooMarks":     "77",
		"zoo_possible": 90,
	}
	first := Normalize(raw)
	second := Normalize(Canonical(first))
	assert.Equal(t, first, second)
}

func TestApplyBiologyFallback(t *testing.T) {
	records := NormalizeAll([]models.ScoreRecord{
		{"test_num": 1, "bio_score": 300, "bio_correct": 70},
		{"test_num": 2, "phy_score": 100},
	})
	out := ApplyBiologyFallback(records)
	require.Len(t, out, 2)
	assert.Equal(t, 300.0, out[0].Subject(models.SubjectBotany).Score)
	assert.Equal(t, 70.0, out[0].Subject(models.SubjectZoology).Correct)
	assert.Equal(t, records[0].TotalScore, out[0].TotalScore)
	assert.False(t, records[0].Subject(models.SubjectBotany).Present, "input must not be mutated")

	withBotany := NormalizeAll([]models.ScoreRecord{
		{"test_num": 1, "bio_score": 300},
		{"test_num": 1, "bot_score": 20},
	})
	assert.Equal(t, withBotany, ApplyBiologyFallback(withBotany))
}

func TestDefaultAliasTableScoreOrder(t *testing.T) {
	aliases := DefaultAliasTable().Subjects[models.SubjectPhysics][ConceptScore]
	assert.Equal(t, "phy_score, phy__score, phy_marks, phy_obtained, phy_mark, phyMarks, phy_total_score, phy_score_obtained, phy",
		strings.Join(aliases, ", "))
}
