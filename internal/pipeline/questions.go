package pipeline

import (
	"math"
	"sort"
	"strings"

	"github.com/noah-isme/sma-performance-api/internal/models"
)

// reconcileTolerance is the largest rounding drift corrected when percent_correct and
// severity should add up to 100.
const reconcileTolerance = 0.3

// NormalizeOutcome maps the response spellings used by answer-sheet exports to an Outcome.
// Blank and unknown values count as unattempted.
func NormalizeOutcome(raw string) models.Outcome {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "correct", "right", "c", "true", "1":
		return models.OutcomeCorrect
	case "incorrect", "wrong", "w", "i", "false", "0":
		return models.OutcomeIncorrect
	default:
		return models.OutcomeUnattempted
	}
}

// ClassifySeverity buckets a severity percentage using inclusive upper bounds.
func ClassifySeverity(severity float64, th models.SeverityThresholds) models.SeverityLevel {
	switch {
	case severity <= th.NoneMax:
		return models.SeverityNone
	case severity <= th.LowMax:
		return models.SeverityLow
	case severity <= th.MediumMax:
		return models.SeverityMedium
	default:
		return models.SeverityHigh
	}
}

type questionKey struct {
	number  int
	subject string
}

// BuildQuestionStats counts outcomes per question and derives percentages and severity.
// Entries sharing a question number and subject are merged. Rows are sorted by question number.
func BuildQuestionStats(payload []models.QuestionPerformance, th models.SeverityThresholds) []models.QuestionStatRow {
	merged := make(map[questionKey]map[string]string)
	order := make([]questionKey, 0, len(payload))
	for _, q := range payload {
		subject := strings.TrimSpace(q.Subject)
		if subject == "" {
			subject = models.UnknownSubject
		}
		key := questionKey{number: q.QuestionNumber, subject: subject}
		responses, ok := merged[key]
		if !ok {
			responses = make(map[string]string, len(q.Responses))
			merged[key] = responses
			order = append(order, key)
		}
		for student, outcome := range q.Responses {
			responses[student] = outcome
		}
	}

	rows := make([]models.QuestionStatRow, 0, len(order))
	for _, key := range order {
		rows = append(rows, buildRow(key, merged[key], th))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].QuestionNumber != rows[j].QuestionNumber {
			return rows[i].QuestionNumber < rows[j].QuestionNumber
		}
		return rows[i].Subject < rows[j].Subject
	})
	return rows
}

func buildRow(key questionKey, responses map[string]string, th models.SeverityThresholds) models.QuestionStatRow {
	row := models.QuestionStatRow{QuestionNumber: key.number, Subject: key.subject}
	for _, raw := range responses {
		switch NormalizeOutcome(raw) {
		case models.OutcomeCorrect:
			row.Correct++
		case models.OutcomeIncorrect:
			row.Incorrect++
		default:
			row.Unattempted++
		}
	}
	row.TotalStudents = len(responses)
	if row.TotalStudents > 0 {
		total := float64(row.TotalStudents)
		row.PercentCorrect = round1(float64(row.Correct) / total * 100)
		row.PercentUnattempted = round1(float64(row.Unattempted) / total * 100)
		row.Severity = round1(float64(row.Incorrect+row.Unattempted) / total * 100)
		if drift := row.PercentCorrect + row.Severity - 100; drift != 0 && math.Abs(drift) <= reconcileTolerance+1e-9 {
			row.Severity = round1(100 - row.PercentCorrect)
		}
	}
	row.SeverityLevel = ClassifySeverity(row.Severity, th)
	return row
}

// GroupResponses folds persisted response rows into per-question payloads.
func GroupResponses(rows []models.QuestionResponse) []models.QuestionPerformance {
	index := make(map[questionKey]int)
	out := make([]models.QuestionPerformance, 0)
	for _, r := range rows {
		key := questionKey{number: r.QuestionNumber, subject: r.Subject}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, models.QuestionPerformance{
				QuestionNumber: r.QuestionNumber,
				Subject:        r.Subject,
				Responses:      make(map[string]string),
			})
		}
		out[i].Responses[r.StudentID] = r.Outcome
	}
	return out
}
