// Package pipeline normalizes raw score records and derives the chart, table and print
// structures served by the performance endpoints. Every function is pure and safe for
// concurrent use.
package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/noah-isme/sma-performance-api/internal/models"
)

// Concept names one canonical per-subject quantity.
type Concept string

const (
	ConceptScore    Concept = "score"
	ConceptCorrect  Concept = "correct"
	ConceptAttended Concept = "attended"
	ConceptTotal    Concept = "total"
)

var concepts = []Concept{ConceptScore, ConceptCorrect, ConceptAttended, ConceptTotal}

// subjectPrefixes maps subjects to the field prefix used by upstream payloads.
var subjectPrefixes = map[models.Subject]string{
	models.SubjectPhysics:   "phy",
	models.SubjectChemistry: "chem",
	models.SubjectBiology:   "bio",
	models.SubjectBotany:    "bot",
	models.SubjectZoology:   "zoo",
}

// Prefix returns the payload field prefix for a subject.
func Prefix(s models.Subject) string {
	return subjectPrefixes[s]
}

// AliasTable is the ordered key lookup used by the resolver. Earlier aliases win.
type AliasTable struct {
	Subjects    map[models.Subject]map[Concept][]string
	TestNum     []string
	Total       []string
	StudentID   []string
	StudentName []string
}

// DefaultAliasTable returns the alias spellings observed across upstream sources.
func DefaultAliasTable() AliasTable {
	table := AliasTable{
		Subjects:    make(map[models.Subject]map[Concept][]string, len(subjectPrefixes)),
		TestNum:     []string{"test_num", "test_number", "testNum", "test_no"},
		Total:       []string{"total_score", "total_marks", "overall_score", "totalScore"},
		StudentID:   []string{"student_id", "studentId", "roll_no"},
		StudentName: []string{"student_name", "name", "studentName"},
	}
	for subject, p := range subjectPrefixes {
		table.Subjects[subject] = map[Concept][]string{
			ConceptScore: {
				p + "_score", p + "__score", p + "_marks", p + "_obtained", p + "_mark",
				p + "Marks", p + "_total_score", p + "_score_obtained", p,
			},
			ConceptCorrect:  {p + "_correct", p + "_correct_count", p + "Correct", p + "_right"},
			ConceptAttended: {p + "_attended", p + "_attempted", p + "_attempt", p + "Attempted"},
			ConceptTotal:    {p + "_total", p + "_total_questions", p + "_possible", p + "_max_marks", p + "Total"},
		}
	}
	return table
}

// Resolver normalizes raw records using an AliasTable.
type Resolver struct {
	aliases AliasTable
}

// NewResolver constructs a resolver over the provided aliases.
func NewResolver(aliases AliasTable) *Resolver {
	return &Resolver{aliases: aliases}
}

var defaultResolver = NewResolver(DefaultAliasTable())

// ResolveField returns the first value under keys that is neither nil nor a blank string.
func ResolveField(record models.ScoreRecord, keys []string) (interface{}, bool) {
	for _, key := range keys {
		value, ok := record[key]
		if !ok || value == nil {
			continue
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return value, true
	}
	return nil, false
}

// ToNumber coerces a loosely typed value to float64. Anything unparseable, NaN or infinite is 0.
func ToNumber(value interface{}) float64 {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		f = parsed
	case bool:
		if v {
			f = 1
		}
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func toText(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Normalize resolves canonical fields using the default alias table.
func Normalize(record models.ScoreRecord) models.NormalizedRecord {
	return defaultResolver.Normalize(record)
}

// NormalizeAll normalizes every record using the default alias table.
func NormalizeAll(records []models.ScoreRecord) []models.NormalizedRecord {
	return defaultResolver.NormalizeAll(records)
}

// Normalize resolves canonical fields of a single raw record.
func (r *Resolver) Normalize(record models.ScoreRecord) models.NormalizedRecord {
	out := models.NormalizedRecord{
		Metrics: make(map[models.Subject]models.SubjectMetrics, len(models.Subjects)),
	}
	if v, ok := ResolveField(record, r.aliases.StudentID); ok {
		out.StudentID = toText(v)
	}
	if v, ok := ResolveField(record, r.aliases.StudentName); ok {
		out.StudentName = toText(v)
	}
	if v, ok := ResolveField(record, r.aliases.TestNum); ok {
		out.TestNum = int(ToNumber(v))
	}

	var sum float64
	for _, subject := range models.Subjects {
		metrics := r.resolveSubject(record, subject)
		out.Metrics[subject] = metrics
		sum += metrics.Score
	}

	if v, ok := ResolveField(record, r.aliases.Total); ok {
		out.TotalScore = ToNumber(v)
		out.HasExplicitTotal = true
	} else {
		out.TotalScore = sum
	}
	return out
}

func (r *Resolver) resolveSubject(record models.ScoreRecord, subject models.Subject) models.SubjectMetrics {
	var metrics models.SubjectMetrics
	aliases := r.aliases.Subjects[subject]
	for _, concept := range concepts {
		v, ok := ResolveField(record, aliases[concept])
		if !ok {
			continue
		}
		metrics.Present = true
		n := ToNumber(v)
		switch concept {
		case ConceptScore:
			metrics.Score = n
		case ConceptCorrect:
			metrics.Correct = n
		case ConceptAttended:
			metrics.Attended = n
		case ConceptTotal:
			metrics.Total = n
		}
	}
	return metrics
}

// NormalizeAll normalizes a batch of raw records preserving order.
func (r *Resolver) NormalizeAll(records []models.ScoreRecord) []models.NormalizedRecord {
	out := make([]models.NormalizedRecord, 0, len(records))
	for _, record := range records {
		out = append(out, r.Normalize(record))
	}
	return out
}

// Canonical renders a normalized record back into a raw record using canonical key names.
func Canonical(n models.NormalizedRecord) models.ScoreRecord {
	record := models.ScoreRecord{"test_num": n.TestNum}
	if n.StudentID != "" {
		record["student_id"] = n.StudentID
	}
	if n.StudentName != "" {
		record["student_name"] = n.StudentName
	}
	if n.HasExplicitTotal {
		record["total_score"] = n.TotalScore
	}
	for _, subject := range models.Subjects {
		m := n.Subject(subject)
		if !m.Present {
			continue
		}
		p := Prefix(subject)
		record[p+"_score"] = m.Score
		record[p+"_correct"] = m.Correct
		record[p+"_attended"] = m.Attended
		record[p+"_total"] = m.Total
	}
	return record
}

// ApplyBiologyFallback substitutes Biology metrics for Botany and Zoology when no record
// carries any Botany or Zoology field but Biology is present somewhere. Totals are left as is.
// Use it for chart series only.
func ApplyBiologyFallback(records []models.NormalizedRecord) []models.NormalizedRecord {
	hasBiology := false
	for _, rec := range records {
		if rec.Subject(models.SubjectBotany).Present || rec.Subject(models.SubjectZoology).Present {
			return records
		}
		if rec.Subject(models.SubjectBiology).Present {
			hasBiology = true
		}
	}
	if !hasBiology {
		return records
	}
	out := make([]models.NormalizedRecord, len(records))
	for i, rec := range records {
		bio := rec.Subject(models.SubjectBiology)
		out[i] = rec.WithSubject(models.SubjectBotany, bio).WithSubject(models.SubjectZoology, bio)
	}
	return out
}
