package pipeline

import (
	"sort"

	"github.com/noah-isme/sma-performance-api/internal/models"
)

// Paginate chunks rows into contiguous pages of size, preserving order. A non-positive size
// yields a single page. Empty input yields no pages.
func Paginate[T any](rows []T, size int) [][]T {
	if len(rows) == 0 {
		return [][]T{}
	}
	if size <= 0 {
		size = len(rows)
	}
	pages := make([][]T, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		pages = append(pages, rows[start:end:end])
	}
	return pages
}

// SplitColumns lays a page out into columns of rowsPerColumn rows.
func SplitColumns[T any](page []T, rowsPerColumn int) [][]T {
	return Paginate(page, rowsPerColumn)
}

// BucketBySubject partitions rows by subject; blank subjects land in "Unknown".
func BucketBySubject(rows []models.QuestionStatRow) map[string][]models.QuestionStatRow {
	buckets := make(map[string][]models.QuestionStatRow)
	for _, row := range rows {
		subject := row.Subject
		if subject == "" {
			subject = models.UnknownSubject
		}
		buckets[subject] = append(buckets[subject], row)
	}
	return buckets
}

func bySeverity(rows []models.QuestionStatRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Severity != rows[j].Severity {
			return rows[i].Severity > rows[j].Severity
		}
		return rows[i].QuestionNumber < rows[j].QuestionNumber
	})
}

// TopSeverity returns the n rows with the highest severity, ties broken by ascending
// question number, in display order.
func TopSeverity(rows []models.QuestionStatRow, n int) []models.QuestionStatRow {
	if n <= 0 {
		n = models.DefaultPageLayout.TopN
	}
	ranked := append([]models.QuestionStatRow(nil), rows...)
	bySeverity(ranked)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	selected := append([]models.QuestionStatRow(nil), ranked...)
	bySeverity(selected)
	return selected
}

// OrderSubjects sorts names by the canonical order, placing unrecognised names after the
// known ones alphabetically.
func OrderSubjects(names []string, order []string) []string {
	if len(order) == 0 {
		order = models.DefaultSubjectOrder
	}
	rank := make(map[string]int, len(order))
	for i, name := range order {
		rank[name] = i
	}
	out := append([]string(nil), names...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iKnown := rank[out[i]]
		rj, jKnown := rank[out[j]]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown:
			return true
		case jKnown:
			return false
		default:
			return out[i] < out[j]
		}
	})
	return out
}

// WithDefaults fills unset layout fields from models.DefaultPageLayout.
func WithDefaults(layout models.PageLayout) models.PageLayout {
	def := models.DefaultPageLayout
	if layout.PageSize <= 0 {
		layout.PageSize = def.PageSize
	}
	if layout.RowsPerColumn <= 0 {
		layout.RowsPerColumn = def.RowsPerColumn
	}
	if layout.PageCapacity <= 0 {
		layout.PageCapacity = def.PageCapacity
	}
	if layout.TopN <= 0 {
		layout.TopN = def.TopN
	}
	if len(layout.SubjectOrder) == 0 {
		layout.SubjectOrder = def.SubjectOrder
	}
	return layout
}

// AssemblePages interleaves one overview page per subject with that subject's two-column
// detail pages. Subjects listed in known but without rows still get an overview page marked
// as having no data.
func AssemblePages(rows []models.QuestionStatRow, known []string, layout models.PageLayout) []models.PrintPage {
	layout = WithDefaults(layout)
	buckets := BucketBySubject(rows)

	names := make([]string, 0, len(buckets)+len(known))
	seen := make(map[string]struct{}, len(buckets)+len(known))
	for subject := range buckets {
		seen[subject] = struct{}{}
		names = append(names, subject)
	}
	for _, subject := range known {
		if _, ok := seen[subject]; ok || subject == "" {
			continue
		}
		seen[subject] = struct{}{}
		names = append(names, subject)
	}
	sort.Strings(names)
	names = OrderSubjects(names, layout.SubjectOrder)

	pages := make([]models.PrintPage, 0, len(names)*2)
	pageNumber := 0
	for _, subject := range names {
		bucket := buckets[subject]
		pageNumber++
		pages = append(pages, models.PrintPage{
			Kind:          models.PageOverview,
			Subject:       subject,
			PageNumber:    pageNumber,
			DataAvailable: len(bucket) > 0,
			TopSeverity:   TopSeverity(bucket, layout.TopN),
		})
		for _, chunk := range Paginate(bucket, layout.PageCapacity) {
			pageNumber++
			pages = append(pages, models.PrintPage{
				Kind:          models.PageDetail,
				Subject:       subject,
				PageNumber:    pageNumber,
				DataAvailable: true,
				Columns:       SplitColumns(chunk, layout.RowsPerColumn),
			})
		}
	}
	return pages
}

// FlatPages paginates rows for views that are not split by subject.
func FlatPages(rows []models.QuestionStatRow, pageSize int) []models.PrintPage {
	chunks := Paginate(rows, pageSize)
	pages := make([]models.PrintPage, 0, len(chunks))
	for i, chunk := range chunks {
		pages = append(pages, models.PrintPage{
			Kind:          models.PageQuestions,
			PageNumber:    i + 1,
			DataAvailable: true,
			Rows:          chunk,
		})
	}
	return pages
}
