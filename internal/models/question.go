package models

// UnknownSubject labels question rows without a subject.
const UnknownSubject = "Unknown"

// Outcome is the normalized result of one student's response to a question.
type Outcome string

const (
	OutcomeCorrect     Outcome = "correct"
	OutcomeIncorrect   Outcome = "incorrect"
	OutcomeUnattempted Outcome = "unattempted"
)

// QuestionPerformance is the raw per-question payload: responses keyed by student id.
type QuestionPerformance struct {
	QuestionNumber int               `json:"question_number"`
	Subject        string            `json:"subject"`
	Responses      map[string]string `json:"responses"`
}

// QuestionResponse is a persisted single response row.
type QuestionResponse struct {
	BatchID        string `db:"batch_id" json:"batch_id"`
	TestNum        int    `db:"test_num" json:"test_num"`
	QuestionNumber int    `db:"question_number" json:"question_number"`
	Subject        string `db:"subject" json:"subject"`
	StudentID      string `db:"student_id" json:"student_id"`
	Outcome        string `db:"outcome" json:"outcome"`
}

// SeverityLevel buckets a severity percentage.
type SeverityLevel string

const (
	SeverityNone   SeverityLevel = "none"
	SeverityLow    SeverityLevel = "low"
	SeverityMedium SeverityLevel = "medium"
	SeverityHigh   SeverityLevel = "high"
)

// SeverityThresholds are inclusive upper bounds for the none, low and medium levels.
type SeverityThresholds struct {
	NoneMax   float64 `json:"none_max"`
	LowMax    float64 `json:"low_max"`
	MediumMax float64 `json:"medium_max"`
}

// DefaultSeverityThresholds mirrors the dashboard colour bands.
var DefaultSeverityThresholds = SeverityThresholds{NoneMax: 0, LowMax: 30, MediumMax: 70}

// QuestionStatRow aggregates the outcomes of one question across students.
type QuestionStatRow struct {
	QuestionNumber     int           `json:"question_number"`
	Subject            string        `json:"subject"`
	Correct            int           `json:"correct"`
	Incorrect          int           `json:"incorrect"`
	Unattempted        int           `json:"unattempted"`
	TotalStudents      int           `json:"total_students"`
	PercentCorrect     float64       `json:"percent_correct"`
	PercentUnattempted float64       `json:"percent_unattempted"`
	Severity           float64       `json:"severity"`
	SeverityLevel      SeverityLevel `json:"severity_level"`
}

// PageKind distinguishes print page layouts.
type PageKind string

const (
	PageOverview  PageKind = "overview"
	PageDetail    PageKind = "detail"
	PageQuestions PageKind = "questions"
)

// PrintPage is one page of a print-oriented question report.
type PrintPage struct {
	Kind          PageKind            `json:"kind"`
	Subject       string              `json:"subject,omitempty"`
	PageNumber    int                 `json:"page_number"`
	DataAvailable bool                `json:"data_available"`
	TopSeverity   []QuestionStatRow   `json:"top_severity,omitempty"`
	Columns       [][]QuestionStatRow `json:"columns,omitempty"`
	Rows          []QuestionStatRow   `json:"rows,omitempty"`
}

// PageLayout controls pagination of question rows.
type PageLayout struct {
	PageSize      int      `json:"page_size"`
	RowsPerColumn int      `json:"rows_per_column"`
	PageCapacity  int      `json:"page_capacity"`
	TopN          int      `json:"top_n"`
	SubjectOrder  []string `json:"subject_order"`
}

// DefaultSubjectOrder is the canonical print order for subject sections.
var DefaultSubjectOrder = []string{"Physics", "Chemistry", "Botany", "Zoology", "Biology"}

// DefaultPageLayout matches the A4 print templates.
var DefaultPageLayout = PageLayout{
	PageSize:      18,
	RowsPerColumn: 23,
	PageCapacity:  46,
	TopN:          6,
	SubjectOrder:  DefaultSubjectOrder,
}
