package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-performance-api/internal/models"
)

func sampleDataset() Dataset {
	data := NewDataset("Test", "Average")
	data.AddRow("1", "390.00")
	data.AddRow("2", "440.00")
	return data
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "Test,Average\n1,390.00\n2,440.00\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestDatasetAddRowPadsMissingCells(t *testing.T) {
	data := NewDataset("Question", "Subject", "Level")
	data.AddRow("1")

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "Question,Subject,Level\n1,,\n", string(out))
}

func TestCSVExporterRejectsRaggedRows(t *testing.T) {
	data := Dataset{Headers: []string{"Test"}, Rows: [][]string{{"1", "extra"}}}

	_, err := NewCSVExporter().Render(data)
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Trend")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRenderDocument(t *testing.T) {
	rows := []models.QuestionStatRow{
		{QuestionNumber: 1, Subject: "Physics", PercentCorrect: 50, Severity: 50, SeverityLevel: models.SeverityMedium},
		{QuestionNumber: 2, Subject: "Physics", PercentCorrect: 90, Severity: 10, SeverityLevel: models.SeverityLow},
	}
	doc := Document{
		Title:   "Teacher performance",
		Summary: sampleDataset(),
		Pages: []models.PrintPage{
			{Kind: models.PageOverview, Subject: "Physics", PageNumber: 1, DataAvailable: true, TopSeverity: rows},
			{Kind: models.PageDetail, Subject: "Physics", PageNumber: 2, DataAvailable: true, Columns: [][]models.QuestionStatRow{rows[:1], rows[1:]}},
			{Kind: models.PageOverview, Subject: "Biology", PageNumber: 3},
			{Kind: models.PageQuestions, PageNumber: 4, DataAvailable: true, Rows: rows},
		},
	}

	out, err := NewPDFExporter().RenderDocument(doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRejectsEmptyDocument(t *testing.T) {
	_, err := NewPDFExporter().RenderDocument(Document{})
	require.Error(t, err)
}
