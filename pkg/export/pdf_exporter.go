package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/noah-isme/sma-performance-api/internal/models"
)

const (
	pageWidth   = 190.0
	columnGap   = 6.0
	rowHeight   = 7.0
	headerFont  = 14.0
	tableFont   = 9.0
	defaultFont = "Arial"
)

// Document is a print report made of a summary table followed by question pages.
type Document struct {
	Title    string
	Subtitle string
	Summary  Dataset
	Pages    []models.PrintPage
}

// PDFExporter renders datasets and print pages with gofpdf.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

func newDocument() *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(defaultFont, "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	return pdf
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTitle(pdf *gofpdf.Fpdf, title, subtitle string) {
	if title != "" {
		pdf.SetFont(defaultFont, "B", headerFont)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
	}
	if subtitle != "" {
		pdf.SetFont(defaultFont, "", 10)
		pdf.CellFormat(0, 6, subtitle, "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)
}

func writeTable(pdf *gofpdf.Fpdf, data Dataset) {
	if len(data.Headers) == 0 {
		return
	}
	colWidth := pageWidth / float64(len(data.Headers))
	pdf.SetFont(defaultFont, "B", 10)
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(defaultFont, "", tableFont)
	for _, row := range data.Rows {
		for i := range data.Headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			pdf.CellFormat(colWidth, rowHeight, cell, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := newDocument()
	pdf.AddPage()
	writeTitle(pdf, title, "")
	writeTable(pdf, data)
	return output(pdf)
}

// RenderDocument lays out the summary table and then one PDF page per print page.
func (e *PDFExporter) RenderDocument(doc Document) ([]byte, error) {
	if len(doc.Summary.Headers) == 0 && len(doc.Pages) == 0 {
		return nil, fmt.Errorf("pdf document is empty")
	}
	pdf := newDocument()

	if len(doc.Summary.Headers) > 0 {
		pdf.AddPage()
		writeTitle(pdf, doc.Title, doc.Subtitle)
		writeTable(pdf, doc.Summary)
	}

	for _, page := range doc.Pages {
		pdf.AddPage()
		switch page.Kind {
		case models.PageOverview:
			writeOverview(pdf, page)
		case models.PageDetail:
			writeDetail(pdf, page)
		default:
			writeFlat(pdf, page)
		}
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("layout pdf: %w", err)
	}
	return output(pdf)
}

var questionHeaders = []string{"Q#", "Correct %", "Unattempted %", "Severity %", "Level"}

func questionCells(row models.QuestionStatRow) []string {
	return []string{
		fmt.Sprintf("%d", row.QuestionNumber),
		fmt.Sprintf("%.1f", row.PercentCorrect),
		fmt.Sprintf("%.1f", row.PercentUnattempted),
		fmt.Sprintf("%.1f", row.Severity),
		string(row.SeverityLevel),
	}
}

// questionTable draws rows at x with the given width, returning the y below the table.
func questionTable(pdf *gofpdf.Fpdf, x, y, width float64, rows []models.QuestionStatRow) float64 {
	colWidth := width / float64(len(questionHeaders))
	pdf.SetXY(x, y)
	pdf.SetFont(defaultFont, "B", tableFont)
	for _, header := range questionHeaders {
		pdf.CellFormat(colWidth, rowHeight, header, "1", 0, "C", false, 0, "")
	}
	y += rowHeight

	pdf.SetFont(defaultFont, "", tableFont)
	for _, row := range rows {
		pdf.SetXY(x, y)
		for i, cell := range questionCells(row) {
			align := "R"
			if i == len(questionHeaders)-1 {
				align = "C"
			}
			pdf.CellFormat(colWidth, rowHeight, cell, "1", 0, align, false, 0, "")
		}
		y += rowHeight
	}
	return y
}

func writeOverview(pdf *gofpdf.Fpdf, page models.PrintPage) {
	writeTitle(pdf, page.Subject, "Question analysis overview")
	if !page.DataAvailable {
		pdf.SetFont(defaultFont, "I", 11)
		pdf.CellFormat(0, 10, "No question data available for this subject.", "", 1, "C", false, 0, "")
		return
	}
	pdf.SetFont(defaultFont, "B", 11)
	pdf.CellFormat(0, 8, fmt.Sprintf("Top %d questions by severity", len(page.TopSeverity)), "", 1, "L", false, 0, "")
	left, _, _, _ := pdf.GetMargins()
	questionTable(pdf, left, pdf.GetY(), pageWidth, page.TopSeverity)
}

func writeDetail(pdf *gofpdf.Fpdf, page models.PrintPage) {
	writeTitle(pdf, page.Subject, "Question details")
	left, _, _, _ := pdf.GetMargins()
	top := pdf.GetY()
	width := (pageWidth - columnGap) / 2
	for i, column := range page.Columns {
		if i > 1 {
			break
		}
		questionTable(pdf, left+float64(i)*(width+columnGap), top, width, column)
	}
}

func writeFlat(pdf *gofpdf.Fpdf, page models.PrintPage) {
	writeTitle(pdf, "Question analysis", "")
	left, _, _, _ := pdf.GetMargins()
	questionTable(pdf, left, pdf.GetY(), pageWidth, page.Rows)
}
