// Package pdf renders marked exam results as printable reports.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/pavelanni/gcsemock/internal/model"
)

const (
	fontFamily = "Helvetica"
	lineHeight = 5.0
)

// Renderer produces result reports.
type Renderer struct {
	// Footer is printed at the bottom of every page.
	Footer string
}

// NewRenderer creates a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{Footer: "GCSE English mock examination"}
}

// Render writes the result report for a paper.
func (r *Renderer) Render(paper model.ExamPaper, res model.ExamResult) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetTitle(paper.Title, true)
	doc.SetCreator("gcsemock", true)
	doc.SetAutoPageBreak(true, 15)
	doc.SetFooterFunc(func() {
		doc.SetY(-12)
		doc.SetFont(fontFamily, "I", 8)
		doc.CellFormat(0, 8, tr(fmt.Sprintf("%s  |  page %d", r.Footer, doc.PageNo())), "", 0, "C", false, 0, "")
	})
	doc.AddPage()

	doc.SetFont(fontFamily, "B", 16)
	doc.CellFormat(0, 10, tr(titleOf(paper)), "", 1, "L", false, 0, "")

	doc.SetFont(fontFamily, "", 10)
	if !res.CreatedAt.IsZero() {
		doc.CellFormat(0, 6, tr("Sat on "+res.CreatedAt.Format("2 January 2006 at 15:04")), "", 1, "L", false, 0, "")
	}
	doc.CellFormat(0, 6, tr("Time taken: "+FormatDuration(res.Duration)), "", 1, "L", false, 0, "")
	doc.Ln(2)

	doc.SetFont(fontFamily, "B", 13)
	doc.CellFormat(0, 8, tr(fmt.Sprintf("Score %s / %d (%.1f%%)   Grade %s",
		formatScore(res.TotalScore), res.MaxScore, res.Percentage, res.Grade)), "", 1, "L", false, 0, "")
	if res.Summary != "" {
		doc.SetFont(fontFamily, "", 10)
		doc.MultiCell(0, lineHeight, tr(res.Summary), "", "L", false)
	}
	doc.Ln(4)

	for _, m := range res.Questions {
		writeQuestion(doc, tr, paper, m)
	}

	if res.ModelAnswers != "" {
		doc.AddPage()
		doc.SetFont(fontFamily, "B", 13)
		doc.CellFormat(0, 8, tr("Model answers"), "", 1, "L", false, 0, "")
		doc.SetFont(fontFamily, "", 10)
		doc.MultiCell(0, lineHeight, tr(res.ModelAnswers), "", "L", false)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeQuestion(doc *fpdf.Fpdf, tr func(string) string, paper model.ExamPaper, m model.QuestionMark) {
	heading := "Question " + m.QuestionID
	if q, ok := paper.Question(m.QuestionID); ok {
		heading = "Question " + q.Number
	}
	heading += fmt.Sprintf(": %s / %d", formatScore(m.Score), m.MaxMarks)
	if m.Level != "" {
		heading += "  (" + m.Level + ")"
	}

	doc.SetFont(fontFamily, "B", 11)
	doc.SetFillColor(235, 240, 248)
	doc.CellFormat(0, 7, tr(heading), "", 1, "L", true, 0, "")

	doc.SetFont(fontFamily, "", 10)
	if m.Feedback != "" {
		doc.MultiCell(0, lineHeight, tr(m.Feedback), "", "L", false)
	}

	if len(m.AOBreakdown) > 0 {
		doc.Ln(1)
		doc.SetFont(fontFamily, "B", 9)
		doc.CellFormat(20, 6, "AO", "1", 0, "L", false, 0, "")
		doc.CellFormat(25, 6, "Marks", "1", 0, "L", false, 0, "")
		doc.CellFormat(0, 6, "Comment", "1", 1, "L", false, 0, "")
		doc.SetFont(fontFamily, "", 9)
		for _, ao := range m.AOBreakdown {
			doc.CellFormat(20, 6, tr(ao.AO), "1", 0, "L", false, 0, "")
			doc.CellFormat(25, 6, tr(formatScore(ao.Score)+" / "+formatScore(ao.Max)), "1", 0, "L", false, 0, "")
			doc.CellFormat(0, 6, tr(truncate(ao.Comment, 90)), "1", 1, "L", false, 0, "")
		}
	}

	if len(m.ComparisonPoints) > 0 {
		doc.Ln(1)
		doc.SetFont(fontFamily, "I", 10)
		doc.CellFormat(0, 6, "Compared with a top-band answer:", "", 1, "L", false, 0, "")
		doc.SetFont(fontFamily, "", 10)
		for _, p := range m.ComparisonPoints {
			doc.MultiCell(0, lineHeight, tr("- "+p), "", "L", false)
		}
	}
	doc.Ln(3)
}

func titleOf(paper model.ExamPaper) string {
	if paper.Title != "" {
		return paper.Title
	}
	return "Exam result"
}

// FormatDuration renders seconds as minutes and seconds.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d min %02d s", seconds/60, seconds%60)
}

func formatScore(f float64) string {
	s := fmt.Sprintf("%.1f", f)
	return strings.TrimSuffix(s, ".0")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
