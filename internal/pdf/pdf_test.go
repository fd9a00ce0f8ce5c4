package pdf

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/gcsemock/internal/model"
)

func TestRender(t *testing.T) {
	paper := model.ExamPaper{
		ID:    "lp1",
		Title: "Mock Paper 1: “The Lighthouse”",
		Questions: []model.Question{
			{ID: "q1", Number: "1", Marks: 4},
			{ID: "q2", Number: "2", Marks: 8},
		},
	}
	res := model.ExamResult{
		TotalScore: 9.5,
		MaxScore:   12,
		Percentage: 79.2,
		Grade:      "8",
		Summary:    "Secure reading, with a clear sense of the writer’s methods.",
		Duration:   3725,
		CreatedAt:  time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Questions: []model.QuestionMark{
			{QuestionID: "q1", Score: 4, MaxMarks: 4, Feedback: "All four points."},
			{QuestionID: "q2", Score: 5.5, MaxMarks: 8, Level: "Level 3", Feedback: "Clear analysis.",
				AOBreakdown:      []model.AOScore{{AO: "AO2", Score: 5.5, Max: 8, Comment: strings.Repeat("detail ", 30)}},
				ComparisonPoints: []string{"Name the technique", "Zoom in on single words"}},
		},
		ModelAnswers: "## Question 1\nThe lamp turns...",
	}

	data, err := NewRenderer().Render(paper, res)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("output does not start with a PDF header: %q", data[:min(len(data), 8)])
	}
	if len(data) < 1000 {
		t.Errorf("output suspiciously small: %d bytes", len(data))
	}
}

func TestRenderEmptyResult(t *testing.T) {
	data, err := NewRenderer().Render(model.ExamPaper{}, model.ExamResult{})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("expected a PDF for an empty result")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0 min 00 s"},
		{59, "0 min 59 s"},
		{3725, "62 min 05 s"},
		{-4, "0 min 00 s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatScore(t *testing.T) {
	if got := formatScore(4); got != "4" {
		t.Errorf("formatScore(4) = %q", got)
	}
	if got := formatScore(5.5); got != "5.5" {
		t.Errorf("formatScore(5.5) = %q", got)
	}
}
