package views

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	appI18n "github.com/pavelanni/gcsemock/internal/i18n"
	"github.com/pavelanni/gcsemock/internal/model"
)

func TestMain(m *testing.M) {
	if err := appI18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func sampleResult() model.ExamResult {
	return model.ExamResult{
		ID:         "res-1",
		PaperID:    "paper-1",
		TotalScore: 10.5,
		MaxScore:   48,
		Percentage: 21.875,
		Grade:      "3",
		Duration:   754,
		Questions: []model.QuestionMark{
			{
				QuestionID: "q1",
				Score:      3,
				MaxMarks:   4,
				Feedback:   "Three <valid> points.",
				AOBreakdown: []model.AOScore{
					{AO: "AO1", Score: 3, Max: 4, Comment: "Accurate retrieval"},
				},
			},
			{QuestionID: "q9", Score: 7.5, MaxMarks: 44, Level: "Level 2"},
		},
		ModelAnswers: "## Question 1\nThe sky <darkened>.",
	}
}

func render(t *testing.T, paper *model.ExamPaper, res model.ExamResult) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, ResultPage(paper, res).Render(context.Background(), &buf))
	return buf.String()
}

func TestResultPage(t *testing.T) {
	paper := &model.ExamPaper{
		ID:    "paper-1",
		Title: "Storm & Shore",
		Questions: []model.Question{
			{ID: "q1", Number: "1", Text: "List four things about the weather.", Marks: 4},
		},
	}
	html := render(t, paper, sampleResult())

	require.Contains(t, html, "<!doctype html>")
	require.Contains(t, html, "<title>GCSE Mock Exams</title>")
	require.Contains(t, html, "Results for Storm &amp; Shore")
	require.Contains(t, html, "10.5 / 48 (21.9%)")
	require.Contains(t, html, "12 min 34 s")
	require.Contains(t, html, `href="/results/res-1/pdf"`)
	require.Contains(t, html, "Question 1 &middot; 3 / 4")
	require.Contains(t, html, "List four things about the weather.")
	require.Contains(t, html, "Three &lt;valid&gt; points.")
	require.Contains(t, html, "AO1: 3 / 4 &ndash; Accurate retrieval")
	require.Contains(t, html, "<em>Level 2</em>")
	require.Contains(t, html, "The sky &lt;darkened&gt;.")
	require.NotContains(t, html, "<valid>")
}

func TestResultPageWithoutPaper(t *testing.T) {
	res := sampleResult()
	res.ModelAnswers = ""
	html := render(t, nil, res)

	require.Contains(t, html, "Results for paper-1")
	require.Contains(t, html, "Question q1 &middot; 3 / 4")
	require.Contains(t, html, "Question q9 &middot; 7.5 / 44")
	require.NotContains(t, html, "Model answers")
}

func TestFormatScore(t *testing.T) {
	require.Equal(t, "4", formatScore(4))
	require.Equal(t, "4.5", formatScore(4.5))
	require.Equal(t, "0", formatScore(0))
}
