package llm

import (
	"context"
	"fmt"
	"math"

	"github.com/pavelanni/gcsemock/internal/model"
)

// gradeBoundaries are the lowest percentages for each GCSE grade.
var gradeBoundaries = []struct {
	min   float64
	grade string
}{
	{80, "9"},
	{72, "8"},
	{64, "7"},
	{56, "6"},
	{48, "5"},
	{40, "4"},
	{30, "3"},
	{20, "2"},
	{10, "1"},
}

// GradeFor returns the GCSE grade for a percentage.
func GradeFor(percentage float64) string {
	for _, b := range gradeBoundaries {
		if percentage >= b.min {
			return b.grade
		}
	}
	return "U"
}

func percentage(score float64, max int) float64 {
	if max <= 0 {
		return 0
	}
	return math.Round(score/float64(max)*1000) / 10
}

// MarkExam marks a submitted answer set against the paper's marking grids.
func (c *Client) MarkExam(ctx context.Context, paper model.ExamPaper, answers []model.StudentAnswer) (*model.ExamResult, error) {
	prompt, err := c.prompts.BuildMarkExam(c.variant, paper, answers)
	if err != nil {
		return nil, &GatewayError{Op: "mark_exam", Code: CodeInvalidRequest, Err: err}
	}

	var result model.ExamResult
	if err := c.complete(ctx, "mark_exam", prompt, 0.2, &result); err != nil {
		return nil, err
	}
	fillResult(paper, &result)
	return &result, nil
}

// fillResult completes totals the model left out. Scores it did report are
// kept as given.
func fillResult(paper model.ExamPaper, r *model.ExamResult) {
	r.PaperID = paper.ID
	r.PaperType = paper.Type
	if r.MaxScore == 0 {
		r.MaxScore = paper.MaxMarks()
	}
	sum := 0.0
	for i := range r.Questions {
		q := &r.Questions[i]
		if q.MaxMarks == 0 {
			if pq, ok := paper.Question(q.QuestionID); ok {
				q.MaxMarks = pq.Marks
			}
		}
		sum += q.Score
	}
	if r.TotalScore == 0 {
		r.TotalScore = sum
	}
	if r.Percentage == 0 {
		r.Percentage = percentage(r.TotalScore, r.MaxScore)
	}
	if r.Grade == "" {
		r.Grade = GradeFor(r.Percentage)
	}
}

// GenerateModelAnswers writes exemplar answers for every question of a paper.
func (c *Client) GenerateModelAnswers(ctx context.Context, paper model.ExamPaper) (string, error) {
	prompt, err := c.prompts.BuildModelAnswers(paper)
	if err != nil {
		return "", &GatewayError{Op: "model_answers", Code: CodeInvalidRequest, Err: err}
	}

	var out struct {
		ModelAnswers string `json:"model_answers"`
	}
	if err := c.complete(ctx, "model_answers", prompt, 0.5, &out); err != nil {
		return "", err
	}
	return out.ModelAnswers, nil
}

// MarkAssignment marks a student's answers to a teacher-set assignment.
func (c *Client) MarkAssignment(ctx context.Context, a model.Assignment, answers []model.AssignmentAnswer) (*model.AssignmentResult, error) {
	if len(a.Questions) == 0 {
		return nil, &GatewayError{Op: "mark_assignment", Code: CodeInvalidRequest, Err: fmt.Errorf("assignment %d has no questions", a.ID)}
	}
	prompt, err := c.prompts.BuildMarkAssignment(a, answers)
	if err != nil {
		return nil, &GatewayError{Op: "mark_assignment", Code: CodeInvalidRequest, Err: err}
	}

	var result model.AssignmentResult
	if err := c.complete(ctx, "mark_assignment", prompt, 0.2, &result); err != nil {
		return nil, err
	}

	result.AssignmentID = a.ID
	result.Answers = answers
	if result.TotalPossible == 0 {
		result.TotalPossible = a.TotalMarks()
	}
	if result.TotalMarks == 0 {
		for _, r := range result.Results {
			result.TotalMarks += r.Score
		}
	}
	if result.Percentage == 0 {
		result.Percentage = percentage(result.TotalMarks, result.TotalPossible)
	}
	result.SubmittedAt = c.now()
	return &result, nil
}
