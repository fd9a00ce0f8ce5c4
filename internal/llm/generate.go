package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/gcsemock/internal/llm/prompts"
	"github.com/pavelanni/gcsemock/internal/model"
)

// GenerateExamRequest asks for a new paper. ImageSize is the size of the
// pictures the image prompts are written for.
type GenerateExamRequest struct {
	Type       model.PaperType `json:"type" validate:"required,oneof=language-paper-1 language-paper-2 literature"`
	ImageSize  string          `json:"image_size" validate:"omitempty,oneof=256x256 512x512 1024x1024 1792x1024 1024x1792"`
	Topic      string          `json:"topic" validate:"max=200"`
	Difficulty string          `json:"difficulty" validate:"omitempty,oneof=foundation higher"`
}

// Technique is one language or structural feature found in a text.
type Technique struct {
	Name    string `json:"name"`
	Example string `json:"example"`
	Effect  string `json:"effect"`
}

// TextAnalysis is a language and structure analysis of an extract.
type TextAnalysis struct {
	Methods     []Technique `json:"methods"`
	Summary     string      `json:"summary"`
	Tone        string      `json:"tone"`
	Structure   string      `json:"structure"`
	Themes      []string    `json:"themes"`
	Suggestions []string    `json:"suggestions"`
}

// WritingEvaluation is feedback on a short piece of practice writing.
type WritingEvaluation struct {
	Success         bool     `json:"success"` // the target method was used effectively
	Feedback        string   `json:"feedback"`
	ImprovementTip  string   `json:"improvement_tip"`
	Score           float64  `json:"score"`
	Strengths       []string `json:"strengths"`
	Improvements    []string `json:"improvements"`
	ImprovedExample string   `json:"improved_example"`
}

// PracticeSetRequest asks for a set of practice questions.
type PracticeSetRequest struct {
	PaperType    model.PaperType `json:"paper_type" validate:"omitempty,oneof=language-paper-1 language-paper-2 literature"`
	Topic        string          `json:"topic" validate:"max=200"`
	Difficulty   string          `json:"difficulty" validate:"omitempty,oneof=foundation higher"`
	NumQuestions int             `json:"num_questions" validate:"omitempty,min=1,max=10"`
	AOs          []string        `json:"aos" validate:"dive,oneof=AO1 AO2 AO3 AO4 AO5 AO6"`
}

// PracticeSet is a generated assignment.
type PracticeSet struct {
	Title        string                     `json:"title"`
	Instructions string                     `json:"instructions"`
	Questions    []model.AssignmentQuestion `json:"questions"`
}

// GenerateExam writes a new paper of the requested type.
func (c *Client) GenerateExam(ctx context.Context, req GenerateExamRequest) (*model.ExamPaper, error) {
	if req.ImageSize == "" {
		req.ImageSize = openai.CreateImageSize1024x1024
	}
	prompt, err := c.prompts.BuildGenerateExam(req.Type, req.ImageSize, req.Topic, req.Difficulty)
	if err != nil {
		return nil, &GatewayError{Op: "generate_exam", Code: CodeInvalidRequest, Err: err}
	}

	var imp model.PaperImport
	if err := c.complete(ctx, "generate_exam", prompt, 0.8, &imp); err != nil {
		return nil, err
	}

	paper := &model.ExamPaper{
		ID:        "gen-" + uuid.NewString(),
		Type:      req.Type,
		Title:     imp.Title,
		TimeLimit: imp.TimeLimit,
		Sources:   imp.Sources,
		Questions: imp.Questions,
		CreatedAt: c.now(),
	}
	if paper.TimeLimit == 0 {
		paper.TimeLimit = prompts.DefaultTimeLimit(req.Type)
	}
	seen := make(map[string]bool, len(paper.Questions))
	for i := range paper.Questions {
		q := &paper.Questions[i]
		if seen[q.ID] {
			return nil, badResponse("generate_exam", fmt.Errorf("duplicate question id %q", q.ID))
		}
		seen[q.ID] = true
		if q.Number == "" {
			q.Number = strings.TrimPrefix(q.ID, "q")
		}
	}
	return paper, nil
}

// AnalyzeText analyses the language and structure of an extract.
func (c *Client) AnalyzeText(ctx context.Context, text string) (*TextAnalysis, error) {
	prompt, err := c.prompts.BuildAnalyzeText(text)
	if err != nil {
		return nil, &GatewayError{Op: "analyze_text", Code: CodeInvalidRequest, Err: err}
	}
	var out TextAnalysis
	if err := c.complete(ctx, "analyze_text", prompt, 0.4, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EvaluateWriting gives feedback on writing that practises targetMethod.
func (c *Client) EvaluateWriting(ctx context.Context, text, targetMethod string) (*WritingEvaluation, error) {
	prompt, err := c.prompts.BuildEvaluateWriting(text, targetMethod)
	if err != nil {
		return nil, &GatewayError{Op: "evaluate_writing", Code: CodeInvalidRequest, Err: err}
	}
	var out WritingEvaluation
	if err := c.complete(ctx, "evaluate_writing", prompt, 0.4, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GeneratePracticeSet writes practice questions for an assignment.
func (c *Client) GeneratePracticeSet(ctx context.Context, req PracticeSetRequest) (*PracticeSet, error) {
	if req.NumQuestions == 0 {
		req.NumQuestions = 5
	}
	if req.PaperType == "" {
		req.PaperType = model.PaperLanguage1
	}
	prompt, err := c.prompts.BuildPracticeSet(req.PaperType, req.Topic, req.Difficulty, req.NumQuestions, req.AOs)
	if err != nil {
		return nil, &GatewayError{Op: "practice_set", Code: CodeInvalidRequest, Err: err}
	}
	var out PracticeSet
	if err := c.complete(ctx, "practice_set", prompt, 0.8, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
