package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pavelanni/gcsemock/internal/llm/prompts"
	"github.com/pavelanni/gcsemock/internal/model"
)

// fakeAPI answers chat completions with canned content.
type fakeAPI struct {
	mu      sync.Mutex
	status  int
	body    string
	content string
	prompts []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/v1/models" {
		w.Header().Set("Content-Type", "application/json")
		if f.status != 0 {
			w.WriteHeader(f.status)
			io.WriteString(w, f.body)
			return
		}
		io.WriteString(w, `{"object":"list","data":[]}`)
		return
	}

	var req struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if len(req.Messages) > 0 {
		f.prompts = append(f.prompts, req.Messages[0].Content)
	}

	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
		io.WriteString(w, f.body)
		return
	}
	resp := map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": f.content},
			"finish_reason": "stop",
		}},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeAPI) reply(content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content = content
}

func (f *fakeAPI) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func newTestClient(t *testing.T, api *fakeAPI, variant prompts.PromptVariant) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/v1", "test-key", "test-model", variant)
	require.NoError(t, err)
	return c
}

func paper() model.ExamPaper {
	return model.ExamPaper{
		ID:        "lp1",
		Type:      model.PaperLanguage1,
		Title:     "Mock Paper 1",
		TimeLimit: 105,
		Questions: []model.Question{
			{ID: "q1", Number: "1", Text: "List four things.", Marks: 4, AOs: []string{"AO1"}, Type: model.QuestionShort},
			{ID: "q2", Number: "2", Text: "Analyse language.", Marks: 8, AOs: []string{"AO2"}, Type: model.QuestionLong},
		},
	}
}

func TestNewRejectsUnknownVariant(t *testing.T) {
	_, err := New("", "key", "model", "harsh")
	require.Error(t, err)

	c, err := New("", "key", "model", "")
	require.NoError(t, err)
	require.Equal(t, prompts.PromptStandard, c.Variant())
}

func TestMarkExam(t *testing.T) {
	api := &fakeAPI{content: `{
		"total_score": 9,
		"max_score": 12,
		"percentage": 75,
		"grade": "8",
		"summary": "Secure reading skills.",
		"questions": [
			{"question_id": "q1", "score": 4, "max_marks": 4, "level": "", "feedback": "All four points.",
			 "ao_breakdown": [{"ao": "AO1", "score": 4, "max": 4}]},
			{"question_id": "q2", "score": 5, "max_marks": 8, "level": "Level 3", "feedback": "Clear analysis.",
			 "model_answer": "The writer uses...", "comparison_points": ["Use more terminology"]}
		]
	}`}
	c := newTestClient(t, api, prompts.PromptStrict)

	res, err := c.MarkExam(context.Background(), paper(), []model.StudentAnswer{
		{QuestionID: "q1", Text: "It is dark. It is cold. It is wet. It is late."},
		{QuestionID: "q2", Text: "The verb 'howled' personifies the wind."},
	})
	require.NoError(t, err)
	require.Equal(t, 9.0, res.TotalScore)
	require.Equal(t, "8", res.Grade)
	require.Equal(t, "lp1", res.PaperID)
	require.Equal(t, model.PaperLanguage1, res.PaperType)
	require.Len(t, res.Questions, 2)
	require.Equal(t, "Level 3", res.Questions[1].Level)
	require.Equal(t, []string{"Use more terminology"}, res.Questions[1].ComparisonPoints)

	prompt := api.lastPrompt()
	require.Contains(t, prompt, "The verb 'howled' personifies the wind.")
	require.Contains(t, prompt, "resolves to the lower one")
}

func TestMarkExamFillsMissingTotals(t *testing.T) {
	api := &fakeAPI{content: `{"total_score": 0, "questions": [
		{"question_id": "q1", "score": 3},
		{"question_id": "q2", "score": 6}
	]}`}
	c := newTestClient(t, api, "")

	res, err := c.MarkExam(context.Background(), paper(), nil)
	require.NoError(t, err)
	require.Equal(t, 12, res.MaxScore)
	require.Equal(t, 9.0, res.TotalScore)
	require.Equal(t, 75.0, res.Percentage)
	require.Equal(t, "8", res.Grade)
	require.Equal(t, 4, res.Questions[0].MaxMarks)
	require.Equal(t, 8, res.Questions[1].MaxMarks)
}

func TestMarkExamScoresNotClamped(t *testing.T) {
	api := &fakeAPI{content: `{"total_score": 15, "max_score": 12, "questions": [{"question_id": "q1", "score": 7, "max_marks": 4}]}`}
	c := newTestClient(t, api, "")

	res, err := c.MarkExam(context.Background(), paper(), nil)
	require.NoError(t, err)
	require.Equal(t, 15.0, res.TotalScore)
	require.Equal(t, 7.0, res.Questions[0].Score)
}

func TestGatewayErrorCodes(t *testing.T) {
	tests := []struct {
		name   string
		api    *fakeAPI
		code   string
		status int
	}{
		{"unauthorized", &fakeAPI{status: 401, body: `{"error":{"message":"bad key","type":"invalid_request_error"}}`}, CodeUnauthorized, 401},
		{"rate limited", &fakeAPI{status: 429, body: `{"error":{"message":"slow down","type":"rate_limit"}}`}, CodeRateLimited, 429},
		{"unavailable", &fakeAPI{status: 503, body: `upstream down`}, CodeUnavailable, 503},
		{"invalid request", &fakeAPI{status: 400, body: `{"error":{"message":"too long","type":"invalid_request_error"}}`}, CodeInvalidRequest, 400},
		{"not json", &fakeAPI{content: `Level 3, well done`}, CodeBadResponse, 502},
		{"wrong shape", &fakeAPI{content: `{"total_score": "nine", "questions": []}`}, CodeBadResponse, 502},
		{"missing questions", &fakeAPI{content: `{"total_score": 9}`}, CodeBadResponse, 502},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.api, "")
			_, err := c.MarkExam(context.Background(), paper(), nil)
			require.Error(t, err)

			var gerr *GatewayError
			require.True(t, errors.As(err, &gerr), "got %T", err)
			require.Equal(t, tt.code, gerr.ErrorCode())
			require.Equal(t, "mark_exam", gerr.Op)
			require.Equal(t, tt.status, gerr.HTTPStatus())
		})
	}
}

func TestCanceledContext(t *testing.T) {
	c := newTestClient(t, &fakeAPI{content: `{}`}, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GenerateModelAnswers(ctx, paper())
	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, CodeCanceled, gerr.Code)
}

func TestGenerateModelAnswers(t *testing.T) {
	api := &fakeAPI{content: `{"model_answers": "## Question 1\nIt is dark..."}`}
	c := newTestClient(t, api, "")

	got, err := c.GenerateModelAnswers(context.Background(), paper())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(got, "## Question 1"))
	require.Contains(t, api.lastPrompt(), "Analyse language.")
}

func TestGenerateExam(t *testing.T) {
	api := &fakeAPI{content: `{
		"title": "The Storm",
		"sources": [{"id": "A", "title": "Night Crossing", "content": "The ferry pitched..."}],
		"questions": [
			{"id": "q1", "text": "List four things.", "marks": 4, "aos": ["AO1"], "section": "A", "type": "short"},
			{"id": "q5", "number": "5", "text": "Describe a storm.", "marks": 40, "section": "B", "type": "extended", "optional_group": "writing", "image_prompts": ["a pier in the rain"]},
			{"id": "q6", "number": "6", "text": "Write a story.", "marks": 40, "section": "B", "type": "extended", "optional_group": "writing"}
		]
	}`}
	c := newTestClient(t, api, "")

	p, err := c.GenerateExam(context.Background(), GenerateExamRequest{Type: model.PaperLanguage1, Topic: "storms"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(p.ID, "gen-"))
	require.Equal(t, model.PaperLanguage1, p.Type)
	require.Equal(t, 105, p.TimeLimit)
	require.Equal(t, "1", p.Questions[0].Number)
	require.Equal(t, map[string][]string{"writing": {"q5", "q6"}}, p.OptionalGroups())
	require.Equal(t, 44, p.MaxMarks())
	require.False(t, p.CreatedAt.IsZero())
	require.Contains(t, api.lastPrompt(), "a 1024x1024 frame")

	_, err = c.GenerateExam(context.Background(), GenerateExamRequest{Type: model.PaperLanguage1, ImageSize: "256x256"})
	require.NoError(t, err)
	require.Contains(t, api.lastPrompt(), "a 256x256 frame")

	api.reply(`{"title": "Dupes", "questions": [{"id": "q1", "text": "a", "marks": 1}, {"id": "q1", "text": "b", "marks": 1}]}`)
	_, err = c.GenerateExam(context.Background(), GenerateExamRequest{Type: model.PaperLanguage1})
	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, CodeBadResponse, gerr.Code)
}

func TestAnalyzeAndEvaluate(t *testing.T) {
	api := &fakeAPI{content: `{"methods": [{"name": "personification", "example": "the wind howled", "effect": "menace"}], "summary": "A storm at sea.", "tone": "tense", "themes": ["nature"]}`}
	c := newTestClient(t, api, "")

	a, err := c.AnalyzeText(context.Background(), "The wind howled.")
	require.NoError(t, err)
	require.Equal(t, "personification", a.Methods[0].Name)
	require.Equal(t, "A storm at sea.", a.Summary)

	api.reply(`{"summary": "No methods listed."}`)
	_, err = c.AnalyzeText(context.Background(), "The wind howled.")
	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, CodeBadResponse, gerr.Code)

	api.reply(`{"success": true, "feedback": "Good use of pathetic fallacy.", "improvement_tip": "Vary sentence openings.", "score": 7, "strengths": ["imagery"]}`)
	e, err := c.EvaluateWriting(context.Background(), "Grey clouds gathered.", "pathetic fallacy")
	require.NoError(t, err)
	require.True(t, e.Success)
	require.Equal(t, "Vary sentence openings.", e.ImprovementTip)
	require.Equal(t, 7.0, e.Score)
	require.Contains(t, api.lastPrompt(), "pathetic fallacy")

	raw, err := json.Marshal(e)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"improvement_tip":"Vary sentence openings."`)
}

func TestPracticeSetAndAssignmentMarking(t *testing.T) {
	api := &fakeAPI{content: `{"title": "Imagery", "instructions": "Answer all.", "questions": [
		{"id": "p1", "text": "Find a simile.", "marks": 2, "ao": "AO2"},
		{"id": "p2", "text": "Explain its effect.", "marks": 4, "ao": "AO2"}
	]}`}
	c := newTestClient(t, api, "")

	set, err := c.GeneratePracticeSet(context.Background(), PracticeSetRequest{Topic: "imagery"})
	require.NoError(t, err)
	require.Len(t, set.Questions, 2)
	require.Contains(t, api.lastPrompt(), "NUMBER OF QUESTIONS: 5")

	_, err = c.GeneratePracticeSet(context.Background(), PracticeSetRequest{Topic: "imagery", NumQuestions: 2})
	require.NoError(t, err)
	require.Contains(t, api.lastPrompt(), "NUMBER OF QUESTIONS: 2")

	a := model.Assignment{ID: 3, Title: set.Title, Questions: set.Questions}
	api.reply(`{"overall_feedback": "Good start.", "results": [
		{"question_id": "p1", "score": 2, "max_marks": 2, "feedback": "Correct."},
		{"question_id": "p2", "score": 1, "max_marks": 4, "feedback": "Say more."}
	]}`)
	answers := []model.AssignmentAnswer{{QuestionID: "p1", Text: "as cold as ice"}, {QuestionID: "p2", Text: "it is cold"}}
	res, err := c.MarkAssignment(context.Background(), a, answers)
	require.NoError(t, err)
	require.Equal(t, int64(3), res.AssignmentID)
	require.Equal(t, 6, res.TotalPossible)
	require.Equal(t, 3.0, res.TotalMarks)
	require.Equal(t, 50.0, res.Percentage)
	require.Equal(t, answers, res.Answers)
	require.False(t, res.SubmittedAt.IsZero())

	_, err = c.MarkAssignment(context.Background(), model.Assignment{ID: 4}, nil)
	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, CodeInvalidRequest, gerr.Code)
}

func TestPing(t *testing.T) {
	c := newTestClient(t, &fakeAPI{}, "")
	require.NoError(t, c.Ping(context.Background()))

	bad := newTestClient(t, &fakeAPI{status: 401, body: `{"error":{"message":"bad key"}}`}, "")
	err := bad.Ping(context.Background())
	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, CodeUnauthorized, gerr.Code)
}

func TestGradeFor(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{100, "9"},
		{80, "9"},
		{79.9, "8"},
		{75, "8"},
		{48, "5"},
		{40, "4"},
		{9.9, "U"},
		{0, "U"},
	}
	for _, tt := range tests {
		if got := GradeFor(tt.pct); got != tt.want {
			t.Errorf("GradeFor(%v) = %q, want %q", tt.pct, got, tt.want)
		}
	}
}
