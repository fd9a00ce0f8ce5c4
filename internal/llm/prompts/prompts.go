package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/pavelanni/gcsemock/internal/model"
)

//go:embed templates/*.txt
var embedded embed.FS

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)

	stripHTML = bluemonday.StrictPolicy()
)

// MaxAnswerRunes is the longest answer passed to the model.
const MaxAnswerRunes = 10000

// PromptVariant represents a marking prompt variant.
type PromptVariant string

const (
	// PromptStrict marks at the top of each band only with full evidence.
	PromptStrict PromptVariant = "strict"
	// PromptStandard is the default marking variant.
	PromptStandard PromptVariant = "standard"
	// PromptLenient gives the benefit of the doubt between bands.
	PromptLenient PromptVariant = "lenient"
)

var validVariants = map[PromptVariant]bool{
	PromptStrict:   true,
	PromptStandard: true,
	PromptLenient:  true,
}

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// Task templates shared by all variants.
const (
	TaskModelAnswers    = "model_answers"
	TaskGenerateExam    = "generate_exam"
	TaskAnalyzeText     = "analyze_text"
	TaskEvaluateWriting = "evaluate_writing"
	TaskPracticeSet     = "practice_set"
	TaskMarkAssignment  = "mark_assignment"
)

var tasks = []string{
	TaskModelAnswers,
	TaskGenerateExam,
	TaskAnalyzeText,
	TaskEvaluateWriting,
	TaskPracticeSet,
	TaskMarkAssignment,
}

// Set holds parsed prompt templates.
type Set struct {
	mark  map[PromptVariant]*template.Template
	tasks map[string]*template.Template
}

var (
	defaultOnce sync.Once
	defaultSet  *Set
	defaultErr  error
)

// Default returns the templates compiled into the binary.
func Default() (*Set, error) {
	defaultOnce.Do(func() {
		defaultSet, defaultErr = Load(embedded)
	})
	return defaultSet, defaultErr
}

// Load parses prompt templates from fsys. It expects a templates/ directory
// holding mark_body.txt, one mark_exam_<variant>.txt per variant and one file
// per task.
func Load(fsys fs.FS) (*Set, error) {
	s := &Set{
		mark:  make(map[PromptVariant]*template.Template),
		tasks: make(map[string]*template.Template),
	}

	for v := range validVariants {
		file := "templates/mark_exam_" + string(v) + ".txt"
		tmpl, err := template.New(string(v)).ParseFS(fsys, "templates/mark_body.txt", file)
		if err != nil {
			return nil, fmt.Errorf("parse prompt template %s: %w", file, err)
		}
		s.mark[v] = tmpl.Lookup("mark_exam_" + string(v) + ".txt")
		if s.mark[v] == nil {
			return nil, errors.New("prompt template missing: " + file)
		}
	}

	for _, name := range tasks {
		file := "templates/" + name + ".txt"
		content, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read prompt file %s: %w", file, err)
		}
		tmpl, err := template.New(name).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse prompt template %s: %w", file, err)
		}
		s.tasks[name] = tmpl
	}
	return s, nil
}

// AnswerData is one student answer as shown to the model.
type AnswerData struct {
	QuestionID string
	Number     string
	Text       string
	Image      string
}

// MarkData feeds the exam marking templates.
type MarkData struct {
	Title          string
	PaperType      model.PaperType
	MaxMarks       int
	Sources        []model.SourceText
	Questions      []model.Question
	MarkingGrids   []MarkingGrid
	StudentAnswers []AnswerData
}

// BuildMarkExam builds the marking prompt for a submitted answer set. Only the
// submitted questions get a marking grid.
func (s *Set) BuildMarkExam(variant PromptVariant, paper model.ExamPaper, answers []model.StudentAnswer) (string, error) {
	tmpl, ok := s.mark[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	data := MarkData{
		Title:     paper.Title,
		PaperType: paper.Type,
		MaxMarks:  paper.MaxMarks(),
		Sources:   paper.Sources,
	}
	for _, a := range answers {
		q, ok := paper.Question(a.QuestionID)
		if !ok {
			continue
		}
		data.Questions = append(data.Questions, q)
		data.MarkingGrids = append(data.MarkingGrids, GridFor(paper.Type, q))
		ad := AnswerData{QuestionID: q.ID, Number: q.Number, Text: sanitizeAnswer(a.Text)}
		if a.SelectedImage != nil && *a.SelectedImage >= 0 && *a.SelectedImage < len(q.ImagePrompts) {
			ad.Image = q.ImagePrompts[*a.SelectedImage]
		}
		data.StudentAnswers = append(data.StudentAnswers, ad)
	}
	return execute(tmpl, data)
}

// BuildModelAnswers builds the prompt for exemplar answers to a paper.
func (s *Set) BuildModelAnswers(paper model.ExamPaper) (string, error) {
	grids := make([]MarkingGrid, 0, len(paper.Questions))
	for _, q := range paper.Questions {
		grids = append(grids, GridFor(paper.Type, q))
	}
	return s.Render(TaskModelAnswers, MarkData{
		Title:        paper.Title,
		PaperType:    paper.Type,
		MaxMarks:     paper.MaxMarks(),
		Sources:      paper.Sources,
		Questions:    paper.Questions,
		MarkingGrids: grids,
	})
}

// ExamSpecData feeds the exam generation template.
type ExamSpecData struct {
	PaperType  model.PaperType
	ImageSize  string
	Topic      string
	Difficulty string
	TimeLimit  int
	Structure  string
}

// BuildGenerateExam builds the prompt for a new paper.
func (s *Set) BuildGenerateExam(paperType model.PaperType, imageSize, topic, difficulty string) (string, error) {
	return s.Render(TaskGenerateExam, ExamSpecData{
		PaperType:  paperType,
		ImageSize:  imageSize,
		Topic:      sanitizeText(topic),
		Difficulty: difficulty,
		TimeLimit:  DefaultTimeLimit(paperType),
		Structure:  PaperStructure(paperType),
	})
}

// TextData feeds the analysis and writing evaluation templates.
type TextData struct {
	Text         string
	TargetMethod string
}

// BuildAnalyzeText builds the prompt for a language and structure analysis.
func (s *Set) BuildAnalyzeText(text string) (string, error) {
	return s.Render(TaskAnalyzeText, TextData{Text: sanitizeAnswer(text)})
}

// BuildEvaluateWriting builds the prompt for feedback on a piece of writing
// that should demonstrate targetMethod.
func (s *Set) BuildEvaluateWriting(text, targetMethod string) (string, error) {
	return s.Render(TaskEvaluateWriting, TextData{
		Text:         sanitizeAnswer(text),
		TargetMethod: sanitizeText(targetMethod),
	})
}

// PracticeData feeds the practice set template.
type PracticeData struct {
	PaperType    model.PaperType
	Topic        string
	Difficulty   string
	NumQuestions int
	AOs          []AODescriptor
}

// BuildPracticeSet builds the prompt for a set of practice questions.
func (s *Set) BuildPracticeSet(paperType model.PaperType, topic, difficulty string, numQuestions int, aos []string) (string, error) {
	data := PracticeData{
		PaperType:    paperType,
		Topic:        sanitizeText(topic),
		Difficulty:   difficulty,
		NumQuestions: numQuestions,
	}
	for _, ao := range aos {
		data.AOs = append(data.AOs, Describe(paperType, ao))
	}
	return s.Render(TaskPracticeSet, data)
}

// AssignmentData feeds the assignment marking template.
type AssignmentData struct {
	Title        string
	Instructions string
	Questions    []model.AssignmentQuestion
	Answers      []AnswerData
	TotalMarks   int
}

// BuildMarkAssignment builds the marking prompt for an assignment submission.
func (s *Set) BuildMarkAssignment(a model.Assignment, answers []model.AssignmentAnswer) (string, error) {
	byID := make(map[string]string, len(answers))
	for _, ans := range answers {
		byID[ans.QuestionID] = ans.Text
	}
	data := AssignmentData{
		Title:        a.Title,
		Instructions: a.Instructions,
		Questions:    a.Questions,
		TotalMarks:   a.TotalMarks(),
	}
	for _, q := range a.Questions {
		data.Answers = append(data.Answers, AnswerData{QuestionID: q.ID, Text: sanitizeAnswer(byID[q.ID])})
	}
	return s.Render(TaskMarkAssignment, data)
}

// Render executes the named task template.
func (s *Set) Render(name string, data any) (string, error) {
	tmpl, ok := s.tasks[name]
	if !ok {
		return "", errors.New("unknown prompt template: " + name)
	}
	return execute(tmpl, data)
}

func execute(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitizeText strips markup and prompt delimiters from short free text.
func sanitizeText(s string) string {
	s = studentAnswerRegex.ReplaceAllString(s, "")
	s = systemInstructionsRegex.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(stripHTML.Sanitize(s)))
}

func sanitizeAnswer(answer string) string {
	answer = sanitizeText(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > MaxAnswerRunes {
		runes := []rune(answer)
		runes = runes[:MaxAnswerRunes]
		answer = string(runes) + "\n\n[Answer truncated due to length]"
	}

	return answer
}
