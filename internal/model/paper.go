package model

import "time"

// PaperType identifies which GCSE paper an exam imitates.
type PaperType string

const (
	// PaperLanguage1 is English Language Paper 1: explorations in creative reading and writing.
	PaperLanguage1 PaperType = "language-paper-1"
	// PaperLanguage2 is English Language Paper 2: writers' viewpoints and perspectives.
	PaperLanguage2 PaperType = "language-paper-2"
	// PaperLiterature is an English Literature essay paper.
	PaperLiterature PaperType = "literature"
)

// ValidPaperTypes lists the accepted paper types.
var ValidPaperTypes = []PaperType{PaperLanguage1, PaperLanguage2, PaperLiterature}

// Section is a paper section.
type Section string

const (
	SectionA Section = "A" // Reading
	SectionB Section = "B" // Writing
)

// QuestionType is the expected length of a response.
type QuestionType string

const (
	QuestionShort    QuestionType = "short"
	QuestionLong     QuestionType = "long"
	QuestionExtended QuestionType = "extended"
)

// SourceText is an extract students read before answering.
type SourceText struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Author  string `json:"author,omitempty"`
	Year    string `json:"year,omitempty"`
	Kind    string `json:"kind,omitempty"` // fiction, non-fiction, poem...
	Content string `json:"content"`
}

// Question represents an exam question.
type Question struct {
	ID            string       `json:"id"`
	Number        string       `json:"number"`
	Text          string       `json:"text"`
	Marks         int          `json:"marks"`
	AOs           []string     `json:"aos"`
	Section       Section      `json:"section"`
	SourceRef     string       `json:"source_ref,omitempty"`
	Type          QuestionType `json:"type"`
	WordTarget    int          `json:"word_target,omitempty"`
	OptionalGroup string       `json:"optional_group,omitempty"`
	ImagePrompts  []string     `json:"image_prompts,omitempty"`
}

// ExamPaper is one exam instance. It is immutable once fetched or generated.
type ExamPaper struct {
	ID        string       `json:"id"`
	Type      PaperType    `json:"type"`
	Title     string       `json:"title"`
	TimeLimit int          `json:"time_limit"` // minutes, 0 means untimed
	Sources   []SourceText `json:"sources"`
	Questions []Question   `json:"questions"`
	CreatedAt time.Time    `json:"created_at"`
}

// TimeLimitSeconds returns the time limit in seconds.
func (p ExamPaper) TimeLimitSeconds() int {
	return p.TimeLimit * 60
}

// QuestionIndex returns the position of the question with the given ID, or -1.
func (p ExamPaper) QuestionIndex(id string) int {
	for i, q := range p.Questions {
		if q.ID == id {
			return i
		}
	}
	return -1
}

// Question returns the question with the given ID.
func (p ExamPaper) Question(id string) (Question, bool) {
	i := p.QuestionIndex(id)
	if i < 0 {
		return Question{}, false
	}
	return p.Questions[i], true
}

// OptionalGroups maps each optional group tag to its member question IDs in paper order.
func (p ExamPaper) OptionalGroups() map[string][]string {
	groups := make(map[string][]string)
	for _, q := range p.Questions {
		if q.OptionalGroup != "" {
			groups[q.OptionalGroup] = append(groups[q.OptionalGroup], q.ID)
		}
	}
	return groups
}

// MaxMarks sums the marks available, counting one member per optional group.
func (p ExamPaper) MaxMarks() int {
	total := 0
	seen := make(map[string]bool)
	for _, q := range p.Questions {
		if q.OptionalGroup != "" {
			if seen[q.OptionalGroup] {
				continue
			}
			seen[q.OptionalGroup] = true
		}
		total += q.Marks
	}
	return total
}

// StudentAnswer is the student's current answer to one question.
type StudentAnswer struct {
	QuestionID    string    `json:"question_id"`
	Text          string    `json:"text"`
	UpdatedAt     time.Time `json:"updated_at"`
	Flagged       bool      `json:"flagged"`
	SelectedImage *int      `json:"selected_image,omitempty"`
}

// Draft is the persisted in-progress answer set for one paper.
type Draft struct {
	Key        string                   `json:"key"`
	PaperID    string                   `json:"paper_id"`
	Answers    map[string]StudentAnswer `json:"answers"`
	Selections map[string]string        `json:"selections,omitempty"` // optional group -> chosen question ID
	Revision   int64                    `json:"revision"`
	SavedAt    time.Time                `json:"saved_at"`
}

// PaperImport is used for loading papers from JSON files.
type PaperImport struct {
	ID        string       `json:"id"`
	Type      PaperType    `json:"type"`
	Title     string       `json:"title"`
	TimeLimit int          `json:"time_limit"`
	Sources   []SourceText `json:"sources"`
	Questions []Question   `json:"questions"`
}
