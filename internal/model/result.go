package model

import "time"

// AOScore is the marks awarded against one assessment objective.
type AOScore struct {
	AO      string  `json:"ao"`
	Score   float64 `json:"score"`
	Max     float64 `json:"max"`
	Comment string  `json:"comment,omitempty"`
}

// QuestionMark holds the marking of a single question.
type QuestionMark struct {
	QuestionID       string    `json:"question_id"`
	Score            float64   `json:"score"`
	MaxMarks         int       `json:"max_marks"`
	Level            string    `json:"level"`
	Feedback         string    `json:"feedback"`
	AOBreakdown      []AOScore `json:"ao_breakdown"`
	ModelAnswer      string    `json:"model_answer"`
	ComparisonPoints []string  `json:"comparison_points"`
}

// ExamResult is the marked outcome of one submission. The marking service
// produces everything except Duration and ModelAnswers, which are attached
// before persistence.
type ExamResult struct {
	ID           string         `json:"id"`
	UserID       int64          `json:"user_id"`
	PaperID      string         `json:"paper_id"`
	PaperType    PaperType      `json:"paper_type"`
	TotalScore   float64        `json:"total_score"`
	MaxScore     int            `json:"max_score"`
	Percentage   float64        `json:"percentage"`
	Grade        string         `json:"grade"`
	Summary      string         `json:"summary"`
	Questions    []QuestionMark `json:"questions"`
	Duration     int            `json:"duration"` // seconds
	ModelAnswers string         `json:"model_answers,omitempty"`
	PDFURL       string         `json:"pdf_url,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Mark returns the marking of the given question.
func (r ExamResult) Mark(questionID string) (QuestionMark, bool) {
	for _, m := range r.Questions {
		if m.QuestionID == questionID {
			return m, true
		}
	}
	return QuestionMark{}, false
}
