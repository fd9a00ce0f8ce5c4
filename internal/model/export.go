package model

import "time"

// ResultsExport is the top-level JSON structure for exam result export.
type ResultsExport struct {
	ExportedAt    time.Time       `json:"exported_at"`
	PaperType     string          `json:"paper_type,omitempty"`
	PromptVariant string          `json:"prompt_variant"`
	Results       []StudentResult `json:"results"`
}

// StudentResult holds one student's marked sitting for export.
type StudentResult struct {
	Username      string           `json:"username"`
	DisplayName   string           `json:"display_name"`
	AttemptNumber int              `json:"attempt_number"`
	PaperID       string           `json:"paper_id"`
	PaperTitle    string           `json:"paper_title"`
	Duration      int              `json:"duration"`
	SubmittedAt   time.Time        `json:"submitted_at"`
	TotalScore    float64          `json:"total_score"`
	MaxScore      int              `json:"max_score"`
	Grade         string           `json:"grade"`
	Questions     []QuestionResult `json:"questions"`
}

// QuestionResult holds per-question data for export.
type QuestionResult struct {
	Number   string   `json:"number"`
	Text     string   `json:"text"`
	AOs      []string `json:"aos"`
	Marks    int      `json:"marks"`
	Score    float64  `json:"score"`
	Level    string   `json:"level"`
	Feedback string   `json:"feedback"`
}
