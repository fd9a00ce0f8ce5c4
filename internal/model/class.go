package model

import "time"

// Class is a teacher's teaching group.
type Class struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	TeacherID   int64     `json:"teacher_id"`
	JoinCode    string    `json:"join_code"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// ClassMember is a student on a class roster.
type ClassMember struct {
	ClassID     int64     `json:"class_id"`
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}

// AssignmentQuestion is one question of a teacher-set assignment.
type AssignmentQuestion struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Marks int    `json:"marks"`
	AO    string `json:"ao,omitempty"`
	Hint  string `json:"hint,omitempty"`
}

// Assignment is a practice set a teacher sets for a class.
type Assignment struct {
	ID           int64                `json:"id"`
	ClassID      int64                `json:"class_id"`
	Title        string               `json:"title"`
	Instructions string               `json:"instructions"`
	Topic        string               `json:"topic"`
	Difficulty   string               `json:"difficulty"`
	Questions    []AssignmentQuestion `json:"questions"`
	DueAt        *time.Time           `json:"due_at,omitempty"`
	CreatedBy    int64                `json:"created_by"`
	CreatedAt    time.Time            `json:"created_at"`
}

// TotalMarks sums the marks of all questions.
func (a Assignment) TotalMarks() int {
	total := 0
	for _, q := range a.Questions {
		total += q.Marks
	}
	return total
}

// AssignmentAnswer is a student's answer to one assignment question.
type AssignmentAnswer struct {
	QuestionID string `json:"question_id" validate:"required"`
	Text       string `json:"text"`
}

// AssignmentQuestionResult is the marking of one assignment answer.
type AssignmentQuestionResult struct {
	QuestionID string  `json:"question_id"`
	Score      float64 `json:"score"`
	MaxMarks   int     `json:"max_marks"`
	Feedback   string  `json:"feedback"`
}

// AssignmentResult is a marked assignment submission.
type AssignmentResult struct {
	ID              int64                      `json:"id"`
	AssignmentID    int64                      `json:"assignment_id"`
	StudentID       int64                      `json:"student_id"`
	TotalMarks      float64                    `json:"total_marks"`
	TotalPossible   int                        `json:"total_possible"`
	Percentage      float64                    `json:"percentage"`
	OverallFeedback string                     `json:"overall_feedback"`
	Results         []AssignmentQuestionResult `json:"results"`
	Answers         []AssignmentAnswer         `json:"answers"`
	SubmittedAt     time.Time                  `json:"submitted_at"`
}
