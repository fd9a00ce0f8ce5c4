package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/gcsemock/internal/model"
)

// ExportResults builds export-ready student results from all stored exam
// results, optionally of one paper type.
func (s *Store) ExportResults(ctx context.Context, paperType model.PaperType) ([]model.StudentResult, error) {
	all, err := s.ListAllExamResults(ctx, paperType)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	// Track result count per student for attempt_number.
	attempts := make(map[int64]int)
	users := make(map[int64]*model.User)
	papers := make(map[string]*model.ExamPaper)

	var out []model.StudentResult
	for _, r := range all {
		attempts[r.UserID]++

		user, ok := users[r.UserID]
		if !ok {
			user, err = s.GetUserByID(ctx, r.UserID)
			if err != nil {
				return nil, fmt.Errorf("get user %d: %w", r.UserID, err)
			}
			users[r.UserID] = user
		}
		paper, ok := papers[r.PaperID]
		if !ok {
			paper, err = s.GetPaper(ctx, r.PaperID)
			if err != nil {
				return nil, fmt.Errorf("get paper %s: %w", r.PaperID, err)
			}
			papers[r.PaperID] = paper
		}

		sr := model.StudentResult{
			AttemptNumber: attempts[r.UserID],
			PaperID:       r.PaperID,
			Duration:      r.Duration,
			SubmittedAt:   r.CreatedAt,
			TotalScore:    r.TotalScore,
			MaxScore:      r.MaxScore,
			Grade:         r.Grade,
		}
		if user != nil {
			sr.Username = user.Username
			sr.DisplayName = user.DisplayName
		}
		if paper != nil {
			sr.PaperTitle = paper.Title
		}

		for _, m := range r.Questions {
			qr := model.QuestionResult{
				Number:   m.QuestionID,
				Marks:    m.MaxMarks,
				Score:    m.Score,
				Level:    m.Level,
				Feedback: m.Feedback,
			}
			if paper != nil {
				if q, ok := paper.Question(m.QuestionID); ok {
					qr.Number = q.Number
					qr.Text = q.Text
					qr.AOs = q.AOs
				}
			}
			sr.Questions = append(sr.Questions, qr)
		}
		out = append(out, sr)
	}
	return out, nil
}
