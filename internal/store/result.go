package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/gcsemock/internal/model"
)

const resultColumns = `id, user_id, paper_id, paper_type, total_score, max_score, percentage, grade,
	summary, questions, duration, model_answers, pdf_url, created_at`

// SaveExamResult stores a marked result and returns its ID.
func (s *Store) SaveExamResult(ctx context.Context, r model.ExamResult) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	questions, err := marshalJSON(r.Questions)
	if err != nil {
		return "", fmt.Errorf("encode result questions: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exam_results (`+resultColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.PaperID, r.PaperType, r.TotalScore, r.MaxScore, r.Percentage, r.Grade,
		r.Summary, questions, r.Duration, r.ModelAnswers, r.PDFURL, r.CreatedAt,
	)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

// SetExamResultPDF records the URL of a result's PDF copy.
func (s *Store) SetExamResultPDF(ctx context.Context, id, url string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE exam_results SET pdf_url = ? WHERE id = ?`, url, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("result %s not found", id)
	}
	return nil
}

// GetExamResult returns a result by ID, or nil if not found.
func (s *Store) GetExamResult(ctx context.Context, id string) (*model.ExamResult, error) {
	r, err := scanResult(s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM exam_results WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListExamResults returns a user's results, newest first.
func (s *Store) ListExamResults(ctx context.Context, userID int64) ([]model.ExamResult, error) {
	return s.queryResults(ctx, `SELECT `+resultColumns+` FROM exam_results WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

// ListAllExamResults returns every result, optionally of one paper type,
// oldest first.
func (s *Store) ListAllExamResults(ctx context.Context, paperType model.PaperType) ([]model.ExamResult, error) {
	query := `SELECT ` + resultColumns + ` FROM exam_results`
	var args []any
	if paperType != "" {
		query += ` WHERE paper_type = ?`
		args = append(args, paperType)
	}
	query += ` ORDER BY created_at, id`
	return s.queryResults(ctx, query, args...)
}

func (s *Store) queryResults(ctx context.Context, query string, args ...any) ([]model.ExamResult, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.ExamResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (*model.ExamResult, error) {
	var r model.ExamResult
	var questions string
	err := row.Scan(&r.ID, &r.UserID, &r.PaperID, &r.PaperType, &r.TotalScore, &r.MaxScore, &r.Percentage, &r.Grade,
		&r.Summary, &questions, &r.Duration, &r.ModelAnswers, &r.PDFURL, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(questions, &r.Questions); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", r.ID, err)
	}
	return &r, nil
}
