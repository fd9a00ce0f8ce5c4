package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pavelanni/gcsemock/internal/model"
)

const assignmentColumns = `id, class_id, title, instructions, topic, difficulty, questions, due_at, created_by, created_at`

// CreateAssignment stores an assignment and returns its ID.
func (s *Store) CreateAssignment(ctx context.Context, a model.Assignment) (int64, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	questions, err := marshalJSON(a.Questions)
	if err != nil {
		return 0, fmt.Errorf("encode assignment questions: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO assignments (class_id, title, instructions, topic, difficulty, questions, due_at, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ClassID, a.Title, a.Instructions, a.Topic, a.Difficulty, questions, a.DueAt, a.CreatedBy, a.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func scanAssignment(row scanner) (*model.Assignment, error) {
	var a model.Assignment
	var questions string
	var due sql.NullTime
	if err := row.Scan(&a.ID, &a.ClassID, &a.Title, &a.Instructions, &a.Topic, &a.Difficulty,
		&questions, &due, &a.CreatedBy, &a.CreatedAt); err != nil {
		return nil, err
	}
	if due.Valid {
		a.DueAt = &due.Time
	}
	if err := unmarshalJSON(questions, &a.Questions); err != nil {
		return nil, fmt.Errorf("decode assignment %d: %w", a.ID, err)
	}
	return &a, nil
}

// GetAssignment returns an assignment by ID, or nil if not found.
func (s *Store) GetAssignment(ctx context.Context, id int64) (*model.Assignment, error) {
	a, err := scanAssignment(s.db.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// ListAssignmentsForClass returns a class's assignments, newest first.
func (s *Store) ListAssignmentsForClass(ctx context.Context, classID int64) ([]model.Assignment, error) {
	return s.queryAssignments(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE class_id = ? ORDER BY created_at DESC, id DESC`, classID)
}

// ListAssignmentsForTeacher returns the assignments of every class a teacher owns.
func (s *Store) ListAssignmentsForTeacher(ctx context.Context, teacherID int64) ([]model.Assignment, error) {
	return s.queryAssignments(ctx,
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE class_id IN (SELECT id FROM classes WHERE teacher_id = ?) ORDER BY created_at DESC, id DESC`, teacherID)
}

// ListAssignmentsForStudent returns the assignments of every class a student belongs to.
func (s *Store) ListAssignmentsForStudent(ctx context.Context, userID int64) ([]model.Assignment, error) {
	return s.queryAssignments(ctx,
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE class_id IN (SELECT class_id FROM class_members WHERE user_id = ?) ORDER BY created_at DESC, id DESC`, userID)
}

func (s *Store) queryAssignments(ctx context.Context, query string, args ...any) ([]model.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// DeleteAssignment removes an assignment with its results.
func (s *Store) DeleteAssignment(ctx context.Context, id int64) error {
	return expectRow(s.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = ?`, id))
}

// SaveAssignmentResult stores a marked submission. A resubmission replaces
// the student's previous result.
func (s *Store) SaveAssignmentResult(ctx context.Context, r model.AssignmentResult) (int64, error) {
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = time.Now()
	}
	results, err := marshalJSON(r.Results)
	if err != nil {
		return 0, err
	}
	answers, err := marshalJSON(r.Answers)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO assignment_results (assignment_id, student_id, total_marks, total_possible, percentage,
		 overall_feedback, results, answers, submitted_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(assignment_id, student_id) DO UPDATE SET total_marks = excluded.total_marks,
		 total_possible = excluded.total_possible, percentage = excluded.percentage,
		 overall_feedback = excluded.overall_feedback, results = excluded.results,
		 answers = excluded.answers, submitted_at = excluded.submitted_at
		 RETURNING id`,
		r.AssignmentID, r.StudentID, r.TotalMarks, r.TotalPossible, r.Percentage,
		r.OverallFeedback, results, answers, r.SubmittedAt,
	).Scan(&id)
	return id, err
}

const assignmentResultColumns = `id, assignment_id, student_id, total_marks, total_possible, percentage,
	overall_feedback, results, answers, submitted_at`

func scanAssignmentResult(row scanner) (*model.AssignmentResult, error) {
	var r model.AssignmentResult
	var results, answers string
	if err := row.Scan(&r.ID, &r.AssignmentID, &r.StudentID, &r.TotalMarks, &r.TotalPossible, &r.Percentage,
		&r.OverallFeedback, &results, &answers, &r.SubmittedAt); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(results, &r.Results); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(answers, &r.Answers); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetAssignmentResult returns a student's result for an assignment, or nil.
func (s *Store) GetAssignmentResult(ctx context.Context, assignmentID, studentID int64) (*model.AssignmentResult, error) {
	r, err := scanAssignmentResult(s.db.QueryRowContext(ctx,
		`SELECT `+assignmentResultColumns+` FROM assignment_results WHERE assignment_id = ? AND student_id = ?`,
		assignmentID, studentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// ListAssignmentResults returns every submission for an assignment.
func (s *Store) ListAssignmentResults(ctx context.Context, assignmentID int64) ([]model.AssignmentResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assignmentResultColumns+` FROM assignment_results WHERE assignment_id = ? ORDER BY submitted_at`,
		assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AssignmentResult
	for rows.Next() {
		r, err := scanAssignmentResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
