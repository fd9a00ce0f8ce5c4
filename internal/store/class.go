package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pavelanni/gcsemock/internal/model"
)

// ErrNotFound is returned by updates and deletes of missing rows.
var ErrNotFound = errors.New("not found")

// joinCodeAlphabet leaves out characters that are easy to confuse.
const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newJoinCode() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = joinCodeAlphabet[int(b[i])%len(joinCodeAlphabet)]
	}
	return string(b), nil
}

// CreateClass creates a class with a fresh join code.
func (s *Store) CreateClass(ctx context.Context, name string, teacherID int64) (*model.Class, error) {
	c := &model.Class{Name: name, TeacherID: teacherID, CreatedAt: time.Now()}
	for attempt := 0; attempt < 5; attempt++ {
		code, err := newJoinCode()
		if err != nil {
			return nil, err
		}
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO classes (name, teacher_id, join_code, created_at) VALUES (?, ?, ?, ?)`,
			name, teacherID, code, c.CreatedAt,
		)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE") {
				continue
			}
			return nil, err
		}
		c.ID, err = res.LastInsertId()
		if err != nil {
			return nil, err
		}
		c.JoinCode = code
		return c, nil
	}
	return nil, fmt.Errorf("could not allocate a unique join code")
}

const classQuery = `SELECT c.id, c.name, c.teacher_id, c.join_code, c.created_at,
	(SELECT COUNT(*) FROM class_members m WHERE m.class_id = c.id)
	FROM classes c`

func scanClass(row scanner) (*model.Class, error) {
	var c model.Class
	if err := row.Scan(&c.ID, &c.Name, &c.TeacherID, &c.JoinCode, &c.CreatedAt, &c.MemberCount); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetClass returns a class by ID, or nil if not found.
func (s *Store) GetClass(ctx context.Context, id int64) (*model.Class, error) {
	c, err := scanClass(s.db.QueryRowContext(ctx, classQuery+` WHERE c.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// GetClassByJoinCode returns the class with the given join code, or nil.
func (s *Store) GetClassByJoinCode(ctx context.Context, code string) (*model.Class, error) {
	c, err := scanClass(s.db.QueryRowContext(ctx, classQuery+` WHERE c.join_code = ?`, strings.ToUpper(strings.TrimSpace(code))))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ListClassesByTeacher returns the classes a teacher owns.
func (s *Store) ListClassesByTeacher(ctx context.Context, teacherID int64) ([]model.Class, error) {
	return s.queryClasses(ctx, classQuery+` WHERE c.teacher_id = ? ORDER BY c.name`, teacherID)
}

// ListClassesForStudent returns the classes a student belongs to.
func (s *Store) ListClassesForStudent(ctx context.Context, userID int64) ([]model.Class, error) {
	return s.queryClasses(ctx,
		classQuery+` WHERE c.id IN (SELECT class_id FROM class_members WHERE user_id = ?) ORDER BY c.name`, userID)
}

func (s *Store) queryClasses(ctx context.Context, query string, args ...any) ([]model.Class, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var classes []model.Class
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		classes = append(classes, *c)
	}
	return classes, rows.Err()
}

// RenameClass changes a class name.
func (s *Store) RenameClass(ctx context.Context, id int64, name string) error {
	return expectRow(s.db.ExecContext(ctx, `UPDATE classes SET name = ? WHERE id = ?`, name, id))
}

// DeleteClass removes a class with its roster and assignments.
func (s *Store) DeleteClass(ctx context.Context, id int64) error {
	return expectRow(s.db.ExecContext(ctx, `DELETE FROM classes WHERE id = ?`, id))
}

// AddClassMember puts a student on a class roster. Adding an existing member
// is a no-op.
func (s *Store) AddClassMember(ctx context.Context, classID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO class_members (class_id, user_id, joined_at) VALUES (?, ?, ?)
		 ON CONFLICT(class_id, user_id) DO NOTHING`,
		classID, userID, time.Now(),
	)
	return err
}

// RemoveClassMember takes a student off a class roster.
func (s *Store) RemoveClassMember(ctx context.Context, classID, userID int64) error {
	return expectRow(s.db.ExecContext(ctx, `DELETE FROM class_members WHERE class_id = ? AND user_id = ?`, classID, userID))
}

// IsClassMember reports whether a student is on a class roster.
func (s *Store) IsClassMember(ctx context.Context, classID, userID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM class_members WHERE class_id = ? AND user_id = ?`, classID, userID,
	).Scan(&n)
	return n > 0, err
}

// ListClassMembers returns a class roster ordered by display name.
func (s *Store) ListClassMembers(ctx context.Context, classID int64) ([]model.ClassMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.class_id, m.user_id, u.username, u.display_name, m.joined_at
		 FROM class_members m JOIN users u ON u.id = m.user_id
		 WHERE m.class_id = ? ORDER BY u.display_name, u.username`, classID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []model.ClassMember
	for rows.Next() {
		var m model.ClassMember
		if err := rows.Scan(&m.ClassID, &m.UserID, &m.Username, &m.DisplayName, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func expectRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TeacherHasStudent reports whether a student belongs to any class the
// teacher owns.
func (s *Store) TeacherHasStudent(ctx context.Context, teacherID, studentID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM class_members m JOIN classes c ON c.id = m.class_id
		 WHERE c.teacher_id = ? AND m.user_id = ?`, teacherID, studentID,
	).Scan(&n)
	return n > 0, err
}
