package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pavelanni/gcsemock/internal/model"
)

// SavePaper inserts or replaces a paper.
func (s *Store) SavePaper(ctx context.Context, p model.ExamPaper) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	body, err := marshalJSON(p)
	if err != nil {
		return fmt.Errorf("encode paper %s: %w", p.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO papers (id, type, title, time_limit, body, created_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET type = excluded.type, title = excluded.title,
		 time_limit = excluded.time_limit, body = excluded.body`,
		p.ID, p.Type, p.Title, p.TimeLimit, body, p.CreatedAt,
	)
	return err
}

// GetPaper returns a paper by ID, or nil if not found.
func (s *Store) GetPaper(ctx context.Context, id string) (*model.ExamPaper, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM papers WHERE id = ?`, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p model.ExamPaper
	if err := unmarshalJSON(body, &p); err != nil {
		return nil, fmt.Errorf("decode paper %s: %w", id, err)
	}
	return &p, nil
}

// ListPapers returns all papers, optionally of one type, newest first.
func (s *Store) ListPapers(ctx context.Context, paperType model.PaperType) ([]model.ExamPaper, error) {
	query := `SELECT body FROM papers`
	var args []any
	if paperType != "" {
		query += ` WHERE type = ?`
		args = append(args, paperType)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var papers []model.ExamPaper
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var p model.ExamPaper
		if err := unmarshalJSON(body, &p); err != nil {
			return nil, err
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

// PaperCount returns the number of stored papers.
func (s *Store) PaperCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM papers`).Scan(&count)
	return count, err
}

// ImportPapers stores papers read from the file at path. A file whose
// contents were already imported is skipped; imported reports whether any
// paper was written.
func (s *Store) ImportPapers(ctx context.Context, path string, data []byte, papers []model.PaperImport) (imported bool, err error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	prev, err := s.importedFileHash(ctx, path)
	if err != nil {
		return false, err
	}
	if prev == hash {
		s.logger.Info("papers file unchanged, skipping import", "path", path)
		return false, nil
	}

	now := time.Now()
	for _, pi := range papers {
		p := model.ExamPaper{
			ID:        pi.ID,
			Type:      pi.Type,
			Title:     pi.Title,
			TimeLimit: pi.TimeLimit,
			Sources:   pi.Sources,
			Questions: pi.Questions,
			CreatedAt: now,
		}
		if err := s.SavePaper(ctx, p); err != nil {
			return false, fmt.Errorf("save paper %s: %w", p.ID, err)
		}
	}
	if err := s.setImportedFileHash(ctx, path, hash); err != nil {
		return false, err
	}
	s.logger.Info("imported papers", "path", path, "count", len(papers))
	return true, nil
}
