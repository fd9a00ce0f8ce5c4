package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pavelanni/gcsemock/internal/model"
)

// LoadDraft returns the draft stored under key, or nil if there is none.
func (s *Store) LoadDraft(ctx context.Context, key string) (*model.Draft, error) {
	d := model.Draft{Key: key}
	var answers, selections string
	err := s.db.QueryRowContext(ctx,
		`SELECT paper_id, answers, selections, revision, saved_at FROM drafts WHERE key = ?`, key,
	).Scan(&d.PaperID, &answers, &selections, &d.Revision, &d.SavedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(answers, &d.Answers); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", key, err)
	}
	if err := unmarshalJSON(selections, &d.Selections); err != nil {
		return nil, fmt.Errorf("decode draft %s selections: %w", key, err)
	}
	return &d, nil
}

// SaveDraft writes a draft. The last writer wins; a write whose revision is
// not ahead of the stored one still lands but is logged.
func (s *Store) SaveDraft(ctx context.Context, d model.Draft) error {
	answers, err := marshalJSON(d.Answers)
	if err != nil {
		return fmt.Errorf("encode draft %s: %w", d.Key, err)
	}
	chosen := d.Selections
	if chosen == nil {
		chosen = map[string]string{}
	}
	selections, err := marshalJSON(chosen)
	if err != nil {
		return fmt.Errorf("encode draft %s selections: %w", d.Key, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var stored int64
	err = tx.QueryRowContext(ctx, `SELECT revision FROM drafts WHERE key = ?`, d.Key).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return err
	case d.Revision <= stored:
		s.logger.Warn("draft revision did not advance, overwriting",
			"key", d.Key, "stored_revision", stored, "revision", d.Revision)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO drafts (key, paper_id, answers, selections, revision, saved_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET paper_id = excluded.paper_id, answers = excluded.answers,
		 selections = excluded.selections, revision = excluded.revision, saved_at = excluded.saved_at`,
		d.Key, d.PaperID, answers, selections, d.Revision, d.SavedAt,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteDraft removes the draft stored under key.
func (s *Store) DeleteDraft(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE key = ?`, key)
	return err
}
