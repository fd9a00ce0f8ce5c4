package store

import (
	"context"
	"database/sql"
	"errors"
)

// Keys under this prefix record the sha256 of imported papers files.
const importHashPrefix = "import_hash:"

// SetMetadata upserts a key-value pair in the exam_metadata table.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exam_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key, or "" when unset.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM exam_metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s *Store) importedFileHash(ctx context.Context, source string) (string, error) {
	return s.GetMetadata(ctx, importHashPrefix+source)
}

func (s *Store) setImportedFileHash(ctx context.Context, source, hash string) error {
	return s.SetMetadata(ctx, importHashPrefix+source, hash)
}
