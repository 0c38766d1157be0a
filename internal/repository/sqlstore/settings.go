package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"mailcleaner/internal/repository"
)

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, s.db.Rebind(`SELECT value FROM settings WHERE key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", repository.ErrNotFound
	}
	return value, err
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	query := s.db.Rebind(`
		INSERT INTO settings (key, value, updated_ms) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_ms = excluded.updated_ms`)
	_, err := s.db.ExecContext(ctx, query, key, value, s.now().UnixMilli())
	return err
}
