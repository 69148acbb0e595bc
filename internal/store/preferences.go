package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PreferenceLocale is the key of the persisted preferred locale.
const PreferenceLocale = "locale"

// SetPreference stores a key/value preference.
func (s *Store) SetPreference(ctx context.Context, key, value string) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("preference key is required")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store preference: %w", err)
	}
	return nil
}

// GetPreference returns the stored value and whether it exists.
func (s *Store) GetPreference(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.DB == nil {
		return "", false, ErrNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var value string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, strings.TrimSpace(key)).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("fetch preference: %w", err)
	}
	return value, true, nil
}
