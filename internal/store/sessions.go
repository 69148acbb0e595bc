package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Cookie is a persisted session cookie.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
}

// SessionRecord is the persisted session for one API endpoint.
type SessionRecord struct {
	Endpoint     string
	Email        string
	AccessToken  string
	RefreshToken string
	Cookies      []Cookie
	ExpiresAt    *time.Time
	UpdatedAt    time.Time
}

// SaveSession inserts or replaces the session for record.Endpoint.
func (s *Store) SaveSession(ctx context.Context, record SessionRecord) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	endpoint := normalizeEndpoint(record.Endpoint)
	if endpoint == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(record.AccessToken) == "" {
		return errors.New("access token is required")
	}

	cookies := record.Cookies
	if cookies == nil {
		cookies = []Cookie{}
	}
	payload, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("marshal cookies: %w", err)
	}

	var expiresAt sql.NullInt64
	if record.ExpiresAt != nil {
		expiresAt = sql.NullInt64{Int64: record.ExpiresAt.Unix(), Valid: true}
	}
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO sessions (endpoint, email, access_token, refresh_token, cookies, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET
			email = excluded.email,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			cookies = excluded.cookies,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, endpoint, record.Email, record.AccessToken, record.RefreshToken, string(payload), expiresAt, updatedAt.Unix())
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	return nil
}

// GetSession returns the session for endpoint, or nil when none is stored.
func (s *Store) GetSession(ctx context.Context, endpoint string) (*SessionRecord, error) {
	if s == nil || s.DB == nil {
		return nil, ErrNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	endpoint = normalizeEndpoint(endpoint)
	if endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	var (
		record    SessionRecord
		cookies   string
		expiresAt sql.NullInt64
		updatedAt int64
	)
	row := s.DB.QueryRowContext(ctx, `
		SELECT endpoint, email, access_token, refresh_token, cookies, expires_at, updated_at
		FROM sessions
		WHERE endpoint = ?
	`, endpoint)
	if err := row.Scan(&record.Endpoint, &record.Email, &record.AccessToken, &record.RefreshToken, &cookies, &expiresAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch session: %w", err)
	}

	if strings.TrimSpace(cookies) != "" {
		if err := json.Unmarshal([]byte(cookies), &record.Cookies); err != nil {
			return nil, fmt.Errorf("decode cookies: %w", err)
		}
	}
	if expiresAt.Valid {
		value := time.Unix(expiresAt.Int64, 0).UTC()
		record.ExpiresAt = &value
	}
	record.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &record, nil
}

// DeleteSession removes the session for endpoint. Deleting a missing session is not an error.
func (s *Store) DeleteSession(ctx context.Context, endpoint string) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	endpoint = normalizeEndpoint(endpoint)
	if endpoint == "" {
		return errors.New("endpoint is required")
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE endpoint = ?`, endpoint); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func normalizeEndpoint(endpoint string) string {
	return strings.TrimRight(strings.TrimSpace(endpoint), "/")
}
