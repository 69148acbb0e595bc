package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// BalanceSnapshot is one provider balance observed during a sync.
type BalanceSnapshot struct {
	Endpoint     string    `json:"endpoint" yaml:"endpoint"`
	ProviderID   int64     `json:"provider_id" yaml:"provider_id"`
	ProviderName string    `json:"provider_name" yaml:"provider_name"`
	Balance      string    `json:"balance" yaml:"balance"`
	Currency     string    `json:"currency" yaml:"currency"`
	SyncedAt     time.Time `json:"synced_at" yaml:"synced_at"`
}

// RecordBalances appends snapshots in a single transaction.
func (s *Store) RecordBalances(ctx context.Context, snapshots []BalanceSnapshot) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if len(snapshots) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin balance sync: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	for _, snap := range snapshots {
		endpoint := normalizeEndpoint(snap.Endpoint)
		if endpoint == "" {
			return errors.New("endpoint is required")
		}
		syncedAt := snap.SyncedAt
		if syncedAt.IsZero() {
			syncedAt = time.Now()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO provider_balances (endpoint, provider_id, provider_name, balance, currency, synced_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, endpoint, snap.ProviderID, snap.ProviderName, snap.Balance, snap.Currency, syncedAt.Unix()); err != nil {
			return fmt.Errorf("store balance for provider %d: %w", snap.ProviderID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit balance sync: %w", err)
	}
	return nil
}

// LatestBalances returns the most recent snapshot per provider for endpoint.
func (s *Store) LatestBalances(ctx context.Context, endpoint string) ([]BalanceSnapshot, error) {
	if s == nil || s.DB == nil {
		return nil, ErrNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT b.endpoint, b.provider_id, b.provider_name, b.balance, b.currency, b.synced_at
		FROM provider_balances b
		WHERE b.endpoint = ?
		  AND b.id = (
			SELECT id FROM provider_balances
			WHERE endpoint = b.endpoint AND provider_id = b.provider_id
			ORDER BY synced_at DESC, id DESC
			LIMIT 1
		  )
		ORDER BY b.provider_id
	`, normalizeEndpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var out []BalanceSnapshot
	for rows.Next() {
		var (
			snap     BalanceSnapshot
			syncedAt int64
		)
		if err := rows.Scan(&snap.Endpoint, &snap.ProviderID, &snap.ProviderName, &snap.Balance, &snap.Currency, &syncedAt); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		snap.SyncedAt = time.Unix(syncedAt, 0).UTC()
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	return out, nil
}
