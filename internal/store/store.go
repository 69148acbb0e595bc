// Package store persists sessions, preferences and provider balance snapshots in libsql.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/panelops/panelctl/internal/config"
)

const (
	driverLibsql = "libsql"
	memoryPath   = ":memory:"
	filePrefix   = "file:"
)

// ErrNotInitialized is returned by methods called on a nil or closed Store.
var ErrNotInitialized = errors.New("store is not initialized")

// Store wraps the database connection for panelctl.
type Store struct {
	DB       *sql.DB
	driver   string
	location Location
}

// Location is where a store lives, resolved from config without touching the disk.
type Location struct {
	// DSN is handed to the driver and may carry an auth token.
	DSN string
	// Path is the local database file; empty for remote and in-memory stores.
	Path   string
	Remote bool
}

// String describes the location without credentials.
func (l Location) String() string {
	switch {
	case l.Remote:
		parsed, err := url.Parse(l.DSN)
		if err != nil {
			return "remote"
		}
		parsed.RawQuery = ""
		parsed.User = nil
		return parsed.String() + " (remote)"
	case l.Path != "":
		return l.Path
	default:
		return l.DSN
	}
}

// ResolveLocation turns store config into a driver DSN. A URL wins over a path; a bare
// path is treated as a local file.
func ResolveLocation(cfg config.StoreConfig) (Location, error) {
	if raw := strings.TrimSpace(cfg.URL); raw != "" {
		dsn, err := withAuthToken(raw, cfg.AuthToken)
		if err != nil {
			return Location{}, err
		}
		return Location{DSN: dsn, Remote: true}, nil
	}

	path := strings.TrimSpace(cfg.Path)
	switch {
	case path == "":
		return Location{}, errors.New("store path or url is required")
	case path == memoryPath:
		return Location{DSN: path}, nil
	case strings.HasPrefix(path, "libsql:"):
		return Location{DSN: path, Remote: true}, nil
	case strings.HasPrefix(path, filePrefix):
		local, err := filePath(path)
		if err != nil {
			return Location{}, err
		}
		return Location{DSN: path, Path: local}, nil
	default:
		clean := filepath.Clean(path)
		return Location{DSN: filePrefix + clean, Path: clean}, nil
	}
}

// Open initializes a store connection using the provided configuration.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = driverLibsql
	}
	if driver != driverLibsql {
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	loc, err := ResolveLocation(cfg)
	if err != nil {
		return nil, err
	}
	if err := ensureParentDir(loc.Path); err != nil {
		return nil, err
	}

	db, err := sql.Open(driverLibsql, loc.DSN)
	if err != nil {
		return nil, fmt.Errorf("open libsql store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping libsql store: %w", err)
	}
	if loc.Path != "" {
		if err := configureLocal(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &Store{DB: db, driver: driver, location: loc}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Driver returns the configured store driver.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// Location returns where the store was opened.
func (s *Store) Location() Location {
	if s == nil {
		return Location{}
	}
	return s.location
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}
	return s.DB.PingContext(ctx)
}

// configureLocal serializes writers on a local file so concurrent CLI runs and the
// gateway do not trip over SQLITE_BUSY.
func configureLocal(ctx context.Context, db *sql.DB) error {
	db.SetMaxOpenConns(1)

	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		return fmt.Errorf("enable wal: %w", err)
	}
	var timeout int
	if err := db.QueryRowContext(ctx, "PRAGMA busy_timeout=5000").Scan(&timeout); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	return nil
}

func withAuthToken(dsn, token string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return dsn, nil
	}

	query := parsed.Query()
	if query.Get("authToken") != "" {
		return dsn, nil
	}
	query.Set("authToken", token)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// filePath extracts the filesystem path from a file: DSN, dropping any query.
func filePath(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store path: %w", err)
	}
	path := parsed.Path
	if path == "" {
		path = parsed.Opaque
	}
	return strings.TrimPrefix(path, "//"), nil
}

func ensureParentDir(path string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	// #nosec G301 -- data directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
