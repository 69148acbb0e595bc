package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/panelops/panelctl/internal/config"
	"github.com/stretchr/testify/require"
)

func TestResolveLocation(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.StoreConfig
		want Location
		desc string
	}{
		{
			name: "remote url gets token",
			cfg:  config.StoreConfig{URL: "libsql://example.turso.io", AuthToken: "token123"},
			want: Location{DSN: "libsql://example.turso.io?authToken=token123", Remote: true},
			desc: "libsql://example.turso.io (remote)",
		},
		{
			name: "existing query kept",
			cfg:  config.StoreConfig{URL: "libsql://example.turso.io?foo=bar", AuthToken: "token123"},
			want: Location{DSN: "libsql://example.turso.io?authToken=token123&foo=bar", Remote: true},
			desc: "libsql://example.turso.io (remote)",
		},
		{
			name: "url wins over path",
			cfg:  config.StoreConfig{URL: "libsql://example.turso.io", Path: "/tmp/ignored.db"},
			want: Location{DSN: "libsql://example.turso.io", Remote: true},
			desc: "libsql://example.turso.io (remote)",
		},
		{
			name: "file prefix",
			cfg:  config.StoreConfig{Path: "file:./panelctl.db"},
			want: Location{DSN: "file:./panelctl.db", Path: "./panelctl.db"},
			desc: "./panelctl.db",
		},
		{
			name: "plain path",
			cfg:  config.StoreConfig{Path: "/var/lib/panelctl//panelctl.db"},
			want: Location{DSN: "file:/var/lib/panelctl/panelctl.db", Path: "/var/lib/panelctl/panelctl.db"},
			desc: "/var/lib/panelctl/panelctl.db",
		},
		{
			name: "memory",
			cfg:  config.StoreConfig{Path: ":memory:"},
			want: Location{DSN: ":memory:"},
			desc: ":memory:",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			loc, err := ResolveLocation(tc.cfg)
			require.NoError(t, err)
			require.Equal(t, tc.want, loc)
			require.Equal(t, tc.desc, loc.String())
		})
	}

	t.Run("missing", func(t *testing.T) {
		_, err := ResolveLocation(config.StoreConfig{})
		require.Error(t, err)
	})
}

func TestEnsureParentDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ensureParentDir(filepath.Join(dir, "nested", "panelctl.db")))
	require.DirExists(t, filepath.Join(dir, "nested"))
	require.NoError(t, ensureParentDir(""))
}

func TestNilStore(t *testing.T) {
	var s *Store
	ctx := context.Background()

	require.NoError(t, s.Close())
	require.Empty(t, s.Driver())
	require.Equal(t, Location{}, s.Location())
	require.ErrorIs(t, s.Ping(ctx), ErrNotInitialized)
	require.ErrorIs(t, s.Migrate(ctx), ErrNotInitialized)
	require.ErrorIs(t, s.SaveSession(ctx, SessionRecord{}), ErrNotInitialized)
	_, err := s.GetSession(ctx, "https://panel.example.test")
	require.ErrorIs(t, err, ErrNotInitialized)
	_, _, err = s.GetPreference(ctx, PreferenceLocale)
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "postgres", Path: "x"})
	require.ErrorContains(t, err, "unsupported store driver")
}

func TestNormalizeEndpoint(t *testing.T) {
	require.Equal(t, "https://panel.example.test/api/v1", normalizeEndpoint(" https://panel.example.test/api/v1/ "))
}
