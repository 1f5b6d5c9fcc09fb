package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestUp_CreatesTablesAndIsRepeatable(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, Up(ctx, db))
	require.NoError(t, Up(ctx, db))

	for _, table := range []string{"notes", "pending_operations", "cached_assets", "metadata"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestUp_UniqueSourceURL(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Up(context.Background(), db))

	_, err = db.Exec(`INSERT INTO cached_assets (id, source_url, blob, cached_at) VALUES ('a', 'u', x'00', 1)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO cached_assets (id, source_url, blob, cached_at) VALUES ('b', 'u', x'00', 2)`)
	require.Error(t, err)
}
