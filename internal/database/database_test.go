package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"register-shift-service/internal/config"
)

func TestNewDatabase_SQLiteMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := NewDatabase(config.StateStorage{Type: "sqlite", FilePath: path})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, SQLite, db.Dialect)
	require.NoError(t, db.Migrate(context.Background()))
	// Idempotent
	require.NoError(t, db.Migrate(context.Background()))

	for _, table := range []string{"shift_state", "shift_events", "shift_conflicts"} {
		var name string
		err := db.DB.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestNewDatabase_UnsupportedType(t *testing.T) {
	_, err := NewDatabase(config.StateStorage{Type: "redis"})
	assert.Error(t, err)
}

func TestExecTx_RollsBack(t *testing.T) {
	db, err := NewDatabase(config.StateStorage{Type: "sqlite"})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate(context.Background()))

	ctx := context.Background()
	boom := assert.AnError
	err = db.ExecTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO shift_state (device_id, updated_at) VALUES ('t1', 0)`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.DB.QueryRow(`SELECT COUNT(*) FROM shift_state`).Scan(&n))
	assert.Zero(t, n)
}
