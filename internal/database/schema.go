package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Timestamps are stored as unix milliseconds so both dialects read them back
// identically.
var schemas = map[Dialect][]string{
	MySQL: {
		`CREATE TABLE IF NOT EXISTS shift_state (
			device_id       VARCHAR(64) NOT NULL PRIMARY KEY,
			is_open         BOOLEAN NOT NULL DEFAULT FALSE,
			shift_id        VARCHAR(128) NULL,
			opened_at       BIGINT NULL,
			opening_balance DECIMAL(20,4) NOT NULL DEFAULT 0,
			updated_at      BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS shift_events (
			id          CHAR(36) NOT NULL PRIMARY KEY,
			device_id   VARCHAR(64) NOT NULL,
			user_id     VARCHAR(64) NOT NULL,
			kind        VARCHAR(32) NOT NULL,
			need_open   BOOLEAN NOT NULL DEFAULT FALSE,
			need_close  BOOLEAN NOT NULL DEFAULT FALSE,
			shift_id    VARCHAR(128) NULL,
			message     TEXT NULL,
			occurred_at BIGINT NOT NULL,
			INDEX idx_shift_events_device (device_id, occurred_at)
		)`,
		`CREATE TABLE IF NOT EXISTS shift_conflicts (
			id            CHAR(36) NOT NULL PRIMARY KEY,
			device_id     VARCHAR(64) NOT NULL,
			conflict_type VARCHAR(32) NOT NULL,
			local_data    TEXT NOT NULL,
			remote_data   TEXT NOT NULL,
			detected_at   BIGINT NOT NULL,
			INDEX idx_shift_conflicts_device (device_id, detected_at)
		)`,
	},
	SQLite: {
		`CREATE TABLE IF NOT EXISTS shift_state (
			device_id       TEXT NOT NULL PRIMARY KEY,
			is_open         INTEGER NOT NULL DEFAULT 0,
			shift_id        TEXT NULL,
			opened_at       INTEGER NULL,
			opening_balance TEXT NOT NULL DEFAULT '0',
			updated_at      INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS shift_events (
			id          TEXT NOT NULL PRIMARY KEY,
			device_id   TEXT NOT NULL,
			user_id     TEXT NOT NULL,
			kind        TEXT NOT NULL,
			need_open   INTEGER NOT NULL DEFAULT 0,
			need_close  INTEGER NOT NULL DEFAULT 0,
			shift_id    TEXT NULL,
			message     TEXT NULL,
			occurred_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_shift_events_device ON shift_events (device_id, occurred_at)`,
		`CREATE TABLE IF NOT EXISTS shift_conflicts (
			id            TEXT NOT NULL PRIMARY KEY,
			device_id     TEXT NOT NULL,
			conflict_type TEXT NOT NULL,
			local_data    TEXT NOT NULL,
			remote_data   TEXT NOT NULL,
			detected_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_shift_conflicts_device ON shift_conflicts (device_id, detected_at)`,
	},
}

// Migrate creates the state tables if they do not exist yet.
func (d *Database) Migrate(ctx context.Context) error {
	stmts, ok := schemas[d.Dialect]
	if !ok {
		return fmt.Errorf("no schema for dialect %q", d.Dialect)
	}
	return d.ExecTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		return nil
	})
}
