package store

import (
	"context"
	"database/sql"
	"math"
	"time"

	"register-shift-service/internal/database"
)

// SQLStore persists shift state in MySQL or SQLite.
type SQLStore struct {
	db *database.Database
}

func NewSQLStore(db *database.Database) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// sqlLimit turns a non-positive limit into "no limit". OFFSET needs a LIMIT
// in MySQL, so the largest value both dialects accept is used.
func sqlLimit(limit int) int64 {
	if limit <= 0 {
		return math.MaxInt64
	}
	return int64(limit)
}

func (s *SQLStore) GetShiftState(ctx context.Context, deviceID string) (*ShiftState, error) {
	query := `SELECT device_id, is_open, shift_id, opened_at, opening_balance, updated_at
			  FROM shift_state WHERE device_id = ?`

	row := s.db.DB.QueryRowContext(ctx, query, deviceID)

	var (
		state     ShiftState
		openedAt  sql.NullInt64
		updatedAt int64
	)
	err := row.Scan(
		&state.DeviceID,
		&state.IsOpen,
		&state.ShiftID,
		&openedAt,
		&state.OpeningBalance,
		&updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if openedAt.Valid {
		state.OpenedAt = sql.NullTime{Time: fromMillis(openedAt.Int64), Valid: true}
	}
	state.UpdatedAt = fromMillis(updatedAt)

	return &state, nil
}

func (s *SQLStore) SaveShiftState(ctx context.Context, state *ShiftState) error {
	var query string
	switch s.db.Dialect {
	case database.MySQL:
		query = `INSERT INTO shift_state (device_id, is_open, shift_id, opened_at, opening_balance, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE
			  is_open = VALUES(is_open),
			  shift_id = VALUES(shift_id),
			  opened_at = VALUES(opened_at),
			  opening_balance = VALUES(opening_balance),
			  updated_at = VALUES(updated_at)`
	default:
		query = `INSERT INTO shift_state (device_id, is_open, shift_id, opened_at, opening_balance, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?)
			  ON CONFLICT(device_id) DO UPDATE SET
			  is_open = excluded.is_open,
			  shift_id = excluded.shift_id,
			  opened_at = excluded.opened_at,
			  opening_balance = excluded.opening_balance,
			  updated_at = excluded.updated_at`
	}

	var openedAt sql.NullInt64
	if state.OpenedAt.Valid {
		openedAt = sql.NullInt64{Int64: toMillis(state.OpenedAt.Time), Valid: true}
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}

	_, err := s.db.DB.ExecContext(ctx, query,
		state.DeviceID,
		state.IsOpen,
		state.ShiftID,
		openedAt,
		state.OpeningBalance.String(),
		toMillis(state.UpdatedAt),
	)

	return err
}

func (s *SQLStore) CreateConflict(ctx context.Context, conflict *Conflict) error {
	query := `INSERT INTO shift_conflicts (id, device_id, conflict_type, local_data, remote_data, detected_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.DB.ExecContext(ctx, query,
		conflict.ID,
		conflict.DeviceID,
		conflict.ConflictType,
		string(conflict.LocalData),
		string(conflict.RemoteData),
		toMillis(conflict.DetectedAt),
	)

	return err
}

func (s *SQLStore) ListConflicts(ctx context.Context, deviceID string, limit, offset int) ([]*Conflict, error) {
	query := `SELECT id, device_id, conflict_type, local_data, remote_data, detected_at
			  FROM shift_conflicts WHERE device_id = ? ORDER BY detected_at DESC LIMIT ? OFFSET ?`

	rows, err := s.db.DB.QueryContext(ctx, query, deviceID, sqlLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conflicts []*Conflict
	for rows.Next() {
		var (
			c                 Conflict
			local, remoteData string
			detectedAt        int64
		)
		err := rows.Scan(
			&c.ID,
			&c.DeviceID,
			&c.ConflictType,
			&local,
			&remoteData,
			&detectedAt,
		)
		if err != nil {
			return nil, err
		}
		c.LocalData = []byte(local)
		c.RemoteData = []byte(remoteData)
		c.DetectedAt = fromMillis(detectedAt)
		conflicts = append(conflicts, &c)
	}

	return conflicts, rows.Err()
}

func (s *SQLStore) CreateShiftEvent(ctx context.Context, event *ShiftEvent) error {
	query := `INSERT INTO shift_events (id, device_id, user_id, kind, need_open, need_close, shift_id, message, occurred_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.DB.ExecContext(ctx, query,
		event.ID,
		event.DeviceID,
		event.UserID,
		event.Kind,
		event.NeedOpen,
		event.NeedClose,
		event.ShiftID,
		event.Message,
		toMillis(event.OccurredAt),
	)

	return err
}

func (s *SQLStore) ListShiftEvents(ctx context.Context, deviceID string, limit, offset int) ([]*ShiftEvent, error) {
	query := `SELECT id, device_id, user_id, kind, need_open, need_close, shift_id, message, occurred_at
			  FROM shift_events WHERE device_id = ? ORDER BY occurred_at DESC LIMIT ? OFFSET ?`

	rows, err := s.db.DB.QueryContext(ctx, query, deviceID, sqlLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*ShiftEvent
	for rows.Next() {
		var (
			e          ShiftEvent
			occurredAt int64
		)
		err := rows.Scan(
			&e.ID,
			&e.DeviceID,
			&e.UserID,
			&e.Kind,
			&e.NeedOpen,
			&e.NeedClose,
			&e.ShiftID,
			&e.Message,
			&occurredAt,
		)
		if err != nil {
			return nil, err
		}
		e.OccurredAt = fromMillis(occurredAt)
		events = append(events, &e)
	}

	return events, rows.Err()
}
