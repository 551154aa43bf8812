package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type ShiftState struct {
	DeviceID       string          `db:"device_id"`
	IsOpen         bool            `db:"is_open"`
	ShiftID        sql.NullString  `db:"shift_id"`
	OpenedAt       sql.NullTime    `db:"opened_at"`
	OpeningBalance decimal.Decimal `db:"opening_balance"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// Equivalent reports whether two states describe the same shift, ignoring
// UpdatedAt. Times compare at millisecond precision, as persisted.
func (s *ShiftState) Equivalent(o *ShiftState) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.IsOpen == o.IsOpen &&
		s.ShiftID == o.ShiftID &&
		s.OpenedAt.Valid == o.OpenedAt.Valid &&
		s.OpenedAt.Time.UnixMilli() == o.OpenedAt.Time.UnixMilli() &&
		s.OpeningBalance.Equal(o.OpeningBalance)
}

type Conflict struct {
	ID           string          `db:"id"`
	DeviceID     string          `db:"device_id"`
	ConflictType string          `db:"conflict_type"`
	LocalData    json.RawMessage `db:"local_data"`
	RemoteData   json.RawMessage `db:"remote_data"`
	DetectedAt   time.Time       `db:"detected_at"`
}

type ShiftEvent struct {
	ID         string         `db:"id"`
	DeviceID   string         `db:"device_id"`
	UserID     string         `db:"user_id"`
	Kind       string         `db:"kind"`
	NeedOpen   bool           `db:"need_open"`
	NeedClose  bool           `db:"need_close"`
	ShiftID    sql.NullString `db:"shift_id"`
	Message    sql.NullString `db:"message"`
	OccurredAt time.Time      `db:"occurred_at"`
}
