package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// maxLogEntries caps the per-device event and conflict lists.
const maxLogEntries = 1000

// RedisStore keeps shift state as JSON values under per-device keys.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func stateKey(deviceID string) string    { return "shift:state:" + deviceID }
func eventsKey(deviceID string) string   { return "shift:events:" + deviceID }
func conflictKey(deviceID string) string { return "shift:conflicts:" + deviceID }

type redisShiftState struct {
	DeviceID       string          `json:"device_id"`
	IsOpen         bool            `json:"is_open"`
	ShiftID        *string         `json:"shift_id,omitempty"`
	OpenedAt       *time.Time      `json:"opened_at,omitempty"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type redisShiftEvent struct {
	ID         string    `json:"id"`
	DeviceID   string    `json:"device_id"`
	UserID     string    `json:"user_id"`
	Kind       string    `json:"kind"`
	NeedOpen   bool      `json:"need_open"`
	NeedClose  bool      `json:"need_close"`
	ShiftID    *string   `json:"shift_id,omitempty"`
	Message    *string   `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func (r *RedisStore) GetShiftState(ctx context.Context, deviceID string) (*ShiftState, error) {
	data, err := r.client.Get(ctx, stateKey(deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rs redisShiftState
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("corrupt shift state for %s: %w", deviceID, err)
	}

	state := &ShiftState{
		DeviceID:       rs.DeviceID,
		IsOpen:         rs.IsOpen,
		ShiftID:        nullString(rs.ShiftID),
		OpeningBalance: rs.OpeningBalance,
		UpdatedAt:      rs.UpdatedAt,
	}
	if rs.OpenedAt != nil {
		state.OpenedAt = sql.NullTime{Time: *rs.OpenedAt, Valid: true}
	}
	return state, nil
}

func (r *RedisStore) SaveShiftState(ctx context.Context, state *ShiftState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}
	rs := redisShiftState{
		DeviceID:       state.DeviceID,
		IsOpen:         state.IsOpen,
		ShiftID:        stringPtr(state.ShiftID),
		OpeningBalance: state.OpeningBalance,
		UpdatedAt:      state.UpdatedAt,
	}
	if state.OpenedAt.Valid {
		t := state.OpenedAt.Time
		rs.OpenedAt = &t
	}

	data, err := json.Marshal(rs)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, stateKey(state.DeviceID), data, 0).Err()
}

func (r *RedisStore) push(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, maxLogEntries-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) rangeOf(ctx context.Context, key string, limit, offset int) ([]string, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(offset + limit - 1)
	}
	return r.client.LRange(ctx, key, int64(offset), stop).Result()
}

func (r *RedisStore) CreateConflict(ctx context.Context, conflict *Conflict) error {
	return r.push(ctx, conflictKey(conflict.DeviceID), conflict)
}

func (r *RedisStore) ListConflicts(ctx context.Context, deviceID string, limit, offset int) ([]*Conflict, error) {
	items, err := r.rangeOf(ctx, conflictKey(deviceID), limit, offset)
	if err != nil {
		return nil, err
	}

	var conflicts []*Conflict
	for _, item := range items {
		var c Conflict
		if err := json.Unmarshal([]byte(item), &c); err != nil {
			return nil, fmt.Errorf("corrupt conflict entry: %w", err)
		}
		conflicts = append(conflicts, &c)
	}
	return conflicts, nil
}

func (r *RedisStore) CreateShiftEvent(ctx context.Context, event *ShiftEvent) error {
	return r.push(ctx, eventsKey(event.DeviceID), redisShiftEvent{
		ID:         event.ID,
		DeviceID:   event.DeviceID,
		UserID:     event.UserID,
		Kind:       event.Kind,
		NeedOpen:   event.NeedOpen,
		NeedClose:  event.NeedClose,
		ShiftID:    stringPtr(event.ShiftID),
		Message:    stringPtr(event.Message),
		OccurredAt: event.OccurredAt,
	})
}

func (r *RedisStore) ListShiftEvents(ctx context.Context, deviceID string, limit, offset int) ([]*ShiftEvent, error) {
	items, err := r.rangeOf(ctx, eventsKey(deviceID), limit, offset)
	if err != nil {
		return nil, err
	}

	var events []*ShiftEvent
	for _, item := range items {
		var re redisShiftEvent
		if err := json.Unmarshal([]byte(item), &re); err != nil {
			return nil, fmt.Errorf("corrupt shift event: %w", err)
		}
		events = append(events, &ShiftEvent{
			ID:         re.ID,
			DeviceID:   re.DeviceID,
			UserID:     re.UserID,
			Kind:       re.Kind,
			NeedOpen:   re.NeedOpen,
			NeedClose:  re.NeedClose,
			ShiftID:    nullString(re.ShiftID),
			Message:    nullString(re.Message),
			OccurredAt: re.OccurredAt,
		})
	}
	return events, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
