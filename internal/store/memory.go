package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps everything in process memory. Used for tests and for
// terminals configured without durable storage.
type MemoryStore struct {
	mu        sync.Mutex
	states    map[string]ShiftState
	conflicts []Conflict
	events    []ShiftEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]ShiftState),
	}
}

func (m *MemoryStore) GetShiftState(ctx context.Context, deviceID string) (*ShiftState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[deviceID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (m *MemoryStore) SaveShiftState(ctx context.Context, state *ShiftState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}
	m.states[state.DeviceID] = *state
	return nil
}

func (m *MemoryStore) CreateConflict(ctx context.Context, conflict *Conflict) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conflicts = append(m.conflicts, *conflict)
	return nil
}

func (m *MemoryStore) ListConflicts(ctx context.Context, deviceID string, limit, offset int) ([]*Conflict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*Conflict
	for i := len(m.conflicts) - 1; i >= 0; i-- {
		if m.conflicts[i].DeviceID == deviceID {
			c := m.conflicts[i]
			matched = append(matched, &c)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].DetectedAt.After(matched[j].DetectedAt)
	})
	return page(matched, limit, offset), nil
}

func (m *MemoryStore) CreateShiftEvent(ctx context.Context, event *ShiftEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, *event)
	return nil
}

func (m *MemoryStore) ListShiftEvents(ctx context.Context, deviceID string, limit, offset int) ([]*ShiftEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*ShiftEvent
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].DeviceID == deviceID {
			e := m.events[i]
			matched = append(matched, &e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.After(matched[j].OccurredAt)
	})
	return page(matched, limit, offset), nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
