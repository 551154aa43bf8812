package store

import (
	"context"
)

// Store is the terminal-local cache of shift state. Exactly one ShiftState
// exists per device; events and conflicts are append-only logs, listed newest
// first. A limit of zero or less lists everything from offset on.
type Store interface {
	// Shift state
	GetShiftState(ctx context.Context, deviceID string) (*ShiftState, error)
	SaveShiftState(ctx context.Context, state *ShiftState) error

	// Conflicts
	CreateConflict(ctx context.Context, conflict *Conflict) error
	ListConflicts(ctx context.Context, deviceID string, limit, offset int) ([]*Conflict, error)

	// History
	CreateShiftEvent(ctx context.Context, event *ShiftEvent) error
	ListShiftEvents(ctx context.Context, deviceID string, limit, offset int) ([]*ShiftEvent, error)

	// General
	Close() error
}
