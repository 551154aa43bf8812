// Package shift decides whether a terminal's register shift may keep selling,
// must be opened, or is overdue and must be closed first. The remote shift
// service is authoritative whenever it answers; the local store is the
// fallback when it does not.
package shift

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"register-shift-service/internal/auth"
	"register-shift-service/internal/logger"
	"register-shift-service/internal/remote"
	"register-shift-service/internal/store"
)

type Coordinator struct {
	remote    remote.Service
	store     store.Store
	conflicts *ConflictManager
	deviceID  string
	loc       *time.Location
	now       func() time.Time

	reconciles singleflight.Group

	mu       sync.Mutex
	inFlight map[string]bool // users with an open/close in progress
}

type Option func(*Coordinator)

// WithLocation sets the timezone whose calendar day decides staleness.
func WithLocation(loc *time.Location) Option {
	return func(c *Coordinator) { c.loc = loc }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(svc remote.Service, st store.Store, deviceID string, opts ...Option) *Coordinator {
	c := &Coordinator{
		remote:   svc,
		store:    st,
		deviceID: deviceID,
		loc:      time.Local,
		now:      time.Now,
		inFlight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.conflicts = NewConflictManager(st, deviceID, c.loc, c.now)
	return c
}

// Reconcile reports what the operator must do before selling. Remote
// reachability failures are absorbed by falling back to the local cache.
// A non-nil error always wraps ErrCacheUnavailable; the returned decision is
// still the best available answer in that case.
func (c *Coordinator) Reconcile(ctx context.Context, userID string) (Decision, error) {
	if _, ok := auth.CredentialFromContext(ctx); !ok {
		logger.Log.Debug("No credential, deferring shift reconciliation", zap.String("user_id", userID))
		return Proceed, nil
	}

	// Collapsed callers share this run, so one caller's cancellation must not
	// decide for the others.
	shared := context.WithoutCancel(ctx)
	v, err, _ := c.reconciles.Do(userID, func() (interface{}, error) {
		return c.reconcile(shared, userID)
	})
	return v.(Decision), err
}

func (c *Coordinator) reconcile(ctx context.Context, userID string) (Decision, error) {
	current, err := c.remote.CurrentShift(ctx, userID)
	if err != nil {
		logger.Log.Warn("Remote shift lookup failed, using local cache",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return c.fallback(ctx, userID)
	}

	local, err := c.store.GetShiftState(ctx, c.deviceID)
	if err != nil {
		logger.Log.Warn("Failed to read local shift cache", zap.Error(err))
		local = nil
	} else if found, conflict := c.conflicts.DetectConflict(local, current); found {
		c.conflicts.RecordConflict(ctx, conflict)
	}

	var (
		target   *store.ShiftState
		decision Decision
	)
	if current.Active {
		target = &store.ShiftState{
			DeviceID:       c.deviceID,
			IsOpen:         true,
			ShiftID:        sql.NullString{String: current.ShiftID, Valid: current.ShiftID != ""},
			OpenedAt:       sql.NullTime{Time: current.OpenedAt, Valid: true},
			OpeningBalance: current.OpeningBalance,
		}
		decision = c.decide(current.OpenedAt)
	} else {
		target = c.closedState()
		decision = MustOpen
	}

	c.recordEvent(ctx, userID, EventReconcile, decision, current.ShiftID, "")

	if local != nil && local.Equivalent(target) {
		return decision, nil
	}
	if err := c.store.SaveShiftState(ctx, target); err != nil {
		return decision, cacheError(err)
	}
	return decision, nil
}

// fallback judges from the local cache alone.
func (c *Coordinator) fallback(ctx context.Context, userID string) (Decision, error) {
	state, err := c.store.GetShiftState(ctx, c.deviceID)
	if err != nil {
		return MustOpen, cacheError(err)
	}

	decision := MustOpen
	shiftID := ""
	if state != nil && state.IsOpen {
		shiftID = state.ShiftID.String
		if state.OpenedAt.Valid {
			decision = c.decide(state.OpenedAt.Time)
		} else {
			// An open shift of unknown age is treated as overdue.
			decision = MustCloseStale
		}
	}

	c.recordEvent(ctx, userID, EventReconcileFallback, decision, shiftID, "")
	return decision, nil
}

func (c *Coordinator) decide(openedAt time.Time) Decision {
	if openedBeforeToday(openedAt, c.now(), c.loc) {
		return MustCloseStale
	}
	return Proceed
}

// openedBeforeToday compares calendar days in loc; the time of day is ignored.
func openedBeforeToday(openedAt, now time.Time, loc *time.Location) bool {
	oy, om, od := openedAt.In(loc).Date()
	ny, nm, nd := now.In(loc).Date()
	opened := time.Date(oy, om, od, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return opened.Before(today)
}

func (c *Coordinator) closedState() *store.ShiftState {
	return &store.ShiftState{DeviceID: c.deviceID}
}

// acquire marks userID as having a mutation in flight.
func (c *Coordinator) acquire(userID string) (release func(), ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight[userID] {
		return nil, false
	}
	c.inFlight[userID] = true
	return func() {
		c.mu.Lock()
		delete(c.inFlight, userID)
		c.mu.Unlock()
	}, true
}

// Open opens a shift on the remote and, only once confirmed, records it
// locally. If the remote confirmed but the local write failed, the record is
// returned together with an error wrapping ErrCacheUnavailable.
func (c *Coordinator) Open(ctx context.Context, userID string, openingBalance decimal.Decimal, note string, permanent bool) (*ShiftRecord, error) {
	if openingBalance.IsNegative() {
		return nil, &OperationError{Kind: ErrShiftOpenFailed, Message: ErrInvalidBalance.Error(), Err: ErrInvalidBalance}
	}
	if _, ok := auth.CredentialFromContext(ctx); !ok {
		return nil, &OperationError{Kind: ErrShiftOpenFailed, Message: ErrMissingCredential.Error(), Err: ErrMissingCredential}
	}

	release, ok := c.acquire(userID)
	if !ok {
		return nil, &OperationError{Kind: ErrShiftOpenFailed, Message: ErrBusy.Error(), Err: ErrBusy}
	}
	defer release()

	opened, err := c.remote.OpenShift(ctx, remote.OpenRequest{
		UserID:         userID,
		OpeningBalance: openingBalance,
		Note:           note,
		Permanent:      permanent,
	})
	if err != nil {
		oe := newOperationError(ErrShiftOpenFailed, err)
		logger.Log.Warn("Shift open rejected", zap.String("user_id", userID), zap.Error(err))
		c.recordEvent(ctx, userID, EventOpenFailed, Decision{}, "", oe.Error())
		return nil, oe
	}

	record := &ShiftRecord{
		IsOpen:         true,
		ShiftID:        opened.ShiftID,
		OpenedAt:       c.now(),
		OpeningBalance: opened.OpeningBalance,
	}

	logger.Log.Info("Shift opened",
		zap.String("user_id", userID),
		zap.String("shift_id", record.ShiftID),
		zap.String("opening_balance", record.OpeningBalance.String()),
	)
	c.recordEvent(ctx, userID, EventOpen, Proceed, record.ShiftID, note)

	err = c.store.SaveShiftState(ctx, &store.ShiftState{
		DeviceID:       c.deviceID,
		IsOpen:         true,
		ShiftID:        sql.NullString{String: record.ShiftID, Valid: true},
		OpenedAt:       sql.NullTime{Time: record.OpenedAt, Valid: true},
		OpeningBalance: record.OpeningBalance,
	})
	if err != nil {
		return record, cacheError(err)
	}
	return record, nil
}

// Close closes the user's shift on the remote and clears the local record on
// success. On failure the local record is untouched so a retry is safe.
func (c *Coordinator) Close(ctx context.Context, userID, note string) error {
	if _, ok := auth.CredentialFromContext(ctx); !ok {
		return &OperationError{Kind: ErrShiftCloseFailed, Message: ErrMissingCredential.Error(), Err: ErrMissingCredential}
	}

	release, ok := c.acquire(userID)
	if !ok {
		return &OperationError{Kind: ErrShiftCloseFailed, Message: ErrBusy.Error(), Err: ErrBusy}
	}
	defer release()

	if err := c.remote.CloseShift(ctx, userID, note); err != nil {
		oe := newOperationError(ErrShiftCloseFailed, err)
		oe.AlreadyClosed = oe.Status == http.StatusConflict
		logger.Log.Warn("Shift close rejected", zap.String("user_id", userID), zap.Error(err))
		c.recordEvent(ctx, userID, EventCloseFailed, Decision{}, "", oe.Error())
		return oe
	}

	logger.Log.Info("Shift closed", zap.String("user_id", userID))
	c.recordEvent(ctx, userID, EventClose, MustOpen, "", note)

	if err := c.store.SaveShiftState(ctx, c.closedState()); err != nil {
		return cacheError(err)
	}
	return nil
}

// Summarize fetches closing totals for the user's current shift. It returns
// nil when there is no shift to summarise or no credential yet. Totals are
// never estimated locally.
func (c *Coordinator) Summarize(ctx context.Context, userID string) (*remote.CloseSummary, error) {
	if _, ok := auth.CredentialFromContext(ctx); !ok {
		return nil, nil
	}

	decision, err := c.Reconcile(ctx, userID)
	if err != nil {
		logger.Log.Warn("Reconciling before summary", zap.Error(err))
	}
	if decision == MustOpen {
		return nil, nil
	}

	shiftID := ""
	if state, err := c.store.GetShiftState(ctx, c.deviceID); err == nil && state != nil && state.IsOpen {
		shiftID = state.ShiftID.String
	}

	summary, err := c.remote.CloseSummary(ctx, shiftID)
	if err != nil {
		logger.Log.Warn("Close summary unavailable", zap.String("shift_id", shiftID), zap.Error(err))
		return nil, newOperationError(ErrSummaryUnavailable, err)
	}

	c.recordEvent(ctx, userID, EventSummary, decision, summary.ShiftID, "")
	return summary, nil
}

// Current returns the cached shift record; a device with no cache reports a
// closed shift.
func (c *Coordinator) Current(ctx context.Context) (*ShiftRecord, error) {
	state, err := c.store.GetShiftState(ctx, c.deviceID)
	if err != nil {
		return nil, cacheError(err)
	}
	if state == nil {
		return &ShiftRecord{}, nil
	}
	rec := &ShiftRecord{
		IsOpen:         state.IsOpen,
		ShiftID:        state.ShiftID.String,
		OpeningBalance: state.OpeningBalance,
	}
	if state.OpenedAt.Valid {
		rec.OpenedAt = state.OpenedAt.Time.In(c.loc)
	}
	return rec, nil
}

func (c *Coordinator) IsOpen(ctx context.Context) (bool, error) {
	rec, err := c.Current(ctx)
	if err != nil {
		return false, err
	}
	return rec.IsOpen, nil
}

func (c *Coordinator) OpeningBalance(ctx context.Context) (decimal.Decimal, error) {
	rec, err := c.Current(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return rec.OpeningBalance, nil
}

func (c *Coordinator) OpenedAt(ctx context.Context) (time.Time, error) {
	rec, err := c.Current(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return rec.OpenedAt, nil
}

func (c *Coordinator) History(ctx context.Context, limit, offset int) ([]*store.ShiftEvent, error) {
	return c.store.ListShiftEvents(ctx, c.deviceID, limit, offset)
}

func (c *Coordinator) Conflicts(ctx context.Context, limit, offset int) ([]*store.Conflict, error) {
	return c.store.ListConflicts(ctx, c.deviceID, limit, offset)
}

// recordEvent appends to the shift history; failures are logged only.
func (c *Coordinator) recordEvent(ctx context.Context, userID, kind string, d Decision, shiftID, message string) {
	event := &store.ShiftEvent{
		ID:         uuid.New().String(),
		DeviceID:   c.deviceID,
		UserID:     userID,
		Kind:       kind,
		NeedOpen:   d.NeedOpen,
		NeedClose:  d.NeedClose,
		ShiftID:    sql.NullString{String: shiftID, Valid: shiftID != ""},
		Message:    sql.NullString{String: message, Valid: message != ""},
		OccurredAt: c.now(),
	}
	if err := c.store.CreateShiftEvent(ctx, event); err != nil {
		logger.Log.Warn("Failed to record shift event", zap.String("kind", kind), zap.Error(err))
	}
}
