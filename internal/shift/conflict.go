package shift

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"register-shift-service/internal/logger"
	"register-shift-service/internal/remote"
	"register-shift-service/internal/store"
)

// Conflict types recorded when the remote disagrees with the cached shift.
const (
	ConflictClosedRemotely = "closed_remotely"
	ConflictShiftMismatch  = "shift_mismatch"
	ConflictDataMismatch   = "data_mismatch"
)

// shiftSnapshot is the comparable view of a shift on either side. Only the
// calendar day of the opening matters.
type shiftSnapshot struct {
	Open           bool   `json:"open"`
	ShiftID        string `json:"shift_id,omitempty"`
	OpeningBalance string `json:"opening_balance,omitempty"`
	OpenedOn       string `json:"opened_on,omitempty"`
}

type ConflictManager struct {
	store    store.Store
	deviceID string
	loc      *time.Location
	now      func() time.Time
}

// NewConflictManager stamps conflicts with now; nil means time.Now.
func NewConflictManager(store store.Store, deviceID string, loc *time.Location, now func() time.Time) *ConflictManager {
	if now == nil {
		now = time.Now
	}
	return &ConflictManager{
		store:    store,
		deviceID: deviceID,
		loc:      loc,
		now:      now,
	}
}

func (cm *ConflictManager) localSnapshot(s *store.ShiftState) shiftSnapshot {
	snap := shiftSnapshot{Open: s.IsOpen}
	if !s.IsOpen {
		return snap
	}
	snap.ShiftID = s.ShiftID.String
	snap.OpeningBalance = s.OpeningBalance.String()
	if s.OpenedAt.Valid {
		snap.OpenedOn = s.OpenedAt.Time.In(cm.loc).Format("2006-01-02")
	}
	return snap
}

func (cm *ConflictManager) remoteSnapshot(cur *remote.CurrentShift) shiftSnapshot {
	if !cur.Active {
		return shiftSnapshot{}
	}
	return shiftSnapshot{
		Open:           true,
		ShiftID:        cur.ShiftID,
		OpeningBalance: cur.OpeningBalance.String(),
		OpenedOn:       cur.OpenedAt.In(cm.loc).Format("2006-01-02"),
	}
}

// DetectConflict compares the cached state with the remote answer. Only a
// cached open shift can conflict; an empty or closed cache simply adopts the
// remote.
func (cm *ConflictManager) DetectConflict(local *store.ShiftState, cur *remote.CurrentShift) (bool, *store.Conflict) {
	if local == nil || !local.IsOpen {
		return false, nil
	}

	localSnap := cm.localSnapshot(local)
	remoteSnap := cm.remoteSnapshot(cur)
	if calculateHash(localSnap) == calculateHash(remoteSnap) {
		return false, nil
	}

	conflictType := ConflictDataMismatch
	switch {
	case !remoteSnap.Open:
		conflictType = ConflictClosedRemotely
	case localSnap.ShiftID != "" && localSnap.ShiftID != remoteSnap.ShiftID:
		conflictType = ConflictShiftMismatch
	}

	localBytes, _ := json.Marshal(localSnap)
	remoteBytes, _ := json.Marshal(remoteSnap)

	return true, &store.Conflict{
		ID:           uuid.New().String(),
		DeviceID:     cm.deviceID,
		ConflictType: conflictType,
		LocalData:    json.RawMessage(localBytes),
		RemoteData:   json.RawMessage(remoteBytes),
		DetectedAt:   cm.now(),
	}
}

// RecordConflict persists a detected conflict. Failures are logged only.
func (cm *ConflictManager) RecordConflict(ctx context.Context, conflict *store.Conflict) {
	logger.Log.Info("Local shift cache disagrees with remote",
		zap.String("type", conflict.ConflictType),
		zap.ByteString("local", conflict.LocalData),
		zap.ByteString("remote", conflict.RemoteData),
	)
	if err := cm.store.CreateConflict(ctx, conflict); err != nil {
		logger.Log.Warn("Failed to record shift conflict", zap.Error(err))
	}
}

func calculateHash(snap shiftSnapshot) string {
	bytes, _ := json.Marshal(snap)
	sum := sha256.Sum256(bytes)
	return fmt.Sprintf("%x", sum)
}
