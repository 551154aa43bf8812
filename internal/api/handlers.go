package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"register-shift-service/internal/logger"
	"register-shift-service/internal/report"
	"register-shift-service/internal/shift"
	"register-shift-service/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type decisionResponse struct {
	NeedOpen  bool   `json:"need_open"`
	NeedClose bool   `json:"need_close"`
	Action    string `json:"action"`
}

type openRequest struct {
	OpeningBalance *decimal.Decimal `json:"opening_balance"`
	Note           string           `json:"note"`
	Permanent      bool             `json:"permanent"`
}

type closeRequest struct {
	Note string `json:"note"`
}

type eventResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Kind       string    `json:"kind"`
	NeedOpen   bool      `json:"need_open"`
	NeedClose  bool      `json:"need_close"`
	ShiftID    string    `json:"shift_id,omitempty"`
	Message    string    `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type conflictResponse struct {
	ID           string          `json:"id"`
	ConflictType string          `json:"conflict_type"`
	LocalData    json.RawMessage `json:"local_data"`
	RemoteData   json.RawMessage `json:"remote_data"`
	DetectedAt   time.Time       `json:"detected_at"`
}

func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	rec, err := h.coordinator.Current(r.Context())
	if err != nil {
		respondWithShiftError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, rec)
}

func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	userID := operatorFromContext(r.Context())

	decision, err := h.coordinator.Reconcile(r.Context(), userID)
	if err != nil {
		// The decision is still usable; only the cache is degraded.
		logger.Log.Warn("Reconcile reported a cache failure", zap.String("user_id", userID), zap.Error(err))
	}
	RespondWithJSON(w, http.StatusOK, decisionResponse{
		NeedOpen:  decision.NeedOpen,
		NeedClose: decision.NeedClose,
		Action:    decision.String(),
	})
}

func (h *Handler) OpenShift(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.OpeningBalance == nil {
		RespondWithError(w, http.StatusBadRequest, "opening_balance is required")
		return
	}

	rec, err := h.coordinator.Open(r.Context(), operatorFromContext(r.Context()), *req.OpeningBalance, req.Note, req.Permanent)
	if err != nil && rec == nil {
		respondWithShiftError(w, err)
		return
	}
	if err != nil {
		// Opened remotely; only the local copy is missing.
		logger.Log.Error("Shift opened but not cached", zap.String("shift_id", rec.ShiftID), zap.Error(err))
	}
	RespondWithJSON(w, http.StatusCreated, rec)
}

func (h *Handler) CloseShift(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := decodeOptional(r.Body, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.coordinator.Close(r.Context(), operatorFromContext(r.Context()), req.Note); err != nil {
		respondWithShiftError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.coordinator.Summarize(r.Context(), operatorFromContext(r.Context()))
	if err != nil {
		respondWithShiftError(w, err)
		return
	}
	if summary == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	RespondWithJSON(w, http.StatusOK, summary)
}

func (h *Handler) ExportSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.coordinator.Summarize(r.Context(), operatorFromContext(r.Context()))
	if err != nil {
		respondWithShiftError(w, err)
		return
	}
	if summary == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteCloseSummary(&buf, summary, h.loc); err != nil {
		logger.Log.Error("Failed to render close summary", zap.Error(err))
		RespondWithError(w, http.StatusInternalServerError, "Failed to render close summary")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="close-summary-`+summary.ShiftID+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	events, err := h.coordinator.History(r.Context(), limit, offset)
	if err != nil {
		logger.Log.Error("Failed to list shift events", zap.Error(err))
		RespondWithError(w, http.StatusInternalServerError, "Failed to list shift history")
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toEventResponse(e))
	}
	RespondWithJSON(w, http.StatusOK, out)
}

func (h *Handler) GetConflicts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	conflicts, err := h.coordinator.Conflicts(r.Context(), limit, offset)
	if err != nil {
		logger.Log.Error("Failed to list shift conflicts", zap.Error(err))
		RespondWithError(w, http.StatusInternalServerError, "Failed to list conflicts")
		return
	}

	out := make([]conflictResponse, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, conflictResponse{
			ID:           c.ID,
			ConflictType: c.ConflictType,
			LocalData:    c.LocalData,
			RemoteData:   c.RemoteData,
			DetectedAt:   c.DetectedAt,
		})
	}
	RespondWithJSON(w, http.StatusOK, out)
}

func toEventResponse(e *store.ShiftEvent) eventResponse {
	return eventResponse{
		ID:         e.ID,
		UserID:     e.UserID,
		Kind:       e.Kind,
		NeedOpen:   e.NeedOpen,
		NeedClose:  e.NeedClose,
		ShiftID:    e.ShiftID.String,
		Message:    e.Message.String,
		OccurredAt: e.OccurredAt,
	}
}

// decodeOptional decodes a JSON body that may be absent.
func decodeOptional(body io.Reader, v interface{}) error {
	err := json.NewDecoder(body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

var _ Coordinator = (*shift.Coordinator)(nil)
