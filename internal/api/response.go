package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"register-shift-service/internal/logger"
	"register-shift-service/internal/shift"
)

func RespondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.Warn("Failed to write response", zap.Error(err))
	}
}

func RespondWithError(w http.ResponseWriter, status int, message string) {
	RespondWithJSON(w, status, map[string]string{"error": message})
}

// respondWithShiftError maps coordinator errors onto HTTP statuses. The
// message is passed through unchanged so the operator sees what the shift
// server said.
func respondWithShiftError(w http.ResponseWriter, err error) {
	RespondWithError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shift.ErrInvalidBalance):
		return http.StatusBadRequest
	case errors.Is(err, shift.ErrMissingCredential):
		return http.StatusUnauthorized
	case errors.Is(err, shift.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, shift.ErrCacheUnavailable):
		return http.StatusInternalServerError
	}

	var oe *shift.OperationError
	if errors.As(err, &oe) {
		if oe.AlreadyClosed {
			return http.StatusConflict
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
