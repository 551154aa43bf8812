package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/shopspring/decimal"

	"register-shift-service/internal/auth"
	"register-shift-service/internal/remote"
	"register-shift-service/internal/shift"
	"register-shift-service/internal/store"
)

// Coordinator is the part of *shift.Coordinator the HTTP layer drives.
type Coordinator interface {
	Reconcile(ctx context.Context, userID string) (shift.Decision, error)
	Open(ctx context.Context, userID string, openingBalance decimal.Decimal, note string, permanent bool) (*shift.ShiftRecord, error)
	Close(ctx context.Context, userID, note string) error
	Summarize(ctx context.Context, userID string) (*remote.CloseSummary, error)
	Current(ctx context.Context) (*shift.ShiftRecord, error)
	History(ctx context.Context, limit, offset int) ([]*store.ShiftEvent, error)
	Conflicts(ctx context.Context, limit, offset int) ([]*store.Conflict, error)
}

type Handler struct {
	coordinator Coordinator
	tokenAuth   *jwtauth.JWTAuth
	loc         *time.Location
}

func NewHandler(coordinator Coordinator, jwtSecret string, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		coordinator: coordinator,
		tokenAuth:   jwtauth.New("HS256", []byte(jwtSecret), nil),
		loc:         loc,
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jwtauth.Verifier(h.tokenAuth))
		r.Use(jwtauth.Authenticator(h.tokenAuth))
		r.Use(OperatorMiddleware)

		r.Get("/shift", h.GetShift)
		r.Get("/shift/decision", h.GetDecision)
		r.Post("/shift/open", h.OpenShift)
		r.Post("/shift/close", h.CloseShift)
		r.Get("/shift/summary", h.GetSummary)
		r.Get("/shift/summary.xlsx", h.ExportSummary)
		r.Get("/shift/history", h.GetHistory)
		r.Get("/shift/conflicts", h.GetConflicts)
	})

	return r
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type operatorKey struct{}

// OperatorMiddleware resolves the operator from the verified token and
// forwards the raw bearer token to the shift server.
func OperatorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			RespondWithError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		userID, ok := auth.UserIDFromClaims(claims)
		if !ok {
			RespondWithError(w, http.StatusUnauthorized, "Token has no user_id")
			return
		}

		ctx := context.WithValue(r.Context(), operatorKey{}, userID)
		ctx = auth.WithCredential(ctx, bearerToken(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken returns the raw token the verifier accepted, looking in the
// same places and order as jwtauth.Verifier.
func bearerToken(r *http.Request) string {
	if token := jwtauth.TokenFromHeader(r); token != "" {
		return token
	}
	return jwtauth.TokenFromCookie(r)
}

func operatorFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(operatorKey{}).(string)
	return userID
}
