package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"register-shift-service/internal/auth"
	"register-shift-service/internal/remote"
	"register-shift-service/internal/report"
	"register-shift-service/internal/shift"
	"register-shift-service/internal/store"
)

const secret = "api-test-secret"

var (
	wib = time.FixedZone("WIB", 7*3600)
	now = time.Date(2026, 10, 19, 10, 0, 0, 0, wib)
)

// stubRemote is a one-user shift server that records the bearer tokens it saw.
type stubRemote struct {
	mu       sync.Mutex
	current  remote.CurrentShift
	closeErr error
	tokens   []string
}

func (s *stubRemote) seen(ctx context.Context) {
	token, _ := auth.CredentialFromContext(ctx)
	s.tokens = append(s.tokens, token)
}

func (s *stubRemote) CurrentShift(ctx context.Context, userID string) (*remote.CurrentShift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen(ctx)
	cur := s.current
	return &cur, nil
}

func (s *stubRemote) OpenShift(ctx context.Context, req remote.OpenRequest) (*remote.OpenedShift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen(ctx)
	s.current = remote.CurrentShift{Active: true, ShiftID: "SHF-1", OpeningBalance: req.OpeningBalance, OpenedAt: now}
	return &remote.OpenedShift{ShiftID: "SHF-1", OpeningBalance: req.OpeningBalance, OpenedAt: now}, nil
}

func (s *stubRemote) CloseShift(ctx context.Context, userID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen(ctx)
	if s.closeErr != nil {
		return s.closeErr
	}
	s.current = remote.CurrentShift{}
	return nil
}

func (s *stubRemote) CloseSummary(ctx context.Context, shiftID string) (*remote.CloseSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen(ctx)
	return &remote.CloseSummary{
		ShiftID:          shiftID,
		CashTotal:        decimal.NewFromInt(250000),
		TransactionCount: 12,
		OpeningBalance:   s.current.OpeningBalance,
		OpenedAt:         s.current.OpenedAt,
	}, nil
}

type testServer struct {
	*httptest.Server
	remote *stubRemote
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	svc := &stubRemote{}
	coordinator := shift.NewCoordinator(svc, store.NewMemoryStore(), "till-1",
		shift.WithLocation(wib),
		shift.WithClock(func() time.Time { return now }),
	)
	srv := httptest.NewServer(NewHandler(coordinator, secret, wib).Routes())
	t.Cleanup(srv.Close)

	token, err := auth.IssueToken([]byte(secret), "7", "cashier", time.Hour)
	require.NoError(t, err)
	return &testServer{Server: srv, remote: svc, token: token}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ts.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthCheckIsPublic(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/shift")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	forged, err := auth.IssueToken([]byte("other-secret"), "7", "cashier", time.Hour)
	require.NoError(t, err)
	ts.token = forged
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/v1/shift", "").StatusCode)
}

func TestTokenWithoutUserID(t *testing.T) {
	ts := newTestServer(t)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "cashier",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	ts.token = signed

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/v1/shift/decision", "").StatusCode)
}

func TestCookieTokenIsForwarded(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/shift/decision", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: ts.token})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var d decisionResponse
	decode(t, resp, &d)
	assert.Equal(t, decisionResponse{NeedOpen: true, Action: "open"}, d)

	ts.remote.mu.Lock()
	defer ts.remote.mu.Unlock()
	assert.Equal(t, []string{ts.token}, ts.remote.tokens)
}

func TestShiftLifecycle(t *testing.T) {
	ts := newTestServer(t)

	var d decisionResponse
	resp := ts.do(t, http.MethodGet, "/api/v1/shift/decision", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &d)
	assert.Equal(t, decisionResponse{NeedOpen: true, Action: "open"}, d)

	resp = ts.do(t, http.MethodGet, "/api/v1/shift/summary", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/v1/shift/open", `{"opening_balance":"100000","note":"float"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var rec shift.ShiftRecord
	decode(t, resp, &rec)
	assert.True(t, rec.IsOpen)
	assert.Equal(t, "SHF-1", rec.ShiftID)
	assert.Equal(t, "100000", rec.OpeningBalance.String())

	resp = ts.do(t, http.MethodGet, "/api/v1/shift/decision", "")
	decode(t, resp, &d)
	assert.Equal(t, decisionResponse{Action: "proceed"}, d)

	resp = ts.do(t, http.MethodGet, "/api/v1/shift", "")
	decode(t, resp, &rec)
	assert.True(t, rec.IsOpen)

	resp = ts.do(t, http.MethodGet, "/api/v1/shift/summary", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sum remote.CloseSummary
	decode(t, resp, &sum)
	assert.Equal(t, "SHF-1", sum.ShiftID)
	assert.Equal(t, "250000", sum.CashTotal.String())
	assert.False(t, sum.ClosingBalance.Valid)

	resp = ts.do(t, http.MethodPost, "/api/v1/shift/close", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/v1/shift", "")
	decode(t, resp, &rec)
	assert.False(t, rec.IsOpen)

	resp = ts.do(t, http.MethodGet, "/api/v1/shift/history?limit=2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var events []eventResponse
	decode(t, resp, &events)
	assert.Len(t, events, 2)

	for _, token := range ts.remote.tokens {
		assert.Equal(t, ts.token, token, "operator token is forwarded verbatim")
	}
}

func TestOpenShift_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"opening_balance":`},
		{"missing balance", `{"note":"x"}`},
		{"negative balance", `{"opening_balance":-5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, "/api/v1/shift/open", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
	assert.Empty(t, ts.remote.tokens, "remote is never called for invalid input")
}

func TestCloseShift_ServerMessagePassedThrough(t *testing.T) {
	ts := newTestServer(t)
	ts.remote.closeErr = &remote.StatusError{StatusCode: http.StatusConflict, Message: "shift already closed"}

	resp := ts.do(t, http.MethodPost, "/api/v1/shift/close", `{"note":"eod"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "shift already closed", body["error"])
}

func TestExportSummary(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodPost, "/api/v1/shift/open", `{"opening_balance":1000}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/v1/shift/summary.xlsx", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "close-summary-SHF-1.xlsx")

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	id, err := f.GetCellValue(report.SheetName, "B1")
	require.NoError(t, err)
	assert.Equal(t, "SHF-1", id)
}

func TestConflictsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodPost, "/api/v1/shift/open", `{"opening_balance":1}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// The shift disappears on the server behind the terminal's back.
	ts.remote.mu.Lock()
	ts.remote.current = remote.CurrentShift{}
	ts.remote.mu.Unlock()

	ts.do(t, http.MethodGet, "/api/v1/shift/decision", "")

	resp = ts.do(t, http.MethodGet, "/api/v1/shift/conflicts", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var conflicts []conflictResponse
	decode(t, resp, &conflicts)
	require.Len(t, conflicts, 1)
	assert.Equal(t, shift.ConflictClosedRemotely, conflicts[0].ConflictType)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, statusFor(&shift.OperationError{Kind: shift.ErrSummaryUnavailable}))
	assert.Equal(t, http.StatusConflict, statusFor(&shift.OperationError{Kind: shift.ErrShiftOpenFailed, Err: shift.ErrBusy}))
	assert.Equal(t, http.StatusUnauthorized, statusFor(&shift.OperationError{Kind: shift.ErrShiftCloseFailed, Err: shift.ErrMissingCredential}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
