package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"register-shift-service/internal/auth"
	"register-shift-service/internal/logger"
)

const maxBodyBytes = 1 << 20

// Client talks JSON over HTTP to the shift backend. Timeouts are enforced by
// the underlying http.Client and surface as ErrUnreachable.
type Client struct {
	baseURL string
	http    *http.Client
	loc     *time.Location
}

func NewClient(baseURL string, timeout time.Duration, loc *time.Location) *Client {
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		loc:     loc,
	}
}

func (c *Client) CurrentShift(ctx context.Context, userID string) (*CurrentShift, error) {
	query := url.Values{"user_id": {userID}}

	var resp currentShiftResponse
	if err := c.do(ctx, http.MethodGet, "/shifts/current", query, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Active {
		return &CurrentShift{}, nil
	}

	if resp.OpenedAt == "" {
		return nil, unreachable("active shift without opened_at")
	}
	openedAt, err := parseTimestamp(resp.OpenedAt, c.loc)
	if err != nil {
		return nil, unreachable("current shift: %v", err)
	}

	return &CurrentShift{
		Active:         true,
		ShiftID:        string(resp.ShiftID),
		OpeningBalance: resp.OpeningBalance.Decimal,
		OpenedAt:       openedAt,
	}, nil
}

func (c *Client) OpenShift(ctx context.Context, req OpenRequest) (*OpenedShift, error) {
	body := openShiftRequest{
		UserID:         req.UserID,
		OpeningBalance: req.OpeningBalance,
		Note:           req.Note,
		Permanent:      req.Permanent,
	}

	var resp openShiftResponse
	if err := c.do(ctx, http.MethodPost, "/shifts/open", nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.ShiftID == "" {
		return nil, unreachable("open shift reply without shift_id")
	}

	opened := &OpenedShift{
		ShiftID:        string(resp.ShiftID),
		OpeningBalance: req.OpeningBalance,
	}
	if resp.OpeningBalance.Valid {
		opened.OpeningBalance = resp.OpeningBalance.Decimal
	}
	if resp.OpenedAt != "" {
		t, err := parseTimestamp(resp.OpenedAt, c.loc)
		if err != nil {
			return nil, unreachable("open shift: %v", err)
		}
		opened.OpenedAt = t
	}
	return opened, nil
}

func (c *Client) CloseShift(ctx context.Context, userID, note string) error {
	body := closeShiftRequest{UserID: userID, Note: note}
	return c.do(ctx, http.MethodPost, "/shifts/close", nil, body, nil)
}

func (c *Client) CloseSummary(ctx context.Context, shiftID string) (*CloseSummary, error) {
	var resp closeSummaryResponse
	if err := c.do(ctx, http.MethodPost, "/shifts/close-summary", nil, closeSummaryRequest{ShiftID: shiftID}, &resp); err != nil {
		return nil, err
	}

	summary := &CloseSummary{
		ShiftID:          string(resp.ShiftID),
		CashTotal:        resp.CashTotal,
		NonCashTotal:     resp.NonCashTotal,
		Tax:              resp.Tax,
		Discount:         resp.Discount,
		OtherCosts:       resp.OtherCosts,
		TransactionCount: resp.TransactionCount,
		OpeningBalance:   resp.OpeningBalance,
		ClosingBalance:   resp.ClosingBalance,
	}
	if summary.ShiftID == "" {
		summary.ShiftID = shiftID
	}

	var err error
	if resp.OpenedAt != "" {
		if summary.OpenedAt, err = parseTimestamp(resp.OpenedAt, c.loc); err != nil {
			return nil, unreachable("close summary: %v", err)
		}
	}
	if resp.ClosedAt != "" {
		if summary.ClosedAt, err = parseTimestamp(resp.ClosedAt, c.loc); err != nil {
			return nil, unreachable("close summary: %v", err)
		}
	}
	return summary, nil
}

// do performs one round-trip. out may be nil for acknowledgement-only calls.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := auth.CredentialFromContext(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return unreachable("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return unreachable("reading %s reply: %v", path, err)
	}

	logger.Log.Debug("Remote call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		if out != nil {
			return unreachable("empty reply from %s", path)
		}
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return unreachable("malformed reply from %s: %v", path, err)
	}
	return nil
}
