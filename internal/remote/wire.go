package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ID accepts identifiers encoded as JSON strings or numbers.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid id %s", b)
	}
	*id = ID(n.String())
	return nil
}

type currentShiftResponse struct {
	Active         bool                `json:"active"`
	ShiftID        ID                  `json:"shift_id"`
	OpeningBalance decimal.NullDecimal `json:"opening_balance"`
	OpenedAt       string              `json:"opened_at"`
}

type openShiftRequest struct {
	UserID         string          `json:"user_id"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Note           string          `json:"note"`
	Permanent      bool            `json:"permanent"`
}

type openShiftResponse struct {
	ShiftID        ID                  `json:"shift_id"`
	OpeningBalance decimal.NullDecimal `json:"opening_balance"`
	OpenedAt       string              `json:"opened_at"`
}

type closeShiftRequest struct {
	UserID string `json:"user_id"`
	Note   string `json:"note"`
}

type closeSummaryRequest struct {
	ShiftID string `json:"shift_id,omitempty"`
}

type closeSummaryResponse struct {
	ShiftID          ID                  `json:"shift_id"`
	CashTotal        decimal.Decimal     `json:"cash_total"`
	NonCashTotal     decimal.Decimal     `json:"noncash_total"`
	Tax              decimal.Decimal     `json:"tax"`
	Discount         decimal.Decimal     `json:"discount"`
	OtherCosts       decimal.Decimal     `json:"other_costs"`
	TransactionCount int                 `json:"transaction_count"`
	OpeningBalance   decimal.Decimal     `json:"opening_balance"`
	ClosingBalance   decimal.NullDecimal `json:"closing_balance"`
	OpenedAt         string              `json:"opened_at"`
	ClosedAt         string              `json:"closed_at"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

var naiveLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTimestamp reads RFC3339 instants, or wall-clock values in loc.
func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func errorMessage(body []byte) string {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err == nil {
		if resp.Message != "" {
			return resp.Message
		}
		return resp.Error
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}
