package remote

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Service is the backend system of record for register shifts.
type Service interface {
	CurrentShift(ctx context.Context, userID string) (*CurrentShift, error)
	OpenShift(ctx context.Context, req OpenRequest) (*OpenedShift, error)
	CloseShift(ctx context.Context, userID, note string) error
	// CloseSummary resolves the user's active shift when shiftID is empty.
	CloseSummary(ctx context.Context, shiftID string) (*CloseSummary, error)
}

type CurrentShift struct {
	Active         bool
	ShiftID        string
	OpeningBalance decimal.Decimal
	OpenedAt       time.Time
}

type OpenRequest struct {
	UserID         string
	OpeningBalance decimal.Decimal
	Note           string
	Permanent      bool
}

type OpenedShift struct {
	ShiftID        string
	OpeningBalance decimal.Decimal
	OpenedAt       time.Time
}

// CloseSummary holds server-computed totals for the shift being closed.
type CloseSummary struct {
	ShiftID          string              `json:"shift_id,omitempty"`
	CashTotal        decimal.Decimal     `json:"cash_total"`
	NonCashTotal     decimal.Decimal     `json:"noncash_total"`
	Tax              decimal.Decimal     `json:"tax"`
	Discount         decimal.Decimal     `json:"discount"`
	OtherCosts       decimal.Decimal     `json:"other_costs"`
	TransactionCount int                 `json:"transaction_count"`
	OpeningBalance   decimal.Decimal     `json:"opening_balance"`
	ClosingBalance   decimal.NullDecimal `json:"closing_balance"` // only when the server reports it
	OpenedAt         time.Time           `json:"opened_at"`
	ClosedAt         time.Time           `json:"closed_at,omitempty"`
}
