package shift

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ShiftRecord is the terminal's view of one register-opening-to-closing period.
// ShiftID is set only once the remote has confirmed the open.
type ShiftRecord struct {
	IsOpen         bool            `json:"is_open"`
	ShiftID        string          `json:"shift_id,omitempty"`
	OpenedAt       time.Time       `json:"opened_at,omitempty"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

// Decision tells the caller what must happen before selling can continue.
// {NeedOpen: false, NeedClose: true} is never produced.
type Decision struct {
	NeedOpen  bool `json:"need_open"`
	NeedClose bool `json:"need_close"`
}

var (
	Proceed        = Decision{}
	MustOpen       = Decision{NeedOpen: true}
	MustCloseStale = Decision{NeedOpen: true, NeedClose: true}
)

func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case MustOpen:
		return "open"
	case MustCloseStale:
		return "close_then_open"
	}
	return fmt.Sprintf("invalid(open=%t,close=%t)", d.NeedOpen, d.NeedClose)
}

// Event kinds written to the shift history.
const (
	EventReconcile         = "reconcile"
	EventReconcileFallback = "reconcile_fallback"
	EventOpen              = "open"
	EventOpenFailed        = "open_failed"
	EventClose             = "close"
	EventCloseFailed       = "close_failed"
	EventSummary           = "summary"
)
