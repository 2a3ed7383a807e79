// Package escrow implements the funds/release/refund state machine and its
// terminal guards. All amounts are integer minor-units; floats are
// forbidden for money (spec.md §3).
package escrow

import "time"

// State is the escrow's lifecycle.
type State string

const (
	StatePending       State = "PENDING"
	StateFunded        State = "FUNDED"
	StateLockedDispute State = "LOCKED_DISPUTE"
	StateReleased      State = "RELEASED"      // terminal
	StateRefunded      State = "REFUNDED"      // terminal
	StateRefundPartial State = "REFUND_PARTIAL" // terminal
)

// IsTerminal reports whether the state has no outgoing edges.
func (s State) IsTerminal() bool {
	switch s {
	case StateReleased, StateRefunded, StateRefundPartial:
		return true
	default:
		return false
	}
}

// Escrow is the 1:1 escrow aggregate for a task.
type Escrow struct {
	ID              string
	TaskID          string
	AmountMinor     int64 // immutable once state leaves PENDING (I4)
	State           State
	RefundMinor     int64
	ReleaseMinor    int64
	PaymentIntentID string
	ChargeID        string
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
