// Package ledger holds the three append-only ledgers that record durable
// facts about a user or an escrow once they happen: XP, trust tier
// changes, and platform revenue. None of these rows are ever mutated or
// deleted (I7).
package ledger

import "time"

// XPEntry is keyed uniquely by escrow (I5): at most one XP row exists per
// (user, escrow), and only once the escrow reaches a terminal
// released-like state (I1).
type XPEntry struct {
	ID             string
	UserID         string
	TaskID         string
	EscrowID       string
	BaseXP         int64
	StreakMult     float64
	DecayFactor    float64
	EffectiveXP    int64
	XPBefore       int64
	XPAfter        int64
	CreatedAt      time.Time
}

// TrustReason enumerates why a trust-ledger row was written.
type TrustReason string

const (
	TrustReasonTaskCompleted     TrustReason = "task_completed"
	TrustReasonDisputeResolved   TrustReason = "dispute_resolved"
	TrustReasonManualAdjustment  TrustReason = "manual_adjustment"
	TrustReasonChargebackPenalty TrustReason = "chargeback_penalty"
)

// TrustEntry is an append-only promotion/demotion record. IdempotencyKey
// lets callers (e.g. dispute resolution, §4.E) safely retry emission.
type TrustEntry struct {
	ID             string
	UserID         string
	OldTier        int
	NewTier        int
	Reason         TrustReason
	SourceEventID  string
	IdempotencyKey string
	CreatedAt      time.Time
}

// RevenueEventType enumerates the fully-decomposed revenue rows (§3).
type RevenueEventType string

const (
	RevenuePlatformFee        RevenueEventType = "platform_fee"
	RevenueFeatured           RevenueEventType = "featured"
	RevenueSubscription       RevenueEventType = "subscription"
	RevenueChargeback         RevenueEventType = "chargeback"
	RevenueChargebackReversal RevenueEventType = "chargeback_reversal"
)

// RevenueEntry is additive-only: chargebacks and reversals are expressed
// as negative/positive additional rows, never by mutating an existing one.
type RevenueEntry struct {
	ID              string
	EventType       RevenueEventType
	Currency        string
	GrossMinor      int64
	PlatformFeeMinor int64
	NetMinor        int64
	FeeBasisPoints  int
	ProcessorFeeMinor int64
	EscrowID        string
	ExternalChargeID string
	ExternalEventID string
	Metadata        map[string]interface{}
	CreatedAt       time.Time
}

// DecomposePlatformFee builds a platform_fee RevenueEntry whose gross/net/fee
// satisfy the store invariant Σ(gross) - Σ(net) = Σ(fee) for platform_fee
// rows (spec.md §3, P9).
func DecomposePlatformFee(escrowID string, grossMinor int64, feeBasisPoints int) RevenueEntry {
	feeMinor := grossMinor * int64(feeBasisPoints) / 10000
	return RevenueEntry{
		EventType:        RevenuePlatformFee,
		Currency:         "usd",
		GrossMinor:       grossMinor,
		PlatformFeeMinor: feeMinor,
		NetMinor:         grossMinor - feeMinor,
		FeeBasisPoints:   feeBasisPoints,
		EscrowID:         escrowID,
	}
}
