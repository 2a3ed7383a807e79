// Package user holds the identity and trust-tier state shared across the
// task, escrow and supply-control components.
package user

import "time"

// Mode is the default posture a user logs in under.
type Mode string

const (
	ModeWorker Mode = "worker"
	ModePoster Mode = "poster"
)

// Plan is the subscription tier a user currently holds.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
	PlanPro     Plan = "pro"
)

// AccountStatus is the account's overall standing.
type AccountStatus string

const (
	AccountActive    AccountStatus = "ACTIVE"
	AccountPaused    AccountStatus = "PAUSED"
	AccountSuspended AccountStatus = "SUSPENDED"
)

// TrustTier is monotonic except for explicit trust-ledger demotions (§4.G).
type TrustTier int

const (
	TrustTier1 TrustTier = 1
	TrustTier2 TrustTier = 2
	TrustTier3 TrustTier = 3
	TrustTier4 TrustTier = 4
)

// User is the identity aggregate. Trust tier promotion is enforced by the
// trust ledger (internal/domain/ledger); this struct only carries the
// current snapshot.
type User struct {
	ID              string
	DefaultMode     Mode
	TrustTier       TrustTier
	XPTotal         int64
	Streak          int
	Verified        bool
	Plan            Plan
	PlanExpiresAt   time.Time
	AccountStatus   AccountStatus
	LiveSessionID   string
	LiveSessionAt   time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Badge is an append-only award (I7). Source event id makes Award
// idempotent on replay.
type Badge struct {
	ID            string
	UserID        string
	Code          string
	AwardedAt     time.Time
	SourceEventID string
}
