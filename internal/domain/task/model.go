// Package task implements the task aggregate: its two orthogonal state
// machines (lifecycle and progress) and the adjacency rules that govern
// them. Grounded on domain/gasbank/model.go's plain-struct-plus-enum shape
// from the teacher repo.
package task

import "time"

// Mode distinguishes a scheduled task from an on-demand live-dispatch task.
type Mode string

const (
	ModeStandard Mode = "STANDARD"
	ModeLive     Mode = "LIVE"
)

// RiskLevel tags a task for stricter proof review (supplements spec.md:
// the field exists in §3's data model but spec.md never wires a rule to
// it; SPEC_FULL §4.D does).
type RiskLevel string

const (
	RiskStandard RiskLevel = "standard"
	RiskHigh     RiskLevel = "high"
)

// LifecycleState is the task's primary state machine.
type LifecycleState string

const (
	LifecycleOpen            LifecycleState = "OPEN"
	LifecycleMatching        LifecycleState = "MATCHING"
	LifecycleAccepted        LifecycleState = "ACCEPTED"
	LifecycleProofSubmitted  LifecycleState = "PROOF_SUBMITTED"
	LifecycleDisputed        LifecycleState = "DISPUTED"
	LifecycleCompleted       LifecycleState = "COMPLETED"
	LifecycleCancelled       LifecycleState = "CANCELLED"
	LifecycleExpired         LifecycleState = "EXPIRED"
)

// IsTerminal reports whether the lifecycle state has no outgoing edges.
func (s LifecycleState) IsTerminal() bool {
	switch s {
	case LifecycleCompleted, LifecycleCancelled, LifecycleExpired:
		return true
	default:
		return false
	}
}

// ProgressState is the task's orthogonal, strictly monotonic axis.
type ProgressState string

const (
	ProgressPosted    ProgressState = "POSTED"
	ProgressAccepted  ProgressState = "ACCEPTED"
	ProgressTraveling ProgressState = "TRAVELING"
	ProgressWorking   ProgressState = "WORKING"
	ProgressCompleted ProgressState = "COMPLETED"
	ProgressClosed    ProgressState = "CLOSED"
)

// progressOrder fixes the single legal sequence for progress (§4.D):
// POSTED -> ACCEPTED -> TRAVELING -> WORKING -> COMPLETED -> CLOSED.
var progressOrder = []ProgressState{
	ProgressPosted, ProgressAccepted, ProgressTraveling,
	ProgressWorking, ProgressCompleted, ProgressClosed,
}

func progressIndex(s ProgressState) int {
	for i, v := range progressOrder {
		if v == s {
			return i
		}
	}
	return -1
}

// Task is the task aggregate row.
type Task struct {
	ID          string
	PosterID    string
	WorkerID    string // empty until accepted
	PriceMinor  int64  // immutable once escrow is funded
	Category    string
	Mode        Mode
	InstantMode bool
	RiskLevel   RiskLevel
	Lifecycle   LifecycleState
	Progress    ProgressState
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
	Version     int
}

// lifecycleAdjacency encodes the fixed edges from spec.md §4.D.
var lifecycleAdjacency = map[LifecycleState][]LifecycleState{
	LifecycleOpen:           {LifecycleMatching, LifecycleAccepted, LifecycleCancelled, LifecycleExpired},
	LifecycleMatching:       {LifecycleAccepted, LifecycleOpen, LifecycleExpired},
	LifecycleAccepted:       {LifecycleProofSubmitted, LifecycleCancelled, LifecycleDisputed},
	LifecycleProofSubmitted: {LifecycleCompleted, LifecycleDisputed, LifecycleAccepted},
	LifecycleDisputed:       {LifecycleCompleted, LifecycleCancelled},
}

// CanTransitionLifecycle reports whether from->to is a legal lifecycle edge.
func CanTransitionLifecycle(from, to LifecycleState) bool {
	for _, candidate := range lifecycleAdjacency[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// CanTransitionProgress reports whether from->to is a legal progress step.
// Progress is strictly monotonic: exactly one step forward, no skips, no
// reversals (I6).
func CanTransitionProgress(from, to ProgressState) bool {
	fi, ti := progressIndex(from), progressIndex(to)
	if fi < 0 || ti < 0 {
		return false
	}
	return ti == fi+1
}

// RequiresDualVerification reports whether proof review for this task must
// consult both external verifiers regardless of submitted-artifact type
// (SPEC_FULL §4.D risk-level rule).
func (t Task) RequiresDualVerification() bool {
	return t.RiskLevel == RiskHigh
}
