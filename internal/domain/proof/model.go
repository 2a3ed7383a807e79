// Package proof implements proof submission and review.
package proof

import "time"

// State is the proof's lifecycle.
type State string

const (
	StatePending   State = "PENDING"
	StateSubmitted State = "SUBMITTED"
	StateAccepted  State = "ACCEPTED" // terminal
	StateRejected  State = "REJECTED" // terminal
	StateExpired   State = "EXPIRED"  // terminal
)

// IsTerminal reports whether the state has no outgoing edges.
func (s State) IsTerminal() bool {
	switch s {
	case StateAccepted, StateRejected, StateExpired:
		return true
	default:
		return false
	}
}

var adjacency = map[State][]State{
	StatePending:   {StateSubmitted},
	StateSubmitted: {StateAccepted, StateRejected, StateExpired},
}

// CanTransition reports whether from->to is a legal proof edge.
func CanTransition(from, to State) bool {
	for _, candidate := range adjacency[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Proof is the submission aggregate for a task.
type Proof struct {
	ID              string
	TaskID          string
	SubmitterID     string
	State           State
	ReviewerID      string
	RejectionReason string
	ManualReview    bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Photo is an ordered artifact attached to a proof.
type Photo struct {
	ID          string
	ProofID     string
	StorageKey  string
	Checksum    string
	HasBiometic bool
	HasGPS      bool
	CapturedAt  time.Time
	Sequence    int
}

// HasArtifacts reports whether any photo carries biometric or GPS data,
// which triggers the dual external-verifier consult in review (§4.E).
func HasArtifacts(photos []Photo) bool {
	for _, p := range photos {
		if p.HasBiometic || p.HasGPS {
			return true
		}
	}
	return false
}
