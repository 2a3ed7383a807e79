// Package vision defines the narrow external-verifier interfaces proof
// review consults (spec.md §4.E), kept deliberately small so the teacher's
// circuit-breaker pattern (infrastructure/resilience) can wrap either
// without knowing about HTTP or vendor-specific payloads.
package vision

import "context"

// Verdict is a verifier's decision on a single artifact.
type Verdict string

const (
	VerdictAccept       Verdict = "accept"
	VerdictReject       Verdict = "reject"
	VerdictManualReview Verdict = "manual_review"
)

// Result carries a verifier's verdict plus a human-readable reason, used
// for both the rejection error detail and the manual-review flag.
type Result struct {
	Verdict Verdict
	Reason  string
	Score   float64
}

// LivenessClient scores a submitted photo for liveness/deepfake signals.
type LivenessClient interface {
	CheckLiveness(ctx context.Context, storageKey string) (Result, error)
}

// LogisticsClient scores a submitted photo's GPS/location plausibility
// against the task's expected location.
type LogisticsClient interface {
	CheckLogistics(ctx context.Context, storageKey string, taskID string) (Result, error)
}

var (
	_ LivenessClient  = NoopLiveness{}
	_ LogisticsClient = NoopLogistics{}
)
