package vision

import "context"

// NoopLiveness always accepts; used when no vendor is configured (local
// dev, tests).
type NoopLiveness struct{}

func (NoopLiveness) CheckLiveness(ctx context.Context, storageKey string) (Result, error) {
	return Result{Verdict: VerdictAccept}, nil
}

// NoopLogistics always accepts; used when no vendor is configured (local
// dev, tests).
type NoopLogistics struct{}

func (NoopLogistics) CheckLogistics(ctx context.Context, storageKey, taskID string) (Result, error) {
	return Result{Verdict: VerdictAccept}, nil
}
