// Package analytics defines the narrow external metrics-warehouse
// interface the correction engine's causal-impact analyzer consults
// (spec.md §4.H). Kept outside internal/app/correction the same way
// internal/platform/vision sits outside internal/app/proof: the actual
// metric gathering, control-zone matching and baseline-tolerance check are
// a data-warehouse concern, not a transactional-core one.
package analytics

import (
	"context"
	"time"

	domcorrection "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/correction"
)

// ImpactSource gathers the treated/control metric deltas a causal-impact
// analysis needs.
type ImpactSource interface {
	// Deltas returns metric deltas (post minus pre) for the corrected scope
	// ("treated") and for a matched control scope with baseline metrics
	// within ±10% of the treated scope's baseline, over the same window.
	// ok=false signals no matched control or insufficient sample.
	Deltas(ctx context.Context, c domcorrection.Correction, windowStart, windowEnd time.Time) (treated, control map[string]float64, ok bool, err error)
}

// Noop always reports an insufficient sample, for local dev and tests
// where no metrics warehouse is wired up.
type Noop struct{}

func (Noop) Deltas(ctx context.Context, c domcorrection.Correction, windowStart, windowEnd time.Time) (map[string]float64, map[string]float64, bool, error) {
	return nil, nil, false, nil
}

var _ ImpactSource = Noop{}
