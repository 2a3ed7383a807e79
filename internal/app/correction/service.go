// Package correction implements the non-financial autonomous adjustment
// engine of spec.md §4.H: budgeted apply/reverse of task-routing hints,
// friction nudges and supply hints, plus the causal-impact analyzer that
// can flip the engine into safe-mode. New relative to the teacher (no
// analogue); built in the idiom of domain/ledger's append-only-row +
// explicit-reversal shape, reusing internal/app/services/gasbank's
// store-backed Service struct.
package correction

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	core "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/core/service"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	domcorrection "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/correction"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/platform/analytics"
)

// PostWindow is the fixed delay after apply before the causal analyzer
// gathers treated/control metrics for a correction.
const PostWindow = 48 * time.Hour

// CoreMetrics are the metrics the CAUSAL verdict counts against (§4.H:
// "net_lift positive on ≥2 core metrics").
var CoreMetrics = []string{"acceptance_rate", "completion_rate", "time_to_accept"}

// rollingWindowSize bounds the sliding window the non-causal-rate safe-mode
// trigger is computed over.
const rollingWindowSize = 50

// nonCausalRateThreshold is the rolling non-causal rate past which the
// analyzer forces safe-mode.
const nonCausalRateThreshold = 0.6

// Service implements the correction engine.
type Service struct {
	runner      storage.TxRunner
	corrections storage.CorrectionStore
	impact      analytics.ImpactSource
	budget      domcorrection.BudgetWindow
	log         *logging.Logger

	mu       sync.Mutex
	safeMode bool
	verdicts []domcorrection.Verdict // ring buffer, most recent last
}

// New constructs a correction Service with the spec's default budget.
func New(runner storage.TxRunner, corrections storage.CorrectionStore, impact analytics.ImpactSource, log *logging.Logger) *Service {
	return &Service{
		runner:      runner,
		corrections: corrections,
		impact:      impact,
		budget:      domcorrection.DefaultBudget,
		log:         log,
	}
}

// Descriptor advertises the service's placement and capabilities.
func (s *Service) Descriptor() core.Descriptor {
	return core.Descriptor{
		Name:         "correction",
		Domain:       "marketplace",
		Layer:        core.LayerEngine,
		Capabilities: []string{"apply", "reverse", "analyze"},
	}
}

// SetSafeMode sets or clears the safe-mode flag, callable by policy
// (operator/admincli) or by Analyze when the rolling non-causal rate trips.
func (s *Service) SetSafeMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.safeMode = on
}

// SafeMode reports the current safe-mode flag.
func (s *Service) SafeMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.safeMode
}

// scopeCap returns the hourly budget cap for a scope.
func scopeCap(budget domcorrection.BudgetWindow, scope domcorrection.Scope) int {
	switch scope {
	case domcorrection.ScopeGlobal:
		return budget.Global
	case domcorrection.ScopeCity:
		return budget.City
	case domcorrection.ScopeZone:
		return budget.Zone
	case domcorrection.ScopeCategory:
		return budget.Category
	default:
		return 0
	}
}

// scopeID picks the scope-identifying value the budget counter is keyed on.
func scopeID(c domcorrection.Correction) string {
	switch c.Scope {
	case domcorrection.ScopeCity:
		return c.CityID
	case domcorrection.ScopeZone:
		return c.ZoneID
	case domcorrection.ScopeCategory:
		return c.Category
	default:
		return "global"
	}
}

// windowStart rounds now down to the top of the hour, per §4.H's "windowed
// on rounded boundaries."
func windowStart(now time.Time) time.Time {
	return now.Truncate(time.Hour)
}

// Apply runs the budget check, consumes the budget, and inserts the
// correction row. A no-op (BUDGET_EXHAUSTED marker, HTTP 200) while in
// safe-mode, and whenever the scope's hourly cap is already spent — never
// panics or errors loudly, since corrections are a best-effort signal.
func (s *Service) Apply(ctx context.Context, c domcorrection.Correction, now time.Time) (domcorrection.Correction, error) {
	if c.Type != domcorrection.TargetTaskRouting && c.Type != domcorrection.TargetFrictionNudge && c.Type != domcorrection.TargetSupplyHint {
		return domcorrection.Correction{}, apperrors.InvalidInput("type", "correction type outside the non-financial allow-list")
	}
	if c.ExpiresAt.IsZero() || c.ExpiresAt.After(now.Add(domcorrection.MaxLifetime)) {
		return domcorrection.Correction{}, apperrors.InvalidInput("expires_at", "must be set and within the 24h max lifetime")
	}
	if s.SafeMode() {
		return domcorrection.Correction{}, apperrors.BudgetExhausted(string(c.Scope))
	}

	var applied domcorrection.Correction
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		ws := windowStart(now)
		id := scopeID(c)
		count, err := s.corrections.GetBudgetCounter(ctx, q, string(c.Scope), id, ws)
		if err != nil {
			return err
		}
		if count >= scopeCap(s.budget, c.Scope) {
			return apperrors.BudgetExhausted(string(c.Scope))
		}
		if _, err := s.corrections.ConsumeBudget(ctx, q, string(c.Scope), id, ws); err != nil {
			return err
		}
		c.AppliedAt = now
		c.Reversal = domcorrection.ReversalNone
		inserted, err := s.corrections.InsertCorrection(ctx, q, c)
		if err != nil {
			return err
		}
		applied = inserted
		return nil
	})
	if err != nil {
		return domcorrection.Correction{}, err
	}
	return applied, nil
}

// Reverse marks the correction reversed and stamps ReversedAt. It does not
// write PriorValue back to the target entity; the row keeps its
// PriorValue and Adjustment unchanged.
// Idempotent: reversing an already-reversed row is a no-op.
func (s *Service) Reverse(ctx context.Context, correctionID string, now time.Time) (domcorrection.Correction, error) {
	var reversed domcorrection.Correction
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		c, err := s.corrections.GetCorrection(ctx, q, correctionID)
		if err != nil {
			return err
		}
		if c.Reversal == domcorrection.ReversalReversed {
			reversed = c
			return nil
		}
		c.Reversal = domcorrection.ReversalReversed
		c.ReversedAt = now
		updated, err := s.corrections.UpdateCorrection(ctx, q, c)
		if err != nil {
			return err
		}
		s.log.WithFields(map[string]interface{}{
			"correction_id": c.ID,
			"type":          c.Type,
			"scope":         c.Scope,
		}).Info("correction reversed")
		reversed = updated
		return nil
	})
	if err != nil {
		return domcorrection.Correction{}, err
	}
	return reversed, nil
}

// ExpireDue reverses every correction whose expires_at has elapsed and is
// still active, run as a periodic job (admincli `expire-corrections`).
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	expired := 0
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		due, err := s.corrections.ListExpired(ctx, q, now)
		if err != nil {
			return err
		}
		for _, c := range due {
			c.Reversal = domcorrection.ReversalReversed
			c.ReversedAt = now
			if _, err := s.corrections.UpdateCorrection(ctx, q, c); err != nil {
				return err
			}
			expired++
		}
		return nil
	})
	return expired, err
}

// Analyze runs the causal-impact analyzer over every correction applied
// more than PostWindow ago, classifying each CAUSAL/NON_CAUSAL/
// INCONCLUSIVE and updating the rolling non-causal rate. Tripping the
// rolling threshold sets safe-mode.
func (s *Service) Analyze(ctx context.Context, now time.Time) ([]domcorrection.AnalysisResult, error) {
	var candidates []domcorrection.Correction
	err := s.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		var err error
		candidates, err = s.corrections.ListForAnalysis(ctx, q, now.Add(-PostWindow))
		return err
	})
	if err != nil {
		return nil, err
	}

	results := make([]domcorrection.AnalysisResult, 0, len(candidates))
	for _, c := range candidates {
		windowEnd := c.AppliedAt.Add(PostWindow)
		treated, control, ok, err := s.impact.Deltas(ctx, c, c.AppliedAt, windowEnd)
		if err != nil {
			return nil, err
		}
		var result domcorrection.AnalysisResult
		if !ok {
			result = domcorrection.AnalysisResult{CorrectionID: c.ID, Verdict: domcorrection.VerdictInconclusive, AnalyzedAt: now}
		} else {
			result = classify(c.ID, treated, control, now)
		}
		results = append(results, result)
		s.recordVerdict(result.Verdict)
	}

	if s.rollingNonCausalRate() > nonCausalRateThreshold {
		s.SetSafeMode(true)
		s.log.WithFields(map[string]interface{}{"rate": s.rollingNonCausalRate()}).Warn("correction engine: rolling non-causal rate tripped safe-mode")
	}
	return results, nil
}

// classify applies §4.H's deterministic verdict rule.
func classify(correctionID string, treated, control map[string]float64, now time.Time) domcorrection.AnalysisResult {
	netLift := make(map[string]float64, len(CoreMetrics))
	positiveCount := 0
	for _, metric := range CoreMetrics {
		lift := treated[metric] - control[metric]
		netLift[metric] = lift
		if lift > 0 && control[metric] <= treated[metric] {
			positiveCount++
		}
	}
	verdict := domcorrection.VerdictNonCausal
	if positiveCount >= 2 {
		verdict = domcorrection.VerdictCausal
	}
	return domcorrection.AnalysisResult{
		CorrectionID: correctionID,
		Verdict:      verdict,
		NetLift:      netLift,
		AnalyzedAt:   now,
	}
}

func (s *Service) recordVerdict(v domcorrection.Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdicts = append(s.verdicts, v)
	if len(s.verdicts) > rollingWindowSize {
		s.verdicts = s.verdicts[len(s.verdicts)-rollingWindowSize:]
	}
}

func (s *Service) rollingNonCausalRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.verdicts) == 0 {
		return 0
	}
	nonCausal := 0
	for _, v := range s.verdicts {
		if v == domcorrection.VerdictNonCausal {
			nonCausal++
		}
	}
	return float64(nonCausal) / float64(len(s.verdicts))
}
