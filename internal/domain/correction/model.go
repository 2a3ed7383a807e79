// Package correction holds the non-financial autonomous adjustment types.
// TargetEntity is a closed enum that structurally excludes escrow, payout,
// dispute, trust and revenue — the "hard wall" from spec.md §4.H is
// enforced at the type level, not just documented.
package correction

import "time"

// TargetEntity is the kind of row a correction may adjust. This list is
// closed by construction: there is no constant for escrow, payout,
// dispute, trust or revenue, so a correction can never reference one.
type TargetEntity string

const (
	TargetTaskRouting  TargetEntity = "task_routing"
	TargetFrictionNudge TargetEntity = "friction_nudge"
	TargetSupplyHint   TargetEntity = "supply_hint"
)

// Scope is the geographic/categorical reach of a correction.
type Scope string

const (
	ScopeGlobal   Scope = "global"
	ScopeCity     Scope = "city"
	ScopeZone     Scope = "zone"
	ScopeCategory Scope = "category"
)

// ReversalState tracks whether a correction has been undone.
type ReversalState string

const (
	ReversalNone     ReversalState = "none"
	ReversalReversed ReversalState = "reversed"
)

// Correction is a single autonomous adjustment row.
type Correction struct {
	ID            string
	Type          TargetEntity
	TargetID      string
	Scope         Scope
	ZoneID        string
	CityID        string
	Category      string
	ReasonCode    string
	Adjustment    map[string]interface{}
	PriorValue    map[string]interface{}
	ExpiresAt     time.Time
	Reversal      ReversalState
	AppliedAt     time.Time
	ReversedAt    time.Time
	CreatedAt     time.Time
}

// MaxLifetime is the hard cap on a correction's expiry, per §4.H.
const MaxLifetime = 24 * time.Hour

// BudgetWindow is the per-scope budget cap, windowed on rounded boundaries
// (§4.H). Values are max corrections applied per hour.
type BudgetWindow struct {
	Global   int
	City     int
	Zone     int
	Category int
}

// DefaultBudget is the spec's named hourly caps.
var DefaultBudget = BudgetWindow{Global: 100, City: 30, Zone: 10, Category: 15}

// Verdict is the causal-impact analyzer's deterministic classification.
type Verdict string

const (
	VerdictCausal       Verdict = "CAUSAL"
	VerdictNonCausal    Verdict = "NON_CAUSAL"
	VerdictInconclusive Verdict = "INCONCLUSIVE"
)

// AnalysisResult records one correction's causal-impact analysis.
type AnalysisResult struct {
	CorrectionID string
	Verdict      Verdict
	NetLift      map[string]float64
	AnalyzedAt   time.Time
}
