package scoring

import (
	"math"
	"time"

	"github.com/spigell/eu-call-finder/internal/ai"
	"github.com/spigell/eu-call-finder/internal/calls"
	"github.com/spigell/eu-call-finder/internal/eligibility"
	"github.com/spigell/eu-call-finder/internal/invariant"
	"github.com/spigell/eu-call-finder/internal/profile"
)

// Mode tells which scorer produced a breakdown.
type Mode string

const (
	ModeEnhanced      Mode = "enhanced"
	ModeDeterministic Mode = "deterministic"
)

// Criterion names one scored dimension.
type Criterion string

const (
	DomainMatch        Criterion = "domain_match"
	KeywordMatch       Criterion = "keyword_match"
	EligibilityFit     Criterion = "eligibility"
	BudgetFit          Criterion = "budget_fit"
	StrategicAlignment Criterion = "strategic_alignment"
	DeadlineUrgency    Criterion = "deadline_urgency"
)

// Weight pairs a criterion with its share of the aggregate.
type Weight struct {
	Criterion Criterion
	Value     float64
}

// Weights are fixed and sum to exactly 1.0.
var Weights = []Weight{
	{Criterion: DomainMatch, Value: 0.30},
	{Criterion: KeywordMatch, Value: 0.15},
	{Criterion: EligibilityFit, Value: 0.20},
	{Criterion: BudgetFit, Value: 0.15},
	{Criterion: StrategicAlignment, Value: 0.10},
	{Criterion: DeadlineUrgency, Value: 0.10},
}

const weightTolerance = 1e-9

// CheckWeights verifies that the weights cover every criterion once and sum to 1.0.
func CheckWeights(weights []Weight) error {
	seen := make(map[Criterion]struct{}, len(weights))
	sum := 0.0
	for _, w := range weights {
		if _, ok := seen[w.Criterion]; ok {
			return invariant.Errorf("scoring weights", "criterion %s is weighted twice", w.Criterion)
		}
		seen[w.Criterion] = struct{}{}
		sum += w.Value
	}
	if len(seen) != 6 {
		return invariant.Errorf("scoring weights", "expected 6 criteria, got %d", len(seen))
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return invariant.Errorf("scoring weights", "weights sum to %v, not 1.0", sum)
	}
	return nil
}

// Score is one criterion result on a 0-10 scale.
type Score struct {
	Criterion Criterion `json:"criterion"`
	Value     float64   `json:"value"`
	Weight    float64   `json:"weight"`
	Note      string    `json:"note,omitempty"`
}

// Penalty reasons reduce the confidence factor.
const (
	PenaltyNoDescription     = "missing description"
	PenaltyNoKeywords        = "missing keywords"
	PenaltyNoRequiredDomains = "missing required domains"
)

const (
	penaltyStep   = 0.2
	minConfidence = 0.5
)

// Breakdown is the full scoring result of one call.
type Breakdown struct {
	CallID          string   `json:"call_id"`
	Mode            Mode     `json:"mode"`
	Scores          []Score  `json:"scores"`
	RawPercent      float64  `json:"raw_percent"`
	Confidence      float64  `json:"confidence"`
	AdjustedPercent float64  `json:"adjusted_percent"`
	Penalties       []string `json:"penalties,omitempty"`
	Rationale       string   `json:"rationale,omitempty"`
}

// Score returns the value of criterion c.
func (b *Breakdown) Score(c Criterion) float64 {
	for _, s := range b.Scores {
		if s.Criterion == c {
			return s.Value
		}
	}
	return 0
}

// Input carries everything a scorer looks at. Keywords and Programmes come from the search plan.
type Input struct {
	Profile     *profile.Company
	Call        *calls.Call
	Eligibility *eligibility.Result
	Assessment  *ai.Assessment
	Keywords    []string
	Programmes  []string
	Now         time.Time
}

// Scorer turns an input into a breakdown.
type Scorer interface {
	Mode() Mode
	Score(in Input) Breakdown
}

// Select returns the enhanced scorer when the assessment is well formed and
// the deterministic one otherwise.
func Select(assessment *ai.Assessment) Scorer {
	if assessment.Valid() {
		return Enhanced{}
	}
	return Deterministic{}
}

// finish computes the aggregates and the confidence factor.
func finish(b Breakdown, call *calls.Call) Breakdown {
	total := 0.0
	for i := range b.Scores {
		b.Scores[i].Value = clamp(b.Scores[i].Value, 0, 10)
		total += b.Scores[i].Value / 10 * b.Scores[i].Weight
	}
	b.RawPercent = round2(clamp(total*100, 0, 100))

	b.Penalties = penalties(call)
	b.Confidence = math.Max(minConfidence, 1-penaltyStep*float64(len(b.Penalties)))
	b.AdjustedPercent = round2(b.RawPercent * b.Confidence)
	return b
}

func penalties(call *calls.Call) []string {
	if call == nil {
		return []string{PenaltyNoDescription, PenaltyNoKeywords, PenaltyNoRequiredDomains}
	}
	var out []string
	if !call.HasDescription() {
		out = append(out, PenaltyNoDescription)
	}
	if len(call.Keywords) == 0 {
		out = append(out, PenaltyNoKeywords)
	}
	if len(call.RequiredDomains) == 0 {
		out = append(out, PenaltyNoRequiredDomains)
	}
	return out
}

func weightOf(c Criterion) float64 {
	for _, w := range Weights {
		if w.Criterion == c {
			return w.Value
		}
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(hi, math.Max(lo, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
