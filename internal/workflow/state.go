package workflow

import (
	"maps"
	"slices"

	"github.com/spigell/eu-call-finder/internal/calls"
	"github.com/spigell/eu-call-finder/internal/eligibility"
	"github.com/spigell/eu-call-finder/internal/invariant"
	"github.com/spigell/eu-call-finder/internal/planner"
	"github.com/spigell/eu-call-finder/internal/profile"
	"github.com/spigell/eu-call-finder/internal/report"
	"github.com/spigell/eu-call-finder/internal/scoring"
)

// InvariantError is returned for illegal transitions and other internal bugs.
type InvariantError = invariant.Error

// Stage is a state of the workflow machine.
type Stage string

const (
	StagePlanning  Stage = "planning"
	StageRetrieval Stage = "retrieval"
	StageScoring   Stage = "scoring"
	StageRefine    Stage = "refine"
	StageReporting Stage = "reporting"
	StageDone      Stage = "done"
)

// MaxAttempts caps the retrieval attempts of one run.
const MaxAttempts = 3

// Transitions is the complete table of legal moves.
var Transitions = map[Stage][]Stage{
	StagePlanning:  {StageRetrieval},
	StageRetrieval: {StageScoring},
	StageScoring:   {StageRefine, StageReporting},
	StageRefine:    {StagePlanning},
	StageReporting: {StageDone},
	StageDone:      nil,
}

// State is the value a run moves through. Every method returns a new State.
type State struct {
	RunID   string
	Stage   Stage
	Attempt int
	Profile *profile.Company

	Calls       *calls.Calls
	Eligibility map[string]eligibility.Result
	Scores      map[string]scoring.Breakdown

	Plans    []planner.Plan
	Feedback *planner.Feedback
	// RetrievalFailed is set when the last retrieval call failed after its retry.
	RetrievalFailed bool
	// Exhausted is set when reporting starts with the thresholds still unmet.
	Exhausted bool
	Report    *report.Report
}

// NewState returns the initial planning state of a run.
func NewState(runID string, company *profile.Company) State {
	return State{
		RunID:       runID,
		Stage:       StagePlanning,
		Profile:     company,
		Calls:       &calls.Calls{},
		Eligibility: map[string]eligibility.Result{},
		Scores:      map[string]scoring.Breakdown{},
	}
}

// Terminal reports whether the run has finished.
func (s State) Terminal() bool {
	return s.Stage == StageDone
}

// CanTransition reports whether the table allows moving to stage to.
func (s State) CanTransition(to Stage) bool {
	return slices.Contains(Transitions[s.Stage], to)
}

// Transition moves to stage to. Moving from refine to planning starts the next attempt.
func (s State) Transition(to Stage) (State, error) {
	if s.Terminal() {
		return s, invariant.Errorf("transition", "run %s is already %s", s.RunID, s.Stage)
	}
	if !s.CanTransition(to) {
		return s, invariant.Errorf("transition", "%s -> %s is not allowed", s.Stage, to)
	}

	if s.Stage == StageScoring && to == StageRefine && s.Attempt+1 >= MaxAttempts {
		return s, invariant.Errorf("transition", "attempt %d is the last one, refine is not allowed", s.Attempt)
	}

	next := s.clone()
	if s.Stage == StageRefine && to == StagePlanning {
		next.Attempt++
	}
	next.Stage = to
	return next, nil
}

// LastPlan returns the plan of the current attempt.
func (s State) LastPlan() planner.Plan {
	if len(s.Plans) == 0 {
		return planner.Plan{}
	}
	return s.Plans[len(s.Plans)-1]
}

// WithPlan records the plan of the current attempt. A plan repeating an earlier one is a bug.
func (s State) WithPlan(p planner.Plan) (State, error) {
	for _, prev := range s.Plans {
		if prev.Fingerprint() == p.Fingerprint() {
			return s, invariant.Errorf("planning", "attempt %d repeats the plan of attempt %d", s.Attempt, prev.Attempt)
		}
	}
	next := s.clone()
	next.Plans = append(next.Plans, p)
	return next, nil
}

// WithCalls merges retrieved calls by id and returns the number of new ones.
// Calls that gained data lose their results so the next scoring sees them again.
func (s State) WithCalls(incoming []*calls.Call, failed bool) (State, int) {
	next := s.clone()
	merged, added, enriched := s.Calls.MergeTracked(incoming)
	next.Calls = merged
	next.RetrievalFailed = failed
	for _, id := range enriched {
		delete(next.Scores, id)
		delete(next.Eligibility, id)
	}
	return next, added
}

// WithResults stores eligibility and scoring results of calls.
func (s State) WithResults(results map[string]eligibility.Result, scores map[string]scoring.Breakdown) State {
	next := s.clone()
	maps.Copy(next.Eligibility, results)
	maps.Copy(next.Scores, scores)
	return next
}

// WithFeedback stores what the next planning round should act on.
func (s State) WithFeedback(fb *planner.Feedback) State {
	next := s.clone()
	next.Feedback = fb
	return next
}

// WithExhausted marks that the attempts ran out with the thresholds unmet.
func (s State) WithExhausted(v bool) State {
	next := s.clone()
	next.Exhausted = v
	return next
}

// WithReport stores the assembled report.
func (s State) WithReport(r *report.Report) State {
	next := s.clone()
	next.Report = r
	return next
}

// Unscored returns the accumulated calls that have no score yet, in merge order.
func (s State) Unscored() []*calls.Call {
	var out []*calls.Call
	if s.Calls == nil {
		return out
	}
	for _, c := range s.Calls.Items {
		if _, ok := s.Scores[c.ID]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// MeanConfidence averages the confidence factor of all scored calls. It is 0 without scores.
func (s State) MeanConfidence() float64 {
	if len(s.Scores) == 0 {
		return 0
	}
	total := 0.0
	for _, b := range s.Scores {
		total += b.Confidence
	}
	return total / float64(len(s.Scores))
}

func (s State) clone() State {
	next := s
	next.Eligibility = maps.Clone(s.Eligibility)
	next.Scores = maps.Clone(s.Scores)
	next.Plans = slices.Clone(s.Plans)
	if next.Eligibility == nil {
		next.Eligibility = map[string]eligibility.Result{}
	}
	if next.Scores == nil {
		next.Scores = map[string]scoring.Breakdown{}
	}
	return next
}
