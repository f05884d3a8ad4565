package workflow

import (
	"errors"
	"testing"

	"github.com/spigell/eu-call-finder/internal/calls"
	"github.com/spigell/eu-call-finder/internal/eligibility"
	"github.com/spigell/eu-call-finder/internal/planner"
	"github.com/spigell/eu-call-finder/internal/scoring"
)

func TestTransitionTable(t *testing.T) {
	all := []Stage{StagePlanning, StageRetrieval, StageScoring, StageRefine, StageReporting, StageDone}

	for _, from := range all {
		for _, to := range all {
			s := State{RunID: "r", Stage: from}
			_, err := s.Transition(to)

			allowed := false
			for _, legal := range Transitions[from] {
				if legal == to {
					allowed = true
				}
			}
			if allowed && err != nil {
				t.Errorf("%s -> %s: unexpected error %v", from, to, err)
			}
			if !allowed {
				var inv *InvariantError
				if !errors.As(err, &inv) {
					t.Errorf("%s -> %s: expected invariant error, got %v", from, to, err)
				}
			}
		}
	}
}

func TestTransitionCountsAttempts(t *testing.T) {
	s := NewState("r", nil)
	path := []Stage{StageRetrieval, StageScoring, StageRefine, StagePlanning, StageRetrieval, StageScoring, StageRefine, StagePlanning}

	var err error
	for _, to := range path {
		if s, err = s.Transition(to); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}
	if s.Attempt != 2 {
		t.Fatalf("expected attempt 2, got %d", s.Attempt)
	}

	s, _ = s.Transition(StageRetrieval)
	s, _ = s.Transition(StageScoring)
	if _, err := s.Transition(StageRefine); err == nil {
		t.Fatal("refining past the last attempt must be rejected")
	}
	if s, err = s.Transition(StageReporting); err != nil {
		t.Fatalf("reporting: %v", err)
	}
	if s, err = s.Transition(StageDone); err != nil || !s.Terminal() {
		t.Fatalf("expected terminal state, got %v %v", s.Stage, err)
	}
	if _, err := s.Transition(StagePlanning); err == nil {
		t.Fatal("terminal state must not move")
	}
}

func TestStateIsNotMutated(t *testing.T) {
	s := NewState("r", nil)

	withCalls, added := s.WithCalls([]*calls.Call{{ID: "a"}, {ID: "a"}, {ID: "b"}}, false)
	if added != 2 || withCalls.Calls.Len() != 2 || s.Calls.Len() != 0 {
		t.Fatalf("unexpected merge: added=%d new=%d old=%d", added, withCalls.Calls.Len(), s.Calls.Len())
	}

	scored := withCalls.WithResults(nil, map[string]scoring.Breakdown{"a": {CallID: "a", Confidence: 0.8}})
	if len(withCalls.Scores) != 0 || len(scored.Scores) != 1 {
		t.Fatalf("results must only land in the new state")
	}
	if got := scored.Unscored(); len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("unexpected unscored calls %v", got)
	}
	if scored.MeanConfidence() != 0.8 || s.MeanConfidence() != 0 {
		t.Fatalf("unexpected mean confidence")
	}

	moved, err := scored.Transition(StageRetrieval)
	if err != nil {
		t.Fatal(err)
	}
	if scored.Stage != StagePlanning || moved.Stage != StageRetrieval {
		t.Fatal("transition must return a new state")
	}
}

func TestWithCallsDropsResultsOfEnrichedCalls(t *testing.T) {
	s, _ := NewState("r", nil).WithCalls([]*calls.Call{{ID: "a"}, {ID: "b", Description: "full"}}, false)
	s = s.WithResults(
		map[string]eligibility.Result{"a": {Status: eligibility.InsufficientData}, "b": {Status: eligibility.Eligible}},
		map[string]scoring.Breakdown{"a": {CallID: "a", Confidence: 0.5}, "b": {CallID: "b", Confidence: 1}},
	)

	next, added := s.WithCalls([]*calls.Call{{ID: "a", Description: "now known"}, {ID: "b", Description: "ignored"}}, false)
	if added != 0 {
		t.Fatalf("expected no new calls, got %d", added)
	}
	if _, ok := next.Scores["a"]; ok {
		t.Fatal("enriched call must lose its score")
	}
	if _, ok := next.Eligibility["a"]; ok {
		t.Fatal("enriched call must lose its eligibility")
	}
	if _, ok := next.Scores["b"]; !ok {
		t.Fatal("unchanged call must keep its score")
	}
	if got := next.Unscored(); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("unexpected unscored calls %v", got)
	}
	if _, ok := s.Scores["a"]; !ok {
		t.Fatal("previous state must keep its results")
	}
}

func TestWithPlanRejectsRepeats(t *testing.T) {
	p := planner.Plan{Terms: []string{"smart grid"}, Filter: planner.Filter{Types: []string{"1"}}}

	s, err := NewState("r", nil).WithPlan(p)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.WithPlan(p); err == nil {
		t.Fatal("expected error for a repeated plan")
	}

	p.Filter.Types = []string{"1", "2"}
	s, err = s.WithPlan(p)
	if err != nil {
		t.Fatalf("widened plan must be accepted: %v", err)
	}
	if len(s.Plans) != 2 || s.LastPlan().Filter.Types[1] != "2" {
		t.Fatalf("unexpected plans %+v", s.Plans)
	}
}

func TestEmitterOrdering(t *testing.T) {
	rec := &Recorder{}
	em := newEmitter("r", rec)

	if err := em.progress(StagePlanning, 0, "plan"); err != nil {
		t.Fatal(err)
	}
	if err := em.progress(StagePlanning, 0, "plan"); err == nil {
		t.Fatal("duplicate stage event must be rejected")
	}
	if err := em.progress(StageRetrieval, 0, "search"); err != nil {
		t.Fatal(err)
	}
	if err := em.progress(StagePlanning, 1, "going back"); err != nil {
		t.Fatalf("next attempt planning must move forward: %v", err)
	}

	em.fail(StagePlanning, 1, errors.New("boom"))
	em.complete(nil, 1)
	if err := em.progress(StageRetrieval, 1, "late"); err == nil {
		t.Fatal("events after the terminal event must be rejected")
	}

	events := rec.Events()
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	if events[3].Kind != EventFailed || !events[3].Terminal() {
		t.Fatalf("expected single failed terminal event, got %+v", events[3])
	}
}
