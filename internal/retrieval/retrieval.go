package retrieval

import (
	"context"
	"fmt"
	"slices"

	"github.com/spigell/eu-call-finder/internal/calls"
	"github.com/spigell/eu-call-finder/internal/planner"
)

// Adapter searches an external catalog of funding calls.
type Adapter interface {
	Search(ctx context.Context, req Request) ([]*calls.Call, error)
}

// Request is one search. Terms are plain phrases only.
type Request struct {
	Terms  []string       `json:"terms"`
	Filter planner.Filter `json:"filter"`
}

// FromPlan builds the request for a search plan.
func FromPlan(plan planner.Plan) Request {
	return Request{
		Terms: slices.Clone(plan.Terms),
		Filter: planner.Filter{
			Status: slices.Clone(plan.Filter.Status),
			Types:  slices.Clone(plan.Filter.Types),
			Period: plan.Filter.Period,
		},
	}
}

// Validate rejects empty requests and terms with quoting or boolean syntax.
func (r Request) Validate() error {
	if len(r.Terms) == 0 {
		return fmt.Errorf("search request has no terms")
	}
	for _, t := range r.Terms {
		if !planner.IsPlain(t) {
			return fmt.Errorf("search term %q is not a plain phrase", t)
		}
	}
	return nil
}
