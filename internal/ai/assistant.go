package ai

import (
	"context"
	"math"
)

// Request is what the reasoning collaborator judges: a company summary against one call.
type Request struct {
	CallID    string
	Profile   string
	Candidate string
}

// Assessment is a qualitative judgement of one call. Fits are on a 0-10 scale.
type Assessment struct {
	DomainFit    float64 `json:"domain_fit"`
	KeywordFit   float64 `json:"keyword_fit"`
	StrategicFit float64 `json:"strategic_fit"`
	Rationale    string  `json:"rationale,omitempty"`
	Raw          string  `json:"-"`
}

// Valid reports whether the assessment can drive enhanced scoring.
func (a *Assessment) Valid() bool {
	if a == nil {
		return false
	}
	for _, v := range []float64{a.DomainFit, a.KeywordFit, a.StrategicFit} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 10 {
			return false
		}
	}
	return true
}

// Assessor produces qualitative assessments.
type Assessor interface {
	Assess(ctx context.Context, req Request) (*Assessment, error)
}

// Generator turns a prompt into model text.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}
