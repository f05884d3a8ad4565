package planner

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spigell/eu-call-finder/internal/profile"
	"github.com/spigell/eu-call-finder/internal/utils"
	"go.uber.org/zap"
)

// KeywordPolicy decides how caller-supplied keywords combine with extracted ones.
type KeywordPolicy string

const (
	// KeywordPolicyMerge puts caller keywords first and keeps extracted ones after them.
	KeywordPolicyMerge KeywordPolicy = "merge"
	// KeywordPolicyOverride uses caller keywords only, when there are any.
	KeywordPolicyOverride KeywordPolicy = "override"
)

const (
	defaultMaxTerms    = 6
	defaultMinKeywords = 2
)

// ErrStalePlan is returned when no plan different from the previous ones could be built.
var ErrStalePlan = errors.New("planner could not build a new search plan")

// Config tunes the planner.
type Config struct {
	MaxTerms      int           `mapstructure:"max-terms"`
	MinKeywords   int           `mapstructure:"min-keywords"`
	KeywordPolicy KeywordPolicy `mapstructure:"keyword-policy"`
}

func (c Config) withDefaults() Config {
	if c.MaxTerms <= 0 {
		c.MaxTerms = defaultMaxTerms
	}
	if c.MinKeywords <= 0 {
		c.MinKeywords = defaultMinKeywords
	}
	if c.KeywordPolicy == "" {
		c.KeywordPolicy = KeywordPolicyMerge
	}
	return c
}

// Filter is the structured part of a search request.
type Filter struct {
	Status []string `json:"status"`
	Types  []string `json:"type"`
	Period string   `json:"programme_period"`
}

// Plan is what one retrieval attempt searches for.
type Plan struct {
	Attempt    int      `json:"attempt"`
	Terms      []string `json:"terms"`
	Programmes []string `json:"programmes,omitempty"`
	Filter     Filter   `json:"filter"`
	Categories []string `json:"categories,omitempty"`
	// LowSpecificity is set when no domain could be inferred.
	LowSpecificity bool `json:"low_specificity"`
	// FallbackPack is set when a category keyword pack replaced extraction.
	FallbackPack bool `json:"fallback_pack"`
}

// Fingerprint identifies the search a plan performs.
func (p Plan) Fingerprint() string {
	return strings.Join([]string{
		strings.Join(p.Terms, "|"),
		strings.Join(p.Filter.Types, ","),
		strings.Join(p.Filter.Status, ","),
		p.Filter.Period,
	}, "#")
}

// Reason explains why an attempt was judged insufficient.
type Reason string

const (
	ReasonTooFewCandidates Reason = "too_few_candidates"
	ReasonLowConfidence    Reason = "low_confidence"
	ReasonRetrievalFailed  Reason = "retrieval_failed"
)

// Feedback is carried from an insufficient attempt into the next planning round.
type Feedback struct {
	// Attempt is the 0-based attempt the next plan is built for.
	Attempt          int
	Reasons          []Reason
	UniqueCandidates int
	MeanConfidence   float64
	Previous         []Plan
}

// Has reports whether the feedback contains reason r.
func (f *Feedback) Has(r Reason) bool {
	return f != nil && slices.Contains(f.Reasons, r)
}

// Planner builds search plans from company profiles.
type Planner struct {
	cfg    Config
	logger *zap.Logger
}

// New returns a planner. A nil logger is replaced by a no-op logger.
func New(cfg Config, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{cfg: cfg.withDefaults(), logger: logger}
}

// Plan builds the search plan for an attempt. feedback is nil on the first attempt.
func (p *Planner) Plan(company *profile.Company, feedback *Feedback) (Plan, error) {
	if company == nil {
		return Plan{}, fmt.Errorf("profile is required")
	}

	attempt := 0
	if feedback != nil {
		attempt = feedback.Attempt
	}

	a := analyze(company)
	plan := Plan{
		Attempt:    attempt,
		Filter:     filterFor(attempt),
		Categories: a.categoryNames(),
		Programmes: a.programmes(company),
	}

	keywords := p.combine(company.Keywords, a.extracted)
	switch {
	case len(company.Domains) == 0 || (len(keywords) == 0 && len(a.categories) == 0):
		plan.LowSpecificity = true
		plan.Categories = nil
		plan.Programmes = []string{programmeHorizon}
		keywords = genericPlanTerms(company)
	case countSpecific(keywords) < p.cfg.MinKeywords && len(a.categories) > 0:
		plan.FallbackPack = true
		keywords = append(slices.Clone(a.categories[0].Pack), keywords...)
	}

	terms := SanitizeTerms(keywords, p.cfg.MaxTerms)
	if attempt > 0 {
		terms = p.refine(terms, a, plan.LowSpecificity, feedback)
	}
	if len(terms) == 0 {
		terms = []string{"innovation"}
	}
	plan.Terms = terms

	if feedback != nil {
		var err error
		plan, err = p.ensureFresh(plan, a, feedback.Previous)
		if err != nil {
			return Plan{}, err
		}
	}

	p.logger.Debug("search plan built",
		zap.Int("attempt", plan.Attempt),
		zap.Strings("terms", plan.Terms),
		zap.Strings("types", plan.Filter.Types),
		zap.Strings("categories", plan.Categories),
		zap.Bool("low_specificity", plan.LowSpecificity),
		zap.Bool("fallback_pack", plan.FallbackPack),
	)

	return plan, nil
}

// combine applies the keyword policy.
func (p *Planner) combine(caller, extracted []string) []string {
	caller = SanitizeTerms(caller, 0)
	if p.cfg.KeywordPolicy == KeywordPolicyOverride && len(caller) > 0 {
		return caller
	}
	return append(caller, extracted...)
}

// refine broadens or deepens the term list depending on why the previous attempt fell short.
func (p *Planner) refine(terms []string, a analysis, generic bool, feedback *Feedback) []string {
	if generic {
		return SanitizeTerms(append(terms, "research innovation", "sme"), p.cfg.MaxTerms)
	}

	if feedback.Has(ReasonLowConfidence) && !feedback.Has(ReasonTooFewCandidates) && !feedback.Has(ReasonRetrievalFailed) {
		var deeper []string
		deeper = append(deeper, terms...)
		for _, c := range a.categories {
			deeper = append(deeper, c.Patterns...)
		}
		return SanitizeTerms(deeper, p.cfg.MaxTerms)
	}

	var broad []string
	for _, c := range a.categories {
		broad = append(broad, c.Broad...)
	}
	return SanitizeTerms(append(broad, terms...), p.cfg.MaxTerms)
}

// ensureFresh alters the plan until its fingerprint differs from all previous plans.
func (p *Planner) ensureFresh(plan Plan, a analysis, previous []Plan) (Plan, error) {
	seen := make(map[string]struct{}, len(previous))
	for _, prev := range previous {
		seen[prev.Fingerprint()] = struct{}{}
	}
	if _, ok := seen[plan.Fingerprint()]; !ok {
		return plan, nil
	}

	for _, term := range a.reserve(plan) {
		if slices.Contains(plan.Terms, term) {
			continue
		}
		if len(plan.Terms) >= p.cfg.MaxTerms {
			plan.Terms = append(slices.Clone(plan.Terms[:len(plan.Terms)-1]), term)
		} else {
			plan.Terms = append(slices.Clone(plan.Terms), term)
		}
		if _, ok := seen[plan.Fingerprint()]; !ok {
			return plan, nil
		}
	}

	return Plan{}, fmt.Errorf("attempt %d: %w", plan.Attempt, ErrStalePlan)
}

func filterFor(attempt int) Filter {
	types := baseTypes
	if attempt > 0 {
		types = widenedTypes[min(attempt-1, len(widenedTypes)-1)]
	}
	return Filter{
		Status: slices.Clone(statusOpenForthcoming),
		Types:  slices.Clone(types),
		Period: programmePeriod,
	}
}

func genericPlanTerms(company *profile.Company) []string {
	return []string{company.Type, company.Country}
}

func countSpecific(terms []string) int {
	n := 0
	for _, t := range SanitizeTerms(terms, 0) {
		if !isGeneric(t) {
			n++
		}
	}
	return n
}

type analysis struct {
	categories []*category
	extracted  []string
}

// analyze infers categories and extracts specific terms from the profile.
// Categories triggered by declared domains rank before those found only in
// the description.
func analyze(company *profile.Company) analysis {
	declared := company.Terms()
	declaredWords := utils.Words(strings.Join(declared, " "))
	words := append(slices.Clone(declaredWords), utils.Words(company.Description)...)

	var a analysis
	var described []*category
	for i := range categories {
		c := &categories[i]
		switch {
		case mentionsAny(declaredWords, c.Triggers):
			a.categories = append(a.categories, c)
		case mentionsAny(words, c.Triggers):
			described = append(described, c)
		}
	}
	a.categories = append(a.categories, described...)

	var found []string
	for _, t := range declared {
		if t = SanitizeTerm(t); t != "" && !isGeneric(t) {
			found = append(found, t)
		}
	}
	for i := range categories {
		for _, pattern := range categories[i].Patterns {
			if mentions(words, pattern) {
				found = append(found, pattern)
			}
		}
	}
	a.extracted = SanitizeTerms(found, 0)

	return a
}

func mentionsAny(words, phrases []string) bool {
	for _, p := range phrases {
		if mentions(words, p) {
			return true
		}
	}
	return false
}

// mentions reports whether phrase occurs in words on word boundaries. Its last
// word may carry a plural suffix, or any suffix when phrase ends with "*".
func mentions(words []string, phrase string) bool {
	stem := strings.HasSuffix(phrase, "*")
	pw := utils.Words(phrase)
	if len(pw) == 0 || len(pw) > len(words) {
		return false
	}
	last := len(pw) - 1
	for i := 0; i+len(pw) <= len(words); i++ {
		if !slices.Equal(words[i:i+last], pw[:last]) {
			continue
		}
		w := words[i+last]
		switch {
		case w == pw[last], w == pw[last]+"s", w == pw[last]+"es":
			return true
		case stem && strings.HasPrefix(w, pw[last]):
			return true
		}
	}
	return false
}

func (a analysis) categoryNames() []string {
	names := make([]string, 0, len(a.categories))
	for _, c := range a.categories {
		names = append(names, c.Name)
	}
	return names
}

// programmes maps matched categories to funding programmes. SMEs with any
// match also target the EIC Accelerator.
func (a analysis) programmes(company *profile.Company) []string {
	var out []string
	for _, c := range a.categories {
		for _, prog := range c.Programmes {
			if !slices.Contains(out, prog) {
				out = append(out, prog)
			}
		}
	}
	if len(out) > 0 && strings.EqualFold(strings.TrimSpace(company.Type), "sme") {
		out = append(out, programmeEIC)
	}
	if len(out) == 0 {
		out = []string{programmeHorizon}
	}
	return out
}

// reserve lists terms that can make a plan fresh, most relevant first.
func (a analysis) reserve(plan Plan) []string {
	var terms []string
	for _, c := range a.categories {
		terms = append(terms, c.Pack...)
		terms = append(terms, c.Broad...)
		terms = append(terms, c.Name)
	}
	terms = append(terms, plan.Programmes...)
	for _, prog := range []string{programmeHorizon, programmeDigital, programmeLIFE, programmeEIC, programmeCEF, programmeInnovationFd} {
		terms = append(terms, prog)
	}
	return SanitizeTerms(terms, 0)
}
