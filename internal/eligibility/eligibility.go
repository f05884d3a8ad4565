package eligibility

import (
	"fmt"
	"strings"

	"github.com/spigell/eu-call-finder/internal/calls"
	"github.com/spigell/eu-call-finder/internal/profile"
	"github.com/spigell/eu-call-finder/internal/utils"
)

// Outcome is the tri-state result of a single constraint.
type Outcome string

const (
	Pass    Outcome = "pass"
	Fail    Outcome = "fail"
	Unknown Outcome = "unknown"
)

// Status is the aggregate eligibility of a call.
type Status string

const (
	Eligible         Status = "eligible"
	Ineligible       Status = "ineligible"
	InsufficientData Status = "insufficient_data"
)

// Constraint names one eligibility rule.
type Constraint string

const (
	ConstraintCountry Constraint = "country"
	ConstraintOrgType Constraint = "organization_type"
	ConstraintBudget  Constraint = "budget"
	ConstraintDomain  Constraint = "domain"
)

// Constraints lists every rule in evaluation order.
var Constraints = []Constraint{ConstraintCountry, ConstraintOrgType, ConstraintBudget, ConstraintDomain}

// Check is the outcome of one constraint.
type Check struct {
	Constraint Constraint `json:"constraint"`
	Outcome    Outcome    `json:"outcome"`
	Note       string     `json:"note,omitempty"`
}

// Result is the evaluation of one call against one company.
type Result struct {
	CallID string  `json:"call_id"`
	Status Status  `json:"status"`
	Checks []Check `json:"checks"`
}

// Outcome returns the outcome of constraint c, Unknown when it was not evaluated.
func (r *Result) Outcome(c Constraint) Outcome {
	if r == nil {
		return Unknown
	}
	for _, check := range r.Checks {
		if check.Constraint == c {
			return check.Outcome
		}
	}
	return Unknown
}

// Unresolved lists the constraints that had no data to decide on.
func (r *Result) Unresolved() []Constraint {
	if r == nil {
		return nil
	}
	var out []Constraint
	for _, check := range r.Checks {
		if check.Outcome == Unknown {
			out = append(out, check.Constraint)
		}
	}
	return out
}

// Notes returns the human-readable notes of all checks.
func (r *Result) Notes() []string {
	if r == nil {
		return nil
	}
	notes := make([]string, 0, len(r.Checks))
	for _, check := range r.Checks {
		if check.Note != "" {
			notes = append(notes, fmt.Sprintf("%s: %s", check.Constraint, check.Note))
		}
	}
	return notes
}

// Display renders the aggregate status for people. Insufficient data is never shown as a pass.
func (r *Result) Display() string {
	if r == nil {
		return "UNKNOWN"
	}
	switch r.Status {
	case Eligible:
		return "PASS"
	case Ineligible:
		var failed []string
		for _, check := range r.Checks {
			if check.Outcome == Fail {
				failed = append(failed, string(check.Constraint))
			}
		}
		return fmt.Sprintf("FAIL (%s)", strings.Join(failed, ", "))
	default:
		unresolved := make([]string, 0, len(r.Checks))
		for _, c := range r.Unresolved() {
			unresolved = append(unresolved, string(c))
		}
		return fmt.Sprintf("UNVERIFIED (no data: %s)", strings.Join(unresolved, ", "))
	}
}

// Aggregate folds constraint outcomes: any failure makes the call ineligible,
// otherwise any unknown makes the data insufficient.
func Aggregate(checks []Check) Status {
	status := Eligible
	for _, check := range checks {
		switch check.Outcome {
		case Fail:
			return Ineligible
		case Unknown:
			status = InsufficientData
		}
	}
	return status
}

// Config tunes the budget constraint.
type Config struct {
	// BudgetTolerance is the accepted ratio between disjoint ranges.
	BudgetTolerance float64 `mapstructure:"budget-tolerance"`
	// LargeProgrammeTolerance replaces BudgetTolerance for Horizon Europe and EIC calls.
	LargeProgrammeTolerance float64 `mapstructure:"large-programme-tolerance"`
}

const (
	defaultBudgetTolerance         = 8
	defaultLargeProgrammeTolerance = 15
)

func (c Config) withDefaults() Config {
	if c.BudgetTolerance <= 0 {
		c.BudgetTolerance = defaultBudgetTolerance
	}
	if c.LargeProgrammeTolerance <= 0 {
		c.LargeProgrammeTolerance = defaultLargeProgrammeTolerance
	}
	return c
}

// Evaluator checks calls against a company profile.
type Evaluator struct {
	cfg Config
}

// New returns an evaluator with the given tolerances.
func New(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg.withDefaults()}
}

// Evaluate runs every constraint with default tolerances.
func Evaluate(company *profile.Company, call *calls.Call) Result {
	return New(Config{}).Evaluate(company, call)
}

// Evaluate runs every constraint. A nil company or call yields insufficient data.
func (e *Evaluator) Evaluate(company *profile.Company, call *calls.Call) Result {
	result := Result{}
	if call != nil {
		result.CallID = call.ID
	}
	if company == nil || call == nil {
		for _, c := range Constraints {
			result.Checks = append(result.Checks, Check{Constraint: c, Outcome: Unknown, Note: "nothing to compare"})
		}
		result.Status = InsufficientData
		return result
	}

	result.Checks = []Check{
		checkCountry(company, call),
		checkOrgType(company, call),
		e.checkBudget(company, call),
		checkDomain(company, call),
	}
	result.Status = Aggregate(result.Checks)
	return result
}

func checkCountry(company *profile.Company, call *calls.Call) Check {
	check := Check{Constraint: ConstraintCountry}
	if len(call.EligibleCountries) == 0 {
		check.Outcome = Unknown
		check.Note = "call does not list eligible countries"
		return check
	}

	country := NormalizeCountry(company.Country)
	if country == "" {
		check.Outcome = Unknown
		check.Note = "profile country is not set"
		return check
	}

	if _, ok := ExpandCountries(call.EligibleCountries)[country]; ok {
		check.Outcome = Pass
		check.Note = fmt.Sprintf("%s is eligible", company.Country)
		return check
	}

	check.Outcome = Fail
	check.Note = fmt.Sprintf("%s is not among eligible countries", company.Country)
	return check
}

func checkOrgType(company *profile.Company, call *calls.Call) Check {
	check := Check{Constraint: ConstraintOrgType}
	if len(call.EligibleOrgTypes) == 0 {
		check.Outcome = Unknown
		check.Note = "call does not list eligible organization types"
		return check
	}

	orgType := NormalizeOrgType(company.Type)
	if orgType == "" {
		check.Outcome = Unknown
		check.Note = "profile organization type is not set"
		return check
	}

	for _, t := range call.EligibleOrgTypes {
		n := NormalizeOrgType(t)
		if n == orgTypeAny || n == orgType {
			check.Outcome = Pass
			check.Note = fmt.Sprintf("%s may apply", orgType)
			return check
		}
	}

	check.Outcome = Fail
	check.Note = fmt.Sprintf("%s is not an eligible organization type", orgType)
	return check
}

func (e *Evaluator) checkBudget(company *profile.Company, call *calls.Call) Check {
	check := Check{Constraint: ConstraintBudget}
	if call.Budget == nil || call.Budget.Max <= 0 {
		check.Outcome = Unknown
		check.Note = "call budget is not stated"
		return check
	}
	preferred, ok := company.PreferredBudget()
	if !ok {
		check.Outcome = Unknown
		check.Note = "no budget preference or company size"
		return check
	}

	ratio := GapRatio(preferred, *call.Budget)
	if ratio <= 1 {
		check.Outcome = Pass
		check.Note = "budget range overlaps the preference"
		return check
	}

	tolerance := e.cfg.BudgetTolerance
	if IsLargeProgramme(call.Programme) {
		tolerance = e.cfg.LargeProgrammeTolerance
	}
	if ratio <= tolerance {
		check.Outcome = Pass
		check.Note = fmt.Sprintf("budget is %.1fx away from the preference, within tolerance", ratio)
		return check
	}

	check.Outcome = Fail
	check.Note = fmt.Sprintf("budget is %.1fx away from the preference", ratio)
	return check
}

// GapRatio returns 1 when the ranges overlap, otherwise how many times the
// nearer bound of the call is away from the preference.
func GapRatio(preferred profile.Budget, call calls.Range) float64 {
	prefMax := preferred.Max
	if prefMax <= 0 {
		prefMax = preferred.Min
	}
	callMin := call.Min
	if callMin <= 0 {
		callMin = call.Max
	}

	switch {
	case callMin > prefMax && prefMax > 0:
		return callMin / prefMax
	case call.Max < preferred.Min && call.Max > 0:
		return preferred.Min / call.Max
	default:
		return 1
	}
}

// IsLargeProgramme reports whether the programme funds large consortium or scale-up projects.
func IsLargeProgramme(programme string) bool {
	p := strings.ToLower(programme)
	return strings.Contains(p, "horizon") || strings.Contains(p, "eic")
}

func checkDomain(company *profile.Company, call *calls.Call) Check {
	check := Check{Constraint: ConstraintDomain}
	if len(call.RequiredDomains) == 0 {
		check.Outcome = Unknown
		check.Note = "call does not state required domains"
		return check
	}

	if matched, ok := DomainOverlap(company.Terms(), call.RequiredDomains); ok {
		check.Outcome = Pass
		check.Note = fmt.Sprintf("covers %s", matched)
		return check
	}

	check.Outcome = Fail
	check.Note = "no declared domain matches the call"
	return check
}

// DomainOverlap returns the first required domain covered by any term. A term
// covers a domain when either one contains the other as a run of whole words.
func DomainOverlap(terms, required []string) (string, bool) {
	for _, r := range required {
		rw := utils.Words(r)
		if len(rw) == 0 {
			continue
		}
		for _, t := range terms {
			tw := utils.Words(t)
			if len(tw) == 0 {
				continue
			}
			if utils.ContainsWords(rw, tw) || utils.ContainsWords(tw, rw) {
				return r, true
			}
		}
	}
	return "", false
}
