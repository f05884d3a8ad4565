package eligibility

import (
	"slices"
	"strings"
	"testing"

	"github.com/spigell/eu-call-finder/internal/calls"
	"github.com/spigell/eu-call-finder/internal/profile"
)

func company() *profile.Company {
	return &profile.Company{
		Name:        "Volt",
		Type:        "Startup",
		Country:     "BG",
		Employees:   12,
		Description: "Microgrids",
		Domains: []profile.Domain{
			{Name: "Energy", SubDomains: []string{"Battery Storage"}},
		},
	}
}

func TestEvaluateWithoutCountryListIsInsufficient(t *testing.T) {
	call := &calls.Call{
		ID:               "LIFE-1",
		EligibleOrgTypes: []string{"SMEs"},
		RequiredDomains:  []string{"energy storage"},
		Budget:           &calls.Range{Min: 100_000, Max: 500_000},
	}

	res := Evaluate(company(), call)

	if res.Status != InsufficientData {
		t.Fatalf("expected insufficient data, got %s (%+v)", res.Status, res.Checks)
	}
	if res.Outcome(ConstraintCountry) != Unknown {
		t.Fatalf("missing country list must be unknown, got %s", res.Outcome(ConstraintCountry))
	}
	if got := res.Unresolved(); !slices.Equal(got, []Constraint{ConstraintCountry}) {
		t.Fatalf("expected only country unresolved, got %v", got)
	}
	if display := res.Display(); strings.Contains(display, "PASS") {
		t.Fatalf("insufficient data must not be displayed as pass: %q", display)
	}
}

func TestEvaluateAggregation(t *testing.T) {
	tests := []struct {
		name string
		call *calls.Call
		want Status
	}{
		{
			name: "all constraints pass",
			call: &calls.Call{
				EligibleCountries: []string{"EU Member States"},
				EligibleOrgTypes:  []string{"company"},
				RequiredDomains:   []string{"Energy"},
				Budget:            &calls.Range{Min: 200_000, Max: 800_000},
			},
			want: Eligible,
		},
		{
			name: "fail wins over unknown",
			call: &calls.Call{
				EligibleCountries: []string{"Norway"},
			},
			want: Ineligible,
		},
		{
			name: "nothing stated",
			call: &calls.Call{},
			want: InsufficientData,
		},
		{
			name: "associated countries do not include member states",
			call: &calls.Call{
				EligibleCountries: []string{"Associated Countries"},
				EligibleOrgTypes:  []string{"any"},
				RequiredDomains:   []string{"energy"},
				Budget:            &calls.Range{Max: 500_000},
			},
			want: Ineligible,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(company(), tt.call)
			if res.Status != tt.want {
				t.Fatalf("expected %s, got %s (%+v)", tt.want, res.Status, res.Checks)
			}
		})
	}
}

func TestCheckOrgType(t *testing.T) {
	tests := []struct {
		profileType string
		eligible    []string
		want        Outcome
	}{
		{profileType: "Startup", eligible: []string{"SMEs"}, want: Pass},
		{profileType: "University", eligible: []string{"Research organisation"}, want: Pass},
		{profileType: "NGO", eligible: []string{"SME", "public body"}, want: Fail},
		{profileType: "", eligible: []string{"SME"}, want: Unknown},
		{profileType: "Municipality", eligible: []string{"Any legal entity"}, want: Pass},
		{profileType: "SME", eligible: nil, want: Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.profileType+"/"+strings.Join(tt.eligible, ","), func(t *testing.T) {
			c := &profile.Company{Type: tt.profileType}
			got := checkOrgType(c, &calls.Call{EligibleOrgTypes: tt.eligible})
			if got.Outcome != tt.want {
				t.Fatalf("expected %s, got %s (%s)", tt.want, got.Outcome, got.Note)
			}
		})
	}
}

func TestCheckBudget(t *testing.T) {
	e := New(Config{})
	c := &profile.Company{Budget: &profile.Budget{Min: 100_000, Max: 500_000}}

	tests := []struct {
		name    string
		call    *calls.Call
		company *profile.Company
		want    Outcome
	}{
		{name: "no call budget", call: &calls.Call{}, company: c, want: Unknown},
		{name: "no preference and no size", call: &calls.Call{Budget: &calls.Range{Max: 1}}, company: &profile.Company{}, want: Unknown},
		{name: "overlap", call: &calls.Call{Budget: &calls.Range{Min: 400_000, Max: 2_000_000}}, company: c, want: Pass},
		{name: "within tolerance", call: &calls.Call{Budget: &calls.Range{Min: 2_000_000, Max: 3_000_000}}, company: c, want: Pass},
		{name: "too large", call: &calls.Call{Budget: &calls.Range{Min: 5_000_000, Max: 9_000_000}}, company: c, want: Fail},
		{name: "large programme tolerance", call: &calls.Call{Programme: "Horizon Europe", Budget: &calls.Range{Min: 5_000_000, Max: 9_000_000}}, company: c, want: Pass},
		{name: "far too small", call: &calls.Call{Budget: &calls.Range{Max: 10_000}}, company: c, want: Fail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.checkBudget(tt.company, tt.call)
			if got.Outcome != tt.want {
				t.Fatalf("expected %s, got %s (%s)", tt.want, got.Outcome, got.Note)
			}
		})
	}
}

func TestCheckDomain(t *testing.T) {
	c := company()

	if got := checkDomain(c, &calls.Call{RequiredDomains: []string{"Battery storage systems"}}); got.Outcome != Pass {
		t.Fatalf("expected sub-domain match, got %+v", got)
	}
	if got := checkDomain(c, &calls.Call{RequiredDomains: []string{"Renewable energy"}}); got.Outcome != Pass {
		t.Fatalf("expected domain match, got %+v", got)
	}
	if got := checkDomain(c, &calls.Call{RequiredDomains: []string{"Bioenergy"}}); got.Outcome != Fail {
		t.Fatalf("expected fail for a word merely containing a domain, got %+v", got)
	}
	if got := checkDomain(c, &calls.Call{RequiredDomains: []string{"Quantum"}}); got.Outcome != Fail {
		t.Fatalf("expected fail, got %+v", got)
	}
	if got := checkDomain(c, &calls.Call{}); got.Outcome != Unknown {
		t.Fatalf("expected unknown, got %+v", got)
	}
}

func TestDomainOverlapMatchesWholeWords(t *testing.T) {
	tests := []struct {
		name     string
		terms    []string
		required []string
		want     bool
	}{
		{name: "same word", terms: []string{"energy"}, required: []string{"Energy"}, want: true},
		{name: "term inside domain", terms: []string{"battery storage"}, required: []string{"Battery storage systems"}, want: true},
		{name: "domain inside term", terms: []string{"renewable energy"}, required: []string{"energy"}, want: true},
		{name: "punctuation", terms: []string{"ai"}, required: []string{"AI/ML"}, want: true},
		{name: "letters inside a word", terms: []string{"ai"}, required: []string{"Supply chain logistics"}},
		{name: "short acronym", terms: []string{"it"}, required: []string{"security"}},
		{name: "prefix of a word", terms: []string{"bio"}, required: []string{"biotechnology"}},
		{name: "word order", terms: []string{"storage battery"}, required: []string{"battery storage"}},
		{name: "empty term", terms: []string{"", " "}, required: []string{"energy"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, got := DomainOverlap(tt.terms, tt.required); got != tt.want {
				t.Fatalf("DomainOverlap(%q, %q) = %v, want %v", tt.terms, tt.required, got, tt.want)
			}
		})
	}
}

func TestNormalizeCountry(t *testing.T) {
	tests := map[string]string{
		"BG":               "bulgaria",
		" Czech  Republic": "czechia",
		"Germany":          "germany",
		"UK":               "united kingdom",
	}
	for in, want := range tests {
		if got := NormalizeCountry(in); got != want {
			t.Errorf("NormalizeCountry(%q) = %q, want %q", in, got, want)
		}
	}

	set := ExpandCountries([]string{"EU", "Norway"})
	if len(set) != len(memberStates)+1 {
		t.Fatalf("expected member states plus norway, got %d entries", len(set))
	}
}

func TestDisplay(t *testing.T) {
	eligible := Result{Status: Eligible}
	if eligible.Display() != "PASS" {
		t.Fatalf("unexpected display %q", eligible.Display())
	}

	failed := Result{Status: Ineligible, Checks: []Check{{Constraint: ConstraintCountry, Outcome: Fail}}}
	if !strings.HasPrefix(failed.Display(), "FAIL") || !strings.Contains(failed.Display(), "country") {
		t.Fatalf("unexpected display %q", failed.Display())
	}

	var missing *Result
	if missing.Display() == "PASS" || missing.Outcome(ConstraintBudget) != Unknown {
		t.Fatalf("nil result must be unknown")
	}
}

func TestEvaluateNilInputs(t *testing.T) {
	res := Evaluate(nil, &calls.Call{ID: "x"})
	if res.Status != InsufficientData || res.CallID != "x" || len(res.Checks) != len(Constraints) {
		t.Fatalf("unexpected result %+v", res)
	}
}
