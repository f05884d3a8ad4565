package profile

import (
	"fmt"
	"slices"
	"strings"
)

// Level is the declared expertise level within a domain.
type Level string

const (
	LevelBasic        Level = "basic"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
	LevelExpert       Level = "expert"
)

// Domain is one declared area of expertise.
type Domain struct {
	Name       string   `mapstructure:"name" json:"name"`
	SubDomains []string `mapstructure:"sub_domains" json:"sub_domains,omitempty"`
	Level      Level    `mapstructure:"level" json:"level,omitempty"`
}

// Budget is a funding range in EUR.
type Budget struct {
	Min float64 `mapstructure:"min" json:"min"`
	Max float64 `mapstructure:"max" json:"max"`
}

// Company is the matching subject of a run.
type Company struct {
	Name        string   `mapstructure:"name" json:"name"`
	Type        string   `mapstructure:"type" json:"type"`
	Country     string   `mapstructure:"country" json:"country"`
	City        string   `mapstructure:"city" json:"city,omitempty"`
	Employees   int      `mapstructure:"employees" json:"employees"`
	Description string   `mapstructure:"description" json:"description"`
	Domains     []Domain `mapstructure:"domains" json:"domains"`
	// Keywords are caller-supplied search keywords.
	Keywords []string `mapstructure:"keywords" json:"keywords,omitempty"`
	// Budget is the preferred funding range. Estimated from Employees when nil.
	Budget *Budget `mapstructure:"budget" json:"budget,omitempty"`
	// PastProgrammes lists programmes the company already received funding from.
	PastProgrammes []string `mapstructure:"past_programmes" json:"past_programmes,omitempty"`
}

// ValidationError reports a missing or malformed profile field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid profile: %s %s", e.Field, e.Reason)
}

// Validate checks the fields a run cannot start without. An empty domain list
// is accepted and leads to a low-specificity plan, but every listed domain
// must be named.
func (c *Company) Validate() error {
	if c == nil {
		return &ValidationError{Field: "profile", Reason: "is required"}
	}
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(c.Description) == "" {
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	for i, d := range c.Domains {
		if strings.TrimSpace(d.Name) == "" {
			return &ValidationError{Field: fmt.Sprintf("domains[%d].name", i), Reason: "must not be empty"}
		}
	}
	if c.Employees < 0 {
		return &ValidationError{Field: "employees", Reason: "must not be negative"}
	}
	if c.Budget != nil && c.Budget.Max > 0 && c.Budget.Min > c.Budget.Max {
		return &ValidationError{Field: "budget", Reason: "min is greater than max"}
	}
	return nil
}

// Clone returns a deep copy so a running workflow never observes caller changes.
func (c *Company) Clone() *Company {
	if c == nil {
		return nil
	}

	out := *c
	out.Keywords = slices.Clone(c.Keywords)
	out.PastProgrammes = slices.Clone(c.PastProgrammes)
	out.Domains = make([]Domain, len(c.Domains))
	for i, d := range c.Domains {
		d.SubDomains = slices.Clone(d.SubDomains)
		out.Domains[i] = d
	}
	if c.Budget != nil {
		b := *c.Budget
		out.Budget = &b
	}
	return &out
}

// PreferredBudget returns the declared budget or an estimate derived from the
// company size. ok is false when neither is available.
func (c *Company) PreferredBudget() (Budget, bool) {
	if c.Budget != nil && (c.Budget.Min > 0 || c.Budget.Max > 0) {
		return *c.Budget, true
	}
	if c.Employees <= 0 {
		return Budget{}, false
	}
	return EstimateBudget(c.Employees), true
}

// EstimateBudget maps company size to a typical grant range.
func EstimateBudget(employees int) Budget {
	switch {
	case employees < 10:
		return Budget{Min: 50_000, Max: 300_000}
	case employees < 50:
		return Budget{Min: 100_000, Max: 1_000_000}
	case employees < 250:
		return Budget{Min: 500_000, Max: 5_000_000}
	default:
		return Budget{Min: 1_000_000, Max: 10_000_000}
	}
}

// Terms returns the lower-cased domain names followed by sub-domains, in declaration order.
func (c *Company) Terms() []string {
	var terms []string
	for _, d := range c.Domains {
		terms = append(terms, strings.ToLower(strings.TrimSpace(d.Name)))
	}
	for _, d := range c.Domains {
		for _, s := range d.SubDomains {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				terms = append(terms, s)
			}
		}
	}
	return terms
}

// Summary renders a compact text description for prompts and reports.
func (c *Company) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", c.Name)
	fmt.Fprintf(&b, "Type: %s\n", c.Type)
	fmt.Fprintf(&b, "Location: %s\n", strings.Trim(strings.Join([]string{c.City, c.Country}, ", "), ", "))
	fmt.Fprintf(&b, "Employees: %d\n", c.Employees)
	if len(c.Domains) > 0 {
		b.WriteString("Domains:\n")
		for _, d := range c.Domains {
			fmt.Fprintf(&b, "- %s (%s)", d.Name, d.levelOrDefault())
			if len(d.SubDomains) > 0 {
				fmt.Fprintf(&b, ": %s", strings.Join(d.SubDomains, ", "))
			}
			b.WriteString("\n")
		}
	}
	if len(c.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(c.Keywords, ", "))
	}
	fmt.Fprintf(&b, "Description: %s", strings.TrimSpace(c.Description))
	return b.String()
}

func (d Domain) levelOrDefault() Level {
	if d.Level == "" {
		return LevelIntermediate
	}
	return Level(strings.ToLower(string(d.Level)))
}

// EffectiveLevel returns the normalized level, intermediate when unset.
func (d Domain) EffectiveLevel() Level {
	return d.levelOrDefault()
}
