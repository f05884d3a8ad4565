package calls

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"slices"
	"strings"
	"time"
)

// Call is one retrieved funding opportunity.
type Call struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Programme        string    `json:"programme,omitempty"`
	BudgetText       string    `json:"budget_text,omitempty"`
	ContributionText string    `json:"contribution_text,omitempty"`
	DeadlineText     string    `json:"deadline_text,omitempty"`
	Deadline         time.Time `json:"deadline,omitzero"`
	RequiredDomains  []string  `json:"required_domains,omitempty"`
	Keywords         []string  `json:"keywords,omitempty"`
	// EligibleCountries is empty when the source does not state it.
	EligibleCountries []string `json:"eligible_countries,omitempty"`
	// EligibleOrgTypes is empty when the source does not state it.
	EligibleOrgTypes []string `json:"eligible_org_types,omitempty"`
	Budget           *Range   `json:"budget,omitempty"`
	URL              string   `json:"url,omitempty"`
	ContentType      string   `json:"content_type,omitempty"`
	Status           string   `json:"status,omitempty"`
}

// Calls is an ordered collection of unique calls.
type Calls struct {
	Items []*Call
}

// Len returns the number of calls.
func (c *Calls) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Items)
}

// FindByID returns the call with the given id or nil.
func (c *Calls) FindByID(id string) *Call {
	if c == nil {
		return nil
	}
	for _, call := range c.Items {
		if call.ID == id {
			return call
		}
	}
	return nil
}

// IDs returns call ids in collection order.
func (c *Calls) IDs() []string {
	ids := make([]string, 0, c.Len())
	if c == nil {
		return ids
	}
	for _, call := range c.Items {
		ids = append(ids, call.ID)
	}
	return ids
}

// Merge returns a new collection with incoming calls added. Calls without an id
// are skipped. A call whose id is already present is folded into the existing
// record, filling only its empty fields. The receiver is not modified.
func (c *Calls) Merge(incoming []*Call) (*Calls, int) {
	out, added, _ := c.MergeTracked(incoming)
	return out, added
}

// MergeTracked is Merge that also returns the ids of existing calls which
// gained data from incoming duplicates, in first-enriched order.
func (c *Calls) MergeTracked(incoming []*Call) (*Calls, int, []string) {
	out := &Calls{Items: make([]*Call, 0, c.Len()+len(incoming))}
	index := make(map[string]int, c.Len()+len(incoming))
	if c != nil {
		for _, call := range c.Items {
			index[call.ID] = len(out.Items)
			out.Items = append(out.Items, call)
		}
	}

	added := 0
	var enriched []string
	seen := make(map[string]bool)
	for _, call := range incoming {
		if call == nil {
			continue
		}
		id := strings.TrimSpace(call.ID)
		if id == "" {
			continue
		}
		if pos, ok := index[id]; ok {
			var changed bool
			out.Items[pos], changed = fill(out.Items[pos], call)
			if changed && !seen[id] {
				seen[id] = true
				enriched = append(enriched, id)
			}
			continue
		}
		cp := call.Clone()
		cp.ID = id
		index[id] = len(out.Items)
		out.Items = append(out.Items, cp)
		added++
	}

	return out, added, enriched
}

// Clone returns a deep copy of the call.
func (c *Call) Clone() *Call {
	out := *c
	out.RequiredDomains = slices.Clone(c.RequiredDomains)
	out.Keywords = slices.Clone(c.Keywords)
	out.EligibleCountries = slices.Clone(c.EligibleCountries)
	out.EligibleOrgTypes = slices.Clone(c.EligibleOrgTypes)
	if c.Budget != nil {
		b := *c.Budget
		out.Budget = &b
	}
	return &out
}

// fill returns a copy of base with empty fields taken from extra and reports
// whether any field was filled.
func fill(base, extra *Call) (*Call, bool) {
	out := base.Clone()
	changed := false
	for _, f := range []struct {
		dst *string
		v   string
	}{
		{&out.Title, extra.Title},
		{&out.Description, extra.Description},
		{&out.Programme, extra.Programme},
		{&out.BudgetText, extra.BudgetText},
		{&out.ContributionText, extra.ContributionText},
		{&out.DeadlineText, extra.DeadlineText},
		{&out.URL, extra.URL},
		{&out.ContentType, extra.ContentType},
		{&out.Status, extra.Status},
	} {
		if setIfEmpty(f.dst, f.v) {
			changed = true
		}
	}
	if out.Deadline.IsZero() && !extra.Deadline.IsZero() {
		out.Deadline = extra.Deadline
		changed = true
	}
	for _, f := range []struct {
		dst *[]string
		v   []string
	}{
		{&out.RequiredDomains, extra.RequiredDomains},
		{&out.Keywords, extra.Keywords},
		{&out.EligibleCountries, extra.EligibleCountries},
		{&out.EligibleOrgTypes, extra.EligibleOrgTypes},
	} {
		if len(*f.dst) == 0 && len(f.v) > 0 {
			*f.dst = slices.Clone(f.v)
			changed = true
		}
	}
	if out.Budget == nil && extra.Budget != nil {
		b := *extra.Budget
		out.Budget = &b
		changed = true
	}
	return out, changed
}

func setIfEmpty(dst *string, v string) bool {
	if strings.TrimSpace(*dst) == "" && strings.TrimSpace(v) != "" {
		*dst = v
		return true
	}
	return false
}

// HasDescription reports whether the call carries description text.
func (c *Call) HasDescription() bool {
	return strings.TrimSpace(c.Description) != ""
}

// DaysUntilDeadline returns whole days from now to the deadline. ok is false
// when the deadline is unknown.
func (c *Call) DaysUntilDeadline(now time.Time) (int, bool) {
	deadline := c.Deadline
	if deadline.IsZero() {
		parsed, ok := ParseDeadline(c.DeadlineText)
		if !ok {
			return 0, false
		}
		deadline = parsed
	}
	return int(math.Floor(deadline.Sub(now).Hours() / 24)), true
}

// Text returns title, description and keywords joined and lower-cased for matching.
func (c *Call) Text() string {
	parts := []string{c.Title, c.Description, strings.Join(c.Keywords, " ")}
	return strings.ToLower(strings.Join(parts, " "))
}

// Normalize fills parsed fields from their text forms when missing.
func (c *Call) Normalize() {
	if c.Deadline.IsZero() {
		if d, ok := ParseDeadline(c.DeadlineText); ok {
			c.Deadline = d
		}
	}
	if c.Budget == nil {
		if r, ok := ParseBudget(c.BudgetText); ok {
			c.Budget = &r
		}
	}
}

// DumpToTmpFile writes the collection as indented json into a temp file.
func (c *Calls) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "calls_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// Summary renders the call for prompts. The description is cut to maxDescription runes when positive.
func (c *Call) Summary(maxDescription int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID: %s\n", c.ID)
	fmt.Fprintf(&b, "Title: %s\n", c.Title)
	if c.Programme != "" {
		fmt.Fprintf(&b, "Programme: %s\n", c.Programme)
	}
	if c.BudgetText != "" {
		fmt.Fprintf(&b, "Budget: %s\n", c.BudgetText)
	}
	if c.DeadlineText != "" {
		fmt.Fprintf(&b, "Deadline: %s\n", c.DeadlineText)
	}
	if len(c.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(c.Keywords, ", "))
	}
	if len(c.RequiredDomains) > 0 {
		fmt.Fprintf(&b, "Domains: %s\n", strings.Join(c.RequiredDomains, ", "))
	}
	desc := strings.TrimSpace(c.Description)
	if r := []rune(desc); maxDescription > 0 && len(r) > maxDescription {
		desc = string(r[:maxDescription]) + "..."
	}
	fmt.Fprintf(&b, "Description: %s", desc)
	return b.String()
}
