package report

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spigell/eu-call-finder/internal/calls"
	"github.com/spigell/eu-call-finder/internal/eligibility"
	"github.com/spigell/eu-call-finder/internal/planner"
	"github.com/spigell/eu-call-finder/internal/profile"
	"github.com/spigell/eu-call-finder/internal/scoring"
)

// Band is the priority of a ranked call.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// Bands in display order.
var Bands = []Band{BandHigh, BandMedium, BandLow}

const (
	highThreshold        = 80.0
	mediumThreshold      = 60.0
	defaultTopN          = 3
	defaultMinConfidence = 0.6
)

// BandOf maps an adjusted percent to a band.
func BandOf(percent float64) Band {
	switch {
	case percent >= highThreshold:
		return BandHigh
	case percent >= mediumThreshold:
		return BandMedium
	default:
		return BandLow
	}
}

// Entry is one ranked call.
type Entry struct {
	Rank        int                `json:"rank"`
	Band        Band               `json:"band"`
	Call        *calls.Call        `json:"call"`
	Eligibility eligibility.Result `json:"eligibility"`
	Score       scoring.Breakdown  `json:"score"`
	ActionItems []string           `json:"action_items,omitempty"`
}

// Flags qualify the whole report.
type Flags struct {
	NoMatches      bool `json:"no_matches"`
	LowConfidence  bool `json:"low_confidence"`
	LowSpecificity bool `json:"low_specificity"`
}

// Overview is the overall assessment.
type Overview struct {
	Total          int                        `json:"total"`
	ByBand         map[Band]int               `json:"by_band"`
	ByEligibility  map[eligibility.Status]int `json:"by_eligibility"`
	MeanConfidence float64                    `json:"mean_confidence"`
	Summary        string                     `json:"summary"`
}

// CompanySummary describes the profile in report terms.
type CompanySummary struct {
	Overview   string   `json:"overview"`
	Strengths  []string `json:"strengths"`
	FocusAreas []string `json:"focus_areas,omitempty"`
}

// Report is the final output of a run.
type Report struct {
	RunID           string           `json:"run_id"`
	Profile         *profile.Company `json:"profile"`
	Company         CompanySummary   `json:"company"`
	Overview        Overview         `json:"overview"`
	Entries         []Entry          `json:"entries"`
	Recommendations []Entry          `json:"recommendations"`
	Flags           Flags            `json:"flags"`
	Attempts        int              `json:"attempts"`
	Terms           []string         `json:"terms,omitempty"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// Input is the final run state the report is built from.
type Input struct {
	RunID       string
	Profile     *profile.Company
	Calls       []*calls.Call
	Eligibility map[string]eligibility.Result
	Scores      map[string]scoring.Breakdown
	// Attempts is the number of retrieval attempts made.
	Attempts int
	// Exhausted is set when the last attempt still missed the thresholds.
	Exhausted bool
	LastPlan  planner.Plan
	TopN      int
	// MinConfidence is the mean confidence below which the report is low confidence.
	MinConfidence float64
	Now           time.Time
}

// Assemble ranks the scored calls and derives the report flags.
func Assemble(in Input) *Report {
	if in.TopN <= 0 {
		in.TopN = defaultTopN
	}
	if in.MinConfidence <= 0 {
		in.MinConfidence = defaultMinConfidence
	}
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	r := &Report{
		RunID:           in.RunID,
		Profile:         in.Profile,
		Company:         summarize(in.Profile),
		Attempts:        in.Attempts,
		Terms:           slices.Clone(in.LastPlan.Terms),
		GeneratedAt:     in.Now.UTC(),
		Entries:         []Entry{},
		Recommendations: []Entry{},
		Overview: Overview{
			ByBand:        map[Band]int{BandHigh: 0, BandMedium: 0, BandLow: 0},
			ByEligibility: map[eligibility.Status]int{},
		},
	}

	confidence := 0.0
	for _, call := range in.Calls {
		if call == nil {
			continue
		}
		score, ok := in.Scores[call.ID]
		if !ok {
			continue
		}
		res, ok := in.Eligibility[call.ID]
		if !ok {
			res = eligibility.Result{CallID: call.ID, Status: eligibility.InsufficientData}
		}
		r.Entries = append(r.Entries, Entry{
			Band:        BandOf(score.AdjustedPercent),
			Call:        call,
			Eligibility: res,
			Score:       score,
			ActionItems: actionItems(call, res),
		})
		confidence += score.Confidence
	}

	slices.SortStableFunc(r.Entries, func(a, b Entry) int {
		if c := cmp.Compare(b.Score.AdjustedPercent, a.Score.AdjustedPercent); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Score.RawPercent, a.Score.RawPercent); c != 0 {
			return c
		}
		return cmp.Compare(a.Call.ID, b.Call.ID)
	})

	for i := range r.Entries {
		e := &r.Entries[i]
		e.Rank = i + 1
		r.Overview.ByBand[e.Band]++
		r.Overview.ByEligibility[e.Eligibility.Status]++
		if e.Eligibility.Status != eligibility.Ineligible && len(r.Recommendations) < in.TopN {
			r.Recommendations = append(r.Recommendations, *e)
		}
	}

	r.Overview.Total = len(r.Entries)
	if r.Overview.Total > 0 {
		r.Overview.MeanConfidence = confidence / float64(r.Overview.Total)
	}

	r.Flags.NoMatches = r.Overview.Total == 0
	r.Flags.LowConfidence = r.Flags.NoMatches || in.Exhausted || r.Overview.MeanConfidence < in.MinConfidence
	r.Flags.LowSpecificity = in.LastPlan.LowSpecificity
	r.Overview.Summary = summaryText(r)

	return r
}

// ByBand groups entries by priority band.
func (r *Report) ByBand() map[Band][]Entry {
	out := make(map[Band][]Entry, len(Bands))
	for _, e := range r.Entries {
		out[e.Band] = append(out[e.Band], e)
	}
	return out
}

// DumpToTmpFile writes the report as indented json into a temp file.
func (r *Report) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "report_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return file.Name(), nil
}

func summarize(company *profile.Company) CompanySummary {
	if company == nil {
		return CompanySummary{}
	}

	var names []string
	for _, d := range company.Domains {
		if n := strings.TrimSpace(d.Name); n != "" {
			names = append(names, n)
		}
	}

	s := CompanySummary{Strengths: names}
	if len(names) == 0 {
		s.Strengths = []string{"EU-based organization"}
	}
	s.FocusAreas = names[:min(2, len(names))]

	s.Overview = fmt.Sprintf("%s is a %s based in %s with %d employees",
		orDefault(company.Name, "The company"),
		orDefault(company.Type, "organization"),
		orDefault(company.Country, "the EU"),
		company.Employees,
	)
	if len(names) > 0 {
		s.Overview += " and expertise in " + strings.Join(names[:min(3, len(names))], ", ")
	}
	s.Overview += "."
	return s
}

func actionItems(call *calls.Call, res eligibility.Result) []string {
	items := []string{"Review full call details"}
	if res.Status != eligibility.Eligible {
		items = append(items, "Check eligibility requirements")
	}
	if unresolved := res.Unresolved(); len(unresolved) > 0 {
		names := make([]string, 0, len(unresolved))
		for _, c := range unresolved {
			names = append(names, string(c))
		}
		items = append(items, "Confirm "+strings.Join(names, ", ")+" with the call documents")
	}
	switch {
	case !call.Deadline.IsZero():
		items = append(items, "Note deadline: "+call.Deadline.Format("2006-01-02"))
	case call.DeadlineText != "":
		items = append(items, "Note deadline: "+call.DeadlineText)
	}
	return items
}

func summaryText(r *Report) string {
	if r.Flags.NoMatches {
		return "No funding opportunities matched the company profile."
	}
	return fmt.Sprintf("Found %d funding opportunities matching the company profile. %d high-priority opportunities identified.",
		r.Overview.Total, r.Overview.ByBand[BandHigh])
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
