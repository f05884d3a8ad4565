package scoring

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/spigell/eu-call-finder/internal/calls"
	"github.com/spigell/eu-call-finder/internal/eligibility"
	"github.com/spigell/eu-call-finder/internal/profile"
	"github.com/spigell/eu-call-finder/internal/utils"
)

// Deterministic scores from rules only.
type Deterministic struct{}

// Mode implements Scorer.
func (Deterministic) Mode() Mode { return ModeDeterministic }

// Score implements Scorer.
func (Deterministic) Score(in Input) Breakdown {
	b := Breakdown{Mode: ModeDeterministic}
	if in.Call != nil {
		b.CallID = in.Call.ID
	}

	b.Scores = []Score{
		domainScore(in.Profile, in.Call),
		keywordScore(in.Keywords, in.Call),
		eligibilityScore(in.Eligibility),
		budgetScore(in.Profile, in.Call),
		strategicScore(in.Profile, in.Call, in.Programmes),
		deadlineScore(in),
	}
	b.Rationale = "rule based scoring"
	return finish(b, in.Call)
}

func domainScore(company *profile.Company, call *calls.Call) Score {
	s := Score{Criterion: DomainMatch, Weight: weightOf(DomainMatch)}
	if company == nil || call == nil || len(company.Domains) == 0 || len(call.RequiredDomains) == 0 {
		s.Value = 3.0
		s.Note = "no domains to compare"
		return s
	}

	var matches []float64
	for _, d := range company.Domains {
		level := d.EffectiveLevel()
		if _, ok := eligibility.DomainOverlap([]string{strings.ToLower(strings.TrimSpace(d.Name))}, call.RequiredDomains); ok {
			switch level {
			case profile.LevelExpert:
				matches = append(matches, 8.0)
			case profile.LevelAdvanced:
				matches = append(matches, 7.0)
			default:
				matches = append(matches, 5.5)
			}
		}
		for _, sub := range d.SubDomains {
			if _, ok := eligibility.DomainOverlap([]string{strings.ToLower(strings.TrimSpace(sub))}, call.RequiredDomains); ok {
				if level == profile.LevelExpert || level == profile.LevelAdvanced {
					matches = append(matches, 6.5)
				} else {
					matches = append(matches, 4.5)
				}
			}
		}
	}

	if len(matches) == 0 {
		s.Value = 2.0
		s.Note = "no declared domain matches"
		return s
	}

	slices.SortFunc(matches, func(a, b float64) int {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		}
		return 0
	})
	top := matches[:min(2, len(matches))]
	sum := 0.0
	for _, m := range top {
		sum += m
	}
	s.Value = sum / float64(len(top))
	if len(top) == 2 && top[1] >= 7.0 {
		s.Value++
	}
	s.Note = fmt.Sprintf("%d domain matches", len(matches))
	return s
}

func keywordScore(keywords []string, call *calls.Call) Score {
	s := Score{Criterion: KeywordMatch, Weight: weightOf(KeywordMatch)}
	if len(keywords) == 0 {
		s.Value = 3.0
		s.Note = "no profile keywords"
		return s
	}
	if call == nil {
		s.Value = 2.5
		return s
	}

	text := call.Text()
	matched := 0
	for _, k := range keywords {
		if utils.ContainsPhrase(text, k) {
			matched++
		}
	}

	switch {
	case matched >= 6:
		s.Value = 9.5
	case matched >= 4:
		s.Value = 8.5
	case matched == 3:
		s.Value = 7.0
	case matched == 2:
		s.Value = 5.5
	case matched == 1:
		s.Value = 4.0
	default:
		s.Value = 2.5
	}
	s.Note = fmt.Sprintf("%d of %d keywords found", matched, len(keywords))
	return s
}

var constraintWeights = map[eligibility.Constraint]float64{
	eligibility.ConstraintCountry: 3.0,
	eligibility.ConstraintOrgType: 2.5,
	eligibility.ConstraintBudget:  1.0,
	eligibility.ConstraintDomain:  1.5,
}

func eligibilityScore(res *eligibility.Result) Score {
	s := Score{Criterion: EligibilityFit, Weight: weightOf(EligibilityFit)}

	earned, total := 0.0, 0.0
	for _, c := range eligibility.Constraints {
		w := constraintWeights[c]
		total += w
		switch res.Outcome(c) {
		case eligibility.Pass:
			earned += w
		case eligibility.Unknown:
			earned += w / 2
		}
	}

	s.Value = 1 + 9*earned/total
	if res != nil && res.Status == eligibility.Ineligible {
		s.Value = math.Min(s.Value, 2.0)
	}
	if res != nil {
		s.Note = string(res.Status)
	}
	return s
}

func budgetScore(company *profile.Company, call *calls.Call) Score {
	s := Score{Criterion: BudgetFit, Weight: weightOf(BudgetFit)}
	if company == nil || call == nil || call.Budget == nil || call.Budget.Max <= 0 {
		s.Value = 6.0
		s.Note = "budget unknown"
		return s
	}
	pref, ok := company.PreferredBudget()
	if !ok {
		s.Value = 6.0
		s.Note = "no budget preference"
		return s
	}

	callMin := call.Budget.Min
	if callMin <= 0 {
		callMin = call.Budget.Max
	}
	callMax := call.Budget.Max
	prefMax := pref.Max
	if prefMax <= 0 {
		prefMax = pref.Min
	}

	switch {
	case callMin > prefMax:
		ratio := callMin / prefMax
		if eligibility.IsLargeProgramme(call.Programme) {
			ratio /= 1.5
		}
		switch {
		case ratio <= 2:
			s.Value = 7.0
		case ratio <= 4:
			s.Value = 5.5
		case ratio <= 8:
			s.Value = 4.0
		case ratio <= 15:
			s.Value = 2.5
		default:
			s.Value = 1.5
		}
		s.Note = fmt.Sprintf("call budget %.1fx above preference", callMin/prefMax)
	case callMax < pref.Min:
		ratio := pref.Min / callMax
		switch {
		case ratio <= 2:
			s.Value = 7.0
		case ratio <= 4:
			s.Value = 5.0
		default:
			s.Value = 3.5
		}
		s.Note = fmt.Sprintf("call budget %.1fx below preference", ratio)
	default:
		overlap := math.Min(callMax, prefMax) - math.Max(callMin, pref.Min)
		span := math.Min(callMax-callMin, prefMax-pref.Min)
		ratio := 1.0
		if span > 0 {
			ratio = overlap / span
		}
		switch {
		case ratio >= 0.8:
			s.Value = 9.0
		case ratio >= 0.5:
			s.Value = 8.0
		default:
			s.Value = 7.0
		}
		s.Note = "budget overlaps preference"
	}
	return s
}

func strategicScore(company *profile.Company, call *calls.Call, programmes []string) Score {
	s := Score{Criterion: StrategicAlignment, Weight: weightOf(StrategicAlignment)}
	if call == nil {
		s.Value = 5.0
		return s
	}

	prog := strings.ToLower(strings.TrimSpace(call.Programme))
	if prog != "" {
		for _, p := range programmes {
			p = strings.ToLower(strings.TrimSpace(p))
			if p != "" && (strings.Contains(prog, p) || strings.Contains(p, prog)) {
				s.Value = 8.0
				s.Note = "targeted programme"
				return s
			}
		}
	}

	hits := 0
	if company != nil {
		for _, d := range company.Domains {
			if utils.ContainsPhrase(call.Title, d.Name) {
				hits++
			}
		}
	}
	switch {
	case hits >= 2:
		s.Value = 7.5
		s.Note = "several domains in title"
	case hits == 1:
		s.Value = 6.5
		s.Note = "domain in title"
	default:
		s.Value = 5.0
	}
	return s
}

func deadlineScore(in Input) Score {
	s := Score{Criterion: DeadlineUrgency, Weight: weightOf(DeadlineUrgency)}
	if in.Call == nil {
		s.Value = 5.0
		return s
	}
	days, ok := in.Call.DaysUntilDeadline(in.Now)
	if !ok {
		s.Value = 5.0
		s.Note = "deadline unknown"
		return s
	}

	switch {
	case days >= 270:
		s.Value = 9.0
	case days >= 180:
		s.Value = 8.5
	case days >= 90:
		s.Value = 7.5
	case days >= 60:
		s.Value = 6.5
	case days >= 30:
		s.Value = 5.5
	case days >= 14:
		s.Value = 4.5
	case days >= 7:
		s.Value = 3.5
	case days >= 0:
		s.Value = 2.0
	default:
		s.Value = 0
		s.Note = "deadline passed"
		return s
	}
	s.Note = fmt.Sprintf("%d days left", days)
	return s
}
