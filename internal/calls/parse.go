package calls

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const bgnPerEUR = 1.95583

// Range is a monetary range in Currency.
type Range struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Currency string  `json:"currency,omitempty"`
}

var (
	amountRe = regexp.MustCompile(`(?i)(\d{1,3}(?:[ \x{00a0}]\d{3})+(?:[.,]\d+)?|\d+(?:[.,]\d+)*)\s*(billion|bn|million|mln|m|thousand|k)?\b`)
	bgnRe    = regexp.MustCompile(`(?i)\bbgn\b|лв|лева`)
	dayRe    = regexp.MustCompile(`(?i)(\d{1,2})\s+(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{4})`)
)

var multipliers = map[string]float64{
	"billion":  1e9,
	"bn":       1e9,
	"million":  1e6,
	"mln":      1e6,
	"m":        1e6,
	"thousand": 1e3,
	"k":        1e3,
}

type amount struct {
	value      float64
	base       float64
	multiplied bool
}

// ParseBudget extracts a EUR range from free budget text such as
// "EUR 2 000 000", "between EUR 1 and 2.5 million" or "3,000,000 BGN".
func ParseBudget(text string) (Range, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Range{}, false
	}

	var found []amount
	for _, m := range amountRe.FindAllStringSubmatch(text, -1) {
		v, ok := parseNumber(m[1])
		if !ok {
			continue
		}
		a := amount{value: v, base: v}
		if mult, ok := multipliers[strings.ToLower(m[2])]; ok {
			a.value = v * mult
			a.multiplied = true
		}
		found = append(found, a)
	}

	// "1 and 2 million": a bare small number borrows the next multiplier.
	for i := range found {
		if found[i].multiplied || found[i].value >= 1000 {
			continue
		}
		for j := i + 1; j < len(found); j++ {
			if found[j].multiplied {
				found[i].value *= found[j].value / found[j].base
				found[i].multiplied = true
				break
			}
		}
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, a := range found {
		if !a.multiplied && (a.value < 1000 || isYear(a.value)) {
			continue
		}
		lo = math.Min(lo, a.value)
		hi = math.Max(hi, a.value)
	}
	if math.IsInf(lo, 1) {
		return Range{}, false
	}

	if bgnRe.MatchString(text) {
		lo /= bgnPerEUR
		hi /= bgnPerEUR
	}

	return Range{Min: math.Round(lo), Max: math.Round(hi), Currency: "EUR"}, true
}

func isYear(v float64) bool {
	return v >= 1900 && v <= 2100 && v == math.Trunc(v)
}

// parseNumber understands space, comma and dot grouping.
func parseNumber(s string) (float64, bool) {
	s = strings.NewReplacer(" ", "", "\u00a0", "").Replace(s)

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = normalizeSingleSeparator(s, ",")
	case lastDot >= 0:
		s = normalizeSingleSeparator(s, ".")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// normalizeSingleSeparator treats sep as grouping when every group after it
// has exactly three digits, otherwise as a decimal point.
func normalizeSingleSeparator(s, sep string) string {
	parts := strings.Split(s, sep)
	grouping := len(parts) > 1
	for _, p := range parts[1:] {
		if len(p) != 3 {
			grouping = false
			break
		}
	}
	if grouping {
		return strings.Join(parts, "")
	}
	if len(parts) > 2 {
		return strings.Join(parts[:len(parts)-1], "") + "." + parts[len(parts)-1]
	}
	return strings.Join(parts, ".")
}

var deadlineLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"02.01.2006",
}

// ParseDeadline understands ISO dates, the search API timestamp format and
// portal text like "18 September 2026 17:00:00 Brussels time".
func ParseDeadline(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC(), true
		}
	}

	m := dayRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse("2 January 2006", m[1]+" "+strings.ToUpper(m[2][:1])+strings.ToLower(m[2][1:])+" "+m[3])
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
