package planner

import (
	"strings"
)

var stripChars = strings.NewReplacer(
	`"`, " ",
	"'", " ",
	"`", " ",
	"“", " ",
	"”", " ",
	"‘", " ",
	"’", " ",
	"(", " ",
	")", " ",
	"&&", " ",
	"||", " ",
)

var connectives = map[string]struct{}{
	"and": {},
	"or":  {},
	"not": {},
}

// SanitizeTerm turns any input into a bare lower-case phrase: quotes and
// parentheses are removed, boolean connectives dropped and whitespace collapsed.
func SanitizeTerm(term string) string {
	fields := strings.Fields(strings.ToLower(stripChars.Replace(term)))
	kept := fields[:0]
	for _, f := range fields {
		if _, ok := connectives[f]; ok {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// SanitizeTerms sanitizes, drops empties and duplicates and keeps at most limit
// terms. A non-positive limit keeps everything.
func SanitizeTerms(terms []string, limit int) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = SanitizeTerm(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// IsPlain reports whether a term is acceptable to a plain-text search endpoint.
func IsPlain(term string) bool {
	if strings.TrimSpace(term) == "" {
		return false
	}
	if strings.ContainsAny(term, "\"()") {
		return false
	}
	upper := " " + strings.ToUpper(term) + " "
	for _, op := range []string{" AND ", " OR ", " NOT "} {
		if strings.Contains(upper, op) {
			return false
		}
	}
	return true
}

func isGeneric(term string) bool {
	_, ok := genericTerms[term]
	return ok
}
