package utils

import (
	"slices"
	"strings"
	"unicode"
)

// Words splits s into lower-case runs of letters and digits.
func Words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ContainsWords reports whether needle occurs in hay as a contiguous run.
// An empty needle never matches.
func ContainsWords(hay, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(hay) {
		return false
	}
	for i := 0; i+len(needle) <= len(hay); i++ {
		if slices.Equal(hay[i:i+len(needle)], needle) {
			return true
		}
	}
	return false
}

// ContainsPhrase reports whether phrase occurs in text on word boundaries,
// ignoring case and punctuation.
func ContainsPhrase(text, phrase string) bool {
	return ContainsWords(Words(text), Words(phrase))
}
