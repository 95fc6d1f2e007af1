// Package sanitizer normalizes free-text fields before validation and
// persistence: trims, collapses internal whitespace, and strips control
// characters that have no business in labels or notes.
package sanitizer

import (
	"strings"
	"unicode"
)

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		case unicode.IsControl(r):
			// drop
		default:
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizePurpose cleans a reservation purpose label.
func NormalizePurpose(purpose string) string {
	return TrimAndNormalize(purpose)
}

// NormalizeName cleans a person's display or signer name.
func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeNotes cleans free-form handover notes.
func NormalizeNotes(notes string) string {
	return TrimAndNormalize(notes)
}
