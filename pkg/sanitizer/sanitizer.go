// Package sanitizer normalizes caller-supplied free text before validation.
package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize trims the string and collapses any run of whitespace
// (including newlines and tabs) into a single space.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizeNote cleans up a booking note. Notes are opaque free text; only
// whitespace is normalized, casing is preserved.
func NormalizeNote(note string) string {
	return TrimAndNormalize(note)
}
