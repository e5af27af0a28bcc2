package utils

import (
	"strings"
	"unicode/utf8"
)

// Truncate cuts s to maxLen runes and marks the cut with "...". Multibyte
// characters are never split.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	i := 0
	for pos := range s {
		if i == maxLen {
			return s[:pos] + "..."
		}
		i++
	}
	return s
}

// Preview collapses every run of whitespace in s to one space and truncates
// the result, for one-line listings of multi-line text.
func Preview(s string, maxLen int) string {
	return Truncate(strings.Join(strings.Fields(s), " "), maxLen)
}
