// Package normalize canonicalizes keyword phrases so that equality after
// normalization means equality as a cache/dedup key.
package normalize

import (
	"strings"
	"unicode"
)

// Phrase lowercases s, collapses runs of whitespace to a single space, strips
// characters that are not letters, digits, spaces, or hyphens, and trims the
// result. Two phrases equal after Phrase are the same keyword node.
func Phrase(s string) string {
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true // leading whitespace is dropped
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-':
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Seeds normalizes each line of input, dropping empties and duplicates while
// preserving first-seen order.
func Seeds(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		p := Phrase(line)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
