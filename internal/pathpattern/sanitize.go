package pathpattern

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// segmentReplacer replaces filesystem-unsafe characters with safe alternatives.
var segmentReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", " -",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeSegment makes a substituted value safe to use inside one path
// segment. Separators, colons, and asterisks become dashes; other unsafe
// characters and control characters are removed. Whitespace runs collapse to
// a single space, the value is NFC-normalized, and trailing dots and spaces are
// trimmed.
func SanitizeSegment(value string) string {
	value = norm.NFC.String(value)
	value = segmentReplacer.Replace(value)

	var b strings.Builder
	b.Grow(len(value))
	prevSpace := false
	for _, r := range value {
		switch {
		case unicode.IsSpace(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}
	out := strings.TrimSpace(b.String())
	return strings.TrimRight(out, ". ")
}
