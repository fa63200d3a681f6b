package validators

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SanitizeString NFC-normalizes input, drops control characters except
// newlines and tabs, trims it, and cuts it to at most maxRunes runes.
func SanitizeString(input string, maxRunes int) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, norm.NFC.String(input))
	clean = strings.TrimSpace(clean)
	if maxRunes <= 0 {
		return clean
	}
	if runes := []rune(clean); len(runes) > maxRunes {
		return strings.TrimSpace(string(runes[:maxRunes]))
	}
	return clean
}
