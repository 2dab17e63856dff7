package http

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Input limits for POST /chat.
const (
	MaxMessageRunes = 2000
)

// SanitizeString removes null bytes, invalid UTF-8 and control characters
// other than newlines and tabs.
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	if utf8.ValidString(s) && !strings.ContainsFunc(s, isStrippedControl) {
		return s
	}

	v := make([]rune, 0, len(s))
	for _, r := range s {
		if r == utf8.RuneError || isStrippedControl(r) {
			continue
		}
		v = append(v, r)
	}
	return string(v)
}

func isStrippedControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}

// TruncateString cuts s to at most maxRunes runes without splitting a character.
func TruncateString(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes])
}
