package usecases

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes text before any keyword comparison: NFC, trim,
// lowercase, single spaces, all alef forms to bare alef, teh marbuta to heh.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	// Folding can expose a base and mark pair that NFC composes on the
	// next pass (heh + hamza above), so repeat until stable.
	for range maxNormalizePasses {
		next := normalizeOnce(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

const maxNormalizePasses = 4

func normalizeOnce(s string) string {
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	afterAlef := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			space = true
			afterAlef = false
			continue
		}
		if afterAlef && unicode.Is(unicode.Mn, r) {
			// Marks that would recompose a hamza or madda alef.
			if isAlefMark(r) {
				continue
			}
			b.WriteRune(r)
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		r = foldRune(r)
		afterAlef = r == 'ا'
		b.WriteRune(r)
	}
	return b.String()
}

func isAlefMark(r rune) bool {
	return r == '\u0653' || r == '\u0654' || r == '\u0655'
}

func foldRune(r rune) rune {
	switch r {
	case 'أ', 'إ', 'آ':
		return 'ا'
	case 'ة':
		return 'ه'
	}
	return unicode.ToLower(r)
}

// containsAny reports whether normalized text m contains any of the terms.
func containsAny(m string, terms ...string) bool {
	for _, t := range terms {
		if t != "" && strings.Contains(m, t) {
			return true
		}
	}
	return false
}

// containsWord reports whether w occurs in m as a whole space-delimited token.
func containsWord(m, w string) bool {
	for _, f := range strings.FieldsFunc(m, isWordSeparator) {
		if f == w {
			return true
		}
	}
	return false
}

func isWordSeparator(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r) || r == '؟' || r == '،'
}
