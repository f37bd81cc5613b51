// Package textnorm folds free text for comparison: diacritic stripping,
// punctuation removal, case folding and whitespace collapsing.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripAccents removes combining marks (á → a, Ñ → N). A fresh transformer
// is built per call because transform chains carry state.
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Collapse trims s and replaces every run of whitespace with one space.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Header folds a column header for alias matching: accents and punctuation
// are dropped, letters lower-cased and whitespace collapsed.
// "Teléfono / Celular" → "telefono celular".
func Header(s string) string {
	s = StripAccents(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return Collapse(b.String())
}

// Key folds s into an upper-case comparison key with accents stripped and
// whitespace collapsed. Punctuation is kept.
func Key(s string) string {
	return strings.ToUpper(Collapse(StripAccents(s)))
}

// ContainsFold reports whether the folded form of s contains the folded
// form of sub.
func ContainsFold(s, sub string) bool {
	return strings.Contains(Key(s), Key(sub))
}
