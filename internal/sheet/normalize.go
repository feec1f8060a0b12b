// Package sheet picks the sheets of a workbook that hold initiative data and,
// in multi-area mode, pairs each sheet with a catalog area.
package sheet

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s, strips diacritics and collapses whitespace runs to a
// single space. "  Área   Comercial " becomes "area comercial".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// NormalizeName folds s and drops everything that is not a letter or digit,
// so "Capital Humano", "capital_humano" and "CAPITAL-HUMANO" all compare equal.
func NormalizeName(s string) string {
	folded := Fold(s)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
