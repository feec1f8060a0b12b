package sheet

import (
	"strings"
	"unicode/utf8"
)

// minContainLen is the shortest term allowed to match by containment.
// Shorter terms ("ti", "hr", "ops") match only by equality.
const minContainLen = 4

// DefaultAreaSynonyms are groups of area names treated as equivalent.
var DefaultAreaSynonyms = [][]string{
	{"capitalhumano", "rrhh", "hr", "personal", "recursoshumanos", "talento", "talentohumano", "humanresources", "people"},
	{"comercial", "ventas", "sales", "negocios"},
	{"finanzas", "finance", "contabilidad", "tesoreria", "administracion"},
	{"operaciones", "operations", "ops", "produccion", "logistica"},
	{"tecnologia", "ti", "it", "sistemas", "tech", "technology"},
	{"marketing", "mercadeo", "mkt", "comunicaciones"},
	{"legal", "juridico", "compliance", "cumplimiento"},
	{"direccion", "gerenciageneral", "ceo", "management"},
}

// Synonyms indexes groups of equivalent normalized names.
type Synonyms struct {
	groups [][]string
}

// NewSynonyms builds a table from the default groups plus extra ones. Terms
// are normalized with NormalizeName.
func NewSynonyms(extra [][]string) *Synonyms {
	s := &Synonyms{}
	for _, g := range append(append([][]string{}, DefaultAreaSynonyms...), extra...) {
		group := make([]string, 0, len(g))
		for _, term := range g {
			if n := NormalizeName(term); n != "" {
				group = append(group, n)
			}
		}
		if len(group) > 0 {
			s.groups = append(s.groups, group)
		}
	}
	return s
}

// groupsOf returns the indexes of the groups a normalized name belongs to.
func (s *Synonyms) groupsOf(name string) map[int]bool {
	out := map[int]bool{}
	for i, g := range s.groups {
		for _, term := range g {
			if nameMatches(name, term) {
				out[i] = true
				break
			}
		}
	}
	return out
}

// Equivalent reports whether two normalized names share a synonym group.
func (s *Synonyms) Equivalent(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	ga := s.groupsOf(a)
	for i := range s.groupsOf(b) {
		if ga[i] {
			return true
		}
	}
	return false
}

// nameMatches is equality, or containment in either direction when both
// sides are long enough.
func nameMatches(a, b string) bool {
	if a == b {
		return true
	}
	if utf8.RuneCountInString(a) < minContainLen || utf8.RuneCountInString(b) < minContainLen {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
