package sheet

import (
	"strings"

	"github.com/stratix-platform/initiative-import/internal/importerr"
	"github.com/stratix-platform/initiative-import/internal/model"
)

// priorityKeywords are matched against normalized sheet names, in order.
var priorityKeywords = []string{
	"data", "datos", "objectives", "objetivos", "initiatives", "iniciativas", "okr", "plan",
}

// SelectSingle picks the one sheet to import in single-area mode: the first
// sheet named after a priority keyword, else the first sheet with at least
// two non-blank rows and two columns.
func SelectSingle(grids []model.CellGrid) (model.CellGrid, error) {
	for _, kw := range priorityKeywords {
		for _, g := range grids {
			if strings.Contains(NormalizeName(g.Name), kw) {
				return g, nil
			}
		}
	}
	for _, g := range grids {
		if usable(g) {
			return g, nil
		}
	}
	return model.CellGrid{}, importerr.New(importerr.Structure, "no sheet with at least two rows and two columns")
}

func usable(g model.CellGrid) bool {
	rows := 0
	for _, r := range g.Rows {
		if !model.BlankRow(r) {
			rows++
		}
	}
	return rows >= 2 && g.Width() >= 2
}

// Assignment pairs a sheet with the area its rows belong to.
type Assignment struct {
	Grid model.CellGrid
	Area model.Area
}

// Matcher pairs sheet names with catalog areas.
type Matcher struct {
	synonyms *Synonyms
}

// NewMatcher returns a Matcher using the given synonym table. A nil table
// means the defaults.
func NewMatcher(synonyms *Synonyms) *Matcher {
	if synonyms == nil {
		synonyms = NewSynonyms(nil)
	}
	return &Matcher{synonyms: synonyms}
}

// MatchAreas assigns every sheet to an area by exact normalized name, then
// containment, then synonym group. Sheets with no match are reported in
// warnings and left out. When several areas match at the same step, the
// first in catalog order wins.
func (m *Matcher) MatchAreas(grids []model.CellGrid, areas []model.Area) ([]Assignment, []string) {
	normAreas := make([]string, len(areas))
	for i, a := range areas {
		normAreas[i] = NormalizeName(a.Name)
	}

	var out []Assignment
	var warnings []string
	for _, g := range grids {
		idx := m.match(NormalizeName(g.Name), normAreas)
		if idx < 0 {
			warnings = append(warnings, "sheet \""+g.Name+"\" does not match any area and was skipped")
			continue
		}
		out = append(out, Assignment{Grid: g, Area: areas[idx]})
	}
	return out, warnings
}

// MatchArea returns the area a single name resolves to.
func (m *Matcher) MatchArea(name string, areas []model.Area) (model.Area, bool) {
	normAreas := make([]string, len(areas))
	for i, a := range areas {
		normAreas[i] = NormalizeName(a.Name)
	}
	idx := m.match(NormalizeName(name), normAreas)
	if idx < 0 {
		return model.Area{}, false
	}
	return areas[idx], true
}

func (m *Matcher) match(sheet string, areas []string) int {
	if sheet == "" {
		return -1
	}
	steps := []func(a string) bool{
		func(a string) bool { return a == sheet },
		func(a string) bool { return a != "" && nameMatches(sheet, a) },
		func(a string) bool { return m.synonyms.Equivalent(sheet, a) },
	}
	for _, step := range steps {
		for i, a := range areas {
			if step(a) {
				return i
			}
		}
	}
	return -1
}
