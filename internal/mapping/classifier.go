// Package mapping recognises the template of an uploaded sheet and maps its
// header cells to canonical slots.
package mapping

import (
	"strings"

	"github.com/stratix-platform/initiative-import/internal/importerr"
	"github.com/stratix-platform/initiative-import/internal/model"
	"github.com/stratix-platform/initiative-import/internal/sheet"
)

const (
	requiredWeight = 0.8
	optionalWeight = 0.2
	minReverseLen  = 3
)

// DefaultFingerprints are the built-in templates. A keyword may list
// alternatives separated by "|"; any one of them counts as a match.
var DefaultFingerprints = []model.TemplateFingerprint{
	{
		Name:      "okr_standard",
		Required:  []string{"area|departamento|department", "objetivo|objective", "iniciativa|initiative|titulo|title"},
		Optional:  []string{"progreso|avance|progress", "estado|status", "responsable|owner"},
		Threshold: 0.7,
	},
	{
		Name:      "area_sheet",
		Required:  []string{"iniciativa|initiative|titulo|title|actividad", "progreso|avance|progress|%"},
		Optional:  []string{"estado|status", "responsable|owner", "fecha|date", "presupuesto|budget", "prioridad|priority"},
		Threshold: 0.8,
	},
	{
		Name:      "initiative_list",
		Required:  []string{"iniciativa|initiative|titulo|title|nombre|name|proyecto|project"},
		Optional:  []string{"area|departamento", "objetivo|objective", "estado|status", "progreso|avance|progress", "responsable|owner"},
		Threshold: 0.8,
	},
}

// Classification is the outcome of template recognition for one sheet.
type Classification struct {
	Template  string
	Score     float64
	HeaderRow int // zero-based row index inside the grid
	Headers   []string
}

// Classifier scores sheets against a set of fingerprints.
type Classifier struct {
	fingerprints []model.TemplateFingerprint
	scanRows     int
}

// NewClassifier returns a Classifier over the default fingerprints with
// extra ones merged by name. scanRows bounds the header search.
func NewClassifier(extra []model.TemplateFingerprint, scanRows int) *Classifier {
	fps := append([]model.TemplateFingerprint{}, DefaultFingerprints...)
	for _, e := range extra {
		replaced := false
		for i := range fps {
			if fps[i].Name == e.Name {
				fps[i] = e
				replaced = true
			}
		}
		if !replaced {
			fps = append(fps, e)
		}
	}
	if scanRows <= 0 {
		scanRows = 5
	}
	return &Classifier{fingerprints: fps, scanRows: scanRows}
}

// Classify finds the header row among the first scanRows rows and scores it
// against every fingerprint. Among fingerprints at or above their own
// threshold the highest score wins, and equal scores go to the one matching
// more required keywords; otherwise the template is model.TemplateUnknown.
// A sheet without any recognisable header row is a structure error.
func (c *Classifier) Classify(grid model.CellGrid) (Classification, error) {
	headerRow := -1
	var headers []string
	for i := 0; i < len(grid.Rows) && i < c.scanRows; i++ {
		folded := foldAll(grid.RowText(i))
		if c.anyRequired(folded) {
			headerRow, headers = i, folded
			break
		}
	}
	if headerRow < 0 {
		return Classification{}, importerr.New(importerr.Structure,
			"sheet %q has no header row in its first %d rows", grid.Name, c.scanRows)
	}

	result := Classification{Template: model.TemplateUnknown, HeaderRow: headerRow, Headers: grid.RowText(headerRow)}
	bestHits := 0
	for _, fp := range c.fingerprints {
		score := Score(fp, headers)
		if score < fp.Threshold {
			continue
		}
		hits := countHits(fp.Required, headers)
		if score > result.Score || (score == result.Score && hits > bestHits) {
			result.Template = fp.Name
			result.Score = score
			bestHits = hits
		}
	}
	return result, nil
}

func (c *Classifier) anyRequired(headers []string) bool {
	for _, fp := range c.fingerprints {
		for _, kw := range fp.Required {
			if matchAny(headers, kw) {
				return true
			}
		}
	}
	return false
}

// Score is 0.8 × the share of required keywords present plus 0.2 × the share
// of optional ones. Headers must already be folded.
func Score(fp model.TemplateFingerprint, headers []string) float64 {
	score := 0.0
	if len(fp.Required) > 0 {
		score += requiredWeight * share(fp.Required, headers)
	}
	if len(fp.Optional) > 0 {
		score += optionalWeight * share(fp.Optional, headers)
	}
	return score
}

func share(keywords, headers []string) float64 {
	return float64(countHits(keywords, headers)) / float64(len(keywords))
}

func countHits(keywords, headers []string) int {
	hits := 0
	for _, kw := range keywords {
		if matchAny(headers, kw) {
			hits++
		}
	}
	return hits
}

// matchAny reports whether any header matches any alternative of pattern,
// by containment in either direction. Empty headers never match, and a
// header shorter than minReverseLen cannot match as a fragment of a keyword.
func matchAny(headers []string, pattern string) bool {
	for _, alt := range strings.Split(pattern, "|") {
		alt = sheet.Fold(alt)
		if alt == "" {
			continue
		}
		for _, h := range headers {
			if h == "" {
				continue
			}
			if strings.Contains(h, alt) || (len(h) >= minReverseLen && strings.Contains(alt, h)) {
				return true
			}
		}
	}
	return false
}

func foldAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = sheet.Fold(c)
	}
	return out
}
