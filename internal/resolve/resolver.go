// Package resolve links normalized rows to catalog areas and objectives.
package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.uber.org/zap"

	"github.com/stratix-platform/initiative-import/internal/importerr"
	"github.com/stratix-platform/initiative-import/internal/model"
	"github.com/stratix-platform/initiative-import/internal/resilience"
)

// ObjectiveWriter creates objectives that an import references but the
// catalog does not yet hold.
type ObjectiveWriter interface {
	CreateObjective(ctx context.Context, obj model.Objective) (*model.Objective, error)
}

type objectiveKey struct {
	areaID string
	title  string
}

// Resolver answers area and objective lookups for one import session.
// Objectives created during the session are remembered so later rows reuse
// them.
type Resolver struct {
	tenantID string
	fileName string
	writer   ObjectiveWriter
	retry    resilience.RetryConfig

	areaNames  []string
	byName     map[string]model.Area
	byID       map[string]model.Area
	objectives map[objectiveKey]model.Objective
}

// New builds a Resolver from the pre-fetched catalogs of tenantID.
func New(tenantID, fileName string, areas []model.Area, objectives []model.Objective, writer ObjectiveWriter, retry resilience.RetryConfig) *Resolver {
	r := &Resolver{
		tenantID:   tenantID,
		fileName:   fileName,
		writer:     writer,
		retry:      retry,
		byName:     make(map[string]model.Area, len(areas)),
		byID:       make(map[string]model.Area, len(areas)),
		objectives: make(map[objectiveKey]model.Objective, len(objectives)),
	}
	for _, a := range areas {
		key := lookupKey(a.Name)
		if _, dup := r.byName[key]; !dup {
			r.byName[key] = a
			r.areaNames = append(r.areaNames, a.Name)
		}
		r.byID[a.ID] = a
	}
	for _, o := range objectives {
		k := objectiveKey{areaID: o.AreaID, title: lookupKey(o.Title)}
		if _, dup := r.objectives[k]; !dup {
			r.objectives[k] = o
		}
	}
	return r
}

// Area resolves the row's area. A named area must exist in the catalog; a
// blank name falls back to the area preset on the row.
func (r *Resolver) Area(row model.NormalizedRow) (model.Area, error) {
	name := strings.TrimSpace(row.AreaName)
	if name == "" {
		if row.AreaID == "" {
			return model.Area{}, importerr.RowErr(row.RowNumber, row.Sheet, "area is required")
		}
		a, ok := r.byID[row.AreaID]
		if !ok {
			return model.Area{}, importerr.RowErr(row.RowNumber, row.Sheet, "area not found")
		}
		return a, nil
	}

	if a, ok := r.byName[lookupKey(name)]; ok {
		return a, nil
	}
	e := importerr.RowErr(row.RowNumber, row.Sheet, "area not found")
	if s := r.Suggest(name); s != "" {
		e.Hint = fmt.Sprintf("did you mean %q?", s)
	}
	return model.Area{}, e
}

// Suggest returns the closest catalog area name to name, or "" when nothing
// is close. Subsequence matches rank first; otherwise the nearest name within
// a third of its length in edits is returned.
func (r *Resolver) Suggest(name string) string {
	if len(r.areaNames) == 0 || strings.TrimSpace(name) == "" {
		return ""
	}
	ranks := fuzzy.RankFindNormalizedFold(name, r.areaNames)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	folded := strings.ToLower(strings.TrimSpace(name))
	best, bestDist := "", -1
	for _, candidate := range r.areaNames {
		d := fuzzy.LevenshteinDistance(folded, strings.ToLower(candidate))
		if d > maxEdits(candidate) {
			continue
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}

func maxEdits(s string) int {
	n := utf8.RuneCountInString(s) / 3
	if n < 1 {
		return 1
	}
	return n
}

// Objective returns the id of the row's objective within areaID, creating
// the objective when the catalog lacks it. A blank title yields "".
func (r *Resolver) Objective(ctx context.Context, row model.NormalizedRow, areaID string) (string, error) {
	title := strings.TrimSpace(row.ObjectiveTitle)
	if title == "" {
		return "", nil
	}
	key := objectiveKey{areaID: areaID, title: lookupKey(title)}
	if o, ok := r.objectives[key]; ok {
		return o.ID, nil
	}

	cfg := r.retry
	cfg.OnRetry = resilience.LogRetries("create_objective")
	created, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*model.Objective, error) {
		return r.writer.CreateObjective(ctx, model.Objective{
			TenantID:    r.tenantID,
			AreaID:      areaID,
			Title:       title,
			Description: "Imported from " + r.fileName,
		})
	})
	if err != nil {
		return "", &importerr.Error{Kind: importerr.Persistence, Row: row.RowNumber, Sheet: row.Sheet, Msg: "could not create objective", Err: err}
	}

	r.objectives[key] = *created
	zap.L().Info("resolve: created objective",
		zap.String("objective_id", created.ID),
		zap.String("area_id", areaID),
		zap.String("title", title),
	)
	return created.ID, nil
}

func lookupKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
