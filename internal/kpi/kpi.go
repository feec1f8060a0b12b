// Package kpi rolls initiative changes up into per-area metrics.
package kpi

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/stratix-platform/initiative-import/internal/model"
)

// WeightedProgress is Σ(progress×weight)/Σ(weight) over active initiatives,
// or 0 when no weight is present.
func WeightedProgress(initiatives []model.Initiative) float64 {
	var sum, weights float64
	for _, ini := range initiatives {
		if !ini.Active() {
			continue
		}
		sum += ini.Progress * ini.Weight
		weights += ini.Weight
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}

// BudgetEfficiency is (budget − actualCost)/budget × 100 over active
// initiatives that carry a budget. It is nil when the total budget is zero.
func BudgetEfficiency(initiatives []model.Initiative) *float64 {
	budget, cost := decimal.Zero, decimal.Zero
	for _, ini := range initiatives {
		if !ini.Active() || ini.Budget == nil {
			continue
		}
		budget = budget.Add(*ini.Budget)
		if ini.ActualCost != nil {
			cost = cost.Add(*ini.ActualCost)
		}
	}
	if budget.IsZero() {
		return nil
	}
	eff, _ := budget.Sub(cost).Div(budget).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return &eff
}

// Impacts builds one KPIImpact per area touched by the outcomes. before and
// after hold each area's initiatives read around the row loop; names maps
// area ids to display names. The result is sorted by area name, then id.
func Impacts(before, after map[string][]model.Initiative, names map[string]string, outcomes []model.RowOutcome) []model.KPIImpact {
	byArea := make(map[string]*model.KPIImpact)
	for _, o := range outcomes {
		if o.KPIDelta == nil {
			continue
		}
		d := o.KPIDelta
		imp, ok := byArea[d.AreaID]
		if !ok {
			imp = &model.KPIImpact{
				AreaID:          d.AreaID,
				AreaName:        names[d.AreaID],
				BudgetDelta:     decimal.Zero,
				ActualCostDelta: decimal.Zero,
			}
			byArea[d.AreaID] = imp
		}
		imp.BudgetDelta = imp.BudgetDelta.Add(d.BudgetDelta)
		imp.ActualCostDelta = imp.ActualCostDelta.Add(d.ActualCostDelta)
	}

	out := make([]model.KPIImpact, 0, len(byArea))
	for areaID, imp := range byArea {
		current := after[areaID]
		imp.PreviousProgress = round2(WeightedProgress(before[areaID]))
		imp.NewProgress = round2(WeightedProgress(current))
		imp.Initiatives = countActive(current)
		imp.Completed = countCompleted(current)
		imp.BudgetEfficiency = BudgetEfficiency(current)
		out = append(out, *imp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AreaName != out[j].AreaName {
			return out[i].AreaName < out[j].AreaName
		}
		return out[i].AreaID < out[j].AreaID
	})
	return out
}

// TouchedAreas lists the area ids carrying a KPI delta, in first-seen order.
func TouchedAreas(outcomes []model.RowOutcome) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, o := range outcomes {
		if o.KPIDelta == nil || seen[o.KPIDelta.AreaID] {
			continue
		}
		seen[o.KPIDelta.AreaID] = true
		ids = append(ids, o.KPIDelta.AreaID)
	}
	return ids
}

// GroupByArea buckets initiatives by area id.
func GroupByArea(initiatives []model.Initiative) map[string][]model.Initiative {
	out := make(map[string][]model.Initiative)
	for _, ini := range initiatives {
		out[ini.AreaID] = append(out[ini.AreaID], ini)
	}
	return out
}

func countActive(initiatives []model.Initiative) int {
	n := 0
	for _, ini := range initiatives {
		if ini.Active() {
			n++
		}
	}
	return n
}

func countCompleted(initiatives []model.Initiative) int {
	n := 0
	for _, ini := range initiatives {
		if ini.Status == model.StatusCompleted {
			n++
		}
	}
	return n
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
