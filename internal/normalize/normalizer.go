// Package normalize converts raw spreadsheet cells into typed initiative
// rows.
package normalize

import (
	"strings"
	"time"

	"github.com/stratix-platform/initiative-import/internal/importerr"
	"github.com/stratix-platform/initiative-import/internal/model"
)

// Fields are one row's cells keyed by slot.
type Fields map[model.Slot]model.Cell

// FieldsFromGrid picks the mapped cells of one grid row.
func FieldsFromGrid(row []model.Cell, mapping model.ColumnMapping) Fields {
	f := make(Fields, len(mapping))
	for slot, idx := range mapping {
		if idx < len(row) {
			f[slot] = row[idx]
		}
	}
	return f
}

// RawFromGrid keys a row's text by header, for error reports.
func RawFromGrid(row []model.Cell, headers []string) map[string]string {
	raw := make(map[string]string, len(headers))
	for i, h := range headers {
		if h == "" {
			continue
		}
		if i < len(row) {
			raw[h] = row[i].Text
		} else {
			raw[h] = ""
		}
	}
	return raw
}

// Normalizer parses rows for one import.
type Normalizer struct {
	tables   *Tables
	ceiling  float64
	fallback model.DateFallback
	now      func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the clock used for the end-of-year date fallback.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// New returns a Normalizer clamping progress to ceiling.
func New(tables *Tables, ceiling float64, fallback model.DateFallback, opts ...Option) *Normalizer {
	if tables == nil {
		tables = NewTables(nil, nil)
	}
	n := &Normalizer{tables: tables, ceiling: ceiling, fallback: fallback, now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize parses one row. Only a missing title aborts the row here; the
// area is checked by the resolver.
func (n *Normalizer) Normalize(rowNum int, sheetName string, f Fields, raw map[string]string) (model.NormalizedRow, error) {
	row := model.NormalizedRow{
		RowNumber: rowNum,
		Sheet:     sheetName,
		Raw:       raw,
	}

	row.Title = strings.TrimSpace(f[model.SlotTitle].Text)
	if row.Title == "" {
		return row, importerr.RowErr(rowNum, sheetName, "title is required")
	}

	row.AreaName = strings.TrimSpace(f[model.SlotArea].Text)
	row.ObjectiveTitle = strings.TrimSpace(f[model.SlotObjective].Text)
	row.Description = optionalText(f[model.SlotDescription])
	row.Responsible = optionalText(f[model.SlotResponsible])
	row.KPICategory = optionalText(f[model.SlotKPICategory])

	row.Progress = parseProgress(f[model.SlotProgress], n.ceiling)

	if c, ok := f[model.SlotStatus]; ok && !c.IsBlank() {
		s := n.tables.Status(c.Text)
		row.Status = &s
	}
	if c, ok := f[model.SlotPriority]; ok && !c.IsBlank() {
		p := n.tables.Priority(c.Text)
		row.Priority = &p
	}

	row.Budget = parseMoney(f[model.SlotBudget])
	row.ActualCost = parseMoney(f[model.SlotActualCost])
	if h, ok := parseNumber(f[model.SlotEstimatedHours]); ok {
		row.EstimatedHours = &h
	}
	if h, ok := parseNumber(f[model.SlotActualHours]); ok {
		row.ActualHours = &h
	}

	now := n.now()
	if c, ok := f[model.SlotStartDate]; ok {
		row.StartDate = parseDate(c, n.fallback, now)
	}
	if c, ok := f[model.SlotDueDate]; ok {
		row.DueDate = parseDate(c, n.fallback, now)
	}

	if c, ok := f[model.SlotWeight]; ok && !c.IsBlank() {
		w := parseWeight(c)
		row.Weight = &w
	}
	row.IsStrategic = parseBool(f[model.SlotIsStrategic])

	return row, nil
}

// StatusOrDefault returns the row's status or planning.
func StatusOrDefault(r model.NormalizedRow) model.Status {
	if r.Status != nil {
		return *r.Status
	}
	return model.StatusPlanning
}

// PriorityOrDefault returns the row's priority or medium.
func PriorityOrDefault(r model.NormalizedRow) model.Priority {
	if r.Priority != nil {
		return *r.Priority
	}
	return model.PriorityMedium
}

// WeightOrDefault returns the row's weight or 1.0.
func WeightOrDefault(r model.NormalizedRow) float64 {
	if r.Weight != nil {
		return *r.Weight
	}
	return defaultWeight
}
