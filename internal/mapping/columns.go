package mapping

import (
	"strings"

	"github.com/stratix-platform/initiative-import/internal/importerr"
	"github.com/stratix-platform/initiative-import/internal/model"
	"github.com/stratix-platform/initiative-import/internal/sheet"
)

type slotRule struct {
	slot     model.Slot
	keywords []string
	exclude  []string
}

// slotRules run most specific first; a header claimed by an earlier slot is
// never reused, so "Descripción de la iniciativa" goes to description rather
// than title.
var slotRules = []slotRule{
	{slot: model.SlotDescription, keywords: []string{"descripcion", "description", "detalle", "details"}},
	{slot: model.SlotResponsible, keywords: []string{"responsable", "responsible", "owner", "encargado", "lider", "asignado"}},
	{slot: model.SlotArea, keywords: []string{"area", "departamento", "department", "gerencia", "division"}},
	{slot: model.SlotObjective, keywords: []string{"objetivo", "objective", "goal"}, exclude: []string{"fecha", "date"}},
	{slot: model.SlotKPICategory, keywords: []string{"categoria kpi", "kpi category", "kpi", "categoria", "category"}},
	{slot: model.SlotIsStrategic, keywords: []string{"estrategic", "strategic"}},
	{slot: model.SlotWeight, keywords: []string{"peso", "weight", "ponderacion"}},
	{slot: model.SlotActualCost, keywords: []string{"costo real", "gasto real", "actual cost", "ejecutado", "costo", "cost", "gasto"}},
	{slot: model.SlotBudget, keywords: []string{"presupuesto", "budget", "monto"}},
	{slot: model.SlotEstimatedHours, keywords: []string{"horas estimadas", "horas planificadas", "estimated hours", "estimated"}},
	{slot: model.SlotActualHours, keywords: []string{"horas reales", "actual hours", "horas", "hours"}},
	{slot: model.SlotProgress, keywords: []string{"progreso", "avance", "progress", "porcentaje", "cumplimiento", "%"}},
	{slot: model.SlotStatus, keywords: []string{"estado", "status", "situacion"}},
	{slot: model.SlotPriority, keywords: []string{"prioridad", "priority", "urgencia"}},
	{slot: model.SlotStartDate, keywords: []string{"fecha de inicio", "fecha inicio", "inicio", "start"}},
	{slot: model.SlotDueDate, keywords: []string{"fecha limite", "fecha fin", "fecha de fin", "vencimiento", "deadline", "due", "end date", "target date", "fecha"}},
	{slot: model.SlotTitle, keywords: []string{"iniciativa", "initiative", "titulo", "title", "nombre", "name", "proyecto", "project", "accion", "actividad"}},
}

// MapColumns assigns header columns to slots. A sheet without a title
// column is a mapping error.
func MapColumns(sheetName string, headers []string) (model.ColumnMapping, error) {
	folded := foldAll(headers)
	claimed := make([]bool, len(folded))
	mapping := model.ColumnMapping{}

	for _, rule := range slotRules {
		for idx, h := range folded {
			if h == "" || claimed[idx] || !rule.matches(h) {
				continue
			}
			mapping[rule.slot] = idx
			claimed[idx] = true
			break
		}
	}

	if _, ok := mapping[model.SlotTitle]; !ok {
		return nil, importerr.New(importerr.Mapping,
			"sheet %q has no initiative title column (expected a header like \"Iniciativa\" or \"Título\")", sheetName)
	}
	return mapping, nil
}

func (r slotRule) matches(header string) bool {
	for _, ex := range r.exclude {
		if strings.Contains(header, ex) {
			return false
		}
	}
	for _, kw := range r.keywords {
		if strings.Contains(header, sheet.Fold(kw)) {
			return true
		}
	}
	return false
}

// ValidateClientMapping checks a slot → source key dictionary supplied with
// pre-parsed rows. An unknown slot is a validation error; a missing title is
// a mapping error, as for uploaded sheets.
func ValidateClientMapping(raw map[string]string) (map[model.Slot]string, error) {
	out := make(map[model.Slot]string, len(raw))
	for name, key := range raw {
		slot, ok := model.ParseSlot(name)
		if !ok {
			return nil, importerr.New(importerr.Validation, "unknown mapping field %q", name)
		}
		if strings.TrimSpace(key) == "" {
			continue
		}
		out[slot] = key
	}
	if _, ok := out[model.SlotTitle]; !ok {
		return nil, importerr.New(importerr.Mapping, "mapping must include a title field")
	}
	return out, nil
}
