package normalize

import (
	"strings"
	"unicode"

	"github.com/stratix-platform/initiative-import/internal/model"
	"github.com/stratix-platform/initiative-import/internal/sheet"
)

var defaultStatuses = map[string]model.Status{
	"planning": model.StatusPlanning, "planned": model.StatusPlanning, "plan": model.StatusPlanning,
	"planificado": model.StatusPlanning, "planificada": model.StatusPlanning, "planificacion": model.StatusPlanning,
	"pendiente": model.StatusPlanning, "pending": model.StatusPlanning, "por iniciar": model.StatusPlanning,
	"no iniciado": model.StatusPlanning, "not started": model.StatusPlanning, "to do": model.StatusPlanning,
	"todo": model.StatusPlanning, "nuevo": model.StatusPlanning, "new": model.StatusPlanning, "backlog": model.StatusPlanning,

	"in progress": model.StatusInProgress, "en progreso": model.StatusInProgress, "en curso": model.StatusInProgress,
	"en proceso": model.StatusInProgress, "en ejecucion": model.StatusInProgress, "iniciado": model.StatusInProgress,
	"iniciada": model.StatusInProgress, "started": model.StatusInProgress, "active": model.StatusInProgress,
	"activo": model.StatusInProgress, "activa": model.StatusInProgress, "ongoing": model.StatusInProgress,
	"doing": model.StatusInProgress, "wip": model.StatusInProgress,

	"completed": model.StatusCompleted, "complete": model.StatusCompleted, "completado": model.StatusCompleted,
	"completada": model.StatusCompleted, "terminado": model.StatusCompleted, "terminada": model.StatusCompleted,
	"finalizado": model.StatusCompleted, "finalizada": model.StatusCompleted, "done": model.StatusCompleted,
	"hecho": model.StatusCompleted, "cerrado": model.StatusCompleted, "closed": model.StatusCompleted,
	"finished": model.StatusCompleted, "cumplido": model.StatusCompleted,

	"on hold": model.StatusOnHold, "en pausa": model.StatusOnHold, "pausado": model.StatusOnHold,
	"pausada": model.StatusOnHold, "paused": model.StatusOnHold, "suspendido": model.StatusOnHold,
	"suspendida": model.StatusOnHold, "detenido": model.StatusOnHold, "bloqueado": model.StatusOnHold,
	"blocked": model.StatusOnHold, "en espera": model.StatusOnHold, "hold": model.StatusOnHold,

	"cancelled": model.StatusCancelled, "canceled": model.StatusCancelled, "cancelado": model.StatusCancelled,
	"cancelada": model.StatusCancelled, "anulado": model.StatusCancelled, "descartado": model.StatusCancelled,
	"dropped": model.StatusCancelled, "abandoned": model.StatusCancelled,
}

var defaultPriorities = map[string]model.Priority{
	"low": model.PriorityLow, "baja": model.PriorityLow, "bajo": model.PriorityLow, "minor": model.PriorityLow,
	"menor": model.PriorityLow, "p3": model.PriorityLow,

	"medium": model.PriorityMedium, "media": model.PriorityMedium, "medio": model.PriorityMedium,
	"normal": model.PriorityMedium, "moderada": model.PriorityMedium, "p2": model.PriorityMedium,

	"high": model.PriorityHigh, "alta": model.PriorityHigh, "alto": model.PriorityHigh,
	"importante": model.PriorityHigh, "major": model.PriorityHigh, "p1": model.PriorityHigh,

	"critical": model.PriorityCritical, "critica": model.PriorityCritical, "critico": model.PriorityCritical,
	"urgente": model.PriorityCritical, "urgent": model.PriorityCritical, "blocker": model.PriorityCritical,
	"maxima": model.PriorityCritical, "p0": model.PriorityCritical,
}

// Decorative symbols found in exported trackers, checked when no token matches.
var statusSymbols = []struct {
	symbol string
	status model.Status
}{
	{"✅", model.StatusCompleted}, {"✔", model.StatusCompleted}, {"✓", model.StatusCompleted},
	{"🔄", model.StatusInProgress}, {"▶", model.StatusInProgress},
	{"⏸", model.StatusOnHold},
	{"❌", model.StatusCancelled}, {"✖", model.StatusCancelled},
	{"⏳", model.StatusPlanning}, {"📋", model.StatusPlanning},
}

var prioritySymbols = []struct {
	symbol   string
	priority model.Priority
}{
	{"🔥", model.PriorityCritical}, {"🔴", model.PriorityHigh}, {"🟠", model.PriorityHigh},
	{"🟡", model.PriorityMedium}, {"🟢", model.PriorityLow},
}

// Tables holds the status and priority vocabularies.
type Tables struct {
	statuses   map[string]model.Status
	priorities map[string]model.Priority
}

// NewTables merges extra entries over the defaults. Extra keys are
// normalized the same way as cell values.
func NewTables(statuses map[string]model.Status, priorities map[string]model.Priority) *Tables {
	t := &Tables{
		statuses:   make(map[string]model.Status, len(defaultStatuses)+len(statuses)),
		priorities: make(map[string]model.Priority, len(defaultPriorities)+len(priorities)),
	}
	for k, v := range defaultStatuses {
		t.statuses[k] = v
	}
	for k, v := range statuses {
		t.statuses[token(k)] = v
	}
	for k, v := range defaultPriorities {
		t.priorities[k] = v
	}
	for k, v := range priorities {
		t.priorities[token(k)] = v
	}
	return t
}

// Status resolves raw text to a canonical status, defaulting to planning.
func (t *Tables) Status(raw string) model.Status {
	if s, ok := t.statuses[token(raw)]; ok {
		return s
	}
	for _, sym := range statusSymbols {
		if strings.Contains(raw, sym.symbol) {
			return sym.status
		}
	}
	return model.StatusPlanning
}

// Priority resolves raw text to a canonical priority, defaulting to medium.
func (t *Tables) Priority(raw string) model.Priority {
	if p, ok := t.priorities[token(raw)]; ok {
		return p
	}
	for _, sym := range prioritySymbols {
		if strings.Contains(raw, sym.symbol) {
			return sym.priority
		}
	}
	return model.PriorityMedium
}

// token folds raw text and keeps only letters, digits and single spaces;
// "_" and "-" act as word separators.
func token(raw string) string {
	folded := sheet.Fold(strings.NewReplacer("_", " ", "-", " ").Replace(raw))
	var b strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
