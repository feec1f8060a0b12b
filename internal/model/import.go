package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Slot is a canonical field a spreadsheet column can be mapped to.
type Slot string

const (
	SlotTitle          Slot = "title"
	SlotDescription    Slot = "description"
	SlotProgress       Slot = "progress"
	SlotPriority       Slot = "priority"
	SlotStatus         Slot = "status"
	SlotBudget         Slot = "budget"
	SlotActualCost     Slot = "actual_cost"
	SlotEstimatedHours Slot = "estimated_hours"
	SlotActualHours    Slot = "actual_hours"
	SlotStartDate      Slot = "start_date"
	SlotDueDate        Slot = "due_date"
	SlotResponsible    Slot = "responsible"
	SlotArea           Slot = "area"
	SlotObjective      Slot = "objective"
	SlotWeight         Slot = "weight"
	SlotKPICategory    Slot = "kpi_category"
	SlotIsStrategic    Slot = "is_strategic"
)

// ParseSlot resolves a slot name, accepting camelCase aliases used by browser
// clients ("dueDate", "actualCost").
func ParseSlot(s string) (Slot, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	for _, slot := range AllSlots {
		if key == string(slot) || key == strings.ReplaceAll(string(slot), "_", "") {
			return slot, true
		}
	}
	switch key {
	case "target_date", "targetdate":
		return SlotDueDate, true
	case "owner":
		return SlotResponsible, true
	}
	return "", false
}

// AllSlots lists every slot in declaration order.
var AllSlots = []Slot{
	SlotTitle, SlotDescription, SlotProgress, SlotPriority, SlotStatus,
	SlotBudget, SlotActualCost, SlotEstimatedHours, SlotActualHours,
	SlotStartDate, SlotDueDate, SlotResponsible, SlotArea, SlotObjective,
	SlotWeight, SlotKPICategory, SlotIsStrategic,
}

// ColumnMapping maps a slot to a zero-based column index of one sheet.
type ColumnMapping map[Slot]int

// Column returns the column index for slot, if mapped.
func (m ColumnMapping) Column(slot Slot) (int, bool) {
	idx, ok := m[slot]
	return idx, ok
}

// TemplateFingerprint describes a known structural template of an upload.
type TemplateFingerprint struct {
	Name      string   `yaml:"name" json:"name"`
	Required  []string `yaml:"required" json:"required"`
	Optional  []string `yaml:"optional" json:"optional"`
	Threshold float64  `yaml:"threshold" json:"threshold"`
}

const (
	// TemplateUnknown is reported when no fingerprint clears its threshold.
	TemplateUnknown = "unknown"
	// TemplateClientMapping is reported for pre-parsed rows, whose columns
	// were mapped by the client.
	TemplateClientMapping = "client_mapping"
)

// Entry identifies which pipeline entry point started an import.
type Entry string

const (
	EntryUpload    Entry = "upload"
	EntryPreParsed Entry = "preparsed"
)

// DateFallback selects what an unparseable date cell becomes.
type DateFallback string

const (
	DateFallbackNull      DateFallback = "null"
	DateFallbackEndOfYear DateFallback = "end_of_year"
)

// ImportOptions are the caller-selected options of one import.
type ImportOptions struct {
	SkipDuplicates bool         `json:"skip_duplicates"`
	MultiArea      bool         `json:"multi_area"`
	AreaID         string       `json:"area_id,omitempty"`
	EntityType     string       `json:"entity_type,omitempty"`
	DateFallback   DateFallback `json:"date_fallback,omitempty"`
	Entry          Entry        `json:"entry"`
	FileName       string       `json:"file_name,omitempty"`
}

// ImportSession is the unit of audit logging for one invocation.
type ImportSession struct {
	ImportID  string        `json:"import_id"`
	TenantID  string        `json:"tenant_id"`
	StartedAt time.Time     `json:"started_at"`
	RowCount  int           `json:"row_count"`
	Options   ImportOptions `json:"options"`
}

// NormalizedRow is one data row parsed into canonical, typed fields.
type NormalizedRow struct {
	RowNumber      int
	Sheet          string
	AreaName       string
	AreaID         string // preset by the sheet matcher or declared target area
	ObjectiveTitle string
	Title          string
	Description    *string
	Responsible    *string
	Progress       *float64
	Status         *Status
	Priority       *Priority
	Budget         *decimal.Decimal
	ActualCost     *decimal.Decimal
	EstimatedHours *float64
	ActualHours    *float64
	StartDate      *time.Time
	DueDate        *time.Time
	Weight         *float64
	KPICategory    *string
	IsStrategic    *bool
	Raw            map[string]string
}

// Outcome is the per-row result of reconciliation.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeError   Outcome = "error"
)

// RowDelta is what one row contributed to its area's KPIs.
type RowDelta struct {
	AreaID          string          `json:"areaId"`
	ProgressDelta   float64         `json:"progressDelta"`
	BudgetDelta     decimal.Decimal `json:"budgetDelta"`
	ActualCostDelta decimal.Decimal `json:"actualCostDelta"`
}

// RowOutcome is the single outcome every input row maps to.
type RowOutcome struct {
	RowNumber    int               `json:"row"`
	Sheet        string            `json:"sheet,omitempty"`
	Outcome      Outcome           `json:"outcome"`
	Message      string            `json:"message,omitempty"`
	Hint         string            `json:"hint,omitempty"`
	InitiativeID string            `json:"initiativeId,omitempty"`
	KPIDelta     *RowDelta         `json:"kpiDelta,omitempty"`
	Raw          map[string]string `json:"-"`
}

// KPIImpact is the rolled-up metric change of one area.
type KPIImpact struct {
	AreaID           string          `json:"areaId"`
	AreaName         string          `json:"areaName"`
	PreviousProgress float64         `json:"previousProgress"`
	NewProgress      float64         `json:"newProgress"`
	BudgetDelta      decimal.Decimal `json:"budgetDelta"`
	ActualCostDelta  decimal.Decimal `json:"actualCostDelta"`
	Initiatives      int             `json:"initiatives"`
	Completed        int             `json:"completed"`
	BudgetEfficiency *float64        `json:"budgetEfficiency,omitempty"`
}

// AuditEventType names the lifecycle events of an import.
type AuditEventType string

const (
	AuditImportStarted   AuditEventType = "import.started"
	AuditImportCompleted AuditEventType = "import.completed"
	AuditImportFailed    AuditEventType = "import.failed"
)

// AuditEvent is one audit record emitted for an import session.
type AuditEvent struct {
	ID        string         `json:"id"`
	ImportID  string         `json:"import_id"`
	TenantID  string         `json:"tenant_id"`
	Type      AuditEventType `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}
