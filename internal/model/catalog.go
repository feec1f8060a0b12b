package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the canonical lifecycle state of an initiative.
type Status string

const (
	StatusPlanning   Status = "planning"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusOnHold     Status = "on_hold"
	StatusCancelled  Status = "cancelled"
)

// Priority is the canonical priority of an initiative.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Area is an organizational area (department, division) of a tenant.
type Area struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Objective groups initiatives inside an area.
type Objective struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	AreaID      string    `json:"area_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Initiative is a catalog record reconciled by imports.
type Initiative struct {
	ID             string           `json:"id"`
	TenantID       string           `json:"tenant_id"`
	AreaID         string           `json:"area_id"`
	ObjectiveID    string           `json:"objective_id,omitempty"`
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	Responsible    string           `json:"responsible,omitempty"`
	Progress       float64          `json:"progress"`
	Status         Status           `json:"status"`
	Priority       Priority         `json:"priority"`
	Budget         *decimal.Decimal `json:"budget,omitempty"`
	ActualCost     *decimal.Decimal `json:"actual_cost,omitempty"`
	EstimatedHours *float64         `json:"estimated_hours,omitempty"`
	ActualHours    *float64         `json:"actual_hours,omitempty"`
	StartDate      *time.Time       `json:"start_date,omitempty"`
	DueDate        *time.Time       `json:"due_date,omitempty"`
	Weight         float64          `json:"weight"`
	KPICategory    string           `json:"kpi_category,omitempty"`
	IsStrategic    bool             `json:"is_strategic"`
	ImportID       string           `json:"import_id,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Active reports whether the initiative counts towards area KPIs.
func (i Initiative) Active() bool {
	return i.Status != StatusCancelled
}

// ProgressHistory records a significant progress change made by an import.
type ProgressHistory struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenant_id"`
	InitiativeID     string    `json:"initiative_id"`
	ImportID         string    `json:"import_id"`
	PreviousProgress float64   `json:"previous_progress"`
	NewProgress      float64   `json:"new_progress"`
	CreatedAt        time.Time `json:"created_at"`
}
