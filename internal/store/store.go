package store

import (
	"context"

	"github.com/stratix-platform/initiative-import/internal/model"
)

// InitiativeFilter narrows ListInitiatives to one tenant and, optionally, a
// set of areas.
type InitiativeFilter struct {
	TenantID string   `json:"tenant_id"`
	AreaIDs  []string `json:"area_ids,omitempty"`
}

// Catalog is the persistence boundary the import pipeline reads from and
// writes to. Areas are only created by administrators, never by imports.
type Catalog interface {
	// Areas
	ListAreas(ctx context.Context, tenantID string) ([]model.Area, error)
	CreateArea(ctx context.Context, area model.Area) (*model.Area, error)

	// Objectives
	ListObjectives(ctx context.Context, tenantID string) ([]model.Objective, error)
	CreateObjective(ctx context.Context, obj model.Objective) (*model.Objective, error)

	// Initiatives
	ListInitiatives(ctx context.Context, filter InitiativeFilter) ([]model.Initiative, error)
	CreateInitiative(ctx context.Context, ini model.Initiative) (*model.Initiative, error)
	UpdateInitiative(ctx context.Context, ini model.Initiative) error
	CreateProgressHistory(ctx context.Context, h model.ProgressHistory) error
}

// AuditLog records import lifecycle events.
type AuditLog interface {
	EmitAudit(ctx context.Context, ev model.AuditEvent) error
	ListAuditEvents(ctx context.Context, importID string) ([]model.AuditEvent, error)
}

// Store is a complete catalog backend.
type Store interface {
	Catalog
	AuditLog

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
