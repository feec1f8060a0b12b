package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratix-platform/initiative-import/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var initiativeColumns = []string{
	"id", "tenant_id", "area_id", "objective_id", "title", "description", "responsible",
	"progress", "status", "priority", "budget", "actual_cost", "estimated_hours", "actual_hours",
	"start_date", "due_date", "weight", "kpi_category", "is_strategic", "import_id", "created_at", "updated_at",
}

func TestPostgresStore_ListAreas(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, tenant_id, name, description, created_at FROM areas WHERE tenant_id = \$1`).
		WithArgs("t1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "name", "description", "created_at"}).
			AddRow("a1", "t1", "Comercial", "", now).
			AddRow("a2", "t1", "Finanzas", "", now))

	areas, err := s.ListAreas(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, areas, 2)
	assert.Equal(t, "Finanzas", areas[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListInitiatives_AreaFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now()
	objective := "o1"
	budget := "1500.00"

	mock.ExpectQuery(`FROM initiatives WHERE tenant_id = \$1 AND area_id = ANY\(\$2\)`).
		WithArgs("t1", []string{"a1"}).
		WillReturnRows(pgxmock.NewRows(initiativeColumns).
			AddRow("i1", "t1", "a1", &objective, "Launch CRM", "", "", 50.0, "in_progress", "high",
				&budget, (*string)(nil), (*float64)(nil), (*float64)(nil), (*time.Time)(nil), (*time.Time)(nil),
				1.0, "", false, "imp-1", now, now))

	list, err := s.ListInitiatives(context.Background(), InitiativeFilter{TenantID: "t1", AreaIDs: []string{"a1"}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "o1", list[0].ObjectiveID)
	assert.Equal(t, model.StatusInProgress, list[0].Status)
	require.NotNil(t, list[0].Budget)
	assert.True(t, decimal.RequireFromString("1500").Equal(*list[0].Budget))
	assert.Nil(t, list[0].ActualCost)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateInitiative(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	budget := decimal.RequireFromString("99.95")

	mock.ExpectExec(`INSERT INTO initiatives`).
		WithArgs(pgxmock.AnyArg(), "t1", "a1", (*string)(nil), "Launch CRM", "", "",
			60.0, "planning", "medium", pgxmock.AnyArg(), (*string)(nil),
			(*float64)(nil), (*float64)(nil), (*time.Time)(nil), (*time.Time)(nil),
			1.0, "", false, "imp-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ini, err := s.CreateInitiative(context.Background(), model.Initiative{
		TenantID: "t1", AreaID: "a1", Title: "Launch CRM", Progress: 60,
		Status: model.StatusPlanning, Priority: model.PriorityMedium, Budget: &budget, Weight: 1, ImportID: "imp-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ini.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateInitiative_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE initiatives SET`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateInitiative(context.Background(), model.Initiative{ID: "missing", TenantID: "t1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initiative not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EmitAudit_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO audit_events`).
		WillReturnError(errors.New("connection refused"))

	err := s.EmitAudit(context.Background(), model.AuditEvent{ImportID: "imp-1", TenantID: "t1", Type: model.AuditImportFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert audit event")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAuditEvents(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now()

	mock.ExpectQuery(`FROM audit_events\s+WHERE import_id = \$1`).
		WithArgs("imp-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "import_id", "tenant_id", "type", "payload", "created_at"}).
			AddRow("e1", "imp-1", "t1", "import.started", []byte(`{"row_count":2}`), now))

	events, err := s.ListAuditEvents(context.Background(), "imp-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.AuditImportStarted, events[0].Type)
	assert.InDelta(t, 2, events[0].Payload["row_count"], 0.0001)
	assert.NoError(t, mock.ExpectationsWereMet())
}
