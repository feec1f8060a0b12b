package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/stratix-platform/initiative-import/internal/db"
	"github.com/stratix-platform/initiative-import/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements are prepared on each new connection; they cover the
// per-row writes of the reconciliation loop.
var preparedStatements = map[string]string{
	"insert_initiative": `INSERT INTO initiatives (` + pgInitiativeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::numeric, $12::numeric, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
	"insert_progress_history": `INSERT INTO progress_history (id, tenant_id, initiative_id, import_id, previous_progress, new_progress, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"insert_audit_event": `INSERT INTO audit_events (id, import_id, tenant_id, type, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(8)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS areas (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tenant_id   TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, name)
);

CREATE TABLE IF NOT EXISTS objectives (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tenant_id   TEXT NOT NULL,
	area_id     TEXT NOT NULL REFERENCES areas(id),
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS initiatives (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tenant_id       TEXT NOT NULL,
	area_id         TEXT NOT NULL REFERENCES areas(id),
	objective_id    TEXT REFERENCES objectives(id),
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	responsible     TEXT NOT NULL DEFAULT '',
	progress        DOUBLE PRECISION NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'planning',
	priority        TEXT NOT NULL DEFAULT 'medium',
	budget          NUMERIC(18,2),
	actual_cost     NUMERIC(18,2),
	estimated_hours DOUBLE PRECISION,
	actual_hours    DOUBLE PRECISION,
	start_date      DATE,
	due_date        DATE,
	weight          DOUBLE PRECISION NOT NULL DEFAULT 1 CHECK (weight BETWEEN 0.1 AND 3.0),
	kpi_category    TEXT NOT NULL DEFAULT '',
	is_strategic    BOOLEAN NOT NULL DEFAULT false,
	import_id       TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS progress_history (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tenant_id         TEXT NOT NULL,
	initiative_id     TEXT NOT NULL REFERENCES initiatives(id),
	import_id         TEXT NOT NULL,
	previous_progress DOUBLE PRECISION NOT NULL,
	new_progress      DOUBLE PRECISION NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_events (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	import_id  TEXT NOT NULL,
	tenant_id  TEXT NOT NULL,
	type       TEXT NOT NULL,
	payload    JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_areas_tenant ON areas(tenant_id);
CREATE INDEX IF NOT EXISTS idx_objectives_tenant_area ON objectives(tenant_id, area_id);
CREATE INDEX IF NOT EXISTS idx_initiatives_tenant_area ON initiatives(tenant_id, area_id);
CREATE INDEX IF NOT EXISTS idx_progress_history_initiative ON progress_history(initiative_id);
CREATE INDEX IF NOT EXISTS idx_audit_events_import ON audit_events(import_id, created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListAreas(ctx context.Context, tenantID string) ([]model.Area, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, description, created_at FROM areas WHERE tenant_id = $1 ORDER BY name`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list areas")
	}
	defer rows.Close()

	var areas []model.Area
	for rows.Next() {
		var a model.Area
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Name, &a.Description, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan area")
		}
		areas = append(areas, a)
	}
	return areas, eris.Wrap(rows.Err(), "postgres: list areas iterate")
}

func (s *PostgresStore) CreateArea(ctx context.Context, area model.Area) (*model.Area, error) {
	stampArea(&area)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO areas (id, tenant_id, name, description, created_at) VALUES ($1, $2, $3, $4, $5)`,
		area.ID, area.TenantID, area.Name, area.Description, area.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert area %q", area.Name)
	}
	return &area, nil
}

func (s *PostgresStore) ListObjectives(ctx context.Context, tenantID string) ([]model.Objective, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, area_id, title, description, created_at FROM objectives WHERE tenant_id = $1`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list objectives")
	}
	defer rows.Close()

	var objs []model.Objective
	for rows.Next() {
		var o model.Objective
		if err := rows.Scan(&o.ID, &o.TenantID, &o.AreaID, &o.Title, &o.Description, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan objective")
		}
		objs = append(objs, o)
	}
	return objs, eris.Wrap(rows.Err(), "postgres: list objectives iterate")
}

func (s *PostgresStore) CreateObjective(ctx context.Context, obj model.Objective) (*model.Objective, error) {
	stampObjective(&obj)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO objectives (id, tenant_id, area_id, title, description, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		obj.ID, obj.TenantID, obj.AreaID, obj.Title, obj.Description, obj.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert objective %q", obj.Title)
	}
	return &obj, nil
}

const pgInitiativeColumns = `id, tenant_id, area_id, objective_id, title, description, responsible,
	progress, status, priority, budget, actual_cost, estimated_hours, actual_hours,
	start_date, due_date, weight, kpi_category, is_strategic, import_id, created_at, updated_at`

// Budgets travel as text so decimal precision never passes through float64.
const pgInitiativeSelect = `SELECT id, tenant_id, area_id, objective_id, title, description, responsible,
	progress, status, priority, budget::text, actual_cost::text, estimated_hours, actual_hours,
	start_date, due_date, weight, kpi_category, is_strategic, import_id, created_at, updated_at
	FROM initiatives`

func (s *PostgresStore) ListInitiatives(ctx context.Context, filter InitiativeFilter) ([]model.Initiative, error) {
	query := pgInitiativeSelect + ` WHERE tenant_id = $1`
	args := []any{filter.TenantID}
	if len(filter.AreaIDs) > 0 {
		query += ` AND area_id = ANY($2)`
		args = append(args, filter.AreaIDs)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list initiatives")
	}
	defer rows.Close()

	var out []model.Initiative
	for rows.Next() {
		ini, err := scanPgInitiative(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ini)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list initiatives iterate")
}

func (s *PostgresStore) CreateInitiative(ctx context.Context, ini model.Initiative) (*model.Initiative, error) {
	stampInitiative(&ini)
	_, err := s.pool.Exec(ctx, preparedStatements["insert_initiative"],
		ini.ID, ini.TenantID, ini.AreaID, nullString(ini.ObjectiveID), ini.Title, ini.Description, ini.Responsible,
		ini.Progress, string(ini.Status), string(ini.Priority), decimalText(ini.Budget), decimalText(ini.ActualCost),
		ini.EstimatedHours, ini.ActualHours, ini.StartDate, ini.DueDate, ini.Weight, ini.KPICategory,
		ini.IsStrategic, ini.ImportID, ini.CreatedAt, ini.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert initiative %q", ini.Title)
	}
	return &ini, nil
}

func (s *PostgresStore) UpdateInitiative(ctx context.Context, ini model.Initiative) error {
	ini.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE initiatives SET objective_id = $1, title = $2, description = $3, responsible = $4,
		 progress = $5, status = $6, priority = $7, budget = $8::numeric, actual_cost = $9::numeric,
		 estimated_hours = $10, actual_hours = $11, start_date = $12, due_date = $13, weight = $14,
		 kpi_category = $15, is_strategic = $16, import_id = $17, updated_at = $18
		 WHERE id = $19 AND tenant_id = $20`,
		nullString(ini.ObjectiveID), ini.Title, ini.Description, ini.Responsible,
		ini.Progress, string(ini.Status), string(ini.Priority), decimalText(ini.Budget), decimalText(ini.ActualCost),
		ini.EstimatedHours, ini.ActualHours, ini.StartDate, ini.DueDate, ini.Weight,
		ini.KPICategory, ini.IsStrategic, ini.ImportID, ini.UpdatedAt,
		ini.ID, ini.TenantID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update initiative %s", ini.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("initiative not found: %s", ini.ID)
	}
	return nil
}

func (s *PostgresStore) CreateProgressHistory(ctx context.Context, h model.ProgressHistory) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, preparedStatements["insert_progress_history"],
		h.ID, h.TenantID, h.InitiativeID, h.ImportID, h.PreviousProgress, h.NewProgress, h.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert progress history for %s", h.InitiativeID)
}

func (s *PostgresStore) EmitAudit(ctx context.Context, ev model.AuditEvent) error {
	stampAudit(&ev)
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal audit payload")
	}
	_, err = s.pool.Exec(ctx, preparedStatements["insert_audit_event"],
		ev.ID, ev.ImportID, ev.TenantID, string(ev.Type), payload, ev.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert audit event %s", ev.Type)
}

func (s *PostgresStore) ListAuditEvents(ctx context.Context, importID string) ([]model.AuditEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, import_id, tenant_id, type, payload, created_at FROM audit_events
		 WHERE import_id = $1 ORDER BY created_at`,
		importID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit events")
	}
	defer rows.Close()

	var out []model.AuditEvent
	for rows.Next() {
		var ev model.AuditEvent
		var evType string
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.ImportID, &ev.TenantID, &evType, &payload, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit event")
		}
		ev.Type = model.AuditEventType(evType)
		if err := json.Unmarshal(payload, &ev.Payload); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal audit payload")
		}
		out = append(out, ev)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list audit events iterate")
}

func scanPgInitiative(row scannable) (*model.Initiative, error) {
	var (
		ini                model.Initiative
		objectiveID        *string
		status, priority   string
		budget, actualCost *string
	)
	err := row.Scan(&ini.ID, &ini.TenantID, &ini.AreaID, &objectiveID, &ini.Title, &ini.Description, &ini.Responsible,
		&ini.Progress, &status, &priority, &budget, &actualCost, &ini.EstimatedHours, &ini.ActualHours,
		&ini.StartDate, &ini.DueDate, &ini.Weight, &ini.KPICategory, &ini.IsStrategic, &ini.ImportID, &ini.CreatedAt, &ini.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan initiative")
	}
	if objectiveID != nil {
		ini.ObjectiveID = *objectiveID
	}
	ini.Status = model.Status(status)
	ini.Priority = model.Priority(priority)
	if ini.Budget, err = textDecimal(budget); err != nil {
		return nil, err
	}
	if ini.ActualCost, err = textDecimal(actualCost); err != nil {
		return nil, err
	}
	return &ini, nil
}

func textDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, eris.Wrapf(err, "store: parse decimal %q", *s)
	}
	return &d, nil
}
