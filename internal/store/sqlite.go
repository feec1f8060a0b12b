package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/stratix-platform/initiative-import/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS areas (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (tenant_id, name)
);

CREATE TABLE IF NOT EXISTS objectives (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	area_id     TEXT NOT NULL REFERENCES areas(id),
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS initiatives (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	area_id         TEXT NOT NULL REFERENCES areas(id),
	objective_id    TEXT,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	responsible     TEXT NOT NULL DEFAULT '',
	progress        REAL NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'planning',
	priority        TEXT NOT NULL DEFAULT 'medium',
	budget          TEXT,
	actual_cost     TEXT,
	estimated_hours REAL,
	actual_hours    REAL,
	start_date      DATETIME,
	due_date        DATETIME,
	weight          REAL NOT NULL DEFAULT 1,
	kpi_category    TEXT NOT NULL DEFAULT '',
	is_strategic    INTEGER NOT NULL DEFAULT 0,
	import_id       TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS progress_history (
	id                TEXT PRIMARY KEY,
	tenant_id         TEXT NOT NULL,
	initiative_id     TEXT NOT NULL REFERENCES initiatives(id),
	import_id         TEXT NOT NULL,
	previous_progress REAL NOT NULL,
	new_progress      REAL NOT NULL,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS audit_events (
	id         TEXT PRIMARY KEY,
	import_id  TEXT NOT NULL,
	tenant_id  TEXT NOT NULL,
	type       TEXT NOT NULL,
	payload    TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_areas_tenant ON areas(tenant_id);
CREATE INDEX IF NOT EXISTS idx_objectives_tenant_area ON objectives(tenant_id, area_id);
CREATE INDEX IF NOT EXISTS idx_initiatives_tenant_area ON initiatives(tenant_id, area_id);
CREATE INDEX IF NOT EXISTS idx_progress_history_initiative ON progress_history(initiative_id);
CREATE INDEX IF NOT EXISTS idx_audit_events_import ON audit_events(import_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListAreas(ctx context.Context, tenantID string) ([]model.Area, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, name, description, created_at FROM areas WHERE tenant_id = ? ORDER BY name`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list areas")
	}
	defer rows.Close()

	var areas []model.Area
	for rows.Next() {
		var a model.Area
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Name, &a.Description, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan area")
		}
		areas = append(areas, a)
	}
	return areas, eris.Wrap(rows.Err(), "sqlite: list areas iterate")
}

func (s *SQLiteStore) CreateArea(ctx context.Context, area model.Area) (*model.Area, error) {
	stampArea(&area)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO areas (id, tenant_id, name, description, created_at) VALUES (?, ?, ?, ?, ?)`,
		area.ID, area.TenantID, area.Name, area.Description, area.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert area %q", area.Name)
	}
	return &area, nil
}

func (s *SQLiteStore) ListObjectives(ctx context.Context, tenantID string) ([]model.Objective, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, area_id, title, description, created_at FROM objectives WHERE tenant_id = ?`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list objectives")
	}
	defer rows.Close()

	var objs []model.Objective
	for rows.Next() {
		var o model.Objective
		if err := rows.Scan(&o.ID, &o.TenantID, &o.AreaID, &o.Title, &o.Description, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan objective")
		}
		objs = append(objs, o)
	}
	return objs, eris.Wrap(rows.Err(), "sqlite: list objectives iterate")
}

func (s *SQLiteStore) CreateObjective(ctx context.Context, obj model.Objective) (*model.Objective, error) {
	stampObjective(&obj)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO objectives (id, tenant_id, area_id, title, description, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		obj.ID, obj.TenantID, obj.AreaID, obj.Title, obj.Description, obj.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert objective %q", obj.Title)
	}
	return &obj, nil
}

const sqliteInitiativeColumns = `id, tenant_id, area_id, objective_id, title, description, responsible,
	progress, status, priority, budget, actual_cost, estimated_hours, actual_hours,
	start_date, due_date, weight, kpi_category, is_strategic, import_id, created_at, updated_at`

func (s *SQLiteStore) ListInitiatives(ctx context.Context, filter InitiativeFilter) ([]model.Initiative, error) {
	query := `SELECT ` + sqliteInitiativeColumns + ` FROM initiatives WHERE tenant_id = ?`
	args := []any{filter.TenantID}
	if len(filter.AreaIDs) > 0 {
		query += ` AND area_id IN (?` + strings.Repeat(", ?", len(filter.AreaIDs)-1) + `)`
		for _, id := range filter.AreaIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list initiatives")
	}
	defer rows.Close()

	var out []model.Initiative
	for rows.Next() {
		ini, err := scanSQLiteInitiative(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ini)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list initiatives iterate")
}

func (s *SQLiteStore) CreateInitiative(ctx context.Context, ini model.Initiative) (*model.Initiative, error) {
	stampInitiative(&ini)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO initiatives (`+sqliteInitiativeColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ini.ID, ini.TenantID, ini.AreaID, nullString(ini.ObjectiveID), ini.Title, ini.Description, ini.Responsible,
		ini.Progress, string(ini.Status), string(ini.Priority), decimalText(ini.Budget), decimalText(ini.ActualCost),
		ini.EstimatedHours, ini.ActualHours, ini.StartDate, ini.DueDate, ini.Weight, ini.KPICategory,
		ini.IsStrategic, ini.ImportID, ini.CreatedAt, ini.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert initiative %q", ini.Title)
	}
	return &ini, nil
}

func (s *SQLiteStore) UpdateInitiative(ctx context.Context, ini model.Initiative) error {
	ini.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE initiatives SET objective_id = ?, title = ?, description = ?, responsible = ?,
		 progress = ?, status = ?, priority = ?, budget = ?, actual_cost = ?, estimated_hours = ?,
		 actual_hours = ?, start_date = ?, due_date = ?, weight = ?, kpi_category = ?,
		 is_strategic = ?, import_id = ?, updated_at = ?
		 WHERE id = ? AND tenant_id = ?`,
		nullString(ini.ObjectiveID), ini.Title, ini.Description, ini.Responsible,
		ini.Progress, string(ini.Status), string(ini.Priority), decimalText(ini.Budget), decimalText(ini.ActualCost),
		ini.EstimatedHours, ini.ActualHours, ini.StartDate, ini.DueDate, ini.Weight, ini.KPICategory,
		ini.IsStrategic, ini.ImportID, ini.UpdatedAt,
		ini.ID, ini.TenantID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update initiative %s", ini.ID)
	}
	return checkRowsAffected(res, "initiative", ini.ID)
}

func (s *SQLiteStore) CreateProgressHistory(ctx context.Context, h model.ProgressHistory) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO progress_history (id, tenant_id, initiative_id, import_id, previous_progress, new_progress, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.TenantID, h.InitiativeID, h.ImportID, h.PreviousProgress, h.NewProgress, h.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert progress history for %s", h.InitiativeID)
}

// ProgressHistory lists the history entries of one initiative, oldest first.
func (s *SQLiteStore) ProgressHistory(ctx context.Context, initiativeID string) ([]model.ProgressHistory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, initiative_id, import_id, previous_progress, new_progress, created_at
		 FROM progress_history WHERE initiative_id = ? ORDER BY created_at`,
		initiativeID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list progress history")
	}
	defer rows.Close()

	var out []model.ProgressHistory
	for rows.Next() {
		var h model.ProgressHistory
		if err := rows.Scan(&h.ID, &h.TenantID, &h.InitiativeID, &h.ImportID, &h.PreviousProgress, &h.NewProgress, &h.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan progress history")
		}
		out = append(out, h)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list progress history iterate")
}

func (s *SQLiteStore) EmitAudit(ctx context.Context, ev model.AuditEvent) error {
	stampAudit(&ev)
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal audit payload")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, import_id, tenant_id, type, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.ImportID, ev.TenantID, string(ev.Type), string(payload), ev.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert audit event %s", ev.Type)
}

func (s *SQLiteStore) ListAuditEvents(ctx context.Context, importID string) ([]model.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, import_id, tenant_id, type, payload, created_at FROM audit_events
		 WHERE import_id = ? ORDER BY created_at, rowid`,
		importID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit events")
	}
	defer rows.Close()

	var out []model.AuditEvent
	for rows.Next() {
		var ev model.AuditEvent
		var payload string
		if err := rows.Scan(&ev.ID, &ev.ImportID, &ev.TenantID, &ev.Type, &payload, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit event")
		}
		if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal audit payload")
		}
		out = append(out, ev)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list audit events iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteInitiative(row scannable) (*model.Initiative, error) {
	var (
		ini                model.Initiative
		objectiveID        sql.NullString
		budget, actualCost sql.NullString
		estimated, actual  sql.NullFloat64
		startDate, dueDate sql.NullTime
	)
	err := row.Scan(&ini.ID, &ini.TenantID, &ini.AreaID, &objectiveID, &ini.Title, &ini.Description, &ini.Responsible,
		&ini.Progress, &ini.Status, &ini.Priority, &budget, &actualCost, &estimated, &actual,
		&startDate, &dueDate, &ini.Weight, &ini.KPICategory, &ini.IsStrategic, &ini.ImportID, &ini.CreatedAt, &ini.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan initiative")
	}

	ini.ObjectiveID = objectiveID.String
	if ini.Budget, err = parseDecimal(budget); err != nil {
		return nil, err
	}
	if ini.ActualCost, err = parseDecimal(actualCost); err != nil {
		return nil, err
	}
	if estimated.Valid {
		ini.EstimatedHours = &estimated.Float64
	}
	if actual.Valid {
		ini.ActualHours = &actual.Float64
	}
	if startDate.Valid {
		ini.StartDate = &startDate.Time
	}
	if dueDate.Valid {
		ini.DueDate = &dueDate.Time
	}
	return &ini, nil
}

func parseDecimal(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, eris.Wrapf(err, "store: parse decimal %q", v.String)
	}
	return &d, nil
}

func decimalText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func stampArea(a *model.Area) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
}

func stampObjective(o *model.Objective) {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
}

func stampInitiative(i *model.Initiative) {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
	i.UpdatedAt = now
}

func stampAudit(ev *model.AuditEvent) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if ev.Payload == nil {
		ev.Payload = map[string]any{}
	}
}
