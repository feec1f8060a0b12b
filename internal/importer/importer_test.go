package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/stratix-platform/initiative-import/internal/importerr"
	"github.com/stratix-platform/initiative-import/internal/model"
	"github.com/stratix-platform/initiative-import/internal/report"
	"github.com/stratix-platform/initiative-import/internal/resilience"
	"github.com/stratix-platform/initiative-import/internal/store"
)

var fixedNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type env struct {
	st    *store.SQLiteStore
	im    *Importer
	areas map[string]*model.Area
}

func testSettings() Settings {
	s := DefaultSettings()
	s.Retry = resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	return s
}

func newEnv(t *testing.T, areaNames ...string) *env {
	t.Helper()
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	e := &env{st: st, areas: make(map[string]*model.Area)}
	for _, name := range areaNames {
		a, err := st.CreateArea(ctx, model.Area{TenantID: "t1", Name: name})
		require.NoError(t, err)
		e.areas[name] = a
	}

	seq := 0
	e.im = New(st, testSettings(), nil,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("imp-%d", seq)
		}),
	)
	return e
}

func (e *env) initiatives(t *testing.T) []model.Initiative {
	t.Helper()
	list, err := e.st.ListInitiatives(context.Background(), store.InitiativeFilter{TenantID: "t1"})
	require.NoError(t, err)
	return list
}

func (e *env) importCSV(t *testing.T, body string, opts model.ImportOptions) (*report.Result, error) {
	t.Helper()
	return e.im.ImportFile(context.Background(), FileRequest{
		TenantID: "t1",
		FileName: "plan.csv",
		Data:     []byte(body),
		Options:  opts,
	})
}

const okrCSV = `Área,Objetivo,Iniciativa,Progreso,Estado,Responsable,Peso
Comercial,Crecer ventas,Launch CRM,80%,En curso,Ana,1
Comercial,Crecer ventas,Open store,40,Planificado,Luis,3
`

func TestImportFile_ScenarioA_CreatesInitiative(t *testing.T) {
	e := newEnv(t, "Comercial", "Finanzas")

	res, err := e.importCSV(t, "Área,Iniciativa,Progreso\nComercial,Launch CRM,25%\n", model.ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, "imp-1", res.ImportID)
	assert.Equal(t, 1, res.ProcessedRows)
	assert.Equal(t, 1, res.CreatedCount)
	assert.Zero(t, res.ErrorCount)
	assert.Empty(t, res.Errors)

	list := e.initiatives(t)
	require.Len(t, list, 1)
	assert.Equal(t, "Launch CRM", list[0].Title)
	assert.Equal(t, e.areas["Comercial"].ID, list[0].AreaID)
	assert.InDelta(t, 25, list[0].Progress, 1e-9)
	assert.Equal(t, "imp-1", list[0].ImportID)

	require.Len(t, res.KPIImpact, 1)
	assert.Equal(t, "Comercial", res.KPIImpact[0].AreaName)
	assert.InDelta(t, 0, res.KPIImpact[0].PreviousProgress, 1e-9)
	assert.InDelta(t, 25, res.KPIImpact[0].NewProgress, 1e-9)

	events, err := e.st.ListAuditEvents(context.Background(), "imp-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.AuditImportStarted, events[0].Type)
	assert.Equal(t, model.AuditImportCompleted, events[1].Type)
}

func TestImportFile_WeightedKPIAndTemplate(t *testing.T) {
	e := newEnv(t, "Comercial")

	res, err := e.importCSV(t, okrCSV, model.ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, "okr_standard", res.Template)
	assert.Equal(t, 2, res.CreatedCount)
	require.Len(t, res.KPIImpact, 1)
	assert.InDelta(t, 50, res.KPIImpact[0].NewProgress, 1e-9)
	assert.Equal(t, 2, res.KPIImpact[0].Initiatives)

	objs, err := e.st.ListObjectives(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, objs, 1, "both rows share one created objective")
	assert.Equal(t, "Imported from plan.csv", objs[0].Description)
}

func TestImportFile_Idempotent(t *testing.T) {
	e := newEnv(t, "Comercial")

	first, err := e.importCSV(t, okrCSV, model.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, first.CreatedCount)
	before := e.initiatives(t)

	second, err := e.importCSV(t, okrCSV, model.ImportOptions{})
	require.NoError(t, err)
	assert.Zero(t, second.CreatedCount)
	assert.Equal(t, 2, second.UpdatedCount)

	after := e.initiatives(t)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.InDelta(t, before[i].Progress, after[i].Progress, 1e-9)
		assert.Equal(t, before[i].Status, after[i].Status)
		assert.InDelta(t, before[i].Weight, after[i].Weight, 1e-9)
	}

	hist, err := e.st.ProgressHistory(context.Background(), after[0].ID)
	require.NoError(t, err)
	assert.Empty(t, hist, "unchanged progress writes no history")

	require.Len(t, second.KPIImpact, 1)
	assert.InDelta(t, second.KPIImpact[0].PreviousProgress, second.KPIImpact[0].NewProgress, 1e-9)
}

func TestImportFile_ScenarioB_InBatchDuplicateSkipped(t *testing.T) {
	e := newEnv(t, "Comercial")

	body := "Área,Iniciativa,Progreso\nComercial,Launch CRM,10\nComercial,launch crm,20\n"
	res, err := e.importCSV(t, body, model.ImportOptions{SkipDuplicates: true})
	require.NoError(t, err)

	assert.Equal(t, 1, res.CreatedCount)
	assert.Equal(t, 1, res.SkippedCount)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, model.OutcomeSkipped, res.Outcomes[1].Outcome)
	assert.Equal(t, "duplicate", res.Outcomes[1].Message)
	assert.Len(t, e.initiatives(t), 1)
}

func TestImportFile_ScenarioC_UnknownArea(t *testing.T) {
	e := newEnv(t, "Comercial")

	body := "Área,Iniciativa\nNonexistentDept,Launch CRM\nComercial,Hire sales lead\n"
	res, err := e.importCSV(t, body, model.ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.ErrorCount)
	assert.Equal(t, 1, res.CreatedCount)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Row)
	assert.Equal(t, "area not found", res.Errors[0].Error)
	assert.Equal(t, "NonexistentDept", res.Errors[0].RawData["Área"])

	areas, err := e.st.ListAreas(context.Background(), "t1")
	require.NoError(t, err)
	assert.Len(t, areas, 1, "areas are never created by imports")
}

func TestImportFile_RowFidelity(t *testing.T) {
	e := newEnv(t, "Comercial")

	body := "Plan 2025\nÁrea,Iniciativa\nComercial,A\n,\nComercial,\nComercial,B\n"
	res, err := e.importCSV(t, body, model.ImportOptions{})
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 3)
	assert.Equal(t, 3, res.Outcomes[0].RowNumber)
	assert.Equal(t, 5, res.Outcomes[1].RowNumber)
	assert.Equal(t, model.OutcomeError, res.Outcomes[1].Outcome)
	assert.Equal(t, "title is required", res.Outcomes[1].Message)
	assert.Equal(t, 6, res.Outcomes[2].RowNumber)
	assert.Equal(t, res.ProcessedRows, res.CreatedCount+res.UpdatedCount+res.SkippedCount+res.ErrorCount)
}

func TestImportFile_TargetAreaForBlankAreaColumn(t *testing.T) {
	e := newEnv(t, "Comercial", "Finanzas")

	res, err := e.importCSV(t, "Iniciativa,Progreso\nClose books faster,0.5\n",
		model.ImportOptions{AreaID: e.areas["Finanzas"].ID})
	require.NoError(t, err)
	require.Equal(t, 1, res.CreatedCount, res.Errors)

	list := e.initiatives(t)
	require.Len(t, list, 1)
	assert.Equal(t, e.areas["Finanzas"].ID, list[0].AreaID)
	assert.InDelta(t, 50, list[0].Progress, 1e-9)
}

func TestImportFile_UnknownTargetArea(t *testing.T) {
	e := newEnv(t, "Comercial")
	_, err := e.importCSV(t, "Iniciativa\nA\n", model.ImportOptions{AreaID: "missing"})
	require.Error(t, err)
	assert.Equal(t, importerr.Validation, importerr.KindOf(err))
}

func TestImportFile_AbortsBeforeAnyWrite(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		body     string
		settings func(*Settings)
		kind     importerr.Kind
	}{
		{name: "legacy xls", fileName: "plan.xls", body: "\xd0\xcf\x11\xe0\xa1\xb1\x1a\xe1" + strings.Repeat("\x00", 512), kind: importerr.Format},
		{name: "no title column", fileName: "plan.csv", body: "Área,Progreso\nComercial,10\n", kind: importerr.Mapping},
		{name: "no header row", fileName: "plan.csv", body: "foo,bar\n1,2\n", kind: importerr.Structure},
		{
			name: "row ceiling", fileName: "plan.csv", body: "Área,Iniciativa\nComercial,A\nComercial,B\nComercial,C\n",
			settings: func(s *Settings) { s.MaxRows = 2 }, kind: importerr.Validation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, "Comercial")
			if tt.settings != nil {
				s := testSettings()
				tt.settings(&s)
				e.im = New(e.st, s, nil)
			}

			res, err := e.im.ImportFile(context.Background(), FileRequest{TenantID: "t1", FileName: tt.fileName, Data: []byte(tt.body)})
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.kind, importerr.KindOf(err), err.Error())

			var failed *FailedError
			assert.False(t, errors.As(err, &failed), "no session is opened")
			assert.Empty(t, e.initiatives(t))
		})
	}
}

func createTestXLSX(t *testing.T, build func(f *xlsx.File)) []byte {
	t.Helper()
	f := xlsx.NewFile()
	build(f)
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func TestImportFile_MultiArea(t *testing.T) {
	e := newEnv(t, "Comercial", "Capital Humano")

	data := createTestXLSX(t, func(f *xlsx.File) {
		s, err := f.AddSheet("COMERCIAL")
		require.NoError(t, err)
		addRow(s, "Iniciativa", "Progreso", "Estado", "Prioridad", "Fecha")
		addRow(s, "Launch CRM", "30%", "En curso", "Alta", "2025-06-30")

		s, err = f.AddSheet("capital_humano")
		require.NoError(t, err)
		addRow(s, "Iniciativa", "% Avance")
		row := s.AddRow()
		row.AddCell().SetString("Hire recruiter")
		row.AddCell().SetFloat(0.6)

		s, err = f.AddSheet("Notas")
		require.NoError(t, err)
		addRow(s, "free text")
	})

	res, err := e.im.ImportFile(context.Background(), FileRequest{
		TenantID: "t1",
		FileName: "areas.xlsx",
		Data:     data,
		Options:  model.ImportOptions{MultiArea: true},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.CreatedCount)
	assert.Equal(t, "area_sheet", res.Template)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Notas")

	byTitle := map[string]model.Initiative{}
	for _, ini := range e.initiatives(t) {
		byTitle[ini.Title] = ini
	}
	assert.Equal(t, e.areas["Comercial"].ID, byTitle["Launch CRM"].AreaID)
	assert.Equal(t, model.StatusInProgress, byTitle["Launch CRM"].Status)
	assert.Equal(t, model.PriorityHigh, byTitle["Launch CRM"].Priority)
	assert.Equal(t, e.areas["Capital Humano"].ID, byTitle["Hire recruiter"].AreaID)
	assert.InDelta(t, 60, byTitle["Hire recruiter"].Progress, 1e-9)

	require.Len(t, res.KPIImpact, 2)
	assert.Equal(t, "Capital Humano", res.KPIImpact[0].AreaName)
	assert.Equal(t, "Comercial", res.KPIImpact[1].AreaName)
}

func TestImportRows_PercentRoundTripAndStretch(t *testing.T) {
	e := newEnv(t, "Comercial")

	res, err := e.im.ImportRows(context.Background(), RowsRequest{
		TenantID: "t1",
		Rows: []map[string]any{
			{"name": "A", "area": "Comercial", "pct": "75%"},
			{"name": "B", "area": "Comercial", "pct": 75.0},
			{"name": "C", "area": "Comercial", "pct": 130.0},
		},
		Mapping: map[string]string{"title": "name", "area": "area", "progress": "pct"},
		Summary: RowsSummary{FileName: "browser.xlsx", SheetName: "Hoja1", TotalRows: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.CreatedCount)
	assert.Equal(t, model.TemplateClientMapping, res.Template)
	assert.Equal(t, 1, res.Outcomes[0].RowNumber)
	assert.Equal(t, "Hoja1", res.Outcomes[0].Sheet)

	progress := map[string]float64{}
	for _, ini := range e.initiatives(t) {
		progress[ini.Title] = ini.Progress
	}
	assert.InDelta(t, 75, progress["A"], 1e-9)
	assert.InDelta(t, progress["A"], progress["B"], 1e-9)
	assert.InDelta(t, 130, progress["C"], 1e-9)

	events, err := e.st.ListAuditEvents(context.Background(), res.ImportID)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "preparsed", events[0].Payload["entry"])
}

func TestImportRows_ScenarioD_RowCeiling(t *testing.T) {
	e := newEnv(t, "Comercial")

	rows := make([]map[string]any, 10001)
	for i := range rows {
		rows[i] = map[string]any{"name": fmt.Sprintf("Initiative %d", i), "area": "Comercial"}
	}
	res, err := e.im.ImportRows(context.Background(), RowsRequest{
		TenantID: "t1",
		Rows:     rows,
		Mapping:  map[string]string{"title": "name", "area": "area"},
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, importerr.Validation, importerr.KindOf(err))
	assert.ErrorIs(t, err, ErrRowCeiling)
	assert.Empty(t, e.initiatives(t))

	events, err := e.st.ListAuditEvents(context.Background(), "imp-1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestImportRows_InvalidMapping(t *testing.T) {
	e := newEnv(t, "Comercial")
	tests := []struct {
		mapping map[string]string
		kind    importerr.Kind
	}{
		{map[string]string{"title": "name", "colour": "c"}, importerr.Validation},
		{map[string]string{"area": "area"}, importerr.Mapping},
	}
	for _, tt := range tests {
		_, err := e.im.ImportRows(context.Background(), RowsRequest{
			TenantID: "t1",
			Rows:     []map[string]any{{"name": "A"}},
			Mapping:  tt.mapping,
		})
		assert.Equal(t, tt.kind, importerr.KindOf(err))
	}
}

func TestImportRows_SummaryMismatchWarns(t *testing.T) {
	e := newEnv(t, "Comercial")
	res, err := e.im.ImportRows(context.Background(), RowsRequest{
		TenantID: "t1",
		Rows:     []map[string]any{{"name": "A", "area": "Comercial"}},
		Mapping:  map[string]string{"title": "name", "area": "area"},
		Summary:  RowsSummary{TotalRows: 4},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Warnings, "summary declares 4 rows but 1 were received")
}

type brokenAuditStore struct {
	*store.SQLiteStore
}

func (brokenAuditStore) EmitAudit(context.Context, model.AuditEvent) error {
	return errors.New("audit_events: no such table")
}

func TestImport_CatastrophicCarriesImportID(t *testing.T) {
	e := newEnv(t, "Comercial")
	im := New(brokenAuditStore{e.st}, testSettings(), nil, WithIDGenerator(func() string { return "imp-x" }))

	_, err := im.ImportFile(context.Background(), FileRequest{TenantID: "t1", FileName: "plan.csv", Data: []byte("Área,Iniciativa\nComercial,A\n")})
	require.Error(t, err)

	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "imp-x", failed.ImportID)
	assert.Equal(t, importerr.Catastrophic, importerr.KindOf(err))
	assert.Empty(t, e.initiatives(t))
}

type brokenReadStore struct {
	*store.SQLiteStore
}

func (brokenReadStore) ListInitiatives(context.Context, store.InitiativeFilter) ([]model.Initiative, error) {
	return nil, errors.New("connection refused")
}

func TestImport_PrefetchFailureIsCatastrophic(t *testing.T) {
	e := newEnv(t, "Comercial")
	im := New(brokenReadStore{e.st}, testSettings(), nil)

	_, err := im.ImportFile(context.Background(), FileRequest{TenantID: "t1", FileName: "plan.csv", Data: []byte("Área,Iniciativa\nComercial,A\n")})
	require.Error(t, err)
	assert.Equal(t, importerr.Catastrophic, importerr.KindOf(err))
}

func TestImport_CancelledCallerStillCompletes(t *testing.T) {
	e := newEnv(t, "Comercial")
	ctx, cancel := context.WithCancel(context.Background())

	im := New(cancelOnStart{SQLiteStore: e.st, cancel: cancel}, testSettings(), nil)
	res, err := im.ImportFile(ctx, FileRequest{TenantID: "t1", FileName: "plan.csv", Data: []byte("Área,Iniciativa\nComercial,A\nComercial,B\n")})
	require.NoError(t, err)
	assert.Equal(t, 2, res.CreatedCount)
}

// cancelOnStart cancels the caller's context as soon as the session opens.
type cancelOnStart struct {
	*store.SQLiteStore
	cancel context.CancelFunc
}

func (c cancelOnStart) EmitAudit(ctx context.Context, ev model.AuditEvent) error {
	if ev.Type == model.AuditImportStarted {
		c.cancel()
	}
	return c.SQLiteStore.EmitAudit(ctx, ev)
}
