package normalize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratix-platform/initiative-import/internal/importerr"
	"github.com/stratix-platform/initiative-import/internal/model"
)

func text(s string) model.Cell { return model.TextCell(s) }

func TestParseProgress(t *testing.T) {
	tests := []struct {
		name string
		cell model.Cell
		want *float64
	}{
		{"percent string", text("75%"), ptr(75)},
		{"plain number string", text("75"), ptr(75)},
		{"decimal comma", text("62,5 %"), ptr(62.5)},
		{"fraction string", text("0.4"), ptr(40)},
		{"fraction cell", model.NumberCell(0.75), ptr(75)},
		{"one means all", model.NumberCell(1), ptr(100)},
		{"small percent is a fraction", text("0.5%"), ptr(50)},
		{"decimal comma fraction percent", text("0,5%"), ptr(50)},
		{"one percent means all", text("1%"), ptr(100)},
		{"just above one percent", text("1.5%"), ptr(1.5)},
		{"clamped high", text("180"), ptr(100)},
		{"clamped low", text("-5"), ptr(0)},
		{"garbage", text("about half"), nil},
		{"blank", model.Cell{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseProgress(tt.cell, 100)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestParseProgress_StretchCeiling(t *testing.T) {
	got := parseProgress(text("130%"), 150)
	require.NotNil(t, got)
	assert.InDelta(t, 130, *got, 1e-9)
}

func TestParseMoney(t *testing.T) {
	tests := []struct{ in, want string }{
		{"$1,234.56", "1234.56"},
		{"1.234,56 €", "1234.56"},
		{"USD 15,000", "15000"},
		{"15.000", "15000"},
		{"1.5", "1.5"},
		{"1,5", "1.5"},
		{"2.500.000", "2500000"},
		{"$ 2,500,000", "2500000"},
		{"(1,200.00)", "-1200"},
		{"-300", "-300"},
		{"S/ 4 500,75", "4500.75"},
		{"1,234", "1234"},
	}
	for _, tt := range tests {
		got := parseMoney(text(tt.in))
		require.NotNil(t, got, tt.in)
		assert.True(t, decimal.RequireFromString(tt.want).Equal(*got), "%s: got %s", tt.in, got)
	}

	assert.Nil(t, parseMoney(text("n/a")))
	assert.Nil(t, parseMoney(model.Cell{}))

	fromNumber := parseMoney(model.NumberCell(99.95))
	require.NotNil(t, fromNumber)
	assert.Equal(t, "99.95", fromNumber.String())
}

func TestParseDate(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	want := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	for _, c := range []model.Cell{
		text("2025-03-31"),
		text("31/03/2025"),
		text("31-03-2025"),
		text("2025/03/31"),
		text("31 Mar 2025"),
		model.DateCell(want),
		model.NumberCell(45747),
		text("45747"),
	} {
		got := parseDate(c, model.DateFallbackNull, now)
		require.NotNil(t, got, c.Text)
		assert.True(t, want.Equal(*got), "%s parsed as %s", c.Text, got)
	}

	assert.Nil(t, parseDate(text("next quarter"), model.DateFallbackNull, now))
	assert.Nil(t, parseDate(model.Cell{}, model.DateFallbackEndOfYear, now))

	eoy := parseDate(text("next quarter"), model.DateFallbackEndOfYear, now)
	require.NotNil(t, eoy)
	assert.Equal(t, "2025-12-31", eoy.Format("2006-01-02"))
}

func TestParseWeight(t *testing.T) {
	assert.InDelta(t, 1.5, parseWeight(text("1,5")), 1e-9)
	assert.InDelta(t, 3.0, parseWeight(text("10")), 1e-9)
	assert.InDelta(t, 0.1, parseWeight(model.NumberCell(0)), 1e-9)
	assert.InDelta(t, 1.0, parseWeight(text("heavy")), 1e-9)
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"Sí", "si", "YES", "x", "1", "✓", "true"} {
		v := parseBool(text(s))
		require.NotNil(t, v, s)
		assert.True(t, *v, s)
	}
	v := parseBool(text("No"))
	require.NotNil(t, v)
	assert.False(t, *v)
	assert.Nil(t, parseBool(model.Cell{}))
	assert.True(t, *parseBool(model.BoolCell(true)))
}

func TestTables(t *testing.T) {
	tables := NewTables(map[string]model.Status{"En Revisión": model.StatusOnHold}, map[string]model.Priority{"P-Uno": model.PriorityCritical})

	assert.Equal(t, model.StatusInProgress, tables.Status("En Curso"))
	assert.Equal(t, model.StatusInProgress, tables.Status("in_progress"))
	assert.Equal(t, model.StatusCompleted, tables.Status("✅ Completado"))
	assert.Equal(t, model.StatusCompleted, tables.Status("✅"))
	assert.Equal(t, model.StatusOnHold, tables.Status("⏸️"))
	assert.Equal(t, model.StatusCancelled, tables.Status("CANCELADO"))
	assert.Equal(t, model.StatusOnHold, tables.Status("en revision"))
	assert.Equal(t, model.StatusPlanning, tables.Status("¿?"))

	assert.Equal(t, model.PriorityHigh, tables.Priority("Alta"))
	assert.Equal(t, model.PriorityCritical, tables.Priority("Crítica"))
	assert.Equal(t, model.PriorityHigh, tables.Priority("🔴"))
	assert.Equal(t, model.PriorityLow, tables.Priority("🟢 baja"))
	assert.Equal(t, model.PriorityCritical, tables.Priority("p uno"))
	assert.Equal(t, model.PriorityMedium, tables.Priority("whenever"))
}

func TestNormalize_FullRow(t *testing.T) {
	n := New(nil, 100, model.DateFallbackNull)
	fields := Fields{
		model.SlotTitle:       text("  Launch CRM "),
		model.SlotArea:        text("Comercial"),
		model.SlotObjective:   text("Crecer ventas"),
		model.SlotProgress:    text("75%"),
		model.SlotStatus:      text("En curso"),
		model.SlotPriority:    text("Alta"),
		model.SlotBudget:      text("$10,000.00"),
		model.SlotDueDate:     text("31/12/2025"),
		model.SlotWeight:      text("2"),
		model.SlotIsStrategic: text("sí"),
		model.SlotResponsible: text(""),
	}

	row, err := n.Normalize(4, "Datos", fields, map[string]string{"Iniciativa": "Launch CRM"})
	require.NoError(t, err)
	assert.Equal(t, 4, row.RowNumber)
	assert.Equal(t, "Datos", row.Sheet)
	assert.Equal(t, "Launch CRM", row.Title)
	assert.Equal(t, "Comercial", row.AreaName)
	assert.Equal(t, "Crecer ventas", row.ObjectiveTitle)
	assert.InDelta(t, 75, *row.Progress, 1e-9)
	assert.Equal(t, model.StatusInProgress, *row.Status)
	assert.Equal(t, model.PriorityHigh, *row.Priority)
	assert.True(t, decimal.NewFromInt(10000).Equal(*row.Budget))
	assert.Equal(t, "2025-12-31", row.DueDate.Format("2006-01-02"))
	assert.InDelta(t, 2, *row.Weight, 1e-9)
	assert.True(t, *row.IsStrategic)
	assert.Nil(t, row.Responsible)
	assert.Nil(t, row.StartDate)
	assert.Equal(t, "Launch CRM", row.Raw["Iniciativa"])
}

func TestNormalize_PercentEqualsPlainNumber(t *testing.T) {
	n := New(nil, 100, model.DateFallbackNull)
	a, err := n.Normalize(2, "s", Fields{model.SlotTitle: text("A"), model.SlotProgress: text("75%")}, nil)
	require.NoError(t, err)
	b, err := n.Normalize(3, "s", Fields{model.SlotTitle: text("A"), model.SlotProgress: model.NumberCell(75)}, nil)
	require.NoError(t, err)
	assert.Equal(t, *a.Progress, *b.Progress)
}

func TestNormalize_MissingTitle(t *testing.T) {
	n := New(nil, 100, model.DateFallbackNull)
	_, err := n.Normalize(7, "Datos", Fields{model.SlotTitle: text("   "), model.SlotArea: text("Comercial")}, nil)
	require.Error(t, err)
	assert.Equal(t, importerr.Row, importerr.KindOf(err))
	assert.Equal(t, "title is required", importerr.Message(err))
}

func TestNormalize_EndOfYearClock(t *testing.T) {
	clock := func() time.Time { return time.Date(2031, 2, 1, 0, 0, 0, 0, time.UTC) }
	n := New(nil, 100, model.DateFallbackEndOfYear, WithClock(clock))
	row, err := n.Normalize(2, "s", Fields{model.SlotTitle: text("A"), model.SlotDueDate: text("TBD")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "2031-12-31", row.DueDate.Format("2006-01-02"))
}

func TestDefaults(t *testing.T) {
	row := model.NormalizedRow{}
	assert.Equal(t, model.StatusPlanning, StatusOrDefault(row))
	assert.Equal(t, model.PriorityMedium, PriorityOrDefault(row))
	assert.InDelta(t, 1.0, WeightOrDefault(row), 1e-9)
}

func TestFieldsAndRawFromGrid(t *testing.T) {
	row := []model.Cell{text("Launch CRM"), text("Comercial")}
	f := FieldsFromGrid(row, model.ColumnMapping{model.SlotTitle: 0, model.SlotArea: 1, model.SlotStatus: 5})
	assert.Equal(t, "Launch CRM", f[model.SlotTitle].Text)
	_, hasStatus := f[model.SlotStatus]
	assert.False(t, hasStatus)

	raw := RawFromGrid(row, []string{"Iniciativa", "Área", "Estado", ""})
	assert.Equal(t, map[string]string{"Iniciativa": "Launch CRM", "Área": "Comercial", "Estado": ""}, raw)
}

func TestCellFromValue(t *testing.T) {
	assert.Equal(t, model.CellString, CellFromValue("x").Kind)
	assert.Equal(t, model.CellNumber, CellFromValue(75.0).Kind)
	assert.Equal(t, model.CellBool, CellFromValue(true).Kind)
	assert.True(t, CellFromValue(nil).IsBlank())
	assert.True(t, CellFromValue("  ").IsBlank())
}

func ptr(f float64) *float64 { return &f }
