package decode

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/stratix-platform/initiative-import/internal/importerr"
	"github.com/stratix-platform/initiative-import/internal/model"
)

func createTestXLSX(t *testing.T, build func(f *xlsx.File)) []byte {
	t.Helper()
	f := xlsx.NewFile()
	build(f)
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func addStringRow(sheet *xlsx.Sheet, values ...string) *xlsx.Row {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
	return row
}

func TestDecode_WorkbookTypedCells(t *testing.T) {
	due := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	data := createTestXLSX(t, func(f *xlsx.File) {
		sheet, err := f.AddSheet("Iniciativas")
		require.NoError(t, err)
		addStringRow(sheet, "Iniciativa", "Progreso", "Fecha", "Estratégica")
		row := addStringRow(sheet, "Launch CRM")
		row.AddCell().SetFloat(0.75)
		row.AddCell().SetDate(due)
		row.AddCell().SetBool(true)

		_, err = f.AddSheet("Notas")
		require.NoError(t, err)
	})

	grids, err := Decode(data, "plan.xlsx", "")
	require.NoError(t, err)
	require.Len(t, grids, 2)
	assert.Equal(t, "Iniciativas", grids[0].Name)
	assert.Equal(t, "Notas", grids[1].Name)

	rows := grids[0].Rows
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Iniciativa", "Progreso", "Fecha", "Estratégica"}, grids[0].RowText(0))

	data1 := rows[1]
	require.Len(t, data1, 4)
	assert.Equal(t, model.CellString, data1[0].Kind)
	assert.Equal(t, model.CellNumber, data1[1].Kind)
	assert.InDelta(t, 0.75, data1[1].Number, 1e-9)
	assert.Equal(t, model.CellDate, data1[2].Kind)
	assert.Equal(t, "2026-03-31", data1[2].Time.Format("2006-01-02"))
	assert.Equal(t, model.CellBool, data1[3].Kind)
	assert.True(t, data1[3].Bool)
}

func TestDecode_CSVCommaWithBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Título,Área\n\"Launch, CRM\",Comercial\n")...)

	grids, err := Decode(data, "iniciativas.csv", "text/csv")
	require.NoError(t, err)
	require.Len(t, grids, 1)
	assert.Equal(t, "iniciativas", grids[0].Name)
	assert.Equal(t, []string{"Título", "Área"}, grids[0].RowText(0))
	assert.Equal(t, []string{"Launch, CRM", "Comercial"}, grids[0].RowText(1))
}

func TestDecode_CSVSemicolonWindows1252(t *testing.T) {
	// "Título;Área" then "Capacitación;Finanzas" in cp1252.
	data := []byte("T\xedtulo;\xc1rea\nCapacitaci\xf3n;Finanzas\n")

	grids, err := Decode(data, "export.csv", "")
	require.NoError(t, err)
	require.Len(t, grids, 1)
	assert.Equal(t, []string{"Título", "Área"}, grids[0].RowText(0))
	assert.Equal(t, []string{"Capacitación", "Finanzas"}, grids[0].RowText(1))
}

func TestDecode_CSVTabs(t *testing.T) {
	grids, err := Decode([]byte("title\tarea\nA\tB\n"), "data.txt", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, grids[0].RowText(1))
}

func TestDecode_CSVBlankCells(t *testing.T) {
	grids, err := Decode([]byte("a,b,c\n, ,x\n"), "d.csv", "")
	require.NoError(t, err)
	row := grids[0].Rows[1]
	assert.True(t, row[0].IsBlank())
	assert.True(t, row[1].IsBlank())
	assert.Equal(t, "x", row[2].Text)
}

func TestDecode_CSVEmptyLinesKeepLineNumbers(t *testing.T) {
	grids, err := Decode([]byte("title,area\nA,X\n\n\nB,Y\n"), "d.csv", "")
	require.NoError(t, err)
	rows := grids[0].Rows
	require.Len(t, rows, 5)
	assert.True(t, model.BlankRow(rows[2]))
	assert.True(t, model.BlankRow(rows[3]))
	assert.Equal(t, []string{"B", "Y"}, grids[0].RowText(4))
}

func TestDecode_Errors(t *testing.T) {
	ole := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 512)...)

	tests := []struct {
		name     string
		data     []byte
		fileName string
		kind     importerr.Kind
	}{
		{"legacy xls", ole, "old.xls", importerr.Format},
		{"corrupt workbook", []byte("not really a zip"), "broken.xlsx", importerr.Format},
		{"pdf", []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n"), "report.pdf", importerr.Format},
		{"empty csv", []byte(""), "empty.csv", importerr.Structure},
		{"whitespace csv", []byte("\n\n"), "blank.csv", importerr.Structure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data, tt.fileName, "")
			require.Error(t, err)
			assert.Equal(t, tt.kind, importerr.KindOf(err))
		})
	}
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, ';', sniffDelimiter([]byte("a;b;c\n1;2;3")))
	assert.Equal(t, ',', sniffDelimiter([]byte("\"x;y\",b\n")))
	assert.Equal(t, '\t', sniffDelimiter([]byte("\n\na\tb\tc")))
	assert.Equal(t, ',', sniffDelimiter([]byte("single")))
}

func TestIsDateFormat(t *testing.T) {
	assert.True(t, isDateFormat("mm-dd-yy"))
	assert.True(t, isDateFormat("d/m/yyyy"))
	assert.True(t, isDateFormat(`[$-409]d-mmm-yy;@`))
	assert.False(t, isDateFormat("General"))
	assert.False(t, isDateFormat("0.00%"))
	assert.False(t, isDateFormat(`#,##0 "días"`))
	assert.False(t, isDateFormat(""))
}
