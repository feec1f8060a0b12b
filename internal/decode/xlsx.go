package decode

import (
	"regexp"
	"strings"

	"github.com/tealeg/xlsx/v2"

	"github.com/stratix-platform/initiative-import/internal/importerr"
	"github.com/stratix-platform/initiative-import/internal/model"
)

func decodeWorkbook(data []byte) ([]model.CellGrid, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, importerr.Wrap(err, importerr.Format, "workbook could not be opened")
	}
	if len(f.Sheets) == 0 {
		return nil, importerr.New(importerr.Structure, "workbook has no sheets")
	}

	grids := make([]model.CellGrid, 0, len(f.Sheets))
	for _, sheet := range f.Sheets {
		grid := model.CellGrid{Name: sheet.Name}
		for _, row := range sheet.Rows {
			if row == nil {
				grid.Rows = append(grid.Rows, nil)
				continue
			}
			cells := make([]model.Cell, len(row.Cells))
			for j, cell := range row.Cells {
				cells[j] = convertCell(cell, f.Date1904)
			}
			grid.Rows = append(grid.Rows, trimTrailingBlanks(cells))
		}
		grids = append(grids, grid)
	}
	return grids, nil
}

func convertCell(cell *xlsx.Cell, date1904 bool) model.Cell {
	if cell == nil {
		return model.Cell{}
	}
	switch cell.Type() {
	case xlsx.CellTypeBool:
		return model.BoolCell(cell.Bool())
	case xlsx.CellTypeNumeric, xlsx.CellTypeDate:
		f, err := cell.Float()
		if err != nil {
			return model.TextCell(cell.Value)
		}
		if isDateFormat(cell.GetNumberFormat()) {
			return model.DateCell(xlsx.TimeFromExcelTime(f, date1904))
		}
		return model.NumberCell(f)
	}
	return model.TextCell(cell.String())
}

var (
	quotedLiteral = regexp.MustCompile(`"[^"]*"`)
	bracketed     = regexp.MustCompile(`\[[^\]]*\]`)
)

// isDateFormat reports whether an Excel number format renders a date. Quoted
// literals and bracketed locale/colour sections are ignored.
func isDateFormat(format string) bool {
	f := strings.ToLower(format)
	if f == "" || f == "general" || f == "@" {
		return false
	}
	f = quotedLiteral.ReplaceAllString(f, "")
	f = bracketed.ReplaceAllString(f, "")
	return strings.ContainsAny(f, "dy") || (strings.Contains(f, "m") && strings.ContainsAny(f, "/-."))
}

func trimTrailingBlanks(cells []model.Cell) []model.Cell {
	end := len(cells)
	for end > 0 && cells[end-1].IsBlank() {
		end--
	}
	return cells[:end]
}
