package report

import (
	"io"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
)

const (
	errorsSheet  = "Errors"
	summarySheet = "Summary"
)

// WriteErrorWorkbook renders the rows that failed to import as an .xlsx
// workbook: one row per error with its original cells, plus a summary sheet.
func WriteErrorWorkbook(w io.Writer, r Result) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", errorsSheet); err != nil {
		return eris.Wrap(err, "report: rename sheet")
	}

	rawKeys := rawColumns(r.Errors)
	header := []any{"Row", "Sheet", "Error", "Hint"}
	for _, k := range rawKeys {
		header = append(header, k)
	}
	if err := f.SetSheetRow(errorsSheet, "A1", &header); err != nil {
		return eris.Wrap(err, "report: write header")
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return eris.Wrap(err, "report: header style")
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return eris.Wrap(err, "report: header range")
	}
	if err := f.SetCellStyle(errorsSheet, "A1", last, bold); err != nil {
		return eris.Wrap(err, "report: apply header style")
	}

	for i, e := range r.Errors {
		values := []any{e.Row, e.Sheet, e.Error, e.Hint}
		for _, k := range rawKeys {
			values = append(values, e.RawData[k])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return eris.Wrap(err, "report: error row")
		}
		if err := f.SetSheetRow(errorsSheet, cell, &values); err != nil {
			return eris.Wrapf(err, "report: write error row %d", e.Row)
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return eris.Wrap(err, "report: summary sheet")
	}
	summary := [][]any{
		{"Import", r.ImportID},
		{"Template", r.Template},
		{"Processed", r.ProcessedRows},
		{"Created", r.CreatedCount},
		{"Updated", r.UpdatedCount},
		{"Skipped", r.SkippedCount},
		{"Errors", r.ErrorCount},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return eris.Wrap(err, "report: write summary")
		}
	}

	return eris.Wrap(f.Write(w), "report: write workbook")
}

// rawColumns returns the sorted union of raw-data keys.
func rawColumns(entries []ErrorEntry) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, e := range entries {
		for k := range e.RawData {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}
