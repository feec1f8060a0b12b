// Package decode turns uploaded workbook or CSV bytes into named grids of raw
// cells.
package decode

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/stratix-platform/initiative-import/internal/importerr"
	"github.com/stratix-platform/initiative-import/internal/model"
)

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeXLS  = "application/vnd.ms-excel"
	mimeOLE  = "application/x-ole-storage"
	mimeZip  = "application/zip"
)

var workbookExts = map[string]bool{".xlsx": true, ".xlsm": true}

var textExts = map[string]bool{".csv": true, ".txt": true, ".tsv": true}

var textMIMEs = map[string]bool{
	"text/csv":                  true,
	"text/plain":                true,
	"text/tab-separated-values": true,
	"application/csv":           true,
}

// Decode detects the file format from its signature, falling back to the
// extension and declared MIME type, and returns one grid per sheet.
func Decode(data []byte, fileName, declaredMIME string) ([]model.CellGrid, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	detected := mimetype.Detect(data)

	switch {
	case detected.Is(mimeXLSX):
		return decodeWorkbook(data)
	case detected.Is(mimeXLS), detected.Is(mimeOLE):
		return nil, importerr.New(importerr.Format, "legacy .xls workbooks are not supported, save the file as .xlsx or .csv")
	case detected.Is(mimeZip) && workbookExts[ext]:
		return decodeWorkbook(data)
	case workbookExts[ext]:
		return nil, importerr.New(importerr.Format, "file %q is not a valid workbook", fileName)
	case textExts[ext] || textMIMEs[baseMIME(declaredMIME)] || detected.Is("text/csv"):
		if !isText(detected) {
			return nil, importerr.New(importerr.Format, "file %q is not a text file (detected %s)", fileName, detected.String())
		}
		return decodeCSV(data, gridName(fileName))
	}
	return nil, importerr.New(importerr.Format, "unsupported file type %s for %q", detected.String(), fileName)
}

func baseMIME(declared string) string {
	if declared == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(declared))
	}
	return mt
}

// isText walks the detected type's parents; every text format descends from
// text/plain.
func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func gridName(fileName string) string {
	base := filepath.Base(fileName)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." {
		return "Sheet1"
	}
	return name
}
