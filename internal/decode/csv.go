package decode

import (
	"bytes"
	"encoding/csv"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/stratix-platform/initiative-import/internal/importerr"
	"github.com/stratix-platform/initiative-import/internal/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func decodeCSV(data []byte, name string) ([]model.CellGrid, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		// Spreadsheet exports from Excel on Windows default to cp1252.
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, importerr.Wrap(err, importerr.Format, "csv text encoding not recognised")
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	grid := model.CellGrid{Name: name}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, importerr.Wrap(err, importerr.Format, "csv could not be parsed")
		}
		// encoding/csv drops empty lines; pad them back so grid rows keep
		// their file line numbers.
		line, _ := reader.FieldPos(0)
		for len(grid.Rows) < line-1 {
			grid.Rows = append(grid.Rows, nil)
		}
		cells := make([]model.Cell, len(record))
		for i, field := range record {
			cells[i] = model.TextCell(field)
		}
		grid.Rows = append(grid.Rows, cells)
	}

	if len(grid.Rows) == 0 {
		return nil, importerr.New(importerr.Structure, "file contains no lines")
	}
	return []model.CellGrid{grid}, nil
}

// sniffDelimiter counts candidate separators outside quotes on the first
// non-empty line. Ties resolve in candidate order.
func sniffDelimiter(data []byte) rune {
	line := firstLine(data)
	candidates := []rune{',', ';', '\t'}
	counts := make(map[rune]int, len(candidates))

	inQuotes := false
	for _, r := range string(line) {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}

	best := ','
	for _, c := range candidates {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

func firstLine(data []byte) []byte {
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		var line []byte
		if i < 0 {
			line, data = data, nil
		} else {
			line, data = data[:i], data[i+1:]
		}
		if len(bytes.TrimSpace(line)) > 0 {
			return line
		}
	}
	return nil
}
