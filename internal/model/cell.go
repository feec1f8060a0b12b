package model

import (
	"strconv"
	"strings"
	"time"
)

// CellKind identifies the decoded type of a spreadsheet cell.
type CellKind int

const (
	CellBlank CellKind = iota
	CellString
	CellNumber
	CellDate
	CellBool
)

// Cell is one untyped value of a decoded grid.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
	Time   time.Time
	Bool   bool
}

// TextCell builds a string cell, or a blank cell for whitespace-only input.
func TextCell(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{Kind: CellBlank}
	}
	return Cell{Kind: CellString, Text: s}
}

// NumberCell builds a numeric cell.
func NumberCell(f float64) Cell {
	return Cell{Kind: CellNumber, Number: f, Text: strconv.FormatFloat(f, 'f', -1, 64)}
}

// DateCell builds a date cell.
func DateCell(t time.Time) Cell {
	return Cell{Kind: CellDate, Time: t, Text: t.Format("2006-01-02")}
}

// BoolCell builds a boolean cell.
func BoolCell(b bool) Cell {
	return Cell{Kind: CellBool, Bool: b, Text: strconv.FormatBool(b)}
}

// IsBlank reports whether the cell carries no value.
func (c Cell) IsBlank() bool {
	return c.Kind == CellBlank
}

// String returns the raw text form of the cell.
func (c Cell) String() string {
	return c.Text
}

// CellGrid is a named sheet's rows of raw cells.
type CellGrid struct {
	Name string
	Rows [][]Cell
}

// Width returns the widest row length in the grid.
func (g CellGrid) Width() int {
	w := 0
	for _, r := range g.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// RowText returns the text of every cell in row i, or nil when out of range.
func (g CellGrid) RowText(i int) []string {
	if i < 0 || i >= len(g.Rows) {
		return nil
	}
	out := make([]string, len(g.Rows[i]))
	for j, c := range g.Rows[i] {
		out[j] = c.Text
	}
	return out
}

// BlankRow reports whether every cell of the row is blank.
func BlankRow(row []Cell) bool {
	for _, c := range row {
		if !c.IsBlank() {
			return false
		}
	}
	return true
}
