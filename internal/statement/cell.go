package statement

import (
	"strconv"
	"strings"
	"time"
)

// CellKind is the typed view of one spreadsheet cell.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellDate
)

// Cell is a single typed value extracted from a worksheet. Text keeps the
// raw representation for every kind so callers can fall back to it.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
	Time   time.Time // wall clock of a native date cell, stored in UTC
}

// TextCell builds a text cell, or an empty cell when s is blank.
func TextCell(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{}
	}
	return Cell{Kind: CellText, Text: s}
}

// NumberCell builds a numeric cell.
func NumberCell(v float64) Cell {
	return Cell{Kind: CellNumber, Number: v}
}

// DateCell builds a native date cell from the wall clock of t.
func DateCell(t time.Time) Cell {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	return Cell{Kind: CellDate, Time: wall}
}

// String returns the trimmed textual form of the cell.
func (c Cell) String() string {
	if t := strings.TrimSpace(c.Text); t != "" {
		return t
	}
	switch c.Kind {
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellDate:
		return c.Time.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}

// IsBlank reports whether the cell carries no value.
func (c Cell) IsBlank() bool {
	return c.String() == ""
}

// Grid is a worksheet as rows of cells. Rows may be ragged; missing cells
// read as empty.
type Grid [][]Cell

// At returns the cell at (r, c), or an empty cell when out of range.
func (g Grid) At(r, c int) Cell {
	if r < 0 || r >= len(g) || c < 0 || c >= len(g[r]) {
		return Cell{}
	}
	return g[r][c]
}

// Text is shorthand for g.At(r, c).String().
func (g Grid) Text(r, c int) string {
	return g.At(r, c).String()
}

// Width returns the length of row r, or 0 when r is out of range.
func (g Grid) Width(r int) int {
	if r < 0 || r >= len(g) {
		return 0
	}
	return len(g[r])
}

func rowBlank(row []Cell) bool {
	for _, c := range row {
		if !c.IsBlank() {
			return false
		}
	}
	return true
}

func cellAt(row []Cell, c int) Cell {
	if c < 0 || c >= len(row) {
		return Cell{}
	}
	return row[c]
}
