package statement

import (
	"bytes"
	"encoding/binary"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/extrame/ole2"
	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"
)

// Supported workbook formats.
const (
	FormatXLSX = "xlsx"
	FormatXLS  = "xls"
	FormatCSV  = "csv"
)

var (
	// ErrNoWorksheet is returned when a workbook contains no sheet to read.
	ErrNoWorksheet = errors.New("workbook has no worksheet")

	// ErrUnsupportedFormat is returned when the bytes are not xlsx, xls or text.
	ErrUnsupportedFormat = errors.New("unsupported workbook format")
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
)

// Workbook is the first worksheet of an uploaded statement, already turned
// into a typed grid.
type Workbook struct {
	Format    string
	Sheet     string
	Grid      Grid
	Epoch1904 bool
}

// DateOptions returns the date options matching this workbook's epoch.
func (w *Workbook) DateOptions() DateOptions {
	return DateOptions{Epoch1904: w.Epoch1904}
}

// OpenWorkbook sniffs the format of data and extracts its first worksheet.
func OpenWorkbook(data []byte) (*Workbook, error) {
	switch {
	case len(data) == 0:
		return nil, fmt.Errorf("OpenWorkbook: empty input: %w", ErrUnsupportedFormat)
	case bytes.HasPrefix(data, zipMagic):
		return openXLSX(data)
	case bytes.HasPrefix(data, oleMagic):
		return openXLS(data)
	case looksLikeText(data):
		return openCSV(data)
	default:
		return nil, fmt.Errorf("OpenWorkbook: %w", ErrUnsupportedFormat)
	}
}

func openXLSX(data []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("OpenWorkbook: opening xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoWorksheet
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("OpenWorkbook: reading rows of %q: %w", sheet, err)
	}

	wb := &Workbook{Format: FormatXLSX, Sheet: sheet}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		wb.Epoch1904 = *props.Date1904
	}

	wb.Grid = make(Grid, len(rows))
	for r, row := range rows {
		cells := make([]Cell, len(row))
		for c, raw := range row {
			cells[c] = xlsxCell(f, sheet, r, c, raw)
		}
		wb.Grid[r] = cells
	}
	return wb, nil
}

// xlsxCell classifies a raw xlsx value. Numbers stored as strings stay text
// so account numbers with leading zeros survive.
func xlsxCell(f *excelize.File, sheet string, r, c int, raw string) Cell {
	if strings.TrimSpace(raw) == "" {
		return Cell{}
	}
	ref, err := excelize.CoordinatesToCellName(c+1, r+1)
	if err != nil {
		return TextCell(raw)
	}
	typ, err := f.GetCellType(sheet, ref)
	if err != nil {
		return TextCell(raw)
	}

	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return TextCell(raw)
	case excelize.CellTypeDate:
		if t, ok := parseISOTime(raw); ok {
			return DateCell(t)
		}
		return TextCell(raw)
	}

	if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
		return NumberCell(v)
	}
	return TextCell(raw)
}

func openXLS(data []byte) (*Workbook, error) {
	book, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("OpenWorkbook: opening xls: %w", err)
	}
	if book.NumSheets() == 0 {
		return nil, ErrNoWorksheet
	}
	sheet := book.GetSheet(0)
	if sheet == nil {
		return nil, ErrNoWorksheet
	}

	wb := &Workbook{Format: FormatXLS, Sheet: sheet.Name, Epoch1904: xlsDate1904(data)}
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			wb.Grid = append(wb.Grid, nil)
			continue
		}
		cells := make([]Cell, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			cells = append(cells, textualCell(row.Col(c)))
		}
		wb.Grid = append(wb.Grid, cells)
	}
	return wb, nil
}

// BIFF record types read by biffDate1904.
const (
	biffEOF      = 0x000A
	biffDateMode = 0x0022
)

// xlsDate1904 reports whether a legacy workbook uses the 1904 date system.
// xls does not expose the flag, so the workbook stream is opened again and
// its DATEMODE record read directly. Any failure means the 1900 system.
func xlsDate1904(data []byte) bool {
	if !bytes.HasPrefix(data, oleMagic) {
		return false
	}
	doc, err := ole2.Open(bytes.NewReader(data), "utf-8")
	if err != nil {
		return false
	}
	dir, err := doc.ListDir()
	if err != nil {
		return false
	}
	var book, root *ole2.File
	for _, f := range dir {
		switch f.Name() {
		case "Workbook", "Book":
			if book == nil {
				book = f
			}
		case "Root Entry":
			root = f
		}
	}
	if book == nil {
		return false
	}
	return biffDate1904(doc.OpenFile(book, root))
}

// biffDate1904 scans the workbook globals substream for DATEMODE.
func biffDate1904(r io.Reader) bool {
	var hdr [4]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return false
		}
		typ := binary.LittleEndian.Uint16(hdr[0:2])
		size := int64(binary.LittleEndian.Uint16(hdr[2:4]))

		switch typ {
		case biffEOF:
			return false
		case biffDateMode:
			var v [2]byte
			if size < 2 {
				return false
			}
			if _, err := io.ReadFull(r, v[:]); err != nil {
				return false
			}
			return binary.LittleEndian.Uint16(v[:]) == 1
		}
		if _, err := io.CopyN(io.Discard, r, size); err != nil {
			return false
		}
	}
}

func openCSV(data []byte) (*Workbook, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		// Korean bank exports are commonly EUC-KR (CP949).
		decoded, err := korean.EUCKR.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("OpenWorkbook: decoding csv: %w", err)
		}
		data = decoded
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("OpenWorkbook: reading csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoWorksheet
	}

	wb := &Workbook{Format: FormatCSV, Sheet: "csv", Grid: make(Grid, len(records))}
	for i, rec := range records {
		cells := make([]Cell, len(rec))
		for j, v := range rec {
			cells[j] = textualCell(v)
		}
		wb.Grid[i] = cells
	}
	return wb, nil
}

// textualCell classifies a value from a format that only yields strings.
func textualCell(raw string) Cell {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Cell{}
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(v, 0) && !math.IsNaN(v) && !hasLeadingZero(s) {
		return Cell{Kind: CellNumber, Number: v, Text: s}
	}
	if t, ok := parseISOTime(s); ok {
		return DateCell(t)
	}
	return TextCell(raw)
}

// hasLeadingZero catches identifiers like "0012345" that must stay text.
func hasLeadingZero(s string) bool {
	s = strings.TrimPrefix(s, "-")
	return len(s) > 1 && s[0] == '0' && s[1] != '.'
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func parseISOTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func looksLikeText(data []byte) bool {
	sample := data
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	return !bytes.ContainsRune(sample, 0)
}
