package statement

import (
	"strings"

	"github.com/dvloznov/statement-partitions/internal/domain"
)

// Header keywords per field. Date-only candidates are tried in order.
var (
	seqKeywords      = []string{"순번"}
	dateTimeKeywords = []string{"거래일시"}
	dateOnlyKeywords = []string{"일자", "거래일자", "거래일"}
	timeOnlyKeywords = []string{"시간"}
	depositKeywords  = []string{"입금금액"}
	withdrawKeywords = []string{"출금금액"}
	balanceKeywords  = []string{"거래후잔액"}
	recordKeywords   = []string{"거래기록사항"}
	memoKeywords     = []string{"거래메모"}
	categoryKeywords = []string{"구분"}
)

// Columns maps each record field to its header column; -1 means absent.
type Columns struct {
	Seq      int
	DateTime int
	DateOnly int
	TimeOnly int
	InAmt    int
	OutAmt   int
	Balance  int
	Record   int
	Memo     int
	Category int
}

// ResolveColumns locates field columns by substring match on header text.
func ResolveColumns(header []Cell) Columns {
	texts := make([]string, len(header))
	for i, c := range header {
		texts[i] = c.String()
	}
	return Columns{
		Seq:      columnOf(texts, seqKeywords),
		DateTime: columnOf(texts, dateTimeKeywords),
		DateOnly: columnOf(texts, dateOnlyKeywords),
		TimeOnly: columnOf(texts, timeOnlyKeywords),
		InAmt:    columnOf(texts, depositKeywords),
		OutAmt:   columnOf(texts, withdrawKeywords),
		Balance:  columnOf(texts, balanceKeywords),
		Record:   columnOf(texts, recordKeywords),
		Memo:     columnOf(texts, memoKeywords),
		Category: columnOf(texts, categoryKeywords),
	}
}

// columnOf returns the first column containing the first keyword that matches anywhere.
func columnOf(header []string, keywords []string) int {
	for _, kw := range keywords {
		for i, h := range header {
			if strings.Contains(h, kw) {
				return i
			}
		}
	}
	return -1
}

// NormalizeRecords turns every non-blank row below the header into a
// canonical record. Rows whose date cannot be resolved are still returned,
// with an empty Date; they never reach a partition.
func NormalizeRecords(g Grid, layout Layout, opts DateOptions) []domain.Record {
	if layout.HeaderRow < 0 || layout.HeaderRow >= len(g) {
		return nil
	}
	cols := ResolveColumns(g[layout.HeaderRow])

	out := make([]domain.Record, 0, len(g)-layout.HeaderRow-1)
	for r := layout.HeaderRow + 1; r < len(g); r++ {
		row := g[r]
		if rowBlank(row) {
			continue
		}

		date, clock := rowDateTime(row, cols, opts)
		inAmt := amountAt(row, cols.InAmt)
		outAmt := amountAt(row, cols.OutAmt)

		rec := domain.Record{
			AccountNo: layout.Meta.AccountNo,
			Holder:    layout.Meta.Holder,
			Date:      date,
			Time:      clock,
			InAmt:     inAmt,
			OutAmt:    outAmt,
			Balance:   amountAt(row, cols.Balance),
			Record:    cellAt(row, cols.Record).String(),
			Memo:      cellAt(row, cols.Memo).String(),
			Category:  cellAt(row, cols.Category).String(),
			Seq:       cellAt(row, cols.Seq).String(),
			Type:      domain.TypeOf(inAmt, outAmt),
		}
		rec.Finalize()
		out = append(out, rec)
	}
	return out
}

// rowDateTime prefers the combined datetime column and falls back to a
// date-only column plus an optional time-only column.
func rowDateTime(row []Cell, cols Columns, opts DateOptions) (string, string) {
	if cols.DateTime >= 0 {
		dt, ok := NormalizeDateTime(cellAt(row, cols.DateTime), DateOptions{Epoch1904: opts.Epoch1904})
		if ok {
			return dt.DateString(), dt.TimeString()
		}
	}
	if cols.DateOnly < 0 {
		return "", ""
	}

	var date, clock string
	dt, ok := NormalizeDateTime(cellAt(row, cols.DateOnly), DateOptions{TruncateTime: true, Epoch1904: opts.Epoch1904})
	if ok {
		date = dt.DateString()
	}
	if cols.TimeOnly >= 0 {
		t, _ := ParseClock(cellAt(row, cols.TimeOnly))
		clock = FormatClock(t)
	}
	if date != "" && clock == "" {
		clock = domain.DefaultTime
	}
	return date, clock
}

func amountAt(row []Cell, c int) float64 {
	cell := cellAt(row, c)
	switch cell.Kind {
	case CellNumber:
		return cell.Number
	case CellText:
		return domain.ParseAmount(cell.Text)
	default:
		return 0
	}
}
