package statement

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"
)

func buildXLSX(t *testing.T, rows map[string][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for cell, values := range rows {
		row := values
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow(%s): %v", cell, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func TestOpenWorkbook_XLSX(t *testing.T) {
	data := buildXLSX(t, map[string][]interface{}{
		"A1": {"계좌번호", "0110-123-456789"},
		"A2": {"예금주명", "한남빌라"},
		"A4": {"거래일시", "입금금액", "출금금액", "거래기록사항"},
		"A5": {time.Date(2024, 5, 3, 14, 20, 0, 0, time.UTC), 50000, 0, "관리비"},
		"A6": {"2024/5/4 09:00:00", "30,000", "", "월세"},
	})

	wb, err := OpenWorkbook(data)
	if err != nil {
		t.Fatalf("OpenWorkbook() error = %v", err)
	}
	if wb.Format != FormatXLSX || wb.Sheet != "Sheet1" || wb.Epoch1904 {
		t.Errorf("unexpected workbook header %+v", wb)
	}

	layout, err := NewKeywordDetector().Detect(wb.Grid)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if layout.HeaderRow != 3 {
		t.Errorf("HeaderRow = %d, want 3", layout.HeaderRow)
	}
	if layout.Meta.AccountNo != "0110-123-456789" || layout.Meta.Holder != "한남빌라" {
		t.Errorf("Meta = %+v", layout.Meta)
	}

	recs := NormalizeRecords(wb.Grid, layout, wb.DateOptions())
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Date != "2024-05-03" || recs[0].Time != "14:20:00" || recs[0].InAmt != 50000 {
		t.Errorf("first record = %+v", recs[0])
	}
	if recs[1].Date != "2024-05-04" || recs[1].Time != "09:00:00" || recs[1].InAmt != 30000 {
		t.Errorf("second record = %+v", recs[1])
	}
}

func TestOpenWorkbook_CSV(t *testing.T) {
	data := []byte("\xEF\xBB\xBF계좌번호,110-1\n거래일시,입금금액,거래기록사항\n2024-05-03 14:20:00,\"50,000\",관리비\n")

	wb, err := OpenWorkbook(data)
	if err != nil {
		t.Fatalf("OpenWorkbook() error = %v", err)
	}
	if wb.Format != FormatCSV {
		t.Errorf("Format = %q", wb.Format)
	}
	if got := wb.Grid.Text(0, 0); got != "계좌번호" {
		t.Errorf("BOM not stripped: %q", got)
	}
	if got := wb.Grid.At(2, 1); got.Kind != CellText {
		t.Errorf("thousands-separated amount should stay text, got kind %v", got.Kind)
	}
}

func TestOpenWorkbook_CSVEUCKR(t *testing.T) {
	utf := "거래일시,입금금액\n2024/5/3,100\n"
	data, err := korean.EUCKR.NewEncoder().Bytes([]byte(utf))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	wb, err := OpenWorkbook(data)
	if err != nil {
		t.Fatalf("OpenWorkbook() error = %v", err)
	}
	if got := wb.Grid.Text(0, 0); got != "거래일시" {
		t.Errorf("decoded header = %q", got)
	}
}

func TestOpenWorkbook_Rejects(t *testing.T) {
	if _, err := OpenWorkbook(nil); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("nil input error = %v", err)
	}
	if _, err := OpenWorkbook([]byte{0x00, 0x01, 0x02}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("binary input error = %v", err)
	}
}

func TestTextualCell(t *testing.T) {
	tests := []struct {
		raw  string
		kind CellKind
	}{
		{"", CellEmpty},
		{"  ", CellEmpty},
		{"50000", CellNumber},
		{"-12.5", CellNumber},
		{"0", CellNumber},
		{"0.25", CellNumber},
		{"0012345", CellText},
		{"50,000", CellText},
		{"2024-05-03T14:20:00Z", CellDate},
		{"관리비", CellText},
		{"Inf", CellText},
	}
	for _, tt := range tests {
		if got := textualCell(tt.raw); got.Kind != tt.kind {
			t.Errorf("textualCell(%q).Kind = %v, want %v", tt.raw, got.Kind, tt.kind)
		}
	}
}

func biffRecord(typ uint16, payload ...byte) []byte {
	rec := []byte{byte(typ), byte(typ >> 8), byte(len(payload)), byte(len(payload) >> 8)}
	return append(rec, payload...)
}

func TestBIFFDate1904(t *testing.T) {
	bof := biffRecord(0x0809, 0x00, 0x06, 0x05, 0x00)
	codepage := biffRecord(0x0042, 0xB5, 0x04)
	tests := []struct {
		name   string
		stream [][]byte
		want   bool
	}{
		{"1904 system", [][]byte{bof, codepage, biffRecord(biffDateMode, 0x01, 0x00), biffRecord(biffEOF)}, true},
		{"1900 system", [][]byte{bof, biffRecord(biffDateMode, 0x00, 0x00), biffRecord(biffEOF)}, false},
		{"no record before globals end", [][]byte{bof, biffRecord(biffEOF), biffRecord(biffDateMode, 0x01, 0x00)}, false},
		{"truncated record", [][]byte{bof, {0x22, 0x00, 0x02, 0x00, 0x01}}, false},
		{"empty stream", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := biffDate1904(bytes.NewReader(bytes.Join(tt.stream, nil))); got != tt.want {
				t.Errorf("biffDate1904() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestXLSDate1904_NotCompoundFile(t *testing.T) {
	if xlsDate1904([]byte("not a compound document")) {
		t.Error("xlsDate1904() = true for non-OLE input")
	}
}
