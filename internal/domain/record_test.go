package domain

import (
	"strings"
	"testing"
)

func TestRecordID_IgnoresUnrelatedFields(t *testing.T) {
	a := Record{Date: "2024-05-03", Time: "14:20:00", InAmt: 50000, Record: "관리비", Memo: "first", Balance: 10}
	b := a
	b.Memo = "something else"
	b.Balance = 999
	b.OutAmt = 12
	b.Category = "rent"
	a.Finalize()
	b.Finalize()

	if a.ID != b.ID {
		t.Errorf("ids differ: %s vs %s", a.ID, b.ID)
	}
	if !strings.HasPrefix(a.ID, "r_") {
		t.Errorf("id %q missing r_ prefix", a.ID)
	}
}

func TestRecordID_ChangesWithIdentifyingFields(t *testing.T) {
	base := RecordID("2024-05-03", "14:20:00", 50000, "관리비")
	variants := []string{
		RecordID("2024-05-04", "14:20:00", 50000, "관리비"),
		RecordID("2024-05-03", "14:20:01", 50000, "관리비"),
		RecordID("2024-05-03", "14:20:00", 50001, "관리비"),
		RecordID("2024-05-03", "14:20:00", 50000, "월세"),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collided with base id %s", i, base)
		}
	}
}

func TestRecordID_DefaultsTime(t *testing.T) {
	if RecordID("2024-05-03", "", 1, "x") != RecordID("2024-05-03", "00:00:00", 1, "x") {
		t.Error("empty time should hash like 00:00:00")
	}
}

func TestRecordID_KnownValue(t *testing.T) {
	tests := []struct {
		name   string
		date   string
		clock  string
		inAmt  float64
		record string
		want   string
	}{
		{"ascii", "2024-05-03", "14:20:00", 50000, "rent", "r_6b588db4"},
		{"hangul", "2024-05-03", "14:20:00", 50000, "관리비", "r_5638cf15"},
		{"hangul with space", "2024-05-03", "14:20:00", 50000, "월세 입금", "r_53a70afc"},
		{"fractional amount", "2024-05-03", "", 1234.5, "ATM", "r_3007d756"},
		{"surrogate pair", "2024-06-01", "09:00:00", 0, "😀", "r_22d2553e"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RecordID(tt.date, tt.clock, tt.inAmt, tt.record); got != tt.want {
				t.Errorf("RecordID() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFinalize(t *testing.T) {
	r := Record{Date: "2024-05-03", InAmt: 0, OutAmt: 3000, Record: "  카드대금  "}
	r.Finalize()

	if r.Time != DefaultTime {
		t.Errorf("Time = %q, want %q", r.Time, DefaultTime)
	}
	if r.Datetime != "2024-05-03 00:00:00" {
		t.Errorf("Datetime = %q", r.Datetime)
	}
	if r.Type != TypeWithdrawal {
		t.Errorf("Type = %q, want %q", r.Type, TypeWithdrawal)
	}
	if r.MonthKey != "2024-05" {
		t.Errorf("MonthKey = %q", r.MonthKey)
	}
	if r.Record != "카드대금" {
		t.Errorf("Record = %q", r.Record)
	}
	if r.ID == "" {
		t.Error("ID not assigned")
	}
}

func TestFinalize_NoDate(t *testing.T) {
	r := Record{InAmt: 10}
	r.Finalize()
	if r.HasDate() {
		t.Error("record without date must not be placeable")
	}
	if r.MonthKey != "" {
		t.Errorf("MonthKey = %q, want empty", r.MonthKey)
	}
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		in, out float64
		want    string
	}{
		{100, 0, TypeDeposit},
		{0, 100, TypeWithdrawal},
		{100, 100, TypeDeposit},
		{0, 0, ""},
		{-5, 0, ""},
	}
	for _, tt := range tests {
		if got := TypeOf(tt.in, tt.out); got != tt.want {
			t.Errorf("TypeOf(%v, %v) = %q, want %q", tt.in, tt.out, got, tt.want)
		}
	}
}

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		tag     string
		in, out float64
		want    string
	}{
		{"입금", 0, 0, TypeDeposit},
		{"출금", 0, 0, TypeWithdrawal},
		{"deposit", 0, 5, TypeDeposit},
		{"", 0, 5, TypeWithdrawal},
		{"unknown", 5, 0, TypeDeposit},
	}
	for _, tt := range tests {
		if got := NormalizeType(tt.tag, tt.in, tt.out); got != tt.want {
			t.Errorf("NormalizeType(%q) = %q, want %q", tt.tag, got, tt.want)
		}
	}
}

func TestMonthKeyOf(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2024-05-03", "2024-05"},
		{"2024-12", "2024-12"},
		{"2024-13-01", ""},
		{"2024/05/03", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := MonthKeyOf(tt.date); got != tt.want {
			t.Errorf("MonthKeyOf(%q) = %q, want %q", tt.date, got, tt.want)
		}
	}
}

func TestTruncateText(t *testing.T) {
	long := strings.Repeat("가", MaxText+50)
	got := TruncateText(long)
	if n := len([]rune(got)); n != MaxText {
		t.Errorf("rune length = %d, want %d", n, MaxText)
	}
	if TruncateText("  short ") != "short" {
		t.Error("short text should only be trimmed")
	}
}
