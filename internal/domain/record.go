package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxText bounds free-text fields so a single statement line cannot bloat a partition.
const MaxText = 2000

// DefaultTime is used whenever a transaction carries a date but no clock value.
const DefaultTime = "00:00:00"

// Transaction type tags derived from which amount is positive.
const (
	TypeDeposit    = "deposit"
	TypeWithdrawal = "withdrawal"
)

var monthKeyPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Record is the canonical transaction stored inside a month partition.
// Field names are part of the blob format and must not change.
type Record struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`     // YYYY-MM-DD, empty when the source row had no usable date
	Time        string  `json:"time"`     // HH:MM:SS
	Datetime    string  `json:"datetime"` // "<date> <time>"
	AccountNo   string  `json:"accountNo"`
	Holder      string  `json:"holder"`
	Category    string  `json:"category"`
	Record      string  `json:"record"`
	Memo        string  `json:"memo"`
	Seq         string  `json:"seq"`
	InAmt       float64 `json:"inAmt"`
	OutAmt      float64 `json:"outAmt"`
	Balance     float64 `json:"balance"`
	Type        string  `json:"type"`
	MonthKey    string  `json:"monthKey"`
	Unconfirmed bool    `json:"unconfirmed"`
}

// Finalize fills the derived fields (time default, datetime, type, month key,
// truncation) and assigns the content id. Callers run it once all source
// fields are set.
func (r *Record) Finalize() {
	r.Date = strings.TrimSpace(r.Date)
	r.Time = strings.TrimSpace(r.Time)
	if r.Time == "" {
		r.Time = DefaultTime
	}
	r.Datetime = r.Date + " " + r.Time
	if r.Date == "" {
		r.Datetime = ""
	}
	r.Category = TruncateText(r.Category)
	r.Record = TruncateText(r.Record)
	r.Memo = TruncateText(r.Memo)
	if r.Type == "" {
		r.Type = TypeOf(r.InAmt, r.OutAmt)
	}
	r.MonthKey = MonthKeyOf(r.Date)
	r.AssignID()
}

// HasDate reports whether the record can be placed into a partition.
func (r *Record) HasDate() bool {
	return r.Date != "" && r.MonthKey != ""
}

// TypeOf derives the type tag. Deposits win when both amounts are positive.
func TypeOf(inAmt, outAmt float64) string {
	switch {
	case inAmt > 0:
		return TypeDeposit
	case outAmt > 0:
		return TypeWithdrawal
	default:
		return ""
	}
}

// NormalizeType maps legacy tags written by older importers onto the
// canonical ones. Unknown tags fall back to the amount-derived type.
func NormalizeType(tag string, inAmt, outAmt float64) string {
	switch strings.TrimSpace(tag) {
	case TypeDeposit, "입금":
		return TypeDeposit
	case TypeWithdrawal, "출금":
		return TypeWithdrawal
	default:
		return TypeOf(inAmt, outAmt)
	}
}

// MonthKeyOf returns the YYYY-MM prefix of a date, or "" when the date is too short.
func MonthKeyOf(date string) string {
	date = strings.TrimSpace(date)
	if len(date) < 7 {
		return ""
	}
	mk := date[:7]
	if !IsMonthKey(mk) {
		return ""
	}
	return mk
}

// IsMonthKey reports whether s is a well-formed YYYY-MM key.
func IsMonthKey(s string) bool {
	return monthKeyPattern.MatchString(s)
}

// TruncateText trims s and cuts it to MaxText characters.
func TruncateText(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxText {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxText])
}
