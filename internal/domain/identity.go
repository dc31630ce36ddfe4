package domain

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
)

const (
	fnvOffset32 = 2166136261
	fnvPrime32  = 16777619
)

// RecordID computes the deduplication key of a transaction: FNV-1a (32 bit)
// over "date|time|inAmt|record", rendered as "r_<hex>".
//
// Each step folds in one UTF-16 code unit rather than one byte, so ids match
// the ones already stored for non-ASCII descriptions.
//
// The key is a content hash, not a primary key. Two distinct transactions
// that share date, time, deposit amount and description collapse into one.
func RecordID(date, clock string, inAmt float64, record string) string {
	if strings.TrimSpace(clock) == "" {
		clock = DefaultTime
	}
	key := strings.Join([]string{
		strings.TrimSpace(date),
		strings.TrimSpace(clock),
		FormatAmount(inAmt),
		strings.TrimSpace(record),
	}, "|")

	return fmt.Sprintf("r_%x", hashUnits(utf16.Encode([]rune(key))))
}

func hashUnits(units []uint16) uint32 {
	h := uint32(fnvOffset32)
	for _, u := range units {
		h ^= uint32(u)
		h *= fnvPrime32
	}
	return h
}

// AssignID sets r.ID from its identifying fields.
func (r *Record) AssignID() {
	r.ID = RecordID(r.Date, r.Time, r.InAmt, r.Record)
}

// FormatAmount renders an amount in its shortest decimal form (50000, 1234.5).
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
