package migration

import (
	"strings"

	"github.com/dvloznov/statement-partitions/internal/domain"
)

// toRecord converts a source document into a canonical record. The stored
// id is carried over rather than recomputed, so partitions keep the keys
// the collection already uses. It reports false for rows missing an id, a
// date or a month key.
func toRecord(doc SourceDocument) (domain.Record, bool) {
	id := strings.TrimSpace(doc.ID)
	if id == "" {
		id = strings.TrimSpace(doc.DocID)
	}
	date := strings.TrimSpace(doc.Date)
	mk := monthKeyOf(date, doc.MonthKey)
	if id == "" || date == "" || mk == "" {
		return domain.Record{}, false
	}

	clock := strings.TrimSpace(doc.Time)
	if clock == "" {
		clock = domain.DefaultTime
	}
	datetime := strings.TrimSpace(doc.Datetime)
	if datetime == "" {
		datetime = date + " " + clock
	}

	return domain.Record{
		ID:          id,
		Date:        date,
		Time:        clock,
		Datetime:    datetime,
		AccountNo:   strings.TrimSpace(doc.AccountNo),
		Holder:      strings.TrimSpace(doc.Holder),
		Category:    domain.TruncateText(doc.Category),
		Record:      domain.TruncateText(doc.Record),
		Memo:        domain.TruncateText(doc.Memo),
		Seq:         strings.TrimSpace(doc.Seq),
		InAmt:       doc.InAmt,
		OutAmt:      doc.OutAmt,
		Balance:     doc.Balance,
		Type:        domain.NormalizeType(doc.Type, doc.InAmt, doc.OutAmt),
		MonthKey:    mk,
		Unconfirmed: doc.Unconfirmed,
	}, true
}

// monthKeyOf prefers the key derived from date so that a record always
// lands in the partition its date belongs to. The stored key is only used
// when the date has no usable prefix.
func monthKeyOf(date, stored string) string {
	if mk := domain.MonthKeyOf(date); mk != "" {
		return mk
	}
	stored = strings.TrimSpace(stored)
	if domain.IsMonthKey(stored) {
		return stored
	}
	return ""
}
