package bigquery

import (
	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/statement-partitions/internal/migration"
)

// IncomeRow is one row of the legacy income table. Every column except
// doc_id is nullable because older importers wrote sparse rows.
type IncomeRow struct {
	DocID       string               `bigquery:"doc_id"` // REQUIRED
	ID          bigquery.NullString  `bigquery:"id"`
	Date        bigquery.NullString  `bigquery:"date"` // YYYY-MM-DD as written by the importer
	Time        bigquery.NullString  `bigquery:"time"`
	Datetime    bigquery.NullString  `bigquery:"datetime"`
	MonthKey    bigquery.NullString  `bigquery:"month_key"`
	AccountNo   bigquery.NullString  `bigquery:"account_no"`
	Holder      bigquery.NullString  `bigquery:"holder"`
	Category    bigquery.NullString  `bigquery:"category"`
	Record      bigquery.NullString  `bigquery:"record"`
	Memo        bigquery.NullString  `bigquery:"memo"`
	Seq         bigquery.NullString  `bigquery:"seq"`
	Type        bigquery.NullString  `bigquery:"type"`
	InAmt       bigquery.NullFloat64 `bigquery:"in_amt"`
	OutAmt      bigquery.NullFloat64 `bigquery:"out_amt"`
	Balance     bigquery.NullFloat64 `bigquery:"balance"`
	Unconfirmed bigquery.NullBool    `bigquery:"unconfirmed"`
}

// ToDocument maps the row onto the migration source shape. NULL columns
// become zero values.
func (r *IncomeRow) ToDocument() migration.SourceDocument {
	return migration.SourceDocument{
		DocID:       r.DocID,
		ID:          r.ID.StringVal,
		Date:        r.Date.StringVal,
		Time:        r.Time.StringVal,
		Datetime:    r.Datetime.StringVal,
		MonthKey:    r.MonthKey.StringVal,
		AccountNo:   r.AccountNo.StringVal,
		Holder:      r.Holder.StringVal,
		Category:    r.Category.StringVal,
		Record:      r.Record.StringVal,
		Memo:        r.Memo.StringVal,
		Seq:         r.Seq.StringVal,
		Type:        r.Type.StringVal,
		InAmt:       r.InAmt.Float64,
		OutAmt:      r.OutAmt.Float64,
		Balance:     r.Balance.Float64,
		Unconfirmed: r.Unconfirmed.Valid && r.Unconfirmed.Bool,
	}
}
