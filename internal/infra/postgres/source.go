// Package postgres reads the legacy income collection from PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvloznov/statement-partitions/internal/migration"
)

// DefaultIncomeTable is the table read when none is configured.
const DefaultIncomeTable = "public.acct_income"

// Querier is the subset of *pgxpool.Pool the source needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// IncomeSource is the migration.Source backed by a PostgreSQL table.
type IncomeSource struct {
	db    Querier
	query string
}

// NewIncomeSource creates a source over table ("schema.table" or "table").
func NewIncomeSource(db Querier, table string) *IncomeSource {
	if table == "" {
		table = DefaultIncomeTable
	}
	return &IncomeSource{db: db, query: pageQuery(table)}
}

// Connect opens a pool for databaseURL. The caller closes it.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("Connect: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("Connect: ping: %w", err)
	}
	return pool, nil
}

// pageQuery pins doc_id to byte order so pages follow the cursor order the
// migration job enforces, whatever the column's collation.
func pageQuery(table string) string {
	ident := pgx.Identifier(strings.Split(table, ".")).Sanitize()
	return `
		SELECT
			doc_id,
			COALESCE(id, ''),
			COALESCE(date, ''),
			COALESCE(time, ''),
			COALESCE(datetime, ''),
			COALESCE(month_key, ''),
			COALESCE(account_no, ''),
			COALESCE(holder, ''),
			COALESCE(category, ''),
			COALESCE(record, ''),
			COALESCE(memo, ''),
			COALESCE(seq, ''),
			COALESCE(type, ''),
			COALESCE(in_amt, 0)::float8,
			COALESCE(out_amt, 0)::float8,
			COALESCE(balance, 0)::float8,
			COALESCE(unconfirmed, false)
		FROM ` + ident + `
		WHERE doc_id COLLATE "C" > $1
		ORDER BY doc_id COLLATE "C"
		LIMIT $2`
}

// Page implements migration.Source.
func (s *IncomeSource) Page(ctx context.Context, startAfter string, limit int) ([]migration.SourceDocument, error) {
	rows, err := s.db.Query(ctx, s.query, startAfter, limit)
	if err != nil {
		return nil, fmt.Errorf("Page: query: %w", err)
	}
	defer rows.Close()

	docs := make([]migration.SourceDocument, 0, limit)
	for rows.Next() {
		var d migration.SourceDocument
		if err := rows.Scan(
			&d.DocID, &d.ID, &d.Date, &d.Time, &d.Datetime, &d.MonthKey,
			&d.AccountNo, &d.Holder, &d.Category, &d.Record, &d.Memo, &d.Seq, &d.Type,
			&d.InAmt, &d.OutAmt, &d.Balance, &d.Unconfirmed,
		); err != nil {
			return nil, fmt.Errorf("Page: scan after %q: %w", startAfter, err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Page: rows: %w", err)
	}
	return docs, nil
}

var _ migration.Source = (*IncomeSource)(nil)
