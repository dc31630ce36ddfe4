package bigquery

import (
	"context"
	"fmt"
	"regexp"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const (
	// DefaultDatasetID and DefaultIncomeTable locate the legacy collection.
	DefaultDatasetID   = "finance"
	DefaultIncomeTable = "acct_income"
)

var identPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// incomeQuery builds the page query. Identifiers cannot be query
// parameters, so they are validated before being interpolated.
func incomeQuery(datasetID, table string) (string, error) {
	if !identPattern.MatchString(datasetID) || !identPattern.MatchString(table) {
		return "", fmt.Errorf("incomeQuery: invalid table %q.%q", datasetID, table)
	}
	return fmt.Sprintf(`
		SELECT
			doc_id,
			id,
			date,
			time,
			datetime,
			month_key,
			account_no,
			holder,
			category,
			record,
			memo,
			seq,
			type,
			in_amt,
			out_amt,
			balance,
			unconfirmed
		FROM %s.%s
		WHERE doc_id > @start_after
		ORDER BY doc_id
		LIMIT @limit
	`, datasetID, table), nil
}

// PageIncomeWithClient reads up to limit rows whose doc_id sorts after startAfter.
func PageIncomeWithClient(ctx context.Context, client *bigquery.Client, datasetID, table, startAfter string, limit int) ([]*IncomeRow, error) {
	sql, err := incomeQuery(datasetID, table)
	if err != nil {
		return nil, fmt.Errorf("PageIncome: %w", err)
	}

	q := client.Query(sql)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_after", Value: startAfter},
		{Name: "limit", Value: int64(limit)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("PageIncome: query read: %w", err)
	}

	rows := make([]*IncomeRow, 0, limit)
	for {
		var r IncomeRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("PageIncome: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
