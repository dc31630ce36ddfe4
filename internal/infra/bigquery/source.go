package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/option"

	"github.com/dvloznov/statement-partitions/internal/migration"
)

// IncomeSource is the migration.Source backed by a BigQuery table.
// It holds a shared BigQuery client to avoid creating a new connection
// for each page.
type IncomeSource struct {
	client    *bigquery.Client
	datasetID string
	table     string
	owned     bool
}

// NewIncomeSource creates a source over datasetID.table using an existing client.
func NewIncomeSource(client *bigquery.Client, datasetID, table string) *IncomeSource {
	if datasetID == "" {
		datasetID = DefaultDatasetID
	}
	if table == "" {
		table = DefaultIncomeTable
	}
	return &IncomeSource{client: client, datasetID: datasetID, table: table}
}

// OpenIncomeSource creates its own client for projectID.
func OpenIncomeSource(ctx context.Context, projectID, datasetID, table string, opts ...option.ClientOption) (*IncomeSource, error) {
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("OpenIncomeSource: creating client: %w", err)
	}
	s := NewIncomeSource(client, datasetID, table)
	s.owned = true
	return s, nil
}

// Close closes the BigQuery client if the source created it.
func (s *IncomeSource) Close() error {
	if s.owned && s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Page implements migration.Source.
func (s *IncomeSource) Page(ctx context.Context, startAfter string, limit int) ([]migration.SourceDocument, error) {
	rows, err := PageIncomeWithClient(ctx, s.client, s.datasetID, s.table, startAfter, limit)
	if err != nil {
		return nil, err
	}

	docs := make([]migration.SourceDocument, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.ToDocument())
	}
	return docs, nil
}

var _ migration.Source = (*IncomeSource)(nil)
