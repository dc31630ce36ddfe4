package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/statement-partitions/internal/blobstore"
	"github.com/dvloznov/statement-partitions/internal/domain"
	"github.com/dvloznov/statement-partitions/internal/partition"
	"github.com/dvloznov/statement-partitions/internal/statement"
)

// MockFetcher is a mock implementation of SourceFetcher for testing.
type MockFetcher struct {
	FetchFunc func(ctx context.Context, sourceURL string) ([]byte, error)
}

func (m *MockFetcher) Fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	return m.FetchFunc(ctx, sourceURL)
}

// MockWriter is a mock implementation of PartitionWriter for testing.
type MockWriter struct {
	MergeFunc func(ctx context.Context, monthKey string, items map[string]domain.Record, mode partition.MergeMode) (int, error)
}

func (m *MockWriter) Merge(ctx context.Context, monthKey string, items map[string]domain.Record, mode partition.MergeMode) (int, error) {
	return m.MergeFunc(ctx, monthKey, items, mode)
}

func text(values ...string) []statement.Cell {
	row := make([]statement.Cell, len(values))
	for i, v := range values {
		row[i] = statement.TextCell(v)
	}
	return row
}

func scenarioWorkbook() *statement.Workbook {
	return &statement.Workbook{
		Format: statement.FormatXLSX,
		Sheet:  "Sheet1",
		Grid: statement.Grid{
			text("거래일시", "입금금액", "거래기록사항"),
			{statement.TextCell("2024/5/3 14:20:00"), statement.NumberCell(50000), statement.TextCell("관리비")},
		},
	}
}

func newTestIngester(store blobstore.Store, opts ...Option) (*Ingester, *partition.Writer) {
	w := partition.NewWriter(store, "acct_income_json")
	clock := WithClock(func() time.Time { return time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC) })
	return NewIngester(nil, w, append([]Option{clock}, opts...)...), w
}

func TestIngestWorkbook_ScenarioA(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	in, w := newTestIngester(store)

	res, err := in.IngestWorkbook(ctx, scenarioWorkbook(), 0)
	if err != nil {
		t.Fatalf("IngestWorkbook() error = %v", err)
	}
	if res.Total != 1 || res.ColdSaved != 1 || res.HotSaved != 0 {
		t.Errorf("result = %+v", res)
	}

	p, err := w.Load(ctx, "2024-05")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(p.Items) != 1 {
		t.Fatalf("partition holds %d items, want 1", len(p.Items))
	}
	for id, r := range p.Items {
		if id != domain.RecordID("2024-05-03", "14:20:00", 50000, "관리비") {
			t.Errorf("unexpected id %s", id)
		}
		if r.Date != "2024-05-03" || r.Time != "14:20:00" || r.InAmt != 50000 || r.Type != domain.TypeDeposit {
			t.Errorf("record = %+v", r)
		}
		if r.MonthKey != "2024-05" || r.Unconfirmed {
			t.Errorf("record = %+v", r)
		}
	}
}

func TestIngestWorkbook_ScenarioBIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	in, w := newTestIngester(store)

	for i := 0; i < 2; i++ {
		if _, err := in.IngestWorkbook(ctx, scenarioWorkbook(), 0); err != nil {
			t.Fatalf("run %d: IngestWorkbook() error = %v", i+1, err)
		}
	}

	p, err := w.Load(ctx, "2024-05")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(p.Items) != 1 {
		t.Errorf("partition holds %d items after two runs, want 1", len(p.Items))
	}
}

func TestIngestWorkbook_HotWindowAndGrouping(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	in, _ := newTestIngester(store)

	wb := &statement.Workbook{
		Grid: statement.Grid{
			text("일자", "시간", "입금금액", "출금금액", "거래기록사항"),
			text("2024-06-01", "10:00", "1,000", "", "a"),
			text("2024-05-15", "", "", "2,000", "b"),
			text("2024-05-15", "", "", "2,000", "b"),
			text("2023-12-31", "23:59:59", "5", "", "c"),
			text("합계", "", "3,005", "2,000", ""),
		},
	}

	res, err := in.IngestWorkbook(ctx, wb, 2)
	if err != nil {
		t.Fatalf("IngestWorkbook() error = %v", err)
	}
	// duplicate row collapses; undated summary row is dropped
	if res.Total != 3 || res.HotSaved != 2 || res.ColdSaved != 1 {
		t.Errorf("result = %+v, want total 3 hot 2 cold 1", res)
	}

	want := []string{"acct_income_json/2023-12.json", "acct_income_json/2024-05.json", "acct_income_json/2024-06.json"}
	got := store.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestIngestWorkbook_HeaderNotFound(t *testing.T) {
	store := blobstore.NewMemoryStore()
	in, _ := newTestIngester(store)

	wb := &statement.Workbook{Grid: statement.Grid{text("foo", "bar"), text("1", "2")}}
	_, err := in.IngestWorkbook(context.Background(), wb, 0)
	if !errors.Is(err, statement.ErrHeaderNotFound) {
		t.Fatalf("IngestWorkbook() error = %v, want ErrHeaderNotFound", err)
	}
	if store.Writes() != 0 {
		t.Errorf("header failure wrote %d partitions", store.Writes())
	}
}

func TestIngestWorkbook_MergeFailure(t *testing.T) {
	w := &MockWriter{
		MergeFunc: func(ctx context.Context, monthKey string, items map[string]domain.Record, mode partition.MergeMode) (int, error) {
			return 0, errors.New("bucket gone")
		},
	}
	in := NewIngester(nil, w)
	if _, err := in.IngestWorkbook(context.Background(), scenarioWorkbook(), 0); err == nil {
		t.Error("IngestWorkbook() should fail when a merge fails")
	}
}

func TestIngestWorkbook_UsesMergeMode(t *testing.T) {
	var modes []partition.MergeMode
	w := &MockWriter{
		MergeFunc: func(ctx context.Context, monthKey string, items map[string]domain.Record, mode partition.MergeMode) (int, error) {
			modes = append(modes, mode)
			return len(items), nil
		},
	}
	in := NewIngester(nil, w)
	if _, err := in.IngestWorkbook(context.Background(), scenarioWorkbook(), 0); err != nil {
		t.Fatalf("IngestWorkbook() error = %v", err)
	}
	if len(modes) != 1 || modes[0] != partition.MergeModeMerge {
		t.Errorf("modes = %v, want [merge]", modes)
	}
}

func TestIngestFromSource(t *testing.T) {
	csv := "거래일시,입금금액,거래기록사항\n2024/5/3 14:20:00,\"50,000\",관리비\n"

	tests := []struct {
		name      string
		fetchErr  error
		data      string
		wantErr   error
		wantTotal int
	}{
		{name: "csv source", data: csv, wantTotal: 1},
		{name: "fetch failure", fetchErr: errors.New("404"), wantErr: nil},
		{name: "binary junk", data: "\x00\x01\x02", wantErr: statement.ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &MockFetcher{
				FetchFunc: func(ctx context.Context, sourceURL string) ([]byte, error) {
					if sourceURL != "https://example.com/export.csv" {
						t.Errorf("fetched %q", sourceURL)
					}
					if tt.fetchErr != nil {
						return nil, tt.fetchErr
					}
					return []byte(tt.data), nil
				},
			}
			in := NewIngester(fetcher, partition.NewWriter(blobstore.NewMemoryStore(), ""))

			res, err := in.IngestFromSource(context.Background(), "https://example.com/export.csv", 1)
			if tt.fetchErr != nil || tt.wantErr != nil {
				if err == nil {
					t.Fatal("IngestFromSource() expected error")
				}
				if tt.fetchErr != nil && !errors.Is(err, tt.fetchErr) {
					t.Errorf("error = %v, want wrapping %v", err, tt.fetchErr)
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("IngestFromSource() error = %v", err)
			}
			if res.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", res.Total, tt.wantTotal)
			}
		})
	}
}

func TestHotMonths(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	// 2024-01-31 20:00 UTC is already February in Seoul.
	now := time.Date(2024, 1, 31, 20, 0, 0, 0, time.UTC).In(seoul)

	got := HotMonths(now, 3)
	for _, mk := range []string{"2024-02", "2024-01", "2023-12"} {
		if !got[mk] {
			t.Errorf("HotMonths missing %s: %v", mk, got)
		}
	}
	if len(got) != 3 {
		t.Errorf("HotMonths = %v, want 3 months", got)
	}
	if len(HotMonths(now, 0)) != 0 || len(HotMonths(now, -2)) != 0 {
		t.Error("non-positive window should be empty")
	}
}

func TestGroupByMonth(t *testing.T) {
	recs := []domain.Record{
		{Date: "2024-05-01", Record: "x"},
		{Date: "", Record: "undated"},
		{Date: "2024-06-01", Record: "y"},
	}
	for i := range recs {
		recs[i].Finalize()
	}

	got := GroupByMonth(recs)
	if len(got) != 2 || len(got["2024-05"]) != 1 || len(got["2024-06"]) != 1 {
		t.Errorf("GroupByMonth() = %v", got)
	}
}
