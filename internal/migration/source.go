package migration

import (
	"context"
	"sort"
	"sync"
)

// SourceDocument is one row of the transactional collection being migrated.
// Fields mirror the stored record; empty values are tolerated.
type SourceDocument struct {
	DocID       string // collection key, used as the paging cursor
	ID          string // stored record id, may be empty
	Date        string
	Time        string
	Datetime    string
	MonthKey    string
	AccountNo   string
	Holder      string
	Category    string
	Record      string
	Memo        string
	Seq         string
	Type        string
	InAmt       float64
	OutAmt      float64
	Balance     float64
	Unconfirmed bool
}

// Source pages through the collection in ascending DocID order.
type Source interface {
	// Page returns up to limit documents whose DocID sorts strictly after
	// startAfter. An empty startAfter starts from the beginning.
	Page(ctx context.Context, startAfter string, limit int) ([]SourceDocument, error)
}

// MemorySource is an in-memory Source used by tests and local dry runs.
type MemorySource struct {
	mu   sync.RWMutex
	docs []SourceDocument
}

// NewMemorySource creates a source over docs. Order of docs does not matter.
func NewMemorySource(docs ...SourceDocument) *MemorySource {
	m := &MemorySource{}
	m.Add(docs...)
	return m
}

// Add inserts documents, keeping DocID order.
func (m *MemorySource) Add(docs ...SourceDocument) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs = append(m.docs, docs...)
	sort.SliceStable(m.docs, func(i, j int) bool { return m.docs[i].DocID < m.docs[j].DocID })
}

// Page implements Source.
func (m *MemorySource) Page(ctx context.Context, startAfter string, limit int) ([]SourceDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	start := sort.Search(len(m.docs), func(i int) bool { return m.docs[i].DocID > startAfter })
	end := min(start+limit, len(m.docs))
	if limit <= 0 || start >= end {
		return nil, nil
	}

	out := make([]SourceDocument, end-start)
	copy(out, m.docs[start:end])
	return out, nil
}
