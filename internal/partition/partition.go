// Package partition reads and writes month-partitioned transaction blobs.
package partition

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dvloznov/statement-partitions/internal/domain"
)

const (
	// DefaultPrefix is the object-name prefix partitions live under.
	DefaultPrefix = "acct_income_json"
	// ContentType is stamped on every partition write.
	ContentType = "application/json"
)

// MergeMode selects how new items combine with a stored partition.
type MergeMode string

const (
	// MergeModeMerge keeps stored items and overwrites colliding ids.
	MergeModeMerge MergeMode = "merge"
	// MergeModeReplace discards stored items.
	MergeModeReplace MergeMode = "replace"
)

var (
	// ErrInvalidMonthKey is returned for keys not shaped YYYY-MM.
	ErrInvalidMonthKey = errors.New("invalid month key")
	// ErrMalformed is returned by Decode when a blob does not match the partition shape.
	ErrMalformed = errors.New("malformed partition")
)

// Meta is the partition header.
type Meta struct {
	UpdatedAt int64 `json:"updatedAt"` // epoch milliseconds
}

// Partition is the stored document for one calendar month.
type Partition struct {
	Meta  Meta                     `json:"meta"`
	Items map[string]domain.Record `json:"items"`
}

// storedItem is an item as found in a blob. Older importers wrote the id and
// sequence number as "_id" and "_seq" and used Korean type tags.
type storedItem struct {
	domain.Record
	LegacyID  string `json:"_id"`
	LegacySeq string `json:"_seq"`
}

func (it storedItem) record() domain.Record {
	r := it.Record
	if r.ID == "" {
		r.ID = it.LegacyID
	}
	if r.Seq == "" {
		r.Seq = it.LegacySeq
	}
	r.Type = domain.NormalizeType(r.Type, r.InAmt, r.OutAmt)
	return r
}

// Decode parses a stored partition strictly. Both the current item shape and
// the legacy one ("_id", "_seq", 입금/출금 tags) are accepted and returned in
// the current shape. Other unknown fields, trailing data and items whose key
// differs from their id are rejected.
func Decode(data []byte) (*Partition, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var stored struct {
		Meta  Meta                  `json:"meta"`
		Items map[string]storedItem `json:"items"`
	}
	if err := dec.Decode(&stored); err != nil {
		return nil, fmt.Errorf("Decode: %v: %w", err, ErrMalformed)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("Decode: trailing data: %w", ErrMalformed)
	}

	p := &Partition{Meta: stored.Meta, Items: make(map[string]domain.Record, len(stored.Items))}
	for key, it := range stored.Items {
		if it.ID != "" && it.LegacyID != "" && it.ID != it.LegacyID {
			return nil, fmt.Errorf("Decode: item %q carries ids %q and %q: %w", key, it.ID, it.LegacyID, ErrMalformed)
		}
		r := it.record()
		if key == "" || r.ID != key {
			return nil, fmt.Errorf("Decode: item %q carries id %q: %w", key, r.ID, ErrMalformed)
		}
		p.Items[key] = r
	}
	return p, nil
}

// Encode serializes a partition.
func Encode(p *Partition) ([]byte, error) {
	items := p.Items
	if items == nil {
		items = map[string]domain.Record{}
	}
	data, err := json.Marshal(Partition{Meta: p.Meta, Items: items})
	if err != nil {
		return nil, fmt.Errorf("Encode: marshal partition: %w", err)
	}
	return data, nil
}

// ParseMergeMode maps "replace" to MergeModeReplace and anything else to merge.
func ParseMergeMode(s string) MergeMode {
	if MergeMode(s) == MergeModeReplace {
		return MergeModeReplace
	}
	return MergeModeMerge
}
