package statement

import (
	"errors"
	"strings"
)

// ErrHeaderNotFound is returned when no row looks like a transaction header.
var ErrHeaderNotFound = errors.New("statement header row not found")

const (
	headerScanRows   = 50
	metaScanRows     = 30
	metaSearchRadius = 8
)

// Meta holds document-level values printed above the transaction table.
type Meta struct {
	AccountNo string
	Holder    string
}

// Layout is where the transaction table starts and what surrounds it.
type Layout struct {
	HeaderRow int
	Meta      Meta
}

// LayoutDetector locates the header row and document metadata of a grid.
type LayoutDetector interface {
	Detect(g Grid) (Layout, error)
}

// KeywordDetector finds the layout by substring matching on cell text,
// independent of column order.
type KeywordDetector struct {
	DateTimeKeywords []string
	DateKeywords     []string
	DepositKeywords  []string
	AccountKeywords  []string
	HolderKeywords   []string
}

// NewKeywordDetector returns a detector tuned for Korean bank exports.
func NewKeywordDetector() *KeywordDetector {
	return &KeywordDetector{
		DateTimeKeywords: []string{"거래일시"},
		DateKeywords:     []string{"일자", "거래일", "거래일자"},
		DepositKeywords:  []string{"입금금액"},
		AccountKeywords:  []string{"계좌번호"},
		HolderKeywords:   []string{"예금주명"},
	}
}

var _ LayoutDetector = (*KeywordDetector)(nil)

// Detect implements LayoutDetector.
func (d *KeywordDetector) Detect(g Grid) (Layout, error) {
	header := d.FindHeaderRow(g)
	if header < 0 {
		return Layout{}, ErrHeaderNotFound
	}
	return Layout{HeaderRow: header, Meta: d.FindMeta(g)}, nil
}

// FindHeaderRow returns the index of the first row within the scan window
// that has both a date-ish cell and a deposit-amount cell, or -1.
func (d *KeywordDetector) FindHeaderRow(g Grid) int {
	limit := min(len(g), headerScanRows)
	for i := 0; i < limit; i++ {
		row := g[i]
		hasDate := rowContainsAny(row, d.DateTimeKeywords) || rowContainsAny(row, d.DateKeywords)
		if hasDate && rowContainsAny(row, d.DepositKeywords) {
			return i
		}
	}
	return -1
}

// FindMeta scans the top of the grid for labelled account number and holder
// name cells. Missing labels leave the fields empty.
func (d *KeywordDetector) FindMeta(g Grid) Meta {
	var meta Meta
	limit := min(len(g), metaScanRows)
	for r := 0; r < limit; r++ {
		for c := range g[r] {
			text := g.Text(r, c)
			if text == "" {
				continue
			}
			if meta.AccountNo == "" {
				if kw, ok := containsAny(text, d.AccountKeywords); ok {
					meta.AccountNo = labelValue(g, r, c, kw)
				}
			}
			if meta.Holder == "" {
				if kw, ok := containsAny(text, d.HolderKeywords); ok {
					meta.Holder = labelValue(g, r, c, kw)
				}
			}
		}
	}
	return meta
}

// labelValue resolves the value belonging to the label at (r, c): an inline
// "label: value", the adjacent cell, or the nearest non-empty neighbour.
func labelValue(g Grid, r, c int, keyword string) string {
	if v := inlineValue(g.Text(r, c), keyword); v != "" {
		return v
	}
	if v := g.Text(r, c+1); v != "" {
		return v
	}
	return followingValue(g, r, c, metaSearchRadius)
}

func inlineValue(text, keyword string) string {
	i := strings.Index(text, keyword)
	if i < 0 {
		return ""
	}
	rest := strings.TrimSpace(text[i+len(keyword):])
	if !strings.HasPrefix(rest, ":") && !strings.HasPrefix(rest, "：") {
		return ""
	}
	rest = strings.TrimPrefix(strings.TrimPrefix(rest, ":"), "：")
	return strings.TrimSpace(rest)
}

// followingValue searches right along the row, then down the next column,
// then an expanding box below-right of the label.
func followingValue(g Grid, r0, c0, radius int) string {
	for c := c0 + 1; c <= c0+radius; c++ {
		if v := g.Text(r0, c); v != "" {
			return v
		}
	}
	for r := r0 + 1; r <= r0+radius; r++ {
		col := c0 + 1
		if col >= g.Width(r) {
			col = c0
		}
		if v := g.Text(r, col); v != "" {
			return v
		}
	}
	for dr := 0; dr <= radius; dr++ {
		for dc := 0; dc <= radius; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			if v := g.Text(r0+dr, c0+dc); v != "" {
				return v
			}
		}
	}
	return ""
}

func rowContainsAny(row []Cell, keywords []string) bool {
	for _, cell := range row {
		if _, ok := containsAny(cell.String(), keywords); ok {
			return true
		}
	}
	return false
}

func containsAny(text string, keywords []string) (string, bool) {
	if text == "" {
		return "", false
	}
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}
