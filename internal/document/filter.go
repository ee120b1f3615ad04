package document

import (
	"fmt"
	"strings"
	"time"
)

// ScanFilter is a coarse category over documents
type ScanFilter string

const (
	FilterAll            ScanFilter = "all"
	FilterReceipts       ScanFilter = "receipts"
	FilterInvoices       ScanFilter = "invoices"
	FilterContracts      ScanFilter = "contracts"
	FilterIdentification ScanFilter = "identification"
	FilterToday          ScanFilter = "today"
	FilterThisWeek       ScanFilter = "this_week"
	FilterThisMonth      ScanFilter = "this_month"
)

// Filters lists every ScanFilter in display order
var Filters = []ScanFilter{
	FilterAll,
	FilterReceipts,
	FilterInvoices,
	FilterContracts,
	FilterIdentification,
	FilterToday,
	FilterThisWeek,
	FilterThisMonth,
}

var filterKeywords = map[ScanFilter][]string{
	FilterReceipts:       {"receipt"},
	FilterInvoices:       {"invoice"},
	FilterContracts:      {"contract"},
	FilterIdentification: {"passport", "license", "identification"},
}

// ParseScanFilter converts a name into a ScanFilter. The empty string is FilterAll.
func ParseScanFilter(name string) (ScanFilter, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return FilterAll, nil
	}
	for _, f := range Filters {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown filter: %s", name)
}

// Match reports whether doc belongs to the filter relative to now
func (f ScanFilter) Match(doc *Document, now time.Time) bool {
	if keywords, ok := filterKeywords[f]; ok {
		for _, keyword := range keywords {
			if containsFold(doc.Text, keyword) {
				return true
			}
		}
		return false
	}

	created := doc.CreatedAt.In(now.Location())
	switch f {
	case FilterToday:
		cy, cm, cd := created.Date()
		ny, nm, nd := now.Date()
		return cy == ny && cm == nm && cd == nd
	case FilterThisWeek:
		cy, cw := created.ISOWeek()
		ny, nw := now.ISOWeek()
		return cy == ny && cw == nw
	case FilterThisMonth:
		return created.Year() == now.Year() && created.Month() == now.Month()
	default:
		return true
	}
}

// Apply returns the documents matching the filter, preserving order
func (f ScanFilter) Apply(docs []*Document, now time.Time) []*Document {
	out := make([]*Document, 0, len(docs))
	for _, doc := range docs {
		if f.Match(doc, now) {
			out = append(out, doc)
		}
	}
	return out
}
