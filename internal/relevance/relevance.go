// Package relevance decides whether a scraped item matches the
// configured topical interest set.
package relevance

import (
	"strings"

	"github.com/megumiru-morifuji/scraping/internal/listing"
)

// Titles shorter than this are junk cells, not listings.
const minTitleLen = 5

// Filter keeps items whose title or originating keyword mentions at
// least one indicator token, and whose price clears MinPrice. An item
// without a parseable price is not excluded by the price gate.
type Filter struct {
	Indicators []string
	MinPrice   float64
}

func (f Filter) IsRelevant(item listing.Item, keyword string) bool {
	if len(strings.TrimSpace(item.Title)) < minTitleLen {
		return false
	}

	title := strings.ToLower(item.Title)
	kw := strings.ToLower(keyword)

	matched := false
	for _, indicator := range f.Indicators {
		indicator = strings.ToLower(strings.TrimSpace(indicator))
		if indicator == "" {
			continue
		}
		if strings.Contains(title, indicator) || strings.Contains(kw, indicator) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	if item.Price != nil && item.Price.Amount < f.MinPrice {
		return false
	}
	return true
}

// Apply returns the items that pass the filter, preserving order.
func (f Filter) Apply(items []listing.Item, keyword string) []listing.Item {
	kept := make([]listing.Item, 0, len(items))
	for _, item := range items {
		if f.IsRelevant(item, keyword) {
			kept = append(kept, item)
		}
	}
	return kept
}
