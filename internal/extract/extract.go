// Package extract pulls structured listing fields out of one search
// result fragment. Markup changes frequently and varies across layouts,
// so every field is resolved through an ordered list of strategies with
// early exit on the first acceptable hit.
package extract

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/megumiru-morifuji/scraping/internal/currency"
	"github.com/megumiru-morifuji/scraping/internal/listing"
)

const minTitleLen = 12

// Ordered: semantic heading class first, then generic headings, then the
// item link itself.
var titleSelectors = []string{
	".s-item__title",
	"h3",
	"h2",
	"a.s-item__link",
}

var priceSelectors = []string{
	".s-item__price",
	".s-item__detail--primary",
	".s-item__details",
}

// Boilerplate phrases that show up as fake titles in placeholder cells.
var titleDenylist = []string{
	"shop on ebay",
	"new listing",
	"opens in a new window",
	"opens in new window",
}

// Extractor converts item fragments into Items. It is safe for
// concurrent use; the counters are diagnostic only.
type Extractor struct {
	titleMisses atomic.Int64
	priceMisses atomic.Int64
}

func New() *Extractor {
	return &Extractor{}
}

// Extract returns the Item found in fragment. The second return value is
// false when no acceptable title could be resolved; such fragments must
// never reach the result set.
func (e *Extractor) Extract(fragment *goquery.Selection) (listing.Item, bool) {
	title := e.extractTitle(fragment)
	if title == "" {
		e.titleMisses.Add(1)
		return listing.Item{}, false
	}

	item := listing.Item{
		Title:     title,
		URL:       firstItemLink(fragment),
		ImageURL:  extractImage(fragment),
		Shipping:  firstText(fragment, ".s-item__shipping", ".s-item__logisticsCost"),
		Seller:    firstText(fragment, ".s-item__seller-info-text", ".s-item__seller-info"),
		SoldDate:  firstText(fragment, ".s-item__caption--signal", ".s-item__title--tagblock .POSITIVE"),
		ScrapedAt: time.Now().UTC(),
	}

	if amount, ok := e.extractPrice(fragment); ok {
		item.Price = &listing.Money{Amount: amount}
	} else {
		e.priceMisses.Add(1)
	}

	return item, true
}

// Misses reports how many fragments lost their title or price to a full
// cascade miss since construction.
func (e *Extractor) Misses() (title, price int64) {
	return e.titleMisses.Load(), e.priceMisses.Load()
}

func (e *Extractor) extractTitle(fragment *goquery.Selection) string {
	for _, sel := range titleSelectors {
		candidate := cleanText(fragment.Find(sel).First().Text())
		if acceptableTitle(candidate) {
			return candidate
		}
	}

	// Last resort: any item-detail link with sufficiently long text.
	var found string
	fragment.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if !strings.Contains(href, "/itm/") {
			return true
		}
		candidate := cleanText(a.Text())
		if acceptableTitle(candidate) {
			found = candidate
			return false
		}
		return true
	})
	return found
}

func (e *Extractor) extractPrice(fragment *goquery.Selection) (float64, bool) {
	for _, sel := range priceSelectors {
		var amount float64
		var ok bool
		fragment.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			amount, ok = currency.Normalize(s.Text())
			return !ok
		})
		if ok {
			return amount, true
		}
	}

	// No price-bearing element: scan the fragment's whole visible text.
	if amount, ok := currency.Normalize(cleanText(fragment.Text())); ok {
		return amount, true
	}

	// Then any span that at least smells like a price.
	var amount float64
	var ok bool
	fragment.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := cleanText(s.Text())
		if !currency.ContainsPriceHint(text) {
			return true
		}
		amount, ok = currency.Normalize(text)
		return !ok
	})
	return amount, ok
}

func acceptableTitle(candidate string) bool {
	if len(candidate) < minTitleLen {
		return false
	}
	lower := strings.ToLower(candidate)
	for _, phrase := range titleDenylist {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	return true
}

func firstItemLink(fragment *goquery.Selection) string {
	var href string
	fragment.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h, _ := a.Attr("href")
		if strings.Contains(h, "/itm/") {
			href = strings.TrimSpace(h)
			return false
		}
		return true
	})
	return href
}

func extractImage(fragment *goquery.Selection) string {
	img := fragment.Find("img").First()
	if img.Length() == 0 {
		return ""
	}
	if src, ok := img.Attr("src"); ok && strings.TrimSpace(src) != "" {
		return strings.TrimSpace(src)
	}
	// Lazy-loaded images keep the real URL in data-src.
	if src, ok := img.Attr("data-src"); ok {
		return strings.TrimSpace(src)
	}
	return ""
}

func firstText(fragment *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if text := cleanText(fragment.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}
