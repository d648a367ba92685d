// Package scrape runs the per-keyword pipeline: fetch a search results
// page, extract every item fragment, and keep the relevant ones.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/megumiru-morifuji/scraping/internal/extract"
	"github.com/megumiru-morifuji/scraping/internal/fetch"
	"github.com/megumiru-morifuji/scraping/internal/listing"
	"github.com/megumiru-morifuji/scraping/internal/relevance"
)

const defaultBaseURL = "https://www.ebay.com"

// Fetcher is the page retrieval collaborator.
type Fetcher interface {
	Get(ctx context.Context, url string) (*fetch.Page, error)
}

type Scraper struct {
	fetcher   Fetcher
	extractor *extract.Extractor
	filter    relevance.Filter
	baseURL   string
	perPage   int
}

type Option func(*Scraper)

func WithFetcher(f Fetcher) Option {
	return func(s *Scraper) { s.fetcher = f }
}

func WithBaseURL(u string) Option {
	return func(s *Scraper) { s.baseURL = u }
}

func WithPerPage(n int) Option {
	return func(s *Scraper) { s.perPage = n }
}

func New(filter relevance.Filter, opts ...Option) *Scraper {
	s := &Scraper{
		fetcher:   fetch.New(),
		extractor: extract.New(),
		filter:    filter,
		baseURL:   defaultBaseURL,
		perPage:   60,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Keyword scrapes one search term and returns the surviving items in
// page order, each stamped with the keyword that produced it.
func (s *Scraper) Keyword(ctx context.Context, keyword string) ([]listing.Item, error) {
	searchURL := s.searchURL(keyword)

	page, err := s.fetcher.Get(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", keyword, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", keyword, err)
	}

	var items []listing.Item
	doc.Find(".s-item").Each(func(_ int, fragment *goquery.Selection) {
		item, ok := s.extractor.Extract(fragment)
		if !ok {
			return
		}
		item.Keyword = keyword
		if !s.filter.IsRelevant(item, keyword) {
			return
		}
		items = append(items, item)
	})

	titleMisses, priceMisses := s.extractor.Misses()
	slog.Info("scraped keyword",
		"keyword", keyword,
		"kept", len(items),
		"titleMisses", titleMisses,
		"priceMisses", priceMisses,
	)

	return items, nil
}

// searchURL builds a sold-listings search for keyword.
func (s *Scraper) searchURL(keyword string) string {
	q := url.Values{}
	q.Set("_nkw", keyword)
	q.Set("_sacat", "0")
	q.Set("LH_Sold", "1")
	q.Set("LH_Complete", "1")
	q.Set("_ipg", fmt.Sprintf("%d", s.perPage))
	return s.baseURL + "/sch/i.html?" + q.Encode()
}
