// Package summary aggregates per-keyword statistics from a finished
// scrape and asks the text-generation collaborator for an analysis.
// Summary failure never discards extraction results.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/megumiru-morifuji/scraping/internal/listing"
	"github.com/megumiru-morifuji/scraping/internal/llm"
)

const (
	// AnalysisUnavailable is the fixed diagnostic analysis used when the
	// text-generation collaborator fails or is not configured.
	AnalysisUnavailable = "analysis unavailable: text generation failed"
	// AnalysisNoItems is used when no keyword produced any item.
	AnalysisNoItems = "no items matched any keyword in this run"

	defaultTopN     = 5
	maxPromptLength = 2000
)

// Report is the final product of one scrape job.
type Report struct {
	Ranking    []listing.KeywordStats `json:"ranking"`
	Analysis   string                 `json:"analysis"`
	TotalItems int                    `json:"totalItems"`
}

type Stage struct {
	client llm.Client // nil disables generation, stats still produced
	topN   int
}

type Option func(*Stage)

func WithTopN(n int) Option {
	return func(s *Stage) { s.topN = n }
}

func New(client llm.Client, opts ...Option) *Stage {
	s := &Stage{client: client, topN: defaultTopN}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Summarize computes the ranking and analysis for itemsByKeyword. It
// never fails: a collaborator error degrades the analysis text only.
func (s *Stage) Summarize(ctx context.Context, itemsByKeyword map[string][]listing.Item) *Report {
	report := &Report{
		Ranking: rank(itemsByKeyword),
	}
	for _, items := range itemsByKeyword {
		report.TotalItems += len(items)
	}

	if len(report.Ranking) == 0 {
		report.Analysis = AnalysisNoItems
		return report
	}

	if s.client == nil {
		report.Analysis = AnalysisUnavailable
		return report
	}

	analysis, err := s.client.Generate(ctx, s.buildPrompt(report.Ranking))
	if err != nil {
		slog.Warn("summary generation failed", "error", err)
		report.Analysis = AnalysisUnavailable
		return report
	}
	report.Analysis = strings.TrimSpace(analysis)
	return report
}

// rank computes stats per keyword, ordered by count descending.
// Keywords with zero items or only unknown prices are skipped; items
// without a price still count toward Count for ranked keywords.
func rank(itemsByKeyword map[string][]listing.Item) []listing.KeywordStats {
	keywords := make([]string, 0, len(itemsByKeyword))
	for kw := range itemsByKeyword {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)

	var ranking []listing.KeywordStats
	for _, kw := range keywords {
		if stats, ok := keywordStats(kw, itemsByKeyword[kw]); ok {
			ranking = append(ranking, stats)
		}
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Count > ranking[j].Count
	})
	return ranking
}

func keywordStats(keyword string, items []listing.Item) (listing.KeywordStats, bool) {
	if len(items) == 0 {
		return listing.KeywordStats{}, false
	}

	var priced int
	var sum, minP, maxP float64
	for _, item := range items {
		if item.Price == nil {
			continue
		}
		amount := item.Price.Amount
		if priced == 0 {
			minP, maxP = amount, amount
		} else {
			if amount < minP {
				minP = amount
			}
			if amount > maxP {
				maxP = amount
			}
		}
		sum += amount
		priced++
	}
	if priced == 0 {
		return listing.KeywordStats{}, false
	}

	return listing.KeywordStats{
		Keyword:   keyword,
		Count:     len(items),
		MeanPrice: round2(sum / float64(priced)),
		MaxPrice:  maxP,
		MinPrice:  minP,
	}, true
}

func (s *Stage) buildPrompt(ranking []listing.KeywordStats) string {
	top := ranking
	if len(top) > s.topN {
		top = top[:s.topN]
	}

	var b strings.Builder
	b.WriteString("These are sold-listing statistics from an eBay scrape of Japanese antiques. ")
	b.WriteString("Write a short market analysis (3-4 sentences) covering demand and price spread.\n\n")
	for i, st := range top {
		fmt.Fprintf(&b, "%d. %q: %d sold, mean $%.2f, range $%.2f-$%.2f\n",
			i+1, st.Keyword, st.Count, st.MeanPrice, st.MinPrice, st.MaxPrice)
	}

	prompt := b.String()
	if len(prompt) > maxPromptLength {
		prompt = prompt[:maxPromptLength]
	}
	return prompt
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}
