// Package currency normalizes free-text price strings scraped from
// listing markup into USD amounts.
//
// Search results mix several currency conventions and the same $ glyph
// is reused as a generic "amount follows" marker in some locales, so
// matching runs most-distinctive symbols first and every parsed value
// is bounded to reject markup garbage (a stray "2024" is not a price).
package currency

import (
	"regexp"
	"strconv"
	"strings"
)

// Sanity bounds on normalized USD amounts. Values outside the range are
// treated as extraction noise, not prices.
const (
	MinAmount = 1.0
	MaxAmount = 500000.0
)

type symbolPattern struct {
	re   *regexp.Regexp
	rate float64 // conversion into USD
}

// Ordered most distinctive first: NT$ and HK$ must win before the
// generic $ pattern gets a chance. The $ pattern excludes matches whose
// preceding rune belongs to a longer currency prefix.
var symbolPatterns = []symbolPattern{
	{regexp.MustCompile(`NT\$\s*([\d,]+(?:\.\d+)?)`), 0.032},
	{regexp.MustCompile(`HK\$\s*([\d,]+(?:\.\d+)?)`), 0.13},
	{regexp.MustCompile(`[¥￥]\s*([\d,]+(?:\.\d+)?)`), 0.0067},
	{regexp.MustCompile(`€\s*([\d,]+(?:\.\d+)?)`), 1.08},
	{regexp.MustCompile(`£\s*([\d,]+(?:\.\d+)?)`), 1.25},
	{regexp.MustCompile(`(?:^|[^TK])\$\s*([\d,]+(?:\.\d+)?)`), 1.0},
	{regexp.MustCompile(`(?i)\bUSD\s*([\d,]+(?:\.\d+)?)`), 1.0},
}

// Unmarked numbers are only trusted when anchored to a price-ish
// context keyword; a bare decimal is the last resort.
var contextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)sold\s+for\s*:?\s*([\d,]+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)price\s*:?\s*([\d,]+(?:\.\d+)?)`),
	regexp.MustCompile(`\b(\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)\b`),
}

// Normalize finds a monetary amount in text and converts it into USD.
// The second return value is false when no plausible price was found.
func Normalize(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}

	for _, p := range symbolPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		amount, err := parseAmount(m[1])
		if err != nil {
			continue
		}
		converted := round2(amount * p.rate)
		// Symbol-tagged values must clear the floor: "$0.50" is more
		// likely a shipping increment or a per-unit fraction than a
		// listing price.
		if converted < MinAmount || converted > MaxAmount {
			continue
		}
		return converted, true
	}

	for _, re := range contextPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		amount, err := parseAmount(m[1])
		if err != nil {
			continue
		}
		amount = round2(amount)
		if amount < MinAmount || amount > MaxAmount {
			continue
		}
		return amount, true
	}

	return 0, false
}

// ContainsPriceHint reports whether text carries a currency symbol or a
// price-ish keyword, used to pick which spans are worth normalizing.
func ContainsPriceHint(text string) bool {
	if strings.ContainsAny(text, "$¥￥€£") {
		return true
	}
	lower := strings.ToLower(text)
	for _, hint := range []string{"sold", "price", "usd"} {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func parseAmount(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}
