package listing

import "time"

// Money is a price converted into the base currency (USD), rounded to
// two decimal places.
type Money struct {
	Amount float64 `json:"amount"`
}

// Item is a single scraped listing. Price is nil when no parseable price
// was found in the listing markup; an unknown price is "not excluded",
// not zero.
type Item struct {
	Title     string    `json:"title"`
	Price     *Money    `json:"price,omitempty"`
	URL       string    `json:"url,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Shipping  string    `json:"shipping,omitempty"`
	Seller    string    `json:"seller,omitempty"`
	SoldDate  string    `json:"soldDate,omitempty"`
	Keyword   string    `json:"keyword"`
	ScrapedAt time.Time `json:"scrapedAt"`
}

// KeywordStats aggregates all items scraped for one search keyword.
// Count includes items without a parseable price; the price fields are
// computed over priced items only.
type KeywordStats struct {
	Keyword   string  `json:"keyword"`
	Count     int     `json:"count"`
	MeanPrice float64 `json:"meanPrice"`
	MaxPrice  float64 `json:"maxPrice"`
	MinPrice  float64 `json:"minPrice"`
}
