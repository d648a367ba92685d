// Package item persists accepted listings so completed scrapes can be
// queried and exported after their job records expire.
package item

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/megumiru-morifuji/scraping/internal/listing"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// SaveItems inserts all items under jobID in one transaction.
func (r *Repository) SaveItems(ctx context.Context, jobID string, items []listing.Item) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save items: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `INSERT INTO items
		(job_id, keyword, title, price, url, image_url, shipping, seller, sold_date, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, it := range items {
		var price sql.NullFloat64
		if it.Price != nil {
			price = sql.NullFloat64{Float64: it.Price.Amount, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, query,
			jobID, it.Keyword, it.Title, price,
			it.URL, it.ImageURL, it.Shipping, it.Seller, it.SoldDate,
			it.ScrapedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("save item %q: %w", it.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save items: commit: %w", err)
	}
	return nil
}

// List returns archived items, newest scrape first, optionally filtered
// by job id and keyword.
func (r *Repository) List(ctx context.Context, jobID, keyword string, limit int) ([]listing.Item, error) {
	query := `SELECT keyword, title, price, url, image_url, shipping, seller, sold_date, scraped_at
		FROM items WHERE 1=1`

	var args []any
	if jobID != "" {
		query += " AND job_id = ?"
		args = append(args, jobID)
	}
	if keyword != "" {
		query += " AND keyword = ?"
		args = append(args, keyword)
	}
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []listing.Item
	for rows.Next() {
		var it listing.Item
		var price sql.NullFloat64
		var scrapedStr string

		if err := rows.Scan(
			&it.Keyword, &it.Title, &price,
			&it.URL, &it.ImageURL, &it.Shipping, &it.Seller, &it.SoldDate,
			&scrapedStr,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}

		if price.Valid {
			it.Price = &listing.Money{Amount: price.Float64}
		}
		it.ScrapedAt, _ = time.Parse(time.RFC3339, scrapedStr)
		items = append(items, it)
	}

	return items, rows.Err()
}

// CountByKeyword reports how many archived items each keyword has.
func (r *Repository) CountByKeyword(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT keyword, COUNT(*) FROM items GROUP BY keyword`)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var kw string
		var n int
		if err := rows.Scan(&kw, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[kw] = n
	}
	return counts, rows.Err()
}
