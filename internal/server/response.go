package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/megumiru-morifuji/scraping/internal/listing"
)

type APIResponse[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func writeJSON[T any](w http.ResponseWriter, status int, data T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse[T]{
		Message: "ok",
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse[string]{
		Message: message,
		Data:    "",
	})
}

func writeItemsCSV(w http.ResponseWriter, items []listing.Item) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=items.csv")
	w.WriteHeader(http.StatusOK)

	_, _ = fmt.Fprintln(w, "Keyword,Title,Price,URL,ImageURL,Shipping,Seller,SoldDate,ScrapedAt")
	for _, it := range items {
		price := ""
		if it.Price != nil {
			price = fmt.Sprintf("%.2f", it.Price.Amount)
		}
		_, _ = fmt.Fprintf(w, "%s,%s,%s,%s,%s,%s,%s,%s,%s\n",
			csvField(it.Keyword),
			csvField(it.Title),
			price,
			csvField(it.URL),
			csvField(it.ImageURL),
			csvField(it.Shipping),
			csvField(it.Seller),
			csvField(it.SoldDate),
			it.ScrapedAt.Format(time.RFC3339),
		)
	}
}

// csvField quotes values containing separators or quotes.
func csvField(s string) string {
	needsQuote := false
	for _, r := range s {
		if r == ',' || r == '"' || r == '\n' {
			needsQuote = true
			break
		}
	}
	if !needsQuote {
		return s
	}
	quoted := make([]rune, 0, len(s)+2)
	quoted = append(quoted, '"')
	for _, r := range s {
		if r == '"' {
			quoted = append(quoted, '"')
		}
		quoted = append(quoted, r)
	}
	return string(append(quoted, '"'))
}
