package server

import (
	"net/http"

	"github.com/megumiru-morifuji/scraping/internal/job"
	"github.com/megumiru-morifuji/scraping/internal/repository/item"
)

// Deps bundles what the handlers need. Items may be nil when the archive
// is disabled.
type Deps struct {
	Orchestrator *job.Orchestrator
	Items        *item.Repository
	Keywords     []string
	MaxKeywords  int
}

// NewHandler creates the full HTTP handler with routes and middleware.
// Exported for use in tests (e.g., httptest.NewServer).
func NewHandler(deps Deps) http.Handler {
	return newMux(deps)
}

func newMux(deps Deps) http.Handler {
	h := &handler{deps: deps}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("POST /api/v1/scrape", h.startScrape)
	mux.HandleFunc("GET /api/v1/scrape/{id}/progress", h.progress)
	mux.HandleFunc("GET /api/v1/scrape/{id}/result", h.result)
	mux.HandleFunc("GET /api/v1/items", h.listItems)
	mux.HandleFunc("POST /api/v1/cache/clear", h.clearCache)

	return chain(mux, recovery, requestID, logging)
}
