package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/megumiru-morifuji/scraping/internal/apperror"
)

type handler struct {
	deps Deps
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	active, cached := h.deps.Orchestrator.Counts()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"activeJobs":    active,
		"cachedResults": cached,
	})
}

type startRequest struct {
	KeywordLimit int `json:"keywordLimit"`
}

type startResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

func (h *handler) startScrape(w http.ResponseWriter, r *http.Request) {
	// An empty or malformed body means "use the configured defaults".
	var req startRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	limit := req.KeywordLimit
	if limit <= 0 || limit > h.deps.MaxKeywords {
		limit = h.deps.MaxKeywords
	}
	if limit > len(h.deps.Keywords) {
		limit = len(h.deps.Keywords)
	}

	jobID, err := h.deps.Orchestrator.Start(h.deps.Keywords[:limit])
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, startResponse{JobID: jobID, Status: "started"})
}

func (h *handler) progress(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Orchestrator.Progress(r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handler) result(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.Orchestrator.Result(r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handler) listItems(w http.ResponseWriter, r *http.Request) {
	if h.deps.Items == nil {
		writeError(w, http.StatusNotFound, "item archive disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	items, err := h.deps.Items.List(r.Context(),
		r.URL.Query().Get("jobId"),
		r.URL.Query().Get("keyword"),
		limit,
	)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		writeItemsCSV(w, items)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handler) clearCache(w http.ResponseWriter, _ *http.Request) {
	removed, retained := h.deps.Orchestrator.ClearCache()
	writeJSON(w, http.StatusOK, map[string]int{
		"removed":  removed,
		"retained": retained,
	})
}

func writeAppError(w http.ResponseWriter, err error) {
	var ae *apperror.AppError
	if errors.As(err, &ae) {
		writeError(w, ae.HTTPStatus(), ae.Message())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
