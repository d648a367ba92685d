package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/megumiru-morifuji/scraping/internal/fetch"
	"github.com/megumiru-morifuji/scraping/internal/job"
	"github.com/megumiru-morifuji/scraping/internal/llm"
	"github.com/megumiru-morifuji/scraping/internal/platform/sqlite"
	"github.com/megumiru-morifuji/scraping/internal/relevance"
	itemrepo "github.com/megumiru-morifuji/scraping/internal/repository/item"
	"github.com/megumiru-morifuji/scraping/internal/scrape"
	"github.com/megumiru-morifuji/scraping/internal/server"
	"github.com/megumiru-morifuji/scraping/internal/summary"
)

// resultsPage mirrors a sold-listings search result with a placeholder
// cell, a fully priced item, and an item without a price element.
const resultsPage = `<html><body><ul>
<li class="s-item">
	<h3 class="s-item__title">Shop on eBay</h3>
	<span class="s-item__price">$20.00</span>
</li>
<li class="s-item">
	<a class="s-item__link" href="https://www.ebay.com/itm/111">
		<h3 class="s-item__title">Vintage Japanese Kimono Silk Robe</h3>
	</a>
	<span class="s-item__price">$45.00</span>
</li>
<li class="s-item">
	<h3 class="s-item__title">Antique Kimono Obi Belt</h3>
	<span>make offer</span>
</li>
</ul></body></html>`

type env struct {
	api *httptest.Server
}

func setupE2E(t *testing.T, llmURL string) *env {
	t.Helper()

	ebaySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("_nkw") == "" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(resultsPage))
	}))
	t.Cleanup(ebaySrv.Close)

	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	itemRepo := itemrepo.NewRepository(db.DB)

	fetcher := fetch.New(
		fetch.WithLimiter(rate.NewLimiter(rate.Inf, 1)),
		fetch.WithJitter(0, 0),
		fetch.WithRetryDelay(time.Millisecond),
	)
	scraper := scrape.New(
		relevance.Filter{Indicators: []string{"kimono"}, MinPrice: 10},
		scrape.WithBaseURL(ebaySrv.URL),
		scrape.WithFetcher(fetcher),
	)

	var generator llm.Client
	if llmURL != "" {
		generator = llm.NewOpenAI("test-key", llm.WithEndpoint(llmURL))
	}
	stage := summary.New(generator)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	t.Cleanup(rootCancel)

	orchestrator := job.New(rootCtx, scraper, stage,
		job.WithMaxConcurrent(2),
		job.WithRetention(time.Hour),
		job.WithArchive(itemRepo),
	)

	api := httptest.NewServer(server.NewHandler(server.Deps{
		Orchestrator: orchestrator,
		Items:        itemRepo,
		Keywords:     []string{"kimono"},
		MaxKeywords:  5,
	}))
	t.Cleanup(api.Close)

	return &env{api: api}
}

func startJob(t *testing.T, e *env) string {
	t.Helper()

	res, err := http.Post(e.api.URL+"/api/v1/scrape", "application/json",
		bytes.NewBufferString(`{"keywordLimit": 1}`))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("start status = %d", res.StatusCode)
	}

	var body struct {
		Data struct {
			JobID  string `json:"jobId"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	if body.Data.Status != "started" || body.Data.JobID == "" {
		t.Fatalf("start response = %+v", body.Data)
	}
	return body.Data.JobID
}

func pollUntilDone(t *testing.T, e *env, jobID string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		res, err := http.Get(fmt.Sprintf("%s/api/v1/scrape/%s/progress", e.api.URL, jobID))
		if err != nil {
			t.Fatalf("progress: %v", err)
		}
		var body struct {
			Data job.Snapshot `json:"data"`
		}
		err = json.NewDecoder(res.Body).Decode(&body)
		_ = res.Body.Close()
		if err != nil {
			t.Fatalf("decode progress: %v", err)
		}
		switch body.Data.Status {
		case job.StatusCompleted:
			return
		case job.StatusError:
			t.Fatalf("job errored: %s", body.Data.Error)
		}
		select {
		case <-deadline:
			t.Fatalf("job stuck at %s (%d%%)", body.Data.Status, body.Data.ProgressPercent)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestE2E_ScrapeAndSummarize(t *testing.T) {
	llmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "kimono demand is steady"}},
			},
		})
	}))
	defer llmSrv.Close()

	e := setupE2E(t, llmSrv.URL)
	jobID := startJob(t, e)
	pollUntilDone(t, e, jobID)

	res, err := http.Get(fmt.Sprintf("%s/api/v1/scrape/%s/result", e.api.URL, jobID))
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("result status = %d", res.StatusCode)
	}

	var body struct {
		Data summary.Report `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	report := body.Data

	// Placeholder discarded; priced robe and unknown-price belt kept.
	if report.TotalItems != 2 {
		t.Errorf("totalItems = %d, want 2", report.TotalItems)
	}
	if len(report.Ranking) != 1 {
		t.Fatalf("ranking = %+v, want one keyword", report.Ranking)
	}
	stats := report.Ranking[0]
	if stats.Keyword != "kimono" || stats.Count != 2 {
		t.Errorf("stats = %+v, want kimono count 2", stats)
	}
	// The unknown-price item counts but stays out of the price stats.
	if stats.MeanPrice != 45.00 || stats.MinPrice != 45.00 || stats.MaxPrice != 45.00 {
		t.Errorf("price stats = %+v, want 45.00 across the board", stats)
	}
	if report.Analysis != "kimono demand is steady" {
		t.Errorf("analysis = %q", report.Analysis)
	}
}

func TestE2E_LLMDownDegradesAnalysis(t *testing.T) {
	llmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer llmSrv.Close()

	e := setupE2E(t, llmSrv.URL)
	jobID := startJob(t, e)
	pollUntilDone(t, e, jobID)

	res, err := http.Get(fmt.Sprintf("%s/api/v1/scrape/%s/result", e.api.URL, jobID))
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	defer func() { _ = res.Body.Close() }()

	var body struct {
		Data summary.Report `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode result: %v", err)
	}

	if body.Data.Analysis != summary.AnalysisUnavailable {
		t.Errorf("analysis = %q, want degraded diagnostic", body.Data.Analysis)
	}
	if body.Data.TotalItems != 2 {
		t.Errorf("stats must survive LLM failure, totalItems = %d", body.Data.TotalItems)
	}
}

func TestE2E_ItemsArchivedAndExportable(t *testing.T) {
	e := setupE2E(t, "")
	jobID := startJob(t, e)
	pollUntilDone(t, e, jobID)

	res, err := http.Get(e.api.URL + "/api/v1/items?jobId=" + jobID)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	defer func() { _ = res.Body.Close() }()

	var body struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if len(body.Data) != 2 {
		t.Errorf("archived %d items, want 2", len(body.Data))
	}

	csvRes, err := http.Get(e.api.URL + "/api/v1/items?format=csv")
	if err != nil {
		t.Fatalf("items csv: %v", err)
	}
	defer func() { _ = csvRes.Body.Close() }()
	if ct := csvRes.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("csv content type = %q", ct)
	}
}

func TestE2E_UnknownJobIs404(t *testing.T) {
	e := setupE2E(t, "")

	res, err := http.Get(e.api.URL + "/api/v1/scrape/no-such-job/progress")
	if err != nil {
		t.Fatal(err)
	}
	_ = res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("progress status = %d, want 404", res.StatusCode)
	}

	res, err = http.Get(e.api.URL + "/api/v1/scrape/no-such-job/result")
	if err != nil {
		t.Fatal(err)
	}
	_ = res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("result status = %d, want 404", res.StatusCode)
	}
}

func TestE2E_Health(t *testing.T) {
	e := setupE2E(t, "")

	res, err := http.Get(e.api.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", res.StatusCode)
	}

	var body struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body.Data["status"] != "ok" {
		t.Errorf("health = %+v", body.Data)
	}
}
