package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/megumiru-morifuji/scraping/internal/config"
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

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Root context: cancelled on SIGINT/SIGTERM so in-flight scrape
	// workers stop promptly during graceful shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	itemRepo := itemrepo.NewRepository(db.DB)

	scraper := scrape.New(
		relevance.Filter{
			Indicators: cfg.Profile.Indicators,
			MinPrice:   cfg.Profile.MinPrice,
		},
		scrape.WithBaseURL(cfg.EbayBaseURL),
		scrape.WithFetcher(fetch.New()),
	)

	// Without an API key the summary stage degrades to stats-only
	// reports instead of calling out.
	var generator llm.Client
	if cfg.LLMAPIKey != "" {
		var llmOpts []llm.Option
		if cfg.LLMModel != "" {
			llmOpts = append(llmOpts, llm.WithModel(cfg.LLMModel))
		}
		if cfg.LLMEndpoint != "" {
			llmOpts = append(llmOpts, llm.WithEndpoint(cfg.LLMEndpoint))
		}
		generator = llm.NewOpenAI(cfg.LLMAPIKey, llmOpts...)
	}
	stage := summary.New(generator)

	orchestrator := job.New(rootCtx, scraper, stage,
		job.WithMaxConcurrent(cfg.MaxConcurrentJobs),
		job.WithRetention(cfg.Retention),
		job.WithSweepInterval(cfg.SweepInterval),
		job.WithArchive(itemRepo),
	)
	go orchestrator.Sweeper(rootCtx)

	srv := server.New(rootCtx, cfg.Port, server.Deps{
		Orchestrator: orchestrator,
		Items:        itemRepo,
		Keywords:     cfg.Profile.Keywords,
		MaxKeywords:  cfg.MaxKeywords,
	})

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("server started", "port", cfg.Port, "keywords", len(cfg.Profile.Keywords))
	<-done

	// Cancel the root context first so running jobs begin winding down,
	// then drain connections with a deadline.
	rootCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
}
