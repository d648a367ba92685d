// Package job owns the lifecycle of scrape jobs: submission, the
// background worker, progress reporting, the result cache, and expiry.
package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/megumiru-morifuji/scraping/internal/apperror"
	"github.com/megumiru-morifuji/scraping/internal/listing"
	"github.com/megumiru-morifuji/scraping/internal/summary"
)

// Runner scrapes one keyword. Implemented by scrape.Scraper.
type Runner interface {
	Keyword(ctx context.Context, keyword string) ([]listing.Item, error)
}

// Summarizer turns accumulated items into the final report. Implemented
// by summary.Stage; it must not fail, only degrade.
type Summarizer interface {
	Summarize(ctx context.Context, itemsByKeyword map[string][]listing.Item) *summary.Report
}

// Archiver persists accepted items once a job completes. Archive errors
// are nonfatal.
type Archiver interface {
	SaveItems(ctx context.Context, jobID string, items []listing.Item) error
}

// Orchestrator is the job registry and result cache. All state lives in
// the instance so it can be constructed and torn down per test.
//
// Mutation discipline: only the owning worker writes a running job's
// fields; the sweeper only deletes entries that are not running; readers
// always get a copied Snapshot taken under the lock.
type Orchestrator struct {
	mu      sync.RWMutex
	jobs    map[string]*Snapshot
	results map[string]*summary.Report

	sem        *semaphore.Weighted
	runner     Runner
	summarizer Summarizer
	archive    Archiver

	retention     time.Duration
	sweepInterval time.Duration

	// Root context for workers: jobs must outlive the HTTP request that
	// submitted them, so they run under this instead of the request ctx.
	ctx context.Context
}

type Option func(*Orchestrator)

// WithMaxConcurrent caps how many jobs may hold a worker slot at once.
func WithMaxConcurrent(n int) Option {
	return func(o *Orchestrator) { o.sem = semaphore.NewWeighted(int64(n)) }
}

func WithRetention(d time.Duration) Option {
	return func(o *Orchestrator) { o.retention = d }
}

func WithSweepInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.sweepInterval = d }
}

func WithArchive(a Archiver) Option {
	return func(o *Orchestrator) { o.archive = a }
}

func New(ctx context.Context, runner Runner, summarizer Summarizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		jobs:          make(map[string]*Snapshot),
		results:       make(map[string]*summary.Report),
		sem:           semaphore.NewWeighted(3),
		runner:        runner,
		summarizer:    summarizer,
		retention:     time.Hour,
		sweepInterval: 10 * time.Minute,
		ctx:           ctx,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start submits a new job over keywords and returns its id without
// waiting for any work. When all worker slots are taken it fails with a
// capacity error; submissions are never queued.
func (o *Orchestrator) Start(keywords []string) (string, error) {
	if len(keywords) == 0 {
		return "", apperror.New(apperror.BadRequest, "no keywords to scrape")
	}
	if !o.sem.TryAcquire(1) {
		return "", apperror.New(apperror.TooManyRequests, "scrape capacity exceeded, retry later")
	}

	id := uuid.NewString()
	o.mu.Lock()
	o.jobs[id] = &Snapshot{
		ID:            id,
		Status:        StatusPending,
		TotalKeywords: len(keywords),
		StartedAt:     time.Now().UTC(),
	}
	o.mu.Unlock()

	go o.run(id, keywords)

	slog.Info("job submitted", "job", id, "keywords", len(keywords))
	return id, nil
}

func (o *Orchestrator) run(id string, keywords []string) {
	defer o.sem.Release(1)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("job panicked", "job", id, "panic", r)
			o.fail(id, fmt.Sprintf("panic: %v", r))
		}
	}()

	o.update(id, func(j *Snapshot) {
		j.Status = StatusRunning
	})

	byKeyword := make(map[string][]listing.Item, len(keywords))
	total := len(keywords)

	for i, kw := range keywords {
		if err := o.ctx.Err(); err != nil {
			o.fail(id, "aborted: "+err.Error())
			return
		}

		o.update(id, func(j *Snapshot) {
			j.CurrentKeyword = kw
		})

		items, err := o.runner.Keyword(o.ctx, kw)
		if err != nil {
			// One keyword failing never fails the job.
			slog.Warn("keyword failed", "job", id, "keyword", kw, "error", err)
			o.update(id, func(j *Snapshot) {
				j.Warnings = append(j.Warnings, fmt.Sprintf("%s: %v", kw, err))
			})
		} else {
			byKeyword[kw] = items
		}

		completed := i + 1
		o.update(id, func(j *Snapshot) {
			j.CompletedKeywords = completed
			j.ProgressPercent = completed * 100 / total
		})
	}

	o.update(id, func(j *Snapshot) {
		j.Status = StatusAnalyzing
	})

	report := o.summarizer.Summarize(o.ctx, byKeyword)

	if o.archive != nil {
		for kw, items := range byKeyword {
			if err := o.archive.SaveItems(o.ctx, id, items); err != nil {
				slog.Warn("archive failed", "job", id, "keyword", kw, "error", err)
			}
		}
	}

	now := time.Now().UTC()
	o.mu.Lock()
	o.results[id] = report
	if j, ok := o.jobs[id]; ok && !j.Status.Terminal() {
		j.Status = StatusCompleted
		j.ProgressPercent = 100
		j.EndedAt = &now
	}
	o.mu.Unlock()

	slog.Info("job completed", "job", id, "items", report.TotalItems, "keywords", len(byKeyword))
}

// Progress returns a copy of the job's current fields. It never blocks
// on the worker and never mutates.
func (o *Orchestrator) Progress(id string) (*Snapshot, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	j, ok := o.jobs[id]
	if !ok {
		return nil, apperror.New(apperror.NotFound, "job not found")
	}
	cp := *j
	cp.Warnings = append([]string(nil), j.Warnings...)
	return &cp, nil
}

// Result returns the stored report. A job that has not completed, or
// whose record was evicted, is NotFound; this is distinct from a job
// that errored (visible via Progress).
func (o *Orchestrator) Result(id string) (*summary.Report, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	r, ok := o.results[id]
	if !ok {
		return nil, apperror.New(apperror.NotFound, "result not found")
	}
	return r, nil
}

// Sweep removes jobs and results older than the retention window.
// Running jobs are never evicted, so a worker never completes into an
// orphaned record.
func (o *Orchestrator) Sweep() int {
	cutoff := time.Now().UTC().Add(-o.retention)

	o.mu.Lock()
	defer o.mu.Unlock()

	removed := 0
	for id, j := range o.jobs {
		if j.Status == StatusRunning || j.Status == StatusAnalyzing || j.Status == StatusPending {
			continue
		}
		if j.StartedAt.After(cutoff) {
			continue
		}
		delete(o.jobs, id)
		delete(o.results, id)
		removed++
	}
	if removed > 0 {
		slog.Info("swept expired jobs", "removed", removed)
	}
	return removed
}

// Sweeper periodically runs Sweep until ctx is cancelled. One ticker
// task owns the interval; the sweep never re-arms timers from callbacks.
func (o *Orchestrator) Sweeper(ctx context.Context) {
	t := time.NewTicker(o.sweepInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			o.Sweep()
		}
	}
}

// ClearCache evicts all jobs not currently in flight, and their results.
func (o *Orchestrator) ClearCache() (removed, retained int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for id, j := range o.jobs {
		if !j.Status.Terminal() {
			retained++
			continue
		}
		delete(o.jobs, id)
		delete(o.results, id)
		removed++
	}
	return removed, retained
}

// Counts reports in-flight jobs and cached results, for health checks.
func (o *Orchestrator) Counts() (active, cached int) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, j := range o.jobs {
		if !j.Status.Terminal() {
			active++
		}
	}
	return active, len(o.results)
}

func (o *Orchestrator) update(id string, fn func(*Snapshot)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if j, ok := o.jobs[id]; ok && !j.Status.Terminal() {
		fn(j)
	}
}

func (o *Orchestrator) fail(id string, msg string) {
	now := time.Now().UTC()
	o.update(id, func(j *Snapshot) {
		j.Status = StatusError
		j.Error = msg
		j.EndedAt = &now
	})
}
