/*
scheduler.go - Background ledger reconciler

PURPOSE:
  Periodically re-runs the whole-ledger recalculation for every customer
  and party. A write whose follow-up recalculation failed leaves stale
  derived fields behind; the next pass repairs them.

DESIGN:
  - Runs a background goroutine with configurable interval
  - One pass at start, then one per tick
  - Passes never overlap; a manual pass waits for a running one
  - The last few runs are kept in memory for the admin UI

CONFIGURATION:
  - Interval: How often to run (default: 1 hour)
  - Enabled: Whether the reconciler is active (default: false)

USAGE:
  rec := NewReconciler(books, logger)
  rec.Start()
  // ... later
  rec.Stop()

SEE ALSO:
  - handlers.go: Recalculate endpoint (manual pass, trigger "manual")
  - bookkeeping/recalc.go: RecalculateAll
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopbook/shopbook/bookkeeping"
)

// keptRuns bounds the in-memory run history.
const keptRuns = 20

// ReconcileRun records one reconciler pass.
type ReconcileRun struct {
	ID          string     `json:"id"`
	Trigger     string     `json:"trigger"`
	Status      string     `json:"status"`
	Customers   int        `json:"customers"`
	Parties     int        `json:"parties"`
	Mirrors     int        `json:"mirrors"`
	Failures    int        `json:"failures"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Reconciler handles periodic recalculation of every ledger.
type Reconciler struct {
	Books    *bookkeeping.Service
	Log      *zap.Logger
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex // guards ticker, stop
	pass   sync.Mutex // serializes passes

	runsMu sync.Mutex
	runs   []ReconcileRun
}

// NewReconciler creates a disabled reconciler with a one hour interval.
func NewReconciler(books *bookkeeping.Service, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		Books:    books,
		Log:      log.Named("reconciler"),
		Interval: time.Hour,
	}
}

// Start begins the reconciler.
func (rc *Reconciler) Start() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if !rc.Enabled {
		rc.Log.Info("disabled, not starting")
		return
	}
	if rc.ticker != nil {
		return
	}

	rc.ticker = time.NewTicker(rc.Interval)
	rc.stop = make(chan struct{})
	rc.wg.Add(1)

	go rc.run(rc.ticker, rc.stop)

	rc.Log.Info("started", zap.Duration("interval", rc.Interval))
}

// Stop stops the reconciler and waits for a running pass to finish.
func (rc *Reconciler) Stop() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.ticker != nil {
		rc.ticker.Stop()
		close(rc.stop)
		rc.wg.Wait()
		rc.ticker = nil
		rc.Log.Info("stopped")
	}
}

func (rc *Reconciler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rc.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	// Run immediately on start
	rc.RunOnce(ctx, "schedule")

	for {
		select {
		case <-ticker.C:
			rc.RunOnce(ctx, "schedule")
		case <-stop:
			return
		}
	}
}

// RunOnce performs one pass and records it.
func (rc *Reconciler) RunOnce(ctx context.Context, trigger string) ReconcileRun {
	run, _, _ := rc.Reconcile(ctx, trigger)
	return run
}

// Reconcile performs one pass, records it and also returns the full report.
// err is set when the pass aborted; per-owner failures stay in the report.
func (rc *Reconciler) Reconcile(ctx context.Context, trigger string) (ReconcileRun, bookkeeping.RecalcReport, error) {
	rc.pass.Lock()
	defer rc.pass.Unlock()

	run := ReconcileRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		Status:    "running",
		StartedAt: time.Now().UTC(),
	}

	report, err := rc.Books.RecalculateAll(ctx)
	completed := time.Now().UTC()
	run.CompletedAt = &completed
	run.Customers = report.Customers
	run.Parties = report.Parties
	run.Mirrors = report.Mirrors
	run.Failures = len(report.Failures)

	switch {
	case err != nil:
		run.Status = "failed"
		run.Error = err.Error()
		rc.Log.Error("pass aborted", zap.String("run_id", run.ID), zap.Error(err))
	case run.Failures > 0:
		run.Status = "partial"
		run.Error = report.Err().Error()
		rc.Log.Warn("pass completed with failures",
			zap.String("run_id", run.ID),
			zap.Int("failures", run.Failures),
		)
	default:
		run.Status = "completed"
		rc.Log.Info("pass completed",
			zap.String("run_id", run.ID),
			zap.Int("customers", run.Customers),
			zap.Int("parties", run.Parties),
			zap.Int("mirrors", run.Mirrors),
			zap.Duration("took", completed.Sub(run.StartedAt)),
		)
	}

	rc.record(run)
	return run, report, err
}

func (rc *Reconciler) record(run ReconcileRun) {
	rc.runsMu.Lock()
	defer rc.runsMu.Unlock()
	rc.runs = append(rc.runs, run)
	if len(rc.runs) > keptRuns {
		rc.runs = rc.runs[len(rc.runs)-keptRuns:]
	}
}

// Runs returns recorded passes, newest first.
func (rc *Reconciler) Runs() []ReconcileRun {
	rc.runsMu.Lock()
	defer rc.runsMu.Unlock()
	out := make([]ReconcileRun, len(rc.runs))
	for i, run := range rc.runs {
		out[len(rc.runs)-1-i] = run
	}
	return out
}
