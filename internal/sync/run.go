package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tovald/stocksync/internal/model"
	"github.com/tovald/stocksync/internal/obs"
)

// State is the run lifecycle position. Runs move strictly forward through
// the states below, with a side transition to StateFailedFatal from any
// state on an unrecoverable setup error. Per-intent failures during
// StateExecuting never escalate to fatal.
type State string

const (
	StateStarted         State = "STARTED"
	StateFetchingFeed    State = "FETCHING_FEED"
	StateFetchingCatalog State = "FETCHING_CATALOG"
	StateReconciling     State = "RECONCILING"
	StateExecuting       State = "EXECUTING"
	StateReporting       State = "REPORTING"
	StateDone            State = "DONE"
	StateFailedFatal     State = "FAILED_FATAL"
)

// ErrRunInFlight is returned when a trigger arrives while a run is already
// executing. The scheduler is assumed not to overlap invocations, but the
// guard makes the assumption explicit instead of trusting it.
var ErrRunInFlight = errors.New("a sync run is already in flight")

// FeedFetcher produces the distributor dataset. Implemented by feed.Client.
type FeedFetcher interface {
	Fetch(ctx context.Context) (map[string]model.FeedRecord, error)
}

// CatalogFetcher produces the storefront dataset. Implemented by catalog.Client.
type CatalogFetcher interface {
	FetchSyncEligibleItems(ctx context.Context) ([]model.CatalogItem, error)
}

// Notifier delivers the end-of-run notification. Each method is invoked at
// most once per run.
type Notifier interface {
	SendSummary(ctx context.Context, runID string, s RunSummary) error
	SendFailure(ctx context.Context, runID string, stage State, err error) error
}

// RunReport is the durable record of one run, kept in the in-memory run log.
type RunReport struct {
	ID         string      `json:"id"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	State      State       `json:"state"`
	Summary    *RunSummary `json:"summary,omitempty"`
	Err        string      `json:"error,omitempty"`
}

// Runner orchestrates one reconciliation pass: fetch both datasets,
// reconcile, execute, report. It holds no state between runs beyond the
// in-flight guard; both sources are re-fetched on every invocation.
type Runner struct {
	feed     FeedFetcher
	catalog  CatalogFetcher
	executor *Executor
	notifier Notifier

	inFlight atomic.Bool
}

// NewRunner wires a runner from its collaborators.
func NewRunner(feed FeedFetcher, catalog CatalogFetcher, executor *Executor, notifier Notifier) *Runner {
	return &Runner{feed: feed, catalog: catalog, executor: executor, notifier: notifier}
}

// InFlight reports whether a run is currently executing.
func (r *Runner) InFlight() bool { return r.inFlight.Load() }

// Run performs one full reconciliation pass. The returned error is non-nil
// only for fatal setup failures (feed unreachable, catalog fetch exhausted,
// bad credentials) or an overlapping trigger; per-intent write failures are
// folded into the summary instead.
func (r *Runner) Run(ctx context.Context) (RunReport, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return RunReport{}, ErrRunInFlight
	}
	defer r.inFlight.Store(false)

	rep := RunReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		State:     StateStarted,
	}
	obs.Logger.Info("run_started", "run_id", rep.ID)

	// Feed and catalog have no data dependency, so fetch them together.
	// Both must complete before reconciliation.
	var (
		wg       gosync.WaitGroup
		feedRecs map[string]model.FeedRecord
		feedErr  error
		items    []model.CatalogItem
		itemsErr error
	)
	r.transition(&rep, StateFetchingFeed)
	r.transition(&rep, StateFetchingCatalog)
	wg.Add(2)
	go func() {
		defer wg.Done()
		feedRecs, feedErr = r.feed.Fetch(ctx)
	}()
	go func() {
		defer wg.Done()
		items, itemsErr = r.catalog.FetchSyncEligibleItems(ctx)
	}()
	wg.Wait()
	if feedErr != nil {
		return r.fatal(ctx, rep, StateFetchingFeed, feedErr)
	}
	if itemsErr != nil {
		return r.fatal(ctx, rep, StateFetchingCatalog, itemsErr)
	}

	r.transition(&rep, StateReconciling)
	intents := Reconcile(feedRecs, items)
	obs.Logger.Info("reconciled", "run_id", rep.ID, "feed_records", len(feedRecs), "items", len(items), "intents", len(intents))

	r.transition(&rep, StateExecuting)
	outcomes := r.executor.Execute(ctx, intents)

	r.transition(&rep, StateReporting)
	summary := Summarize(outcomes)
	rep.Summary = &summary
	if summary.Notifiable() && r.notifier != nil {
		if err := r.notifier.SendSummary(ctx, rep.ID, summary); err != nil {
			// Notification trouble must not fail an otherwise good run.
			obs.Logger.Error("notify_summary_error", "run_id", rep.ID, "error", err.Error())
		}
	}

	r.transition(&rep, StateDone)
	rep.FinishedAt = time.Now().UTC()
	obs.Logger.Info("run_done", "run_id", rep.ID, "applied", summary.Applied, "failed", summary.Failed)
	return rep, nil
}

func (r *Runner) transition(rep *RunReport, next State) {
	rep.State = next
	obs.Logger.Debug("run_state", "run_id", rep.ID, "state", string(next))
}

func (r *Runner) fatal(ctx context.Context, rep RunReport, stage State, err error) (RunReport, error) {
	rep.State = StateFailedFatal
	rep.FinishedAt = time.Now().UTC()
	rep.Err = err.Error()
	obs.Logger.Error("run_failed", "run_id", rep.ID, "stage", string(stage), "error", err.Error())
	if r.notifier != nil {
		if nerr := r.notifier.SendFailure(ctx, rep.ID, stage, err); nerr != nil {
			obs.Logger.Error("notify_failure_error", "run_id", rep.ID, "error", nerr.Error())
		}
	}
	return rep, fmt.Errorf("run %s failed during %s: %w", rep.ID, stage, err)
}
