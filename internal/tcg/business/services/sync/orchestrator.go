package sync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"tcgsync_api/internal/tcg/business/models"
	"tcgsync_api/internal/tcg/business/services/fetch"
	"tcgsync_api/metrics"
	"tcgsync_api/pkg/logger"
	"tcgsync_api/pkg/pool"
)

// Orchestrator runs one synchronization operation across its targets. Each
// target gets a worker goroutine that holds a fetch slot end to end: it pages
// the target's source, hands the accumulated records to the batcher, and
// records the terminal state.
// StatusTracker is the slice of the tracker the orchestrator drives.
type StatusTracker interface {
	Begin(ctx context.Context, entityType, entityID string, expected int) error
	Progress(ctx context.Context, entityType, entityID string, synced int)
	Finish(ctx context.Context, entityType, entityID string, committed, expected int, runErr error, cancelled bool) models.SyncState
}

type Orchestrator struct {
	limiter *pool.Limiter
	monitor *Monitor
	tracker StatusTracker
	batcher *Batcher
	lg      logger.Logger
}

// Options tune a single run.
type Options struct {
	// OperationID keys control signals for this run. Empty means a fresh
	// id is generated.
	OperationID string
	// DryRun fetches and counts but commits nothing and writes no status.
	DryRun bool
	// Paging overrides the source's configured page size and start page.
	Paging PagingHints
}

func NewOrchestrator(limiter *pool.Limiter, monitor *Monitor, tracker StatusTracker, batcher *Batcher, lg logger.Logger) *Orchestrator {
	return &Orchestrator{
		limiter: limiter,
		monitor: monitor,
		tracker: tracker,
		batcher: batcher,
		lg:      lg.WithPrefix("[orchestrator] "),
	}
}

// Run executes src against every target and blocks until all workers finish.
// Cancellation is cooperative: once any worker observes a cancel signal the
// remaining unstarted targets are marked cancelled without fetching.
func (o *Orchestrator) Run(ctx context.Context, src Source, targets []models.SyncTarget, opts Options) models.SyncResult {
	opID := opts.OperationID
	if opID == "" {
		opID = uuid.NewString()
	}
	op := src.Op()
	checkpoint := o.monitor.Checkpoint(op, opID)
	started := time.Now()

	o.lg.Log("operation %s %s: %d target(s), dryRun=%v", op, opID, len(targets), opts.DryRun)

	var (
		counters metrics.SyncCounters
		stopped  atomic.Bool
		wg       sync.WaitGroup
		results  = make(chan models.TargetResult, len(targets))
	)

	for _, target := range targets {
		wg.Add(1)
		go func(t models.SyncTarget) {
			defer wg.Done()

			if err := o.limiter.AcquireFetch(ctx); err != nil {
				stopped.Store(true)
				results <- o.skipCancelled(ctx, op, t, opts)
				return
			}
			defer o.limiter.ReleaseFetch()

			if stopped.Load() || checkpoint(ctx) {
				stopped.Store(true)
				results <- o.skipCancelled(ctx, op, t, opts)
				return
			}

			res := o.runTarget(ctx, src, t, checkpoint, opts)
			if res.State == models.StateCancelled {
				stopped.Store(true)
			}
			counters.FetchedCount.Add(int64(res.Fetched))
			counters.UpsertedCount.Add(int64(res.Upserted))
			counters.SkippedCount.Add(int64(res.Skipped))
			if res.Error != "" {
				counters.ErrorCount.Add(1)
			}
			results <- res
		}(target)
	}

	wg.Wait()
	close(results)

	result := models.SyncResult{
		OperationID: opID,
		Fetched:     int(counters.FetchedCount.Load()),
		Upserted:    int(counters.UpsertedCount.Load()),
		Skipped:     int(counters.SkippedCount.Load()),
		Errors:      int(counters.ErrorCount.Load()),
		Cancelled:   stopped.Load(),
		Elapsed:     time.Since(started),
		PerTarget:   make([]models.TargetResult, 0, len(targets)),
	}
	for res := range results {
		result.PerTarget = append(result.PerTarget, res)
	}
	result.ElapsedMs = result.Elapsed.Milliseconds()
	if secs := result.Elapsed.Seconds(); secs > 0 {
		result.RatePerSec = float64(result.Upserted) / secs
	}

	o.lg.Log("operation %s %s done in %v: fetched=%d upserted=%d skipped=%d errors=%d cancelled=%v",
		op, opID, result.Elapsed.Round(time.Millisecond),
		result.Fetched, result.Upserted, result.Skipped, result.Errors, result.Cancelled)
	return result
}

// RunBackground starts Run detached from the caller's request context and
// returns the operation id the run can be cancelled or observed by.
func (o *Orchestrator) RunBackground(src Source, targets []models.SyncTarget, opts Options) string {
	if opts.OperationID == "" {
		opts.OperationID = uuid.NewString()
	}
	go func() {
		o.Run(context.Background(), src, targets, opts)
	}()
	return opts.OperationID
}

func (o *Orchestrator) runTarget(ctx context.Context, src Source, t models.SyncTarget, checkpoint fetch.CheckpointFunc, opts Options) models.TargetResult {
	started := time.Now()
	res := models.TargetResult{
		EntityType: t.EntityType,
		EntityID:   t.ExternalID,
		Name:       t.Name,
	}

	if !opts.DryRun {
		if err := o.tracker.Begin(ctx, t.EntityType, t.ExternalID, t.Expected); err != nil {
			res.State = models.StateError
			res.Error = err.Error()
			res.Elapsed = time.Since(started)
			res.ElapsedMs = res.Elapsed.Milliseconds()
			return res
		}
	}

	// The provider's reported total, when present, is a better expectation
	// than the one the target carried in.
	expected := t.Expected
	var records []models.Record
	outcome, runErr := src.Run(ctx, t, opts.Paging, checkpoint, func(page models.Page) error {
		records = append(records, page.Records...)
		if page.ReportedTotal != nil && *page.ReportedTotal > 0 {
			expected = *page.ReportedTotal
		}
		if !opts.DryRun {
			o.tracker.Progress(ctx, t.EntityType, t.ExternalID, len(records))
		}
		return nil
	})
	res.Fetched = outcome.Fetched
	res.Skipped = outcome.Skipped
	res.StopReason = outcome.Reason
	cancelled := outcome.Reason == models.StopCancelled

	// Persist whatever was fetched before a late page failed; partial data
	// beats none and the terminal state still reports the failure.
	committed := 0
	if len(records) > 0 && !opts.DryRun {
		var perr error
		committed, perr = o.batcher.Persist(ctx, src.Store(), records, checkpoint)
		if perr != nil {
			if errors.Is(perr, models.ErrCancelled) {
				cancelled = true
			} else if runErr == nil {
				runErr = perr
			}
		}
		metrics.RecordUpserted(src.Op(), committed)
	}
	res.Upserted = committed

	if opts.DryRun {
		// Report the state the run would have recorded against the fetched
		// count, since nothing was committed.
		res.State = ResolveState(len(records), expected, runErr, cancelled)
	} else {
		// Terminal state must land even when the run's context is already
		// cancelled, otherwise the row stays "syncing" forever.
		res.State = o.tracker.Finish(context.WithoutCancel(ctx), t.EntityType, t.ExternalID, committed, expected, runErr, cancelled)
	}
	if runErr != nil {
		res.Error = models.TruncateError(runErr.Error())
	}
	res.Elapsed = time.Since(started)
	res.ElapsedMs = res.Elapsed.Milliseconds()

	metrics.RecordRun(src.Op(), string(res.State), res.Elapsed)
	o.lg.Log("%s %s (%s): state=%s fetched=%d upserted=%d skipped=%d reason=%s in %v",
		src.Op(), t.ExternalID, t.Name, res.State,
		res.Fetched, res.Upserted, res.Skipped, res.StopReason,
		res.Elapsed.Round(time.Millisecond))
	return res
}

// skipCancelled records the cancelled state for a target that never started.
func (o *Orchestrator) skipCancelled(ctx context.Context, op string, t models.SyncTarget, opts Options) models.TargetResult {
	res := models.TargetResult{
		EntityType: t.EntityType,
		EntityID:   t.ExternalID,
		Name:       t.Name,
		StopReason: models.StopCancelled,
		State:      models.StateCancelled,
	}
	if !opts.DryRun {
		res.State = o.tracker.Finish(context.WithoutCancel(ctx), t.EntityType, t.ExternalID, 0, t.Expected, nil, true)
	}
	metrics.RecordRun(op, string(res.State), 0)
	return res
}
