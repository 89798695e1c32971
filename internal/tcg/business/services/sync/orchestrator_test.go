package sync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcgsync_api/internal/tcg/business/models"
	"tcgsync_api/internal/tcg/business/services/fetch"
	"tcgsync_api/pkg/pool"
	"tcgsync_api/pkg/retry"
)

// scriptedSignals flips to cancelled after cancelAfter reads. Zero means the
// signal never fires. Safe for the orchestrator's concurrent checkpoints.
type scriptedSignals struct {
	mu          sync.Mutex
	reads       int
	cancelAfter int
}

func (s *scriptedSignals) IsCancelled(ctx context.Context, opType, opID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.cancelAfter > 0 && s.reads > s.cancelAfter, nil
}

type sourceScript struct {
	pages   []models.Page
	outcome fetch.Outcome
	err     error
}

// scriptedSource replays a per-target script and records which targets were
// actually run.
type scriptedSource struct {
	mu      sync.Mutex
	scripts map[string]sourceScript
	store   RecordStore
	ran     []string
}

func (s *scriptedSource) Op() string         { return models.OpProducts }
func (s *scriptedSource) Store() RecordStore { return s.store }

func (s *scriptedSource) Run(ctx context.Context, t models.SyncTarget, _ PagingHints, _ fetch.CheckpointFunc, sink func(models.Page) error) (fetch.Outcome, error) {
	s.mu.Lock()
	s.ran = append(s.ran, t.ExternalID)
	script := s.scripts[t.ExternalID]
	s.mu.Unlock()

	for _, page := range script.pages {
		if err := sink(page); err != nil {
			return fetch.Outcome{Reason: models.StopError}, err
		}
	}
	return script.outcome, script.err
}

func (s *scriptedSource) runCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ran)
}

func newTestOrchestrator(signals SignalReader, fetchSlots int) *Orchestrator {
	limiter := pool.NewLimiter(fetchSlots, fetchSlots)
	monitor := NewMonitor(signals, testLogger())
	return NewOrchestrator(limiter, monitor, nil, nil, testLogger())
}

func pageOf(n int, prefix string) models.Page {
	recs := make([]models.Record, n)
	for i := range recs {
		recs[i] = models.Record{ExternalID: prefix + string(rune('a'+i)), Name: "rec"}
	}
	return models.Page{Records: recs}
}

func targetResult(t *testing.T, result models.SyncResult, entityID string) models.TargetResult {
	t.Helper()
	for _, res := range result.PerTarget {
		if res.EntityID == entityID {
			return res
		}
	}
	t.Fatalf("no per-target result for %s", entityID)
	return models.TargetResult{}
}

func TestOrchestratorAggregatesAcrossTargets(t *testing.T) {
	src := &scriptedSource{scripts: map[string]sourceScript{
		"2089": {
			pages:   []models.Page{pageOf(3, "a"), pageOf(2, "b")},
			outcome: fetch.Outcome{Pages: 3, Fetched: 5, Skipped: 1, Reason: models.StopEmptyPage},
		},
		"2090": {
			pages:   []models.Page{pageOf(4, "c")},
			outcome: fetch.Outcome{Pages: 1, Fetched: 4, Reason: models.StopHasMoreFalse},
		},
		"2091": {
			outcome: fetch.Outcome{Reason: models.StopError},
			err:     models.Transient(errors.New("provider down")),
		},
	}}
	o := newTestOrchestrator(&scriptedSignals{}, 2)

	targets := []models.SyncTarget{
		{EntityType: models.OpProducts, ExternalID: "2089"},
		{EntityType: models.OpProducts, ExternalID: "2090"},
		{EntityType: models.OpProducts, ExternalID: "2091"},
	}
	result := o.Run(context.Background(), src, targets, Options{DryRun: true})

	assert.NotEmpty(t, result.OperationID)
	assert.Equal(t, 9, result.Fetched)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Upserted, "dry run commits nothing")
	assert.Equal(t, 1, result.Errors)
	assert.False(t, result.Cancelled)
	require.Len(t, result.PerTarget, 3)
	assert.Equal(t, 3, src.runCount())

	assert.Equal(t, models.StateCompleted, targetResult(t, result, "2089").State)
	assert.Equal(t, models.StateCompleted, targetResult(t, result, "2090").State)
	failed := targetResult(t, result, "2091")
	assert.Equal(t, models.StateError, failed.State)
	assert.Contains(t, failed.Error, "provider down")
}

func TestOrchestratorCancellationStopsNewWork(t *testing.T) {
	// One fetch slot serializes the targets; the signal fires after the
	// first worker's checkpoint, so exactly one target runs and the rest
	// are marked cancelled without their source being invoked.
	src := &scriptedSource{scripts: map[string]sourceScript{}}
	for _, id := range []string{"1", "2", "3", "4"} {
		src.scripts[id] = sourceScript{
			pages:   []models.Page{pageOf(2, id)},
			outcome: fetch.Outcome{Pages: 1, Fetched: 2, Reason: models.StopHasMoreFalse},
		}
	}
	o := newTestOrchestrator(&scriptedSignals{cancelAfter: 1}, 1)

	targets := []models.SyncTarget{
		{EntityType: models.OpProducts, ExternalID: "1"},
		{EntityType: models.OpProducts, ExternalID: "2"},
		{EntityType: models.OpProducts, ExternalID: "3"},
		{EntityType: models.OpProducts, ExternalID: "4"},
	}
	result := o.Run(context.Background(), src, targets, Options{DryRun: true})

	assert.True(t, result.Cancelled)
	assert.Equal(t, 1, src.runCount(), "cancelled targets must not fetch")
	assert.Equal(t, 2, result.Fetched)

	var completed, cancelled int
	for _, res := range result.PerTarget {
		switch res.State {
		case models.StateCompleted:
			completed++
		case models.StateCancelled:
			cancelled++
			assert.Equal(t, models.StopCancelled, res.StopReason)
			assert.Zero(t, res.Fetched)
		default:
			t.Fatalf("unexpected state %s for %s", res.State, res.EntityID)
		}
	}
	assert.Equal(t, 1, completed)
	assert.Equal(t, 3, cancelled)
}

func TestOrchestratorReportedTotalRefinesState(t *testing.T) {
	total := 10
	src := &scriptedSource{scripts: map[string]sourceScript{
		"short": {
			pages:   []models.Page{{Records: pageOf(4, "s").Records, ReportedTotal: &total}},
			outcome: fetch.Outcome{Pages: 1, Fetched: 4, Reason: models.StopEmptyPage},
		},
		"full": {
			pages:   []models.Page{pageOf(4, "f")},
			outcome: fetch.Outcome{Pages: 1, Fetched: 4, Reason: models.StopEmptyPage},
		},
	}}
	o := newTestOrchestrator(&scriptedSignals{}, 2)

	result := o.Run(context.Background(), src, []models.SyncTarget{
		{EntityType: models.OpProducts, ExternalID: "short"},
		{EntityType: models.OpProducts, ExternalID: "full"},
	}, Options{DryRun: true})

	assert.Equal(t, models.StatePartial, targetResult(t, result, "short").State,
		"a clean run that under-delivers against the provider's total is partial")
	assert.Equal(t, models.StateCompleted, targetResult(t, result, "full").State)
}

// recordingTracker captures the status calls a run makes.
type recordingTracker struct {
	mu       sync.Mutex
	begins   int
	progress []int
	finishes int
}

func (r *recordingTracker) Begin(ctx context.Context, entityType, entityID string, expected int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.begins++
	return nil
}

func (r *recordingTracker) Progress(ctx context.Context, entityType, entityID string, synced int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, synced)
}

func (r *recordingTracker) Finish(ctx context.Context, entityType, entityID string, committed, expected int, runErr error, cancelled bool) models.SyncState {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishes++
	return ResolveState(committed, expected, runErr, cancelled)
}

func TestOrchestratorTracksProgressAndPersists(t *testing.T) {
	store := &fakeStore{}
	src := &scriptedSource{store: store, scripts: map[string]sourceScript{
		"2089": {
			pages:   []models.Page{pageOf(3, "a"), pageOf(2, "b")},
			outcome: fetch.Outcome{Pages: 2, Fetched: 5, Reason: models.StopPartialPage},
		},
	}}
	tracker := &recordingTracker{}
	batcher := NewBatcher(10, retry.Policy{Attempts: 1, BaseDelay: time.Millisecond}, nil, testLogger())
	o := NewOrchestrator(pool.NewLimiter(1, 1), NewMonitor(&scriptedSignals{}, testLogger()), tracker, batcher, testLogger())

	result := o.Run(context.Background(), src, []models.SyncTarget{
		{EntityType: models.OpProducts, ExternalID: "2089"},
	}, Options{})

	assert.Equal(t, 1, tracker.begins)
	assert.Equal(t, []int{3, 5}, tracker.progress, "progress carries the running fetched count")
	assert.Equal(t, 1, tracker.finishes)
	assert.Equal(t, 5, result.Upserted)
	require.Len(t, store.batches, 1)
	assert.Len(t, store.batches[0], 5)
	assert.Equal(t, models.StateCompleted, targetResult(t, result, "2089").State)
}

func TestOrchestratorRunBackgroundAcksImmediately(t *testing.T) {
	done := make(chan struct{})
	src := &backgroundSource{done: done}
	o := newTestOrchestrator(&scriptedSignals{}, 1)

	opID := o.RunBackground(src, []models.SyncTarget{
		{EntityType: models.OpProducts, ExternalID: "2089"},
	}, Options{OperationID: "op-bg", DryRun: true})
	assert.Equal(t, "op-bg", opID, "a caller-chosen operation id is kept")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("detached run never executed")
	}

	generated := o.RunBackground(src, nil, Options{DryRun: true})
	assert.NotEmpty(t, generated)
	assert.NotEqual(t, "op-bg", generated)
}

// backgroundSource signals when the detached run reaches it.
type backgroundSource struct {
	once sync.Once
	done chan struct{}
}

func (s *backgroundSource) Op() string         { return models.OpGroups }
func (s *backgroundSource) Store() RecordStore { return nil }

func (s *backgroundSource) Run(ctx context.Context, t models.SyncTarget, _ PagingHints, _ fetch.CheckpointFunc, sink func(models.Page) error) (fetch.Outcome, error) {
	s.once.Do(func() { close(s.done) })
	return fetch.Outcome{Reason: models.StopEmptyPage}, nil
}
