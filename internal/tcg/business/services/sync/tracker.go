package sync

import (
	"context"
	"database/sql"
	"errors"

	"tcgsync_api/internal/tcg/business/models"
	"tcgsync_api/internal/tcg/storage"
	"tcgsync_api/pkg/logger"
)

// Counter recomputes a target's committed count from storage.
type Counter interface {
	Count(ctx context.Context, entityID string) (int, error)
}

// Tracker owns the per-target sync-state machine. Terminal states are
// derived from the committed counts the repositories reported, never from
// in-memory fetched counts, and observations recount from storage because a
// crash between "records committed" and "status updated" is possible.
type Tracker struct {
	statuses *storage.StatusRepository
	counters map[string]Counter
	lg       logger.Logger
}

func NewTracker(statuses *storage.StatusRepository, lg logger.Logger) *Tracker {
	return &Tracker{
		statuses: statuses,
		counters: make(map[string]Counter),
		lg:       lg,
	}
}

// RegisterCounter binds the storage recount for one entity type.
func (t *Tracker) RegisterCounter(entityType string, c Counter) {
	t.counters[entityType] = c
}

// Begin moves the target into syncing, clearing the previous error.
func (t *Tracker) Begin(ctx context.Context, entityType, entityID string, expected int) error {
	return t.statuses.MarkSyncing(ctx, entityType, entityID, expected)
}

// Progress keeps the row's updated_at fresh during long fetches so a live
// run is not mistaken for a stuck one. Failures only log.
func (t *Tracker) Progress(ctx context.Context, entityType, entityID string, synced int) {
	if err := t.statuses.Touch(ctx, entityType, entityID, synced); err != nil {
		t.lg.Warn("progress update for %s/%s failed: %v", entityType, entityID, err)
	}
}

// Finish resolves and persists the terminal state for this run.
func (t *Tracker) Finish(ctx context.Context, entityType, entityID string, committed, expected int, runErr error, cancelled bool) models.SyncState {
	state := ResolveState(committed, expected, runErr, cancelled)
	errMsg := ""
	if runErr != nil && state != models.StateCancelled {
		errMsg = models.TruncateError(runErr.Error())
	}
	if err := t.statuses.Finish(ctx, entityType, entityID, state, committed, errMsg); err != nil {
		t.lg.Warn("status update for %s/%s failed: %v", entityType, entityID, err)
	}
	return state
}

// ResolveState applies the transition rules out of syncing:
// cancelled beats everything; a clean run completes unless it verifiably
// under-delivered; a failed run that still committed something is partial.
func ResolveState(committed, expected int, runErr error, cancelled bool) models.SyncState {
	switch {
	case cancelled:
		return models.StateCancelled
	case runErr == nil:
		if expected > 0 && committed > 0 && committed < expected {
			return models.StatePartial
		}
		return models.StateCompleted
	case committed > 0:
		return models.StatePartial
	default:
		return models.StateError
	}
}

// Observe reads one status row, recounting the synced items from storage for
// terminal states: status is eventually consistent with committed data and a
// cached number is not trusted.
func (t *Tracker) Observe(ctx context.Context, entityType, entityID string) (models.SyncStatus, error) {
	status, err := t.statuses.Get(ctx, entityType, entityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SyncStatus{
				EntityType: entityType,
				EntityID:   entityID,
				State:      models.StateIdle,
			}, nil
		}
		return status, err
	}
	t.recount(ctx, &status)
	return status, nil
}

// ObserveAll lists status rows (all types when entityType is empty),
// recounting terminal rows.
func (t *Tracker) ObserveAll(ctx context.Context, entityType string) ([]models.SyncStatus, error) {
	statuses, err := t.statuses.List(ctx, entityType)
	if err != nil {
		return nil, err
	}
	for i := range statuses {
		t.recount(ctx, &statuses[i])
	}
	return statuses, nil
}

// Reset is the operator-only escape hatch for stuck runs.
func (t *Tracker) Reset(ctx context.Context, entityType, entityID string, to models.SyncState) error {
	return t.statuses.Reset(ctx, entityType, entityID, to)
}

func (t *Tracker) recount(ctx context.Context, status *models.SyncStatus) {
	if status.State == models.StateIdle || status.State == models.StateSyncing {
		return
	}
	counter, ok := t.counters[status.EntityType]
	if !ok {
		return
	}
	count, err := counter.Count(ctx, status.EntityID)
	if err != nil {
		t.lg.Warn("recount for %s/%s failed, keeping stored count: %v", status.EntityType, status.EntityID, err)
		return
	}
	if count != status.SyncedItems {
		t.lg.Log("recount for %s/%s: stored %d, actual %d", status.EntityType, status.EntityID, status.SyncedItems, count)
		status.SyncedItems = count
	}
}
