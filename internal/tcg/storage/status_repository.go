package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tcgsync_api/internal/tcg/business/models"
)

// StatusRepository owns the persisted per-target sync state rows. Rows are
// created on first sync attempt and only ever superseded, never deleted.
type StatusRepository struct {
	db         *sql.DB
	stuckAfter time.Duration
}

func NewStatusRepository(db *sql.DB, stuckAfter time.Duration) *StatusRepository {
	return &StatusRepository{db: db, stuckAfter: stuckAfter}
}

// MarkSyncing moves a target into the syncing state, clearing any prior
// error and counters.
func (r *StatusRepository) MarkSyncing(ctx context.Context, entityType, entityID string, expected int) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO sync.status
            (entity_type, entity_id, state, last_error, synced_items, expected_items, started_at, updated_at)
        VALUES ($1, $2, 'syncing', NULL, 0, $3, now(), now())
        ON CONFLICT (entity_type, entity_id) DO UPDATE SET
            state = 'syncing',
            last_error = NULL,
            synced_items = 0,
            expected_items = $3,
            started_at = now(),
            updated_at = now()
    `, entityType, entityID, expected)
	return classifyDbErr(err)
}

// Finish records a terminal state with the committed count and optional
// error message (already truncated by the caller).
func (r *StatusRepository) Finish(ctx context.Context, entityType, entityID string, state models.SyncState, synced int, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO sync.status
            (entity_type, entity_id, state, last_error, synced_items, expected_items, started_at, updated_at)
        VALUES ($1, $2, $3, NULLIF($5, ''), $4, 0, now(), now())
        ON CONFLICT (entity_type, entity_id) DO UPDATE SET
            state = $3,
            synced_items = $4,
            last_error = NULLIF($5, ''),
            updated_at = now()
    `, entityType, entityID, string(state), synced, errMsg)
	return classifyDbErr(err)
}

// Touch bumps updated_at of an in-flight run so slow-but-live targets do not
// look stuck.
func (r *StatusRepository) Touch(ctx context.Context, entityType, entityID string, synced int) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE sync.status
        SET synced_items = $3, updated_at = now()
        WHERE entity_type = $1 AND entity_id = $2 AND state = 'syncing'
    `, entityType, entityID, synced)
	return classifyDbErr(err)
}

func (r *StatusRepository) Get(ctx context.Context, entityType, entityID string) (models.SyncStatus, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT entity_type, entity_id, state, COALESCE(last_error, ''),
               synced_items, expected_items, COALESCE(started_at, updated_at), updated_at
        FROM sync.status
        WHERE entity_type = $1 AND entity_id = $2
    `, entityType, entityID)
	return r.scanStatus(row.Scan)
}

// List returns the status rows of one entity type, or all rows when
// entityType is empty.
func (r *StatusRepository) List(ctx context.Context, entityType string) ([]models.SyncStatus, error) {
	query := `
        SELECT entity_type, entity_id, state, COALESCE(last_error, ''),
               synced_items, expected_items, COALESCE(started_at, updated_at), updated_at
        FROM sync.status
    `
	var args []interface{}
	if entityType != "" {
		query += " WHERE entity_type = $1"
		args = append(args, entityType)
	}
	query += " ORDER BY entity_type, entity_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyDbErr(err)
	}
	defer rows.Close()

	var statuses []models.SyncStatus
	for rows.Next() {
		status, err := r.scanStatus(rows.Scan)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, rows.Err()
}

// Reset moves a stuck run out of syncing by operator request. The engine
// never does this on its own, to avoid racing a slow-but-live run.
func (r *StatusRepository) Reset(ctx context.Context, entityType, entityID string, to models.SyncState) error {
	if to != models.StateError && to != models.StateIdle {
		return fmt.Errorf("cannot reset to state %q, only error or idle", to)
	}
	result, err := r.db.ExecContext(ctx, `
        UPDATE sync.status
        SET state = $3, last_error = 'manually reset by operator', updated_at = now()
        WHERE entity_type = $1 AND entity_id = $2 AND state = 'syncing'
    `, entityType, entityID, string(to))
	if err != nil {
		return classifyDbErr(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return classifyDbErr(err)
	}
	if affected == 0 {
		return fmt.Errorf("target %s/%s is not in syncing state", entityType, entityID)
	}
	return nil
}

func (r *StatusRepository) scanStatus(scan func(...interface{}) error) (models.SyncStatus, error) {
	var s models.SyncStatus
	var state string
	err := scan(&s.EntityType, &s.EntityID, &state, &s.LastError,
		&s.SyncedItems, &s.ExpectedItems, &s.StartedAt, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return s, err
		}
		return s, classifyDbErr(err)
	}
	s.State = models.SyncState(state)
	s.Stuck = s.State == models.StateSyncing && time.Since(s.UpdatedAt) > r.stuckAfter
	return s, nil
}
