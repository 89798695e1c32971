package storage

import (
	"context"
	"database/sql"

	"tcgsync_api/internal/tcg/business/models"
)

// SignalRepository reads and writes the cooperative-cancellation rows. The
// engine only reads them; admin actions write them.
type SignalRepository struct {
	db *sql.DB
}

func NewSignalRepository(db *sql.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

// Set upserts a control signal. opID "*" addresses every run of opType.
func (r *SignalRepository) Set(ctx context.Context, opType, opID string, cancel bool, createdBy string) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO sync.control_signals (op_type, op_id, cancel, created_by, created_at)
        VALUES ($1, $2, $3, $4, now())
        ON CONFLICT (op_type, op_id) DO UPDATE SET
            cancel = $3,
            created_by = $4,
            created_at = now()
    `, opType, opID, cancel, createdBy)
	return classifyDbErr(err)
}

// IsCancelled reports whether a cancel signal addresses the given run: an
// exact match, the per-type wildcard, or the global stop-everything row.
func (r *SignalRepository) IsCancelled(ctx context.Context, opType, opID string) (bool, error) {
	var cancelled bool
	err := r.db.QueryRowContext(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM sync.control_signals
            WHERE cancel
              AND ((op_type = $1 AND op_id IN ($2, '*'))
                OR (op_type = '*' AND op_id = '*'))
        )
    `, opType, opID).Scan(&cancelled)
	if err != nil {
		return false, classifyDbErr(err)
	}
	return cancelled, nil
}

// List returns all stored control signals, newest first.
func (r *SignalRepository) List(ctx context.Context) ([]models.ControlSignal, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT op_type, op_id, cancel, COALESCE(created_by, ''), created_at
        FROM sync.control_signals
        ORDER BY created_at DESC
    `)
	if err != nil {
		return nil, classifyDbErr(err)
	}
	defer rows.Close()

	var signals []models.ControlSignal
	for rows.Next() {
		var s models.ControlSignal
		if err := rows.Scan(&s.OpType, &s.OpID, &s.Cancel, &s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, classifyDbErr(err)
		}
		signals = append(signals, s)
	}
	return signals, rows.Err()
}
