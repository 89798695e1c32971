package sync

import (
	"context"

	"tcgsync_api/internal/tcg/business/services/fetch"
	"tcgsync_api/pkg/logger"
)

// SignalReader is the read side of the control-signal store.
type SignalReader interface {
	IsCancelled(ctx context.Context, opType, opID string) (bool, error)
}

// Monitor polls the externally-written cancel flag at pipeline checkpoints.
// A failure to read the signal never halts a run: it is treated as "no
// cancellation requested" and logged.
type Monitor struct {
	signals SignalReader
	lg      logger.Logger
}

func NewMonitor(signals SignalReader, lg logger.Logger) *Monitor {
	return &Monitor{signals: signals, lg: lg}
}

func (m *Monitor) ShouldCancel(ctx context.Context, opType, opID string) bool {
	cancelled, err := m.signals.IsCancelled(ctx, opType, opID)
	if err != nil {
		m.lg.Warn("control signal read failed for %s/%s, assuming no cancellation: %v", opType, opID, err)
		return false
	}
	return cancelled
}

// Checkpoint binds one run's identity into a reusable checkpoint function.
func (m *Monitor) Checkpoint(opType, opID string) fetch.CheckpointFunc {
	return func(ctx context.Context) bool {
		return m.ShouldCancel(ctx, opType, opID)
	}
}
