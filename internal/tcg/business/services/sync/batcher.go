package sync

import (
	"context"
	"fmt"

	"tcgsync_api/internal/tcg/business/models"
	"tcgsync_api/internal/tcg/business/services/fetch"
	"tcgsync_api/pkg/logger"
	"tcgsync_api/pkg/pool"
	"tcgsync_api/pkg/retry"
)

// RecordStore persists one deduplicated chunk and reports how many rows it
// actually wrote.
type RecordStore interface {
	UpsertBatch(ctx context.Context, records []models.Record) (int, error)
}

// Batcher deduplicates a target's records, chunks them, and persists each
// chunk under the persist bound with its own retry policy. A chunk that
// exhausts retries aborts the remaining chunks of this target only.
type Batcher struct {
	ChunkSize int
	Policy    retry.Policy
	Limiter   *pool.Limiter
	Log       logger.Logger
}

func NewBatcher(chunkSize int, policy retry.Policy, limiter *pool.Limiter, lg logger.Logger) *Batcher {
	if chunkSize <= 0 {
		chunkSize = 2000
	}
	policy.Retryable = models.IsTransient
	return &Batcher{ChunkSize: chunkSize, Policy: policy, Limiter: limiter, Log: lg}
}

// Persist returns the committed count even on failure; the caller treats it
// as ground truth for the status row.
func (b *Batcher) Persist(ctx context.Context, store RecordStore, records []models.Record, checkpoint fetch.CheckpointFunc) (int, error) {
	// Dedupe across the whole input before chunking so no single statement
	// writes the same key twice; last occurrence wins.
	records = models.DedupeRecords(records)

	committed := 0
	for start := 0; start < len(records); start += b.ChunkSize {
		end := start + b.ChunkSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		if checkpoint != nil && checkpoint(ctx) {
			return committed, models.ErrCancelled
		}

		if b.Limiter != nil {
			if err := b.Limiter.AcquirePersist(ctx); err != nil {
				return committed, err
			}
		}
		var written int
		err := b.Policy.Do(ctx, b.Log, fmt.Sprintf("upsert chunk of %d", len(chunk)), func() error {
			n, upsertErr := store.UpsertBatch(ctx, chunk)
			if upsertErr != nil {
				return upsertErr
			}
			written = n
			return nil
		})
		if b.Limiter != nil {
			b.Limiter.ReleasePersist()
		}
		if err != nil {
			return committed, err
		}
		committed += written
	}
	return committed, nil
}
