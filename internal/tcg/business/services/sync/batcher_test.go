package sync

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcgsync_api/internal/tcg/business/models"
	"tcgsync_api/pkg/logger"
	"tcgsync_api/pkg/retry"
)

func testLogger() logger.Logger {
	return logger.NewLogger(io.Discard, "")
}

type fakeStore struct {
	batches [][]models.Record
	// fail[i] is returned by call i; nil entries succeed.
	fail  []error
	calls int
}

func (s *fakeStore) UpsertBatch(ctx context.Context, records []models.Record) (int, error) {
	call := s.calls
	s.calls++
	if call < len(s.fail) && s.fail[call] != nil {
		return 0, s.fail[call]
	}
	s.batches = append(s.batches, records)
	return len(records), nil
}

func numberedRecords(n int) []models.Record {
	records := make([]models.Record, n)
	for i := range records {
		records[i] = models.Record{ExternalID: string(rune('a' + i)), Name: "rec"}
	}
	return records
}

func quickBatcher(chunkSize int) *Batcher {
	return NewBatcher(chunkSize, retry.Policy{Attempts: 3, BaseDelay: time.Millisecond}, nil, testLogger())
}

func TestBatcherChunksAndCommitsAll(t *testing.T) {
	store := &fakeStore{}
	committed, err := quickBatcher(2).Persist(context.Background(), store, numberedRecords(5), nil)

	require.NoError(t, err)
	assert.Equal(t, 5, committed)
	require.Len(t, store.batches, 3)
	assert.Len(t, store.batches[0], 2)
	assert.Len(t, store.batches[1], 2)
	assert.Len(t, store.batches[2], 1)
}

func TestBatcherDeduplicatesBeforeChunking(t *testing.T) {
	records := []models.Record{
		{ExternalID: "1", Name: "old"},
		{ExternalID: "1", Name: "new"},
		{ExternalID: "2", Name: "two"},
		{ExternalID: "", Name: "dropped"},
	}

	store := &fakeStore{}
	committed, err := quickBatcher(10).Persist(context.Background(), store, records, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, committed)
	require.Len(t, store.batches, 1)
	require.Len(t, store.batches[0], 2)
	assert.Equal(t, "new", store.batches[0][0].Name)
}

func TestBatcherRetriesTransientChunkFailure(t *testing.T) {
	store := &fakeStore{fail: []error{models.Transient(errors.New("deadlock"))}}
	committed, err := quickBatcher(10).Persist(context.Background(), store, numberedRecords(4), nil)

	require.NoError(t, err)
	assert.Equal(t, 4, committed)
	assert.Equal(t, 2, store.calls)
}

func TestBatcherFatalChunkAbortsRemaining(t *testing.T) {
	fatal := models.Fatal(errors.New("constraint violated"))
	store := &fakeStore{fail: []error{nil, fatal, fatal, fatal}}

	committed, err := quickBatcher(2).Persist(context.Background(), store, numberedRecords(6), nil)

	require.Error(t, err)
	assert.Equal(t, 2, committed, "rows committed before the failure are reported")
	assert.Equal(t, 2, store.calls, "fatal errors are not retried and later chunks never run")
}

func TestBatcherCancellationBetweenChunks(t *testing.T) {
	store := &fakeStore{}
	cancelled := false
	checkpoint := func(ctx context.Context) bool {
		// Signal arrives after the first chunk committed.
		if len(store.batches) >= 1 {
			cancelled = true
		}
		return cancelled
	}

	committed, err := quickBatcher(2).Persist(context.Background(), store, numberedRecords(6), checkpoint)

	require.ErrorIs(t, err, models.ErrCancelled)
	assert.Equal(t, 2, committed, "committed rows survive cancellation")
	assert.Equal(t, 1, store.calls)
}

func TestBatcherEmptyInput(t *testing.T) {
	store := &fakeStore{}
	committed, err := quickBatcher(2).Persist(context.Background(), store, nil, nil)

	require.NoError(t, err)
	assert.Zero(t, committed)
	assert.Zero(t, store.calls)
}
