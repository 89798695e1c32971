package metrics

import "sync/atomic"

// SyncCounters are the in-flight counters of one run, shared by the worker
// goroutines of all its targets.
type SyncCounters struct {
	FetchedCount  atomic.Int64
	UpsertedCount atomic.Int64
	SkippedCount  atomic.Int64
	ErrorCount    atomic.Int64
}
