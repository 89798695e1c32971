package pool

import "context"

// Limiter bounds the two pipeline resources independently: concurrent
// fetch/transform work across targets and concurrent persistence batches.
// The persist bound is kept below the fetch bound so targets can read ahead
// while write pressure on the database stays capped.
//
// Slots are buffered channels: Acquire blocks until a slot frees, Release
// always returns exactly one slot, and the bound cannot be exceeded no
// matter how many goroutines contend.
type Limiter struct {
	fetch   chan struct{}
	persist chan struct{}
}

func NewLimiter(fetchSlots, persistSlots int) *Limiter {
	if fetchSlots < 1 {
		fetchSlots = 1
	}
	if persistSlots < 1 {
		persistSlots = 1
	}
	return &Limiter{
		fetch:   make(chan struct{}, fetchSlots),
		persist: make(chan struct{}, persistSlots),
	}
}

func (l *Limiter) AcquireFetch(ctx context.Context) error {
	select {
	case l.fetch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) ReleaseFetch() {
	<-l.fetch
}

func (l *Limiter) AcquirePersist(ctx context.Context) error {
	select {
	case l.persist <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) ReleasePersist() {
	<-l.persist
}

// FetchSlots reports the configured fetch bound.
func (l *Limiter) FetchSlots() int { return cap(l.fetch) }

// PersistSlots reports the configured persist bound.
func (l *Limiter) PersistSlots() int { return cap(l.persist) }
