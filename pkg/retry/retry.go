package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"tcgsync_api/pkg/logger"
)

// Policy is the single retry combinator shared by the HTTP fetcher and the
// upsert batcher: attempts, exponential backoff from BaseDelay capped at
// MaxDelay, optional jitter, and a classifier deciding which errors retry.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    bool
	Retryable func(error) bool
}

func (p Policy) normalized() Policy {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 250 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	return p
}

// Delay returns the backoff before the given 1-based attempt's retry.
func (p Policy) Delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt-1)
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	if p.Jitter {
		d = d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
	}
	return d
}

// Do runs fn until it succeeds, returns a non-retryable error, exhausts the
// attempt cap, or ctx is done. Every attempt is logged with its duration.
// After exhaustion the last error is returned, never swallowed.
func (p Policy) Do(ctx context.Context, lg logger.Logger, op string, fn func() error) error {
	p = p.normalized()

	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		err := fn()
		elapsed := time.Since(start)
		if err == nil {
			if attempt > 1 && lg != nil {
				lg.Log("%s succeeded on attempt %d/%d (%s)", op, attempt, p.Attempts, elapsed)
			}
			return nil
		}
		lastErr = err

		retryable := p.Retryable == nil || p.Retryable(err)
		if lg != nil {
			lg.Warn("%s attempt %d/%d failed after %s: %v", op, attempt, p.Attempts, elapsed, err)
		}
		if !retryable || attempt == p.Attempts {
			break
		}

		delay := p.Delay(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}
