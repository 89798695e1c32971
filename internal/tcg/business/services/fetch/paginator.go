package fetch

import (
	"context"
	"fmt"

	"tcgsync_api/internal/tcg/business/models"
	"tcgsync_api/pkg/logger"
)

type Mode string

const (
	ModeOffset Mode = "offset" // offset/limit
	ModePage   Mode = "page"   // page/pageSize, pages are 1-based
)

// CheckpointFunc reports whether a cooperative stop was requested. It is
// consulted before and after every page fetch.
type CheckpointFunc func(ctx context.Context) bool

// PageFunc fetches one page. arg is the record offset in ModeOffset and the
// 1-based page number in ModePage.
type PageFunc func(ctx context.Context, mode Mode, arg, size int) (models.Page, error)

// Paginator drives a PageFunc until a termination condition is met and
// reports why it stopped. Pages are delivered to the sink in fetch order.
type Paginator struct {
	Mode     Mode
	PageSize int
	PageCap  int
	// Start is the 0-based page index to begin at, for resuming a feed
	// partway through.
	Start         int
	AllowFallback bool
	Checkpoint    CheckpointFunc
	Log           logger.Logger
}

type Outcome struct {
	Pages    int
	Fetched  int
	Skipped  int
	Reason   models.StopReason
	FellBack bool
}

// Run pages through fn. The returned error is non-nil only for the
// StopError reason; every other stop is a normal outcome.
func (p *Paginator) Run(ctx context.Context, fn PageFunc, sink func(models.Page) error) (Outcome, error) {
	mode := p.Mode
	if mode == "" {
		mode = ModeOffset
	}
	size := p.PageSize
	if size <= 0 {
		size = 100
	}
	pageCap := p.PageCap
	if pageCap <= 0 {
		pageCap = 500
	}

	start := p.Start
	if start < 0 {
		start = 0
	}

	var out Outcome
	pageIdx := start

	for {
		// Safety cap: guards against a provider that repeats the same full
		// page forever. Reaching it is a warning, not a silent success.
		if out.Pages >= pageCap {
			out.Reason = models.StopPageCap
			p.Log.Warn("page cap %d reached in %s mode, stopping; provider may be repeating pages", pageCap, mode)
			return out, nil
		}

		if p.cancelled(ctx) {
			out.Reason = models.StopCancelled
			return out, nil
		}

		arg := pageIdx * size
		if mode == ModePage {
			arg = pageIdx + 1
		}
		page, err := fn(ctx, mode, arg, size)
		if err != nil {
			out.Reason = models.StopError
			return out, fmt.Errorf("page %d (%s mode): %w", pageIdx, mode, err)
		}
		out.Pages++
		n := len(page.Records)

		if n == 0 {
			// Some providers answer only one pagination style; switch once
			// when the first page of the initial mode comes back empty
			// without an explicit end-of-data marker.
			if pageIdx == start && p.AllowFallback && !out.FellBack &&
				(page.HasMore == nil || *page.HasMore) {
				out.FellBack = true
				if mode == ModeOffset {
					mode = ModePage
				} else {
					mode = ModeOffset
				}
				p.Log.Log("first %s page empty, falling back to %s mode", p.Mode, mode)
				continue
			}
			out.Reason = models.StopEmptyPage
			return out, nil
		}

		if err := sink(page); err != nil {
			out.Reason = models.StopError
			return out, fmt.Errorf("page %d sink: %w", pageIdx, err)
		}
		out.Fetched += n
		out.Skipped += page.Skipped

		if p.cancelled(ctx) {
			out.Reason = models.StopCancelled
			return out, nil
		}

		if page.HasMore != nil && !*page.HasMore {
			out.Reason = models.StopHasMoreFalse
			return out, nil
		}
		if n < size {
			out.Reason = models.StopPartialPage
			return out, nil
		}

		pageIdx++
	}
}

func (p *Paginator) cancelled(ctx context.Context) bool {
	return p.Checkpoint != nil && p.Checkpoint(ctx)
}
