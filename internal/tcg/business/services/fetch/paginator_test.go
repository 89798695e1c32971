package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcgsync_api/internal/tcg/business/models"
)

func fullPage(n int) models.Page {
	records := make([]models.Record, n)
	for i := range records {
		records[i] = models.Record{ExternalID: "r", Name: "rec"}
	}
	return models.Page{Records: records}
}

func collectSink(pages *[]models.Page) func(models.Page) error {
	return func(p models.Page) error {
		*pages = append(*pages, p)
		return nil
	}
}

func TestPaginatorStopsOnPartialPage(t *testing.T) {
	// 50 records over 20/20/10 with hasMore unset: the short last page ends
	// the run and nothing is lost.
	sizes := []int{20, 20, 10}
	var fetched []models.Page

	p := &Paginator{PageSize: 20, PageCap: 10, Log: testLogger()}
	out, err := p.Run(context.Background(), func(ctx context.Context, mode Mode, arg, size int) (models.Page, error) {
		idx := arg / size
		return fullPage(sizes[idx]), nil
	}, collectSink(&fetched))

	require.NoError(t, err)
	assert.Equal(t, models.StopPartialPage, out.Reason)
	assert.Equal(t, 3, out.Pages)
	assert.Equal(t, 50, out.Fetched)
	require.Len(t, fetched, 3)
	assert.Len(t, fetched[2].Records, 10)
}

func TestPaginatorStopsOnHasMoreFalse(t *testing.T) {
	hasMore := false
	p := &Paginator{PageSize: 10, Log: testLogger()}

	out, err := p.Run(context.Background(), func(ctx context.Context, mode Mode, arg, size int) (models.Page, error) {
		page := fullPage(10)
		page.HasMore = &hasMore
		return page, nil
	}, func(models.Page) error { return nil })

	require.NoError(t, err)
	assert.Equal(t, models.StopHasMoreFalse, out.Reason)
	assert.Equal(t, 1, out.Pages)
	assert.Equal(t, 10, out.Fetched)
}

func TestPaginatorStopsOnEmptyPage(t *testing.T) {
	pages := []models.Page{fullPage(10), fullPage(10), {}}
	p := &Paginator{PageSize: 10, Log: testLogger()}

	out, err := p.Run(context.Background(), func(ctx context.Context, mode Mode, arg, size int) (models.Page, error) {
		return pages[arg/size], nil
	}, func(models.Page) error { return nil })

	require.NoError(t, err)
	assert.Equal(t, models.StopEmptyPage, out.Reason)
	assert.Equal(t, 20, out.Fetched)
}

func TestPaginatorPageCap(t *testing.T) {
	p := &Paginator{PageSize: 5, PageCap: 3, Log: testLogger()}

	out, err := p.Run(context.Background(), func(ctx context.Context, mode Mode, arg, size int) (models.Page, error) {
		return fullPage(5), nil
	}, func(models.Page) error { return nil })

	require.NoError(t, err)
	assert.Equal(t, models.StopPageCap, out.Reason)
	assert.Equal(t, 3, out.Pages)
	assert.Equal(t, 15, out.Fetched)
}

func TestPaginatorOffsetAndPageModeArgs(t *testing.T) {
	var offsetArgs []int
	p := &Paginator{Mode: ModeOffset, PageSize: 10, Log: testLogger()}
	_, err := p.Run(context.Background(), func(ctx context.Context, mode Mode, arg, size int) (models.Page, error) {
		offsetArgs = append(offsetArgs, arg)
		if len(offsetArgs) == 3 {
			return fullPage(1), nil
		}
		return fullPage(10), nil
	}, func(models.Page) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, []int{0, 10, 20}, offsetArgs)

	var pageArgs []int
	p = &Paginator{Mode: ModePage, PageSize: 10, Log: testLogger()}
	_, err = p.Run(context.Background(), func(ctx context.Context, mode Mode, arg, size int) (models.Page, error) {
		pageArgs = append(pageArgs, arg)
		if len(pageArgs) == 3 {
			return fullPage(1), nil
		}
		return fullPage(10), nil
	}, func(models.Page) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, pageArgs, "page mode is 1-based")
}

func TestPaginatorStartSkipsAhead(t *testing.T) {
	var offsetArgs []int
	p := &Paginator{Mode: ModeOffset, PageSize: 10, Start: 2, Log: testLogger()}
	_, err := p.Run(context.Background(), func(ctx context.Context, mode Mode, arg, size int) (models.Page, error) {
		offsetArgs = append(offsetArgs, arg)
		if len(offsetArgs) == 2 {
			return fullPage(1), nil
		}
		return fullPage(10), nil
	}, func(models.Page) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, []int{20, 30}, offsetArgs)
}

func TestPaginatorFallbackOnEmptyFirstPage(t *testing.T) {
	// Offset mode answers empty, page mode has the data.
	var modes []Mode
	p := &Paginator{Mode: ModeOffset, PageSize: 10, AllowFallback: true, Log: testLogger()}

	out, err := p.Run(context.Background(), func(ctx context.Context, mode Mode, arg, size int) (models.Page, error) {
		modes = append(modes, mode)
		if mode == ModeOffset {
			return models.Page{}, nil
		}
		if arg == 1 {
			return fullPage(4), nil
		}
		return models.Page{}, nil
	}, func(models.Page) error { return nil })

	require.NoError(t, err)
	assert.True(t, out.FellBack)
	assert.Equal(t, models.StopPartialPage, out.Reason)
	assert.Equal(t, 4, out.Fetched)
	assert.Equal(t, []Mode{ModeOffset, ModePage}, modes[:2])
}

func TestPaginatorNoFallbackWhenHasMoreFalse(t *testing.T) {
	// An empty first page with an explicit end-of-data marker is a real
	// empty result, not a pagination style mismatch.
	hasMore := false
	calls := 0
	p := &Paginator{Mode: ModeOffset, PageSize: 10, AllowFallback: true, Log: testLogger()}

	out, err := p.Run(context.Background(), func(ctx context.Context, mode Mode, arg, size int) (models.Page, error) {
		calls++
		return models.Page{HasMore: &hasMore}, nil
	}, func(models.Page) error { return nil })

	require.NoError(t, err)
	assert.False(t, out.FellBack)
	assert.Equal(t, models.StopEmptyPage, out.Reason)
	assert.Equal(t, 1, calls)
}

func TestPaginatorCancellationCheckpoint(t *testing.T) {
	fetchedPages := 0
	p := &Paginator{
		PageSize: 10,
		Log:      testLogger(),
		Checkpoint: func(ctx context.Context) bool {
			// Cancel once the first page has been delivered.
			return fetchedPages >= 1
		},
	}

	out, err := p.Run(context.Background(), func(ctx context.Context, mode Mode, arg, size int) (models.Page, error) {
		fetchedPages++
		return fullPage(10), nil
	}, func(models.Page) error { return nil })

	require.NoError(t, err)
	assert.Equal(t, models.StopCancelled, out.Reason)
	assert.Equal(t, 1, out.Pages, "no new page fetch begins after cancellation")
	assert.Equal(t, 10, out.Fetched, "in-flight page is kept, not discarded")
}

func TestPaginatorCancelledBeforeFirstFetch(t *testing.T) {
	p := &Paginator{
		PageSize:   10,
		Log:        testLogger(),
		Checkpoint: func(ctx context.Context) bool { return true },
	}

	out, err := p.Run(context.Background(), func(ctx context.Context, mode Mode, arg, size int) (models.Page, error) {
		t.Fatal("fetch must not run after a cancel signal")
		return models.Page{}, nil
	}, func(models.Page) error { return nil })

	require.NoError(t, err)
	assert.Equal(t, models.StopCancelled, out.Reason)
	assert.Zero(t, out.Pages)
}

func TestPaginatorFetchError(t *testing.T) {
	boom := errors.New("status 404")
	p := &Paginator{PageSize: 10, Log: testLogger()}

	out, err := p.Run(context.Background(), func(ctx context.Context, mode Mode, arg, size int) (models.Page, error) {
		return models.Page{}, boom
	}, func(models.Page) error { return nil })

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, models.StopError, out.Reason)
}

func TestPaginatorSinkError(t *testing.T) {
	boom := errors.New("store gone")
	p := &Paginator{PageSize: 10, Log: testLogger()}

	out, err := p.Run(context.Background(), func(ctx context.Context, mode Mode, arg, size int) (models.Page, error) {
		return fullPage(10), nil
	}, func(models.Page) error { return boom })

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, models.StopError, out.Reason)
	assert.Zero(t, out.Fetched, "records of the failed page are not counted")
}

func TestPaginatorSkippedRecordsAccumulate(t *testing.T) {
	pages := []models.Page{
		{Records: fullPage(10).Records, Skipped: 2},
		{Records: fullPage(3).Records, Skipped: 1},
	}
	p := &Paginator{PageSize: 10, Log: testLogger()}

	out, err := p.Run(context.Background(), func(ctx context.Context, mode Mode, arg, size int) (models.Page, error) {
		return pages[arg/size], nil
	}, func(models.Page) error { return nil })

	require.NoError(t, err)
	assert.Equal(t, 3, out.Skipped)
	assert.Equal(t, 13, out.Fetched)
}
