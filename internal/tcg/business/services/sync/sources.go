package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"tcgsync_api/internal/tcg/business/models"
	"tcgsync_api/internal/tcg/business/models/dto/response"
	"tcgsync_api/internal/tcg/business/services/csvfeed"
	"tcgsync_api/internal/tcg/business/services/fetch"
	"tcgsync_api/metrics"
	"tcgsync_api/pkg/logger"
)

// Source produces one target's normalized records, page by page, and names
// the store they land in.
type Source interface {
	Op() string
	Run(ctx context.Context, target models.SyncTarget, hints PagingHints, checkpoint fetch.CheckpointFunc, sink func(models.Page) error) (fetch.Outcome, error)
	Store() RecordStore
}

// PagingConfig is shared by the paginated API sources.
type PagingConfig struct {
	PageSize int
	PageCap  int
}

// PagingHints are per-run overrides from the request. Zero values mean
// "use the configured defaults". Page is 1-based; sources that are not
// paginated ignore both.
type PagingHints struct {
	Page     int
	PageSize int
}

func (c PagingConfig) apply(h PagingHints) (size, start int) {
	size = c.PageSize
	if h.PageSize > 0 {
		size = h.PageSize
	}
	if h.Page > 1 {
		start = h.Page - 1
	}
	return size, start
}

// GroupSource pages through a category's groups (card sets).
type GroupSource struct {
	fetcher *fetch.Fetcher
	baseURL string
	paging  PagingConfig
	store   RecordStore
	lg      logger.Logger
}

func NewGroupSource(fetcher *fetch.Fetcher, baseURL string, paging PagingConfig, store RecordStore, lg logger.Logger) *GroupSource {
	return &GroupSource{fetcher: fetcher, baseURL: baseURL, paging: paging, store: store, lg: lg}
}

func (s *GroupSource) Op() string         { return models.OpGroups }
func (s *GroupSource) Store() RecordStore { return s.store }

func (s *GroupSource) Run(ctx context.Context, target models.SyncTarget, hints PagingHints, checkpoint fetch.CheckpointFunc, sink func(models.Page) error) (fetch.Outcome, error) {
	size, start := s.paging.apply(hints)
	paginator := &fetch.Paginator{
		Mode:          fetch.ModeOffset,
		PageSize:      size,
		PageCap:       s.paging.PageCap,
		Start:         start,
		AllowFallback: true,
		Checkpoint:    checkpoint,
		Log:           s.lg,
	}
	return paginator.Run(ctx, func(ctx context.Context, mode fetch.Mode, arg, size int) (models.Page, error) {
		url := fmt.Sprintf("%s/catalog/categories/%s/groups?%s",
			s.baseURL, target.ExternalID, pagingQuery(mode, arg, size))
		return fetchCatalogPage(ctx, s.fetcher, s.lg, models.OpGroups, url, func(raw json.RawMessage) (models.Record, bool) {
			var dto response.Group
			if err := json.Unmarshal(raw, &dto); err != nil {
				return models.Record{}, false
			}
			return dto.ToRecord(target.ExternalID)
		})
	}, sink)
}

// ProductSource pages through a group's products (cards).
type ProductSource struct {
	fetcher *fetch.Fetcher
	baseURL string
	paging  PagingConfig
	store   RecordStore
	lg      logger.Logger
}

func NewProductSource(fetcher *fetch.Fetcher, baseURL string, paging PagingConfig, store RecordStore, lg logger.Logger) *ProductSource {
	return &ProductSource{fetcher: fetcher, baseURL: baseURL, paging: paging, store: store, lg: lg}
}

func (s *ProductSource) Op() string         { return models.OpProducts }
func (s *ProductSource) Store() RecordStore { return s.store }

func (s *ProductSource) Run(ctx context.Context, target models.SyncTarget, hints PagingHints, checkpoint fetch.CheckpointFunc, sink func(models.Page) error) (fetch.Outcome, error) {
	size, start := s.paging.apply(hints)
	paginator := &fetch.Paginator{
		Mode:          fetch.ModeOffset,
		PageSize:      size,
		PageCap:       s.paging.PageCap,
		Start:         start,
		AllowFallback: true,
		Checkpoint:    checkpoint,
		Log:           s.lg,
	}
	return paginator.Run(ctx, func(ctx context.Context, mode fetch.Mode, arg, size int) (models.Page, error) {
		url := fmt.Sprintf("%s/catalog/products?groupId=%s&%s",
			s.baseURL, target.ExternalID, pagingQuery(mode, arg, size))
		return fetchCatalogPage(ctx, s.fetcher, s.lg, models.OpProducts, url, func(raw json.RawMessage) (models.Record, bool) {
			var dto response.Product
			if err := json.Unmarshal(raw, &dto); err != nil {
				return models.Record{}, false
			}
			return dto.ToRecord(target.ExternalID, target.CategoryID)
		})
	}, sink)
}

// PriceSource pulls a group's whole CSV price feed as a single page.
type PriceSource struct {
	feed  *csvfeed.PriceFeed
	store RecordStore
	lg    logger.Logger
}

func NewPriceSource(feed *csvfeed.PriceFeed, store RecordStore, lg logger.Logger) *PriceSource {
	return &PriceSource{feed: feed, store: store, lg: lg}
}

func (s *PriceSource) Op() string         { return models.OpPrices }
func (s *PriceSource) Store() RecordStore { return s.store }

func (s *PriceSource) Run(ctx context.Context, target models.SyncTarget, _ PagingHints, checkpoint fetch.CheckpointFunc, sink func(models.Page) error) (fetch.Outcome, error) {
	if checkpoint != nil && checkpoint(ctx) {
		return fetch.Outcome{Reason: models.StopCancelled}, nil
	}

	page, err := s.feed.GroupPrices(ctx, target.CategoryID, target.ExternalID)
	if err != nil {
		if models.IsDataQuality(err) {
			// "Nothing to sync" must stay distinguishable from "sync broke".
			s.lg.Warn("price feed for group %s unusable: %v", target.ExternalID, err)
			return fetch.Outcome{Pages: 1, Reason: models.StopEmptyPage}, nil
		}
		return fetch.Outcome{Reason: models.StopError}, err
	}

	metrics.RecordPageFetched(models.OpPrices)
	if len(page.Records) == 0 {
		return fetch.Outcome{Pages: 1, Skipped: page.Skipped, Reason: models.StopEmptyPage}, nil
	}
	if err := sink(page); err != nil {
		return fetch.Outcome{Pages: 1, Reason: models.StopError}, err
	}
	return fetch.Outcome{
		Pages:   1,
		Fetched: len(page.Records),
		Skipped: page.Skipped,
		Reason:  models.StopFeedComplete,
	}, nil
}

func pagingQuery(mode fetch.Mode, arg, size int) string {
	if mode == fetch.ModePage {
		return fmt.Sprintf("page=%d&pageSize=%d", arg, size)
	}
	return fmt.Sprintf("offset=%d&limit=%d", arg, size)
}

// fetchCatalogPage fetches one JSON page, extracts its envelope, and decodes
// records, counting the rows the decoder rejected. An unparseable body is a
// data-quality outcome: an empty page, logged, never a failure.
func fetchCatalogPage(ctx context.Context, fetcher *fetch.Fetcher, lg logger.Logger, op, url string, decode func(json.RawMessage) (models.Record, bool)) (models.Page, error) {
	body, err := fetcher.Fetch(ctx, op, url)
	if err != nil {
		return models.Page{}, err
	}

	env, err := fetch.ExtractEnvelope(body, lg)
	if err != nil {
		lg.Warn("%s response from %s unusable: %v", op, url, err)
		return models.Page{}, nil
	}

	metrics.RecordPageFetched(op)
	page := models.Page{
		Records:       make([]models.Record, 0, len(env.Records)),
		HasMore:       env.HasMore,
		ReportedTotal: env.Total,
	}
	for _, raw := range env.Records {
		rec, ok := decode(raw)
		if !ok {
			page.Skipped++
			continue
		}
		page.Records = append(page.Records, rec)
	}
	if page.Skipped > 0 {
		lg.Warn("%s page from %s: skipped %d records missing id or name", op, url, page.Skipped)
	}
	return page, nil
}
