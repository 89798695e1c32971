package app

import (
	"fmt"
	"io"
	"net/http"

	"tcgsync_api/config"
	"tcgsync_api/internal/tcg/app/web"
	"tcgsync_api/internal/tcg/app/web/handlers"
	"tcgsync_api/internal/tcg/business/models"
	"tcgsync_api/internal/tcg/business/services/csvfeed"
	"tcgsync_api/internal/tcg/business/services/fetch"
	syncsvc "tcgsync_api/internal/tcg/business/services/sync"
	"tcgsync_api/internal/tcg/storage"
	"tcgsync_api/migrations/catalog"
	"tcgsync_api/pkg/dbconnect"
	"tcgsync_api/pkg/dbconnect/migration"
	"tcgsync_api/pkg/logger"
	"tcgsync_api/pkg/pool"
	"tcgsync_api/pkg/retry"
)

// SyncServer wires the whole catalog sync service: database, migrations,
// repositories, the fetch/persist pipeline and the HTTP API.
type SyncServer struct {
	dbconnect.Database
	cfg *config.AppConfig
	log logger.Logger
}

func NewSyncServer(connector dbconnect.Database, cfg *config.AppConfig, writer io.Writer) *SyncServer {
	return &SyncServer{
		Database: connector,
		cfg:      cfg,
		log:      logger.NewLogger(writer, "[SyncServer] "),
	}
}

// Run applies migrations, builds the pipeline and serves the API. It blocks
// until the listener fails.
func (s *SyncServer) Run() error {
	db, err := s.Connect()
	if err != nil {
		return fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	defer db.Close()

	err = migration.Apply(db,
		&catalog.MigrationsSchema{},
		&catalog.TcgSchema{},
		&catalog.SyncSchema{},
		&catalog.TcgGroupsTable{},
		&catalog.TcgProductsTable{},
		&catalog.TcgPricesTable{},
		&catalog.SyncStatusTable{},
		&catalog.ControlSignalsTable{},
	)
	if err != nil {
		return err
	}
	s.log.Log("catalog migrations applied successfully")

	groupRepo := storage.NewGroupRepository(db)
	productRepo := storage.NewProductRepository(db)
	priceRepo := storage.NewPriceRepository(db)
	statusRepo := storage.NewStatusRepository(db, s.cfg.Sync.StuckAfter)
	signalRepo := storage.NewSignalRepository(db)

	fetcher := fetch.NewFetcher(s.cfg.Provider, s.cfg.Sync, s.log)
	feed := csvfeed.NewPriceFeed(fetcher, s.cfg.Provider.CSVBaseURL, s.cfg.Provider.CSVEncoding, s.log)
	limiter := pool.NewLimiter(s.cfg.Sync.FetchSlots, s.cfg.Sync.PersistSlots)

	tracker := syncsvc.NewTracker(statusRepo, s.log)
	tracker.RegisterCounter(models.OpGroups, groupRepo)
	tracker.RegisterCounter(models.OpProducts, productRepo)
	tracker.RegisterCounter(models.OpPrices, priceRepo)

	batcher := syncsvc.NewBatcher(s.cfg.Sync.ChunkSize, retry.Policy{
		Attempts:  s.cfg.Sync.RetryAttempts,
		BaseDelay: s.cfg.Sync.RetryBaseDelay,
		Jitter:    true,
		Retryable: models.IsTransient,
	}, limiter, s.log)

	orchestrator := syncsvc.NewOrchestrator(
		limiter,
		syncsvc.NewMonitor(signalRepo, s.log),
		tracker,
		batcher,
		s.log,
	)

	paging := syncsvc.PagingConfig{PageSize: s.cfg.Sync.PageSize, PageCap: s.cfg.Sync.PageCap}
	sources := []syncsvc.Source{
		syncsvc.NewGroupSource(fetcher, s.cfg.Provider.BaseURL, paging, groupRepo, s.log),
		syncsvc.NewProductSource(fetcher, s.cfg.Provider.BaseURL, paging, productRepo, s.log),
		syncsvc.NewPriceSource(feed, priceRepo, s.log),
	}

	mux := http.NewServeMux()
	web.SetupRoutes(mux,
		handlers.NewSyncHandler(orchestrator, sources, groupRepo, s.log),
		handlers.NewControlHandler(signalRepo, tracker, s.log),
		handlers.NewHealthHandler(db),
	)

	s.log.Log("sync service listening on %s", s.cfg.Server.Addr)
	return http.ListenAndServe(s.cfg.Server.Addr, mux)
}
