package main

import (
	"context"
	"errors"
	"fmt"

	catalogapp "github.com/china-facil/chinafacil-backend-sub000/internal/application/catalog"
	"github.com/china-facil/chinafacil-backend-sub000/internal/application/ingestion"
	"github.com/china-facil/chinafacil-backend-sub000/internal/application/jobadmin"
	"github.com/china-facil/chinafacil-backend-sub000/internal/application/search"
	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/cache"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/config"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/ecommerce"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/event"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/persistence"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/queue"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/scheduler"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// application holds the services and background workers of one process
type application struct {
	products *persistence.GormPopularProductRepository
	jobs     *queue.GormJobRepository

	catalog    *catalogapp.CatalogService
	jobAdmin   *jobadmin.JobService
	aggregator *search.Aggregator

	bus        *event.InMemoryEventBus
	dispatcher *queue.Dispatcher
	janitor    *queue.Janitor
	refresh    *ingestion.RefreshScheduler
	cron       *scheduler.CronTrigger

	cfg    *config.Config
	logger *zap.Logger
}

func newApplication(cfg *config.Config, db *gorm.DB, stores *cache.Stores, metrics *telemetry.PipelineMetrics, log *zap.Logger) (*application, error) {
	domesticClient, internationalClient, err := newMarketplaceClients(cfg.Marketplace, log)
	if err != nil {
		return nil, err
	}
	domestic := telemetry.TraceClient(domesticClient)
	var international marketplace.Client
	if internationalClient != nil {
		international = telemetry.TraceClient(internationalClient)
	}

	app := &application{
		products: persistence.NewGormPopularProductRepository(db),
		jobs:     queue.NewGormJobRepository(db),
		bus:      event.NewInMemoryEventBus(log),
		cfg:      cfg,
		logger:   log,
	}

	// Event subscribers
	app.bus.Subscribe(event.NewCatalogMetricsHandler(metrics))
	app.bus.Subscribe(event.NewSearchCacheInvalidator(stores.Search, log))

	// Queue
	enqueuer := queue.NewEnqueuer(app.jobs, stores.Idempotency, queue.EnqueuerConfig{DedupeTTL: cfg.Queue.DedupeTTL}, log)
	enqueuer.SetObserver(metrics)

	app.dispatcher = queue.NewDispatcher(app.jobs, queue.DispatcherConfig{
		PollInterval: cfg.Queue.PollInterval,
		JobTimeout:   cfg.Queue.JobTimeout,
	}, log)
	app.dispatcher.SetObserver(metrics)

	app.janitor = queue.NewJanitor(app.jobs, queue.JanitorConfig{
		Interval:           cfg.Queue.JanitorInterval,
		StaleLockTimeout:   cfg.Queue.StaleLockTimeout,
		CompletedRetention: cfg.Queue.CompletedRetention,
	}, log)

	// Crawl pipeline
	pipeline := ingestion.Config{
		PageLimit:         cfg.Crawler.PageLimit,
		ContinuationDelay: cfg.Crawler.ContinuationDelay,
		CategoryAttempts:  cfg.Crawler.CategoryAttempts,
		CategoryBackoff:   cfg.Crawler.CategoryBackoff,
		UpsertAttempts:    cfg.Crawler.UpsertAttempts,
		UpsertBackoff:     cfg.Crawler.UpsertBackoff,
	}
	pagerOpts := []ingestion.PaginatorOption{ingestion.WithPaginatorRecorder(metrics)}
	if cfg.Crawler.SourceMatchingEnabled {
		if international == nil {
			log.Warn("Source matching enabled but the international marketplace is not configured; skipping")
		} else {
			pagerOpts = append(pagerOpts, ingestion.WithSourceFinder(
				ingestion.NewSourceMatcher(international, ingestion.SourceMatcherConfig{}),
			))
		}
	}

	handlers := []struct {
		jobType     string
		handler     queue.Handler
		concurrency int
	}{
		{ingestion.JobTypeCatalog, ingestion.NewOrchestrator(domestic, enqueuer, pipeline, log).Handle, cfg.Queue.OrchestratorWorkers},
		{ingestion.JobTypeCategory, ingestion.NewPaginator(domestic, enqueuer, pipeline, log, pagerOpts...).Handle, cfg.Queue.PaginatorWorkers},
		{ingestion.JobTypeUpsert, ingestion.NewUpsertWorker(app.products, app.bus, metrics, log).Handle, cfg.Queue.UpsertWorkers},
		{ingestion.JobTypeRefresh, ingestion.NewRefresher(domestic, app.products, app.bus, metrics, log).Handle, cfg.Queue.RefreshWorkers},
	}
	for _, h := range handlers {
		if err := app.dispatcher.Register(h.jobType, telemetry.TraceJobs(h.handler), h.concurrency); err != nil {
			return nil, fmt.Errorf("register %s handler: %w", h.jobType, err)
		}
	}

	// Schedules
	if cfg.Crawler.RefreshEnabled {
		app.refresh = ingestion.NewRefreshScheduler(app.products, enqueuer, ingestion.RefreshSchedulerConfig{
			Interval:   cfg.Crawler.RefreshInterval,
			StaleAfter: cfg.Crawler.RefreshStaleAfter,
			BatchSize:  cfg.Crawler.RefreshBatchSize,
		}, log)
	}
	if cfg.Crawler.ScheduleEnabled {
		cronCfg := scheduler.DefaultCronTriggerConfig()
		cronCfg.Hour = cfg.Crawler.ScheduleHour
		cronCfg.Minute = cfg.Crawler.ScheduleMinute
		cronCfg.JobType = ingestion.JobTypeCatalog
		cronCfg.Payload = ingestion.CatalogJob{}
		cronCfg.Attempts = cfg.Crawler.CategoryAttempts
		cronCfg.Backoff = cfg.Crawler.CategoryBackoff
		app.cron, err = scheduler.NewCronTrigger(cronCfg, enqueuer, log)
		if err != nil {
			return nil, fmt.Errorf("create crawl schedule: %w", err)
		}
	}

	// Services
	app.catalog = catalogapp.NewCatalogService(app.products, enqueuer, app.bus, catalogapp.Config{
		CrawlAttempts: cfg.Crawler.CategoryAttempts,
		CrawlBackoff:  cfg.Crawler.CategoryBackoff,
	}, log)
	app.jobAdmin = jobadmin.NewJobService(app.jobs, log)

	clients := []marketplace.Client{domestic}
	if international != nil {
		clients = append(clients, international)
	}
	app.aggregator = search.NewAggregator(clients, search.Config{
		CacheTTL:        cfg.Search.CacheTTL,
		ProviderTimeout: cfg.Search.ProviderTimeout,
	}, log, search.WithCache(stores.Search), search.WithRecorder(metrics))

	return app, nil
}

// newMarketplaceClients builds the upstream clients. The domestic marketplace
// feeds the crawl and is required, the international one is optional.
func newMarketplaceClients(cfg config.MarketplaceConfig, log *zap.Logger) (*ecommerce.DomesticClient, *ecommerce.InternationalClient, error) {
	domestic, err := ecommerce.NewDomesticClient(&ecommerce.DomesticConfig{
		Endpoint:  endpointOf(cfg.Domestic),
		AppKey:    cfg.Domestic.AppKey,
		AppSecret: cfg.Domestic.AppSecret,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("domestic marketplace: %w", err)
	}

	international, err := ecommerce.NewInternationalClient(&ecommerce.InternationalConfig{
		Endpoint:    endpointOf(cfg.International),
		InstanceKey: cfg.International.AppKey,
	})
	if errors.Is(err, ecommerce.ErrInternationalConfigMissingInstanceKey) {
		log.Warn("International marketplace not configured; search uses the domestic marketplace only")
		return domestic, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("international marketplace: %w", err)
	}
	return domestic, international, nil
}

func endpointOf(c config.MarketplaceEndpointConfig) ecommerce.Endpoint {
	return ecommerce.Endpoint{
		BaseURL:           c.BaseURL,
		TimeoutSeconds:    c.TimeoutSeconds,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
	}
}

func (a *application) start(ctx context.Context) error {
	if err := a.bus.Start(ctx); err != nil {
		return err
	}
	if err := a.dispatcher.Start(ctx); err != nil {
		return err
	}
	a.janitor.Start(ctx)
	if a.refresh != nil {
		a.refresh.Start(ctx)
	}
	if a.cron != nil {
		if err := a.cron.Start(ctx); err != nil {
			return err
		}
	}
	a.logger.Info("Background workers started",
		zap.Strings("job_types", a.dispatcher.JobTypes()),
		zap.Bool("crawl_schedule", a.cron != nil),
		zap.Bool("refresh_sweep", a.refresh != nil),
	)
	return nil
}

// stop halts producers before consumers so no new work lands mid-drain
func (a *application) stop(ctx context.Context) {
	if a.cron != nil {
		if err := a.cron.Stop(ctx); err != nil {
			a.logger.Warn("Cron trigger stop failed", zap.Error(err))
		}
	}
	if a.refresh != nil {
		a.refresh.Stop()
	}
	if err := a.dispatcher.Stop(ctx); err != nil {
		a.logger.Warn("Dispatcher stop failed", zap.Error(err))
	}
	a.janitor.Stop()
	if err := a.bus.Stop(ctx); err != nil {
		a.logger.Warn("Event bus stop failed", zap.Error(err))
	}
}
