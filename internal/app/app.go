package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/divtrack/internal/common"
	"github.com/ternarybob/divtrack/internal/eodhd"
	"github.com/ternarybob/divtrack/internal/handlers"
	"github.com/ternarybob/divtrack/internal/httpclient"
	"github.com/ternarybob/divtrack/internal/interfaces"
	"github.com/ternarybob/divtrack/internal/models"
	"github.com/ternarybob/divtrack/internal/services/assembler"
	"github.com/ternarybob/divtrack/internal/services/cache"
	"github.com/ternarybob/divtrack/internal/services/crawler"
	"github.com/ternarybob/divtrack/internal/services/dividends"
	"github.com/ternarybob/divtrack/internal/services/exchange"
	"github.com/ternarybob/divtrack/internal/services/export"
	"github.com/ternarybob/divtrack/internal/services/extractor"
	"github.com/ternarybob/divtrack/internal/services/normalizer"
	"github.com/ternarybob/divtrack/internal/services/prices"
	"github.com/ternarybob/divtrack/internal/services/resolver"
	"github.com/ternarybob/divtrack/internal/services/websearch"
	"github.com/ternarybob/divtrack/internal/storage/badger"
	"github.com/ternarybob/divtrack/internal/templates"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Pipeline
	Crawler   *crawler.Crawler
	Assembler *assembler.Assembler
	Prices    *prices.Fetcher
	Exporter  *export.CSVWriter

	// Run lifecycle
	DividendsService *dividends.Service
	Scheduler        *dividends.Scheduler

	// HTTP handlers
	DividendsHandler *handlers.DividendsHandler
}

// New wires every component from the configuration
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := badger.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.StorageManager = storageManager

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initHandlers(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	logger.Info().
		Bool("market_data", cfg.EODHD.APIKey != "").
		Bool("scheduler", cfg.Scheduler.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initServices() error {
	cfg := a.Config

	// One paced fetcher per remote site
	exchangePages := httpclient.NewFetcher(
		httpclient.WithHTTPClient(httpclient.NewDefaultHTTPClient(cfg.Exchange.RequestTimeout)),
		httpclient.WithRateLimit(cfg.Exchange.RateLimit),
		httpclient.WithLogger(a.Logger),
	)
	searchPages := httpclient.NewFetcher(
		httpclient.WithHTTPClient(httpclient.NewDefaultHTTPClient(cfg.Search.RequestTimeout)),
		httpclient.WithRateLimit(cfg.Search.RateLimit),
		httpclient.WithUserAgent(cfg.Search.UserAgent),
		httpclient.WithLogger(a.Logger),
	)
	blogPages := httpclient.NewFetcher(
		httpclient.WithHTTPClient(httpclient.NewDefaultHTTPClient(cfg.Blog.RequestTimeout)),
		httpclient.WithLogger(a.Logger),
	)

	exchangeClient := exchange.NewClient(exchangePages, cfg.Exchange, a.Logger)
	searchClient := websearch.NewClient(searchPages, cfg.Search, a.Logger)

	// Market data is optional; without a key prices and regions degrade to sentinels
	var market prices.MarketData
	if cfg.EODHD.APIKey != "" {
		market = eodhd.NewClient(cfg.EODHD.APIKey,
			eodhd.WithBaseURL(cfg.EODHD.BaseURL),
			eodhd.WithRateLimit(cfg.EODHD.RateLimit),
			eodhd.WithLogger(a.Logger),
		)
	} else {
		a.Logger.Warn().Msg("No EODHD API key configured, market data lookups disabled")
	}

	a.Prices = prices.NewFetcher(exchangeClient, searchClient, searchPages, market, cfg, a.Logger)

	overrides := map[string]resolver.Override{}
	if cfg.Resolver.OverridesFile != "" {
		loaded, err := resolver.LoadOverrides(cfg.Resolver.OverridesFile)
		if err != nil {
			return err
		}
		overrides = loaded
		a.Logger.Info().
			Str("path", cfg.Resolver.OverridesFile).
			Int("overrides", len(overrides)).
			Msg("Loaded manual overrides")
	}

	symbolResolver := resolver.New([]resolver.Strategy{
		resolver.NewManualStrategy(overrides),
		resolver.NewExchangeStrategy(exchangeClient, a.Prices, a.Logger),
		resolver.NewWebSearchStrategy(searchClient, searchPages, a.Prices, cfg, a.Logger),
		resolver.NewFallbackStrategy(a.Prices),
	}, cache.New[*models.ResolvedSymbol]("symbols", cfg.Cache.Capacity, a.Logger), a.Logger)

	var extractorOpts []extractor.Option
	if cfg.Output.ArtifactsDir != "" {
		extractorOpts = append(extractorOpts, extractor.WithArtifacts(extractor.NewFileArtifactWriter(cfg.Output.ArtifactsDir)))
	}

	a.Assembler = assembler.New(
		extractor.New(a.Logger, extractorOpts...),
		normalizer.New(cfg.Resolver),
		symbolResolver,
		a.Prices,
		a.Logger,
	)

	browser := crawler.NewChromeBrowser(crawler.ChromeBrowserConfig{
		Headless:        cfg.Blog.Headless,
		UserAgent:       cfg.Search.UserAgent,
		NavigateTimeout: cfg.Blog.NavigateTimeout,
	}, a.Logger)
	a.Crawler = crawler.New(cfg.Blog, browser, blogPages, a.Logger)

	a.Exporter = export.NewCSVWriter(cfg.Output.CSVPath, a.Logger)

	a.DividendsService = dividends.NewService(a.Crawler, a.Assembler, a.Exporter, a.StorageManager, cfg.Output, a.Logger,
		dividends.WithRunCaches(a.Prices, symbolResolver),
	)

	if cfg.Scheduler.Enabled {
		a.Scheduler = dividends.NewScheduler(a.DividendsService, 0, a.Logger)
		if err := a.Scheduler.Start(cfg.Scheduler.Schedule); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	return nil
}

func (a *App) initHandlers() error {
	page, err := templates.GetPage("index", a.Config.Server.TemplatesDir)
	if err != nil {
		return err
	}
	a.DividendsHandler = handlers.NewDividendsHandler(a.DividendsService, a.Config.Output.CSVPath, page, a.Logger)
	return nil
}

// Close stops the scheduler and closes storage
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
