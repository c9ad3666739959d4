// Package app wires configuration, clients, caches, storage and services
// into the runnable holdwise application shared by every CLI command.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/bobmcallan/holdwise/internal/cache"
	"github.com/bobmcallan/holdwise/internal/clients/eodhd"
	"github.com/bobmcallan/holdwise/internal/clients/gemini"
	"github.com/bobmcallan/holdwise/internal/clients/openfigi"
	"github.com/bobmcallan/holdwise/internal/clients/secindex"
	"github.com/bobmcallan/holdwise/internal/common"
	"github.com/bobmcallan/holdwise/internal/filings"
	"github.com/bobmcallan/holdwise/internal/interfaces"
	"github.com/bobmcallan/holdwise/internal/metrics"
	"github.com/bobmcallan/holdwise/internal/models"
	"github.com/bobmcallan/holdwise/internal/refdata"
	"github.com/bobmcallan/holdwise/internal/services/diff"
	"github.com/bobmcallan/holdwise/internal/services/enrich"
	"github.com/bobmcallan/holdwise/internal/services/resolver"
	"github.com/bobmcallan/holdwise/internal/services/run"
	"github.com/bobmcallan/holdwise/internal/storage"
)

// App holds all initialized services, clients and storage.
type App struct {
	Config   *common.Config
	Logger   *common.Logger
	Metrics  *metrics.Metrics
	Store    interfaces.SnapshotStore
	Filings  *filings.Store
	Resolver *resolver.Service
	Enricher *enrich.Service
	Runner   *run.Service
	Differ   *diff.Service

	redis         *redis.Client
	metricsServer *http.Server
	startupTime   time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath returns configPath, HOLDWISE_CONFIG, holdwise.toml
// next to the binary, or config/holdwise.toml, in that order.
func ResolveConfigPath(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("HOLDWISE_CONFIG"); env != "" {
		return env
	}
	path := filepath.Join(getBinaryDir(), "holdwise.toml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return "config/holdwise.toml"
}

// NewApp loads configuration and builds the application.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := common.NewLoggerFromConfig(config.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return New(ctx, config, logger)
}

// New builds the application from an already loaded config.
func New(ctx context.Context, config *common.Config, logger *common.Logger) (*App, error) {
	a := &App{
		Config:      config,
		Logger:      logger,
		Metrics:     metrics.New(),
		startupTime: time.Now(),
	}

	store, err := storage.NewSnapshotStore(ctx, config.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.Store = store

	resolveCache, enrichCache, err := a.caches(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	tables := refdata.Default()
	a.Filings = filings.NewStore(config.Run.FilingsDir, logger)
	a.Resolver = a.newResolver(resolveCache, tables)
	a.Enricher = a.newEnricher(ctx, enrichCache, tables)
	a.Runner = run.NewService(a.Filings, a.Resolver, a.Enricher, logger,
		run.WithStore(a.Store),
		run.WithWorkers(config.Run.Workers),
		run.WithMetrics(a.Metrics),
	)
	a.Differ = diff.NewService(a.Store, config.Run.MaterialityThreshold, logger)

	logger.Debug().
		Str("storage", config.Storage.Backend).
		Str("cache", config.Cache.Backend).
		Dur("startup", time.Since(a.startupTime)).
		Msg("Application initialized")
	return a, nil
}

// caches builds the resolution and enrichment caches on the configured backend.
func (a *App) caches(ctx context.Context) (cache.Store[string], cache.Store[models.Attributes], error) {
	var (
		resolveStore cache.Store[string]
		enrichStore  cache.Store[models.Attributes]
	)
	switch a.Config.Cache.Backend {
	case "redis":
		client, err := cache.NewRedisClient(ctx, a.Config.Cache.RedisAddr, a.Config.Cache.RedisDB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
		a.redis = client
		resolveStore = cache.NewRedisStore[string](client, "holdwise:resolve", a.Logger)
		enrichStore = cache.NewRedisStore[models.Attributes](client, "holdwise:enrich", a.Logger)
	default:
		resolveStore = cache.NewMemoryStore[string]()
		enrichStore = cache.NewMemoryStore[models.Attributes]()
	}
	return cache.NewInstrumented(resolveStore, "resolve", a.Metrics),
		cache.NewInstrumented(enrichStore, "enrich", a.Metrics),
		nil
}

func (a *App) newResolver(c cache.Store[string], tables *refdata.Tables) *resolver.Service {
	cfg := a.Config
	figi := openfigi.NewClient(cfg.Clients.OpenFIGI.APIKey,
		openfigi.WithBaseURL(cfg.Clients.OpenFIGI.BaseURL),
		openfigi.WithLogger(a.Logger),
		openfigi.WithRequestsPerMinute(cfg.Resolver.RequestsPerMinute),
		openfigi.WithTimeout(cfg.Resolver.GetCallTimeout()),
	)
	sec := secindex.NewClient(cfg.Clients.SEC.UserAgent,
		secindex.WithTickersURL(cfg.Clients.SEC.TickersURL),
		secindex.WithLogger(a.Logger),
		secindex.WithTimeout(cfg.Clients.SEC.GetTimeout()),
	)
	return resolver.NewService(a.Logger,
		resolver.WithMapper(figi),
		resolver.WithCompanyIndex(sec),
		resolver.WithCache(c),
		resolver.WithTables(tables),
		resolver.WithMetrics(a.Metrics),
		resolver.WithBatching(cfg.Resolver.BatchSize, cfg.Resolver.Attempts,
			cfg.Resolver.GetRetryDelay(), cfg.Resolver.GetCallTimeout()),
	)
}

func (a *App) newEnricher(ctx context.Context, c cache.Store[models.Attributes], tables *refdata.Tables) *enrich.Service {
	cfg := a.Config
	if cfg.Clients.EODHD.APIKey == "" {
		a.Logger.Warn().Msg("EODHD API key not configured - market attributes will be empty")
	}
	opts := []eodhd.ClientOption{
		eodhd.WithBaseURL(cfg.Clients.EODHD.BaseURL),
		eodhd.WithLogger(a.Logger),
		eodhd.WithRateLimit(cfg.Clients.EODHD.RateLimit),
		eodhd.WithTimeout(cfg.Clients.EODHD.GetTimeout()),
	}
	if cfg.Clients.EODHD.Exchange != "" {
		opts = append(opts, eodhd.WithExchange(cfg.Clients.EODHD.Exchange))
	}
	market := eodhd.NewClient(cfg.Clients.EODHD.APIKey, opts...)

	enrichOpts := []enrich.Option{
		enrich.WithCalendar(enrich.NewCalendar(cfg.Clients.EODHD.Calendar)),
		enrich.WithCache(c, cfg.Cache.GetEnrichmentTTL()),
		enrich.WithTables(tables),
		enrich.WithMetrics(a.Metrics),
	}
	if cfg.Clients.Gemini.APIKey != "" {
		esg, err := gemini.NewClient(ctx, cfg.Clients.Gemini.APIKey,
			gemini.WithModel(cfg.Clients.Gemini.Model),
			gemini.WithLogger(a.Logger),
		)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Gemini client unavailable - ESG scores disabled")
		} else {
			enrichOpts = append(enrichOpts, enrich.WithESGProvider(esg))
		}
	}
	return enrich.NewService(market, a.Logger, enrichOpts...)
}

// RunOptions override the configured run settings for one invocation.
type RunOptions struct {
	QuarterEnd time.Time
	TopN       int
	Label      string
	Persist    bool
}

// RunRequest builds a run request for the configured managers.
func (a *App) RunRequest(opts RunOptions) models.RunRequest {
	req := models.RunRequest{
		QuarterEnd: opts.QuarterEnd,
		TopN:       opts.TopN,
		Label:      opts.Label,
		Persist:    opts.Persist,
	}
	if req.QuarterEnd.IsZero() {
		req.QuarterEnd = a.Config.Run.GetQuarterEnd(time.Now())
	}
	if req.TopN == 0 {
		req.TopN = a.Config.Run.TopN
	}
	if req.Label == "" {
		req.Label = a.Config.Run.Label
	}
	for _, m := range a.Config.Managers {
		req.Managers = append(req.Managers, models.ManagerInput{Name: m.Name, CIK: m.CIK, Weight: m.Weight})
	}
	return req
}

// StartMetricsServer serves Prometheus metrics when an address is configured.
func (a *App) StartMetricsServer() {
	addr := a.Config.Metrics.Addr
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	a.metricsServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.Logger.Info().Str("addr", addr).Msg("Metrics server listening")
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
}

// Close releases storage, cache and the metrics listener.
func (a *App) Close() {
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.metricsServer.Shutdown(ctx)
		cancel()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close snapshot store")
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
