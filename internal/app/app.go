// Package app provides the application lifecycle management for the
// content generation service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/Papalexios/ai-seo-rank/internal/ai"
	"github.com/Papalexios/ai-seo-rank/internal/api"
	"github.com/Papalexios/ai-seo-rank/internal/assemble"
	"github.com/Papalexios/ai-seo-rank/internal/cache"
	"github.com/Papalexios/ai-seo-rank/internal/config"
	"github.com/Papalexios/ai-seo-rank/internal/database"
	"github.com/Papalexios/ai-seo-rank/internal/images"
	"github.com/Papalexios/ai-seo-rank/internal/jsonrepair"
	"github.com/Papalexios/ai-seo-rank/internal/logger"
	"github.com/Papalexios/ai-seo-rank/internal/metrics"
	"github.com/Papalexios/ai-seo-rank/internal/orchestrator"
	"github.com/Papalexios/ai-seo-rank/internal/references"
	"github.com/Papalexios/ai-seo-rank/internal/schema"
	"github.com/Papalexios/ai-seo-rank/internal/serp"
	"github.com/Papalexios/ai-seo-rank/internal/video"
	"github.com/Papalexios/ai-seo-rank/internal/wordpress"
)

// App represents the service with all its dependencies.
type App struct {
	config      *config.Config
	logger      logger.Logger
	redisClient *redis.Client
	db          *sqlx.DB
	httpServer  *http.Server
	version     string
}

// Options contains configuration for creating a new App.
type Options struct {
	ConfigPath string
	Version    string
}

// New creates a new App instance with all dependencies initialized.
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	appLogger = appLogger.With(
		logger.String("service", "contentforge"),
		logger.String("version", opts.Version),
	)

	a := &App{
		config:  cfg,
		logger:  appLogger,
		version: opts.Version,
	}

	store, err := a.buildCache()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	pipelineMetrics := metrics.New(registry)

	router := ai.NewRouter(a.buildProviders(), store, ai.RouterConfig{
		OnProviderCall: func(provider, outcome string) {
			pipelineMetrics.ProviderCalls.WithLabelValues(provider, outcome).Inc()
		},
	}, appLogger)

	search, err := serp.NewClient(cfg.Search.BaseURL, cfg.Search.SerperAPIKey, appLogger)
	if err != nil {
		return nil, fmt.Errorf("create search client: %w", err)
	}

	wp, err := wordpress.NewClient(cfg.WordPress.URL, cfg.WordPress.Username, cfg.WordPress.AppPassword, appLogger)
	if err != nil {
		return nil, fmt.Errorf("create wordpress client: %w", err)
	}

	uploader, err := a.buildUploadChain(wp)
	if err != nil {
		return nil, err
	}
	uploader.WithObserver(func(layer string) {
		pipelineMetrics.UploadsByLayer.WithLabelValues(layer).Inc()
	})

	parser := jsonrepair.New(appLogger).WithObserver(func(tier, outcome string) {
		pipelineMetrics.JSONRepairs.WithLabelValues(tier, outcome).Inc()
	})

	history, err := a.buildHistory()
	if err != nil {
		return nil, err
	}
	var historyRecorder orchestrator.HistoryRecorder
	var historyReader api.HistoryReader
	if history != nil {
		historyRecorder = history
		historyReader = history
	}

	itemStore := api.NewStore()

	pipeline := orchestrator.New(orchestrator.Config{
		Provider:            cfg.Providers.Selected,
		NLPAnalysis:         cfg.Pipeline.NLPAnalysis,
		SiteName:            cfg.Pipeline.SiteName,
		SiteURL:             cfg.Pipeline.SiteURL,
		AuthorName:          cfg.Pipeline.AuthorName,
		GenerateConcurrency: cfg.Pipeline.GenerateConcurrency,
		PublishConcurrency:  cfg.Pipeline.PublishConcurrency,
	}, orchestrator.Deps{
		Router:    router,
		Parser:    parser,
		ImageGen:  a.buildImageGen(),
		Uploader:  uploader,
		Refs:      references.New(search, appLogger),
		Videos:    video.New(search, appLogger),
		Assembler: assemble.New(appLogger),
		Schema:    schema.New(appLogger),
		CMS:       wp,
		History:   historyRecorder,
		Metrics:   pipelineMetrics,
		Sink:      itemStore,
		Logger:    appLogger,
	})

	handlers := api.NewHandlers(pipeline, itemStore, historyReader, appLogger, opts.Version)
	a.httpServer = api.NewRouter(handlers, registry, cfg.Debug).NewServer(cfg.Server.Address)
	a.httpServer.ReadTimeout = cfg.Server.ReadTimeout
	a.httpServer.WriteTimeout = cfg.Server.WriteTimeout

	return a, nil
}

// buildProviders assembles the configured provider set; unset keys are
// simply absent and the router falls back over the rest.
func (a *App) buildProviders() []ai.Provider {
	p := a.config.Providers
	var providers []ai.Provider
	if p.Gemini.APIKey != "" {
		providers = append(providers, ai.NewGemini(p.Gemini.BaseURL, p.Gemini.APIKey, p.Gemini.Model))
	}
	if p.OpenAI.APIKey != "" {
		providers = append(providers, ai.NewOpenAI(p.OpenAI.BaseURL, p.OpenAI.APIKey, p.OpenAI.Model))
	}
	if p.Anthropic.APIKey != "" {
		providers = append(providers, ai.NewAnthropic(p.Anthropic.BaseURL, p.Anthropic.APIKey, p.Anthropic.Model))
	}
	if p.OpenRouter.APIKey != "" {
		providers = append(providers, ai.NewOpenRouter(p.OpenRouter.BaseURL, p.OpenRouter.APIKey, p.OpenRouter.Models, a.logger))
	}

	names := make([]string, len(providers))
	for i, provider := range providers {
		names[i] = provider.Name()
	}
	a.logger.Info("providers configured", logger.Strings("providers", names))
	return providers
}

func (a *App) buildImageGen() orchestrator.ImageGenerator {
	key := a.config.Providers.Gemini.APIKey
	if key == "" {
		a.logger.Warn("no gemini api key, image generation disabled")
		return nil
	}
	return ai.NewGeminiImage(a.config.Providers.Gemini.BaseURL, key, a.config.Providers.ImageModel)
}

func (a *App) buildCache() (cache.Store, error) {
	if !a.config.Redis.Enabled {
		a.logger.Info("using in-memory response cache")
		return cache.NewMemory(), nil
	}

	client, err := cache.NewRedisClient(a.config.Redis.Addr, a.config.Redis.Password, a.config.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}
	a.redisClient = client
	a.logger.Info("using redis response cache", logger.String("addr", a.config.Redis.Addr))
	return cache.NewRedis(client), nil
}

// buildUploadChain wires the three-layer image publishing chain. Only
// the direct CMS layer is mandatory.
func (a *App) buildUploadChain(wp *wordpress.Client) (*images.Chain, error) {
	var relay images.RelayUploader
	if endpoint := a.config.Images.RelayEndpoint; endpoint != "" {
		client, err := images.NewRelayClient(images.RelayConfig{
			Endpoint:       endpoint,
			DestinationURL: a.config.WordPress.URL,
			Username:       a.config.WordPress.Username,
			AppPassword:    a.config.WordPress.AppPassword,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("create relay uploader: %w", err)
		}
		relay = client
	}

	var host images.HostUploader
	if endpoint := a.config.Images.HostEndpoint; endpoint != "" {
		client, err := images.NewHostClient(images.HostConfig{
			Endpoint: endpoint,
			APIKey:   a.config.Images.HostAPIKey,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("create host uploader: %w", err)
		}
		host = client
	}

	return images.NewChain(wp, relay, host, a.logger), nil
}

// buildHistory connects the optional run-history store. api.HistoryReader
// is satisfied by the concrete repository; a nil return disables both
// recording and the history endpoints.
func (a *App) buildHistory() (*database.HistoryRepository, error) {
	if !a.config.Database.Enabled {
		a.logger.Info("run history disabled, no database configured")
		return nil, nil
	}

	db, err := database.NewPostgresConnection(database.Config{
		Host:     a.config.Database.Host,
		Port:     strconv.Itoa(a.config.Database.Port),
		User:     a.config.Database.User,
		Password: a.config.Database.Password,
		DBName:   a.config.Database.DBName,
		SSLMode:  a.config.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.db = db
	return database.NewHistoryRepository(db), nil
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("starting http server",
			logger.String("address", a.config.Server.Address),
			logger.Bool("debug", a.config.Debug),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	return a.waitForShutdown(ctx, serverErr)
}

// waitForShutdown handles graceful shutdown.
func (a *App) waitForShutdown(ctx context.Context, serverErr chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutting down gracefully", logger.String("signal", sig.String()))
	case <-ctx.Done():
		a.logger.Info("shutting down, context cancelled")
	case err := <-serverErr:
		a.logger.Error("server error", logger.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", logger.Error(err))
		return err
	}
	a.logger.Info("http server stopped")
	return nil
}

// Close cleans up resources.
func (a *App) Close() error {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis client", logger.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", logger.Error(err))
		}
	}
	return a.logger.Sync()
}

// Logger returns the application logger.
func (a *App) Logger() logger.Logger {
	return a.logger
}
