// Package server provides the core application server and dependency wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/JakeFAU/webtools/internal/acquire"
	"github.com/JakeFAU/webtools/internal/api"
	"github.com/JakeFAU/webtools/internal/clock/system"
	"github.com/JakeFAU/webtools/internal/config"
	"github.com/JakeFAU/webtools/internal/content"
	collyfetcher "github.com/JakeFAU/webtools/internal/fetcher/colly"
	"github.com/JakeFAU/webtools/internal/logging"
	"github.com/JakeFAU/webtools/internal/mcpserver"
	"github.com/JakeFAU/webtools/internal/metrics"
	"github.com/JakeFAU/webtools/internal/ratelimit"
	"github.com/JakeFAU/webtools/internal/search"
	"github.com/JakeFAU/webtools/internal/tools"
)

// Transports accepted by Run.
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	limiter   *ratelimit.Limiter
	registry  *tools.Registry
	mcp       *mcp.Server
	apiServer *api.Server
}

// Build creates the application's dependencies.
func Build(cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return build(cfg, logger)
}

func build(cfg config.Config, logger *zap.Logger) (*App, error) {
	// Only non-sensitive fields are logged.
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.Bool("search_default_endpoint", cfg.Search.DefaultBaseURL != ""),
	)
	metrics.Init()

	limiter, err := setupLimiter(cfg, logger)
	if err != nil {
		return nil, err
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:      cfg.HTTP.UserAgent,
		AcceptLanguage: cfg.HTTP.AcceptLanguage,
		Timeout:        config.Seconds(cfg.HTTP.FetchTimeoutSeconds),
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
	}, logger)

	acq := acquire.New(fetcher, limiter, acquire.Config{
		FetchTimeout:     config.Seconds(cfg.HTTP.FetchTimeoutSeconds),
		MetadataTimeout:  config.Seconds(cfg.HTTP.MetadataTimeoutSeconds),
		FeedTimeout:      config.Seconds(cfg.HTTP.FeedTimeoutSeconds),
		SitemapTimeout:   config.Seconds(cfg.HTTP.SitemapTimeoutSeconds),
		BatchConcurrency: cfg.Batch.Concurrency,
	}, logger)
	logger.Info("acquisition service config",
		zap.Int("fetch_timeout_seconds", cfg.HTTP.FetchTimeoutSeconds),
		zap.Int("metadata_timeout_seconds", cfg.HTTP.MetadataTimeoutSeconds),
		zap.Int("feed_timeout_seconds", cfg.HTTP.FeedTimeoutSeconds),
		zap.Int("sitemap_timeout_seconds", cfg.HTTP.SitemapTimeoutSeconds),
		zap.Int("batch_concurrency", cfg.Batch.Concurrency),
	)

	srch := search.New(fetcher, limiter, acq, search.Config{
		DefaultBaseURL:   cfg.Search.DefaultBaseURL,
		Timeout:          config.Seconds(cfg.HTTP.SearchTimeoutSeconds),
		FetchConcurrency: cfg.Search.FetchConcurrency,
	}, logger)

	registry := tools.New(acq, srch, limiter, logger)
	mcpServer := mcpserver.New(registry, logger)
	apiServer := api.NewServer(
		registry,
		mcpserver.HTTPHandler(mcpServer),
		api.Config{RequestTimeout: config.Seconds(cfg.Server.RequestTimeoutSeconds)},
		logger.Named("api"),
	)

	return &App{
		cfg:       cfg,
		logger:    logger,
		limiter:   limiter,
		registry:  registry,
		mcp:       mcpServer,
		apiServer: apiServer,
	}, nil
}

func setupLimiter(cfg config.Config, logger *zap.Logger) (*ratelimit.Limiter, error) {
	limiter := ratelimit.New(system.New(), logger)
	classes := []struct {
		name  string
		class config.ClassConfig
	}{
		{content.ClassFetch, cfg.RateLimit.Fetch},
		{content.ClassSearch, cfg.RateLimit.Search},
	}
	for _, c := range classes {
		if err := limiter.Configure(c.name, c.class.MaxRequests, c.class.Window()); err != nil {
			return nil, fmt.Errorf("rate limiter init failed: %w", err)
		}
		logger.Info("rate limit class configured",
			zap.String("class", c.name),
			zap.Int("max_requests", c.class.MaxRequests),
			zap.Duration("window", c.class.Window()),
		)
	}
	return limiter, nil
}

// Registry exposes the tool registry.
func (a *App) Registry() *tools.Registry {
	return a.registry
}

// Handler returns the HTTP handler serving the API and /mcp.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves the chosen transport and blocks until the context is canceled
// or a termination signal arrives.
func (a *App) Run(ctx context.Context, transport string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch transport {
	case TransportStdio:
		a.logger.Info("mcp stdio transport started")
		err = mcpserver.RunStdio(ctx, a.mcp)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	case TransportHTTP, "":
		err = a.runHTTP(ctx, stop)
	default:
		err = fmt.Errorf("unknown transport %q", transport)
	}
	a.Close()
	return err
}

func (a *App) runHTTP(ctx context.Context, stop context.CancelFunc) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close flushes the logger.
func (a *App) Close() {
	a.logger.Info("shutdown complete")
	// Sync fails on terminals and pipes; the error carries no signal there.
	_ = a.logger.Sync()
}
