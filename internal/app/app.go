package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"FinanceFlow/internal/config"
	"FinanceFlow/internal/domain"
	"FinanceFlow/internal/http/handler"
	"FinanceFlow/internal/http/router"
	"FinanceFlow/internal/infrastructure/llm"
	"FinanceFlow/internal/infrastructure/parser"
	"FinanceFlow/internal/infrastructure/quotes"
	"FinanceFlow/internal/infrastructure/scheduler"
	"FinanceFlow/internal/infrastructure/storage"
	"FinanceFlow/internal/infrastructure/telegram"
	"FinanceFlow/internal/logging"
	"FinanceFlow/internal/ports"
	"FinanceFlow/internal/scanner"
	"FinanceFlow/internal/telemetry"
	"FinanceFlow/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

var setupTelemetry = telemetry.Setup

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	telemetry  *telemetry.Telemetry
	cache      *storage.Cache
	pipeline   *usecase.Pipeline
	workingSet *usecase.WorkingSetCache
	scheduler  *usecase.Scheduler
	engine     *gin.Engine
}

// New builds the application. Optional collaborators (analysis service,
// persistent cache, Telegram, quotes) degrade with a log line instead of
// failing startup.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	tel, err := setupTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		baseLogger.Error("telemetry unavailable; continuing without trace export", "endpoint", cfg.Telemetry.Endpoint, "error", err)
		tel = nil
	}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewRSSScanner(nil, baseLogger.With("component", "scanner.rss")))
	registry.Register(parser.NewHTMLScanner(nil, baseLogger.With("component", "scanner.html")))
	source := parser.NewStrategySource(registry, cfg.Pipeline.MinBodyChars, baseLogger.With("component", "source"))

	cache := openCache(ctx, cfg.Cache, baseLogger)

	var (
		analyzer  ports.Analyzer
		assistant ports.Assistant
	)
	completer, err := llm.NewCompleter(llm.Config{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Logger:      baseLogger.With("component", "llm"),
	})
	switch {
	case errors.Is(err, domain.ErrNotConfigured):
		baseLogger.Warn("analysis service not configured; enrichment and assistant disabled")
	case err != nil:
		_ = cache.Close()
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("llm: %w", err)
	default:
		a := llm.NewAnalyzer(completer, cfg.LLM.Timeout, baseLogger.With("component", "llm"))
		analyzer, assistant = a, a
		baseLogger.Info("analysis service configured", "provider", cfg.LLM.Provider, "model", completer.Model())
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	var quoteProvider ports.QuoteProvider
	if cfg.Quotes.Enabled() {
		quoteProvider = quotes.NewClient(cfg.Quotes.Endpoint, cfg.Quotes.APIKey, cfg.Quotes.Timeout)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Fetcher:  source,
		Sources:  cfg.DomainSources(),
		Cache:    cache,
		Analyzer: analyzer,
		Notifier: notifier,
		Logger:   baseLogger.With("component", "pipeline"),
	}, usecase.PipelineOptions{
		MaxItems:          cfg.Pipeline.MaxItems,
		FetchConcurrency:  cfg.Pipeline.FetchConcurrency,
		LookupConcurrency: cfg.Pipeline.LookupConcurrency,
		EnrichConcurrency: cfg.Pipeline.EnrichConcurrency,
		MaxBodyChars:      cfg.Pipeline.MaxBodyChars,
		RefreshTimeout:    cfg.Pipeline.RefreshTimeout,
		AlertImpact:       cfg.Pipeline.AlertImpact,
		Level:             cfg.Pipeline.Level,
	})

	workingSet := usecase.NewWorkingSetCache(pipeline, usecase.WorkingSetOptions{
		TTL:        cfg.WorkingSet.TTL,
		ServeStale: cfg.WorkingSet.ServeStale,
	}, baseLogger.With("component", "workingset"))

	sched := usecase.NewScheduler(
		scheduler.NewIntervalScheduler(cfg.WorkingSet.RefreshInterval),
		workingSet,
		baseLogger.With("component", "scheduler"),
	)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	news := handler.NewNewsHandler(workingSet, assistant, quoteProvider, baseLogger.With("component", "http"))
	engine := router.New(news, router.RouterConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Tracing:     tel != nil,
		Logger:      baseLogger.With("component", "http"),
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		telemetry:  tel,
		cache:      cache,
		pipeline:   pipeline,
		workingSet: workingSet,
		scheduler:  sched,
		engine:     engine,
	}, nil
}

// openCache falls back to the no-op backend when the configured store
// cannot be reached; items are then re-analyzed on every refresh.
func openCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) *storage.Cache {
	log := logger.With("component", "cache")
	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Error("annotation cache unavailable; continuing without persistence", "backend", cfg.Backend, "error", err)
		backend = nil
	}
	cache := storage.NewCache(backend, log)
	log.Info("annotation cache ready", "backend", cache.Backend())
	return cache
}

// Handler exposes the HTTP routes, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.engine
}

// RefreshOnce runs the pipeline a single time without the working set.
func (a *Application) RefreshOnce(ctx context.Context) (usecase.RunResult, error) {
	return a.pipeline.Run(ctx)
}

// Serve starts the refresh scheduler and the HTTP server, and blocks until
// ctx is cancelled or the server fails.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.engine,
		ReadHeaderTimeout: a.cfg.Server.ReadTimeout,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case serveErr = <-errCh:
		a.logger.Error("http server stopped", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var errs []error
	if serveErr != nil {
		errs = append(errs, fmt.Errorf("http server: %w", serveErr))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
	}
	return errors.Join(errs...)
}

// Close releases the annotation cache and flushes pending spans.
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if err := a.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cache: %w", err))
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
