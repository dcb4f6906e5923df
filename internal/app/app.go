package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"blueprint/internal/archive"
	"blueprint/internal/config"
	"blueprint/internal/generation"
	"blueprint/internal/llm"
	"blueprint/internal/observability"
	"blueprint/internal/server"
	"blueprint/internal/templatestore"
)

// App holds every long-lived component built from one Config.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Catalog   *llm.Catalog
	Engine    *generation.Engine
	Templates templatestore.Store
	Archive   *archive.Archive
	Handler   http.Handler

	client  *llm.Client
	server  *server.Server
	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	httpClient := &http.Client{Timeout: cfg.Generation.StageTimeout + 5*time.Second}
	providers, err := initProviders(ctx, cfg, httpClient, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, providers.close)

	a.Catalog, err = initCatalog(cfg, !providers.real())
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	tracer := observability.Tracer()
	mws := []llm.Middleware{
		llm.WithTracing(tracer),
		llm.WithMetrics(a.Metrics),
		llm.WithLogging(logger),
	}
	if len(providers.limiters) > 0 {
		mws = append(mws, llm.RateLimit(providers.limiters))
	}
	clientOpts := []llm.ClientOption{
		llm.WithTimeout(cfg.Generation.StageTimeout),
		llm.WithMiddleware(mws...),
		llm.WithClientLogger(logger),
	}
	if cfg.Generation.SystemPrompt != "" {
		clientOpts = append(clientOpts, llm.WithSystemPrompt(cfg.Generation.SystemPrompt))
	}
	a.client = llm.NewClient(a.Catalog, providers.transports, clientOpts...)
	a.closers = append(a.closers, a.client.Close)

	dispatcher := llm.NewDispatcher(a.client,
		llm.WithRetries(cfg.Generation.MaxRetries),
		llm.WithBackoff(cfg.Generation.BaseBackoff, cfg.Generation.MaxBackoff),
		llm.WithDispatcherLogger(logger),
		llm.WithFailoverObserver(a.Metrics),
	)
	pipeline := generation.NewPipeline(dispatcher,
		generation.WithConcurrency(cfg.Generation.Concurrency),
		generation.WithStrictTokenBudget(cfg.Generation.StrictTokenBudget),
		generation.WithLogger(logger),
		generation.WithTracer(tracer),
		generation.WithRecorder(a.Metrics),
	)

	templates, closeTemplates, err := initTemplates(ctx, cfg, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Templates = templates
	a.closers = append(a.closers, closeTemplates)

	a.Archive, err = initArchive(cfg, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Engine = generation.NewEngine(a.Catalog, pipeline, templates, generation.WithEngineLogger(logger))

	handlers := server.NewHandlers(server.Deps{
		Generator: a.Engine,
		Catalog:   a.Catalog,
		Templates: a.Templates,
		Bundles:   a.Archive,
		Streams:   a.Metrics,
		Logger:    logger,
	})
	var metricsHandler http.Handler
	if cfg.Server.MetricsEnabled {
		metricsHandler = a.Metrics.Handler()
	}
	a.Handler = server.NewMux(handlers, metricsHandler, cfg.Server.AllowedOrigins)
	a.server = server.New(cfg.Server.Addr, a.Handler, logger)
	return a, nil
}

// Run serves until ctx is done, then shuts down within the configured
// timeout.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.Logger.Info("server exiting")
	return <-errCh
}

// Close releases transports, the template store and redis.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
