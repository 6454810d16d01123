package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/questforge/embeddings/internal/api/handlers"
	"github.com/questforge/embeddings/internal/api/middleware"
	"github.com/questforge/embeddings/internal/config"
	"github.com/questforge/embeddings/internal/jobs"
	"github.com/questforge/embeddings/internal/observability"
	"github.com/questforge/embeddings/internal/pipeline"
	"github.com/questforge/embeddings/internal/ratelimit"
	"github.com/questforge/embeddings/internal/service"
	"github.com/questforge/embeddings/internal/workers"
)

const (
	queueDepthInterval = 15 * time.Second
	retryRoute         = "embeddings_retry"
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	db             *pgxpool.Pool
	server         *http.Server
	river          *river.Client[pgx.Tx]
	pipeline       *pipeline.Pipeline
	meterProvider  observability.MeterProviderShutdown
	tracerProvider *sdktrace.TracerProvider
	metrics        *observability.Metrics
}

// routes groups the handlers registered on the mux.
type routes struct {
	health     *handlers.HealthHandler
	embeddings *handlers.EmbeddingsHandler
	search     *handlers.SearchHandler
	metrics    http.Handler
}

// NewApp builds and wires all components. It does not start the HTTP server or River;
// call Run to start and block until shutdown or failure.
func NewApp(ctx context.Context, cfg *config.Config, db *pgxpool.Pool) (*App, error) {
	var (
		meterProvider  observability.MeterProviderShutdown
		metricsHandler http.Handler
		metrics        *observability.Metrics
		err            error
	)

	if cfg.MetricsEnabled {
		meterProvider, metricsHandler, metrics, err = observability.NewMeterProvider(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create meter provider: %w", err)
		}
	} else {
		slog.Warn("metrics not enabled (METRICS_ENABLED=false)")
	}

	tracerProvider, err := observability.NewTracerProvider(ctx, cfg)
	if err != nil {
		shutdownObservabilityOnError(nil, meterProvider)

		return nil, fmt.Errorf("create tracer provider: %w", err)
	}

	if tracerProvider == nil {
		slog.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty or unknown)")
	}

	p, err := pipeline.New(ctx, cfg, db, metrics)
	if err != nil {
		shutdownObservabilityOnError(tracerProvider, meterProvider)

		return nil, err
	}

	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, workers.NewProcessEmbeddingsWorker(p.Processor, 0, 0))

	var workerErrors jobs.WorkerErrorRecorder
	if metrics != nil {
		workerErrors = metrics.Embeddings
	}

	riverClient, err := jobs.NewClient(db, riverWorkers, jobs.NewErrorHandler(workerErrors), jobs.ClientConfig{
		Workers:         1,
		ProcessInterval: cfg.EmbeddingProcessInterval,
		MaxAttempts:     cfg.EmbeddingMaxAttempts,
		Logger:          slog.Default(),
	})
	if err != nil {
		shutdownObservabilityOnError(tracerProvider, meterProvider)

		return nil, err
	}

	trigger := service.NewRiverTrigger(riverClient, cfg.EmbeddingMaxAttempts)

	var cacheMetrics observability.CacheMetrics
	if metrics != nil {
		cacheMetrics = metrics.Cache
	}

	searchService, err := p.SearchService(cacheMetrics)
	if err != nil {
		shutdownObservabilityOnError(tracerProvider, meterProvider)

		return nil, err
	}

	access := p.AccessService()

	server := newHTTPServer(cfg, routes{
		health: handlers.NewHealthHandler(db),
		embeddings: handlers.NewEmbeddingsHandler(
			p.SyncService(trigger), p.StatusService(trigger), p.RetryService(), p.Processor, access,
		),
		search:  handlers.NewSearchHandler(searchService, access),
		metrics: metricsHandler,
	}, metrics, tracerProvider)

	return &App{
		cfg:            cfg,
		db:             db,
		server:         server,
		river:          riverClient,
		pipeline:       p,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		metrics:        metrics,
	}, nil
}

// newHTTPServer builds the HTTP server and mux.
// Handler chain: RequestID -> otelhttp(Logging(MaxBody(mux))) so access logs get trace_id/span_id from context.
func newHTTPServer(
	cfg *config.Config, r routes, metrics *observability.Metrics, tracerProvider *sdktrace.TracerProvider,
) *http.Server {
	var (
		bodyRecorder      middleware.RequestBodyTooLargeRecorder
		rateLimitRecorder middleware.RateLimitRecorder
	)

	if metrics != nil {
		bodyRecorder = metrics.API
		rateLimitRecorder = metrics.API
	}

	userAuth := middleware.UserAuth(cfg.AuthJWTSecret)
	serviceAuth := middleware.Auth(cfg.APIKey)
	retryLimit := middleware.RateLimit(
		ratelimit.New(cfg.RetryRateLimit, cfg.RetryRateWindow, 0), rateLimitRecorder, retryRoute, cfg.TrustProxyHeaders,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", r.health.Check)
	mux.HandleFunc("GET /health/ready", r.health.Ready)

	if r.metrics != nil {
		mux.Handle("GET /metrics", r.metrics)
	}

	mux.Handle("POST /embeddings/sync", userAuth(http.HandlerFunc(r.embeddings.Sync)))
	mux.Handle("POST /embeddings/ensure", userAuth(http.HandlerFunc(r.embeddings.Ensure)))
	mux.Handle("POST /embeddings/retry", retryLimit(userAuth(http.HandlerFunc(r.embeddings.Retry))))
	mux.Handle("POST /embeddings/search", userAuth(http.HandlerFunc(r.search.Search)))

	mux.Handle("GET /embeddings/status", serviceAuth(http.HandlerFunc(r.embeddings.Status)))
	mux.Handle("GET /embeddings/status/{contentType}/{contentId}",
		serviceAuth(http.HandlerFunc(r.embeddings.ContentStatus)))
	mux.Handle("POST /embeddings/process", serviceAuth(http.HandlerFunc(r.embeddings.Process)))
	mux.Handle("DELETE /embeddings/{contentType}/{contentId}", serviceAuth(http.HandlerFunc(r.embeddings.Delete)))

	// An empty CRON_SECRET rejects every request inside Auth.
	mux.Handle("POST /embeddings/cron/process", middleware.Auth(cfg.CronSecret)(http.HandlerFunc(r.embeddings.Process)))

	otelOpts := []otelhttp.Option{
		// Skip tracing and HTTP metrics for health checks and scrapes to reduce noise.
		otelhttp.WithFilter(func(req *http.Request) bool {
			return req.URL.Path != "/health" && req.URL.Path != "/health/ready" && req.URL.Path != "/metrics"
		}),
	}
	if tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(tracerProvider))
	}

	// Logging runs inside otelhttp so r.Context() has the span when we log (trace_id/span_id in access logs).
	inner := middleware.Logging(middleware.MaxBody(cfg.MaxRequestBodyBytes, bodyRecorder)(mux))
	handler := otelhttp.NewHandler(inner, "embeddings-api", otelOpts...)
	handler = middleware.RequestID(handler)

	const (
		readTimeout = 15 * time.Second
		idleTimeout = 60 * time.Second
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server and River, then blocks until ctx is cancelled (e.g. signal)
// or a component fails. When ctx is cancelled or a component fails, it cancels the internal
// River context so River and the queue depth poller stop before Run returns. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	riverCtx, cancelRiver := context.WithCancel(ctx)
	defer cancelRiver()

	if a.metrics != nil {
		go service.RunQueueDepthPoller(riverCtx, a.pipeline.Store, a.metrics.Embeddings, queueDepthInterval)
	}

	go func() {
		if err := a.river.Start(riverCtx); err != nil && !errors.Is(err, context.Canceled) {
			select {
			case runErr <- fmt.Errorf("river: %w", err):
			default:
			}
		}
	}()

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port, "provider", a.cfg.EmbeddingProvider)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		cancelRiver()

		return err
	case <-ctx.Done():
		cancelRiver()

		return nil
	}
}

// shutdownObservability shuts down tracer and meter providers. Logs secondary errors, returns the first.
func shutdownObservability(
	ctx context.Context, tracer *sdktrace.TracerProvider, meter observability.MeterProviderShutdown,
) error {
	var first error

	if err := observability.ShutdownTracerProvider(ctx, tracer); err != nil {
		first = err
	}

	if meter != nil {
		if err := meter.Shutdown(ctx); err != nil {
			if first == nil {
				first = fmt.Errorf("meter provider shutdown: %w", err)
			} else {
				slog.Error("shutdown meter provider", "error", err)
			}
		}
	}

	return first
}

func shutdownObservabilityOnError(tracer *sdktrace.TracerProvider, meter observability.MeterProviderShutdown) {
	if err := shutdownObservability(context.Background(), tracer, meter); err != nil {
		slog.Error("shutdown observability after startup error", "error", err)
	}
}

// Shutdown stops the server and River in order. Call after Run returns.
// Observability is shut down once via defer; its error is returned only when server and River shut down successfully.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		obsErr := shutdownObservability(ctx, a.tracerProvider, a.meterProvider)
		if err == nil {
			err = obsErr
		} else if obsErr != nil {
			slog.Error("shutdown observability", "error", obsErr)
		}
	}()

	if err = a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		if stopErr := a.river.Stop(ctx); stopErr != nil {
			slog.Error("river stop during server shutdown", "error", stopErr)
		}

		return fmt.Errorf("server shutdown: %w", err)
	}

	if err = a.river.Stop(ctx); err != nil {
		return fmt.Errorf("river stop: %w", err)
	}

	return nil
}
