package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/postflow/internal/adapters/http/api"
	"github.com/okian/postflow/internal/adapters/http/swagger"
	app "github.com/okian/postflow/internal/app"
	"github.com/okian/postflow/internal/config"
	"github.com/okian/postflow/pkg/logger"
	"github.com/okian/postflow/pkg/metrics"
	"github.com/okian/postflow/pkg/tracing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use fmt for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		// Syncing stderr fails on some terminals; nothing useful to do about it.
		_ = logger.Sync()
	}()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.TracingServiceName, cfg.TracingEnabled)
	if err != nil {
		loggerInstance.Error(ctx, "failed to initialize tracing", logger.Error(err))
		return
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			loggerInstance.Warn(ctx, "tracing shutdown failed", logger.Error(err))
		}
	}()

	be, err := openBackends(ctx, cfg, loggerInstance)
	if err != nil {
		loggerInstance.Error(ctx, "failed to open backends", logger.Error(err))
		return
	}
	// Runs after svc.Stop so the store and producer outlive the worker drain.
	defer be.Close(context.Background())

	// Create and start the service with configuration options
	svc := app.New(append(be.Options(),
		app.WithLogger(loggerInstance),
		app.WithWorkerCount(cfg.EventWorkerCount),
		app.WithQueueSize(cfg.EventQueueSize),
		app.WithMaxAssets(cfg.MaxAssets),
		app.WithMaxUploadBytes(cfg.MaxUploadBytes),
		app.WithPublishInterval(cfg.PublishInterval()),
		app.WithSweep(cfg.SweepInterval(), cfg.PendingGrace()),
	)...)
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	// Start service metrics updater
	go startServiceMetricsUpdater(ctx, svc)

	// HTTP mux and routes.
	mux := http.NewServeMux()

	// Register the API docs under /api-docs
	swagger.Register(ctx, mux)

	// Register business API routes with the service dependency.
	if cfg.JWTSecret == "" {
		loggerInstance.Warn(ctx, "jwt_secret is empty; every request is anonymous")
	}
	apiServer := api.NewServer(svc, svc,
		api.WithLogger(loggerInstance.Named("http")),
		api.WithAuthenticator(api.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer)),
		api.WithMaxBodyBytes(maxBodyBytes(cfg)),
	)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       time.Duration(cfg.HTTPReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(cfg.HTTPWriteTimeoutMS) * time.Millisecond,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("store", cfg.StoreBackend),
			logger.String("blobs", cfg.BlobBackend),
			logger.String("rate_limit", cfg.RateLimitBackend),
			logger.String("events", cfg.EventsBackend),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// maxBodyBytes bounds a publish request: every asset at its limit plus form overhead.
func maxBodyBytes(cfg *config.Config) int64 {
	return int64(cfg.MaxAssets)*cfg.MaxUploadBytes + 1<<20
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}

	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
