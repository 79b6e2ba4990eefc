package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/utafrali/price-service/internal/config"
	handler "github.com/utafrali/price-service/internal/handler/http"
	"github.com/utafrali/price-service/internal/repository"
	"github.com/utafrali/price-service/internal/repository/breaker"
	"github.com/utafrali/price-service/internal/service"
	"github.com/utafrali/price-service/pkg/database"
	"github.com/utafrali/price-service/pkg/health"
	"github.com/utafrali/price-service/pkg/middleware"
	"github.com/utafrali/price-service/pkg/tracing"
)

const startupTimeout = 30 * time.Second

// App wires together all dependencies and runs the price service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	store          *Store
	registry       *prometheus.Registry
	service        *service.PriceService
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
}

// NewApp creates a new application instance, initializing all dependencies.
// On error every resource opened so far is released.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			a.closeStores()
		}
	}()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a.tracerShutdown, err = tracing.InitTracer(ctx, cfg.TracingConfig())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	database.SetSlowQueryLogging(cfg.SlowQueryThreshold(), logger)

	a.store, err = OpenStore(ctx, cfg, logger, a.registry)
	if err != nil {
		return nil, err
	}

	repo := a.store.Repository
	if cfg.BreakerEnabled {
		repo = breaker.New(repo, cfg.BreakerConfig(), logger, a.registry)
	}

	a.service = service.NewPriceService(repo, logger, service.Options{
		QueryTimeout: cfg.StoreQueryTimeout,
		Metrics:      service.NewMetrics(a.registry),
	})

	// Health checks.
	healthHandler := health.NewHandler()
	if pinger, ok := repo.(repository.Pinger); ok {
		healthHandler.Register(cfg.PriceStore, pinger.Ping)
	}

	// HTTP router.
	router := handler.NewRouter(a.service, handler.RouterConfig{
		ServiceName: config.ServiceName,
		Production:  cfg.IsProduction(),
		Location:    cfg.Location(),
		Health:      healthHandler,
		Metrics:     middleware.NewHTTPMetrics(a.registry, config.ServiceName),
		Gatherer:    a.registry,
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			MaxAge:         cfg.CORSMaxAge,
		},
		RateLimit:  cfg.RateLimitRequests,
		RateWindow: cfg.RateLimitWindow,
		Pprof:      cfg.PprofEnabled,
		PprofAllow: cfg.PprofAllowedCIDRs,
		Logger:     logger,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	return a, nil
}

// Handler returns the HTTP handler serving the price API.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Service returns the price resolver behind the HTTP API.
func (a *App) Service() *service.PriceService {
	return a.service
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.httpServer.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until ctx is canceled, then shuts down.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", ln.Addr().String()),
			slog.String("store", a.cfg.PriceStore),
		)
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.closeStores()

	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(shutdownCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}

	a.logger.Info("application shutdown complete")
	return nil
}

func (a *App) closeStores() {
	if a.store != nil {
		a.store.Close()
		a.store = nil
	}
}
