package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/price-service/pkg/health"
	"github.com/utafrali/price-service/pkg/middleware"
)

// RouterConfig holds what NewRouter needs beyond the price resolver.
type RouterConfig struct {
	ServiceName string
	Production  bool
	Location    *time.Location

	Health     *health.Handler
	Metrics    *middleware.HTTPMetrics
	Gatherer   prometheus.Gatherer
	CORS       middleware.CORSConfig
	RateLimit  int
	RateWindow time.Duration
	Pprof      bool
	PprofAllow []string
	Logger     *slog.Logger
}

// NewRouter creates a chi router with all price service routes registered.
func NewRouter(resolver PriceResolver, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.SecureHeaders(cfg.Production))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.LivenessHandler())
		r.Get("/health/ready", cfg.Health.ReadinessHandler())
	}
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	if cfg.Pprof {
		middleware.RegisterPprof(r, cfg.PprofAllow, logger)
	}

	// Price API endpoints
	priceHandler := NewPriceHandler(resolver, cfg.Location, logger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimit, cfg.RateWindow))

		r.Get("/api/v1/prices", priceHandler.GetPrice)
		r.Get("/prices", priceHandler.GetPrice)
	})

	return r
}
