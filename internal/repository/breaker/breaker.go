package breaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/price-service/internal/domain"
	"github.com/utafrali/price-service/internal/repository"
	apperrors "github.com/utafrali/price-service/pkg/errors"
)

// Config holds configuration for the store circuit breaker.
type Config struct {
	// Name identifies this breaker (used in metrics and logs).
	Name string

	// MaxRequests is the number of probes allowed while half-open.
	// 0 means 1 request is allowed.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state for clearing counts.
	// 0 means counts are never cleared while closed.
	Interval time.Duration

	// Timeout is how long the breaker stays open before moving to half-open.
	Timeout time.Duration

	// FailureRatio trips the breaker once this share of requests failed.
	FailureRatio float64

	// MinRequests is the minimum number of requests before FailureRatio is evaluated.
	MinRequests uint32
}

// DefaultConfig returns sensible defaults for a store breaker.
func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// stateToFloat maps gobreaker states to prometheus gauge values.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// PriceRepository wraps a repository.PriceRepository with a circuit breaker.
// Only StoreUnavailable errors count as failures; an empty result or a data
// error leaves the breaker alone. While open, calls fail fast with
// StoreUnavailable without touching the store.
type PriceRepository struct {
	next    repository.PriceRepository
	breaker *gobreaker.CircuitBreaker[[]domain.Price]
}

// New wraps next. The breaker state is exported on reg as
// price_store_circuit_breaker_state; reg may be nil.
func New(next repository.PriceRepository, cfg Config, logger *slog.Logger, reg prometheus.Registerer) *PriceRepository {
	if logger == nil {
		logger = slog.Default()
	}

	state := promauto.With(reg).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "price_store_circuit_breaker_state",
			Help: "Current state of the price store circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			state.WithLabelValues(name).Set(stateToFloat(to))
		},
	}

	state.WithLabelValues(cfg.Name).Set(0)

	return &PriceRepository{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[[]domain.Price](settings),
	}
}

// A caller giving up is not a store fault.
func isSuccessful(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || !apperrors.IsStoreUnavailable(err)
}

// FindApplicable delegates to the wrapped store through the breaker.
func (r *PriceRepository) FindApplicable(ctx context.Context, q domain.PriceQuery) ([]domain.Price, error) {
	prices, err := r.breaker.Execute(func() ([]domain.Price, error) {
		return r.next.FindApplicable(ctx, q)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, apperrors.StoreUnavailable(err)
	}
	return prices, err
}

// Ping delegates to the wrapped store when it can report reachability. It
// bypasses the breaker so readiness reflects the store itself.
func (r *PriceRepository) Ping(ctx context.Context) error {
	if p, ok := r.next.(repository.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// State returns the current state of the circuit breaker.
func (r *PriceRepository) State() gobreaker.State {
	return r.breaker.State()
}
