package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/utafrali/price-service/internal/domain"
	"github.com/utafrali/price-service/internal/repository"
	apperrors "github.com/utafrali/price-service/pkg/errors"
	"github.com/utafrali/price-service/pkg/logger"
	"github.com/utafrali/price-service/pkg/tracing"
)

const tracerName = "github.com/utafrali/price-service/internal/service"

// DefaultQueryTimeout bounds a single store lookup when Options leaves it unset.
const DefaultQueryTimeout = 2 * time.Second

// Options tunes a PriceService. The zero value is usable.
type Options struct {
	// QueryTimeout bounds each store lookup.
	QueryTimeout time.Duration
	// Metrics receives resolution outcomes. Nil creates unregistered metrics.
	Metrics *Metrics
}

// PriceService resolves the applicable price for a product and brand.
type PriceService struct {
	repo    repository.PriceRepository
	logger  *slog.Logger
	metrics *Metrics
	timeout time.Duration
	group   singleflight.Group
}

// NewPriceService creates a new price service.
func NewPriceService(repo repository.PriceRepository, logger *slog.Logger, opts Options) *PriceService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	return &PriceService{
		repo:    repo,
		logger:  logger,
		metrics: opts.Metrics,
		timeout: opts.QueryTimeout,
	}
}

// ResolvePrice returns the price of productID for brandID applicable at at:
// among rows whose window contains at, the highest priority wins and equal
// priorities fall to the lowest price list.
//
// Errors: InvalidInput for non-positive ids or a zero time, NotFound when no
// row applies, StoreUnavailable when the store cannot answer. A caller that
// cancels gets its context.Canceled back. Other store errors are returned
// wrapped.
func (s *PriceService) ResolvePrice(ctx context.Context, at time.Time, productID, brandID int64) (*domain.Price, error) {
	start := time.Now()
	log := s.loggerFor(ctx)

	q, err := domain.NewPriceQuery(at, productID, brandID)
	if err != nil {
		s.metrics.observe(OutcomeInvalid, time.Since(start).Seconds())
		return nil, apperrors.InvalidInput(err.Error())
	}

	candidates, err := s.lookup(ctx, q)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		s.metrics.observe(OutcomeCanceled, time.Since(start).Seconds())
		log.DebugContext(ctx, "price lookup abandoned by caller", slog.String("query", q.String()))
		return nil, err
	}
	if err != nil {
		outcome := OutcomeError
		if apperrors.IsStoreUnavailable(err) {
			outcome = OutcomeUnavailable
		}
		s.metrics.observe(outcome, time.Since(start).Seconds())
		log.ErrorContext(ctx, "price lookup failed",
			slog.String("query", q.String()),
			slog.String("outcome", outcome),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	price, found := domain.SelectApplicable(candidates, q)
	if !found {
		s.metrics.observe(OutcomeNotFound, time.Since(start).Seconds())
		log.DebugContext(ctx, "no applicable price", slog.String("query", q.String()))
		return nil, apperrors.NotFoundf("No price available.")
	}

	s.metrics.observe(OutcomeFound, time.Since(start).Seconds())
	log.DebugContext(ctx, "price resolved",
		slog.String("query", q.String()),
		slog.Int64("price_list", price.PriceList),
		slog.Int("priority", price.Priority),
		slog.Int("candidates", len(candidates)),
	)
	return &price, nil
}

// loggerFor prefers the request-scoped logger stored by the HTTP middleware.
func (s *PriceService) loggerFor(ctx context.Context) *slog.Logger {
	if l := logger.FromContext(ctx); l != slog.Default() {
		return l
	}
	return logger.WithContext(ctx, s.logger)
}

// lookup coalesces concurrent identical queries into one store read. The
// shared read runs detached from any single caller's cancellation and is
// bounded by the query timeout; each caller still stops waiting when its own
// context ends.
func (s *PriceService) lookup(ctx context.Context, q domain.PriceQuery) ([]domain.Price, error) {
	ch := s.group.DoChan(flightKey(q), func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		lctx, span := tracing.Tracer(tracerName).Start(lctx, "PriceService.lookup")
		defer span.End()
		span.SetAttributes(attribute.String("price.query", q.String()))

		prices, err := s.repo.FindApplicable(lctx, q)
		if err != nil {
			err = storeError(err)
			tracing.RecordError(span, err)
			return nil, err
		}
		span.SetAttributes(attribute.Int("price.candidates", len(prices)))
		return prices, nil
	})

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("price lookup: %w", ctx.Err())
		}
		return nil, storeError(ctx.Err())
	case res := <-ch:
		if res.Shared {
			s.metrics.coalesced.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		prices, _ := res.Val.([]domain.Price)
		return prices, nil
	}
}

// flightKey identifies lookups that may share a store read. The instant keeps
// full precision because a store may trim its answer to the top row for that
// exact instant.
func flightKey(q domain.PriceQuery) string {
	return fmt.Sprintf("%d:%d:%d", q.ProductID, q.BrandID, q.At.UnixNano())
}

// storeError maps an exceeded deadline to StoreUnavailable and wraps anything
// that is not already classified.
func storeError(err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.StoreUnavailable(err)
	default:
		return fmt.Errorf("find applicable prices: %w", err)
	}
}
