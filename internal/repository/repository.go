package repository

import (
	"context"

	"github.com/utafrali/price-service/internal/domain"
)

// PriceRepository is the read-only query surface over the price catalog.
type PriceRepository interface {
	// FindApplicable returns the rows for q.ProductID and q.BrandID whose
	// validity window contains q.At. An empty result is not an error. A store
	// may return a single already-ranked row or every qualifier; the caller
	// applies domain.SelectApplicable either way.
	//
	// Failures to reach the backing store are reported as
	// apperrors.StoreUnavailable.
	FindApplicable(ctx context.Context, q domain.PriceQuery) ([]domain.Price, error)
}

// Pinger is implemented by stores that can report their own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
