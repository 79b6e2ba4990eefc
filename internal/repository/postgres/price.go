package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/price-service/internal/domain"
	"github.com/utafrali/price-service/pkg/database"
	apperrors "github.com/utafrali/price-service/pkg/errors"
)

// Ranking happens in SQL so at most one row crosses the wire. The resolver
// re-applies the same rule to what comes back.
const findApplicableSQL = `
		SELECT p.price_list, p.product_id, p.priority, p.curr, p.amount::text,
			   p.start_date, p.end_date, b.id, b.name
		FROM prices p
		JOIN brands b ON b.id = p.brand_id
		WHERE p.product_id = $1
		  AND p.brand_id = $2
		  AND p.start_date <= $3
		  AND p.end_date >= $3
		ORDER BY p.priority DESC, p.price_list ASC
		LIMIT 1`

// PriceRepository implements repository.PriceRepository using PostgreSQL.
type PriceRepository struct {
	db database.DBTX
}

// NewPriceRepository creates a new PostgreSQL-backed price repository.
func NewPriceRepository(db database.DBTX) *PriceRepository {
	return &PriceRepository{db: db}
}

// FindApplicable returns the top-ranked price for q, or no rows.
func (r *PriceRepository) FindApplicable(ctx context.Context, q domain.PriceQuery) (prices []domain.Price, err error) {
	ctx, end := database.TraceQuery(ctx, "postgresql", "FindApplicablePrices", findApplicableSQL)
	defer func() { end(err) }()

	// The column is TIMESTAMP WITHOUT TIME ZONE; pass the wall clock.
	at := domain.LocalInstant(q.At)

	rows, err := r.db.Query(ctx, findApplicableSQL, q.ProductID, q.BrandID, at)
	if err != nil {
		return nil, classify("query prices", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate prices", err)
	}

	return prices, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrice(row scanner) (domain.Price, error) {
	var (
		p          domain.Price
		curr       string
		amount     string
		start, end time.Time
		brandName  string
	)
	if err := row.Scan(
		&p.PriceList, &p.ProductID, &p.Priority, &curr, &amount,
		&start, &end, &p.Brand.ID, &brandName,
	); err != nil {
		return domain.Price{}, classify("scan price", err)
	}

	currency, err := domain.ParseCurrency(curr)
	if err != nil {
		return domain.Price{}, fmt.Errorf("price list %d: %w", p.PriceList, err)
	}
	p.Currency = currency

	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return domain.Price{}, fmt.Errorf("price list %d: parse amount %q: %w", p.PriceList, amount, err)
	}

	p.StartDate = domain.LocalInstant(start)
	p.EndDate = domain.LocalInstant(end)
	p.Brand.Name = brandName

	return p, nil
}

// classify maps connectivity failures and cancellations to StoreUnavailable
// and wraps everything else.
func classify(op string, err error) error {
	if database.IsConnectionError(err) || errors.Is(err, context.Canceled) {
		return apperrors.StoreUnavailable(fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
