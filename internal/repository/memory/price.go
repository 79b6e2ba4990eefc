package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/price-service/internal/domain"
)

// ErrDuplicatePriceList is returned when two catalog rows share a price list.
var ErrDuplicatePriceList = errors.New("duplicate price list")

type pairKey struct {
	productID int64
	brandID   int64
}

// PriceRepository is an immutable in-memory price catalog. It is safe for
// concurrent use without locking because nothing mutates it after
// construction.
type PriceRepository struct {
	byPair map[pairKey][]domain.Price
	size   int
}

// NewPriceRepository validates prices and indexes them by product and brand.
func NewPriceRepository(prices []domain.Price) (*PriceRepository, error) {
	seen := make(map[int64]struct{}, len(prices))
	byPair := make(map[pairKey][]domain.Price)

	for _, p := range prices {
		p = p.Local()
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[p.PriceList]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicatePriceList, p.PriceList)
		}
		seen[p.PriceList] = struct{}{}

		k := pairKey{productID: p.ProductID, brandID: p.Brand.ID}
		byPair[k] = append(byPair[k], p)
	}

	return &PriceRepository{byPair: byPair, size: len(prices)}, nil
}

// DecodeCatalog decodes a JSON array of prices. Unknown fields are rejected;
// row invariants are left to the store that receives the rows.
func DecodeCatalog(r io.Reader) ([]domain.Price, error) {
	var prices []domain.Price
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&prices); err != nil {
		return nil, fmt.Errorf("decode price catalog: %w", err)
	}
	return prices, nil
}

// Load decodes a JSON array of prices from r and builds a repository from it.
func Load(r io.Reader) (*PriceRepository, error) {
	prices, err := DecodeCatalog(r)
	if err != nil {
		return nil, err
	}
	return NewPriceRepository(prices)
}

// LoadFile reads a JSON price catalog from path.
func LoadFile(path string) (*PriceRepository, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open price catalog: %w", err)
	}
	defer f.Close()

	repo, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return repo, nil
}

// FindApplicable returns every row for the pair whose window contains q.At.
func (r *PriceRepository) FindApplicable(ctx context.Context, q domain.PriceQuery) ([]domain.Price, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []domain.Price
	for _, p := range r.byPair[pairKey{productID: q.ProductID, brandID: q.BrandID}] {
		if p.Matches(q) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Len returns the number of rows in the catalog.
func (r *PriceRepository) Len() int {
	return r.size
}

// Ping always succeeds.
func (r *PriceRepository) Ping(context.Context) error {
	return nil
}

// SampleCatalog returns the reference catalog: product 35455 of brand 1
// (ZARA) under four overlapping EUR price lists.
func SampleCatalog() []domain.Price {
	zara := domain.Brand{ID: 1, Name: "ZARA"}
	row := func(list int64, priority int, start, end, amount string) domain.Price {
		return domain.Price{
			PriceList: list,
			ProductID: 35455,
			Priority:  priority,
			Currency:  domain.CurrencyEUR,
			Amount:    decimal.RequireFromString(amount),
			StartDate: mustLocal(start),
			EndDate:   mustLocal(end),
			Brand:     zara,
		}
	}

	return []domain.Price{
		row(1, 0, "2020-06-14T00:00:00", "2020-12-31T23:59:59", "35.50"),
		row(2, 1, "2020-06-14T15:00:00", "2020-06-14T18:30:00", "25.45"),
		row(3, 1, "2020-06-15T00:00:00", "2020-06-15T11:00:00", "30.50"),
		row(4, 1, "2020-06-15T16:00:00", "2020-12-31T23:59:59", "38.95"),
	}
}

func mustLocal(s string) time.Time {
	t, err := time.Parse(domain.LocalLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}
