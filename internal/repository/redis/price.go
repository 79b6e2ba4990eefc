package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/price-service/internal/domain"
	"github.com/utafrali/price-service/pkg/database"
	apperrors "github.com/utafrali/price-service/pkg/errors"
)

const keyPrefix = "prices:"

// PairKey returns the hash holding every price row of a product and brand.
// Fields are price list ids, values are JSON-encoded domain.Price rows.
func PairKey(productID, brandID int64) string {
	return keyPrefix + strconv.FormatInt(productID, 10) + ":" + strconv.FormatInt(brandID, 10)
}

// PriceRepository implements repository.PriceRepository using Redis.
type PriceRepository struct {
	client *redis.Client
}

// NewPriceRepository creates a new Redis-backed price repository.
func NewPriceRepository(client *redis.Client) *PriceRepository {
	return &PriceRepository{client: client}
}

// FindApplicable reads the pair's hash and keeps the rows whose window
// contains q.At. A missing hash is an empty result.
func (r *PriceRepository) FindApplicable(ctx context.Context, q domain.PriceQuery) (prices []domain.Price, err error) {
	key := PairKey(q.ProductID, q.BrandID)
	ctx, end := database.TraceQuery(ctx, "redis", "FindApplicablePrices", "HGETALL "+key)
	defer func() { end(err) }()

	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, classify("redis hgetall prices", err)
	}

	for field, raw := range fields {
		var p domain.Price
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("decode %s field %s: %w", key, field, err)
		}
		if strconv.FormatInt(p.PriceList, 10) != field {
			return nil, fmt.Errorf("decode %s field %s: row carries price list %d", key, field, p.PriceList)
		}
		if p = p.Local(); p.Matches(q) {
			prices = append(prices, p)
		}
	}

	return prices, nil
}

// Import replaces the hashes of every product and brand pair present in
// prices inside a single MULTI/EXEC. Rows are validated first and price list
// ids must be unique across the batch. Pairs absent from prices are left
// untouched.
func (r *PriceRepository) Import(ctx context.Context, prices []domain.Price) (int, error) {
	byKey := make(map[string][]any)
	seen := make(map[int64]struct{}, len(prices))

	for _, p := range prices {
		p = p.Local()
		if err := p.Validate(); err != nil {
			return 0, err
		}
		if _, dup := seen[p.PriceList]; dup {
			return 0, fmt.Errorf("%w %d: duplicate price list", domain.ErrInvalidPrice, p.PriceList)
		}
		seen[p.PriceList] = struct{}{}

		data, err := json.Marshal(p)
		if err != nil {
			return 0, fmt.Errorf("marshal price %d: %w", p.PriceList, err)
		}
		key := PairKey(p.ProductID, p.Brand.ID)
		byKey[key] = append(byKey[key], strconv.FormatInt(p.PriceList, 10), data)
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, values := range byKey {
			pipe.Del(ctx, key)
			pipe.HSet(ctx, key, values...)
		}
		return nil
	})
	if err != nil {
		return 0, classify("redis import prices", err)
	}

	return len(prices), nil
}

// Ping checks that Redis answers.
func (r *PriceRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return classify("redis ping", err)
	}
	return nil
}

func classify(op string, err error) error {
	if database.IsConnectionError(err) || errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
		return apperrors.StoreUnavailable(fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
