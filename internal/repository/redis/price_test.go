package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/price-service/internal/domain"
	"github.com/utafrali/price-service/internal/repository/memory"
	apperrors "github.com/utafrali/price-service/pkg/errors"
)

func setupRepo(t *testing.T) (*PriceRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return NewPriceRepository(client), mr
}

func newQuery(t *testing.T, at string, productID, brandID int64) domain.PriceQuery {
	t.Helper()
	ts, err := time.Parse(domain.LocalLayout, at)
	require.NoError(t, err)
	q, err := domain.NewPriceQuery(ts, productID, brandID)
	require.NoError(t, err)
	return q
}

func TestPairKey(t *testing.T) {
	assert.Equal(t, "prices:35455:1", PairKey(35455, 1))
}

func TestPriceRepository_ImportAndFind(t *testing.T) {
	repo, mr := setupRepo(t)
	ctx := context.Background()

	n, err := repo.Import(ctx, memory.SampleCatalog())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	fields, err := mr.HKeys(PairKey(35455, 1))
	require.NoError(t, err)
	assert.Len(t, fields, 4)

	tests := []struct {
		at        string
		wantLists []int64
		wantBest  int64
		wantPrice string
	}{
		{"2020-06-14T10:00:00", []int64{1}, 1, "35.50"},
		{"2020-06-14T16:00:00", []int64{1, 2}, 2, "25.45"},
		{"2020-06-14T21:00:00", []int64{1}, 1, "35.50"},
		{"2020-06-15T10:00:00", []int64{1, 3}, 3, "30.50"},
		{"2020-06-16T21:00:00", []int64{1, 4}, 4, "38.95"},
	}

	for _, tt := range tests {
		t.Run(tt.at, func(t *testing.T) {
			q := newQuery(t, tt.at, 35455, 1)
			got, err := repo.FindApplicable(ctx, q)
			require.NoError(t, err)

			var lists []int64
			for _, p := range got {
				lists = append(lists, p.PriceList)
			}
			assert.ElementsMatch(t, tt.wantLists, lists)

			best, found := domain.SelectApplicable(got, q)
			require.True(t, found)
			assert.Equal(t, tt.wantBest, best.PriceList)
			assert.Equal(t, tt.wantPrice, best.Amount.StringFixed(2))
			assert.Equal(t, domain.CurrencyEUR, best.Currency)
			assert.Equal(t, "ZARA", best.Brand.Name)
		})
	}
}

func TestPriceRepository_FindApplicable_MissingHash(t *testing.T) {
	repo, _ := setupRepo(t)

	got, err := repo.FindApplicable(context.Background(), newQuery(t, "2020-06-14T10:00:00", 35455, 1))
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestPriceRepository_FindApplicable_MalformedRow(t *testing.T) {
	repo, mr := setupRepo(t)
	mr.HSet(PairKey(35455, 1), "1", "{not json")

	_, err := repo.FindApplicable(context.Background(), newQuery(t, "2020-06-14T10:00:00", 35455, 1))
	require.Error(t, err)
	assert.False(t, apperrors.IsStoreUnavailable(err))
	assert.Contains(t, err.Error(), "prices:35455:1")
}

func TestPriceRepository_FindApplicable_FieldMismatch(t *testing.T) {
	repo, mr := setupRepo(t)
	_, err := repo.Import(context.Background(), memory.SampleCatalog()[:1])
	require.NoError(t, err)

	raw := mr.HGet(PairKey(35455, 1), "1")
	mr.HSet(PairKey(35455, 1), "7", raw)

	_, err = repo.FindApplicable(context.Background(), newQuery(t, "2020-06-14T10:00:00", 35455, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price list 1")
}

func TestPriceRepository_FindApplicable_ServerDown(t *testing.T) {
	repo, mr := setupRepo(t)
	mr.Close()

	_, err := repo.FindApplicable(context.Background(), newQuery(t, "2020-06-14T10:00:00", 35455, 1))
	require.Error(t, err)
	assert.True(t, apperrors.IsStoreUnavailable(err), "got %v", err)
	assert.Error(t, repo.Ping(context.Background()))
}

func TestPriceRepository_Import_ReplacesPair(t *testing.T) {
	repo, mr := setupRepo(t)
	ctx := context.Background()

	_, err := repo.Import(ctx, memory.SampleCatalog())
	require.NoError(t, err)

	_, err = repo.Import(ctx, memory.SampleCatalog()[:2])
	require.NoError(t, err)
	fields, err := mr.HKeys(PairKey(35455, 1))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, fields)
}

func TestPriceRepository_Import_Rejects(t *testing.T) {
	repo, mr := setupRepo(t)

	dup := memory.SampleCatalog()
	dup[1].PriceList = 1
	_, err := repo.Import(context.Background(), dup)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	invalid := memory.SampleCatalog()
	invalid[0].Currency = 0
	_, err = repo.Import(context.Background(), invalid)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	assert.False(t, mr.Exists(PairKey(35455, 1)), "nothing is written on a rejected batch")
}

func TestPriceRepository_Import_RejectsWindowInvertedOnWallClock(t *testing.T) {
	repo, mr := setupRepo(t)

	rows := memory.SampleCatalog()
	rows[1].StartDate = time.Date(2020, 6, 14, 18, 0, 0, 0, time.FixedZone("+05", 5*60*60)) // 13:00Z
	rows[1].EndDate = time.Date(2020, 6, 14, 15, 0, 0, 0, time.UTC)
	require.NoError(t, rows[1].Validate(), "ordered as instants")

	_, err := repo.Import(context.Background(), rows)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
	assert.False(t, mr.Exists(PairKey(35455, 1)))
}

func TestPriceRepository_Ping(t *testing.T) {
	repo, _ := setupRepo(t)
	assert.NoError(t, repo.Ping(context.Background()))
}
