package breaker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/price-service/internal/domain"
	"github.com/utafrali/price-service/internal/repository/memory"
	apperrors "github.com/utafrali/price-service/pkg/errors"
)

type stubRepo struct {
	calls atomic.Int32
	err   atomic.Pointer[error]
	rows  []domain.Price
}

func (s *stubRepo) setErr(err error) {
	s.err.Store(&err)
}

func (s *stubRepo) FindApplicable(context.Context, domain.PriceQuery) ([]domain.Price, error) {
	s.calls.Add(1)
	if p := s.err.Load(); p != nil && *p != nil {
		return nil, *p
	}
	return s.rows, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      50 * time.Millisecond,
		FailureRatio: 0.5,
		MinRequests:  3,
	}
}

func testQuery(t *testing.T) domain.PriceQuery {
	t.Helper()
	q, err := domain.NewPriceQuery(time.Date(2020, 6, 14, 10, 0, 0, 0, time.UTC), 35455, 1)
	require.NoError(t, err)
	return q
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "price_store_circuit_breaker_state" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "name" && lp.GetValue() == name {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("gauge for breaker %q not found", name)
	return 0
}

func TestBreaker_ClosedPassesThrough(t *testing.T) {
	stub := &stubRepo{rows: memory.SampleCatalog()[:1]}
	reg := prometheus.NewRegistry()
	repo := New(stub, testConfig("closed"), testLogger(), reg)

	got, err := repo.FindApplicable(context.Background(), testQuery(t))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, gobreaker.StateClosed, repo.State())
	assert.Equal(t, float64(0), gaugeValue(t, reg, "closed"))
}

func TestBreaker_TripsOnStoreUnavailable(t *testing.T) {
	stub := &stubRepo{}
	stub.setErr(apperrors.StoreUnavailable(errors.New("connection refused")))
	reg := prometheus.NewRegistry()
	repo := New(stub, testConfig("trip"), testLogger(), reg)

	for i := 0; i < 3; i++ {
		_, err := repo.FindApplicable(context.Background(), testQuery(t))
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, repo.State())
	assert.Equal(t, float64(2), gaugeValue(t, reg, "trip"))

	// Open: fail fast without touching the store.
	_, err := repo.FindApplicable(context.Background(), testQuery(t))
	require.Error(t, err)
	assert.True(t, apperrors.IsStoreUnavailable(err))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), stub.calls.Load())
}

func TestBreaker_IgnoresNonStoreErrors(t *testing.T) {
	stub := &stubRepo{}
	stub.setErr(errors.New("decode price row"))
	repo := New(stub, testConfig("data-errors"), testLogger(), nil)

	for i := 0; i < 10; i++ {
		_, err := repo.FindApplicable(context.Background(), testQuery(t))
		require.Error(t, err)
		assert.False(t, apperrors.IsStoreUnavailable(err))
	}
	assert.Equal(t, gobreaker.StateClosed, repo.State())
	assert.Equal(t, int32(10), stub.calls.Load())
}

func TestBreaker_IgnoresCanceledCallers(t *testing.T) {
	stub := &stubRepo{}
	stub.setErr(apperrors.StoreUnavailable(context.Canceled))
	repo := New(stub, testConfig("canceled"), testLogger(), nil)

	for i := 0; i < 5; i++ {
		_, _ = repo.FindApplicable(context.Background(), testQuery(t))
	}
	assert.Equal(t, gobreaker.StateClosed, repo.State())
}

func TestBreaker_EmptyResultIsSuccess(t *testing.T) {
	stub := &stubRepo{}
	repo := New(stub, testConfig("empty"), testLogger(), nil)

	for i := 0; i < 5; i++ {
		got, err := repo.FindApplicable(context.Background(), testQuery(t))
		require.NoError(t, err)
		assert.Empty(t, got)
	}
	assert.Equal(t, gobreaker.StateClosed, repo.State())
}

func TestBreaker_HalfOpenToClosedRecovery(t *testing.T) {
	stub := &stubRepo{rows: memory.SampleCatalog()[:1]}
	stub.setErr(apperrors.StoreUnavailable(errors.New("i/o timeout")))
	reg := prometheus.NewRegistry()
	repo := New(stub, testConfig("recover"), testLogger(), reg)

	for i := 0; i < 3; i++ {
		_, _ = repo.FindApplicable(context.Background(), testQuery(t))
	}
	require.Equal(t, gobreaker.StateOpen, repo.State())

	stub.setErr(nil)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, repo.State())

	got, err := repo.FindApplicable(context.Background(), testQuery(t))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, gobreaker.StateClosed, repo.State())
	assert.Equal(t, float64(0), gaugeValue(t, reg, "recover"))
}

func TestBreaker_PingDelegates(t *testing.T) {
	mem, err := memory.NewPriceRepository(memory.SampleCatalog())
	require.NoError(t, err)

	assert.NoError(t, New(mem, testConfig("ping"), testLogger(), nil).Ping(context.Background()))
	assert.NoError(t, New(&stubRepo{}, testConfig("no-ping"), testLogger(), nil).Ping(context.Background()))
}

func TestStateToFloat(t *testing.T) {
	assert.Equal(t, float64(0), stateToFloat(gobreaker.StateClosed))
	assert.Equal(t, float64(1), stateToFloat(gobreaker.StateHalfOpen))
	assert.Equal(t, float64(2), stateToFloat(gobreaker.StateOpen))
	assert.Equal(t, float64(-1), stateToFloat(gobreaker.State(42)))
}
