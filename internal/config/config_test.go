package config

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setEnvs is a helper that sets multiple env vars for the duration of a test.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, StorePostgres, cfg.PriceStore)
	assert.Equal(t, 2*time.Second, cfg.StoreQueryTimeout)
	assert.Equal(t, "prices", cfg.PostgresDB)
	assert.True(t, cfg.RunMigrations)
	assert.True(t, cfg.BreakerEnabled)
	assert.Empty(t, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.PprofEnabled)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "Europe/Madrid", cfg.Location().String())
}

func TestLoad_FromEnvVars(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":          "production",
		"PRICE_HTTP_PORT":      "9090",
		"PRICE_STORE":          "redis",
		"APP_TIMEZONE":         "UTC",
		"STORE_QUERY_TIMEOUT":  "750ms",
		"REDIS_HOST":           "cache",
		"REDIS_PORT":           "6380",
		"CORS_ALLOWED_ORIGINS": "https://shop.example.com,https://admin.example.com",
		"RATE_LIMIT_REQUESTS":  "0",
		"BREAKER_TIMEOUT":      "5s",
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, StoreRedis, cfg.PriceStore)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, 750*time.Millisecond, cfg.StoreQueryTimeout)
	assert.Equal(t, []string{"https://shop.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 0, cfg.RateLimitRequests)

	rc := cfg.RedisConfig()
	assert.Equal(t, "cache:6380", rc.Addr())

	bc := cfg.BreakerConfig()
	assert.Equal(t, "redis", bc.Name)
	assert.Equal(t, 5*time.Second, bc.Timeout)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		envs    map[string]string
		wantErr string
	}{
		{"port out of range", map[string]string{"PRICE_HTTP_PORT": "70000"}, "invalid HTTP port"},
		{"unknown store", map[string]string{"PRICE_STORE": "mongo"}, "PRICE_STORE"},
		{"zero query timeout", map[string]string{"STORE_QUERY_TIMEOUT": "0s"}, "STORE_QUERY_TIMEOUT"},
		{"unknown zone", map[string]string{"APP_TIMEZONE": "Mars/Olympus_Mons"}, "APP_TIMEZONE"},
		{"pool bounds", map[string]string{"DB_MIN_CONNS": "30", "DB_MAX_CONNS": "10"}, "DB pool"},
		{"breaker ratio", map[string]string{"BREAKER_FAILURE_RATIO": "1.5"}, "BREAKER_FAILURE_RATIO"},
		{"negative rate limit", map[string]string{"RATE_LIMIT_REQUESTS": "-1"}, "RATE_LIMIT_REQUESTS"},
		{"sample rate", map[string]string{"OTEL_SAMPLE_RATE": "2"}, "OTEL_SAMPLE_RATE"},
		{"not a duration", map[string]string{"STORE_QUERY_TIMEOUT": "soon"}, "load price config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvs(t, tt.envs)

			cfg, err := Load()

			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MemoryStoreSkipsPostgresChecks(t *testing.T) {
	setEnvs(t, map[string]string{
		"PRICE_STORE":  "memory",
		"DB_MIN_CONNS": "30",
		"DB_MAX_CONNS": "10",
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.PriceStore)
}

func TestConfig_PostgresConfig(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	pc := cfg.PostgresConfig()
	assert.Equal(t, "localhost", pc.Host)
	assert.Equal(t, int32(20), pc.MaxConns)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, pc.MaxConnIdleTime)
	assert.Contains(t, pc.DSN(), "sslmode=disable")
}

func TestConfig_TracingAndSlowQuery(t *testing.T) {
	setEnvs(t, map[string]string{"OTEL_ENABLED": "true", "OTEL_SAMPLE_RATE": "0.25", "LOG_SLOW_QUERY_MS": "250"})

	cfg, err := Load()
	require.NoError(t, err)

	tc := cfg.TracingConfig()
	assert.True(t, tc.Enabled)
	assert.Equal(t, ServiceName, tc.ServiceName)
	assert.Equal(t, 0.25, tc.SampleRate)
	assert.Equal(t, 250*time.Millisecond, cfg.SlowQueryThreshold())
}

func TestConfig_LocationBeforeLoad(t *testing.T) {
	var cfg Config
	assert.Equal(t, time.UTC, cfg.Location())
}
