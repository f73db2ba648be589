package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"DB_DRIVER", "RATE_LIMIT", "JWT_TTL", "DEFAULT_TAX_PERCENT", "REDIS_DB", "REDIS_ENABLED", "CORS_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "100-M", cfg.Gateway.RateLimit)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "20", cfg.Ledger.DefaultTaxPercent.String())
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.True(t, cfg.Redis.Enabled)
	assert.False(t, cfg.App.IsProduction())
	assert.Empty(t, cfg.Gateway.CORSOrigins)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_MAX_OPEN_CONNS", "3")
	t.Setenv("JWT_TTL", "30m")
	t.Setenv("DEFAULT_TAX_PERCENT", "18")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, ,https://caisse.example")

	cfg := LoadConfig()
	assert.True(t, cfg.App.IsProduction())
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, 3, cfg.DB.MaxOpenConns)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "18", cfg.Ledger.DefaultTaxPercent.String())
	assert.Equal(t, "localhost:6380", cfg.Redis.Addr())
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"http://localhost:3000", "https://caisse.example"}, cfg.Gateway.CORSOrigins)
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	t.Setenv("JWT_TTL", "forever")
	t.Setenv("DEFAULT_TAX_PERCENT", "twenty")

	cfg := LoadConfig()
	assert.Equal(t, 20, cfg.DB.MaxOpenConns)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "20", cfg.Ledger.DefaultTaxPercent.String())
}
