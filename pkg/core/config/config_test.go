package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "DATABASE_URL", "CACHE_BACKEND", "CACHE_TTL", "REDIS_ADDR", "BADGER_PATH", "LLM_RATE_PER_SEC", "TITLE_MAX_LEN"} {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg := FromEnv()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, CacheMemory, cfg.CacheBackend)
	assert.Equal(t, 168*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 30, cfg.TitleMaxLen)
	assert.Equal(t, "0 0 3 * * *", cfg.CachePurgeSchedule)
	assert.InDelta(t, 2.0, cfg.LLMRatePerSec, 1e-9)
}

func TestDatabaseSelectsPostgresCache(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/filings")
	cfg := FromEnv()
	assert.Equal(t, CachePostgres, cfg.CacheBackend)
	assert.NoError(t, cfg.Validate())
}

func TestOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_TTL", "24h")
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("LLM_RATE_PER_SEC", "0.5")

	cfg := FromEnv()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, CacheRedis, cfg.CacheBackend)
	assert.InDelta(t, 0.5, cfg.LLMRatePerSec, 1e-9)
}

func TestMalformedValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")
	t.Setenv("CACHE_TTL", "a week")
	cfg := FromEnv()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 168*time.Hour, cfg.CacheTTL)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cases := map[string]func(c *Config){
		"redis without addr":   func(c *Config) { c.CacheBackend = CacheRedis },
		"badger without path":  func(c *Config) { c.CacheBackend = CacheBadger },
		"postgres without url": func(c *Config) { c.CacheBackend = CachePostgres },
		"unknown backend":      func(c *Config) { c.CacheBackend = "memcached" },
		"bad port":             func(c *Config) { c.Port = 0 },
		"zero ttl":             func(c *Config) { c.CacheTTL = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := FromEnv()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
