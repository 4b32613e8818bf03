package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentuity/go-cache/cache"
	"github.com/agentuity/go-cache/env"
	"github.com/agentuity/go-cache/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	s, err := Default().Resolve()
	require.NoError(t, err)
	assert.True(t, s.Enabled)
	assert.Equal(t, cache.DefaultTTL, s.DefaultTTL)
	assert.Equal(t, cache.DefaultSweepInterval, s.CleanupInterval)
	assert.Equal(t, cache.DefaultMaxSize, s.MaxSize)
	assert.Equal(t, cache.DefaultMaxMemory, s.MaxMemory)
	assert.Equal(t, BackendNone, s.Persistence.Backend)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"300", 5 * time.Minute},
		{"5m", 5 * time.Minute},
		{"1d12h", 36 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"", 0},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := ParseDuration("soon")
	assert.Error(t, err)
}

func TestParseMemory(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"500", 500 << 20},
		{"512Mi", 512 << 20},
		{"1Gi", 1 << 30},
		{"1M", 1000000},
		{"2048", 2048 << 20},
	}
	for _, tt := range tests {
		got, err := ParseMemory(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := ParseMemory("lots")
	assert.Error(t, err)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_ttl: 10m
max_size: 200
max_memory: 64Mi
persistence:
  backend: file
  path: /tmp/entries
  breaker:
    enabled: true
    max_failures: 3
    cooldown: 1m
`), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	s, err := c.Resolve()
	require.NoError(t, err)
	assert.True(t, s.Enabled)
	assert.Equal(t, 10*time.Minute, s.DefaultTTL)
	assert.Equal(t, cache.DefaultSweepInterval, s.CleanupInterval)
	assert.Equal(t, 200, s.MaxSize)
	assert.Equal(t, int64(64<<20), s.MaxMemory)
	assert.Equal(t, BackendFile, s.Persistence.Backend)
	assert.Equal(t, 3, s.Persistence.Breaker.MaxFailures)
	assert.Equal(t, time.Minute, s.BreakerCooldown)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	c := Default()
	c.MaxSize = 42
	c.Persistence = Persistence{Backend: BackendSQLite, Path: "cache.db"}
	require.NoError(t, c.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, loaded)
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	err := c.ApplyEnv(lookupMap(map[string]string{
		EnvEnabled:         "false",
		EnvDefaultTTL:      "600",
		EnvCleanupInterval: "30s",
		EnvMaxSize:         "77",
		EnvMaxMemory:       "128",
		EnvBackend:         "Redis",
		EnvRedisURL:        "redis://localhost:6379/1",
	}))
	require.NoError(t, err)
	s, err := c.Resolve()
	require.NoError(t, err)
	assert.False(t, s.Enabled)
	assert.Equal(t, 10*time.Minute, s.DefaultTTL)
	assert.Equal(t, 30*time.Second, s.CleanupInterval)
	assert.Equal(t, 77, s.MaxSize)
	assert.Equal(t, int64(128<<20), s.MaxMemory)
	assert.Equal(t, BackendRedis, s.Persistence.Backend)

	err = Default().ApplyEnv(lookupMap(map[string]string{EnvEnabled: "maybe"}))
	assert.True(t, errors.Is(err, ErrInvalid))
	err = Default().ApplyEnv(lookupMap(map[string]string{EnvMaxSize: "many"}))
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestApplyEnvFromDotenv(t *testing.T) {
	src := env.NewSource(env.Parse([]byte("CACHE_MAX_SIZE=12\nCACHE_DEFAULT_TTL=1h")))
	c := Default()
	require.NoError(t, c.ApplyEnv(src.Lookup))
	assert.Equal(t, 12, c.MaxSize)
	assert.Equal(t, "1h", c.DefaultTTL)
}

func TestResolveRejectsInvalid(t *testing.T) {
	tests := map[string]func(c *Config){
		"zero max size":     func(c *Config) { c.MaxSize = 0 },
		"bad ttl":           func(c *Config) { c.DefaultTTL = "eventually" },
		"bad interval":      func(c *Config) { c.CleanupInterval = "often" },
		"bad memory":        func(c *Config) { c.MaxMemory = "plenty" },
		"zero memory":       func(c *Config) { c.MaxMemory = "0" },
		"unknown backend":   func(c *Config) { c.Persistence.Backend = "tape" },
		"file without path": func(c *Config) { c.Persistence.Backend = BackendFile },
		"redis without url": func(c *Config) { c.Persistence.Backend = BackendRedis },
		"bad cooldown":      func(c *Config) { c.Persistence.Breaker.Cooldown = "later" },
		"negative shutdown": func(c *Config) { c.ShutdownTimeout = "-5s" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			_, err := c.Resolve()
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}
}

func TestNewCacheWithFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := Default()
	c.CleanupInterval = "0"
	c.Persistence = Persistence{Backend: BackendFile, Path: dir, Breaker: Breaker{Enabled: true}}

	first, err := c.NewCache(ctx, logger.NewTestLogger())
	require.NoError(t, err)
	first.Set("k", "v")
	require.NoError(t, first.Close())

	second, err := c.NewCache(ctx, logger.NewTestLogger())
	require.NoError(t, err)
	defer second.Close()
	val, ok := second.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", val)
}

func TestNewCacheWithSQLiteStore(t *testing.T) {
	c := Default()
	c.Persistence = Persistence{Backend: BackendSQLite, Path: ":memory:"}
	cc, err := c.NewCache(context.Background(), logger.NewTestLogger())
	require.NoError(t, err)
	assert.True(t, cc.Set("k", 1))
	assert.NoError(t, cc.Close())
}

func TestNewCacheWithRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	c := Default()
	c.Persistence = Persistence{Backend: BackendRedis, RedisURL: "redis://" + mr.Addr(), Prefix: "test"}
	cc, err := c.NewCache(context.Background(), logger.NewTestLogger())
	require.NoError(t, err)
	cc.Set("k", "v")
	assert.NotEmpty(t, mr.Keys())
	assert.NoError(t, cc.Close())
}

func TestNewCacheRejectsNegativeShutdownBeforeOpeningStore(t *testing.T) {
	mr := miniredis.RunT(t)
	c := Default()
	c.ShutdownTimeout = "-1"
	c.Persistence = Persistence{Backend: BackendRedis, RedisURL: "redis://" + mr.Addr()}
	_, err := c.NewCache(context.Background(), logger.NewTestLogger())
	assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
	assert.Zero(t, mr.CurrentConnectionCount())
}

func TestNewCacheInvalid(t *testing.T) {
	c := Default()
	c.MaxSize = -1
	_, err := c.NewCache(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrInvalid))
}
