// Package config loads cache settings from YAML and the environment and
// turns them into cache options.
package config

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agentuity/go-cache/cache"
	"github.com/agentuity/go-cache/logger"
	"github.com/agentuity/go-cache/persist"
	"github.com/cockroachdb/errors"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/api/resource"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid value")

// Environment variables that override file settings.
const (
	EnvEnabled         = "CACHE_ENABLED"
	EnvDefaultTTL      = "CACHE_DEFAULT_TTL"
	EnvCleanupInterval = "CACHE_CLEANUP_INTERVAL"
	EnvMaxSize         = "CACHE_MAX_SIZE"
	EnvMaxMemory       = "CACHE_MAX_MEMORY"
	EnvBackend         = "CACHE_PERSISTENCE_BACKEND"
	EnvPath            = "CACHE_PERSISTENCE_PATH"
	EnvRedisURL        = "CACHE_REDIS_URL"
)

// Backend names a persistence store.
type Backend string

const (
	BackendNone   Backend = ""
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendRedis  Backend = "redis"
)

// Breaker configures the circuit breaker placed in front of the store.
type Breaker struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	MaxFailures int    `yaml:"max_failures,omitempty" json:"max_failures,omitempty"`
	Cooldown    string `yaml:"cooldown,omitempty" json:"cooldown,omitempty"`
}

// Persistence configures the durable store.
type Persistence struct {
	Backend  Backend `yaml:"backend,omitempty" json:"backend,omitempty"`
	Path     string  `yaml:"path,omitempty" json:"path,omitempty"`
	RedisURL string  `yaml:"redis_url,omitempty" json:"redis_url,omitempty"`
	Prefix   string  `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Breaker  Breaker `yaml:"breaker,omitempty" json:"breaker,omitempty"`
}

// Config is the file and environment representation of cache settings.
// Durations accept Go syntax plus days and weeks ("1d12h"); a bare number
// is seconds. Memory accepts quantities ("512Mi", "1G"); a bare number is
// megabytes.
type Config struct {
	Enabled         bool        `yaml:"enabled" json:"enabled"`
	DefaultTTL      string      `yaml:"default_ttl" json:"default_ttl"`
	CleanupInterval string      `yaml:"cleanup_interval" json:"cleanup_interval"`
	ShutdownTimeout string      `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty"`
	MaxSize         int         `yaml:"max_size" json:"max_size"`
	MaxMemory       string      `yaml:"max_memory" json:"max_memory"`
	Persistence     Persistence `yaml:"persistence,omitempty" json:"persistence,omitempty"`
}

// Settings are the parsed values of a Config.
type Settings struct {
	Enabled         bool
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
	ShutdownTimeout time.Duration
	MaxSize         int
	MaxMemory       int64
	Persistence     Persistence
	BreakerCooldown time.Duration
}

// Default returns the engine defaults.
func Default() *Config {
	return &Config{
		Enabled:         true,
		DefaultTTL:      cache.DefaultTTL.String(),
		CleanupInterval: cache.DefaultSweepInterval.String(),
		ShutdownTimeout: cache.DefaultShutdownTimeout.String(),
		MaxSize:         cache.DefaultMaxSize,
		MaxMemory:       "500Mi",
	}
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (*Config, error) {
	of, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: open %s", path)
	}
	defer of.Close()
	c := Default()
	if err := yaml.NewDecoder(of).Decode(c); err != nil {
		return nil, errors.Wrapf(err, "config: decode %s", path)
	}
	return c, nil
}

// Save writes c to path as YAML.
func (c *Config) Save(path string) error {
	buf, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "config: encode")
	}
	return errors.Wrapf(os.WriteFile(path, buf, 0o644), "config: write %s", path)
}

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides c with the CACHE_* variables resolved by lookup.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvEnabled); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(ErrInvalid, "%s=%q is not a boolean", EnvEnabled, v)
		}
		c.Enabled = b
	}
	if v, ok := lookup(EnvDefaultTTL); ok {
		c.DefaultTTL = v
	}
	if v, ok := lookup(EnvCleanupInterval); ok {
		c.CleanupInterval = v
	}
	if v, ok := lookup(EnvMaxSize); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(ErrInvalid, "%s=%q is not an integer", EnvMaxSize, v)
		}
		c.MaxSize = n
	}
	if v, ok := lookup(EnvMaxMemory); ok {
		c.MaxMemory = v
	}
	if v, ok := lookup(EnvBackend); ok {
		c.Persistence.Backend = Backend(strings.ToLower(strings.TrimSpace(v)))
	}
	if v, ok := lookup(EnvPath); ok {
		c.Persistence.Path = v
	}
	if v, ok := lookup(EnvRedisURL); ok {
		c.Persistence.RedisURL = v
	}
	return nil
}

// ParseDuration parses a duration. A bare number is seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return str2duration.ParseDuration(s)
}

// ParseMemory parses a memory quantity in bytes. A bare number is megabytes.
func ParseMemory(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n << 20, nil
	}
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0, err
	}
	return q.Value(), nil
}

// Resolve validates c and returns the parsed settings.
func (c *Config) Resolve() (Settings, error) {
	s := Settings{Enabled: c.Enabled, MaxSize: c.MaxSize, Persistence: c.Persistence}
	var err error
	if s.DefaultTTL, err = ParseDuration(c.DefaultTTL); err != nil {
		return s, errors.Wrapf(ErrInvalid, "default_ttl %q: %s", c.DefaultTTL, err)
	}
	if s.CleanupInterval, err = ParseDuration(c.CleanupInterval); err != nil {
		return s, errors.Wrapf(ErrInvalid, "cleanup_interval %q: %s", c.CleanupInterval, err)
	}
	if s.ShutdownTimeout, err = ParseDuration(c.ShutdownTimeout); err != nil {
		return s, errors.Wrapf(ErrInvalid, "shutdown_timeout %q: %s", c.ShutdownTimeout, err)
	}
	if s.ShutdownTimeout < 0 {
		return s, errors.Wrapf(ErrInvalid, "shutdown_timeout must not be negative, got %q", c.ShutdownTimeout)
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = cache.DefaultShutdownTimeout
	}
	if s.MaxMemory, err = ParseMemory(c.MaxMemory); err != nil {
		return s, errors.Wrapf(ErrInvalid, "max_memory %q: %s", c.MaxMemory, err)
	}
	if s.MaxSize <= 0 {
		return s, errors.Wrapf(ErrInvalid, "max_size must be positive, got %d", s.MaxSize)
	}
	if s.MaxMemory <= 0 {
		return s, errors.Wrapf(ErrInvalid, "max_memory must be positive, got %q", c.MaxMemory)
	}

	p := c.Persistence
	switch p.Backend {
	case BackendNone:
	case BackendFile:
		if p.Path == "" {
			return s, errors.Wrap(ErrInvalid, "persistence.path is required for the file backend")
		}
	case BackendSQLite:
	case BackendRedis:
		if p.RedisURL == "" {
			return s, errors.Wrap(ErrInvalid, "persistence.redis_url is required for the redis backend")
		}
	default:
		return s, errors.Wrapf(ErrInvalid, "unknown persistence backend %q", p.Backend)
	}
	if s.BreakerCooldown, err = ParseDuration(p.Breaker.Cooldown); err != nil {
		return s, errors.Wrapf(ErrInvalid, "persistence.breaker.cooldown %q: %s", p.Breaker.Cooldown, err)
	}
	return s, nil
}

// OpenStore opens the configured store, or returns nil when persistence is off.
func (s Settings) OpenStore(ctx context.Context) (persist.Store, error) {
	p := s.Persistence
	var (
		store persist.Store
		err   error
	)
	switch p.Backend {
	case BackendFile:
		store, err = persist.NewFileStore(p.Path)
	case BackendSQLite:
		store, err = persist.NewSQLiteStore(ctx, p.Path)
	case BackendRedis:
		store, err = persist.OpenRedisStore(ctx, p.RedisURL, p.Prefix)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Breaker.Enabled {
		bc := persist.DefaultBreakerConfig()
		if p.Breaker.MaxFailures > 0 {
			bc.MaxFailures = p.Breaker.MaxFailures
		}
		if s.BreakerCooldown > 0 {
			bc.Cooldown = s.BreakerCooldown
		}
		store = persist.Guard(store, persist.NewBreaker(bc))
	}
	return store, nil
}

// Options returns the cache options for s, without a store.
func (s Settings) Options(log logger.Logger) []cache.Option {
	opts := []cache.Option{
		cache.WithEnabled(s.Enabled),
		cache.WithDefaultTTL(s.DefaultTTL),
		cache.WithSweepInterval(s.CleanupInterval),
		cache.WithShutdownTimeout(s.ShutdownTimeout),
		cache.WithMaxSize(s.MaxSize),
		cache.WithMaxMemory(s.MaxMemory),
	}
	if log != nil {
		opts = append(opts, cache.WithLogger(log))
	}
	return opts
}

// NewCache resolves c, opens the configured store and builds a Cache from
// it. The store is closed again if the cache cannot be created.
func (c *Config) NewCache(ctx context.Context, log logger.Logger) (*cache.Cache, error) {
	s, err := c.Resolve()
	if err != nil {
		return nil, err
	}
	opts := s.Options(log)
	store, err := s.OpenStore(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "config: open store")
	}
	if store != nil {
		opts = append(opts, cache.WithStore(store))
	}
	cc, err := cache.New(ctx, opts...)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}
	return cc, nil
}
