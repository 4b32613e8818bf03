package cache

import (
	"time"

	"github.com/agentuity/go-cache/logger"
	"github.com/agentuity/go-cache/persist"
	"github.com/cockroachdb/errors"
)

const (
	// DefaultNamespace is used when no namespace is given for an operation.
	DefaultNamespace = "default"
	// DefaultTTL is applied by Set when no WithTTL option is passed.
	DefaultTTL = 5 * time.Minute
	// DefaultMaxSize is the default entry-count budget.
	DefaultMaxSize = 10000
	// DefaultMaxMemory is the default aggregate size budget in bytes.
	DefaultMaxMemory int64 = 500 << 20
	// DefaultSweepInterval is how often expired entries are actively removed.
	DefaultSweepInterval = 5 * time.Minute
	// DefaultShutdownTimeout bounds how long Close waits for an in-flight sweep.
	DefaultShutdownTimeout = 5 * time.Second
)

// config holds the resolved configuration for a Cache.
type config struct {
	enabled         bool
	defaultTTL      time.Duration
	maxSize         int
	maxMemory       int64
	sweepInterval   time.Duration
	shutdownTimeout time.Duration
	store           persist.Store
	logger          logger.Logger
	now             func() time.Time
}

// Option configures a Cache.
type Option func(*config)

func defaultConfig() config {
	return config{
		enabled:         true,
		defaultTTL:      DefaultTTL,
		maxSize:         DefaultMaxSize,
		maxMemory:       DefaultMaxMemory,
		sweepInterval:   DefaultSweepInterval,
		shutdownTimeout: DefaultShutdownTimeout,
		now:             time.Now,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.NewConsoleLogger()
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return cfg
}

func (c config) validate() error {
	if c.maxSize <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "max size must be positive, got %d", c.maxSize)
	}
	if c.maxMemory <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "max memory must be positive, got %d", c.maxMemory)
	}
	if c.shutdownTimeout <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "shutdown timeout must be positive, got %s", c.shutdownTimeout)
	}
	return nil
}

// WithEnabled turns the cache on or off. A disabled cache misses on every
// read and refuses every write. Defaults to true.
func WithEnabled(enabled bool) Option {
	return func(c *config) { c.enabled = enabled }
}

// WithDefaultTTL sets the TTL used by Set when WithTTL is not passed.
// A value <= 0 makes entries written without WithTTL never expire.
func WithDefaultTTL(d time.Duration) Option {
	return func(c *config) { c.defaultTTL = d }
}

// WithMaxSize sets the maximum number of live entries. Must be positive.
func WithMaxSize(n int) Option {
	return func(c *config) { c.maxSize = n }
}

// WithMaxMemory sets the aggregate size budget in bytes. Must be positive.
func WithMaxMemory(bytes int64) Option {
	return func(c *config) { c.maxMemory = bytes }
}

// WithSweepInterval sets the interval of the background expiry sweep.
// A value <= 0 disables the sweeper; lazy expiration still applies.
func WithSweepInterval(d time.Duration) Option {
	return func(c *config) { c.sweepInterval = d }
}

// WithShutdownTimeout bounds how long Close waits for an in-flight sweep.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *config) { c.shutdownTimeout = d }
}

// WithStore enables persistence. Entries are restored from store by New and
// written back on every mutation on a best-effort basis.
func WithStore(store persist.Store) Option {
	return func(c *config) { c.store = store }
}

// WithLogger sets the logger. Defaults to a console logger at the level in CACHE_LOG_LEVEL.
func WithLogger(l logger.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithClock replaces the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// EntryOption configures a single cache operation.
type EntryOption func(*entryOptions)

type entryOptions struct {
	namespace string
	ttl       time.Duration
	hasTTL    bool
	tags      []string
}

func resolveEntryOptions(opts []EntryOption) entryOptions {
	o := entryOptions{namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(&o)
	}
	if o.namespace == "" {
		o.namespace = DefaultNamespace
	}
	return o
}

// WithNamespace scopes the operation to namespace ns.
func WithNamespace(ns string) EntryOption {
	return func(o *entryOptions) { o.namespace = ns }
}

// WithTTL sets the entry lifetime for Set. A ttl <= 0 means the entry never expires.
func WithTTL(ttl time.Duration) EntryOption {
	return func(o *entryOptions) {
		o.ttl = ttl
		o.hasTTL = true
	}
}

// WithTags attaches tags to the entry written by Set.
func WithTags(tags ...string) EntryOption {
	return func(o *entryOptions) { o.tags = append(o.tags, tags...) }
}
