// Package strategy implements cache-aside, write-through, write-behind and
// refresh-ahead on top of a cache.Cache, plus bulk warming.
package strategy

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentuity/go-cache/cache"
	"github.com/agentuity/go-cache/logger"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const tracerName = "@agentuity/go-cache/strategy"

// DefaultRefreshThreshold is the fraction of the TTL that must have elapsed
// before RefreshAhead reloads a value in the background.
const DefaultRefreshThreshold = 0.8

// DefaultWarmConcurrency bounds the number of concurrent loads in Warm.
const DefaultWarmConcurrency = 4

// Config describes the cache entry a strategy reads and writes.
type Config struct {
	// Key is the cache key. Required.
	Key string
	// Namespace of the key. Defaults to cache.DefaultNamespace.
	Namespace string
	// TTL of values written by the strategy. Zero uses the cache's default
	// TTL; a negative TTL means never expire.
	TTL time.Duration
	// Tags attached to values written by the strategy.
	Tags []string
	// RefreshThreshold is used by RefreshAhead. Defaults to DefaultRefreshThreshold.
	RefreshThreshold float64
}

func (c Config) entryOptions() []cache.EntryOption {
	opts := []cache.EntryOption{cache.WithNamespace(c.Namespace)}
	if c.TTL != 0 {
		opts = append(opts, cache.WithTTL(c.TTL))
	}
	if len(c.Tags) > 0 {
		opts = append(opts, cache.WithTags(c.Tags...))
	}
	return opts
}

func (c Config) namespace() string {
	if c.Namespace == "" {
		return cache.DefaultNamespace
	}
	return c.Namespace
}

func (c Config) flightKey() string {
	return c.namespace() + ":" + c.Key
}

func (c Config) threshold() float64 {
	if c.RefreshThreshold <= 0 || c.RefreshThreshold >= 1 {
		return DefaultRefreshThreshold
	}
	return c.RefreshThreshold
}

// Invoker is a function that produces a value of type T.
// The bool return indicates whether a value was found. Return false to signal
// "not found" without caching a zero value (e.g. sql.ErrNoRows scenarios).
type Invoker[T any] func(ctx context.Context) (T, bool, error)

// Writer writes a value to the source of truth.
type Writer[T any] func(ctx context.Context, val T) error

// ErrorHandler receives failures of background work: write-behind writes
// and refresh-ahead reloads.
type ErrorHandler func(key string, err error)

// Option configures an Executor.
type Option func(*Executor)

// WithSingleFlight coalesces concurrent loads of the same key into one
// Invoker call. Without it, concurrent misses may each invoke the loader.
func WithSingleFlight() Option {
	return func(e *Executor) { e.group = &singleflight.Group{} }
}

// WithErrorHandler sets the handler for background failures. By default they are logged.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(e *Executor) { e.onError = fn }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithTracerProvider sets the provider of the tracer used for loads and
// writes. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Executor) { e.tracer = tp.Tracer(tracerName) }
}

// Executor runs caching strategies against a Cache using only its public API.
type Executor struct {
	cache   *cache.Cache
	logger  logger.Logger
	tracer  trace.Tracer
	group   *singleflight.Group
	onError ErrorHandler
	wg      sync.WaitGroup
}

// New returns an Executor for c.
func New(c *cache.Cache, opts ...Option) *Executor {
	e := &Executor{cache: c}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.NewConsoleLogger()
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	e.logger = e.logger.WithPrefix("[strategy]")
	return e
}

// Cache returns the underlying cache.
func (e *Executor) Cache() *cache.Cache {
	return e.cache
}

// Wait blocks until all background writes and refreshes have finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}

func (e *Executor) report(key string, err error) {
	if e.onError != nil {
		e.onError(key, err)
		return
	}
	e.logger.Error("background operation for %s failed: %s", key, err)
}

// span starts a span for an operation on cfg's key. end records err, if
// any, and ends it.
func (e *Executor) span(ctx context.Context, name string, cfg Config) (context.Context, func(err error)) {
	ctx, span := e.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("cache.namespace", cfg.namespace()),
		attribute.String("cache.key", cfg.Key),
	))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

func (e *Executor) background(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
}

type loaded[T any] struct {
	val   T
	found bool
}

// load invokes the loader and caches a found result.
func load[T any](ctx context.Context, e *Executor, cfg Config, invoke Invoker[T]) (T, bool, error) {
	fn := func() (any, error) {
		spanCtx, end := e.span(ctx, "strategy.load", cfg)
		val, found, err := invoke(spanCtx)
		end(err)
		if err != nil {
			return nil, err
		}
		if found && !e.cache.Set(cfg.Key, val, cfg.entryOptions()...) {
			e.logger.Debug("loaded value for %s was not cached", cfg.flightKey())
		}
		return loaded[T]{val: val, found: found}, nil
	}
	var (
		res any
		err error
	)
	if e.group != nil {
		res, err, _ = e.group.Do(cfg.flightKey(), fn)
	} else {
		res, err = fn()
	}
	if err != nil {
		var zero T
		return zero, false, err
	}
	r, ok := res.(loaded[T])
	if !ok {
		var zero T
		return zero, false, errors.Wrapf(cache.ErrTypeMismatch, "concurrent load of %s produced %T", cfg.flightKey(), res)
	}
	return r.val, r.found, nil
}

// CacheAside checks the cache for cfg.Key first. On a hit it returns the
// cached value with found=true. On a miss it calls invoke; if invoke returns
// found=true the value is cached and returned. Not-found results and errors
// are never cached.
func CacheAside[T any](ctx context.Context, e *Executor, cfg Config, invoke Invoker[T]) (T, bool, error) {
	val, found, err := cache.GetAs[T](e.cache, cfg.Key, cache.WithNamespace(cfg.Namespace))
	if err != nil {
		var zero T
		return zero, false, err
	}
	if found {
		return val, true, nil
	}
	return load(ctx, e, cfg, invoke)
}

// WriteThrough writes val to the source of truth and, only if that
// succeeds, stores it in the cache.
func WriteThrough[T any](ctx context.Context, e *Executor, cfg Config, val T, write Writer[T]) error {
	spanCtx, end := e.span(ctx, "strategy.write_through", cfg)
	err := write(spanCtx, val)
	end(err)
	if err != nil {
		return errors.Wrapf(err, "write-through %s", cfg.flightKey())
	}
	if !e.cache.Set(cfg.Key, val, cfg.entryOptions()...) {
		e.logger.Warn("write-through value for %s was written but not cached", cfg.flightKey())
	}
	return nil
}

// WriteBehind stores val in the cache immediately and writes it to the
// source of truth in the background. A failed write is passed to the error
// handler and not retried. The background write is not cancelled with ctx.
// It reports whether the cache accepted the value.
func WriteBehind[T any](ctx context.Context, e *Executor, cfg Config, val T, write Writer[T]) bool {
	cached := e.cache.Set(cfg.Key, val, cfg.entryOptions()...)
	bg := context.WithoutCancel(ctx)
	e.background(func() {
		spanCtx, end := e.span(bg, "strategy.write_behind", cfg)
		err := write(spanCtx, val)
		end(err)
		if err != nil {
			e.report(cfg.flightKey(), errors.Wrap(err, "write-behind"))
		}
	})
	return cached
}

// RefreshAhead behaves like CacheAside, and additionally reloads a cached
// value in the background once less than (1 - RefreshThreshold) of cfg.TTL
// remains. The still valid cached value is returned immediately.
func RefreshAhead[T any](ctx context.Context, e *Executor, cfg Config, invoke Invoker[T]) (T, bool, error) {
	val, found, err := cache.GetAs[T](e.cache, cfg.Key, cache.WithNamespace(cfg.Namespace))
	if err != nil {
		var zero T
		return zero, false, err
	}
	if !found {
		return load(ctx, e, cfg, invoke)
	}
	if cfg.TTL > 0 {
		remaining, ok := e.cache.TTL(cfg.Key, cache.WithNamespace(cfg.Namespace))
		if ok && float64(remaining) < float64(cfg.TTL)*(1-cfg.threshold()) {
			bg := context.WithoutCancel(ctx)
			e.background(func() {
				if _, _, err := load(bg, e, cfg, invoke); err != nil {
					e.report(cfg.flightKey(), errors.Wrap(err, "refresh-ahead"))
				}
			})
		}
	}
	return val, true, nil
}

// Warm loads keys into the cache with at most concurrency loads in flight.
// cfg supplies namespace, TTL and tags; its Key is ignored. Failures are
// logged. It returns the number of values cached.
func Warm[T any](ctx context.Context, e *Executor, cfg Config, keys []string, concurrency int, fetch func(ctx context.Context, key string) (T, bool, error)) int {
	if concurrency <= 0 {
		concurrency = DefaultWarmConcurrency
	}
	var (
		g      errgroup.Group
		cached atomic.Int64
	)
	g.SetLimit(concurrency)
	for _, key := range keys {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			kc := cfg
			kc.Key = key
			val, found, err := fetch(ctx, key)
			if err != nil {
				e.logger.Warn("failed to warm %s: %s", kc.flightKey(), err)
				return nil
			}
			if found && e.cache.Set(key, val, kc.entryOptions()...) {
				cached.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	n := int(cached.Load())
	e.logger.Debug("warmed %d of %d keys", n, len(keys))
	return n
}
