package caches

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/agentuity/go-cache/cache"
	"github.com/agentuity/go-cache/logger"
	"github.com/cockroachdb/errors"
)

// Kind names a pre-configured cache.
type Kind string

const (
	KindDefault Kind = "default"
	KindQuery   Kind = "query"
	KindSession Kind = "session"
	KindProduct Kind = "product"
)

func kindDefaults(kind Kind) []cache.Option {
	switch kind {
	case KindQuery:
		return []cache.Option{cache.WithDefaultTTL(5 * time.Minute), cache.WithMaxSize(5000)}
	case KindSession:
		return []cache.Option{cache.WithDefaultTTL(30 * time.Minute), cache.WithMaxSize(10000)}
	case KindProduct:
		return []cache.Option{cache.WithDefaultTTL(10 * time.Minute), cache.WithMaxSize(3000)}
	default:
		return nil
	}
}

// Registry creates caches on first use and hands out the same instance for
// a kind afterwards.
type Registry struct {
	ctx    context.Context
	opts   []cache.Option
	logger logger.Logger

	mu     sync.Mutex
	caches map[Kind]*cache.Cache
}

// NewRegistry returns a Registry. opts apply to every cache it creates, after
// the per-kind defaults. A nil log falls back to a console logger.
func NewRegistry(ctx context.Context, log logger.Logger, opts ...cache.Option) *Registry {
	if log == nil {
		log = logger.NewConsoleLogger()
	}
	return &Registry{
		ctx:    ctx,
		opts:   opts,
		logger: log.WithPrefix("[caches]"),
		caches: make(map[Kind]*cache.Cache),
	}
}

// Get returns the cache of kind, creating it on first use. Unknown kinds get
// the engine defaults.
func (r *Registry) Get(kind Kind) (*cache.Cache, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.caches[kind]; ok {
		return c, nil
	}
	opts := append(kindDefaults(kind), r.opts...)
	c, err := cache.New(r.ctx, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s cache", kind)
	}
	r.caches[kind] = c
	r.logger.Info("created %s cache", kind)
	return c, nil
}

// Query returns the shared QueryCache.
func (r *Registry) Query() (*QueryCache, error) {
	c, err := r.Get(KindQuery)
	if err != nil {
		return nil, err
	}
	return &QueryCache{c}, nil
}

// Sessions returns the shared SessionCache.
func (r *Registry) Sessions() (*SessionCache, error) {
	c, err := r.Get(KindSession)
	if err != nil {
		return nil, err
	}
	return &SessionCache{c}, nil
}

// Products returns the shared ProductCache.
func (r *Registry) Products() (*ProductCache, error) {
	c, err := r.Get(KindProduct)
	if err != nil {
		return nil, err
	}
	return &ProductCache{c}, nil
}

// All returns a copy of the created caches by kind.
func (r *Registry) All() map[Kind]*cache.Cache {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.caches)
}

// Kinds returns the kinds created so far, sorted.
func (r *Registry) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.caches))
}

// ClearAll clears every created cache and returns the number of entries removed.
func (r *Registry) ClearAll() int {
	var total int
	for kind, c := range r.All() {
		n := c.Clear()
		total += n
		r.logger.Info("cleared %s cache (%d entries)", kind, n)
	}
	return total
}

// CloseAll closes every created cache and forgets them.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	created := r.caches
	r.caches = make(map[Kind]*cache.Cache)
	r.mu.Unlock()

	var err error
	for kind, c := range created {
		if cerr := c.Close(); cerr != nil {
			err = errors.CombineErrors(err, errors.Wrapf(cerr, "close %s cache", kind))
			continue
		}
		r.logger.Info("stopped %s cache", kind)
	}
	return err
}
