package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentuity/go-cache/logger"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

type removal int

const (
	removeDeleted removal = iota
	removeExpired
	removeEvicted
	removeOverwritten
	removeInvalidated
	removeCleared
)

var removalOps = map[removal]string{
	removeDeleted:     "delete",
	removeExpired:     "expired",
	removeEvicted:     "evict",
	removeOverwritten: "overwrite",
	removeInvalidated: "invalidate",
	removeCleared:     "clear",
}

// Cache is a thread-safe in-process cache with TTL expiration, LRU eviction
// under an entry-count and a memory budget, namespaces and tags.
type Cache struct {
	id      string
	cfg     config
	logger  logger.Logger
	sweeper *sweeper
	closed  atomic.Bool
	once    sync.Once
	storeMu sync.RWMutex

	mu     sync.Mutex
	index  *index
	stats  Statistics
	recent opRing
}

// New returns a Cache. If a store is configured, live entries are restored
// from it before New returns. The background sweeper runs until Close is
// called or ctx is cancelled.
func New(ctx context.Context, opts ...Option) (*Cache, error) {
	cfg := applyOptions(opts)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := &Cache{
		id:     uuid.NewString(),
		cfg:    cfg,
		logger: cfg.logger.WithPrefix("[cache]"),
		index:  newIndex(),
	}
	c.stats.StartTime = cfg.now()
	if cfg.store != nil {
		c.restore(ctx)
	}
	if cfg.enabled && cfg.sweepInterval > 0 {
		c.sweeper = startSweeper(ctx, cfg.sweepInterval, c.CleanupExpired, c.logger)
	}
	c.logger.Debug("initialized (enabled: %t, max size: %d, max memory: %d, default ttl: %s)",
		cfg.enabled, cfg.maxSize, cfg.maxMemory, cfg.defaultTTL)
	return c, nil
}

// ID returns the unique id of this cache instance.
func (c *Cache) ID() string {
	return c.id
}

// Enabled reports whether the cache accepts reads and writes.
func (c *Cache) Enabled() bool {
	return c.cfg.enabled
}

func (c *Cache) record(op, key string, now time.Time) {
	c.recent.add(Operation{Timestamp: now, Operation: op, Key: key})
}

// estimateSize returns the msgpack encoding of v and its length. Values that
// cannot be encoded count as zero bytes.
func (c *Cache) estimateSize(v any) ([]byte, int64) {
	buf, err := msgpack.Marshal(v)
	if err != nil {
		c.logger.Debug("cannot size value of type %T: %s", v, err)
		return nil, 0
	}
	return buf, int64(len(buf))
}

// removeLocked is the only way an entry leaves the cache. It unlinks the
// entry from every index, adjusts the size total and counters and queues
// removal of the durable copy.
func (c *Cache) removeLocked(el *list.Element, why removal, now time.Time, b *batch) *Entry {
	e := c.index.unlink(el)
	c.stats.TotalSizeBytes -= e.SizeBytes
	switch why {
	case removeDeleted:
		c.stats.Deletes++
	case removeExpired:
		c.stats.Expirations++
	case removeEvicted:
		c.stats.Evictions++
	}
	c.record(removalOps[why], e.Key, now)
	if why != removeOverwritten {
		b.delete(e.Key)
	}
	return e
}

// evictLocked removes the least recently used entry. It returns false when the cache is empty.
func (c *Cache) evictLocked(now time.Time, b *batch) bool {
	el := c.index.oldest()
	if el == nil {
		return false
	}
	e := c.removeLocked(el, removeEvicted, now, b)
	c.logger.Trace("evicted %s", e.Key)
	return true
}

// liveLocked returns the element for fullKey if it exists and has not expired.
func (c *Cache) liveLocked(fullKey string, now time.Time) (*list.Element, bool) {
	el, ok := c.index.lookup(fullKey)
	if !ok || entryOf(el).Expired(now) {
		return nil, false
	}
	return el, true
}

// Get returns the value stored under key. Expired entries are removed and
// reported as missing.
func (c *Cache) Get(key string, opts ...EntryOption) (any, bool) {
	if !c.cfg.enabled {
		return nil, false
	}
	o := resolveEntryOptions(opts)
	fullKey := makeKey(o.namespace, key)
	now := c.cfg.now()
	b := c.newBatch()

	c.mu.Lock()
	val, ok := c.getLocked(fullKey, now, b)
	c.mu.Unlock()

	c.flush(b)
	return val, ok
}

func (c *Cache) getLocked(fullKey string, now time.Time, b *batch) (any, bool) {
	el, ok := c.index.lookup(fullKey)
	if !ok {
		c.stats.Misses++
		c.record("miss", fullKey, now)
		return nil, false
	}
	e := entryOf(el)
	if e.Expired(now) {
		c.removeLocked(el, removeExpired, now, b)
		c.stats.Misses++
		return nil, false
	}
	e.Touch(now)
	c.index.promote(el)
	c.stats.Hits++
	c.record("hit", fullKey, now)
	return e.Value, true
}

// GetOr returns the value stored under key, or def when it is missing or expired.
func (c *Cache) GetOr(key string, def any, opts ...EntryOption) any {
	if val, ok := c.Get(key, opts...); ok {
		return val
	}
	return def
}

// Set stores value under key. It returns false without touching the cache
// when the value alone exceeds the memory budget or the cache is disabled.
// Least recently used entries are evicted until both budgets fit the new entry.
func (c *Cache) Set(key string, value any, opts ...EntryOption) bool {
	if !c.cfg.enabled {
		return false
	}
	o := resolveEntryOptions(opts)
	fullKey := makeKey(o.namespace, key)
	encoded, size := c.estimateSize(value)
	if size > c.cfg.maxMemory {
		c.logger.Warn("value too large for cache: %s is %d bytes, budget is %d", fullKey, size, c.cfg.maxMemory)
		return false
	}
	now := c.cfg.now()
	b := c.newBatch()

	c.mu.Lock()
	ok := c.setLocked(fullKey, value, encoded, size, o, now, b)
	c.mu.Unlock()

	c.flush(b)
	return ok
}

func (c *Cache) setLocked(fullKey string, value any, encoded []byte, size int64, o entryOptions, now time.Time, b *batch) bool {
	if el, ok := c.index.lookup(fullKey); ok {
		c.removeLocked(el, removeOverwritten, now, b)
	}
	for c.index.len() >= c.cfg.maxSize {
		if !c.evictLocked(now, b) {
			break
		}
	}
	for c.stats.TotalSizeBytes+size > c.cfg.maxMemory {
		if !c.evictLocked(now, b) {
			c.logger.Warn("cannot make room for %s (%d bytes)", fullKey, size)
			return false
		}
	}

	ttl := c.cfg.defaultTTL
	if o.hasTTL {
		ttl = o.ttl
	}
	e := &Entry{
		Key:          fullKey,
		Value:        value,
		CreatedAt:    now,
		LastAccessed: now,
		SizeBytes:    size,
		Namespace:    o.namespace,
		Tags:         normalizeTags(o.tags),
	}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	c.index.insert(e)
	c.stats.TotalSizeBytes += size
	c.stats.Sets++
	c.record("set", fullKey, now)
	b.save(e, encoded)
	return true
}

// Delete removes key and reports whether it existed.
func (c *Cache) Delete(key string, opts ...EntryOption) bool {
	if !c.cfg.enabled {
		return false
	}
	o := resolveEntryOptions(opts)
	fullKey := makeKey(o.namespace, key)
	now := c.cfg.now()
	b := c.newBatch()

	c.mu.Lock()
	el, ok := c.index.lookup(fullKey)
	if ok {
		c.removeLocked(el, removeDeleted, now, b)
	}
	c.mu.Unlock()

	c.flush(b)
	return ok
}

// Exists reports whether a live entry is stored under key without counting
// a hit or a miss. An expired entry is removed.
func (c *Cache) Exists(key string, opts ...EntryOption) bool {
	if !c.cfg.enabled {
		return false
	}
	o := resolveEntryOptions(opts)
	fullKey := makeKey(o.namespace, key)
	now := c.cfg.now()
	b := c.newBatch()

	c.mu.Lock()
	el, ok := c.index.lookup(fullKey)
	if ok && entryOf(el).Expired(now) {
		c.removeLocked(el, removeExpired, now, b)
		ok = false
	}
	c.mu.Unlock()

	c.flush(b)
	return ok
}

// Touch refreshes the recency and hit count of a live entry without reading it.
func (c *Cache) Touch(key string, opts ...EntryOption) bool {
	if !c.cfg.enabled {
		return false
	}
	o := resolveEntryOptions(opts)
	now := c.cfg.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.liveLocked(makeKey(o.namespace, key), now)
	if !ok {
		return false
	}
	entryOf(el).Touch(now)
	c.index.promote(el)
	return true
}

// ExtendTTL pushes the expiry of a live entry d further out. Entries
// without an expiry are left alone and false is returned.
func (c *Cache) ExtendTTL(key string, d time.Duration, opts ...EntryOption) bool {
	if !c.cfg.enabled {
		return false
	}
	o := resolveEntryOptions(opts)
	now := c.cfg.now()
	b := c.newBatch()

	c.mu.Lock()
	el, ok := c.liveLocked(makeKey(o.namespace, key), now)
	if ok {
		e := entryOf(el)
		if e.HasExpiry() {
			e.ExpiresAt = e.ExpiresAt.Add(d)
			b.save(e, nil)
		} else {
			ok = false
		}
	}
	c.mu.Unlock()

	c.flush(b)
	return ok
}

// TTL returns the remaining lifetime of a live entry. The boolean is false
// when the entry is missing, expired or never expires.
func (c *Cache) TTL(key string, opts ...EntryOption) (time.Duration, bool) {
	if !c.cfg.enabled {
		return 0, false
	}
	o := resolveEntryOptions(opts)
	now := c.cfg.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.liveLocked(makeKey(o.namespace, key), now)
	if !ok {
		return 0, false
	}
	return entryOf(el).TTLRemaining(now)
}

// GetMulti returns the live values for keys. Missing keys are absent from the result.
func (c *Cache) GetMulti(keys []string, opts ...EntryOption) map[string]any {
	result := make(map[string]any, len(keys))
	for _, key := range keys {
		if val, ok := c.Get(key, opts...); ok {
			result[key] = val
		}
	}
	return result
}

// SetMulti stores every item and returns how many were accepted.
func (c *Cache) SetMulti(items map[string]any, opts ...EntryOption) int {
	var n int
	for key, val := range items {
		if c.Set(key, val, opts...) {
			n++
		}
	}
	return n
}

// DeleteMulti removes keys and returns how many existed.
func (c *Cache) DeleteMulti(keys []string, opts ...EntryOption) int {
	var n int
	for _, key := range keys {
		if c.Delete(key, opts...) {
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, including expired entries not yet removed.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.len()
}

// Keys returns the full keys from most to least recently used.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, c.index.len())
	for el := c.index.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, entryOf(el).Key)
	}
	return keys
}

// RecentOperations returns up to the last 100 operations, oldest first.
func (c *Cache) RecentOperations() []Operation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recent.ordered()
}

// Close stops the sweeper, writes every live entry to the store and closes
// it. Close is safe to call multiple times.
func (c *Cache) Close() error {
	var err error
	c.once.Do(func() {
		if c.sweeper != nil && !c.sweeper.stop(c.cfg.shutdownTimeout) {
			c.logger.Warn("sweeper did not stop within %s", c.cfg.shutdownTimeout)
		}
		if c.cfg.store != nil {
			c.saveAll()
			c.storeMu.Lock()
			c.closed.Store(true)
			err = c.cfg.store.Close()
			c.storeMu.Unlock()
		}
		c.logger.Debug("stopped")
	})
	return err
}
