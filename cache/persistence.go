package cache

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/agentuity/go-cache/persist"
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

type savedEntry struct {
	entry   Entry
	encoded []byte
}

// batch collects the store writes produced while Cache.mu is held so they
// can be performed after it is released. A nil batch discards everything.
type batch struct {
	saves   []savedEntry
	deletes []string
}

func (c *Cache) newBatch() *batch {
	if c.cfg.store == nil {
		return nil
	}
	return &batch{}
}

func (b *batch) save(e *Entry, encoded []byte) {
	if b == nil {
		return
	}
	cp := *e
	b.saves = append(b.saves, savedEntry{entry: cp, encoded: encoded})
}

func (b *batch) delete(key string) {
	if b == nil {
		return
	}
	b.deletes = append(b.deletes, key)
}

func (b *batch) empty() bool {
	return b == nil || (len(b.saves) == 0 && len(b.deletes) == 0)
}

// flush applies b to the store. Failures are logged and otherwise ignored;
// the in-memory cache stays authoritative.
func (c *Cache) flush(b *batch) {
	if b.empty() {
		return
	}
	c.storeMu.RLock()
	defer c.storeMu.RUnlock()
	if c.closed.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persist.DefaultQueryTimeout)
	defer cancel()

	store := c.cfg.store
	for _, key := range b.deletes {
		if err := store.Delete(ctx, key); err != nil {
			c.logger.Warn("failed to delete persisted entry %s: %s", key, err)
		}
	}
	for _, s := range b.saves {
		rec, err := toRecord(s)
		if err != nil {
			c.logger.Debug("not persisting %s: %s", s.entry.Key, err)
			continue
		}
		if err := store.Save(ctx, rec); err != nil {
			c.logger.Warn("failed to persist entry %s: %s", s.entry.Key, err)
		}
	}
}

func toRecord(s savedEntry) (persist.Record, error) {
	e := s.entry
	buf := s.encoded
	if buf == nil {
		var err error
		if buf, err = msgpack.Marshal(e.Value); err != nil {
			return persist.Record{}, errors.Wrap(err, "encode value")
		}
	}
	rec := persist.Record{
		Key:          e.Key,
		Namespace:    e.Namespace,
		Value:        buf,
		CreatedAt:    e.CreatedAt.UnixNano(),
		Hits:         e.Hits,
		LastAccessed: e.LastAccessed.UnixNano(),
		SizeBytes:    e.SizeBytes,
		Tags:         e.Tags,
	}
	if e.HasExpiry() {
		rec.ExpiresAt = e.ExpiresAt.UnixNano()
	}
	return rec, nil
}

func fromRecord(rec persist.Record) (*Entry, error) {
	val, err := decodeValue(rec.Value)
	if err != nil {
		return nil, err
	}
	ns := rec.Namespace
	if ns == "" {
		ns, _, _ = strings.Cut(rec.Key, keySeparator)
	}
	e := &Entry{
		Key:          rec.Key,
		Value:        val,
		CreatedAt:    time.Unix(0, rec.CreatedAt),
		Hits:         rec.Hits,
		LastAccessed: time.Unix(0, rec.LastAccessed),
		SizeBytes:    rec.SizeBytes,
		Namespace:    ns,
		Tags:         normalizeTags(rec.Tags),
	}
	if rec.ExpiresAt != 0 {
		e.ExpiresAt = time.Unix(0, rec.ExpiresAt)
	}
	if e.SizeBytes <= 0 {
		e.SizeBytes = int64(len(rec.Value))
	}
	return e, nil
}

// decodeValue decodes a persisted value into plain Go types: maps become
// map[string]any, integers int64 or uint64 and floats float64.
func decodeValue(buf []byte) (any, error) {
	if len(buf) == 0 {
		return nil, errors.New("empty value")
	}
	var val any
	if err := msgpack.Unmarshal(buf, &val); err != nil {
		return nil, errors.Wrap(err, "decode value")
	}
	return normalizeDecoded(val), nil
}

func normalizeDecoded(v any) any {
	switch t := v.(type) {
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint8:
		return uint64(t)
	case uint16:
		return uint64(t)
	case uint32:
		return uint64(t)
	case float32:
		return float64(t)
	case []any:
		for i := range t {
			t[i] = normalizeDecoded(t[i])
		}
		return t
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeDecoded(val)
		}
		return t
	default:
		return v
	}
}

// restore loads persisted records into the empty cache. Records are applied
// from least to most recently accessed so the LRU order survives a restart.
// Expired and undecodable records are removed from the store.
func (c *Cache) restore(ctx context.Context) {
	loadCtx, cancel := context.WithTimeout(ctx, persist.DefaultQueryTimeout)
	records, err := c.cfg.store.Load(loadCtx)
	cancel()
	if err != nil {
		c.logger.Warn("failed to load persisted entries: %s", err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].LastAccessed < records[j].LastAccessed
	})

	now := c.cfg.now()
	b := c.newBatch()
	var loaded int

	c.mu.Lock()
	for _, rec := range records {
		if rec.Expired(now) {
			b.delete(rec.Key)
			continue
		}
		if _, ok := c.index.lookup(rec.Key); ok {
			continue
		}
		e, err := fromRecord(rec)
		if err != nil {
			c.logger.Warn("dropping persisted entry %s: %s", rec.Key, err)
			b.delete(rec.Key)
			continue
		}
		if e.SizeBytes > c.cfg.maxMemory {
			b.delete(rec.Key)
			continue
		}
		for c.index.len() >= c.cfg.maxSize && c.evictLocked(now, b) {
		}
		for c.stats.TotalSizeBytes+e.SizeBytes > c.cfg.maxMemory && c.evictLocked(now, b) {
		}
		c.index.insert(e)
		c.stats.TotalSizeBytes += e.SizeBytes
		loaded++
	}
	c.mu.Unlock()

	c.flush(b)
	if loaded > 0 {
		c.logger.Info("restored %d entries from persistent storage", loaded)
	}
}

// saveAll writes every live entry to the store.
func (c *Cache) saveAll() {
	now := c.cfg.now()
	b := c.newBatch()
	c.mu.Lock()
	for el := c.index.order.Front(); el != nil; el = el.Next() {
		if e := entryOf(el); !e.Expired(now) {
			b.save(e, nil)
		}
	}
	c.mu.Unlock()
	c.flush(b)
}
