package cache

import (
	"container/list"
	"strings"
	"time"

	"github.com/gobwas/glob"
)

// Clear removes every entry and returns how many were removed. Cumulative
// counters are kept.
func (c *Cache) Clear() int {
	now := c.cfg.now()
	b := c.newBatch()

	c.mu.Lock()
	var n int
	c.index.each(func(el *list.Element) {
		c.removeLocked(el, removeCleared, now, b)
		n++
	})
	c.stats.TotalSizeBytes = 0
	c.mu.Unlock()

	c.flush(b)
	c.logger.Debug("cleared %d entries", n)
	return n
}

// ClearNamespace removes every entry in namespace ns.
func (c *Cache) ClearNamespace(ns string) int {
	if ns == "" {
		ns = DefaultNamespace
	}
	now := c.cfg.now()
	b := c.newBatch()

	c.mu.Lock()
	n := c.removeKeysLocked(c.index.namespaceKeys(ns), removeCleared, now, b)
	c.mu.Unlock()

	c.flush(b)
	return n
}

// InvalidateByTag removes every entry carrying tag.
func (c *Cache) InvalidateByTag(tag string) int {
	now := c.cfg.now()
	b := c.newBatch()

	c.mu.Lock()
	n := c.removeKeysLocked(c.index.tagKeys(tag), removeInvalidated, now, b)
	c.mu.Unlock()

	c.flush(b)
	if n > 0 {
		c.logger.Debug("invalidated %d entries tagged %q", n, tag)
	}
	return n
}

// escapePattern quotes the glob syntax beyond * and ? so brackets and braces
// in keys are matched literally.
func escapePattern(pattern string) string {
	var sb strings.Builder
	for _, r := range pattern {
		switch r {
		case '[', ']', '{', '}', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// InvalidateByPattern removes every entry of namespace ns whose full key
// contains a match of the glob pattern. Only * and ? are wildcards, every
// other character matches itself.
func (c *Cache) InvalidateByPattern(pattern string, opts ...EntryOption) int {
	o := resolveEntryOptions(opts)
	g, err := glob.Compile("*" + escapePattern(pattern) + "*")
	if err != nil {
		c.logger.Warn("invalid invalidation pattern %q: %s", pattern, err)
		return 0
	}
	now := c.cfg.now()
	b := c.newBatch()

	c.mu.Lock()
	var matched []string
	for _, key := range c.index.namespaceKeys(o.namespace) {
		if g.Match(key) {
			matched = append(matched, key)
		}
	}
	n := c.removeKeysLocked(matched, removeInvalidated, now, b)
	c.mu.Unlock()

	c.flush(b)
	if n > 0 {
		c.logger.Debug("invalidated %d entries matching %q in %s", n, pattern, o.namespace)
	}
	return n
}

// CleanupExpired removes every expired entry and returns how many were removed.
func (c *Cache) CleanupExpired() int {
	now := c.cfg.now()
	b := c.newBatch()

	c.mu.Lock()
	var n int
	c.index.each(func(el *list.Element) {
		if entryOf(el).Expired(now) {
			c.removeLocked(el, removeExpired, now, b)
			n++
		}
	})
	c.mu.Unlock()

	c.flush(b)
	return n
}

func (c *Cache) removeKeysLocked(keys []string, why removal, now time.Time, b *batch) int {
	var n int
	for _, key := range keys {
		if el, ok := c.index.lookup(key); ok {
			c.removeLocked(el, why, now, b)
			n++
		}
	}
	return n
}
