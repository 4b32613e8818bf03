package cache

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"sort"
	"strings"
	"time"
)

// SortBy selects the ordering of TopItems.
type SortBy string

const (
	SortByHits SortBy = "hits"
	SortBySize SortBy = "size"
	SortByAge  SortBy = "age"
)

// Stats returns a snapshot of the counters and current occupancy.
func (c *Cache) Stats() StatsSnapshot {
	now := c.cfg.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	return StatsSnapshot{
		InstanceID:        c.id,
		Hits:              s.Hits,
		Misses:            s.Misses,
		Sets:              s.Sets,
		Deletes:           s.Deletes,
		Expirations:       s.Expirations,
		Evictions:         s.Evictions,
		HitRate:           round2(s.HitRate()),
		MissRate:          round2(s.MissRate()),
		TotalSizeBytes:    s.TotalSizeBytes,
		TotalSizeMB:       megabytes(s.TotalSizeBytes),
		UptimeSeconds:     round2(s.Uptime(now).Seconds()),
		CacheSize:         c.index.len(),
		MaxSize:           c.cfg.maxSize,
		Utilization:       percent(float64(c.index.len()), float64(c.cfg.maxSize)),
		MaxMemoryBytes:    c.cfg.maxMemory,
		MemoryUtilization: percent(float64(s.TotalSizeBytes), float64(c.cfg.maxMemory)),
		NamespacesCount:   len(c.index.namespaces),
		TagsCount:         len(c.index.tags),
		Enabled:           c.cfg.enabled,
	}
}

// NamespaceStats summarizes namespace ns. An unknown namespace yields zero counts.
func (c *Cache) NamespaceStats(ns string) NamespaceStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := NamespaceStats{Namespace: ns}
	for _, key := range c.index.namespaceKeys(ns) {
		el, ok := c.index.lookup(key)
		if !ok {
			continue
		}
		e := entryOf(el)
		out.ItemsCount++
		out.TotalSizeBytes += e.SizeBytes
		out.TotalHits += e.Hits
	}
	out.TotalSizeMB = megabytes(out.TotalSizeBytes)
	return out
}

// Namespaces returns the names of all non-empty namespaces, sorted.
func (c *Cache) Namespaces() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.index.namespaces))
}

// TopItems returns up to limit entries ordered by sortBy, descending. A
// limit <= 0 returns every entry. Unknown orderings return entries from
// least to most recently used.
func (c *Cache) TopItems(limit int, sortBy SortBy) []EntryInfo {
	now := c.cfg.now()
	c.mu.Lock()
	items := make([]EntryInfo, 0, c.index.len())
	for el := c.index.order.Back(); el != nil; el = el.Prev() {
		items = append(items, entryOf(el).Info(now))
	}
	c.mu.Unlock()

	switch sortBy {
	case SortByHits:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Hits > items[j].Hits })
	case SortBySize:
		sort.SliceStable(items, func(i, j int) bool { return items[i].SizeBytes > items[j].SizeBytes })
	case SortByAge:
		sort.SliceStable(items, func(i, j int) bool { return items[i].AgeSeconds > items[j].AgeSeconds })
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

type statsExport struct {
	ExportedAt time.Time                 `json:"exported_at"`
	Statistics StatsSnapshot             `json:"statistics"`
	TopItems   []EntryInfo               `json:"top_items"`
	Namespaces map[string]NamespaceStats `json:"namespaces"`
}

// ExportStats writes statistics, the 20 most hit entries and per-namespace
// stats to path as indented JSON. Errors are logged and reported as false.
func (c *Cache) ExportStats(path string) bool {
	export := statsExport{
		ExportedAt: c.cfg.now(),
		Statistics: c.Stats(),
		TopItems:   c.TopItems(20, SortByHits),
		Namespaces: make(map[string]NamespaceStats),
	}
	for _, ns := range c.Namespaces() {
		export.Namespaces[ns] = c.NamespaceStats(ns)
	}
	buf, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		c.logger.Error("failed to encode statistics: %s", err)
		return false
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		c.logger.Error("failed to export statistics to %s: %s", path, err)
		return false
	}
	c.logger.Info("statistics exported to %s", path)
	return true
}

// Report returns a human readable summary of the cache.
func (c *Cache) Report() string {
	s := c.Stats()
	var sb strings.Builder
	line := strings.Repeat("=", 60)

	sb.WriteString(line + "\n")
	sb.WriteString("CACHE REPORT\n")
	sb.WriteString(line + "\n\n")

	sb.WriteString("General:\n")
	fmt.Fprintf(&sb, "  Instance:           %s\n", s.InstanceID)
	fmt.Fprintf(&sb, "  Enabled:            %t\n", s.Enabled)
	fmt.Fprintf(&sb, "  Uptime:             %s\n", time.Duration(s.UptimeSeconds*float64(time.Second)).Round(time.Second))
	fmt.Fprintf(&sb, "  Entries:            %d / %d (%.2f%%)\n", s.CacheSize, s.MaxSize, s.Utilization)
	fmt.Fprintf(&sb, "  Memory:             %.2f MB (%.2f%% of budget)\n", s.TotalSizeMB, s.MemoryUtilization)
	fmt.Fprintf(&sb, "  Namespaces:         %d\n", s.NamespacesCount)
	fmt.Fprintf(&sb, "  Tags:               %d\n\n", s.TagsCount)

	sb.WriteString("Performance:\n")
	fmt.Fprintf(&sb, "  Hits:               %d\n", s.Hits)
	fmt.Fprintf(&sb, "  Misses:             %d\n", s.Misses)
	fmt.Fprintf(&sb, "  Hit rate:           %.2f%%\n", s.HitRate)
	fmt.Fprintf(&sb, "  Sets:               %d\n", s.Sets)
	fmt.Fprintf(&sb, "  Deletes:            %d\n", s.Deletes)
	fmt.Fprintf(&sb, "  Expirations:        %d\n", s.Expirations)
	fmt.Fprintf(&sb, "  Evictions:          %d\n", s.Evictions)

	if names := c.Namespaces(); len(names) > 0 {
		sb.WriteString("\nNamespaces:\n")
		for _, ns := range names {
			st := c.NamespaceStats(ns)
			fmt.Fprintf(&sb, "  %-20s %6d items  %8.2f MB  %6d hits\n", ns, st.ItemsCount, st.TotalSizeMB, st.TotalHits)
		}
	}

	if top := c.TopItems(10, SortByHits); len(top) > 0 {
		sb.WriteString("\nTop items by hits:\n")
		for i, item := range top {
			fmt.Fprintf(&sb, "  %2d. %s (%d hits, %d bytes)\n", i+1, item.Key, item.Hits, item.SizeBytes)
		}
	}
	sb.WriteString(line + "\n")
	return sb.String()
}
