package cache

import (
	"math"
	"time"
)

// Statistics are the cumulative counters of a Cache. Only TotalSizeBytes
// goes down; it always equals the sum of SizeBytes over live entries.
type Statistics struct {
	Hits           int64
	Misses         int64
	Sets           int64
	Deletes        int64
	Expirations    int64
	Evictions      int64
	TotalSizeBytes int64
	StartTime      time.Time
}

// HitRate is the percentage of lookups that found a live entry, 0 without lookups.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// MissRate is 100 minus HitRate.
func (s Statistics) MissRate() float64 {
	return 100 - s.HitRate()
}

// Uptime is the time elapsed since StartTime.
func (s Statistics) Uptime(now time.Time) time.Duration {
	return now.Sub(s.StartTime)
}

// StatsSnapshot is the aggregate view returned by Cache.Stats.
type StatsSnapshot struct {
	InstanceID        string  `json:"instance_id"`
	Hits              int64   `json:"hits"`
	Misses            int64   `json:"misses"`
	Sets              int64   `json:"sets"`
	Deletes           int64   `json:"deletes"`
	Expirations       int64   `json:"expirations"`
	Evictions         int64   `json:"evictions"`
	HitRate           float64 `json:"hit_rate"`
	MissRate          float64 `json:"miss_rate"`
	TotalSizeBytes    int64   `json:"total_size_bytes"`
	TotalSizeMB       float64 `json:"total_size_mb"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
	CacheSize         int     `json:"cache_size"`
	MaxSize           int     `json:"max_size"`
	Utilization       float64 `json:"utilization"`
	MaxMemoryBytes    int64   `json:"max_memory_bytes"`
	MemoryUtilization float64 `json:"memory_utilization"`
	NamespacesCount   int     `json:"namespaces_count"`
	TagsCount         int     `json:"tags_count"`
	Enabled           bool    `json:"enabled"`
}

// NamespaceStats summarizes the live entries of one namespace.
type NamespaceStats struct {
	Namespace      string  `json:"namespace"`
	ItemsCount     int     `json:"items_count"`
	TotalSizeBytes int64   `json:"total_size_bytes"`
	TotalSizeMB    float64 `json:"total_size_mb"`
	TotalHits      int     `json:"total_hits"`
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func megabytes(b int64) float64 {
	return round2(float64(b) / (1024 * 1024))
}

func percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return round2(part / whole * 100)
}
