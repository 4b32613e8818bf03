// Package monitor derives a health status and flat monitoring metrics from
// a cache's statistics.
package monitor

import (
	"github.com/agentuity/go-cache/cache"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// Status is the overall health of a cache.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

func (s Status) rank() int {
	switch s {
	case StatusError:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}

const (
	// LowHitRate is the hit rate percentage below which a warning is raised.
	LowHitRate = 50.0
	// NearlyFull is the utilization percentage above which a warning is raised.
	NearlyFull = 90.0
	// Full is the utilization percentage at which an error is raised.
	Full = 100.0
	// HighEvictionRatio is the evictions/sets ratio above which a warning is raised.
	HighEvictionRatio = 0.3
)

// Health is the result of a health check.
type Health struct {
	Status            Status   `json:"status"`
	Enabled           bool     `json:"enabled"`
	HitRate           float64  `json:"hit_rate"`
	Utilization       float64  `json:"utilization"`
	MemoryUtilization float64  `json:"memory_utilization"`
	CacheSize         int      `json:"cache_size"`
	MemoryMB          float64  `json:"memory_mb"`
	HostMemoryPercent float64  `json:"host_memory_percent"`
	DiskFreeBytes     uint64   `json:"disk_free_bytes,omitempty"`
	Issues            []string `json:"issues"`
}

func (h *Health) raise(s Status, issue string) {
	if s.rank() > h.Status.rank() {
		h.Status = s
	}
	h.Issues = append(h.Issues, issue)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithDiskPath reports the free space of the file system holding dir, such
// as the directory of a file store.
func WithDiskPath(dir string) Option {
	return func(m *Monitor) { m.diskPath = dir }
}

// Monitor checks the health of one cache.
type Monitor struct {
	cache      *cache.Cache
	diskPath   string
	hostMemory func() (float64, error)
	diskFree   func(dir string) (uint64, error)
}

// New returns a Monitor for c.
func New(c *cache.Cache, opts ...Option) *Monitor {
	m := &Monitor{
		cache:      c,
		hostMemory: hostMemoryPercent,
		diskFree:   diskFreeBytes,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func hostMemoryPercent() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

func diskFreeBytes(dir string) (uint64, error) {
	usage, err := disk.Usage(dir)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// Health evaluates the cache. A low hit rate is only reported once the
// cache has served at least one lookup.
func (m *Monitor) Health() Health {
	s := m.cache.Stats()
	h := Health{
		Status:            StatusOK,
		Enabled:           s.Enabled,
		HitRate:           s.HitRate,
		Utilization:       s.Utilization,
		MemoryUtilization: s.MemoryUtilization,
		CacheSize:         s.CacheSize,
		MemoryMB:          s.TotalSizeMB,
		Issues:            []string{},
	}
	if s.Hits+s.Misses > 0 && s.HitRate < LowHitRate {
		h.raise(StatusWarning, "Low cache hit rate")
	}
	switch {
	case s.Utilization >= Full:
		h.raise(StatusError, "Cache is full")
	case s.Utilization > NearlyFull:
		h.raise(StatusWarning, "Cache nearly full")
	}
	if s.MemoryUtilization > NearlyFull {
		h.raise(StatusWarning, "Cache memory budget nearly exhausted")
	}
	if float64(s.Evictions) > float64(s.Sets)*HighEvictionRatio {
		h.raise(StatusWarning, "High eviction rate")
	}
	if pct, err := m.hostMemory(); err == nil {
		h.HostMemoryPercent = pct
	}
	if m.diskPath != "" {
		if free, err := m.diskFree(m.diskPath); err == nil {
			h.DiskFreeBytes = free
		}
	}
	return h
}

// Metrics returns flat metrics for a monitoring system.
func (m *Monitor) Metrics() map[string]any {
	s := m.cache.Stats()
	h := m.Health()
	return map[string]any{
		"cache.hit_rate":           s.HitRate,
		"cache.miss_rate":          s.MissRate,
		"cache.size":               s.CacheSize,
		"cache.utilization":        s.Utilization,
		"cache.memory_mb":          s.TotalSizeMB,
		"cache.evictions":          s.Evictions,
		"cache.expirations":        s.Expirations,
		"cache.health_status":      string(h.Status),
		"host.memory_used_percent": h.HostMemoryPercent,
	}
}
