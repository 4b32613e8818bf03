package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsRates(t *testing.T) {
	c, clock, _ := newTestCache(t, WithMaxSize(10))
	s := c.Stats()
	assert.Equal(t, 0.0, s.HitRate)
	assert.Equal(t, 100.0, s.MissRate)

	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("b")
	clock.Advance(90 * time.Second)

	s = c.Stats()
	assert.Equal(t, 66.67, s.HitRate)
	assert.Equal(t, 33.33, s.MissRate)
	assert.Equal(t, 10.0, s.Utilization)
	assert.Equal(t, 90.0, s.UptimeSeconds)
	assert.Equal(t, 10, s.MaxSize)
	assert.Equal(t, c.ID(), s.InstanceID)
	assert.True(t, s.Enabled)

	c.Get("a")
	assert.Equal(t, 75.0, c.Stats().HitRate)
}

func TestNamespaceStats(t *testing.T) {
	c, _, _ := newTestCache(t)
	c.Set("a", "xx", WithNamespace("n"))
	c.Set("b", "yyy", WithNamespace("n"))
	c.Get("a", WithNamespace("n"))
	c.Get("a", WithNamespace("n"))

	st := c.NamespaceStats("n")
	assert.Equal(t, "n", st.Namespace)
	assert.Equal(t, 2, st.ItemsCount)
	assert.Equal(t, int64(3+4), st.TotalSizeBytes)
	assert.Equal(t, 2, st.TotalHits)

	empty := c.NamespaceStats("nothing")
	assert.Equal(t, 0, empty.ItemsCount)
}

func TestTopItems(t *testing.T) {
	c, clock, _ := newTestCache(t)
	c.Set("old", "a")
	clock.Advance(time.Minute)
	c.Set("big", "a much longer value than the others")
	clock.Advance(time.Minute)
	c.Set("hot", "b", WithTTL(time.Hour))
	for range 3 {
		c.Get("hot")
	}

	byHits := c.TopItems(2, SortByHits)
	require.Len(t, byHits, 2)
	assert.Equal(t, "default:hot", byHits[0].Key)
	assert.Equal(t, 3, byHits[0].Hits)
	require.NotNil(t, byHits[0].TTLRemaining)
	assert.Equal(t, 3600.0, *byHits[0].TTLRemaining)

	bySize := c.TopItems(1, SortBySize)
	assert.Equal(t, "default:big", bySize[0].Key)

	byAge := c.TopItems(0, SortByAge)
	require.Len(t, byAge, 3)
	assert.Equal(t, "default:old", byAge[0].Key)
	assert.Equal(t, 120.0, byAge[0].AgeSeconds)

	unsorted := c.TopItems(-1, SortBy("unknown"))
	assert.Equal(t, "default:old", unsorted[0].Key)
	assert.Equal(t, "default:hot", unsorted[2].Key)
}

func TestExportStats(t *testing.T) {
	c, _, _ := newTestCache(t)
	c.Set("a", 1, WithNamespace("n1"), WithTags("t"))
	c.Set("b", 2, WithNamespace("n2"))
	c.Get("a", WithNamespace("n1"))

	path := filepath.Join(t.TempDir(), "stats.json")
	require.True(t, c.ExportStats(path))

	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		ExportedAt time.Time                 `json:"exported_at"`
		Statistics StatsSnapshot             `json:"statistics"`
		TopItems   []EntryInfo               `json:"top_items"`
		Namespaces map[string]NamespaceStats `json:"namespaces"`
	}
	require.NoError(t, json.Unmarshal(buf, &doc))
	assert.Equal(t, int64(1), doc.Statistics.Hits)
	assert.Equal(t, 2, doc.Statistics.CacheSize)
	require.Len(t, doc.TopItems, 2)
	assert.Equal(t, "n1:a", doc.TopItems[0].Key)
	assert.Equal(t, []string{"t"}, doc.TopItems[0].Tags)
	assert.Contains(t, doc.Namespaces, "n1")
	assert.Contains(t, doc.Namespaces, "n2")

	assert.False(t, c.ExportStats(filepath.Join(t.TempDir(), "missing", "stats.json")))
}

func TestReport(t *testing.T) {
	c, _, _ := newTestCache(t)
	c.Set("a", 1, WithNamespace("users"))
	c.Get("a", WithNamespace("users"))
	report := c.Report()
	assert.Contains(t, report, "CACHE REPORT")
	assert.Contains(t, report, "Hit rate:           100.00%")
	assert.Contains(t, report, "users")
	assert.Contains(t, report, "users:a (1 hits")
}
