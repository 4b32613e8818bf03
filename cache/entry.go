package cache

import (
	"slices"
	"time"
)

const keySeparator = ":"

func makeKey(namespace, key string) string {
	return namespace + keySeparator + key
}

// Entry is a cached value and its bookkeeping. Key is the full key
// (namespace + ":" + key). A zero ExpiresAt means the entry never expires.
type Entry struct {
	Key          string
	Value        any
	CreatedAt    time.Time
	ExpiresAt    time.Time
	Hits         int
	LastAccessed time.Time
	SizeBytes    int64
	Namespace    string
	Tags         []string
}

// HasExpiry reports whether the entry has a TTL.
func (e *Entry) HasExpiry() bool {
	return !e.ExpiresAt.IsZero()
}

// Expired reports whether the entry has an expiry and now is past it.
func (e *Entry) Expired(now time.Time) bool {
	return e.HasExpiry() && now.After(e.ExpiresAt)
}

// Touch records an access.
func (e *Entry) Touch(now time.Time) {
	e.Hits++
	e.LastAccessed = now
}

// TTLRemaining returns the time left before expiry, never negative. The
// boolean is false when the entry never expires.
func (e *Entry) TTLRemaining(now time.Time) (time.Duration, bool) {
	if !e.HasExpiry() {
		return 0, false
	}
	return max(0, e.ExpiresAt.Sub(now)), true
}

// Age returns how long ago the entry was written.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// EntryInfo is the reporting view of an Entry.
type EntryInfo struct {
	Key          string     `json:"key"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at"`
	Hits         int        `json:"hits"`
	LastAccessed time.Time  `json:"last_accessed"`
	SizeBytes    int64      `json:"size_bytes"`
	Namespace    string     `json:"namespace"`
	Tags         []string   `json:"tags"`
	AgeSeconds   float64    `json:"age_seconds"`
	TTLRemaining *float64   `json:"ttl_remaining"`
}

// Info returns the reporting view of the entry as of now.
func (e *Entry) Info(now time.Time) EntryInfo {
	info := EntryInfo{
		Key:          e.Key,
		CreatedAt:    e.CreatedAt,
		Hits:         e.Hits,
		LastAccessed: e.LastAccessed,
		SizeBytes:    e.SizeBytes,
		Namespace:    e.Namespace,
		Tags:         slices.Clone(e.Tags),
		AgeSeconds:   e.Age(now).Seconds(),
	}
	if info.Tags == nil {
		info.Tags = []string{}
	}
	if e.HasExpiry() {
		expires := e.ExpiresAt
		info.ExpiresAt = &expires
		remaining, _ := e.TTLRemaining(now)
		secs := remaining.Seconds()
		info.TTLRemaining = &secs
	}
	return info
}

// normalizeTags returns the tags deduplicated and sorted, nil when empty.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := slices.Clone(tags)
	slices.Sort(out)
	return slices.Compact(out)
}
