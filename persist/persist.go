package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultQueryTimeout bounds every I/O operation a Store performs on behalf
// of the cache. Slow storage must never stall cache traffic indefinitely.
const DefaultQueryTimeout = 5 * time.Second

// ErrCorruptRecord is returned (wrapped) by Load when stored bytes cannot be decoded.
var ErrCorruptRecord = errors.New("persist: corrupt record")

// Record is the durable form of a cache entry. Value holds the msgpack
// encoding of the cached value. Timestamps are Unix nanoseconds; an
// ExpiresAt of 0 means the entry never expires.
type Record struct {
	Key          string   `msgpack:"key"`
	Namespace    string   `msgpack:"namespace"`
	Value        []byte   `msgpack:"value"`
	CreatedAt    int64    `msgpack:"created_at"`
	ExpiresAt    int64    `msgpack:"expires_at"`
	Hits         int      `msgpack:"hits"`
	LastAccessed int64    `msgpack:"last_accessed"`
	SizeBytes    int64    `msgpack:"size_bytes"`
	Tags         []string `msgpack:"tags,omitempty"`
}

// Expired reports whether the record carries an expiry that has passed.
func (r Record) Expired(now time.Time) bool {
	return r.ExpiresAt != 0 && now.UnixNano() > r.ExpiresAt
}

// Store is durable storage for cache records, addressed by full cache key.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save writes or replaces the record stored under rec.Key.
	Save(ctx context.Context, rec Record) error
	// Delete removes the record stored under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Load returns every stored record. Unreadable records are skipped and
	// reported through the returned error alongside the readable ones.
	// Records that cannot be decoded are removed from the store.
	Load(ctx context.Context) ([]Record, error)
	// Close releases the store's resources.
	Close() error
}

// HashKey maps a full cache key to a fixed-width identifier that is safe to
// use as a file name or storage key.
func HashKey(key string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}

func encode(rec Record) ([]byte, error) {
	buf, err := msgpack.Marshal(&rec)
	if err != nil {
		return nil, errors.Wrapf(err, "persist: encode %q", rec.Key)
	}
	return buf, nil
}

func decode(buf []byte) (Record, error) {
	var rec Record
	if err := msgpack.Unmarshal(buf, &rec); err != nil {
		return Record{}, errors.Mark(errors.Wrap(err, "persist: decode"), ErrCorruptRecord)
	}
	return rec, nil
}

// loadErrors accumulates per-record failures during Load.
type loadErrors struct {
	first error
	count int
}

func (l *loadErrors) add(err error) {
	if l.first == nil {
		l.first = err
	}
	l.count++
}

func (l *loadErrors) err() error {
	if l.first == nil {
		return nil
	}
	return errors.Wrapf(l.first, "persist: %d record(s) could not be loaded", l.count)
}
