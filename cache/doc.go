// Package cache provides a thread-safe in-process cache with TTL expiration
// and LRU eviction.
//
// # Budgets
//
// A [Cache] enforces two budgets at once: a maximum number of entries
// ([WithMaxSize]) and a maximum aggregate value size in bytes
// ([WithMaxMemory]). Value size is the length of the value's msgpack
// encoding, computed once when the value is written. [Cache.Set] evicts
// least recently used entries until the new entry fits both budgets. A
// value that is larger than the whole memory budget is rejected without
// touching the cache.
//
// # Namespaces and tags
//
// Every operation takes [EntryOption] values. [WithNamespace] scopes a key;
// the stored key is namespace + ":" + key and the default namespace is
// [DefaultNamespace]. [WithTags] attaches tags that can later be removed in
// bulk with [Cache.InvalidateByTag]. [Cache.InvalidateByPattern] removes
// keys of a namespace that contain a glob match, and [Cache.ClearNamespace]
// drops a namespace entirely.
//
// # Expiration
//
// Entries expire after their TTL ([WithTTL], falling back to
// [WithDefaultTTL]). A TTL <= 0 means the entry never expires. Expired
// entries are removed lazily by the operation that finds them and actively
// by a background sweeper running every [WithSweepInterval].
//
// # Persistence
//
// With [WithStore], New restores live entries from a [persist.Store] and
// every mutation is written back after the cache lock is released. Storage
// failures are logged and never surface to callers; the in-memory state is
// authoritative. [Cache.Close] writes all live entries before closing the
// store.
//
// # Typed access
//
// Values are stored as [any]. [GetAs] returns a typed value, converting
// restored values through msgpack when a direct type assertion fails.
//
// # Reporting
//
// [Cache.Stats], [Cache.NamespaceStats] and [Cache.TopItems] expose
// counters and per-entry metadata. [Cache.Report] renders them as text and
// [Cache.ExportStats] writes them to a JSON file.
package cache
