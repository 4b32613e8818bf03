package cache

import (
	"container/list"
	"time"
)

// index is the primary key→entry map ordered by recency plus the
// namespace→keys and tag→keys multimaps. Front of order is the most
// recently used entry, back the least. Callers hold Cache.mu.
type index struct {
	items      map[string]*list.Element
	order      *list.List
	namespaces map[string]map[string]struct{}
	tags       map[string]map[string]struct{}
}

func newIndex() *index {
	return &index{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		namespaces: make(map[string]map[string]struct{}),
		tags:       make(map[string]map[string]struct{}),
	}
}

func entryOf(el *list.Element) *Entry {
	return el.Value.(*Entry)
}

func (x *index) len() int {
	return len(x.items)
}

func (x *index) lookup(fullKey string) (*list.Element, bool) {
	el, ok := x.items[fullKey]
	return el, ok
}

// insert adds e as the most recently used entry and indexes it.
func (x *index) insert(e *Entry) {
	x.items[e.Key] = x.order.PushFront(e)
	addToBucket(x.namespaces, e.Namespace, e.Key)
	for _, tag := range e.Tags {
		addToBucket(x.tags, tag, e.Key)
	}
}

func (x *index) promote(el *list.Element) {
	x.order.MoveToFront(el)
}

func (x *index) oldest() *list.Element {
	return x.order.Back()
}

// unlink removes the entry from all three structures. Empty buckets are dropped.
func (x *index) unlink(el *list.Element) *Entry {
	e := entryOf(el)
	x.order.Remove(el)
	delete(x.items, e.Key)
	removeFromBucket(x.namespaces, e.Namespace, e.Key)
	for _, tag := range e.Tags {
		removeFromBucket(x.tags, tag, e.Key)
	}
	return e
}

func (x *index) namespaceKeys(ns string) []string {
	return bucketKeys(x.namespaces[ns])
}

func (x *index) tagKeys(tag string) []string {
	return bucketKeys(x.tags[tag])
}

// each calls fn for every entry from least to most recently used. fn may
// unlink the entry it is given.
func (x *index) each(fn func(el *list.Element)) {
	for el := x.order.Back(); el != nil; {
		prev := el.Prev()
		fn(el)
		el = prev
	}
}

func addToBucket(m map[string]map[string]struct{}, name, key string) {
	b, ok := m[name]
	if !ok {
		b = make(map[string]struct{})
		m[name] = b
	}
	b[key] = struct{}{}
}

func removeFromBucket(m map[string]map[string]struct{}, name, key string) {
	b, ok := m[name]
	if !ok {
		return
	}
	delete(b, key)
	if len(b) == 0 {
		delete(m, name)
	}
}

func bucketKeys(b map[string]struct{}) []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	return keys
}

const recentOperationsSize = 100

// Operation is one entry of the recent operations log.
type Operation struct {
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"`
	Key       string    `json:"key"`
}

type opRing struct {
	buf  []Operation
	next int
}

func (r *opRing) add(op Operation) {
	if len(r.buf) < recentOperationsSize {
		r.buf = append(r.buf, op)
		return
	}
	r.buf[r.next] = op
	r.next = (r.next + 1) % recentOperationsSize
}

// ordered returns the operations oldest first.
func (r *opRing) ordered() []Operation {
	out := make([]Operation, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}
