// Package caches provides caches pre-configured for specific kinds of data
// and a registry that hands out one shared cache per kind.
package caches

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/agentuity/go-cache/cache"
	"github.com/cespare/xxhash/v2"
)

const (
	// QueryNamespace holds cached database query results.
	QueryNamespace = "queries"
	// SessionNamespace holds user sessions.
	SessionNamespace = "sessions"
	// ProductNamespace holds products and product lists.
	ProductNamespace = "products"
)

// DefaultSessionExtension is how long ExtendSession adds when given a non-positive duration.
const DefaultSessionExtension = 30 * time.Minute

func entryTTL(ttl time.Duration) []cache.EntryOption {
	if ttl == 0 {
		return nil
	}
	return []cache.EntryOption{cache.WithTTL(ttl)}
}

// QueryCache caches database query results keyed by table, query text and parameters.
type QueryCache struct {
	*cache.Cache
}

// NewQueryCache returns a QueryCache with query defaults: 5 minute TTL and
// 5000 entries. opts override the defaults.
func NewQueryCache(ctx context.Context, opts ...cache.Option) (*QueryCache, error) {
	c, err := cache.New(ctx, append(kindDefaults(KindQuery), opts...)...)
	if err != nil {
		return nil, err
	}
	return &QueryCache{c}, nil
}

// QueryKey returns the cache key of a query against table.
func QueryKey(table, query string, params ...any) string {
	d := xxhash.New()
	_, _ = d.WriteString(query)
	_, _ = d.WriteString(":")
	_, _ = d.WriteString(fmt.Sprint(params...))
	return fmt.Sprintf("query:%s:%016x", table, d.Sum64())
}

// CacheQuery stores result. A zero ttl uses the cache's default TTL.
func (q *QueryCache) CacheQuery(table, query string, params []any, result any, ttl time.Duration) bool {
	opts := append([]cache.EntryOption{
		cache.WithNamespace(QueryNamespace),
		cache.WithTags("database", "query", "table:"+table),
	}, entryTTL(ttl)...)
	return q.Set(QueryKey(table, query, params...), result, opts...)
}

// GetQuery returns the cached result of query.
func (q *QueryCache) GetQuery(table, query string, params []any) (any, bool) {
	return q.Get(QueryKey(table, query, params...), cache.WithNamespace(QueryNamespace))
}

// InvalidateTable removes every cached query against table.
func (q *QueryCache) InvalidateTable(table string) int {
	return q.InvalidateByPattern("query:"+table+":", cache.WithNamespace(QueryNamespace))
}

// SessionCache caches per-user session data.
type SessionCache struct {
	*cache.Cache
}

// NewSessionCache returns a SessionCache with session defaults: 30 minute
// TTL and 10000 entries.
func NewSessionCache(ctx context.Context, opts ...cache.Option) (*SessionCache, error) {
	c, err := cache.New(ctx, append(kindDefaults(KindSession), opts...)...)
	if err != nil {
		return nil, err
	}
	return &SessionCache{c}, nil
}

func sessionKey(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

// SetSession stores the session of userID.
func (s *SessionCache) SetSession(userID int64, data any, ttl time.Duration) bool {
	key := sessionKey(userID)
	opts := append([]cache.EntryOption{
		cache.WithNamespace(SessionNamespace),
		cache.WithTags("session", key),
	}, entryTTL(ttl)...)
	return s.Set(key, data, opts...)
}

// GetSession returns the session of userID.
func (s *SessionCache) GetSession(userID int64) (any, bool) {
	return s.Get(sessionKey(userID), cache.WithNamespace(SessionNamespace))
}

// DeleteSession removes the session of userID.
func (s *SessionCache) DeleteSession(userID int64) bool {
	return s.Delete(sessionKey(userID), cache.WithNamespace(SessionNamespace))
}

// ExtendSession pushes the expiry of the session of userID out by d, or by
// DefaultSessionExtension when d <= 0.
func (s *SessionCache) ExtendSession(userID int64, d time.Duration) bool {
	if d <= 0 {
		d = DefaultSessionExtension
	}
	return s.ExtendTTL(sessionKey(userID), d, cache.WithNamespace(SessionNamespace))
}

// ProductCache caches single products and per-category product lists.
type ProductCache struct {
	*cache.Cache
}

// NewProductCache returns a ProductCache with product defaults: 10 minute
// TTL and 3000 entries.
func NewProductCache(ctx context.Context, opts ...cache.Option) (*ProductCache, error) {
	c, err := cache.New(ctx, append(kindDefaults(KindProduct), opts...)...)
	if err != nil {
		return nil, err
	}
	return &ProductCache{c}, nil
}

func productKey(id int64) string {
	return "product:" + strconv.FormatInt(id, 10)
}

func categoryKey(category string) string {
	return "products:category:" + category
}

// CacheProduct stores a single product.
func (p *ProductCache) CacheProduct(id int64, product any, ttl time.Duration) bool {
	key := productKey(id)
	opts := append([]cache.EntryOption{
		cache.WithNamespace(ProductNamespace),
		cache.WithTags("product", key),
	}, entryTTL(ttl)...)
	return p.Set(key, product, opts...)
}

// GetProduct returns a cached product.
func (p *ProductCache) GetProduct(id int64) (any, bool) {
	return p.Get(productKey(id), cache.WithNamespace(ProductNamespace))
}

// CacheProductList stores the product list of category. productIDs tags
// the list so invalidating any listed product drops it too.
func (p *ProductCache) CacheProductList(category string, products any, productIDs []int64, ttl time.Duration) bool {
	tags := []string{"product_list", "category:" + category}
	for _, id := range productIDs {
		tags = append(tags, productKey(id))
	}
	opts := append([]cache.EntryOption{
		cache.WithNamespace(ProductNamespace),
		cache.WithTags(tags...),
	}, entryTTL(ttl)...)
	return p.Set(categoryKey(category), products, opts...)
}

// GetProductList returns the cached product list of category.
func (p *ProductCache) GetProductList(category string) (any, bool) {
	return p.Get(categoryKey(category), cache.WithNamespace(ProductNamespace))
}

// InvalidateProduct removes the product and every entry tagged with it.
func (p *ProductCache) InvalidateProduct(id int64) int {
	n := 0
	if p.Delete(productKey(id), cache.WithNamespace(ProductNamespace)) {
		n++
	}
	return n + p.InvalidateByTag(productKey(id))
}

// InvalidateCategory removes every entry of category.
func (p *ProductCache) InvalidateCategory(category string) int {
	return p.InvalidateByTag("category:" + category)
}
