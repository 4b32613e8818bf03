package caches

import (
	"context"
	"testing"
	"time"

	"github.com/agentuity/go-cache/cache"
	"github.com/agentuity/go-cache/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() []cache.Option {
	return []cache.Option{cache.WithLogger(logger.NewTestLogger()), cache.WithSweepInterval(0)}
}

func TestQueryCache(t *testing.T) {
	q, err := NewQueryCache(context.Background(), testOptions()...)
	require.NoError(t, err)
	defer q.Close()

	rows := []string{"a", "b"}
	assert.True(t, q.CacheQuery("orders", "SELECT * FROM orders WHERE user_id = ?", []any{7}, rows, 0))
	assert.True(t, q.CacheQuery("orders", "SELECT * FROM orders WHERE user_id = ?", []any{8}, rows, 0))
	assert.True(t, q.CacheQuery("order_items", "SELECT * FROM order_items", nil, rows, time.Hour))
	assert.True(t, q.CacheQuery("users", "SELECT * FROM users", nil, rows, 0))

	got, ok := q.GetQuery("orders", "SELECT * FROM orders WHERE user_id = ?", []any{7})
	assert.True(t, ok)
	assert.Equal(t, rows, got)
	_, ok = q.GetQuery("orders", "SELECT * FROM orders WHERE user_id = ?", []any{9})
	assert.False(t, ok)

	remaining, ok := q.TTL(QueryKey("users", "SELECT * FROM users"), cache.WithNamespace(QueryNamespace))
	assert.True(t, ok)
	assert.Equal(t, 5*time.Minute, remaining.Round(time.Minute))

	assert.Equal(t, 2, q.InvalidateTable("orders"))
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 1, q.InvalidateByTag("table:users"))
	assert.Equal(t, 1, q.InvalidateByTag("database"))
}

func TestQueryKeyDistinguishesParams(t *testing.T) {
	a := QueryKey("t", "SELECT 1", 1, "x")
	b := QueryKey("t", "SELECT 1", 1, "y")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, QueryKey("t", "SELECT 1", 1, "x"))
	assert.Regexp(t, `^query:t:[0-9a-f]{16}$`, a)
}

func TestSessionCache(t *testing.T) {
	s, err := NewSessionCache(context.Background(), testOptions()...)
	require.NoError(t, err)
	defer s.Close()

	data := map[string]any{"step": "checkout"}
	assert.True(t, s.SetSession(42, data, 0))
	got, ok := s.GetSession(42)
	assert.True(t, ok)
	assert.Equal(t, data, got)

	remaining, ok := s.TTL("user:42", cache.WithNamespace(SessionNamespace))
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, remaining.Round(time.Minute))

	assert.True(t, s.ExtendSession(42, 0))
	remaining, _ = s.TTL("user:42", cache.WithNamespace(SessionNamespace))
	assert.Equal(t, time.Hour, remaining.Round(time.Minute))
	assert.False(t, s.ExtendSession(7, time.Minute))

	assert.True(t, s.DeleteSession(42))
	_, ok = s.GetSession(42)
	assert.False(t, ok)
}

func TestProductCache(t *testing.T) {
	p, err := NewProductCache(context.Background(), testOptions()...)
	require.NoError(t, err)
	defer p.Close()

	p.CacheProduct(1, map[string]any{"name": "book"}, 0)
	p.CacheProduct(2, map[string]any{"name": "pen"}, 0)
	p.CacheProductList("books", []int64{1}, []int64{1}, 0)
	p.CacheProductList("office", []int64{2}, []int64{2}, 0)

	got, ok := p.GetProduct(1)
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"name": "book"}, got)
	list, ok := p.GetProductList("books")
	assert.True(t, ok)
	assert.Equal(t, []int64{1}, list)

	assert.Equal(t, 2, p.InvalidateProduct(1))
	_, ok = p.GetProductList("books")
	assert.False(t, ok)
	_, ok = p.GetProduct(2)
	assert.True(t, ok)

	assert.Equal(t, 1, p.InvalidateCategory("office"))
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, 0, p.InvalidateProduct(99))
}

func TestOptionsOverrideDefaults(t *testing.T) {
	q, err := NewQueryCache(context.Background(), append(testOptions(), cache.WithMaxSize(2))...)
	require.NoError(t, err)
	defer q.Close()
	assert.Equal(t, 2, q.Stats().MaxSize)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(context.Background(), logger.NewTestLogger(), testOptions()...)

	q1, err := r.Query()
	require.NoError(t, err)
	q2, err := r.Query()
	require.NoError(t, err)
	assert.Same(t, q1.Cache, q2.Cache)
	assert.Equal(t, 5000, q1.Stats().MaxSize)

	s, err := r.Sessions()
	require.NoError(t, err)
	assert.Equal(t, 10000, s.Stats().MaxSize)
	p, err := r.Products()
	require.NoError(t, err)
	assert.Equal(t, 3000, p.Stats().MaxSize)
	d, err := r.Get(KindDefault)
	require.NoError(t, err)
	assert.Equal(t, cache.DefaultMaxSize, d.Stats().MaxSize)

	assert.Equal(t, []Kind{KindDefault, KindProduct, KindQuery, KindSession}, r.Kinds())

	s.SetSession(1, "a", 0)
	p.CacheProduct(1, "b", 0)
	assert.Equal(t, 2, r.ClearAll())
	assert.Equal(t, 0, s.Len())

	assert.NoError(t, r.CloseAll())
	assert.Empty(t, r.All())
}

func TestRegistryInvalidOptions(t *testing.T) {
	r := NewRegistry(context.Background(), logger.NewTestLogger(), cache.WithMaxMemory(0))
	_, err := r.Get(KindQuery)
	assert.ErrorIs(t, err, cache.ErrInvalidConfig)
}

func TestRegistryNilLogger(t *testing.T) {
	r := NewRegistry(context.Background(), nil, testOptions()...)
	q, err := r.Query()
	require.NoError(t, err)
	assert.NotNil(t, q)
	assert.NoError(t, r.CloseAll())
}

func TestInvalidateTableWithQuotedName(t *testing.T) {
	q, err := NewQueryCache(context.Background(), testOptions()...)
	require.NoError(t, err)
	defer q.Close()

	q.CacheQuery("[orders]", "SELECT * FROM [orders]", nil, 1, 0)
	q.CacheQuery("{tenant}.users", "SELECT * FROM {tenant}.users", nil, 2, 0)
	q.CacheQuery("orders", "SELECT * FROM orders", nil, 3, 0)

	assert.Equal(t, 1, q.InvalidateTable("[orders]"))
	assert.Equal(t, 1, q.InvalidateTable("{tenant}.users"))
	assert.Equal(t, 1, q.Len())
}
