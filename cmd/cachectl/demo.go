package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentuity/go-cache/cache"
	"github.com/agentuity/go-cache/caches"
	"github.com/agentuity/go-cache/env"
	"github.com/agentuity/go-cache/logger"
	"github.com/agentuity/go-cache/monitor"
	"github.com/agentuity/go-cache/strategy"
	"github.com/agentuity/go-cache/tui"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type product struct {
	ID       int64   `msgpack:"id" json:"id"`
	Name     string  `msgpack:"name" json:"name"`
	Category string  `msgpack:"category" json:"category"`
	Price    float64 `msgpack:"price" json:"price"`
}

var demoCategories = []string{"books", "office", "garden"}

// demoDatabase stands in for the source of truth behind the caches.
type demoDatabase struct {
	mu       sync.Mutex
	products map[int64]product
	orders   map[int64][]int64
	reads    atomic.Int64
	writes   atomic.Int64
}

func newDemoDatabase(products int) *demoDatabase {
	db := &demoDatabase{products: make(map[int64]product), orders: make(map[int64][]int64)}
	for i := range int64(products) {
		db.products[i] = product{
			ID:       i,
			Name:     "product-" + strconv.FormatInt(i, 10),
			Category: demoCategories[i%int64(len(demoCategories))],
			Price:    float64(i%50) + 0.99,
		}
	}
	return db
}

func (db *demoDatabase) product(_ context.Context, id int64) (product, bool, error) {
	db.reads.Add(1)
	db.mu.Lock()
	defer db.mu.Unlock()
	p, ok := db.products[id]
	return p, ok, nil
}

func (db *demoDatabase) saveProduct(_ context.Context, p product) error {
	db.writes.Add(1)
	db.mu.Lock()
	defer db.mu.Unlock()
	db.products[p.ID] = p
	return nil
}

func (db *demoDatabase) ordersOf(_ context.Context, userID int64) ([]int64, bool, error) {
	db.reads.Add(1)
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]int64{}, db.orders[userID]...), true, nil
}

func (db *demoDatabase) recordOrder(_ context.Context, userID, productID int64) error {
	db.writes.Add(1)
	db.mu.Lock()
	defer db.mu.Unlock()
	db.orders[userID] = append(db.orders[userID], productID)
	return nil
}

type demo struct {
	db       *demoDatabase
	registry *caches.Registry
	queries  *caches.QueryCache
	sessions *caches.SessionCache
	products *caches.ProductCache
	exec     *strategy.Executor
	logger   logger.Logger
	users    int
	requests int
}

func newDemo(ctx context.Context, log logger.Logger, users, productCount, requests int, tp trace.TracerProvider) (*demo, error) {
	registry := caches.NewRegistry(ctx, log, cache.WithLogger(log))
	queries, err := registry.Query()
	if err != nil {
		return nil, err
	}
	sessions, err := registry.Sessions()
	if err != nil {
		return nil, err
	}
	products, err := registry.Products()
	if err != nil {
		return nil, err
	}
	return &demo{
		db:       newDemoDatabase(productCount),
		registry: registry,
		queries:  queries,
		sessions: sessions,
		products: products,
		exec:     strategy.New(queries.Cache, strategy.WithSingleFlight(), strategy.WithLogger(log), strategy.WithTracerProvider(tp)),
		logger:   log,
		users:    users,
		requests: requests,
	}, nil
}

func productCacheKey(id int64) string {
	return "product:" + strconv.FormatInt(id, 10)
}

// round runs one pass of simulated traffic against every cache.
func (d *demo) round(ctx context.Context) {
	ids := make([]string, 0, len(d.db.products))
	for id := range int64(len(d.db.products)) {
		ids = append(ids, productCacheKey(id))
	}
	warmer := strategy.New(d.products.Cache, strategy.WithLogger(d.logger))
	strategy.Warm(ctx, warmer, strategy.Config{Namespace: caches.ProductNamespace, Tags: []string{"product"}}, ids, 0,
		func(ctx context.Context, key string) (product, bool, error) {
			id, err := strconv.ParseInt(key[len("product:"):], 10, 64)
			if err != nil {
				return product{}, false, err
			}
			return d.db.product(ctx, id)
		})
	for _, category := range demoCategories {
		var listed []int64
		for id, p := range d.db.products {
			if p.Category == category {
				listed = append(listed, id)
			}
		}
		d.products.CacheProductList(category, listed, listed, 0)
	}

	for range d.requests {
		if ctx.Err() != nil {
			return
		}
		userID := rand.Int64N(int64(d.users))
		if _, ok := d.sessions.GetSession(userID); ok {
			d.sessions.ExtendSession(userID, 0)
		} else {
			d.sessions.SetSession(userID, map[string]any{"user_id": userID, "cart": []int64{}}, 0)
		}

		cfg := strategy.Config{
			Key:       caches.QueryKey("orders", "SELECT product_id FROM orders WHERE user_id = ?", userID),
			Namespace: caches.QueryNamespace,
			Tags:      []string{"database", "query", "table:orders"},
		}
		if _, _, err := strategy.CacheAside(ctx, d.exec, cfg, func(ctx context.Context) ([]int64, bool, error) {
			return d.db.ordersOf(ctx, userID)
		}); err != nil {
			d.logger.Warn("orders lookup for user %d failed: %s", userID, err)
		}

		productID := rand.Int64N(int64(len(d.db.products)))
		if _, ok := d.products.GetProduct(productID); !ok {
			if p, found, _ := d.db.product(ctx, productID); found {
				d.products.CacheProduct(productID, p, 0)
			}
		}

		switch rand.IntN(20) {
		case 0:
			// placing an order writes behind and invalidates the user's order queries
			strategy.WriteBehind(ctx, d.exec, strategy.Config{Key: "last_order", Namespace: caches.QueryNamespace}, productID,
				func(ctx context.Context, id int64) error { return d.db.recordOrder(ctx, userID, id) })
			d.queries.InvalidateTable("orders")
		case 1:
			d.repriceProduct(ctx, productID)
		}
	}

	featured := strategy.Config{Key: "featured", Namespace: caches.ProductNamespace, TTL: time.Minute}
	if _, _, err := strategy.RefreshAhead(ctx, strategy.New(d.products.Cache, strategy.WithLogger(d.logger)), featured,
		func(ctx context.Context) ([]int64, bool, error) {
			return []int64{0, 1, 2}, true, nil
		}); err != nil {
		d.logger.Warn("featured refresh failed: %s", err)
	}
	d.exec.Wait()
}

// repriceProduct writes a new price through the product cache and drops
// every list that contained the product.
func (d *demo) repriceProduct(ctx context.Context, id int64) {
	p, found, err := d.db.product(ctx, id)
	if err != nil || !found {
		return
	}
	p.Price += 1
	products := strategy.New(d.products.Cache, strategy.WithLogger(d.logger))
	cfg := strategy.Config{Key: productCacheKey(id), Namespace: caches.ProductNamespace, Tags: []string{"product"}}
	if err := strategy.WriteThrough(ctx, products, cfg, p, d.db.saveProduct); err != nil {
		d.logger.Warn("reprice of product %d failed: %s", id, err)
		return
	}
	d.products.InvalidateByTag(productCacheKey(id))
}

func (d *demo) summary() [][]string {
	rows := [][]string{}
	for _, kind := range d.registry.Kinds() {
		c, err := d.registry.Get(kind)
		if err != nil {
			continue
		}
		s := c.Stats()
		h := monitor.New(c).Health()
		rows = append(rows, []string{
			string(kind),
			fmt.Sprintf("%d / %d", s.CacheSize, s.MaxSize),
			fmt.Sprintf("%.2f%%", s.HitRate),
			tui.Bytes(s.TotalSizeBytes),
			strconv.FormatInt(s.Evictions, 10),
			tui.Status(string(h.Status)),
		})
	}
	return rows
}

func newDemoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run simulated traffic against in-memory query, session and product caches",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := env.NewLogger(cmd)
			users, _ := cmd.Flags().GetInt("users")
			productCount, _ := cmd.Flags().GetInt("products")
			requests, _ := cmd.Flags().GetInt("requests")
			rounds, _ := cmd.Flags().GetInt("rounds")
			interval, _ := cmd.Flags().GetDuration("interval")
			showReport, _ := cmd.Flags().GetBool("report")
			if users <= 0 || productCount <= 0 || requests < 0 {
				return errors.New("users and products must be positive")
			}

			var tp trace.TracerProvider = noop.NewTracerProvider()
			if otlpURL, _ := cmd.Flags().GetString("otlp-url"); otlpURL != "" {
				token, _ := cmd.Flags().GetString("otlp-token")
				tel, err := newTelemetry(ctx, otlpURL, token)
				if err != nil {
					return err
				}
				console := log
				defer func() {
					if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
						console.Warn("failed to flush telemetry: %s", err)
					}
				}()
				tp = tel.tracerProvider
				log = tel.Logger(env.LogLevel(cmd))
			}

			d, err := newDemo(ctx, log, users, productCount, requests, tp)
			if err != nil {
				return err
			}
			defer func() {
				if err := d.registry.CloseAll(); err != nil {
					log.Warn("failed to close caches: %s", err)
				}
			}()

			out := cmd.OutOrStdout()
			headers := []string{"Cache", "Entries", "Hit rate", "Memory", "Evictions", "Status"}
			for i := range rounds {
				if i > 0 {
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(interval):
					}
				}
				title := fmt.Sprintf("Round %d of %d", i+1, rounds)
				if err := tui.ShowSpinner(ctx, title, func() { d.round(ctx) }); err != nil {
					return err
				}
				tui.ClearScreen()
				fmt.Fprintln(out, tui.Title(title))
				tui.Table(out, headers, d.summary())
				fmt.Fprintln(out, tui.Muted(fmt.Sprintf("database reads %d, writes %d", d.db.reads.Load(), d.db.writes.Load())))
			}
			if showReport {
				for _, kind := range d.registry.Kinds() {
					c, _ := d.registry.Get(kind)
					tui.ShowBanner(out, string(kind)+" cache", c.Report(), false)
				}
			}
			return nil
		},
	}
	cmd.Flags().Int("users", 50, "number of simulated users")
	cmd.Flags().Int("products", 100, "number of products")
	cmd.Flags().Int("requests", 500, "requests per round")
	cmd.Flags().Int("rounds", 1, "number of rounds")
	cmd.Flags().Duration("interval", 2*time.Second, "pause between rounds")
	cmd.Flags().Bool("report", false, "print the full report of every cache at the end")
	cmd.Flags().String("otlp-url", "", "export strategy spans to this OTLP/HTTP server")
	cmd.Flags().String("otlp-token", "", "bearer token for the OTLP server")
	return cmd
}
