package persist

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrBreakerOpen is returned by a guarded Store while its backend is considered unhealthy.
var ErrBreakerOpen = errors.New("persist: circuit breaker is open")

// BreakerState represents the state of a circuit breaker
type BreakerState int32

const (
	StateClosed BreakerState = iota
	StateHalfOpen
	StateOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig defines configuration for the circuit breaker
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit
	MaxFailures int

	// Cooldown is how long the circuit stays open before a trial request is let through
	Cooldown time.Duration

	// SuccessThreshold is the number of consecutive half-open successes needed to close the circuit
	SuccessThreshold int
}

// DefaultBreakerConfig returns a default configuration
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:      5,
		Cooldown:         30 * time.Second,
		SuccessThreshold: 1,
	}
}

// Breaker stops calling a failing backend for a cooldown period. While half
// open only one trial request runs at a time.
type Breaker struct {
	config BreakerConfig
	now    func() time.Time

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	inflight  bool
	openedAt  time.Time
}

// NewBreaker creates a new circuit breaker with the given configuration
func NewBreaker(config BreakerConfig) *Breaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 1
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	return &Breaker{config: config, now: time.Now}
}

// Execute runs fn unless the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn()
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			return ErrBreakerOpen
		}
		b.state = StateHalfOpen
		b.successes = 0
		b.inflight = true
		return nil
	case StateHalfOpen:
		if b.inflight {
			return ErrBreakerOpen
		}
		b.inflight = true
		return nil
	default:
		return nil
	}
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	halfOpen := b.state == StateHalfOpen
	if halfOpen {
		b.inflight = false
	}
	if err != nil {
		b.failures++
		if halfOpen || b.failures >= b.config.MaxFailures {
			b.state = StateOpen
			b.openedAt = b.now()
		}
		return
	}
	if halfOpen {
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
		}
		return
	}
	b.failures = 0
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current consecutive failure count
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset manually resets the circuit breaker to closed state
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.inflight = false
}

type guardedStore struct {
	Store
	breaker *Breaker
}

// Guard wraps store so every operation runs through breaker. Once the backend
// keeps failing, calls fail fast with ErrBreakerOpen until the cooldown ends.
func Guard(store Store, breaker *Breaker) Store {
	return &guardedStore{Store: store, breaker: breaker}
}

func (g *guardedStore) Save(ctx context.Context, rec Record) error {
	return g.breaker.Execute(func() error { return g.Store.Save(ctx, rec) })
}

func (g *guardedStore) Delete(ctx context.Context, key string) error {
	return g.breaker.Execute(func() error { return g.Store.Delete(ctx, key) })
}

func (g *guardedStore) Load(ctx context.Context) ([]Record, error) {
	var (
		records []Record
		loadErr error
	)
	err := g.breaker.Execute(func() error {
		records, loadErr = g.Store.Load(ctx)
		// unreadable records do not make the backend unhealthy
		if errors.Is(loadErr, ErrCorruptRecord) {
			return nil
		}
		return loadErr
	})
	if err != nil {
		return records, err
	}
	return records, loadErr
}
