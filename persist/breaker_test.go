package persist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

func TestBreakerInitialState(t *testing.T) {
	b := NewBreaker(DefaultBreakerConfig())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())
	assert.Equal(t, "CLOSED", b.State().String())
}

func TestBreakerOpensAndRecovers(t *testing.T) {
	now := time.Now()
	b := NewBreaker(BreakerConfig{MaxFailures: 3, Cooldown: time.Minute, SuccessThreshold: 1})
	b.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Execute(func() error { return errBackend }), errBackend)
	}
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, called)

	now = now.Add(2 * time.Minute)
	assert.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker(BreakerConfig{MaxFailures: 1, Cooldown: time.Second})
	b.now = func() time.Time { return now }

	assert.Error(t, b.Execute(func() error { return errBackend }))
	assert.Equal(t, StateOpen, b.State())

	now = now.Add(2 * time.Second)
	assert.Error(t, b.Execute(func() error { return errBackend }))
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Execute(func() error { return nil }), ErrBreakerOpen)

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
}

type failingStore struct {
	Store
	calls int
}

func (f *failingStore) Save(ctx context.Context, rec Record) error {
	f.calls++
	return errBackend
}

func TestGuardFailsFast(t *testing.T) {
	inner, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	fs := &failingStore{Store: inner}
	g := Guard(fs, NewBreaker(BreakerConfig{MaxFailures: 2, Cooldown: time.Hour}))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = g.Save(ctx, Record{Key: "default:k"})
	}
	assert.Equal(t, 2, fs.calls)
	assert.ErrorIs(t, g.Save(ctx, Record{Key: "default:k"}), ErrBreakerOpen)

	// operations the inner store handles still pass through while closed
	g2 := Guard(inner, NewBreaker(DefaultBreakerConfig()))
	assert.NoError(t, g2.Delete(ctx, "default:k"))
	records, err := g2.Load(ctx)
	assert.NoError(t, err)
	assert.Empty(t, records)
}
