package cache

import (
	"context"
	"time"

	"github.com/agentuity/go-cache/logger"
)

// sweeper periodically removes expired entries.
type sweeper struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func startSweeper(parent context.Context, interval time.Duration, sweep func() int, log logger.Logger) *sweeper {
	ctx, cancel := context.WithCancel(parent)
	s := &sweeper{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sweep(); n > 0 {
					log.Debug("swept %d expired entries", n)
				}
			}
		}
	}()
	return s
}

// stop cancels the sweeper and waits up to timeout for it to exit.
func (s *sweeper) stop(timeout time.Duration) bool {
	s.cancel()
	select {
	case <-s.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
