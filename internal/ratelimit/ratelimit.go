package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Jittered lets the first call through immediately and delays every later
// call until a random delay in [min, max) has passed since the previous one.
type Jittered struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
}

func NewJittered(minDelay, maxDelay time.Duration) *Jittered {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Jittered{
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

func (r *Jittered) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lastAction.IsZero() {
		elapsed := time.Since(r.lastAction)
		if delay := r.calculateDelay(); elapsed < delay {
			timer := time.NewTimer(delay - elapsed)
			defer timer.Stop()

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	r.lastAction = time.Now()
	return nil
}

func (r *Jittered) calculateDelay() time.Duration {
	if r.minDelay == r.maxDelay {
		return r.minDelay
	}

	delta := r.maxDelay - r.minDelay
	return r.minDelay + time.Duration(rand.Int63n(int64(delta)))
}
