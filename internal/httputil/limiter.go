// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is one source's token-bucket rate limiter. Each source owns its
// own instance; limiters are never shared across sources. Counters are
// shared by every concurrent caller of the source and updated atomically.
type Limiter struct {
	name    string
	limiter *rate.Limiter

	calls   atomic.Int64
	delayed atomic.Int64
}

// NewLimiter allows one call every `every`, with bursts up to burst. A
// non-positive every means unlimited.
func NewLimiter(name string, every time.Duration, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if every > 0 {
		limit = rate.Every(every)
	}
	return &Limiter{name: name, limiter: rate.NewLimiter(limit, burst)}
}

// Name returns the source the limiter belongs to.
func (l *Limiter) Name() string { return l.name }

// Wait blocks until the source may be called or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	_, err := l.Acquire(ctx)
	return err
}

// Acquire is Wait that also reports whether the call had to block.
func (l *Limiter) Acquire(ctx context.Context) (delayed bool, err error) {
	l.calls.Add(1)
	if l.limiter.Allow() {
		return false, nil
	}
	l.delayed.Add(1)
	return true, l.limiter.Wait(ctx)
}

// Calls returns how many times Wait was entered.
func (l *Limiter) Calls() int64 { return l.calls.Load() }

// Delayed returns how many Wait calls had to block for a token.
func (l *Limiter) Delayed() int64 { return l.delayed.Load() }
