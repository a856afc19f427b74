// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"time"
)

// Locker serializes work on a key across processes. In-process coalescing
// is done with singleflight; a Locker extends it to multi-process
// deployments that share a store.
type Locker interface {
	// Lock blocks until the key is held or ctx is done. The returned
	// function releases it. The lock lapses after ttl regardless.
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// NopLocker is the single-process Locker: it never blocks.
type NopLocker struct{}

func (NopLocker) Lock(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}
