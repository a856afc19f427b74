// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Entry is the envelope a Tier stores around each value.
type Entry[T any] struct {
	Key      string        `json:"key"`
	Value    T             `json:"value"`
	StoredAt time.Time     `json:"stored_at"`
	TTL      time.Duration `json:"ttl"`

	// ContentHash is set on tiers that address content (raw, parsed).
	ContentHash string `json:"content_hash,omitempty"`
}

// Expired reports whether the entry's TTL has elapsed at now.
func (e Entry[T]) Expired(now time.Time) bool {
	return e.TTL > 0 && !now.Before(e.StoredAt.Add(e.TTL))
}

// TierOptions configures a Tier.
type TierOptions struct {
	// Namespace and Name build the key prefix "namespace:name:".
	Namespace string
	Name      string

	// TTL is used when Set is called with a zero ttl.
	TTL time.Duration

	Log *zap.Logger

	// Observe, when set, is called with the tier name and "hit", "miss" or
	// "error" on every Get.
	Observe func(tier, result string)

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Tier is a typed view over a Store: JSON-encoded entries under a
// namespaced key prefix, with TTL enforced on read.
type Tier[T any] struct {
	store   Store
	name    string
	prefix  string
	ttl     time.Duration
	hash    func(T) string
	log     *zap.Logger
	observe func(tier, result string)
	now     func() time.Time
}

// NewTier builds a tier over store.
func NewTier[T any](store Store, opts TierOptions) *Tier[T] {
	t := &Tier[T]{
		store:   store,
		name:    opts.Name,
		prefix:  opts.Name + ":",
		ttl:     opts.TTL,
		log:     opts.Log,
		observe: opts.Observe,
		now:     opts.Now,
	}
	if opts.Namespace != "" {
		t.prefix = opts.Namespace + ":" + t.prefix
	}
	if t.log == nil {
		t.log = zap.NewNop()
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// HashWith sets the function that derives an entry's content hash from its value.
func (t *Tier[T]) HashWith(fn func(T) string) *Tier[T] {
	t.hash = fn
	return t
}

// Name returns the tier name.
func (t *Tier[T]) Name() string { return t.name }

// StoreKey returns the full key used in the underlying store.
func (t *Tier[T]) StoreKey(key string) string { return t.prefix + key }

// Get returns the entry for key. ok is false on a miss or an expired entry.
func (t *Tier[T]) Get(ctx context.Context, key string) (Entry[T], bool, error) {
	var e Entry[T]
	data, ok, err := t.store.Get(ctx, t.StoreKey(key))
	if err != nil {
		t.record("error")
		return e, false, fmt.Errorf("%s tier get %s: %w", t.name, key, err)
	}
	if !ok {
		t.record("miss")
		return e, false, nil
	}
	if err := json.Unmarshal(data, &e); err != nil {
		// A corrupt entry is a miss; the next Set replaces it.
		t.log.Warn("discarding undecodable cache entry",
			zap.String("tier", t.name), zap.String("key", key), zap.Error(err))
		t.record("miss")
		return Entry[T]{}, false, nil
	}
	if e.Expired(t.now()) {
		t.record("miss")
		return Entry[T]{}, false, nil
	}
	t.record("hit")
	return e, true, nil
}

// Set stores value under key, replacing any existing entry wholesale. A zero
// ttl uses the tier default.
func (t *Tier[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = t.ttl
	}
	e := Entry[T]{Key: key, Value: value, StoredAt: t.now().UTC(), TTL: ttl}
	if t.hash != nil {
		e.ContentHash = t.hash(value)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%s tier encode %s: %w", t.name, key, err)
	}
	if err := t.store.Set(ctx, t.StoreKey(key), data, ttl); err != nil {
		return fmt.Errorf("%s tier set %s: %w", t.name, key, err)
	}
	return nil
}

// SetIfAbsent stores value only when no live entry exists for key. It
// reports whether it wrote. The check and the write are not atomic across
// processes; callers use it for content-addressed keys, where a racing
// writer stores identical bytes.
func (t *Tier[T]) SetIfAbsent(ctx context.Context, key string, value T, ttl time.Duration) (bool, error) {
	if _, ok, err := t.Get(ctx, key); err != nil {
		return false, err
	} else if ok {
		return false, nil
	}
	if err := t.Set(ctx, key, value, ttl); err != nil {
		return false, err
	}
	return true, nil
}

// Invalidate removes the entry for key.
func (t *Tier[T]) Invalidate(ctx context.Context, key string) error {
	if err := t.store.Delete(ctx, t.StoreKey(key)); err != nil {
		return fmt.Errorf("%s tier invalidate %s: %w", t.name, key, err)
	}
	return nil
}

func (t *Tier[T]) record(result string) {
	if t.observe != nil {
		t.observe(t.name, result)
	}
}
