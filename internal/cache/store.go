// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache provides the key-value stores and typed, TTL-bounded cache
// tiers shared by search and full-text resolution: the search-result tier,
// and the location, raw-content and parsed-content tiers.
//
// A Store is a plain byte store with TTL. Four implementations are provided:
// in-process memory, SQLite (single host, persistent), Redis (shared across
// processes) and Badger (embedded, persistent). A Tier adds typing, an entry
// envelope (stored-at, TTL, content hash) and key namespacing on top.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/biosearch/pkg/types"
)

// Store is a key-value store with per-key TTL. Implementations must allow
// concurrent readers and serialize concurrent writers to the same key.
type Store interface {
	// Get returns the value for key. ok is false on a miss or an expired key.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

// ContentHash returns the hex SHA-256 digest used as the raw-tier key.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

const (
	sqliteFile = "cache.db"
	badgerDir  = "badger"
)

// Open builds the store selected by cfg.Backend.
func Open(cfg types.CacheConfig, log *zap.Logger) (Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch cfg.Backend {
	case types.CacheMemory, "":
		return NewMemoryStore(cfg.MaxEntries), nil
	case types.CacheSQLite:
		return NewSQLiteStore(filepath.Join(cfg.Dir, sqliteFile))
	case types.CacheRedis:
		return NewRedisStore(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case types.CacheBadger:
		return NewBadgerStore(filepath.Join(cfg.Dir, badgerDir), log)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
