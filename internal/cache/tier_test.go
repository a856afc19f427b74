// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/biosearch/pkg/types"
)

type counter map[string]int

func (c counter) observe(tier, result string) { c[tier+"/"+result]++ }

func TestTierRoundTrip(t *testing.T) {
	store := NewMemoryStore(0)
	obs := counter{}
	tier := NewTier[types.Location](store, TierOptions{
		Namespace: "ns", Name: TierLocation, TTL: time.Hour, Observe: obs.observe,
	})
	ctx := context.Background()

	_, ok, err := tier.Get(ctx, "doi:10.1/x")
	require.NoError(t, err)
	assert.False(t, ok)

	loc := types.Location{URL: "https://example.org/x.xml", Source: "europepmc"}
	require.NoError(t, tier.Set(ctx, "doi:10.1/x", loc, 0))

	e, ok, err := tier.Get(ctx, "doi:10.1/x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, loc, e.Value)
	assert.Equal(t, time.Hour, e.TTL, "zero ttl uses the tier default")
	assert.Equal(t, "doi:10.1/x", e.Key)

	assert.Equal(t, []string{"ns:location:doi:10.1/x"}, store.Keys(""))
	assert.Equal(t, 1, obs["location/hit"])
	assert.Equal(t, 1, obs["location/miss"])

	require.NoError(t, tier.Invalidate(ctx, "doi:10.1/x"))
	_, ok, _ = tier.Get(ctx, "doi:10.1/x")
	assert.False(t, ok)
}

func TestTierEnforcesTTLOnRead(t *testing.T) {
	// The envelope TTL is checked even if the store kept the bytes.
	store := NewMemoryStore(0)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tier := NewTier[string](store, TierOptions{Name: "t", Now: func() time.Time { return now }})
	ctx := context.Background()

	require.NoError(t, tier.Set(ctx, "k", "v", time.Minute))
	now = now.Add(time.Minute)
	_, ok, err := tier.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTierContentHash(t *testing.T) {
	store := NewMemoryStore(0)
	tier := NewTier[types.RawContent](store, TierOptions{Name: TierRaw}).
		HashWith(func(r types.RawContent) string { return r.ContentHash })
	ctx := context.Background()

	data := []byte("<article/>")
	raw := types.RawContent{Data: data, Size: len(data), MimeType: "application/xml", ContentHash: ContentHash(data)}
	require.NoError(t, tier.Set(ctx, raw.ContentHash, raw, 0))

	e, ok, err := tier.Get(ctx, raw.ContentHash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, raw.ContentHash, e.ContentHash)
	assert.Equal(t, data, e.Value.Data)
}

func TestTierSetIfAbsent(t *testing.T) {
	tier := NewTier[string](NewMemoryStore(0), TierOptions{Name: "t"})
	ctx := context.Background()

	wrote, err := tier.SetIfAbsent(ctx, "k", "first", 0)
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = tier.SetIfAbsent(ctx, "k", "second", 0)
	require.NoError(t, err)
	assert.False(t, wrote)

	e, _, _ := tier.Get(ctx, "k")
	assert.Equal(t, "first", e.Value)
}

func TestTierCorruptEntryIsMiss(t *testing.T) {
	store := NewMemoryStore(0)
	tier := NewTier[string](store, TierOptions{Name: "t"})
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, tier.StoreKey("k"), []byte("{not json"), 0))

	_, ok, err := tier.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContentHashStable(t *testing.T) {
	a := ContentHash([]byte("same bytes"))
	b := ContentHash([]byte("same bytes"))
	c := ContentHash([]byte("other bytes"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestContentCacheInvalidateKeepsRaw(t *testing.T) {
	store := NewMemoryStore(0)
	cc := NewContentCache(store, ContentOptions{Namespace: "bs", RawTTL: time.Hour})
	ctx := context.Background()

	data := []byte("body")
	hash := ContentHash(data)
	require.NoError(t, cc.Locations.Set(ctx, "pmid:1", types.Location{URL: "u", Source: "s"}, 0))
	require.NoError(t, cc.Raw.Set(ctx, hash, types.RawContent{Data: data, ContentHash: hash}, 0))
	require.NoError(t, cc.Parsed.Set(ctx, DocKey("pmid:1"), types.ParsedDocument{DocumentID: "pmid:1", ContentHash: hash}, 0))

	require.NoError(t, cc.Invalidate(ctx, "pmid:1"))

	assert.Empty(t, store.Keys("bs:location:"))
	assert.Empty(t, store.Keys("bs:parsed:"))
	assert.Equal(t, []string{"bs:raw:" + hash}, store.Keys("bs:raw:"))
}
