// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/biosearch/pkg/types"
)

// Tier names, also used as metric labels.
const (
	TierSearch   = "search"
	TierLocation = "location"
	TierRaw      = "raw"
	TierParsed   = "parsed"
)

// ContentCache groups the three full-text tiers:
//
//   - Locations: document id -> resolved fetch location and source.
//   - Raw: content hash -> raw bytes, size and mime type.
//   - Parsed: "doc/<id>" and "hash/<content hash>" -> ParsedDocument.
type ContentCache struct {
	Locations *Tier[types.Location]
	Raw       *Tier[types.RawContent]
	Parsed    *Tier[types.ParsedDocument]
}

// ContentOptions configures NewContentCache.
type ContentOptions struct {
	Namespace   string
	LocationTTL time.Duration
	RawTTL      time.Duration
	ParsedTTL   time.Duration
	Log         *zap.Logger
	Observe     func(tier, result string)
	Now         func() time.Time
}

// NewContentCache builds the three tiers over one store.
func NewContentCache(store Store, opts ContentOptions) *ContentCache {
	base := TierOptions{Namespace: opts.Namespace, Log: opts.Log, Observe: opts.Observe, Now: opts.Now}

	loc := base
	loc.Name, loc.TTL = TierLocation, opts.LocationTTL
	raw := base
	raw.Name, raw.TTL = TierRaw, opts.RawTTL
	parsed := base
	parsed.Name, parsed.TTL = TierParsed, opts.ParsedTTL

	return &ContentCache{
		Locations: NewTier[types.Location](store, loc),
		Raw: NewTier[types.RawContent](store, raw).
			HashWith(func(r types.RawContent) string { return r.ContentHash }),
		Parsed: NewTier[types.ParsedDocument](store, parsed).
			HashWith(func(d types.ParsedDocument) string { return d.ContentHash }),
	}
}

// DocKey is the parsed-tier key for a document id.
func DocKey(documentID string) string { return "doc/" + documentID }

// HashKey is the parsed-tier key for a content hash.
func HashKey(contentHash string) string { return "hash/" + contentHash }

// Invalidate drops a document's location and parsed entries. The raw tier
// is content-addressed and may be shared with other documents, so it is
// left alone.
func (c *ContentCache) Invalidate(ctx context.Context, documentID string) error {
	if err := c.Locations.Invalidate(ctx, documentID); err != nil {
		return err
	}
	return c.Parsed.Invalidate(ctx, DocKey(documentID))
}
