// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fulltext resolves a document id to its parsed full text by trying
// content sources in a fixed priority order (the waterfall), stopping at the
// first success. Downloads and parses are cached in three tiers, and
// concurrent requests for the same document share one resolution.
package fulltext

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/biosearch/internal/acquire"
	"github.com/pdiddy/biosearch/internal/cache"
	"github.com/pdiddy/biosearch/internal/httputil"
	"github.com/pdiddy/biosearch/internal/metrics"
	"github.com/pdiddy/biosearch/pkg/types"
)

// Parser turns raw bytes into named sections. Unparseable input yields
// whatever could be extracted and degraded=true, never an error.
type Parser interface {
	Parse(ctx context.Context, data []byte, mimeType string) (sections map[string]string, degraded bool)
}

// lockTTL bounds how long a cross-process resolution lock is held.
const lockTTL = 5 * time.Minute

// Options configures a Manager.
type Options struct {
	Config  types.FullTextConfig
	Sources []acquire.Source
	Parser  Parser

	// Cache holds the location, raw and parsed tiers. Nil means an
	// unbounded in-memory store.
	Cache *cache.ContentCache

	// Locker extends coalescing across processes. Nil means NopLocker.
	Locker cache.Locker

	Log     *zap.Logger
	Metrics *metrics.Metrics

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Result is the outcome of one resolution. Document is nil when every
// source was exhausted without success; that is a normal outcome.
type Result struct {
	DocumentID string
	Document   *types.ParsedDocument
	Cached     bool

	// Attempts lists source attempts made by this resolution, in order.
	// Empty for cache hits.
	Attempts []types.SourceAttemptResult

	// Err is set in batch results for requests that could not be attempted.
	Err error
}

// Found reports whether the document was resolved.
func (r *Result) Found() bool { return r != nil && r.Document != nil }

// Manager is the full-text entry point. It is safe for concurrent use.
type Manager struct {
	cfg      types.FullTextConfig
	sources  []acquire.Source
	byName   map[string]acquire.Source
	limiters map[string]*httputil.Limiter
	stats    map[string]*sourceStats

	parser Parser
	cache  *cache.ContentCache
	locker cache.Locker
	group  singleflight.Group

	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewManager builds a manager. Each source gets its own rate limiter from
// cfg.RateLimits; a source without an entry is unlimited.
func NewManager(opts Options) (*Manager, error) {
	if opts.Parser == nil {
		return nil, errors.New("fulltext: a parser is required")
	}
	m := &Manager{
		cfg:      opts.Config,
		sources:  opts.Sources,
		byName:   make(map[string]acquire.Source, len(opts.Sources)),
		limiters: make(map[string]*httputil.Limiter, len(opts.Sources)),
		stats:    make(map[string]*sourceStats, len(opts.Sources)),
		parser:   opts.Parser,
		cache:    opts.Cache,
		locker:   opts.Locker,
		log:      opts.Log,
		metrics:  opts.Metrics,
		now:      opts.Now,
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.locker == nil {
		m.locker = cache.NopLocker{}
	}
	if m.cfg.MaxAttempts <= 0 {
		m.cfg.MaxAttempts = 3
	}
	if m.cfg.RetryBaseDelay <= 0 {
		m.cfg.RetryBaseDelay = 500 * time.Millisecond
	}
	if m.cfg.AttemptTimeout <= 0 {
		m.cfg.AttemptTimeout = 30 * time.Second
	}
	if m.cfg.MaxConcurrent <= 0 {
		m.cfg.MaxConcurrent = 5
	}
	if m.cache == nil {
		m.cache = cache.NewContentCache(cache.NewMemoryStore(0), cache.ContentOptions{
			LocationTTL: m.cfg.LocationTTL,
			RawTTL:      m.cfg.RawTTL,
			ParsedTTL:   m.cfg.ParsedTTL,
			Log:         m.log,
			Observe:     m.metrics.ObserveCache,
			Now:         m.now,
		})
	}

	for _, s := range opts.Sources {
		name := s.Name()
		if _, dup := m.byName[name]; dup {
			return nil, fmt.Errorf("fulltext: source %q configured twice", name)
		}
		m.byName[name] = s
		m.stats[name] = newSourceStats(name)
		rl := m.cfg.RateLimits[name]
		m.limiters[name] = httputil.NewLimiter(name, rl.Every, rl.Burst)
	}
	return m, nil
}

// Resolve returns the parsed full text for req. Concurrent calls for the
// same document id and skip-set share a single resolution; each caller gets
// its own copy of the result. A cached document is returned whatever the
// skip-set. Exhausting every source is reported as a Result without a
// Document, not as an error; only an invalid request or cancellation of
// ctx is returned as an error.
func (m *Manager) Resolve(ctx context.Context, req types.FullTextRequest) (*Result, error) {
	req.DocumentID = strings.TrimSpace(req.DocumentID)
	if req.DocumentID == "" {
		return nil, fmt.Errorf("%w: document id is required", types.ErrInvalidRequest)
	}
	req.Hints = withIDHints(req.DocumentID, req.Hints)

	// The shared resolution outlives any one caller; per-attempt timeouts
	// still bound it.
	shared := context.WithoutCancel(ctx)
	ch := m.group.DoChan(flightKey(req), func() (any, error) {
		return m.resolve(shared, req)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Result).clone(), nil
	}
}

// flightKey identifies a resolution: the document id plus the sorted,
// lower-cased skip-set.
func flightKey(req types.FullTextRequest) string {
	if len(req.Skip) == 0 {
		return req.DocumentID
	}
	skip := make([]string, 0, len(req.Skip))
	for _, s := range req.Skip {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			skip = append(skip, s)
		}
	}
	slices.Sort(skip)
	return req.DocumentID + "\x00" + strings.Join(slices.Compact(skip), ",")
}

func (r *Result) clone() *Result {
	c := *r
	if r.Document != nil {
		doc := *r.Document
		doc.Sections = maps.Clone(r.Document.Sections)
		c.Document = &doc
	}
	if r.Attempts != nil {
		c.Attempts = make([]types.SourceAttemptResult, len(r.Attempts))
		for i, a := range r.Attempts {
			if a.Location != nil {
				loc := *a.Location
				a.Location = &loc
			}
			c.Attempts[i] = a
		}
	}
	return &c
}

// ResolveBatch resolves reqs with at most MaxConcurrent in flight. Results
// are in input order. A request that cannot be attempted gets a Result with
// Err set; only cancellation of ctx fails the batch.
func (m *Manager) ResolveBatch(ctx context.Context, reqs []types.FullTextRequest) ([]*Result, error) {
	out := make([]*Result, len(reqs))
	sem := semaphore.NewWeighted(int64(m.cfg.MaxConcurrent))
	g, gctx := errgroup.WithContext(ctx)

	for i, req := range reqs {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			res, err := m.Resolve(gctx, req)
			switch {
			case err == nil:
				out[i] = res
			case errors.Is(err, types.ErrInvalidRequest):
				out[i] = &Result{DocumentID: req.DocumentID, Err: err}
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats returns a snapshot of every source's running statistics in
// priority order.
func (m *Manager) Stats() []types.SourceStats {
	out := make([]types.SourceStats, 0, len(m.sources))
	for _, s := range m.sources {
		out = append(out, m.stats[s.Name()].snapshot())
	}
	return out
}

// Invalidate drops a document's cached location and parsed text, so the
// next Resolve runs the waterfall again.
func (m *Manager) Invalidate(ctx context.Context, documentID string) error {
	return m.cache.Invalidate(ctx, documentID)
}

func (m *Manager) resolve(ctx context.Context, req types.FullTextRequest) (*Result, error) {
	res := &Result{DocumentID: req.DocumentID}
	if doc, ok := m.cachedDocument(ctx, req.DocumentID); ok {
		res.Document, res.Cached = doc, true
		m.metrics.ObserveResolve("cached")
		return res, nil
	}

	unlock, err := m.locker.Lock(ctx, "fulltext:"+req.DocumentID, lockTTL)
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", req.DocumentID, err)
	}
	defer unlock()

	// Another process may have finished while we waited for the lock.
	if doc, ok := m.cachedDocument(ctx, req.DocumentID); ok {
		res.Document, res.Cached = doc, true
		m.metrics.ObserveResolve("cached")
		return res, nil
	}

	doc, spentOn := m.fromCachedLocation(ctx, req, res)
	if doc != nil {
		res.Document = doc
		m.metrics.ObserveResolve("fetched")
		return res, nil
	}

	for _, src := range m.sources {
		if req.Skips(src.Name()) {
			m.log.Debug("skipping content source", zap.String("doc", req.DocumentID), zap.String("source", src.Name()))
			continue
		}
		spent := 0
		if src.Name() == spentOn {
			spent = 1
		}
		loc, raw := m.trySource(ctx, src, req, res, spent)
		if raw == nil {
			continue
		}
		res.Document = m.store(ctx, req.DocumentID, loc, raw)
		m.metrics.ObserveResolve("fetched")
		return res, nil
	}

	m.log.Info("full text not found", zap.String("doc", req.DocumentID), zap.Int("attempts", len(res.Attempts)))
	m.metrics.ObserveResolve("not_found")
	return res, nil
}

func (m *Manager) cachedDocument(ctx context.Context, documentID string) (*types.ParsedDocument, bool) {
	entry, ok, err := m.cache.Parsed.Get(ctx, cache.DocKey(documentID))
	if err != nil {
		m.log.Warn("parsed cache read failed", zap.String("doc", documentID), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	doc := entry.Value
	return &doc, true
}

// fromCachedLocation fetches a previously resolved location directly. A
// failed fetch invalidates the location and the caller runs the waterfall;
// the source that was tried is returned so its attempt counts against its
// budget there.
func (m *Manager) fromCachedLocation(ctx context.Context, req types.FullTextRequest, res *Result) (*types.ParsedDocument, string) {
	entry, ok, err := m.cache.Locations.Get(ctx, req.DocumentID)
	if err != nil {
		m.log.Warn("location cache read failed", zap.String("doc", req.DocumentID), zap.Error(err))
		return nil, ""
	}
	if !ok {
		return nil, ""
	}
	loc := entry.Value
	src, known := m.byName[loc.Source]
	if !known || req.Skips(loc.Source) {
		return nil, ""
	}

	start := m.now()
	raw, err := m.limitedFetch(ctx, src, &loc)
	m.recordAttempt(res, src.Name(), 1, &loc, start, err)
	if err != nil {
		m.log.Debug("cached location failed, running waterfall",
			zap.String("doc", req.DocumentID), zap.String("url", loc.URL), zap.Error(err))
		if err := m.cache.Locations.Invalidate(ctx, req.DocumentID); err != nil {
			m.log.Warn("location cache invalidate failed", zap.String("doc", req.DocumentID), zap.Error(err))
		}
		return nil, src.Name()
	}
	return m.store(ctx, req.DocumentID, &loc, raw), src.Name()
}

// trySource runs one waterfall step: up to MaxAttempts attempts against
// src, less the spent attempts already made on it, with exponential backoff
// between them. Rate limiting and transient failures are retried;
// not-found and other failures end the step at once.
func (m *Manager) trySource(ctx context.Context, src acquire.Source, req types.FullTextRequest, res *Result, spent int) (*types.Location, *types.RawContent) {
	remaining := m.cfg.MaxAttempts - spent
	if remaining <= 0 {
		return nil, nil
	}
	var (
		loc *types.Location
		raw *types.RawContent
		try = spent
	)
	op := func() error {
		try++
		start := m.now()
		var err error
		loc, raw, err = m.attempt(ctx, src, req)
		m.recordAttempt(res, src.Name(), try, loc, start, err)
		switch {
		case err == nil:
			return nil
		case retryable(err):
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.cfg.RetryBaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(remaining-1)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return nil, nil
	}
	return loc, raw
}

// attempt is one try: wait for the source's limiter, locate, then fetch.
func (m *Manager) attempt(ctx context.Context, src acquire.Source, req types.FullTextRequest) (*types.Location, *types.RawContent, error) {
	if err := m.wait(ctx, src.Name()); err != nil {
		return nil, nil, err
	}

	lctx, cancel := context.WithTimeout(ctx, m.cfg.AttemptTimeout)
	loc, err := src.Locate(lctx, req.DocumentID, req.Hints)
	cancel()
	if err != nil {
		return nil, nil, err
	}

	fctx, cancel := context.WithTimeout(ctx, m.cfg.AttemptTimeout)
	defer cancel()
	raw, err := src.Fetch(fctx, loc)
	if err != nil {
		return loc, nil, err
	}
	return loc, raw, nil
}

func (m *Manager) limitedFetch(ctx context.Context, src acquire.Source, loc *types.Location) (*types.RawContent, error) {
	if err := m.wait(ctx, src.Name()); err != nil {
		return nil, err
	}
	fctx, cancel := context.WithTimeout(ctx, m.cfg.AttemptTimeout)
	defer cancel()
	return src.Fetch(fctx, loc)
}

func (m *Manager) wait(ctx context.Context, source string) error {
	lim := m.limiters[source]
	if lim == nil {
		return nil
	}
	delayed, err := lim.Acquire(ctx)
	if delayed {
		m.stats[source].limiterWait()
		m.metrics.ObserveLimiterWait(source)
	}
	if err != nil {
		return fmt.Errorf("%s rate limiter: %v: %w", source, err, types.ErrSourceTimeout)
	}
	return nil
}

func (m *Manager) recordAttempt(res *Result, source string, try int, loc *types.Location, start time.Time, err error) {
	outcome := classify(err)
	elapsed := m.now().Sub(start)

	m.stats[source].record(outcome)
	m.metrics.ObserveAttempt(source, string(outcome), elapsed)
	res.Attempts = append(res.Attempts, types.SourceAttemptResult{
		Source:   source,
		Outcome:  outcome,
		Location: loc,
		Elapsed:  elapsed,
		Try:      try,
		Err:      err,
	})

	fields := []zap.Field{
		zap.String("doc", res.DocumentID),
		zap.String("source", source),
		zap.Int("try", try),
		zap.String("outcome", string(outcome)),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	m.log.Debug("content source attempt", fields...)
}

// store caches a successful download and returns the parsed document.
// Raw bytes are keyed by content hash, so identical documents from
// different ids or sources share one raw entry and one parse.
func (m *Manager) store(ctx context.Context, documentID string, loc *types.Location, raw *types.RawContent) *types.ParsedDocument {
	if raw.ContentHash == "" {
		raw.ContentHash = cache.ContentHash(raw.Data)
	}
	if _, err := m.cache.Raw.SetIfAbsent(ctx, raw.ContentHash, *raw, 0); err != nil {
		m.log.Warn("raw cache write failed", zap.String("hash", raw.ContentHash), zap.Error(err))
	}
	if err := m.cache.Locations.Set(ctx, documentID, *loc, 0); err != nil {
		m.log.Warn("location cache write failed", zap.String("doc", documentID), zap.Error(err))
	}

	doc := types.ParsedDocument{
		DocumentID:  documentID,
		Source:      loc.Source,
		ContentHash: raw.ContentHash,
		MimeType:    raw.MimeType,
	}
	if entry, ok, err := m.cache.Parsed.Get(ctx, cache.HashKey(raw.ContentHash)); err == nil && ok {
		doc.Sections = entry.Value.Sections
		doc.Degraded = entry.Value.Degraded
	} else {
		doc.Sections, doc.Degraded = m.parser.Parse(ctx, raw.Data, raw.MimeType)
		if doc.Sections == nil {
			doc.Sections = map[string]string{}
		}
		if err := m.cache.Parsed.Set(ctx, cache.HashKey(raw.ContentHash), doc, 0); err != nil {
			m.log.Warn("parsed cache write failed", zap.String("hash", raw.ContentHash), zap.Error(err))
		}
	}

	if err := m.cache.Parsed.Set(ctx, cache.DocKey(documentID), doc, 0); err != nil {
		m.log.Warn("parsed cache write failed", zap.String("doc", documentID), zap.Error(err))
	}
	return &doc
}

func classify(err error) types.AttemptOutcome {
	switch {
	case err == nil:
		return types.OutcomeSuccess
	case errors.Is(err, types.ErrNotFound):
		return types.OutcomeNotFound
	case errors.Is(err, types.ErrRateLimited):
		return types.OutcomeRateLimited
	default:
		return types.OutcomeError
	}
}

func retryable(err error) bool {
	return errors.Is(err, types.ErrRateLimited) ||
		errors.Is(err, types.ErrSourceUnavailable) ||
		errors.Is(err, types.ErrSourceTimeout)
}

// withIDHints fills hints the caller left empty from a prefixed document id.
func withIDHints(documentID string, h types.Hints) types.Hints {
	prefix, rest, ok := strings.Cut(documentID, ":")
	if !ok {
		return h
	}
	switch prefix {
	case "doi":
		if h.DOI == "" {
			h.DOI = types.NormalizeDOI(rest)
		}
	case "pmid":
		if h.PMID == "" {
			h.PMID = rest
		}
	case "pmc":
		if h.PMCID == "" {
			h.PMCID = strings.ToUpper(rest)
		}
	case "url":
		if h.URL == "" {
			h.URL = rest
		}
	}
	return h
}
