// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search fans a query out to dataset and publication registries,
// merges the answers into one duplicate-free set, ranks it and caches the
// assembled result.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/biosearch/internal/cache"
	"github.com/pdiddy/biosearch/internal/metrics"
	"github.com/pdiddy/biosearch/pkg/types"
)

// Backend queries one record source. Implementations return
// types.ErrSourceEmpty when the source answered with nothing and wrap
// types.ErrSourceUnavailable or types.ErrSourceTimeout on failure.
type Backend interface {
	Name() types.RecordSource
	Query(ctx context.Context, terms []string, filters types.Filters, maxResults int) ([]types.CandidateRecord, error)
}

// Options configures an Orchestrator.
type Options struct {
	Config types.SearchConfig

	// Store backs the search-result tier. Nil disables caching.
	Store     cache.Store
	Namespace string

	Log     *zap.Logger
	Metrics *metrics.Metrics

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Orchestrator is the search entry point. It is safe for concurrent use.
type Orchestrator struct {
	backends []Backend
	breakers []*gobreaker.CircuitBreaker

	cfg     types.SearchConfig
	results *cache.Tier[types.SearchResult]
	dedup   *Deduplicator
	ranker  *Ranker

	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewOrchestrator builds an orchestrator over backends, queried in the
// given order.
func NewOrchestrator(backends []Backend, opts Options) *Orchestrator {
	o := &Orchestrator{
		backends: backends,
		cfg:      opts.Config,
		dedup:    NewDeduplicator(opts.Config.Dedup),
		ranker:   NewRanker(opts.Config.Ranking),
		log:      opts.Log,
		metrics:  opts.Metrics,
		now:      opts.Now,
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	o.ranker.Now = o.now
	if o.cfg.SourceTimeout <= 0 {
		o.cfg.SourceTimeout = 15 * time.Second
	}
	if o.cfg.CacheTTL <= 0 {
		o.cfg.CacheTTL = time.Hour
	}

	if opts.Store != nil {
		o.results = cache.NewTier[types.SearchResult](opts.Store, cache.TierOptions{
			Namespace: opts.Namespace,
			Name:      cache.TierSearch,
			TTL:       o.cfg.CacheTTL,
			Log:       o.log,
			Observe:   o.metrics.ObserveCache,
			Now:       o.now,
		})
	}

	o.breakers = make([]*gobreaker.CircuitBreaker, len(backends))
	if o.cfg.BreakerFailures > 0 {
		for i, b := range backends {
			o.breakers[i] = o.newBreaker(string(b.Name()))
		}
	}
	return o
}

func (o *Orchestrator) newBreaker(name string) *gobreaker.CircuitBreaker {
	threshold := uint32(o.cfg.BreakerFailures)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     o.cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			o.log.Warn("record source circuit state change",
				zap.String("source", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}

// Search answers query from the result cache or by querying every backend
// concurrently, each under its own timeout. Source failures never fail the
// search; they are reported per source on the result. Only an invalid
// query or cancellation of ctx is returned as an error.
func (o *Orchestrator) Search(ctx context.Context, query types.SearchQuery) (*types.SearchResult, error) {
	if !query.HasTerms() {
		return nil, fmt.Errorf("%w: at least one non-empty search term is required", types.ErrInvalidQuery)
	}

	start := o.now()
	key := CacheKey(query, o.cfg.MaxResults)

	if o.results != nil {
		entry, ok, err := o.results.Get(ctx, key)
		if err != nil {
			o.log.Warn("search cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			o.log.Debug("search cache hit", zap.String("key", key))
			res := entry.Value
			res.Cached = true
			return &res, nil
		}
		o.log.Debug("search cache miss", zap.String("key", key))
	}

	sets, reports := o.fanOut(ctx, query)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged, removed := o.dedup.Merge(sets...)
	ranked := o.ranker.Rank(merged, query)

	res := &types.SearchResult{
		ID:                uuid.NewString(),
		Key:               key,
		QueryText:         query.Text(),
		Terms:             query.Terms(),
		Filters:           query.Filters(),
		Results:           ranked,
		Sources:           reports,
		DuplicatesRemoved: removed,
		CreatedAt:         o.now().UTC(),
	}

	// A result where every source failed says nothing about the query, so
	// it is returned but not cached.
	if o.results != nil && !res.AllFailed() {
		if err := o.results.Set(ctx, key, *res, o.cfg.CacheTTL); err != nil {
			o.log.Warn("search cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	o.metrics.ObserveSearch(o.now().Sub(start), len(res.Results))
	return res, nil
}

// Invalidate drops the cached result for query.
func (o *Orchestrator) Invalidate(ctx context.Context, query types.SearchQuery) error {
	if o.results == nil {
		return nil
	}
	return o.results.Invalidate(ctx, CacheKey(query, o.cfg.MaxResults))
}

// fanOut queries every backend concurrently. Results land in slots indexed
// by backend position, so the merge order never depends on which source
// answered first.
func (o *Orchestrator) fanOut(ctx context.Context, query types.SearchQuery) ([][]types.CandidateRecord, []types.SourceReport) {
	sets := make([][]types.CandidateRecord, len(o.backends))
	reports := make([]types.SourceReport, len(o.backends))
	terms := query.Terms()
	filters := query.Filters()

	var g errgroup.Group
	for i, b := range o.backends {
		g.Go(func() error {
			sets[i], reports[i] = o.querySource(ctx, i, b, terms, filters)
			return nil
		})
	}
	_ = g.Wait()
	return sets, reports
}

func (o *Orchestrator) querySource(ctx context.Context, i int, b Backend, terms []string, filters types.Filters) ([]types.CandidateRecord, types.SourceReport) {
	qctx, cancel := context.WithTimeout(ctx, o.cfg.SourceTimeout)
	defer cancel()

	start := o.now()
	recs, err := o.call(qctx, i, b, terms, filters)
	report := types.SourceReport{Source: b.Name(), Elapsed: o.now().Sub(start)}

	if err == nil && qctx.Err() != nil {
		// A backend that ignores its context still loses the race.
		err = qctx.Err()
	}

	switch {
	case err == nil:
		recs = keepIdentified(recs)
		report.Count = len(recs)
		report.Status = types.StatusOK
		if len(recs) == 0 {
			report.Status = types.StatusEmpty
		}
	case errors.Is(err, types.ErrSourceEmpty):
		recs = nil
		report.Status = types.StatusEmpty
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, types.ErrSourceTimeout):
		recs = nil
		report.Status = types.StatusTimeout
		report.Error = err.Error()
	default:
		recs = nil
		report.Status = types.StatusError
		report.Error = err.Error()
	}

	if report.Failed() {
		o.log.Warn("record source failed",
			zap.String("source", string(report.Source)),
			zap.String("status", string(report.Status)),
			zap.Duration("elapsed", report.Elapsed),
			zap.Error(err))
	}
	o.metrics.ObserveSearchSource(string(report.Source), string(report.Status))
	return recs, report
}

// call runs one backend query, through its circuit breaker when enabled.
// An empty answer counts as a breaker success.
func (o *Orchestrator) call(ctx context.Context, i int, b Backend, terms []string, filters types.Filters) ([]types.CandidateRecord, error) {
	cb := o.breakers[i]
	if cb == nil {
		return b.Query(ctx, terms, filters, o.cfg.MaxResults)
	}

	var empty bool
	out, err := cb.Execute(func() (interface{}, error) {
		recs, err := b.Query(ctx, terms, filters, o.cfg.MaxResults)
		if errors.Is(err, types.ErrSourceEmpty) {
			empty = true
			return nil, nil
		}
		return recs, err
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%s: circuit open: %w", b.Name(), types.ErrSourceUnavailable)
	case err != nil:
		return nil, err
	case empty:
		return nil, types.ErrSourceEmpty
	}
	recs, _ := out.([]types.CandidateRecord)
	return recs, nil
}

// keepIdentified drops malformed records and records with no identifier
// usable for dedup.
func keepIdentified(recs []types.CandidateRecord) []types.CandidateRecord {
	out := recs[:0:0]
	for _, r := range recs {
		if r.CanonicalID() != "" {
			out = append(out, r)
		}
	}
	return out
}

// CacheKey derives the search-result cache key from the normalized query:
// lowercased, sorted terms, the filters and the per-source result cap. The
// raw query text is not part of the key.
func CacheKey(query types.SearchQuery, maxResults int) string {
	terms := query.Terms()
	for i := range terms {
		terms[i] = strings.ToLower(terms[i])
	}
	sort.Strings(terms)

	f := query.Filters()
	normalized := struct {
		Terms      []string `json:"t"`
		Organism   string   `json:"o,omitempty"`
		Category   string   `json:"c,omitempty"`
		From       string   `json:"f,omitempty"`
		To         string   `json:"u,omitempty"`
		MaxResults int      `json:"m"`
	}{
		Terms:      terms,
		Organism:   strings.ToLower(strings.TrimSpace(f.Organism)),
		Category:   strings.ToLower(strings.TrimSpace(f.Category)),
		From:       formatDate(f.DateFrom),
		To:         formatDate(f.DateTo),
		MaxResults: maxResults,
	}
	data, _ := json.Marshal(normalized)
	sum := sha256.Sum256(data)
	return "q/" + hex.EncodeToString(sum[:])
}

const dateFmt = "2006-01-02"

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateFmt)
}

// FormatTable writes results as a human-readable table to w.
func FormatTable(res *types.SearchResult, w io.Writer) {
	if len(res.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
	} else {
		fmt.Fprintf(w, "%-4s  %-11s  %-22s  %-50s  %-4s  %-6s  %s\n",
			"Rank", "Kind", "ID", "Title", "Year", "Score", "Sources")
		fmt.Fprintln(w, strings.Repeat("-", 120))

		for i, r := range res.Results {
			year := ""
			if y := r.Record.Year(); y > 0 {
				year = fmt.Sprintf("%d", y)
			}
			fmt.Fprintf(w, "%-4d  %-11s  %-22s  %-50s  %-4s  %-6.3f  %s\n",
				i+1, r.Record.Kind, truncate(r.Record.CanonicalID(), 22),
				truncate(r.Record.Title(), 50), year, r.Score, joinSources(r.Record.Provenance))
		}

		fmt.Fprintf(w, "\n%d results", len(res.Results))
		if res.DuplicatesRemoved > 0 {
			fmt.Fprintf(w, " (%d duplicates removed)", res.DuplicatesRemoved)
		}
		if res.Cached {
			fmt.Fprint(w, " [cached]")
		}
		fmt.Fprintln(w)
	}

	for _, s := range res.Sources {
		if s.Failed() {
			fmt.Fprintf(w, "warning: source %s %s: %s\n", s.Source, s.Status, s.Error)
		}
	}
}

// FormatJSON writes the whole result as indented JSON to w.
func FormatJSON(res *types.SearchResult, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func joinSources(srcs []types.RecordSource) string {
	parts := make([]string, len(srcs))
	for i, s := range srcs {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

// truncate shortens s to at most max runes.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}
