// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ScoreFactor is one weighted component of a ranking score.
type ScoreFactor struct {
	// Name identifies the factor (e.g. "title_overlap", "recency").
	Name string `json:"name" yaml:"name"`

	// Value is the factor normalized to [0,1] before weighting.
	Value float64 `json:"value" yaml:"value"`

	// Weight is the type-specific weight applied to Value.
	Weight float64 `json:"weight" yaml:"weight"`

	// Contribution is Value*Weight divided by the weight total.
	Contribution float64 `json:"contribution" yaml:"contribution"`
}

// RankedResult is a candidate record with its score in [0,1] and the ordered
// factors that produced it. Created by the ranker and never mutated afterwards.
type RankedResult struct {
	Record  CandidateRecord `json:"record" yaml:"record"`
	Score   float64         `json:"score" yaml:"score"`
	Factors []ScoreFactor   `json:"factors" yaml:"factors"`
}

// SourceStatus is the outcome of one record source for one search.
type SourceStatus string

const (
	StatusOK      SourceStatus = "ok"
	StatusEmpty   SourceStatus = "empty"
	StatusError   SourceStatus = "error"
	StatusTimeout SourceStatus = "timeout"
)

// SourceReport records what one record source contributed to a search.
type SourceReport struct {
	Source  RecordSource  `json:"source" yaml:"source"`
	Count   int           `json:"count" yaml:"count"`
	Status  SourceStatus  `json:"status" yaml:"status"`
	Error   string        `json:"error,omitempty" yaml:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Failed reports whether the source errored or timed out.
func (r SourceReport) Failed() bool {
	return r.Status == StatusError || r.Status == StatusTimeout
}

// SearchResult is the cached outcome of one search: the ordered ranked
// results plus per-source counts and error/timeout flags. Cache entries are
// replaced wholesale, never patched.
type SearchResult struct {
	// ID uniquely identifies this computation of the result.
	ID string `json:"id" yaml:"id"`

	// Key is the normalized-query cache key the result is stored under.
	Key string `json:"key" yaml:"key"`

	QueryText string   `json:"query_text,omitempty" yaml:"query_text,omitempty"`
	Terms     []string `json:"terms" yaml:"terms"`
	Filters   Filters  `json:"filters" yaml:"filters"`

	Results []RankedResult `json:"results" yaml:"results"`
	Sources []SourceReport `json:"sources" yaml:"sources"`

	// DuplicatesRemoved is the number of input records merged away or suppressed.
	DuplicatesRemoved int `json:"duplicates_removed" yaml:"duplicates_removed"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// Cached is set on the copy returned from a cache hit. It is not stored.
	Cached bool `json:"-" yaml:"-"`
}

// Counts returns the number of records each source contributed.
func (r SearchResult) Counts() map[RecordSource]int {
	out := make(map[RecordSource]int, len(r.Sources))
	for _, s := range r.Sources {
		out[s.Source] = s.Count
	}
	return out
}

// FailedSources returns the sources that errored or timed out, in configured order.
func (r SearchResult) FailedSources() []RecordSource {
	var out []RecordSource
	for _, s := range r.Sources {
		if s.Failed() {
			out = append(out, s.Source)
		}
	}
	return out
}

// AllFailed reports whether every configured source errored or timed out.
func (r SearchResult) AllFailed() bool {
	if len(r.Sources) == 0 {
		return false
	}
	for _, s := range r.Sources {
		if !s.Failed() {
			return false
		}
	}
	return true
}
