// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"sort"
	"strings"
	"time"
)

// Canonical section names produced by the content parser.
const (
	SectionTitle        = "title"
	SectionAbstract     = "abstract"
	SectionIntroduction = "introduction"
	SectionMethods      = "methods"
	SectionResults      = "results"
	SectionDiscussion   = "discussion"
	SectionConclusion   = "conclusion"
)

// SectionOrder lists canonical sections in document order.
var SectionOrder = []string{
	SectionTitle,
	SectionAbstract,
	SectionIntroduction,
	SectionMethods,
	SectionResults,
	SectionDiscussion,
	SectionConclusion,
}

// Hints are known locators for a document.
type Hints struct {
	DOI   string `json:"doi,omitempty" yaml:"doi,omitempty"`
	PMID  string `json:"pmid,omitempty" yaml:"pmid,omitempty"`
	PMCID string `json:"pmcid,omitempty" yaml:"pmcid,omitempty"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
}

// IsEmpty reports whether no hint is set.
func (h Hints) IsEmpty() bool {
	return h.DOI == "" && h.PMID == "" && h.PMCID == "" && h.URL == ""
}

// FullTextRequest asks for the full text of one document. Skip names content
// sources already attempted, so a retry after partial failure does not
// repeat them.
type FullTextRequest struct {
	DocumentID string   `json:"document_id" yaml:"document_id"`
	Hints      Hints    `json:"hints" yaml:"hints"`
	Skip       []string `json:"skip,omitempty" yaml:"skip,omitempty"`
}

// Skips reports whether source is in the request's skip-set.
func (r FullTextRequest) Skips(source string) bool {
	for _, s := range r.Skip {
		if strings.EqualFold(s, source) {
			return true
		}
	}
	return false
}

// RequestFor builds a full-text request for a publication record.
func RequestFor(p PublicationRecord) FullTextRequest {
	id := CandidateRecord{Kind: KindPublication, Publication: &p}.CanonicalID()
	return FullTextRequest{
		DocumentID: id,
		Hints: Hints{
			DOI:   NormalizeDOI(p.DOI),
			PMID:  strings.TrimSpace(p.PMID),
			PMCID: strings.ToUpper(strings.TrimSpace(p.PMCID)),
		},
	}
}

// Location is where a content source says a document can be fetched.
type Location struct {
	URL      string `json:"url" yaml:"url"`
	Source   string `json:"source" yaml:"source"`
	MimeType string `json:"mime_type,omitempty" yaml:"mime_type,omitempty"`
}

// RawContent is a downloaded document.
type RawContent struct {
	Data        []byte `json:"data" yaml:"-"`
	Size        int    `json:"size" yaml:"size"`
	MimeType    string `json:"mime_type" yaml:"mime_type"`
	ContentHash string `json:"content_hash" yaml:"content_hash"`
}

// AttemptOutcome classifies one source attempt.
type AttemptOutcome string

const (
	OutcomeSuccess     AttemptOutcome = "success"
	OutcomeNotFound    AttemptOutcome = "not_found"
	OutcomeRateLimited AttemptOutcome = "rate_limited"
	OutcomeError       AttemptOutcome = "error"
)

// SourceAttemptResult is the outcome of one attempt against one content
// source. It is folded into running statistics and never persisted.
type SourceAttemptResult struct {
	Source   string         `json:"source" yaml:"source"`
	Outcome  AttemptOutcome `json:"outcome" yaml:"outcome"`
	Location *Location      `json:"location,omitempty" yaml:"location,omitempty"`
	Elapsed  time.Duration  `json:"elapsed" yaml:"elapsed"`

	// Try is the 1-based attempt number within the source's retry budget.
	Try int `json:"try" yaml:"try"`

	Err error `json:"-" yaml:"-"`
}

// ParsedDocument is the structured full text of a document. For a given
// content hash the section map is immutable once stored.
type ParsedDocument struct {
	DocumentID  string            `json:"document_id" yaml:"document_id"`
	Sections    map[string]string `json:"sections" yaml:"sections"`
	Source      string            `json:"source" yaml:"source"`
	ContentHash string            `json:"content_hash" yaml:"content_hash"`
	MimeType    string            `json:"mime_type,omitempty" yaml:"mime_type,omitempty"`

	// Degraded is set when extraction was partial (malformed or unsupported input).
	Degraded bool `json:"degraded,omitempty" yaml:"degraded,omitempty"`
}

// SectionNames returns the present section names, canonical ones first in
// document order, then any others sorted.
func (d ParsedDocument) SectionNames() []string {
	var names []string
	known := make(map[string]bool, len(SectionOrder))
	for _, s := range SectionOrder {
		known[s] = true
		if _, ok := d.Sections[s]; ok {
			names = append(names, s)
		}
	}
	var extra []string
	for s := range d.Sections {
		if !known[s] {
			extra = append(extra, s)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// SourceStats is the read-only view of one content source's running statistics.
type SourceStats struct {
	Source      string `json:"source" yaml:"source"`
	Attempts    int64  `json:"attempts" yaml:"attempts"`
	Successes   int64  `json:"successes" yaml:"successes"`
	NotFound    int64  `json:"not_found" yaml:"not_found"`
	RateLimited int64  `json:"rate_limited" yaml:"rate_limited"`
	Errors      int64  `json:"errors" yaml:"errors"`

	// SuccessRate is Successes/Attempts over the process lifetime.
	SuccessRate float64 `json:"success_rate" yaml:"success_rate"`

	// RollingSuccessRate covers only the most recent attempts.
	RollingSuccessRate float64 `json:"rolling_success_rate" yaml:"rolling_success_rate"`

	// LimiterWaits counts calls the source's rate limiter had to delay.
	LimiterWaits int64 `json:"limiter_waits" yaml:"limiter_waits"`
}
