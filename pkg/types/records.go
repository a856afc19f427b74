// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the biosearch core:
// search queries and candidate records, ranked search results, full-text
// requests and parsed documents, and the configuration of every stage.
package types

import (
	"strings"
	"time"
)

// RecordSource identifies which external registry or index produced a
// candidate record. It is used for provenance and dedup tie-breaking.
type RecordSource string

const (
	SourceGEO             RecordSource = "geo"
	SourceEuropePMC       RecordSource = "europepmc"
	SourceOpenAlex        RecordSource = "openalex"
	SourceSemanticScholar RecordSource = "semantic_scholar"
)

// Filters narrows a search. Zero values mean "no constraint".
type Filters struct {
	Organism string    `json:"organism,omitempty" yaml:"organism,omitempty"`
	Category string    `json:"category,omitempty" yaml:"category,omitempty"`
	DateFrom time.Time `json:"date_from,omitempty" yaml:"date_from,omitempty"`
	DateTo   time.Time `json:"date_to,omitempty" yaml:"date_to,omitempty"`
}

// SearchQuery is an immutable search request: the raw text, the ordered set
// of already-expanded search terms, and structured filters. Build one with
// NewSearchQuery; accessors return copies.
type SearchQuery struct {
	text    string
	terms   []string
	filters Filters
}

// NewSearchQuery builds a query. Terms are trimmed; blank terms and
// case-insensitive repeats are dropped while keeping first-seen order.
func NewSearchQuery(text string, terms []string, filters Filters) SearchQuery {
	seen := make(map[string]bool, len(terms))
	kept := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.Join(strings.Fields(t), " ")
		if t == "" {
			continue
		}
		k := strings.ToLower(t)
		if seen[k] {
			continue
		}
		seen[k] = true
		kept = append(kept, t)
	}
	return SearchQuery{text: strings.TrimSpace(text), terms: kept, filters: filters}
}

// Text returns the raw query text.
func (q SearchQuery) Text() string { return q.text }

// Terms returns a copy of the expanded terms.
func (q SearchQuery) Terms() []string {
	out := make([]string, len(q.terms))
	copy(out, q.terms)
	return out
}

// Filters returns the structured filters.
func (q SearchQuery) Filters() Filters { return q.filters }

// HasTerms reports whether the query carries at least one non-empty term.
func (q SearchQuery) HasTerms() bool { return len(q.terms) > 0 }

// RecordKind tags which shape a CandidateRecord holds.
type RecordKind string

const (
	KindDataset     RecordKind = "dataset"
	KindPublication RecordKind = "publication"
)

// DatasetRecord is an entry from a dataset registry such as GEO.
type DatasetRecord struct {
	// Accession is the registry accession (e.g. "GSE12345").
	Accession string `json:"accession" yaml:"accession"`

	Title    string `json:"title" yaml:"title"`
	Summary  string `json:"summary" yaml:"summary"`
	Organism string `json:"organism,omitempty" yaml:"organism,omitempty"`

	// Category is the registry's study type (e.g. "Expression profiling by high throughput sequencing").
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	Platform string `json:"platform,omitempty" yaml:"platform,omitempty"`

	SampleCount int       `json:"sample_count" yaml:"sample_count"`
	ReleaseDate time.Time `json:"release_date,omitempty" yaml:"release_date,omitempty"`

	// LinkedPublications lists identifiers of publications describing this
	// dataset. Bare PMIDs and DOIs are accepted; see NormalizeIdentifier.
	LinkedPublications []string `json:"linked_publications,omitempty" yaml:"linked_publications,omitempty"`
}

// PublicationRecord is an entry from a citation index.
type PublicationRecord struct {
	DOI        string `json:"doi,omitempty" yaml:"doi,omitempty"`
	PMID       string `json:"pmid,omitempty" yaml:"pmid,omitempty"`
	PMCID      string `json:"pmcid,omitempty" yaml:"pmcid,omitempty"`
	InternalID string `json:"internal_id,omitempty" yaml:"internal_id,omitempty"`

	Title    string   `json:"title" yaml:"title"`
	Abstract string   `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Authors  []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Journal  string   `json:"journal,omitempty" yaml:"journal,omitempty"`

	Year          int          `json:"year,omitempty" yaml:"year,omitempty"`
	CitationCount int          `json:"citation_count" yaml:"citation_count"`
	Source        RecordSource `json:"source" yaml:"source"`
}

// HasStrongID reports whether the publication carries a DOI or PMID, i.e. an
// identifier shared across indexes rather than one internal to a single source.
func (p *PublicationRecord) HasStrongID() bool {
	return NormalizeDOI(p.DOI) != "" || strings.TrimSpace(p.PMID) != ""
}

// CandidateRecord is a tagged union of DatasetRecord and PublicationRecord.
// Exactly one of Dataset and Publication is set, matching Kind.
type CandidateRecord struct {
	Kind        RecordKind         `json:"kind" yaml:"kind"`
	Dataset     *DatasetRecord     `json:"dataset,omitempty" yaml:"dataset,omitempty"`
	Publication *PublicationRecord `json:"publication,omitempty" yaml:"publication,omitempty"`

	// Provenance lists every source that contributed this record, first-seen first.
	Provenance []RecordSource `json:"provenance" yaml:"provenance"`
}

// NewDataset wraps a dataset record produced by src.
func NewDataset(d DatasetRecord, src RecordSource) CandidateRecord {
	return CandidateRecord{Kind: KindDataset, Dataset: &d, Provenance: []RecordSource{src}}
}

// NewPublication wraps a publication record produced by src.
func NewPublication(p PublicationRecord, src RecordSource) CandidateRecord {
	if p.Source == "" {
		p.Source = src
	}
	return CandidateRecord{Kind: KindPublication, Publication: &p, Provenance: []RecordSource{src}}
}

// Valid reports whether the record's payload matches its kind.
func (r CandidateRecord) Valid() bool {
	switch r.Kind {
	case KindDataset:
		return r.Dataset != nil && r.Publication == nil
	case KindPublication:
		return r.Publication != nil && r.Dataset == nil
	default:
		return false
	}
}

// CanonicalID returns the most authoritative stable identifier of the record:
// "acc:" accession for datasets; "doi:", then "pmid:", then "id:<source>:"
// for publications. It returns "" when the record has no usable identifier.
func (r CandidateRecord) CanonicalID() string {
	if !r.Valid() {
		return ""
	}
	if r.Kind == KindDataset {
		acc := strings.ToUpper(strings.TrimSpace(r.Dataset.Accession))
		if acc == "" {
			return ""
		}
		return "acc:" + acc
	}
	p := r.Publication
	if doi := NormalizeDOI(p.DOI); doi != "" {
		return "doi:" + doi
	}
	if pmid := strings.TrimSpace(p.PMID); pmid != "" {
		return "pmid:" + pmid
	}
	if id := strings.TrimSpace(p.InternalID); id != "" {
		return "id:" + string(p.Source) + ":" + id
	}
	return ""
}

// Identifiers returns every normalized identifier the record is known by.
// Used for cross-type matching against dataset link lists.
func (r CandidateRecord) Identifiers() []string {
	if !r.Valid() {
		return nil
	}
	if r.Kind == KindDataset {
		if id := r.CanonicalID(); id != "" {
			return []string{id}
		}
		return nil
	}
	var ids []string
	if doi := NormalizeDOI(r.Publication.DOI); doi != "" {
		ids = append(ids, "doi:"+doi)
	}
	if pmid := strings.TrimSpace(r.Publication.PMID); pmid != "" {
		ids = append(ids, "pmid:"+pmid)
	}
	if pmc := NormalizeIdentifier(r.Publication.PMCID); strings.HasPrefix(pmc, "pmc:") {
		ids = append(ids, pmc)
	}
	return ids
}

// Title returns the record title.
func (r CandidateRecord) Title() string {
	switch {
	case r.Dataset != nil:
		return r.Dataset.Title
	case r.Publication != nil:
		return r.Publication.Title
	}
	return ""
}

// Text returns the descriptive body: dataset summary or publication abstract.
func (r CandidateRecord) Text() string {
	switch {
	case r.Dataset != nil:
		return r.Dataset.Summary
	case r.Publication != nil:
		return r.Publication.Abstract
	}
	return ""
}

// Year returns the release or publication year, or 0 when unknown.
func (r CandidateRecord) Year() int {
	switch {
	case r.Dataset != nil:
		if r.Dataset.ReleaseDate.IsZero() {
			return 0
		}
		return r.Dataset.ReleaseDate.Year()
	case r.Publication != nil:
		return r.Publication.Year
	}
	return 0
}

// Volume returns the size signal: sample count for datasets, citation count
// for publications.
func (r CandidateRecord) Volume() int {
	switch {
	case r.Dataset != nil:
		return r.Dataset.SampleCount
	case r.Publication != nil:
		return r.Publication.CitationCount
	}
	return 0
}

// Completeness counts the populated metadata fields. Higher is richer.
func (r CandidateRecord) Completeness() int {
	n := 0
	count := func(ok bool) {
		if ok {
			n++
		}
	}
	switch {
	case r.Dataset != nil:
		d := r.Dataset
		count(d.Accession != "")
		count(d.Title != "")
		count(d.Summary != "")
		count(d.Organism != "")
		count(d.Category != "")
		count(d.Platform != "")
		count(d.SampleCount > 0)
		count(!d.ReleaseDate.IsZero())
		count(len(d.LinkedPublications) > 0)
	case r.Publication != nil:
		p := r.Publication
		count(p.DOI != "")
		count(p.PMID != "")
		count(p.PMCID != "")
		count(p.Title != "")
		count(p.Abstract != "")
		count(len(p.Authors) > 0)
		count(p.Journal != "")
		count(p.Year > 0)
		count(p.CitationCount > 0)
	}
	return n
}

// Clone returns a deep copy so callers can mutate without aliasing cached data.
func (r CandidateRecord) Clone() CandidateRecord {
	out := CandidateRecord{Kind: r.Kind}
	if r.Dataset != nil {
		d := *r.Dataset
		d.LinkedPublications = append([]string(nil), r.Dataset.LinkedPublications...)
		out.Dataset = &d
	}
	if r.Publication != nil {
		p := *r.Publication
		p.Authors = append([]string(nil), r.Publication.Authors...)
		out.Publication = &p
	}
	out.Provenance = append([]RecordSource(nil), r.Provenance...)
	return out
}
