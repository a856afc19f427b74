// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/biosearch/internal/httputil"
	"github.com/pdiddy/biosearch/pkg/types"
)

// eutilsBase is the NCBI E-utilities root. Declared as a var so tests can
// substitute an httptest server.
var eutilsBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// GEOBackend queries the NCBI GEO DataSets database (db=gds) through
// E-utilities: esearch for matching series, then esummary for their records.
type GEOBackend struct {
	Client    *http.Client
	UserAgent string

	// Email and APIKey identify the caller to NCBI; the key raises the limit.
	Email  string
	APIKey string

	Limiter *httputil.Limiter
}

// Name returns the backend identifier.
func (b *GEOBackend) Name() types.RecordSource { return types.SourceGEO }

// Query returns dataset records for the series matching terms and filters.
func (b *GEOBackend) Query(ctx context.Context, terms []string, filters types.Filters, maxResults int) ([]types.CandidateRecord, error) {
	term := buildGEOTerm(terms, filters)
	if term == "" {
		return nil, fmt.Errorf("empty GEO query: %w", types.ErrInvalidQuery)
	}
	if maxResults <= 0 {
		maxResults = 20
	}

	params := b.params()
	params.Set("db", "gds")
	params.Set("term", term)
	params.Set("retmax", fmt.Sprintf("%d", maxResults))
	params.Set("retmode", "json")

	var sr geoSearchResponse
	if err := getJSON(ctx, b.Client, b.Limiter, eutilsBase+"/esearch.fcgi?"+params.Encode(),
		userAgentHeader(b.UserAgent), &sr, "GEO esearch"); err != nil {
		return nil, err
	}
	if len(sr.Result.IDList) == 0 {
		return nil, fmt.Errorf("GEO: %w", types.ErrSourceEmpty)
	}

	params = b.params()
	params.Set("db", "gds")
	params.Set("id", strings.Join(sr.Result.IDList, ","))
	params.Set("retmode", "json")

	var sum geoSummaryResponse
	if err := getJSON(ctx, b.Client, b.Limiter, eutilsBase+"/esummary.fcgi?"+params.Encode(),
		userAgentHeader(b.UserAgent), &sum, "GEO esummary"); err != nil {
		return nil, err
	}

	// esummary keys documents by uid; esearch order is relevance order.
	var out []types.CandidateRecord
	for _, uid := range sr.Result.IDList {
		doc, ok := sum.Result.Docs[uid]
		if !ok || doc.Accession == "" {
			continue
		}
		out = append(out, types.NewDataset(doc.toDataset(), types.SourceGEO))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("GEO: %w", types.ErrSourceEmpty)
	}
	return out, nil
}

func (b *GEOBackend) params() url.Values {
	p := url.Values{"tool": {"biosearch"}}
	if b.Email != "" {
		p.Set("email", b.Email)
	}
	if b.APIKey != "" {
		p.Set("api_key", b.APIKey)
	}
	return p
}

// buildGEOTerm builds an Entrez query restricted to GEO series.
func buildGEOTerm(terms []string, f types.Filters) string {
	q := quoteTerms(terms)
	if q == "" {
		return ""
	}
	parts := []string{"(" + q + ")", "gse[ETYP]"}
	if f.Organism != "" {
		parts = append(parts, fmt.Sprintf("%q[Organism]", f.Organism))
	}
	if f.Category != "" {
		parts = append(parts, fmt.Sprintf("%q[DataSet Type]", f.Category))
	}
	if !f.DateFrom.IsZero() || !f.DateTo.IsZero() {
		from, to := "1900/01/01", "3000/12/31"
		if !f.DateFrom.IsZero() {
			from = f.DateFrom.Format("2006/01/02")
		}
		if !f.DateTo.IsZero() {
			to = f.DateTo.Format("2006/01/02")
		}
		parts = append(parts, fmt.Sprintf("(%q[PDAT] : %q[PDAT])", from, to))
	}
	return strings.Join(parts, " AND ")
}

// E-utilities JSON structures.
type geoSearchResponse struct {
	Result struct {
		Count  flexInt  `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type geoSummaryResponse struct {
	Result geoSummaryResult `json:"result"`
}

// geoSummaryResult holds the "uids" list next to one object per uid.
type geoSummaryResult struct {
	UIDs []string
	Docs map[string]geoDoc
}

func (r *geoSummaryResult) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Docs = make(map[string]geoDoc, len(raw))
	for k, v := range raw {
		if k == "uids" {
			if err := json.Unmarshal(v, &r.UIDs); err != nil {
				return err
			}
			continue
		}
		var d geoDoc
		if err := json.Unmarshal(v, &d); err != nil {
			// One odd document must not sink the page.
			continue
		}
		r.Docs[k] = d
	}
	return nil
}

type geoDoc struct {
	UID       string       `json:"uid"`
	Accession string       `json:"accession"`
	Title     string       `json:"title"`
	Summary   string       `json:"summary"`
	Taxon     string       `json:"taxon"`
	GDSType   string       `json:"gdstype"`
	GPL       string       `json:"gpl"`
	NSamples  flexInt      `json:"n_samples"`
	PDat      string       `json:"pdat"`
	PubMedIDs []flexString `json:"pubmedids"`
}

func (d geoDoc) toDataset() types.DatasetRecord {
	ds := types.DatasetRecord{
		Accession:   strings.TrimSpace(d.Accession),
		Title:       strings.TrimSpace(d.Title),
		Summary:     strings.TrimSpace(d.Summary),
		Organism:    strings.TrimSpace(d.Taxon),
		Category:    strings.TrimSpace(d.GDSType),
		SampleCount: int(d.NSamples),
	}
	var platforms []string
	for _, p := range strings.Split(d.GPL, ";") {
		if p = strings.TrimSpace(p); p != "" {
			platforms = append(platforms, "GPL"+strings.TrimPrefix(p, "GPL"))
		}
	}
	ds.Platform = strings.Join(platforms, ",")
	if t, err := time.Parse("2006/01/02", d.PDat); err == nil {
		ds.ReleaseDate = t
	}
	for _, id := range d.PubMedIDs {
		if s := strings.TrimSpace(string(id)); s != "" {
			ds.LinkedPublications = append(ds.LinkedPublications, "pmid:"+s)
		}
	}
	return ds
}
