// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/biosearch/internal/httputil"
	"github.com/pdiddy/biosearch/pkg/types"
)

// europePMCSearchBase is the Europe PMC REST search endpoint. Declared as a
// var so tests can substitute an httptest server.
var europePMCSearchBase = "https://www.ebi.ac.uk/europepmc/webservices/rest/search"

// EuropePMCBackend queries the Europe PMC literature index.
type EuropePMCBackend struct {
	Client    *http.Client
	UserAgent string
	Limiter   *httputil.Limiter
}

// Name returns the backend identifier.
func (b *EuropePMCBackend) Name() types.RecordSource { return types.SourceEuropePMC }

// Query returns publication records matching terms and filters.
func (b *EuropePMCBackend) Query(ctx context.Context, terms []string, filters types.Filters, maxResults int) ([]types.CandidateRecord, error) {
	q := buildEuropePMCQuery(terms, filters)
	if q == "" {
		return nil, fmt.Errorf("empty Europe PMC query: %w", types.ErrInvalidQuery)
	}
	if maxResults <= 0 {
		maxResults = 20
	}
	if maxResults > 1000 {
		maxResults = 1000
	}

	params := url.Values{
		"query":      {q},
		"format":     {"json"},
		"resultType": {"core"},
		"pageSize":   {fmt.Sprintf("%d", maxResults)},
	}

	var er europePMCResponse
	if err := getJSON(ctx, b.Client, b.Limiter, europePMCSearchBase+"?"+params.Encode(),
		userAgentHeader(b.UserAgent), &er, "Europe PMC search"); err != nil {
		return nil, err
	}
	if len(er.ResultList.Result) == 0 {
		return nil, fmt.Errorf("Europe PMC: %w", types.ErrSourceEmpty)
	}

	out := make([]types.CandidateRecord, 0, len(er.ResultList.Result))
	for _, r := range er.ResultList.Result {
		out = append(out, types.NewPublication(r.toPublication(), types.SourceEuropePMC))
	}
	return out, nil
}

// buildEuropePMCQuery builds a Europe PMC query string. Europe PMC has no
// organism or category field, so those filters become extra required terms.
func buildEuropePMCQuery(terms []string, f types.Filters) string {
	q := quoteTerms(terms)
	if q == "" {
		return ""
	}
	parts := []string{"(" + q + ")"}
	if f.Organism != "" {
		parts = append(parts, fmt.Sprintf("%q", f.Organism))
	}
	if f.Category != "" {
		parts = append(parts, fmt.Sprintf("%q", f.Category))
	}
	if !f.DateFrom.IsZero() || !f.DateTo.IsZero() {
		from, to := "1900-01-01", "3000-12-31"
		if !f.DateFrom.IsZero() {
			from = f.DateFrom.Format(dateFmt)
		}
		if !f.DateTo.IsZero() {
			to = f.DateTo.Format(dateFmt)
		}
		parts = append(parts, fmt.Sprintf("FIRST_PDATE:[%s TO %s]", from, to))
	}
	return strings.Join(parts, " AND ")
}

// Europe PMC JSON structures.
type europePMCResponse struct {
	HitCount   int `json:"hitCount"`
	ResultList struct {
		Result []europePMCResult `json:"result"`
	} `json:"resultList"`
}

type europePMCResult struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	PMID         string `json:"pmid"`
	PMCID        string `json:"pmcid"`
	DOI          string `json:"doi"`
	Title        string `json:"title"`
	AbstractText string `json:"abstractText"`
	AuthorString string `json:"authorString"`
	AuthorList   struct {
		Author []struct {
			FullName string `json:"fullName"`
		} `json:"author"`
	} `json:"authorList"`
	JournalTitle string `json:"journalTitle"`
	JournalInfo  struct {
		Journal struct {
			Title string `json:"title"`
		} `json:"journal"`
	} `json:"journalInfo"`
	PubYear      flexInt `json:"pubYear"`
	CitedByCount int     `json:"citedByCount"`
}

func (r europePMCResult) toPublication() types.PublicationRecord {
	p := types.PublicationRecord{
		DOI:           types.NormalizeDOI(r.DOI),
		PMID:          strings.TrimSpace(r.PMID),
		PMCID:         strings.ToUpper(strings.TrimSpace(r.PMCID)),
		Title:         strings.TrimSuffix(strings.TrimSpace(r.Title), "."),
		Abstract:      stripTags(r.AbstractText),
		Journal:       r.JournalInfo.Journal.Title,
		Year:          int(r.PubYear),
		CitationCount: r.CitedByCount,
		Source:        types.SourceEuropePMC,
	}
	if p.Journal == "" {
		p.Journal = r.JournalTitle
	}
	if r.ID != "" {
		p.InternalID = r.Source + ":" + r.ID
	}
	for _, a := range r.AuthorList.Author {
		if a.FullName != "" {
			p.Authors = append(p.Authors, a.FullName)
		}
	}
	if len(p.Authors) == 0 && r.AuthorString != "" {
		for _, a := range strings.Split(strings.TrimSuffix(r.AuthorString, "."), ",") {
			if a = strings.TrimSpace(a); a != "" {
				p.Authors = append(p.Authors, a)
			}
		}
	}
	return p
}

// stripTags removes inline markup (<i>, <sup>, …) that Europe PMC leaves in
// abstracts and collapses whitespace.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
