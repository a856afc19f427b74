// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/biosearch/internal/httputil"
	"github.com/pdiddy/biosearch/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const semanticFields = "title,abstract,authors,externalIds,year,venue,citationCount"

// SemanticScholarBackend queries the Semantic Scholar paper index.
type SemanticScholarBackend struct {
	Client    *http.Client
	UserAgent string
	APIKey    string
	Limiter   *httputil.Limiter
}

// Name returns the backend identifier.
func (b *SemanticScholarBackend) Name() types.RecordSource { return types.SourceSemanticScholar }

// Query returns publication records matching terms and filters.
func (b *SemanticScholarBackend) Query(ctx context.Context, terms []string, filters types.Filters, maxResults int) ([]types.CandidateRecord, error) {
	q := strings.Join(nonEmpty(terms), " ")
	if q == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query: %w", types.ErrInvalidQuery)
	}
	if maxResults <= 0 {
		maxResults = 20
	}
	if maxResults > 100 {
		maxResults = 100
	}

	params := url.Values{
		"query":  {q},
		"limit":  {fmt.Sprintf("%d", maxResults)},
		"fields": {semanticFields},
	}
	if yr := buildYearRange(filters.DateFrom, filters.DateTo); yr != "" {
		params.Set("year", yr)
	}

	header := userAgentHeader(b.UserAgent)
	if b.APIKey != "" {
		header.Set("x-api-key", b.APIKey)
	}

	var sr semanticResponse
	if err := getJSON(ctx, b.Client, b.Limiter, semanticAPIBase+"?"+params.Encode(), header, &sr, "Semantic Scholar API"); err != nil {
		return nil, err
	}
	if len(sr.Data) == 0 {
		return nil, fmt.Errorf("Semantic Scholar: %w", types.ErrSourceEmpty)
	}

	out := make([]types.CandidateRecord, 0, len(sr.Data))
	for _, paper := range sr.Data {
		p := types.PublicationRecord{
			DOI:           types.NormalizeDOI(paper.ExternalIDs.DOI),
			PMID:          strings.TrimSpace(paper.ExternalIDs.PubMed),
			InternalID:    paper.PaperID,
			Title:         strings.TrimSpace(paper.Title),
			Abstract:      paper.Abstract,
			Journal:       paper.Venue,
			Year:          paper.Year,
			CitationCount: paper.CitationCount,
			Source:        types.SourceSemanticScholar,
		}
		if pmc := strings.TrimSpace(paper.ExternalIDs.PubMedCentral); pmc != "" {
			p.PMCID = "PMC" + strings.TrimPrefix(strings.ToUpper(pmc), "PMC")
		}
		for _, a := range paper.Authors {
			p.Authors = append(p.Authors, a.Name)
		}
		out = append(out, types.NewPublication(p, types.SourceSemanticScholar))
	}
	return out, nil
}

func nonEmpty(ss []string) []string {
	var out []string
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// buildYearRange returns a Semantic Scholar year filter string (e.g. "2020-2023").
func buildYearRange(from, to time.Time) string {
	switch {
	case !from.IsZero() && !to.IsZero():
		return fmt.Sprintf("%d-%d", from.Year(), to.Year())
	case !from.IsZero():
		return fmt.Sprintf("%d-", from.Year())
	case !to.IsZero():
		return fmt.Sprintf("-%d", to.Year())
	default:
		return ""
	}
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Data   []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID       string              `json:"paperId"`
	Title         string              `json:"title"`
	Abstract      string              `json:"abstract"`
	Year          int                 `json:"year"`
	Venue         string              `json:"venue"`
	CitationCount int                 `json:"citationCount"`
	Authors       []semanticAuthor    `json:"authors"`
	ExternalIDs   semanticExternalIDs `json:"externalIds"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI           string     `json:"DOI"`
	PubMed        string     `json:"PubMed"`
	PubMedCentral string     `json:"PubMedCentral"`
	CorpusID      flexString `json:"CorpusId"`
}
