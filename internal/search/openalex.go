// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/pdiddy/biosearch/internal/httputil"
	"github.com/pdiddy/biosearch/pkg/types"
)

// openAlexSearchBase is the OpenAlex Works search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openAlexSearchBase = "https://api.openalex.org/works"

// OpenAlexBackend queries the OpenAlex works index.
type OpenAlexBackend struct {
	Client    *http.Client
	UserAgent string

	// Email is sent as mailto parameter for polite pool access.
	Email string

	Limiter *httputil.Limiter
}

// Name returns the backend identifier.
func (b *OpenAlexBackend) Name() types.RecordSource { return types.SourceOpenAlex }

// Query returns publication records matching terms and filters.
func (b *OpenAlexBackend) Query(ctx context.Context, terms []string, filters types.Filters, maxResults int) ([]types.CandidateRecord, error) {
	searchText := buildOpenAlexQuery(terms, filters)
	if searchText == "" {
		return nil, fmt.Errorf("empty OpenAlex query: %w", types.ErrInvalidQuery)
	}

	if maxResults <= 0 {
		maxResults = 20
	}
	if maxResults > 200 {
		maxResults = 200
	}

	params := url.Values{
		"search":   {searchText},
		"per_page": {fmt.Sprintf("%d", maxResults)},
		"page":     {"1"},
	}

	var f []string
	if !filters.DateFrom.IsZero() {
		f = append(f, "from_publication_date:"+filters.DateFrom.Format(dateFmt))
	}
	if !filters.DateTo.IsZero() {
		f = append(f, "to_publication_date:"+filters.DateTo.Format(dateFmt))
	}
	if len(f) > 0 {
		params.Set("filter", strings.Join(f, ","))
	}
	if b.Email != "" {
		params.Set("mailto", b.Email)
	}

	var oar openAlexResponse
	if err := getJSON(ctx, b.Client, b.Limiter, openAlexSearchBase+"?"+params.Encode(),
		userAgentHeader(b.UserAgent), &oar, "OpenAlex API"); err != nil {
		return nil, err
	}
	if len(oar.Results) == 0 {
		return nil, fmt.Errorf("OpenAlex: %w", types.ErrSourceEmpty)
	}

	out := make([]types.CandidateRecord, 0, len(oar.Results))
	for _, work := range oar.Results {
		out = append(out, types.NewPublication(work.toPublication(), types.SourceOpenAlex))
	}
	return out, nil
}

// buildOpenAlexQuery combines terms and text filters into a search string.
func buildOpenAlexQuery(terms []string, f types.Filters) string {
	var parts []string
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	if f.Organism != "" {
		parts = append(parts, f.Organism)
	}
	return strings.Join(parts, " ")
}

func (w openAlexWork) toPublication() types.PublicationRecord {
	p := types.PublicationRecord{
		DOI:           types.NormalizeDOI(w.DOI),
		PMID:          lastPathSegment(w.IDs.PMID),
		PMCID:         strings.ToUpper(lastPathSegment(w.IDs.PMCID)),
		InternalID:    lastPathSegment(w.ID),
		Title:         strings.TrimSpace(w.Title),
		Abstract:      reconstructAbstract(w.AbstractInvertedIndex),
		Year:          w.PublicationYear,
		CitationCount: w.CitedByCount,
		Journal:       w.PrimaryLocation.Source.DisplayName,
		Source:        types.SourceOpenAlex,
	}
	if p.Year == 0 {
		p.Year = parseYear(w.PublicationDate)
	}
	for _, authorship := range w.Authorships {
		if authorship.Author.DisplayName != "" {
			p.Authors = append(p.Authors, authorship.Author.DisplayName)
		}
	}
	return p
}

// lastPathSegment returns the part of a URL-style id after the final slash
// ("https://openalex.org/W123" → "W123").
func lastPathSegment(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to a list of positions
// where that word appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Meta    openAlexMeta   `json:"meta"`
	Results []openAlexWork `json:"results"`
}

type openAlexMeta struct {
	Count   int `json:"count"`
	PerPage int `json:"per_page"`
	Page    int `json:"page"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DOI                   string               `json:"doi"`
	IDs                   openAlexIDs          `json:"ids"`
	PublicationDate       string               `json:"publication_date"`
	PublicationYear       int                  `json:"publication_year"`
	CitedByCount          int                  `json:"cited_by_count"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	PrimaryLocation       openAlexLocation     `json:"primary_location"`
}

type openAlexIDs struct {
	OpenAlex string `json:"openalex"`
	DOI      string `json:"doi"`
	PMID     string `json:"pmid"`
	PMCID    string `json:"pmcid"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type openAlexLocation struct {
	Source struct {
		DisplayName string `json:"display_name"`
	} `json:"source"`
}
