// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"fmt"
	"net/url"

	"github.com/pdiddy/biosearch/pkg/types"
)

// openAlexAPIBase is the OpenAlex works endpoint. Declared as a var so tests
// can substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org/works/"

// OpenAlexSource resolves a DOI or PMID to OpenAlex's best open-access PDF.
type OpenAlexSource struct {
	HTTP

	// Email joins the OpenAlex polite pool when set.
	Email string
}

func (s *OpenAlexSource) Name() string { return SourceOpenAlex }

// openAlexWork captures the fields we need from an OpenAlex work record.
type openAlexWork struct {
	BestOALocation *openAlexLocation `json:"best_oa_location"`
}

type openAlexLocation struct {
	PDFURL     string `json:"pdf_url"`
	LandingURL string `json:"landing_page_url"`
}

func (s *OpenAlexSource) Locate(ctx context.Context, _ string, hints types.Hints) (*types.Location, error) {
	var key string
	switch {
	case hints.DOI != "":
		key = "https://doi.org/" + hints.DOI
	case hints.PMID != "":
		key = "pmid:" + hints.PMID
	default:
		return nil, fmt.Errorf("OpenAlex needs a DOI or PMID: %w", types.ErrNotFound)
	}

	apiURL := openAlexAPIBase + key
	if s.Email != "" {
		apiURL += "?" + url.Values{"mailto": {s.Email}}.Encode()
	}
	var w openAlexWork
	if err := s.getJSON(ctx, apiURL, &w, "OpenAlex API"); err != nil {
		return nil, err
	}

	// Landing pages are publisher HTML, usually paywalled; only a PDF counts.
	if w.BestOALocation == nil || w.BestOALocation.PDFURL == "" {
		return nil, fmt.Errorf("no open-access PDF in OpenAlex for %s: %w", key, types.ErrNotFound)
	}
	return &types.Location{URL: w.BestOALocation.PDFURL, Source: SourceOpenAlex, MimeType: "application/pdf"}, nil
}

func (s *OpenAlexSource) Fetch(ctx context.Context, loc *types.Location) (*types.RawContent, error) {
	return s.fetch(ctx, loc, "OpenAlex download")
}
