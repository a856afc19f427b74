// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"fmt"
	"net/url"

	"github.com/pdiddy/biosearch/pkg/types"
)

// unpaywallAPIBase is the Unpaywall v2 endpoint. Declared as a var so tests
// can substitute an httptest server.
var unpaywallAPIBase = "https://api.unpaywall.org/v2/"

// UnpaywallSource asks Unpaywall for the best open-access copy of a DOI.
// Unpaywall requires a contact email; without one the source reports
// not-found for every document.
type UnpaywallSource struct {
	HTTP
	Email string
}

func (s *UnpaywallSource) Name() string { return SourceUnpaywall }

type unpaywallResponse struct {
	IsOA           bool               `json:"is_oa"`
	BestOALocation *unpaywallLocation `json:"best_oa_location"`
}

type unpaywallLocation struct {
	URL       string `json:"url"`
	URLForPDF string `json:"url_for_pdf"`
}

func (s *UnpaywallSource) Locate(ctx context.Context, _ string, hints types.Hints) (*types.Location, error) {
	if hints.DOI == "" {
		return nil, fmt.Errorf("Unpaywall needs a DOI: %w", types.ErrNotFound)
	}
	if s.Email == "" {
		return nil, fmt.Errorf("Unpaywall needs a contact email: %w", types.ErrNotFound)
	}

	apiURL := unpaywallAPIBase + hints.DOI + "?" + url.Values{"email": {s.Email}}.Encode()
	var ur unpaywallResponse
	if err := s.getJSON(ctx, apiURL, &ur, "Unpaywall API"); err != nil {
		return nil, err
	}

	best := ur.BestOALocation
	switch {
	case best == nil:
		return nil, fmt.Errorf("no open-access location for %s: %w", hints.DOI, types.ErrNotFound)
	case best.URLForPDF != "":
		return &types.Location{URL: best.URLForPDF, Source: SourceUnpaywall, MimeType: "application/pdf"}, nil
	case best.URL != "":
		return &types.Location{URL: best.URL, Source: SourceUnpaywall}, nil
	default:
		return nil, fmt.Errorf("open-access location for %s has no URL: %w", hints.DOI, types.ErrNotFound)
	}
}

func (s *UnpaywallSource) Fetch(ctx context.Context, loc *types.Location) (*types.RawContent, error) {
	return s.fetch(ctx, loc, "Unpaywall download")
}
