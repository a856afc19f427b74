// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"fmt"

	"github.com/pdiddy/biosearch/pkg/types"
)

// doiBase is the DOI resolver. Declared as a var so tests can substitute an
// httptest server.
var doiBase = "https://doi.org/"

// DirectSource fetches the document's own URL, or follows its DOI through
// the resolver to the publisher. It is the last resort: publishers often
// answer with a landing page rather than the article.
type DirectSource struct {
	HTTP
}

func (s *DirectSource) Name() string { return SourceDOI }

func (s *DirectSource) Locate(_ context.Context, _ string, hints types.Hints) (*types.Location, error) {
	if hints.URL != "" {
		if t, norm := Classify(hints.URL); t == TypeURL {
			return &types.Location{URL: norm, Source: SourceDOI}, nil
		}
	}
	if hints.DOI != "" {
		return &types.Location{URL: doiBase + hints.DOI, Source: SourceDOI}, nil
	}
	return nil, fmt.Errorf("no DOI or URL to follow: %w", types.ErrNotFound)
}

func (s *DirectSource) Fetch(ctx context.Context, loc *types.Location) (*types.RawContent, error) {
	return s.fetch(ctx, loc, "direct download")
}
