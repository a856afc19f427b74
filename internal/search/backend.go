// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/biosearch/internal/httputil"
	"github.com/pdiddy/biosearch/pkg/types"
)

// maxResponseBytes caps a record-source response body.
const maxResponseBytes = 20 << 20

// NewBackends builds the record-source backends enabled in cfg, in the
// fixed order GEO, Europe PMC, OpenAlex, Semantic Scholar.
func NewBackends(cfg types.SearchConfig, client *http.Client) []Backend {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	var out []Backend
	if cfg.EnableGEO {
		// E-utilities allow 3 requests per second, 10 with an API key.
		every := time.Second / 3
		if cfg.NCBIAPIKey != "" {
			every = time.Second / 10
		}
		out = append(out, &GEOBackend{
			Client:    client,
			UserAgent: cfg.UserAgent,
			Email:     cfg.Email,
			APIKey:    cfg.NCBIAPIKey,
			Limiter:   httputil.NewLimiter(string(types.SourceGEO), every, 1),
		})
	}
	if cfg.EnableEuropePMC {
		out = append(out, &EuropePMCBackend{
			Client:    client,
			UserAgent: cfg.UserAgent,
			Limiter:   httputil.NewLimiter(string(types.SourceEuropePMC), 100*time.Millisecond, 5),
		})
	}
	if cfg.EnableOpenAlex {
		out = append(out, &OpenAlexBackend{
			Client:    client,
			UserAgent: cfg.UserAgent,
			Email:     cfg.Email,
			Limiter:   httputil.NewLimiter(string(types.SourceOpenAlex), 100*time.Millisecond, 10),
		})
	}
	if cfg.EnableSemanticScholar {
		out = append(out, &SemanticScholarBackend{
			Client:    client,
			UserAgent: cfg.UserAgent,
			APIKey:    cfg.SemanticScholarAPIKey,
			Limiter:   httputil.NewLimiter(string(types.SourceSemanticScholar), time.Second, 1),
		})
	}
	return out
}

// getJSON waits on lim, issues a GET (retrying 429s) and decodes the JSON
// body into out. Failures are wrapped as ErrSourceUnavailable or
// ErrSourceTimeout.
func getJSON(ctx context.Context, client *http.Client, lim *httputil.Limiter, reqURL string, header http.Header, out any, what string) error {
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return httputil.ClassifyTransport(err, what)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return httputil.ClassifyTransport(err, what+" request")
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp, what); err != nil {
		if errors.Is(err, types.ErrSourceUnavailable) {
			return err
		}
		// A record source that 404s or stays rate limited is unavailable
		// for this search.
		return fmt.Errorf("%w: %w", types.ErrSourceUnavailable, err)
	}

	data, err := httputil.ReadLimited(resp.Body, maxResponseBytes)
	if err != nil {
		return fmt.Errorf("reading %s response: %v: %w", what, err, types.ErrSourceUnavailable)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s response: %v: %w", what, err, types.ErrSourceUnavailable)
	}
	return nil
}

func userAgentHeader(ua string) http.Header {
	h := http.Header{}
	if ua != "" {
		h.Set("User-Agent", ua)
	}
	return h
}

// quoteTerms joins terms with AND, quoting multi-word terms.
func quoteTerms(terms []string) string {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if strings.ContainsAny(t, " \t-") {
			t = `"` + strings.ReplaceAll(t, `"`, "") + `"`
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, " AND ")
}

// parseYear reads the leading four-digit year of s.
func parseYear(s string) int {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return 0
	}
	y := 0
	for _, r := range s[:4] {
		if r < '0' || r > '9' {
			return 0
		}
		y = y*10 + int(r-'0')
	}
	return y
}

// flexString decodes a JSON string or number as a string.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(b)
	return nil
}

// flexInt decodes a JSON number or numeric string as an int.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	n := 0
	for _, r := range strings.TrimSpace(string(s)) {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	*f = flexInt(n)
	return nil
}
