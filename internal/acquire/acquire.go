// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire locates and downloads the full text of a document from
// open content sources: Europe PMC, Unpaywall, OpenAlex and the DOI or URL
// itself. Each source is a two-step adapter: Locate turns identifier hints
// into a fetchable Location, Fetch downloads it.
//
// Sources classify failures with the types error taxonomy: ErrNotFound when
// the source definitively has no copy, ErrRateLimited on HTTP 429, and
// ErrSourceUnavailable or ErrSourceTimeout for transient failures. Sources
// do not retry; the waterfall owns retry and backoff.
package acquire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/pdiddy/biosearch/internal/cache"
	"github.com/pdiddy/biosearch/internal/httputil"
	"github.com/pdiddy/biosearch/pkg/types"
)

// Source names, as used in FullTextConfig.Sources and request skip-sets.
const (
	SourceEuropePMC = "europepmc"
	SourceUnpaywall = "unpaywall"
	SourceOpenAlex  = "openalex"
	SourceDOI       = "doi"
)

// Source is one content source in the waterfall.
type Source interface {
	Name() string

	// Locate returns where the document can be fetched, or an error
	// wrapping types.ErrNotFound when this source has no copy.
	Locate(ctx context.Context, documentID string, hints types.Hints) (*types.Location, error)

	// Fetch downloads loc.
	Fetch(ctx context.Context, loc *types.Location) (*types.RawContent, error)
}

// metadataMaxBytes caps a locate lookup response.
const metadataMaxBytes = 2 << 20

// defaultAccept is sent when the location does not name a mime type.
const defaultAccept = "application/pdf, application/xml;q=0.9, text/html;q=0.8, */*;q=0.5"

// HTTP holds the settings every HTTP-backed source shares.
type HTTP struct {
	Client    *http.Client
	UserAgent string

	// MaxBytes caps a single download. Zero means unbounded.
	MaxBytes int64
}

// NewSources builds the sources named in cfg.Sources, in that order.
func NewSources(cfg types.FullTextConfig, client *http.Client) ([]Source, error) {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	h := HTTP{Client: client, UserAgent: cfg.UserAgent, MaxBytes: cfg.MaxBytes}

	out := make([]Source, 0, len(cfg.Sources))
	for _, name := range cfg.Sources {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case SourceEuropePMC:
			out = append(out, &EuropePMCSource{HTTP: h})
		case SourceUnpaywall:
			out = append(out, &UnpaywallSource{HTTP: h, Email: cfg.Email})
		case SourceOpenAlex:
			out = append(out, &OpenAlexSource{HTTP: h, Email: cfg.Email})
		case SourceDOI:
			out = append(out, &DirectSource{HTTP: h})
		default:
			return nil, fmt.Errorf("unknown content source %q", name)
		}
	}
	return out, nil
}

// getJSON issues a GET and decodes the JSON body into out.
func (h HTTP) getJSON(ctx context.Context, reqURL string, out any, what string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return httputil.ClassifyTransport(err, what)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp, what); err != nil {
		return err
	}
	body, err := httputil.ReadLimited(resp.Body, metadataMaxBytes)
	if err != nil {
		return fmt.Errorf("reading %s response: %v: %w", what, err, types.ErrSourceUnavailable)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing %s response: %v: %w", what, err, types.ErrSourceUnavailable)
	}
	return nil
}

// fetch downloads loc into memory and hashes it. The mime type comes from
// the response, falling back to the location's and then to sniffing.
func (h HTTP) fetch(ctx context.Context, loc *types.Location, what string) (*types.RawContent, error) {
	if loc == nil || loc.URL == "" {
		return nil, fmt.Errorf("%s: empty location: %w", what, types.ErrNotFound)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	accept := defaultAccept
	if loc.MimeType != "" {
		accept = loc.MimeType + ", */*;q=0.5"
	}
	req.Header.Set("Accept", accept)
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, httputil.ClassifyTransport(err, what)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp, what); err != nil {
		return nil, err
	}
	data, err := httputil.ReadLimited(resp.Body, h.MaxBytes)
	if errors.Is(err, httputil.ErrTooLarge) {
		return nil, fmt.Errorf("%s: %s: %w", what, loc.URL, err)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s body: %v: %w", what, err, types.ErrSourceUnavailable)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s returned an empty body: %w", what, types.ErrNotFound)
	}

	return &types.RawContent{
		Data:        data,
		Size:        len(data),
		MimeType:    contentType(resp.Header.Get("Content-Type"), loc.MimeType, data),
		ContentHash: cache.ContentHash(data),
	}, nil
}

// contentType picks the most specific mime type available. Servers that
// answer with application/octet-stream defer to the location's type.
func contentType(header, hinted string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "application/octet-stream" {
		return mt
	}
	if hinted != "" {
		return hinted
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}
