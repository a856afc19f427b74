// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/biosearch/internal/cache"
	"github.com/pdiddy/biosearch/internal/httputil"
	"github.com/pdiddy/biosearch/pkg/types"
)

const fakePDFContent = "%PDF-1.4 fake pdf content for testing"

// overrideBase points a base URL var at a test server for the duration of t.
func overrideBase(t *testing.T, base *string, value string) {
	t.Helper()
	orig := *base
	*base = value
	t.Cleanup(func() { *base = orig })
}

func testHTTP(ts *httptest.Server) HTTP {
	return HTTP{Client: ts.Client(), UserAgent: "biosearch-test/0.1", MaxBytes: 1 << 20}
}

// --- NewSources ---

func TestNewSourcesOrder(t *testing.T) {
	cfg := types.DefaultConfig().FullText
	cfg.Sources = []string{"doi", "OpenAlex", " europepmc ", "unpaywall"}
	cfg.Email = "lab@example.org"

	sources, err := NewSources(cfg, nil)
	if err != nil {
		t.Fatalf("NewSources: %v", err)
	}
	want := []string{SourceDOI, SourceOpenAlex, SourceEuropePMC, SourceUnpaywall}
	if len(sources) != len(want) {
		t.Fatalf("len(sources) = %d, want %d", len(sources), len(want))
	}
	for i, s := range sources {
		if s.Name() != want[i] {
			t.Errorf("sources[%d] = %q, want %q", i, s.Name(), want[i])
		}
	}
	if u := sources[3].(*UnpaywallSource); u.Email != "lab@example.org" || u.MaxBytes != cfg.MaxBytes {
		t.Errorf("unpaywall settings = %+v", u)
	}
}

func TestNewSourcesUnknown(t *testing.T) {
	cfg := types.DefaultConfig().FullText
	cfg.Sources = []string{"europepmc", "scihub"}
	if _, err := NewSources(cfg, nil); err == nil || !strings.Contains(err.Error(), "scihub") {
		t.Errorf("err = %v, want unknown source error", err)
	}
}

// --- fetch ---

func TestFetchHashesAndTypesContent(t *testing.T) {
	var accept, ua string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept, ua = r.Header.Get("Accept"), r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/pdf; qs=0.9")
		fmt.Fprint(w, fakePDFContent)
	}))
	defer ts.Close()

	raw, err := testHTTP(ts).fetch(context.Background(), &types.Location{URL: ts.URL + "/a.pdf", MimeType: "application/pdf"}, "test")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(raw.Data) != fakePDFContent || raw.Size != len(fakePDFContent) {
		t.Errorf("data = %q (%d bytes)", raw.Data, raw.Size)
	}
	if raw.MimeType != "application/pdf" {
		t.Errorf("MimeType = %q", raw.MimeType)
	}
	if raw.ContentHash != cache.ContentHash([]byte(fakePDFContent)) {
		t.Errorf("ContentHash = %q", raw.ContentHash)
	}
	if !strings.HasPrefix(accept, "application/pdf") {
		t.Errorf("Accept = %q", accept)
	}
	if ua != "biosearch-test/0.1" {
		t.Errorf("User-Agent = %q", ua)
	}
}

func TestFetchStatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"not found", http.StatusNotFound, "", types.ErrNotFound},
		{"gone", http.StatusGone, "", types.ErrNotFound},
		{"rate limited", http.StatusTooManyRequests, "", types.ErrRateLimited},
		{"server error", http.StatusBadGateway, "", types.ErrSourceUnavailable},
		{"empty body", http.StatusOK, "", types.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()

			_, err := testHTTP(ts).fetch(context.Background(), &types.Location{URL: ts.URL}, "test")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFetchTooLarge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 64))
	}))
	defer ts.Close()

	h := testHTTP(ts)
	h.MaxBytes = 16
	_, err := h.fetch(context.Background(), &types.Location{URL: ts.URL}, "test")
	if !errors.Is(err, httputil.ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
	if errors.Is(err, types.ErrSourceUnavailable) || errors.Is(err, types.ErrRateLimited) {
		t.Errorf("oversize download must not look transient: %v", err)
	}
}

func TestFetchTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := testHTTP(ts).fetch(ctx, &types.Location{URL: ts.URL}, "test")
	if !errors.Is(err, types.ErrSourceTimeout) {
		t.Errorf("err = %v, want ErrSourceTimeout", err)
	}
}

func TestFetchEmptyLocation(t *testing.T) {
	_, err := HTTP{Client: http.DefaultClient}.fetch(context.Background(), &types.Location{}, "test")
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestContentType(t *testing.T) {
	html := []byte("<html><body>hi</body></html>")
	tests := []struct {
		name   string
		header string
		hinted string
		data   []byte
		want   string
	}{
		{"header wins", "text/html; charset=utf-8", "application/pdf", html, "text/html"},
		{"octet-stream defers to hint", "application/octet-stream", "application/pdf", []byte("%PDF"), "application/pdf"},
		{"no header uses hint", "", "application/xml", html, "application/xml"},
		{"sniffed", "", "", html, "text/html"},
		{"sniffed pdf", "", "", []byte(fakePDFContent), "application/pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := contentType(tt.header, tt.hinted, tt.data); got != tt.want {
				t.Errorf("contentType() = %q, want %q", got, tt.want)
			}
		})
	}
}

// --- DirectSource ---

func TestDirectSourceLocate(t *testing.T) {
	overrideBase(t, &doiBase, "http://resolver.test/")
	s := &DirectSource{}

	loc, err := s.Locate(context.Background(), "doi:10.1000/x", types.Hints{DOI: "10.1000/x"})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if loc.URL != "http://resolver.test/10.1000/x" || loc.Source != SourceDOI {
		t.Errorf("loc = %+v", loc)
	}

	loc, err = s.Locate(context.Background(), "url:x", types.Hints{URL: "https://example.org/a.pdf", DOI: "10.1000/x"})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if loc.URL != "https://example.org/a.pdf" {
		t.Errorf("URL hint should win, got %q", loc.URL)
	}

	if _, err := s.Locate(context.Background(), "pmid:1", types.Hints{PMID: "1"}); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDirectSourceFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/10.1000/x", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/article.pdf", http.StatusFound)
	})
	mux.HandleFunc("/article.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, fakePDFContent)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	overrideBase(t, &doiBase, ts.URL+"/")

	s := &DirectSource{HTTP: testHTTP(ts)}
	loc, err := s.Locate(context.Background(), "doi:10.1000/x", types.Hints{DOI: "10.1000/x"})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	raw, err := s.Fetch(context.Background(), loc)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(raw.Data) != fakePDFContent || raw.MimeType != "application/pdf" {
		t.Errorf("raw = %q / %q", raw.Data, raw.MimeType)
	}
}
