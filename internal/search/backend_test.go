// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/biosearch/internal/httputil"
	"github.com/pdiddy/biosearch/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

// jsonServer serves body with status for every request and records the last one.
func jsonServer(t *testing.T, status int, body string, last **http.Request) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if last != nil {
			*last = r
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

// withBase points a base URL var at ts for the duration of the test.
func withBase(t *testing.T, base *string, url string) {
	t.Helper()
	old := *base
	*base = url
	t.Cleanup(func() { *base = old })
}

func TestNewBackendsOrder(t *testing.T) {
	cfg := types.SearchConfig{
		EnableGEO:             true,
		EnableEuropePMC:       true,
		EnableOpenAlex:        true,
		EnableSemanticScholar: true,
		NCBIAPIKey:            "k",
	}
	backends := NewBackends(cfg, nil)
	require.Len(t, backends, 4)

	var names []types.RecordSource
	for _, b := range backends {
		names = append(names, b.Name())
	}
	assert.Equal(t, []types.RecordSource{
		types.SourceGEO, types.SourceEuropePMC, types.SourceOpenAlex, types.SourceSemanticScholar,
	}, names)
	assert.Equal(t, "k", backends[0].(*GEOBackend).APIKey)

	cfg.EnableGEO, cfg.EnableSemanticScholar = false, false
	backends = NewBackends(cfg, http.DefaultClient)
	require.Len(t, backends, 2)
	assert.Equal(t, types.SourceEuropePMC, backends[0].Name())
	assert.Same(t, http.DefaultClient, backends[0].(*EuropePMCBackend).Client)
}

func TestQuoteTerms(t *testing.T) {
	tests := []struct {
		terms []string
		want  string
	}{
		{[]string{"breast cancer", "RNA-seq", "mouse"}, `"breast cancer" AND "RNA-seq" AND mouse`},
		{[]string{" ", `say "hi" there`}, `"say hi there"`},
		{nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, quoteTerms(tt.terms))
	}
}

func TestParseYear(t *testing.T) {
	assert.Equal(t, 2021, parseYear("2021-06-01"))
	assert.Equal(t, 1999, parseYear(" 1999"))
	assert.Zero(t, parseYear("21"))
	assert.Zero(t, parseYear("n.d."))
}

func TestFlexTypes(t *testing.T) {
	var v struct {
		S1 flexString `json:"s1"`
		S2 flexString `json:"s2"`
		S3 flexString `json:"s3"`
		N1 flexInt    `json:"n1"`
		N2 flexInt    `json:"n2"`
		N3 flexInt    `json:"n3"`
	}
	err := json.Unmarshal([]byte(`{"s1":"abc","s2":12345,"s3":null,"n1":"42","n2":7,"n3":"12 samples"}`), &v)
	require.NoError(t, err)
	assert.Equal(t, flexString("abc"), v.S1)
	assert.Equal(t, flexString("12345"), v.S2)
	assert.Equal(t, flexString(""), v.S3)
	assert.Equal(t, flexInt(42), v.N1)
	assert.Equal(t, flexInt(7), v.N2)
	assert.Equal(t, flexInt(12), v.N3)
}

func TestGetJSONClassifiesStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   []error
	}{
		{"server error", http.StatusBadGateway, `{}`, []error{types.ErrSourceUnavailable}},
		{"not found", http.StatusNotFound, `{}`, []error{types.ErrSourceUnavailable, types.ErrNotFound}},
		{"rate limited", http.StatusTooManyRequests, `{}`, []error{types.ErrSourceUnavailable, types.ErrRateLimited}},
		{"malformed", http.StatusOK, `{not json`, []error{types.ErrSourceUnavailable}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := jsonServer(t, tt.status, tt.body, nil)
			var out map[string]any
			err := getJSON(t.Context(), ts.Client(), nil, ts.URL, nil, &out, "test API")
			require.Error(t, err)
			for _, want := range tt.want {
				assert.ErrorIs(t, err, want)
			}
		})
	}
}

func TestGetJSONSendsHeaders(t *testing.T) {
	var got *http.Request
	ts := jsonServer(t, http.StatusOK, `{"ok":true}`, &got)
	lim := httputil.NewLimiter("test", 0, 1)

	var out struct {
		OK bool `json:"ok"`
	}
	err := getJSON(t.Context(), ts.Client(), lim, ts.URL, userAgentHeader("biosearch-test/1"), &out, "test API")
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, "biosearch-test/1", got.Header.Get("User-Agent"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.Equal(t, int64(1), lim.Calls())
}
