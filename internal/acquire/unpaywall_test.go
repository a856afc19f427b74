// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pdiddy/biosearch/pkg/types"
)

func TestUnpaywallSourceLocate(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantURL  string
		wantMime string
		wantErr  error
	}{
		{
			name:     "PDF preferred",
			status:   http.StatusOK,
			body:     `{"is_oa":true,"best_oa_location":{"url":"https://repo.example/landing","url_for_pdf":"https://repo.example/a.pdf"}}`,
			wantURL:  "https://repo.example/a.pdf",
			wantMime: "application/pdf",
		},
		{
			name:    "landing page when no PDF",
			status:  http.StatusOK,
			body:    `{"is_oa":true,"best_oa_location":{"url":"https://repo.example/landing","url_for_pdf":null}}`,
			wantURL: "https://repo.example/landing",
		},
		{
			name:    "closed access",
			status:  http.StatusOK,
			body:    `{"is_oa":false,"best_oa_location":null}`,
			wantErr: types.ErrNotFound,
		},
		{
			name:    "location without URL",
			status:  http.StatusOK,
			body:    `{"is_oa":true,"best_oa_location":{}}`,
			wantErr: types.ErrNotFound,
		},
		{
			name:    "unknown DOI",
			status:  http.StatusNotFound,
			body:    `{"error":true}`,
			wantErr: types.ErrNotFound,
		},
		{
			name:    "rate limited",
			status:  http.StatusTooManyRequests,
			wantErr: types.ErrRateLimited,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			wantErr: types.ErrSourceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath, gotEmail string
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath, gotEmail = r.URL.Path, r.URL.Query().Get("email")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()
			overrideBase(t, &unpaywallAPIBase, ts.URL+"/")

			s := &UnpaywallSource{HTTP: testHTTP(ts), Email: "lab@example.org"}
			loc, err := s.Locate(context.Background(), "doi:10.1038/x", types.Hints{DOI: "10.1038/x"})
			if gotPath != "/10.1038/x" || gotEmail != "lab@example.org" {
				t.Errorf("request = %q email=%q", gotPath, gotEmail)
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Locate: %v", err)
			}
			if loc.URL != tt.wantURL || loc.MimeType != tt.wantMime || loc.Source != SourceUnpaywall {
				t.Errorf("loc = %+v", loc)
			}
		})
	}
}

func TestUnpaywallSourcePreconditions(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
	}))
	defer ts.Close()
	overrideBase(t, &unpaywallAPIBase, ts.URL+"/")

	tests := []struct {
		name  string
		email string
		hints types.Hints
	}{
		{"no DOI", "lab@example.org", types.Hints{PMID: "1"}},
		{"no email", "", types.Hints{DOI: "10.1038/x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &UnpaywallSource{HTTP: testHTTP(ts), Email: tt.email}
			if _, err := s.Locate(context.Background(), "", tt.hints); !errors.Is(err, types.ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
		})
	}
	if calls != 0 {
		t.Errorf("server called %d times, want 0", calls)
	}
}
