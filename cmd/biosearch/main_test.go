package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/biosearch/internal/search"
	"github.com/pdiddy/biosearch/pkg/types"
)

func TestBuildQuery(t *testing.T) {
	q, err := buildQuery("breast atlas", []string{"breast", " single cell ", "Breast"}, "Homo sapiens", "", "2020-01-01", "2024-12-31")
	require.NoError(t, err)
	assert.Equal(t, []string{"breast", "single cell"}, q.Terms())
	assert.Equal(t, "Homo sapiens", q.Filters().Organism)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), q.Filters().DateFrom)

	_, err = buildQuery("", []string{"x"}, "", "", "2024-01-01", "2020-01-01")
	assert.ErrorIs(t, err, types.ErrInvalidQuery)

	_, err = buildQuery("", []string{"x"}, "", "", "01/02/2020", "")
	assert.ErrorIs(t, err, types.ErrInvalidQuery)
}

func TestRequestFor(t *testing.T) {
	tests := []struct {
		arg  string
		want string
	}{
		{"10.1038/s41586-020-2157-4", "doi:10.1038/s41586-020-2157-4"},
		{"https://doi.org/10.1038/S41586-020-2157-4", "doi:10.1038/s41586-020-2157-4"},
		{"PMC7095418", "pmc:PMC7095418"},
		{"pmid:32296183", "pmid:32296183"},
		{"url:https://example.org/paper.pdf", "url:https://example.org/paper.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			req, err := requestFor(tt.arg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.DocumentID)
		})
	}

	_, err := requestFor("not an identifier")
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
}

func TestApplySecrets(t *testing.T) {
	c := types.DefaultConfig()
	c.Search.NCBIAPIKey = "from-config"
	applySecrets(&c, map[string]string{
		"ncbi-api-key":             "from-secrets",
		"semantic-scholar-api-key": "s2",
		"contact-email":            "me@example.org",
	})
	assert.Equal(t, "from-config", c.Search.NCBIAPIKey)
	assert.Equal(t, "s2", c.Search.SemanticScholarAPIKey)
	assert.Equal(t, "me@example.org", c.Search.Email)
	assert.Equal(t, "me@example.org", c.FullText.Email)
}

func TestFetchRequestsFromQueryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.yaml")
	pub := types.NewPublication(types.PublicationRecord{DOI: "10.1000/abc", PMID: "1", Title: "A"}, types.SourceEuropePMC)
	ds := types.NewDataset(types.DatasetRecord{Accession: "GSE1", Title: "D"}, types.SourceGEO)
	res := &types.SearchResult{Results: []types.RankedResult{{Record: ds}, {Record: pub}}}
	require.NoError(t, search.WriteQueryFile(path, types.NewSearchQuery("", []string{"x"}, types.Filters{}), 10, res))

	cmd := &cobra.Command{}
	cmd.Flags().String("query-file", path, "")
	cmd.Flags().StringSlice("skip", []string{"doi"}, "")

	reqs, err := fetchRequests(cmd, []string{"10.1000/ABC", "PMC9"})
	require.NoError(t, err)
	require.Len(t, reqs, 2, "the saved publication repeats the positional DOI")
	assert.Equal(t, "doi:10.1000/abc", reqs[0].DocumentID)
	assert.Equal(t, "pmc:PMC9", reqs[1].DocumentID)
	assert.Equal(t, []string{"doi"}, reqs[0].Skip)
}

func TestAttemptSummary(t *testing.T) {
	assert.Equal(t, "no sources tried", attemptSummary(nil))
	got := attemptSummary([]types.SourceAttemptResult{
		{Source: "europepmc", Try: 1, Outcome: types.OutcomeNotFound},
		{Source: "unpaywall", Try: 2, Outcome: types.OutcomeRateLimited},
	})
	assert.Equal(t, "europepmc#1=not_found unpaywall#2=rate_limited", got)
}

func TestPrintStats(t *testing.T) {
	var buf bytes.Buffer
	printStats(&buf, []types.SourceStats{{Source: "europepmc", Attempts: 4, Successes: 1, SuccessRate: 0.25, RollingSuccessRate: 0.25}})
	assert.Contains(t, buf.String(), "europepmc")
	assert.Contains(t, buf.String(), "25.0%")
}
