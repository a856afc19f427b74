// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/biosearch/pkg/types"
)

func TestQueryFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "breast.yaml")
	q := types.NewSearchQuery("breast cancer atlas", []string{"breast cancer", "atlas"}, types.Filters{
		Organism: "Homo sapiens",
		DateFrom: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	res := &types.SearchResult{
		ID:  "run-1",
		Key: CacheKey(q, 50),
		Results: []types.RankedResult{
			{Record: dataset("GSE1", "Breast atlas"), Score: 0.8},
		},
		Sources: []types.SourceReport{
			{Source: types.SourceGEO, Status: types.StatusOK, Count: 1},
			{Source: types.SourceEuropePMC, Status: types.StatusError, Error: "HTTP 503"},
		},
		DuplicatesRemoved: 3,
		CreatedAt:         created,
	}

	require.NoError(t, WriteQueryFile(path, q, 50, res))

	qf, err := ReadQueryFile(path)
	require.NoError(t, err)
	assert.Equal(t, "breast cancer atlas", qf.Query.Text)
	assert.Equal(t, []string{"breast cancer", "atlas"}, qf.Query.Terms)
	assert.Equal(t, "2019-01-01", qf.Query.DateFrom)
	assert.Empty(t, qf.Query.DateTo)
	assert.Equal(t, 50, qf.Config.MaxResults)
	assert.Equal(t, 1, qf.Summary.Total)
	assert.Equal(t, 3, qf.Summary.DuplicatesRemoved)
	assert.Equal(t, []string{"europepmc"}, qf.Summary.FailedSources)
	assert.True(t, created.Equal(qf.Summary.Timestamp))

	require.NotNil(t, qf.Result)
	require.Len(t, qf.Result.Results, 1)
	assert.Equal(t, "acc:GSE1", qf.Result.Results[0].Record.CanonicalID())

	back, err := qf.Query.ToQuery()
	require.NoError(t, err)
	assert.Equal(t, CacheKey(q, 50), CacheKey(back, qf.Config.MaxResults), "reloaded query maps to the same cache entry")
}

func TestQueryFileWithoutResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.yaml")
	require.NoError(t, WriteQueryFile(path, query("liver"), 20, nil))

	qf, err := ReadQueryFile(path)
	require.NoError(t, err)
	assert.Nil(t, qf.Result)
	assert.Zero(t, qf.Summary.Total)
	assert.Equal(t, []string{"liver"}, qf.Query.Terms)
}

func TestQueryParamsToQueryInvalidDate(t *testing.T) {
	_, err := QueryParams{Terms: []string{"x"}, DateTo: "31/12/2020"}.ToQuery()
	assert.ErrorContains(t, err, "invalid date_to")
}

func TestReadQueryFileErrors(t *testing.T) {
	_, err := ReadQueryFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading query file")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("query: [unclosed"), 0o644))
	_, err = ReadQueryFile(bad)
	assert.ErrorContains(t, err, "parsing query file")
}
