// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/biosearch/pkg/types"
)

func pub(src types.RecordSource, p types.PublicationRecord) types.CandidateRecord {
	return types.NewPublication(p, src)
}

func dataset(acc, title string, linked ...string) types.CandidateRecord {
	return types.NewDataset(types.DatasetRecord{
		Accession:          acc,
		Title:              title,
		Summary:            title + " summary",
		SampleCount:        12,
		LinkedPublications: linked,
	}, types.SourceGEO)
}

func canonicalIDs(recs []types.CandidateRecord) []string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.CanonicalID()
	}
	return ids
}

func assertUniqueIDs(t *testing.T, recs []types.CandidateRecord) {
	t.Helper()
	seen := make(map[string]bool)
	for _, r := range recs {
		id := r.CanonicalID()
		require.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate canonical id %s", id)
		seen[id] = true
	}
}

func TestMergeExactDOI(t *testing.T) {
	d := NewDeduplicator(types.DedupConfig{})
	a := []types.CandidateRecord{
		pub(types.SourceEuropePMC, types.PublicationRecord{DOI: "10.1000/ABC", Title: "Paper A", PMID: "111"}),
		pub(types.SourceEuropePMC, types.PublicationRecord{DOI: "10.1000/xyz", Title: "Paper B"}),
	}
	b := []types.CandidateRecord{
		pub(types.SourceOpenAlex, types.PublicationRecord{
			DOI: "https://doi.org/10.1000/abc", Title: "Paper A (OpenAlex)", Abstract: "Backfilled.", CitationCount: 40,
		}),
	}

	out, removed := d.Merge(a, b)
	require.Len(t, out, 2)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"doi:10.1000/abc", "doi:10.1000/xyz"}, canonicalIDs(out))

	merged := out[0].Publication
	assert.Equal(t, "Paper A", merged.Title, "first-seen record wins")
	assert.Equal(t, "Backfilled.", merged.Abstract, "empty fields are backfilled")
	assert.Equal(t, 40, merged.CitationCount)
	assert.Equal(t, []types.RecordSource{types.SourceEuropePMC, types.SourceOpenAlex}, out[0].Provenance)
}

func TestMergeDoesNotModifyInput(t *testing.T) {
	d := NewDeduplicator(types.DedupConfig{})
	first := pub(types.SourceEuropePMC, types.PublicationRecord{DOI: "10.1000/abc", Title: "A"})
	second := pub(types.SourceOpenAlex, types.PublicationRecord{DOI: "10.1000/abc", Abstract: "text"})

	d.Merge([]types.CandidateRecord{first}, []types.CandidateRecord{second})

	assert.Empty(t, first.Publication.Abstract)
	assert.Equal(t, []types.RecordSource{types.SourceEuropePMC}, first.Provenance)
}

func TestMergeBySecondaryIdentifier(t *testing.T) {
	d := NewDeduplicator(types.DedupConfig{})
	out, removed := d.Merge(
		[]types.CandidateRecord{pub(types.SourceEuropePMC, types.PublicationRecord{PMID: "222", Title: "Only PMID"})},
		[]types.CandidateRecord{pub(types.SourceOpenAlex, types.PublicationRecord{DOI: "10.1000/q", PMID: "222", Title: "Both"})},
		[]types.CandidateRecord{pub(types.SourceSemanticScholar, types.PublicationRecord{DOI: "10.1000/Q", Title: "DOI only"})},
	)
	require.Len(t, out, 1)
	assert.Equal(t, 2, removed)
	assert.Equal(t, "doi:10.1000/q", out[0].CanonicalID(), "backfilled DOI becomes canonical")
	assert.Len(t, out[0].Provenance, 3)
}

func TestMergeConflictingDOIsStaySeparate(t *testing.T) {
	d := NewDeduplicator(types.DedupConfig{})
	out, _ := d.Merge([]types.CandidateRecord{
		pub(types.SourceEuropePMC, types.PublicationRecord{DOI: "10.1000/one", PMID: "333", Title: "Erratum"}),
		pub(types.SourceOpenAlex, types.PublicationRecord{DOI: "10.1000/two", PMID: "333", Title: "Erratum"}),
	})
	assert.Len(t, out, 2)
	assertUniqueIDs(t, out)
}

func TestMergeDropsUnidentified(t *testing.T) {
	d := NewDeduplicator(types.DedupConfig{})
	out, removed := d.Merge([]types.CandidateRecord{
		pub(types.SourceEuropePMC, types.PublicationRecord{Title: "No identifier at all"}),
		types.NewDataset(types.DatasetRecord{Title: "No accession"}, types.SourceGEO),
		{Kind: types.KindDataset},
		dataset("GSE1", "Kept"),
	})
	require.Len(t, out, 1)
	assert.Equal(t, 3, removed)
	assert.Equal(t, "acc:GSE1", out[0].CanonicalID())
}

func TestMergeDatasetAccessionCaseInsensitive(t *testing.T) {
	d := NewDeduplicator(types.DedupConfig{})
	a := dataset("GSE100", "Atlas")
	b := types.NewDataset(types.DatasetRecord{Accession: "gse100", Platform: "GPL1", LinkedPublications: []string{"pmid:9"}}, types.SourceEuropePMC)

	out, removed := d.Merge([]types.CandidateRecord{a}, []types.CandidateRecord{b})
	require.Len(t, out, 1)
	assert.Equal(t, 1, removed)
	assert.Equal(t, "GPL1", out[0].Dataset.Platform)
	assert.Equal(t, []string{"pmid:9"}, out[0].Dataset.LinkedPublications)
}

func TestMergeFuzzyTitle(t *testing.T) {
	d := NewDeduplicator(types.DedupConfig{TitleSimilarity: 0.92})
	weak := pub(types.SourceSemanticScholar, types.PublicationRecord{
		InternalID: "s2-1", Title: "Single-cell RNA-seq of the human breast", Year: 2021,
	})
	strong := pub(types.SourceEuropePMC, types.PublicationRecord{
		DOI: "10.1000/sc", Title: "Single cell RNA seq of human breast.", Abstract: "We profile.", Year: 2021,
		Authors: []string{"Ada Lovelace"},
	})
	other := pub(types.SourceEuropePMC, types.PublicationRecord{DOI: "10.1000/lung", Title: "Lung cancer atlas"})

	out, removed := d.Merge([]types.CandidateRecord{weak, other}, []types.CandidateRecord{strong})
	require.Len(t, out, 2)
	assert.Equal(t, 1, removed)

	// The cluster sits at its first member's position and keeps the most
	// complete member.
	assert.Equal(t, "doi:10.1000/sc", out[0].CanonicalID())
	assert.Equal(t, []types.RecordSource{types.SourceSemanticScholar, types.SourceEuropePMC}, out[0].Provenance)
	assert.Equal(t, "s2-1", out[0].Publication.InternalID, "weak member backfills")
	assert.Equal(t, "doi:10.1000/lung", out[1].CanonicalID())
}

func TestMergeFuzzyConservative(t *testing.T) {
	d := NewDeduplicator(types.DedupConfig{TitleSimilarity: 0.92})

	tests := []struct {
		name string
		a, b types.PublicationRecord
	}{
		{
			name: "both strongly identified",
			a:    types.PublicationRecord{DOI: "10.1000/a", Title: "Tumour heterogeneity in breast cancer"},
			b:    types.PublicationRecord{DOI: "10.1000/b", Title: "Tumour heterogeneity in breast cancer"},
		},
		{
			name: "dissimilar titles",
			a:    types.PublicationRecord{InternalID: "x", Title: "Breast cancer atlas"},
			b:    types.PublicationRecord{DOI: "10.1000/b", Title: "Lung cancer atlas"},
		},
		{
			name: "years far apart",
			a:    types.PublicationRecord{InternalID: "x", Title: "Annual report on sequencing", Year: 2010},
			b:    types.PublicationRecord{DOI: "10.1000/b", Title: "Annual report on sequencing", Year: 2020},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, removed := d.Merge([]types.CandidateRecord{
				pub(types.SourceEuropePMC, tt.a),
				pub(types.SourceOpenAlex, tt.b),
			})
			assert.Len(t, out, 2)
			assert.Zero(t, removed)
		})
	}
}

func TestMergeFuzzyNeverJoinsTwoDOIs(t *testing.T) {
	// A weak record similar to two strong records with different DOIs may
	// join only one of them.
	d := NewDeduplicator(types.DedupConfig{})
	out, _ := d.Merge([]types.CandidateRecord{
		pub(types.SourceEuropePMC, types.PublicationRecord{DOI: "10.1000/v1", Title: "Gene expression in mouse liver"}),
		pub(types.SourceSemanticScholar, types.PublicationRecord{InternalID: "w", Title: "Gene expression in mouse liver"}),
		pub(types.SourceOpenAlex, types.PublicationRecord{DOI: "10.1000/v2", Title: "Gene expression in mouse liver"}),
	})
	require.Len(t, out, 2)
	assert.Equal(t, []string{"doi:10.1000/v1", "doi:10.1000/v2"}, canonicalIDs(out))
}

func TestMergeCrossTypeSuppression(t *testing.T) {
	d := NewDeduplicator(types.DedupConfig{})
	datasets := []types.CandidateRecord{
		dataset("GSE1", "Breast atlas", "pmid:111"),
		dataset("GSE2", "Liver atlas", "10.1000/Linked"),
	}
	pubs := []types.CandidateRecord{
		pub(types.SourceEuropePMC, types.PublicationRecord{PMID: "111", DOI: "10.1000/other", Title: "Linked by PMID"}),
		pub(types.SourceEuropePMC, types.PublicationRecord{DOI: "10.1000/linked", Title: "Linked by DOI"}),
		pub(types.SourceEuropePMC, types.PublicationRecord{DOI: "10.1000/free", Title: "Independent"}),
	}

	out, removed := d.Merge(datasets, pubs)
	assert.Equal(t, []string{"acc:GSE1", "acc:GSE2", "doi:10.1000/free"}, canonicalIDs(out))
	assert.Equal(t, 2, removed)
}

func TestMergeIdempotent(t *testing.T) {
	d := NewDeduplicator(types.DedupConfig{})
	a := []types.CandidateRecord{
		dataset("GSE1", "Breast atlas", "pmid:1"),
		pub(types.SourceEuropePMC, types.PublicationRecord{PMID: "1", Title: "Suppressed"}),
		pub(types.SourceEuropePMC, types.PublicationRecord{PMID: "2", Title: "Spatial transcriptomics of tumours"}),
		pub(types.SourceEuropePMC, types.PublicationRecord{DOI: "10.1000/x", Title: "X"}),
	}
	b := []types.CandidateRecord{
		pub(types.SourceOpenAlex, types.PublicationRecord{DOI: "10.1000/X", PMID: "3", Title: "X again"}),
		pub(types.SourceOpenAlex, types.PublicationRecord{InternalID: "W9", Title: "Spatial transcriptomics of tumours."}),
		pub(types.SourceOpenAlex, types.PublicationRecord{InternalID: "W10", Title: "Unrelated"}),
	}

	once, _ := d.Merge(a, b)
	twice, removed := d.Merge(once)
	assert.Zero(t, removed)
	assert.Equal(t, once, twice)
	assertUniqueIDs(t, twice)
}

func TestMergeJoinsRecordsBridgedByLaterRecord(t *testing.T) {
	d := NewDeduplicator(types.DedupConfig{})
	a := []types.CandidateRecord{
		pub(types.SourceEuropePMC, types.PublicationRecord{PMID: "1", Title: "Breast atlas"}),
		pub(types.SourceEuropePMC, types.PublicationRecord{DOI: "10.1000/x", Title: "A breast atlas", Journal: "Nature"}),
	}
	b := []types.CandidateRecord{
		pub(types.SourceOpenAlex, types.PublicationRecord{DOI: "10.1000/X", PMID: "1", Title: "Breast atlas (OpenAlex)"}),
	}

	once, removed := d.Merge(a, b)
	require.Len(t, once, 1)
	assert.Equal(t, 2, removed)
	p := once[0].Publication
	assert.Equal(t, "1", p.PMID)
	assert.Equal(t, "10.1000/x", p.DOI)
	assert.Equal(t, "Breast atlas", p.Title, "the first-seen record keeps its fields")
	assert.Equal(t, "Nature", p.Journal)
	assert.Equal(t, []types.RecordSource{types.SourceEuropePMC, types.SourceOpenAlex}, once[0].Provenance)

	twice, removed := d.Merge(once)
	assert.Zero(t, removed)
	assert.Equal(t, once, twice)
}

func TestMergeBridgeNeverJoinsConflictingPMIDs(t *testing.T) {
	d := NewDeduplicator(types.DedupConfig{})
	a := []types.CandidateRecord{
		pub(types.SourceEuropePMC, types.PublicationRecord{PMID: "1", Title: "First"}),
		pub(types.SourceEuropePMC, types.PublicationRecord{DOI: "10.1000/x", PMID: "2", Title: "Second"}),
	}
	b := []types.CandidateRecord{
		pub(types.SourceOpenAlex, types.PublicationRecord{DOI: "10.1000/x", PMID: "1", Title: "Second again"}),
	}

	out, _ := d.Merge(a, b)
	assert.Equal(t, []string{"pmid:1", "doi:10.1000/x"}, canonicalIDs(out))
	assertUniqueIDs(t, out)
}

func TestMergeNoDuplicateIDs(t *testing.T) {
	d := NewDeduplicator(types.DedupConfig{})
	var sets [][]types.CandidateRecord
	srcs := []types.RecordSource{types.SourceEuropePMC, types.SourceOpenAlex, types.SourceSemanticScholar}
	for s, src := range srcs {
		var set []types.CandidateRecord
		for i := 0; i < 20; i++ {
			p := types.PublicationRecord{Title: fmt.Sprintf("Study %d of %d", i, s)}
			switch i % 4 {
			case 0:
				p.DOI = fmt.Sprintf("10.1000/%d", i)
			case 1:
				p.PMID = fmt.Sprintf("%d", 1000+i)
			case 2:
				p.DOI = fmt.Sprintf("10.1000/%d", i)
				p.PMID = fmt.Sprintf("%d", 1000+i)
			case 3:
				p.InternalID = fmt.Sprintf("%s-%d", src, i)
			}
			set = append(set, pub(src, p))
		}
		sets = append(sets, set)
	}

	out, removed := d.Merge(sets...)
	assertUniqueIDs(t, out)
	assert.LessOrEqual(t, len(out), 60)
	assert.Equal(t, 60, len(out)+removed)
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"The Atlas of the Human Breast.", "atlas human breast"},
		{"RNA-seq: a tool for transcriptomics", "rna seq tool transcriptomics"},
		{"  ", ""},
		{"Of and The", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeTitle(tt.in), tt.in)
	}
}
