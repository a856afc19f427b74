// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"

	"github.com/pdiddy/biosearch/pkg/types"
)

// DefaultTitleSimilarity is the fuzzy title threshold used when none is configured.
const DefaultTitleSimilarity = 0.92

// Deduplicator merges record sets from several sources into one
// duplicate-free list in three passes: exact identifier, fuzzy title
// (weakly identified publications only) and cross-type suppression of
// publications already linked from a dataset.
type Deduplicator struct {
	// Threshold is the minimum normalized Levenshtein similarity for two
	// titles to be clustered.
	Threshold float64
}

// NewDeduplicator builds a deduplicator from cfg.
func NewDeduplicator(cfg types.DedupConfig) *Deduplicator {
	t := cfg.TitleSimilarity
	if t <= 0 || t > 1 {
		t = DefaultTitleSimilarity
	}
	return &Deduplicator{Threshold: t}
}

// Merge deduplicates the given record sets, in order, and returns the
// surviving records and how many input records were merged away, suppressed
// or dropped for lacking an identifier. Output order follows first
// appearance. Input records are not modified.
func (d *Deduplicator) Merge(sets ...[]types.CandidateRecord) ([]types.CandidateRecord, int) {
	total := 0
	for _, s := range sets {
		total += len(s)
	}

	out := d.exactPass(sets)
	out = d.fuzzyPass(out)
	out = crossTypePass(out)
	return out, total - len(out)
}

// exactPass groups records by identifier. The first-seen record keeps its
// position; later duplicates backfill its empty fields and add provenance.
// A record that carries identifiers of two kept records joins them, so the
// groups are the connected components of shared identifiers.
func (d *Deduplicator) exactPass(sets [][]types.CandidateRecord) []types.CandidateRecord {
	var (
		out  []types.CandidateRecord
		dead []bool
	)
	index := make(map[string]int) // identifier → position in out

	for _, set := range sets {
		for _, rec := range set {
			canonical := rec.CanonicalID()
			if canonical == "" {
				continue
			}
			idx, ok := matchExact(out, index, rec, canonical)
			if ok {
				mergeInto(&out[idx], rec)
			} else {
				idx = len(out)
				out = append(out, rec.Clone())
				dead = append(dead, false)
			}
			idx = joinBridged(out, dead, index, idx)
			register(index, out[idx], idx)
		}
	}

	kept := out[:0]
	for i, rec := range out {
		if !dead[i] {
			kept = append(kept, rec)
		}
	}
	return kept
}

// joinBridged merges into one entry every other kept publication that
// shares an identifier with out[idx] and whose DOI and PMID agree with it.
// The earlier entry survives; it returns the surviving position.
func joinBridged(out []types.CandidateRecord, dead []bool, index map[string]int, idx int) int {
	if out[idx].Kind != types.KindPublication {
		return idx
	}
	for joined := true; joined; {
		joined = false
		for _, id := range out[idx].Identifiers() {
			other, ok := index[id]
			if !ok || other == idx || dead[other] || out[other].Kind != types.KindPublication {
				continue
			}
			if strongIDConflict(out[other].Publication, out[idx].Publication) {
				continue
			}
			keep, drop := min(idx, other), max(idx, other)
			mergeInto(&out[keep], out[drop])
			dead[drop] = true
			for k, v := range index {
				if v == drop {
					index[k] = keep
				}
			}
			idx, joined = keep, true
			break
		}
	}
	return idx
}

// matchExact finds the kept record rec duplicates: by canonical id first,
// then by any secondary identifier as long as the two DOIs do not conflict.
func matchExact(out []types.CandidateRecord, index map[string]int, rec types.CandidateRecord, canonical string) (int, bool) {
	if idx, ok := index[canonical]; ok && out[idx].Kind == rec.Kind {
		return idx, true
	}
	if rec.Kind != types.KindPublication {
		return 0, false
	}
	for _, id := range rec.Identifiers() {
		idx, ok := index[id]
		if !ok || out[idx].Kind != types.KindPublication {
			continue
		}
		if doiConflict(out[idx].Publication, rec.Publication) {
			continue
		}
		return idx, true
	}
	return 0, false
}

func doiConflict(a, b *types.PublicationRecord) bool {
	da, db := types.NormalizeDOI(a.DOI), types.NormalizeDOI(b.DOI)
	return da != "" && db != "" && da != db
}

func strongIDConflict(a, b *types.PublicationRecord) bool {
	pa, pb := strings.TrimSpace(a.PMID), strings.TrimSpace(b.PMID)
	return doiConflict(a, b) || (pa != "" && pb != "" && pa != pb)
}

func register(index map[string]int, rec types.CandidateRecord, idx int) {
	if id := rec.CanonicalID(); id != "" {
		if _, ok := index[id]; !ok {
			index[id] = idx
		}
	}
	for _, id := range rec.Identifiers() {
		if _, ok := index[id]; !ok {
			index[id] = idx
		}
	}
}

// fuzzyPass clusters publications by title similarity. Only pairs where at
// least one side has no DOI and no PMID are compared, and a cluster never
// holds two different DOIs or two different PMIDs. Clusters are grown
// greedily in input order; each collapses to its most complete member at
// the position of its first member.
func (d *Deduplicator) fuzzyPass(in []types.CandidateRecord) []types.CandidateRecord {
	n := len(in)
	titles := make([]string, n)
	for i, rec := range in {
		if rec.Kind == types.KindPublication {
			titles[i] = normalizeTitle(rec.Title())
		}
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	ids := make([]clusterIDs, n)
	for i, rec := range in {
		if rec.Publication != nil {
			ids[i] = clusterIDs{
				doi:  types.NormalizeDOI(rec.Publication.DOI),
				pmid: strings.TrimSpace(rec.Publication.PMID),
			}
		}
	}

	for j := 0; j < n; j++ {
		if titles[j] == "" {
			continue
		}
		for i := 0; i < j; i++ {
			if titles[i] == "" {
				continue
			}
			ri, rj := find(i), find(j)
			if ri == rj {
				continue
			}
			a, b := in[i].Publication, in[j].Publication
			if a.HasStrongID() && b.HasStrongID() {
				continue
			}
			if a.Year > 0 && b.Year > 0 && abs(a.Year-b.Year) > 1 {
				continue
			}
			if ids[ri].conflicts(ids[rj]) {
				continue
			}
			if d.similar(titles[i], titles[j]) {
				// The lower index stays root so a cluster keeps its first position.
				if rj < ri {
					ri, rj = rj, ri
				}
				parent[rj] = ri
				ids[ri] = ids[ri].union(ids[rj])
			}
		}
	}

	members := make(map[int][]int)
	for i := range in {
		r := find(i)
		members[r] = append(members[r], i)
	}

	out := make([]types.CandidateRecord, 0, n)
	for i := range in {
		if find(i) != i {
			continue
		}
		group := members[i]
		if len(group) == 1 {
			out = append(out, in[i])
			continue
		}
		best := group[0]
		for _, m := range group[1:] {
			if in[m].Completeness() > in[best].Completeness() {
				best = m
			}
		}
		kept := in[best].Clone()
		for _, m := range group {
			if m != best {
				mergeInto(&kept, in[m])
			}
		}
		// Provenance is ordered by first appearance within the cluster.
		kept.Provenance = clusterProvenance(in, group)
		out = append(out, kept)
	}
	return out
}

type clusterIDs struct {
	doi, pmid string
}

func (c clusterIDs) conflicts(o clusterIDs) bool {
	return (c.doi != "" && o.doi != "" && c.doi != o.doi) ||
		(c.pmid != "" && o.pmid != "" && c.pmid != o.pmid)
}

func (c clusterIDs) union(o clusterIDs) clusterIDs {
	if c.doi == "" {
		c.doi = o.doi
	}
	if c.pmid == "" {
		c.pmid = o.pmid
	}
	return c
}

func clusterProvenance(in []types.CandidateRecord, group []int) []types.RecordSource {
	var out []types.RecordSource
	for _, m := range group {
		out = addProvenance(out, in[m].Provenance...)
	}
	return out
}

func (d *Deduplicator) similar(a, b string) bool {
	if a == b {
		return true
	}
	sim, err := edlib.StringsSimilarity(a, b, edlib.Levenshtein)
	if err != nil {
		return false
	}
	return float64(sim) >= d.Threshold
}

// crossTypePass drops publications that a kept dataset already links to.
func crossTypePass(in []types.CandidateRecord) []types.CandidateRecord {
	linked := make(map[string]bool)
	for _, rec := range in {
		if rec.Kind != types.KindDataset {
			continue
		}
		for _, id := range rec.Dataset.LinkedPublications {
			if n := types.NormalizeIdentifier(id); n != "" {
				linked[n] = true
			}
		}
	}
	if len(linked) == 0 {
		return in
	}

	out := in[:0:0]
	for _, rec := range in {
		if rec.Kind == types.KindPublication && linkedFrom(linked, rec) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func linkedFrom(linked map[string]bool, rec types.CandidateRecord) bool {
	if linked[rec.CanonicalID()] {
		return true
	}
	for _, id := range rec.Identifiers() {
		if linked[id] {
			return true
		}
	}
	return false
}

// mergeInto fills empty fields of dst from src, keeps the higher citation
// count and accumulates provenance. dst must own its pointers (see Clone).
func mergeInto(dst *types.CandidateRecord, src types.CandidateRecord) {
	dst.Provenance = addProvenance(dst.Provenance, src.Provenance...)

	switch {
	case dst.Dataset != nil && src.Dataset != nil:
		d, s := dst.Dataset, src.Dataset
		fillString(&d.Title, s.Title)
		fillString(&d.Summary, s.Summary)
		fillString(&d.Organism, s.Organism)
		fillString(&d.Category, s.Category)
		fillString(&d.Platform, s.Platform)
		if d.SampleCount == 0 {
			d.SampleCount = s.SampleCount
		}
		if d.ReleaseDate.IsZero() {
			d.ReleaseDate = s.ReleaseDate
		}
		for _, id := range s.LinkedPublications {
			if !containsFold(d.LinkedPublications, id) {
				d.LinkedPublications = append(d.LinkedPublications, id)
			}
		}

	case dst.Publication != nil && src.Publication != nil:
		d, s := dst.Publication, src.Publication
		fillString(&d.DOI, s.DOI)
		fillString(&d.PMID, s.PMID)
		fillString(&d.PMCID, s.PMCID)
		fillString(&d.InternalID, s.InternalID)
		fillString(&d.Title, s.Title)
		fillString(&d.Abstract, s.Abstract)
		fillString(&d.Journal, s.Journal)
		if len(d.Authors) == 0 && len(s.Authors) > 0 {
			d.Authors = append([]string(nil), s.Authors...)
		}
		if d.Year == 0 {
			d.Year = s.Year
		}
		if s.CitationCount > d.CitationCount {
			d.CitationCount = s.CitationCount
		}
	}
}

func fillString(dst *string, src string) {
	if *dst == "" && src != "" {
		*dst = src
	}
}

func addProvenance(dst []types.RecordSource, srcs ...types.RecordSource) []types.RecordSource {
	for _, s := range srcs {
		found := false
		for _, d := range dst {
			if d == s {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// titleStopwords are dropped before titles are compared.
var titleStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "as": true, "at": true, "by": true,
	"for": true, "from": true, "in": true, "into": true, "is": true, "of": true,
	"on": true, "or": true, "the": true, "to": true, "via": true, "with": true,
}

// normalizeTitle lowercases the title, strips punctuation and drops stopwords.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		if !titleStopwords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}
