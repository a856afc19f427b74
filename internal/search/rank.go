// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/pdiddy/biosearch/pkg/types"
)

// Ranking factor names, in the order they appear on every RankedResult.
const (
	FactorTitle   = "title_overlap"
	FactorText    = "text_overlap"
	FactorRecency = "recency"
	FactorVolume  = "volume"
)

// Ranker scores records against a query as a weighted sum of factors, each
// normalized to [0,1]. Datasets and publications use their own weight sets,
// and every score is divided by its weight total so both kinds share one
// 0–1 scale and are sorted together.
type Ranker struct {
	cfg types.RankingConfig

	// Now is the clock used for the recency factor.
	Now func() time.Time
}

// NewRanker builds a ranker. Zero-valued fields of cfg fall back to
// DefaultRankingConfig.
func NewRanker(cfg types.RankingConfig) *Ranker {
	def := types.DefaultRankingConfig()
	if cfg.Dataset.Total() <= 0 {
		cfg.Dataset = def.Dataset
	}
	if cfg.Publication.Total() <= 0 {
		cfg.Publication = def.Publication
	}
	if cfg.RecencyHalfLife <= 0 {
		cfg.RecencyHalfLife = def.RecencyHalfLife
	}
	if cfg.SampleCountCap <= 0 {
		cfg.SampleCountCap = def.SampleCountCap
	}
	if cfg.CitationCountCap <= 0 {
		cfg.CitationCountCap = def.CitationCountCap
	}
	return &Ranker{cfg: cfg, Now: time.Now}
}

// Rank scores records and returns them best first. Ties are broken by
// metadata completeness, then by input order.
func (r *Ranker) Rank(records []types.CandidateRecord, query types.SearchQuery) []types.RankedResult {
	terms := tokenizeTerms(query.Terms())
	year := r.Now().Year()

	out := make([]types.RankedResult, len(records))
	for i, rec := range records {
		out[i] = r.score(rec, terms, year)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Record.Completeness() > out[j].Record.Completeness()
	})
	return out
}

func (r *Ranker) score(rec types.CandidateRecord, terms [][]string, currentYear int) types.RankedResult {
	w := r.cfg.Publication
	volumeCap := r.cfg.CitationCountCap
	if rec.Kind == types.KindDataset {
		w = r.cfg.Dataset
		volumeCap = r.cfg.SampleCountCap
	}

	factors := []types.ScoreFactor{
		{Name: FactorTitle, Value: overlap(terms, rec.Title()), Weight: w.Title},
		{Name: FactorText, Value: overlap(terms, rec.Text()), Weight: w.Text},
		{Name: FactorRecency, Value: recency(rec.Year(), currentYear, r.cfg.RecencyHalfLife), Weight: w.Recency},
		{Name: FactorVolume, Value: volume(rec.Volume(), volumeCap), Weight: w.Volume},
	}

	total := w.Total()
	var score float64
	for i := range factors {
		if total > 0 {
			factors[i].Contribution = factors[i].Value * factors[i].Weight / total
		}
		score += factors[i].Contribution
	}

	return types.RankedResult{Record: rec, Score: clamp01(score), Factors: factors}
}

// overlap is the mean, over query terms, of the fraction of each term's
// tokens present in text.
func overlap(terms [][]string, text string) float64 {
	if len(terms) == 0 || text == "" {
		return 0
	}
	have := make(map[string]bool)
	for _, tok := range tokenize(text) {
		have[tok] = true
	}
	var sum float64
	for _, term := range terms {
		hit := 0
		for _, tok := range term {
			if have[tok] {
				hit++
			}
		}
		sum += float64(hit) / float64(len(term))
	}
	return sum / float64(len(terms))
}

// recency halves every halfLife years of age. Unknown years score 0.
func recency(year, currentYear int, halfLife float64) float64 {
	if year <= 0 {
		return 0
	}
	age := float64(currentYear - year)
	if age < 0 {
		age = 0
	}
	return clamp01(math.Pow(0.5, age/halfLife))
}

// volume damps counts logarithmically: log1p(n)/log1p(cap), capped at 1.
func volume(n, limit int) float64 {
	if n <= 0 || limit <= 0 {
		return 0
	}
	return clamp01(math.Log1p(float64(n)) / math.Log1p(float64(limit)))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}

func tokenizeTerms(terms []string) [][]string {
	out := make([][]string, 0, len(terms))
	for _, t := range terms {
		if toks := tokenize(t); len(toks) > 0 {
			out = append(out, toks)
		}
	}
	return out
}

// tokenize lowercases s and splits it on anything that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
