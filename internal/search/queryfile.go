// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/biosearch/pkg/types"
)

// QueryFile is the on-disk representation of a search query and its result.
// A saved search can be reloaded later without re-querying any source.
type QueryFile struct {
	Query   QueryParams         `yaml:"query"`
	Config  QueryFileConfig     `yaml:"config"`
	Result  *types.SearchResult `yaml:"result,omitempty"`
	Summary QuerySummary        `yaml:"summary"`
}

// QueryParams stores the query in a serializable form.
type QueryParams struct {
	Text     string   `yaml:"text,omitempty"`
	Terms    []string `yaml:"terms"`
	Organism string   `yaml:"organism,omitempty"`
	Category string   `yaml:"category,omitempty"`
	DateFrom string   `yaml:"date_from,omitempty"`
	DateTo   string   `yaml:"date_to,omitempty"`
}

// QueryFileConfig stores the search configuration that produced the result.
type QueryFileConfig struct {
	MaxResults int `yaml:"max_results"`
}

// QuerySummary stores result statistics and a timestamp.
type QuerySummary struct {
	Total             int       `yaml:"total"`
	DuplicatesRemoved int       `yaml:"duplicates_removed"`
	FailedSources     []string  `yaml:"failed_sources,omitempty"`
	Timestamp         time.Time `yaml:"timestamp"`
}

// NewQueryParams captures q for saving.
func NewQueryParams(q types.SearchQuery) QueryParams {
	f := q.Filters()
	return QueryParams{
		Text:     q.Text(),
		Terms:    q.Terms(),
		Organism: f.Organism,
		Category: f.Category,
		DateFrom: formatDate(f.DateFrom),
		DateTo:   formatDate(f.DateTo),
	}
}

// WriteQueryFile saves the query and its result to a YAML file. res may be
// nil to save a query for later execution.
func WriteQueryFile(path string, q types.SearchQuery, maxResults int, res *types.SearchResult) error {
	qf := QueryFile{
		Query:  NewQueryParams(q),
		Config: QueryFileConfig{MaxResults: maxResults},
		Result: res,
	}
	if res != nil {
		qf.Summary = QuerySummary{
			Total:             len(res.Results),
			DuplicatesRemoved: res.DuplicatesRemoved,
			Timestamp:         res.CreatedAt,
		}
		for _, s := range res.FailedSources() {
			qf.Summary.FailedSources = append(qf.Summary.FailedSources, string(s))
		}
	}

	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueryFile loads a previously saved query file from disk.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	return &qf, nil
}

// ToQuery converts stored QueryParams back into a SearchQuery.
func (p QueryParams) ToQuery() (types.SearchQuery, error) {
	f := types.Filters{Organism: p.Organism, Category: p.Category}
	if p.DateFrom != "" {
		t, err := time.Parse(dateFmt, p.DateFrom)
		if err != nil {
			return types.SearchQuery{}, fmt.Errorf("invalid date_from %q: %w", p.DateFrom, err)
		}
		f.DateFrom = t
	}
	if p.DateTo != "" {
		t, err := time.Parse(dateFmt, p.DateTo)
		if err != nil {
			return types.SearchQuery{}, fmt.Errorf("invalid date_to %q: %w", p.DateTo, err)
		}
		f.DateTo = t
	}
	return types.NewSearchQuery(p.Text, p.Terms, f), nil
}
