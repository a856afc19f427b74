package search

import (
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/biosearch/pkg/types"
)

// CSLItem represents a bibliographic entry in CSL (Citation Style Language)
// format. The field names and structure follow the CSL-JSON/CSL-YAML schema
// so that output is consumable by Pandoc and reference managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Publisher      string    `yaml:"publisher,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	PMID           string    `yaml:"PMID,omitempty"`
	PMCID          string    `yaml:"PMCID,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
}

// CSLName represents a person's name in CSL format.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate represents a date in CSL format using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// geoSeriesURL is the landing page for a GEO accession.
const geoSeriesURL = "https://www.ncbi.nlm.nih.gov/geo/query/acc.cgi?acc="

// FormatCSL writes ranked results as a CSL-YAML list to w, in rank order.
func FormatCSL(res *types.SearchResult, w io.Writer) error {
	items := make([]CSLItem, 0, len(res.Results))
	for _, r := range res.Results {
		items = append(items, toCSLItem(r.Record))
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

// toCSLItem converts a candidate record to a CSLItem. Datasets use the CSL
// "dataset" type; publications are "article-journal".
func toCSLItem(r types.CandidateRecord) CSLItem {
	item := CSLItem{ID: r.CanonicalID(), Title: r.Title(), Abstract: r.Text()}

	if d := r.Dataset; d != nil {
		item.Type = "dataset"
		item.Publisher = "NCBI GEO"
		item.URL = geoSeriesURL + d.Accession
		if !d.ReleaseDate.IsZero() {
			item.Issued = &CSLDate{
				DateParts: [][]int{{d.ReleaseDate.Year(), int(d.ReleaseDate.Month()), d.ReleaseDate.Day()}},
			}
		}
		return item
	}

	p := r.Publication
	item.Type = "article-journal"
	item.ContainerTitle = p.Journal
	item.DOI = types.NormalizeDOI(p.DOI)
	item.PMID = p.PMID
	item.PMCID = p.PMCID
	for _, a := range p.Authors {
		item.Author = append(item.Author, parseAuthorName(a))
	}
	if p.Year > 0 {
		item.Issued = &CSLDate{DateParts: [][]int{{p.Year}}}
	}
	return item
}

// parseAuthorName splits a full name string into CSL family/given parts.
// It splits on the last space: everything before is given, the last token
// is family. Single-token names use the literal field. Europe PMC's
// "Family Initials" form ("Smith JA") is recognized by an all-caps tail.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	head, tail := name[:idx], name[idx+1:]
	if len(tail) <= 3 && tail == strings.ToUpper(tail) && !strings.Contains(head, " ") {
		return CSLName{Family: head, Given: tail}
	}
	return CSLName{Given: head, Family: tail}
}
