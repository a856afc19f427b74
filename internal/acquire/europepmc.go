// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/pdiddy/biosearch/pkg/types"
)

// europePMCRestBase is the Europe PMC REST root. Declared as a var so tests
// can substitute an httptest server.
var europePMCRestBase = "https://www.ebi.ac.uk/europepmc/webservices/rest"

const jatsMimeType = "application/xml"

// EuropePMCSource serves open-access JATS XML from Europe PMC. Documents
// without a PMCID hint are looked up by DOI or PMID first.
type EuropePMCSource struct {
	HTTP
}

func (s *EuropePMCSource) Name() string { return SourceEuropePMC }

type europePMCLookup struct {
	ResultList struct {
		Result []struct {
			PMCID        string `json:"pmcid"`
			IsOpenAccess string `json:"isOpenAccess"`
		} `json:"result"`
	} `json:"resultList"`
}

func (s *EuropePMCSource) Locate(ctx context.Context, _ string, hints types.Hints) (*types.Location, error) {
	pmcid := strings.ToUpper(strings.TrimSpace(hints.PMCID))
	if pmcid == "" {
		var err error
		if pmcid, err = s.lookupPMCID(ctx, hints); err != nil {
			return nil, err
		}
	}
	return &types.Location{
		URL:      europePMCRestBase + "/" + url.PathEscape(pmcid) + "/fullTextXML",
		Source:   SourceEuropePMC,
		MimeType: jatsMimeType,
	}, nil
}

// lookupPMCID finds the open-access PMCID for a DOI or PMID.
func (s *EuropePMCSource) lookupPMCID(ctx context.Context, hints types.Hints) (string, error) {
	var q string
	switch {
	case hints.DOI != "":
		q = fmt.Sprintf(`DOI:"%s"`, hints.DOI)
	case hints.PMID != "":
		q = fmt.Sprintf("EXT_ID:%s AND SRC:MED", hints.PMID)
	default:
		return "", fmt.Errorf("Europe PMC needs a PMCID, DOI or PMID: %w", types.ErrNotFound)
	}

	params := url.Values{
		"query":      {q},
		"format":     {"json"},
		"resultType": {"lite"},
		"pageSize":   {"1"},
	}
	var lr europePMCLookup
	if err := s.getJSON(ctx, europePMCRestBase+"/search?"+params.Encode(), &lr, "Europe PMC lookup"); err != nil {
		return "", err
	}
	for _, r := range lr.ResultList.Result {
		if r.PMCID != "" && r.IsOpenAccess == "Y" {
			return strings.ToUpper(r.PMCID), nil
		}
	}
	return "", fmt.Errorf("no open-access PMCID in Europe PMC for %s: %w", q, types.ErrNotFound)
}

func (s *EuropePMCSource) Fetch(ctx context.Context, loc *types.Location) (*types.RawContent, error) {
	return s.fetch(ctx, loc, "Europe PMC full text")
}
