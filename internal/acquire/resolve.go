// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/biosearch/pkg/types"
)

// IdentifierType classifies an input identifier.
type IdentifierType int

const (
	TypeUnknown IdentifierType = iota
	TypeDOI
	TypePMID
	TypePMCID
	TypeURL
)

func (t IdentifierType) String() string {
	switch t {
	case TypeDOI:
		return "doi"
	case TypePMID:
		return "pmid"
	case TypePMCID:
		return "pmcid"
	case TypeURL:
		return "url"
	default:
		return "unknown"
	}
}

var (
	pmidPattern  = regexp.MustCompile(`^(?i)(?:pmid:)?(\d{1,9})$`)
	pmcidPattern = regexp.MustCompile(`^(?i)(?:pmc:)?(pmc\d+)$`)
)

// Classify determines the identifier type and returns the normalized form:
// a lowercased DOI without resolver prefix, a bare PMID, an upper-case
// PMCID, or the URL unchanged.
func Classify(identifier string) (IdentifierType, string) {
	identifier = strings.TrimSpace(identifier)

	if doi := types.NormalizeDOI(identifier); doi != "" {
		return TypeDOI, doi
	}
	if m := pmcidPattern.FindStringSubmatch(identifier); m != nil {
		return TypePMCID, strings.ToUpper(m[1])
	}
	if m := pmidPattern.FindStringSubmatch(identifier); m != nil {
		return TypePMID, m[1]
	}
	if u, err := url.Parse(identifier); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return TypeURL, identifier
	}
	return TypeUnknown, identifier
}

// RequestForIdentifier builds a full-text request from a bare identifier.
// The document id uses the same prefixed form as search results, so
// documents found by search and fetched by hand share cache entries.
func RequestForIdentifier(identifier string) (types.FullTextRequest, error) {
	idType, norm := Classify(identifier)
	switch idType {
	case TypeDOI:
		return types.FullTextRequest{DocumentID: "doi:" + norm, Hints: types.Hints{DOI: norm}}, nil
	case TypePMID:
		return types.FullTextRequest{DocumentID: "pmid:" + norm, Hints: types.Hints{PMID: norm}}, nil
	case TypePMCID:
		return types.FullTextRequest{DocumentID: "pmc:" + norm, Hints: types.Hints{PMCID: norm}}, nil
	case TypeURL:
		return types.FullTextRequest{DocumentID: "url:" + norm, Hints: types.Hints{URL: norm}}, nil
	default:
		return types.FullTextRequest{}, fmt.Errorf("unrecognized identifier format %q: %w", identifier, types.ErrInvalidRequest)
	}
}

// Slug returns a filesystem-safe filename stem for a document id.
func Slug(documentID string) string {
	prefix, rest, ok := strings.Cut(documentID, ":")
	if !ok || rest == "" {
		return hashSlug(documentID)
	}
	if prefix == "url" {
		u, err := url.Parse(rest)
		if err != nil {
			return hashSlug(rest)
		}
		base := u.Path[strings.LastIndex(u.Path, "/")+1:]
		if i := strings.LastIndex(base, "."); i > 0 {
			base = base[:i]
		}
		if base == "" {
			return hashSlug(rest)
		}
		return "url-" + base
	}
	return prefix + "-" + strings.NewReplacer("/", "-", ":", "-", " ", "-").Replace(rest)
}

func hashSlug(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("doc-%x", h[:8])
}
