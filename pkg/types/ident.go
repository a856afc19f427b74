// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"regexp"
	"strings"
)

var (
	doiPattern   = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)
	pmidPattern  = regexp.MustCompile(`^\d{1,9}$`)
	pmcidPattern = regexp.MustCompile(`^(?i)pmc\d+$`)
)

// doiPrefixes are stripped before a DOI is compared.
var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi:",
}

// NormalizeDOI lowercases a DOI and strips resolver and "doi:" prefixes.
// It returns "" when s does not look like a DOI.
func NormalizeDOI(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range doiPrefixes {
		s = strings.TrimPrefix(s, p)
	}
	if !doiPattern.MatchString(s) {
		return ""
	}
	return s
}

// NormalizeIdentifier maps a bare or prefixed identifier to the prefixed form
// used for dedup keys: "doi:10.x/y", "pmid:123", "pmc:PMC123" or
// "acc:GSE123". Strings that are already prefixed are normalized in place.
// It returns "" for empty input.
func NormalizeIdentifier(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "pmid:"):
		return "pmid:" + strings.TrimSpace(s[len("pmid:"):])
	case strings.HasPrefix(lower, "pmc:"):
		return "pmc:" + strings.ToUpper(strings.TrimSpace(s[len("pmc:"):]))
	case strings.HasPrefix(lower, "acc:"):
		return "acc:" + strings.ToUpper(strings.TrimSpace(s[len("acc:"):]))
	}
	if doi := NormalizeDOI(s); doi != "" {
		return "doi:" + doi
	}
	if pmidPattern.MatchString(s) {
		return "pmid:" + s
	}
	if pmcidPattern.MatchString(s) {
		return "pmc:" + strings.ToUpper(s)
	}
	return "acc:" + strings.ToUpper(s)
}
