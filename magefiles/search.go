//go:build mage

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Search builds the CLI and runs a search for the terms in BIOSEARCH_TERMS
// (comma-separated), saving the result to queries/latest.yaml.
func Search() error {
	mg.Deps(Build)
	terms := os.Getenv("BIOSEARCH_TERMS")
	if terms == "" {
		return fmt.Errorf("set BIOSEARCH_TERMS, e.g. BIOSEARCH_TERMS=\"breast cancer,single cell\"")
	}
	args := []string{"search", "--save", "queries/latest.yaml"}
	for _, t := range strings.Split(terms, ",") {
		args = append(args, "--term", strings.TrimSpace(t))
	}
	return sh.RunV(binPath, args...)
}

// Fetch builds the CLI and fetches full text for every publication in
// queries/latest.yaml.
func Fetch() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "fetch", "--query-file", "queries/latest.yaml", "--stats")
}
