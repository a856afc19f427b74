// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/biosearch/internal/acquire"
	"github.com/pdiddy/biosearch/pkg/types"
)

// WriteDocument writes doc to dir as <slug>.yaml and returns the path. The
// file is replaced atomically so readers never see a partial document.
func WriteDocument(dir string, doc *types.ParsedDocument) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("%w: no document to write", types.ErrInvalidRequest)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshaling document %s: %w", doc.DocumentID, err)
	}

	path := filepath.Join(dir, acquire.Slug(doc.DocumentID)+".yaml")
	tmp, err := os.CreateTemp(dir, ".doc-*.yaml")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("renaming to %s: %w", path, err)
	}
	return path, nil
}

// ReadDocument loads a document written by WriteDocument.
func ReadDocument(path string) (*types.ParsedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var doc types.ParsedDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &doc, nil
}
