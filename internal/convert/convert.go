// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert splits downloaded documents into named sections (title,
// abstract, introduction, methods, results, discussion, conclusion). JATS
// XML, HTML, Markdown and plain text are parsed in-process; PDFs go through
// a pluggable text Extractor first.
//
// Parsing never fails: unusable input yields whatever could be extracted,
// possibly nothing, with degraded set. The same bytes always give the same
// sections.
package convert

import (
	"bytes"
	"context"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Extractor turns a PDF into Markdown or plain text. Different backends
// (markitdown, GROBID, pdftotext) implement this interface.
type Extractor interface {
	Extract(ctx context.Context, pdf []byte) (string, error)
}

type format int

const (
	formatUnknown format = iota
	formatJATS
	formatHTML
	formatPDF
	formatText
)

// Parser is the content parser. A nil PDF extractor makes every PDF a
// degraded, empty result.
type Parser struct {
	PDF Extractor
	Log *zap.Logger
}

// NewParser builds a parser. pdf may be nil.
func NewParser(pdf Extractor, log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{PDF: pdf, Log: log}
}

// Parse returns the sections found in data. degraded is set when the input
// could not be fully parsed or yielded no section beyond a title.
func (p *Parser) Parse(ctx context.Context, data []byte, mimeType string) (map[string]string, bool) {
	switch detectFormat(mimeType, data) {
	case formatJATS:
		return parseJATS(data)
	case formatHTML:
		return parseHTML(data)
	case formatText:
		return parseText(string(data))
	case formatPDF:
		return p.parsePDF(ctx, data)
	default:
		p.logger().Debug("unsupported content type", zap.String("mime", mimeType), zap.Int("bytes", len(data)))
		return map[string]string{}, true
	}
}

func (p *Parser) parsePDF(ctx context.Context, data []byte) (map[string]string, bool) {
	if p.PDF == nil {
		p.logger().Debug("no PDF extractor configured")
		return map[string]string{}, true
	}
	text, err := p.PDF.Extract(ctx, data)
	if err != nil {
		p.logger().Warn("PDF text extraction failed", zap.Error(err))
		return map[string]string{}, true
	}
	return parseText(text)
}

func (p *Parser) logger() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}

// detectFormat trusts a specific mime type, except that HTML served as XML
// is treated as HTML. Generic or missing types fall back to sniffing.
func detectFormat(mimeType string, data []byte) format {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mimeType))
	}
	head := bytes.ToLower(bytes.TrimSpace(data[:min(len(data), 512)]))

	switch {
	case strings.Contains(mt, "pdf"):
		return formatPDF
	case strings.Contains(mt, "html"):
		return formatHTML
	case strings.HasSuffix(mt, "xml"):
		if looksLikeHTML(head) {
			return formatHTML
		}
		return formatJATS
	case mt == "text/markdown" || mt == "text/x-markdown" || mt == "text/plain":
		return formatText
	}

	switch {
	case bytes.HasPrefix(head, []byte("%pdf")):
		return formatPDF
	case looksLikeHTML(head):
		return formatHTML
	case bytes.HasPrefix(head, []byte("<?xml")), bytes.HasPrefix(head, []byte("<article")):
		return formatJATS
	}
	if strings.HasPrefix(http.DetectContentType(data), "text/plain") {
		return formatText
	}
	return formatUnknown
}

func looksLikeHTML(head []byte) bool {
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html")) ||
		bytes.Contains(head, []byte("<html"))
}
