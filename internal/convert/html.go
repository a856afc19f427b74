// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/biosearch/pkg/types"
)

// parseHTML renders headings and paragraphs as Markdown and splits that
// with parseText. Citation meta tags, which most publisher pages carry,
// supply the title and a missing abstract.
func parseHTML(data []byte) (map[string]string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return map[string]string{}, true
	}
	doc.Find("script, style, noscript, nav, footer, figure, table").Remove()

	var md strings.Builder
	doc.Find("h1, h2, h3, h4, h5, h6, p").Each(func(_ int, s *goquery.Selection) {
		text := collapseSpace(s.Text())
		if text == "" {
			return
		}
		if name := goquery.NodeName(s); name[0] == 'h' {
			md.WriteString(strings.Repeat("#", int(name[1]-'0')))
			md.WriteString(" ")
		}
		md.WriteString(text)
		md.WriteString("\n\n")
	})

	sections, _ := parseText(md.String())

	// The first paragraph of a page is rarely its title.
	delete(sections, types.SectionTitle)
	title := metaContent(doc, "citation_title")
	if title == "" {
		title = collapseSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		title = collapseSpace(doc.Find("title").First().Text())
	}
	if title != "" {
		sections[types.SectionTitle] = title
	}
	if _, ok := sections[types.SectionAbstract]; !ok {
		if abs := htmlAbstract(doc); abs != "" {
			sections[types.SectionAbstract] = abs
		}
	}
	return sections, !hasBody(sections)
}

func metaContent(doc *goquery.Document, name string) string {
	v, _ := doc.Find(`meta[name="` + name + `"]`).First().Attr("content")
	return collapseSpace(v)
}

// htmlAbstract finds an abstract that is not introduced by a heading.
func htmlAbstract(doc *goquery.Document) string {
	if abs := metaContent(doc, "citation_abstract"); abs != "" {
		return abs
	}
	if abs := metaContent(doc, "dc.description"); abs != "" {
		return abs
	}
	text := collapseSpace(doc.Find(`#abstract, .abstract, section[id^="abstract"]`).First().Text())
	if m := inlineAbstract.FindStringSubmatch(text); m != nil {
		return m[2]
	}
	return strings.TrimSpace(strings.TrimPrefix(text, "Abstract"))
}
