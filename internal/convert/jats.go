// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/pdiddy/biosearch/pkg/types"
)

// JATS is the NLM article XML served by PMC and Europe PMC. Only the parts
// that carry section text are modelled.
type jatsArticle struct {
	Title     jatsText  `xml:"front>article-meta>title-group>article-title"`
	Abstracts []jatsSec `xml:"front>article-meta>abstract"`
	Body      jatsSec   `xml:"body"`
}

type jatsArticleSet struct {
	Articles []jatsArticle `xml:"article"`
}

type jatsSec struct {
	Type         string     `xml:"sec-type,attr"`
	AbstractType string     `xml:"abstract-type,attr"`
	Title        jatsText   `xml:"title"`
	Paras        []jatsText `xml:"p"`
	Secs         []jatsSec  `xml:"sec"`
}

// jatsText is the flattened character data of an element and all of its
// descendants, with whitespace collapsed.
type jatsText string

func (t *jatsText) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	var b strings.Builder
	for depth := 1; depth > 0; {
		tok, err := d.Token()
		if err != nil {
			*t = jatsText(collapseSpace(b.String()))
			return err
		}
		switch v := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write(v)
		}
	}
	*t = jatsText(collapseSpace(b.String()))
	return nil
}

// text renders the section's paragraphs, then each subsection with its
// title as a leading line.
func (s jatsSec) text() string {
	var parts []string
	for _, p := range s.Paras {
		if p != "" {
			parts = append(parts, string(p))
		}
	}
	for _, sub := range s.Secs {
		body := sub.text()
		if body == "" {
			continue
		}
		if sub.Title != "" {
			body = string(sub.Title) + "\n\n" + body
		}
		parts = append(parts, body)
	}
	return strings.Join(parts, "\n\n")
}

// name maps the section to a canonical name by sec-type, then by title.
func (s jatsSec) name() string {
	for _, t := range strings.Split(s.Type, "|") {
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "intro", "introduction", "background":
			return types.SectionIntroduction
		case "methods", "materials", "materials and methods":
			return types.SectionMethods
		case "results":
			return types.SectionResults
		case "discussion":
			return types.SectionDiscussion
		case "conclusions", "conclusion":
			return types.SectionConclusion
		}
	}
	return canonicalSection(string(s.Title))
}

func decodeJATS(data []byte, v any) error {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = false
	d.AutoClose = xml.HTMLAutoClose
	d.Entity = xml.HTMLEntity
	return d.Decode(v)
}

// parseJATS extracts title, abstract and top-level body sections. A decode
// error keeps whatever was read before it and marks the result degraded.
func parseJATS(data []byte) (map[string]string, bool) {
	var a jatsArticle
	err := decodeJATS(data, &a)
	if err == nil && a.Title == "" && len(a.Body.Secs) == 0 && len(a.Abstracts) == 0 {
		var set jatsArticleSet
		if decodeJATS(data, &set) == nil && len(set.Articles) > 0 {
			a = set.Articles[0]
		}
	}

	w := newSectionWriter()
	if abs := pickAbstract(a.Abstracts); abs != nil {
		w.add(types.SectionAbstract, abstractText(*abs))
	}
	for _, sec := range a.Body.Secs {
		w.add(sec.name(), sec.text())
	}

	sections := w.sections()
	if a.Title != "" {
		sections[types.SectionTitle] = string(a.Title)
	}
	return sections, err != nil || !hasBody(sections)
}

// pickAbstract prefers the main abstract over graphical or teaser ones.
func pickAbstract(abs []jatsSec) *jatsSec {
	for i := range abs {
		if abs[i].AbstractType == "" {
			return &abs[i]
		}
	}
	if len(abs) > 0 {
		return &abs[0]
	}
	return nil
}

// abstractText flattens a structured abstract into "Heading: text"
// paragraphs.
func abstractText(s jatsSec) string {
	var parts []string
	for _, p := range s.Paras {
		if p != "" {
			parts = append(parts, string(p))
		}
	}
	for _, sub := range s.Secs {
		body := strings.ReplaceAll(sub.text(), "\n\n", " ")
		if body == "" {
			continue
		}
		if sub.Title != "" {
			body = string(sub.Title) + ": " + body
		}
		parts = append(parts, body)
	}
	return strings.Join(parts, "\n\n")
}
