// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/pdiddy/biosearch/pkg/types"
)

// maxPlainHeading is the longest line considered as an unmarked heading.
const maxPlainHeading = 60

// maxPlainTitle is the longest first line taken as a plain-text title.
const maxPlainTitle = 300

var sectionPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{types.SectionAbstract, regexp.MustCompile(`^(abstract|summary)$`)},
	{types.SectionIntroduction, regexp.MustCompile(`^(introduction|background)$`)},
	{types.SectionMethods, regexp.MustCompile(`^((materials?|patients?|subjects?) and methods|methods?( and materials?)?|methodology|experimental (procedures|section)|star methods|online methods)$`)},
	{types.SectionResults, regexp.MustCompile(`^results?( and discussion)?$`)},
	{types.SectionDiscussion, regexp.MustCompile(`^discussion$`)},
	{types.SectionConclusion, regexp.MustCompile(`^(conclusions?|concluding remarks|summary and conclusions?)$`)},
}

// endMatter headings close the current section; their text belongs to no
// canonical section.
var endMatter = regexp.MustCompile(`^(references?|bibliography|literature cited|acknowledge?ments?|funding|author contributions?|competing interests?|conflicts? of interests?|declaration of interests?|supplementary (material|information|data)|data availability( statement)?|abbreviations)$`)

var (
	headingNumber  = regexp.MustCompile(`^(?:\d+(?:\.\d+)*\.?|[ivxlc]+\.)\s+`)
	markdownHeader = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*$`)
	inlineAbstract = regexp.MustCompile(`^(?i)(abstract|summary)\s*[:.]\s+(.+)$`)
)

// canonicalSection maps a heading to a canonical section name, or "" when
// the heading is not a recognised section boundary.
func canonicalSection(heading string) string {
	h := normalizeHeading(heading)
	for _, p := range sectionPatterns {
		if p.re.MatchString(h) {
			return p.name
		}
	}
	return ""
}

func isEndMatter(heading string) bool {
	return endMatter.MatchString(normalizeHeading(heading))
}

// normalizeHeading lowercases, drops section numbering and reduces
// punctuation to single spaces: "2.1. Materials & Methods:" becomes
// "materials and methods".
func normalizeHeading(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "&", " and ")
	s = headingNumber.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// collapseSpace trims s and folds whitespace runs, including non-breaking
// spaces, to one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// sectionWriter accumulates paragraphs per canonical section in the order
// they are seen.
type sectionWriter struct {
	paras map[string][]string
}

func newSectionWriter() *sectionWriter {
	return &sectionWriter{paras: make(map[string][]string)}
}

func (w *sectionWriter) add(section, text string) {
	text = strings.TrimSpace(text)
	if section == "" || text == "" {
		return
	}
	w.paras[section] = append(w.paras[section], text)
}

func (w *sectionWriter) sections() map[string]string {
	out := make(map[string]string, len(w.paras))
	for name, ps := range w.paras {
		out[name] = strings.Join(ps, "\n\n")
	}
	return out
}

// hasBody reports whether sections holds anything beyond a title.
func hasBody(sections map[string]string) bool {
	for name := range sections {
		if name != types.SectionTitle {
			return true
		}
	}
	return false
}

// parseText splits Markdown or plain text into sections. Markdown headings
// and short unmarked lines that name a canonical section start a new
// section; other headings stay inside the current one. Text before the
// first recognised heading is dropped, apart from the title.
func parseText(text string) (map[string]string, bool) {
	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	w := newSectionWriter()
	var (
		title, firstLine string
		current          string
		para             []string
		sawMarkdown      bool
		started          bool
	)
	flush := func() {
		if len(para) > 0 {
			w.add(current, strings.Join(para, " "))
			para = para[:0]
		}
	}
	startSection := func(name string) {
		flush()
		current = name
		started = true
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}

		if m := markdownHeader.FindStringSubmatch(trimmed); m != nil {
			sawMarkdown = true
			heading := collapseSpace(m[2])
			if name := canonicalSection(heading); name != "" {
				startSection(name)
				continue
			}
			if isEndMatter(heading) {
				startSection("")
				continue
			}
			if len(m[1]) == 1 && title == "" && current == "" {
				title = heading
				continue
			}
			flush()
			if current != "" {
				w.add(current, heading)
			}
			continue
		}

		if len(trimmed) <= maxPlainHeading {
			if name := canonicalSection(trimmed); name != "" {
				startSection(name)
				continue
			}
			if isEndMatter(trimmed) {
				startSection("")
				continue
			}
		}
		if m := inlineAbstract.FindStringSubmatch(trimmed); m != nil && current == "" {
			startSection(types.SectionAbstract)
			para = append(para, m[2])
			continue
		}

		if current == "" {
			if firstLine == "" && !started {
				firstLine = trimmed
			}
			continue
		}
		para = append(para, trimmed)
	}
	flush()

	sections := w.sections()
	if title == "" && !sawMarkdown && len(firstLine) <= maxPlainTitle {
		title = firstLine
	}
	if title != "" {
		sections[types.SectionTitle] = collapseSpace(title)
	}
	return sections, !hasBody(sections)
}
