package notes

import (
	"regexp"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
)

const (
	docxFont     = "Times New Roman"
	docxFontSize = 12
)

var (
	reHeading = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	reBold    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reBullet  = regexp.MustCompile(`^[\-\*]\s+(.+)$`)
	reQuote   = regexp.MustCompile(`^>\s?(.*)$`)
)

// WriteDocx renders a markdown note body to a DOCX file at path. Formulas are
// kept as their LaTeX source.
func WriteDocx(title, markdown, path string) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return err
	}
	addStyledRun(doc.AddParagraph(""), title, true, 18, false)

	for _, line := range strings.Split(StripFrontMatter(markdown), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == "---" {
			continue
		}
		if m := reHeading.FindStringSubmatch(trimmed); m != nil {
			if len(m[1]) == 1 && strings.TrimSpace(m[2]) == title {
				continue
			}
			addStyledRun(doc.AddParagraph(""), m[2], true, headingSize(len(m[1])), false)
			continue
		}
		if m := reQuote.FindStringSubmatch(trimmed); m != nil {
			addStyledRun(doc.AddParagraph(""), m[1], false, docxFontSize, true)
			continue
		}
		if m := reBullet.FindStringSubmatch(trimmed); m != nil {
			addRichText(doc.AddParagraph(""), "• "+m[1])
			continue
		}
		addRichText(doc.AddParagraph(""), trimmed)
	}
	return doc.SaveTo(path)
}

func headingSize(level int) uint64 {
	switch level {
	case 1:
		return 16
	case 2:
		return 15
	case 3:
		return 14
	default:
		return docxFontSize
	}
}

func addStyledRun(p *docx.Paragraph, text string, bold bool, size uint64, italic bool) {
	run := p.AddText(cleanInline(text)).Font(docxFont).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
	if italic {
		run.Italic(true)
	}
}

func addRichText(p *docx.Paragraph, text string) {
	parts := reBold.Split(text, -1)
	matches := reBold.FindAllStringSubmatch(text, -1)
	for i, part := range parts {
		if part != "" {
			p.AddText(cleanInline(part)).Font(docxFont).Size(docxFontSize).Color("000000")
		}
		if i < len(matches) {
			p.AddText(cleanInline(matches[i][1])).Font(docxFont).Size(docxFontSize).Color("000000").Bold(true)
		}
	}
}

func cleanInline(s string) string {
	return strings.NewReplacer("**", "", "__", "", "`", "").Replace(s)
}
