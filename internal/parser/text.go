package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/sectionrank/internal/doctree"
)

// TextParser handles plain text files. Form feeds separate pages; plain text
// carries no heading markup, so the outline is always empty.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	doc := &doctree.Document{Title: trimExt(filename)}
	current := doctree.Page{Number: 1}

	for scanner.Scan() {
		line := scanner.Text()
		for {
			before, after, found := strings.Cut(line, "\f")
			if t := strings.TrimSpace(before); t != "" {
				current.Lines = append(current.Lines, t)
			}
			if !found {
				break
			}
			doc.Pages = append(doc.Pages, current)
			current = doctree.Page{Number: current.Number + 1}
			line = after
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(current.Lines) > 0 || len(doc.Pages) == 0 {
		doc.Pages = append(doc.Pages, current)
	}

	return doc, nil
}
