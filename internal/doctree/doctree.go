package doctree

import "strings"

// Document is a parsed source document: its text by page plus any headings
// the parser could recognize.
type Document struct {
	Title    string    // Document title (from metadata or filename)
	Pages    []Page    // Pages in order, 1-based numbering
	Headings []Heading // Detected headings in reading order
}

// Page holds the non-empty text lines of one page.
type Page struct {
	Number int
	Lines  []string
}

// Heading is a structural heading found by a parser.
type Heading struct {
	Depth int // 1 for top-level
	Text  string
	Page  int
}

// Text joins the page lines with newlines.
func (p Page) Text() string {
	return strings.Join(p.Lines, "\n")
}

// Page returns the page with the given 1-based number.
func (d *Document) Page(number int) (Page, bool) {
	for _, p := range d.Pages {
		if p.Number == number {
			return p, true
		}
	}
	return Page{}, false
}

// PageIndex returns the slice index of the page with the given number, or -1.
func (d *Document) PageIndex(number int) int {
	for i, p := range d.Pages {
		if p.Number == number {
			return i
		}
	}
	return -1
}

// SplitLines splits text into trimmed, non-empty lines.
func SplitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
