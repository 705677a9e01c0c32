// Package extract pulls a bounded window of text from a source document,
// starting right after a located heading.
package extract

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/sectionrank/internal/doctree"
	"github.com/dgallion1/sectionrank/internal/section"
)

// ErrExtractionEmpty means the heading could not be located on its recorded
// page, the page does not exist, or no text follows the heading.
var ErrExtractionEmpty = errors.New("heading not found on page")

// DefaultWindowLines is the window size used when none is configured.
const DefaultWindowLines = 20

// Snippet finds heading on the given 1-based page and returns up to n lines
// that follow it, continuing onto later pages when the page runs out. The
// heading must start a line; it may wrap onto following lines and is
// compared ignoring case and runs of whitespace. A line that holds exactly
// the heading wins over one that merely starts with it, in which case the
// rest of that line is the first line of the window.
func Snippet(doc *doctree.Document, page int, heading string, n int) (string, error) {
	if n <= 0 {
		n = DefaultWindowLines
	}
	idx := doc.PageIndex(page)
	if idx < 0 {
		return "", fmt.Errorf("%w: page %d out of range", ErrExtractionEmpty, page)
	}
	needle := collapse(heading)
	if needle == "" {
		return "", fmt.Errorf("%w: empty heading", ErrExtractionEmpty)
	}

	lines := doc.Pages[idx].Lines
	lineNo, rest, ok := locate(lines, needle)
	if !ok {
		return "", fmt.Errorf("%w: %q on page %d", ErrExtractionEmpty, heading, page)
	}

	var out []string
	if rest != "" {
		out = append(out, rest)
	}
	for i := lineNo + 1; i < len(lines) && len(out) < n; i++ {
		out = append(out, lines[i])
	}
	for p := idx + 1; p < len(doc.Pages) && len(out) < n; p++ {
		for _, l := range doc.Pages[p].Lines {
			if len(out) == n {
				break
			}
			out = append(out, l)
		}
	}

	text := strings.Join(out, "\n")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no text after %q on page %d", ErrExtractionEmpty, heading, page)
	}
	return text, nil
}

// locate returns the line where the heading ends and whatever that line
// holds after it. Exact heading lines are tried before prefix matches.
func locate(lines []string, needle string) (int, string, bool) {
	collapsed := make([]string, len(lines))
	for i, l := range lines {
		collapsed[i] = collapse(l)
	}
	for _, exact := range []bool{true, false} {
		for i := range collapsed {
			if end, rest, ok := headingAt(collapsed, i, needle, exact); ok {
				return end, rest, true
			}
		}
	}
	return 0, "", false
}

// headingAt reports whether needle starts at line i, possibly wrapped over
// the following lines. With exact set the lines must hold nothing else;
// otherwise the heading must end at a word boundary.
func headingAt(collapsed []string, i int, needle string, exact bool) (int, string, bool) {
	if collapsed[i] == "" {
		return 0, "", false
	}
	var sb strings.Builder
	for j := i; j < len(collapsed); j++ {
		if j > i {
			sb.WriteByte(' ')
		}
		lineStart := sb.Len()
		sb.WriteString(collapsed[j])
		text := sb.String()

		if len(text) < len(needle) {
			if !hasPrefixFold(needle, text) {
				return 0, "", false
			}
			continue
		}
		if !hasPrefixFold(text, needle) {
			return 0, "", false
		}
		tail := text[len(needle):]
		if tail == "" {
			return j, "", true
		}
		if exact || !wordBoundary(tail) {
			return 0, "", false
		}
		rest := collapsed[j][len(needle)-lineStart:]
		return j, strings.TrimSpace(strings.TrimLeft(rest, " :.-")), true
	}
	return 0, "", false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func wordBoundary(tail string) bool {
	r, _ := utf8.DecodeRuneInString(tail)
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// Source opens a parsed document by ID. Every call must return a document
// the caller owns.
type Source interface {
	Open(docID string) (*doctree.Document, error)
}

// Extractor builds windows for resolved sections.
type Extractor struct {
	Source Source
	Lines  int
}

// Extract opens the section's document and cuts its window. A document that
// cannot be opened is a plain error; a heading that cannot be found wraps
// ErrExtractionEmpty. Either way the returned window carries the section's
// identity so that callers can emit a placeholder.
func (e *Extractor) Extract(r section.Resolved) (section.Window, error) {
	win := section.Window{
		DocumentID:  r.DocumentID,
		HeadingText: r.HeadingText,
		PageNumber:  r.PageNumber,
	}
	doc, err := e.Source.Open(r.DocumentID)
	if err != nil {
		return win, fmt.Errorf("open %s: %w", r.DocumentID, err)
	}
	text, err := Snippet(doc, r.PageNumber, r.HeadingText, e.Lines)
	if err != nil {
		return win, err
	}
	win.RawText = text
	return win, nil
}
