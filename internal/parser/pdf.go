package parser

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/dgallion1/sectionrank/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files. It reads positioned glyphs with the Go library
// so that headings can be told apart from body text by font size, then falls
// back to plain page text and finally to pdftotext if available.
type PDFParser struct {
	FallbackPdftotext bool
}

// headingSizeRatio is how much larger than the body font a line must be to
// count as a heading.
const headingSizeRatio = 1.15

// maxHeadingRunes bounds heading length; longer lines are body text even when
// set in a large font.
const maxHeadingRunes = 120

// styledLine is one visual line of a PDF page.
type styledLine struct {
	Text string
	Size float64
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "sectionrank-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	pages, err := extractPDFLines(tmpPath)
	if err == nil && !hasText(pages) {
		err = errors.New("no positioned text")
	}
	if err != nil {
		var text string
		text, err = extractPDFText(tmpPath)
		if err != nil && p.FallbackPdftotext {
			text, err = extractPdftotext(tmpPath)
		}
		if err != nil {
			return nil, fmt.Errorf("extract pdf text: %w", err)
		}
		pages = plainPages(text)
	}

	return buildPDFDocument(trimExt(filename), pages), nil
}

// buildPDFDocument lays out pages and infers the title and heading levels
// from font sizes: the most common size is body text, and each larger size
// maps to a heading depth in descending order.
func buildPDFDocument(fallbackTitle string, pages [][]styledLine) *doctree.Document {
	doc := &doctree.Document{Title: fallbackTitle}

	body := bodyFontSize(pages)
	depths := headingDepths(pages, body)

	var titleSize float64
	for i, lines := range pages {
		page := doctree.Page{Number: i + 1}
		for _, l := range lines {
			page.Lines = append(page.Lines, l.Text)
			if i == 0 && l.Size > titleSize && body > 0 && l.Size >= body*headingSizeRatio {
				titleSize = l.Size
				doc.Title = l.Text
			}
			if d, ok := depths[sizeKey(l.Size)]; ok && isHeadingText(l.Text) {
				doc.Headings = append(doc.Headings, doctree.Heading{
					Depth: d,
					Text:  l.Text,
					Page:  page.Number,
				})
			}
		}
		doc.Pages = append(doc.Pages, page)
	}
	if len(doc.Pages) == 0 {
		doc.Pages = []doctree.Page{{Number: 1}}
	}
	return doc
}

func sizeKey(size float64) int {
	return int(math.Round(size * 2))
}

// bodyFontSize returns the font size carrying the most characters.
func bodyFontSize(pages [][]styledLine) float64 {
	weight := make(map[int]int)
	for _, lines := range pages {
		for _, l := range lines {
			if l.Size > 0 {
				weight[sizeKey(l.Size)] += len([]rune(l.Text))
			}
		}
	}
	best, bestWeight := 0, 0
	for k, w := range weight {
		if w > bestWeight || (w == bestWeight && k < best) {
			best, bestWeight = k, w
		}
	}
	return float64(best) / 2
}

// headingDepths maps the three largest above-body font sizes to depths 1..3.
func headingDepths(pages [][]styledLine, body float64) map[int]int {
	if body <= 0 {
		return nil
	}
	seen := make(map[int]bool)
	for _, lines := range pages {
		for _, l := range lines {
			if l.Size >= body*headingSizeRatio && isHeadingText(l.Text) {
				seen[sizeKey(l.Size)] = true
			}
		}
	}
	keys := make([]int, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(keys)))

	depths := make(map[int]int)
	for i, k := range keys {
		if i == 3 {
			break
		}
		depths[k] = i + 1
	}
	return depths
}

func isHeadingText(s string) bool {
	n := len([]rune(s))
	if n == 0 || n > maxHeadingRunes {
		return false
	}
	for _, r := range s {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r > 127 {
			return true
		}
	}
	return false
}

func hasText(pages [][]styledLine) bool {
	for _, lines := range pages {
		if len(lines) > 0 {
			return true
		}
	}
	return false
}

func plainPages(text string) [][]styledLine {
	var pages [][]styledLine
	for _, page := range splitPages(text) {
		var lines []styledLine
		for _, l := range doctree.SplitLines(page) {
			lines = append(lines, styledLine{Text: l})
		}
		pages = append(pages, lines)
	}
	return pages
}

func extractPDFLines(path string) (pages [][]styledLine, err error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Content panics on malformed streams.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("read pdf content: %v", r)
		}
	}()

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, nil)
			continue
		}
		pages = append(pages, groupGlyphs(page.Content().Text))
	}
	return pages, nil
}

// groupGlyphs assembles positioned glyphs into lines, top to bottom, inserting
// spaces where the horizontal gap between glyphs is wider than a fraction of
// the font size.
func groupGlyphs(glyphs []pdflib.Text) []styledLine {
	type row struct {
		y      float64
		glyphs []pdflib.Text
	}
	var rows []*row
	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		var target *row
		for _, r := range rows {
			tol := math.Max(g.FontSize, 1) * 0.5
			if math.Abs(r.y-g.Y) <= tol {
				target = r
				break
			}
		}
		if target == nil {
			target = &row{y: g.Y}
			rows = append(rows, target)
		}
		target.glyphs = append(target.glyphs, g)
	}

	// PDF Y grows upward, so larger Y is higher on the page.
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })

	var out []styledLine
	for _, r := range rows {
		sort.SliceStable(r.glyphs, func(i, j int) bool { return r.glyphs[i].X < r.glyphs[j].X })
		var buf strings.Builder
		var size float64
		end := math.Inf(-1)
		for _, g := range r.glyphs {
			if buf.Len() > 0 && g.X-end > g.FontSize*0.2 && !strings.HasSuffix(buf.String(), " ") {
				buf.WriteByte(' ')
			}
			buf.WriteString(g.S)
			end = g.X + g.W
			size = math.Max(size, g.FontSize)
		}
		text := strings.Join(strings.Fields(buf.String()), " ")
		if text != "" {
			out = append(out, styledLine{Text: text, Size: size})
		}
	}
	return out
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if i > 1 {
			buf.WriteString("\f") // Form feed as page separator.
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

func splitPages(text string) []string {
	return strings.Split(strings.TrimSuffix(text, "\f"), "\f")
}
