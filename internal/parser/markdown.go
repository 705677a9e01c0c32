package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/sectionrank/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. Markdown has no
// pagination, so everything lands on page 1.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	reader := text.NewReader(src)
	root := md.Parser().Parse(reader)

	doc := &doctree.Document{Title: trimExt(filename)}
	page := doctree.Page{Number: 1}

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := strings.Join(strings.Fields(blockText(node, src)), " ")
			if title == "" {
				continue
			}
			page.Lines = append(page.Lines, title)
			doc.Headings = append(doc.Headings, doctree.Heading{
				Depth: node.Level,
				Text:  title,
				Page:  page.Number,
			})
		default:
			page.Lines = append(page.Lines, doctree.SplitLines(blockText(n, src))...)
		}
	}
	doc.Pages = []doctree.Page{page}

	for _, h := range doc.Headings {
		if h.Depth == 1 {
			doc.Title = h.Text
			break
		}
	}

	return doc, nil
}

// blockText gets the plain text content of a goldmark block, one line per
// soft break or nested block.
func blockText(n ast.Node, src []byte) string {
	var buf bytes.Buffer

	switch n.Kind() {
	case ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindHTMLBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
		return strings.TrimSpace(buf.String())
	}

	var walk func(ast.Node)
	walk = func(parent ast.Node) {
		for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				buf.Write(t.Segment.Value(src))
				if t.HardLineBreak() || t.SoftLineBreak() {
					buf.WriteByte('\n')
				}
			case *ast.String:
				buf.Write(t.Value)
			default:
				if c.Type() == ast.TypeBlock && buf.Len() > 0 {
					buf.WriteByte('\n')
				}
				walk(c)
			}
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}
