package parser

import (
	"strings"
	"testing"
)

func TestMarkdownParser_HeadingOutline(t *testing.T) {
	input := `# Title

Intro text.

## Section A

Section A content.

### Subsection A1

Subsection A1 content.

## Section B

Section B content.
`
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "Title" {
		t.Errorf("expected title from first h1 %q, got %q", "Title", doc.Title)
	}

	want := []struct {
		depth int
		text  string
	}{
		{1, "Title"},
		{2, "Section A"},
		{3, "Subsection A1"},
		{2, "Section B"},
	}
	if len(doc.Headings) != len(want) {
		t.Fatalf("expected %d headings, got %d: %+v", len(want), len(doc.Headings), doc.Headings)
	}
	for i, w := range want {
		h := doc.Headings[i]
		if h.Depth != w.depth || h.Text != w.text || h.Page != 1 {
			t.Errorf("heading[%d]: expected {%d %q page 1}, got %+v", i, w.depth, w.text, h)
		}
	}

	lines := doc.Pages[0].Lines
	wantLines := []string{
		"Title", "Intro text.",
		"Section A", "Section A content.",
		"Subsection A1", "Subsection A1 content.",
		"Section B", "Section B content.",
	}
	if strings.Join(lines, "|") != strings.Join(wantLines, "|") {
		t.Errorf("unexpected lines:\n got %q\nwant %q", lines, wantLines)
	}
}

func TestMarkdownParser_NoHeadings(t *testing.T) {
	input := `Just some plain text.

Another paragraph here.`

	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "plain.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Headings) != 0 {
		t.Fatalf("expected no headings, got %d", len(doc.Headings))
	}
	text := doc.Pages[0].Text()
	if !strings.Contains(text, "Just some plain text.") {
		t.Errorf("expected text to contain first paragraph, got %q", text)
	}
	if !strings.Contains(text, "Another paragraph here.") {
		t.Errorf("expected text to contain second paragraph, got %q", text)
	}
}

func TestMarkdownParser_CodeBlocksBecomeLines(t *testing.T) {
	input := "# API Reference\n\nSome intro.\n\n## Endpoints\n\nList of endpoints:\n\n```\nGET /api/users\nPOST /api/users\n```\n\nMore text after code.\n"

	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "api.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := doc.Pages[0].Text()
	for _, want := range []string{"GET /api/users", "POST /api/users", "More text after code."} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in page text, got %q", want, text)
		}
	}
	if strings.Count(text, "Some intro.") != 1 {
		t.Errorf("expected paragraph text exactly once, got %q", text)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Headings) != 0 {
		t.Errorf("expected 0 headings for empty input, got %d", len(doc.Headings))
	}
	if len(doc.Pages) != 1 || len(doc.Pages[0].Lines) != 0 {
		t.Errorf("expected a single empty page, got %+v", doc.Pages)
	}
}

func TestMarkdownParser_TitleStripping(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"readme.md", "readme"},
		{"notes.markdown", "notes"},
		{"plain.md", "plain"},
	}
	p := &MarkdownParser{}
	for _, tt := range tests {
		doc, err := p.Parse(strings.NewReader("text"), tt.filename)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tt.filename, err)
		}
		if doc.Title != tt.want {
			t.Errorf("filename=%q: expected title %q, got %q", tt.filename, tt.want, doc.Title)
		}
	}
}
