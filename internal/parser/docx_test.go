package parser

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fumiama/go-docx"
)

func buildDOCX(t *testing.T) []byte {
	t.Helper()
	w := docx.New().WithDefaultTheme()
	w.AddParagraph().Style("Heading1").AddText("Coastal Towns")
	w.AddParagraph().AddText("Small harbours with daily markets.")
	w.AddParagraph().Style("Heading2").AddText("Where to Eat")
	w.AddParagraph().AddText("Try the fish soup.")
	w.AddParagraph().Style("Heading3").AddText("Budget")
	w.AddParagraph().AddText("Lunch menus are cheaper.")
	w.AddParagraph().Style("Heading4").AddText("Tipping")
	w.AddParagraph()

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		t.Fatalf("write docx: %v", err)
	}
	return buf.Bytes()
}

func TestDOCXParser_HeadingsAndLines(t *testing.T) {
	p := &DOCXParser{}
	doc, err := p.Parse(bytes.NewReader(buildDOCX(t)), "riviera.docx")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if doc.Title != "riviera" {
		t.Errorf("expected title from filename, got %q", doc.Title)
	}

	want := []struct {
		depth int
		text  string
	}{
		{1, "Coastal Towns"},
		{2, "Where to Eat"},
		{3, "Budget"},
		{4, "Tipping"},
	}
	if len(doc.Headings) != len(want) {
		t.Fatalf("expected %d headings, got %+v", len(want), doc.Headings)
	}
	for i, w := range want {
		h := doc.Headings[i]
		if h.Depth != w.depth || h.Text != w.text || h.Page != 1 {
			t.Errorf("heading[%d]: expected H%d %q on page 1, got %+v", i, w.depth, w.text, h)
		}
	}

	if len(doc.Pages) != 1 {
		t.Fatalf("expected a single page, got %d", len(doc.Pages))
	}
	lines := doc.Pages[0].Lines
	if len(lines) != 7 {
		t.Fatalf("expected 7 lines with the empty paragraph skipped, got %q", lines)
	}
	if lines[2] != "Where to Eat" || lines[3] != "Try the fish soup." {
		t.Errorf("expected heading followed by its body, got %q", lines)
	}
}

func TestParseFile_DOCX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "riviera.docx")
	if err := os.WriteFile(path, buildDOCX(t), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := ParseFile(path, Options{})
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(doc.Headings) == 0 || doc.Headings[0].Text != "Coastal Towns" {
		t.Errorf("expected headings from the docx, got %+v", doc.Headings)
	}
}
