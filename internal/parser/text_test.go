package parser

import (
	"strings"
	"testing"
)

func TestTextParser_LinesOnSinglePage(t *testing.T) {
	input := "First line.\nSecond line.\n\nThird line."
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "notes" {
		t.Errorf("expected title %q, got %q", "notes", doc.Title)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}

	want := []string{"First line.", "Second line.", "Third line."}
	if len(doc.Pages[0].Lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %q", len(want), len(doc.Pages[0].Lines), doc.Pages[0].Lines)
	}
	for i, w := range want {
		if doc.Pages[0].Lines[i] != w {
			t.Errorf("line[%d]: expected %q, got %q", i, w, doc.Pages[0].Lines[i])
		}
	}
	if len(doc.Headings) != 0 {
		t.Errorf("expected no headings for plain text, got %d", len(doc.Headings))
	}
}

func TestTextParser_FormFeedSplitsPages(t *testing.T) {
	input := "Page one text.\n\fPage two text.\nMore.\fPage three."
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "paged.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(doc.Pages))
	}
	for i, page := range doc.Pages {
		if page.Number != i+1 {
			t.Errorf("page[%d]: expected number %d, got %d", i, i+1, page.Number)
		}
	}
	if got := doc.Pages[1].Text(); got != "Page two text.\nMore." {
		t.Errorf("unexpected page 2 text %q", got)
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "empty" {
		t.Errorf("expected title %q, got %q", "empty", doc.Title)
	}
	if len(doc.Pages) != 1 || len(doc.Pages[0].Lines) != 0 {
		t.Errorf("expected one empty page, got %+v", doc.Pages)
	}
}

func TestTextParser_WhitespaceOnlyLines(t *testing.T) {
	input := "Para one.\n   \nPara two."
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "ws.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages[0].Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(doc.Pages[0].Lines))
	}
}
