package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgallion1/sectionrank/internal/doctree"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Word documents carry no fixed pagination,
// so every paragraph lands on page 1. Heading styles become headings.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "sectionrank-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	parsed, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	doc := &doctree.Document{Title: trimExt(filename)}
	page := doctree.Page{Number: 1}

	for _, item := range parsed.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if text == "" {
			continue
		}
		if level := docxHeadingLevel(para); level > 0 {
			title := strings.Join(strings.Fields(text), " ")
			page.Lines = append(page.Lines, title)
			doc.Headings = append(doc.Headings, doctree.Heading{
				Depth: level,
				Text:  title,
				Page:  page.Number,
			})
			continue
		}
		if docxIsTitle(para) {
			doc.Title = text
		}
		page.Lines = append(page.Lines, doctree.SplitLines(text)...)
	}
	doc.Pages = []doctree.Page{page}

	return doc, nil
}

func docxStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
}

func docxIsTitle(para *docx.Paragraph) bool {
	return docxStyle(para) == "title"
}

func docxHeadingLevel(para *docx.Paragraph) int {
	style := docxStyle(para)
	if !strings.HasPrefix(style, "heading") {
		return 0
	}
	switch strings.TrimPrefix(style, "heading") {
	case "1":
		return 1
	case "2":
		return 2
	case "3":
		return 3
	case "4":
		return 4
	case "5":
		return 5
	case "6":
		return 6
	}
	return 0
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
