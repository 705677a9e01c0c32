package parser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/sectionrank/internal/doctree"
)

// Parser converts raw document bytes into a paged Document.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// Options tune format-specific parsing.
type Options struct {
	// PDFFallbackPdftotext runs the pdftotext binary when the native PDF
	// reader fails.
	PDFFallbackPdftotext bool
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// ParseFile opens and parses the file at path. The file handle is owned by
// this call and closed before returning.
func ParseFile(path string, opts Options) (*doctree.Document, error) {
	p, err := ForFile(path, opts)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	doc, err := p.Parse(f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// DirSource opens documents by ID (their file name) from a directory.
type DirSource struct {
	Dir     string
	Options Options
}

// Open parses the named document. Every call opens its own file handle.
func (s DirSource) Open(docID string) (*doctree.Document, error) {
	name := filepath.Base(docID)
	if name != docID || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid document id %q", docID)
	}
	return ParseFile(filepath.Join(s.Dir, name), s.Options)
}

// List returns the supported documents in the directory, sorted by name.
func (s DirSource) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsSupportedExtension(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func trimExt(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}
