package outline

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dgallion1/sectionrank/internal/doctree"
	"github.com/dgallion1/sectionrank/internal/section"
)

// DocumentSource opens a parsed source document by ID.
type DocumentSource interface {
	Open(docID string) (*doctree.Document, error)
}

// Loader builds a Store for a collection. Outline JSON files in Dir win; when
// one is missing and FromSource is set, the outline is derived from the
// document's own heading markup.
type Loader struct {
	Dir        string
	Source     DocumentSource
	FromSource bool
	Log        *slog.Logger
}

// PathFor returns the outline file path for a document ID.
func (l *Loader) PathFor(docID string) string {
	stem := strings.TrimSuffix(docID, filepath.Ext(docID))
	return filepath.Join(l.Dir, stem+".json")
}

// Load reads outlines for every document. A document whose outline cannot be
// obtained contributes no headings and one diagnostic; it never fails the
// whole load.
func (l *Loader) Load(docIDs []string) (*Store, []section.Diagnostic) {
	store := NewStore()
	var diags []section.Diagnostic
	log := l.Log
	if log == nil {
		log = slog.Default()
	}

	for _, id := range docIDs {
		title, headings, err := l.loadOne(id)
		if err != nil {
			log.Warn("outline unavailable", "document", id, "error", err)
			diags = append(diags, section.Diagnostic{
				Stage:      "outline",
				Kind:       section.KindOutlineUnavailable,
				DocumentID: id,
				Detail:     err.Error(),
			})
			store.Add(id, "", nil)
			continue
		}
		log.Debug("outline loaded", "document", id, "headings", len(headings))
		store.Add(id, title, headings)
	}
	return store, diags
}

func (l *Loader) loadOne(docID string) (string, []section.Heading, error) {
	var fileErr error
	if l.Dir != "" {
		title, headings, err := ReadFile(l.PathFor(docID), docID)
		if err == nil {
			return title, headings, nil
		}
		fileErr = err
		if !errors.Is(err, fs.ErrNotExist) {
			return "", nil, err
		}
	}
	if !l.FromSource || l.Source == nil {
		if fileErr == nil {
			fileErr = errors.New("no outline directory configured")
		}
		return "", nil, fileErr
	}

	doc, err := l.Source.Open(docID)
	if err != nil {
		return "", nil, fmt.Errorf("derive outline: %w", err)
	}
	return doc.Title, FromDocument(docID, doc), nil
}
