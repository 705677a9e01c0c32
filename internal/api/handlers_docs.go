package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/sectionrank/internal/outline"
	"github.com/dgallion1/sectionrank/internal/parser"
)

// handleListDocuments lists the supported documents in the library and
// whether each has a stored outline file.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	names, err := s.library.List()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeJSON(w, http.StatusOK, map[string]any{"documents": []any{}})
			return
		}
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}

	docs := make([]map[string]any, 0, len(names))
	for _, name := range names {
		_, statErr := os.Stat(s.outlines.PathFor(name))
		docs = append(docs, map[string]any{
			"document":     name,
			"format":       filepath.Ext(name),
			"outline_file": statErr == nil,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// handleDocumentOutline returns a document's outline in the on-disk format,
// derived from the document itself when no outline file exists.
func (s *Server) handleDocumentOutline(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if filepath.Base(docID) != docID || !parser.IsSupportedExtension(docID) {
		jsonError(w, "invalid document id", http.StatusBadRequest)
		return
	}
	if _, err := os.Stat(filepath.Join(s.cfg.LibraryDir, docID)); err != nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}

	store, diags := s.outlines.Load([]string{docID})
	if len(diags) > 0 {
		jsonError(w, diags[0].Detail, http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, outline.ToFile(store.Title(docID), store.Headings(docID)))
}
