package outline

import (
	"errors"
	"log/slog"

	"github.com/dgallion1/sectionrank/internal/section"
)

// ErrLocationNotFound is reported for a ranked heading that has no entry in
// the store.
var ErrLocationNotFound = errors.New("heading location not found")

// Resolve attaches page numbers to ranked sections by exact lookup. Items
// without a match are dropped and reported; the remaining items keep their
// original importance ranks and order.
func (s *Store) Resolve(ranked []section.Ranked, log *slog.Logger) ([]section.Resolved, []section.Diagnostic) {
	out := make([]section.Resolved, 0, len(ranked))
	var diags []section.Diagnostic
	for _, r := range ranked {
		h, ok := s.Lookup(r.Key())
		if !ok {
			if log != nil {
				log.Warn("dropping ranked section", "document", r.DocumentID, "heading", r.HeadingText,
					"rank", r.ImportanceRank, "error", ErrLocationNotFound)
			}
			diags = append(diags, section.Diagnostic{
				Stage:      "resolve",
				Kind:       section.KindLocationNotFound,
				DocumentID: r.DocumentID,
				Heading:    r.HeadingText,
				Detail:     ErrLocationNotFound.Error(),
			})
			continue
		}
		if r.Level == "" {
			r.Level = h.Level
		}
		out = append(out, section.Resolved{Ranked: r, PageNumber: h.Page})
	}
	return out, diags
}
