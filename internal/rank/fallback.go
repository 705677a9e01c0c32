package rank

import (
	"fmt"
	"sort"

	"github.com/dgallion1/sectionrank/internal/section"
)

// FallbackPolicy picks the deterministic order used when the model cannot
// produce a usable ranking.
type FallbackPolicy string

const (
	// LevelFirst takes every H1 in document order, then every H2, then H3.
	LevelFirst FallbackPolicy = "level-first"
	// DocumentOrder keeps outline order across documents.
	DocumentOrder FallbackPolicy = "document-order"
)

// ParseFallbackPolicy validates a policy name.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch FallbackPolicy(s) {
	case LevelFirst, DocumentOrder:
		return FallbackPolicy(s), nil
	case "":
		return LevelFirst, nil
	}
	return "", fmt.Errorf("unknown fallback policy %q", s)
}

// Fallback ranks candidates without a model. It returns min(n, available)
// sections, where available counts the candidates selectable under the cap.
func Fallback(candidates []section.Heading, policy FallbackPolicy, perDocumentCap, n int) []section.Ranked {
	ordered := append([]section.Heading(nil), candidates...)
	if policy != DocumentOrder {
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Level.Seniority() < ordered[j].Level.Seniority()
		})
	}
	return diversify(ordered, perDocumentCap, n)
}
