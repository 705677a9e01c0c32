package rank

import (
	"sort"

	"github.com/dgallion1/sectionrank/internal/section"
)

// Select orders validated choices by effective rank, breaking ties by level
// seniority and then response position, and walks them under the
// per-document cap until n are accepted. Accepted sections get contiguous
// ranks 1..K in acceptance order. A cap of zero or less disables the cap.
func Select(choices []Choice, perDocumentCap, n int) []section.Ranked {
	ordered := append([]Choice(nil), choices...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		if sa, sb := a.Heading.Level.Seniority(), b.Heading.Level.Seniority(); sa != sb {
			return sa < sb
		}
		return a.Position < b.Position
	})

	headings := make([]section.Heading, len(ordered))
	for i, c := range ordered {
		headings[i] = c.Heading
	}
	return diversify(headings, perDocumentCap, n)
}

// diversify accepts headings in order while their document is under the cap.
func diversify(headings []section.Heading, perDocumentCap, n int) []section.Ranked {
	if n <= 0 {
		return nil
	}
	perDoc := make(map[string]int)
	seen := make(map[section.Key]bool)
	out := make([]section.Ranked, 0, n)
	for _, h := range headings {
		if len(out) == n {
			break
		}
		if seen[h.Key()] {
			continue
		}
		if perDocumentCap > 0 && perDoc[h.DocumentID] >= perDocumentCap {
			continue
		}
		seen[h.Key()] = true
		perDoc[h.DocumentID]++
		out = append(out, section.Ranked{
			DocumentID:     h.DocumentID,
			HeadingText:    h.Text,
			Level:          h.Level,
			ImportanceRank: len(out) + 1,
		})
	}
	return out
}
