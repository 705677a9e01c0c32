package rank

import (
	"errors"

	"github.com/dgallion1/sectionrank/internal/section"
)

// ErrHallucinatedHeading marks a proposal whose (document, heading) pair is
// not in the candidate set.
var ErrHallucinatedHeading = errors.New("heading not in candidate set")

// CandidateSet is the ground truth for validation, keyed by exact
// (document, heading text).
type CandidateSet struct {
	index map[section.Key]section.Heading
	order []section.Heading
}

// NewCandidateSet indexes headings. A repeated key keeps its first occurrence.
func NewCandidateSet(headings []section.Heading) CandidateSet {
	cs := CandidateSet{index: make(map[section.Key]section.Heading, len(headings))}
	for _, h := range headings {
		if _, ok := cs.index[h.Key()]; ok {
			continue
		}
		cs.index[h.Key()] = h
		cs.order = append(cs.order, h)
	}
	return cs
}

func (cs CandidateSet) Len() int { return len(cs.order) }

func (cs CandidateSet) Lookup(k section.Key) (section.Heading, bool) {
	h, ok := cs.index[k]
	return h, ok
}

// Headings returns the distinct candidates in their original order.
func (cs CandidateSet) Headings() []section.Heading {
	return cs.order
}

// Choice is a validated proposal.
type Choice struct {
	Heading  section.Heading
	Rank     int // effective rank: the model's when positive, else Position
	Position int
}

// Validate keeps proposals that exactly match a candidate. Repeats of an
// already accepted key are dropped silently; unknown keys are returned as
// rejected.
func (cs CandidateSet) Validate(proposals []Proposal) (valid []Choice, rejected []Proposal) {
	seen := make(map[section.Key]bool, len(proposals))
	for _, p := range proposals {
		k := section.Key{DocumentID: p.DocumentID, Text: p.HeadingText}
		h, ok := cs.index[k]
		if !ok {
			rejected = append(rejected, p)
			continue
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		rank := p.ImportanceRank
		if rank <= 0 {
			rank = p.Position
		}
		valid = append(valid, Choice{Heading: h, Rank: rank, Position: p.Position})
	}
	return valid, rejected
}
