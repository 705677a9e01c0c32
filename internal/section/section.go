package section

import (
	"fmt"
	"strings"
)

// Level is an outline heading level.
type Level string

const (
	H1 Level = "H1"
	H2 Level = "H2"
	H3 Level = "H3"
)

// ParseLevel normalizes a level label ("h2", "H2", "2"). Returns false for
// anything outside H1–H3.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "H1", "1":
		return H1, true
	case "H2", "2":
		return H2, true
	case "H3", "3":
		return H3, true
	}
	return "", false
}

// LevelFromDepth maps a 1-based heading depth to a Level.
func LevelFromDepth(depth int) (Level, bool) {
	switch depth {
	case 1:
		return H1, true
	case 2:
		return H2, true
	case 3:
		return H3, true
	}
	return "", false
}

// Seniority orders levels: lower is more senior. Unknown levels sort last.
func (l Level) Seniority() int {
	switch l {
	case H1:
		return 1
	case H2:
		return 2
	case H3:
		return 3
	}
	return 4
}

// Heading is one outline entry of a document.
type Heading struct {
	DocumentID string `json:"document"`
	Level      Level  `json:"level"`
	Text       string `json:"text"`
	Page       int    `json:"page"`
}

// Key is the identity used for exact matching.
type Key struct {
	DocumentID string
	Text       string
}

func (h Heading) Key() Key {
	return Key{DocumentID: h.DocumentID, Text: h.Text}
}

func (k Key) String() string {
	return fmt.Sprintf("%s#%s", k.DocumentID, k.Text)
}

// Ranked is a heading selected by the ranker.
type Ranked struct {
	DocumentID     string `json:"document"`
	HeadingText    string `json:"section_title"`
	Level          Level  `json:"level"`
	ImportanceRank int    `json:"importance_rank"`
}

func (r Ranked) Key() Key {
	return Key{DocumentID: r.DocumentID, Text: r.HeadingText}
}

// Resolved is a ranked section with its page location.
type Resolved struct {
	Ranked
	PageNumber int `json:"page_number"`
}

// Window is a bounded span of text following a heading.
type Window struct {
	DocumentID  string
	HeadingText string
	PageNumber  int
	RawText     string
}

// Status describes how a section unit finished.
type Status string

const (
	StatusComplete         Status = "complete"
	StatusExtractionEmpty  Status = "extraction_empty"
	StatusExtractionFailed Status = "extraction_failed"
	StatusRefinementFailed Status = "refinement_failed"
	StatusWorkerFailed     Status = "worker_failed"
	StatusTimedOut         Status = "timed_out"
)

// Summarized is the final per-section unit handed to the output assembler.
type Summarized struct {
	Window
	ImportanceRank int
	Summary        string
	Status         Status
}

// Diagnostic records a degraded outcome so that it is visible in the output.
type Diagnostic struct {
	Stage      string `json:"stage"`
	Kind       string `json:"kind"`
	DocumentID string `json:"document,omitempty"`
	Heading    string `json:"section_title,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// Diagnostic kinds.
const (
	KindEmptyCandidateSet   = "empty_candidate_set"
	KindRankingUnparsable   = "ranking_unparsable"
	KindRankingFallback     = "ranking_fallback"
	KindHallucinatedHeading = "hallucinated_heading"
	KindLocationNotFound    = "location_not_found"
	KindOutlineUnavailable  = "outline_unavailable"
	KindExtractionEmpty     = "extraction_empty"
	KindExtractionFailed    = "extraction_failed"
	KindRefinementFailure   = "refinement_failure"
	KindWorkerFailure       = "worker_failure"
	KindUnitTimeout         = "unit_timeout"
	KindInvalidRequest      = "invalid_request"
)
