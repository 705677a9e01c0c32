// Package rank selects the most relevant outline headings for a persona and
// task. Model output is treated as untrusted text: it is parsed, checked
// against the candidate set, and only then run through the selection policy.
package rank

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/sectionrank/internal/llm"
	"github.com/dgallion1/sectionrank/internal/section"
)

// ErrEmptyCandidateSet is returned when a collection has no headings to rank.
var ErrEmptyCandidateSet = errors.New("empty candidate set")

const systemPrompt = `You are an analyst who picks the document sections a reader needs for a task. You only ever choose from the headings you are given and you answer with JSON only.`

// Request is everything the ranker needs for one collection. It is built
// once and not modified afterwards.
type Request struct {
	Persona        string
	Job            string
	Candidates     []section.Heading
	PerDocumentCap int
	TopN           int
}

// NewRequest validates inputs and builds a ranking request.
func NewRequest(persona, job string, candidates []section.Heading, perDocumentCap, topN int) (Request, error) {
	if len(candidates) == 0 {
		return Request{}, ErrEmptyCandidateSet
	}
	if topN <= 0 {
		return Request{}, fmt.Errorf("top n must be positive, got %d", topN)
	}
	return Request{
		Persona:        persona,
		Job:            job,
		Candidates:     append([]section.Heading(nil), candidates...),
		PerDocumentCap: perDocumentCap,
		TopN:           topN,
	}, nil
}

type promptGroup struct {
	Document string   `json:"document"`
	H1       []string `json:"H1,omitempty"`
	H2       []string `json:"H2,omitempty"`
	H3       []string `json:"H3,omitempty"`
}

// groups arranges candidates by document (first-seen order) and level,
// keeping outline order inside each level.
func (r Request) groups() []promptGroup {
	var out []promptGroup
	idx := make(map[string]int)
	for _, h := range r.Candidates {
		i, ok := idx[h.DocumentID]
		if !ok {
			i = len(out)
			idx[h.DocumentID] = i
			out = append(out, promptGroup{Document: h.DocumentID})
		}
		g := &out[i]
		switch h.Level {
		case section.H1:
			g.H1 = append(g.H1, h.Text)
		case section.H2:
			g.H2 = append(g.H2, h.Text)
		case section.H3:
			g.H3 = append(g.H3, h.Text)
		}
	}
	return out
}

// Prompt renders the request. The output is a pure function of the request.
func (r Request) Prompt() llm.Request {
	var headings bytes.Buffer
	enc := json.NewEncoder(&headings)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	// Encoding plain strings and slices cannot fail.
	_ = enc.Encode(r.groups())

	var sb strings.Builder
	fmt.Fprintf(&sb, "Persona: %s\n", r.Persona)
	fmt.Fprintf(&sb, "Job to be done: %s\n\n", r.Job)
	sb.WriteString("Candidate headings, grouped by document and level:\n")
	sb.Write(headings.Bytes())
	sb.WriteString("\nInstructions:\n")
	fmt.Fprintf(&sb, "- Select the %d headings most useful to this persona for this job.\n", r.TopN)
	if r.PerDocumentCap > 0 {
		fmt.Fprintf(&sb, "- Select at most %d headings from any single document.\n", r.PerDocumentCap)
	}
	sb.WriteString("- Copy \"document\" and \"section_title\" exactly, character for character, from the candidate list above. Do not paraphrase, shorten, correct spelling, or invent headings.\n")
	sb.WriteString("- Order by importance; importance_rank 1 is the most relevant.\n\n")
	sb.WriteString("Respond with ONLY this JSON object:\n")
	sb.WriteString(`{"extracted_sections":[{"document":"<document>","section_title":"<heading>","importance_rank":1}]}`)

	return llm.Request{
		System:    systemPrompt,
		Prompt:    sb.String(),
		JSON:      true,
		MaxTokens: 256 + 64*r.TopN,
	}
}
