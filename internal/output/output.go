// Package output assembles and writes the final per-collection result.
package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dgallion1/sectionrank/internal/section"
)

// TimestampFormat matches the processing_timestamp written by the batch tool.
const TimestampFormat = "2006-01-02T15:04:05.000000"

// Metadata echoes the request that produced a result.
type Metadata struct {
	ChallengeID         string   `json:"challenge_id,omitempty"`
	InputDocuments      []string `json:"input_documents"`
	Persona             string   `json:"persona"`
	JobToBeDone         string   `json:"job_to_be_done"`
	ProcessingTimestamp string   `json:"processing_timestamp"`
}

// Subsection is one refined section window.
type Subsection struct {
	DocumentID     string         `json:"document"`
	SectionTitle   string         `json:"section_title"`
	PageNumber     int            `json:"page_number"`
	ImportanceRank int            `json:"importance_rank"`
	RefinedText    string         `json:"refined_text"`
	Status         section.Status `json:"status,omitempty"`
}

// Document is the result for one collection.
type Document struct {
	Metadata           Metadata             `json:"metadata"`
	ExtractedSections  []section.Resolved   `json:"extracted_sections"`
	SubsectionAnalysis []Subsection         `json:"subsection_analysis"`
	Diagnostics        []section.Diagnostic `json:"diagnostics,omitempty"`
}

// Assemble builds the result document. Units that completed normally carry
// no status; degraded units keep theirs so that placeholders are visible.
func Assemble(meta Metadata, resolved []section.Resolved, units []section.Summarized, diags []section.Diagnostic) *Document {
	if meta.InputDocuments == nil {
		meta.InputDocuments = []string{}
	}
	doc := &Document{
		Metadata:           meta,
		ExtractedSections:  make([]section.Resolved, 0, len(resolved)),
		SubsectionAnalysis: make([]Subsection, 0, len(units)),
		Diagnostics:        diags,
	}
	doc.ExtractedSections = append(doc.ExtractedSections, resolved...)
	for _, u := range units {
		status := u.Status
		if status == section.StatusComplete {
			status = ""
		}
		doc.SubsectionAnalysis = append(doc.SubsectionAnalysis, Subsection{
			DocumentID:     u.DocumentID,
			SectionTitle:   u.HeadingText,
			PageNumber:     u.PageNumber,
			ImportanceRank: u.ImportanceRank,
			RefinedText:    u.Summary,
			Status:         status,
		})
	}
	return doc
}

// Stamp sets the processing timestamp.
func (d *Document) Stamp(t time.Time) {
	d.Metadata.ProcessingTimestamp = t.Format(TimestampFormat)
}

// Validate checks the structural guarantees of a result: ranks are positive
// and strictly increasing, no section appears twice, and every subsection
// belongs to an extracted section with the same rank.
func Validate(d *Document) error {
	if d == nil {
		return errors.New("nil document")
	}
	byKey := make(map[section.Key]int, len(d.ExtractedSections))
	prev := 0
	for i, s := range d.ExtractedSections {
		if s.DocumentID == "" || s.HeadingText == "" {
			return fmt.Errorf("extracted_sections[%d]: missing document or title", i)
		}
		if s.ImportanceRank <= prev {
			return fmt.Errorf("extracted_sections[%d]: rank %d does not follow %d", i, s.ImportanceRank, prev)
		}
		prev = s.ImportanceRank
		if s.PageNumber < 1 {
			return fmt.Errorf("extracted_sections[%d]: page %d", i, s.PageNumber)
		}
		if _, dup := byKey[s.Key()]; dup {
			return fmt.Errorf("extracted_sections[%d]: duplicate %s", i, s.Key())
		}
		byKey[s.Key()] = s.ImportanceRank
	}

	prev = 0
	for i, s := range d.SubsectionAnalysis {
		rank, ok := byKey[section.Key{DocumentID: s.DocumentID, Text: s.SectionTitle}]
		if !ok {
			return fmt.Errorf("subsection_analysis[%d]: %q not among extracted sections", i, s.SectionTitle)
		}
		if rank != s.ImportanceRank {
			return fmt.Errorf("subsection_analysis[%d]: rank %d, extracted rank %d", i, s.ImportanceRank, rank)
		}
		if s.ImportanceRank <= prev {
			return fmt.Errorf("subsection_analysis[%d]: out of rank order", i)
		}
		prev = s.ImportanceRank
	}
	return nil
}

// Encode writes the document as indented JSON.
func Encode(w io.Writer, d *Document) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(d)
}

// WriteFile writes the document to path, replacing any previous result only
// once the new one is fully written.
func WriteFile(path string, d *Document) error {
	var buf bytes.Buffer
	if err := Encode(&buf, d); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".sectionrank-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

// ReadFile decodes a previously written result.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &d, nil
}
