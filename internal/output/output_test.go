package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/sectionrank/internal/section"
)

func sampleResolved() []section.Resolved {
	return []section.Resolved{
		{Ranked: section.Ranked{DocumentID: "cities.pdf", HeadingText: "Nice", Level: section.H2, ImportanceRank: 1}, PageNumber: 3},
		{Ranked: section.Ranked{DocumentID: "food.pdf", HeadingText: "Markets", Level: section.H1, ImportanceRank: 3}, PageNumber: 1},
	}
}

func sampleUnits() []section.Summarized {
	return []section.Summarized{
		{
			Window:         section.Window{DocumentID: "cities.pdf", HeadingText: "Nice", PageNumber: 3, RawText: "raw"},
			ImportanceRank: 1,
			Summary:        "Nice has beaches.",
			Status:         section.StatusComplete,
		},
		{
			Window:         section.Window{DocumentID: "food.pdf", HeadingText: "Markets", PageNumber: 1},
			ImportanceRank: 3,
			Status:         section.StatusExtractionEmpty,
		},
	}
}

func TestAssemble_Shape(t *testing.T) {
	meta := Metadata{
		InputDocuments: []string{"cities.pdf", "food.pdf"},
		Persona:        "Travel Planner",
		JobToBeDone:    "Plan a trip",
	}
	diags := []section.Diagnostic{{Stage: "extract", Kind: section.KindExtractionEmpty, DocumentID: "food.pdf", Heading: "Markets"}}
	doc := Assemble(meta, sampleResolved(), sampleUnits(), diags)
	doc.Stamp(time.Date(2025, 7, 10, 15, 31, 22, 632389000, time.UTC))

	if err := Validate(doc); err != nil {
		t.Fatalf("expected valid document, got %v", err)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var generic map[string]any
	if err := json.Unmarshal(buf.Bytes(), &generic); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	md := generic["metadata"].(map[string]any)
	if md["processing_timestamp"] != "2025-07-10T15:31:22.632389" {
		t.Errorf("unexpected timestamp %v", md["processing_timestamp"])
	}
	if _, ok := md["challenge_id"]; ok {
		t.Error("expected challenge_id to be omitted when empty")
	}

	sections := generic["extracted_sections"].([]any)
	first := sections[0].(map[string]any)
	for _, key := range []string{"document", "section_title", "level", "importance_rank", "page_number"} {
		if _, ok := first[key]; !ok {
			t.Errorf("expected key %q in extracted section, got %v", key, first)
		}
	}
	if first["importance_rank"].(float64) != 1 || first["level"] != "H2" {
		t.Errorf("unexpected first section %v", first)
	}

	subs := generic["subsection_analysis"].([]any)
	if _, ok := subs[0].(map[string]any)["status"]; ok {
		t.Error("expected complete units to omit status")
	}
	if subs[1].(map[string]any)["status"] != "extraction_empty" {
		t.Errorf("expected degraded status to be kept, got %v", subs[1])
	}
	if len(generic["diagnostics"].([]any)) != 1 {
		t.Errorf("expected diagnostics to be carried, got %v", generic["diagnostics"])
	}
}

func TestAssemble_EmptyCollection(t *testing.T) {
	doc := Assemble(Metadata{Persona: "p", JobToBeDone: "j"}, nil, nil, nil)
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"extracted_sections": []`, `"subsection_analysis": []`, `"input_documents": []`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
	if strings.Contains(out, "diagnostics") {
		t.Errorf("expected no diagnostics key, got %s", out)
	}
	if err := Validate(doc); err != nil {
		t.Errorf("empty result must validate, got %v", err)
	}
}

func TestEncode_NoHTMLEscaping(t *testing.T) {
	doc := Assemble(Metadata{Persona: "p", JobToBeDone: "Pack <light> & cheap"}, nil, nil, nil)
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "Pack <light> & cheap") {
		t.Errorf("expected raw text, got %s", buf.String())
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Document)
		want   string
	}{
		{"rank order", func(d *Document) { d.ExtractedSections[1].ImportanceRank = 1 }, "does not follow"},
		{"bad page", func(d *Document) { d.ExtractedSections[0].PageNumber = 0 }, "page"},
		{"duplicate", func(d *Document) {
			d.ExtractedSections[1].DocumentID = "cities.pdf"
			d.ExtractedSections[1].HeadingText = "Nice"
		}, "duplicate"},
		{"orphan subsection", func(d *Document) { d.SubsectionAnalysis[0].SectionTitle = "Lyon" }, "not among"},
		{"subsection rank mismatch", func(d *Document) { d.SubsectionAnalysis[1].ImportanceRank = 2 }, "extracted rank"},
		{"empty title", func(d *Document) { d.ExtractedSections[0].HeadingText = "" }, "missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Assemble(Metadata{}, sampleResolved(), sampleUnits(), nil)
			tt.mutate(doc)
			err := Validate(doc)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestWriteFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "challenge1b_output.json")
	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	doc := Assemble(Metadata{Persona: "p", JobToBeDone: "j", InputDocuments: []string{"cities.pdf", "food.pdf"}}, sampleResolved(), sampleUnits(), nil)
	if err := WriteFile(path, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.ExtractedSections) != 2 || got.ExtractedSections[1].HeadingText != "Markets" {
		t.Errorf("unexpected sections %+v", got.ExtractedSections)
	}
	if got.SubsectionAnalysis[0].RefinedText != "Nice has beaches." {
		t.Errorf("unexpected refined text %q", got.SubsectionAnalysis[0].RefinedText)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected temp files to be cleaned up, got %d entries", len(entries))
	}
}
