package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/sectionrank/internal/collection"
	"github.com/dgallion1/sectionrank/internal/outline"
	"github.com/dgallion1/sectionrank/internal/output"
	"github.com/dgallion1/sectionrank/internal/pipeline"
	"github.com/dgallion1/sectionrank/internal/section"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestProcessAll_BadCollectionDoesNotStopBatch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a_bad", "challenge1b_input.json"), `{"persona": ""}`)
	writeFile(t, filepath.Join(root, "b_empty", "challenge1b_input.json"),
		`{"challenge_info": {"challenge_id": "round_1b_002"}, "persona": {"role": "Planner"}, "job_to_be_done": {"task": "Plan a trip"}, "documents": []}`)

	layouts, err := collection.FindAll(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(layouts) != 2 {
		t.Fatalf("expected 2 collections, got %d", len(layouts))
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	var out bytes.Buffer
	w := &pipeline.Worker{Log: log}
	if err := processAll(context.Background(), w, layouts, &out, log); err != nil {
		t.Fatalf("processAll: %v", err)
	}

	bad, err := output.ReadFile(filepath.Join(root, "a_bad", collection.OutputName))
	if err != nil {
		t.Fatalf("bad collection result: %v", err)
	}
	if len(bad.Diagnostics) != 1 || bad.Diagnostics[0].Kind != section.KindInvalidRequest {
		t.Errorf("bad collection diagnostics = %+v", bad.Diagnostics)
	}
	if len(bad.ExtractedSections) != 0 {
		t.Errorf("bad collection should have no sections, got %d", len(bad.ExtractedSections))
	}

	empty, err := output.ReadFile(filepath.Join(root, "b_empty", collection.OutputName))
	if err != nil {
		t.Fatalf("empty collection result: %v", err)
	}
	if empty.Metadata.ChallengeID != "round_1b_002" || empty.Metadata.Persona != "Planner" {
		t.Errorf("metadata = %+v", empty.Metadata)
	}
	if len(empty.Diagnostics) == 0 || empty.Diagnostics[0].Kind != section.KindEmptyCandidateSet {
		t.Errorf("empty collection diagnostics = %+v", empty.Diagnostics)
	}

	if n := strings.Count(out.String(), "\n"); n != 2 {
		t.Errorf("expected one summary line per collection, got %q", out.String())
	}
}

func TestProcessAll_StopsOnCancel(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "challenge1b_input.json"), `{"persona": "p", "job": "j"}`)
	layouts, err := collection.FindAll(root)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := processAll(ctx, &pipeline.Worker{Log: log}, layouts, io.Discard, log); err == nil {
		t.Fatal("expected cancellation error")
	}
	if _, err := os.Stat(filepath.Join(root, collection.OutputName)); !os.IsNotExist(err) {
		t.Errorf("no result should be written after cancellation, stat err = %v", err)
	}
}

func TestOutlineCmd_Markdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.md")
	writeFile(t, path, "# Travel Guide\n\nIntro text.\n\n## Packing\n\nBring layers.\n\n#### Too deep\n")

	cmd := outlineCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("outline: %v", err)
	}

	var f outline.File
	if err := json.Unmarshal(out.Bytes(), &f); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if f.Title != "Travel Guide" {
		t.Errorf("title = %q", f.Title)
	}
	if len(f.Outline) != 2 {
		t.Fatalf("expected 2 entries, got %+v", f.Outline)
	}
	if f.Outline[0].Level != "H1" || f.Outline[1].Level != "H2" || f.Outline[1].Text != "Packing" {
		t.Errorf("outline = %+v", f.Outline)
	}
}
