package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/sectionrank/internal/config"
	"github.com/dgallion1/sectionrank/internal/llm"
	"github.com/dgallion1/sectionrank/internal/output"
	"github.com/dgallion1/sectionrank/internal/pipeline"
	"github.com/dgallion1/sectionrank/internal/section"
)

const testKey = "test-key"

// cannedProcessor finishes every job with a one-section result, or blocks
// until release is closed when set.
type cannedProcessor struct {
	release chan struct{}
}

func (p *cannedProcessor) Process(ctx context.Context, job *pipeline.Job) {
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return
		}
	}
	req := job.Request()
	doc := output.Assemble(output.Metadata{
		InputDocuments: req.DocumentIDs(),
		Persona:        req.Persona,
		JobToBeDone:    req.Job,
	}, []section.Resolved{{
		Ranked:     section.Ranked{DocumentID: req.Documents[0].Filename, HeadingText: "Mains", Level: section.H1, ImportanceRank: 1},
		PageNumber: 1,
	}}, nil, nil)
	job.SetResult(doc)
}

type testEnv struct {
	srv     *Server
	library string
	stats   *llm.LLMStats
}

func newTestEnv(t *testing.T, proc pipeline.Processor) *testEnv {
	t.Helper()
	library := t.TempDir()
	writeLibraryFile(t, filepath.Join(library, "mains.md"), "# Mains\n\nHearty dishes.\n\n## Cassoulet\n\nBeans.\n")
	writeLibraryFile(t, filepath.Join(library, "outlines", "sides.json"), `{"title":"Sides","outline":[{"level":"H1","text":"Salads","page":2}]}`)
	writeLibraryFile(t, filepath.Join(library, "sides.txt"), "cover\n\fSalads\nGreen.\n")
	writeLibraryFile(t, filepath.Join(library, "notes.csv"), "a,b\n")

	cfg := config.Config{
		APIKey:            testKey,
		LibraryDir:        library,
		OutlineDir:        filepath.Join(library, "outlines"),
		OutlineFromSource: true,
		MaxRequestBytes:   4096,
	}
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	orch := pipeline.NewOrchestrator(proc, 4, time.Hour, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	stats := llm.NewLLMStats(time.Hour)
	return &testEnv{
		srv:     NewServer(orch, stats, Models{Rank: "qwen3:0.6b", Refine: "qwen3:0.6b"}, log, cfg),
		library: library,
		stats:   stats,
	}
}

func writeLibraryFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	env := newTestEnv(t, &cannedProcessor{})

	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "ok" {
		t.Errorf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	env.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected metrics endpoint, got %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, &cannedProcessor{})

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic " + testKey},
		{"wrong key", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			env.srv.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestSubmitCollection_Lifecycle(t *testing.T) {
	env := newTestEnv(t, &cannedProcessor{})

	rec := env.do(t, http.MethodPost, "/api/collections", `{
  "persona": {"role": "Cook"},
  "job_to_be_done": {"task": "Plan a dinner"},
  "documents": [{"filename": "mains.md"}]
}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	jobID, _ := body["job_id"].(string)
	if jobID == "" || body["poll_url"] != "/api/collections/"+jobID+"/status" {
		t.Fatalf("unexpected submit response %v", body)
	}

	deadline := time.Now().Add(2 * time.Second)
	var status map[string]any
	for {
		rec = env.do(t, http.MethodGet, "/api/collections/"+jobID+"/status", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d", rec.Code)
		}
		status = decode(t, rec)
		if status["status"] == string(pipeline.StatusCompleted) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not complete: %v", status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec = env.do(t, http.MethodGet, "/api/collections/"+jobID+"/result", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("result: expected 200, got %d", rec.Code)
	}
	var doc output.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if doc.Metadata.Persona != "Cook" || len(doc.ExtractedSections) != 1 || doc.ExtractedSections[0].HeadingText != "Mains" {
		t.Errorf("unexpected result %+v", doc)
	}
}

func TestSubmitCollection_Rejects(t *testing.T) {
	env := newTestEnv(t, &cannedProcessor{})

	tests := []struct {
		name string
		body string
		code int
		want string
	}{
		{"bad json", `{`, http.StatusBadRequest, "invalid request body"},
		{"missing persona", `{"job":"j","documents":["mains.md"]}`, http.StatusBadRequest, "persona"},
		{"no documents", `{"persona":"p","job":"j","documents":[]}`, http.StatusBadRequest, "at least one document"},
		{"unsupported", `{"persona":"p","job":"j","documents":["notes.csv"]}`, http.StatusBadRequest, "unsupported"},
		{"missing file", `{"persona":"p","job":"j","documents":["ghost.pdf"]}`, http.StatusBadRequest, "ghost.pdf"},
		{"outside library", `{"persona":"p","job":"j","documents":["../mains.md"]}`, http.StatusBadRequest, "bare filename"},
		{"too large", `{"persona":"` + strings.Repeat("x", 5000) + `","job":"j"}`, http.StatusRequestEntityTooLarge, "max size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/collections", tt.body)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
			if msg, _ := decode(t, rec)["error"].(string); !strings.Contains(msg, tt.want) {
				t.Errorf("expected error containing %q, got %q", tt.want, msg)
			}
		})
	}
}

func TestSubmitCollection_DuplicateWhileRunning(t *testing.T) {
	proc := &cannedProcessor{release: make(chan struct{})}
	env := newTestEnv(t, proc)
	defer close(proc.release)

	body := `{"persona":"Cook","job":"Plan","documents":["mains.md"]}`
	first := decode(t, env.do(t, http.MethodPost, "/api/collections", body))
	rec := env.do(t, http.MethodPost, "/api/collections", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for an active duplicate, got %d", rec.Code)
	}
	second := decode(t, rec)
	if second["job_id"] != first["job_id"] || second["existing"] != true {
		t.Errorf("expected the running job to be returned, got %v vs %v", second, first)
	}

	rec = env.do(t, http.MethodGet, "/api/collections/"+first["job_id"].(string)+"/result", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 while running, got %d", rec.Code)
	}
}

func TestBatchCollections(t *testing.T) {
	env := newTestEnv(t, &cannedProcessor{})

	rec := env.do(t, http.MethodPost, "/api/collections/batch", `{"collections":[
  {"persona":"Cook","job":"Dinner","documents":["mains.md"]},
  {"persona":"Cook","job":"Lunch","documents":["ghost.md"]},
  "not an object"
]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	jobs := decode(t, rec)["jobs"].([]any)
	if len(jobs) != 3 {
		t.Fatalf("expected 3 entries, got %v", jobs)
	}
	if jobs[0].(map[string]any)["job_id"] == nil {
		t.Errorf("expected first collection to be queued, got %v", jobs[0])
	}
	for _, i := range []int{1, 2} {
		if jobs[i].(map[string]any)["error"] == nil {
			t.Errorf("expected entry %d to carry an error, got %v", i, jobs[i])
		}
	}
}

func TestCollectionNotFound(t *testing.T) {
	env := newTestEnv(t, &cannedProcessor{})
	for _, path := range []string{"/api/collections/nope/status", "/api/collections/nope/result"} {
		if rec := env.do(t, http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestListDocuments(t *testing.T) {
	env := newTestEnv(t, &cannedProcessor{})

	rec := env.do(t, http.MethodGet, "/api/documents", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	docs := decode(t, rec)["documents"].([]any)
	if len(docs) != 2 {
		t.Fatalf("expected 2 supported documents, got %v", docs)
	}
	byName := map[string]map[string]any{}
	for _, d := range docs {
		m := d.(map[string]any)
		byName[m["document"].(string)] = m
	}
	if byName["mains.md"]["outline_file"] != false || byName["sides.txt"]["outline_file"] != true {
		t.Errorf("unexpected outline flags %v", byName)
	}
}

func TestDocumentOutline(t *testing.T) {
	env := newTestEnv(t, &cannedProcessor{})

	rec := env.do(t, http.MethodGet, "/api/documents/sides.txt/outline", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["title"] != "Sides" {
		t.Errorf("expected stored outline, got %v", body)
	}

	rec = env.do(t, http.MethodGet, "/api/documents/mains.md/outline", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	entries := decode(t, rec)["outline"].([]any)
	if len(entries) != 2 {
		t.Fatalf("expected outline derived from markdown, got %v", entries)
	}
	first := entries[0].(map[string]any)
	if first["level"] != "H1" || first["text"] != "Mains" || first["page"].(float64) != 1 {
		t.Errorf("unexpected first entry %v", first)
	}

	if rec := env.do(t, http.MethodGet, "/api/documents/ghost.md/outline", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown document, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/documents/notes.csv/outline", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported document, got %d", rec.Code)
	}
}

func TestLLMStats(t *testing.T) {
	env := newTestEnv(t, &cannedProcessor{})
	env.stats.Record("rank", 1200, false)
	env.stats.Record("refine", 300, false)
	env.stats.Record("refine", 500, true)

	rec := env.do(t, http.MethodGet, "/api/stats/llm", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["models"].(map[string]any)["rank"] != "qwen3:0.6b" {
		t.Errorf("unexpected models %v", body["models"])
	}
	if body["stats"].(map[string]any)["count"].(float64) != 3 {
		t.Errorf("expected 3 samples, got %v", body["stats"])
	}
	refine := body["stages"].(map[string]any)["refine"].(map[string]any)
	if refine["count"].(float64) != 2 || refine["failures"].(float64) != 1 {
		t.Errorf("unexpected refine stats %v", refine)
	}
}
