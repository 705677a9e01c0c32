package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/sectionrank/internal/collection"
	"github.com/dgallion1/sectionrank/internal/output"
	"github.com/dgallion1/sectionrank/internal/parser"
	"github.com/dgallion1/sectionrank/internal/pipeline"
)

func (s *Server) handleSubmitCollection(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestBytes)

	var req collection.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("request exceeds max size (%d bytes)", s.cfg.MaxRequestBytes), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.checkRequest(req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	job, existing, err := s.orchestrator.Submit(req)
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	code := http.StatusAccepted
	if existing {
		code = http.StatusOK
	}
	writeJSON(w, code, jobLinks(job, existing))
}

func (s *Server) handleBatchCollections(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestBytes*10)

	var body struct {
		Collections []json.RawMessage `json:"collections"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(body.Collections) == 0 {
		jsonError(w, "at least one collection is required", http.StatusBadRequest)
		return
	}

	results := make([]map[string]any, 0, len(body.Collections))
	for i, raw := range body.Collections {
		var req collection.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			results = append(results, map[string]any{"index": i, "error": "invalid collection: " + err.Error()})
			continue
		}
		if err := s.checkRequest(req); err != nil {
			results = append(results, map[string]any{"index": i, "error": err.Error()})
			continue
		}
		job, existing, err := s.orchestrator.Submit(req)
		if err != nil {
			results = append(results, map[string]any{"index": i, "error": err.Error()})
			continue
		}
		entry := jobLinks(job, existing)
		entry["index"] = i
		results = append(results, entry)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

func (s *Server) handleCollectionStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":       snap.ID,
		"challenge_id": snap.ChallengeID,
		"status":       snap.Status,
		"phase":        snap.Phase,
		"progress":     snap.Progress,
		"created_at":   snap.CreatedAt,
		"updated_at":   snap.UpdatedAt,
	})
}

func (s *Server) handleCollectionResult(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	doc := job.Result()
	if doc == nil {
		jsonError(w, fmt.Sprintf("job is %s", job.CurrentStatus()), http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := output.Encode(w, doc); err != nil {
		s.log.Error("encode result", "job_id", job.ID, "error", err)
	}
}

// checkRequest validates a request and confirms that every named document
// is a supported file in the library.
func (s *Server) checkRequest(req collection.Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if len(req.Documents) == 0 {
		return errors.New("at least one document is required")
	}
	var missing []string
	for _, d := range req.Documents {
		if !parser.IsSupportedExtension(d.Filename) {
			return fmt.Errorf("unsupported file type: %s", filepath.Ext(d.Filename))
		}
		if _, err := os.Stat(filepath.Join(s.cfg.LibraryDir, d.Filename)); err != nil {
			missing = append(missing, d.Filename)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("documents not in library: %s", strings.Join(missing, ", "))
	}
	return nil
}

func jobLinks(job *pipeline.Job, existing bool) map[string]any {
	snap := job.Snapshot()
	return map[string]any{
		"job_id":     snap.ID,
		"status":     snap.Status,
		"existing":   existing,
		"poll_url":   fmt.Sprintf("/api/collections/%s/status", snap.ID),
		"result_url": fmt.Sprintf("/api/collections/%s/result", snap.ID),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
