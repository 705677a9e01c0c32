// Package collection describes one ranking request and where its files live.
package collection

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Document is one source document named by a collection request.
type Document struct {
	Filename string `json:"filename"`
	Title    string `json:"title,omitempty"`
}

// Request is a collection-level ranking request. It decodes from either the
// flat form {persona, job, documents:[id...]} or the challenge form
// {challenge_info, persona:{role}, job_to_be_done:{task}, documents:[{filename, title}]}.
type Request struct {
	ChallengeID string
	Persona     string
	Job         string
	Documents   []Document
}

// DocumentIDs returns the document filenames in request order.
func (r Request) DocumentIDs() []string {
	ids := make([]string, len(r.Documents))
	for i, d := range r.Documents {
		ids[i] = d.Filename
	}
	return ids
}

// Validate returns the first problem with the request, or nil.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Persona) == "" {
		return errors.New("persona is required")
	}
	if strings.TrimSpace(r.Job) == "" {
		return errors.New("job is required")
	}
	seen := make(map[string]bool, len(r.Documents))
	for _, d := range r.Documents {
		if d.Filename == "" {
			return errors.New("document filename is required")
		}
		if filepath.Base(d.Filename) != d.Filename {
			return fmt.Errorf("document %q must be a bare filename", d.Filename)
		}
		if seen[d.Filename] {
			return fmt.Errorf("document %q listed twice", d.Filename)
		}
		seen[d.Filename] = true
	}
	return nil
}

type wireRequest struct {
	ChallengeInfo *struct {
		ChallengeID string `json:"challenge_id"`
	} `json:"challenge_info,omitempty"`
	Persona     json.RawMessage `json:"persona"`
	Job         json.RawMessage `json:"job"`
	JobToBeDone json.RawMessage `json:"job_to_be_done"`
	Documents   json.RawMessage `json:"documents"`
}

func (r *Request) UnmarshalJSON(data []byte) error {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	var out Request
	if w.ChallengeInfo != nil {
		out.ChallengeID = w.ChallengeInfo.ChallengeID
	}

	var err error
	if out.Persona, err = textField(w.Persona, "role"); err != nil {
		return fmt.Errorf("persona: %w", err)
	}
	job := w.Job
	if len(job) == 0 {
		job = w.JobToBeDone
	}
	if out.Job, err = textField(job, "task"); err != nil {
		return fmt.Errorf("job: %w", err)
	}
	if out.Documents, err = documents(w.Documents); err != nil {
		return fmt.Errorf("documents: %w", err)
	}

	*r = out
	return nil
}

func (r Request) MarshalJSON() ([]byte, error) {
	type flat struct {
		ChallengeID string     `json:"challenge_id,omitempty"`
		Persona     string     `json:"persona"`
		Job         string     `json:"job"`
		Documents   []Document `json:"documents"`
	}
	docs := r.Documents
	if docs == nil {
		docs = []Document{}
	}
	return json.Marshal(flat{r.ChallengeID, r.Persona, r.Job, docs})
}

// textField accepts either a JSON string or an object carrying the string
// under key.
func textField(raw json.RawMessage, key string) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("expected string or object with %q", key)
	}
	v, _ := obj[key].(string)
	return strings.TrimSpace(v), nil
}

func documents(raw json.RawMessage) ([]Document, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.New("expected an array")
	}
	docs := make([]Document, 0, len(items))
	for i, item := range items {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			docs = append(docs, Document{Filename: name})
			continue
		}
		var d Document
		if err := json.Unmarshal(item, &d); err != nil {
			return nil, fmt.Errorf("item %d: expected filename or object", i)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// ReadRequest decodes and validates a request file.
func ReadRequest(path string) (Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Request{}, err
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if err := req.Validate(); err != nil {
		return Request{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return req, nil
}
