package pipeline

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/sectionrank/internal/collection"
	"github.com/dgallion1/sectionrank/internal/output"
)

// JobStatus represents the state of a collection job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusLoading    JobStatus = "loading_outlines"
	StatusRanking    JobStatus = "ranking"
	StatusExtracting JobStatus = "extracting"
	StatusCompleted  JobStatus = "completed"
	StatusPartial    JobStatus = "partial"
	StatusFailed     JobStatus = "failed"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusPartial || s == StatusFailed
}

// Job tracks the state of a single collection run.
type Job struct {
	mu sync.Mutex

	ID          string    `json:"job_id"`
	ChallengeID string    `json:"challenge_id,omitempty"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Progress    Progress  `json:"progress"`
	RequestHash string    `json:"request_hash"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	request collection.Request
	result  *output.Document
	errors  []string
}

// Progress tracks processing progress.
type Progress struct {
	Documents   int      `json:"documents"`
	Candidates  int      `json:"candidates"`
	Sections    int      `json:"sections"`
	Units       int      `json:"units"`
	Diagnostics int      `json:"diagnostics"`
	Errors      []string `json:"errors"`
}

// NewJob creates a queued job for req.
func NewJob(req collection.Request) *Job {
	now := time.Now()
	return &Job{
		ID:          newJobID(),
		ChallengeID: req.ChallengeID,
		Status:      StatusQueued,
		Phase:       "queued",
		Progress:    Progress{Documents: len(req.Documents)},
		RequestHash: RequestHash(req),
		CreatedAt:   now,
		UpdatedAt:   now,
		request:     req,
	}
}

// newJobID returns a time-ordered UUID so job IDs sort by creation.
func newJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// FindActive returns a queued or running job with the same request hash.
func (s *JobStore) FindActive(hash string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findActive(hash)
}

// PutIfAbsent stores job unless a queued or running job with the same
// request hash exists, in which case that job is returned with existing set.
func (s *JobStore) PutIfAbsent(job *Job) (stored *Job, existing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if active := s.findActive(job.RequestHash); active != nil {
		return active, true
	}
	s.jobs[job.ID] = job
	return job, false
}

func (s *JobStore) findActive(hash string) *Job {
	for _, job := range s.jobs {
		if job.RequestHash == hash && !job.CurrentStatus().Done() {
			return job
		}
	}
	return nil
}

// Cleanup removes finished jobs that have not changed within the TTL.
// Queued and running jobs are kept however long they take.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.Status.Done() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// CurrentStatus returns the status under the job lock.
func (j *Job) CurrentStatus() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetCandidates records how many headings the ranker will see.
func (j *Job) SetCandidates(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Candidates = n
	j.UpdatedAt = time.Now()
}

// SetSections records how many sections survived ranking and location.
func (j *Job) SetSections(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Sections = n
	j.UpdatedAt = time.Now()
}

// SetResult stores the finished document and marks the job completed, or
// partial when the document carries diagnostics.
func (j *Job) SetResult(doc *output.Document) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = doc
	j.Progress.Units = len(doc.SubsectionAnalysis)
	j.Progress.Diagnostics = len(doc.Diagnostics)
	if len(doc.Diagnostics) > 0 {
		j.Status = StatusPartial
	} else {
		j.Status = StatusCompleted
	}
	j.Phase = "done"
	j.UpdatedAt = time.Now()
}

// Result returns the finished document, or nil while the job is running.
func (j *Job) Result() *output.Document {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Request returns the collection request the job was created for.
func (j *Job) Request() collection.Request {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.request
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	ChallengeID string    `json:"challenge_id,omitempty"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Progress    Progress  `json:"progress"`
	RequestHash string    `json:"request_hash"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	progress := j.Progress
	progress.Errors = append([]string{}, j.Progress.Errors...)
	return JobSnapshot{
		ID:          j.ID,
		ChallengeID: j.ChallengeID,
		Status:      j.Status,
		Phase:       j.Phase,
		Progress:    progress,
		RequestHash: j.RequestHash,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// RequestHash fingerprints a request so identical submissions can share a
// job.
func RequestHash(req collection.Request) string {
	data, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	return ContentHashHex(data)
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
