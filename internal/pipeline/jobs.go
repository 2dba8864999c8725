package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// JobStatus represents the state of an indexing job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusRetrying  JobStatus = "retrying"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
)

// transitions is the complete set of legal status moves. Anything not
// listed here is a bug in the caller, not a recoverable condition.
var transitions = map[JobStatus]map[JobStatus]bool{
	StatusQueued:   {StatusRunning: true, StatusFailed: true},
	StatusRunning:  {StatusSucceeded: true, StatusFailed: true, StatusRetrying: true},
	StatusRetrying: {StatusRunning: true, StatusFailed: true},
}

// Job tracks the state of a single document through the indexing run.
type Job struct {
	mu sync.Mutex

	ID       string `json:"job_id"`
	Path     string `json:"path"`
	Filename string `json:"filename"`

	Status   JobStatus `json:"status"`
	Attempts int       `json:"attempts"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	errors []string
}

// NewJob creates a queued job for a document path.
func NewJob(path, filename string) *Job {
	now := time.Now()
	return &Job{
		ID:        newJobID(),
		Path:      path,
		Filename:  filename,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the job to a new status, enforcing the transition table.
func (j *Job) Transition(to JobStatus) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !transitions[j.Status][to] {
		return fmt.Errorf("illegal job transition %s -> %s", j.Status, to)
	}
	j.Status = to
	j.UpdatedAt = time.Now()
	return nil
}

// IncrAttempts bumps and returns the attempt counter.
func (j *Job) IncrAttempts() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Attempts++
	j.UpdatedAt = time.Now()
	return j.Attempts
}

// SetContentHash records the document's content hash once computed.
func (j *Job) SetContentHash(hash string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = hash
	j.UpdatedAt = time.Now()
}

// AddError records a processing error on the job.
func (j *Job) AddError(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, msg)
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Path        string    `json:"path"`
	Filename    string    `json:"filename"`
	Status      JobStatus `json:"status"`
	Attempts    int       `json:"attempts"`
	ContentHash string    `json:"content_hash,omitempty"`
	Errors      []string  `json:"errors"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.errors))
	copy(errs, j.errors)
	return JobSnapshot{
		ID:          j.ID,
		Path:        j.Path,
		Filename:    j.Filename,
		Status:      j.Status,
		Attempts:    j.Attempts,
		ContentHash: j.ContentHash,
		Errors:      errs,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
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

// All returns snapshots of every tracked job.
func (s *JobStore) All() []JobSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobSnapshot, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Snapshot())
	}
	return out
}

// Cleanup removes jobs idle longer than the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// ContentHashHex computes SHA-256 of content and returns the hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
