package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// DocResult is the per-document record the aggregator keeps.
type DocResult struct {
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash,omitempty"`
	Status      JobStatus `json:"status"`
	Attempts    int       `json:"attempts"`
	Pages       int       `json:"pages"`
	Sections    int       `json:"sections"`
	Chunks      int       `json:"chunks"`
	Images      int       `json:"images"`
	CacheHit    bool      `json:"cache_hit"`
	DurationMs  int64     `json:"duration_ms"`
	Error       string    `json:"error,omitempty"`
	Errors      []string  `json:"errors,omitempty"`
}

// RunReport is a point-in-time aggregate of the indexing run.
type RunReport struct {
	StartedAt time.Time   `json:"started_at"`
	Submitted int         `json:"submitted"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Retried   int         `json:"retried"`
	CacheHits int         `json:"cache_hits"`
	Sections  int         `json:"sections"`
	Chunks    int         `json:"chunks"`
	Images    int         `json:"images"`
	AvgMs     float64     `json:"avg_ms"`
	MaxMs     int64       `json:"max_ms"`
	Documents []DocResult `json:"documents"`
}

// Aggregator accumulates per-document results for the current run.
// Recording and reading never block each other for long; Report is a
// pure read that copies everything out under the lock.
type Aggregator struct {
	mu        sync.Mutex
	startedAt time.Time
	submitted int
	results   []DocResult
}

func NewAggregator() *Aggregator {
	return &Aggregator{startedAt: time.Now()}
}

// AddSubmitted counts documents accepted into the run.
func (a *Aggregator) AddSubmitted(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.submitted += n
}

// Record adds one finished document result.
func (a *Aggregator) Record(r DocResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, r)
}

// Report builds the run aggregate. Documents are ordered by filename so
// the report is stable regardless of worker completion order.
func (a *Aggregator) Report() RunReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	docs := make([]DocResult, len(a.results))
	copy(docs, a.results)
	sort.Slice(docs, func(i, j int) bool { return docs[i].Filename < docs[j].Filename })

	rep := RunReport{
		StartedAt: a.startedAt,
		Submitted: a.submitted,
		Documents: docs,
	}
	var sumMs int64
	for _, d := range docs {
		switch d.Status {
		case StatusSucceeded:
			rep.Succeeded++
		case StatusFailed:
			rep.Failed++
		}
		if d.Attempts > 1 {
			rep.Retried++
		}
		if d.CacheHit {
			rep.CacheHits++
		}
		rep.Sections += d.Sections
		rep.Chunks += d.Chunks
		rep.Images += d.Images
		sumMs += d.DurationMs
		if d.DurationMs > rep.MaxMs {
			rep.MaxMs = d.DurationMs
		}
	}
	if len(docs) > 0 {
		rep.AvgMs = float64(sumMs) / float64(len(docs))
	}
	return rep
}

// WriteReport writes the run report as a timestamped JSON artifact and
// returns the path written.
func (a *Aggregator) WriteReport(dir string) (string, error) {
	rep := a.Report()
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create stats dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("run-%s.json", rep.StartedAt.Format("20060102-150405")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
