package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Orchestrator manages the indexing run: a bounded queue feeding a fixed
// worker pool, with per-document retry and run-level stats.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	worker *Worker
	stats  *Aggregator
	log    *slog.Logger

	workerCount int
	maxQueue    int
	maxRetries  int
	retryDelay  time.Duration
	maxBytes    int64

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewOrchestrator wires the run around an already-constructed worker.
func NewOrchestrator(w *Worker, log *slog.Logger) *Orchestrator {
	cfg := w.cfg
	return &Orchestrator{
		jobs:        NewJobStore(24 * time.Hour),
		queue:       make(chan *Job, cfg.MaxQueueSize),
		worker:      w,
		stats:       NewAggregator(),
		log:         log,
		workerCount: cfg.WorkerCount,
		maxQueue:    cfg.MaxQueueSize,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		maxBytes:    cfg.MaxPDFBytes,
		stop:        make(chan struct{}),
	}
}

// Start launches the worker pool. Workers stop taking new jobs once Stop is
// called but always finish the document they are on.
func (o *Orchestrator) Start(ctx context.Context) {
	for i := 0; i < o.workerCount; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-o.stop:
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.run(ctx, job)
				}
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-o.stop:
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop halts dispatch and waits for in-flight documents to finish. Jobs
// still queued are marked failed.
func (o *Orchestrator) Stop() {
	close(o.stop)
	o.wg.Wait()
	for {
		select {
		case job := <-o.queue:
			job.AddError("run canceled before processing")
			if err := job.Transition(StatusFailed); err == nil {
				o.stats.Record(DocResult{
					Filename: job.Filename,
					Status:   StatusFailed,
					Error:    "run canceled before processing",
				})
			}
		default:
			return
		}
	}
}

// Submit queues a single document. Documents over the size limit are
// rejected immediately as failed, with no retries.
func (o *Orchestrator) Submit(path, filename string) (*Job, error) {
	job := NewJob(path, filename)
	o.jobs.Put(job)
	o.stats.AddSubmitted(1)

	if fi, err := os.Stat(path); err == nil && fi.Size() > o.maxBytes {
		limitErr := &LimitError{Limit: o.maxBytes, Actual: fi.Size()}
		job.AddError(limitErr.Error())
		job.Transition(StatusFailed)
		o.stats.Record(DocResult{
			Filename: filename,
			Status:   StatusFailed,
			Error:    limitErr.Error(),
		})
		o.log.Warn("document rejected", "filename", filename, "error", limitErr)
		return job, limitErr
	}

	select {
	case o.queue <- job:
		return job, nil
	default:
		job.AddError("queue full")
		job.Transition(StatusFailed)
		o.stats.Record(DocResult{
			Filename: filename,
			Status:   StatusFailed,
			Error:    "queue full",
		})
		return job, fmt.Errorf("job queue is full (%d)", o.maxQueue)
	}
}

// SubmitBatch queues a set of documents, returning the job for each path.
// A rejected document does not stop the rest of the batch.
func (o *Orchestrator) SubmitBatch(paths map[string]string) []*Job {
	out := make([]*Job, 0, len(paths))
	for path, filename := range paths {
		job, err := o.Submit(path, filename)
		if err != nil {
			o.log.Warn("batch submit rejected document", "filename", filename, "error", err)
		}
		out = append(out, job)
	}
	return out
}

// run drives one job through attempts until it succeeds, fails permanently
// or exhausts its retries. The delay between attempts is fixed.
func (o *Orchestrator) run(ctx context.Context, job *Job) {
	start := time.Now()
	log := o.log.With("job_id", job.ID, "filename", job.Filename)

	for {
		if err := job.Transition(StatusRunning); err != nil {
			log.Error("job state error", "error", err)
			return
		}
		attempt := job.IncrAttempts()

		out, err := o.worker.Process(ctx, job)
		if err == nil {
			job.Transition(StatusSucceeded)
			snap := job.Snapshot()
			o.stats.Record(DocResult{
				Filename:    job.Filename,
				ContentHash: out.ContentHash,
				Status:      StatusSucceeded,
				Attempts:    attempt,
				Pages:       out.Pages,
				Sections:    out.Sections,
				Chunks:      out.Chunks,
				Images:      out.Images,
				CacheHit:    out.CacheHit,
				DurationMs:  time.Since(start).Milliseconds(),
				Errors:      snap.Errors,
			})
			return
		}

		job.AddError(err.Error())
		if !IsTransient(err) || attempt > o.maxRetries {
			job.Transition(StatusFailed)
			snap := job.Snapshot()
			o.stats.Record(DocResult{
				Filename:    job.Filename,
				ContentHash: snap.ContentHash,
				Status:      StatusFailed,
				Attempts:    attempt,
				DurationMs:  time.Since(start).Milliseconds(),
				Error:       err.Error(),
				Errors:      snap.Errors,
			})
			log.Error("document failed", "attempts", attempt, "error", err)
			return
		}

		job.Transition(StatusRetrying)
		log.Warn("attempt failed, retrying", "attempt", attempt, "error", err)
		select {
		case <-time.After(o.retryDelay):
		case <-ctx.Done():
			job.AddError(ctx.Err().Error())
			job.Transition(StatusFailed)
			o.stats.Record(DocResult{
				Filename:   job.Filename,
				Status:     StatusFailed,
				Attempts:   attempt,
				DurationMs: time.Since(start).Milliseconds(),
				Error:      ctx.Err().Error(),
			})
			return
		}
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// Jobs returns snapshots of all tracked jobs.
func (o *Orchestrator) Jobs() []JobSnapshot {
	return o.jobs.All()
}

// Stats exposes the run aggregator.
func (o *Orchestrator) Stats() *Aggregator {
	return o.stats
}

// QueueDepth returns the current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
