package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/sectionrank/internal/collection"
)

// Processor runs one collection job to completion.
type Processor interface {
	Process(ctx context.Context, job *Job)
}

// Orchestrator queues collection jobs and runs them one at a time.
// Parallelism lives inside a collection, never across collections.
type Orchestrator struct {
	jobs      *JobStore
	queue     chan *Job
	processor Processor
	log       *slog.Logger
	queueSize int

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline; call Start to begin processing.
func NewOrchestrator(processor Processor, queueSize int, jobTTL time.Duration, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:      NewJobStore(jobTTL),
		queue:     make(chan *Job, queueSize),
		processor: processor,
		log:       log,
		queueSize: queueSize,
	}
}

// Start launches the collection worker and the job cleanup loop.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for {
			select {
			case <-workerCtx.Done():
				o.drain(workerCtx.Err())
				return
			case job, ok := <-o.queue:
				if !ok {
					return
				}
				o.processor.Process(workerCtx, job)
			}
		}
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// drain fails jobs still queued at shutdown so their status is final.
func (o *Orchestrator) drain(cause error) {
	for {
		select {
		case job := <-o.queue:
			if job == nil {
				return
			}
			job.AddError(fmt.Sprintf("not started: %v", cause))
			job.SetStatus(StatusFailed, "shutdown")
		default:
			return
		}
	}
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	o.wg.Wait()
}

// Submit queues a collection request. An identical request that is still
// queued or running is returned instead of a new job, with existing set.
func (o *Orchestrator) Submit(req collection.Request) (job *Job, existing bool, err error) {
	job, existing = o.jobs.PutIfAbsent(NewJob(req))
	if existing {
		return job, true, nil
	}

	select {
	case o.queue <- job:
		o.log.Info("collection queued", "job_id", job.ID, "documents", len(req.Documents))
		return job, false, nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return job, false, fmt.Errorf("job queue is full (%d)", o.queueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
