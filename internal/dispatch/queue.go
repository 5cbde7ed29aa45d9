package dispatch

import (
	"context"
	"fmt"
	"sync"

	"media-optimizer/internal/logging"
	"media-optimizer/internal/metrics"
	"media-optimizer/internal/store"

	"github.com/google/uuid"
)

// Queue runs conversion passes asynchronously. Triggering requests
// return immediately after enqueueing; duplicate enqueues for an asset
// whose job is still queued or processing are suppressed through the
// job-state guard in the store.
type Queue struct {
	store  *store.Store
	runner Runner

	jobs chan queuedJob
	wg   sync.WaitGroup

	// mu orders Enqueue sends against Close: Enqueue holds the read
	// side across the claim and the channel send, Close takes the write
	// side before closing jobs, so a send can never hit a closed channel.
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

type queuedJob struct {
	assetID string
	jobID   string
}

// NewQueue creates a queue with the given number of workers and buffer
// capacity and starts the workers. ctx bounds the passes the workers
// run; cancel it before Close to abandon in-flight work.
func NewQueue(ctx context.Context, s *store.Store, runner Runner, workerCount, buffer int) *Queue {
	if workerCount < 1 {
		workerCount = 1
	}
	if buffer < 1 {
		buffer = workerCount
	}

	q := &Queue{
		store:  s,
		runner: runner,
		jobs:   make(chan queuedJob, buffer),
	}

	logging.Info("Starting %d conversion queue workers (buffer %d)", workerCount, buffer)
	for i := 0; i < workerCount; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	return q
}

// Enqueue submits an asset for asynchronous conversion and returns the
// job id. A false second return means nothing was enqueued: a job for
// the asset is already in flight, the queue is saturated, or the queue
// has been closed.
func (q *Queue) Enqueue(ctx context.Context, assetID string) (string, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		// Rejected before claiming, so the asset's job row stays
		// untouched and a restart can convert it normally.
		metrics.QueueJobsTotal.WithLabelValues("rejected").Inc()
		logging.Warn("Conversion queue closed, rejecting asset %s", assetID)
		return "", false
	}

	jobID := uuid.NewString()

	claimed, err := q.store.ClaimJob(ctx, assetID, jobID)
	if err != nil {
		logging.Error("Claiming conversion job for asset %s: %v", assetID, err)
		return "", false
	}
	if !claimed {
		logging.Debug("Conversion for asset %s already in flight, not enqueueing", assetID)
		metrics.QueueJobsTotal.WithLabelValues("deduplicated").Inc()
		return "", false
	}

	select {
	case q.jobs <- queuedJob{assetID: assetID, jobID: jobID}:
		metrics.QueueDepth.Inc()
		metrics.QueueJobsTotal.WithLabelValues("enqueued").Inc()
		return jobID, true
	default:
		// Release the claim so a later trigger can retry.
		if err := q.store.SetJobState(ctx, assetID, store.JobStateFailed); err != nil {
			logging.Error("Releasing saturated job claim for asset %s: %v", assetID, err)
		}
		metrics.QueueJobsTotal.WithLabelValues("rejected").Inc()
		logging.Warn("Conversion queue saturated, rejecting asset %s", assetID)
		return "", false
	}
}

// Close stops accepting work and waits for the workers to drain the
// queue.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.jobs)
		q.mu.Unlock()
	})
	q.wg.Wait()
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()

	for job := range q.jobs {
		metrics.QueueDepth.Dec()
		if err := q.run(ctx, job); err != nil {
			logging.Error("Conversion job %s for asset %s failed: %v", job.jobID, job.assetID, err)
			metrics.QueueJobsTotal.WithLabelValues("failed").Inc()
			continue
		}
		metrics.QueueJobsTotal.WithLabelValues("completed").Inc()
	}
}

func (q *Queue) run(ctx context.Context, job queuedJob) error {
	if err := ctx.Err(); err != nil {
		// The worker ctx is gone; record the abandonment on a fresh one.
		if stateErr := q.store.SetJobState(context.Background(), job.assetID, store.JobStateFailed); stateErr != nil {
			logging.Error("Marking abandoned job for asset %s: %v", job.assetID, stateErr)
		}
		return fmt.Errorf("abandoning job: %w", err)
	}

	if err := q.store.SetJobState(ctx, job.assetID, store.JobStateProcessing); err != nil {
		return fmt.Errorf("marking job processing: %w", err)
	}

	if err := q.runner.Convert(ctx, job.assetID); err != nil {
		if stateErr := q.store.SetJobState(ctx, job.assetID, store.JobStateFailed); stateErr != nil {
			logging.Error("Marking failed job for asset %s: %v", job.assetID, stateErr)
		}
		return err
	}

	return q.store.SetJobState(ctx, job.assetID, store.JobStateCompleted)
}
