package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tweetvault/pkg/logger"
	"tweetvault/pkg/models"
)

// Job is one item to reconcile; Index is its position in the input
type Job struct {
	Index int
	ID    string
}

// Result is the reconciled status of a job
type Result struct {
	Job      Job
	Details  models.Details
	Duration time.Duration
}

// Inspector derives an item's status from disk. Implementations must be
// safe for concurrent use.
type Inspector interface {
	Inspect(id string) models.Details
}

// WorkerPool reconciles items concurrently. Reconciliation only reads the
// filesystem, so workers share nothing but the inspector.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	inspector   Inspector
	logger      logger.Logger
}

// NewWorkerPool creates a pool bound to ctx
func NewWorkerPool(ctx context.Context, numWorkers int, inspector Inspector, log logger.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		inspector:   inspector,
		logger:      log,
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting scan workers", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the job queue, waits for the workers and closes Results.
// It must be called exactly once, after the last Submit.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

// Submit queues a job, blocking while the queue is full
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("scan cancelled: %w", wp.ctx.Err())
	}
}

// Results streams results in completion order
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		select {
		case <-wp.ctx.Done():
			return
		default:
		}

		start := time.Now()
		result := Result{
			Job:     job,
			Details: wp.inspector.Inspect(job.ID),
		}
		result.Duration = time.Since(start)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
			wp.logger.DebugWithFields("Scan worker stopping", map[string]interface{}{
				"worker_id": id,
			})
			return
		}
	}
}

// Reconcile inspects every id with a pool of workers and returns the
// results in input order.
func Reconcile(ctx context.Context, ids []string, inspector Inspector, workers int, log logger.Logger) ([]Result, error) {
	pool := NewWorkerPool(ctx, workers, inspector, log)
	pool.Start()

	go func() {
		defer pool.Stop()
		for i, id := range ids {
			if err := pool.Submit(Job{Index: i, ID: id}); err != nil {
				return
			}
		}
	}()

	results := make([]Result, len(ids))
	received := 0
	for r := range pool.Results() {
		results[r.Job.Index] = r
		received++
	}

	if received < len(ids) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("scan stopped after %d of %d items", received, len(ids))
	}
	return results, nil
}
