package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/canteen-orders/constants"
	"github.com/joseph-ayodele/canteen-orders/internal/common"
	"github.com/joseph-ayodele/canteen-orders/internal/metrics"
)

// ProcessorQueue runs scan jobs on a fixed pool of workers. Each worker
// handles one job at a time under its own timeout.
type ProcessorQueue struct {
	proc    FileProcessor
	logger  *slog.Logger
	metrics *metrics.Metrics
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	// held shared by Enqueue, exclusively by Shutdown
	mu     sync.RWMutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}
func WithMetrics(m *metrics.Metrics) Option {
	return func(q *ProcessorQueue) { q.metrics = m }
}

func NewProcessorQueue(proc FileProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("async.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.run(workerID, job)
				}
				q.logger.Debug("async.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.RequestID == "" {
		job.RequestID = uuid.NewString()
	}
	ctx = common.WithRequestID(ctx, job.RequestID)

	start := time.Now()
	jobID, err := q.proc.ProcessFile(ctx, job.Path)
	log := q.logger.With(
		"worker_id", workerID,
		"req_id", job.RequestID,
		"job_id", jobID,
		"path", job.Path,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if err != nil {
		q.metrics.ObserveJob(string(constants.JobStatusFailed))
		log.Error("async.job.failed", "err", err)
		return
	}
	q.metrics.ObserveJob(string(constants.JobStatusLLMOK))
	log.Info("async.job.ok", "queued_ms", start.Sub(job.SubmittedAt).Milliseconds())
}

// Enqueue hands the job to a worker. A full queue applies backpressure until
// there is room or ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("async.enqueue.closed", "path", job.Path)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	if job.RequestID == "" {
		job.RequestID = common.RequestIDFromContext(ctx)
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("async.enqueue.backpressure", "path", job.Path)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	q.metrics.ObserveJob(string(constants.JobStatusQueued))
	q.logger.Info("async.enqueue.ok", "path", job.Path)
	return nil
}

// Shutdown stops accepting jobs and waits for queued ones to drain or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("async.shutdown.interrupted")
	case <-done:
		q.logger.Info("async.shutdown.drained")
	}
}
