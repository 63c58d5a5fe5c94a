// Package worker runs queued evaluation jobs and stores their results.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rebooked/apsmatch/internal/domain/model"
	"github.com/rebooked/apsmatch/pkg/logger"
	"github.com/rebooked/apsmatch/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU(); evaluation is CPU bound
	poolShutdownTimeout     = 30 * time.Second
	workerStopGrace         = 5 * time.Second // time a busy worker gets to finish its job after a timed out drain
)

// Job abstracts what workers read off the queue.
type Job = model.Job

// Evaluator turns a job into a finished evaluation.
type Evaluator interface {
	Evaluate(ctx context.Context, job Job) (model.Evaluation, error)
}

// Store persists evaluation results.
type Store interface {
	Put(ctx context.Context, e model.Evaluation) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes jobs until its queue closes or it is stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in hand.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for evaluation jobs.
type InMemoryWorker struct {
	queue     Queue
	evaluator Evaluator
	store     Store
	name      string
	now       func() time.Time

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, evaluator Evaluator, store Store, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		evaluator: evaluator,
		store:     store,
		name:      "worker",
		now:       time.Now,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logger.String("worker", w.name))
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-w.shutdown:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing job", logger.String("evaluation_id", job.ID), logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process evaluates one job and stores the outcome. A failed evaluation is
// still stored so clients polling for it see the failure.
func (w *InMemoryWorker) process(ctx context.Context, job Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := w.now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	eval, err := w.evaluator.Evaluate(ctx, job)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "evaluation_error")
		w.logger.Warn(ctx, "evaluation failed", logger.String("evaluation_id", job.ID), logger.Error(err))
		eval = model.NewPending(job).Fail(err, w.now())
	}
	metrics.RecordEvaluation(string(eval.Status))

	if perr := w.store.Put(ctx, eval); perr != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("store evaluation %s: %w", job.ID, perr)
	}

	if !job.SubmittedAt.IsZero() {
		metrics.RecordEvaluationLatency(float64(w.now().Sub(job.SubmittedAt).Microseconds()) / 1000)
	}
	metrics.RecordWorkerProcessed()
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []Worker
	queue   Queue
	active  atomic.Int64
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	logger  logger.Logger
}

// NewPool creates a new worker pool. A non-positive count defaults to a
// multiple of the CPU count.
func NewPool(workerCount int, queue Queue, evaluator Evaluator, store Store, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers: make([]Worker, workerCount),
		queue:   queue,
		cancel:  func() {},
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(queue, evaluator, store, wopts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Active returns the number of running workers.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Start starts all workers in the pool. Workers keep ctx's values but not its
// cancellation: they run until Shutdown, so jobs accepted before a signal are
// still drained and stored.
func (p *Pool) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel

	for _, w := range p.workers {
		p.wg.Add(1)
		metrics.UpdateWorkerActiveCount(int(p.active.Add(1)))
		go func(w Worker) {
			defer func() {
				metrics.UpdateWorkerActiveCount(int(p.active.Add(-1)))
				p.wg.Done()
			}()
			w.Run(runCtx)
		}(w)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue and waits for workers to drain it. When ctx
// (capped at 30s) expires first, each worker is stopped after the job in
// hand and the rest of the queue is abandoned.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		p.cancel()
		p.logger.Info(ctx, "worker pool drained")
		return nil
	case <-shutdownCtx.Done():
	}

	p.logger.Warn(ctx, "worker pool shutdown timed out", logger.Int("still_active", p.Active()))
	stopCtx, stopCancel := context.WithTimeout(context.Background(), workerStopGrace)
	defer stopCancel()
	for _, w := range p.workers {
		// Shutdown signals before it waits, so every worker is told even
		// once stopCtx has expired.
		_ = w.Shutdown(stopCtx)
	}
	p.cancel()
	return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
}
