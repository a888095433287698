// Package worker drains the mirror sync queue and appends each row to the
// mirror. Failures are logged and reported to the job, never retried here.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/gradecast/internal/adapters/mirror"
	"github.com/okian/gradecast/internal/adapters/mq/queue"
	"github.com/okian/gradecast/pkg/logger"
	"github.com/okian/gradecast/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes mirror jobs.
type Worker interface {
	// Run starts the worker loop until the queue drains or ctx is canceled.
	Run(ctx context.Context)
}

// InMemoryWorker appends queued rows through a mirror.Appender.
type InMemoryWorker struct {
	queue    Queue
	appender mirror.Appender
	name     string
	stats    *Stats

	done chan struct{}

	logger logger.Logger
}

// Stats counts job outcomes across a pool.
type Stats struct {
	Processed atomic.Int64
	Succeeded atomic.Int64
	Failed    atomic.Int64
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, appender mirror.Appender, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		appender: appender,
		name:     "worker",
		stats:    &Stats{},
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			err := w.process(ctx, j)
			j.Finish(err)
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
		metrics.RecordWorkerProcessed()
		w.stats.Processed.Add(1)
	}()

	res, err := w.appender.Append(ctx, j.Row)
	if err != nil {
		w.stats.Failed.Add(1)
		result := "failure"
		if errors.Is(err, mirror.ErrNotConfigured) {
			result = "disabled"
		}
		metrics.RecordMirrorSync(result)
		metrics.RecordErrorByComponent("mirror", result)
		w.logger.Warn(ctx, "mirror sync failed",
			logger.String("batch_id", j.BatchID),
			logger.Int("seq", j.Seq),
			logger.String("student_id", j.Row.StudentID),
			logger.Error(err),
		)
		return fmt.Errorf("mirror %s/%d: %w", j.BatchID, j.Seq, err)
	}

	w.stats.Succeeded.Add(1)
	metrics.RecordMirrorSync("success")
	w.logger.Debug(ctx, "mirror sync done",
		logger.String("batch_id", j.BatchID),
		logger.String("student_id", j.Row.StudentID),
		logger.String("updated_range", res.UpdatedRange),
	)
	return nil
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	stats   *Stats

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  atomic.Bool
	shutdown sync.Once

	logger logger.Logger
}

// NewPool creates a worker pool. A workerCount below 1 picks a CPU-based default.
func NewPool(workerCount int, q Queue, appender mirror.Appender, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		stats:   &Stats{},
		logger:  logger.Nop(),
	}

	probe := &InMemoryWorker{logger: pool.logger}
	for _, opt := range opts {
		opt(probe)
	}
	pool.logger = probe.logger.Named("worker-pool")

	for i := range workerCount {
		workerOpts := append([]Option{}, opts...)
		workerOpts = append(workerOpts, WithName("worker-"+strconv.Itoa(i)), withStats(pool.stats))
		pool.workers[i] = NewInMemoryWorker(q, appender, workerOpts...)
	}
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.Run(ctx)
		}()
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Stats returns the shared outcome counters.
func (p *Pool) Stats() *Stats { return p.stats }

// Stop shuts the pool down with the default timeout.
func (p *Pool) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), poolShutdownTimeout)
	defer cancel()
	_ = p.Shutdown(ctx)
}

// Shutdown closes the queue, lets workers drain what is already queued, and
// waits for them until ctx ends. Remaining workers are then cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.shutdown.Do(func() {
		if closer, ok := p.queue.(interface{ Close() error }); ok {
			if cerr := closer.Close(); cerr != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(cerr))
			}
		}
		if !p.started.Load() {
			return
		}

		drained := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(drained)
		}()

		select {
		case <-drained:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker pool shutdown timed out")
			err = fmt.Errorf("shutdown timed out: %w", ctx.Err())
			p.cancel()
			<-drained
		}
		p.cancel()
		metrics.UpdateWorkerActiveCount(0)
	})
	return err
}
