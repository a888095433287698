// Package service orchestrates batch scoring: it parses an upload, scores
// every record, dispatches each result to the best-effort mirror, and commits
// the whole batch to the primary store in one write.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/gradecast/internal/adapters/mirror"
	"github.com/okian/gradecast/internal/adapters/mq/queue"
	"github.com/okian/gradecast/internal/adapters/mq/worker"
	"github.com/okian/gradecast/internal/adapters/repository"
	"github.com/okian/gradecast/internal/domain/model"
	"github.com/okian/gradecast/internal/domain/records"
	"github.com/okian/gradecast/internal/domain/scoring"
	"github.com/okian/gradecast/pkg/logger"
	"github.com/okian/gradecast/pkg/metrics"
)

// Default thresholds observed on the two entry points.
const (
	DefaultBatchThreshold  = 60.0
	DefaultManualThreshold = 55.0
)

// Service runs the prediction pipeline and backs the HTTP API.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	appender mirror.Appender
	engine   scoring.Scorer
	queue    *queue.InMemoryQueue
	pool     *worker.Pool

	// Configuration
	batchThreshold  float64
	manualThreshold float64
	strict          bool
	workerCount     int
	queueSize       int
	joinTimeout     time.Duration
	now             func() time.Time
	newID           func() string

	// State
	started bool
	stopped bool
	stats   serviceStats

	logger logger.Logger
}

type serviceStats struct {
	batchesCompleted atomic.Int64
	batchesFailed    atomic.Int64
	batchesRejected  atomic.Int64
	recordsScored    atomic.Int64
	recordsSkipped   atomic.Int64
	manualPredicts   atomic.Int64
	mirrorRejected   atomic.Int64
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		batchThreshold:  DefaultBatchThreshold,
		manualThreshold: DefaultManualThreshold,
		workerCount:     runtime.NumCPU(),
		queueSize:       10_000,
		now:             time.Now,
		newID:           uuid.NewString,
		logger:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = scoring.NewEngine()
	}
	if s.appender == nil {
		s.appender = mirror.Disabled{}
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	return s
}

// Start launches the mirror sync workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.stopped {
		return ErrStopped
	}

	s.logger.Info(ctx, "starting prediction service...")

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.appender,
		worker.WithLogger(s.logger.Named("sync")))
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "prediction service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Float64("batchThreshold", s.batchThreshold),
		logger.Float64("manualThreshold", s.manualThreshold),
		logger.Bool("strictRanges", s.strict),
	)
	return nil
}

// Stop drains pending mirror jobs and closes the store. A stopped service
// cannot be started again.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping prediction service...")

	s.pool.Stop()
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "error closing store", logger.Error(err))
	}

	s.started = false
	s.stopped = true
	s.logger.Info(ctx, "prediction service stopped")
}

// ProcessBatch runs one uploaded file through the pipeline. Rows that cannot
// be parsed are skipped. The returned error is non-nil only when the file is
// rejected, cannot be read, or the durable write fails; mirror failures never
// fail the batch. A failed result carries no outcomes.
func (s *Service) ProcessBatch(ctx context.Context, fileName string, r io.Reader) (model.BatchResult, error) {
	start := time.Now()
	res := model.BatchResult{FileName: fileName, State: model.StateValidating}

	if !strings.EqualFold(filepath.Ext(fileName), ".csv") {
		s.stats.batchesRejected.Add(1)
		metrics.RecordBatch("rejected")
		res.State = model.StateFailed
		return res, fmt.Errorf("%w: %q is not a .csv file", ErrUnsupportedFile, fileName)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return res, ErrNotStarted
	}

	res.ID = s.newID()
	log := s.logger.With(logger.String("batch_id", res.ID), logger.String("file", fileName))
	defer func() {
		metrics.RecordBatchDuration(float64(time.Since(start).Milliseconds()))
	}()

	// Scoring is synchronous; mirror jobs outlive a cancelled request.
	dispatchCtx := context.WithoutCancel(ctx)
	tracker := &mirrorTracker{}
	parser := records.NewParser(r, records.WithStrictRanges(s.strict), records.WithLogger(log))

	res.State = model.StateParsing
	var buffer []model.PredictionRecord
	seq := 0
	for rec := range parser.Records() {
		res.State = model.StateScoring

		scoreStart := time.Now()
		out := s.engine.Evaluate(rec, s.batchThreshold)
		metrics.RecordScoringLatency(float64(time.Since(scoreStart).Microseconds()) / 1000)
		metrics.RecordRecordScored()
		metrics.RecordPrediction(out.Prediction.String(), "batch")

		res.Outcomes = append(res.Outcomes, out)
		buffer = append(buffer, model.NewPredictionRecord(res.ID, seq, out, s.now()))
		s.dispatch(dispatchCtx, tracker, res.ID, seq, out)
		seq++
	}

	res.Skipped = parser.Skipped()
	s.stats.recordsSkipped.Add(int64(res.Skipped))
	s.stats.recordsScored.Add(int64(len(res.Outcomes)))
	metrics.RecordRecordsSkipped(res.Skipped)

	if err := parser.Err(); err != nil {
		res.State = model.StateFailed
		res.Outcomes = nil
		res.Mirror = tracker.summary()
		s.stats.batchesFailed.Add(1)
		metrics.RecordBatch(string(model.StateFailed))
		log.Error(ctx, "batch input unreadable", logger.Error(err))
		return res, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}

	res.State = model.StateCommitting
	if len(buffer) > 0 {
		commitStart := time.Now()
		err := s.store.SaveBatch(ctx, buffer)
		metrics.RecordCommitLatency(float64(time.Since(commitStart).Milliseconds()))
		if err != nil {
			res.State = model.StateFailed
			res.Outcomes = nil
			res.Mirror = tracker.summary()
			s.stats.batchesFailed.Add(1)
			metrics.RecordCommitError()
			metrics.RecordErrorByComponent("store", "commit")
			metrics.RecordBatch(string(model.StateFailed))
			// Rows already handed to the mirror stay there.
			log.Error(ctx, "batch commit failed",
				logger.Int("records", len(buffer)),
				logger.Int("mirror_dispatched", res.Mirror.Dispatched),
				logger.Error(err))
			return res, fmt.Errorf("%w: %w", ErrCommitFailed, err)
		}
	}

	res.State = model.StateCompleted
	if tracker.wait(s.joinTimeout) {
		if err := tracker.err(); err != nil {
			log.Warn(ctx, "mirror sync incomplete", logger.Error(err))
		}
	}
	res.Mirror = tracker.summary()
	s.stats.batchesCompleted.Add(1)
	metrics.RecordBatch(string(model.StateCompleted))

	log.Info(ctx, "batch completed",
		logger.Int("records", len(res.Outcomes)),
		logger.Int("skipped", res.Skipped),
		logger.Int("pass", res.PassCount()),
		logger.Int("fail", res.FailCount()),
		logger.Int("mirror_pending", res.Mirror.Pending),
		logger.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// dispatch queues one outcome for the mirror. A full queue counts as a failed
// sync for this batch.
func (s *Service) dispatch(ctx context.Context, t *mirrorTracker, batchID string, seq int, out model.ScoredOutcome) {
	job := queue.Job{
		BatchID: batchID,
		Seq:     seq,
		Row:     mirror.RowFromOutcome(out),
	}
	job.Done = t.expect()
	if !s.queue.Enqueue(ctx, job) {
		job.Done(fmt.Errorf("mirror %s/%d: sync queue full or closed", batchID, seq))
		s.stats.mirrorRejected.Add(1)
		metrics.RecordMirrorSync("rejected")
	}
}

// Predict scores one manually entered record with the manual threshold.
// Nothing is stored or mirrored.
func (s *Service) Predict(ctx context.Context, rec model.FieldRecord) (model.ScoredOutcome, error) {
	rec.StudentID = strings.TrimSpace(rec.StudentID)

	v := records.Validator()
	var err error
	if s.strict {
		err = v.Struct(rec)
	} else {
		err = v.Var(rec.StudentID, "required")
	}
	if err != nil {
		return model.ScoredOutcome{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	out := s.engine.Evaluate(rec, s.manualThreshold)
	s.stats.manualPredicts.Add(1)
	metrics.RecordPrediction(out.Prediction.String(), "manual")
	s.logger.Debug(ctx, "manual prediction",
		logger.String("student_id", out.StudentID),
		logger.String("prediction", out.Prediction.String()),
	)
	return out, nil
}

// Mirror relays one row straight to the mirror and returns its result.
func (s *Service) Mirror(ctx context.Context, row mirror.Row) (mirror.AppendResult, error) {
	if err := row.Validate(); err != nil {
		return mirror.AppendResult{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	res, err := s.appender.Append(ctx, row)
	switch {
	case err == nil:
		metrics.RecordMirrorSync("success")
	case errors.Is(err, mirror.ErrNotConfigured):
		metrics.RecordMirrorSync("disabled")
	default:
		metrics.RecordMirrorSync("failure")
		s.logger.Warn(ctx, "mirror relay failed", logger.String("student_id", row.StudentID), logger.Error(err))
	}
	return res, err
}

// Batch returns the stored records of one batch.
func (s *Service) Batch(ctx context.Context, batchID string) ([]model.PredictionRecord, error) {
	return s.store.Batch(ctx, batchID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":          s.started,
		"workerCount":      s.workerCount,
		"queueSize":        s.queueSize,
		"batchThreshold":   s.batchThreshold,
		"manualThreshold":  s.manualThreshold,
		"strictRanges":     s.strict,
		"batchesCompleted": s.stats.batchesCompleted.Load(),
		"batchesFailed":    s.stats.batchesFailed.Load(),
		"batchesRejected":  s.stats.batchesRejected.Load(),
		"recordsScored":    s.stats.recordsScored.Load(),
		"recordsSkipped":   s.stats.recordsSkipped.Load(),
		"manualPredicts":   s.stats.manualPredicts.Load(),
	}

	if s.started {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		stats["queueLength"] = s.queue.Len()
		ps := s.pool.Stats()
		stats["mirrorSucceeded"] = ps.Succeeded.Load()
		stats["mirrorFailed"] = ps.Failed.Load() + s.stats.mirrorRejected.Load()
		if n, err := s.store.Count(ctx); err == nil {
			stats["storedRecords"] = n
		}
	}
	return stats
}
