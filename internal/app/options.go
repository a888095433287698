package service

import (
	"time"

	"github.com/okian/gradecast/internal/adapters/mirror"
	"github.com/okian/gradecast/internal/adapters/repository"
	"github.com/okian/gradecast/internal/domain/scoring"
	"github.com/okian/gradecast/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the primary store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithMirror sets the mirror appender used by the sync workers and the relay.
func WithMirror(a mirror.Appender) Option {
	return func(s *Service) {
		if a != nil {
			s.appender = a
		}
	}
}

// WithEngine replaces the scoring engine.
func WithEngine(e scoring.Scorer) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithBatchThreshold sets the pass mark for uploaded batches.
func WithBatchThreshold(t float64) Option {
	return func(s *Service) { s.batchThreshold = t }
}

// WithManualThreshold sets the pass mark for single manual predictions.
func WithManualThreshold(t float64) Option {
	return func(s *Service) { s.manualThreshold = t }
}

// WithStrictRanges makes parsing and manual input reject out-of-range values.
func WithStrictRanges(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

// WithWorkerCount sets the number of mirror sync workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the mirror sync queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithJoinTimeout makes ProcessBatch wait up to d for its mirror jobs.
// Zero returns immediately with the jobs still pending.
func WithJoinTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.joinTimeout = d
		}
	}
}

// WithClock sets the time source for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator sets the batch id generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}
