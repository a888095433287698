package repository

import (
	"time"

	"github.com/okian/gradecast/pkg/logger"
)

const defaultTimeout = 10 * time.Second

type settings struct {
	logger logger.Logger
	now    func() time.Time
}

func newSettings(opts ...Option) settings {
	s := settings{logger: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures a Store.
type Option func(*settings)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source used for write timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}
