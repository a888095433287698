package mirror

import (
	"net/http"
	"strings"
	"time"

	"github.com/okian/gradecast/pkg/logger"
	"golang.org/x/time/rate"
)

// Default client settings.
const (
	DefaultBaseURL    = "https://sheets.googleapis.com"
	DefaultRange      = "Sheet1!A:I"
	DefaultTimeout    = 10 * time.Second
	DefaultRatePerSec = 5
)

// Option configures a SheetsClient.
type Option func(*SheetsClient)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *SheetsClient) {
		if c != nil {
			s.http = c
		}
	}
}

// WithBaseURL points the client at another API host.
func WithBaseURL(base string) Option {
	return func(s *SheetsClient) {
		if base != "" {
			s.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithRange sets the A1 range rows are appended to.
func WithRange(rng string) Option {
	return func(s *SheetsClient) {
		if rng != "" {
			s.rng = rng
		}
	}
}

// WithTimeout bounds each append call, retries included.
func WithTimeout(d time.Duration) Option {
	return func(s *SheetsClient) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRetry sets the retry policy. MaxAttempts below 1 means a single attempt.
func WithRetry(cfg RetryConfig) Option {
	return func(s *SheetsClient) {
		if cfg.MaxAttempts < 1 {
			cfg.MaxAttempts = 1
		}
		s.retry = cfg
	}
}

// WithRateLimit caps outgoing requests per second. Zero or less disables limiting.
func WithRateLimit(perSec float64) Option {
	return func(s *SheetsClient) {
		if perSec <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := int(perSec)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *SheetsClient) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(s *SheetsClient) {
		if l != nil {
			s.logger = l
		}
	}
}
