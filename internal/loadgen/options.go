package loadgen

import (
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/okian/gradecast/pkg/logger"
)

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithSeed makes the output reproducible.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // synthetic data
	}
}

// WithMalformedEvery cuts every n-th row short. Zero disables it.
func WithMalformedEvery(n int) Option {
	return func(g *Generator) {
		if n >= 0 {
			g.malformedEvery = n
		}
	}
}

// WithIDPrefix sets the student id prefix.
func WithIDPrefix(prefix string) Option {
	return func(g *Generator) {
		if prefix != "" {
			g.idPrefix = prefix
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// ClientOption applies a configuration option to the Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithClientTimeout sets the request timeout of the default HTTP client.
func WithClientTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		if d > 0 {
			cl.http.Timeout = d
		}
	}
}
