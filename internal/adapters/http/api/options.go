package api

import "github.com/okian/gradecast/pkg/logger"

const defaultMaxUploadBytes = 10 << 20

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithAllowedOrigins sets the origins accepted by CORS.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

// WithMaxUploadBytes caps the size of an uploaded batch.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
