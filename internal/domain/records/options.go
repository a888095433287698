package records

import "github.com/okian/gradecast/pkg/logger"

// Option applies a configuration option to the Parser.
type Option func(*Parser)

// WithStrictRanges makes the parser skip rows whose values fall outside the
// documented domains instead of passing them through.
func WithStrictRanges(strict bool) Option {
	return func(p *Parser) {
		p.strict = strict
	}
}

// WithLogger sets the logger used to report skipped rows at debug level.
func WithLogger(l logger.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}
