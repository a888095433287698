package scoring

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithRandSource replaces the confidence perturbation source, e.g. to pin it in tests.
func WithRandSource(src RandSource) Option {
	return func(e *Engine) {
		if src != nil {
			e.rng = src
		}
	}
}

// WithConfidenceBounds sets the clamp range for confidence values.
func WithConfidenceBounds(minConfidence, maxConfidence float64) Option {
	return func(e *Engine) {
		if minConfidence <= maxConfidence {
			e.confidenceMin = minConfidence
			e.confidenceMax = maxConfidence
		}
	}
}

// WithConfidenceJitter sets the width of the uniform perturbation added to the score.
func WithConfidenceJitter(jitter float64) Option {
	return func(e *Engine) {
		if jitter >= 0 {
			e.jitter = jitter
		}
	}
}

// FixedSource is a RandSource that always returns the same value.
type FixedSource float64

// Float64 implements RandSource.
func (f FixedSource) Float64() float64 { return float64(f) }
