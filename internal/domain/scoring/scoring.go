// Package scoring turns a student's field record into a score, a Pass/Fail
// classification and a bounded confidence value.
package scoring

import (
	"math"
	"math/rand/v2"

	"github.com/okian/gradecast/internal/domain/model"
)

// Default confidence configuration constants.
const (
	DefaultConfidenceMin    = 65.0
	DefaultConfidenceMax    = 95.0
	DefaultConfidenceJitter = 10.0
)

// Metric weights. The normalisation factors (/10*15, /10*10, /5*10) scale
// each raw input before weighting and must stay in this form so scores are
// bit-for-bit stable.
const (
	attendanceWeight    = 0.25
	studyHoursWeight    = 0.15
	internalMarksWeight = 0.35
	assignmentsWeight   = 0.15
	activitiesWeight    = 0.10
)

// RandSource yields uniform values in [0, 1).
type RandSource interface {
	Float64() float64
}

// globalSource draws from the concurrency-safe math/rand/v2 top-level source.
type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() } //nolint:gosec // not security sensitive

// Scorer computes outcomes for field records.
type Scorer interface {
	Score(r model.FieldRecord) float64
	Evaluate(r model.FieldRecord, threshold float64) model.ScoredOutcome
}

// Engine implements Scorer with fixed weights and a randomized confidence.
type Engine struct {
	rng           RandSource
	confidenceMin float64
	confidenceMax float64
	jitter        float64
}

// NewEngine creates a scoring engine with configuration options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rng:           globalSource{},
		confidenceMin: DefaultConfidenceMin,
		confidenceMax: DefaultConfidenceMax,
		jitter:        DefaultConfidenceJitter,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Score computes the weighted performance score of a record.
func (e *Engine) Score(r model.FieldRecord) float64 {
	return r.Attendance*attendanceWeight +
		(r.StudyHours/10)*15*studyHoursWeight +
		r.InternalMarks*internalMarksWeight +
		(float64(r.Assignments)/10)*10*assignmentsWeight +
		(float64(r.Activities)/5)*10*activitiesWeight
}

// Classify returns Pass iff score >= threshold.
func (e *Engine) Classify(score, threshold float64) model.Prediction {
	if score >= threshold {
		return model.Pass
	}
	return model.Fail
}

// Confidence perturbs score by a uniform draw in [0, jitter) and clamps the
// result to [min, max]. It is not a function of score alone.
func (e *Engine) Confidence(score float64) float64 {
	c := score + e.rng.Float64()*e.jitter
	if math.IsNaN(c) {
		return e.confidenceMin
	}
	return math.Min(e.confidenceMax, math.Max(e.confidenceMin, c))
}

// Evaluate scores, classifies and attaches a confidence to a record.
func (e *Engine) Evaluate(r model.FieldRecord, threshold float64) model.ScoredOutcome {
	score := e.Score(r)
	return model.ScoredOutcome{
		StudentID:  r.StudentID,
		Score:      score,
		Prediction: e.Classify(score, threshold),
		Confidence: e.Confidence(score),
		Record:     r,
	}
}
