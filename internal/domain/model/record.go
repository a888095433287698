// Package model contains domain models passed between layers.
package model

import "time"

// FieldRecord is one student's raw inputs for one evaluation.
// The validate tags describe the documented domains; they are enforced only
// when strict range checking is enabled.
type FieldRecord struct {
	StudentID     string  `json:"studentId" validate:"required"`
	Attendance    float64 `json:"attendance" validate:"gte=0,lte=100"`
	StudyHours    float64 `json:"studyHours" validate:"gte=0,lte=168"`
	InternalMarks float64 `json:"internalMarks" validate:"gte=0,lte=100"`
	Assignments   int     `json:"assignments" validate:"gte=0,lte=10"`
	Activities    int     `json:"activities" validate:"gte=0,lte=5"`
}

// Prediction is the Pass/Fail label derived from a score.
type Prediction string

// Prediction labels.
const (
	Pass Prediction = "Pass"
	Fail Prediction = "Fail"
)

func (p Prediction) String() string { return string(p) }

// ScoredOutcome is the classification derived from a FieldRecord.
type ScoredOutcome struct {
	StudentID  string      `json:"studentId"`
	Score      float64     `json:"-"`
	Prediction Prediction  `json:"prediction"`
	Confidence float64     `json:"confidence"`
	Record     FieldRecord `json:"-"`
}

// PredictionRecord is the durable row written to the primary store.
type PredictionRecord struct {
	BatchID       string     `json:"batch_id" bson:"batch_id"`
	Seq           int        `json:"seq" bson:"seq"`
	StudentID     string     `json:"student_id" bson:"student_id"`
	Attendance    float64    `json:"attendance" bson:"attendance"`
	StudyHours    float64    `json:"study_hours" bson:"study_hours"`
	InternalMarks float64    `json:"internal_marks" bson:"internal_marks"`
	Assignments   int        `json:"assignments" bson:"assignments"`
	Activities    int        `json:"activities" bson:"activities"`
	Prediction    Prediction `json:"prediction" bson:"prediction"`
	Confidence    float64    `json:"confidence" bson:"confidence"`
	CreatedAt     time.Time  `json:"created_at" bson:"created_at"`
}

// NewPredictionRecord flattens an outcome into its stored form.
func NewPredictionRecord(batchID string, seq int, o ScoredOutcome, at time.Time) PredictionRecord {
	return PredictionRecord{
		BatchID:       batchID,
		Seq:           seq,
		StudentID:     o.StudentID,
		Attendance:    o.Record.Attendance,
		StudyHours:    o.Record.StudyHours,
		InternalMarks: o.Record.InternalMarks,
		Assignments:   o.Record.Assignments,
		Activities:    o.Record.Activities,
		Prediction:    o.Prediction,
		Confidence:    o.Confidence,
		CreatedAt:     at,
	}
}
