// Package mirror appends scored records to an external spreadsheet. The
// mirror is best effort: callers log its failures and carry on.
package mirror

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/okian/gradecast/internal/domain/model"
)

// Row is one mirrored prediction. Timestamp is assigned at append time when zero.
type Row struct {
	StudentID     string    `json:"student_id"`
	Attendance    float64   `json:"attendance"`
	StudyHours    float64   `json:"study_hours"`
	InternalMarks float64   `json:"internal_marks"`
	Assignments   int       `json:"assignments"`
	Activities    int       `json:"activities"`
	Prediction    string    `json:"prediction"`
	Confidence    float64   `json:"confidence"`
	Timestamp     time.Time `json:"timestamp,omitzero"`
}

// RowFromOutcome builds the mirror row for a scored outcome.
func RowFromOutcome(o model.ScoredOutcome) Row {
	return Row{
		StudentID:     o.StudentID,
		Attendance:    o.Record.Attendance,
		StudyHours:    o.Record.StudyHours,
		InternalMarks: o.Record.InternalMarks,
		Assignments:   o.Record.Assignments,
		Activities:    o.Record.Activities,
		Prediction:    o.Prediction.String(),
		Confidence:    o.Confidence,
	}
}

// Values returns the nine ordered cell values:
// student_id, attendance, study_hours, internal_marks, assignments,
// activities, prediction, confidence (2 decimals), timestamp (RFC3339, UTC).
func (r Row) Values() []string {
	return []string{
		r.StudentID,
		formatNumber(r.Attendance),
		formatNumber(r.StudyHours),
		formatNumber(r.InternalMarks),
		strconv.Itoa(r.Assignments),
		strconv.Itoa(r.Activities),
		r.Prediction,
		strconv.FormatFloat(r.Confidence, 'f', 2, 64),
		r.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// Validate checks the fields a relay caller must supply.
func (r Row) Validate() error {
	if strings.TrimSpace(r.StudentID) == "" {
		return errMissing("student_id")
	}
	if strings.TrimSpace(r.Prediction) == "" {
		return errMissing("prediction")
	}
	return nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// AppendResult describes a successful append.
type AppendResult struct {
	UpdatedRange string `json:"updatedRange,omitempty"`
}

// Appender appends one row to the mirror.
type Appender interface {
	Append(ctx context.Context, row Row) (AppendResult, error)
}

// Disabled is the Appender used when the mirror has no credentials.
type Disabled struct{}

// Append always reports ErrNotConfigured.
func (Disabled) Append(context.Context, Row) (AppendResult, error) {
	return AppendResult{}, ErrNotConfigured
}
