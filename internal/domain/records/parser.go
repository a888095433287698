// Package records reads student field records from tabular text and writes
// the downloadable template and results files.
package records

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/okian/gradecast/internal/domain/model"
	"github.com/okian/gradecast/pkg/logger"
)

// Column layout of the tabular input.
const (
	colStudentID = iota
	colAttendance
	colStudyHours
	colInternalMarks
	colAssignments
	colActivities

	// FieldCount is the minimum number of fields in a data row.
	FieldCount
)

// maxLineBytes caps a single input line.
const maxLineBytes = 1 << 20

// Header is the expected header line. It is written by WriteTemplate but never
// checked on input.
var Header = []string{"Student_ID", "Attendance", "Study_Hours", "Internal_Marks", "Assignments", "Activities"}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared struct validator for model types.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Parser turns one tabular input blob into a lazy sequence of FieldRecord.
// Every line is one row and fields are split on commas; quotes carry no
// meaning. A Parser is single-use: Records yields the rows once.
type Parser struct {
	sc      *bufio.Scanner
	strict  bool
	logger  logger.Logger
	used    bool
	line    int
	skipped int
	err     error
}

// NewParser wraps r.
func NewParser(r io.Reader, opts ...Option) *Parser {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	p := &Parser{sc: sc, logger: logger.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Records yields every well-formed data row in input order. The first
// non-blank line is the header and is discarded. Blank lines are ignored.
// Malformed rows are counted in Skipped and omitted.
func (p *Parser) Records() iter.Seq[model.FieldRecord] {
	return func(yield func(model.FieldRecord) bool) {
		if p.used {
			return
		}
		p.used = true

		ctx := context.Background()
		header := true
		for p.sc.Scan() {
			p.line++
			line := p.sc.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			if header {
				header = false
				continue
			}

			rec, err := p.parseRow(strings.Split(line, ","))
			if err != nil {
				p.skip(ctx, err)
				continue
			}
			if !yield(rec) {
				return
			}
		}
		if err := p.sc.Err(); err != nil {
			p.err = fmt.Errorf("read line %d: %w", p.line+1, err)
		}
	}
}

// Skipped returns how many data rows were dropped so far.
func (p *Parser) Skipped() int { return p.skipped }

// Err returns the first read error that stopped the sequence, if any.
func (p *Parser) Err() error { return p.err }

func (p *Parser) skip(ctx context.Context, err error) {
	p.skipped++
	p.logger.Debug(ctx, "skipping row", logger.Int("line", p.line), logger.Error(err))
}

func (p *Parser) parseRow(row []string) (model.FieldRecord, error) {
	if len(row) < FieldCount {
		return model.FieldRecord{}, fmt.Errorf("%w: got %d, want %d", ErrTooFewFields, len(row), FieldCount)
	}

	rec := model.FieldRecord{StudentID: strings.TrimSpace(row[colStudentID])}
	if rec.StudentID == "" {
		return model.FieldRecord{}, ErrEmptyID
	}

	var err error
	if rec.Attendance, err = parseFloat(row[colAttendance]); err != nil {
		return model.FieldRecord{}, err
	}
	if rec.StudyHours, err = parseFloat(row[colStudyHours]); err != nil {
		return model.FieldRecord{}, err
	}
	if rec.InternalMarks, err = parseFloat(row[colInternalMarks]); err != nil {
		return model.FieldRecord{}, err
	}
	if rec.Assignments, err = parseCount(row[colAssignments]); err != nil {
		return model.FieldRecord{}, err
	}
	if rec.Activities, err = parseCount(row[colActivities]); err != nil {
		return model.FieldRecord{}, err
	}

	if p.strict {
		if err := Validator().Struct(rec); err != nil {
			return model.FieldRecord{}, fmt.Errorf("%w: %w", ErrOutOfRange, err)
		}
	}
	return rec, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrBadNumber, s)
	}
	return v, nil
}

// parseCount accepts integer or decimal text and truncates toward zero.
func parseCount(s string) (int, error) {
	v, err := parseFloat(s)
	if err != nil {
		return 0, err
	}
	if math.Abs(v) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %q", ErrBadNumber, s)
	}
	return int(math.Trunc(v)), nil
}
