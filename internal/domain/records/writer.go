package records

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/okian/gradecast/internal/domain/model"
)

// File names offered for the downloadable artifacts.
const (
	TemplateFileName = "student_data_template.csv"
	ResultsFileName  = "prediction_results.csv"
)

// ResultsHeader is the header of the exported results file.
var ResultsHeader = []string{"Student_ID", "Prediction", "Confidence"}

var templateRows = [][]string{
	{"STU001", "85", "20", "75", "8", "3"},
	{"STU002", "65", "10", "55", "5", "1"},
}

// WriteTemplate writes a blank input file: the header plus two sample rows.
func WriteTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write template header: %w", err)
	}
	if err := cw.WriteAll(templateRows); err != nil {
		return fmt.Errorf("write template rows: %w", err)
	}
	return nil
}

// WriteResults exports outcomes in input order with confidence at one decimal.
func WriteResults(w io.Writer, outcomes []model.ScoredOutcome) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ResultsHeader); err != nil {
		return fmt.Errorf("write results header: %w", err)
	}
	for _, o := range outcomes {
		row := []string{o.StudentID, o.Prediction.String(), strconv.FormatFloat(o.Confidence, 'f', 1, 64)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write result %s: %w", o.StudentID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush results: %w", err)
	}
	return nil
}
