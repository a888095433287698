package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/okian/gradecast/internal/domain/model"
	"github.com/okian/gradecast/internal/domain/records"
)

// ArtifactsHandler serves the downloadable CSV files.
type ArtifactsHandler struct{}

// NewArtifactsHandler creates a new artifacts handler.
func NewArtifactsHandler() *ArtifactsHandler {
	return &ArtifactsHandler{}
}

// HandleTemplate handles GET /api/template.csv.
func (h *ArtifactsHandler) HandleTemplate(w http.ResponseWriter, _ *http.Request) {
	attachment(w, records.TemplateFileName)
	_ = records.WriteTemplate(w)
}

type exportRequest struct {
	Results []outcomeResponse `json:"results"`
}

// HandleExport handles POST /api/exports and returns the results as CSV.
func (h *ArtifactsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if len(req.Results) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", ErrEmptyResults)
		return
	}

	outcomes := make([]model.ScoredOutcome, len(req.Results))
	for i, o := range req.Results {
		outcomes[i] = model.ScoredOutcome{
			StudentID:  o.StudentID,
			Prediction: model.Prediction(o.Prediction),
			Confidence: o.Confidence,
		}
	}
	attachment(w, records.ResultsFileName)
	_ = records.WriteResults(w, outcomes)
}
