package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/gradecast/internal/app"
	"github.com/okian/gradecast/internal/domain/model"
)

// PredictionsHandler handles single manual predictions.
type PredictionsHandler struct {
	deps Dependencies
}

// NewPredictionsHandler creates a new predictions handler.
func NewPredictionsHandler(deps Dependencies) *PredictionsHandler {
	return &PredictionsHandler{deps: deps}
}

// HandlePredict handles POST /api/predictions.
func (h *PredictionsHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	var rec model.FieldRecord
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	out, err := h.deps.Predict(r.Context(), rec)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRecord) {
			writeError(w, http.StatusBadRequest, "invalid_record", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeResponse{
		StudentID:  out.StudentID,
		Prediction: out.Prediction.String(),
		Confidence: out.Confidence,
	})
}
