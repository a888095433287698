package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/okian/gradecast/internal/adapters/repository"
	service "github.com/okian/gradecast/internal/app"
	"github.com/okian/gradecast/internal/domain/model"
	"github.com/okian/gradecast/pkg/logger"
)

// uploadField is the multipart field carrying the batch file.
const uploadField = "file"

// BatchesHandler handles batch uploads and lookups.
type BatchesHandler struct {
	deps     Dependencies
	maxBytes int64
	logger   logger.Logger
}

// NewBatchesHandler creates a new batches handler.
func NewBatchesHandler(deps Dependencies, maxBytes int64, l logger.Logger) *BatchesHandler {
	return &BatchesHandler{deps: deps, maxBytes: maxBytes, logger: l}
}

type outcomeResponse struct {
	StudentID  string  `json:"studentId"`
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
}

type batchResponse struct {
	BatchID   string              `json:"batchId"`
	Processed int                 `json:"processed"`
	Skipped   int                 `json:"skipped"`
	PassCount int                 `json:"passCount"`
	FailCount int                 `json:"failCount"`
	Message   string              `json:"message"`
	Results   []outcomeResponse   `json:"results"`
	Mirror    model.MirrorSummary `json:"mirror"`
}

func toOutcomeResponses(outcomes []model.ScoredOutcome) []outcomeResponse {
	out := make([]outcomeResponse, len(outcomes))
	for i, o := range outcomes {
		out[i] = outcomeResponse{StudentID: o.StudentID, Prediction: o.Prediction.String(), Confidence: o.Confidence}
	}
	return out
}

// HandleUpload handles POST /api/batches with a multipart "file" field.
func (h *BatchesHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", fmt.Errorf("%w: limit %d bytes", ErrFileTooLarge, h.maxBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrMissingFile, err))
		return
	}
	defer func() { _ = file.Close() }()

	res, err := h.deps.ProcessBatch(r.Context(), header.Filename, file)
	switch {
	case errors.Is(err, service.ErrUnsupportedFile):
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_file", errors.New("please upload a CSV file"))
		return
	case errors.Is(err, service.ErrCommitFailed):
		writeError(w, http.StatusInternalServerError, "commit_failed", err)
		return
	case errors.Is(err, service.ErrReadFailed):
		writeError(w, http.StatusBadRequest, "read_failed", err)
		return
	case err != nil:
		h.logger.Error(r.Context(), "batch upload failed", logger.String("file", header.Filename), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}

	writeJSON(w, http.StatusOK, batchResponse{
		BatchID:   res.ID,
		Processed: len(res.Outcomes),
		Skipped:   res.Skipped,
		PassCount: res.PassCount(),
		FailCount: res.FailCount(),
		Message:   fmt.Sprintf("Successfully processed %d student records", len(res.Outcomes)),
		Results:   toOutcomeResponses(res.Outcomes),
		Mirror:    res.Mirror,
	})
}

// HandleGet handles GET /api/batches/{id}.
func (h *BatchesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	recs, err := h.deps.Batch(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batchId": id, "records": recs})
}
