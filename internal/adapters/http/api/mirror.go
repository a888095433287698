package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/gradecast/internal/adapters/mirror"
	service "github.com/okian/gradecast/internal/app"
)

// MirrorHandler relays single rows to the spreadsheet mirror. Its response
// bodies keep the {success, message, updatedRange} / {error, details} shape
// that browser clients of the relay expect.
type MirrorHandler struct {
	deps Dependencies
}

// NewMirrorHandler creates a new mirror handler.
func NewMirrorHandler(deps Dependencies) *MirrorHandler {
	return &MirrorHandler{deps: deps}
}

type mirrorSuccess struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	UpdatedRange string `json:"updatedRange,omitempty"`
}

type mirrorFailure struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HandleAppend handles POST /api/mirror/rows.
func (h *MirrorHandler) HandleAppend(w http.ResponseWriter, r *http.Request) {
	var row mirror.Row
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		writeJSON(w, http.StatusBadRequest, mirrorFailure{Error: "invalid row", Details: err.Error()})
		return
	}
	// Rows are stamped when appended.
	row.Timestamp = time.Time{}

	res, err := h.deps.Mirror(r.Context(), row)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, mirrorSuccess{Success: true, Message: "Data saved to mirror", UpdatedRange: res.UpdatedRange})
	case errors.Is(err, mirror.ErrNotConfigured):
		writeJSON(w, http.StatusInternalServerError, mirrorFailure{Error: "mirror not configured"})
	case errors.Is(err, service.ErrInvalidRecord):
		writeJSON(w, http.StatusBadRequest, mirrorFailure{Error: "invalid row", Details: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, mirrorFailure{Error: "Failed to save to mirror", Details: err.Error()})
	}
}
