package api

import (
	"context"
	"net/http"

	"github.com/okian/eventrank/internal/domain/diagnostic"
)

// DiagnosticDependencies defines the interface for diagnostic runs.
type DiagnosticDependencies interface {
	RunDiagnostic(ctx context.Context, userID string) (diagnostic.Report, error)
}

// DiagnosticHandler handles diagnostic requests.
type DiagnosticHandler struct {
	deps DiagnosticDependencies
}

// NewDiagnosticHandler creates a new diagnostic handler.
func NewDiagnosticHandler(deps DiagnosticDependencies) *DiagnosticHandler {
	return &DiagnosticHandler{deps: deps}
}

// HandleGetDiagnostic handles GET /diagnostics/{user_id}.
func (h *DiagnosticHandler) HandleGetDiagnostic(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_diagnostic"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID := pathParam(r, "/diagnostics/")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	rep, err := h.deps.RunDiagnostic(r.Context(), userID)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
