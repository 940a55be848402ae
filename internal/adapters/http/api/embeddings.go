package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/eventrank/internal/domain/model"
	"github.com/okian/eventrank/internal/domain/types"
)

const maxEmbeddingRequestBytes = 1 << 20

// EmbeddingDependencies defines the interface for queuing embedding refreshes.
type EmbeddingDependencies interface {
	SubmitEventEmbedding(ctx context.Context, e model.EventRecord) (accepted, duplicate bool)
}

// EmbeddingsHandler handles embedding refresh requests.
type EmbeddingsHandler struct {
	deps EmbeddingDependencies
}

// NewEmbeddingsHandler creates a new embeddings handler.
func NewEmbeddingsHandler(deps EmbeddingDependencies) *EmbeddingsHandler {
	return &EmbeddingsHandler{deps: deps}
}

func validateEmbeddingRequest(req types.EmbeddingRequest) error {
	switch {
	case strings.TrimSpace(req.EventID) == "":
		return errors.New("missing event_id")
	case strings.Contains(req.EventID, "/"):
		return errors.New("event_id must not contain '/'")
	case strings.TrimSpace(req.Description) == "" && strings.TrimSpace(req.Title) == "":
		return errors.New("missing description")
	}
	return nil
}

// HandlePostEventEmbedding handles POST /embeddings/events.
func (h *EmbeddingsHandler) HandlePostEventEmbedding(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event_embedding"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req types.EmbeddingRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEmbeddingRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validateEmbeddingRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	e := model.EventRecord{
		ID:          strings.TrimSpace(req.EventID),
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
	}
	resp := types.EmbeddingResponse{Key: e.CacheKey(), Hash: model.ContentHash(e.EmbeddingText())}

	accepted, duplicate := h.deps.SubmitEventEmbedding(r.Context(), e)
	switch {
	case duplicate:
		resp.Status = "duplicate"
		writeJSON(w, http.StatusOK, resp)
	case accepted:
		resp.Status = "accepted"
		writeJSON(w, http.StatusAccepted, resp)
	default:
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
	}
}
