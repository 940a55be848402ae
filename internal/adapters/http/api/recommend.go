package api

import (
	"context"
	"net/http"

	"github.com/okian/eventrank/internal/domain/model"
	"github.com/okian/eventrank/internal/domain/types"
)

// RecommendDependencies defines the interface for recommendation reads.
type RecommendDependencies interface {
	Recommend(ctx context.Context, userID string, topN int) ([]model.Recommendation, error)
}

// RecommendHandler handles recommendation requests.
type RecommendHandler struct {
	deps         RecommendDependencies
	defaultLimit int
	maxLimit     int
}

// NewRecommendHandler creates a new recommendation handler.
func NewRecommendHandler(deps RecommendDependencies, defaultLimit, maxLimit int) *RecommendHandler {
	return &RecommendHandler{deps: deps, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

type recommendResponse struct {
	UserID string                 `json:"user_id"`
	Items  []types.Recommendation `json:"items"`
}

// HandleGetRecommendations handles GET /recommendations/{user_id}?limit=N.
func (h *RecommendHandler) HandleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_recommendations"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID := pathParam(r, "/recommendations/")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	limit, err := parseLimit(r, h.defaultLimit, h.maxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	recs, err := h.deps.Recommend(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, recommendResponse{UserID: userID, Items: types.FromRecommendations(recs)})
}
