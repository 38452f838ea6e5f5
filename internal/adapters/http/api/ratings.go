package api

import (
	"context"
	"net/http"
)

// RatingsDependencies defines the interface for rating table reads.
type RatingsDependencies interface {
	TopN(ctx context.Context, n int, league string) ([]Entry, error)
}

// RatingsHandler handles rating table requests.
type RatingsHandler struct {
	deps     RatingsDependencies
	maxLimit int
}

// NewRatingsHandler creates a new ratings handler.
func NewRatingsHandler(deps RatingsDependencies, maxLimit int) *RatingsHandler {
	return &RatingsHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetRatings handles GET /ratings?limit=N&league=L requests.
func (h *RatingsHandler) HandleGetRatings(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ratings"
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	n, err := parseLimit(r, h.maxLimit, h.maxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	entries, err := h.deps.TopN(r.Context(), n, queryParam(r, "league"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
