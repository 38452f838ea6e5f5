package api

import (
	"context"
	"errors"
	"net/http"
)

// PredictDependencies defines the interface for match expectations.
type PredictDependencies interface {
	Predict(ctx context.Context, home, away string) (Prediction, error)
}

// PredictHandler handles prediction requests.
type PredictHandler struct {
	deps PredictDependencies
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(deps PredictDependencies) *PredictHandler {
	return &PredictHandler{deps: deps}
}

// HandleGetPredict handles GET /predict?home=A&away=B requests.
func (h *PredictHandler) HandleGetPredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_predict"
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	home, away := queryParam(r, "home"), queryParam(r, "away")
	if home == "" || away == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("home and away are required")))
		return
	}
	p, err := h.deps.Predict(r.Context(), home, away)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
