package api

import (
	"context"
	"net/http"
)

// HistoryDependencies defines the interface for ledger reads.
type HistoryDependencies interface {
	History(ctx context.Context, team string, limit int) ([]HistoryEntry, error)
}

// HistoryHandler handles match history requests.
type HistoryHandler struct {
	deps     HistoryDependencies
	maxLimit int
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies, maxLimit int) *HistoryHandler {
	return &HistoryHandler{deps: deps, maxLimit: maxLimit}
}

// HandleGetHistory handles GET /history?team=T&limit=N requests. Without a
// team it returns the latest rows across all teams.
func (h *HistoryHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_history"
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	n, err := parseLimit(r, defaultHistoryLimit, h.maxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	rows, err := h.deps.History(r.Context(), queryParam(r, "team"), n)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
