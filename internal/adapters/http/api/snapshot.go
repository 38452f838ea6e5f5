package api

import (
	"context"
	"net/http"
	"time"
)

// SnapshotDependencies defines the interface for point-in-time tables.
type SnapshotDependencies interface {
	Snapshot(ctx context.Context, date time.Time, league string) ([]Entry, error)
}

// SnapshotHandler handles rating snapshot requests.
type SnapshotHandler struct {
	deps SnapshotDependencies
}

// NewSnapshotHandler creates a new snapshot handler.
func NewSnapshotHandler(deps SnapshotDependencies) *SnapshotHandler {
	return &SnapshotHandler{deps: deps}
}

// HandleGetSnapshot handles GET /snapshot?date=YYYY-MM-DD&league=L requests.
func (h *SnapshotHandler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_snapshot"
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	date, err := parseDate(queryParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	entries, err := h.deps.Snapshot(r.Context(), date, queryParam(r, "league"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
