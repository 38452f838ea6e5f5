package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/gaffer/internal/domain/types"
)

// UpdateDependencies defines the interface for triggering rating runs.
type UpdateDependencies interface {
	// TriggerUpdate queues a run. Returns the run id.
	TriggerUpdate(ctx context.Context, reason string) (string, error)
	// RunNow performs a run and waits for its result.
	RunNow(ctx context.Context, reason string) (RunResult, error)
}

// UpdateHandler handles update requests.
type UpdateHandler struct {
	deps UpdateDependencies
}

// NewUpdateHandler creates a new update handler.
func NewUpdateHandler(deps UpdateDependencies) *UpdateHandler {
	return &UpdateHandler{deps: deps}
}

type ackResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
}

// HandlePostUpdate handles POST /update requests. With ?wait=true the run
// result is returned once the run finishes.
func (h *UpdateHandler) HandlePostUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_update"
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	wait, _ := strconv.ParseBool(queryParam(r, "wait"))
	if !wait {
		id, err := h.deps.TriggerUpdate(r.Context(), "api")
		if err != nil {
			writeServiceError(w, op, err)
			return
		}
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", RunID: id})
		return
	}

	res, err := h.deps.RunNow(r.Context(), "api")
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromRunResult(res))
}
