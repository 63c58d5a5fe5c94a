package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/rebooked/apsmatch/internal/domain/model"
)

// EvaluationsDependencies defines what the async evaluation handlers need.
type EvaluationsDependencies interface {
	Submit(ctx context.Context, p model.Profile, requestID string) (model.Evaluation, bool, error)
	Result(ctx context.Context, id string) (model.Evaluation, error)
}

// EvaluationsHandler accepts queued evaluations and serves their results.
type EvaluationsHandler struct {
	deps EvaluationsDependencies
}

// NewEvaluationsHandler creates a new evaluations handler.
func NewEvaluationsHandler(deps EvaluationsDependencies) *EvaluationsHandler {
	return &EvaluationsHandler{deps: deps}
}

// HandleSubmit handles POST /evaluations. A fresh submission answers 202; a
// repeated request_id answers 200 with the original evaluation id.
func (h *EvaluationsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_evaluation"
	if !allow(w, r, op, http.MethodPost) {
		return
	}
	var req submitRequest
	if err := decode(w, r, op, &req); err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}

	e, duplicate, err := h.deps.Submit(r.Context(), req.profile(), strings.TrimSpace(req.RequestID))
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}

	status := http.StatusAccepted
	if duplicate {
		status = http.StatusOK
	}
	w.Header().Set("Location", "/evaluations/"+e.ID)
	writeJSON(w, status, submitResponse{ID: e.ID, Status: e.Status, Duplicate: duplicate})
}

// HandleGet handles GET /evaluations/{id}.
func (h *EvaluationsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_evaluation"
	if !allow(w, r, op, http.MethodGet) {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/evaluations/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissingID))
		return
	}
	e, err := h.deps.Result(r.Context(), id)
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
