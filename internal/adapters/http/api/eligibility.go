package api

import (
	"context"
	"net/http"

	"github.com/rebooked/apsmatch/internal/domain/eligibility"
	"github.com/rebooked/apsmatch/internal/domain/scoring"
)

// EligibilityDependencies defines what the eligibility handlers need.
type EligibilityDependencies interface {
	Checker() *eligibility.Checker
	CalculateAPS(ctx context.Context, subjects []scoring.MarkedSubject) (scoring.Result, error)
}

// EligibilityHandler checks ad-hoc requirement lists and scores marks.
type EligibilityHandler struct {
	deps EligibilityDependencies
}

// NewEligibilityHandler creates a new eligibility handler.
func NewEligibilityHandler(deps EligibilityDependencies) *EligibilityHandler {
	return &EligibilityHandler{deps: deps}
}

// HandleEligibility handles POST /eligibility.
func (h *EligibilityHandler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	const op = "api.eligibility"
	if !allow(w, r, op, http.MethodPost) {
		return
	}
	var req eligibilityRequest
	if err := decode(w, r, op, &req); err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Checker().Check(req.user(), req.required()))
}

// HandleAPS handles POST /aps.
func (h *EligibilityHandler) HandleAPS(w http.ResponseWriter, r *http.Request) {
	const op = "api.aps"
	if !allow(w, r, op, http.MethodPost) {
		return
	}
	var req apsRequest
	if err := decode(w, r, op, &req); err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	res, err := h.deps.CalculateAPS(r.Context(), marks(req.Subjects))
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
