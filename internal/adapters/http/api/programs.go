package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/rebooked/apsmatch/internal/domain/catalog"
	"github.com/rebooked/apsmatch/internal/domain/model"
	"github.com/rebooked/apsmatch/internal/domain/scoring"
	"github.com/rebooked/apsmatch/internal/domain/types"
)

// ProgramsDependencies defines what the program handlers need.
type ProgramsDependencies interface {
	Catalog() *catalog.Catalog
	EvaluateProfile(ctx context.Context, p model.Profile) (scoring.Result, []types.ProgramResult, error)
}

// ProgramsHandler serves the catalog and synchronous evaluation.
type ProgramsHandler struct {
	deps ProgramsDependencies
}

// NewProgramsHandler creates a new programs handler.
func NewProgramsHandler(deps ProgramsDependencies) *ProgramsHandler {
	return &ProgramsHandler{deps: deps}
}

type programsResponse struct {
	Programs []catalog.Program `json:"programs"`
	Count    int               `json:"count"`
}

// HandleList handles GET /programs.
func (h *ProgramsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, "api.programs", http.MethodGet) {
		return
	}
	programs := h.deps.Catalog().All()
	writeJSON(w, http.StatusOK, programsResponse{Programs: programs, Count: len(programs)})
}

// HandleGet handles GET /programs/{id}.
func (h *ProgramsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.program"
	if !allow(w, r, op, http.MethodGet) {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/programs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissingID))
		return
	}
	p, err := h.deps.Catalog().Get(id)
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleEvaluate handles POST /programs/evaluate.
func (h *ProgramsHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "api.programs_evaluate"
	if !allow(w, r, op, http.MethodPost) {
		return
	}
	var req evaluateRequest
	if err := decode(w, r, op, &req); err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	aps, programs, err := h.deps.EvaluateProfile(r.Context(), req.profile())
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, evaluateResponse{APS: aps, Programs: programs})
}
