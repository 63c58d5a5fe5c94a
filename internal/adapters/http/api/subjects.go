package api

import (
	"net/http"
	"strings"

	"github.com/rebooked/apsmatch/internal/domain/eligibility"
	"github.com/rebooked/apsmatch/internal/domain/subject"
)

// SubjectsHandler exposes the normalizer, matcher and level validator.
type SubjectsHandler struct {
	checker *eligibility.Checker
}

// NewSubjectsHandler creates a new subjects handler.
func NewSubjectsHandler(checker *eligibility.Checker) *SubjectsHandler {
	return &SubjectsHandler{checker: checker}
}

// HandleNormalize handles GET /subjects/normalize?name=.
func (h *SubjectsHandler) HandleNormalize(w http.ResponseWriter, r *http.Request) {
	const op = "api.subjects_normalize"
	if !allow(w, r, op, http.MethodGet) {
		return
	}
	name := r.URL.Query().Get("name")
	if strings.TrimSpace(name) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissingName))
		return
	}
	table := h.checker.Matcher().Table()
	normalized := table.Normalize(name)
	_, known := table.Lookup(normalized)
	if !known {
		_, known = table.Family(normalized)
	}
	writeJSON(w, http.StatusOK, normalizeResponse{Input: name, Normalized: normalized, Known: known})
}

// HandleMatch handles POST /subjects/match.
func (h *SubjectsHandler) HandleMatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.subjects_match"
	if !allow(w, r, op, http.MethodPost) {
		return
	}
	var req matchRequest
	if err := decode(w, r, op, &req); err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, h.checker.Matcher().Match(req.UserSubject, req.RequiredSubject))
}

// HandleLevel handles POST /subjects/level.
func (h *SubjectsHandler) HandleLevel(w http.ResponseWriter, r *http.Request) {
	const op = "api.subjects_level"
	if !allow(w, r, op, http.MethodPost) {
		return
	}
	var req levelRequest
	if err := decode(w, r, op, &req); err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, eligibility.ValidateLevel(req.UserLevel, req.RequiredLevel, req.Subject))
}

type subjectsResponse struct {
	Subjects []subject.Mapping `json:"subjects"`
	Families []subject.Family  `json:"families"`
}

// HandleList handles GET /subjects with the alias table.
func (h *SubjectsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, "api.subjects", http.MethodGet) {
		return
	}
	table := h.checker.Matcher().Table()
	writeJSON(w, http.StatusOK, subjectsResponse{Subjects: table.Mappings(), Families: table.Families()})
}
