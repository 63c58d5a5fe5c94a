// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rebooked/apsmatch/internal/adapters/repository"
	service "github.com/rebooked/apsmatch/internal/app"
	"github.com/rebooked/apsmatch/internal/domain/catalog"
	"github.com/rebooked/apsmatch/internal/domain/eligibility"
	"github.com/rebooked/apsmatch/internal/domain/model"
	"github.com/rebooked/apsmatch/internal/domain/scoring"
	"github.com/rebooked/apsmatch/internal/domain/types"
	"github.com/rebooked/apsmatch/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StatsProvider

	Checker() *eligibility.Checker
	Catalog() *catalog.Catalog

	CalculateAPS(ctx context.Context, subjects []scoring.MarkedSubject) (scoring.Result, error)
	EvaluateProfile(ctx context.Context, p model.Profile) (scoring.Result, []types.ProgramResult, error)

	// Submit queues a profile. duplicate is true when requestID was seen before.
	Submit(ctx context.Context, p model.Profile, requestID string) (e model.Evaluation, duplicate bool, err error)
	Result(ctx context.Context, id string) (model.Evaluation, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	subjectsHandler    *SubjectsHandler
	eligibilityHandler *EligibilityHandler
	programsHandler    *ProgramsHandler
	evaluationsHandler *EvaluationsHandler
	limiter            *RateLimiter
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithRateLimiter limits every business route per client. A nil limiter
// disables limiting.
func WithRateLimiter(l *RateLimiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		subjectsHandler:    NewSubjectsHandler(deps.Checker()),
		eligibilityHandler: NewEligibilityHandler(deps),
		programsHandler:    NewProgramsHandler(deps),
		evaluationsHandler: NewEvaluationsHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(s.limiter.Limit(h, endpoint), endpoint))
	}

	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	route("/stats", "stats", s.statsHandler.HandleStats)

	route("/subjects", "subjects", s.subjectsHandler.HandleList)
	route("/subjects/normalize", "subjects_normalize", s.subjectsHandler.HandleNormalize)
	route("/subjects/match", "subjects_match", s.subjectsHandler.HandleMatch)
	route("/subjects/level", "subjects_level", s.subjectsHandler.HandleLevel)

	route("/eligibility", "eligibility", s.eligibilityHandler.HandleEligibility)
	route("/aps", "aps", s.eligibilityHandler.HandleAPS)

	route("/programs", "programs", s.programsHandler.HandleList)
	route("/programs/evaluate", "programs_evaluate", s.programsHandler.HandleEvaluate)
	route("/programs/", "program", s.programsHandler.HandleGet)

	route("/evaluations", "evaluations", s.evaluationsHandler.HandleSubmit)
	route("/evaluations/", "evaluation", s.evaluationsHandler.HandleGet)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	var ke *kindError
	switch {
	case errors.As(err, &ke):
		msg = ke.public()
	case err != nil:
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps a domain or service error onto a status code.
func writeFailure(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, scoring.ErrNoSubjects),
		errors.Is(err, scoring.ErrInvalidMark),
		errors.Is(err, scoring.ErrInvalidSubject),
		errors.Is(err, scoring.ErrDuplicateSubject),
		errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, catalog.ErrProgramNotFound),
		errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		logger.Get().Named("api").Error(ctx, "request failed",
			logger.String("op", op),
			logger.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%s failed", op))
	}
}

// allow writes a JSON 405 and returns false unless r uses method.
func allow(w http.ResponseWriter, r *http.Request, op, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethodNotAllowed))
	return false
}

// decode reads a JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, op string, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return WrapKind(op, ErrBadRequest, fmt.Errorf("invalid JSON body: %w", err))
	}
	if err := validateStruct(dst); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}
