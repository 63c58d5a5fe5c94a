package api

import (
	"github.com/rebooked/apsmatch/internal/domain/eligibility"
	"github.com/rebooked/apsmatch/internal/domain/model"
	"github.com/rebooked/apsmatch/internal/domain/scoring"
	"github.com/rebooked/apsmatch/internal/domain/types"
)

// Request and response shapes mirror openapi.yaml.

type normalizeResponse struct {
	Input      string `json:"input"`
	Normalized string `json:"normalized"`
	Known      bool   `json:"known"`
}

type matchRequest struct {
	UserSubject     string `json:"user_subject" validate:"required,max=200"`
	RequiredSubject string `json:"required_subject" validate:"required,max=200"`
}

// Levels are not range-checked here; the level validator reports
// out-of-scale levels as data.
type levelRequest struct {
	UserLevel     int    `json:"user_level"`
	RequiredLevel int    `json:"required_level"`
	Subject       string `json:"subject" validate:"required,max=200"`
}

type eligibilityRequest struct {
	UserSubjects     []userSubjectRequest     `json:"user_subjects" validate:"max=30,dive"`
	RequiredSubjects []requiredSubjectRequest `json:"required_subjects" validate:"max=30,dive"`
}

type userSubjectRequest struct {
	Name   string `json:"name" validate:"required,max=200"`
	Level  int    `json:"level"`
	Points int    `json:"points"`
}

type requiredSubjectRequest struct {
	Name       string `json:"name" validate:"required,max=200"`
	Level      int    `json:"level"`
	IsRequired bool   `json:"is_required"`
}

func (r eligibilityRequest) user() []eligibility.UserSubject {
	out := make([]eligibility.UserSubject, len(r.UserSubjects))
	for i, s := range r.UserSubjects {
		out[i] = eligibility.UserSubject{Name: s.Name, Level: s.Level, Points: s.Points}
	}
	return out
}

func (r eligibilityRequest) required() []eligibility.RequiredSubject {
	out := make([]eligibility.RequiredSubject, len(r.RequiredSubjects))
	for i, s := range r.RequiredSubjects {
		out[i] = eligibility.RequiredSubject{Name: s.Name, Level: s.Level, IsRequired: s.IsRequired}
	}
	return out
}

type markedSubjectRequest struct {
	Name string `json:"name" validate:"required,max=200"`
	Mark *int   `json:"mark" validate:"required,min=0,max=100"`
}

type apsRequest struct {
	Subjects []markedSubjectRequest `json:"subjects" validate:"required,min=1,max=30,dive"`
}

type evaluateRequest struct {
	Subjects   []markedSubjectRequest `json:"subjects" validate:"required,min=1,max=30,dive"`
	ProgramIDs []string               `json:"program_ids" validate:"max=100,dive,required"`
}

type submitRequest struct {
	RequestID  string                 `json:"request_id" validate:"max=128"`
	Subjects   []markedSubjectRequest `json:"subjects" validate:"required,min=1,max=30,dive"`
	ProgramIDs []string               `json:"program_ids" validate:"max=100,dive,required"`
}

func marks(in []markedSubjectRequest) []scoring.MarkedSubject {
	out := make([]scoring.MarkedSubject, len(in))
	for i, s := range in {
		out[i] = scoring.MarkedSubject{Name: s.Name, Mark: *s.Mark}
	}
	return out
}

func (r evaluateRequest) profile() model.Profile {
	return model.Profile{Subjects: marks(r.Subjects), ProgramIDs: r.ProgramIDs}
}

func (r submitRequest) profile() model.Profile {
	return model.Profile{Subjects: marks(r.Subjects), ProgramIDs: r.ProgramIDs}
}

type evaluateResponse struct {
	APS      scoring.Result        `json:"aps"`
	Programs []types.ProgramResult `json:"programs"`
}

type submitResponse struct {
	ID        string       `json:"id"`
	Status    model.Status `json:"status"`
	Duplicate bool         `json:"duplicate"`
}
