// Package eligibility decides whether a learner's subjects satisfy a
// program's subject requirements.
//
// Every function here is total. Failure is reported as data on the result
// (IsEligible, IsValid, Details) and never as an error.
package eligibility

import "github.com/rebooked/apsmatch/internal/domain/subject"

// Subject levels use the National Senior Certificate 1-7 scale.
const (
	MinLevel = 1
	MaxLevel = 7
)

// UserSubject is a subject the learner holds.
type UserSubject struct {
	Name   string `json:"name"`
	Level  int    `json:"level"`
	Points int    `json:"points,omitempty"`
}

// RequiredSubject is one subject requirement of a program.
type RequiredSubject struct {
	Name       string `json:"name" yaml:"name" koanf:"name"`
	Level      int    `json:"level" yaml:"level" koanf:"level"`
	IsRequired bool   `json:"is_required" yaml:"is_required" koanf:"is_required"`
}

// MatchDetail describes the user subject picked for a requirement.
type MatchDetail struct {
	Required      string       `json:"required"`
	Matched       string       `json:"matched"`
	Confidence    int          `json:"confidence"`
	Reason        string       `json:"reason"`
	Rule          subject.Rule `json:"rule"`
	LevelValid    bool         `json:"level_valid"`
	LevelOutcome  LevelOutcome `json:"level_outcome"`
	UserLevel     int          `json:"user_level"`
	RequiredLevel int          `json:"required_level"`
	Gap           int          `json:"gap,omitempty"`
}

// MissingSubject is a requirement no user subject satisfied.
type MissingSubject struct {
	Name         string   `json:"name"`
	Level        int      `json:"level"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// RequirementCheckResult is the verdict for one set of requirements.
type RequirementCheckResult struct {
	IsEligible      bool             `json:"is_eligible"`
	RequiredCount   int              `json:"required_count"`
	MatchedSubjects []MatchDetail    `json:"matched_subjects"`
	MissingSubjects []MissingSubject `json:"missing_subjects"`
	Details         string           `json:"details"`
}
