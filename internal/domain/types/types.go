// Package types contains common types used across the application
package types

import (
	"sort"

	"github.com/rebooked/apsmatch/internal/domain/eligibility"
)

// ProgramResult is the outcome of evaluating one learner against one program.
type ProgramResult struct {
	Rank         int                                `json:"rank"`
	ProgramID    string                             `json:"program_id"`
	Program      string                             `json:"program"`
	University   string                             `json:"university"`
	MinAPS       int                                `json:"min_aps"`
	APS          int                                `json:"aps"`
	APSMargin    int                                `json:"aps_margin"`
	APSMet       bool                               `json:"aps_met"`
	SubjectsMet  bool                               `json:"subjects_met"`
	Eligible     bool                               `json:"eligible"`
	Requirements eligibility.RequirementCheckResult `json:"requirements"`
}

// RankPrograms orders results eligible first, then by APS margin descending,
// then by program name, and assigns 1-based ranks.
func RankPrograms(results []ProgramResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Eligible != b.Eligible {
			return a.Eligible
		}
		if a.APSMargin != b.APSMargin {
			return a.APSMargin > b.APSMargin
		}
		return a.Program < b.Program
	})
	for i := range results {
		results[i].Rank = i + 1
	}
}
