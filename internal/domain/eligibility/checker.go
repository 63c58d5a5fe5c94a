package eligibility

import (
	"fmt"
	"strings"

	"github.com/rebooked/apsmatch/internal/domain/subject"
)

// Default acceptance thresholds for the two match passes.
const (
	DefaultPrimaryThreshold  = 50
	DefaultFallbackThreshold = 40
)

// Option applies a configuration option to the Checker.
type Option func(*Checker)

// WithMatcher sets the subject matcher used to pair requirements with user subjects.
func WithMatcher(m *subject.Matcher) Option {
	return func(c *Checker) {
		if m != nil {
			c.matcher = m
		}
	}
}

// WithPrimaryThreshold sets the minimum confidence accepted by the first pass.
func WithPrimaryThreshold(confidence int) Option {
	return func(c *Checker) {
		if confidence > 0 && confidence <= 100 {
			c.primary = confidence
		}
	}
}

// WithFallbackThreshold sets the minimum confidence accepted when the first
// pass found nothing.
func WithFallbackThreshold(confidence int) Option {
	return func(c *Checker) {
		if confidence > 0 && confidence <= 100 {
			c.fallback = confidence
		}
	}
}

// Checker aggregates subject matches into an eligibility verdict. It is
// immutable and safe for concurrent use.
type Checker struct {
	matcher  *subject.Matcher
	primary  int
	fallback int
}

// NewChecker creates a checker with the default matcher and thresholds.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		matcher:  subject.NewMatcher(),
		primary:  DefaultPrimaryThreshold,
		fallback: DefaultFallbackThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fallback > c.primary {
		c.fallback = c.primary
	}
	return c
}

// Matcher returns the matcher the checker uses.
func (c *Checker) Matcher() *subject.Matcher { return c.matcher }

// Thresholds returns the primary and fallback confidence thresholds.
func (c *Checker) Thresholds() (primary, fallback int) { return c.primary, c.fallback }

// Check evaluates every required entry against the user's subjects. Entries
// with IsRequired unset take no part in the verdict. A single user subject may
// satisfy more than one requirement.
func (c *Checker) Check(user []UserSubject, required []RequiredSubject) RequirementCheckResult {
	res := RequirementCheckResult{
		MatchedSubjects: []MatchDetail{},
		MissingSubjects: []MissingSubject{},
	}

	var (
		levelValid   int
		missing      []string
		insufficient []string
		invalid      []string
	)
	for _, req := range required {
		if !req.IsRequired {
			continue
		}
		res.RequiredCount++

		idx, match, ok := c.best(user, req.Name, c.primary)
		if !ok {
			idx, match, ok = c.best(user, req.Name, c.fallback)
		}
		if !ok {
			res.MissingSubjects = append(res.MissingSubjects, MissingSubject{
				Name:         req.Name,
				Level:        req.Level,
				Alternatives: c.matcher.Table().Alternatives(req.Name),
			})
			missing = append(missing, req.Name)
			continue
		}

		held := user[idx]
		lc := ValidateLevel(held.Level, req.Level, req.Name)
		res.MatchedSubjects = append(res.MatchedSubjects, MatchDetail{
			Required:      req.Name,
			Matched:       held.Name,
			Confidence:    match.Confidence,
			Reason:        match.Reason,
			Rule:          match.Rule,
			LevelValid:    lc.IsValid,
			LevelOutcome:  lc.Outcome,
			UserLevel:     held.Level,
			RequiredLevel: req.Level,
			Gap:           lc.Gap,
		})
		switch lc.Outcome {
		case LevelSufficient:
			levelValid++
		case LevelInsufficient:
			insufficient = append(insufficient, fmt.Sprintf("%s (have %d, need %d)", req.Name, held.Level, req.Level))
		case LevelInvalid:
			invalid = append(invalid, fmt.Sprintf("%s (have %d, need %d)", req.Name, held.Level, req.Level))
		}
	}

	res.IsEligible = len(res.MissingSubjects) == 0 && levelValid == res.RequiredCount
	res.Details = details(res, missing, insufficient, invalid)
	return res
}

// best returns the highest-confidence accepted match at or above threshold.
// Ties keep the first user subject seen.
func (c *Checker) best(user []UserSubject, required string, threshold int) (int, subject.MatchResult, bool) {
	idx := -1
	var top subject.MatchResult
	for i, u := range user {
		m := c.matcher.Match(u.Name, required)
		if !m.IsMatch || m.Confidence < threshold {
			continue
		}
		if idx < 0 || m.Confidence > top.Confidence {
			idx, top = i, m
		}
	}
	return idx, top, idx >= 0
}

func details(res RequirementCheckResult, missing, insufficient, invalid []string) string {
	if res.IsEligible {
		if res.RequiredCount == 0 {
			return "No subject requirements to meet"
		}
		return fmt.Sprintf("All %d required subjects met", res.RequiredCount)
	}
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "Missing: "+strings.Join(missing, ", "))
	}
	if len(insufficient) > 0 {
		parts = append(parts, "Insufficient levels: "+strings.Join(insufficient, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "Invalid levels: "+strings.Join(invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

var defaultChecker = NewChecker()

// Check evaluates requirements with the default checker.
func Check(user []UserSubject, required []RequiredSubject) RequirementCheckResult {
	return defaultChecker.Check(user, required)
}
