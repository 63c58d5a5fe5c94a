// Package scoring computes Admission Point Scores (APS) from percentage marks.
package scoring

import (
	"context"
	"fmt"
	"sort"

	"github.com/rebooked/apsmatch/internal/domain/eligibility"
	"github.com/rebooked/apsmatch/internal/domain/subject"
)

// Default scoring configuration constants.
const (
	defaultMaxCounted = 6
	minMark           = 0
	maxMark           = 100
)

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithTable resolves subject names against t.
func WithTable(t *subject.Table) Option {
	return func(c *Calculator) {
		if t != nil {
			c.table = t
		}
	}
}

// WithExcluded replaces the subjects that are scored but left out of the total.
func WithExcluded(names ...string) Option {
	return func(c *Calculator) {
		c.excluded = names
	}
}

// WithMaxCounted sets how many of the best subjects make up the total.
// Zero counts every subject.
func WithMaxCounted(n int) Option {
	return func(c *Calculator) {
		if n >= 0 {
			c.maxCounted = n
		}
	}
}

// MarkedSubject is a subject with its final percentage mark.
type MarkedSubject struct {
	Name string `json:"name"`
	Mark int    `json:"mark"`
}

// ScoredSubject is a subject after conversion to APS points.
type ScoredSubject struct {
	Name      string `json:"name"`
	Canonical string `json:"canonical"`
	Mark      int    `json:"mark"`
	Points    int    `json:"points"`
	Counted   bool   `json:"counted"`
}

// Result contains the computed APS for one learner.
type Result struct {
	Total    int             `json:"total"`
	Subjects []ScoredSubject `json:"subjects"`
}

// UserSubjects converts the scored subjects into eligibility input. The APS
// points double as the NSC achievement level.
func (r Result) UserSubjects() []eligibility.UserSubject {
	out := make([]eligibility.UserSubject, len(r.Subjects))
	for i, s := range r.Subjects {
		out[i] = eligibility.UserSubject{Name: s.Name, Level: s.Points, Points: s.Points}
	}
	return out
}

// Scorer computes an APS from marks.
type Scorer interface {
	// Calculate scores subjects, honoring ctx for cancellation.
	Calculate(ctx context.Context, subjects []MarkedSubject) (Result, error)
}

// Calculator implements Scorer with the NSC points staircase.
type Calculator struct {
	table      *subject.Table
	excluded   []string
	maxCounted int
}

// NewCalculator creates a calculator that leaves Life Orientation out of the
// total and counts the best six remaining subjects.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{
		table:      subject.DefaultTable(),
		excluded:   []string{subject.LifeOrientation},
		maxCounted: defaultMaxCounted,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PointsForMark maps a percentage mark to APS points.
func PointsForMark(mark int) int {
	switch {
	case mark >= 80:
		return 7
	case mark >= 70:
		return 6
	case mark >= 60:
		return 5
	case mark >= 50:
		return 4
	case mark >= 40:
		return 3
	case mark >= 30:
		return 2
	default:
		return 1
	}
}

// Calculate scores every subject and sums the counted ones.
func (c *Calculator) Calculate(ctx context.Context, subjects []MarkedSubject) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("context cancelled: %w", err)
	}
	if len(subjects) == 0 {
		return Result{}, ErrNoSubjects
	}

	excluded := make(map[string]struct{}, len(c.excluded))
	for _, name := range c.excluded {
		excluded[subject.Key(c.table.Normalize(name))] = struct{}{}
	}

	res := Result{Subjects: make([]ScoredSubject, 0, len(subjects))}
	seen := make(map[string]struct{}, len(subjects))
	candidates := make([]int, 0, len(subjects))
	for _, s := range subjects {
		canonical := c.table.Normalize(s.Name)
		key := subject.Key(canonical)
		if key == "" {
			return Result{}, fmt.Errorf("%w: subject name is empty", ErrInvalidSubject)
		}
		if s.Mark < minMark || s.Mark > maxMark {
			return Result{}, fmt.Errorf("%w: %s has mark %d", ErrInvalidMark, s.Name, s.Mark)
		}
		if _, dup := seen[key]; dup {
			return Result{}, fmt.Errorf("%w: %s", ErrDuplicateSubject, canonical)
		}
		seen[key] = struct{}{}

		res.Subjects = append(res.Subjects, ScoredSubject{
			Name:      s.Name,
			Canonical: canonical,
			Mark:      s.Mark,
			Points:    PointsForMark(s.Mark),
		})
		if _, skip := excluded[key]; !skip {
			candidates = append(candidates, len(res.Subjects)-1)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return res.Subjects[candidates[i]].Points > res.Subjects[candidates[j]].Points
	})
	if c.maxCounted > 0 && len(candidates) > c.maxCounted {
		candidates = candidates[:c.maxCounted]
	}
	for _, idx := range candidates {
		res.Subjects[idx].Counted = true
		res.Total += res.Subjects[idx].Points
	}
	return res, nil
}
