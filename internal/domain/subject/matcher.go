package subject

import (
	"fmt"
	"strings"
)

// Confidence levels reported by the matcher.
const (
	ConfidenceExact             = 100
	ConfidenceGenericRequired   = 95
	ConfidenceGenericHeld       = 90
	ConfidenceSynonym           = 85
	ConfidenceCanonicalFragment = 75
	ConfidenceLanguageVariant   = 90
	ConfidenceMathsVariant      = 92
	ConfidenceNegative          = 100

	defaultFuzzyConfidence  = 45
	defaultFuzzyLengthRatio = 0.6
)

// Rule names the matcher rule that produced a result.
type Rule string

// Matcher rules in evaluation order.
const (
	RuleExact      Rule = "exact"
	RuleNormalized Rule = "normalized"
	RuleFamily     Rule = "family"
	RuleExclusion  Rule = "exclusion"
	RuleSynonym    Rule = "synonym"
	RuleFragment   Rule = "fragment"
	RuleVariant    Rule = "variant"
	RuleFuzzy      Rule = "fuzzy"
	RuleNone       Rule = "none"
)

// MatchResult is the verdict for one (held subject, required subject) pair.
// A negative verdict is still a result: IsMatch is false and Confidence says
// how sure the matcher is that the subjects differ.
type MatchResult struct {
	IsMatch      bool     `json:"is_match"`
	Confidence   int      `json:"confidence"`
	Reason       string   `json:"reason"`
	Rule         Rule     `json:"rule"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// MatcherOption applies a configuration option to the Matcher.
type MatcherOption func(*Matcher)

// WithTable makes the matcher resolve names against t instead of the default table.
func WithTable(t *Table) MatcherOption {
	return func(m *Matcher) {
		if t != nil {
			m.table = t
		}
	}
}

// WithFuzzyConfidence sets the confidence reported by the containment fallback.
func WithFuzzyConfidence(confidence int) MatcherOption {
	return func(m *Matcher) {
		if confidence > 0 && confidence <= 100 {
			m.fuzzyConfidence = confidence
		}
	}
}

// WithFuzzyLengthRatio sets the minimum shorter/longer length ratio the
// containment fallback accepts.
func WithFuzzyLengthRatio(ratio float64) MatcherOption {
	return func(m *Matcher) {
		if ratio > 0 && ratio <= 1 {
			m.fuzzyLengthRatio = ratio
		}
	}
}

// Matcher decides whether a held subject satisfies a required one. It runs a
// single ranked rule list; the first rule that applies decides the result.
// A Matcher is immutable and safe for concurrent use.
type Matcher struct {
	table            *Table
	fuzzyConfidence  int
	fuzzyLengthRatio float64
}

// NewMatcher creates a matcher over the default table.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		table:            defaultTable,
		fuzzyConfidence:  defaultFuzzyConfidence,
		fuzzyLengthRatio: defaultFuzzyLengthRatio,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Table returns the table the matcher resolves names against.
func (m *Matcher) Table() *Table { return m.table }

// Match reports whether held satisfies required.
func (m *Matcher) Match(held, required string) MatchResult {
	nh, nr := m.table.Normalize(held), m.table.Normalize(required)
	kh, kr := Key(nh), Key(nr)
	if kh == "" || kr == "" {
		return MatchResult{Confidence: ConfidenceNegative, Rule: RuleNone, Reason: "subject name is empty"}
	}

	if kh == kr {
		if strings.EqualFold(collapse(held), collapse(required)) {
			return positive(ConfidenceExact, RuleExact, "exact match")
		}
		return positive(ConfidenceExact, RuleNormalized, fmt.Sprintf("normalized match: both are %s", nr))
	}

	if f, ok := m.table.familyFor(kr); ok && m.table.belongsTo(kh, f) {
		return positive(ConfidenceGenericRequired, RuleFamily, fmt.Sprintf("%s satisfies the %s requirement", nh, f.Name))
	}
	if f, ok := m.table.familyFor(kh); ok && m.table.belongsTo(kr, f) {
		return positive(ConfidenceGenericHeld, RuleFamily, fmt.Sprintf("%s accepted for %s", f.Name, nr))
	}

	eh, hMapped := m.table.entryFor(kh)
	er, rMapped := m.table.entryFor(kr)
	if hMapped && rMapped && (eh.excludesKey(er.key) || er.excludesKey(eh.key)) {
		return m.negative(required, RuleExclusion, fmt.Sprintf("%s cannot be used in place of %s", nh, nr))
	}
	if mathsConflict(kh, kr) {
		return m.negative(required, RuleExclusion, fmt.Sprintf("%s and %s are not interchangeable", nh, nr))
	}

	switch {
	case hMapped && !rMapped:
		if res, ok := partial(eh, kr, nh, nr); ok {
			return res
		}
	case rMapped && !hMapped:
		if res, ok := partial(er, kh, nr, nh); ok {
			return res
		}
	}

	for _, f := range m.table.order {
		if hasToken(kh, f.key) && hasToken(kr, f.key) {
			return positive(ConfidenceLanguageVariant, RuleVariant, fmt.Sprintf("%s and %s are both %s variants", nh, nr, f.Name))
		}
	}
	if isMaths(kh) && isMaths(kr) {
		return positive(ConfidenceMathsVariant, RuleVariant, fmt.Sprintf("%s and %s are both Mathematics variants", nh, nr))
	}

	// Two distinct known subjects never meet through substring overlap.
	if !(hMapped && rMapped) {
		if res, ok := m.fuzzy(kh, kr, nh, nr); ok {
			return res
		}
	}

	return m.negative(required, RuleNone, fmt.Sprintf("%s does not satisfy %s", nh, nr))
}

// partial compares an unmapped key against a mapped entry. mappedName and
// otherName are the display names used in the reason.
func partial(e *entry, other, mappedName, otherName string) (MatchResult, bool) {
	for _, alias := range e.aliases {
		if qualifiedAlias(other, alias) {
			return positive(ConfidenceSynonym, RuleSynonym, fmt.Sprintf("%s recognised as %s", otherName, mappedName)), true
		}
	}
	if containsTokens(e.key, other) {
		return positive(ConfidenceCanonicalFragment, RuleFragment, fmt.Sprintf("%s is part of %s", otherName, mappedName)), true
	}
	return MatchResult{}, false
}

func (m *Matcher) fuzzy(kh, kr, nh, nr string) (MatchResult, bool) {
	short, long := kh, kr
	if len(short) > len(long) {
		short, long = long, short
	}
	if !strings.Contains(long, short) {
		return MatchResult{}, false
	}
	if float64(len(short))/float64(len(long)) <= m.fuzzyLengthRatio {
		return MatchResult{}, false
	}
	return positive(m.fuzzyConfidence, RuleFuzzy,
		fmt.Sprintf("partial name match between %s and %s, please verify", nh, nr)), true
}

func (m *Matcher) negative(required string, rule Rule, reason string) MatchResult {
	return MatchResult{
		IsMatch:      false,
		Confidence:   ConfidenceNegative,
		Rule:         rule,
		Reason:       reason,
		Alternatives: m.table.Alternatives(required),
	}
}

func positive(confidence int, rule Rule, reason string) MatchResult {
	return MatchResult{IsMatch: true, Confidence: confidence, Rule: rule, Reason: reason}
}

// isMaths reports whether a key names some flavour of mathematics.
func isMaths(key string) bool {
	return strings.Contains(key, "math") || strings.Contains(key, "wiskund")
}

func isLiteracy(key string) bool {
	return strings.Contains(key, "literacy") || strings.Contains(key, "mathlit") ||
		hasToken(key, "lit") || strings.Contains(key, "geletterdheid")
}

func isTechnical(key string) bool {
	return hasToken(key, "technical") || hasToken(key, "tech") || hasToken(key, "tegniese")
}

// mathsConflict is the carve-out that keeps Mathematics, Mathematical Literacy
// and Technical Mathematics apart even though all of them look like maths.
func mathsConflict(a, b string) bool {
	if !isMaths(a) || !isMaths(b) {
		return false
	}
	return isLiteracy(a) != isLiteracy(b) || isTechnical(a) != isTechnical(b)
}

var defaultMatcher = NewMatcher()

// Match reports whether held satisfies required using the default matcher.
func Match(held, required string) MatchResult { return defaultMatcher.Match(held, required) }
