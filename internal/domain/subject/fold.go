package subject

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Key folds a free-text subject name into its lookup form: lowercase, accents
// stripped, "&" spelled out, punctuation dropped and whitespace collapsed.
// "Natuur- en Skeikunde" and "natuur en skeikunde" share a key.
func Key(name string) string {
	// Transformers carry state, so each call builds its own chain.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	lower := strings.ToLower(name)
	folded, _, err := transform.String(stripMarks, lower)
	if err != nil {
		folded = lower
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r == '&':
			b.WriteString(" and ")
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// collapse trims and collapses internal whitespace while keeping the caller's casing.
func collapse(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// containsTokens reports whether the tokens of needle appear contiguously in haystack.
// Both arguments must already be keys.
func containsTokens(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

// hasToken reports whether key contains tok as a whole word.
func hasToken(key, tok string) bool {
	for _, f := range strings.Fields(key) {
		if f == tok {
			return true
		}
	}
	return false
}

// Tokens that only say which sitting or paper a mark came from.
var qualifierTokens = map[string]struct{}{
	"paper": {}, "grade": {}, "gr": {}, "nsc": {}, "matric": {},
	"final": {}, "exam": {}, "hg": {}, "sg": {},
}

// qualifiedAlias reports whether key is alias, optionally followed by
// qualifier tokens such as "paper 2" or "grade 12". Both must be keys.
func qualifiedAlias(key, alias string) bool {
	if key == alias {
		return true
	}
	rest, ok := strings.CutPrefix(key, alias+" ")
	if !ok {
		return false
	}
	for _, tok := range strings.Fields(rest) {
		if !isQualifier(tok) {
			return false
		}
	}
	return true
}

func isQualifier(tok string) bool {
	if _, ok := qualifierTokens[tok]; ok {
		return true
	}
	// "12", "2024", "p1"
	digits := strings.TrimPrefix(tok, "p")
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
