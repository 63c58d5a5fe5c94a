package loadgen

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/rebooked/apsmatch/internal/domain/subject"
	"github.com/rebooked/apsmatch/pkg/logger"
)

// Mark ranges per learner band.
const (
	strongMin  = 70
	strongMax  = 95
	averageMin = 45
	averageMax = 75
	weakMin    = 20
	weakMax    = 50
	bandJitter = 8
)

// Probability weights for the compulsory subject picks.
const (
	pureMathsShare  = 0.65
	mathLitShare    = 0.25
	homeEnglish     = 0.55
	electiveCount   = 3
	mangleThreshold = 0.5
)

var (
	otherLanguages = []string{
		subject.AfrikaansFirstAdd,
		subject.AfrikaansHome,
		subject.IsiZuluFirstAdd,
		subject.IsiZuluHome,
		subject.IsiXhosaFirstAdd,
		subject.IsiXhosaHome,
	}
	electives = []string{
		subject.PhysicalSciences,
		subject.LifeSciences,
		subject.InformationTech,
		subject.ComputerAppsTech,
		"Accounting",
		"Business Studies",
		"Economics",
		"Geography",
		"History",
		"Engineering Graphics and Design",
		"Agricultural Sciences",
		"Tourism",
		"Visual Arts",
	}
)

// Generator produces learner profiles spelled the way learners type them.
// A Generator is not safe for concurrent use.
type Generator struct {
	faker   *gofakeit.Faker
	aliases map[string][]string // canonical -> every accepted spelling
}

// NewGenerator creates a generator. Equal seeds yield equal profiles;
// seed 0 picks a random one.
func NewGenerator(seed uint64) *Generator {
	table := subject.DefaultTable()
	aliases := make(map[string][]string, table.Len())
	for _, m := range table.Mappings() {
		aliases[m.Canonical] = append([]string{m.Canonical}, m.Synonyms...)
	}
	return &Generator{
		faker:   gofakeit.New(seed),
		aliases: aliases,
	}
}

// Generate creates n submissions. Roughly duplicateRatio of them reuse an
// earlier submission's request id and body.
func (g *Generator) Generate(ctx context.Context, n int, duplicateRatio float64) ([]Submission, error) {
	out := make([]Submission, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		if len(out) > 0 && g.faker.Float64() < duplicateRatio {
			out = append(out, out[g.faker.IntRange(0, len(out)-1)])
			continue
		}
		out = append(out, g.Profile())
	}
	logger.Get().Info(ctx, "generated submissions", logger.Int("count", len(out)))
	return out, nil
}

// Profile builds one learner: a maths variant, English, a second language,
// Life Orientation and three electives, none repeated.
func (g *Generator) Profile() Submission {
	lo, hi := g.band()

	canonicals := []string{g.maths(), g.english(), g.faker.RandomString(otherLanguages), subject.LifeOrientation}
	canonicals = append(canonicals, g.pick(electives, electiveCount)...)

	subjects := make([]Subject, 0, len(canonicals))
	for _, c := range canonicals {
		subjects = append(subjects, Subject{
			Name: g.spell(c),
			Mark: clampMark(g.faker.IntRange(lo, hi) + g.faker.IntRange(-bandJitter, bandJitter)),
		})
	}
	return Submission{RequestID: uuid.NewString(), Subjects: subjects}
}

func (g *Generator) band() (int, int) {
	switch g.faker.IntRange(0, 2) {
	case 0:
		return strongMin, strongMax
	case 1:
		return averageMin, averageMax
	default:
		return weakMin, weakMax
	}
}

func (g *Generator) maths() string {
	switch p := g.faker.Float64(); {
	case p < pureMathsShare:
		return subject.Mathematics
	case p < pureMathsShare+mathLitShare:
		return subject.MathematicalLiteracy
	default:
		return subject.TechnicalMathematics
	}
}

func (g *Generator) english() string {
	if g.faker.Float64() < homeEnglish {
		return subject.EnglishHome
	}
	return subject.EnglishFirstAdd
}

// pick returns k distinct entries of from.
func (g *Generator) pick(from []string, k int) []string {
	pool := append([]string(nil), from...)
	for i := len(pool) - 1; i > 0; i-- {
		j := g.faker.IntRange(0, i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:min(k, len(pool))]
}

// spell picks an alias of canonical and sometimes scrambles its casing and spacing.
func (g *Generator) spell(canonical string) string {
	names := g.aliases[canonical]
	if len(names) == 0 {
		return canonical
	}
	name := g.faker.RandomString(names)
	if g.faker.Float64() < mangleThreshold {
		return name
	}
	return g.mangle(name)
}

func (g *Generator) mangle(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == ' ' && g.faker.Bool():
			b.WriteString("  ")
		case g.faker.Bool():
			b.WriteRune(unicode.ToUpper(r))
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	if g.faker.Bool() {
		return " " + b.String() + " "
	}
	return b.String()
}

func clampMark(m int) int {
	return max(0, min(100, m))
}
