// Package catalog holds the university programs learners are evaluated against.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/rebooked/apsmatch/internal/domain/eligibility"
)

//go:embed programs.yaml
var defaultPrograms []byte

// Program is one admission offering with its APS and subject requirements.
type Program struct {
	ID         string                        `json:"id" koanf:"id"`
	Name       string                        `json:"name" koanf:"name"`
	University string                        `json:"university" koanf:"university"`
	Faculty    string                        `json:"faculty,omitempty" koanf:"faculty"`
	MinAPS     int                           `json:"min_aps" koanf:"min_aps"`
	Subjects   []eligibility.RequiredSubject `json:"subjects" koanf:"subjects"`
}

type document struct {
	Programs []Program `koanf:"programs"`
}

// Catalog is an immutable, validated set of programs keyed by ID.
type Catalog struct {
	programs []Program
	byID     map[string]int
}

// New validates programs and builds a Catalog. Programs keep their given order.
func New(programs []Program) (*Catalog, error) {
	c := &Catalog{
		programs: make([]Program, 0, len(programs)),
		byID:     make(map[string]int, len(programs)),
	}
	for _, p := range programs {
		p.ID = strings.TrimSpace(p.ID)
		if err := validate(p); err != nil {
			return nil, err
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate program id %q", ErrInvalidCatalog, p.ID)
		}
		c.byID[p.ID] = len(c.programs)
		c.programs = append(c.programs, p)
	}
	return c, nil
}

func validate(p Program) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: program id must not be empty", ErrInvalidCatalog)
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: program %q has no name", ErrInvalidCatalog, p.ID)
	case p.MinAPS < 0:
		return fmt.Errorf("%w: program %q has negative min_aps", ErrInvalidCatalog, p.ID)
	}
	for _, s := range p.Subjects {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("%w: program %q lists a subject without a name", ErrInvalidCatalog, p.ID)
		}
		if s.Level < eligibility.MinLevel || s.Level > eligibility.MaxLevel {
			return fmt.Errorf("%w: program %q requires %s at level %d", ErrInvalidCatalog, p.ID, s.Name, s.Level)
		}
	}
	return nil
}

// Load reads the catalog from a YAML file, or the built-in catalog when path is empty.
func Load(ctx context.Context, path string) (*Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	k := koanf.New(".")
	var provider koanf.Provider = bytesProvider(defaultPrograms)
	if path != "" {
		provider = file.Provider(path)
	}
	if err := k.Load(provider, yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadCatalog, err)
	}

	var doc document
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadCatalog, err)
	}
	if len(doc.Programs) == 0 {
		return nil, fmt.Errorf("%w: no programs defined", ErrInvalidCatalog)
	}
	return New(doc.Programs)
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Load(context.Background(), "")
	if err != nil {
		panic(err)
	}
	return c
}

// All returns every program in catalog order.
func (c *Catalog) All() []Program {
	return append([]Program(nil), c.programs...)
}

// Get returns the program with the given ID.
func (c *Catalog) Get(id string) (Program, error) {
	idx, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return Program{}, fmt.Errorf("%w: %s", ErrProgramNotFound, id)
	}
	return c.programs[idx], nil
}

// Select returns the programs for ids, or every program when ids is empty.
func (c *Catalog) Select(ids []string) ([]Program, error) {
	if len(ids) == 0 {
		return c.All(), nil
	}
	out := make([]Program, 0, len(ids))
	var missing []string
	for _, id := range ids {
		p, err := c.Get(id)
		if errors.Is(err, ErrProgramNotFound) {
			missing = append(missing, id)
			continue
		}
		out = append(out, p)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s", ErrProgramNotFound, strings.Join(missing, ", "))
	}
	return out, nil
}

// Len returns the number of programs.
func (c *Catalog) Len() int { return len(c.programs) }

// bytesProvider feeds an in-memory YAML document to koanf.
type bytesProvider []byte

func (b bytesProvider) ReadBytes() ([]byte, error) { return b, nil }

func (b bytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("catalog bytes provider does not support Read")
}
