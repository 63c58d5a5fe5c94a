// Package subject canonicalizes school subject names and decides whether one
// subject can stand in for another when checking admission requirements.
package subject

import (
	"fmt"
	"sort"
	"strings"
)

// Mapping is one canonical subject together with the names that mean the same
// thing and the subjects it must never satisfy.
type Mapping struct {
	Canonical string   `json:"canonical"`
	Synonyms  []string `json:"synonyms,omitempty"`
	Excludes  []string `json:"excludes,omitempty"`
}

// Family groups canonical subjects under a generic requirement term. A program
// asking for "English" accepts any member of the English family.
type Family struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type entry struct {
	Mapping
	key      string
	aliases  []string // keys, canonical first
	excludes map[string]struct{}
}

func (e *entry) excludesKey(key string) bool {
	_, ok := e.excludes[key]
	return ok
}

type family struct {
	Family
	key     string
	members map[string]struct{}
}

func (f *family) has(canonicalKey string) bool {
	_, ok := f.members[canonicalKey]
	return ok
}

// Table is an immutable lookup of canonical subjects. Every alias belongs to
// exactly one entry, so resolution never depends on declaration order.
// A Table is safe for concurrent use.
type Table struct {
	entries  []*entry
	byAlias  map[string]*entry
	families map[string]*family
	order    []*family
	memberOf map[string]*family
}

// NewTable validates mappings and families and builds a Table.
func NewTable(mappings []Mapping, families []Family) (*Table, error) {
	t := &Table{
		entries:  make([]*entry, 0, len(mappings)),
		byAlias:  make(map[string]*entry),
		families: make(map[string]*family, len(families)),
		memberOf: make(map[string]*family),
	}

	canonical := make(map[string]*entry, len(mappings))
	for _, m := range mappings {
		key := Key(m.Canonical)
		if key == "" {
			return nil, fmt.Errorf("%w: canonical name", ErrEmptyName)
		}
		if _, dup := canonical[key]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateCanonical, m.Canonical)
		}
		e := &entry{Mapping: m, key: key, excludes: make(map[string]struct{}, len(m.Excludes))}
		canonical[key] = e
		t.entries = append(t.entries, e)
	}

	for _, e := range t.entries {
		for _, alias := range append([]string{e.Canonical}, e.Synonyms...) {
			ak := Key(alias)
			if ak == "" {
				return nil, fmt.Errorf("%w: synonym of %q", ErrEmptyName, e.Canonical)
			}
			if owner, taken := t.byAlias[ak]; taken {
				if owner == e {
					continue
				}
				return nil, fmt.Errorf("%w: %q claimed by %q and %q", ErrDuplicateAlias, alias, owner.Canonical, e.Canonical)
			}
			t.byAlias[ak] = e
			e.aliases = append(e.aliases, ak)
		}
		for _, ex := range e.Excludes {
			xk := Key(ex)
			if _, ok := canonical[xk]; !ok {
				return nil, fmt.Errorf("%w: %q excludes %q", ErrUnknownExclusion, e.Canonical, ex)
			}
			e.excludes[xk] = struct{}{}
		}
	}

	for _, f := range families {
		fk := Key(f.Name)
		if fk == "" {
			return nil, fmt.Errorf("%w: empty family name", ErrInvalidFamily)
		}
		if owner, taken := t.byAlias[fk]; taken {
			return nil, fmt.Errorf("%w: %q is already an alias of %q", ErrInvalidFamily, f.Name, owner.Canonical)
		}
		if _, dup := t.families[fk]; dup {
			return nil, fmt.Errorf("%w: duplicate family %q", ErrInvalidFamily, f.Name)
		}
		fam := &family{Family: f, key: fk, members: make(map[string]struct{}, len(f.Members))}
		for _, member := range f.Members {
			mk := Key(member)
			if _, ok := canonical[mk]; !ok {
				return nil, fmt.Errorf("%w: %q lists unknown member %q", ErrInvalidFamily, f.Name, member)
			}
			if other, ok := t.memberOf[mk]; ok {
				return nil, fmt.Errorf("%w: %q belongs to %q and %q", ErrInvalidFamily, member, other.Name, f.Name)
			}
			fam.members[mk] = struct{}{}
			t.memberOf[mk] = fam
		}
		t.families[fk] = fam
		t.order = append(t.order, fam)
	}

	return t, nil
}

// MustNewTable is like NewTable but panics on invalid input. It is meant for
// static tables compiled into the binary.
func MustNewTable(mappings []Mapping, families []Family) *Table {
	t, err := NewTable(mappings, families)
	if err != nil {
		panic(err)
	}
	return t
}

// Normalize maps a free-text subject name to its canonical display name.
// Generic family terms resolve to the family name. Unknown names come back
// trimmed with whitespace collapsed and casing untouched.
func (t *Table) Normalize(name string) string {
	key := Key(name)
	if e, ok := t.byAlias[key]; ok {
		return e.Canonical
	}
	if f, ok := t.families[key]; ok {
		return f.Name
	}
	return collapse(name)
}

// Lookup returns the mapping a name resolves to.
func (t *Table) Lookup(name string) (Mapping, bool) {
	e, ok := t.byAlias[Key(name)]
	if !ok {
		return Mapping{}, false
	}
	return e.Mapping, true
}

// Family returns the family when name is a generic requirement term.
func (t *Table) Family(name string) (Family, bool) {
	f, ok := t.families[Key(name)]
	if !ok {
		return Family{}, false
	}
	return f.Family, true
}

// Alternatives lists names that would satisfy a requirement for name:
// synonyms for a mapped subject, members for a family, nothing otherwise.
func (t *Table) Alternatives(name string) []string {
	key := Key(name)
	if e, ok := t.byAlias[key]; ok {
		out := make([]string, 0, len(e.Synonyms)+1)
		if !strings.EqualFold(collapse(name), e.Canonical) {
			out = append(out, e.Canonical)
		}
		return append(out, e.Synonyms...)
	}
	if f, ok := t.families[key]; ok {
		return append([]string(nil), f.Members...)
	}
	return nil
}

// Mappings returns a copy of every entry in declaration order.
func (t *Table) Mappings() []Mapping {
	out := make([]Mapping, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Mapping
	}
	return out
}

// Families returns every family ordered by name.
func (t *Table) Families() []Family {
	out := make([]Family, 0, len(t.order))
	for _, f := range t.order {
		out = append(out, f.Family)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of canonical subjects.
func (t *Table) Len() int { return len(t.entries) }

func (t *Table) entryFor(key string) (*entry, bool) {
	e, ok := t.byAlias[key]
	return e, ok
}

func (t *Table) familyFor(key string) (*family, bool) {
	f, ok := t.families[key]
	return f, ok
}

// belongsTo reports whether key names a member of f, either through its
// canonical entry or by carrying the family term as a word.
func (t *Table) belongsTo(key string, f *family) bool {
	if e, ok := t.byAlias[key]; ok && f.has(e.key) {
		return true
	}
	return hasToken(key, f.key)
}
