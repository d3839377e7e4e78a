// offsets/registry.go

package offsets

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"SigMap/pattern"
	"SigMap/peview"
)

// Match is a primary hit handed to a derivation rule.
type Match struct {
	// RVA is the value recorded for the entry.
	RVA uint32
	// Saves holds every save slot of the hit; Saves[0] is where the
	// pattern matched.
	Saves []uint32
}

// Derived is an extra symbol produced by a derivation rule.
type Derived struct {
	Name string
	RVA  uint32
}

// DerivationRule computes secondary offsets from a primary hit. It may
// return nothing when its own search misses.
type DerivationRule interface {
	Derive(view *peview.View, found *ModuleOffsets, m Match) []Derived
}

// RuleFunc adapts a plain function to DerivationRule.
type RuleFunc func(view *peview.View, found *ModuleOffsets, m Match) []Derived

func (f RuleFunc) Derive(view *peview.View, found *ModuleOffsets, m Match) []Derived {
	return f(view, found, m)
}

// Entry is one named signature.
type Entry struct {
	Name    string
	Pattern *pattern.Pattern
	// Slot selects which save slot becomes the RVA.
	Slot   int
	Derive DerivationRule
}

// Sig declares an entry whose first explicit save is the offset.
func Sig(name, pat string) Entry {
	return Entry{Name: name, Pattern: pattern.MustParse(pat), Slot: 1}
}

// WithRule returns a copy of e that runs rule after a hit.
func (e Entry) WithRule(rule DerivationRule) Entry {
	e.Derive = rule
	return e
}

// AtSlot returns a copy of e that records save slot n instead.
func (e Entry) AtSlot(n int) Entry {
	e.Slot = n
	return e
}

// Registry is the immutable, ordered signature table of one module.
type Registry struct {
	module  string
	entries []Entry
}

// NewRegistry validates entries and freezes them in the given order.
func NewRegistry(module string, entries ...Entry) (*Registry, error) {
	if module == "" {
		return nil, errors.New("registry without module name")
	}

	names := lo.Map(entries, func(e Entry, _ int) string { return e.Name })
	if dups := lo.FindDuplicates(names); len(dups) > 0 {
		return nil, errors.Errorf("%s: duplicate signature names %v", module, dups)
	}

	for _, e := range entries {
		if e.Name == "" {
			return nil, errors.Errorf("%s: signature without a name", module)
		}
		if e.Pattern == nil {
			return nil, errors.Errorf("%s: %s has no pattern", module, e.Name)
		}
		if e.Slot < 0 || e.Slot >= e.Pattern.SaveLen() {
			return nil, errors.Errorf("%s: %s records slot %d but %q fills %d", module, e.Name, e.Slot, e.Pattern, e.Pattern.SaveLen())
		}
		if v, ok := e.Derive.(interface{ validate() error }); ok {
			if err := v.validate(); err != nil {
				return nil, errors.Wrapf(err, "%s: %s", module, e.Name)
			}
		}
	}

	return &Registry{module: module, entries: append([]Entry(nil), entries...)}, nil
}

// MustRegistry is like NewRegistry but panics. Used for the static tables,
// where a bad entry is a programming error.
func MustRegistry(module string, entries ...Entry) *Registry {
	r, err := NewRegistry(module, entries...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Module() string { return r.module }

func (r *Registry) Names() []string {
	return lo.Map(r.entries, func(e Entry, _ int) string { return e.Name })
}

// Missing lists the registered names absent from found, i.e. the stale
// signatures of the last resolve.
func (r *Registry) Missing(found *ModuleOffsets) []string {
	return lo.Filter(r.Names(), func(name string, _ int) bool {
		_, ok := found.Get(name)
		return !ok
	})
}

// fieldRule searches forward from the anchor site and adds a field offset
// relative to the anchor's RVA.
type fieldRule struct {
	name    string
	pattern *pattern.Pattern
	slot    int
}

// FieldFrom derives name = anchor RVA + first save of pat, where pat is
// searched from the anchor's match site to the end of its code section.
// The search has no byte window: the field load may sit in a later function.
func FieldFrom(name, pat string) DerivationRule {
	return fieldRule{name: name, pattern: pattern.MustParse(pat), slot: 1}
}

func (r fieldRule) Derive(view *peview.View, _ *ModuleOffsets, m Match) []Derived {
	saves, ok := view.ScanFrom(r.pattern, m.Saves[0])
	if !ok {
		return nil
	}
	return []Derived{{Name: r.name, RVA: m.RVA + saves[r.slot]}}
}

func (r fieldRule) validate() error {
	if r.name == "" {
		return errors.New("derived field without a name")
	}
	if r.slot < 1 || r.slot >= r.pattern.SaveLen() {
		return errors.Errorf("derived %s reads slot %d but %q fills %d", r.name, r.slot, r.pattern, r.pattern.SaveLen())
	}
	return nil
}
