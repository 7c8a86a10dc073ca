package intrinsics

import (
	"sort"
	"sync"

	"github.com/wippyai/gpu-runtime/errors"
	"github.com/wippyai/gpu-runtime/ir"
)

// Family groups related catalog entries.
type Family string

const (
	FamilyIndex   Family = "index"
	FamilyWarp    Family = "warp"
	FamilyBarrier Family = "barrier"
	FamilyMath    Family = "math"
	FamilyShuffle Family = "shuffle"
)

var familyOrder = []Family{FamilyIndex, FamilyWarp, FamilyBarrier, FamilyMath, FamilyShuffle}

type lowerFunc func(s *Session, b *ir.Builder, args []ir.Value) (ir.Value, error)

// Intrinsic is one named operation in the catalog.
type Intrinsic struct {
	Name     string
	Family   Family
	Params   []ir.ScalarType
	Result   ir.ScalarType
	Template string // foreign template(s) the entry lowers to
	Doc      string

	// trailing arguments used when the caller omits them
	defaults []ir.Value
	lower    lowerFunc
}

// MinArgs returns the number of arguments a caller must supply.
func (in *Intrinsic) MinArgs() int {
	return len(in.Params) - len(in.defaults)
}

// Catalog is an immutable set of intrinsics.
type Catalog struct {
	byName map[string]*Intrinsic
	names  []string
}

// Lookup returns the intrinsic called name.
func (c *Catalog) Lookup(name string) (*Intrinsic, error) {
	in, ok := c.byName[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseLower, "intrinsic", name)
	}
	return in, nil
}

// Names returns every entry name in registration order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Families returns the families present in the catalog.
func (c *Catalog) Families() []Family {
	seen := make(map[Family]bool)
	for _, in := range c.byName {
		seen[in.Family] = true
	}
	var out []Family
	for _, f := range familyOrder {
		if seen[f] {
			out = append(out, f)
		}
	}
	return out
}

// Family returns the entries of one family in registration order.
func (c *Catalog) Family(f Family) []*Intrinsic {
	var out []*Intrinsic
	for _, n := range c.names {
		if in := c.byName[n]; in.Family == f {
			out = append(out, in)
		}
	}
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.names)
}

// catalogBuilder registers entries from the static tables.
type catalogBuilder struct {
	cat *Catalog
}

func newCatalogBuilder() *catalogBuilder {
	return &catalogBuilder{cat: &Catalog{byName: make(map[string]*Intrinsic)}}
}

func (cb *catalogBuilder) add(in *Intrinsic) {
	if _, dup := cb.cat.byName[in.Name]; dup {
		panic("intrinsics: duplicate entry " + in.Name)
	}
	cb.cat.byName[in.Name] = in
	cb.cat.names = append(cb.cat.names, in.Name)
}

func (cb *catalogBuilder) build() *Catalog {
	return cb.cat
}

var (
	defaultCatalog *Catalog
	catalogOnce    sync.Once
)

// Default returns the catalog built from the package tables.
func Default() *Catalog {
	catalogOnce.Do(func() {
		cb := newCatalogBuilder()
		registerIndex(cb)
		registerWarp(cb)
		registerBarrier(cb)
		registerMath(cb)
		registerShuffle(cb)
		defaultCatalog = cb.build()
	})
	return defaultCatalog
}

// SortedNames returns the catalog names in lexical order.
func SortedNames(c *Catalog) []string {
	names := c.Names()
	sort.Strings(names)
	return names
}
