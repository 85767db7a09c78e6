package lipid

import (
	_ "embed"
	"iter"
	"sync"

	"github.com/ChrisMcGann/LipidKey/pkg/core"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Entry is one generated (species, adduct) combination.
type Entry struct {
	Name   string
	Class  string
	NC     int
	NU     int
	Mod    string
	Adduct string
	MZ     float64

	// Warnings are attached to the first entry of each species only.
	Warnings []string
}

// ClassBounds describes the enumeration of one class/modifier pair.
type ClassBounds struct {
	Class   string
	Mod     string
	NC      [2]int // inclusive
	NU      [2]int // inclusive
	Step    int    // carbon step, 0 means 1
	Adducts []string
	AllNU   bool // disable the chain-length cap on unsaturation
}

// MaxNU returns the unsaturation cap for a carbon count: 6 below 36
// carbons, 12 below 54, 18 otherwise.
func MaxNU(nc int) int {
	switch {
	case nc < 36:
		return 6
	case nc < 54:
		return 12
	default:
		return 18
	}
}

func (b ClassBounds) validate() error {
	d, err := LookupClass(b.Class)
	if err != nil {
		return err
	}
	if !d.Accepts(b.Mod) {
		return errors.Wrapf(ErrInvalidModifier, "class %s does not accept modifier %q", b.Class, b.Mod)
	}
	if b.NC[0] < 0 || b.NU[0] < 0 || b.NC[1] < b.NC[0] || b.NU[1] < b.NU[0] {
		return errors.Wrapf(ErrInvalidComposition, "%s: bounds nc %v nu %v", b.Class, b.NC, b.NU)
	}
	if b.Step < 0 {
		return errors.Newf("%s: carbon step must be positive", b.Class)
	}
	if len(b.Adducts) == 0 {
		return errors.Newf("%s: no adducts", b.Class)
	}
	for _, a := range b.Adducts {
		if _, err := core.LookupAdduct(a); err != nil {
			return err
		}
	}
	return nil
}

// EnumerateClass returns a lazy sequence over every nc, nu and adduct
// within the bounds, in nc-major, nu-second, adduct-minor order. The inputs
// are validated before the sequence is returned; the sequence may be ranged
// over any number of times.
func EnumerateClass(b ClassBounds) (iter.Seq[Entry], error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	step := b.Step
	if step == 0 {
		step = 1
	}
	adducts := append([]string(nil), b.Adducts...)

	return func(yield func(Entry) bool) {
		for nc := b.NC[0]; nc <= b.NC[1]; nc += step {
			nuMax := b.NU[1]
			if !b.AllNU {
				nuMax = min(nuMax, MaxNU(nc))
			}
			for nu := b.NU[0]; nu <= nuMax; nu++ {
				s, err := New(b.Class, nc, nu, b.Mod)
				if err != nil {
					// bounds were validated above
					panic(err)
				}
				warnings := s.Warnings()
				for _, a := range adducts {
					mz, err := s.AdductMZ(a)
					if err != nil {
						panic(err)
					}
					e := Entry{
						Name:     s.Name(),
						Class:    s.Class,
						NC:       nc,
						NU:       nu,
						Mod:      b.Mod,
						Adduct:   a,
						MZ:       mz,
						Warnings: warnings,
					}
					warnings = nil
					if !yield(e) {
						return
					}
				}
			}
		}
	}, nil
}

// Group is one block of classes sharing bounds and adducts.
type Group struct {
	Name    string   `yaml:"name"`
	Classes []string `yaml:"classes"`
	Mods    []string `yaml:"mods"`
	NC      []int    `yaml:"nc"`
	NU      []int    `yaml:"nu"`
	Step    int      `yaml:"step"`
	AllNU   bool     `yaml:"all_nu"`
	Adducts []string `yaml:"adducts"`
}

//go:embed bounds.yaml
var boundsYAML []byte

var loadGroups = sync.OnceValues(func() ([]Group, error) {
	return ParseGroups(boundsYAML)
})

// ParseGroups decodes class groups from YAML.
func ParseGroups(data []byte) ([]Group, error) {
	var doc struct {
		Groups []Group `yaml:"groups"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse generator bounds")
	}
	for _, g := range doc.Groups {
		if len(g.NC) != 2 || len(g.NU) != 2 {
			return nil, errors.Newf("group %q: nc and nu must be [min, max] pairs", g.Name)
		}
	}
	return doc.Groups, nil
}

// DefaultGroups returns the built-in class groups of the theoretical library.
func DefaultGroups() ([]Group, error) {
	return loadGroups()
}

// Expand returns the per class/modifier bounds of a group, class-major.
func (g Group) Expand() []ClassBounds {
	mods := g.Mods
	if len(mods) == 0 {
		mods = []string{ModNone}
	}
	var out []ClassBounds
	for _, c := range g.Classes {
		for _, m := range mods {
			out = append(out, ClassBounds{
				Class:   c,
				Mod:     m,
				NC:      [2]int{g.NC[0], g.NC[1]},
				NU:      [2]int{g.NU[0], g.NU[1]},
				Step:    g.Step,
				Adducts: g.Adducts,
				AllNU:   g.AllNU,
			})
		}
	}
	return out
}

// EnumerateGroups concatenates the enumeration of every class in groups.
// All groups are validated before the sequence is returned.
func EnumerateGroups(groups []Group) (iter.Seq[Entry], error) {
	var seqs []iter.Seq[Entry]
	for _, g := range groups {
		for _, b := range g.Expand() {
			seq, err := EnumerateClass(b)
			if err != nil {
				return nil, errors.Wrapf(err, "group %q", g.Name)
			}
			seqs = append(seqs, seq)
		}
	}
	return func(yield func(Entry) bool) {
		for _, seq := range seqs {
			for e := range seq {
				if !yield(e) {
					return
				}
			}
		}
	}, nil
}

// EnumerateAll returns the full theoretical lipid library.
func EnumerateAll() (iter.Seq[Entry], error) {
	groups, err := DefaultGroups()
	if err != nil {
		return nil, err
	}
	return EnumerateGroups(groups)
}

// Generator enumerates a library and reports soft warnings to a logger.
type Generator struct {
	Groups []Group // nil means DefaultGroups
	Log    *zap.SugaredLogger
}

// All returns the library sequence, logging each species warning once as
// the sequence is consumed.
func (g *Generator) All() (iter.Seq[Entry], error) {
	groups := g.Groups
	if groups == nil {
		var err error
		if groups, err = DefaultGroups(); err != nil {
			return nil, err
		}
	}
	seq, err := EnumerateGroups(groups)
	if err != nil {
		return nil, err
	}
	log := g.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return func(yield func(Entry) bool) {
		for e := range seq {
			for _, w := range e.Warnings {
				log.Warnw("unusual lipid composition", "lipid", e.Name, "warning", w)
			}
			if !yield(e) {
				return
			}
		}
	}, nil
}
