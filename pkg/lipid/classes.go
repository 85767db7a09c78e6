// Package lipid builds chemical formulas for lipid species from class,
// sum composition and fatty acid modifier, and enumerates theoretical
// lipid libraries.
package lipid

import (
	"sort"
	"strings"

	"github.com/ChrisMcGann/LipidKey/pkg/core"
	"github.com/cockroachdb/errors"
)

// Sentinel errors returned by species construction.
var (
	ErrUnknownClass           = errors.New("unknown lipid class")
	ErrInvalidModifier        = errors.New("invalid fatty acid modifier")
	ErrInvalidGangliosideCode = errors.New("invalid ganglioside code")
	ErrInvalidComposition     = errors.New("invalid sum composition")
)

// Superclass groups lipid classes that share a formula construction rule.
type Superclass string

const (
	Glycerolipid        Superclass = "glycerolipid"
	Glycolipid          Superclass = "glycolipid"
	Glycerophospholipid Superclass = "glycerophospholipid"
	Lysophospholipid    Superclass = "lysoglycerophospholipid"
	Sphingolipid        Superclass = "sphingolipid"
	Ganglioside         Superclass = "ganglioside"
	FattyAcid           Superclass = "fatty acid"
)

// Fatty acid modifiers.
const (
	ModNone        = ""
	ModEther       = "o"
	ModPlasmalogen = "p"
	ModSphingoid   = "d"
)

// Sphingoid backbone contribution already present in the core formula.
const (
	backboneCarbons       = 18
	backboneUnsaturations = 1
)

// ClassDef is one row of the closed lipid class table. Core is the complete
// core formula including the class head group, before acyl chains.
type ClassDef struct {
	Name       string
	Superclass Superclass
	Core       core.Formula
	Chains     int
	Mods       []string
}

// Sphingoid reports whether the class carries an 18:1 sphingoid backbone.
func (c ClassDef) Sphingoid() bool {
	return c.Superclass == Sphingolipid || c.Superclass == Ganglioside
}

// Accepts reports whether mod is a valid modifier for the class.
func (c ClassDef) Accepts(mod string) bool {
	if mod == ModNone {
		return true
	}
	for _, m := range c.Mods {
		if m == mod {
			return true
		}
	}
	return false
}

var (
	etherMods     = []string{ModEther, ModPlasmalogen}
	sphingoidMods = []string{ModSphingoid}

	// shared sphingoid core (no head group)
	sphingoidCore = core.Formula{"C": 19, "H": 35, "N": 1, "O": 3}
)

func def(name string, sc Superclass, chains int, mods []string, f core.Formula) ClassDef {
	return ClassDef{Name: name, Superclass: sc, Core: f, Chains: chains, Mods: mods}
}

func sphingo(name string, head core.Formula) ClassDef {
	return def(name, Sphingolipid, 1, sphingoidMods, sphingoidCore.Add(head))
}

var classTable = func() map[string]ClassDef {
	defs := []ClassDef{
		def("DG", Glycerolipid, 2, nil, core.Formula{"C": 5, "H": 6, "O": 5}),
		def("TG", Glycerolipid, 3, nil, core.Formula{"C": 6, "H": 5, "O": 6}),
		def("MGDG", Glycolipid, 2, nil, core.Formula{"C": 11, "H": 16, "O": 10}),
		def("GlcADG", Glycolipid, 2, nil, core.Formula{"C": 11, "H": 14, "O": 11}),
		def("DGDG", Glycolipid, 2, nil, core.Formula{"C": 17, "H": 26, "O": 15}),

		def("PA", Glycerophospholipid, 2, etherMods, core.Formula{"C": 5, "H": 7, "O": 8, "P": 1}),
		def("PC", Glycerophospholipid, 2, etherMods, core.Formula{"C": 10, "H": 18, "N": 1, "O": 8, "P": 1}),
		def("PE", Glycerophospholipid, 2, etherMods, core.Formula{"C": 7, "H": 12, "N": 1, "O": 8, "P": 1}),
		def("PG", Glycerophospholipid, 2, etherMods, core.Formula{"C": 8, "H": 13, "O": 10, "P": 1}),
		def("LysylPG", Glycerophospholipid, 2, etherMods, core.Formula{"C": 14, "H": 25, "N": 2, "O": 11, "P": 1}),
		def("AlanylPG", Glycerophospholipid, 2, etherMods, core.Formula{"C": 11, "H": 18, "N": 1, "O": 11, "P": 1}),
		def("PI", Glycerophospholipid, 2, etherMods, core.Formula{"C": 11, "H": 17, "O": 13, "P": 1}),
		def("PIP", Glycerophospholipid, 2, etherMods, core.Formula{"C": 11, "H": 18, "O": 16, "P": 2}),
		def("PIP2", Glycerophospholipid, 2, etherMods, core.Formula{"C": 11, "H": 19, "O": 19, "P": 3}),
		def("PIP3", Glycerophospholipid, 2, etherMods, core.Formula{"C": 11, "H": 20, "O": 22, "P": 4}),
		def("PS", Glycerophospholipid, 2, etherMods, core.Formula{"C": 8, "H": 12, "N": 1, "O": 10, "P": 1}),
		def("CL", Glycerophospholipid, 4, nil, core.Formula{"C": 13, "H": 18, "O": 17, "P": 2}),
		def("AcylPG", Glycerophospholipid, 3, nil, core.Formula{"C": 9, "H": 12, "O": 11, "P": 1}),
		def("AcylPE", Glycerophospholipid, 3, nil, core.Formula{"C": 8, "H": 11, "O": 9, "P": 1}),

		def("LPA", Lysophospholipid, 1, etherMods, core.Formula{"C": 4, "H": 8, "O": 7, "P": 1}),
		def("LPC", Lysophospholipid, 1, etherMods, core.Formula{"C": 9, "H": 19, "N": 1, "O": 7, "P": 1}),
		def("LPE", Lysophospholipid, 1, etherMods, core.Formula{"C": 6, "H": 13, "N": 1, "O": 7, "P": 1}),
		def("LPG", Lysophospholipid, 1, etherMods, core.Formula{"C": 7, "H": 14, "O": 9, "P": 1}),
		def("LPI", Lysophospholipid, 1, etherMods, core.Formula{"C": 10, "H": 18, "O": 12, "P": 1}),
		def("LPS", Lysophospholipid, 1, etherMods, core.Formula{"C": 7, "H": 13, "N": 1, "O": 9, "P": 1}),
		def("LCL", Lysophospholipid, 3, nil, core.Formula{"C": 12, "H": 19, "O": 16, "P": 2}),

		sphingo("Cer", core.Formula{"H": 1}),
		sphingo("SM", core.Formula{"C": 5, "H": 13, "N": 1, "O": 3, "P": 1}),
		sphingo("HexCer", core.Formula{"C": 6, "H": 11, "O": 5}),
		sphingo("GlcCer", core.Formula{"C": 6, "H": 11, "O": 5}),

		def("FA", FattyAcid, 1, nil, core.Formula{"C": 1, "H": 1, "O": 2}),
	}
	m := make(map[string]ClassDef, len(defs))
	for _, d := range defs {
		m[d.Name] = d
	}
	return m
}()

// LookupClass returns the definition of a lipid class. Ganglioside names
// (G, a sialic acid letter, a core digit and an optional isomer letter, e.g.
// "GM1" or "GD1a") resolve to a class definition built from their head group.
func LookupClass(name string) (ClassDef, error) {
	if d, ok := classTable[name]; ok {
		return d, nil
	}
	if isGangliosideName(name) {
		head, err := GangliosideHeadGroup(name)
		if err != nil {
			return ClassDef{}, err
		}
		return ClassDef{
			Name:       name,
			Superclass: Ganglioside,
			Core:       sphingoidCore.Add(head),
			Chains:     1,
			Mods:       sphingoidMods,
		}, nil
	}
	return ClassDef{}, errors.WithHintf(
		errors.Wrapf(ErrUnknownClass, "class %q", name),
		"known classes: %s and gangliosides G[AMDTQPHSO][1-4][a-z]", strings.Join(Classes(), " "))
}

// Classes returns the names of all fixed (non-ganglioside) classes, sorted.
func Classes() []string {
	names := make([]string, 0, len(classTable))
	for n := range classTable {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
