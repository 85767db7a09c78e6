package lipid

import (
	"fmt"

	"github.com/ChrisMcGann/LipidKey/pkg/core"
	"github.com/cockroachdb/errors"
)

// Species is a lipid defined by class, sum composition and modifier. Its
// formula is computed once at construction and never modified.
type Species struct {
	Class string
	NC    int
	NU    int
	Mod   string

	def      ClassDef
	formula  core.Formula
	warnings []string
}

// New constructs a species. Unusual compositions (a sphingoid backbone
// leaving no acyl carbons, a plasmalogen without unsaturation) are recorded
// as warnings rather than errors.
func New(class string, nc, nu int, mod string) (*Species, error) {
	d, err := LookupClass(class)
	if err != nil {
		return nil, err
	}
	if nc < 0 || nu < 0 {
		return nil, errors.Wrapf(ErrInvalidComposition, "%s(%d:%d): counts must be non-negative", class, nc, nu)
	}
	if !d.Accepts(mod) {
		return nil, errors.WithHintf(
			errors.Wrapf(ErrInvalidModifier, "class %s does not accept modifier %q", class, mod),
			"accepted modifiers for %s: %v", class, d.Mods)
	}

	s := &Species{Class: d.Name, NC: nc, NU: nu, Mod: mod, def: d}

	acylC, acylU := nc, nu
	if d.Sphingoid() {
		acylC -= backboneCarbons
		acylU -= backboneUnsaturations
		if acylC < 1 || acylU < 0 {
			s.warn("sum composition (%d:%d) is unusual for sphingolipids with sphingosine backbone (18:1) and may not be valid", nc, nu)
		}
	}

	f := d.Core.Add(acylFormula(d.Chains, acylC, acylU))
	switch mod {
	case ModEther:
		f = f.Add(core.Formula{"O": -1, "H": 2})
	case ModPlasmalogen:
		f = f.Add(core.Formula{"O": -1})
		if nu < 1 {
			s.warn("sum composition (%d:%d) is unusual for plasmalogen", nc, nu)
		}
	}
	s.formula = f
	return s, nil
}

// MustNew is like New but panics on error. Intended for tests and tables.
func MustNew(class string, nc, nu int, mod string) *Species {
	s, err := New(class, nc, nu, mod)
	if err != nil {
		panic(err)
	}
	return s
}

// acylFormula returns the formula contribution of k acyl chains with
// combined composition nc:nu.
func acylFormula(k, nc, nu int) core.Formula {
	c := nc - k
	return core.Formula{"C": c, "H": 2*c + k - 2*nu}
}

func (s *Species) warn(format string, args ...any) {
	s.warnings = append(s.warnings, fmt.Sprintf("%s: ", s.Name())+fmt.Sprintf(format, args...))
}

// Warnings returns the soft warnings raised while building the species.
func (s *Species) Warnings() []string {
	return append([]string(nil), s.warnings...)
}

// Def returns the class definition the species was built from.
func (s *Species) Def() ClassDef {
	return s.def
}

// Formula returns a copy of the species formula.
func (s *Species) Formula() core.Formula {
	return s.formula.Clone()
}

// Monoiso returns the neutral monoisotopic mass rounded to 6 decimals.
func (s *Species) Monoiso() float64 {
	m, err := s.formula.Mass()
	if err != nil {
		// formulas are built from the fixed element table only
		panic(err)
	}
	return core.RoundFloat(m, 6)
}

// AdductMZ returns the m/z of the given adduct ion rounded to 6 decimals.
func (s *Species) AdductMZ(adduct string) (float64, error) {
	mz, err := core.AdductMZ(s.Monoiso(), adduct)
	if err != nil {
		return 0, err
	}
	return core.RoundFloat(mz, 6), nil
}

// Name returns the short name, e.g. "PC(34:1)", "PE(p36:2)", "Cer(d36:1)".
func (s *Species) Name() string {
	return FormatName(s.Class, s.NC, s.NU, s.Mod)
}

// FormatName renders a lipid short name from its parts.
func FormatName(class string, nc, nu int, mod string) string {
	return fmt.Sprintf("%s(%s%d:%d)", class, mod, nc, nu)
}

// MZ is a convenience wrapper building a species and computing one adduct m/z.
func MZ(class string, nc, nu int, mod, adduct string) (float64, error) {
	s, err := New(class, nc, nu, mod)
	if err != nil {
		return 0, err
	}
	return s.AdductMZ(adduct)
}
