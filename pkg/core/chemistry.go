// Package core provides chemistry calculations for lipid masses and adduct m/z values
package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Sentinel errors for the fixed chemistry tables.
var (
	ErrUnknownElement = errors.New("unknown element")
	ErrUnknownAdduct  = errors.New("unknown adduct")
)

// Atomic masses (monoisotopic, 6 decimal places)
const (
	MassH  = 1.007825
	MassC  = 12.000000
	MassN  = 14.003074
	MassO  = 15.994915
	MassF  = 18.998403
	MassNa = 22.989770
	MassP  = 30.973763
	MassS  = 31.972072
	MassCl = 34.968853
	MassK  = 38.963708
)

var atomicMasses = map[string]float64{
	"H":  MassH,
	"C":  MassC,
	"N":  MassN,
	"O":  MassO,
	"F":  MassF,
	"Na": MassNa,
	"P":  MassP,
	"S":  MassS,
	"Cl": MassCl,
	"K":  MassK,
}

// AtomicMass returns the monoisotopic mass of a supported element.
func AtomicMass(element string) (float64, error) {
	m, ok := atomicMasses[element]
	if !ok {
		return 0, errors.WithHint(
			errors.Wrapf(ErrUnknownElement, "element %q", element),
			"supported elements: H, C, N, O, F, Na, P, S, Cl, K")
	}
	return m, nil
}

// Formula maps element symbols to atom counts. Counts may be negative while
// combining partial formulas such as adduct deltas.
type Formula map[string]int

// Add returns a new formula holding the element-wise sum of f and others.
func (f Formula) Add(others ...Formula) Formula {
	out := make(Formula, len(f))
	for el, n := range f {
		out[el] = n
	}
	for _, o := range others {
		for el, n := range o {
			out[el] += n
		}
	}
	return out
}

// Clone returns a copy of the formula.
func (f Formula) Clone() Formula {
	return f.Add()
}

// Mass computes the monoisotopic mass of the formula. No rounding is applied.
func (f Formula) Mass() (float64, error) {
	mass := 0.0
	for el, n := range f {
		m, err := AtomicMass(el)
		if err != nil {
			return 0, err
		}
		mass += float64(n) * m
	}
	return mass, nil
}

// IsFinal reports whether every count is non-negative.
func (f Formula) IsFinal() bool {
	for _, n := range f {
		if n < 0 {
			return false
		}
	}
	return true
}

// String renders the formula in Hill order (C, H, then alphabetical),
// omitting zero counts and writing a count of one as the bare symbol.
func (f Formula) String() string {
	var els []string
	for el, n := range f {
		if n != 0 && el != "C" && el != "H" {
			els = append(els, el)
		}
	}
	sort.Strings(els)
	order := append([]string{"C", "H"}, els...)

	var b strings.Builder
	for _, el := range order {
		n := f[el]
		switch {
		case n == 0:
			continue
		case n == 1:
			b.WriteString(el)
		default:
			fmt.Fprintf(&b, "%s%d", el, n)
		}
	}
	return b.String()
}

// FormulaMass computes the monoisotopic mass of a formula.
func FormulaMass(f Formula) (float64, error) {
	return f.Mass()
}

// Adduct describes an MS adduct by its canonical token, the formula change
// relative to the neutral species, and its signed charge.
type Adduct struct {
	Token  string
	Delta  Formula
	Charge int
}

// Polarity returns "pos" or "neg" depending on the sign of the charge.
func (a Adduct) Polarity() string {
	if a.Charge < 0 {
		return "neg"
	}
	return "pos"
}

var adductTable = map[string]Adduct{
	"[M]+":        {Token: "[M]+", Delta: Formula{}, Charge: 1},
	"[M+H]+":      {Token: "[M+H]+", Delta: Formula{"H": 1}, Charge: 1},
	"[M+Na]+":     {Token: "[M+Na]+", Delta: Formula{"Na": 1}, Charge: 1},
	"[M+K]+":      {Token: "[M+K]+", Delta: Formula{"K": 1}, Charge: 1},
	"[M+2K]2+":    {Token: "[M+2K]2+", Delta: Formula{"K": 2}, Charge: 2},
	"[M+NH4]+":    {Token: "[M+NH4]+", Delta: Formula{"N": 1, "H": 4}, Charge: 1},
	"[M+H-H2O]+":  {Token: "[M+H-H2O]+", Delta: Formula{"H": -1, "O": -1}, Charge: 1},
	"[M-H]-":      {Token: "[M-H]-", Delta: Formula{"H": -1}, Charge: -1},
	"[M+HCOO]-":   {Token: "[M+HCOO]-", Delta: Formula{"H": 1, "C": 1, "O": 2}, Charge: -1},
	"[M+CH3COO]-": {Token: "[M+CH3COO]-", Delta: Formula{"H": 3, "C": 2, "O": 2}, Charge: -1},
	"[M-2H]2-":    {Token: "[M-2H]2-", Delta: Formula{"H": -2}, Charge: -2},
	"[M-3H]3-":    {Token: "[M-3H]3-", Delta: Formula{"H": -3}, Charge: -3},
	"[M+Cl]-":     {Token: "[M+Cl]-", Delta: Formula{"Cl": 1}, Charge: -1},
	"[M+2Na-H]+":  {Token: "[M+2Na-H]+", Delta: Formula{"H": -1, "Na": 2}, Charge: 1},
	"[M+2H]2+":    {Token: "[M+2H]2+", Delta: Formula{"H": 2}, Charge: 2},
	"[M+3H]3+":    {Token: "[M+3H]3+", Delta: Formula{"H": 3}, Charge: 3},
}

// LookupAdduct returns the adduct definition for a canonical token.
func LookupAdduct(token string) (Adduct, error) {
	a, ok := adductTable[token]
	if !ok {
		return Adduct{}, errors.WithHintf(
			errors.Wrapf(ErrUnknownAdduct, "adduct %q", token),
			"supported adducts: %s", strings.Join(Adducts(), " "))
	}
	return a, nil
}

// Adducts returns all supported adduct tokens in sorted order.
func Adducts() []string {
	tokens := make([]string, 0, len(adductTable))
	for t := range adductTable {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}

// AdductMZ computes the m/z of an adduct ion from the neutral monoisotopic
// mass: (neutral + mass(delta)) / |charge|.
func AdductMZ(neutralMass float64, token string) (float64, error) {
	a, err := LookupAdduct(token)
	if err != nil {
		return 0, err
	}
	delta, err := a.Delta.Mass()
	if err != nil {
		return 0, err
	}
	z := a.Charge
	if z < 0 {
		z = -z
	}
	return (neutralMass + delta) / float64(z), nil
}

// RoundFloat rounds a float to n decimal places, half to even on the exact
// binary value.
func RoundFloat(val float64, precision int) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(val, 'f', precision, 64), 64)
	return r
}
