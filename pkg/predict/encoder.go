// Package predict fits and evaluates the regression models that attach
// predicted CCS and retention time values to theoretical lipids.
package predict

import (
	"fmt"
	"slices"
)

// Categories the CCS model encodes explicitly.
var (
	CCSClasses = []string{
		"CAR", "CE", "Cer", "DG", "DGDG", "FA", "FAHFA", "GlcCer", "LPC", "LPE", "LPG", "LPS", "MGDG", "PA", "PC", "PE",
		"PEtOH", "PG", "PI", "PS", "SM", "TG",
	}
	CCSMods    = []string{"d", "o", "p"}
	CCSAdducts = []string{
		"[M-2H]2-", "[M-H]-", "[M+2K]2+", "[M+2Na-H]+", "[M+CH3COO]-", "[M+Cl]-", "[M+H-H2O]+", "[M+H]+", "[M+HCOO]-",
		"[M+Na]+", "[M+NH4]+",
	}
)

// Categories the retention time model encodes explicitly.
var (
	RTClasses = []string{
		"PG", "DGDG", "PE", "LPE", "PC", "CL", "PI", "PA", "Cer", "AcylPG", "LysylPG", "GlcCer", "MGDG", "LPG",
		"AcylPE", "SM", "LPC", "PS", "DG", "GlcADG", "AlanylPG", "PIP",
	}
	RTMods = []string{"d", "p"}
)

// EncodingError is returned when a categorical input is outside the set a
// model was trained on.
type EncodingError struct {
	Field string
	Value string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("cannot encode %s %q: not in the trained category set", e.Field, e.Value)
}

// encoder one-hot encodes a fixed, sorted category set. The empty string
// always encodes as all zeros.
type encoder struct {
	field string
	cats  []string
	index map[string]int
}

func newEncoder(field string, cats []string) *encoder {
	sorted := slices.Clone(cats)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	e := &encoder{field: field, cats: sorted, index: make(map[string]int, len(sorted))}
	for i, c := range sorted {
		e.index[c] = i
	}
	return e
}

func (e *encoder) width() int {
	return len(e.cats)
}

func (e *encoder) has(v string) bool {
	_, ok := e.index[v]
	return ok
}

// encode writes the one-hot vector for v into dst, which must be zeroed and
// width() long. Unknown values are an error unless ignore is set, in which
// case dst is left as zeros.
func (e *encoder) encode(dst []float64, v string, ignore bool) error {
	if v == "" {
		return nil
	}
	i, ok := e.index[v]
	if !ok {
		if ignore {
			return nil
		}
		return &EncodingError{Field: e.field, Value: v}
	}
	dst[i] = 1
	return nil
}
