package lipid

import (
	"github.com/ChrisMcGann/LipidKey/pkg/core"
	"github.com/cockroachdb/errors"
)

// sialic acid count by ganglioside letter code
var sialicCounts = map[byte]int{
	'A': 0, 'M': 1, 'D': 2, 'T': 3, 'Q': 4, 'P': 5, 'H': 6, 'S': 7, 'O': 8,
}

var (
	gangBase   = core.Formula{"C": 6, "H": 11, "O": 5}
	gangHexNAc = core.Formula{"C": 8, "H": 13, "N": 1, "O": 5}
	gangHexose = core.Formula{"C": 6, "H": 10, "O": 5}
	sialicAcid = core.Formula{"C": 11, "H": 17, "N": 1, "O": 8}
)

// isGangliosideName reports whether name has the Gxy[z] shape, without
// checking x and y against the recognized sets.
func isGangliosideName(name string) bool {
	switch {
	case len(name) == 3:
	case len(name) == 4 && name[3] >= 'a' && name[3] <= 'z':
	default:
		return false
	}
	return name[0] == 'G'
}

// GangliosideHeadGroup returns the head group formula for a ganglioside code
// Gxy[z], where x is the sialic acid letter (A=0 … O=8) and y the nuclear core
// structure (1-4). The isomer letter z does not change the formula.
func GangliosideHeadGroup(code string) (core.Formula, error) {
	if !isGangliosideName(code) {
		return nil, errors.Wrapf(ErrInvalidGangliosideCode, "%q does not match Gxy[z]", code)
	}
	x, y := code[1], code[2]
	if y < '1' || y > '4' {
		return nil, errors.WithHint(
			errors.Wrapf(ErrInvalidGangliosideCode, "%q: core structure must be 1-4", code),
			"ganglioside codes look like GM1, GD3, GT1b")
	}
	nSialic, ok := sialicCounts[x]
	if !ok {
		return nil, errors.WithHint(
			errors.Wrapf(ErrInvalidGangliosideCode, "%q: unrecognized sialic acid letter", code),
			"sialic acid letters: A, M, D, T, Q, P, H, S, O")
	}

	r := gangBase.Clone()
	for i := 4 - int(y-'0'); i > 0; i-- {
		if i == 2 {
			r = r.Add(gangHexNAc)
		} else {
			r = r.Add(gangHexose)
		}
	}
	for i := 0; i < nSialic; i++ {
		r = r.Add(sialicAcid)
	}
	return r, nil
}
