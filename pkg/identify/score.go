package identify

import (
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
)

// Norm combines per-dimension residuals.
type Norm string

const (
	NormL1 Norm = "l1"
	NormL2 Norm = "l2"
)

const epsilon = 1e-6

// ParseNorm resolves a norm name; empty means L2.
func ParseNorm(s string) (Norm, error) {
	switch Norm(strings.ToLower(strings.TrimSpace(s))) {
	case "", NormL2:
		return NormL2, nil
	case NormL1:
		return NormL1, nil
	}
	return "", errors.WithHint(errors.Newf("unknown norm %q", s), "use l1 or l2")
}

// residual is the tolerance-normalized deviation of a matched value from the
// query value.
func residual(matched, query, tol float64) float64 {
	d := matched - query
	if tol == 0 {
		if d == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return d / tol
}

// Score converts residuals into a match score; higher is better.
func Score(residuals []float64, norm Norm) float64 {
	var n float64
	switch {
	case len(residuals) == 1:
		n = math.Abs(residuals[0])
	case norm == NormL1:
		n = floats.Norm(residuals, 1)
	default:
		n = floats.Norm(residuals, 2)
	}
	return 1 / max(n, epsilon)
}
