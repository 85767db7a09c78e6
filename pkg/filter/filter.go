// Package filter provides tolerance windows and polarity filters for
// matching features against reference records
package filter

import (
	"math"
	"strings"

	"github.com/ChrisMcGann/LipidKey/pkg/core"
	"github.com/cockroachdb/errors"
)

// ErrInvalidTolerance is returned for malformed tolerance settings.
var ErrInvalidTolerance = errors.New("invalid tolerance")

// Ionization modes.
const (
	ModePos = "pos"
	ModeNeg = "neg"
)

// Config holds matching tolerances
type Config struct {
	TolMZ     float64 // absolute m/z tolerance (Da)
	TolRT     float64 // absolute retention time tolerance (min)
	TolCCSPct float64 // CCS tolerance as a percentage of the feature CCS
	ESIMode   string  // "pos", "neg" or empty for no polarity filter
}

// Validate checks the tolerances. RT and CCS tolerances must be positive
// only when a matching level that uses them will run.
func (c *Config) Validate(useRT, useCCS bool) error {
	if err := checkTol("m/z", c.TolMZ, true); err != nil {
		return err
	}
	if err := checkTol("retention time", c.TolRT, useRT); err != nil {
		return err
	}
	if err := checkTol("CCS", c.TolCCSPct, useCCS); err != nil {
		return err
	}
	if _, err := ParseESIMode(c.ESIMode); err != nil {
		return err
	}
	return nil
}

func checkTol(name string, v float64, required bool) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return errors.Wrapf(ErrInvalidTolerance, "%s tolerance %v must be a finite non-negative number", name, v)
	}
	if required && v == 0 {
		return errors.WithHint(
			errors.Wrapf(ErrInvalidTolerance, "%s tolerance must be positive", name),
			"set a positive tolerance or exclude the levels that use this dimension")
	}
	return nil
}

// ParseESIMode normalizes an ionization mode string.
func ParseESIMode(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "any":
		return "", nil
	case ModePos, "+", "positive":
		return ModePos, nil
	case ModeNeg, "-", "negative":
		return ModeNeg, nil
	}
	return "", errors.WithHint(errors.Newf("invalid ESI mode %q", s), "use pos, neg or leave unset")
}

// CCSTolerance converts the percentage tolerance to an absolute tolerance
// for one feature's CCS.
func (c *Config) CCSTolerance(ccs float64) float64 {
	return c.TolCCSPct * ccs / 100
}

// Window is the set of query ranges for one feature.
type Window struct {
	MZ     core.Range
	RT     core.Range
	CCS    core.Range
	CCSTol float64 // absolute
}

// Window builds the query ranges around a feature. rt is passed separately
// so callers can substitute a calibrated retention time.
func (c *Config) Window(mz, rt, ccs float64) Window {
	ccsTol := c.CCSTolerance(ccs)
	return Window{
		MZ:     core.Around(mz, c.TolMZ),
		RT:     core.Around(rt, c.TolRT),
		CCS:    core.Around(ccs, ccsTol),
		CCSTol: ccsTol,
	}
}

// PolaritySuffix returns the adduct suffix selected by an ionization mode,
// or "" when no polarity filter applies.
func PolaritySuffix(mode string) string {
	switch mode {
	case ModePos:
		return "+"
	case ModeNeg:
		return "-"
	}
	return ""
}

// MatchesPolarity reports whether an adduct token passes the mode filter.
func MatchesPolarity(adduct, mode string) bool {
	suffix := PolaritySuffix(mode)
	return suffix == "" || strings.HasSuffix(adduct, suffix)
}

// ValidFeatures returns the indices of features that pass validation and the
// validation errors of the rest, keyed by index.
func ValidFeatures(features []core.Feature) ([]int, map[int]error) {
	return validate(features, (*core.Feature).Validate)
}

// IdentifiableFeatures is ValidFeatures restricted to m/z, retention time
// and CCS.
func IdentifiableFeatures(features []core.Feature) ([]int, map[int]error) {
	return validate(features, (*core.Feature).ValidateCoordinates)
}

func validate(features []core.Feature, check func(*core.Feature) error) ([]int, map[int]error) {
	var ok []int
	bad := make(map[int]error)
	for i := range features {
		if err := check(&features[i]); err != nil {
			bad[i] = err
			continue
		}
		ok = append(ok, i)
	}
	return ok, bad
}
