// Package identify annotates features with reference lipids by trying
// confidence levels in order until one produces candidates.
package identify

import (
	"strings"

	"github.com/ChrisMcGann/LipidKey/pkg/refdb"
	"github.com/cockroachdb/errors"
)

// Level names one query shape against one reference table.
type Level string

// Confidence levels, highest first.
const (
	MeasuredMZRTCCS    Level = "measured-mz-rt-ccs"
	TheoreticalMZRTCCS Level = "theoretical-mz-rt-ccs"
	MeasuredMZRT       Level = "measured-mz-rt"
	TheoreticalMZRT    Level = "theoretical-mz-rt"
	MeasuredMZCCS      Level = "measured-mz-ccs"
	TheoreticalMZCCS   Level = "theoretical-mz-ccs"
	MeasuredMZ         Level = "measured-mz"
	TheoreticalMZ      Level = "theoretical-mz"

	// Any selects the full cascade.
	Any Level = "any"
)

var (
	ErrUnknownLevel  = errors.New("unknown confidence level")
	ErrInvalidLevels = errors.New("invalid confidence level list")
)

type levelDef struct {
	table refdb.Table
	rt    bool
	ccs   bool
}

var levelDefs = map[Level]levelDef{
	MeasuredMZRTCCS:    {refdb.Measured, true, true},
	TheoreticalMZRTCCS: {refdb.Theoretical, true, true},
	MeasuredMZRT:       {refdb.Measured, true, false},
	TheoreticalMZRT:    {refdb.Theoretical, true, false},
	MeasuredMZCCS:      {refdb.Measured, false, true},
	TheoreticalMZCCS:   {refdb.Theoretical, false, true},
	MeasuredMZ:         {refdb.Measured, false, false},
	TheoreticalMZ:      {refdb.Theoretical, false, false},
}

// cascade is the order tried for Any.
var cascade = []Level{
	MeasuredMZRTCCS, TheoreticalMZRTCCS,
	MeasuredMZRT, TheoreticalMZRT,
	MeasuredMZCCS, TheoreticalMZCCS,
	MeasuredMZ, TheoreticalMZ,
}

// Levels returns every named level in cascade order.
func Levels() []Level {
	return append([]Level(nil), cascade...)
}

// UsesRT reports whether the level constrains retention time.
func (l Level) UsesRT() bool { return levelDefs[l].rt }

// UsesCCS reports whether the level constrains CCS.
func (l Level) UsesCCS() bool { return levelDefs[l].ccs }

// ParseLevel resolves a level name. Any is accepted.
func ParseLevel(name string) (Level, error) {
	l := Level(strings.TrimSpace(name))
	if l == Any {
		return Any, nil
	}
	if _, ok := levelDefs[l]; !ok {
		return "", errors.WithHintf(
			errors.Wrapf(ErrUnknownLevel, "%q", name),
			"valid levels: any, %s", joinLevels(cascade))
	}
	return l, nil
}

func joinLevels(ls []Level) string {
	s := make([]string, len(ls))
	for i, l := range ls {
		s[i] = string(l)
	}
	return strings.Join(s, ", ")
}

// LevelSpec selects the levels tried for each feature. The zero value is
// the Any cascade.
type LevelSpec struct {
	custom []Level
}

// AnyLevel returns the full cascade.
func AnyLevel() LevelSpec {
	return LevelSpec{}
}

// SingleLevel restricts identification to one level. "any" yields the
// cascade.
func SingleLevel(name string) (LevelSpec, error) {
	l, err := ParseLevel(name)
	if err != nil {
		return LevelSpec{}, err
	}
	if l == Any {
		return AnyLevel(), nil
	}
	return LevelSpec{custom: []Level{l}}, nil
}

// CustomLevels tries the given levels in order. The list may not be empty
// or contain "any".
func CustomLevels(names ...string) (LevelSpec, error) {
	if len(names) == 0 {
		return LevelSpec{}, errors.Wrap(ErrInvalidLevels, "empty list")
	}
	spec := LevelSpec{custom: make([]Level, 0, len(names))}
	for _, name := range names {
		l, err := ParseLevel(name)
		if err != nil {
			return LevelSpec{}, errors.Mark(err, ErrInvalidLevels)
		}
		if l == Any {
			return LevelSpec{}, errors.WithHint(
				errors.Wrap(ErrInvalidLevels, `"any" cannot be part of a custom list`),
				`pass "any" on its own to use the full cascade`)
		}
		spec.custom = append(spec.custom, l)
	}
	return spec, nil
}

// ParseLevels parses "any", a single level name or a comma-separated list.
// An empty string is the cascade.
func ParseLevels(s string) (LevelSpec, error) {
	if strings.TrimSpace(s) == "" {
		return AnyLevel(), nil
	}
	parts := strings.Split(s, ",")
	if len(parts) == 1 {
		return SingleLevel(parts[0])
	}
	return CustomLevels(parts...)
}

// IsAny reports whether s selects the full cascade.
func (s LevelSpec) IsAny() bool {
	return len(s.custom) == 0
}

// Plan returns the levels to try in order. includeRT only filters the Any
// cascade; explicit levels are always tried as given.
func (s LevelSpec) Plan(includeRT bool) []Level {
	if !s.IsAny() {
		return append([]Level(nil), s.custom...)
	}
	plan := make([]Level, 0, len(cascade))
	for _, l := range cascade {
		if l.UsesRT() && !includeRT {
			continue
		}
		plan = append(plan, l)
	}
	return plan
}

func (s LevelSpec) String() string {
	if s.IsAny() {
		return string(Any)
	}
	return joinLevels(s.custom)
}
