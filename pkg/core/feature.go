// Package core provides the data models and validation logic for lipidomics
// feature tables used by LipidKey.
package core

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
)

// Feature represents a single LC-IM-MS feature with its per-sample intensities.
type Feature struct {
	MZ          float64
	RT          float64 // retention time (min)
	CCS         float64 // collision cross section (Å²)
	Intensities []float64
}

// Identification is the annotation assigned to one feature. Candidates and
// Scores are parallel and sorted together by descending score.
type Identification struct {
	Candidates []string
	Level      string
	Scores     []float64
}

// Identified reports whether the feature matched at any level.
func (id Identification) Identified() bool {
	return id.Level != ""
}

// Best returns the top candidate label.
func (id Identification) Best() string {
	if len(id.Candidates) == 0 {
		return ""
	}
	return id.Candidates[0]
}

// ValidationError represents an error found during feature validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Validate checks that a feature carries usable coordinates and intensities.
func (f *Feature) Validate() error {
	errs := f.coordinateErrors()
	for i, v := range f.Intensities {
		if !isFinite(v) || v < 0 {
			errs = append(errs, fmt.Sprintf("intensity %d must be a non-negative number", i))
		}
	}
	return validationError(errs)
}

// ValidateCoordinates checks m/z, retention time and CCS only. Intensities
// are not read during identification.
func (f *Feature) ValidateCoordinates() error {
	return validationError(f.coordinateErrors())
}

func (f *Feature) coordinateErrors() []string {
	var errs []string
	if !isFinite(f.MZ) || f.MZ <= 0 {
		errs = append(errs, "m/z must be a positive number")
	}
	if !isFinite(f.RT) || f.RT < 0 {
		errs = append(errs, "retention time must be non-negative")
	}
	if !isFinite(f.CCS) || f.CCS < 0 {
		errs = append(errs, "CCS must be non-negative")
	}
	return errs
}

func validationError(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{
		Field:   "Feature",
		Message: strings.Join(errs, "; "),
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Dataset holds a feature table together with sample grouping, normalized
// intensities and the identifications of the last successful batch.
type Dataset struct {
	Features []Feature
	ESIMode  string // "pos", "neg" or empty

	groupOrder []string
	groups     map[string][]int
	normed     [][]float64

	mu  sync.RWMutex
	ids []Identification
}

// NewDataset creates a dataset, checking that every feature has the same
// number of samples.
func NewDataset(features []Feature, esiMode string) (*Dataset, error) {
	switch esiMode {
	case "", "pos", "neg":
	default:
		return nil, errors.WithHint(errors.Newf("invalid ESI mode %q", esiMode), "use pos, neg or leave unset")
	}
	if len(features) > 0 {
		n := len(features[0].Intensities)
		for i, f := range features {
			if len(f.Intensities) != n {
				return nil, errors.Newf("feature %d has %d intensities, expected %d", i, len(f.Intensities), n)
			}
		}
	}
	return &Dataset{Features: features, ESIMode: esiMode}, nil
}

// NumSamples returns the number of intensity columns.
func (d *Dataset) NumSamples() int {
	if len(d.Features) == 0 {
		return 0
	}
	return len(d.Features[0].Intensities)
}

// AssignGroups maps group names to sample column indices.
func (d *Dataset) AssignGroups(names []string, indices [][]int) error {
	if len(names) != len(indices) {
		return errors.Newf("got %d group names but %d index lists", len(names), len(indices))
	}
	n := d.NumSamples()
	groups := make(map[string][]int, len(names))
	for i, name := range names {
		if _, dup := groups[name]; dup {
			return errors.Newf("duplicate group name %q", name)
		}
		for _, idx := range indices[i] {
			if idx < 0 || idx >= n {
				return errors.Newf("group %q: sample index %d out of range [0, %d)", name, idx, n)
			}
		}
		groups[name] = append([]int(nil), indices[i]...)
	}
	d.groupOrder = append([]string(nil), names...)
	d.groups = groups
	return nil
}

// Groups returns the assigned group names in assignment order.
func (d *Dataset) Groups() []string {
	return append([]string(nil), d.groupOrder...)
}

// GroupData returns the intensities (normalized if available) of the samples
// in a group, one row per feature.
func (d *Dataset) GroupData(name string, normalized bool) ([][]float64, error) {
	idx, ok := d.groups[name]
	if !ok {
		return nil, errors.Newf("unknown group %q", name)
	}
	if normalized && d.normed == nil {
		return nil, errors.New("dataset has not been normalized")
	}
	out := make([][]float64, len(d.Features))
	for i, f := range d.Features {
		src := f.Intensities
		if normalized {
			src = d.normed[i]
		}
		row := make([]float64, len(idx))
		for j, k := range idx {
			row[j] = src[k]
		}
		out[i] = row
	}
	return out, nil
}

// Normalize divides each sample column by its weight.
func (d *Dataset) Normalize(weights []float64) error {
	if len(weights) != d.NumSamples() {
		return errors.Newf("got %d weights for %d samples", len(weights), d.NumSamples())
	}
	for i, w := range weights {
		if !isFinite(w) || w <= 0 {
			return errors.Newf("weight %d must be positive", i)
		}
	}
	normed := make([][]float64, len(d.Features))
	for i, f := range d.Features {
		row := make([]float64, len(weights))
		floats.DivTo(row, f.Intensities, weights)
		normed[i] = row
	}
	d.normed = normed
	return nil
}

// Normalized reports whether Normalize has been applied.
func (d *Dataset) Normalized() bool {
	return d.normed != nil
}

// Identifications returns a copy of the current identification results,
// or nil if the dataset has never been annotated.
func (d *Dataset) Identifications() []Identification {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.ids == nil {
		return nil
	}
	return append([]Identification(nil), d.ids...)
}

// SetIdentifications replaces all identification results at once.
func (d *Dataset) SetIdentifications(ids []Identification) error {
	if len(ids) != len(d.Features) {
		return errors.Newf("got %d identifications for %d features", len(ids), len(d.Features))
	}
	d.mu.Lock()
	d.ids = append([]Identification(nil), ids...)
	d.mu.Unlock()
	return nil
}
