package core

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/interp"
)

// Range is an inclusive numeric interval.
type Range struct {
	Min, Max float64
}

// Around returns the range center ± tol.
func Around(center, tol float64) Range {
	return Range{Min: center - tol, Max: center + tol}
}

// Contains reports whether v lies inside the inclusive range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// RTCalibration maps raw retention times onto a reference scale by
// piecewise-linear interpolation between calibrant points. Outside the
// calibrant range the first and last segments are extended linearly.
type RTCalibration struct {
	raw []float64
	ref []float64
	pl  interp.PiecewiseLinear
}

// NewRTCalibration fits a calibration from paired (raw, reference) points.
func NewRTCalibration(raw, ref []float64) (*RTCalibration, error) {
	if len(raw) != len(ref) {
		return nil, errors.Newf("got %d raw and %d reference retention times", len(raw), len(ref))
	}
	if len(raw) < 2 {
		return nil, errors.New("calibration requires at least 2 points")
	}

	idx := make([]int, len(raw))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return raw[idx[a]] < raw[idx[b]] })

	c := &RTCalibration{
		raw: make([]float64, len(raw)),
		ref: make([]float64, len(ref)),
	}
	for i, k := range idx {
		c.raw[i] = raw[k]
		c.ref[i] = ref[k]
		if i > 0 && c.raw[i] == c.raw[i-1] {
			return nil, errors.Newf("duplicate raw retention time %g", c.raw[i])
		}
	}
	if err := c.pl.Fit(c.raw, c.ref); err != nil {
		return nil, errors.Wrap(err, "failed to fit calibration")
	}
	return c, nil
}

// CalibratedRT returns the calibrated retention time for a raw value.
func (c *RTCalibration) CalibratedRT(rt float64) float64 {
	n := len(c.raw)
	switch {
	case rt < c.raw[0]:
		return extend(c.raw[0], c.ref[0], c.raw[1], c.ref[1], rt)
	case rt > c.raw[n-1]:
		return extend(c.raw[n-2], c.ref[n-2], c.raw[n-1], c.ref[n-1], rt)
	}
	return c.pl.Predict(rt)
}

func extend(x0, y0, x1, y1, x float64) float64 {
	return y0 + (x-x0)*(y1-y0)/(x1-x0)
}

// LoadRTCalibrationCSV reads calibrant points from a CSV (format: raw_rt,ref_rt)
// with one header line.
func LoadRTCalibrationCSV(r io.Reader) (*RTCalibration, error) {
	scanner := bufio.NewScanner(r)

	// Skip header line
	scanner.Scan()

	var raw, ref []float64
	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return nil, errors.Newf("line %d: invalid format, expected 2 comma-separated fields", lineNum)
		}

		x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: invalid raw retention time", lineNum)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: invalid reference retention time", lineNum)
		}
		raw = append(raw, x)
		ref = append(ref, y)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading CSV")
	}

	return NewRTCalibration(raw, ref)
}
