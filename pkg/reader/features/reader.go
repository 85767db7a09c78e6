// Package features provides a streaming reader for feature tables
package features

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/LipidKey/pkg/core"
	"github.com/cockroachdb/errors"
)

// Reader provides streaming access to comma-separated feature tables. The
// first line is a header; every following line holds mz, rt, ccs and one
// intensity per sample. Empty rt or ccs cells read as 0.
type Reader struct {
	scanner    *bufio.Scanner
	lineNum    int
	columns    int
	current    *core.Feature
	err        error
	headerRead bool
}

// NewReader creates a new feature table reader
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Reader{scanner: s}
}

// Next advances to the next feature. Returns false when no more features or error.
func (r *Reader) Next() bool {
	r.current = nil

	f, err := r.readFeature()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	r.current = f
	return true
}

// Feature returns the current feature
func (r *Reader) Feature() *core.Feature {
	return r.current
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// Samples returns the number of intensity columns, known once the header
// has been read.
func (r *Reader) Samples() int {
	return max(r.columns-3, 0)
}

func (r *Reader) readHeader() error {
	r.headerRead = true
	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}
		r.columns = len(strings.Split(line, ","))
		if r.columns < 3 {
			return errors.WithHint(
				errors.Newf("line %d: header has %d columns, expected at least 3", r.lineNum, r.columns),
				"columns are mz,rt,ccs followed by one column per sample")
		}
		return nil
	}
	if err := r.scanner.Err(); err != nil {
		return errors.Wrap(err, "error reading feature table")
	}
	return io.EOF
}

func (r *Reader) readFeature() (*core.Feature, error) {
	if !r.headerRead {
		if err := r.readHeader(); err != nil {
			return nil, err
		}
	}

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) != r.columns {
			return nil, errors.Newf("line %d: %d fields, header has %d", r.lineNum, len(parts), r.columns)
		}

		f := &core.Feature{Intensities: make([]float64, 0, r.columns-3)}
		var err error
		if f.MZ, err = parseField(parts[0], false); err != nil {
			return nil, errors.Wrapf(err, "line %d: invalid mz", r.lineNum)
		}
		if f.RT, err = parseField(parts[1], true); err != nil {
			return nil, errors.Wrapf(err, "line %d: invalid rt", r.lineNum)
		}
		if f.CCS, err = parseField(parts[2], true); err != nil {
			return nil, errors.Wrapf(err, "line %d: invalid ccs", r.lineNum)
		}
		for i, p := range parts[3:] {
			v, err := parseField(p, false)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: invalid intensity in sample %d", r.lineNum, i+1)
			}
			f.Intensities = append(f.Intensities, v)
		}
		return f, nil
	}

	if err := r.scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading feature table")
	}
	return nil, io.EOF
}

func parseField(s string, optional bool) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" && optional {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// ReadAll reads every feature from r.
func ReadAll(r io.Reader) ([]core.Feature, error) {
	fr := NewReader(r)
	var out []core.Feature
	for fr.Next() {
		out = append(out, *fr.Feature())
	}
	if err := fr.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
