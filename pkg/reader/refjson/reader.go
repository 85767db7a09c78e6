// Package refjson reads measured lipid reference datasets stored as JSON
// arrays of {name, adduct, mz, ccs, rt, smi} objects.
package refjson

import (
	"io"
	"os"

	"github.com/ChrisMcGann/LipidKey/pkg/lipid"
	"github.com/ChrisMcGann/LipidKey/pkg/refdb"
	"github.com/cockroachdb/errors"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Source describes one reference dataset and its CCS provenance.
type Source struct {
	Tag       string `mapstructure:"tag"`
	File      string `mapstructure:"file"`
	CCSType   string `mapstructure:"ccs_type"`   // DT, TW or TIMS
	CCSMethod string `mapstructure:"ccs_method"` // free text
	TrainCCS  bool   `mapstructure:"train_ccs"`  // use for CCS predictor training
}

type entry struct {
	Name   string   `json:"name"`
	Adduct string   `json:"adduct"`
	MZ     float64  `json:"mz"`
	CCS    *float64 `json:"ccs"`
	RT     *float64 `json:"rt"`
	SMI    string   `json:"smi"`
}

// adductFixes maps malformed adduct tokens found in published datasets to
// their canonical form.
var adductFixes = map[string]string{
	"[M+]+":      "[M]+",
	"M+NH4]+":    "[M+NH4]+",
	"[M+H]+*":    "[M+H]+",
	"[M+Na]+*":   "[M+Na]+",
	"[M+H20-H]-": "[M+H2O-H]-",
}

// FixAdduct returns the canonical form of a possibly malformed adduct token.
func FixAdduct(adduct string) string {
	if fixed, ok := adductFixes[adduct]; ok {
		return fixed
	}
	return adduct
}

// Result is the outcome of reading one source dataset.
type Result struct {
	Records []refdb.MeasuredRecord
	Skipped []string // names that could not be parsed as lipids
}

// Read decodes a dataset from r. Entries whose name does not parse as a
// lipid are skipped and reported in Result.Skipped.
func Read(r io.Reader, src Source, log *zap.SugaredLogger) (Result, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	var entries []entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return Result{}, errors.Wrapf(err, "failed to decode dataset %s", src.Tag)
	}

	var res Result
	for i, e := range entries {
		if e.Name == "" || e.Adduct == "" || e.MZ <= 0 {
			return Result{}, errors.Newf("dataset %s: entry %d is missing name, adduct or mz", src.Tag, i)
		}
		parsed, err := lipid.Parse(e.Name)
		if err != nil {
			log.Debugw("Skipping unparsable lipid", "name", e.Name, "src_tag", src.Tag)
			res.Skipped = append(res.Skipped, e.Name)
			continue
		}
		res.Records = append(res.Records, refdb.MeasuredRecord{
			Record: refdb.Record{
				Name:   e.Name,
				Class:  parsed.Class,
				NC:     parsed.NC,
				NU:     parsed.NU,
				Mod:    parsed.Mod,
				Adduct: FixAdduct(e.Adduct),
				MZ:     e.MZ,
				CCS:    e.CCS,
				RT:     e.RT,
			},
			SMILES:    e.SMI,
			SrcTag:    src.Tag,
			CCSType:   src.CCSType,
			CCSMethod: src.CCSMethod,
		})
	}

	log.Infow("Read reference dataset",
		"src_tag", src.Tag,
		"records", len(res.Records),
		"skipped", len(res.Skipped),
	)
	return res, nil
}

// ReadFile reads the dataset at src.File.
func ReadFile(src Source, log *zap.SugaredLogger) (Result, error) {
	f, err := os.Open(src.File)
	if err != nil {
		return Result{}, errors.Wrapf(err, "failed to open dataset %s", src.Tag)
	}
	defer f.Close()
	return Read(f, src, log)
}
