package predict

import (
	"github.com/ChrisMcGann/LipidKey/pkg/lipid"
	"github.com/cockroachdb/errors"
)

// Sample is one measured value used for training.
type Sample struct {
	Class  string
	NC     int
	NU     int
	Mod    string
	Adduct string
	MZ     float64
	Value  float64
}

// CCSQuery is the input to a CCS prediction. A zero MZ is derived from the
// generated species.
type CCSQuery struct {
	Class                string
	NC                   int
	NU                   int
	Mod                  string
	Adduct               string
	MZ                   float64
	IgnoreEncodingErrors bool
}

// CCSPredictor predicts collision cross sections from lipid composition,
// adduct and m/z.
type CCSPredictor struct {
	classes *encoder
	mods    *encoder
	adducts *encoder
	model   *linearModel
	stats   Stats
}

func newCCSEncoders() (*encoder, *encoder, *encoder) {
	return newEncoder("lipid class", CCSClasses), newEncoder("fatty acid modifier", CCSMods), newEncoder("adduct", CCSAdducts)
}

// TrainCCS fits a CCS predictor. Samples whose class, modifier or adduct are
// outside the encoded sets are left out, as are samples without a positive
// value.
func TrainCCS(samples []Sample) (*CCSPredictor, error) {
	p := &CCSPredictor{}
	p.classes, p.mods, p.adducts = newCCSEncoders()

	var (
		x [][]float64
		y []float64
	)
	for _, s := range samples {
		if s.Value <= 0 || s.MZ <= 0 {
			continue
		}
		v, err := p.featurize(s.Class, s.NC, s.NU, s.Mod, s.Adduct, s.MZ, false)
		if err != nil {
			continue
		}
		x = append(x, v)
		y = append(y, s.Value)
	}

	m, stats, err := fitLinear(x, y, DefaultRidge)
	if err != nil {
		return nil, errors.Wrap(err, "failed to train CCS model")
	}
	p.model, p.stats = m, stats
	return p, nil
}

func (p *CCSPredictor) featurize(class string, nc, nu int, mod, adduct string, mz float64, ignore bool) ([]float64, error) {
	cw, mw, aw := p.classes.width(), p.mods.width(), p.adducts.width()
	v := make([]float64, cw+mw+aw+3)
	if err := p.classes.encode(v[:cw], class, ignore); err != nil {
		return nil, err
	}
	if err := p.mods.encode(v[cw:cw+mw], mod, ignore); err != nil {
		return nil, err
	}
	if err := p.adducts.encode(v[cw+mw:cw+mw+aw], adduct, ignore); err != nil {
		return nil, err
	}
	v[cw+mw+aw] = float64(nc)
	v[cw+mw+aw+1] = float64(nu)
	v[cw+mw+aw+2] = mz
	return v, nil
}

// Predict returns the predicted CCS for q.
func (p *CCSPredictor) Predict(q CCSQuery) (float64, error) {
	mz := q.MZ
	if mz == 0 {
		var err error
		if mz, err = lipid.MZ(q.Class, q.NC, q.NU, q.Mod, q.Adduct); err != nil {
			return 0, errors.Wrap(err, "failed to derive m/z for CCS prediction")
		}
	}
	v, err := p.featurize(q.Class, q.NC, q.NU, q.Mod, q.Adduct, mz, q.IgnoreEncodingErrors)
	if err != nil {
		return 0, err
	}
	return p.model.predict(v), nil
}

// Covers reports whether a lipid class is in the encoded set.
func (p *CCSPredictor) Covers(class string) bool {
	return p.classes.has(class)
}

// Stats returns the training fit summary.
func (p *CCSPredictor) Stats() Stats {
	return p.stats
}
