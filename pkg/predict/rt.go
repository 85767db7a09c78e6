package predict

import (
	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru"
)

// DefaultCacheSize is the number of retention time predictions kept.
const DefaultCacheSize = 4096

// RTQuery is the input to a retention time prediction.
type RTQuery struct {
	Class                string
	NC                   int
	NU                   int
	Mod                  string
	IgnoreEncodingErrors bool
}

// RTPredictor predicts retention times from lipid composition. Predictions
// do not depend on adduct, so they are cached per composition.
type RTPredictor struct {
	classes *encoder
	mods    *encoder
	model   *linearModel
	stats   Stats
	cache   *lru.Cache
}

// TrainRT fits a retention time predictor. Samples whose class or modifier
// are outside the encoded sets are left out.
func TrainRT(samples []Sample, cacheSize int) (*RTPredictor, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create prediction cache")
	}
	p := &RTPredictor{
		classes: newEncoder("lipid class", RTClasses),
		mods:    newEncoder("fatty acid modifier", RTMods),
		cache:   cache,
	}

	var (
		x [][]float64
		y []float64
	)
	for _, s := range samples {
		v, err := p.featurize(s.Class, s.NC, s.NU, s.Mod, false)
		if err != nil {
			continue
		}
		x = append(x, v)
		y = append(y, s.Value)
	}

	m, stats, err := fitLinear(x, y, DefaultRidge)
	if err != nil {
		return nil, errors.Wrap(err, "failed to train retention time model")
	}
	p.model, p.stats = m, stats
	return p, nil
}

func (p *RTPredictor) featurize(class string, nc, nu int, mod string, ignore bool) ([]float64, error) {
	cw, mw := p.classes.width(), p.mods.width()
	v := make([]float64, cw+mw+2)
	if err := p.classes.encode(v[:cw], class, ignore); err != nil {
		return nil, err
	}
	if err := p.mods.encode(v[cw:cw+mw], mod, ignore); err != nil {
		return nil, err
	}
	v[cw+mw] = float64(nc)
	v[cw+mw+1] = float64(nu)
	return v, nil
}

// Predict returns the predicted retention time for q.
func (p *RTPredictor) Predict(q RTQuery) (float64, error) {
	if rt, ok := p.cache.Get(q); ok {
		return rt.(float64), nil
	}
	v, err := p.featurize(q.Class, q.NC, q.NU, q.Mod, q.IgnoreEncodingErrors)
	if err != nil {
		return 0, err
	}
	rt := p.model.predict(v)
	p.cache.Add(q, rt)
	return rt, nil
}

// Covers reports whether a lipid class is in the encoded set.
func (p *RTPredictor) Covers(class string) bool {
	return p.classes.has(class)
}

// Stats returns the training fit summary.
func (p *RTPredictor) Stats() Stats {
	return p.stats
}

// CacheLen returns the number of cached predictions.
func (p *RTPredictor) CacheLen() int {
	return p.cache.Len()
}
