package predict

import (
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultRidge is the L2 penalty applied to the scaled coefficients.
const DefaultRidge = 1e-3

// ErrTooFewSamples is returned when a model cannot be fitted.
var ErrTooFewSamples = errors.New("too few training samples")

// Stats summarizes a model's fit on its training data.
type Stats struct {
	N    int
	RMSE float64
	MAE  float64
}

// linearModel is a ridge regression over features scaled by their standard
// deviation (not centered). The intercept is not penalized.
type linearModel struct {
	scale     []float64
	coef      []float64
	intercept float64
}

func fitLinear(x [][]float64, y []float64, ridge float64) (*linearModel, Stats, error) {
	n := len(x)
	if n < 2 || n != len(y) {
		return nil, Stats{}, errors.Wrapf(ErrTooFewSamples, "%d samples", n)
	}
	p := len(x[0])

	m := &linearModel{scale: make([]float64, p)}
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		sd := stat.StdDev(col, nil)
		if sd == 0 || math.IsNaN(sd) {
			sd = 1
		}
		m.scale[j] = sd
	}

	// design matrix with a trailing intercept column
	d := mat.NewDense(n, p+1, nil)
	for i, row := range x {
		for j, v := range row {
			d.Set(i, j, v/m.scale[j])
		}
		d.Set(i, p, 1)
	}

	var a mat.SymDense
	a.SymOuterK(1, d.T())
	for j := 0; j < p; j++ {
		a.SetSym(j, j, a.At(j, j)+ridge)
	}

	var b mat.VecDense
	b.MulVec(d.T(), mat.NewVecDense(n, y))

	var chol mat.Cholesky
	if ok := chol.Factorize(&a); !ok {
		return nil, Stats{}, errors.New("normal equations are not positive definite")
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, &b); err != nil {
		return nil, Stats{}, errors.Wrap(err, "failed to solve normal equations")
	}

	m.coef = make([]float64, p)
	for j := range m.coef {
		m.coef[j] = w.AtVec(j)
	}
	m.intercept = w.AtVec(p)

	pred := make([]float64, n)
	for i, row := range x {
		pred[i] = m.predict(row)
	}
	stats := Stats{
		N:    n,
		RMSE: floats.Distance(pred, y, 2) / math.Sqrt(float64(n)),
		MAE:  floats.Distance(pred, y, 1) / float64(n),
	}
	return m, stats, nil
}

func (m *linearModel) predict(x []float64) float64 {
	v := m.intercept
	for j, xj := range x {
		v += m.coef[j] * xj / m.scale[j]
	}
	return v
}
