package predict

import (
	"testing"

	"github.com/ChrisMcGann/LipidKey/pkg/lipid"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticCCS is an exactly linear CCS model used to generate training data.
func syntheticCCS(class string, nc, nu int, adduct string) float64 {
	v := 120 + 4.0*float64(nc) - 1.5*float64(nu)
	if class == "PC" {
		v += 8
	}
	if adduct == "[M+Na]+" {
		v += 3
	}
	return v
}

func ccsSamples(t *testing.T) []Sample {
	t.Helper()
	var out []Sample
	for _, class := range []string{"PC", "PE"} {
		for _, adduct := range []string{"[M+H]+", "[M+Na]+"} {
			for nc := 30; nc <= 40; nc++ {
				for nu := 0; nu <= 4; nu++ {
					mz, err := lipid.MZ(class, nc, nu, "", adduct)
					require.NoError(t, err)
					out = append(out, Sample{Class: class, NC: nc, NU: nu, Adduct: adduct, MZ: mz, Value: syntheticCCS(class, nc, nu, adduct)})
				}
			}
		}
	}
	// outside the encoded sets, never used for training
	out = append(out, Sample{Class: "Unknown", NC: 34, NU: 1, Adduct: "[M+H]+", MZ: 700, Value: 1e6})
	return out
}

func TestCCSPredictorRecoversLinearModel(t *testing.T) {
	p, err := TrainCCS(ccsSamples(t))
	require.NoError(t, err)
	assert.Equal(t, 220, p.Stats().N)
	assert.Less(t, p.Stats().RMSE, 0.1)

	mz, err := lipid.MZ("PC", 35, 2, "", "[M+Na]+")
	require.NoError(t, err)
	got, err := p.Predict(CCSQuery{Class: "PC", NC: 35, NU: 2, Adduct: "[M+Na]+", MZ: mz})
	require.NoError(t, err)
	assert.InDelta(t, syntheticCCS("PC", 35, 2, "[M+Na]+"), got, 0.1)

	// zero m/z is derived from the species
	derived, err := p.Predict(CCSQuery{Class: "PC", NC: 35, NU: 2, Adduct: "[M+Na]+"})
	require.NoError(t, err)
	assert.InDelta(t, got, derived, 1e-9)
}

func TestCCSPredictorEncodingErrors(t *testing.T) {
	p, err := TrainCCS(ccsSamples(t))
	require.NoError(t, err)

	tests := []struct {
		name  string
		q     CCSQuery
		field string
	}{
		{"class", CCSQuery{Class: "GM1", NC: 36, NU: 1, Mod: "d", Adduct: "[M+H]+", MZ: 1500}, "lipid class"},
		{"modifier", CCSQuery{Class: "PC", NC: 36, NU: 1, Mod: "e", Adduct: "[M+H]+", MZ: 780}, "fatty acid modifier"},
		{"adduct", CCSQuery{Class: "PC", NC: 36, NU: 1, Adduct: "[M+K]+", MZ: 800}, "adduct"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Predict(tt.q)
			var encErr *EncodingError
			require.True(t, errors.As(err, &encErr))
			assert.Equal(t, tt.field, encErr.Field)

			tt.q.IgnoreEncodingErrors = true
			_, err = p.Predict(tt.q)
			assert.NoError(t, err)
		})
	}

	assert.True(t, p.Covers("PC"))
	assert.False(t, p.Covers("GM1"))
}

func TestCCSPredictorDerivedMZError(t *testing.T) {
	p, err := TrainCCS(ccsSamples(t))
	require.NoError(t, err)
	_, err = p.Predict(CCSQuery{Class: "PC", NC: 34, NU: 1, Adduct: "[M+X]+"})
	assert.Error(t, err)
}

func TestTrainTooFewSamples(t *testing.T) {
	_, err := TrainCCS([]Sample{{Class: "PC", NC: 34, NU: 1, Adduct: "[M+H]+", MZ: 760.58, Value: 280}})
	assert.True(t, errors.Is(err, ErrTooFewSamples))

	_, err = TrainRT(nil, 0)
	assert.True(t, errors.Is(err, ErrTooFewSamples))
}

func TestRTPredictor(t *testing.T) {
	var samples []Sample
	for _, class := range []string{"PC", "PE", "AlanylPG"} {
		for nc := 28; nc <= 40; nc += 2 {
			for nu := 0; nu <= 3; nu++ {
				rt := 1 + 0.25*float64(nc) - 0.3*float64(nu)
				if class == "AlanylPG" {
					rt -= 2
				}
				samples = append(samples, Sample{Class: class, NC: nc, NU: nu, Value: rt})
			}
		}
	}
	// the plasmalogen column is encoded even if unused in training
	p, err := TrainRT(samples, 16)
	require.NoError(t, err)
	assert.Equal(t, 84, p.Stats().N)

	got, err := p.Predict(RTQuery{Class: "AlanylPG", NC: 34, NU: 1})
	require.NoError(t, err)
	assert.InDelta(t, 1+0.25*34-0.3-2, got, 0.05)
	assert.Equal(t, 1, p.CacheLen())

	again, err := p.Predict(RTQuery{Class: "AlanylPG", NC: 34, NU: 1})
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Equal(t, 1, p.CacheLen())

	_, err = p.Predict(RTQuery{Class: "TG", NC: 52, NU: 2})
	var encErr *EncodingError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, "TG", encErr.Value)
	assert.Equal(t, 1, p.CacheLen())

	_, err = p.Predict(RTQuery{Class: "PC", NC: 34, NU: 1, Mod: "o"})
	assert.Error(t, err)
	_, err = p.Predict(RTQuery{Class: "PC", NC: 34, NU: 1, Mod: "p"})
	assert.NoError(t, err)
}

func TestEncoderDeduplicates(t *testing.T) {
	e := newEncoder("lipid class", []string{"PE", "PC", "PE"})
	assert.Equal(t, 2, e.width())
	dst := make([]float64, 2)
	require.NoError(t, e.encode(dst, "PE", false))
	assert.Equal(t, []float64{0, 1}, dst)
	assert.Len(t, newEncoder("lipid class", RTClasses).cats, len(RTClasses))
}
