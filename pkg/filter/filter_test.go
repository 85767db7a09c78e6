package filter

import (
	"math"
	"testing"

	"github.com/ChrisMcGann/LipidKey/pkg/core"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCCSWindowIsRelative(t *testing.T) {
	c := Config{TolMZ: 0.01, TolRT: 0.5, TolCCSPct: 3.0}

	w := c.Window(760.5851, 3.2, 200.0)
	assert.Equal(t, 6.0, w.CCSTol)
	assert.Equal(t, core.Range{Min: 194, Max: 206}, w.CCS)

	// each feature gets its own absolute CCS window
	w2 := c.Window(760.5851, 3.2, 300.0)
	assert.InDelta(t, 9.0, w2.CCSTol, 1e-12)

	assert.InDelta(t, 760.5751, w.MZ.Min, 1e-9)
	assert.InDelta(t, 760.5951, w.MZ.Max, 1e-9)
	assert.InDelta(t, 2.7, w.RT.Min, 1e-9)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		useRT   bool
		useCCS  bool
		wantErr bool
	}{
		{"all positive", Config{TolMZ: 0.01, TolRT: 0.5, TolCCSPct: 3}, true, true, false},
		{"mz only", Config{TolMZ: 0.01}, false, false, false},
		{"zero mz", Config{TolMZ: 0}, false, false, true},
		{"negative rt", Config{TolMZ: 0.01, TolRT: -1}, false, false, true},
		{"rt needed", Config{TolMZ: 0.01, TolCCSPct: 1}, true, true, true},
		{"ccs needed", Config{TolMZ: 0.01, TolRT: 1}, true, true, true},
		{"NaN ccs", Config{TolMZ: 0.01, TolCCSPct: math.NaN()}, false, false, true},
		{"bad mode", Config{TolMZ: 0.01, ESIMode: "both"}, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(tt.useRT, tt.useCCS)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}

	err := (&Config{}).Validate(false, false)
	assert.True(t, errors.Is(err, ErrInvalidTolerance))
}

func TestParseESIMode(t *testing.T) {
	for in, want := range map[string]string{
		"":         "",
		"pos":      ModePos,
		"POS":      ModePos,
		"positive": ModePos,
		"neg":      ModeNeg,
		"-":        ModeNeg,
		"none":     "",
	} {
		got, err := ParseESIMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseESIMode("neutral")
	assert.Error(t, err)
}

func TestMatchesPolarity(t *testing.T) {
	assert.True(t, MatchesPolarity("[M+H]+", ModePos))
	assert.False(t, MatchesPolarity("[M-H]-", ModePos))
	assert.True(t, MatchesPolarity("[M-2H]2-", ModeNeg))
	assert.False(t, MatchesPolarity("[M+2K]2+", ModeNeg))
	assert.True(t, MatchesPolarity("[M-H]-", ""))
}

func TestValidFeatures(t *testing.T) {
	ok, bad := ValidFeatures([]core.Feature{
		{MZ: 500},
		{MZ: -1},
		{MZ: 600, RT: 2, CCS: 250},
	})
	assert.Equal(t, []int{0, 2}, ok)
	require.Len(t, bad, 1)
	assert.Error(t, bad[1])
}

func TestIdentifiableFeatures(t *testing.T) {
	features := []core.Feature{
		{MZ: 500, Intensities: []float64{-12.5, 3}},
		{MZ: 600, RT: -1},
	}
	ok, bad := IdentifiableFeatures(features)
	assert.Equal(t, []int{0}, ok)
	require.Len(t, bad, 1)
	assert.Error(t, bad[1])

	// blank-subtracted intensities still fail full validation
	ok, _ = ValidFeatures(features)
	assert.Empty(t, ok)
}
