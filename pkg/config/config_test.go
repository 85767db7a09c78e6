package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ChrisMcGann/LipidKey/pkg/filter"
	"github.com/ChrisMcGann/LipidKey/pkg/identify"
	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
[database]
path = "/data/lipids.db"

[identify]
tol_mz = 0.01
tol_ccs = 1.5
levels = "measured-mz-ccs,theoretical-mz-ccs"
esi_mode = "neg"
include_rt = false

[build]
chunk_size = 500

[[build.datasets]]
tag = "hine1019"
file = "data/hine1019.json"
ccs_type = "DT"
ccs_method = "single field"
train_ccs = true

[[build.datasets]]
tag = "leaptot2023"
file = "data/leaptot2023.json"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	v, err := New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "lipids.db", cfg.Database.Path)
	assert.Equal(t, 0.02, cfg.Identify.TolMZ)
	assert.Equal(t, 1.0, cfg.Identify.TolRT)
	assert.Equal(t, 3.0, cfg.Identify.TolCCS)
	assert.True(t, cfg.Identify.IncludeRT)
	assert.Equal(t, 10000, cfg.Build.ChunkSize)
	assert.Equal(t, "info", cfg.Log.Level)

	p, err := cfg.Identify.Params()
	require.NoError(t, err)
	assert.True(t, p.Levels.IsAny())
	assert.Equal(t, identify.NormL2, p.Norm)
	assert.Nil(t, p.Calibration)
}

func TestLoadFile(t *testing.T) {
	v, err := New(writeFile(t, "lipidkey.toml", sample))
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/data/lipids.db", cfg.Database.Path)
	assert.Equal(t, 0.01, cfg.Identify.TolMZ)
	assert.Equal(t, 1.0, cfg.Identify.TolRT)
	assert.False(t, cfg.Identify.IncludeRT)
	assert.Equal(t, 500, cfg.Build.ChunkSize)

	require.Len(t, cfg.Build.Datasets, 2)
	assert.Equal(t, "hine1019", cfg.Build.Datasets[0].Tag)
	assert.Equal(t, "single field", cfg.Build.Datasets[0].CCSMethod)
	assert.True(t, cfg.Build.Datasets[0].TrainCCS)
	assert.False(t, cfg.Build.Datasets[1].TrainCCS)

	opts := cfg.Build.Options("out.db")
	assert.Equal(t, "out.db", opts.OutputPath)
	assert.Equal(t, 500, opts.ChunkSize)
	assert.Len(t, opts.Datasets, 2)

	p, err := cfg.Identify.Params()
	require.NoError(t, err)
	assert.Equal(t, "measured-mz-ccs, theoretical-mz-ccs", p.Levels.String())
	assert.Equal(t, filter.ModeNeg, p.ESIMode)
	assert.Equal(t, 1.5, p.TolCCSPct)
}

func TestPrecedence(t *testing.T) {
	t.Setenv("LIPIDKEY_IDENTIFY_TOL_MZ", "0.05")
	t.Setenv("LIPIDKEY_IDENTIFY_TOL_CCS", "2.5")
	v, err := New(writeFile(t, "lipidkey.toml", sample))
	require.NoError(t, err)

	fs := pflag.NewFlagSet("identify", pflag.ContinueOnError)
	fs.Float64("tol-mz", 0.02, "")
	fs.Float64("tol-ccs", 3.0, "")
	require.NoError(t, BindFlags(v, fs, map[string]string{
		"tol-mz":  "identify.tol_mz",
		"tol-ccs": "identify.tol_ccs",
		"missing": "identify.norm",
	}))
	require.NoError(t, fs.Parse([]string{"--tol-mz", "0.002"}))

	cfg, err := Load(v)
	require.NoError(t, err)
	// flag over env over file
	assert.Equal(t, 0.002, cfg.Identify.TolMZ)
	assert.Equal(t, 2.5, cfg.Identify.TolCCS)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestParamsErrors(t *testing.T) {
	_, err := IdentifyConfig{Levels: "measured-mz,any"}.Params()
	assert.True(t, errors.Is(err, identify.ErrInvalidLevels))

	_, err = IdentifyConfig{Norm: "l3"}.Params()
	assert.Error(t, err)

	_, err = IdentifyConfig{Calibration: filepath.Join(t.TempDir(), "none.csv")}.Params()
	assert.Error(t, err)

	_, err = IdentifyConfig{Calibration: writeFile(t, "bad.csv", "raw,ref\n1.0,1.1\n")}.Params()
	assert.Error(t, err)
}

func TestParamsCalibration(t *testing.T) {
	cal := writeFile(t, "cal.csv", "raw_rt,ref_rt\n1.0,1.5\n3.0,3.5\n")
	p, err := IdentifyConfig{Calibration: cal}.Params()
	require.NoError(t, err)
	require.NotNil(t, p.Calibration)
	assert.InDelta(t, 2.5, p.Calibration.CalibratedRT(2.0), 1e-9)
}
