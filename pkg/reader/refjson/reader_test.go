package refjson

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const dataset = `[
	{"name": "PC(16:0/18:1)", "adduct": "[M+H]+*", "mz": 760.5851, "ccs": 282.1, "rt": 3.2, "smi": "CCCC"},
	{"name": "PE(o36:2)", "adduct": "[M-H]-", "mz": 726.5443, "ccs": 270.4},
	{"name": "Cholesterol", "adduct": "[M+NH4]+", "mz": 404.3887, "ccs": 207.0},
	{"name": "SM(d18:1/16:0)", "adduct": "[M+]+", "mz": 703.5748}
]`

func TestRead(t *testing.T) {
	obs, logs := observer.New(zap.DebugLevel)
	src := Source{Tag: "hine0119", CCSType: "TW", CCSMethod: "calibrated with phosphatidylcholines"}

	res, err := Read(strings.NewReader(dataset), src, zap.New(obs).Sugar())
	require.NoError(t, err)
	require.Len(t, res.Records, 3)
	assert.Equal(t, []string{"Cholesterol"}, res.Skipped)
	assert.Equal(t, 1, logs.FilterMessage("Skipping unparsable lipid").Len())

	pc := res.Records[0]
	assert.Equal(t, "PC(16:0/18:1)", pc.Name)
	assert.Equal(t, "PC", pc.Class)
	assert.Equal(t, 34, pc.NC)
	assert.Equal(t, 1, pc.NU)
	assert.Equal(t, "[M+H]+", pc.Adduct)
	assert.Equal(t, 3.2, *pc.RT)
	assert.Equal(t, "CCCC", pc.SMILES)
	assert.Equal(t, "hine0119", pc.SrcTag)
	assert.Equal(t, "TW", pc.CCSType)

	pe := res.Records[1]
	assert.Equal(t, "o", pe.Mod)
	assert.Nil(t, pe.RT)

	sm := res.Records[2]
	assert.Equal(t, "[M]+", sm.Adduct)
	assert.Equal(t, "d", sm.Mod)
	assert.Nil(t, sm.CCS)
}

func TestReadRejectsIncompleteEntries(t *testing.T) {
	_, err := Read(strings.NewReader(`[{"name": "PC(34:1)", "mz": 760.5}]`), Source{Tag: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry 0")

	_, err = Read(strings.NewReader(`{"name": "PC(34:1)"}`), Source{Tag: "x"}, nil)
	assert.Error(t, err)
}

func TestFixAdduct(t *testing.T) {
	assert.Equal(t, "[M+NH4]+", FixAdduct("M+NH4]+"))
	assert.Equal(t, "[M+Na]+", FixAdduct("[M+Na]+*"))
	assert.Equal(t, "[M+H2O-H]-", FixAdduct("[M+H20-H]-"))
	assert.Equal(t, "[M-H]-", FixAdduct("[M-H]-"))
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "src.json")
	require.NoError(t, os.WriteFile(path, []byte(dataset), 0o644))

	res, err := ReadFile(Source{Tag: "t", File: path}, nil)
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)

	_, err = ReadFile(Source{Tag: "t", File: filepath.Join(t.TempDir(), "missing.json")}, nil)
	assert.Error(t, err)
}
