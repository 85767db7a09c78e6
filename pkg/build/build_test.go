package build_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ChrisMcGann/LipidKey/pkg/build"
	"github.com/ChrisMcGann/LipidKey/pkg/core"
	"github.com/ChrisMcGann/LipidKey/pkg/lipid"
	"github.com/ChrisMcGann/LipidKey/pkg/reader/refjson"
	"github.com/ChrisMcGann/LipidKey/pkg/refdb"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const trainingSet = `[
	{"name": "PC(34:1)", "adduct": "[M+H]+", "mz": 760.5851, "ccs": 282.0, "rt": 3.2},
	{"name": "PC(36:2)", "adduct": "[M+H]+", "mz": 786.6007, "ccs": 288.0, "rt": 3.5},
	{"name": "PE(34:1)", "adduct": "[M+H]+", "mz": 718.5381, "ccs": 275.0, "rt": 3.0},
	{"name": "PE(36:2)", "adduct": "[M+Na]+", "mz": 766.5357, "ccs": 280.0, "rt": 3.3}
]`

const retentionSet = `[
	{"name": "PC(32:0)", "adduct": "[M+H]+", "mz": 734.5694, "ccs": 9999.0, "rt": 3.1},
	{"name": "Cholesterol", "adduct": "[M+NH4]+", "mz": 404.3887}
]`

var testGroups = []lipid.Group{{
	Name:    "test",
	Classes: []string{"PC", "PE", "TG"},
	NC:      []int{32, 36},
	NU:      []int{0, 2},
	Adducts: []string{"[M+H]+", "[M+Na]+"},
}}

func writeDatasets(t *testing.T) []refjson.Source {
	t.Helper()
	dir := t.TempDir()
	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.json")
	require.NoError(t, os.WriteFile(a, []byte(trainingSet), 0o644))
	require.NoError(t, os.WriteFile(b, []byte(retentionSet), 0o644))
	return []refjson.Source{
		{Tag: "a", File: a, CCSType: "DT", TrainCCS: true},
		{Tag: "b", File: b, CCSType: "TW"},
	}
}

// libraryCounts returns the size of the test library and how many of its
// entries the retention time model covers.
func libraryCounts(t *testing.T) (all, rt int) {
	t.Helper()
	seq, err := lipid.EnumerateGroups(testGroups)
	require.NoError(t, err)
	for e := range seq {
		all++
		if e.Class != "TG" {
			rt++
		}
	}
	return all, rt
}

func TestBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lipids.db")
	log := zaptest.NewLogger(t).Sugar()
	ctx := context.Background()

	report, err := build.New(build.Options{
		OutputPath:  path,
		ChunkSize:   16,
		Datasets:    writeDatasets(t),
		Groups:      testGroups,
		Description: "test build",
	}, log).Run(ctx)
	require.NoError(t, err)

	all, rtCovered := libraryCounts(t)
	assert.NotEmpty(t, report.BuildID)
	assert.Equal(t, 5, report.Measured)
	assert.Equal(t, all, report.Theoretical)
	assert.Equal(t, all, report.PredictedCCS)
	assert.Equal(t, rtCovered, report.PredictedRT)
	assert.Equal(t, map[string]int{"b": 1}, report.Skipped)
	require.NotNil(t, report.CCSModel)
	require.NotNil(t, report.RTModel)
	// only the flagged source trains the CCS model
	assert.Equal(t, 4, report.CCSModel.N)
	assert.Equal(t, 5, report.RTModel.N)

	store, err := refdb.Open(path, log)
	require.NoError(t, err)
	defer store.Close()

	sum, err := store.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.BuildID, sum.Build.BuildID)
	assert.Equal(t, refdb.SchemaVersion, sum.Build.SchemaVersion)
	assert.Equal(t, "test build", sum.Build.Description)
	assert.Equal(t, all, sum.Theoretical)
	assert.Equal(t, all, sum.PredictedCCS)
	assert.Equal(t, rtCovered, sum.PredictedRT)
	assert.Equal(t, map[string]int{"a": 4, "b": 1}, sum.MeasuredSource)

	recs, err := store.QueryByMZCCS(ctx, refdb.Theoretical, core.Around(760.5856, 0.001), core.Around(282, 2), "pos")
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.Equal(t, "PC(34:1)_[M+H]+", recs[0].Label())
	require.NotNil(t, recs[0].RT)
	assert.InDelta(t, 3.2, *recs[0].RT, 0.15)

	// TG has no retention time model
	tg, err := lipid.MZ("TG", 36, 0, "", "[M+Na]+")
	require.NoError(t, err)
	recs, err = store.QueryByMZ(ctx, refdb.Theoretical, core.Around(tg, 0.0001), "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "TG", recs[0].Class)
	assert.Nil(t, recs[0].RT)
	assert.NotNil(t, recs[0].CCS)
}

func TestBuildWithoutTrainingData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.db")
	report, err := build.New(build.Options{OutputPath: path, Groups: testGroups}, nil).Run(context.Background())
	require.NoError(t, err)

	all, _ := libraryCounts(t)
	assert.Equal(t, all, report.Theoretical)
	assert.Zero(t, report.PredictedCCS)
	assert.Zero(t, report.PredictedRT)
	assert.Nil(t, report.CCSModel)
	assert.Nil(t, report.RTModel)

	store, err := refdb.Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestBuildRefusesExistingOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exists.db")
	require.NoError(t, os.WriteFile(path, []byte("not a database"), 0o644))

	opts := build.Options{OutputPath: path, Groups: testGroups}
	_, err := build.New(opts, nil).Run(context.Background())
	require.Error(t, err)
	assert.NotEmpty(t, errors.GetAllHints(err))

	opts.Overwrite = true
	_, err = build.New(opts, nil).Run(context.Background())
	require.NoError(t, err)
}

func TestCancelledBuildIsNotOpenable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cancelled.db")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := build.New(build.Options{OutputPath: path, Datasets: writeDatasets(t), Groups: testGroups}, nil).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	_, err = refdb.Open(path, nil)
	assert.True(t, errors.Is(err, refdb.ErrSchemaVersion))
}
