package refdb_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ChrisMcGann/LipidKey/pkg/core"
	"github.com/ChrisMcGann/LipidKey/pkg/lipid"
	"github.com/ChrisMcGann/LipidKey/pkg/refdb"
	"github.com/ChrisMcGann/LipidKey/pkg/writer/sqlite"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var measuredFixture = []refdb.MeasuredRecord{
	{Record: refdb.Record{Name: "PC(34:1)", Class: "PC", NC: 34, NU: 1, Adduct: "[M+H]+", MZ: 760.5856, CCS: refdb.Float(282.1), RT: refdb.Float(3.20)}, SrcTag: "hine1019", CCSType: "DT", CCSMethod: "single field"},
	{Record: refdb.Record{Name: "PC(34:1)", Class: "PC", NC: 34, NU: 1, Adduct: "[M+Na]+", MZ: 782.5676, CCS: refdb.Float(288.4), RT: refdb.Float(3.40)}, SrcTag: "hine1019", CCSType: "DT"},
	{Record: refdb.Record{Name: "PE(o36:2)", Class: "PE", NC: 36, NU: 2, Mod: "o", Adduct: "[M-H]-", MZ: 726.5443, RT: refdb.Float(5.0)}, SrcTag: "leaptot2023"},
	{Record: refdb.Record{Name: "Cer(d36:1)", Class: "Cer", NC: 36, NU: 1, Mod: "d", Adduct: "[M+H]+", MZ: 566.5512, CCS: refdb.Float(250.0)}, SrcTag: "leaptot2023"},
}

// buildFixture writes a small reference database and returns its path and
// an equivalent in-memory store.
func buildFixture(t *testing.T, chunk int) (string, *refdb.MemStore) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ref.db")
	log := zaptest.NewLogger(t).Sugar()

	w, err := sqlite.NewWriter(path, chunk, log)
	require.NoError(t, err)
	mem := refdb.NewMemStore()

	for _, r := range measuredFixture {
		id, err := w.WriteMeasured(r)
		require.NoError(t, err)
		assert.Equal(t, mem.AddMeasured(r.Record), id)
	}

	entries := []lipid.Entry{
		{Name: "PC(34:1)", Class: "PC", NC: 34, NU: 1, Adduct: "[M+H]+", MZ: 760.585632},
		{Name: "PC(34:1)", Class: "PC", NC: 34, NU: 1, Adduct: "[M-H]-", MZ: 758.571080},
		{Name: "PC(o34:1)", Class: "PC", NC: 34, NU: 1, Mod: "o", Adduct: "[M+H]+", MZ: 746.606367},
	}
	for i, e := range entries {
		id, err := w.WriteTheoretical(e)
		require.NoError(t, err)
		require.Equal(t, int64(i+1), id)
		assert.Equal(t, id, mem.AddTheoretical(refdb.Record{
			Name: e.Name, Class: e.Class, NC: e.NC, NU: e.NU, Mod: e.Mod, Adduct: e.Adduct, MZ: e.MZ,
		}))
	}
	// the second entry gets no CCS, the third no RT
	for id, ccs := range map[int64]float64{1: 283.0, 3: 279.5} {
		require.NoError(t, w.WritePredictedCCS(id, ccs))
		require.NoError(t, mem.SetPredictedCCS(id, ccs))
	}
	for id, rt := range map[int64]float64{1: 3.3, 2: 3.3} {
		require.NoError(t, w.WritePredictedRT(id, rt))
		require.NoError(t, mem.SetPredictedRT(id, rt))
	}

	require.NoError(t, w.Finalize(refdb.BuildInfo{BuildID: "test-build", Description: "fixture"}))
	return path, mem
}

func TestOpenMissingDatabase(t *testing.T) {
	_, err := refdb.Open(filepath.Join(t.TempDir(), "nope.db"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, refdb.ErrDatabaseMissing))
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.db")
	w, err := sqlite.NewWriter(path, 0, nil)
	require.NoError(t, err)
	require.NoError(t, w.Finalize(refdb.BuildInfo{BuildID: "x", SchemaVersion: "2.1.0"}))

	_, err = refdb.Open(path, nil)
	assert.True(t, errors.Is(err, refdb.ErrSchemaVersion))
}

func TestOpenRejectsUnfinishedBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.db")
	w, err := sqlite.NewWriter(path, 0, nil)
	require.NoError(t, err)
	_, err = w.WriteMeasured(measuredFixture[0])
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())

	_, err = refdb.Open(path, nil)
	assert.True(t, errors.Is(err, refdb.ErrSchemaVersion))
}

func TestStoreMatchesMemStore(t *testing.T) {
	// chunk size 2 forces several commits
	path, mem := buildFixture(t, 2)
	s, err := refdb.Open(path, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer s.Close()

	info, err := s.BuildInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-build", info.BuildID)
	assert.Equal(t, refdb.SchemaVersion, info.SchemaVersion)
	assert.Equal(t, 4, info.NMeasured)
	assert.Equal(t, 3, info.NTheoretical)
	assert.False(t, info.Created.IsZero())

	mz := core.Range{Min: 740, Max: 770}
	queries := map[string]refdb.Query{
		"measured mz":         {Table: refdb.Measured, MZ: mz},
		"measured mz pos":     {Table: refdb.Measured, MZ: core.Range{Min: 0, Max: 2000}, Polarity: "pos"},
		"measured mz neg":     {Table: refdb.Measured, MZ: core.Range{Min: 0, Max: 2000}, Polarity: "neg"},
		"measured mz ccs":     {Table: refdb.Measured, MZ: core.Range{Min: 0, Max: 2000}, CCS: &core.Range{Min: 240, Max: 285}},
		"measured mz rt":      {Table: refdb.Measured, MZ: core.Range{Min: 0, Max: 2000}, RT: &core.Range{Min: 3.2, Max: 5}},
		"measured mz rt ccs":  {Table: refdb.Measured, MZ: mz, RT: &core.Range{Min: 3, Max: 4}, CCS: &core.Range{Min: 280, Max: 290}},
		"theoretical mz":      {Table: refdb.Theoretical, MZ: mz},
		"theoretical mz pos":  {Table: refdb.Theoretical, MZ: mz, Polarity: "pos"},
		"theoretical mz ccs":  {Table: refdb.Theoretical, MZ: mz, CCS: &core.Range{Min: 270, Max: 290}},
		"theoretical mz rt":   {Table: refdb.Theoretical, MZ: mz, RT: &core.Range{Min: 3, Max: 4}},
		"theoretical all":     {Table: refdb.Theoretical, MZ: mz, RT: &core.Range{Min: 3, Max: 4}, CCS: &core.Range{Min: 270, Max: 290}},
		"theoretical nothing": {Table: refdb.Theoretical, MZ: core.Range{Min: 100, Max: 200}},
	}
	ctx := context.Background()
	for name, q := range queries {
		t.Run(name, func(t *testing.T) {
			want, err := mem.Search(ctx, q)
			require.NoError(t, err)
			got, err := s.Search(ctx, q)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	got, err := s.QueryByMZRTCCS(ctx, refdb.Theoretical, mz, core.Range{Min: 3, Max: 4}, core.Range{Min: 270, Max: 290}, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "PC(34:1)_[M+H]+", got[0].Label())
}

func TestMeasuredAndTheoreticalRecords(t *testing.T) {
	path, _ := buildFixture(t, 100)
	s, err := refdb.Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	all, err := s.MeasuredRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "DT", all[0].CCSType)
	assert.Equal(t, "single field", all[0].CCSMethod)
	assert.Equal(t, "", all[1].CCSMethod)

	tagged, err := s.MeasuredRecords(ctx, "leaptot2023")
	require.NoError(t, err)
	require.Len(t, tagged, 2)
	assert.Equal(t, "PE(o36:2)", tagged[0].Name)
	assert.Equal(t, "o", tagged[0].Mod)

	theo, err := s.TheoreticalRecords(ctx)
	require.NoError(t, err)
	require.Len(t, theo, 3)
	assert.Nil(t, theo[1].CCS)
	assert.Nil(t, theo[2].RT)
	assert.Equal(t, 3.3, *theo[0].RT)
}

func TestReferenceRT(t *testing.T) {
	path, _ := buildFixture(t, 100)
	s, err := refdb.Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	rt, ok, err := s.ReferenceRT(ctx, "PC", 34, nil, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 3.3, rt, 1e-9)

	nu := 2
	_, ok, err = s.ReferenceRT(ctx, "PC", 34, &nu, "")
	require.NoError(t, err)
	assert.False(t, ok)

	rt, ok, err = s.ReferenceRT(ctx, "PE", 36, nil, "o")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5.0, rt)

	// Cer has no measured rt
	_, ok, err = s.ReferenceRT(ctx, "Cer", 36, nil, "d")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	path, _ := buildFixture(t, 100)
	s, err := refdb.Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	sum, err := s.Summarize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Measured)
	assert.Equal(t, 3, sum.MeasuredByCCS)
	assert.Equal(t, 3, sum.MeasuredByRT)
	assert.Equal(t, 3, sum.Theoretical)
	assert.Equal(t, 2, sum.PredictedCCS)
	assert.Equal(t, 2, sum.PredictedRT)
	assert.Equal(t, map[string]int{"hine1019": 2, "leaptot2023": 2}, sum.MeasuredSource)
	assert.Equal(t, "fixture", sum.Build.Description)
}
