package identify

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"github.com/ChrisMcGann/LipidKey/pkg/core"
	"github.com/ChrisMcGann/LipidKey/pkg/filter"
	"github.com/ChrisMcGann/LipidKey/pkg/refdb"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Searcher runs range queries against a reference store.
type Searcher interface {
	Search(ctx context.Context, q refdb.Query) ([]refdb.Record, error)
}

// Calibration maps raw retention times onto the reference scale.
type Calibration interface {
	CalibratedRT(rt float64) float64
}

// Params controls one identification batch.
type Params struct {
	filter.Config

	Levels      LevelSpec
	Norm        Norm
	IncludeRT   bool
	Calibration Calibration // nil uses raw retention times
	Workers     int         // 0 means GOMAXPROCS
}

// plan is a validated Params.
type plan struct {
	cfg    filter.Config
	levels []Level
	norm   Norm
	cal    Calibration
}

func (p Params) plan() (plan, error) {
	norm, err := ParseNorm(string(p.Norm))
	if err != nil {
		return plan{}, err
	}
	cfg := p.Config
	if cfg.ESIMode, err = filter.ParseESIMode(cfg.ESIMode); err != nil {
		return plan{}, err
	}

	levels := p.Levels.Plan(p.IncludeRT)
	var useRT, useCCS bool
	for _, l := range levels {
		useRT = useRT || l.UsesRT()
		useCCS = useCCS || l.UsesCCS()
	}
	if err := cfg.Validate(useRT, useCCS); err != nil {
		return plan{}, err
	}
	return plan{cfg: cfg, levels: levels, norm: norm, cal: p.Calibration}, nil
}

// Engine identifies features against a reference store.
type Engine struct {
	store Searcher
	log   *zap.SugaredLogger
}

// NewEngine creates an engine reading from store.
func NewEngine(store Searcher, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{store: store, log: log}
}

// UnknownLabel is the label given to a feature that matched nothing.
func UnknownLabel(f core.Feature) string {
	return fmt.Sprintf("UNK_%08.4f_%05.2f_%06.2f", f.MZ, f.RT, f.CCS)
}

// IdentifyFeature identifies a single feature.
func (e *Engine) IdentifyFeature(ctx context.Context, f core.Feature, p Params) (core.Identification, error) {
	pl, err := p.plan()
	if err != nil {
		return core.Identification{}, err
	}
	if err := f.ValidateCoordinates(); err != nil {
		return core.Identification{}, err
	}
	return e.identify(ctx, f, pl)
}

func (e *Engine) identify(ctx context.Context, f core.Feature, pl plan) (core.Identification, error) {
	rt := f.RT
	if pl.cal != nil {
		rt = pl.cal.CalibratedRT(f.RT)
	}
	w := pl.cfg.Window(f.MZ, rt, f.CCS)

	for _, lvl := range pl.levels {
		def := levelDefs[lvl]
		q := refdb.Query{Table: def.table, MZ: w.MZ, Polarity: pl.cfg.ESIMode}
		if def.rt {
			q.RT = &w.RT
		}
		if def.ccs {
			q.CCS = &w.CCS
		}

		recs, err := e.store.Search(ctx, q)
		if err != nil {
			return core.Identification{}, errors.Wrapf(err, "level %s", lvl)
		}
		if len(recs) == 0 {
			continue
		}

		id := rank(recs, func(r refdb.Record) []float64 {
			res := []float64{residual(r.MZ, f.MZ, pl.cfg.TolMZ)}
			if def.rt {
				res = append(res, optionalResidual(r.RT, rt, pl.cfg.TolRT))
			}
			if def.ccs {
				res = append(res, optionalResidual(r.CCS, f.CCS, w.CCSTol))
			}
			return res
		}, pl.norm)
		id.Level = string(lvl)
		e.log.Debugw("Feature identified", "mz", f.MZ, "level", lvl, "candidates", len(recs))
		return id, nil
	}

	return core.Identification{Candidates: []string{UnknownLabel(f)}, Scores: []float64{}}, nil
}

func optionalResidual(matched *float64, query, tol float64) float64 {
	if matched == nil {
		return math.Inf(1)
	}
	return residual(*matched, query, tol)
}

// rank scores every record and sorts candidates by descending score. Ties
// keep store order.
func rank(recs []refdb.Record, residuals func(refdb.Record) []float64, norm Norm) core.Identification {
	idx := make([]int, len(recs))
	scores := make([]float64, len(recs))
	for i, r := range recs {
		idx[i] = i
		scores[i] = Score(residuals(r), norm)
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	id := core.Identification{
		Candidates: make([]string, len(recs)),
		Scores:     make([]float64, len(recs)),
	}
	for i, j := range idx {
		id.Candidates[i] = recs[j].Label()
		id.Scores[i] = scores[j]
	}
	return id
}

// Identify identifies every feature and returns one result per feature in
// input order. Parameters and features are validated before any query runs;
// any store error aborts the whole batch.
func (e *Engine) Identify(ctx context.Context, features []core.Feature, p Params) ([]core.Identification, error) {
	pl, err := p.plan()
	if err != nil {
		return nil, err
	}
	if _, bad := filter.IdentifiableFeatures(features); len(bad) > 0 {
		first := len(features)
		for i := range bad {
			first = min(first, i)
		}
		return nil, errors.Wrapf(bad[first], "feature %d (%d invalid features)", first, len(bad))
	}

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]core.Identification, len(features))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range features {
		g.Go(func() error {
			id, err := e.identify(gctx, features[i], pl)
			if err != nil {
				return errors.Wrapf(err, "feature %d", i)
			}
			results[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts := CountLevels(results)
	e.log.Infow("Identification complete",
		"features", len(features),
		"identified", len(features)-counts[""],
		"levels", pl.levels,
	)
	return results, nil
}

// CountLevels tallies results by level; unidentified features count under "".
func CountLevels(ids []core.Identification) map[string]int {
	counts := make(map[string]int)
	for _, id := range ids {
		counts[id.Level]++
	}
	return counts
}

// Annotate identifies every feature of a dataset and stores the results.
// The dataset's previous results are replaced only if the whole batch
// succeeds. An empty ESIMode in p falls back to the dataset's mode.
func Annotate(ctx context.Context, e *Engine, ds *core.Dataset, p Params) error {
	if p.ESIMode == "" {
		p.ESIMode = ds.ESIMode
	}
	ids, err := e.Identify(ctx, ds.Features, p)
	if err != nil {
		return err
	}
	return ds.SetIdentifications(ids)
}
