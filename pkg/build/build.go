// Package build assembles a reference database: measured datasets, the
// theoretical library and the CCS / retention time predictions attached to it.
package build

import (
	"context"
	"os"

	"github.com/ChrisMcGann/LipidKey/pkg/lipid"
	"github.com/ChrisMcGann/LipidKey/pkg/predict"
	"github.com/ChrisMcGann/LipidKey/pkg/reader/refjson"
	"github.com/ChrisMcGann/LipidKey/pkg/refdb"
	"github.com/ChrisMcGann/LipidKey/pkg/writer/sqlite"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures one build.
type Options struct {
	OutputPath  string
	Overwrite   bool
	ChunkSize   int
	Datasets    []refjson.Source
	Groups      []lipid.Group // nil means the built-in library
	Description string
}

// Report summarizes a finished build.
type Report struct {
	BuildID      string
	Measured     int
	Theoretical  int
	PredictedCCS int
	PredictedRT  int
	Skipped      map[string]int // unparsable measured names per source
	CCSModel     *predict.Stats // nil when no CCS model could be trained
	RTModel      *predict.Stats
}

// Builder runs the build steps in order against one writer.
type Builder struct {
	opts Options
	log  *zap.SugaredLogger
}

// New creates a builder.
func New(opts Options, log *zap.SugaredLogger) *Builder {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Builder{opts: opts, log: log}
}

// Run builds the database. A failed build leaves no build_info row, so the
// output cannot be opened as a reference store.
func (b *Builder) Run(ctx context.Context) (Report, error) {
	if b.opts.OutputPath == "" {
		return Report{}, errors.New("no output path")
	}
	if _, err := os.Stat(b.opts.OutputPath); err == nil {
		if !b.opts.Overwrite {
			return Report{}, errors.WithHint(
				errors.Newf("output %s already exists", b.opts.OutputPath),
				"remove it or pass --overwrite")
		}
		if err := os.Remove(b.opts.OutputPath); err != nil {
			return Report{}, errors.Wrap(err, "failed to remove existing output")
		}
	}

	w, err := sqlite.NewWriter(b.opts.OutputPath, b.opts.ChunkSize, b.log)
	if err != nil {
		return Report{}, err
	}
	done := false
	defer func() {
		if !done {
			w.Close()
		}
	}()

	report := Report{BuildID: uuid.NewString(), Skipped: make(map[string]int)}

	if err := b.writeMeasured(ctx, w, &report); err != nil {
		return Report{}, err
	}
	if err := b.writeTheoretical(ctx, w); err != nil {
		return Report{}, err
	}

	store, err := w.Store()
	if err != nil {
		return Report{}, err
	}
	ccs, rt, err := b.train(ctx, store, &report)
	if err != nil {
		return Report{}, err
	}
	if err := b.attachPredictions(ctx, w, store, ccs, rt, &report); err != nil {
		return Report{}, err
	}

	report.Measured, report.Theoretical = w.Counts()
	err = w.Finalize(refdb.BuildInfo{
		BuildID:     report.BuildID,
		Description: b.opts.Description,
	})
	if err != nil {
		return Report{}, err
	}
	done = true
	return report, nil
}

func (b *Builder) writeMeasured(ctx context.Context, w *sqlite.Writer, report *Report) error {
	for _, src := range b.opts.Datasets {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := refjson.ReadFile(src, b.log)
		if err != nil {
			return err
		}
		for _, r := range res.Records {
			if _, err := w.WriteMeasured(r); err != nil {
				return errors.Wrapf(err, "failed to write %s from %s", r.Name, src.Tag)
			}
		}
		if len(res.Skipped) > 0 {
			report.Skipped[src.Tag] = len(res.Skipped)
		}
	}
	return nil
}

func (b *Builder) writeTheoretical(ctx context.Context, w *sqlite.Writer) error {
	gen := &lipid.Generator{Groups: b.opts.Groups, Log: b.log}
	seq, err := gen.All()
	if err != nil {
		return err
	}
	n := 0
	for e := range seq {
		if _, err := w.WriteTheoretical(e); err != nil {
			return errors.Wrapf(err, "failed to write %s", e.Name)
		}
		n++
		if n%100000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			b.log.Infow("Writing theoretical library", "rows", n)
		}
	}
	return nil
}

// train fits the predictors on measured values. CCS training is restricted
// to sources flagged train_ccs. A predictor without enough samples is left
// nil and its predictions are skipped.
func (b *Builder) train(ctx context.Context, store *refdb.Store, report *Report) (*predict.CCSPredictor, *predict.RTPredictor, error) {
	var ccsTags []string
	for _, src := range b.opts.Datasets {
		if src.TrainCCS {
			ccsTags = append(ccsTags, src.Tag)
		}
	}

	var ccs *predict.CCSPredictor
	if len(ccsTags) > 0 {
		recs, err := store.MeasuredRecords(ctx, ccsTags...)
		if err != nil {
			return nil, nil, err
		}
		var samples []predict.Sample
		for _, r := range recs {
			if r.CCS != nil {
				samples = append(samples, sample(r.Record, *r.CCS))
			}
		}
		ccs, err = predict.TrainCCS(samples)
		switch {
		case errors.Is(err, predict.ErrTooFewSamples):
			b.log.Warnw("Skipping CCS predictions", "reason", err)
		case err != nil:
			return nil, nil, err
		default:
			s := ccs.Stats()
			report.CCSModel = &s
			b.log.Infow("Trained CCS predictor", "samples", s.N, "rmse", s.RMSE, "mae", s.MAE)
		}
	} else {
		b.log.Warnw("Skipping CCS predictions", "reason", "no dataset is flagged train_ccs")
	}

	recs, err := store.MeasuredRecords(ctx)
	if err != nil {
		return nil, nil, err
	}
	var samples []predict.Sample
	for _, r := range recs {
		if r.RT != nil {
			samples = append(samples, sample(r.Record, *r.RT))
		}
	}
	rt, err := predict.TrainRT(samples, predict.DefaultCacheSize)
	switch {
	case errors.Is(err, predict.ErrTooFewSamples):
		b.log.Warnw("Skipping retention time predictions", "reason", err)
	case err != nil:
		return nil, nil, err
	default:
		s := rt.Stats()
		report.RTModel = &s
		b.log.Infow("Trained retention time predictor", "samples", s.N, "rmse", s.RMSE, "mae", s.MAE)
	}
	return ccs, rt, nil
}

func sample(r refdb.Record, v float64) predict.Sample {
	return predict.Sample{Class: r.Class, NC: r.NC, NU: r.NU, Mod: r.Mod, Adduct: r.Adduct, MZ: r.MZ, Value: v}
}

// attachPredictions predicts CCS and retention time for every theoretical
// record whose class the predictor was trained to encode.
func (b *Builder) attachPredictions(ctx context.Context, w *sqlite.Writer, store *refdb.Store, ccs *predict.CCSPredictor, rt *predict.RTPredictor, report *Report) error {
	if ccs == nil && rt == nil {
		return nil
	}
	recs, err := store.TheoreticalRecords(ctx)
	if err != nil {
		return err
	}

	for i, r := range recs {
		if i%100000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if ccs != nil && ccs.Covers(r.Class) {
			v, err := ccs.Predict(predict.CCSQuery{
				Class: r.Class, NC: r.NC, NU: r.NU, Mod: r.Mod, Adduct: r.Adduct, MZ: r.MZ,
				IgnoreEncodingErrors: true,
			})
			if err != nil {
				return errors.Wrapf(err, "failed to predict CCS for %s", r.Label())
			}
			if err := w.WritePredictedCCS(r.ID, v); err != nil {
				return err
			}
			report.PredictedCCS++
		}
		if rt != nil && rt.Covers(r.Class) {
			v, err := rt.Predict(predict.RTQuery{
				Class: r.Class, NC: r.NC, NU: r.NU, Mod: r.Mod,
				IgnoreEncodingErrors: true,
			})
			if err != nil {
				return errors.Wrapf(err, "failed to predict retention time for %s", r.Label())
			}
			if err := w.WritePredictedRT(r.ID, v); err != nil {
				return err
			}
			report.PredictedRT++
		}
	}
	b.log.Infow("Attached predictions", "ccs", report.PredictedCCS, "rt", report.PredictedRT)
	return nil
}
