package refdb

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/ChrisMcGann/LipidKey/pkg/core"
	"github.com/ChrisMcGann/LipidKey/pkg/filter"
	"github.com/Masterminds/semver/v3"
	sq "github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Query is a range query against one table. MZ is always applied; RT and
// CCS are applied when set. Polarity is "pos", "neg" or empty.
type Query struct {
	Table    Table
	MZ       core.Range
	RT       *core.Range
	CCS      *core.Range
	Polarity string
}

// Store queries a SQLite reference database.
type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// Open opens an existing reference database read-only and checks its
// schema version.
func Open(path string, log *zap.SugaredLogger) (*Store, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WithHint(
				errors.Wrapf(ErrDatabaseMissing, "%s", path),
				"build one with: lipidkey build --out "+path)
		}
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}

	log.Debugw("Opening reference database", "path", path)
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to connect to %s", path)
	}

	s := New(db, log)
	info, err := s.BuildInfo(context.Background())
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := checkSchemaVersion(info.SchemaVersion); err != nil {
		db.Close()
		return nil, err
	}
	log.Infow("Reference database opened",
		"path", path,
		"build_id", info.BuildID,
		"schema_version", info.SchemaVersion,
		"measured", info.NMeasured,
		"theoretical", info.NTheoretical,
	)
	return s, nil
}

// New wraps an open database handle.
func New(db *sql.DB, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{db: db, log: log}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func checkSchemaVersion(v string) error {
	c, err := semver.NewConstraint(supportedSchemas)
	if err != nil {
		return errors.Wrap(err, "invalid schema constraint")
	}
	ver, err := semver.NewVersion(v)
	if err != nil {
		return errors.Wrapf(ErrSchemaVersion, "unparsable schema version %q", v)
	}
	if !c.Check(ver) {
		return errors.WithHint(
			errors.Wrapf(ErrSchemaVersion, "version %s does not satisfy %s", v, supportedSchemas),
			"rebuild the reference database with this version of lipidkey")
	}
	return nil
}

// BuildInfo reads the most recent build_info row.
func (s *Store) BuildInfo(ctx context.Context) (BuildInfo, error) {
	query, args, err := sq.Select("build_id", "schema_version", "created", "n_measured", "n_theoretical", "description").
		From("build_info").
		OrderBy("rowid DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return BuildInfo{}, errors.Wrap(err, "failed to build query")
	}

	var (
		info    BuildInfo
		created string
		desc    sql.NullString
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&info.BuildID, &info.SchemaVersion, &created, &info.NMeasured, &info.NTheoretical, &desc)
	if errors.Is(err, sql.ErrNoRows) {
		return BuildInfo{}, errors.Wrap(ErrSchemaVersion, "database has no build_info; the build did not finish")
	}
	if err != nil {
		return BuildInfo{}, errors.Wrap(err, "failed to read build_info")
	}
	info.Description = desc.String
	if t, perr := time.Parse(time.RFC3339, created); perr == nil {
		info.Created = t
	}
	return info, nil
}

var (
	measuredColumns    = []string{"m_id", "name", "lipid_class", "lipid_nc", "lipid_nu", "fa_mod", "adduct", "mz", "ccs", "rt"}
	theoreticalColumns = []string{"pm.t_id", "pm.name", "pm.lipid_class", "pm.lipid_nc", "pm.lipid_nu", "pm.fa_mod", "pm.adduct", "pm.mz", "pc.ccs", "pr.rt"}
)

func rangeExpr(col string, r core.Range) sq.Sqlizer {
	return sq.Expr(col+" BETWEEN ? AND ?", r.Min, r.Max)
}

// selectFor builds the SELECT for a query. Theoretical queries join the m/z
// table with the prediction tables; the joins are inner joins only for the
// dimensions being constrained.
func selectFor(q Query) (sq.SelectBuilder, error) {
	var b sq.SelectBuilder
	prefix := ""
	switch q.Table {
	case Measured:
		b = sq.Select(measuredColumns...).
			From("measured").
			OrderBy("m_id")
		if q.RT != nil {
			b = b.Where(rangeExpr("rt", *q.RT))
		}
		if q.CCS != nil {
			b = b.Where(rangeExpr("ccs", *q.CCS))
		}
	case Theoretical:
		prefix = "pm."
		b = sq.Select(theoreticalColumns...).
			From("predicted_mz AS pm").
			OrderBy("pm.t_id")
		if q.CCS != nil {
			b = b.Join("predicted_ccs AS pc ON pc.t_id = pm.t_id").Where(rangeExpr("pc.ccs", *q.CCS))
		} else {
			b = b.LeftJoin("predicted_ccs AS pc ON pc.t_id = pm.t_id")
		}
		if q.RT != nil {
			b = b.Join("predicted_rt AS pr ON pr.t_id = pm.t_id").Where(rangeExpr("pr.rt", *q.RT))
		} else {
			b = b.LeftJoin("predicted_rt AS pr ON pr.t_id = pm.t_id")
		}
	default:
		return b, errors.Newf("unknown table %q", q.Table)
	}

	b = b.Where(rangeExpr(prefix+"mz", q.MZ))
	if suffix := filter.PolaritySuffix(q.Polarity); suffix != "" {
		b = b.Where(sq.Like{prefix + "adduct": "%" + suffix})
	}
	return b, nil
}

// Search returns every record of the query table inside the ranges, in
// table order.
func (s *Store) Search(ctx context.Context, q Query) ([]Record, error) {
	b, err := selectFor(q)
	if err != nil {
		return nil, err
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query %s records", q.Table)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s records", q.Table)
	}
	s.log.Debugw("Reference query", "table", q.Table, "mz_min", q.MZ.Min, "mz_max", q.MZ.Max, "matches", len(out))
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, extra ...any) (Record, error) {
	var (
		r       Record
		mod     sql.NullString
		ccs, rt sql.NullFloat64
	)
	dest := append([]any{&r.ID, &r.Name, &r.Class, &r.NC, &r.NU, &mod, &r.Adduct, &r.MZ, &ccs, &rt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Record{}, errors.Wrap(err, "failed to scan record")
	}
	r.Mod = mod.String
	if ccs.Valid {
		r.CCS = Float(ccs.Float64)
	}
	if rt.Valid {
		r.RT = Float(rt.Float64)
	}
	return r, nil
}

// QueryByMZ returns records within an m/z range.
func (s *Store) QueryByMZ(ctx context.Context, t Table, mz core.Range, polarity string) ([]Record, error) {
	return s.Search(ctx, Query{Table: t, MZ: mz, Polarity: polarity})
}

// QueryByMZRT returns records within m/z and rt ranges.
func (s *Store) QueryByMZRT(ctx context.Context, t Table, mz, rt core.Range, polarity string) ([]Record, error) {
	return s.Search(ctx, Query{Table: t, MZ: mz, RT: &rt, Polarity: polarity})
}

// QueryByMZCCS returns records within m/z and CCS ranges.
func (s *Store) QueryByMZCCS(ctx context.Context, t Table, mz, ccs core.Range, polarity string) ([]Record, error) {
	return s.Search(ctx, Query{Table: t, MZ: mz, CCS: &ccs, Polarity: polarity})
}

// QueryByMZRTCCS returns records within m/z, rt and CCS ranges.
func (s *Store) QueryByMZRTCCS(ctx context.Context, t Table, mz, rt, ccs core.Range, polarity string) ([]Record, error) {
	return s.Search(ctx, Query{Table: t, MZ: mz, RT: &rt, CCS: &ccs, Polarity: polarity})
}
