package refdb

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/stat"
)

// MeasuredRecords returns measured records, optionally restricted to the
// given source tags, in insertion order.
func (s *Store) MeasuredRecords(ctx context.Context, srcTags ...string) ([]MeasuredRecord, error) {
	b := sq.Select(measuredColumns...).
		Columns("smi", "src_tag", "ccs_type", "ccs_method").
		From("measured").
		OrderBy("m_id")
	if len(srcTags) > 0 {
		b = b.Where(sq.Eq{"src_tag": srcTags})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query measured records")
	}
	defer rows.Close()

	var out []MeasuredRecord
	for rows.Next() {
		var smi, tag, ccsType, ccsMethod sql.NullString
		r, err := scanRecord(rows, &smi, &tag, &ccsType, &ccsMethod)
		if err != nil {
			return nil, err
		}
		out = append(out, MeasuredRecord{
			Record:    r,
			SMILES:    smi.String,
			SrcTag:    tag.String,
			CCSType:   ccsType.String,
			CCSMethod: ccsMethod.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read measured records")
	}
	return out, nil
}

// TheoreticalRecords returns every theoretical record with any predictions
// attached so far, in t_id order.
func (s *Store) TheoreticalRecords(ctx context.Context) ([]Record, error) {
	query, args, err := sq.Select(theoreticalColumns...).
		From("predicted_mz AS pm").
		LeftJoin("predicted_ccs AS pc ON pc.t_id = pm.t_id").
		LeftJoin("predicted_rt AS pr ON pr.t_id = pm.t_id").
		OrderBy("pm.t_id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query theoretical records")
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
		return nil, errors.Wrap(err, "failed to read theoretical records")
	}
	return out, nil
}

// ReferenceRT returns the mean measured retention time for a class and
// carbon count. nu restricts the match to one unsaturation when non-nil.
// The second return value is false when no measured rt exists.
func (s *Store) ReferenceRT(ctx context.Context, class string, nc int, nu *int, mod string) (float64, bool, error) {
	b := sq.Select("rt").
		From("measured").
		Where(sq.Eq{"lipid_class": class, "lipid_nc": nc}).
		Where(sq.NotEq{"rt": nil})
	if nu != nil {
		b = b.Where(sq.Eq{"lipid_nu": *nu})
	}
	if mod == "" {
		b = b.Where(sq.Or{sq.Eq{"fa_mod": nil}, sq.Eq{"fa_mod": ""}})
	} else {
		b = b.Where(sq.Eq{"fa_mod": mod})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return 0, false, errors.Wrap(err, "failed to build query")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, false, errors.Wrap(err, "failed to query reference retention times")
	}
	defer rows.Close()

	var rts []float64
	for rows.Next() {
		var rt float64
		if err := rows.Scan(&rt); err != nil {
			return 0, false, errors.Wrap(err, "failed to scan retention time")
		}
		rts = append(rts, rt)
	}
	if err := rows.Err(); err != nil {
		return 0, false, errors.Wrap(err, "failed to read retention times")
	}
	if len(rts) == 0 {
		return 0, false, nil
	}
	return stat.Mean(rts, nil), true, nil
}

// Summary holds table row counts and build metadata.
type Summary struct {
	Build          BuildInfo
	Measured       int
	MeasuredByCCS  int
	MeasuredByRT   int
	Theoretical    int
	PredictedCCS   int
	PredictedRT    int
	MeasuredSource map[string]int
}

// Summarize counts rows in every reference table.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	info, err := s.BuildInfo(ctx)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Build: info, MeasuredSource: make(map[string]int)}

	counts := []struct {
		dst *int
		b   sq.SelectBuilder
	}{
		{&sum.Measured, sq.Select("COUNT(*)").From("measured")},
		{&sum.MeasuredByCCS, sq.Select("COUNT(*)").From("measured").Where(sq.NotEq{"ccs": nil})},
		{&sum.MeasuredByRT, sq.Select("COUNT(*)").From("measured").Where(sq.NotEq{"rt": nil})},
		{&sum.Theoretical, sq.Select("COUNT(*)").From("predicted_mz")},
		{&sum.PredictedCCS, sq.Select("COUNT(*)").From("predicted_ccs")},
		{&sum.PredictedRT, sq.Select("COUNT(*)").From("predicted_rt")},
	}
	for _, c := range counts {
		query, args, err := c.b.ToSql()
		if err != nil {
			return Summary{}, errors.Wrap(err, "failed to build query")
		}
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(c.dst); err != nil {
			return Summary{}, errors.Wrap(err, "failed to count rows")
		}
	}

	query, args, err := sq.Select("COALESCE(src_tag, '')", "COUNT(*)").From("measured").GroupBy("src_tag").ToSql()
	if err != nil {
		return Summary{}, errors.Wrap(err, "failed to build query")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Summary{}, errors.Wrap(err, "failed to count measured sources")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			tag string
			n   int
		)
		if err := rows.Scan(&tag, &n); err != nil {
			return Summary{}, errors.Wrap(err, "failed to scan source count")
		}
		sum.MeasuredSource[tag] = n
	}
	if err := rows.Err(); err != nil {
		return Summary{}, errors.Wrap(err, "failed to read source counts")
	}
	return sum, nil
}
