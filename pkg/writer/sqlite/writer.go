// Package sqlite provides SQLite database writing for lipid reference databases
package sqlite

import (
	"database/sql"
	"time"

	"github.com/ChrisMcGann/LipidKey/pkg/lipid"
	"github.com/ChrisMcGann/LipidKey/pkg/refdb"
	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DefaultChunkSize is the number of rows written per transaction.
const DefaultChunkSize = 10000

// Writer handles writing reference records to SQLite database files.
// Rows are inserted in transactions of chunkSize rows.
type Writer struct {
	db         *sql.DB
	outputPath string
	chunkSize  int
	log        *zap.SugaredLogger

	tx      *sql.Tx
	pending int
	stmts   map[string]*sql.Stmt // prepared on db, rebound per transaction

	measuredID    int64
	theoreticalID int64
}

var inserts = map[string]string{
	"measured": `INSERT INTO measured (
		m_id, name, lipid_class, lipid_nc, lipid_nu, fa_mod, adduct,
		mz, ccs, rt, smi, src_tag, ccs_type, ccs_method
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	"predicted_mz": `INSERT INTO predicted_mz (
		t_id, name, lipid_class, lipid_nc, lipid_nu, fa_mod, adduct, mz
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	"predicted_ccs": `INSERT OR REPLACE INTO predicted_ccs (t_id, ccs) VALUES (?, ?)`,
	"predicted_rt":  `INSERT OR REPLACE INTO predicted_rt (t_id, rt) VALUES (?, ?)`,
}

// NewWriter creates a new SQLite writer and the reference schema.
func NewWriter(outputPath string, chunkSize int, log *zap.SugaredLogger) (*Writer, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	db, err := sql.Open("sqlite3", outputPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		chunkSize:  chunkSize,
		log:        log,
		stmts:      make(map[string]*sql.Stmt, len(inserts)),
	}

	if _, err := db.Exec(refdb.Schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create tables")
	}

	if err := w.prepareStatements(); err != nil {
		w.closeStatements()
		db.Close()
		return nil, err
	}

	return w, nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	for table, query := range inserts {
		stmt, err := w.db.Prepare(query)
		if err != nil {
			return errors.Wrapf(err, "failed to prepare %s statement", table)
		}
		w.stmts[table] = stmt
	}
	return nil
}

func (w *Writer) closeStatements() {
	for _, stmt := range w.stmts {
		stmt.Close()
	}
}

// exec runs one insert inside the current chunk, committing when the chunk
// is full.
func (w *Writer) exec(table string, args ...any) error {
	if w.tx == nil {
		tx, err := w.db.Begin()
		if err != nil {
			return errors.Wrap(err, "failed to begin transaction")
		}
		w.tx = tx
	}
	if _, err := w.tx.Stmt(w.stmts[table]).Exec(args...); err != nil {
		return errors.Wrapf(err, "failed to insert into %s", table)
	}
	w.pending++
	if w.pending >= w.chunkSize {
		return w.Flush()
	}
	return nil
}

// Flush commits the open transaction, if any.
func (w *Writer) Flush() error {
	if w.tx == nil {
		return nil
	}
	tx, n := w.tx, w.pending
	w.tx, w.pending = nil, 0
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit chunk")
	}
	w.log.Debugw("Committed chunk", "rows", n)
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// WriteMeasured writes a measured record and returns its assigned m_id.
func (w *Writer) WriteMeasured(r refdb.MeasuredRecord) (int64, error) {
	id := w.measuredID + 1
	err := w.exec("measured",
		id,                    // m_id
		r.Name,                // name
		r.Class,               // lipid_class
		r.NC,                  // lipid_nc
		r.NU,                  // lipid_nu
		nullable(r.Mod),       // fa_mod
		r.Adduct,              // adduct
		r.MZ,                  // mz
		nullableFloat(r.CCS),  // ccs
		nullableFloat(r.RT),   // rt
		nullable(r.SMILES),    // smi
		nullable(r.SrcTag),    // src_tag
		nullable(r.CCSType),   // ccs_type
		nullable(r.CCSMethod), // ccs_method
	)
	if err != nil {
		return 0, err
	}
	w.measuredID = id
	return id, nil
}

// WriteTheoretical writes one enumerated entry to predicted_mz and returns
// its assigned t_id.
func (w *Writer) WriteTheoretical(e lipid.Entry) (int64, error) {
	id := w.theoreticalID + 1
	err := w.exec("predicted_mz",
		id, e.Name, e.Class, e.NC, e.NU, nullable(e.Mod), e.Adduct, e.MZ)
	if err != nil {
		return 0, err
	}
	w.theoreticalID = id
	return id, nil
}

// WritePredictedCCS attaches a predicted CCS to a theoretical record.
func (w *Writer) WritePredictedCCS(id int64, ccs float64) error {
	return w.exec("predicted_ccs", id, ccs)
}

// WritePredictedRT attaches a predicted retention time to a theoretical record.
func (w *Writer) WritePredictedRT(id int64, rt float64) error {
	return w.exec("predicted_rt", id, rt)
}

// Counts returns the number of measured and theoretical rows written.
func (w *Writer) Counts() (measured, theoretical int) {
	return int(w.measuredID), int(w.theoreticalID)
}

// Store flushes pending rows and returns a read view of the database being
// written.
func (w *Writer) Store() (*refdb.Store, error) {
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return refdb.New(w.db, w.log), nil
}

// Finalize writes build_info and closes the database. info.SchemaVersion,
// info.Created and the row counts are filled in when unset.
func (w *Writer) Finalize(info refdb.BuildInfo) error {
	if err := w.Flush(); err != nil {
		return err
	}

	if info.SchemaVersion == "" {
		info.SchemaVersion = refdb.SchemaVersion
	}
	if info.Created.IsZero() {
		info.Created = time.Now().UTC()
	}
	if info.NMeasured == 0 && info.NTheoretical == 0 {
		info.NMeasured, info.NTheoretical = w.Counts()
	}

	_, err := w.db.Exec(`
		INSERT INTO build_info (build_id, schema_version, created, n_measured, n_theoretical, description)
		VALUES (?, ?, ?, ?, ?, ?)
	`, info.BuildID, info.SchemaVersion, info.Created.Format(time.RFC3339), info.NMeasured, info.NTheoretical, nullable(info.Description))
	if err != nil {
		return errors.Wrap(err, "failed to insert build info")
	}
	w.log.Infow("Reference database written",
		"path", w.outputPath,
		"build_id", info.BuildID,
		"measured", info.NMeasured,
		"theoretical", info.NTheoretical,
	)

	return w.Close()
}

// Close rolls back any uncommitted rows and closes the database connection.
func (w *Writer) Close() error {
	if w.tx != nil {
		w.tx.Rollback()
		w.tx, w.pending = nil, 0
	}
	w.closeStatements()
	w.stmts = map[string]*sql.Stmt{}

	if err := w.db.Close(); err != nil {
		return errors.Wrap(err, "failed to close database")
	}
	return nil
}
