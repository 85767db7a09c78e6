// Package refdb provides read access to the lipid reference database of
// measured and theoretical records.
package refdb

import (
	"time"

	"github.com/cockroachdb/errors"
)

// SchemaVersion is written to build_info by the database writer.
const SchemaVersion = "1.1.0"

// supportedSchemas is the semver constraint checked when opening a database.
const supportedSchemas = ">= 1.0.0, < 2.0.0"

// Schema creates all reference tables. Theoretical records keep m/z,
// predicted CCS and predicted rt in separate tables joined on t_id so
// predictions can be attached after the m/z table is filled.
const Schema = `
CREATE TABLE IF NOT EXISTS measured (
	m_id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	lipid_class TEXT NOT NULL,
	lipid_nc INTEGER NOT NULL,
	lipid_nu INTEGER NOT NULL,
	fa_mod TEXT,
	adduct TEXT NOT NULL,
	mz REAL NOT NULL,
	ccs REAL,
	rt REAL,
	smi TEXT,
	src_tag TEXT,
	ccs_type TEXT,
	ccs_method TEXT
);

CREATE TABLE IF NOT EXISTS predicted_mz (
	t_id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	lipid_class TEXT NOT NULL,
	lipid_nc INTEGER NOT NULL,
	lipid_nu INTEGER NOT NULL,
	fa_mod TEXT,
	adduct TEXT NOT NULL,
	mz REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS predicted_ccs (
	t_id INTEGER PRIMARY KEY REFERENCES predicted_mz(t_id),
	ccs REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS predicted_rt (
	t_id INTEGER PRIMARY KEY REFERENCES predicted_mz(t_id),
	rt REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS build_info (
	build_id TEXT NOT NULL,
	schema_version TEXT NOT NULL,
	created TEXT NOT NULL,
	n_measured INTEGER NOT NULL,
	n_theoretical INTEGER NOT NULL,
	description TEXT
);

CREATE INDEX IF NOT EXISTS idx_measured_mz ON measured(mz);
CREATE INDEX IF NOT EXISTS idx_predicted_mz_mz ON predicted_mz(mz);
`

// Sentinel errors returned when opening a database.
var (
	ErrDatabaseMissing = errors.New("reference database not found")
	ErrSchemaVersion   = errors.New("unsupported reference database schema")
)

// Table selects which record kind a query runs against.
type Table string

const (
	Measured    Table = "measured"
	Theoretical Table = "theoretical"
)

// Record is one reference row. CCS and RT are nil when not available.
type Record struct {
	ID     int64
	Name   string
	Class  string
	NC     int
	NU     int
	Mod    string
	Adduct string
	MZ     float64
	CCS    *float64
	RT     *float64
}

// Label returns the candidate label "{name}_{adduct}".
func (r Record) Label() string {
	return r.Name + "_" + r.Adduct
}

// MeasuredRecord is a measured reference with its provenance.
type MeasuredRecord struct {
	Record
	SMILES    string
	SrcTag    string
	CCSType   string // DT, TW or TIMS
	CCSMethod string
}

// BuildInfo describes one database build.
type BuildInfo struct {
	BuildID       string
	SchemaVersion string
	Created       time.Time
	NMeasured     int
	NTheoretical  int
	Description   string
}

// Float returns a pointer to v, for optional record values.
func Float(v float64) *float64 {
	return &v
}
