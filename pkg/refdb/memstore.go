package refdb

import (
	"context"
	"sync"

	"github.com/ChrisMcGann/LipidKey/pkg/filter"
	"github.com/cockroachdb/errors"
)

// MemStore is an in-memory reference store with the same query semantics
// as Store. It is safe for concurrent use.
type MemStore struct {
	mu          sync.RWMutex
	measured    []Record
	theoretical []Record
	index       map[int64]int // t_id -> position in theoretical
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{index: make(map[int64]int)}
}

// AddMeasured appends a measured record and returns its id.
func (m *MemStore) AddMeasured(r Record) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = int64(len(m.measured) + 1)
	m.measured = append(m.measured, r)
	return r.ID
}

// AddTheoretical appends a theoretical record and returns its id. Any CCS
// or RT already set on r is kept as its prediction.
func (m *MemStore) AddTheoretical(r Record) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = int64(len(m.theoretical) + 1)
	m.index[r.ID] = len(m.theoretical)
	m.theoretical = append(m.theoretical, r)
	return r.ID
}

// SetPredictedCCS attaches a CCS prediction to a theoretical record.
func (m *MemStore) SetPredictedCCS(id int64, ccs float64) error {
	return m.setPrediction(id, func(r *Record) { r.CCS = Float(ccs) })
}

// SetPredictedRT attaches a retention time prediction to a theoretical record.
func (m *MemStore) SetPredictedRT(id int64, rt float64) error {
	return m.setPrediction(id, func(r *Record) { r.RT = Float(rt) })
}

func (m *MemStore) setPrediction(id int64, set func(*Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.index[id]
	if !ok {
		return errors.Newf("no theoretical record with id %d", id)
	}
	set(&m.theoretical[i])
	return nil
}

// Search returns every record of the query table inside the ranges, in
// insertion order.
func (m *MemStore) Search(ctx context.Context, q Query) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var src []Record
	switch q.Table {
	case Measured:
		src = m.measured
	case Theoretical:
		src = m.theoretical
	default:
		return nil, errors.Newf("unknown table %q", q.Table)
	}

	var out []Record
	for _, r := range src {
		if !q.MZ.Contains(r.MZ) || !filter.MatchesPolarity(r.Adduct, q.Polarity) {
			continue
		}
		if q.RT != nil && (r.RT == nil || !q.RT.Contains(*r.RT)) {
			continue
		}
		if q.CCS != nil && (r.CCS == nil || !q.CCS.Contains(*r.CCS)) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Len returns the number of measured and theoretical records.
func (m *MemStore) Len() (measured, theoretical int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.measured), len(m.theoretical)
}
