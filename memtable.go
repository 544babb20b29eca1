package sesstore

import (
	"context"
	"sync"
)

// MemoryTable is a map-backed [Table]. It honors the full contract except
// cross-process durability, which makes it the backend for tests and for
// deployments that accept losing sessions on restart.
type MemoryTable struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryTable returns an empty in-memory table.
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{records: make(map[string]*Record)}
}

// Put stores a copy of rec.
func (t *MemoryTable) Put(_ context.Context, rec *Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[rec.ID] = rec.Clone()
	return nil
}

// Get returns a copy of the stored record or [ErrNotFound].
func (t *MemoryTable) Get(_ context.Context, id string) (*Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Delete removes the record, reporting whether it was present.
func (t *MemoryTable) Delete(_ context.Context, id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.records[id]
	if ok {
		delete(t.records, id)
	}
	return ok, nil
}

// Walk visits every stored record.
func (t *MemoryTable) Walk(_ context.Context, fn func(rec *Record) error) error {
	t.mu.RLock()
	snapshot := make([]*Record, 0, len(t.records))
	for _, rec := range t.records {
		snapshot = append(snapshot, rec.Clone())
	}
	t.mu.RUnlock()

	for _, rec := range snapshot {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of physically stored records, dead or alive.
func (t *MemoryTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}
