package sesstore

import (
	"context"
	"errors"
)

// TransitionTable migrates live sessions between backends without a flag day.
// Reads fall back from the primary table to a legacy one; every write lands
// in the primary and evicts the legacy copy, so records drain out of the old
// backend as they are touched. Once the legacy table is empty it can be torn
// down and the wrapper removed.
type TransitionTable struct {
	primary Table
	legacy  Table
}

// NewTransitionTable wraps primary with read-through fallback to legacy.
func NewTransitionTable(primary, legacy Table) *TransitionTable {
	return &TransitionTable{primary: primary, legacy: legacy}
}

// Put writes to the primary and evicts any legacy copy. A legacy eviction
// failure is surfaced: leaving a stale duplicate behind would let a later
// fallback read resurrect an old payload.
func (t *TransitionTable) Put(ctx context.Context, rec *Record) error {
	if err := t.primary.Put(ctx, rec); err != nil {
		return err
	}
	if _, err := t.legacy.Delete(ctx, rec.ID); err != nil {
		return err
	}
	return nil
}

// Get reads from the primary, falling back to the legacy table.
func (t *TransitionTable) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := t.primary.Get(ctx, id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return t.legacy.Get(ctx, id)
}

// Delete removes the record from both tables.
func (t *TransitionTable) Delete(ctx context.Context, id string) (bool, error) {
	inPrimary, err := t.primary.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	inLegacy, err := t.legacy.Delete(ctx, id)
	if err != nil {
		return inPrimary, err
	}
	return inPrimary || inLegacy, nil
}

// Walk enumerates the primary table, then legacy records not shadowed by a
// primary copy.
func (t *TransitionTable) Walk(ctx context.Context, fn func(rec *Record) error) error {
	seen := make(map[string]struct{})
	err := t.primary.Walk(ctx, func(rec *Record) error {
		seen[rec.ID] = struct{}{}
		return fn(rec)
	})
	if err != nil {
		return err
	}
	return t.legacy.Walk(ctx, func(rec *Record) error {
		if _, ok := seen[rec.ID]; ok {
			return nil
		}
		return fn(rec)
	})
}
