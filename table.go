package sesstore

import "context"

// Table is the durable record table contract: point lookups and writes keyed
// by session ID. Implementations must make a successful Put or Delete durable
// before returning, and must surface backend failures wrapped in
// [ErrStorageUnavailable] so the store can treat them as fatal to the
// enclosing operation.
//
// Timestamps must round-trip exactly at microsecond precision: a Get or Walk
// after a successful Put returns Created and Expires equal (in the
// [time.Time.Equal] sense) to what was written. The store canonicalizes
// every timestamp it writes to whole microseconds, the coarsest precision a
// supported backend persists, so the stored expiry is always identical to
// the in-memory index key derived from it.
//
// Walk exists only so the store can rebuild its derived expiry index at
// startup; it is never called on a hot path and implementations may serve it
// at whatever cost their medium requires.
type Table interface {
	// Put writes or replaces the record. Durable on successful return.
	Put(ctx context.Context, rec *Record) error

	// Get returns the record for id, or [ErrNotFound]. Expiry is not the
	// table's concern: dead-but-present records are returned as stored.
	Get(ctx context.Context, id string) (*Record, error)

	// Delete removes the record, reporting whether one was physically present.
	// Deleting an absent record is not an error.
	Delete(ctx context.Context, id string) (bool, error)

	// Walk calls fn for every stored record. Enumeration order is
	// unspecified. A non-nil error from fn stops the walk and is returned.
	Walk(ctx context.Context, fn func(rec *Record) error) error
}
