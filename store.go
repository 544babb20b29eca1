package sesstore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/avrellin/sesstore/internal"
	"github.com/avrellin/sesstore/metrics"
)

// Store is the public face of the engine: five operations over a durable
// [Table] and a derived in-memory expiry index, with lazy expiry enforced on
// every read.
//
// The store exclusively owns the coupling between table and index. Every
// mutation of the pair happens inside a per-record critical section, so no
// operation — the sweeper included — can observe a state where one structure
// reflects a change the other does not.
type Store struct {
	table  Table
	index  *expiryIndex
	cfg    Config
	locks  *internal.KeyedRWMutex
	events *eventDispatcher
	closed atomic.Bool
}

// lookupOutcome is the internal, precise shape of a lookup. The external
// contract collapses absent and expired into one ErrNotFound; internally the
// distinction matters (delete must still purge an expired record, metrics
// count expired reads separately).
type lookupOutcome uint8

const (
	lookupFound lookupOutcome = iota
	lookupAbsent
	lookupExpired
)

// New builds a [Store] over the given table and rebuilds the expiry index
// from it. The walk is the recovery path for the derived index: the table is
// the source of truth for every expiry value, the index never is.
func New(table Table, cfg Config) (*Store, error) {
	if table == nil {
		return nil, errors.New("sesstore: table is required")
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Store{
		table:  table,
		index:  newExpiryIndex(),
		cfg:    cfg,
		locks:  internal.NewKeyedRWMutex(),
		events: newEventDispatcher(cfg.Events),
	}

	err := table.Walk(context.Background(), func(rec *Record) error {
		s.index.insert(rec.Expires, rec.ID)
		return nil
	})
	if err != nil {
		s.events.close()
		return nil, fmt.Errorf("sesstore: rebuild expiry index: %w", err)
	}
	metrics.ResidentSessions.Set(float64(s.index.len()))

	return s, nil
}

// Create generates a fresh identifier, writes the record and its index entry
// as one atomic unit, and returns the new ID. The record's expiry is
// now + ttl. Identifier generation retries a bounded number of times on
// collision before surfacing [ErrIDConflict].
func (s *Store) Create(ctx context.Context, data []byte, ttl time.Duration) (string, error) {
	if s.closed.Load() {
		return "", ErrStoreClosed
	}
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}

	for attempt := 0; attempt < s.cfg.CreateRetries; attempt++ {
		id, err := s.newID()
		if err != nil {
			return "", fmt.Errorf("sesstore: generate id: %w", err)
		}

		created, err := s.tryCreate(ctx, id, data, ttl)
		if err != nil {
			return "", err
		}
		if !created {
			metrics.IDCollisions.Inc()
			continue
		}
		return id, nil
	}

	return "", ErrIDConflict
}

// tryCreate commits the record under id unless the id is already taken.
// Returns false (and no error) on collision so Create can redraw.
func (s *Store) tryCreate(ctx context.Context, id string, data []byte, ttl time.Duration) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	// An id is taken while a record is physically present, even a dead one:
	// reusing it would silently adopt the old index entry.
	_, err := s.table.Get(ctx, id)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, ErrNotFound):
		metrics.StorageFailures.WithLabelValues("create").Inc()
		return false, err
	}

	// Whole microseconds only: timestamptz persists nothing finer, and the
	// stored expiry must stay Equal to the index key derived from it.
	now := s.cfg.Now().UTC().Truncate(time.Microsecond)
	rec := &Record{
		ID:      id,
		Created: now,
		Expires: now.Add(ttl).Truncate(time.Microsecond),
		Data:    cloneBytes(data),
	}

	if err := s.table.Put(ctx, rec); err != nil {
		metrics.StorageFailures.WithLabelValues("create").Inc()
		return false, err
	}
	s.index.insert(rec.Expires, id)

	metrics.SessionsCreated.Inc()
	metrics.ResidentSessions.Inc()
	s.emit(ctx, EventCreated, id, rec.Expires)
	return true, nil
}

// Get returns the live record for id, or [ErrNotFound] if it is absent or
// past its expiry. The two cases are deliberately indistinguishable.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	unlock := s.locks.RLock(id)
	defer unlock()

	rec, outcome, err := s.load(ctx, id, "get")
	if err != nil {
		return nil, err
	}
	if outcome != lookupFound {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Update replaces the payload of a live record. Expiry is untouched; renewal
// is Touch's job, not Update's.
func (s *Store) Update(ctx context.Context, id string, data []byte) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	rec, outcome, err := s.load(ctx, id, "update")
	if err != nil {
		return err
	}
	if outcome != lookupFound {
		return ErrNotFound
	}

	rec.Data = cloneBytes(data)
	if err := s.table.Put(ctx, rec); err != nil {
		metrics.StorageFailures.WithLabelValues("update").Inc()
		return err
	}

	s.emit(ctx, EventUpdated, id, rec.Expires)
	return nil
}

// Touch renews a live record to expire at now + ttl, atomically replacing its
// index entry. The expiry only ever moves forward: a ttl that would land
// before the current expiry leaves it unchanged. Touching a dead record is
// refused with [ErrNotFound] — a dead session must be recreated, never
// resurrected.
func (s *Store) Touch(ctx context.Context, id string, ttl time.Duration) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	rec, outcome, err := s.load(ctx, id, "touch")
	if err != nil {
		return err
	}
	if outcome != lookupFound {
		return ErrNotFound
	}

	oldExpires := rec.Expires
	newExpires := s.cfg.Now().UTC().Add(ttl).Truncate(time.Microsecond)
	if !newExpires.After(oldExpires) {
		return nil
	}

	rec.Expires = newExpires
	if err := s.table.Put(ctx, rec); err != nil {
		metrics.StorageFailures.WithLabelValues("touch").Inc()
		return err
	}
	s.index.reinsert(oldExpires, newExpires, id)

	s.emit(ctx, EventTouched, id, newExpires)
	return nil
}

// Delete physically removes the record and its index entry, dead or alive.
// It is idempotent and reports whether a live record existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	if s.closed.Load() {
		return false, ErrStoreClosed
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	rec, outcome, err := s.load(ctx, id, "delete")
	if err != nil {
		return false, err
	}
	if outcome == lookupAbsent {
		return false, nil
	}

	if _, err := s.table.Delete(ctx, id); err != nil {
		metrics.StorageFailures.WithLabelValues("delete").Inc()
		return false, err
	}
	s.index.remove(rec.Expires, id)

	metrics.SessionsDeleted.Inc()
	metrics.ResidentSessions.Dec()
	s.emit(ctx, EventDeleted, id, rec.Expires)
	return outcome == lookupFound, nil
}

// Len returns the number of physically resident records, dead or alive.
func (s *Store) Len() int {
	return s.index.len()
}

// DroppedEvents reports how many lifecycle events were discarded because the
// dispatch buffer was full.
func (s *Store) DroppedEvents() uint64 {
	return s.events.droppedCount()
}

// Close stops event dispatch after draining buffered events. Operations
// issued after Close return [ErrStoreClosed]. Close does not touch the
// table; the durable backend belongs to the caller.
func (s *Store) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.events.close()
}

// load reads the record and classifies the outcome. The returned record is
// the table's copy and is present for both found and expired outcomes, so
// Delete and the sweeper can remove dead records precisely.
func (s *Store) load(ctx context.Context, id, op string) (*Record, lookupOutcome, error) {
	rec, err := s.table.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, lookupAbsent, nil
		}
		metrics.StorageFailures.WithLabelValues(op).Inc()
		return nil, lookupAbsent, err
	}

	if !rec.Live(s.cfg.Now().UTC()) {
		metrics.ExpiredReads.Inc()
		return rec, lookupExpired, nil
	}
	return rec, lookupFound, nil
}

// purgeExpired removes one record iff the index entry the sweeper read is
// still current: the record must exist, still carry the same expiry, and
// still be dead under the current clock. A record renewed between the
// sweeper's snapshot and this critical section fails the expiry match and
// survives. Entries that match nothing in the table get removed, so a
// past-due index entry never outlives more than one sweep pass.
func (s *Store) purgeExpired(ctx context.Context, e indexEntry) (bool, error) {
	unlock := s.locks.Lock(e.id)
	defer unlock()

	rec, err := s.table.Get(ctx, e.id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// The record is gone but its entry survived. Drop the entry so
			// it cannot pin the front of the index forever.
			s.index.remove(e.expires, e.id)
			return false, nil
		}
		metrics.StorageFailures.WithLabelValues("sweep").Inc()
		return false, err
	}
	if !rec.Expires.Equal(e.expires) {
		// The entry no longer describes the stored record. A renewal already
		// reinserted it under the new expiry; if this key is still present it
		// is stale, and it is past-due, so removing it loses nothing.
		s.index.remove(e.expires, e.id)
		return false, nil
	}
	if rec.Live(s.cfg.Now().UTC()) {
		return false, nil
	}

	if _, err := s.table.Delete(ctx, e.id); err != nil {
		metrics.StorageFailures.WithLabelValues("sweep").Inc()
		return false, err
	}
	s.index.remove(e.expires, e.id)

	metrics.SessionsPurged.Inc()
	metrics.ResidentSessions.Dec()
	s.emit(ctx, EventExpired, e.id, e.expires)
	return true, nil
}

func (s *Store) newID() (string, error) {
	switch s.cfg.IDStrategy {
	case IDUUID:
		return uuid.NewString(), nil
	default:
		sid, err := internal.NewSessionID()
		if err != nil {
			return "", err
		}
		return sid.String(), nil
	}
}

func (s *Store) emit(ctx context.Context, typ EventType, id string, expires time.Time) {
	if s.events == nil {
		return
	}
	s.events.emit(ctx, Event{
		Type:      typ,
		SessionID: id,
		Expires:   expires,
		Timestamp: s.cfg.Now().UTC(),
	})
}
