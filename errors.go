package sesstore

import "errors"

var (
	// ErrNotFound is returned when no live record exists for an ID. It covers
	// both "never existed" and "existed but expired"; callers cannot tell the
	// two apart.
	ErrNotFound = errors.New("session not found")
	// ErrIDConflict is returned when identifier generation kept colliding with
	// live records after the configured number of retries.
	ErrIDConflict = errors.New("session id conflict")
	// ErrStorageUnavailable is returned when the durable backend rejected or
	// failed an operation. The operation had no partial effect.
	ErrStorageUnavailable = errors.New("session storage unavailable")
	// ErrCorruptRecord is returned when a stored record blob cannot be decoded.
	ErrCorruptRecord = errors.New("session record corrupt")
	// ErrInvalidTTL is returned when a create or touch is given a
	// non-positive TTL.
	ErrInvalidTTL = errors.New("invalid session ttl")
	// ErrStoreClosed is returned by operations issued after Close.
	ErrStoreClosed = errors.New("session store closed")
)
