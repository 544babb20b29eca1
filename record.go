package sesstore

import "time"

// Record is a stored session. ID is the primary identity and is generated by
// the [Store], never by callers. Data is an opaque payload, replaced whole on
// update. Created is immutable; Expires moves only forward, through Touch.
type Record struct {
	ID      string
	Created time.Time
	Expires time.Time
	Data    []byte
}

// Live reports whether the record is still alive at the given instant.
// A record with Expires <= now is dead for all read purposes even if it is
// still physically present.
func (r *Record) Live(now time.Time) bool {
	return r.Expires.After(now)
}

// Clone returns a deep copy. Backends and the store hand out clones so a
// caller mutating the returned record or its Data cannot corrupt stored state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Data = cloneBytes(r.Data)
	return &out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
