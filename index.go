package sesstore

import (
	"sync"
	"time"

	"github.com/google/btree"
)

// indexEntry is one expiry index key. The ID is part of the key so two
// records expiring at the identical instant still occupy distinct entries.
type indexEntry struct {
	expires time.Time
	id      string
}

func indexEntryLess(a, b indexEntry) bool {
	if !a.expires.Equal(b.expires) {
		return a.expires.Before(b.expires)
	}
	return a.id < b.id
}

// expiryIndex is the in-memory ordered structure mapping (expires, id) to the
// set of records currently in the table. It is derived state: the table is
// the source of truth and the index is rebuilt from it at startup. All
// mutations happen inside the store's per-record critical sections, so the
// index holds exactly the table's ID set whenever no mutation is in flight.
type expiryIndex struct {
	mu   sync.Mutex
	tree *btree.BTreeG[indexEntry]
}

const indexDegree = 32

func newExpiryIndex() *expiryIndex {
	return &expiryIndex{tree: btree.NewG(indexDegree, indexEntryLess)}
}

func (x *expiryIndex) insert(expires time.Time, id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.tree.ReplaceOrInsert(indexEntry{expires: expires, id: id})
}

func (x *expiryIndex) remove(expires time.Time, id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, ok := x.tree.Delete(indexEntry{expires: expires, id: id})
	return ok
}

// reinsert moves an entry to a new expiry. Implemented as remove+insert;
// btree keys are never mutated in place.
func (x *expiryIndex) reinsert(oldExpires, newExpires time.Time, id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.tree.Delete(indexEntry{expires: oldExpires, id: id})
	x.tree.ReplaceOrInsert(indexEntry{expires: newExpires, id: id})
}

// expiredBatch returns up to limit entries with expires <= now, in ascending
// order from the front of the tree. Each call re-scans from the current
// front, so a partially consumed batch is simply re-produced next time.
func (x *expiryIndex) expiredBatch(now time.Time, limit int) []indexEntry {
	if limit <= 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	batch := make([]indexEntry, 0, limit)
	x.tree.Ascend(func(e indexEntry) bool {
		if e.expires.After(now) {
			return false
		}
		batch = append(batch, e)
		return len(batch) < limit
	})
	return batch
}

func (x *expiryIndex) len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.tree.Len()
}

// entries snapshots the whole index in order. Test and rebuild support only.
func (x *expiryIndex) entries() []indexEntry {
	x.mu.Lock()
	defer x.mu.Unlock()

	out := make([]indexEntry, 0, x.tree.Len())
	x.tree.Ascend(func(e indexEntry) bool {
		out = append(out, e)
		return true
	})
	return out
}
