package internal

import "sync"

// KeyedRWMutex hands out per-key read/write locks. Operations on different
// keys proceed independently; operations on the same key see the usual
// RWMutex semantics: readers share, a writer excludes everyone.
//
// Lock entries are reference counted and removed once the last holder
// releases, so the map does not grow with the ID space.
type KeyedRWMutex struct {
	mu      sync.Mutex
	entries map[string]*rwEntry
}

type rwEntry struct {
	l    sync.RWMutex
	refs int
}

func NewKeyedRWMutex() *KeyedRWMutex {
	return &KeyedRWMutex{entries: make(map[string]*rwEntry)}
}

func (k *KeyedRWMutex) acquire(key string) *rwEntry {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok {
		e = &rwEntry{}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *KeyedRWMutex) release(key string, e *rwEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// Lock takes the exclusive lock for key and returns the release func.
func (k *KeyedRWMutex) Lock(key string) func() {
	e := k.acquire(key)
	e.l.Lock()
	return func() {
		e.l.Unlock()
		k.release(key, e)
	}
}

// RLock takes the shared lock for key and returns the release func.
func (k *KeyedRWMutex) RLock(key string) func() {
	e := k.acquire(key)
	e.l.RLock()
	return func() {
		e.l.RUnlock()
		k.release(key, e)
	}
}
