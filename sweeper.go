package sesstore

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/avrellin/sesstore/metrics"
)

// Sweeper periodically walks the expiry index from its earliest entry and
// physically purges records whose time has elapsed. It reclaims the space
// the store's lazy checks alone would leave behind; it never creates or
// updates anything.
//
// The sweeper goes through the same per-record critical sections as
// foreground operations — there is no second locking path — so a purge can
// never race a concurrent renewal into inconsistency.
type Sweeper struct {
	store     *Store
	interval  time.Duration
	batchSize int

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// NewSweeper builds a sweeper over the store using its SweepConfig tunables.
func NewSweeper(store *Store) *Sweeper {
	return &Sweeper{
		store:     store,
		interval:  store.cfg.Sweep.Interval,
		batchSize: store.cfg.Sweep.BatchSize,
		done:      make(chan struct{}),
	}
}

// Start launches the background loop. Calling Start twice is a no-op.
func (w *Sweeper) Start() {
	w.startOnce.Do(func() {
		w.wg.Add(1)
		go w.run()
	})
}

func (w *Sweeper) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if _, err := w.RunOnce(context.Background()); err != nil {
				log.Printf("[sweeper] pass failed: %v", err)
			}
		}
	}
}

// RunOnce performs a single bounded sweep pass and reports how many records
// it purged. A per-record storage failure is skipped and retried on a later
// pass; already-purged entries stay purged either way, purging is idempotent.
func (w *Sweeper) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	now := w.store.cfg.Now().UTC()

	batch := w.store.index.expiredBatch(now, w.batchSize)

	purged := 0
	skipped := 0
	for _, entry := range batch {
		select {
		case <-ctx.Done():
			w.observe(start, purged)
			return purged, ctx.Err()
		default:
		}

		ok, err := w.store.purgeExpired(ctx, entry)
		if err != nil {
			// Skip-and-continue: one bad record must not abort the pass.
			skipped++
			log.Printf("[sweeper] purge %s: %v", entry.id, err)
			continue
		}
		if ok {
			purged++
		}
	}

	if purged > 0 || skipped > 0 {
		log.Printf("[sweeper] pass purged=%d skipped=%d", purged, skipped)
	}
	w.observe(start, purged)
	return purged, nil
}

func (w *Sweeper) observe(start time.Time, purged int) {
	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	metrics.SweepBatch.Observe(float64(purged))
}

// Close stops the background loop and waits for an in-flight pass to finish.
func (w *Sweeper) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
	})
}
