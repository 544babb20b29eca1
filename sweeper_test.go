package sesstore

import (
	"context"
	"testing"
	"time"
)

func TestSweepRespectsBatchSize(t *testing.T) {
	clock := newFakeClock()
	table := NewMemoryTable()

	cfg := DefaultConfig()
	cfg.Now = clock.Now
	cfg.Sweep.BatchSize = 4

	store, err := New(table, cfg)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if _, err := store.Create(ctx, nil, time.Minute); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	clock.Advance(2 * time.Minute)

	sweeper := NewSweeper(store)
	purged, err := sweeper.RunOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if purged != 4 {
		t.Fatalf("expected batch-bounded pass to purge 4, got %d", purged)
	}

	// The remainder drains over subsequent passes.
	total := purged
	for total < 10 {
		n, err := sweeper.RunOnce(ctx)
		if err != nil {
			t.Fatalf("follow-up sweep: %v", err)
		}
		if n == 0 {
			t.Fatalf("sweep stalled with %d records left", table.Len())
		}
		total += n
	}
	if table.Len() != 0 {
		t.Fatalf("expected empty table, got %d", table.Len())
	}
}

func TestSweepGuardsAgainstConcurrentRenewal(t *testing.T) {
	store, table, clock := newTestStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, []byte("x"), time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	oldExpires := clock.Now().UTC().Add(time.Minute)

	// The sweeper snapshots (oldExpires, id), then the record is renewed
	// before the purge critical section runs. The stale entry must not kill
	// the renewed record.
	if err := store.Touch(ctx, id, time.Hour); err != nil {
		t.Fatalf("touch: %v", err)
	}
	clock.Advance(2 * time.Minute)

	purged, err := store.purgeExpired(ctx, indexEntry{expires: oldExpires, id: id})
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged {
		t.Fatal("stale sweep entry purged a renewed record")
	}
	if _, err := store.Get(ctx, id); err != nil {
		t.Fatalf("renewed record must survive the sweep: %v", err)
	}
	checkIndexTableConsistency(t, store, table)
}

func TestSweepSkipsLiveAndAbsentEntries(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, []byte("x"), time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	rec, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	// Entry matches but the record is still live under the current clock.
	purged, err := store.purgeExpired(ctx, indexEntry{expires: rec.Expires, id: id})
	if err != nil {
		t.Fatalf("purge live: %v", err)
	}
	if purged {
		t.Fatal("sweep purged a live record")
	}

	// Entry for a record that no longer exists is a silent no-op.
	clock.Advance(2 * time.Hour)
	if _, err := store.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	purged, err = store.purgeExpired(ctx, indexEntry{expires: rec.Expires, id: id})
	if err != nil {
		t.Fatalf("purge absent: %v", err)
	}
	if purged {
		t.Fatal("sweep reported purging an absent record")
	}
}

func TestSweeperStartClose(t *testing.T) {
	clock := newFakeClock()
	table := NewMemoryTable()

	cfg := DefaultConfig()
	cfg.Now = clock.Now
	cfg.Sweep.Interval = time.Millisecond

	store, err := New(table, cfg)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if _, err := store.Create(ctx, nil, time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.Advance(2 * time.Minute)

	sweeper := NewSweeper(store)
	sweeper.Start()
	sweeper.Start() // second Start is a no-op

	deadline := time.After(2 * time.Second)
	for table.Len() != 0 {
		select {
		case <-deadline:
			t.Fatalf("background sweeper never purged, %d resident", table.Len())
		case <-time.After(5 * time.Millisecond):
		}
	}

	sweeper.Close()
	sweeper.Close() // idempotent
}
