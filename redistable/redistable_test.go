package redistable

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/avrellin/sesstore"
)

func newRedisTableTest(t *testing.T) (*Table, *redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	table := New(rdb, "st")
	return table, rdb, func() {
		rdb.Close()
		mr.Close()
	}
}

func testRecord(id string, ttl time.Duration) *sesstore.Record {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return &sesstore.Record{
		ID:      id,
		Created: now,
		Expires: now.Add(ttl),
		Data:    []byte("payload-" + id),
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	table, _, done := newRedisTableTest(t)
	defer done()
	ctx := context.Background()

	rec := testRecord("r-1", time.Hour)
	if err := table.Put(ctx, rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := table.Get(ctx, "r-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != rec.ID || !got.Created.Equal(rec.Created) || !got.Expires.Equal(rec.Expires) {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, rec)
	}
	if !bytes.Equal(got.Data, rec.Data) {
		t.Fatalf("payload mismatch: %q vs %q", got.Data, rec.Data)
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	table, _, done := newRedisTableTest(t)
	defer done()

	if _, err := table.Get(context.Background(), "missing"); !errors.Is(err, sesstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetCorruptBlob(t *testing.T) {
	table, rdb, done := newRedisTableTest(t)
	defer done()
	ctx := context.Background()

	if err := rdb.Set(ctx, table.key("bad"), []byte{0xFF, 0x01}, 0).Err(); err != nil {
		t.Fatalf("seed corrupt blob: %v", err)
	}
	if _, err := table.Get(ctx, "bad"); !errors.Is(err, sesstore.ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord, got %v", err)
	}
}

func TestDeleteMaintainsZSetMirror(t *testing.T) {
	table, rdb, done := newRedisTableTest(t)
	defer done()
	ctx := context.Background()

	rec := testRecord("r-1", time.Hour)
	if err := table.Put(ctx, rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	score, err := rdb.ZScore(ctx, table.expKey(), "r-1").Result()
	if err != nil {
		t.Fatalf("zscore: %v", err)
	}
	if int64(score) != rec.Expires.UnixMilli() {
		t.Fatalf("zset score %d does not match expiry %d", int64(score), rec.Expires.UnixMilli())
	}

	existed, err := table.Delete(ctx, "r-1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !existed {
		t.Fatal("expected delete to report existed")
	}
	if err := rdb.ZScore(ctx, table.expKey(), "r-1").Err(); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected zset member removed, got %v", err)
	}

	existed, err = table.Delete(ctx, "r-1")
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if existed {
		t.Fatal("expected second delete to report nothing")
	}
}

func TestPutReplacementMovesZSetScore(t *testing.T) {
	table, rdb, done := newRedisTableTest(t)
	defer done()
	ctx := context.Background()

	rec := testRecord("r-1", time.Hour)
	if err := table.Put(ctx, rec); err != nil {
		t.Fatalf("put: %v", err)
	}
	rec.Expires = rec.Expires.Add(time.Hour)
	if err := table.Put(ctx, rec); err != nil {
		t.Fatalf("replace: %v", err)
	}

	n, err := rdb.ZCard(ctx, table.expKey()).Result()
	if err != nil {
		t.Fatalf("zcard: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected single zset member after replace, got %d", n)
	}
	score, err := rdb.ZScore(ctx, table.expKey(), "r-1").Result()
	if err != nil {
		t.Fatalf("zscore: %v", err)
	}
	if int64(score) != rec.Expires.UnixMilli() {
		t.Fatalf("zset score not updated: %d vs %d", int64(score), rec.Expires.UnixMilli())
	}
}

func TestWalkAscendingExpiry(t *testing.T) {
	table, _, done := newRedisTableTest(t)
	defer done()
	ctx := context.Background()

	// Inserted out of order; the walk follows the ZSET ordering.
	for _, tc := range []struct {
		id  string
		ttl time.Duration
	}{
		{"late", 3 * time.Hour},
		{"early", time.Hour},
		{"middle", 2 * time.Hour},
	} {
		if err := table.Put(ctx, testRecord(tc.id, tc.ttl)); err != nil {
			t.Fatalf("put %s: %v", tc.id, err)
		}
	}

	var order []string
	err := table.Walk(ctx, func(rec *sesstore.Record) error {
		order = append(order, rec.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	want := []string{"early", "middle", "late"}
	if len(order) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("walk order %v, want %v", order, want)
		}
	}
}

func TestCodecRejectsTruncatedAndTrailing(t *testing.T) {
	rec := testRecord("r-1", time.Hour)
	blob, err := encodeRecord(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, err := decodeRecord(blob[:len(blob)-1]); err == nil {
		t.Fatal("expected error decoding truncated blob")
	}
	if _, err := decodeRecord(append(blob, 0x00)); err == nil {
		t.Fatal("expected error decoding blob with trailing bytes")
	}
	if _, err := decodeRecord([]byte{99}); err == nil {
		t.Fatal("expected error for unknown version")
	}
}

// fakeClock drives expiry decisions in the integration test below.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestStoreOverRedisLifecycle(t *testing.T) {
	table, _, done := newRedisTableTest(t)
	defer done()
	ctx := context.Background()

	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	cfg := sesstore.DefaultConfig()
	cfg.Now = clock.Now

	store, err := sesstore.New(table, cfg)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	id, err := store.Create(ctx, []byte("hello"), time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.Touch(ctx, id, 2*time.Minute); err != nil {
		t.Fatalf("touch: %v", err)
	}

	clock.now = clock.now.Add(90 * time.Second)
	rec, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get after touch: %v", err)
	}
	if !bytes.Equal(rec.Data, []byte("hello")) {
		t.Fatalf("unexpected payload %q", rec.Data)
	}

	clock.now = clock.now.Add(time.Minute)
	if _, err := store.Get(ctx, id); !errors.Is(err, sesstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}

	sw := sesstore.NewSweeper(store)
	purged, err := sw.RunOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged record, got %d", purged)
	}
	if _, err := table.Get(ctx, id); !errors.Is(err, sesstore.ErrNotFound) {
		t.Fatalf("expected record physically gone, got %v", err)
	}
}
