// Package redistable provides a Redis-backed record [sesstore.Table].
//
// Each record is stored as a compact binary blob under <prefix>:<id>, and a
// ZSET under <prefix>:exp, scored by expiry in unix milliseconds, mirrors the
// durable secondary ordering over expires. Value and ZSET entry are always
// written together in one MULTI/EXEC pipeline, so no other client observes a
// torn pair.
//
// No Redis TTL is set on record keys: reclamation belongs to the sweeper,
// and a key Redis expired on its own would leave a dangling ZSET member.
package redistable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avrellin/sesstore"
)

const (
	// DefaultPrefix namespaces all keys when no prefix is given.
	DefaultPrefix = "sess"

	walkChunk = 512
)

// Table is a Redis-backed durable record table.
type Table struct {
	rdb    redis.UniversalClient
	prefix string
}

// New returns a table over the given Redis client. prefix namespaces the
// record keys and the expiry ZSET; pass "" for [DefaultPrefix].
func New(rdb redis.UniversalClient, prefix string) *Table {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Table{rdb: rdb, prefix: prefix}
}

func (t *Table) key(id string) string {
	return t.prefix + ":" + id
}

func (t *Table) expKey() string {
	return t.prefix + ":exp"
}

// Put writes the record blob and its expiry ZSET entry atomically.
func (t *Table) Put(ctx context.Context, rec *sesstore.Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	_, err = t.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, t.key(rec.ID), data, 0)
		pipe.ZAdd(ctx, t.expKey(), redis.Z{
			Score:  float64(rec.Expires.UnixMilli()),
			Member: rec.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", sesstore.ErrStorageUnavailable, err)
	}
	return nil
}

// Get returns the decoded record or [sesstore.ErrNotFound].
func (t *Table) Get(ctx context.Context, id string) (*sesstore.Record, error) {
	data, err := t.rdb.Get(ctx, t.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sesstore.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", sesstore.ErrStorageUnavailable, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sesstore.ErrCorruptRecord, err)
	}
	return rec, nil
}

// Delete removes the record blob and its ZSET entry atomically, reporting
// whether a blob was present.
func (t *Table) Delete(ctx context.Context, id string) (bool, error) {
	var delCmd *redis.IntCmd
	_, err := t.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		delCmd = pipe.Del(ctx, t.key(id))
		pipe.ZRem(ctx, t.expKey(), id)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", sesstore.ErrStorageUnavailable, err)
	}
	return delCmd.Val() > 0, nil
}

// Walk enumerates records in ascending expiry order by paging the ZSET and
// bulk-fetching blobs. A corrupt blob aborts the walk; a member whose blob
// vanished mid-page is skipped.
func (t *Table) Walk(ctx context.Context, fn func(rec *sesstore.Record) error) error {
	for start := int64(0); ; start += walkChunk {
		ids, err := t.rdb.ZRange(ctx, t.expKey(), start, start+walkChunk-1).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", sesstore.ErrStorageUnavailable, err)
		}
		if len(ids) == 0 {
			return nil
		}

		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = t.key(id)
		}
		values, err := t.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", sesstore.ErrStorageUnavailable, err)
		}

		for _, v := range values {
			blob, ok := v.(string)
			if !ok {
				continue
			}
			rec, err := decodeRecord([]byte(blob))
			if err != nil {
				return fmt.Errorf("%w: %v", sesstore.ErrCorruptRecord, err)
			}
			if err := fn(rec); err != nil {
				return err
			}
		}

		if len(ids) < walkChunk {
			return nil
		}
	}
}

// Ping returns a point-in-time Redis availability check and latency.
func (t *Table) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := t.rdb.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", sesstore.ErrStorageUnavailable, err)
	}
	return time.Since(start), nil
}
