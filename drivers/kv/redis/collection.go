package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/burugo/crud"
)

// Collection keeps records of T as JSON strings under "<Prefix>:<id>" and
// tracks their ids in the set "<Prefix>:ids".
type Collection[T crud.Record[ID], ID comparable] struct {
	Prefix string
	// Logger receives Debug records for batched reads. Defaults to slog.Default().
	Logger *slog.Logger
}

var (
	_ crud.Reader[crud.Record[int64], int64, Store] = Collection[crud.Record[int64], int64]{}
	_ crud.Deleter[int64, Store]                     = Collection[crud.Record[int64], int64]{}
)

func (c Collection[T, ID]) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func member[ID comparable](id ID) string {
	return fmt.Sprint(id)
}

func (c Collection[T, ID]) recordKey(m string) string { return c.Prefix + ":" + m }
func (c Collection[T, ID]) idsKey() string           { return c.Prefix + ":ids" }
func (c Collection[T, ID]) seqKey() string           { return c.Prefix + ":seq" }

// Key returns the Redis key holding the record with the given id.
func (c Collection[T, ID]) Key(id ID) string {
	return c.recordKey(member(id))
}

// Read fetches and decodes one record.
func (c Collection[T, ID]) Read(ctx context.Context, id ID, store Store) (T, error) {
	var out T
	if store == nil {
		return out, crud.ErrNilStore
	}
	raw, err := store.Get(ctx, c.Key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return out, fmt.Errorf("%s %v: %w", c.Prefix, id, crud.ErrNotFound)
	}
	if err != nil {
		return out, fmt.Errorf("redis Get error for key '%s': %w", c.Key(id), err)
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("redis decode %s: %w", c.Key(id), err)
	}
	return out, nil
}

// ReadMany fetches every record in ids with a single MGET. Missing ids are skipped.
func (c Collection[T, ID]) ReadMany(ctx context.Context, ids []ID, store Store) ([]T, error) {
	if store == nil {
		return nil, crud.ErrNilStore
	}
	ids = crud.Distinct(ids)
	members := make([]string, len(ids))
	for i, id := range ids {
		members[i] = member(id)
	}
	return c.mget(ctx, members, store)
}

// ReadAll fetches every record listed in the id set.
func (c Collection[T, ID]) ReadAll(ctx context.Context, store Store) ([]T, error) {
	if store == nil {
		return nil, crud.ErrNilStore
	}
	members, err := store.SMembers(ctx, c.idsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis SMembers error for key '%s': %w", c.idsKey(), err)
	}
	return c.mget(ctx, members, store)
}

func (c Collection[T, ID]) mget(ctx context.Context, members []string, store Store) ([]T, error) {
	out := make([]T, 0, len(members))
	if len(members) == 0 {
		return out, nil
	}
	start := time.Now()
	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = c.recordKey(m)
	}
	vals, err := store.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis MGet error for %s: %w", c.Prefix, err)
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // nil for missing keys
		}
		var rec T
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("redis decode %s: %w", keys[i], err)
		}
		out = append(out, rec)
	}
	c.logger().DebugContext(ctx, "redis batch read",
		"prefix", c.Prefix, "ids", len(members), "rows", len(out), "duration", time.Since(start))
	return out, nil
}

// Save writes rec and registers its id, atomically.
func (c Collection[T, ID]) Save(ctx context.Context, rec T, store Store) error {
	if store == nil {
		return crud.ErrNilStore
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", c.Key(rec.GetID()), err)
	}
	_, err = store.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.Key(rec.GetID()), data, 0)
		pipe.SAdd(ctx, c.idsKey(), member(rec.GetID()))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis Save error for key '%s': %w", c.Key(rec.GetID()), err)
	}
	return nil
}

// DeleteByID removes the record and its id. Missing records are not an error.
func (c Collection[T, ID]) DeleteByID(ctx context.Context, id ID, store Store) error {
	if store == nil {
		return crud.ErrNilStore
	}
	_, err := store.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.Key(id))
		pipe.SRem(ctx, c.idsKey(), member(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis Delete error for key '%s': %w", c.Key(id), err)
	}
	return nil
}

// DeleteAll removes every record listed in the id set, the set itself and
// the id sequence.
func (c Collection[T, ID]) DeleteAll(ctx context.Context, store Store) error {
	if store == nil {
		return crud.ErrNilStore
	}
	members, err := store.SMembers(ctx, c.idsKey()).Result()
	if err != nil {
		return fmt.Errorf("redis SMembers error for key '%s': %w", c.idsKey(), err)
	}
	keys := make([]string, 0, len(members)+2)
	for _, m := range members {
		keys = append(keys, c.recordKey(m))
	}
	keys = append(keys, c.idsKey(), c.seqKey())
	if err := store.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis DeleteAll error for %s: %w", c.Prefix, err)
	}
	return nil
}

// NextID allocates the next integer id from "<Prefix>:seq".
func (c Collection[T, ID]) NextID(ctx context.Context, store Store) (int64, error) {
	if store == nil {
		return 0, crud.ErrNilStore
	}
	id, err := store.Incr(ctx, c.seqKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis Incr error for key '%s': %w", c.seqKey(), err)
	}
	return id, nil
}
