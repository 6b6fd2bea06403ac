package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/burugo/crud"
)

// ParentIndex is the BelongsTo primitive for a Collection. Each parent owns
// a set "<Prefix>:<Name>:<parent id>" listing its children's ids. Sets are
// maintained explicitly with Index and Unindex.
type ParentIndex[C crud.Record[CID], CID comparable, PID comparable] struct {
	Children Collection[C, CID]
	// Name identifies the foreign key, e.g. "person_id".
	Name       string
	ParentIDOf func(C) PID
}

var _ crud.ParentLoader[crud.Record[int64], int64, Store] = ParentIndex[crud.Record[int64], int64, int64]{}

func (p ParentIndex[C, CID, PID]) setKey(pid PID) string {
	return fmt.Sprintf("%s:%s:%v", p.Children.Prefix, p.Name, pid)
}

// ParentID returns the foreign key of child.
func (p ParentIndex[C, CID, PID]) ParentID(child C) PID {
	return p.ParentIDOf(child)
}

// ForParentIDs reads every parent set in one pipelined round trip, then the
// children with one MGET, and groups them by their current foreign key.
func (p ParentIndex[C, CID, PID]) ForParentIDs(ctx context.Context, ids []PID, store Store) (map[PID][]C, error) {
	if store == nil {
		return nil, crud.ErrNilStore
	}
	ids = crud.Distinct(ids)
	if len(ids) == 0 {
		return map[PID][]C{}, nil
	}
	start := time.Now()
	cmds := make([]*redis.StringSliceCmd, len(ids))
	_, err := store.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, pid := range ids {
			cmds[i] = pipe.SMembers(ctx, p.setKey(pid))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis index %s:%s: %w", p.Children.Prefix, p.Name, err)
	}
	var members []string
	for _, cmd := range cmds {
		members = append(members, cmd.Val()...)
	}
	children, err := p.Children.mget(ctx, members, store)
	if err != nil {
		return nil, err
	}
	wanted := make(map[PID]struct{}, len(ids))
	for _, pid := range ids {
		wanted[pid] = struct{}{}
	}
	grouped := make(map[PID][]C, len(ids))
	seen := make(map[CID]struct{}, len(children))
	for _, c := range children {
		if _, dup := seen[c.GetID()]; dup {
			continue
		}
		seen[c.GetID()] = struct{}{}
		pid := p.ParentIDOf(c)
		if _, ok := wanted[pid]; ok {
			grouped[pid] = append(grouped[pid], c)
		}
	}
	p.Children.logger().DebugContext(ctx, "redis children batch",
		"prefix", p.Children.Prefix, "index", p.Name, "parents", len(ids), "rows", len(children), "duration", time.Since(start))
	return grouped, nil
}

// Index adds child to the set of its parent.
func (p ParentIndex[C, CID, PID]) Index(ctx context.Context, child C, store Store) error {
	if store == nil {
		return crud.ErrNilStore
	}
	key := p.setKey(p.ParentIDOf(child))
	if err := store.SAdd(ctx, key, member(child.GetID())).Err(); err != nil {
		return fmt.Errorf("redis SAdd error for key '%s': %w", key, err)
	}
	return nil
}

// Unindex removes child from the set of its parent.
func (p ParentIndex[C, CID, PID]) Unindex(ctx context.Context, child C, store Store) error {
	if store == nil {
		return crud.ErrNilStore
	}
	key := p.setKey(p.ParentIDOf(child))
	if err := store.SRem(ctx, key, member(child.GetID())).Err(); err != nil {
		return fmt.Errorf("redis SRem error for key '%s': %w", key, err)
	}
	return nil
}
