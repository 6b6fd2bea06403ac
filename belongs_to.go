package crud

import (
	"context"
	"fmt"
)

// ParentLoader is the primitive a child type supplies to take part in a
// BelongsTo relation. ForParentIDs issues one batched fetch for all children
// whose foreign key is in ids and groups them by ParentID. Parents with no
// children may be absent from the returned map.
type ParentLoader[C any, PID comparable, S any] interface {
	ParentID(child C) PID
	ForParentIDs(ctx context.Context, ids []PID, store S) (map[PID][]C, error)
}

// BelongsTo derives every child-to-parent and parent-to-children lookup from
// a ParentLoader and a Reader for the parent type.
type BelongsTo[C Record[CID], CID comparable, P Record[PID], PID comparable, S any] struct {
	Loader       ParentLoader[C, PID, S]
	ParentReader Reader[P, PID, S]
}

// ParentID returns the foreign key held by child.
func (b BelongsTo[C, CID, P, PID, S]) ParentID(child C) PID {
	return b.Loader.ParentID(child)
}

// ForParentIDs groups the children of every parent in ids using one batched
// fetch. Duplicate ids are collapsed before reaching the store, and an empty
// ids slice never reaches it.
func (b BelongsTo[C, CID, P, PID, S]) ForParentIDs(ctx context.Context, ids []PID, store S) (map[PID][]C, error) {
	ids = Distinct(ids)
	if len(ids) == 0 {
		return map[PID][]C{}, nil
	}
	grouped, err := b.Loader.ForParentIDs(ctx, ids, store)
	if err != nil {
		return nil, err
	}
	if grouped == nil {
		grouped = map[PID][]C{}
	}
	return grouped, nil
}

// ForParentID returns the children of the parent identified by id.
func (b BelongsTo[C, CID, P, PID, S]) ForParentID(ctx context.Context, id PID, store S) ([]C, error) {
	grouped, err := b.ForParentIDs(ctx, []PID{id}, store)
	if err != nil {
		return nil, err
	}
	return Lookup(grouped, id), nil
}

// ForParent returns the children of parent.
func (b BelongsTo[C, CID, P, PID, S]) ForParent(ctx context.Context, parent P, store S) ([]C, error) {
	return b.ForParentID(ctx, parent.GetID(), store)
}

// ForParents groups the children of every parent in parents.
func (b BelongsTo[C, CID, P, PID, S]) ForParents(ctx context.Context, parents []P, store S) (map[PID][]C, error) {
	return b.ForParentIDs(ctx, IDs[P, PID](parents), store)
}

// Parent reads the parent of child.
func (b BelongsTo[C, CID, P, PID, S]) Parent(ctx context.Context, child C, store S) (P, error) {
	pid := b.Loader.ParentID(child)
	p, err := b.ParentReader.Read(ctx, pid, store)
	if err != nil {
		var zero P
		return zero, fmt.Errorf("parent %v of child %v: %w", pid, child.GetID(), err)
	}
	return p, nil
}

// ParentsForMany resolves the parent of every child with a single ReadMany,
// keyed by child id. A child whose parent is missing from the batch result is
// left out of the map; no error is reported for it.
func (b BelongsTo[C, CID, P, PID, S]) ParentsForMany(ctx context.Context, children []C, store S) (map[CID]P, error) {
	out := make(map[CID]P, len(children))
	if len(children) == 0 {
		return out, nil
	}
	pids := make([]PID, 0, len(children))
	for _, c := range children {
		pids = append(pids, b.Loader.ParentID(c))
	}
	parents, err := b.ParentReader.ReadMany(ctx, Distinct(pids), store)
	if err != nil {
		return nil, err
	}
	byID := ByID[P, PID](parents)
	for _, c := range children {
		if p, ok := byID[b.Loader.ParentID(c)]; ok {
			out[c.GetID()] = p
		}
	}
	return out, nil
}

// HasMany returns the parent-side view of this relation.
func (b BelongsTo[C, CID, P, PID, S]) HasMany() HasMany[P, PID, C, CID, S] {
	return HasMany[P, PID, C, CID, S]{Relation: b}
}

// HasOne returns the parent-side view of this relation for parents that own
// at most one child.
func (b BelongsTo[C, CID, P, PID, S]) HasOne() HasOne[P, PID, C, CID, S] {
	return HasOne[P, PID, C, CID, S]{Relation: b}
}
