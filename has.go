package crud

import (
	"context"
	"fmt"
)

// HasMany is the parent-side view of a BelongsTo relation.
type HasMany[P Record[PID], PID comparable, C Record[CID], CID comparable, S any] struct {
	Relation BelongsTo[C, CID, P, PID, S]
}

// Children returns every child of parent. A parent without children yields
// an empty slice.
func (h HasMany[P, PID, C, CID, S]) Children(ctx context.Context, parent P, store S) ([]C, error) {
	return h.Relation.ForParent(ctx, parent, store)
}

// ChildrenForMany groups the children of every parent in one batched fetch.
func (h HasMany[P, PID, C, CID, S]) ChildrenForMany(ctx context.Context, parents []P, store S) (map[PID][]C, error) {
	return h.Relation.ForParents(ctx, parents, store)
}

// HasOne is the parent-side view of a BelongsTo relation where a parent owns
// at most one child.
type HasOne[P Record[PID], PID comparable, C Record[CID], CID comparable, S any] struct {
	Relation BelongsTo[C, CID, P, PID, S]
}

// Child returns the only child of parent. It fails with ErrNotFound when the
// parent has none and with ErrMultipleChildren when it has several.
func (h HasOne[P, PID, C, CID, S]) Child(ctx context.Context, parent P, store S) (C, error) {
	c, ok, err := h.MaybeChild(ctx, parent, store)
	if err != nil {
		return c, err
	}
	if !ok {
		return c, fmt.Errorf("child of %v: %w", parent.GetID(), ErrNotFound)
	}
	return c, nil
}

// MaybeChild is like Child but reports a missing child as (zero, false, nil).
func (h HasOne[P, PID, C, CID, S]) MaybeChild(ctx context.Context, parent P, store S) (C, bool, error) {
	var zero C
	children, err := h.Relation.ForParent(ctx, parent, store)
	if err != nil {
		return zero, false, err
	}
	return single(parent.GetID(), children)
}

// ChildForMany resolves the child of every parent in one batched fetch.
// Parents without a child are absent from the result.
func (h HasOne[P, PID, C, CID, S]) ChildForMany(ctx context.Context, parents []P, store S) (map[PID]C, error) {
	grouped, err := h.Relation.ForParents(ctx, parents, store)
	if err != nil {
		return nil, err
	}
	out := make(map[PID]C, len(grouped))
	for pid, children := range grouped {
		c, ok, err := single(pid, children)
		if err != nil {
			return nil, err
		}
		if ok {
			out[pid] = c
		}
	}
	return out, nil
}

func single[PID comparable, C any](pid PID, children []C) (C, bool, error) {
	var zero C
	switch len(children) {
	case 0:
		return zero, false, nil
	case 1:
		return children[0], true, nil
	default:
		return zero, false, fmt.Errorf("parent %v has %d children: %w", pid, len(children), ErrMultipleChildren)
	}
}
