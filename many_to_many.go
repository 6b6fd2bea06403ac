package crud

import "context"

// JoinLoader is the primitive behind a many-to-many relation where T lists
// its parents through an implicit join. IDsForParentIDs answers, in one
// batched lookup, which T ids are linked to each parent id.
type JoinLoader[T any, ID comparable, PID comparable, S any] interface {
	ParentIDs(ctx context.Context, rec T, store S) ([]PID, error)
	IDsForParentIDs(ctx context.Context, ids []PID, store S) (map[PID][]ID, error)
}

// HasManyAndBelongsTo derives the record-level lookups of a many-to-many
// relation from a JoinLoader and readers for both sides.
type HasManyAndBelongsTo[T Record[ID], ID comparable, P Record[PID], PID comparable, S any] struct {
	Join         JoinLoader[T, ID, PID, S]
	Reader       Reader[T, ID, S]
	ParentReader Reader[P, PID, S]
}

// Parents reads every parent linked to rec, in join order.
func (h HasManyAndBelongsTo[T, ID, P, PID, S]) Parents(ctx context.Context, rec T, store S) ([]P, error) {
	pids, err := h.Join.ParentIDs(ctx, rec, store)
	if err != nil {
		return nil, err
	}
	return readOrdered(ctx, h.ParentReader, pids, store)
}

// IDsForParentIDs returns the linked ids of every parent in ids.
func (h HasManyAndBelongsTo[T, ID, P, PID, S]) IDsForParentIDs(ctx context.Context, ids []PID, store S) (map[PID][]ID, error) {
	ids = Distinct(ids)
	if len(ids) == 0 {
		return map[PID][]ID{}, nil
	}
	return h.Join.IDsForParentIDs(ctx, ids, store)
}

// ForParentIDs groups the linked records of every parent in ids. It costs
// one join lookup plus one ReadMany regardless of how many parents are asked
// for. Linked ids that the read does not return are dropped.
func (h HasManyAndBelongsTo[T, ID, P, PID, S]) ForParentIDs(ctx context.Context, ids []PID, store S) (map[PID][]T, error) {
	ids = Distinct(ids)
	linked, err := h.IDsForParentIDs(ctx, ids, store)
	if err != nil {
		return nil, err
	}
	return resolveGrouped(ctx, h.Reader, ids, linked, store)
}

// ForParentID returns the records linked to the parent identified by id.
func (h HasManyAndBelongsTo[T, ID, P, PID, S]) ForParentID(ctx context.Context, id PID, store S) ([]T, error) {
	grouped, err := h.ForParentIDs(ctx, []PID{id}, store)
	if err != nil {
		return nil, err
	}
	return Lookup(grouped, id), nil
}

// ForParent returns the records linked to parent.
func (h HasManyAndBelongsTo[T, ID, P, PID, S]) ForParent(ctx context.Context, parent P, store S) ([]T, error) {
	return h.ForParentID(ctx, parent.GetID(), store)
}

// ForParents groups the records linked to each of parents.
func (h HasManyAndBelongsTo[T, ID, P, PID, S]) ForParents(ctx context.Context, parents []P, store S) (map[PID][]T, error) {
	return h.ForParentIDs(ctx, IDs[P, PID](parents), store)
}

// readOrdered reads ids with one ReadMany and returns the records in the
// order of ids, skipping the ones not found.
func readOrdered[T Record[ID], ID comparable, S any](ctx context.Context, r Reader[T, ID, S], ids []ID, store S) ([]T, error) {
	ids = Distinct(ids)
	if len(ids) == 0 {
		return []T{}, nil
	}
	found, err := r.ReadMany(ctx, ids, store)
	if err != nil {
		return nil, err
	}
	byID := ByID[T, ID](found)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// resolveGrouped turns a key -> []ID grouping into key -> []T with a single
// ReadMany over the union of all ids. Keys are visited in the order given.
func resolveGrouped[K comparable, T Record[ID], ID comparable, S any](ctx context.Context, r Reader[T, ID, S], keys []K, grouped map[K][]ID, store S) (map[K][]T, error) {
	out := make(map[K][]T, len(grouped))
	all := Distinct(flatten(keys, grouped))
	if len(all) == 0 {
		return out, nil
	}
	found, err := r.ReadMany(ctx, all, store)
	if err != nil {
		return nil, err
	}
	byID := ByID[T, ID](found)
	for _, k := range keys {
		ids, ok := grouped[k]
		if !ok {
			continue
		}
		recs := make([]T, 0, len(ids))
		for _, id := range ids {
			if v, ok := byID[id]; ok {
				recs = append(recs, v)
			}
		}
		if len(recs) > 0 {
			out[k] = recs
		}
	}
	return out, nil
}
