package crud

import "context"

// ThroughLoader is the primitive behind a many-to-many relation reified as a
// join entity. RelationIDsForMany and IDsForRelationIDs are the batched
// lookups in each direction. SetRelations makes the join rows for id match
// relationIDs exactly; whether that is done by replacing or diffing is up to
// the implementation.
type ThroughLoader[T any, ID comparable, RID comparable, S any] interface {
	RelationIDs(ctx context.Context, rec T, store S) ([]RID, error)
	RelationIDsForMany(ctx context.Context, ids []ID, store S) (map[ID][]RID, error)
	IDsForRelationIDs(ctx context.Context, ids []RID, store S) (map[RID][]ID, error)
	SetRelations(ctx context.Context, id ID, relationIDs []RID, store S) error
}

// HasManyThrough derives the record-level lookups of a join-entity relation
// between T and R.
type HasManyThrough[T Record[ID], ID comparable, R Record[RID], RID comparable, S any] struct {
	Loader         ThroughLoader[T, ID, RID, S]
	Reader         Reader[T, ID, S]
	RelationReader Reader[R, RID, S]
}

// Relations reads every R linked to rec, in join order.
func (h HasManyThrough[T, ID, R, RID, S]) Relations(ctx context.Context, rec T, store S) ([]R, error) {
	rids, err := h.Loader.RelationIDs(ctx, rec, store)
	if err != nil {
		return nil, err
	}
	return readOrdered(ctx, h.RelationReader, rids, store)
}

// RelationsForMany groups the R linked to each of recs using one join lookup
// and one ReadMany.
func (h HasManyThrough[T, ID, R, RID, S]) RelationsForMany(ctx context.Context, recs []T, store S) (map[ID][]R, error) {
	ids := Distinct(IDs[T, ID](recs))
	if len(ids) == 0 {
		return map[ID][]R{}, nil
	}
	linked, err := h.Loader.RelationIDsForMany(ctx, ids, store)
	if err != nil {
		return nil, err
	}
	return resolveGrouped(ctx, h.RelationReader, ids, linked, store)
}

// IDsForRelations returns, for each relation, the ids of the T linked to it.
func (h HasManyThrough[T, ID, R, RID, S]) IDsForRelations(ctx context.Context, relations []R, store S) (map[RID][]ID, error) {
	return h.idsForRelationIDs(ctx, IDs[R, RID](relations), store)
}

// IDsForRelation returns the ids of the T linked to relation.
func (h HasManyThrough[T, ID, R, RID, S]) IDsForRelation(ctx context.Context, relation R, store S) ([]ID, error) {
	grouped, err := h.idsForRelationIDs(ctx, []RID{relation.GetID()}, store)
	if err != nil {
		return nil, err
	}
	return Lookup(grouped, relation.GetID()), nil
}

// ForRelationIDs groups the T linked to every relation id using one join
// lookup and one ReadMany.
func (h HasManyThrough[T, ID, R, RID, S]) ForRelationIDs(ctx context.Context, ids []RID, store S) (map[RID][]T, error) {
	ids = Distinct(ids)
	linked, err := h.idsForRelationIDs(ctx, ids, store)
	if err != nil {
		return nil, err
	}
	return resolveGrouped(ctx, h.Reader, ids, linked, store)
}

// ForRelations groups the T linked to each of relations.
func (h HasManyThrough[T, ID, R, RID, S]) ForRelations(ctx context.Context, relations []R, store S) (map[RID][]T, error) {
	return h.ForRelationIDs(ctx, IDs[R, RID](relations), store)
}

// ForRelation returns the T linked to relation.
func (h HasManyThrough[T, ID, R, RID, S]) ForRelation(ctx context.Context, relation R, store S) ([]T, error) {
	grouped, err := h.ForRelationIDs(ctx, []RID{relation.GetID()}, store)
	if err != nil {
		return nil, err
	}
	return Lookup(grouped, relation.GetID()), nil
}

// SetRelations links rec to exactly the given relations.
func (h HasManyThrough[T, ID, R, RID, S]) SetRelations(ctx context.Context, rec T, relations []R, store S) error {
	return h.Loader.SetRelations(ctx, rec.GetID(), Distinct(IDs[R, RID](relations)), store)
}

func (h HasManyThrough[T, ID, R, RID, S]) idsForRelationIDs(ctx context.Context, ids []RID, store S) (map[RID][]ID, error) {
	ids = Distinct(ids)
	if len(ids) == 0 {
		return map[RID][]ID{}, nil
	}
	return h.Loader.IDsForRelationIDs(ctx, ids, store)
}
