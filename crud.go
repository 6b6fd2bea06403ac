package crud

import (
	"context"
	"errors"
)

// Creator persists a new record built from input. The store assigns the
// identifier of the returned record.
type Creator[T any, In any, S any] interface {
	Create(ctx context.Context, input In, store S) (T, error)
}

// Reader fetches records by identifier.
//
// Read returns an error wrapping ErrNotFound when the record is absent.
// ReadMany makes no promise about order or count of the result: missing ids
// are skipped and duplicates collapse. Callers that need positional
// correspondence re-index with ByID.
type Reader[T Record[ID], ID comparable, S any] interface {
	Read(ctx context.Context, id ID, store S) (T, error)
	ReadMany(ctx context.Context, ids []ID, store S) ([]T, error)
	ReadAll(ctx context.Context, store S) ([]T, error)
}

// Updater applies input to the record identified by id and returns the
// persisted state.
type Updater[T any, ID comparable, In any, S any] interface {
	UpdateByID(ctx context.Context, id ID, input In, store S) (T, error)
}

// Deleter removes records. DeleteByID on an id that does not exist (or was
// already deleted) returns the same result as deleting it the first time.
type Deleter[ID comparable, S any] interface {
	DeleteByID(ctx context.Context, id ID, store S) error
	DeleteAll(ctx context.Context, store S) error
}

// CreatorFunc adapts a plain function to Creator.
type CreatorFunc[T any, In any, S any] func(ctx context.Context, input In, store S) (T, error)

// Create calls f.
func (f CreatorFunc[T, In, S]) Create(ctx context.Context, input In, store S) (T, error) {
	return f(ctx, input, store)
}

// UpdaterFunc adapts a plain function to Updater.
type UpdaterFunc[T any, ID comparable, In any, S any] func(ctx context.Context, id ID, input In, store S) (T, error)

// UpdateByID calls f.
func (f UpdaterFunc[T, ID, In, S]) UpdateByID(ctx context.Context, id ID, input In, store S) (T, error) {
	return f(ctx, id, input, store)
}

// MaybeReader is implemented by readers that tell absence of the record
// apart from other not-found failures, such as a decorator's extra lookups.
type MaybeReader[T any, ID comparable, S any] interface {
	MaybeRead(ctx context.Context, id ID, store S) (T, bool, error)
}

// MaybeRead reads id, reporting absence as (zero, false, nil) instead of an
// error. Readers implementing MaybeReader decide what counts as absent.
func MaybeRead[T Record[ID], ID comparable, S any](ctx context.Context, r Reader[T, ID, S], id ID, store S) (T, bool, error) {
	if mr, ok := r.(MaybeReader[T, ID, S]); ok {
		return mr.MaybeRead(ctx, id, store)
	}
	v, err := r.Read(ctx, id, store)
	if errors.Is(err, ErrNotFound) {
		var zero T
		return zero, false, nil
	}
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v, true, nil
}

// Reload re-reads *rec from the store. *rec is left untouched on failure.
func Reload[T Record[ID], ID comparable, S any](ctx context.Context, r Reader[T, ID, S], rec *T, store S) error {
	fresh, err := r.Read(ctx, (*rec).GetID(), store)
	if err != nil {
		return err
	}
	*rec = fresh
	return nil
}

// Update applies input to *rec and replaces it with the persisted state.
// *rec is left untouched on failure.
func Update[T Record[ID], ID comparable, In any, S any](ctx context.Context, u Updater[T, ID, In, S], rec *T, input In, store S) error {
	updated, err := u.UpdateByID(ctx, (*rec).GetID(), input, store)
	if err != nil {
		return err
	}
	*rec = updated
	return nil
}

// Delete removes rec by its identifier.
func Delete[T Record[ID], ID comparable, S any](ctx context.Context, d Deleter[ID, S], rec T, store S) error {
	return d.DeleteByID(ctx, rec.GetID(), store)
}
