package crud

import (
	"context"
	"fmt"
)

// Mapper turns original records into a decorated view M. FromModels is the
// batched form and is what every multi-record path calls, so implementations
// that need extra store lookups can do them once per batch.
type Mapper[M any, O any, S any] interface {
	FromModel(ctx context.Context, original O, store S) (M, error)
	FromModels(ctx context.Context, originals []O, store S) ([]M, error)
}

// MapFunc adapts a single-value mapping function to Mapper. Its FromModels
// calls the function once per original.
type MapFunc[M any, O any, S any] func(ctx context.Context, original O, store S) (M, error)

// FromModel calls f.
func (f MapFunc[M, O, S]) FromModel(ctx context.Context, original O, store S) (M, error) {
	return f(ctx, original, store)
}

// FromModels calls f for each original, stopping at the first error.
func (f MapFunc[M, O, S]) FromModels(ctx context.Context, originals []O, store S) ([]M, error) {
	out := make([]M, 0, len(originals))
	for _, o := range originals {
		m, err := f(ctx, o, store)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Unwrapper is implemented by decorated views that keep their original record.
type Unwrapper[O any] interface {
	Original() O
}

// Mapped exposes a decorated view M of records stored as O. Every call
// reduces to exactly one call on the original Reader or Deleter followed by
// at most one mapping step. Deleter may be nil, in which case deletes fail
// with ErrNotSupported.
type Mapped[M Record[ID], O Record[ID], ID comparable, S any] struct {
	Reader  Reader[O, ID, S]
	Deleter Deleter[ID, S]
	Mapper  Mapper[M, O, S]
}

var (
	_ Reader[Record[int], int, any]      = Mapped[Record[int], Record[int], int, any]{}
	_ Deleter[int, any]                  = Mapped[Record[int], Record[int], int, any]{}
	_ MaybeReader[Record[int], int, any] = Mapped[Record[int], Record[int], int, any]{}
)

// Read reads the original by id and maps it.
func (m Mapped[M, O, ID, S]) Read(ctx context.Context, id ID, store S) (M, error) {
	o, err := m.Reader.Read(ctx, id, store)
	if err != nil {
		var zero M
		return zero, err
	}
	return m.Mapper.FromModel(ctx, o, store)
}

// MaybeRead reports absence of the original as (zero, false, nil). Errors
// from mapping a found original are returned as is, even when they wrap
// ErrNotFound.
func (m Mapped[M, O, ID, S]) MaybeRead(ctx context.Context, id ID, store S) (M, bool, error) {
	var zero M
	o, ok, err := MaybeRead[O, ID, S](ctx, m.Reader, id, store)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := m.Mapper.FromModel(ctx, o, store)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// ReadMany reads the originals in one batch and maps them in one batch.
func (m Mapped[M, O, ID, S]) ReadMany(ctx context.Context, ids []ID, store S) ([]M, error) {
	originals, err := m.Reader.ReadMany(ctx, ids, store)
	if err != nil {
		return nil, err
	}
	return m.Mapper.FromModels(ctx, originals, store)
}

// ReadAll reads and maps every original.
func (m Mapped[M, O, ID, S]) ReadAll(ctx context.Context, store S) ([]M, error) {
	originals, err := m.Reader.ReadAll(ctx, store)
	if err != nil {
		return nil, err
	}
	return m.Mapper.FromModels(ctx, originals, store)
}

// DeleteByID deletes the original record.
func (m Mapped[M, O, ID, S]) DeleteByID(ctx context.Context, id ID, store S) error {
	if m.Deleter == nil {
		return fmt.Errorf("delete %v: %w", id, ErrNotSupported)
	}
	return m.Deleter.DeleteByID(ctx, id, store)
}

// DeleteAll deletes every original record.
func (m Mapped[M, O, ID, S]) DeleteAll(ctx context.Context, store S) error {
	if m.Deleter == nil {
		return fmt.Errorf("delete all: %w", ErrNotSupported)
	}
	return m.Deleter.DeleteAll(ctx, store)
}

// MappedCreator creates an original record and returns its mapped view.
type MappedCreator[M any, O any, In any, S any] struct {
	Creator Creator[O, In, S]
	Mapper  Mapper[M, O, S]
}

// Create creates the original and maps it.
func (m MappedCreator[M, O, In, S]) Create(ctx context.Context, input In, store S) (M, error) {
	o, err := m.Creator.Create(ctx, input, store)
	if err != nil {
		var zero M
		return zero, err
	}
	return m.Mapper.FromModel(ctx, o, store)
}

// MappedUpdater updates an original record and returns its re-mapped view.
type MappedUpdater[M any, O any, ID comparable, In any, S any] struct {
	Updater Updater[O, ID, In, S]
	Mapper  Mapper[M, O, S]
}

// UpdateByID updates the original and maps the persisted state.
func (m MappedUpdater[M, O, ID, In, S]) UpdateByID(ctx context.Context, id ID, input In, store S) (M, error) {
	o, err := m.Updater.UpdateByID(ctx, id, input, store)
	if err != nil {
		var zero M
		return zero, err
	}
	return m.Mapper.FromModel(ctx, o, store)
}

// MappedParentLoader lets a decorated view take part in the BelongsTo
// relation of its original. The foreign key is read from the unwrapped
// original, so the view reports the same parent as the record it wraps.
type MappedParentLoader[M interface {
	Record[ID]
	Unwrapper[O]
}, O Record[ID], ID comparable, PID comparable, S any] struct {
	Loader ParentLoader[O, PID, S]
	Mapper Mapper[M, O, S]
}

// ParentID returns the foreign key of the wrapped original.
func (m MappedParentLoader[M, O, ID, PID, S]) ParentID(child M) PID {
	return m.Loader.ParentID(child.Original())
}

// ForParentIDs runs the original batched lookup, maps every original in a
// single FromModels call and re-assembles the grouping in the original order.
func (m MappedParentLoader[M, O, ID, PID, S]) ForParentIDs(ctx context.Context, ids []PID, store S) (map[PID][]M, error) {
	grouped, err := m.Loader.ForParentIDs(ctx, ids, store)
	if err != nil {
		return nil, err
	}
	out := make(map[PID][]M, len(grouped))
	keys := Distinct(ids)
	originals := flatten(keys, grouped)
	if len(originals) == 0 {
		return out, nil
	}
	mapped, err := m.Mapper.FromModels(ctx, originals, store)
	if err != nil {
		return nil, err
	}
	byID := ByID[M, ID](mapped)
	for _, pid := range keys {
		for _, o := range grouped[pid] {
			if v, ok := byID[o.GetID()]; ok {
				out[pid] = append(out[pid], v)
			}
		}
	}
	return out, nil
}
