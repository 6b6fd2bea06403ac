package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/burugo/crud"
	"github.com/burugo/crud/internal/schema"
)

// Writer creates and updates rows of Table from input structs. The columns
// written are taken from the `db` tags of In; a field mapped to the id column
// is never written, so ids stay store-assigned.
type Writer[T crud.Record[ID], ID comparable, In any] struct {
	Table Table[T, ID]
}

var (
	_ crud.Creator[crud.Record[int64], struct{}, Store]        = Writer[crud.Record[int64], int64, struct{}]{}
	_ crud.Updater[crud.Record[int64], int64, struct{}, Store] = Writer[crud.Record[int64], int64, struct{}]{}
)

// NewWriter returns a Writer for t.
func NewWriter[T crud.Record[ID], ID comparable, In any](t Table[T, ID]) Writer[T, ID, In] {
	return Writer[T, ID, In]{Table: t}
}

// columns returns the columns and values of input, excluding the id column.
func (w Writer[T, ID, In]) columns(input In) ([]string, []any, error) {
	cols, vals, err := schema.Values(input, false)
	if err != nil {
		return nil, nil, err
	}
	key := w.Table.key()
	outCols, outVals := cols[:0], vals[:0]
	for i, c := range cols {
		if c == key {
			continue
		}
		outCols = append(outCols, c)
		outVals = append(outVals, vals[i])
	}
	return outCols, outVals, nil
}

// Create inserts input and returns the stored row.
func (w Writer[T, ID, In]) Create(ctx context.Context, input In, store Store) (T, error) {
	var out T
	if store == nil {
		return out, crud.ErrNilStore
	}
	cols, vals, err := w.columns(input)
	if err != nil {
		return out, fmt.Errorf("sqlstore: create %s: %w", w.Table.Name, err)
	}
	q, err := builderFor(store).Insert(w.Table.Name, cols)
	if err != nil {
		return out, fmt.Errorf("sqlstore: create %s: %w", w.Table.Name, err)
	}
	if err := sqlx.GetContext(ctx, store, &out, store.Rebind(q), vals...); err != nil {
		return out, fmt.Errorf("sqlstore: create %s: %w", w.Table.Name, err)
	}
	return out, nil
}

// UpdateByID writes input over the row with the given id and returns the
// stored row. A missing id yields crud.ErrNotFound.
func (w Writer[T, ID, In]) UpdateByID(ctx context.Context, id ID, input In, store Store) (T, error) {
	var out T
	if store == nil {
		return out, crud.ErrNilStore
	}
	cols, vals, err := w.columns(input)
	if err != nil {
		return out, fmt.Errorf("sqlstore: update %s %v: %w", w.Table.Name, id, err)
	}
	q, err := builderFor(store).Update(w.Table.Name, cols, w.Table.key())
	if err != nil {
		return out, fmt.Errorf("sqlstore: update %s %v: %w", w.Table.Name, id, err)
	}
	if err := sqlx.GetContext(ctx, store, &out, store.Rebind(q), append(vals, id)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return out, fmt.Errorf("%s %v: %w", w.Table.Name, id, crud.ErrNotFound)
		}
		return out, fmt.Errorf("sqlstore: update %s %v: %w", w.Table.Name, id, err)
	}
	return out, nil
}
