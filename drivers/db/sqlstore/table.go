package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/burugo/crud"
)

// Table reads and deletes rows of one table, scanning them into T.
type Table[T crud.Record[ID], ID comparable] struct {
	Name string
	// IDColumn defaults to "id".
	IDColumn string
	// Logger receives Debug records for batched reads. Defaults to slog.Default().
	Logger *slog.Logger
	// BatchSize caps the ids sent in one query. Larger lists are split
	// into several queries. Defaults to DefaultBatchSize.
	BatchSize int
}

var (
	_ crud.Reader[crud.Record[int64], int64, Store] = Table[crud.Record[int64], int64]{}
	_ crud.Deleter[int64, Store]                     = Table[crud.Record[int64], int64]{}
)

// NewTable returns a Table named name keyed by "id".
func NewTable[T crud.Record[ID], ID comparable](name string) Table[T, ID] {
	return Table[T, ID]{Name: name, IDColumn: "id"}
}

func (t Table[T, ID]) key() string {
	if t.IDColumn == "" {
		return "id"
	}
	return t.IDColumn
}

// Read selects the row with the given id.
func (t Table[T, ID]) Read(ctx context.Context, id ID, store Store) (T, error) {
	var out T
	if store == nil {
		return out, crud.ErrNilStore
	}
	q := store.Rebind(builderFor(store).SelectByKey(t.Name, t.key()))
	if err := sqlx.GetContext(ctx, store, &out, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return out, fmt.Errorf("%s %v: %w", t.Name, id, crud.ErrNotFound)
		}
		return out, fmt.Errorf("sqlstore: read %s %v: %w", t.Name, id, err)
	}
	return out, nil
}

// ReadMany selects every row whose id is in ids, one query per BatchSize ids.
func (t Table[T, ID]) ReadMany(ctx context.Context, ids []ID, store Store) ([]T, error) {
	if store == nil {
		return nil, crud.ErrNilStore
	}
	ids = crud.Distinct(ids)
	if len(ids) == 0 {
		return []T{}, nil
	}
	start := time.Now()
	out, err := selectIn[T](ctx, store, builderFor(store).SelectIn(t.Name, t.key(), t.key()), ids, t.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: read many %s: %w", t.Name, err)
	}
	if out == nil {
		out = []T{}
	}
	loggerOr(t.Logger).DebugContext(ctx, "sqlstore batch read",
		"table", t.Name, "ids", len(ids), "rows", len(out), "duration", time.Since(start))
	return out, nil
}

// ReadAll selects every row ordered by id.
func (t Table[T, ID]) ReadAll(ctx context.Context, store Store) ([]T, error) {
	if store == nil {
		return nil, crud.ErrNilStore
	}
	out := []T{}
	if err := sqlx.SelectContext(ctx, store, &out, builderFor(store).SelectAll(t.Name, t.key())); err != nil {
		return nil, fmt.Errorf("sqlstore: read all %s: %w", t.Name, err)
	}
	return out, nil
}

// DeleteByID deletes the row with the given id. Deleting a missing row is not an error.
func (t Table[T, ID]) DeleteByID(ctx context.Context, id ID, store Store) error {
	if store == nil {
		return crud.ErrNilStore
	}
	q := store.Rebind(builderFor(store).Delete(t.Name, t.key()))
	if _, err := store.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("sqlstore: delete %s %v: %w", t.Name, id, err)
	}
	return nil
}

// DeleteAll deletes every row of the table.
func (t Table[T, ID]) DeleteAll(ctx context.Context, store Store) error {
	if store == nil {
		return crud.ErrNilStore
	}
	if _, err := store.ExecContext(ctx, builderFor(store).DeleteAll(t.Name)); err != nil {
		return fmt.Errorf("sqlstore: delete all %s: %w", t.Name, err)
	}
	return nil
}
