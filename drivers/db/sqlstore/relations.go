package sqlstore

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/burugo/crud"
	"github.com/burugo/crud/internal/schema"
)

// ForeignKey is the BelongsTo primitive for a child table holding a foreign
// key column.
type ForeignKey[C crud.Record[CID], CID comparable, PID comparable] struct {
	Table  Table[C, CID]
	Column string
	// ParentIDOf reads the foreign key from a scanned child.
	ParentIDOf func(C) PID
}

var _ crud.ParentLoader[crud.Record[int64], int64, Store] = ForeignKey[crud.Record[int64], int64, int64]{}

// ParentID returns the foreign key of child.
func (f ForeignKey[C, CID, PID]) ParentID(child C) PID {
	return f.ParentIDOf(child)
}

// ForParentIDs selects every child whose foreign key is in ids, one query per
// Table.BatchSize ids, and groups them by parent, children in id order.
func (f ForeignKey[C, CID, PID]) ForParentIDs(ctx context.Context, ids []PID, store Store) (map[PID][]C, error) {
	if store == nil {
		return nil, crud.ErrNilStore
	}
	ids = crud.Distinct(ids)
	if len(ids) == 0 {
		return map[PID][]C{}, nil
	}
	start := time.Now()
	rows, err := selectIn[C](ctx, store, builderFor(store).SelectIn(f.Table.Name, f.Column, f.Table.key()), ids, f.Table.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: %s by %s: %w", f.Table.Name, f.Column, err)
	}
	loggerOr(f.Table.Logger).DebugContext(ctx, "sqlstore children batch",
		"table", f.Table.Name, "column", f.Column, "parents", len(ids), "rows", len(rows), "duration", time.Since(start))
	return crud.GroupBy(rows, f.ParentIDOf), nil
}

// JoinTable is a two-column link table between T (LocalColumn) and a related
// record keyed by RID (RelatedColumn). It is the HasManyThrough primitive for
// T. Use Inverse to load from the related side.
type JoinTable[T crud.Record[ID], ID comparable, RID comparable] struct {
	Name          string
	LocalColumn   string
	RelatedColumn string
	Logger        *slog.Logger
	// BatchSize caps the ids sent in one query. Defaults to DefaultBatchSize.
	BatchSize int
}

var _ crud.ThroughLoader[crud.Record[int64], int64, string, Store] = JoinTable[crud.Record[int64], int64, string]{}

// RelationIDs returns the related ids linked to rec.
func (j JoinTable[T, ID, RID]) RelationIDs(ctx context.Context, rec T, store Store) ([]RID, error) {
	grouped, err := j.RelationIDsForMany(ctx, []ID{rec.GetID()}, store)
	if err != nil {
		return nil, err
	}
	return crud.Lookup(grouped, rec.GetID()), nil
}

// RelationIDsForMany returns the related ids linked to each of ids.
func (j JoinTable[T, ID, RID]) RelationIDsForMany(ctx context.Context, ids []ID, store Store) (map[ID][]RID, error) {
	if store == nil {
		return nil, crud.ErrNilStore
	}
	out, err := pairsIn[ID, RID](ctx, store, j.Name, j.LocalColumn, j.RelatedColumn, crud.Distinct(ids), j.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: %s by %s: %w", j.Name, j.LocalColumn, err)
	}
	return out, nil
}

// IDsForRelationIDs returns the T ids linked to each related id.
func (j JoinTable[T, ID, RID]) IDsForRelationIDs(ctx context.Context, ids []RID, store Store) (map[RID][]ID, error) {
	if store == nil {
		return nil, crud.ErrNilStore
	}
	out, err := pairsIn[RID, ID](ctx, store, j.Name, j.RelatedColumn, j.LocalColumn, crud.Distinct(ids), j.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: %s by %s: %w", j.Name, j.RelatedColumn, err)
	}
	return out, nil
}

// SetRelations replaces every link of id with relationIDs, atomically when
// store is a *sqlx.DB.
func (j JoinTable[T, ID, RID]) SetRelations(ctx context.Context, id ID, relationIDs []RID, store Store) error {
	if store == nil {
		return crud.ErrNilStore
	}
	relationIDs = crud.Distinct(relationIDs)
	err := withTx(ctx, store, func(tx Store) error {
		b := builderFor(tx)
		if _, err := tx.ExecContext(ctx, tx.Rebind(b.Delete(j.Name, j.LocalColumn)), id); err != nil {
			return err
		}
		insert := tx.Rebind(b.InsertPair(j.Name, j.LocalColumn, j.RelatedColumn))
		for _, rid := range relationIDs {
			if _, err := tx.ExecContext(ctx, insert, id, rid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sqlstore: set %s for %v: %w", j.Name, id, err)
	}
	loggerOr(j.Logger).DebugContext(ctx, "sqlstore relations replaced", "table", j.Name, "id", id, "links", len(relationIDs))
	return nil
}

// CreateTable creates the join table when missing, keyed on both columns.
func (j JoinTable[T, ID, RID]) CreateTable(ctx context.Context, store Store) error {
	dialect := dialectName(store.DriverName())
	localType, err := schema.ColumnType(reflect.TypeFor[ID](), dialect)
	if err != nil {
		return err
	}
	relatedType, err := schema.ColumnType(reflect.TypeFor[RID](), dialect)
	if err != nil {
		return err
	}
	q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s %s NOT NULL,\n  %s %s NOT NULL,\n  PRIMARY KEY (%s, %s)\n);",
		j.Name, j.LocalColumn, localType, j.RelatedColumn, relatedType, j.LocalColumn, j.RelatedColumn)
	if _, err := store.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("sqlstore: create %s: %w", j.Name, err)
	}
	return nil
}

// ParentJoin reads a JoinTable from its related side: R lists the T rows it
// is linked to as parents. It is the HasManyAndBelongsTo primitive for R.
type ParentJoin[R crud.Record[RID], RID comparable, PID comparable] struct {
	Name         string
	Column       string
	ParentColumn string
	BatchSize    int
}

var _ crud.JoinLoader[crud.Record[string], string, int64, Store] = ParentJoin[crud.Record[string], string, int64]{}

// Inverse returns the R-side view of j.
func Inverse[R crud.Record[RID], T crud.Record[ID], ID comparable, RID comparable](j JoinTable[T, ID, RID]) ParentJoin[R, RID, ID] {
	return ParentJoin[R, RID, ID]{Name: j.Name, Column: j.RelatedColumn, ParentColumn: j.LocalColumn, BatchSize: j.BatchSize}
}

// ParentIDs returns the parent ids linked to rec.
func (p ParentJoin[R, RID, PID]) ParentIDs(ctx context.Context, rec R, store Store) ([]PID, error) {
	if store == nil {
		return nil, crud.ErrNilStore
	}
	grouped, err := pairsIn[RID, PID](ctx, store, p.Name, p.Column, p.ParentColumn, []RID{rec.GetID()}, p.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: %s by %s: %w", p.Name, p.Column, err)
	}
	return crud.Lookup(grouped, rec.GetID()), nil
}

// IDsForParentIDs returns the R ids linked to each parent id.
func (p ParentJoin[R, RID, PID]) IDsForParentIDs(ctx context.Context, ids []PID, store Store) (map[PID][]RID, error) {
	if store == nil {
		return nil, crud.ErrNilStore
	}
	out, err := pairsIn[PID, RID](ctx, store, p.Name, p.ParentColumn, p.Column, crud.Distinct(ids), p.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: %s by %s: %w", p.Name, p.ParentColumn, err)
	}
	return out, nil
}
