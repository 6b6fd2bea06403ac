package sqlstore

import (
	"context"
	"fmt"
	"reflect"

	"github.com/burugo/crud/internal/schema"
)

// CreateTables creates a table for each model when missing. Table and
// column names come from the models' `db` tags and TableName methods.
func CreateTables(ctx context.Context, store Store, models ...any) error {
	dialect := dialectName(store.DriverName())
	for _, m := range models {
		info, err := schema.GetCachedModelInfo(reflect.TypeOf(m))
		if err != nil {
			return fmt.Errorf("sqlstore: create tables: %w", err)
		}
		q, err := schema.GenerateCreateTableSQL(info, dialect)
		if err != nil {
			return fmt.Errorf("sqlstore: create table %s: %w", info.TableName, err)
		}
		if _, err := store.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("sqlstore: create table %s: %w", info.TableName, err)
		}
	}
	return nil
}
