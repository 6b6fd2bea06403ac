// Package sqlstore implements the crud contracts over database/sql via sqlx.
//
// The store capability is sqlx.ExtContext, so every primitive runs equally
// against a *sqlx.DB or inside a *sqlx.Tx. Records are scanned with sqlx's
// `db` struct tags. Writes rely on INSERT/UPDATE ... RETURNING, which SQLite
// (3.35+) and PostgreSQL support.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jmoiron/sqlx"

	"github.com/burugo/crud/internal/sqlbuilder"
)

// Store is the capability every sqlstore primitive runs against.
type Store = sqlx.ExtContext

// DefaultBatchSize bounds the ids bound into one IN list. SQLite rejects
// statements with more than 32766 variables and PostgreSQL more than 65535.
const DefaultBatchSize = 500

func batchSize(n int) int {
	if n > 0 {
		return n
	}
	return DefaultBatchSize
}

// txBeginner is satisfied by *sqlx.DB but not by *sqlx.Tx.
type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

func builderFor(store Store) sqlbuilder.Builder {
	return sqlbuilder.New(sqlbuilder.ForDriver(store.DriverName()))
}

// dialectName maps a driver name to the DDL dialect used by internal/schema.
func dialectName(driverName string) string {
	switch driverName {
	case "sqlite3":
		return "sqlite"
	case "postgres", "pgx":
		return "postgres"
	default:
		return driverName
	}
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// withTx runs fn inside a transaction when store can start one, and directly
// on store otherwise (store is already a transaction).
func withTx(ctx context.Context, store Store, fn func(Store) error) error {
	db, ok := store.(txBeginner)
	if !ok {
		return fn(store)
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	return nil
}

// selectIn runs query (holding a single "IN (?)") once per chunk of at most
// size ids, each chunk expanded by sqlx.In. Rows of all chunks are appended in
// chunk order.
func selectIn[T any, K any](ctx context.Context, store Store, query string, ids []K, size int) ([]T, error) {
	var out []T
	for chunk := range slices.Chunk(ids, batchSize(size)) {
		q, args, err := sqlx.In(query, chunk)
		if err != nil {
			return nil, err
		}
		var rows []T
		if err := sqlx.SelectContext(ctx, store, &rows, store.Rebind(q), args...); err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// pairsIn reads (key, value) rows of a two-column table where key is in
// keys, grouped by key in key-then-value order. keys must be distinct so a
// key's values all come from the same chunk.
func pairsIn[K comparable, V comparable](ctx context.Context, store Store, table, keyColumn, valueColumn string, keys []K, size int) (map[K][]V, error) {
	out := make(map[K][]V)
	query := builderFor(store).SelectPairsIn(table, keyColumn, valueColumn)
	for chunk := range slices.Chunk(keys, batchSize(size)) {
		if err := scanPairs(ctx, store, query, chunk, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanPairs[K comparable, V comparable](ctx context.Context, store Store, query string, keys []K, out map[K][]V) error {
	q, args, err := sqlx.In(query, keys)
	if err != nil {
		return err
	}
	rows, err := store.QueryxContext(ctx, store.Rebind(q), args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k K
		var v V
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		out[k] = append(out[k], v)
	}
	return rows.Err()
}
