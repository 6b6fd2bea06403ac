package sqlbuilder

import (
	"fmt"
	"strings"
)

// Dialector quotes identifiers for one SQL dialect. Placeholders are always
// written as "?" and rebound by sqlx for the target driver.
type Dialector interface {
	Quote(identifier string) string
}

// DoubleQuote quotes identifiers the ANSI way (SQLite, PostgreSQL).
type DoubleQuote struct{}

func (DoubleQuote) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// Backtick quotes identifiers the MySQL way.
type Backtick struct{}

func (Backtick) Quote(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

// ForDriver picks the dialect from a database/sql driver name.
func ForDriver(driverName string) Dialector {
	switch driverName {
	case "mysql":
		return Backtick{}
	default:
		return DoubleQuote{}
	}
}

// Builder renders the statements used by the SQL store.
type Builder struct {
	Dialect Dialector
}

// New returns a Builder for d.
func New(d Dialector) Builder {
	return Builder{Dialect: d}
}

func (b Builder) quoteAll(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = b.Dialect.Quote(c)
	}
	return out
}

// SelectByKey selects one row by column.
func (b Builder) SelectByKey(table, column string) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", b.Dialect.Quote(table), b.Dialect.Quote(column))
}

// SelectIn selects every row whose column is in a list. The single "(?)" is
// expanded by sqlx.In. Rows come back ordered by orderBy.
func (b Builder) SelectIn(table, column, orderBy string) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE %s IN (?) ORDER BY %s",
		b.Dialect.Quote(table), b.Dialect.Quote(column), b.Dialect.Quote(orderBy))
}

// SelectAll selects every row ordered by orderBy.
func (b Builder) SelectAll(table, orderBy string) string {
	return fmt.Sprintf("SELECT * FROM %s ORDER BY %s", b.Dialect.Quote(table), b.Dialect.Quote(orderBy))
}

// SelectPairsIn selects two columns of a join table where the first is in a list.
func (b Builder) SelectPairsIn(table, column, other string) string {
	return fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IN (?) ORDER BY %s, %s",
		b.Dialect.Quote(column), b.Dialect.Quote(other), b.Dialect.Quote(table),
		b.Dialect.Quote(column), b.Dialect.Quote(column), b.Dialect.Quote(other))
}

// Insert builds an INSERT that returns the stored row.
func (b Builder) Insert(table string, columns []string) (string, error) {
	if table == "" || len(columns) == 0 {
		return "", fmt.Errorf("insert into %q: no columns", table)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		b.Dialect.Quote(table), strings.Join(b.quoteAll(columns), ", "), placeholders), nil
}

// Update builds an UPDATE by key that returns the stored row. The key value
// is the last argument.
func (b Builder) Update(table string, columns []string, key string) (string, error) {
	if table == "" || len(columns) == 0 || key == "" {
		return "", fmt.Errorf("update %q: no columns", table)
	}
	sets := make([]string, len(columns))
	for i, c := range b.quoteAll(columns) {
		sets[i] = c + " = ?"
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = ? RETURNING *",
		b.Dialect.Quote(table), strings.Join(sets, ", "), b.Dialect.Quote(key)), nil
}

// Delete deletes rows matching one column value.
func (b Builder) Delete(table, column string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = ?", b.Dialect.Quote(table), b.Dialect.Quote(column))
}

// DeleteAll empties a table.
func (b Builder) DeleteAll(table string) string {
	return fmt.Sprintf("DELETE FROM %s", b.Dialect.Quote(table))
}

// InsertPair inserts one row into a two-column join table.
func (b Builder) InsertPair(table, column, other string) string {
	return fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)",
		b.Dialect.Quote(table), b.Dialect.Quote(column), b.Dialect.Quote(other))
}
