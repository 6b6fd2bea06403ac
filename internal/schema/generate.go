package schema

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// TypeMapping maps Go types to SQL column types per dialect.
var TypeMapping = map[string]map[string]string{
	"mysql": {
		"int":       "INT",
		"int8":      "TINYINT",
		"int16":     "SMALLINT",
		"int32":     "INT",
		"int64":     "BIGINT",
		"uint":      "INT UNSIGNED",
		"uint8":     "TINYINT UNSIGNED",
		"uint16":    "SMALLINT UNSIGNED",
		"uint32":    "INT UNSIGNED",
		"uint64":    "BIGINT UNSIGNED",
		"float32":   "FLOAT",
		"float64":   "DOUBLE",
		"string":    "VARCHAR(255)",
		"bool":      "BOOLEAN",
		"time.Time": "DATETIME",
		"[]uint8":   "BLOB",
	},
	"postgres": {
		"int":       "INTEGER",
		"int8":      "SMALLINT",
		"int16":     "SMALLINT",
		"int32":     "INTEGER",
		"int64":     "BIGINT",
		"uint":      "BIGINT",
		"uint8":     "SMALLINT",
		"uint16":    "INTEGER",
		"uint32":    "BIGINT",
		"uint64":    "NUMERIC",
		"float32":   "REAL",
		"float64":   "DOUBLE PRECISION",
		"string":    "VARCHAR(255)",
		"bool":      "BOOLEAN",
		"time.Time": "TIMESTAMP",
		"[]uint8":   "BYTEA",
	},
	"sqlite": {
		"int":       "INTEGER",
		"int8":      "INTEGER",
		"int16":     "INTEGER",
		"int32":     "INTEGER",
		"int64":     "INTEGER",
		"uint":      "INTEGER",
		"uint8":     "INTEGER",
		"uint16":    "INTEGER",
		"uint32":    "INTEGER",
		"uint64":    "INTEGER",
		"float32":   "REAL",
		"float64":   "REAL",
		"string":    "TEXT",
		"bool":      "BOOLEAN",
		"time.Time": "DATETIME",
		"[]uint8":   "BLOB",
	},
}

var timeType = reflect.TypeOf(time.Time{})

// GenerateCreateTableSQL builds an idempotent CREATE TABLE statement for info.
// Integer keys become auto-increment columns; pointer fields are nullable.
func GenerateCreateTableSQL(info *ModelInfo, dialect string) (string, error) {
	typeMap, ok := TypeMapping[dialect]
	if !ok {
		return "", fmt.Errorf("unsupported dialect: %s", dialect)
	}

	cols := make([]string, 0, len(info.Fields))
	for _, f := range info.Fields {
		t := f.Type
		nullable := false
		if t.Kind() == reflect.Ptr {
			t = t.Elem()
			nullable = true
		}
		sqlType := sqlTypeFor(typeMap, t)

		var constraints []string
		if f.Column == info.KeyColumn {
			switch {
			case dialect == "sqlite" && sqlType == "INTEGER":
				constraints = append(constraints, "PRIMARY KEY AUTOINCREMENT")
			case dialect == "mysql" && (strings.HasPrefix(sqlType, "INT") || strings.HasPrefix(sqlType, "BIGINT")):
				constraints = append(constraints, "PRIMARY KEY AUTO_INCREMENT")
			case dialect == "postgres" && sqlType == "BIGINT":
				sqlType = "BIGSERIAL"
				constraints = append(constraints, "PRIMARY KEY")
			default:
				constraints = append(constraints, "PRIMARY KEY")
			}
		} else if !nullable {
			constraints = append(constraints, "NOT NULL")
		}
		cols = append(cols, strings.TrimSpace(fmt.Sprintf("%s %s %s", f.Column, sqlType, strings.Join(constraints, " "))))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", info.TableName, strings.Join(cols, ",\n  ")), nil
}

func sqlTypeFor(typeMap map[string]string, t reflect.Type) string {
	if t == timeType {
		return typeMap["time.Time"]
	}
	if sqlType, ok := typeMap[t.String()]; ok {
		return sqlType
	}
	// Named types such as `type Status string` fall back to their kind
	if sqlType, ok := typeMap[t.Kind().String()]; ok {
		return sqlType
	}
	return "TEXT"
}

// ColumnType returns the SQL column type for t in dialect.
func ColumnType(t reflect.Type, dialect string) (string, error) {
	typeMap, ok := TypeMapping[dialect]
	if !ok {
		return "", fmt.Errorf("unsupported dialect: %s", dialect)
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return sqlTypeFor(typeMap, t), nil
}
