package schema

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
)

// Field describes one column-mapped struct field.
type Field struct {
	GoName string       // Go field name
	Column string       // Database column name
	Index  []int        // Index for FieldByIndex, reaches into embedded structs
	Type   reflect.Type // Field type, used for DDL type mapping
	Key    bool         // Tagged `db:"...,pk"`
}

// ModelInfo holds pre-computed column metadata for a struct type.
type ModelInfo struct {
	TableName string
	KeyColumn string // Defaults to "id" when no field is tagged as pk
	Fields    []Field
}

// Columns returns the column names in field order.
func (m *ModelInfo) Columns() []string {
	cols := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		cols[i] = f.Column
	}
	return cols
}

// modelCache stores *ModelInfo keyed by reflect.Type.
var modelCache sync.Map

// GetCachedModelInfo retrieves or computes/caches metadata for a struct type.
// Pointer types are dereferenced.
func GetCachedModelInfo(modelType reflect.Type) (*ModelInfo, error) {
	if modelType.Kind() == reflect.Ptr {
		modelType = modelType.Elem()
	}
	if modelType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected a struct type, got %s", modelType.Kind())
	}
	if cached, ok := modelCache.Load(modelType); ok {
		return cached.(*ModelInfo), nil
	}

	info := &ModelInfo{TableName: getTableNameFromType(modelType)}

	var processFields func(structType reflect.Type, parentIndex []int)
	processFields = func(structType reflect.Type, parentIndex []int) {
		for i := 0; i < structType.NumField(); i++ {
			field := structType.Field(i)
			dbTag := field.Tag.Get("db")
			index := append(append([]int{}, parentIndex...), i)

			// Embedded structs contribute their own columns
			if field.Anonymous && field.Type.Kind() == reflect.Struct && dbTag == "" {
				processFields(field.Type, index)
				continue
			}
			if dbTag == "-" || !field.IsExported() {
				continue
			}

			column, opts, _ := strings.Cut(dbTag, ",")
			if column == "" {
				column = ToSnakeCase(field.Name)
			}
			isKey := opts == "pk" || opts == "primarykey"
			info.Fields = append(info.Fields, Field{
				GoName: field.Name,
				Column: column,
				Index:  index,
				Type:   field.Type,
				Key:    isKey,
			})
			if isKey && info.KeyColumn == "" {
				info.KeyColumn = column
			}
		}
	}
	processFields(modelType, nil)

	if len(info.Fields) == 0 {
		return nil, fmt.Errorf("type %s has no mapped columns", modelType.Name())
	}
	if info.KeyColumn == "" {
		info.KeyColumn = "id"
	}

	actual, _ := modelCache.LoadOrStore(modelType, info)
	return actual.(*ModelInfo), nil
}

// Values returns the columns and values of v in field order. When skipKey is
// set the key column is left out, which suits INSERT with store-assigned ids.
func Values(v any, skipKey bool) ([]string, []any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, nil, fmt.Errorf("nil %s", rv.Type())
		}
		rv = rv.Elem()
	}
	info, err := GetCachedModelInfo(rv.Type())
	if err != nil {
		return nil, nil, err
	}
	cols := make([]string, 0, len(info.Fields))
	vals := make([]any, 0, len(info.Fields))
	for _, f := range info.Fields {
		if skipKey && f.Column == info.KeyColumn {
			continue
		}
		cols = append(cols, f.Column)
		vals = append(vals, rv.FieldByIndex(f.Index).Interface())
	}
	return cols, vals, nil
}

// getTableNameFromType prefers a TableName() method, otherwise the plural snake_case of the type name.
func getTableNameFromType(modelType reflect.Type) string {
	if tableNamer, ok := reflect.New(modelType).Interface().(interface{ TableName() string }); ok {
		if name := tableNamer.TableName(); name != "" {
			return name
		}
	}
	return ToSnakeCase(modelType.Name()) + "s"
}

var (
	matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
	matchAllCap   = regexp.MustCompile("([a-z0-9])([A-Z])")
)

// ToSnakeCase converts a string from CamelCase to snake_case.
func ToSnakeCase(str string) string {
	snake := matchFirstCap.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(snake)
}
