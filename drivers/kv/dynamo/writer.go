package dynamo

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/burugo/crud"
)

// ErrNilInput is returned when Create or UpdateByID is given a nil input.
var ErrNilInput = errors.New("dynamo: nil input")

// Writer creates and updates items of a string-keyed Table from input
// structs. The stored item is In marshalled with attributevalue plus the key
// attribute, and is decoded back into T for the caller.
type Writer[T crud.Record[string], In any] struct {
	Table Table[T, string]
	// NewID allocates the key of created items. Defaults to uuid.NewString.
	NewID func() string
}

var (
	_ crud.Creator[crud.Record[string], struct{}, API]         = Writer[crud.Record[string], struct{}]{}
	_ crud.Updater[crud.Record[string], string, struct{}, API] = Writer[crud.Record[string], struct{}]{}
)

// NewWriter returns a Writer for t allocating uuid keys.
func NewWriter[T crud.Record[string], In any](t Table[T, string]) Writer[T, In] {
	return Writer[T, In]{Table: t, NewID: uuid.NewString}
}

func (w Writer[T, In]) newID() string {
	if w.NewID != nil {
		return w.NewID()
	}
	return uuid.NewString()
}

// Create stores input under a fresh key. The put is conditional on the key
// not existing yet.
func (w Writer[T, In]) Create(ctx context.Context, input In, store API) (T, error) {
	var out T
	if store == nil {
		return out, crud.ErrNilStore
	}
	id := w.newID()
	item, err := w.item(id, input)
	if err != nil {
		return out, fmt.Errorf("dynamo: create %s: %w", w.Table.Name, err)
	}
	if err := w.put(ctx, item, "attribute_not_exists(#k)", store); err != nil {
		return out, fmt.Errorf("dynamo: create %s %s: %w", w.Table.Name, id, err)
	}
	return w.decode(item)
}

// UpdateByID replaces the item with the given key by input. A missing key
// yields crud.ErrNotFound and nothing is written.
func (w Writer[T, In]) UpdateByID(ctx context.Context, id string, input In, store API) (T, error) {
	var out T
	if store == nil {
		return out, crud.ErrNilStore
	}
	item, err := w.item(id, input)
	if err != nil {
		return out, fmt.Errorf("dynamo: update %s %s: %w", w.Table.Name, id, err)
	}
	err = w.put(ctx, item, "attribute_exists(#k)", store)
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return out, fmt.Errorf("%s %s: %w", w.Table.Name, id, crud.ErrNotFound)
	}
	if err != nil {
		return out, fmt.Errorf("dynamo: update %s %s: %w", w.Table.Name, id, err)
	}
	return w.decode(item)
}

func (w Writer[T, In]) item(id string, input In) (map[string]types.AttributeValue, error) {
	if isNil(input) {
		return nil, ErrNilInput
	}
	item, err := attributevalue.MarshalMap(input)
	if err != nil {
		return nil, fmt.Errorf("marshal input: %w", err)
	}
	if item == nil {
		item = make(map[string]types.AttributeValue, 1)
	}
	item[w.Table.keyAttr()] = &types.AttributeValueMemberS{Value: id}
	return item, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

func (w Writer[T, In]) put(ctx context.Context, item map[string]types.AttributeValue, condition string, store API) error {
	_, err := store.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(w.Table.Name),
		Item:                     item,
		ConditionExpression:      aws.String(condition),
		ExpressionAttributeNames: map[string]string{"#k": w.Table.keyAttr()},
	})
	return err
}

func (w Writer[T, In]) decode(item map[string]types.AttributeValue) (T, error) {
	var out T
	if err := attributevalue.UnmarshalMap(item, &out); err != nil {
		return out, fmt.Errorf("unmarshal %s item: %w", w.Table.Name, err)
	}
	return out, nil
}
