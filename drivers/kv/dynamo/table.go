// Package dynamo implements the crud contracts over Amazon DynamoDB.
//
// Records are (un)marshalled with attributevalue, so struct fields follow
// `dynamodbav` tags. The store capability is the narrow API interface, which
// *dynamodb.Client satisfies.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/burugo/crud"
)

// ErrUnprocessed is returned when DynamoDB keeps returning unprocessed keys
// or items after MaxUnprocessedRetries resubmissions.
var ErrUnprocessed = errors.New("dynamo: batch request left unprocessed items")

// API is the subset of *dynamodb.Client used by this package.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Table reads and deletes items of one DynamoDB table with a simple
// (partition-only) primary key.
type Table[T crud.Record[ID], ID comparable] struct {
	Name string
	// KeyAttr is the partition key attribute. Default: "id"
	KeyAttr string
	Config  Config
	// Logger receives Debug records for batched reads. Defaults to slog.Default().
	Logger *slog.Logger
}

var (
	_ crud.Reader[crud.Record[string], string, API] = Table[crud.Record[string], string]{}
	_ crud.Deleter[string, API]                      = Table[crud.Record[string], string]{}
)

// NewTable returns a Table keyed by "id" with DefaultConfig.
func NewTable[T crud.Record[ID], ID comparable](name string) Table[T, ID] {
	return Table[T, ID]{Name: name, KeyAttr: "id", Config: DefaultConfig()}
}

func (t Table[T, ID]) keyAttr() string {
	if t.KeyAttr == "" {
		return "id"
	}
	return t.KeyAttr
}

func (t Table[T, ID]) config() Config {
	c := t.Config
	c.validate()
	return c
}

func (t Table[T, ID]) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

func (t Table[T, ID]) key(id ID) (map[string]types.AttributeValue, error) {
	av, err := attributevalue.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	return map[string]types.AttributeValue{t.keyAttr(): av}, nil
}

func (t Table[T, ID]) decode(items []map[string]types.AttributeValue) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		var rec T
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal %s item: %w", t.Name, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Read gets one item by key.
func (t Table[T, ID]) Read(ctx context.Context, id ID, store API) (T, error) {
	var out T
	if store == nil {
		return out, crud.ErrNilStore
	}
	key, err := t.key(id)
	if err != nil {
		return out, err
	}
	result, err := store.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(t.Name),
		Key:       key,
	})
	if err != nil {
		return out, fmt.Errorf("dynamo: get %s %v: %w", t.Name, id, err)
	}
	if result.Item == nil {
		return out, fmt.Errorf("%s %v: %w", t.Name, id, crud.ErrNotFound)
	}
	if err := attributevalue.UnmarshalMap(result.Item, &out); err != nil {
		return out, fmt.Errorf("unmarshal %s item: %w", t.Name, err)
	}
	return out, nil
}

// ReadMany fetches ids with BatchGetItem in chunks of Config.ReadBatchSize,
// resubmitting unprocessed keys.
func (t Table[T, ID]) ReadMany(ctx context.Context, ids []ID, store API) ([]T, error) {
	if store == nil {
		return nil, crud.ErrNilStore
	}
	ids = crud.Distinct(ids)
	if len(ids) == 0 {
		return []T{}, nil
	}
	cfg := t.config()
	start := time.Now()
	var items []map[string]types.AttributeValue
	for begin := 0; begin < len(ids); begin += cfg.ReadBatchSize {
		end := min(begin+cfg.ReadBatchSize, len(ids))
		keys := make([]map[string]types.AttributeValue, 0, end-begin)
		for _, id := range ids[begin:end] {
			key, err := t.key(id)
			if err != nil {
				return nil, err
			}
			keys = append(keys, key)
		}
		got, err := t.batchGet(ctx, keys, cfg, store)
		if err != nil {
			return nil, err
		}
		items = append(items, got...)
	}
	out, err := t.decode(items)
	if err != nil {
		return nil, err
	}
	t.logger().DebugContext(ctx, "dynamo batch read",
		"table", t.Name, "ids", len(ids), "rows", len(out), "duration", time.Since(start))
	return out, nil
}

func (t Table[T, ID]) batchGet(ctx context.Context, keys []map[string]types.AttributeValue, cfg Config, store API) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	request := map[string]types.KeysAndAttributes{t.Name: {Keys: keys}}
	for attempt := 0; ; attempt++ {
		result, err := store.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
		if err != nil {
			return nil, fmt.Errorf("dynamo: batch get %s: %w", t.Name, err)
		}
		items = append(items, result.Responses[t.Name]...)
		pending, ok := result.UnprocessedKeys[t.Name]
		if !ok || len(pending.Keys) == 0 {
			return items, nil
		}
		if attempt >= cfg.MaxUnprocessedRetries {
			return nil, fmt.Errorf("dynamo: batch get %s: %d keys: %w", t.Name, len(pending.Keys), ErrUnprocessed)
		}
		request = map[string]types.KeysAndAttributes{t.Name: pending}
	}
}

// ReadAll scans the whole table.
func (t Table[T, ID]) ReadAll(ctx context.Context, store API) ([]T, error) {
	if store == nil {
		return nil, crud.ErrNilStore
	}
	items, err := t.scan(ctx, nil, store)
	if err != nil {
		return nil, err
	}
	return t.decode(items)
}

func (t Table[T, ID]) scan(ctx context.Context, projection *string, store API) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(t.Name)}
	if projection != nil {
		input.ProjectionExpression = projection
		input.ExpressionAttributeNames = map[string]string{"#k": t.keyAttr()}
	}
	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewScanPaginator(store, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamo: scan %s: %w", t.Name, err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// DeleteByID deletes one item. Deleting a missing item is not an error.
func (t Table[T, ID]) DeleteByID(ctx context.Context, id ID, store API) error {
	if store == nil {
		return crud.ErrNilStore
	}
	key, err := t.key(id)
	if err != nil {
		return err
	}
	if _, err := store.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.Name),
		Key:       key,
	}); err != nil {
		return fmt.Errorf("dynamo: delete %s %v: %w", t.Name, id, err)
	}
	return nil
}

// DeleteAll scans every key and deletes the items with BatchWriteItem in
// chunks of Config.WriteBatchSize.
func (t Table[T, ID]) DeleteAll(ctx context.Context, store API) error {
	if store == nil {
		return crud.ErrNilStore
	}
	keys, err := t.scan(ctx, aws.String("#k"), store)
	if err != nil {
		return err
	}
	cfg := t.config()
	for begin := 0; begin < len(keys); begin += cfg.WriteBatchSize {
		end := min(begin+cfg.WriteBatchSize, len(keys))
		requests := make([]types.WriteRequest, 0, end-begin)
		for _, key := range keys[begin:end] {
			requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: key}})
		}
		if err := t.batchWrite(ctx, requests, cfg, store); err != nil {
			return err
		}
	}
	return nil
}

func (t Table[T, ID]) batchWrite(ctx context.Context, requests []types.WriteRequest, cfg Config, store API) error {
	pending := map[string][]types.WriteRequest{t.Name: requests}
	for attempt := 0; ; attempt++ {
		result, err := store.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("dynamo: batch write %s: %w", t.Name, err)
		}
		left := result.UnprocessedItems[t.Name]
		if len(left) == 0 {
			return nil
		}
		if attempt >= cfg.MaxUnprocessedRetries {
			return fmt.Errorf("dynamo: batch write %s: %d items: %w", t.Name, len(left), ErrUnprocessed)
		}
		pending = map[string][]types.WriteRequest{t.Name: left}
	}
}
