package dynamo_test

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/burugo/crud/drivers/kv/dynamo"
)

type item = map[string]types.AttributeValue

// fakeDynamo is an in-memory API keyed on the "id" attribute. Scan and Query
// return pages of pageSize items. unprocessed makes the next batch calls
// hand back their last request as unprocessed, once per call.
type fakeDynamo struct {
	mu          sync.Mutex
	tables      map[string]map[string]item
	pageSize    int
	unprocessed int
	calls       map[string]int
}

var _ dynamo.API = (*fakeDynamo)(nil)

func newFake() *fakeDynamo {
	return &fakeDynamo{tables: map[string]map[string]item{}, pageSize: 2, calls: map[string]int{}}
}

func scalar(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return "S:" + v.Value
	case *types.AttributeValueMemberN:
		return "N:" + v.Value
	default:
		return fmt.Sprintf("%T", av)
	}
}

func (f *fakeDynamo) table(name string) map[string]item {
	t, ok := f.tables[name]
	if !ok {
		t = map[string]item{}
		f.tables[name] = t
	}
	return t
}

func (f *fakeDynamo) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// page returns the items of keys after start, at most pageSize of them.
func (f *fakeDynamo) page(t map[string]item, keys []string, start item) ([]item, item) {
	sort.Strings(keys)
	from := 0
	if start != nil {
		k := scalar(start["id"])
		from = sort.SearchStrings(keys, k) + 1
	}
	out := []item{}
	for i := from; i < len(keys); i++ {
		if len(out) == f.pageSize {
			return out, item{"id": t[keys[i-1]]["id"]}
		}
		out = append(out, t[keys[i]])
	}
	return out, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetItem"]++
	return &dynamodb.GetItemOutput{Item: f.table(*in.TableName)[scalar(in.Key["id"])]}, nil
}

func (f *fakeDynamo) BatchGetItem(_ context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["BatchGetItem"]++
	out := &dynamodb.BatchGetItemOutput{Responses: map[string][]item{}, UnprocessedKeys: map[string]types.KeysAndAttributes{}}
	for name, ka := range in.RequestItems {
		keys := ka.Keys
		if f.unprocessed > 0 && len(keys) > 0 {
			f.unprocessed--
			out.UnprocessedKeys[name] = types.KeysAndAttributes{Keys: keys[len(keys)-1:]}
			keys = keys[:len(keys)-1]
		}
		for _, k := range keys {
			if it, ok := f.table(name)[scalar(k["id"])]; ok {
				out.Responses[name] = append(out.Responses[name], it)
			}
		}
	}
	return out, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Query"]++
	attr := in.ExpressionAttributeNames["#fk"]
	want := scalar(in.ExpressionAttributeValues[":pid"])
	t := f.table(*in.TableName)
	var keys []string
	for k, it := range t {
		if v, ok := it[attr]; ok && scalar(v) == want {
			keys = append(keys, k)
		}
	}
	items, last := f.page(t, keys, in.ExclusiveStartKey)
	return &dynamodb.QueryOutput{Items: items, LastEvaluatedKey: last}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Scan"]++
	t := f.table(*in.TableName)
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	items, last := f.page(t, keys, in.ExclusiveStartKey)
	return &dynamodb.ScanOutput{Items: items, LastEvaluatedKey: last}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["PutItem"]++
	t := f.table(*in.TableName)
	k := scalar(in.Item["id"])
	_, exists := t[k]
	switch aws.ToString(in.ConditionExpression) {
	case "attribute_exists(#k)":
		if !exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
	case "attribute_not_exists(#k)":
		if exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
	}
	t[k] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["DeleteItem"]++
	delete(f.table(*in.TableName), scalar(in.Key["id"]))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["BatchWriteItem"]++
	out := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{}}
	for name, reqs := range in.RequestItems {
		if f.unprocessed > 0 && len(reqs) > 0 {
			f.unprocessed--
			out.UnprocessedItems[name] = reqs[len(reqs)-1:]
			reqs = reqs[:len(reqs)-1]
		}
		t := f.table(name)
		for _, r := range reqs {
			switch {
			case r.DeleteRequest != nil:
				delete(t, scalar(r.DeleteRequest.Key["id"]))
			case r.PutRequest != nil:
				t[scalar(r.PutRequest.Item["id"])] = r.PutRequest.Item
			}
		}
	}
	return out, nil
}
