package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/burugo/crud"
)

// ParentIndex is the BelongsTo primitive for a Table whose items carry the
// parent key in Attr, with a global secondary index partitioned on Attr.
type ParentIndex[C crud.Record[CID], CID comparable, PID comparable] struct {
	Table     Table[C, CID]
	IndexName string
	// Attr is the foreign key attribute, e.g. "person_id".
	Attr       string
	ParentIDOf func(C) PID
}

var _ crud.ParentLoader[crud.Record[string], string, API] = ParentIndex[crud.Record[string], string, string]{}

// ParentID returns the foreign key of child.
func (p ParentIndex[C, CID, PID]) ParentID(child C) PID {
	return p.ParentIDOf(child)
}

// ForParentIDs runs one paginated Query against the index per distinct parent id.
func (p ParentIndex[C, CID, PID]) ForParentIDs(ctx context.Context, ids []PID, store API) (map[PID][]C, error) {
	if store == nil {
		return nil, crud.ErrNilStore
	}
	ids = crud.Distinct(ids)
	grouped := make(map[PID][]C, len(ids))
	if len(ids) == 0 {
		return grouped, nil
	}
	start := time.Now()
	rows := 0
	for _, pid := range ids {
		children, err := p.query(ctx, pid, store)
		if err != nil {
			return nil, err
		}
		if len(children) > 0 {
			grouped[pid] = children
			rows += len(children)
		}
	}
	p.Table.logger().DebugContext(ctx, "dynamo children batch",
		"table", p.Table.Name, "index", p.IndexName, "parents", len(ids), "rows", rows, "duration", time.Since(start))
	return grouped, nil
}

func (p ParentIndex[C, CID, PID]) query(ctx context.Context, pid PID, store API) ([]C, error) {
	av, err := attributevalue.Marshal(pid)
	if err != nil {
		return nil, fmt.Errorf("marshal parent key: %w", err)
	}
	paginator := dynamodb.NewQueryPaginator(store, &dynamodb.QueryInput{
		TableName:                 aws.String(p.Table.Name),
		IndexName:                 aws.String(p.IndexName),
		KeyConditionExpression:    aws.String("#fk = :pid"),
		ExpressionAttributeNames:  map[string]string{"#fk": p.Attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":pid": av},
	})
	var items []map[string]types.AttributeValue
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamo: query %s.%s %v: %w", p.Table.Name, p.IndexName, pid, err)
		}
		items = append(items, page.Items...)
	}
	return p.Table.decode(items)
}
