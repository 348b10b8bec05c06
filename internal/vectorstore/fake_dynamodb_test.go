package vectorstore_test

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamoDB mimics a single table keyed by document_id and chunk_id.
// Pages hold at most pageSize items so the paginators are exercised.
type fakeDynamoDB struct {
	mu          sync.Mutex
	items       map[string]map[string]types.AttributeValue
	pageSize    int
	unprocessed int
	batchCalls  int
	failWrites  bool
	failReads   bool
}

func newFakeDynamoDB() *fakeDynamoDB {
	return &fakeDynamoDB{items: map[string]map[string]types.AttributeValue{}, pageSize: 10}
}

func attrString(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func itemKey(item map[string]types.AttributeValue) string {
	return attrString(item["document_id"]) + "\x00" + attrString(item["chunk_id"])
}

func (f *fakeDynamoDB) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	if f.failWrites {
		return nil, errors.New("service unavailable")
	}
	out := &dynamodb.BatchWriteItemOutput{}
	for table, requests := range params.RequestItems {
		if len(requests) > 25 {
			return nil, errors.New("too many items in batch")
		}
		for i, req := range requests {
			if f.unprocessed > 0 && i == len(requests)-1 {
				f.unprocessed--
				if out.UnprocessedItems == nil {
					out.UnprocessedItems = map[string][]types.WriteRequest{}
				}
				out.UnprocessedItems[table] = append(out.UnprocessedItems[table], req)
				continue
			}
			switch {
			case req.PutRequest != nil:
				f.items[itemKey(req.PutRequest.Item)] = req.PutRequest.Item
			case req.DeleteRequest != nil:
				delete(f.items, itemKey(req.DeleteRequest.Key))
			}
		}
	}
	return out, nil
}

func (f *fakeDynamoDB) sortedKeys(documentID string) []string {
	keys := make([]string, 0, len(f.items))
	for k, item := range f.items {
		if documentID != "" && attrString(item["document_id"]) != documentID {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *fakeDynamoDB) page(keys []string, start map[string]types.AttributeValue, limit int32) ([]map[string]types.AttributeValue, map[string]types.AttributeValue) {
	from := 0
	if start != nil {
		startKey := itemKey(start)
		from = sort.SearchStrings(keys, startKey)
		if from < len(keys) && keys[from] == startKey {
			from++
		}
	}
	size := f.pageSize
	if limit > 0 && int(limit) < size {
		size = int(limit)
	}
	end := from + size
	if end > len(keys) {
		end = len(keys)
	}
	var items []map[string]types.AttributeValue
	for _, k := range keys[from:end] {
		items = append(items, f.items[k])
	}
	var last map[string]types.AttributeValue
	if end < len(keys) && len(items) > 0 {
		tail := items[len(items)-1]
		last = map[string]types.AttributeValue{"document_id": tail["document_id"], "chunk_id": tail["chunk_id"]}
	}
	return items, last
}

func (f *fakeDynamoDB) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, errors.New("service unavailable")
	}
	documentID := attrString(params.ExpressionAttributeValues[":doc_id"])
	var limit int32
	if params.Limit != nil {
		limit = *params.Limit
	}
	keys := f.sortedKeys(documentID)
	if documentID == "" {
		keys = nil
	}
	items, last := f.page(keys, params.ExclusiveStartKey, limit)
	if limit > 0 {
		last = nil
	}
	return &dynamodb.QueryOutput{Items: items, Count: int32(len(items)), LastEvaluatedKey: last}, nil
}

func (f *fakeDynamoDB) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, errors.New("service unavailable")
	}
	items, last := f.page(f.sortedKeys(""), params.ExclusiveStartKey, 0)
	out := &dynamodb.ScanOutput{Count: int32(len(items)), LastEvaluatedKey: last}
	if params.Select != types.SelectCount {
		out.Items = items
	}
	return out, nil
}
