package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/model"
)

const (
	BackendDynamoDB = "dynamodb"

	DefaultDynamoDBTable = "rag-documents"

	dynamoBatchSize   = 25
	dynamoMaxAttempts = 5
)

// DynamoDBAPI is the subset of the dynamodb client used by the backend.
type DynamoDBAPI interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// dynamoItem is the table layout: partition key document_id, sort key
// chunk_id, embedding and metadata kept as json strings.
type dynamoItem struct {
	DocumentID string `dynamodbav:"document_id"`
	ChunkID    string `dynamodbav:"chunk_id"`
	Text       string `dynamodbav:"text"`
	Embedding  string `dynamodbav:"embedding"`
	Metadata   string `dynamodbav:"metadata"`
}

type dynamoBackend struct {
	client  DynamoDBAPI
	table   string
	backoff time.Duration
}

func NewDynamoDBBackend(client DynamoDBAPI, table string) Backend {
	if table == "" {
		table = DefaultDynamoDBTable
	}
	return &dynamoBackend{client: client, table: table, backoff: 50 * time.Millisecond}
}

func (d *dynamoBackend) Name() string {
	return BackendDynamoDB
}

func (d *dynamoBackend) Put(ctx context.Context, docs []*model.VectorDocument) error {
	requests := make([]types.WriteRequest, 0, len(docs))
	for _, doc := range docs {
		item, err := toDynamoItem(doc)
		if err != nil {
			return err
		}
		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			return fmt.Errorf("marshal item %s: %w", doc.Key(), err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: av}})
	}
	return d.batchWrite(ctx, requests)
}

func (d *dynamoBackend) Scan(ctx context.Context, fn func(doc *model.VectorDocument) error) error {
	p := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{
		TableName:      aws.String(d.table),
		ConsistentRead: aws.Bool(true),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("scan %s: %w", d.table, err)
		}
		for _, av := range page.Items {
			doc, err := fromAttributeMap(av)
			if err != nil {
				return err
			}
			if err := fn(doc); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *dynamoBackend) Delete(ctx context.Context, documentID string) error {
	return d.deleteChunks(ctx, documentID, nil)
}

func (d *dynamoBackend) DeleteStaleChunks(ctx context.Context, documentID string, keep []string) error {
	wanted := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		wanted[id] = struct{}{}
	}
	return d.deleteChunks(ctx, documentID, wanted)
}

// deleteChunks removes every chunk of documentID whose id is not in keep.
func (d *dynamoBackend) deleteChunks(ctx context.Context, documentID string, keep map[string]struct{}) error {
	p := dynamodb.NewQueryPaginator(d.client, d.queryInput(documentID, "document_id, chunk_id", 0))
	var requests []types.WriteRequest
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("query %s: %w", documentID, err)
		}
		for _, av := range page.Items {
			if chunk, ok := av["chunk_id"].(*types.AttributeValueMemberS); ok {
				if _, skip := keep[chunk.Value]; skip {
					continue
				}
			}
			requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{
				Key: map[string]types.AttributeValue{
					"document_id": av["document_id"],
					"chunk_id":    av["chunk_id"],
				},
			}})
		}
	}
	return d.batchWrite(ctx, requests)
}

func (d *dynamoBackend) Get(ctx context.Context, documentID string) (*model.VectorDocument, bool, error) {
	out, err := d.client.Query(ctx, d.queryInput(documentID, "", 1))
	if err != nil {
		return nil, false, fmt.Errorf("query %s: %w", documentID, err)
	}
	if len(out.Items) == 0 {
		return nil, false, nil
	}
	doc, err := fromAttributeMap(out.Items[0])
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (d *dynamoBackend) Count(ctx context.Context) (int, error) {
	p := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{
		TableName: aws.String(d.table),
		Select:    types.SelectCount,
	})
	total := 0
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("count %s: %w", d.table, err)
		}
		total += int(page.Count)
	}
	return total, nil
}

func (d *dynamoBackend) queryInput(documentID string, projection string, limit int32) *dynamodb.QueryInput {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(d.table),
		KeyConditionExpression: aws.String("document_id = :doc_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":doc_id": &types.AttributeValueMemberS{Value: documentID},
		},
		ConsistentRead: aws.Bool(true),
	}
	if projection != "" {
		in.ProjectionExpression = aws.String(projection)
	}
	if limit > 0 {
		in.Limit = aws.Int32(limit)
	}
	return in
}

// batchWrite sends requests in groups of 25 and resubmits unprocessed items.
// Groups already written stay written when a later one fails.
func (d *dynamoBackend) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	for start := 0; start < len(requests); start += dynamoBatchSize {
		end := start + dynamoBatchSize
		if end > len(requests) {
			end = len(requests)
		}
		pending := map[string][]types.WriteRequest{d.table: requests[start:end]}
		for attempt := 0; len(pending[d.table]) > 0; attempt++ {
			if attempt >= dynamoMaxAttempts {
				return fmt.Errorf("batch write %s: %d items left unprocessed", d.table, len(pending[d.table]))
			}
			if attempt > 0 {
				logutil.GetLogger(ctx).Warn("retry unprocessed dynamodb items",
					zap.String("table", d.table), zap.Int("attempt", attempt), zap.Int("count", len(pending[d.table])))
				if err := sleepContext(ctx, d.backoff<<uint(attempt-1)); err != nil {
					return err
				}
			}
			out, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return fmt.Errorf("batch write %s: %w", d.table, err)
			}
			pending = out.UnprocessedItems
			if pending == nil {
				break
			}
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func toDynamoItem(doc *model.VectorDocument) (*dynamoItem, error) {
	embedding, err := json.Marshal(doc.Embedding)
	if err != nil {
		return nil, fmt.Errorf("encode embedding of %s: %w", doc.Key(), err)
	}
	meta := doc.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	metadata, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata of %s: %w", doc.Key(), err)
	}
	return &dynamoItem{
		DocumentID: doc.DocumentID,
		ChunkID:    doc.ChunkID,
		Text:       doc.Text,
		Embedding:  string(embedding),
		Metadata:   string(metadata),
	}, nil
}

func fromAttributeMap(av map[string]types.AttributeValue) (*model.VectorDocument, error) {
	item := &dynamoItem{}
	if err := attributevalue.UnmarshalMap(av, item); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	doc := &model.VectorDocument{
		DocumentID: item.DocumentID,
		ChunkID:    item.ChunkID,
		Text:       item.Text,
		Metadata:   map[string]interface{}{},
	}
	if item.Embedding != "" {
		if err := json.Unmarshal([]byte(item.Embedding), &doc.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding of %s: %w", doc.Key(), err)
		}
	}
	if item.Metadata != "" {
		if err := json.Unmarshal([]byte(item.Metadata), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", doc.Key(), err)
		}
	}
	return doc, nil
}
