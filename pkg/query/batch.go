package query

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/theory-cloud/tablequery/internal/numutil"
	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
	"github.com/theory-cloud/tablequery/pkg/marshal"
)

// Store limits on entries per batch request
const (
	BatchGetChunkSize   = 100
	BatchWriteChunkSize = 25
)

const (
	opBatchGetItem   Operation = "BatchGetItem"
	opBatchWriteItem Operation = "BatchWriteItem"
)

// BatchWriteResult aggregates the responses of every chunk of a batch write.
// Unprocessed requests are returned as-is; they are not retried.
type BatchWriteResult struct {
	UnprocessedItems []types.WriteRequest
	Metadata         []middleware.Metadata
	Chunks           int
}

// HasUnprocessed reports whether the store left any request unprocessed
func (r *BatchWriteResult) HasUnprocessed() bool {
	return len(r.UnprocessedItems) > 0
}

// BatchGetResult aggregates the items returned by every chunk of a batch get, in chunk order.
// Item order within a chunk is whatever the store returned.
type BatchGetResult struct {
	Items           []map[string]any
	Raw             []map[string]types.AttributeValue
	UnprocessedKeys []map[string]types.AttributeValue
	Metadata        []middleware.Metadata
	Chunks          int
}

// HasUnprocessed reports whether the store left any key unprocessed
func (r *BatchGetResult) HasUnprocessed() bool {
	return len(r.UnprocessedKeys) > 0
}

// Decode unmarshals the raw items into out, a pointer to a slice
func (r *BatchGetResult) Decode(out any) error {
	return marshal.UnmarshalItemsInto(r.Raw, out)
}

// PutItemBatch writes items in chunks of BatchWriteChunkSize.
func (b *Builder) PutItemBatch(ctx context.Context, items []any) (*BatchWriteResult, error) {
	if err := b.begin(); err != nil {
		return nil, err
	}
	requests := make([]types.WriteRequest, 0, len(items))
	for i, item := range items {
		av, err := marshal.MarshalItem(item)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: av}})
	}
	return b.batchWrite(ctx, requests)
}

// DeleteItemBatch deletes keys in chunks of BatchWriteChunkSize.
func (b *Builder) DeleteItemBatch(ctx context.Context, keys []map[string]any) (*BatchWriteResult, error) {
	if err := b.begin(); err != nil {
		return nil, err
	}
	requests := make([]types.WriteRequest, 0, len(keys))
	for i, key := range keys {
		av, err := marshal.MarshalItem(key)
		if err != nil {
			return nil, fmt.Errorf("batch key %d: %w", i, err)
		}
		requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: av}})
	}
	return b.batchWrite(ctx, requests)
}

// GetItemBatch reads keys in chunks of BatchGetChunkSize, applying the builder's projection
// and read consistency.
func (b *Builder) GetItemBatch(ctx context.Context, keys []map[string]any) (*BatchGetResult, error) {
	if err := b.begin(); err != nil {
		return nil, err
	}
	wireKeys := make([]map[string]types.AttributeValue, 0, len(keys))
	for i, key := range keys {
		av, err := marshal.MarshalItem(key)
		if err != nil {
			return nil, fmt.Errorf("batch key %d: %w", i, err)
		}
		wireKeys = append(wireKeys, av)
	}
	return b.batchGet(ctx, wireKeys)
}

// FindMany reads many keys, optionally projecting columns
func (b *Builder) FindMany(ctx context.Context, keys []map[string]any, columns ...string) (*BatchGetResult, error) {
	return b.Select(columns...).GetItemBatch(ctx, keys)
}

func (b *Builder) batchWrite(ctx context.Context, requests []types.WriteRequest) (*BatchWriteResult, error) {
	if b.table == "" {
		return nil, tqerrors.WrapValidation("table", tqerrors.ErrMissingTable)
	}

	spans := numutil.Spans(len(requests), BatchWriteChunkSize)
	outputs := make([]*dynamodb.BatchWriteItemOutput, len(spans))
	table := b.grammar.TableName(b.table)

	err := b.runChunks(ctx, len(spans), func(ctx context.Context, i int) error {
		input := b.grammar.CompileBatchWriteItem(b.table, requests[spans[i].Start:spans[i].End])
		return b.call(ctx, opBatchWriteItem, table, func() error {
			out, err := b.client.BatchWriteItem(ctx, input)
			if err != nil {
				return err
			}
			outputs[i] = out
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return b.processBatchWrite(outputs, table), nil
}

func (b *Builder) batchGet(ctx context.Context, keys []map[string]types.AttributeValue) (*BatchGetResult, error) {
	if b.table == "" {
		return nil, tqerrors.WrapValidation("table", tqerrors.ErrMissingTable)
	}

	spans := numutil.Spans(len(keys), BatchGetChunkSize)
	outputs := make([]*dynamodb.BatchGetItemOutput, len(spans))
	table := b.grammar.TableName(b.table)

	err := b.runChunks(ctx, len(spans), func(ctx context.Context, i int) error {
		input, err := b.grammar.CompileBatchGetItem(b, keys[spans[i].Start:spans[i].End])
		if err != nil {
			return err
		}
		return b.call(ctx, opBatchGetItem, table, func() error {
			out, err := b.client.BatchGetItem(ctx, input)
			if err != nil {
				return err
			}
			outputs[i] = out
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return b.processBatchGet(outputs, table)
}

// runChunks runs fn for every chunk index. With a concurrency below 2 chunks run in order;
// otherwise up to that many run at once. The first error stops the remaining chunks.
func (b *Builder) runChunks(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if b.batchConcurrency < 2 {
		for i := 0; i < n; i++ {
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.batchConcurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

func (b *Builder) processBatchWrite(outputs []*dynamodb.BatchWriteItemOutput, table string) *BatchWriteResult {
	result := &BatchWriteResult{Chunks: len(outputs)}
	for _, out := range outputs {
		if out == nil {
			continue
		}
		result.Metadata = append(result.Metadata, out.ResultMetadata)
		result.UnprocessedItems = append(result.UnprocessedItems, out.UnprocessedItems[table]...)
	}
	if result.HasUnprocessed() {
		b.logger.Warn().
			Str("table", table).
			Str("trace_id", b.traceID).
			Int("unprocessed", len(result.UnprocessedItems)).
			Msg("batch write left items unprocessed")
	}
	return result
}

func (b *Builder) processBatchGet(outputs []*dynamodb.BatchGetItemOutput, table string) (*BatchGetResult, error) {
	result := &BatchGetResult{Chunks: len(outputs)}
	for _, out := range outputs {
		if out == nil {
			continue
		}
		result.Metadata = append(result.Metadata, out.ResultMetadata)
		result.Raw = append(result.Raw, out.Responses[table]...)
		if unprocessed, ok := out.UnprocessedKeys[table]; ok {
			result.UnprocessedKeys = append(result.UnprocessedKeys, unprocessed.Keys...)
		}
	}

	items, err := marshal.UnmarshalItems(result.Raw)
	if err != nil {
		return nil, err
	}
	result.Items = items

	if result.HasUnprocessed() {
		b.logger.Warn().
			Str("table", table).
			Str("trace_id", b.traceID).
			Int("unprocessed", len(result.UnprocessedKeys)).
			Msg("batch get left keys unprocessed")
	}
	return result, nil
}
