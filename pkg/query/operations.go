package query

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
	"github.com/theory-cloud/tablequery/pkg/marshal"
)

// Find reads the item with the given key, optionally projecting columns.
func (b *Builder) Find(ctx context.Context, key map[string]any, columns ...string) (*Result, error) {
	return b.Key(key).Select(columns...).GetItem(ctx)
}

// GetItem reads the keyed item. Result.Found is false when the item does not exist.
func (b *Builder) GetItem(ctx context.Context) (*Result, error) {
	if err := b.begin(); err != nil {
		return nil, err
	}
	req, err := b.grammar.Compile(b, OpGetItem)
	if err != nil {
		return nil, err
	}

	var result *Result
	err = b.call(ctx, OpGetItem, req.TableName, func() error {
		out, err := b.client.GetItem(ctx, req.GetItemInput())
		if err != nil {
			return err
		}
		result, err = processItem(out)
		return err
	})
	return result, err
}

// PutItem writes item, merging in the builder key for attributes the item does not set.
// item may be a native map, a wire-form map, or a struct with dynamodbav tags.
func (b *Builder) PutItem(ctx context.Context, item any) (*Result, error) {
	if err := b.begin(); err != nil {
		return nil, err
	}
	return b.putItem(ctx, item)
}

// Insert writes item only if no item with the builder key exists. Each key attribute
// contributes a "<>" condition, joined with "and".
func (b *Builder) Insert(ctx context.Context, item any) (*Result, error) {
	for _, attr := range b.key {
		b.Condition(attr.Name, "<>", attr.Value)
	}
	return b.PutItem(ctx, item)
}

// InsertOrReplace writes item unconditionally
func (b *Builder) InsertOrReplace(ctx context.Context, item any) (*Result, error) {
	return b.PutItem(ctx, item)
}

// Delete removes the keyed item. A non-nil key replaces the builder key.
func (b *Builder) Delete(ctx context.Context, key map[string]any) (*Result, error) {
	if key != nil {
		b.Key(key)
	}
	if err := b.begin(); err != nil {
		return nil, err
	}
	if err := b.checkKeyExists(); err != nil {
		return nil, err
	}
	req, err := b.grammar.Compile(b, OpDeleteItem)
	if err != nil {
		return nil, err
	}

	var result *Result
	err = b.call(ctx, OpDeleteItem, req.TableName, func() error {
		out, err := b.client.DeleteItem(ctx, req.DeleteItemInput())
		if err != nil {
			return err
		}
		result, err = processAffected(out.Attributes, out.ResultMetadata)
		return err
	})
	return result, err
}

// Get reads one page using the builder's fetch mode.
func (b *Builder) Get(ctx context.Context, columns ...string) (*ItemCollection, error) {
	b.Select(columns...)
	if err := b.begin(); err != nil {
		return nil, err
	}
	return b.fetch(ctx)
}

// Query reads one page with the Query operation
func (b *Builder) Query(ctx context.Context) (*ItemCollection, error) {
	return b.FetchMode(FetchQuery).Get(ctx)
}

// Scan reads one page with the Scan operation. Key conditions are not sent.
func (b *Builder) Scan(ctx context.Context) (*ItemCollection, error) {
	return b.FetchMode(FetchScan).Get(ctx)
}

// First reads a single item using the fetch mode. It returns nil when nothing matches.
func (b *Builder) First(ctx context.Context, columns ...string) (map[string]any, error) {
	items, err := b.Limit(1).Get(ctx, columns...)
	if err != nil {
		return nil, err
	}
	return items.First(), nil
}

func (b *Builder) putItem(ctx context.Context, item any) (*Result, error) {
	av, err := marshal.MarshalItem(item)
	if err != nil {
		return nil, err
	}
	if len(av) == 0 {
		return nil, tqerrors.NewValidationError("item", "item must not be empty")
	}

	key, err := b.marshalKey()
	if err != nil {
		return nil, err
	}
	merged := make(map[string]types.AttributeValue, len(av)+len(key))
	for k, v := range key {
		merged[k] = v
	}
	for k, v := range av {
		merged[k] = v
	}
	b.item = merged

	req, err := b.grammar.Compile(b, OpPutItem)
	if err != nil {
		return nil, err
	}

	var result *Result
	err = b.call(ctx, OpPutItem, req.TableName, func() error {
		out, err := b.client.PutItem(ctx, req.PutItemInput())
		if err != nil {
			return err
		}
		result, err = processAffected(out.Attributes, out.ResultMetadata)
		return err
	})
	return result, err
}

func (b *Builder) updateItem(ctx context.Context) (*Result, error) {
	req, err := b.grammar.Compile(b, OpUpdateItem)
	if err != nil {
		return nil, err
	}

	var result *Result
	err = b.call(ctx, OpUpdateItem, req.TableName, func() error {
		out, err := b.client.UpdateItem(ctx, req.UpdateItemInput())
		if err != nil {
			return err
		}
		result, err = processAffected(out.Attributes, out.ResultMetadata)
		return err
	})
	return result, err
}

// fetch reads one page with the current fetch mode. It does not check builder state so
// chunked and paginated reads can call it repeatedly.
func (b *Builder) fetch(ctx context.Context) (*ItemCollection, error) {
	op := OpQuery
	if b.fetchMode == FetchScan {
		op = OpScan
	}
	req, err := b.grammar.Compile(b, op)
	if err != nil {
		return nil, err
	}

	var items *ItemCollection
	err = b.call(ctx, op, req.TableName, func() error {
		if op == OpScan {
			out, err := b.client.Scan(ctx, req.ScanInput())
			if err != nil {
				return err
			}
			items, err = processScanOutput(out)
			return err
		}
		out, err := b.client.Query(ctx, req.QueryInput())
		if err != nil {
			return err
		}
		items, err = processQueryOutput(out)
		return err
	})
	return items, err
}

// call runs one network call, logging it and wrapping client failures as transport errors.
// Errors from processing a successful response are returned unwrapped.
func (b *Builder) call(ctx context.Context, op Operation, table string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	err := fn()
	event := b.logger.Debug()
	if err != nil {
		event = b.logger.Warn().Err(err)
	}
	event.
		Str("op", string(op)).
		Str("table", table).
		Str("trace_id", b.traceID).
		Dur("duration", time.Since(start)).
		Msg("dynamodb call")

	if err != nil && !isProcessingError(err) {
		return tqerrors.NewTransportError(string(op), table, err)
	}
	return err
}

func isProcessingError(err error) bool {
	return tqerrors.IsValidation(err) || errors.Is(err, tqerrors.ErrUnsupportedType)
}
