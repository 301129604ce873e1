package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/theory-cloud/tablequery/internal/expr"
	"github.com/theory-cloud/tablequery/internal/numutil"
	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
)

// Operation names a single-item or read operation of the store.
type Operation string

// Operations
const (
	OpGetItem    Operation = "GetItem"
	OpQuery      Operation = "Query"
	OpScan       Operation = "Scan"
	OpPutItem    Operation = "PutItem"
	OpUpdateItem Operation = "UpdateItem"
	OpDeleteItem Operation = "DeleteItem"
)

// Grammar compiles builder state into wire requests.
// TablePrefix is prepended to every table name, e.g. "Staging-".
type Grammar struct {
	TablePrefix string
}

type component func(g Grammar, b *Builder, req *Request) error

var operationComponents = map[Operation][]component{
	OpGetItem: {
		compileKey, compileTableName, compileConsistentRead, compileProjection,
		compileExpressionAttributes, compileRaw,
	},
	OpQuery: {
		compileTableName, compileConsistentRead, compileExclusiveStartKey, compileFilter,
		compileIndexName, compileKeyCondition, compileLimit, compileProjection,
		compileScanIndexForward, compileExpressionAttributes, compileRaw,
	},
	OpScan: {
		compileTableName, compileConsistentRead, compileExclusiveStartKey, compileFilter,
		compileIndexName, compileLimit, compileProjection,
		compileExpressionAttributes, compileRaw,
	},
	OpPutItem: {
		compileTableName, compileItem, compileCondition,
		compileExpressionAttributes, compileReturnValues, compileRaw,
	},
	OpUpdateItem: {
		compileTableName, compileKey, compileCondition, compileUpdates,
		compileExpressionAttributes, compileReturnValues, compileRaw,
	},
	OpDeleteItem: {
		compileTableName, compileKey, compileCondition,
		compileExpressionAttributes, compileReturnValues, compileRaw,
	},
}

var placeholderPattern = regexp.MustCompile(`[#:][0-9]+`)

// TableName applies the table prefix
func (g Grammar) TableName(table string) string {
	return g.TablePrefix + table
}

// Compile builds the request for op from the builder's state.
func (g Grammar) Compile(b *Builder, op Operation) (*Request, error) {
	components, ok := operationComponents[op]
	if !ok {
		return nil, fmt.Errorf("%w: operation %q", tqerrors.ErrUnsupportedOperation, string(op))
	}

	req := &Request{}
	for _, c := range components {
		if err := c(g, b, req); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// CompileBatchWriteItem groups write requests under the prefixed table name.
func (g Grammar) CompileBatchWriteItem(table string, requests []types.WriteRequest) *dynamodb.BatchWriteItemInput {
	return &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			g.TableName(table): requests,
		},
	}
}

// CompileBatchGetItem groups keys under the prefixed table name, carrying the builder's
// projection and read consistency.
func (g Grammar) CompileBatchGetItem(b *Builder, keys []map[string]types.AttributeValue) (*dynamodb.BatchGetItemInput, error) {
	if b.table == "" {
		return nil, tqerrors.WrapValidation("table", tqerrors.ErrMissingTable)
	}

	ka := types.KeysAndAttributes{Keys: keys}
	if b.consistentRead {
		ka.ConsistentRead = aws.Bool(true)
	}
	if len(b.projection) > 0 {
		projection := strings.Join(b.projection, ", ")
		ka.ProjectionExpression = aws.String(projection)
		ka.ExpressionAttributeNames = referencedNames(b.registry, projection)
	}

	return &dynamodb.BatchGetItemInput{
		RequestItems: map[string]types.KeysAndAttributes{
			g.TableName(b.table): ka,
		},
	}, nil
}

func compileTableName(g Grammar, b *Builder, req *Request) error {
	if b.table == "" {
		return tqerrors.WrapValidation("table", tqerrors.ErrMissingTable)
	}
	req.TableName = g.TableName(b.table)
	return nil
}

func compileKey(_ Grammar, b *Builder, req *Request) error {
	if err := b.checkKeyExists(); err != nil {
		return err
	}
	key, err := b.marshalKey()
	if err != nil {
		return err
	}
	req.Key = key
	return nil
}

func compileItem(_ Grammar, b *Builder, req *Request) error {
	if len(b.item) == 0 {
		return tqerrors.NewValidationError("item", "item must not be empty")
	}
	req.Item = b.item
	return nil
}

func compileConsistentRead(_ Grammar, b *Builder, req *Request) error {
	req.ConsistentRead = b.consistentRead
	return nil
}

func compileProjection(_ Grammar, b *Builder, req *Request) error {
	req.ProjectionExpression = strings.Join(b.projection, ", ")
	return nil
}

func compileExclusiveStartKey(_ Grammar, b *Builder, req *Request) error {
	if len(b.exclusiveStartKey) > 0 {
		req.ExclusiveStartKey = b.exclusiveStartKey
	}
	return nil
}

func compileIndexName(_ Grammar, b *Builder, req *Request) error {
	req.IndexName = b.index
	return nil
}

func compileLimit(_ Grammar, b *Builder, req *Request) error {
	if limit := numutil.PositiveInt32(b.limit); limit != nil {
		req.Limit = *limit
	}
	return nil
}

func compileScanIndexForward(_ Grammar, b *Builder, req *Request) error {
	if b.scanBackward {
		req.ScanIndexForward = aws.Bool(false)
	}
	return nil
}

func compileReturnValues(_ Grammar, b *Builder, req *Request) error {
	if b.returnValues != "" {
		req.ReturnValues = b.returnValues
	}
	return nil
}

func compileCondition(_ Grammar, b *Builder, req *Request) error {
	req.ConditionExpression = expr.Join(b.conditions)
	return nil
}

func compileFilter(_ Grammar, b *Builder, req *Request) error {
	req.FilterExpression = expr.Join(b.filters)
	return nil
}

func compileKeyCondition(_ Grammar, b *Builder, req *Request) error {
	req.KeyConditionExpression = expr.Join(b.keyConditions)
	return nil
}

// compileUpdates emits each non-empty bucket in set, remove, add, delete order.
func compileUpdates(_ Grammar, b *Builder, req *Request) error {
	var sb strings.Builder
	for i, fragments := range b.updates {
		if len(fragments) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%s %s ", bucketKeywords[i], strings.Join(fragments, ", "))
	}
	req.UpdateExpression = strings.TrimSpace(sb.String())
	return nil
}

// compileExpressionAttributes attaches the placeholders referenced by the compiled expressions.
// Registered placeholders that no expression of this request uses are left out, since the store
// rejects unused expression attributes.
func compileExpressionAttributes(_ Grammar, b *Builder, req *Request) error {
	used := strings.Join([]string{
		req.ConditionExpression,
		req.UpdateExpression,
		req.KeyConditionExpression,
		req.FilterExpression,
		req.ProjectionExpression,
	}, " ")

	req.ExpressionAttributeNames = referencedNames(b.registry, used)

	if !b.registry.HasValues() {
		return nil
	}
	values, err := b.registry.MarshalValues()
	if err != nil {
		return err
	}
	refs := referencedPlaceholders(used)
	for placeholder := range values {
		if _, ok := refs[placeholder]; !ok {
			delete(values, placeholder)
		}
	}
	if len(values) > 0 {
		req.ExpressionAttributeValues = values
	}
	return nil
}

func compileRaw(_ Grammar, b *Builder, req *Request) error {
	for _, fn := range b.raw {
		fn(req)
	}
	return nil
}

func referencedNames(r *expr.Registry, expression string) map[string]string {
	if !r.HasNames() {
		return nil
	}
	refs := referencedPlaceholders(expression)
	names := r.Names()
	for placeholder := range names {
		if _, ok := refs[placeholder]; !ok {
			delete(names, placeholder)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return names
}

func referencedPlaceholders(expression string) map[string]struct{} {
	refs := make(map[string]struct{})
	for _, placeholder := range placeholderPattern.FindAllString(expression, -1) {
		refs[placeholder] = struct{}{}
	}
	return refs
}
