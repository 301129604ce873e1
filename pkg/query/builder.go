// Package query compiles fluent builder calls into DynamoDB requests and executes them.
package query

import (
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/theory-cloud/tablequery/internal/expr"
	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
	"github.com/theory-cloud/tablequery/pkg/interfaces"
	"github.com/theory-cloud/tablequery/pkg/marshal"
	"github.com/theory-cloud/tablequery/pkg/validation"
)

const maxKeyAttributes = 2

type builderState int

const (
	stateConfiguring builderState = iota
	stateExecuted
)

// update buckets in compile order
const (
	bucketSet = iota
	bucketRemove
	bucketAdd
	bucketDelete
	bucketCount
)

var bucketKeywords = [bucketCount]string{"set", "remove", "add", "delete"}

type keyAttribute struct {
	Value any
	Name  string
}

// Builder accumulates the state of one operation chain.
// Configuration errors are recorded and returned by the next terminal call.
// A Builder is single-use and not safe for concurrent use.
type Builder struct {
	client            interfaces.DynamoDBClient
	builderErr        error
	registry          *expr.Registry
	exclusiveStartKey map[string]types.AttributeValue
	item              map[string]types.AttributeValue
	logger            zerolog.Logger
	grammar           Grammar
	traceID           string
	table             string
	index             string
	returnValues      ReturnValue
	fetchMode         FetchMode
	key               []keyAttribute
	projection        []string
	keyConditions     []expr.Fragment
	filters           []expr.Fragment
	conditions        []expr.Fragment
	raw               []func(*Request)
	updates           [bucketCount][]string
	limit             int
	batchConcurrency  int
	state             builderState
	consistentRead    bool
	scanBackward      bool
}

// Option configures a Builder at construction
type Option func(*Builder)

// WithGrammar sets the grammar used to compile requests
func WithGrammar(g Grammar) Option {
	return func(b *Builder) {
		b.grammar = g
	}
}

// WithLogger sets the logger for network calls
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithBatchConcurrency sets how many batch chunks may run at once
func WithBatchConcurrency(n int) Option {
	return func(b *Builder) {
		b.batchConcurrency = n
	}
}

// New creates a builder that executes against client.
func New(client interfaces.DynamoDBClient, opts ...Option) *Builder {
	b := &Builder{
		client:    client,
		registry:  expr.NewRegistry(),
		logger:    zerolog.Nop(),
		traceID:   uuid.NewString(),
		fetchMode: FetchQuery,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Err returns the first configuration error recorded on the builder.
// Terminal calls return it too; check it directly to catch misuse right after a chain.
func (b *Builder) Err() error {
	return b.builderErr
}

// recordBuilderError memoizes the first builder error encountered
func (b *Builder) recordBuilderError(err error) {
	if err != nil && b.builderErr == nil {
		b.builderErr = err
	}
}

// configurable reports whether configuration calls are still accepted
func (b *Builder) configurable() bool {
	if b.state == stateExecuted {
		b.recordBuilderError(tqerrors.WrapValidation("builder", tqerrors.ErrBuilderExecuted))
		return false
	}
	return true
}

// begin moves the builder into the executed state for a terminal call.
func (b *Builder) begin() error {
	if b.builderErr != nil {
		return b.builderErr
	}
	if b.state == stateExecuted {
		return tqerrors.WrapValidation("builder", tqerrors.ErrBuilderExecuted)
	}
	b.state = stateExecuted
	return nil
}

// From sets the target table
func (b *Builder) From(table string) *Builder {
	if !b.configurable() {
		return b
	}
	if table != "" {
		if err := validation.ValidateTableName(table); err != nil {
			b.recordBuilderError(err)
			return b
		}
	}
	b.table = table
	return b
}

// Table is an alias for From
func (b *Builder) Table(table string) *Builder {
	return b.From(table)
}

// Key sets the primary key from a map of one or two attributes, ordered by name.
func (b *Builder) Key(key map[string]any) *Builder {
	if !b.configurable() {
		return b
	}
	if len(key) == 0 || len(key) > maxKeyAttributes {
		b.recordBuilderError(tqerrors.NewValidationError("key", fmt.Sprintf("expects 1 or 2 attributes, got %d", len(key))))
		return b
	}

	names := make([]string, 0, len(key))
	for name := range key {
		if err := validation.ValidateAttributeName(name); err != nil {
			b.recordBuilderError(err)
			return b
		}
		names = append(names, name)
	}
	sort.Strings(names)

	b.key = b.key[:0]
	for _, name := range names {
		b.key = append(b.key, keyAttribute{Name: name, Value: key[name]})
	}
	return b
}

// KeyAttribute adds one primary key attribute, keeping call order.
// Setting an attribute again replaces its value.
func (b *Builder) KeyAttribute(name string, value any) *Builder {
	if !b.configurable() {
		return b
	}
	if err := validation.ValidateAttributeName(name); err != nil {
		b.recordBuilderError(err)
		return b
	}
	for i := range b.key {
		if b.key[i].Name == name {
			b.key[i].Value = value
			return b
		}
	}
	if len(b.key) == maxKeyAttributes {
		b.recordBuilderError(tqerrors.NewValidationError("key", "a key has at most 2 attributes"))
		return b
	}
	b.key = append(b.key, keyAttribute{Name: name, Value: value})
	return b
}

// Index selects a secondary index
func (b *Builder) Index(name string) *Builder {
	if !b.configurable() {
		return b
	}
	if err := validation.ValidateIndexName(name); err != nil {
		b.recordBuilderError(err)
		return b
	}
	b.index = name
	return b
}

// ConsistentRead toggles strongly consistent reads
func (b *Builder) ConsistentRead(consistent bool) *Builder {
	if b.configurable() {
		b.consistentRead = consistent
	}
	return b
}

// Limit caps the items evaluated per request. n <= 0 removes the limit.
func (b *Builder) Limit(n int) *Builder {
	if b.configurable() {
		b.limit = n
	}
	return b
}

// Select restricts the attributes returned by reads.
func (b *Builder) Select(columns ...string) *Builder {
	if !b.configurable() {
		return b
	}
	for _, column := range columns {
		placeholder := b.registry.AddName(column)
		if !containsString(b.projection, placeholder) {
			b.projection = append(b.projection, placeholder)
		}
	}
	return b
}

// ScanIndexBackward reads the sort key in descending order when backward is true.
func (b *Builder) ScanIndexBackward(backward bool) *Builder {
	if b.configurable() {
		b.scanBackward = backward
	}
	return b
}

// ExclusiveStartKey resumes a read after the given wire-form key
func (b *Builder) ExclusiveStartKey(key map[string]types.AttributeValue) *Builder {
	if b.configurable() {
		b.exclusiveStartKey = key
	}
	return b
}

// AfterKey resumes a read after the given native key
func (b *Builder) AfterKey(key map[string]any) *Builder {
	if !b.configurable() {
		return b
	}
	av, err := marshal.MarshalItem(key)
	if err != nil {
		b.recordBuilderError(err)
		return b
	}
	b.exclusiveStartKey = av
	return b
}

// ReturnValues sets which attributes a write returns
func (b *Builder) ReturnValues(rv ReturnValue) *Builder {
	if !b.configurable() {
		return b
	}
	if !rv.Valid() {
		b.recordBuilderError(tqerrors.NewValidationError("return_values", fmt.Sprintf("unknown mode %q", string(rv))))
		return b
	}
	b.returnValues = rv
	return b
}

// FetchMode selects query or scan for Get, First, Chunk and CursorPaginate
func (b *Builder) FetchMode(mode FetchMode) *Builder {
	if !b.configurable() {
		return b
	}
	if mode != FetchQuery && mode != FetchScan {
		b.recordBuilderError(tqerrors.NewValidationError("fetch_mode", fmt.Sprintf("unknown mode %q", string(mode))))
		return b
	}
	b.fetchMode = mode
	return b
}

// Raw registers a function applied to the compiled request after all other rules.
// Placeholders are already pruned to those the compiled expressions reference, so an
// expression written by fn must carry its own names and values.
func (b *Builder) Raw(fn func(*Request)) *Builder {
	if b.configurable() && fn != nil {
		b.raw = append(b.raw, fn)
	}
	return b
}

// BatchConcurrency sets how many batch chunks may run at once. Values below 2 run sequentially.
func (b *Builder) BatchConcurrency(n int) *Builder {
	if b.configurable() {
		b.batchConcurrency = n
	}
	return b
}

// ToRequest compiles the current state for op without executing it.
func (b *Builder) ToRequest(op Operation) (*Request, error) {
	if b.builderErr != nil {
		return nil, b.builderErr
	}
	return b.grammar.Compile(b, op)
}

func (b *Builder) hasKey() bool {
	return len(b.key) > 0
}

func (b *Builder) checkKeyExists() error {
	if !b.hasKey() {
		return tqerrors.WrapValidation("key", tqerrors.ErrMissingKey)
	}
	return nil
}

func (b *Builder) marshalKey() (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(b.key))
	for _, attr := range b.key {
		av, err := marshal.Marshal(attr.Value)
		if err != nil {
			return nil, fmt.Errorf("key attribute %s: %w", attr.Name, err)
		}
		out[attr.Name] = av
	}
	return out, nil
}

func (b *Builder) keyMap() map[string]any {
	out := make(map[string]any, len(b.key))
	for _, attr := range b.key {
		out[attr.Name] = attr.Value
	}
	return out
}

func containsString(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}
