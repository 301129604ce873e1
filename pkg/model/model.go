// Package model maps Go structs onto a table through the query builder
package model

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
	"github.com/theory-cloud/tablequery/pkg/marshal"
	"github.com/theory-cloud/tablequery/pkg/query"
)

// Connection hands out builders bound to a table
type Connection interface {
	Table(table string) *query.Builder
}

// Scope configures a builder before a read, e.g. adding key conditions or filters
type Scope func(b *query.Builder)

// Model reads and writes T items in one table.
type Model[T any] struct {
	conn Connection
	def  Definition
}

// New creates a model for an explicit definition
func New[T any](conn Connection, def Definition) (*Model[T], error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &Model[T]{conn: conn, def: def}, nil
}

// FromTags creates a model whose definition comes from T's struct tags
func FromTags[T any](conn Connection) (*Model[T], error) {
	def, err := DefinitionFor[T]()
	if err != nil {
		return nil, err
	}
	return New[T](conn, def)
}

// Definition returns the model's table and key names
func (m *Model[T]) Definition() Definition {
	return m.def
}

// Builder returns a fresh builder on the model's table
func (m *Model[T]) Builder() *query.Builder {
	return m.conn.Table(m.def.Table)
}

// Key builds the primary key. A sort key value is required when the table defines one
// and rejected when it does not.
func (m *Model[T]) Key(pk any, sk ...any) (map[string]any, error) {
	if pk == nil {
		return nil, tqerrors.NewValidationError(m.def.PartitionKey, "partition key value is required")
	}
	if len(sk) > 1 {
		return nil, tqerrors.NewValidationError("key", "at most one sort key value")
	}

	key := map[string]any{m.def.PartitionKey: pk}
	switch {
	case m.def.HasSortKey() && (len(sk) == 0 || sk[0] == nil):
		return nil, tqerrors.NewValidationError(m.def.SortKey, "sort key value is required")
	case m.def.HasSortKey():
		key[m.def.SortKey] = sk[0]
	case len(sk) > 0:
		return nil, tqerrors.NewValidationError("key", fmt.Sprintf("table %s has no sort key", m.def.Table))
	}
	return key, nil
}

// KeyOf extracts the primary key attributes of item
func (m *Model[T]) KeyOf(item *T) (map[string]any, error) {
	if item == nil {
		return nil, tqerrors.NewValidationError("item", "item is nil")
	}
	av, err := marshal.MarshalItem(item)
	if err != nil {
		return nil, err
	}

	pk, ok := av[m.def.PartitionKey]
	if !ok || isNull(pk) {
		return nil, tqerrors.WrapValidation(m.def.PartitionKey, tqerrors.ErrMissingKey)
	}
	key := map[string]any{m.def.PartitionKey: pk}
	if m.def.HasSortKey() {
		sk, ok := av[m.def.SortKey]
		if !ok || isNull(sk) {
			return nil, tqerrors.WrapValidation(m.def.SortKey, tqerrors.ErrMissingKey)
		}
		key[m.def.SortKey] = sk
	}
	return key, nil
}

// Find reads one item by key. It returns nil without error when the item does not exist.
func (m *Model[T]) Find(ctx context.Context, pk any, sk ...any) (*T, error) {
	key, err := m.Key(pk, sk...)
	if err != nil {
		return nil, err
	}
	result, err := m.keyed(key).GetItem(ctx)
	if err != nil {
		return nil, err
	}
	if !result.Found {
		return nil, nil
	}
	return hydrate[T]("Find", m.def.Table, result.Raw)
}

// FindOrFail is Find that returns ErrItemNotFound for a missing item
func (m *Model[T]) FindOrFail(ctx context.Context, pk any, sk ...any) (*T, error) {
	item, err := m.Find(ctx, pk, sk...)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, tqerrors.NewErrorWithContext("FindOrFail", m.def.Table, tqerrors.ErrItemNotFound, map[string]any{
			"partition_key": pk,
		})
	}
	return item, nil
}

// First returns the first item matched by scope with the builder's fetch mode, or nil.
func (m *Model[T]) First(ctx context.Context, scope Scope) (*T, error) {
	items, err := m.scoped(scope).Limit(1).Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(items.Raw) == 0 {
		return nil, nil
	}
	return hydrate[T]("First", m.def.Table, items.Raw[0])
}

// Query reads one page with the Query operation and hydrates it.
// The returned collection carries the continuation key and metadata.
func (m *Model[T]) Query(ctx context.Context, scope Scope, columns ...string) ([]T, *query.ItemCollection, error) {
	items, err := m.scoped(scope).FetchMode(query.FetchQuery).Get(ctx, columns...)
	if err != nil {
		return nil, nil, err
	}
	out, err := hydrateAll[T]("Query", m.def.Table, items.Raw)
	return out, items, err
}

// Scan reads one page with the Scan operation and hydrates it
func (m *Model[T]) Scan(ctx context.Context, scope Scope, columns ...string) ([]T, *query.ItemCollection, error) {
	items, err := m.scoped(scope).FetchMode(query.FetchScan).Get(ctx, columns...)
	if err != nil {
		return nil, nil, err
	}
	out, err := hydrateAll[T]("Scan", m.def.Table, items.Raw)
	return out, items, err
}

// Insert writes item only when no item with its key exists
func (m *Model[T]) Insert(ctx context.Context, item *T) error {
	key, err := m.KeyOf(item)
	if err != nil {
		return err
	}
	_, err = m.keyed(key).Insert(ctx, item)
	return err
}

// InsertOrReplace writes item unconditionally
func (m *Model[T]) InsertOrReplace(ctx context.Context, item *T) error {
	key, err := m.KeyOf(item)
	if err != nil {
		return err
	}
	_, err = m.keyed(key).InsertOrReplace(ctx, item)
	return err
}

// Update applies assignments to item's stored copy and returns the item as stored afterwards.
// The item must already exist.
func (m *Model[T]) Update(ctx context.Context, item *T, assignments ...query.Assignment) (*T, error) {
	key, err := m.KeyOf(item)
	if err != nil {
		return nil, err
	}
	result, err := m.keyed(key).
		ConditionAttributeExists(m.def.PartitionKey).
		ReturnValues(query.ReturnAllNew).
		Update(ctx, assignments...)
	if err != nil {
		return nil, err
	}
	return hydrate[T]("Update", m.def.Table, result.Raw)
}

// Delete removes item by its key
func (m *Model[T]) Delete(ctx context.Context, item *T) error {
	key, err := m.KeyOf(item)
	if err != nil {
		return err
	}
	_, err = m.keyed(key).Delete(ctx, nil)
	return err
}

// Destroy removes the item with the given key
func (m *Model[T]) Destroy(ctx context.Context, pk any, sk ...any) error {
	key, err := m.Key(pk, sk...)
	if err != nil {
		return err
	}
	_, err = m.keyed(key).Delete(ctx, nil)
	return err
}

// keyed sets the key partition key first so insert conditions follow key order.
func (m *Model[T]) keyed(key map[string]any) *query.Builder {
	b := m.Builder().KeyAttribute(m.def.PartitionKey, key[m.def.PartitionKey])
	if m.def.HasSortKey() {
		b.KeyAttribute(m.def.SortKey, key[m.def.SortKey])
	}
	return b
}

func (m *Model[T]) scoped(scope Scope) *query.Builder {
	b := m.Builder()
	if scope != nil {
		scope(b)
	}
	return b
}

func hydrate[T any](op, table string, item map[string]types.AttributeValue) (*T, error) {
	var out T
	if err := attributevalue.UnmarshalMap(item, &out); err != nil {
		return nil, tqerrors.NewError(op, table, fmt.Errorf("failed to hydrate %T: %w", out, err))
	}
	return &out, nil
}

func hydrateAll[T any](op, table string, items []map[string]types.AttributeValue) ([]T, error) {
	out := make([]T, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &out); err != nil {
		return nil, tqerrors.NewError(op, table, fmt.Errorf("failed to hydrate items: %w", err))
	}
	return out, nil
}

func isNull(av types.AttributeValue) bool {
	_, ok := av.(*types.AttributeValueMemberNULL)
	return ok
}
