package query

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
	"github.com/theory-cloud/tablequery/pkg/marshal"
)

// UpdateAction selects the update expression clause an assignment lands in.
type UpdateAction int

// Update actions
const (
	ActionSet UpdateAction = iota
	ActionRemove
	ActionAdd
	ActionDelete
)

const (
	addPrefix    = "add:"
	deletePrefix = "delete:"
)

// Assignment is one change applied by Update.
type Assignment struct {
	Value  any
	Column string
	Action UpdateAction
	dsl    bool
}

// Attr builds an assignment from the column micro-DSL:
// a nil value removes the column, "add:col" adds to a number or set,
// "delete:col" deletes elements from a set, anything else is set.
// Any other "prefix:col" form is rejected when the update runs.
func Attr(column string, value any) Assignment {
	if value == nil {
		return Assignment{Column: column, Action: ActionRemove}
	}
	switch {
	case strings.HasPrefix(column, addPrefix):
		return Assignment{Column: strings.TrimPrefix(column, addPrefix), Value: value, Action: ActionAdd}
	case strings.HasPrefix(column, deletePrefix):
		return Assignment{Column: strings.TrimPrefix(column, deletePrefix), Value: value, Action: ActionDelete}
	default:
		return Assignment{Column: column, Value: value, Action: ActionSet, dsl: true}
	}
}

// Set assigns value to column
func Set(column string, value any) Assignment {
	return Assignment{Column: column, Value: value, Action: ActionSet}
}

// Remove deletes column from the item
func Remove(column string) Assignment {
	return Assignment{Column: column, Action: ActionRemove}
}

// Add adds value to a numeric column or unions it into a set
func Add(column string, value any) Assignment {
	return Assignment{Column: column, Value: value, Action: ActionAdd}
}

// Delete removes the elements of value from a set column
func Delete(column string, value any) Assignment {
	return Assignment{Column: column, Value: value, Action: ActionDelete}
}

// Update applies the assignments to the keyed item.
func (b *Builder) Update(ctx context.Context, assignments ...Assignment) (*Result, error) {
	if err := b.begin(); err != nil {
		return nil, err
	}
	if err := b.checkKeyExists(); err != nil {
		return nil, err
	}
	if err := b.applyAssignments(assignments); err != nil {
		return nil, err
	}
	return b.updateItem(ctx)
}

// UpdateMap applies the column micro-DSL to every entry of values, in column name order.
func (b *Builder) UpdateMap(ctx context.Context, values map[string]any) (*Result, error) {
	return b.Update(ctx, assignmentsFromMap(values)...)
}

// Increment adds amount to column. An "add:col" column emits an ADD action instead of
// "set col = col + amount".
func (b *Builder) Increment(ctx context.Context, column string, amount any, extra ...Assignment) (*Result, error) {
	return b.step(ctx, column, amount, "+", extra)
}

// Decrement subtracts amount from column.
func (b *Builder) Decrement(ctx context.Context, column string, amount any, extra ...Assignment) (*Result, error) {
	return b.step(ctx, column, amount, "-", extra)
}

func (b *Builder) step(ctx context.Context, column string, amount any, sign string, extra []Assignment) (*Result, error) {
	if err := b.begin(); err != nil {
		return nil, err
	}
	if err := b.checkKeyExists(); err != nil {
		return nil, err
	}

	value, err := numericAmount(amount)
	if err != nil {
		return nil, err
	}

	if sign == "+" && strings.HasPrefix(column, addPrefix) {
		placeholder := b.registry.AddValue(value)
		name := b.registry.AddName(strings.TrimPrefix(column, addPrefix))
		b.updates[bucketAdd] = append(b.updates[bucketAdd], fmt.Sprintf("%s %s", name, placeholder))
	} else {
		name := b.registry.AddName(column)
		placeholder := b.registry.AddValue(value)
		b.updates[bucketSet] = append(b.updates[bucketSet], fmt.Sprintf("%s = %s %s %s", name, name, sign, placeholder))
	}

	if err := b.applyAssignments(extra); err != nil {
		return nil, err
	}
	return b.updateItem(ctx)
}

func (b *Builder) applyAssignments(assignments []Assignment) error {
	for _, a := range assignments {
		if err := b.applyAssignment(a); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) applyAssignment(a Assignment) error {
	if a.Column == "" {
		return tqerrors.NewValidationError("update", "column must not be empty")
	}

	if a.Action == ActionRemove {
		b.updates[bucketRemove] = append(b.updates[bucketRemove], b.registry.AddName(a.Column))
		return nil
	}

	if a.dsl && strings.Contains(a.Column, ":") {
		return fmt.Errorf("%w: update prefix in column %q", tqerrors.ErrUnsupportedOperation, a.Column)
	}
	if _, err := marshal.Marshal(a.Value); err != nil {
		return fmt.Errorf("update %s: %w", a.Column, err)
	}

	placeholder := b.registry.AddValue(a.Value)
	name := b.registry.AddName(a.Column)
	switch a.Action {
	case ActionSet:
		b.updates[bucketSet] = append(b.updates[bucketSet], fmt.Sprintf("%s = %s", name, placeholder))
	case ActionAdd:
		b.updates[bucketAdd] = append(b.updates[bucketAdd], fmt.Sprintf("%s %s", name, placeholder))
	case ActionDelete:
		b.updates[bucketDelete] = append(b.updates[bucketDelete], fmt.Sprintf("%s %s", name, placeholder))
	default:
		return fmt.Errorf("%w: update action %d", tqerrors.ErrUnsupportedOperation, a.Action)
	}
	return nil
}

func assignmentsFromMap(values map[string]any) []Assignment {
	columns := make([]string, 0, len(values))
	for column := range values {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	assignments := make([]Assignment, 0, len(columns))
	for _, column := range columns {
		assignments = append(assignments, Attr(column, values[column]))
	}
	return assignments
}

// numericAmount accepts Go numbers, marshal.Number and numeric strings.
func numericAmount(amount any) (any, error) {
	switch v := amount.(type) {
	case marshal.Number:
		if _, err := strconv.ParseFloat(string(v), 64); err == nil {
			return v, nil
		}
	case string:
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return marshal.Number(strings.TrimSpace(v)), nil
		}
	default:
		switch reflect.ValueOf(amount).Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return amount, nil
		}
	}
	return nil, tqerrors.NewValidationError("amount", fmt.Sprintf("non-numeric value %v", amount))
}
