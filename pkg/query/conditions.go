package query

import (
	"fmt"

	"github.com/theory-cloud/tablequery/internal/expr"
	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
	"github.com/theory-cloud/tablequery/pkg/marshal"
)

type clause int

const (
	clauseCondition clause = iota
	clauseFilter
	clauseKeyCondition
)

const (
	joinAnd = "and"
	joinOr  = "or"
)

// Function re-exports the condition functions accepted by ConditionFunction
type Function = expr.Function

// Condition functions
const (
	AttributeExists    = expr.AttributeExists
	AttributeNotExists = expr.AttributeNotExists
	AttributeType      = expr.AttributeType
	BeginsWith         = expr.BeginsWithFunc
	Contains           = expr.Contains
	Size               = expr.Size
)

// Condition adds a write condition joined with "and".
// Condition(col, v) compares with "="; Condition(col, op, v) uses op.
func (b *Builder) Condition(column string, args ...any) *Builder {
	return b.addComparison(clauseCondition, joinAnd, column, args)
}

// OrCondition adds a write condition joined with "or"
func (b *Builder) OrCondition(column string, args ...any) *Builder {
	return b.addComparison(clauseCondition, joinOr, column, args)
}

// Filter adds a read filter joined with "and".
// Filter(col, v) compares with "="; Filter(col, op, v) uses op.
func (b *Builder) Filter(column string, args ...any) *Builder {
	return b.addComparison(clauseFilter, joinAnd, column, args)
}

// OrFilter adds a read filter joined with "or"
func (b *Builder) OrFilter(column string, args ...any) *Builder {
	return b.addComparison(clauseFilter, joinOr, column, args)
}

// KeyCondition adds a key condition. Key conditions are always joined with "and".
func (b *Builder) KeyCondition(column string, args ...any) *Builder {
	return b.addComparison(clauseKeyCondition, joinAnd, column, args)
}

// ConditionBetween adds "column BETWEEN from AND to" to the write conditions
func (b *Builder) ConditionBetween(column string, from, to any) *Builder {
	return b.addBetween(clauseCondition, joinAnd, column, from, to)
}

// OrConditionBetween is ConditionBetween joined with "or"
func (b *Builder) OrConditionBetween(column string, from, to any) *Builder {
	return b.addBetween(clauseCondition, joinOr, column, from, to)
}

// FilterBetween adds "column BETWEEN from AND to" to the read filters
func (b *Builder) FilterBetween(column string, from, to any) *Builder {
	return b.addBetween(clauseFilter, joinAnd, column, from, to)
}

// OrFilterBetween is FilterBetween joined with "or"
func (b *Builder) OrFilterBetween(column string, from, to any) *Builder {
	return b.addBetween(clauseFilter, joinOr, column, from, to)
}

// KeyConditionBetween adds a BETWEEN key condition on the sort key
func (b *Builder) KeyConditionBetween(column string, from, to any) *Builder {
	return b.addBetween(clauseKeyCondition, joinAnd, column, from, to)
}

// ConditionBeginsWith adds "begins_with(column, prefix)" to the write conditions
func (b *Builder) ConditionBeginsWith(column string, prefix any) *Builder {
	return b.addBeginsWith(clauseCondition, joinAnd, column, prefix)
}

// OrConditionBeginsWith is ConditionBeginsWith joined with "or"
func (b *Builder) OrConditionBeginsWith(column string, prefix any) *Builder {
	return b.addBeginsWith(clauseCondition, joinOr, column, prefix)
}

// FilterBeginsWith adds "begins_with(column, prefix)" to the read filters
func (b *Builder) FilterBeginsWith(column string, prefix any) *Builder {
	return b.addBeginsWith(clauseFilter, joinAnd, column, prefix)
}

// OrFilterBeginsWith is FilterBeginsWith joined with "or"
func (b *Builder) OrFilterBeginsWith(column string, prefix any) *Builder {
	return b.addBeginsWith(clauseFilter, joinOr, column, prefix)
}

// KeyConditionBeginsWith adds a begins_with key condition on the sort key
func (b *Builder) KeyConditionBeginsWith(column string, prefix any) *Builder {
	return b.addBeginsWith(clauseKeyCondition, joinAnd, column, prefix)
}

// ConditionSize adds "size(column) op value" to the write conditions.
// ConditionSize(col, v) compares with "=".
func (b *Builder) ConditionSize(column string, args ...any) *Builder {
	return b.addSize(clauseCondition, joinAnd, column, args)
}

// OrConditionSize is ConditionSize joined with "or"
func (b *Builder) OrConditionSize(column string, args ...any) *Builder {
	return b.addSize(clauseCondition, joinOr, column, args)
}

// ConditionAttributeExists requires column to exist
func (b *Builder) ConditionAttributeExists(column string) *Builder {
	return b.ConditionFunction(AttributeExists, column)
}

// OrConditionAttributeExists is ConditionAttributeExists joined with "or"
func (b *Builder) OrConditionAttributeExists(column string) *Builder {
	return b.OrConditionFunction(AttributeExists, column)
}

// ConditionAttributeNotExists requires column to be absent
func (b *Builder) ConditionAttributeNotExists(column string) *Builder {
	return b.ConditionFunction(AttributeNotExists, column)
}

// OrConditionAttributeNotExists is ConditionAttributeNotExists joined with "or"
func (b *Builder) OrConditionAttributeNotExists(column string) *Builder {
	return b.OrConditionFunction(AttributeNotExists, column)
}

// ConditionAttributeType requires column to hold the given type tag, e.g. "S"
func (b *Builder) ConditionAttributeType(column, attributeType string) *Builder {
	return b.ConditionFunction(AttributeType, column, attributeType)
}

// OrConditionAttributeType is ConditionAttributeType joined with "or"
func (b *Builder) OrConditionAttributeType(column, attributeType string) *Builder {
	return b.OrConditionFunction(AttributeType, column, attributeType)
}

// ConditionContains requires column to contain value
func (b *Builder) ConditionContains(column string, value any) *Builder {
	return b.ConditionFunction(Contains, column, value)
}

// OrConditionContains is ConditionContains joined with "or"
func (b *Builder) OrConditionContains(column string, value any) *Builder {
	return b.OrConditionFunction(Contains, column, value)
}

// ConditionFunction adds a condition function call joined with "and".
// Size is compared rather than called, so it dispatches to ConditionSize and
// expects (operator, value) or (value).
func (b *Builder) ConditionFunction(fn Function, column string, args ...any) *Builder {
	return b.addFunction(joinAnd, fn, column, args)
}

// OrConditionFunction is ConditionFunction joined with "or"
func (b *Builder) OrConditionFunction(fn Function, column string, args ...any) *Builder {
	return b.addFunction(joinOr, fn, column, args)
}

func (b *Builder) addFunction(joiner string, fn Function, column string, args []any) *Builder {
	if fn == Size {
		return b.addSize(clauseCondition, joiner, column, args)
	}
	if !b.configurable() || !b.checkValues(args...) {
		return b
	}
	fragment, err := expr.Call(b.registry, fn, column, args...)
	if err != nil {
		b.recordBuilderError(err)
		return b
	}
	return b.appendFragment(clauseCondition, joiner, fragment)
}

func (b *Builder) addComparison(c clause, joiner, column string, args []any) *Builder {
	if !b.configurable() {
		return b
	}
	operator, value, err := comparisonArgs(column, args)
	if err != nil {
		b.recordBuilderError(err)
		return b
	}
	if !b.checkValues(value) {
		return b
	}
	fragment, err := expr.Compare(b.registry, column, operator, value)
	if err != nil {
		b.recordBuilderError(err)
		return b
	}
	return b.appendFragment(c, joiner, fragment)
}

func (b *Builder) addBetween(c clause, joiner, column string, from, to any) *Builder {
	if !b.configurable() || !b.checkValues(from, to) {
		return b
	}
	return b.appendFragment(c, joiner, expr.Between(b.registry, column, from, to))
}

func (b *Builder) addBeginsWith(c clause, joiner, column string, prefix any) *Builder {
	if !b.configurable() || !b.checkValues(prefix) {
		return b
	}
	return b.appendFragment(c, joiner, expr.BeginsWith(b.registry, column, prefix))
}

func (b *Builder) addSize(c clause, joiner, column string, args []any) *Builder {
	if !b.configurable() {
		return b
	}
	operator, value, err := comparisonArgs(column, args)
	if err != nil {
		b.recordBuilderError(err)
		return b
	}
	if !b.checkValues(value) {
		return b
	}
	fragment, err := expr.SizeOf(b.registry, column, operator, value)
	if err != nil {
		b.recordBuilderError(err)
		return b
	}
	return b.appendFragment(c, joiner, fragment)
}

func (b *Builder) appendFragment(c clause, joiner, fragment string) *Builder {
	f := expr.Fragment{Expr: fragment, Joiner: joiner}
	switch c {
	case clauseCondition:
		b.conditions = append(b.conditions, f)
	case clauseFilter:
		b.filters = append(b.filters, f)
	case clauseKeyCondition:
		b.keyConditions = append(b.keyConditions, f)
	}
	return b
}

// checkValues records a TypeError for values the marshaler cannot encode, before any
// placeholder is registered.
func (b *Builder) checkValues(values ...any) bool {
	for _, v := range values {
		if _, err := marshal.Marshal(v); err != nil {
			b.recordBuilderError(err)
			return false
		}
	}
	return true
}

// comparisonArgs resolves the (value) and (operator, value) argument forms.
func comparisonArgs(column string, args []any) (string, any, error) {
	switch len(args) {
	case 1:
		return "=", args[0], nil
	case 2:
		operator, ok := args[0].(string)
		if !ok {
			return "", nil, tqerrors.NewValidationError(column, fmt.Sprintf("operator must be a string, got %T", args[0]))
		}
		return operator, args[1], nil
	default:
		return "", nil, tqerrors.NewValidationError(column, fmt.Sprintf("expects (value) or (operator, value), got %d argument(s)", len(args)))
	}
}
