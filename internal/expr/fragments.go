package expr

import (
	"fmt"
	"strings"

	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
)

// Function names a condition function of the expression language.
type Function string

// Supported condition functions
const (
	AttributeExists    Function = "attribute_exists"
	AttributeNotExists Function = "attribute_not_exists"
	AttributeType      Function = "attribute_type"
	BeginsWithFunc     Function = "begins_with"
	Contains           Function = "contains"
	Size               Function = "size"
)

// functionArity lists the value arguments each function takes.
var functionArity = map[Function]int{
	AttributeExists:    0,
	AttributeNotExists: 0,
	AttributeType:      1,
	BeginsWithFunc:     1,
	Contains:           1,
}

var operatorAliases = map[string]string{
	"=":  "=",
	"EQ": "=",
	"<>": "<>",
	"!=": "<>",
	"NE": "<>",
	"<":  "<",
	"LT": "<",
	"<=": "<=",
	"LE": "<=",
	">":  ">",
	"GT": ">",
	">=": ">=",
	"GE": ">=",
}

// NormalizeOperator maps a comparison operator or its alias to the canonical form.
func NormalizeOperator(operator string) (string, error) {
	if op, ok := operatorAliases[strings.ToUpper(strings.TrimSpace(operator))]; ok {
		return op, nil
	}
	return "", tqerrors.WrapValidation("operator", fmt.Errorf("%w: %q", tqerrors.ErrInvalidOperator, operator))
}

// Compare renders "name op value".
func Compare(r *Registry, column, operator string, value any) (string, error) {
	op, err := NormalizeOperator(operator)
	if err != nil {
		return "", err
	}
	name := r.AddName(column)
	return fmt.Sprintf("%s %s %s", name, op, r.AddValue(value)), nil
}

// Between renders "name BETWEEN from AND to".
func Between(r *Registry, column string, from, to any) string {
	name := r.AddName(column)
	lower := r.AddValue(from)
	upper := r.AddValue(to)
	return fmt.Sprintf("%s BETWEEN %s AND %s", name, lower, upper)
}

// BeginsWith renders "begins_with(name, prefix)".
func BeginsWith(r *Registry, column string, prefix any) string {
	name := r.AddName(column)
	return fmt.Sprintf("begins_with(%s, %s)", name, r.AddValue(prefix))
}

// SizeOf renders "size(name) op value".
func SizeOf(r *Registry, column, operator string, value any) (string, error) {
	op, err := NormalizeOperator(operator)
	if err != nil {
		return "", err
	}
	name := r.AddName(column)
	return fmt.Sprintf("size(%s) %s %s", name, op, r.AddValue(value)), nil
}

// Call renders a condition function such as "attribute_type(name, value)".
// Size is not callable here because it is compared rather than called; use SizeOf.
func Call(r *Registry, fn Function, column string, args ...any) (string, error) {
	arity, ok := functionArity[fn]
	if !ok {
		return "", fmt.Errorf("%w: condition function %q", tqerrors.ErrUnsupportedOperation, string(fn))
	}
	if len(args) != arity {
		return "", tqerrors.NewValidationError(string(fn), fmt.Sprintf("expects %d argument(s), got %d", arity, len(args)))
	}

	parts := []string{r.AddName(column)}
	for _, arg := range args {
		parts = append(parts, r.AddValue(arg))
	}
	return fmt.Sprintf("%s(%s)", fn, strings.Join(parts, ", ")), nil
}

// Fragment is one expression with the joiner placed before it.
type Fragment struct {
	Expr   string
	Joiner string
}

// Join concatenates fragments left to right. The first fragment contributes no joiner.
func Join(fragments []Fragment) string {
	if len(fragments) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(fragments[0].Expr)
	for _, f := range fragments[1:] {
		b.WriteString(" ")
		b.WriteString(f.Joiner)
		b.WriteString(" ")
		b.WriteString(f.Expr)
	}
	return b.String()
}
