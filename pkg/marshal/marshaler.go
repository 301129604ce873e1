// Package marshal converts between native Go values and DynamoDB attribute values.
//
// All functions are stateless. Native forms produced by Unmarshal are:
//
//	S    -> string
//	N    -> int64 for integral values, float64 otherwise, Number when neither fits
//	B    -> []byte
//	BOOL -> bool
//	NULL -> nil
//	L    -> []any
//	M    -> map[string]any
//	SS   -> StringSet
//	NS   -> NumberSet
//	BS   -> BinarySet
package marshal

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
)

// Number is a numeric attribute kept in its exact decimal string form.
type Number string

// String returns the decimal form
func (n Number) String() string {
	return string(n)
}

// Int64 parses the number as an int64
func (n Number) Int64() (int64, error) {
	return strconv.ParseInt(string(n), 10, 64)
}

// Float64 parses the number as a float64
func (n Number) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// StringSet marshals to an SS attribute
type StringSet []string

// NumberSet marshals to an NS attribute
type NumberSet []Number

// BinarySet marshals to a BS attribute
type BinarySet [][]byte

var byteType = reflect.TypeOf(byte(0))

// Marshal converts a native value to its attribute value.
func Marshal(value any) (types.AttributeValue, error) {
	return marshalValue(reflect.ValueOf(value), "")
}

func marshalValue(v reflect.Value, path string) (types.AttributeValue, error) {
	if !v.IsValid() {
		return &types.AttributeValueMemberNULL{Value: true}, nil
	}
	if (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) && v.IsNil() {
		return &types.AttributeValueMemberNULL{Value: true}, nil
	}

	if v.CanInterface() {
		if av, ok, err := marshalKnown(v.Interface()); ok {
			return av, err
		}
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return marshalValue(v.Elem(), path)
	case reflect.String:
		return &types.AttributeValueMemberS{Value: v.String()}, nil
	case reflect.Bool:
		return &types.AttributeValueMemberBOOL{Value: v.Bool()}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(v.Int(), 10)}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &types.AttributeValueMemberN{Value: strconv.FormatUint(v.Uint(), 10)}, nil
	case reflect.Float32, reflect.Float64:
		return marshalFloat(v, path)
	case reflect.Slice, reflect.Array:
		return marshalList(v, path)
	case reflect.Map:
		return marshalMap(v, path)
	case reflect.Struct:
		av, err := attributevalue.Marshal(v.Interface())
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", v.Type(), err)
		}
		return av, nil
	default:
		return nil, &tqerrors.TypeError{Type: v.Type().String(), Path: path}
	}
}

// marshalKnown handles the package's own types and values that bypass kind dispatch.
func marshalKnown(value any) (types.AttributeValue, bool, error) {
	switch x := value.(type) {
	case types.AttributeValue:
		return x, true, nil
	case Number:
		if _, err := strconv.ParseFloat(string(x), 64); err != nil {
			return nil, true, tqerrors.NewValidationError("number", fmt.Sprintf("%q is not numeric", string(x)))
		}
		return &types.AttributeValueMemberN{Value: string(x)}, true, nil
	case StringSet:
		return &types.AttributeValueMemberSS{Value: append([]string(nil), x...)}, true, nil
	case NumberSet:
		out := make([]string, len(x))
		for i, n := range x {
			out[i] = string(n)
		}
		return &types.AttributeValueMemberNS{Value: out}, true, nil
	case BinarySet:
		return &types.AttributeValueMemberBS{Value: append([][]byte(nil), x...)}, true, nil
	case time.Time:
		return &types.AttributeValueMemberS{Value: x.Format(time.RFC3339Nano)}, true, nil
	case []byte:
		return &types.AttributeValueMemberB{Value: x}, true, nil
	}
	return nil, false, nil
}

func marshalFloat(v reflect.Value, path string) (types.AttributeValue, error) {
	f := v.Float()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &tqerrors.TypeError{Type: "non-finite " + v.Type().String(), Path: path}
	}
	bits := 64
	if v.Kind() == reflect.Float32 {
		bits = 32
	}
	return &types.AttributeValueMemberN{Value: strconv.FormatFloat(f, 'g', -1, bits)}, nil
}

func marshalList(v reflect.Value, path string) (types.AttributeValue, error) {
	if v.Type().Elem() == byteType {
		out := make([]byte, v.Len())
		reflect.Copy(reflect.ValueOf(out), v)
		return &types.AttributeValueMemberB{Value: out}, nil
	}

	list := make([]types.AttributeValue, v.Len())
	for i := 0; i < v.Len(); i++ {
		item, err := marshalValue(v.Index(i), joinPath(path, strconv.Itoa(i)))
		if err != nil {
			return nil, err
		}
		list[i] = item
	}
	return &types.AttributeValueMemberL{Value: list}, nil
}

func marshalMap(v reflect.Value, path string) (types.AttributeValue, error) {
	if v.Type().Key().Kind() != reflect.String {
		return nil, &tqerrors.TypeError{Type: v.Type().String(), Path: path}
	}

	m := make(map[string]types.AttributeValue, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key := iter.Key().String()
		val, err := marshalValue(iter.Value(), joinPath(path, key))
		if err != nil {
			return nil, err
		}
		m[key] = val
	}
	return &types.AttributeValueMemberM{Value: m}, nil
}

func joinPath(path, elem string) string {
	if path == "" {
		return elem
	}
	return path + "." + elem
}

// Unmarshal converts an attribute value to its native form.
func Unmarshal(av types.AttributeValue) (any, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberN:
		return parseNumber(v.Value), nil
	case *types.AttributeValueMemberB:
		return v.Value, nil
	case *types.AttributeValueMemberBOOL:
		return v.Value, nil
	case *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberL:
		list := make([]any, len(v.Value))
		for i, item := range v.Value {
			native, err := Unmarshal(item)
			if err != nil {
				return nil, err
			}
			list[i] = native
		}
		return list, nil
	case *types.AttributeValueMemberM:
		return UnmarshalItem(v.Value)
	case *types.AttributeValueMemberSS:
		return StringSet(append([]string(nil), v.Value...)), nil
	case *types.AttributeValueMemberNS:
		set := make(NumberSet, len(v.Value))
		for i, n := range v.Value {
			set[i] = Number(n)
		}
		return set, nil
	case *types.AttributeValueMemberBS:
		return BinarySet(append([][]byte(nil), v.Value...)), nil
	default:
		return nil, &tqerrors.TypeError{Type: fmt.Sprintf("%T", av)}
	}
}

// parseNumber keeps integral values exact and falls back to Number when a
// value does not fit a Go numeric type.
func parseNumber(s string) any {
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		return Number(s)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return Number(s)
}
