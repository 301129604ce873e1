package marshal

import (
	"fmt"
	"reflect"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
)

// MarshalItem converts a map or struct into an item.
// Structs honour dynamodbav tags.
func MarshalItem(item any) (map[string]types.AttributeValue, error) {
	if item == nil {
		return nil, nil
	}
	if native, ok := item.(map[string]any); ok {
		return marshalNativeItem(native)
	}
	if wire, ok := item.(map[string]types.AttributeValue); ok {
		return wire, nil
	}

	av, err := Marshal(item)
	if err != nil {
		return nil, err
	}
	m, ok := av.(*types.AttributeValueMemberM)
	if !ok {
		return nil, &tqerrors.TypeError{Type: fmt.Sprintf("%T (item must be a map or struct)", item)}
	}
	return m.Value, nil
}

func marshalNativeItem(item map[string]any) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		av, err := marshalValue(reflect.ValueOf(v), k)
		if err != nil {
			return nil, err
		}
		out[k] = av
	}
	return out, nil
}

// UnmarshalItem converts an item into a native map.
func UnmarshalItem(item map[string]types.AttributeValue) (map[string]any, error) {
	if item == nil {
		return nil, nil
	}
	out := make(map[string]any, len(item))
	for k, v := range item {
		native, err := Unmarshal(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", k, err)
		}
		out[k] = native
	}
	return out, nil
}

// UnmarshalItems converts a list of items into native maps.
func UnmarshalItems(items []map[string]types.AttributeValue) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		native, err := UnmarshalItem(item)
		if err != nil {
			return nil, err
		}
		out = append(out, native)
	}
	return out, nil
}

// UnmarshalItemInto decodes an item into out, which must be a pointer to a struct or map.
func UnmarshalItemInto(item map[string]types.AttributeValue, out any) error {
	if err := attributevalue.UnmarshalMap(item, out); err != nil {
		return fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return nil
}

// UnmarshalItemsInto decodes items into out, which must be a pointer to a slice.
func UnmarshalItemsInto(items []map[string]types.AttributeValue, out any) error {
	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("failed to unmarshal items: %w", err)
	}
	return nil
}
