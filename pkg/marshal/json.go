package marshal

import (
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ToJSON converts an attribute value to the store's typed JSON form, e.g. {"S": "x"}.
// Binary values are base64 encoded.
func ToJSON(av types.AttributeValue) (any, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return map[string]any{"S": v.Value}, nil
	case *types.AttributeValueMemberN:
		return map[string]any{"N": v.Value}, nil
	case *types.AttributeValueMemberB:
		return map[string]any{"B": base64.StdEncoding.EncodeToString(v.Value)}, nil
	case *types.AttributeValueMemberBOOL:
		return map[string]any{"BOOL": v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return map[string]any{"NULL": true}, nil
	case *types.AttributeValueMemberL:
		list := make([]any, len(v.Value))
		for i, item := range v.Value {
			jsonItem, err := ToJSON(item)
			if err != nil {
				return nil, err
			}
			list[i] = jsonItem
		}
		return map[string]any{"L": list}, nil
	case *types.AttributeValueMemberM:
		m, err := ItemToJSON(v.Value)
		if err != nil {
			return nil, err
		}
		return map[string]any{"M": m}, nil
	case *types.AttributeValueMemberSS:
		return map[string]any{"SS": stringsToAny(v.Value)}, nil
	case *types.AttributeValueMemberNS:
		return map[string]any{"NS": stringsToAny(v.Value)}, nil
	case *types.AttributeValueMemberBS:
		encoded := make([]any, len(v.Value))
		for i, b := range v.Value {
			encoded[i] = base64.StdEncoding.EncodeToString(b)
		}
		return map[string]any{"BS": encoded}, nil
	default:
		return nil, fmt.Errorf("unknown AttributeValue type: %T", av)
	}
}

// ItemToJSON converts every attribute of an item to typed JSON form.
func ItemToJSON(item map[string]types.AttributeValue) (map[string]any, error) {
	out := make(map[string]any, len(item))
	for k, v := range item {
		jsonValue, err := ToJSON(v)
		if err != nil {
			return nil, fmt.Errorf("failed to convert attribute %s: %w", k, err)
		}
		out[k] = jsonValue
	}
	return out, nil
}

// FromJSON converts typed JSON form back to an attribute value.
func FromJSON(v any) (types.AttributeValue, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected map[string]any, got %T", v)
	}
	if len(m) != 1 {
		return nil, fmt.Errorf("invalid attribute value format: %v", m)
	}

	for key, val := range m {
		switch key {
		case "S":
			s, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("s value must be string")
			}
			return &types.AttributeValueMemberS{Value: s}, nil
		case "N":
			s, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("n value must be string")
			}
			return &types.AttributeValueMemberN{Value: s}, nil
		case "B":
			decoded, err := decodeBinary(val)
			if err != nil {
				return nil, err
			}
			return &types.AttributeValueMemberB{Value: decoded}, nil
		case "BOOL":
			b, ok := val.(bool)
			if !ok {
				return nil, fmt.Errorf("bool value must be bool")
			}
			return &types.AttributeValueMemberBOOL{Value: b}, nil
		case "NULL":
			return &types.AttributeValueMemberNULL{Value: true}, nil
		case "L":
			return listFromJSON(val)
		case "M":
			mapVal, ok := val.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("m value must be map[string]any")
			}
			item, err := ItemFromJSON(mapVal)
			if err != nil {
				return nil, err
			}
			return &types.AttributeValueMemberM{Value: item}, nil
		case "SS":
			set, err := stringsFromJSON(key, val)
			if err != nil {
				return nil, err
			}
			return &types.AttributeValueMemberSS{Value: set}, nil
		case "NS":
			set, err := stringsFromJSON(key, val)
			if err != nil {
				return nil, err
			}
			return &types.AttributeValueMemberNS{Value: set}, nil
		case "BS":
			return binarySetFromJSON(val)
		}
	}

	return nil, fmt.Errorf("unknown attribute value format: %v", m)
}

// ItemFromJSON converts a typed JSON item back to attribute values.
func ItemFromJSON(item map[string]any) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		av, err := FromJSON(v)
		if err != nil {
			return nil, fmt.Errorf("failed to convert attribute %s: %w", k, err)
		}
		out[k] = av
	}
	return out, nil
}

func listFromJSON(val any) (types.AttributeValue, error) {
	listVal, ok := val.([]any)
	if !ok {
		return nil, fmt.Errorf("l value must be []any")
	}
	list := make([]types.AttributeValue, len(listVal))
	for i, item := range listVal {
		av, err := FromJSON(item)
		if err != nil {
			return nil, err
		}
		list[i] = av
	}
	return &types.AttributeValueMemberL{Value: list}, nil
}

func stringsFromJSON(kind string, val any) ([]string, error) {
	listVal, ok := val.([]any)
	if !ok {
		return nil, fmt.Errorf("%s value must be []any", kind)
	}
	out := make([]string, len(listVal))
	for i, item := range listVal {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s items must be strings", kind)
		}
		out[i] = s
	}
	return out, nil
}

func binarySetFromJSON(val any) (types.AttributeValue, error) {
	listVal, ok := val.([]any)
	if !ok {
		return nil, fmt.Errorf("bs value must be []any")
	}
	set := make([][]byte, len(listVal))
	for i, item := range listVal {
		decoded, err := decodeBinary(item)
		if err != nil {
			return nil, err
		}
		set[i] = decoded
	}
	return &types.AttributeValueMemberBS{Value: set}, nil
}

func decodeBinary(val any) ([]byte, error) {
	s, ok := val.(string)
	if !ok {
		return nil, fmt.Errorf("binary value must be string")
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode binary: %w", err)
	}
	return decoded, nil
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
