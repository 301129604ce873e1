package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
	"github.com/theory-cloud/tablequery/pkg/validation"
)

// Tag errors
var (
	ErrMissingPartitionKey = errors.New("model has no partition key")
	ErrDuplicateKey        = errors.New("duplicate key definition")
	ErrInvalidTag          = errors.New("invalid tablequery tag")
)

// Definition names a model's table and primary key attributes
type Definition struct {
	Table        string
	PartitionKey string
	SortKey      string
}

// Validate checks that the table and partition key are named
func (d Definition) Validate() error {
	if d.Table == "" {
		return tqerrors.WrapValidation("table", tqerrors.ErrMissingTable)
	}
	if err := validation.ValidateTableName(d.Table); err != nil {
		return err
	}
	if d.PartitionKey == "" {
		return tqerrors.WrapValidation("partition key", ErrMissingPartitionKey)
	}
	if err := validation.ValidateAttributeName(d.PartitionKey); err != nil {
		return err
	}
	if d.SortKey != "" {
		return validation.ValidateAttributeName(d.SortKey)
	}
	return nil
}

// HasSortKey reports whether the table has a composite primary key
func (d Definition) HasSortKey() bool {
	return d.SortKey != ""
}

var definitions sync.Map // reflect.Type -> Definition

// DefinitionFor derives a definition from T's struct tags and caches it.
//
// Fields tagged `tablequery:"pk"` and `tablequery:"sk"` name the key attributes;
// `attr:name` overrides the attribute name, otherwise the dynamodbav name or the
// field name is used. The table comes from a TableName() string method, or the
// pluralized type name.
func DefinitionFor[T any]() (Definition, error) {
	modelType := reflect.TypeOf((*T)(nil)).Elem()
	if cached, ok := definitions.Load(modelType); ok {
		return cached.(Definition), nil
	}
	if modelType.Kind() != reflect.Struct {
		return Definition{}, fmt.Errorf("%w: %s is not a struct", ErrInvalidTag, modelType)
	}

	def := Definition{Table: resolveTableName(modelType)}
	if err := parseFields(modelType, &def); err != nil {
		return Definition{}, err
	}
	if def.PartitionKey == "" {
		return Definition{}, fmt.Errorf("%s: %w", modelType.Name(), ErrMissingPartitionKey)
	}

	definitions.Store(modelType, def)
	return def, nil
}

func parseFields(modelType reflect.Type, def *Definition) error {
	for i := 0; i < modelType.NumField(); i++ {
		field := modelType.Field(i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if err := parseFields(field.Type, def); err != nil {
				return err
			}
			continue
		}
		if !field.IsExported() {
			continue
		}
		if err := parseField(field, def); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

func parseField(field reflect.StructField, def *Definition) error {
	tag := field.Tag.Get("tablequery")
	if tag == "" || tag == "-" {
		return nil
	}

	name := attributeName(field)
	var isPK, isSK bool
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
		case part == "pk":
			isPK = true
		case part == "sk":
			isSK = true
		case strings.HasPrefix(part, "attr:"):
			name = strings.TrimSpace(strings.TrimPrefix(part, "attr:"))
			if name == "" {
				return fmt.Errorf("%w: empty attr", ErrInvalidTag)
			}
		default:
			return fmt.Errorf("%w: unknown tag '%s'", ErrInvalidTag, part)
		}
	}

	if isPK && isSK {
		return fmt.Errorf("%w: field cannot be both pk and sk", ErrInvalidTag)
	}
	if isPK {
		if def.PartitionKey != "" {
			return fmt.Errorf("partition key: %w", ErrDuplicateKey)
		}
		def.PartitionKey = name
	}
	if isSK {
		if def.SortKey != "" {
			return fmt.Errorf("sort key: %w", ErrDuplicateKey)
		}
		def.SortKey = name
	}
	return nil
}

// attributeName follows the dynamodbav tag the attributevalue codec uses
func attributeName(field reflect.StructField) string {
	if av := field.Tag.Get("dynamodbav"); av != "" {
		if name, _, _ := strings.Cut(av, ","); name != "" && name != "-" {
			return name
		}
	}
	return field.Name
}

func resolveTableName(modelType reflect.Type) string {
	if name := tableNameFromMethod(reflect.New(modelType).Elem()); name != "" {
		return name
	}
	if name := tableNameFromMethod(reflect.New(modelType)); name != "" {
		return name
	}
	return pluralize(modelType.Name())
}

func tableNameFromMethod(receiver reflect.Value) string {
	method := receiver.MethodByName("TableName")
	if !method.IsValid() {
		return ""
	}
	if method.Type().NumIn() != 0 || method.Type().NumOut() != 1 {
		return ""
	}

	results := method.Call(nil)
	if results[0].Kind() != reflect.String {
		return ""
	}
	return results[0].String()
}

func pluralize(name string) string {
	switch {
	case strings.HasSuffix(name, "s"):
		return name + "es"
	case strings.HasSuffix(name, "y"):
		return name[:len(name)-1] + "ies"
	default:
		return name + "s"
	}
}
