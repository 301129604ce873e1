// Package expr assigns expression placeholders and renders expression fragments.
package expr

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/theory-cloud/tablequery/pkg/marshal"
)

const (
	namePrefix  = "#"
	valuePrefix = ":"
)

// Registry maps attribute names and values to placeholders.
// Placeholders are numbered from 1 in first-seen order, separately for names (#1, #2, ...)
// and values (:1, :2, ...). Registering an input again returns its existing placeholder.
// A Registry is owned by a single builder and is not safe for concurrent use.
type Registry struct {
	nameIndex map[string]int
	names     []string
	values    []any
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{nameIndex: make(map[string]int)}
}

// AddName registers an attribute name and returns its placeholder
func (r *Registry) AddName(name string) string {
	if r.nameIndex == nil {
		r.nameIndex = make(map[string]int)
	}
	if idx, ok := r.nameIndex[name]; ok {
		return namePlaceholder(idx)
	}
	r.names = append(r.names, name)
	idx := len(r.names)
	r.nameIndex[name] = idx
	return namePlaceholder(idx)
}

// AddValue registers a native value and returns its placeholder.
// Values are compared by type and deep equality, so true and false, or int 1 and float 1,
// receive distinct placeholders.
func (r *Registry) AddValue(value any) string {
	for i, existing := range r.values {
		if reflect.DeepEqual(existing, value) {
			return valuePlaceholder(i + 1)
		}
	}
	r.values = append(r.values, value)
	return valuePlaceholder(len(r.values))
}

// HasNames reports whether any name was registered
func (r *Registry) HasNames() bool {
	return len(r.names) > 0
}

// HasValues reports whether any value was registered
func (r *Registry) HasValues() bool {
	return len(r.values) > 0
}

// Names returns the placeholder to attribute name mapping
func (r *Registry) Names() map[string]string {
	if len(r.names) == 0 {
		return nil
	}
	out := make(map[string]string, len(r.names))
	for i, name := range r.names {
		out[namePlaceholder(i+1)] = name
	}
	return out
}

// Values returns the placeholder to native value mapping
func (r *Registry) Values() map[string]any {
	if len(r.values) == 0 {
		return nil
	}
	out := make(map[string]any, len(r.values))
	for i, value := range r.values {
		out[valuePlaceholder(i+1)] = value
	}
	return out
}

// MarshalValues returns the value mapping in wire form
func (r *Registry) MarshalValues() (map[string]types.AttributeValue, error) {
	if len(r.values) == 0 {
		return nil, nil
	}
	out := make(map[string]types.AttributeValue, len(r.values))
	for i, value := range r.values {
		placeholder := valuePlaceholder(i + 1)
		av, err := marshal.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("expression value %s: %w", placeholder, err)
		}
		out[placeholder] = av
	}
	return out, nil
}

func namePlaceholder(idx int) string {
	return namePrefix + strconv.Itoa(idx)
}

func valuePlaceholder(idx int) string {
	return valuePrefix + strconv.Itoa(idx)
}
