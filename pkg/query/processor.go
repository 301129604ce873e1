package query

import (
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go/middleware"

	"github.com/theory-cloud/tablequery/pkg/marshal"
)

// ItemCollection is one page of a query or scan.
type ItemCollection struct {
	Metadata         middleware.Metadata
	LastEvaluatedKey map[string]types.AttributeValue
	Items            []map[string]any
	Raw              []map[string]types.AttributeValue
	Count            int32
	ScannedCount     int32
}

// HasNextItems reports whether the store returned a continuation key
func (c *ItemCollection) HasNextItems() bool {
	return len(c.LastEvaluatedKey) > 0
}

// Len returns the number of items in the page
func (c *ItemCollection) Len() int {
	return len(c.Items)
}

// First returns the first item, or nil for an empty page
func (c *ItemCollection) First() map[string]any {
	if len(c.Items) == 0 {
		return nil
	}
	return c.Items[0]
}

// LastKey returns the continuation key in native form
func (c *ItemCollection) LastKey() (map[string]any, error) {
	return marshal.UnmarshalItem(c.LastEvaluatedKey)
}

// Decode unmarshals the raw items into out, a pointer to a slice
func (c *ItemCollection) Decode(out any) error {
	return marshal.UnmarshalItemsInto(c.Raw, out)
}

// RequestID returns the store's request id for the page, if recorded
func (c *ItemCollection) RequestID() string {
	id, _ := awsmiddleware.GetRequestIDMetadata(c.Metadata)
	return id
}

// Result is the outcome of a single-item operation.
// Item is set by reads; Attributes holds what a write returned for its ReturnValues mode.
type Result struct {
	Metadata   middleware.Metadata
	Item       map[string]any
	Attributes map[string]any
	Raw        map[string]types.AttributeValue
	Found      bool
}

// Decode unmarshals the raw item or attributes into out, a pointer to a struct or map
func (r *Result) Decode(out any) error {
	return marshal.UnmarshalItemInto(r.Raw, out)
}

// RequestID returns the store's request id, if recorded
func (r *Result) RequestID() string {
	id, _ := awsmiddleware.GetRequestIDMetadata(r.Metadata)
	return id
}

func processItems(
	items []map[string]types.AttributeValue,
	count, scanned int32,
	lastKey map[string]types.AttributeValue,
	metadata middleware.Metadata,
) (*ItemCollection, error) {
	native, err := marshal.UnmarshalItems(items)
	if err != nil {
		return nil, err
	}
	return &ItemCollection{
		Items:            native,
		Raw:              items,
		Count:            count,
		ScannedCount:     scanned,
		LastEvaluatedKey: lastKey,
		Metadata:         metadata,
	}, nil
}

func processQueryOutput(out *dynamodb.QueryOutput) (*ItemCollection, error) {
	return processItems(out.Items, out.Count, out.ScannedCount, out.LastEvaluatedKey, out.ResultMetadata)
}

func processScanOutput(out *dynamodb.ScanOutput) (*ItemCollection, error) {
	return processItems(out.Items, out.Count, out.ScannedCount, out.LastEvaluatedKey, out.ResultMetadata)
}

func processItem(out *dynamodb.GetItemOutput) (*Result, error) {
	item, err := marshal.UnmarshalItem(out.Item)
	if err != nil {
		return nil, err
	}
	return &Result{
		Item:     item,
		Raw:      out.Item,
		Found:    len(out.Item) > 0,
		Metadata: out.ResultMetadata,
	}, nil
}

func processAffected(attributes map[string]types.AttributeValue, metadata middleware.Metadata) (*Result, error) {
	native, err := marshal.UnmarshalItem(attributes)
	if err != nil {
		return nil, err
	}
	return &Result{
		Attributes: native,
		Raw:        attributes,
		Found:      len(attributes) > 0,
		Metadata:   metadata,
	}, nil
}
