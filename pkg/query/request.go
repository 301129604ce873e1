package query

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/theory-cloud/tablequery/pkg/marshal"
)

// ReturnValue selects which item attributes a write returns.
type ReturnValue string

// Return value modes
const (
	ReturnNone       ReturnValue = "NONE"
	ReturnAllOld     ReturnValue = "ALL_OLD"
	ReturnUpdatedOld ReturnValue = "UPDATED_OLD"
	ReturnAllNew     ReturnValue = "ALL_NEW"
	ReturnUpdatedNew ReturnValue = "UPDATED_NEW"
)

// Valid reports whether r is one of the store's return value modes.
func (r ReturnValue) Valid() bool {
	switch r {
	case ReturnNone, ReturnAllOld, ReturnUpdatedOld, ReturnAllNew, ReturnUpdatedNew:
		return true
	default:
		return false
	}
}

// FetchMode selects the read operation used by Get, First, Chunk and CursorPaginate.
type FetchMode string

// Fetch modes
const (
	FetchQuery FetchMode = "query"
	FetchScan  FetchMode = "scan"
)

// Request is a compiled wire request. Zero-valued fields are absent from the request.
type Request struct {
	Key                       map[string]types.AttributeValue
	Item                      map[string]types.AttributeValue
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]types.AttributeValue
	ExclusiveStartKey         map[string]types.AttributeValue
	ScanIndexForward          *bool
	TableName                 string
	ConditionExpression       string
	UpdateExpression          string
	KeyConditionExpression    string
	FilterExpression          string
	ProjectionExpression      string
	IndexName                 string
	ReturnValues              ReturnValue
	Limit                     int32
	ConsistentRead            bool
}

// Fields lists the wire fields present in the request in canonical order.
func (r *Request) Fields() []string {
	var fields []string
	add := func(name string, present bool) {
		if present {
			fields = append(fields, name)
		}
	}

	add("TableName", r.TableName != "")
	add("Key", len(r.Key) > 0)
	add("Item", len(r.Item) > 0)
	add("ConditionExpression", r.ConditionExpression != "")
	add("UpdateExpression", r.UpdateExpression != "")
	add("KeyConditionExpression", r.KeyConditionExpression != "")
	add("FilterExpression", r.FilterExpression != "")
	add("ExpressionAttributeNames", len(r.ExpressionAttributeNames) > 0)
	add("ExpressionAttributeValues", len(r.ExpressionAttributeValues) > 0)
	add("ProjectionExpression", r.ProjectionExpression != "")
	add("Limit", r.Limit > 0)
	add("ConsistentRead", r.ConsistentRead)
	add("ScanIndexForward", r.ScanIndexForward != nil)
	add("IndexName", r.IndexName != "")
	add("ExclusiveStartKey", len(r.ExclusiveStartKey) > 0)
	add("ReturnValues", r.ReturnValues != "")
	return fields
}

// Document renders the request as the store's flat JSON document, with typed attribute values
// such as {"S": "x"}. Only present fields appear.
func (r *Request) Document() (map[string]any, error) {
	doc := make(map[string]any)
	items := map[string]map[string]types.AttributeValue{
		"Key":                       r.Key,
		"Item":                      r.Item,
		"ExpressionAttributeValues": r.ExpressionAttributeValues,
		"ExclusiveStartKey":         r.ExclusiveStartKey,
	}

	for _, field := range r.Fields() {
		if item, ok := items[field]; ok {
			jsonItem, err := marshal.ItemToJSON(item)
			if err != nil {
				return nil, err
			}
			doc[field] = jsonItem
			continue
		}

		switch field {
		case "TableName":
			doc[field] = r.TableName
		case "ConditionExpression":
			doc[field] = r.ConditionExpression
		case "UpdateExpression":
			doc[field] = r.UpdateExpression
		case "KeyConditionExpression":
			doc[field] = r.KeyConditionExpression
		case "FilterExpression":
			doc[field] = r.FilterExpression
		case "ExpressionAttributeNames":
			doc[field] = r.ExpressionAttributeNames
		case "ProjectionExpression":
			doc[field] = r.ProjectionExpression
		case "Limit":
			doc[field] = r.Limit
		case "ConsistentRead":
			doc[field] = r.ConsistentRead
		case "ScanIndexForward":
			doc[field] = *r.ScanIndexForward
		case "IndexName":
			doc[field] = r.IndexName
		case "ReturnValues":
			doc[field] = string(r.ReturnValues)
		}
	}
	return doc, nil
}

// GetItemInput converts the request to a GetItem input.
func (r *Request) GetItemInput() *dynamodb.GetItemInput {
	return &dynamodb.GetItemInput{
		TableName:                aws.String(r.TableName),
		Key:                      r.Key,
		ConsistentRead:           optionalBool(r.ConsistentRead),
		ProjectionExpression:     optionalString(r.ProjectionExpression),
		ExpressionAttributeNames: r.ExpressionAttributeNames,
	}
}

// PutItemInput converts the request to a PutItem input.
func (r *Request) PutItemInput() *dynamodb.PutItemInput {
	return &dynamodb.PutItemInput{
		TableName:                 aws.String(r.TableName),
		Item:                      r.Item,
		ConditionExpression:       optionalString(r.ConditionExpression),
		ExpressionAttributeNames:  r.ExpressionAttributeNames,
		ExpressionAttributeValues: r.ExpressionAttributeValues,
		ReturnValues:              types.ReturnValue(r.ReturnValues),
	}
}

// UpdateItemInput converts the request to an UpdateItem input.
func (r *Request) UpdateItemInput() *dynamodb.UpdateItemInput {
	return &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.TableName),
		Key:                       r.Key,
		UpdateExpression:          optionalString(r.UpdateExpression),
		ConditionExpression:       optionalString(r.ConditionExpression),
		ExpressionAttributeNames:  r.ExpressionAttributeNames,
		ExpressionAttributeValues: r.ExpressionAttributeValues,
		ReturnValues:              types.ReturnValue(r.ReturnValues),
	}
}

// DeleteItemInput converts the request to a DeleteItem input.
func (r *Request) DeleteItemInput() *dynamodb.DeleteItemInput {
	return &dynamodb.DeleteItemInput{
		TableName:                 aws.String(r.TableName),
		Key:                       r.Key,
		ConditionExpression:       optionalString(r.ConditionExpression),
		ExpressionAttributeNames:  r.ExpressionAttributeNames,
		ExpressionAttributeValues: r.ExpressionAttributeValues,
		ReturnValues:              types.ReturnValue(r.ReturnValues),
	}
}

// QueryInput converts the request to a Query input.
func (r *Request) QueryInput() *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:                 aws.String(r.TableName),
		IndexName:                 optionalString(r.IndexName),
		KeyConditionExpression:    optionalString(r.KeyConditionExpression),
		FilterExpression:          optionalString(r.FilterExpression),
		ProjectionExpression:      optionalString(r.ProjectionExpression),
		ExpressionAttributeNames:  r.ExpressionAttributeNames,
		ExpressionAttributeValues: r.ExpressionAttributeValues,
		ExclusiveStartKey:         r.ExclusiveStartKey,
		ConsistentRead:            optionalBool(r.ConsistentRead),
		ScanIndexForward:          r.ScanIndexForward,
		Limit:                     optionalInt32(r.Limit),
	}
}

// ScanInput converts the request to a Scan input.
func (r *Request) ScanInput() *dynamodb.ScanInput {
	return &dynamodb.ScanInput{
		TableName:                 aws.String(r.TableName),
		IndexName:                 optionalString(r.IndexName),
		FilterExpression:          optionalString(r.FilterExpression),
		ProjectionExpression:      optionalString(r.ProjectionExpression),
		ExpressionAttributeNames:  r.ExpressionAttributeNames,
		ExpressionAttributeValues: r.ExpressionAttributeValues,
		ExclusiveStartKey:         r.ExclusiveStartKey,
		ConsistentRead:            optionalBool(r.ConsistentRead),
		Limit:                     optionalInt32(r.Limit),
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

func optionalBool(b bool) *bool {
	if !b {
		return nil
	}
	return aws.Bool(b)
}

func optionalInt32(n int32) *int32 {
	if n <= 0 {
		return nil
	}
	return aws.Int32(n)
}
