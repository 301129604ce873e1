// Package testing provides a mock-backed connection with fluent expectation helpers.
package testing

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/mock"

	"github.com/theory-cloud/tablequery/internal/tablequery"
	"github.com/theory-cloud/tablequery/pkg/marshal"
	"github.com/theory-cloud/tablequery/pkg/mocks"
)

// TestConnection pairs a connection with the mock client behind it
type TestConnection struct {
	Client *mocks.MockDynamoDBClient
	Conn   *tablequery.Connection
}

// NewTestConnection creates a connection backed by a fresh mock client
func NewTestConnection(opts ...tablequery.Option) *TestConnection {
	client := new(mocks.MockDynamoDBClient)
	return &TestConnection{
		Client: client,
		Conn:   tablequery.NewWithClient(client, opts...),
	}
}

// ExpectGetItem returns item from the next GetItem call
func (t *TestConnection) ExpectGetItem(item map[string]any) *TestConnection {
	t.Client.On("GetItem", mock.Anything, mock.Anything, mock.Anything).
		Return(mocks.NewGetItemOutput(mustMarshal(item)), nil).Once()
	return t
}

// ExpectNotFound makes the next GetItem call find nothing
func (t *TestConnection) ExpectNotFound() *TestConnection {
	t.Client.On("GetItem", mock.Anything, mock.Anything, mock.Anything).
		Return(mocks.NewGetItemOutput(nil), nil).Once()
	return t
}

// ExpectPut sets up expectations for a successful PutItem
func (t *TestConnection) ExpectPut() *TestConnection {
	t.Client.On("PutItem", mock.Anything, mock.Anything, mock.Anything).
		Return(&dynamodb.PutItemOutput{}, nil).Once()
	return t
}

// ExpectPutError sets up expectations for a failed PutItem
func (t *TestConnection) ExpectPutError(err error) *TestConnection {
	t.Client.On("PutItem", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, err).Once()
	return t
}

// ExpectConditionFailed fails the next call of method (PutItem, UpdateItem or DeleteItem)
// with a conditional check failure.
func (t *TestConnection) ExpectConditionFailed(method string) *TestConnection {
	t.Client.On(method, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}).Once()
	return t
}

// ExpectUpdate returns attributes from the next UpdateItem call
func (t *TestConnection) ExpectUpdate(attributes map[string]any) *TestConnection {
	t.Client.On("UpdateItem", mock.Anything, mock.Anything, mock.Anything).
		Return(&dynamodb.UpdateItemOutput{Attributes: mustMarshal(attributes)}, nil).Once()
	return t
}

// ExpectDelete sets up expectations for a successful DeleteItem
func (t *TestConnection) ExpectDelete() *TestConnection {
	t.Client.On("DeleteItem", mock.Anything, mock.Anything, mock.Anything).
		Return(&dynamodb.DeleteItemOutput{}, nil).Once()
	return t
}

// ExpectQuery returns one Query page. A nil lastKey marks the final page.
func (t *TestConnection) ExpectQuery(items []map[string]any, lastKey map[string]any) *TestConnection {
	t.Client.On("Query", mock.Anything, mock.Anything, mock.Anything).
		Return(mocks.NewQueryOutput(mustMarshalAll(items), mustMarshal(lastKey)), nil).Once()
	return t
}

// ExpectScan returns one Scan page. A nil lastKey marks the final page.
func (t *TestConnection) ExpectScan(items []map[string]any, lastKey map[string]any) *TestConnection {
	t.Client.On("Scan", mock.Anything, mock.Anything, mock.Anything).
		Return(mocks.NewScanOutput(mustMarshalAll(items), mustMarshal(lastKey)), nil).Once()
	return t
}

// ExpectBatchWrite accepts every BatchWriteItem call with no unprocessed items
func (t *TestConnection) ExpectBatchWrite() *TestConnection {
	t.Client.On("BatchWriteItem", mock.Anything, mock.Anything, mock.Anything).
		Return(&dynamodb.BatchWriteItemOutput{}, nil)
	return t
}

// ExpectBatchGet returns items for table, which must include any table prefix
func (t *TestConnection) ExpectBatchGet(table string, items []map[string]any) *TestConnection {
	t.Client.On("BatchGetItem", mock.Anything, mock.Anything, mock.Anything).
		Return(&dynamodb.BatchGetItemOutput{
			Responses: map[string][]map[string]types.AttributeValue{table: mustMarshalAll(items)},
		}, nil).Once()
	return t
}

// AssertExpectations asserts all expectations were met
func (t *TestConnection) AssertExpectations(tt mock.TestingT) {
	t.Client.AssertExpectations(tt)
}

// Reset clears all expectations and recorded calls
func (t *TestConnection) Reset() {
	t.Client.ExpectedCalls = nil
	t.Client.Calls = nil
}

func mustMarshal(item map[string]any) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	av, err := marshal.MarshalItem(item)
	if err != nil {
		panic(fmt.Sprintf("tablequery/testing: cannot marshal fixture: %v", err))
	}
	return av
}

func mustMarshalAll(items []map[string]any) []map[string]types.AttributeValue {
	out := make([]map[string]types.AttributeValue, 0, len(items))
	for _, item := range items {
		out = append(out, mustMarshal(item))
	}
	return out
}
