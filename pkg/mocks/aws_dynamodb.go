// Package mocks provides testify mocks for the DynamoDB client used by tablequery
package mocks

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/mock"

	"github.com/theory-cloud/tablequery/pkg/interfaces"
)

// MockDynamoDBClient is a testify mock of interfaces.DynamoDBClient.
//
// Example usage:
//
//	client := new(mocks.MockDynamoDBClient)
//	client.On("GetItem", mock.Anything, mock.Anything, mock.Anything).
//		Return(&dynamodb.GetItemOutput{}, nil)
type MockDynamoDBClient struct {
	mock.Mock
}

var _ interfaces.DynamoDBClient = (*MockDynamoDBClient)(nil)

// GetItem mocks the DynamoDB GetItem operation
func (m *MockDynamoDBClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	output, ok := args.Get(0).(*dynamodb.GetItemOutput)
	if !ok {
		panic("unexpected type: expected *dynamodb.GetItemOutput")
	}
	return output, args.Error(1)
}

// PutItem mocks the DynamoDB PutItem operation
func (m *MockDynamoDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	output, ok := args.Get(0).(*dynamodb.PutItemOutput)
	if !ok {
		panic("unexpected type: expected *dynamodb.PutItemOutput")
	}
	return output, args.Error(1)
}

// UpdateItem mocks the DynamoDB UpdateItem operation
func (m *MockDynamoDBClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	output, ok := args.Get(0).(*dynamodb.UpdateItemOutput)
	if !ok {
		panic("unexpected type: expected *dynamodb.UpdateItemOutput")
	}
	return output, args.Error(1)
}

// DeleteItem mocks the DynamoDB DeleteItem operation
func (m *MockDynamoDBClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	output, ok := args.Get(0).(*dynamodb.DeleteItemOutput)
	if !ok {
		panic("unexpected type: expected *dynamodb.DeleteItemOutput")
	}
	return output, args.Error(1)
}

// Query mocks the DynamoDB Query operation
func (m *MockDynamoDBClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	output, ok := args.Get(0).(*dynamodb.QueryOutput)
	if !ok {
		panic("unexpected type: expected *dynamodb.QueryOutput")
	}
	return output, args.Error(1)
}

// Scan mocks the DynamoDB Scan operation
func (m *MockDynamoDBClient) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	output, ok := args.Get(0).(*dynamodb.ScanOutput)
	if !ok {
		panic("unexpected type: expected *dynamodb.ScanOutput")
	}
	return output, args.Error(1)
}

// BatchGetItem mocks the DynamoDB BatchGetItem operation
func (m *MockDynamoDBClient) BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	output, ok := args.Get(0).(*dynamodb.BatchGetItemOutput)
	if !ok {
		panic("unexpected type: expected *dynamodb.BatchGetItemOutput")
	}
	return output, args.Error(1)
}

// BatchWriteItem mocks the DynamoDB BatchWriteItem operation
func (m *MockDynamoDBClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	output, ok := args.Get(0).(*dynamodb.BatchWriteItemOutput)
	if !ok {
		panic("unexpected type: expected *dynamodb.BatchWriteItemOutput")
	}
	return output, args.Error(1)
}

// Helper functions for creating common mock responses

// NewQueryOutput builds a Query response. A nil lastKey marks the final page.
func NewQueryOutput(items []map[string]types.AttributeValue, lastKey map[string]types.AttributeValue) *dynamodb.QueryOutput {
	count := int32(len(items))
	return &dynamodb.QueryOutput{
		Items:            items,
		Count:            count,
		ScannedCount:     count,
		LastEvaluatedKey: lastKey,
	}
}

// NewScanOutput builds a Scan response. A nil lastKey marks the final page.
func NewScanOutput(items []map[string]types.AttributeValue, lastKey map[string]types.AttributeValue) *dynamodb.ScanOutput {
	count := int32(len(items))
	return &dynamodb.ScanOutput{
		Items:            items,
		Count:            count,
		ScannedCount:     count,
		LastEvaluatedKey: lastKey,
	}
}

// NewGetItemOutput builds a GetItem response. A nil item means not found.
func NewGetItemOutput(item map[string]types.AttributeValue) *dynamodb.GetItemOutput {
	return &dynamodb.GetItemOutput{Item: item}
}

// Type aliases for convenience
type (
	// DynamoDBClient is an alias for MockDynamoDBClient
	DynamoDBClient = MockDynamoDBClient
)
