package query_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
	"github.com/theory-cloud/tablequery/pkg/mocks"
	"github.com/theory-cloud/tablequery/pkg/query"
)

func TestFind(t *testing.T) {
	client := new(mocks.MockDynamoDBClient)
	client.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return *in.TableName == "Users" &&
			*in.ProjectionExpression == "#1, #2" &&
			in.ExpressionAttributeNames["#1"] == "name" &&
			in.Key["PK"].(*types.AttributeValueMemberS).Value == "USER#1"
	}), mock.Anything).Return(mocks.NewGetItemOutput(map[string]types.AttributeValue{
		"PK":   str("USER#1"),
		"name": str("Ada"),
		"age":  num("36"),
	}), nil)

	result, err := query.New(client).From("Users").Find(context.Background(), map[string]any{"PK": "USER#1"}, "name", "age")
	require.NoError(t, err)

	assert.True(t, result.Found)
	assert.Equal(t, map[string]any{"PK": "USER#1", "name": "Ada", "age": int64(36)}, result.Item)

	var decoded struct {
		Name string `dynamodbav:"name"`
		Age  int    `dynamodbav:"age"`
	}
	require.NoError(t, result.Decode(&decoded))
	assert.Equal(t, "Ada", decoded.Name)
	assert.Equal(t, 36, decoded.Age)
	client.AssertExpectations(t)
}

func TestGetItemNotFound(t *testing.T) {
	client := new(mocks.MockDynamoDBClient)
	client.On("GetItem", mock.Anything, mock.Anything, mock.Anything).Return(mocks.NewGetItemOutput(nil), nil)

	result, err := query.New(client).From("Users").Key(map[string]any{"PK": "missing"}).GetItem(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Nil(t, result.Item)
}

func TestPutItemMergesKey(t *testing.T) {
	client := new(mocks.MockDynamoDBClient)
	var captured *dynamodb.PutItemInput
	client.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		captured = in
		return true
	}), mock.Anything).Return(&dynamodb.PutItemOutput{}, nil)

	_, err := query.New(client).
		From("Users").
		Key(map[string]any{"PK": "USER#1", "SK": "PROFILE"}).
		PutItem(context.Background(), map[string]any{"SK": "OVERRIDE", "name": "Ada"})
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, map[string]types.AttributeValue{
		"PK":   str("USER#1"),
		"SK":   str("OVERRIDE"),
		"name": str("Ada"),
	}, captured.Item)
	assert.Nil(t, captured.ConditionExpression)
	assert.Empty(t, captured.ReturnValues)
}

func TestPutItemEmpty(t *testing.T) {
	client := new(mocks.MockDynamoDBClient)

	_, err := query.New(client).From("Users").PutItem(context.Background(), map[string]any{})
	assert.ErrorIs(t, err, tqerrors.ErrValidation)
	client.AssertNotCalled(t, "PutItem", mock.Anything, mock.Anything, mock.Anything)
}

func TestInsertAddsKeyConditions(t *testing.T) {
	client := new(mocks.MockDynamoDBClient)
	client.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return in.ConditionExpression != nil &&
			*in.ConditionExpression == "#1 <> :1 and #2 <> :2" &&
			in.ExpressionAttributeNames["#1"] == "PK" &&
			in.ExpressionAttributeNames["#2"] == "SK" &&
			in.ExpressionAttributeValues[":1"].(*types.AttributeValueMemberS).Value == "USERS" &&
			in.ExpressionAttributeValues[":2"].(*types.AttributeValueMemberS).Value == "Ada"
	}), mock.Anything).Return(&dynamodb.PutItemOutput{}, nil)

	_, err := query.New(client).
		From("Users").
		Key(map[string]any{"PK": "USERS", "SK": "Ada"}).
		Insert(context.Background(), map[string]any{"name": "Ada"})
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestInsertOrReplaceIsUnconditional(t *testing.T) {
	client := new(mocks.MockDynamoDBClient)
	client.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return in.ConditionExpression == nil && len(in.ExpressionAttributeNames) == 0
	}), mock.Anything).Return(&dynamodb.PutItemOutput{}, nil)

	_, err := query.New(client).
		From("Users").
		Key(map[string]any{"PK": "USERS"}).
		InsertOrReplace(context.Background(), map[string]any{"name": "Ada"})
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestConditionFunctions(t *testing.T) {
	tests := []struct {
		name     string
		build    func(b *query.Builder) *query.Builder
		expected string
	}{
		{
			name: "attribute type",
			build: func(b *query.Builder) *query.Builder {
				return b.ConditionAttributeType("PK", "S").OrConditionAttributeType("LK", "S").ConditionAttributeType("SK", "S")
			},
			expected: "attribute_type(#1, :1) or attribute_type(#2, :1) and attribute_type(#3, :1)",
		},
		{
			name: "begins with",
			build: func(b *query.Builder) *query.Builder {
				return b.ConditionBeginsWith("PK", "S").OrConditionBeginsWith("LK", "S").ConditionBeginsWith("SK", "S")
			},
			expected: "begins_with(#1, :1) or begins_with(#2, :1) and begins_with(#3, :1)",
		},
		{
			name: "contains",
			build: func(b *query.Builder) *query.Builder {
				return b.ConditionContains("PK", "S").OrConditionContains("LK", "S").ConditionContains("SK", "S")
			},
			expected: "contains(#1, :1) or contains(#2, :1) and contains(#3, :1)",
		},
		{
			name: "size",
			build: func(b *query.Builder) *query.Builder {
				return b.ConditionSize("PK", 64000).OrConditionSize("LK", ">", 2).ConditionSize("SK", 3)
			},
			expected: "size(#1) = :1 or size(#2) > :2 and size(#3) = :3",
		},
		{
			name: "exists",
			build: func(b *query.Builder) *query.Builder {
				return b.ConditionAttributeNotExists("PK").OrConditionAttributeExists("version")
			},
			expected: "attribute_not_exists(#1) or attribute_exists(#2)",
		},
		{
			name: "dispatch table",
			build: func(b *query.Builder) *query.Builder {
				return b.ConditionFunction(query.Contains, "tags", "go").OrConditionFunction(query.Size, "tags", ">", 1)
			},
			expected: "contains(#1, :1) or size(#1) > :2",
		},
		{
			name: "comparison and between",
			build: func(b *query.Builder) *query.Builder {
				return b.Condition("version", 3).OrCondition("version", "<", 3).ConditionBetween("age", 1, 9).OrConditionBetween("age", 10, 20)
			},
			expected: "#1 = :1 or #1 < :1 and #2 BETWEEN :2 AND :3 or #2 BETWEEN :4 AND :5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(mocks.MockDynamoDBClient)
			client.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
				return in.ConditionExpression != nil && *in.ConditionExpression == tt.expected
			}), mock.Anything).Return(&dynamodb.PutItemOutput{}, nil)

			b := tt.build(query.New(client).From("users"))
			_, err := b.PutItem(context.Background(), map[string]any{"hello": "word"})
			require.NoError(t, err)
			client.AssertExpectations(t)
		})
	}
}

func TestConditionFunctionErrors(t *testing.T) {
	b := query.New(nil).From("users").ConditionFunction(query.Function("matches"), "PK")
	assert.ErrorIs(t, b.Err(), tqerrors.ErrUnsupportedOperation)

	b = query.New(nil).From("users").ConditionFunction(query.AttributeType, "PK")
	assert.ErrorIs(t, b.Err(), tqerrors.ErrValidation)
}

func TestDeleteReturnsAttributes(t *testing.T) {
	client := new(mocks.MockDynamoDBClient)
	client.On("DeleteItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		return *in.TableName == "Staging-Users" &&
			in.ReturnValues == types.ReturnValueAllOld &&
			in.Key["PK"].(*types.AttributeValueMemberS).Value == "USER#1"
	}), mock.Anything).Return(&dynamodb.DeleteItemOutput{
		Attributes: map[string]types.AttributeValue{"PK": str("USER#1"), "name": str("Ada")},
	}, nil)

	result, err := query.New(client, query.WithGrammar(query.Grammar{TablePrefix: "Staging-"})).
		From("Users").
		ReturnValues(query.ReturnAllOld).
		Delete(context.Background(), map[string]any{"PK": "USER#1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"PK": "USER#1", "name": "Ada"}, result.Attributes)
	assert.True(t, result.Found)
}

func TestDeleteRequiresKey(t *testing.T) {
	client := new(mocks.MockDynamoDBClient)

	_, err := query.New(client).From("Users").Delete(context.Background(), nil)
	assert.ErrorIs(t, err, tqerrors.ErrMissingKey)
	assert.True(t, tqerrors.IsValidation(err))
}

func TestQueryAndScan(t *testing.T) {
	page := []map[string]types.AttributeValue{
		{"PK": str("USERS"), "SK": str("A")},
		{"PK": str("USERS"), "SK": str("B")},
	}
	lastKey := map[string]types.AttributeValue{"PK": str("USERS"), "SK": str("B")}

	client := new(mocks.MockDynamoDBClient)
	client.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return *in.KeyConditionExpression == "#1 = :1" && *in.Limit == 2
	}), mock.Anything).Return(mocks.NewQueryOutput(page, lastKey), nil)
	client.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.FilterExpression != nil && *in.FilterExpression == "#1 = :1"
	}), mock.Anything).Return(mocks.NewScanOutput(page[:1], nil), nil)

	items, err := query.New(client).From("Users").KeyCondition("PK", "USERS").Limit(2).Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, items.Len())
	assert.Equal(t, int32(2), items.Count)
	assert.True(t, items.HasNextItems())
	assert.Equal(t, "A", items.First()["SK"])

	nativeKey, err := items.LastKey()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"PK": "USERS", "SK": "B"}, nativeKey)

	scanned, err := query.New(client).From("Users").Filter("PK", "USERS").Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, scanned.Len())
	assert.False(t, scanned.HasNextItems())

	var decoded []struct {
		SK string `dynamodbav:"SK"`
	}
	require.NoError(t, items.Decode(&decoded))
	assert.Equal(t, "B", decoded[1].SK)
	client.AssertExpectations(t)
}

func TestFirst(t *testing.T) {
	client := new(mocks.MockDynamoDBClient)
	client.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return *in.Limit == 1
	}), mock.Anything).Return(mocks.NewScanOutput(nil, nil), nil).Once()
	client.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return *in.Limit == 1 && *in.ProjectionExpression == "#2"
	}), mock.Anything).Return(mocks.NewQueryOutput([]map[string]types.AttributeValue{{"name": str("Ada")}}, nil), nil).Once()

	first, err := query.New(client).From("Users").FetchMode(query.FetchScan).First(context.Background())
	require.NoError(t, err)
	assert.Nil(t, first)

	first, err = query.New(client).From("Users").KeyCondition("PK", "USERS").First(context.Background(), "name")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ada"}, first)
	client.AssertExpectations(t)
}

func TestTransportErrorsAreWrapped(t *testing.T) {
	client := new(mocks.MockDynamoDBClient)
	cause := &smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException", Message: "slow down"}
	client.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil, cause)

	_, err := query.New(client).From("Users").KeyCondition("PK", "USERS").Query(context.Background())
	require.Error(t, err)
	assert.True(t, tqerrors.IsTransport(err))

	var transport *tqerrors.TransportError
	require.True(t, errors.As(err, &transport))
	assert.Equal(t, "Query", transport.Op)
	assert.Equal(t, "Users", transport.Table)
	assert.Equal(t, "ProvisionedThroughputExceededException", transport.Code())
}

func TestConditionalCheckFailure(t *testing.T) {
	client := new(mocks.MockDynamoDBClient)
	client.On("PutItem", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: strPtr("exists")})

	_, err := query.New(client).
		From("Users").
		Key(map[string]any{"PK": "USER#1"}).
		Insert(context.Background(), map[string]any{"name": "Ada"})
	require.Error(t, err)
	assert.True(t, tqerrors.IsConditionFailed(err))
	assert.ErrorIs(t, err, tqerrors.ErrConditionFailed)
}

func TestCanceledContextSkipsCall(t *testing.T) {
	client := new(mocks.MockDynamoDBClient)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := query.New(client).From("Users").Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	client.AssertNotCalled(t, "Scan", mock.Anything, mock.Anything, mock.Anything)
}

func TestBuilderIsSingleUse(t *testing.T) {
	client := new(mocks.MockDynamoDBClient)
	client.On("Scan", mock.Anything, mock.Anything, mock.Anything).Return(mocks.NewScanOutput(nil, nil), nil).Once()

	b := query.New(client).From("Users")
	_, err := b.Scan(context.Background())
	require.NoError(t, err)

	_, err = b.Scan(context.Background())
	assert.ErrorIs(t, err, tqerrors.ErrBuilderExecuted)

	b.Limit(5)
	assert.ErrorIs(t, b.Err(), tqerrors.ErrBuilderExecuted)
	client.AssertExpectations(t)
}

func strPtr(s string) *string {
	return &s
}

func TestRawOverridesReturnValues(t *testing.T) {
	client := new(mocks.MockDynamoDBClient)
	client.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return in.ReturnValues == types.ReturnValueNone
	}), mock.Anything).Return(&dynamodb.PutItemOutput{}, nil).Once()
	client.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return in.ReturnValues == types.ReturnValueUpdatedOld
	}), mock.Anything).Return(&dynamodb.UpdateItemOutput{}, nil).Once()

	_, err := query.New(client).
		From("Users").
		ReturnValues(query.ReturnAllOld).
		Raw(func(r *query.Request) { r.ReturnValues = query.ReturnNone }).
		PutItem(context.Background(), map[string]any{"id": "u1"})
	require.NoError(t, err)

	_, err = query.New(client).
		From("Users").
		Key(map[string]any{"id": "u1"}).
		ReturnValues(query.ReturnAllNew).
		Raw(func(r *query.Request) { r.ReturnValues = query.ReturnUpdatedOld }).
		Update(context.Background(), query.Set("name", "Ada"))
	require.NoError(t, err)

	client.AssertExpectations(t)
}

func TestBuilderErrorSurfacesBeforeTransport(t *testing.T) {
	client := new(mocks.MockDynamoDBClient)
	b := query.New(client).From("Users; drop")
	assert.ErrorIs(t, b.Err(), tqerrors.ErrValidation)

	_, err := b.KeyCondition("id", "u1").Query(context.Background())
	assert.ErrorIs(t, err, tqerrors.ErrValidation)
	assert.False(t, tqerrors.IsTransport(err))
	client.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
}
