package tablequery_test

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/tablequery"
	"github.com/theory-cloud/tablequery/pkg/mocks"
)

type facadeUser struct {
	ID    string `dynamodbav:"id" tablequery:"pk"`
	Name  string `dynamodbav:"name"`
	Count int    `dynamodbav:"count"`
}

func TestFacadeConnection(t *testing.T) {
	client := new(mocks.MockDynamoDBClient)
	conn := tablequery.NewWithClient(client, tablequery.WithTablePrefix("Dev-"))

	client.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return aws.ToString(in.TableName) == "Dev-Users" &&
			aws.ToString(in.UpdateExpression) == "set #1 = :1 remove #2"
	}), mock.Anything).Return(&dynamodb.UpdateItemOutput{}, nil)

	_, err := conn.Table("Users").
		Key(map[string]any{"id": "u1"}).
		Update(context.Background(), tablequery.Set("name", "Ada"), tablequery.Remove("nickname"))
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestFacadeModel(t *testing.T) {
	client := new(mocks.MockDynamoDBClient)
	conn := tablequery.NewWithClient(client)
	client.On("GetItem", mock.Anything, mock.Anything, mock.Anything).Return(mocks.NewGetItemOutput(map[string]types.AttributeValue{
		"id":    &types.AttributeValueMemberS{Value: "u1"},
		"name":  &types.AttributeValueMemberS{Value: "Ada"},
		"count": &types.AttributeValueMemberN{Value: "2"},
	}), nil)

	users, err := tablequery.NewModel[facadeUser](conn)
	require.NoError(t, err)
	assert.Equal(t, "facadeUsers", users.Definition().Table)

	user, err := users.Find(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, facadeUser{ID: "u1", Name: "Ada", Count: 2}, *user)
}

func TestFacadeUnmarshal(t *testing.T) {
	var user facadeUser
	require.NoError(t, tablequery.UnmarshalItem(map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: "u1"},
	}, &user))
	assert.Equal(t, "u1", user.ID)

	var all []facadeUser
	require.NoError(t, tablequery.UnmarshalItems([]map[string]types.AttributeValue{
		{"id": &types.AttributeValueMemberS{Value: "a"}},
		{"id": &types.AttributeValueMemberS{Value: "b"}},
	}, &all))
	assert.Len(t, all, 2)

	var streamed facadeUser
	require.NoError(t, tablequery.UnmarshalStreamImage(map[string]events.DynamoDBAttributeValue{
		"id":    events.NewStringAttribute("u9"),
		"count": events.NewNumberAttribute("7"),
	}, &streamed))
	assert.Equal(t, facadeUser{ID: "u9", Count: 7}, streamed)
}

func TestFacadeConfig(t *testing.T) {
	cfg := tablequery.DefaultConfig()
	assert.Equal(t, "us-east-1", cfg.Region)

	t.Setenv("DYNAMODB_REGION", "eu-west-1")
	t.Setenv("DYNAMODB_PREFIX", "Test-")
	fromEnv, err := tablequery.ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", fromEnv.Region)
	assert.Equal(t, "Test-", fromEnv.TablePrefix)

	ctx := tablequery.ConnectionContext(context.Background(), "reports")
	m := tablequery.NewManager("primary", map[string]*tablequery.Config{"primary": cfg})
	_, err = m.FromContext(ctx)
	assert.ErrorContains(t, err, "unknown connection: reports")
}
