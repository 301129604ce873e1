package tablequery

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
	"github.com/theory-cloud/tablequery/pkg/mocks"
	"github.com/theory-cloud/tablequery/pkg/session"
)

// isolateAWSEnv keeps the default credential chain away from the developer's profile.
func isolateAWSEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
}

func localConfig() *session.Config {
	cfg := session.DefaultConfig()
	cfg.Region = "us-west-2"
	cfg.Endpoint = "http://localhost:8000"
	cfg.AccessKey = "local"
	cfg.SecretKey = "local"
	cfg.TablePrefix = "Dev-"
	cfg.BatchConcurrency = 2
	cfg.Logging.Level = "disabled"
	return cfg
}

func TestNewBuildsClientFromConfig(t *testing.T) {
	isolateAWSEnv(t)

	conn, err := New(context.Background(), localConfig())
	require.NoError(t, err)

	assert.Equal(t, "Dev-", conn.TablePrefix())
	assert.Equal(t, "Dev-Users", conn.Grammar().TableName("Users"))
	require.NotNil(t, conn.Session())

	client, ok := conn.Client().(*dynamodb.Client)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:8000", aws.ToString(client.Options().BaseEndpoint))
	assert.Equal(t, "us-west-2", client.Options().Region)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := localConfig()
	cfg.SecretKey = ""

	conn, err := New(context.Background(), cfg)
	assert.Nil(t, conn)
	assert.True(t, tqerrors.IsValidation(err))
}

func TestConnectionBuildersShareSettings(t *testing.T) {
	client := new(mocks.MockDynamoDBClient)
	client.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return aws.ToString(in.TableName) == "Dev-Users"
	}), mock.Anything).Return(mocks.NewScanOutput(nil, nil), nil).Twice()

	var buf bytes.Buffer
	conn := NewWithClient(client,
		WithTablePrefix("Dev-"),
		WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)),
	)

	_, err := conn.Table("Users").Scan(context.Background())
	require.NoError(t, err)
	_, err = conn.From("Users").Scan(context.Background())
	require.NoError(t, err)

	client.AssertExpectations(t)
	assert.Contains(t, buf.String(), `"message":"dynamodb call"`)
	assert.Contains(t, buf.String(), `"table":"Dev-Users"`)
	assert.Contains(t, buf.String(), `"op":"Scan"`)
}

func TestConnectionWithLoggerCopies(t *testing.T) {
	var buf bytes.Buffer
	conn := NewWithClient(nil, WithTablePrefix("Dev-"))
	scoped := conn.WithLogger(zerolog.New(&buf))

	assert.NotSame(t, conn, scoped)
	assert.Equal(t, "Dev-", scoped.TablePrefix())
	logger := scoped.Logger()
	logger.Info().Msg("scoped")
	assert.Contains(t, buf.String(), "scoped")
	assert.Nil(t, conn.Session())
}
