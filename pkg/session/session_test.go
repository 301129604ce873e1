package session

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
)

// stubConfigLoad replaces config.LoadDefaultConfig with one that applies the load
// options and records them for inspection.
func stubConfigLoad(t *testing.T) *config.LoadOptions {
	t.Helper()
	original := configLoadFunc
	t.Cleanup(func() { configLoadFunc = original })

	loaded := &config.LoadOptions{}
	configLoadFunc = func(_ context.Context, opts ...func(*config.LoadOptions) error) (aws.Config, error) {
		for _, opt := range opts {
			if err := opt(loaded); err != nil {
				return aws.Config{}, err
			}
		}
		return aws.Config{Region: loaded.Region, Credentials: loaded.Credentials}, nil
	}
	return loaded
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Endpoint)
	assert.Empty(t, cfg.TablePrefix)
	assert.NoError(t, cfg.Validate())
}

func TestNewSession(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		loaded := stubConfigLoad(t)

		sess, err := NewSession(context.Background(), nil)
		require.NoError(t, err)

		assert.Equal(t, "us-east-1", loaded.Region)
		assert.Nil(t, loaded.Credentials)
		assert.Equal(t, 3, loaded.RetryMaxAttempts)
		assert.Equal(t, aws.RetryModeStandard, loaded.RetryMode)
		assert.Equal(t, "us-east-1", sess.Config().Region)

		client, err := sess.Client()
		require.NoError(t, err)
		assert.Nil(t, client.Options().BaseEndpoint)
	})

	t.Run("static credentials and endpoint", func(t *testing.T) {
		loaded := stubConfigLoad(t)

		sess, err := NewSession(context.Background(), &Config{
			Region:     "eu-west-1",
			Endpoint:   "http://localhost:8000",
			AccessKey:  "AKID",
			SecretKey:  "SECRET",
			MaxRetries: 5,
		})
		require.NoError(t, err)

		assert.Equal(t, "eu-west-1", loaded.Region)
		assert.Equal(t, 5, loaded.RetryMaxAttempts)
		require.NotNil(t, loaded.Credentials)
		creds, err := loaded.Credentials.Retrieve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "AKID", creds.AccessKeyID)
		assert.Equal(t, "SECRET", creds.SecretAccessKey)

		client, err := sess.Client()
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8000", aws.ToString(client.Options().BaseEndpoint))
		assert.Equal(t, "eu-west-1", client.Options().Region)
	})

	t.Run("empty region falls back", func(t *testing.T) {
		loaded := stubConfigLoad(t)

		_, err := NewSession(context.Background(), &Config{})
		require.NoError(t, err)
		assert.Equal(t, DefaultRegion, loaded.Region)
	})

	t.Run("assume role wraps credentials", func(t *testing.T) {
		stubConfigLoad(t)

		sess, err := NewSession(context.Background(), &Config{
			Region:     "us-west-2",
			RoleARN:    "arn:aws:iam::123456789012:role/reader",
			ExternalID: "partner",
		})
		require.NoError(t, err)
		assert.IsType(t, &aws.CredentialsCache{}, sess.AWSConfig().Credentials)
	})

	t.Run("custom client options run last", func(t *testing.T) {
		stubConfigLoad(t)

		sess, err := NewSession(context.Background(), &Config{
			Region:   "us-east-1",
			Endpoint: "http://localhost:8000",
			DynamoDBOptions: []func(*dynamodb.Options){
				func(o *dynamodb.Options) { o.BaseEndpoint = aws.String("http://dynamo:8000") },
			},
		})
		require.NoError(t, err)
		client, err := sess.Client()
		require.NoError(t, err)
		assert.Equal(t, "http://dynamo:8000", aws.ToString(client.Options().BaseEndpoint))
	})

	t.Run("config load failure", func(t *testing.T) {
		original := configLoadFunc
		t.Cleanup(func() { configLoadFunc = original })
		configLoadFunc = func(context.Context, ...func(*config.LoadOptions) error) (aws.Config, error) {
			return aws.Config{}, errors.New("no profile")
		}

		sess, err := NewSession(context.Background(), DefaultConfig())
		assert.Nil(t, sess)
		assert.ErrorContains(t, err, "failed to load AWS config")
	})
}

// writeCABundle writes a self-signed certificate in PEM form and returns its path.
func writeCABundle(t *testing.T) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "tablequery test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	return path
}

func TestNewSessionWithCABundle(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_CA_BUNDLE", writeCABundle(t))

	sess, err := NewSession(context.Background(), &Config{
		Region:      "us-west-2",
		Endpoint:    "http://localhost:8000",
		AccessKey:   "local",
		SecretKey:   "local",
		HTTPTimeout: 7 * time.Second,
	})
	require.NoError(t, err)

	client, err := sess.Client()
	require.NoError(t, err)
	buildable, ok := client.Options().HTTPClient.(*awshttp.BuildableClient)
	require.True(t, ok)
	assert.Equal(t, 7*time.Second, buildable.GetTimeout())
	require.NotNil(t, buildable.GetTransport().TLSClientConfig)
	assert.NotNil(t, buildable.GetTransport().TLSClientConfig.RootCAs)
}

func TestNewHTTPClient(t *testing.T) {
	assert.Equal(t, DefaultHTTPTimeout, NewHTTPClient(nil).GetTimeout())
	assert.Equal(t, DefaultHTTPTimeout, NewHTTPClient(&Config{}).GetTimeout())
	assert.Equal(t, 2*time.Second, NewHTTPClient(&Config{HTTPTimeout: 2 * time.Second}).GetTimeout())
}

func TestSessionClientNil(t *testing.T) {
	var sess *Session
	_, err := sess.Client()
	assert.Error(t, err)

	_, err = (&Session{}).Client()
	assert.Error(t, err)
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
region: eu-central-1
endpoint: http://localhost:8000
prefix: Staging-
max_retries: 5
batch_concurrency: 4
http_timeout: 5s
logging:
  level: debug
  format: console
`))
	require.NoError(t, err)

	assert.Equal(t, "eu-central-1", cfg.Region)
	assert.Equal(t, "http://localhost:8000", cfg.Endpoint)
	assert.Equal(t, "Staging-", cfg.TablePrefix)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 4, cfg.BatchConcurrency)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, LoggingConfig{Level: "debug", Format: "console"}, cfg.Logging)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tablequery.yaml")
	require.NoError(t, os.WriteFile(path, []byte("region: ap-south-1\nprefix: Prod-\n"), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ap-south-1", cfg.Region)
	assert.Equal(t, "Prod-", cfg.TablePrefix)
	assert.Equal(t, 3, cfg.MaxRetries)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = ParseConfig([]byte("region: [unterminated"))
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "missing region", mutate: func(c *Config) { c.Region = "" }, wantErr: "Region"},
		{name: "bad endpoint", mutate: func(c *Config) { c.Endpoint = "localhost" }, wantErr: "Endpoint"},
		{name: "access key without secret", mutate: func(c *Config) { c.AccessKey = "AKID" }, wantErr: "SecretKey"},
		{name: "secret without access key", mutate: func(c *Config) { c.SecretKey = "SECRET" }, wantErr: "AccessKey"},
		{name: "static keys", mutate: func(c *Config) { c.AccessKey, c.SecretKey = "AKID", "SECRET" }},
		{name: "bad role", mutate: func(c *Config) { c.RoleARN = "reader" }, wantErr: "RoleARN"},
		{name: "external id without role", mutate: func(c *Config) { c.ExternalID = "partner" }, wantErr: "ExternalID"},
		{name: "negative retries", mutate: func(c *Config) { c.MaxRetries = -1 }, wantErr: "MaxRetries"},
		{name: "log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "Logging.Format"},
		{name: "log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "Logging.Level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, tqerrors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	var nilCfg *Config
	assert.True(t, tqerrors.IsValidation(nilCfg.Validate()))
}

func TestConfigFromEnv(t *testing.T) {
	t.Run("process environment", func(t *testing.T) {
		t.Setenv(EnvRegion, "eu-west-2")
		t.Setenv(EnvEndpoint, "http://localhost:4566")
		t.Setenv(EnvTablePrefix, "Test-")
		t.Setenv(EnvMaxRetries, "7")
		t.Setenv(EnvBatchConcurrency, "2")
		t.Setenv(EnvHTTPTimeout, "2s")
		t.Setenv(EnvLogLevel, "warn")

		cfg, err := ConfigFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "eu-west-2", cfg.Region)
		assert.Equal(t, "http://localhost:4566", cfg.Endpoint)
		assert.Equal(t, "Test-", cfg.TablePrefix)
		assert.Equal(t, 7, cfg.MaxRetries)
		assert.Equal(t, 2, cfg.BatchConcurrency)
		assert.Equal(t, 2*time.Second, cfg.HTTPTimeout)
		assert.Equal(t, "warn", cfg.Logging.Level)
	})

	t.Run("dotenv file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.env")
		require.NoError(t, os.WriteFile(path, []byte("DYNAMODB_ACCESS_KEY=AKID\nDYNAMODB_SECRET_KEY=SECRET\n"), 0o600))
		t.Cleanup(func() {
			_ = os.Unsetenv(EnvAccessKey)
			_ = os.Unsetenv(EnvSecretKey)
		})
		t.Setenv(EnvRegion, "us-east-2")

		cfg, err := ConfigFromEnv(path)
		require.NoError(t, err)
		assert.Equal(t, "AKID", cfg.AccessKey)
		assert.Equal(t, "SECRET", cfg.SecretKey)
		assert.Equal(t, "us-east-2", cfg.Region)
	})

	t.Run("missing dotenv file", func(t *testing.T) {
		_, err := ConfigFromEnv(filepath.Join(t.TempDir(), "nope.env"))
		assert.ErrorContains(t, err, "failed to load env files")
	})

	t.Run("bad integer", func(t *testing.T) {
		t.Setenv(EnvRegion, "us-east-1")
		t.Setenv(EnvMaxRetries, "many")

		_, err := ConfigFromEnv()
		assert.True(t, tqerrors.IsValidation(err))
	})

	t.Run("invalid result", func(t *testing.T) {
		t.Setenv(EnvRegion, "us-east-1")
		t.Setenv(EnvLogFormat, "xml")

		_, err := ConfigFromEnv()
		assert.True(t, tqerrors.IsValidation(err))
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Output: &buf, Level: "warn"})

	logger.Info().Msg("hidden")
	logger.Warn().Str("table", "Users").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"table":"Users"`)
	assert.Contains(t, out, `"component":"tablequery"`)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	assert.Equal(t, zerolog.InfoLevel, NewLogger(LoggingConfig{Output: &buf, Level: "loud"}).GetLevel())
	assert.Equal(t, zerolog.Disabled, NewLogger(LoggingConfig{Output: &buf, Level: "disabled"}).GetLevel())

	buf.Reset()
	console := NewLogger(LoggingConfig{Output: &buf, Format: "console"})
	console.Info().Msg("pretty")
	assert.Contains(t, buf.String(), "pretty")
	assert.NotContains(t, buf.String(), `"message"`)
}
