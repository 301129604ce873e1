// Package session provides AWS session management and DynamoDB client configuration
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// configLoadFunc is a variable to allow mocking config.LoadDefaultConfig in tests
var configLoadFunc = config.LoadDefaultConfig

const (
	// DefaultRegion is used when no region is configured
	DefaultRegion = "us-east-1"
	// DefaultHTTPTimeout bounds each DynamoDB HTTP call when no timeout is configured
	DefaultHTTPTimeout = 30 * time.Second
)

// Config holds the connection settings for tablequery
type Config struct {
	CredentialsProvider aws.CredentialsProvider           `yaml:"-"`
	AWSConfigOptions    []func(*config.LoadOptions) error `yaml:"-"`
	DynamoDBOptions     []func(*dynamodb.Options)         `yaml:"-"`
	Region              string                            `yaml:"region" validate:"required"`
	Endpoint            string                            `yaml:"endpoint" validate:"omitempty,url"`
	AccessKey           string                            `yaml:"access_key" validate:"required_with=SecretKey"`
	SecretKey           string                            `yaml:"secret_key" validate:"required_with=AccessKey"`
	SessionToken        string                            `yaml:"session_token" validate:"excluded_without=AccessKey"`
	RoleARN             string                            `yaml:"role_arn" validate:"omitempty,startswith=arn:"`
	ExternalID          string                            `yaml:"external_id" validate:"excluded_without=RoleARN"`
	RoleSessionName     string                            `yaml:"role_session_name"`
	TablePrefix         string                            `yaml:"prefix"`
	Logging             LoggingConfig                     `yaml:"logging"`
	HTTPTimeout         time.Duration                     `yaml:"http_timeout" validate:"gte=0"`
	MaxRetries          int                               `yaml:"max_retries" validate:"gte=0,lte=20"`
	BatchConcurrency    int                               `yaml:"batch_concurrency" validate:"gte=0,lte=64"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Region:      DefaultRegion,
		MaxRetries:  3,
		HTTPTimeout: DefaultHTTPTimeout,
		Logging:     LoggingConfig{Level: "info", Format: "json"},
	}
}

// Session manages the AWS session and DynamoDB client
type Session struct {
	config    *Config
	client    *dynamodb.Client
	awsConfig aws.Config
}

// NewSession creates a new session with the given configuration.
// Static keys take precedence over the default credential chain; a RoleARN
// is assumed on top of whichever credentials were resolved.
func NewSession(ctx context.Context, cfg *Config) (*Session, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	options := make([]func(*config.LoadOptions) error, 0, len(cfg.AWSConfigOptions)+5)

	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	options = append(options, config.WithRegion(region))

	switch {
	case cfg.CredentialsProvider != nil:
		options = append(options, config.WithCredentialsProvider(cfg.CredentialsProvider))
	case cfg.AccessKey != "":
		options = append(options, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		))
	}

	maxAttempts := cfg.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	options = append(options, config.WithRetryMode(aws.RetryModeStandard))
	options = append(options, config.WithRetryMaxAttempts(maxAttempts))

	httpClient := NewHTTPClient(cfg)
	options = append(options, config.WithHTTPClient(httpClient))

	options = append(options, cfg.AWSConfigOptions...)

	awsConfig, err := configLoadFunc(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if cfg.RoleARN != "" {
		awsConfig.Credentials = aws.NewCredentialsCache(assumeRoleProvider(awsConfig, cfg))
	}

	if awsConfig.Retryer == nil {
		awsConfig.Retryer = func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = maxAttempts
			})
		}
	}

	clientOptions := make([]func(*dynamodb.Options), 0, 1+len(cfg.DynamoDBOptions))
	clientOptions = append(clientOptions, func(o *dynamodb.Options) {
		o.Region = awsConfig.Region

		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if o.Retryer == nil {
			o.Retryer = awsConfig.Retryer()
		}
		if o.HTTPClient == nil {
			o.HTTPClient = httpClient
		}
	})
	clientOptions = append(clientOptions, cfg.DynamoDBOptions...)

	return &Session{
		config:    cfg,
		awsConfig: awsConfig,
		client:    dynamodb.NewFromConfig(awsConfig, clientOptions...),
	}, nil
}

// NewHTTPClient returns the SDK's buildable client with the configured timeout.
// It accepts transport options later, so AWS_CA_BUNDLE keeps working.
func NewHTTPClient(cfg *Config) *awshttp.BuildableClient {
	timeout := DefaultHTTPTimeout
	if cfg != nil && cfg.HTTPTimeout > 0 {
		timeout = cfg.HTTPTimeout
	}
	return awshttp.NewBuildableClient().WithTimeout(timeout)
}

func assumeRoleProvider(awsConfig aws.Config, cfg *Config) *stscreds.AssumeRoleProvider {
	sessionName := cfg.RoleSessionName
	if sessionName == "" {
		sessionName = "tablequery"
	}
	return stscreds.NewAssumeRoleProvider(sts.NewFromConfig(awsConfig), cfg.RoleARN, func(o *stscreds.AssumeRoleOptions) {
		o.RoleSessionName = sessionName
		if cfg.ExternalID != "" {
			o.ExternalID = aws.String(cfg.ExternalID)
		}
	})
}

// Client returns the DynamoDB client
func (s *Session) Client() (*dynamodb.Client, error) {
	if s == nil {
		return nil, fmt.Errorf("session is nil")
	}
	if s.client == nil {
		return nil, fmt.Errorf("DynamoDB client is nil")
	}
	return s.client, nil
}

// Config returns the session configuration
func (s *Session) Config() *Config {
	return s.config
}

// AWSConfig returns the AWS configuration
func (s *Session) AWSConfig() aws.Config {
	return s.awsConfig
}
