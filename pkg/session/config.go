package session

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
)

// Environment variables read by ConfigFromEnv
const (
	EnvRegion           = "DYNAMODB_REGION"
	EnvEndpoint         = "DYNAMODB_ENDPOINT"
	EnvAccessKey        = "DYNAMODB_ACCESS_KEY"
	EnvSecretKey        = "DYNAMODB_SECRET_KEY"
	EnvSessionToken     = "DYNAMODB_SESSION_TOKEN"
	EnvRoleARN          = "DYNAMODB_ROLE_ARN"
	EnvExternalID       = "DYNAMODB_EXTERNAL_ID"
	EnvTablePrefix      = "DYNAMODB_PREFIX"
	EnvMaxRetries       = "DYNAMODB_MAX_RETRIES"
	EnvBatchConcurrency = "DYNAMODB_BATCH_CONCURRENCY"
	EnvHTTPTimeout      = "DYNAMODB_HTTP_TIMEOUT"
	EnvLogLevel         = "DYNAMODB_LOG_LEVEL"
	EnvLogFormat        = "DYNAMODB_LOG_FORMAT"
)

var validate = validator.New()

// LoadConfigFile reads a YAML configuration file on top of DefaultConfig.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML configuration on top of DefaultConfig and validates it.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigFromEnv builds a configuration from DYNAMODB_* variables. The given dotenv
// files are loaded first; without files an optional .env in the working directory is used.
// Variables already set in the process environment win over dotenv values.
// AWS_REGION is used when DYNAMODB_REGION is unset.
func ConfigFromEnv(files ...string) (*Config, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return nil, fmt.Errorf("failed to load env files: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := DefaultConfig()
	setString(&cfg.Region, os.Getenv("AWS_REGION"))
	setString(&cfg.Region, os.Getenv(EnvRegion))
	setString(&cfg.Endpoint, os.Getenv(EnvEndpoint))
	setString(&cfg.AccessKey, os.Getenv(EnvAccessKey))
	setString(&cfg.SecretKey, os.Getenv(EnvSecretKey))
	setString(&cfg.SessionToken, os.Getenv(EnvSessionToken))
	setString(&cfg.RoleARN, os.Getenv(EnvRoleARN))
	setString(&cfg.ExternalID, os.Getenv(EnvExternalID))
	setString(&cfg.TablePrefix, os.Getenv(EnvTablePrefix))
	setString(&cfg.Logging.Level, os.Getenv(EnvLogLevel))
	setString(&cfg.Logging.Format, os.Getenv(EnvLogFormat))

	var err error
	if cfg.MaxRetries, err = envInt(EnvMaxRetries, cfg.MaxRetries); err != nil {
		return nil, err
	}
	if cfg.BatchConcurrency, err = envInt(EnvBatchConcurrency, cfg.BatchConcurrency); err != nil {
		return nil, err
	}
	if raw := strings.TrimSpace(os.Getenv(EnvHTTPTimeout)); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return nil, tqerrors.NewValidationError(EnvHTTPTimeout, err.Error())
		}
		cfg.HTTPTimeout = timeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration tags and returns a ValidationError naming every
// failing field.
func (c *Config) Validate() error {
	if c == nil {
		return tqerrors.NewValidationError("config", "config is nil")
	}
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate config: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return tqerrors.NewValidationError("config", strings.Join(msgs, "; "))
}

func setString(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}

func envInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, tqerrors.NewValidationError(name, fmt.Sprintf("%q is not an integer", raw))
	}
	return n, nil
}
