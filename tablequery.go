// Package tablequery provides a fluent query builder for Amazon DynamoDB in Go.
//
// Import path:
//
//	import "github.com/theory-cloud/tablequery"
//
// Implementation lives in `internal/tablequery` and the `pkg` packages so the repo root stays minimal.
package tablequery

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"

	internaltablequery "github.com/theory-cloud/tablequery/internal/tablequery"
	"github.com/theory-cloud/tablequery/pkg/interfaces"
	"github.com/theory-cloud/tablequery/pkg/marshal"
	"github.com/theory-cloud/tablequery/pkg/model"
	"github.com/theory-cloud/tablequery/pkg/query"
	"github.com/theory-cloud/tablequery/pkg/session"
)

type (
	Connection = internaltablequery.Connection
	Option     = internaltablequery.Option
	Manager    = internaltablequery.Manager

	// Re-export types for convenience.
	Config         = session.Config
	Builder        = query.Builder
	Assignment     = query.Assignment
	ItemCollection = query.ItemCollection
	Result         = query.Result
	Definition     = model.Definition
	Scope          = model.Scope
)

// Re-export connection options for convenience.
var (
	WithTablePrefix      = internaltablequery.WithTablePrefix
	WithLogger           = internaltablequery.WithLogger
	WithBatchConcurrency = internaltablequery.WithBatchConcurrency
)

// Re-export update assignments for convenience.
var (
	Attr   = query.Attr
	Set    = query.Set
	Remove = query.Remove
	Add    = query.Add
	Delete = query.Delete
)

// New builds a connection from cfg
func New(ctx context.Context, cfg *Config, opts ...Option) (*Connection, error) {
	return internaltablequery.New(ctx, cfg, opts...)
}

// NewWithClient wraps an existing DynamoDB client, e.g. a mock in tests
func NewWithClient(client interfaces.DynamoDBClient, opts ...Option) *Connection {
	return internaltablequery.NewWithClient(client, opts...)
}

func DefaultConfig() *Config {
	return session.DefaultConfig()
}

// ConfigFromEnv reads DYNAMODB_* variables, loading the given .env files first
func ConfigFromEnv(files ...string) (*Config, error) {
	return session.ConfigFromEnv(files...)
}

func LoadConfigFile(path string) (*Config, error) {
	return session.LoadConfigFile(path)
}

func NewLambdaOptimized(opts ...Option) (*Connection, error) {
	return internaltablequery.NewLambdaOptimized(opts...)
}

func IsLambdaEnvironment() bool {
	return internaltablequery.IsLambdaEnvironment()
}

func WithLambdaTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return internaltablequery.WithLambdaTimeout(ctx)
}

func LoggerFromLambdaContext(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	return internaltablequery.LoggerFromLambdaContext(ctx, base)
}

// NewManager holds named connection configs and builds each connection on first use
func NewManager(defaultName string, configs map[string]*Config, opts ...Option) *Manager {
	return internaltablequery.NewManager(defaultName, configs, opts...)
}

func ConnectionContext(ctx context.Context, name string) context.Context {
	return internaltablequery.ConnectionContext(ctx, name)
}

// NewModel binds T to the table described by T's struct tags
func NewModel[T any](conn *Connection) (*model.Model[T], error) {
	return model.FromTags[T](conn)
}

func UnmarshalItem(item map[string]types.AttributeValue, dest any) error {
	return marshal.UnmarshalItemInto(item, dest)
}

func UnmarshalItems(items []map[string]types.AttributeValue, dest any) error {
	return marshal.UnmarshalItemsInto(items, dest)
}

// UnmarshalStreamImage decodes a DynamoDB Streams record image into dest
func UnmarshalStreamImage(image map[string]events.DynamoDBAttributeValue, dest any) error {
	return marshal.UnmarshalItemInto(marshal.FromStreamImage(image), dest)
}
