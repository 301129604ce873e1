// Package tablequery wires a DynamoDB client, table grammar and logger into a
// connection that hands out query builders.
package tablequery

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/theory-cloud/tablequery/pkg/interfaces"
	"github.com/theory-cloud/tablequery/pkg/query"
	"github.com/theory-cloud/tablequery/pkg/session"
)

// Connection is safe for concurrent use. Every builder it returns is not.
type Connection struct {
	client           interfaces.DynamoDBClient
	session          *session.Session
	logger           zerolog.Logger
	grammar          query.Grammar
	batchConcurrency int
}

// Option configures a Connection
type Option func(*Connection)

// WithTablePrefix prepends prefix to every table name
func WithTablePrefix(prefix string) Option {
	return func(c *Connection) {
		c.grammar.TablePrefix = prefix
	}
}

// WithLogger sets the logger every builder logs through
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Connection) {
		c.logger = logger
	}
}

// WithBatchConcurrency bounds how many batch chunks a builder sends at once
func WithBatchConcurrency(n int) Option {
	return func(c *Connection) {
		c.batchConcurrency = n
	}
}

// New builds a connection from cfg, creating the AWS client through the session package.
func New(ctx context.Context, cfg *session.Config, opts ...Option) (*Connection, error) {
	if cfg == nil {
		cfg = session.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sess, err := session.NewSession(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client, err := sess.Client()
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB client: %w", err)
	}

	base := []Option{
		WithTablePrefix(cfg.TablePrefix),
		WithLogger(session.NewLogger(cfg.Logging)),
		WithBatchConcurrency(cfg.BatchConcurrency),
	}
	conn := NewWithClient(client, append(base, opts...)...)
	conn.session = sess
	return conn, nil
}

// NewWithClient wraps an existing client, typically a mock in tests.
func NewWithClient(client interfaces.DynamoDBClient, opts ...Option) *Connection {
	conn := &Connection{
		client: client,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(conn)
	}
	return conn
}

// Query returns a new builder bound to the connection
func (c *Connection) Query() *query.Builder {
	return query.New(c.client,
		query.WithGrammar(c.grammar),
		query.WithLogger(c.logger),
		query.WithBatchConcurrency(c.batchConcurrency),
	)
}

// Table returns a new builder for table
func (c *Connection) Table(table string) *query.Builder {
	return c.Query().From(table)
}

// From is an alias of Table
func (c *Connection) From(table string) *query.Builder {
	return c.Table(table)
}

// Client returns the underlying DynamoDB client
func (c *Connection) Client() interfaces.DynamoDBClient {
	return c.client
}

// Session returns the session the connection was built from, or nil for NewWithClient.
func (c *Connection) Session() *session.Session {
	return c.session
}

// Grammar returns the table grammar
func (c *Connection) Grammar() query.Grammar {
	return c.grammar
}

// TablePrefix returns the prefix applied to table names
func (c *Connection) TablePrefix() string {
	return c.grammar.TablePrefix
}

// Logger returns the connection logger
func (c *Connection) Logger() zerolog.Logger {
	return c.logger
}

// WithLogger returns a copy of the connection that logs through logger.
func (c *Connection) WithLogger(logger zerolog.Logger) *Connection {
	clone := *c
	clone.logger = logger
	return &clone
}
