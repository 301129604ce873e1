package tablequery

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"

	"github.com/theory-cloud/tablequery/pkg/session"
)

// LambdaTimeoutBuffer is reserved before the invocation deadline by WithLambdaTimeout
const LambdaTimeoutBuffer = time.Second

var (
	// Global Lambda connection reused across warm invocations
	lambdaConn *Connection
	lambdaErr  error
	lambdaOnce sync.Once

	lambdaConfigFunc = session.ConfigFromEnv
)

// NewLambdaOptimized returns the process-wide connection, building it from the
// environment on first use. Later calls return the same connection or the same error.
func NewLambdaOptimized(opts ...Option) (*Connection, error) {
	lambdaOnce.Do(func() {
		lambdaConn, lambdaErr = createLambdaConnection(opts...)
	})
	return lambdaConn, lambdaErr
}

func createLambdaConnection(opts ...Option) (*Connection, error) {
	cfg, err := lambdaConfigFunc()
	if err != nil {
		return nil, err
	}

	httpClient := session.NewHTTPClient(cfg).WithTransportOptions(func(tr *http.Transport) {
		tr.MaxIdleConns = 10
		tr.MaxIdleConnsPerHost = 10
		tr.IdleConnTimeout = 90 * time.Second
	})
	cfg.AWSConfigOptions = append(cfg.AWSConfigOptions,
		config.WithHTTPClient(httpClient),
		config.WithRetryMode(aws.RetryModeAdaptive),
	)
	if IsLambdaEnvironment() {
		cfg.DynamoDBOptions = append(cfg.DynamoDBOptions, func(o *dynamodb.Options) {
			o.RetryMode = aws.RetryModeAdaptive
		})
	}

	return New(context.Background(), cfg, opts...)
}

// IsLambdaEnvironment detects if running in AWS Lambda
func IsLambdaEnvironment() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

// GetLambdaMemoryMB returns the allocated memory in MB, or 0 outside Lambda
func GetLambdaMemoryMB() int {
	mem, err := strconv.Atoi(os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE"))
	if err != nil {
		return 0
	}
	return mem
}

// GetRemainingTimeMillis returns milliseconds until the context deadline, or -1 without one
func GetRemainingTimeMillis(ctx context.Context) int64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return -1
	}
	return time.Until(deadline).Milliseconds()
}

// WithLambdaTimeout derives a context that ends LambdaTimeoutBuffer before ctx's
// deadline so in-flight calls fail before the runtime freezes the invocation.
// Without a deadline ctx is returned with a no-op cancel.
func WithLambdaTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return ctx, func() {}
	}
	return context.WithDeadline(ctx, deadline.Add(-LambdaTimeoutBuffer))
}

// LoggerFromLambdaContext returns base enriched with the invocation's request id
// and function name when ctx carries a Lambda context.
func LoggerFromLambdaContext(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	lc, ok := lambdacontext.FromContext(ctx)
	if !ok {
		return base
	}
	logCtx := base.With().Str("aws_request_id", lc.AwsRequestID)
	if lc.InvokedFunctionArn != "" {
		logCtx = logCtx.Str("function_arn", lc.InvokedFunctionArn)
	}
	if lambdacontext.FunctionName != "" {
		logCtx = logCtx.Str("function_name", lambdacontext.FunctionName)
	}
	return logCtx.Logger()
}

// ForInvocation returns a copy of the connection whose builders log with the
// invocation's request id.
func (c *Connection) ForInvocation(ctx context.Context) *Connection {
	return c.WithLogger(LoggerFromLambdaContext(ctx, c.logger))
}
