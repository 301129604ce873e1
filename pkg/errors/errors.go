// Package errors defines error types and utilities for tablequery
package errors

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// Common errors that can occur in tablequery operations
var (
	// ErrValidation is returned when builder input is malformed or incomplete
	ErrValidation = errors.New("validation failed")

	// ErrMissingKey is returned when an item operation runs without a primary key
	ErrMissingKey = errors.New("missing primary key")

	// ErrMissingTable is returned when an operation runs without a table name
	ErrMissingTable = errors.New("missing table name")

	// ErrBuilderExecuted is returned when a builder is reused after a terminal operation
	ErrBuilderExecuted = errors.New("builder already executed")

	// ErrInvalidOperator is returned when a comparison operator is not recognized
	ErrInvalidOperator = errors.New("invalid query operator")

	// ErrUnsupportedType is returned when a value has no attribute value mapping
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrUnsupportedOperation is returned for unknown condition functions or builder operations
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrTransport is returned when the store client fails
	ErrTransport = errors.New("transport failure")

	// ErrConditionFailed is returned when a condition check fails
	ErrConditionFailed = errors.New("condition check failed")

	// ErrItemNotFound is returned when an item is not found in the database
	ErrItemNotFound = errors.New("item not found")

	// ErrInvalidCursor is returned when a pagination token cannot be decoded
	ErrInvalidCursor = errors.New("invalid cursor")
)

// ValidationError describes malformed builder input.
type ValidationError struct {
	Err    error
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "tablequery: validation failed"
	}
	if e.Field == "" {
		return fmt.Sprintf("tablequery: validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("tablequery: validation failed for %s: %s", e.Field, e.Reason)
}

// Unwrap returns the underlying error
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports ErrValidation for every validation error.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// WrapValidation creates a ValidationError that also matches err.
func WrapValidation(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Reason: err.Error(), Err: err}
}

// TypeError is returned when a value cannot be mapped to an attribute value.
type TypeError struct {
	Type string
	Path string
}

func (e *TypeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("tablequery: unsupported type %s", e.Type)
	}
	return fmt.Sprintf("tablequery: unsupported type %s at %s", e.Type, e.Path)
}

// Is checks if the error matches the target error
func (e *TypeError) Is(target error) bool {
	return target == ErrUnsupportedType
}

// TransportError wraps a failure reported by the store client.
type TransportError struct {
	Err   error
	Op    string
	Table string
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e == nil {
		return "tablequery: transport failure"
	}
	if code := e.Code(); code != "" {
		return fmt.Sprintf("tablequery: %s failed (%s): %v", e.Op, code, e.Err)
	}
	return fmt.Sprintf("tablequery: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches ErrTransport and, for conditional check failures, ErrConditionFailed.
func (e *TransportError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return true
	case ErrConditionFailed:
		var ccf *types.ConditionalCheckFailedException
		return errors.As(e.Err, &ccf)
	}
	return false
}

// Code returns the service error code when the store reported one.
func (e *TransportError) Code() string {
	var apiErr smithy.APIError
	if errors.As(e.Err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// NewTransportError wraps err with the failing operation and table.
func NewTransportError(op, table string, err error) *TransportError {
	return &TransportError{Op: op, Table: table, Err: err}
}

// OperationError represents a detailed error with context
type OperationError struct {
	Err     error
	Context map[string]any
	Op      string
	Model   string
}

// Error implements the error interface
func (e *OperationError) Error() string {
	return fmt.Sprintf("tablequery: %s operation failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *OperationError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target error
func (e *OperationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new OperationError
func NewError(op, model string, err error) *OperationError {
	return &OperationError{
		Op:    op,
		Model: model,
		Err:   err,
	}
}

// NewErrorWithContext creates a new OperationError with context
func NewErrorWithContext(op, model string, err error, context map[string]any) *OperationError {
	return &OperationError{
		Op:      op,
		Model:   model,
		Err:     err,
		Context: context,
	}
}

// IsNotFound checks if an error indicates an item was not found
func IsNotFound(err error) bool {
	return errors.Is(err, ErrItemNotFound)
}

// IsValidation checks if an error was caused by malformed input
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConditionFailed checks if an error indicates a condition check failure
func IsConditionFailed(err error) bool {
	if errors.Is(err, ErrConditionFailed) {
		return true
	}
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// IsTransport checks if an error came from the store client
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}
