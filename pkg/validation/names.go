// Package validation checks table, index, and attribute names before they reach a request.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"unicode"

	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
)

// Name limits enforced by DynamoDB
const (
	MinTableNameLength     = 3
	MaxTableNameLength     = 255
	MaxAttributeNameLength = 65535
)

// ErrInvalidName is matched by every NameError
var ErrInvalidName = errors.New("invalid name")

var resourceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// NameError reports a rejected name. It never echoes the name itself so it is safe to log.
type NameError struct {
	Kind   string
	Detail string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Is matches ErrInvalidName and the validation sentinel so callers can use either.
func (e *NameError) Is(target error) bool {
	return target == ErrInvalidName || target == tqerrors.ErrValidation
}

// ValidateTableName validates a DynamoDB table name
func ValidateTableName(name string) error {
	return validateResourceName("table name", name)
}

// ValidateIndexName validates a secondary index name. An empty name means no index.
func ValidateIndexName(name string) error {
	if name == "" {
		return nil
	}
	return validateResourceName("index name", name)
}

// ValidateAttributeName validates a top-level attribute name used in an expression.
func ValidateAttributeName(name string) error {
	if name == "" {
		return &NameError{Kind: "attribute name", Detail: "must not be empty"}
	}
	if len(name) > MaxAttributeNameLength {
		return &NameError{Kind: "attribute name", Detail: "length invalid"}
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return &NameError{Kind: "attribute name", Detail: "contains control characters"}
		}
	}
	return nil
}

func validateResourceName(kind, name string) error {
	if len(name) < MinTableNameLength || len(name) > MaxTableNameLength {
		return &NameError{Kind: kind, Detail: "length invalid"}
	}
	if !resourceNamePattern.MatchString(name) {
		return &NameError{Kind: kind, Detail: "contains invalid characters"}
	}
	return nil
}
