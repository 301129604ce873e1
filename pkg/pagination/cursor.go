// Package pagination implements bidirectional cursors over DynamoDB continuation keys.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
	"github.com/theory-cloud/tablequery/pkg/marshal"
)

// Cursor holds the continuation keys of already visited pages and the key of
// the page to fetch next. Both are empty on the first page.
type Cursor struct {
	Next     map[string]types.AttributeValue
	Previous []map[string]types.AttributeValue
}

// cursorPayload is the encoded form: p holds previous keys, n the next key.
type cursorPayload struct {
	Next     map[string]any   `json:"n,omitempty"`
	Previous []map[string]any `json:"p,omitempty"`
}

// NextCursorObject returns the cursor for the page after lastKey.
// The current next key, when present, is pushed onto the previous stack.
func (c Cursor) NextCursorObject(lastKey map[string]types.AttributeValue) Cursor {
	previous := append([]map[string]types.AttributeValue(nil), c.Previous...)
	if len(c.Next) > 0 {
		previous = append(previous, c.Next)
	}
	return Cursor{Previous: previous, Next: lastKey}
}

// PreviousCursorObject returns the cursor for the page before the current one
// by popping the previous stack into next.
func (c Cursor) PreviousCursorObject() Cursor {
	if len(c.Previous) == 0 {
		return Cursor{}
	}
	last := len(c.Previous) - 1
	previous := append([]map[string]types.AttributeValue(nil), c.Previous[:last]...)
	return Cursor{Previous: previous, Next: c.Previous[last]}
}

// HasNextCursor reports whether a next key is set
func (c Cursor) HasNextCursor() bool {
	return len(c.Next) > 0
}

// OnFirstPage reports whether both stacks are empty
func (c Cursor) OnFirstPage() bool {
	return len(c.Next) == 0 && len(c.Previous) == 0
}

// Encode renders the cursor as an opaque URL-safe token.
// Key values keep their type tags so numbers and binary survive the trip.
func (c Cursor) Encode() (string, error) {
	payload := cursorPayload{}
	if len(c.Next) > 0 {
		next, err := marshal.ItemToJSON(c.Next)
		if err != nil {
			return "", fmt.Errorf("failed to encode next key: %w", err)
		}
		payload.Next = next
	}
	for _, key := range c.Previous {
		prev, err := marshal.ItemToJSON(key)
		if err != nil {
			return "", fmt.Errorf("failed to encode previous key: %w", err)
		}
		payload.Previous = append(payload.Previous, prev)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode parses a token produced by Encode. An empty token yields the first-page cursor.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}

	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", tqerrors.ErrInvalidCursor, err)
	}

	var payload cursorPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", tqerrors.ErrInvalidCursor, err)
	}

	cursor := Cursor{}
	if len(payload.Next) > 0 {
		next, err := marshal.ItemFromJSON(payload.Next)
		if err != nil {
			return Cursor{}, fmt.Errorf("%w: %v", tqerrors.ErrInvalidCursor, err)
		}
		cursor.Next = next
	}
	for _, raw := range payload.Previous {
		prev, err := marshal.ItemFromJSON(raw)
		if err != nil {
			return Cursor{}, fmt.Errorf("%w: %v", tqerrors.ErrInvalidCursor, err)
		}
		cursor.Previous = append(cursor.Previous, prev)
	}
	return cursor, nil
}
