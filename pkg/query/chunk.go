package query

import (
	"context"
	"errors"

	"github.com/theory-cloud/tablequery/pkg/pagination"
)

// ErrStopChunk is returned by a Chunk callback to stop paging early.
var ErrStopChunk = errors.New("stop chunk")

// Chunk reads pages of size items with the fetch mode and passes each to fn with its
// 1-based page number. Each page resumes after the previous page's continuation key.
// It returns true when the last page was reached and false when fn returned ErrStopChunk.
// Any other error from fn is returned as-is.
func (b *Builder) Chunk(ctx context.Context, size int, fn func(page *ItemCollection, pageNumber int) error) (bool, error) {
	b.Limit(size)
	if err := b.begin(); err != nil {
		return false, err
	}

	for page := 1; ; page++ {
		items, err := b.fetch(ctx)
		if err != nil {
			return false, err
		}
		if err := fn(items, page); err != nil {
			if errors.Is(err, ErrStopChunk) {
				return false, nil
			}
			return false, err
		}
		if !items.HasNextItems() {
			return true, nil
		}
		b.exclusiveStartKey = items.LastEvaluatedKey
	}
}

// CursorPaginate reads the page addressed by cursor. Pass the zero Cursor for the first page
// and the paginator's NextCursor or PreviousCursor to move.
func (b *Builder) CursorPaginate(ctx context.Context, perPage int, cursor pagination.Cursor, columns ...string) (*pagination.Paginator, error) {
	b.Select(columns...)
	if err := b.begin(); err != nil {
		return nil, err
	}

	if cursor.HasNextCursor() {
		b.exclusiveStartKey = cursor.Next
	}
	b.limit = perPage

	items, err := b.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return pagination.NewPaginator(items.Items, perPage, cursor, items.LastEvaluatedKey), nil
}
