package pagination

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Paginator is one page of results together with the cursor that produced it.
type Paginator struct {
	Cursor           Cursor
	LastEvaluatedKey map[string]types.AttributeValue
	Items            []map[string]any
	PerPage          int
}

// NewPaginator creates a page. lastKey is the continuation key the store returned.
func NewPaginator(items []map[string]any, perPage int, cursor Cursor, lastKey map[string]types.AttributeValue) *Paginator {
	return &Paginator{
		Items:            items,
		PerPage:          perPage,
		Cursor:           cursor,
		LastEvaluatedKey: lastKey,
	}
}

// HasPages reports whether the page holds any items
func (p *Paginator) HasPages() bool {
	return len(p.Items) > 0
}

// HasMorePages reports whether the store returned a continuation key
func (p *Paginator) HasMorePages() bool {
	return len(p.LastEvaluatedKey) > 0
}

// OnFirstPage reports whether this is the first page
func (p *Paginator) OnFirstPage() bool {
	return p.Cursor.OnFirstPage()
}

// NextCursor returns the cursor for the following page, or nil on the last page.
func (p *Paginator) NextCursor() *Cursor {
	if !p.HasMorePages() {
		return nil
	}
	next := p.Cursor.NextCursorObject(p.LastEvaluatedKey)
	return &next
}

// PreviousCursor returns the cursor for the preceding page, or nil on the first page.
func (p *Paginator) PreviousCursor() *Cursor {
	if p.OnFirstPage() {
		return nil
	}
	prev := p.Cursor.PreviousCursorObject()
	return &prev
}
