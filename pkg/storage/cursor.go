package storage

import (
	"github.com/adfharrison1/go-docdb/pkg/codec"
	"github.com/adfharrison1/go-docdb/pkg/domain"
	"github.com/adfharrison1/go-docdb/pkg/query"
)

// Cursor iterates over a fixed snapshot of documents. Filtering, skip, limit
// and projection are applied lazily as the cursor advances. A Cursor is not
// safe for concurrent use.
//
//	cur, err := coll.Find(filter, nil)
//	...
//	defer cur.Close()
//	for cur.Next() {
//		doc := cur.Document()
//	}
type Cursor struct {
	source     []*domain.Document
	pos        int
	pred       query.Predicate
	skip       int64
	limit      int64
	returned   int64
	projection query.Projection

	current *domain.Document
	err     error
	closed  bool
}

func newFilterCursor(source []*domain.Document, pred query.Predicate, skip, limit int64, projection query.Projection) *Cursor {
	return &Cursor{
		source:     source,
		pred:       pred,
		skip:       skip,
		limit:      limit,
		projection: projection,
	}
}

func newSliceCursor(docs []*domain.Document) *Cursor {
	return newFilterCursor(docs, query.MatchAll, 0, 0, query.Projection{})
}

// Next advances to the next document and reports whether there is one.
func (c *Cursor) Next() bool {
	c.current = nil
	if c.closed || c.err != nil {
		return false
	}
	if c.limit > 0 && c.returned >= c.limit {
		return false
	}
	for c.pos < len(c.source) {
		doc := c.source[c.pos]
		c.pos++
		if !c.pred(doc) {
			continue
		}
		if c.skip > 0 {
			c.skip--
			continue
		}
		c.returned++
		c.current = c.projection.Apply(doc)
		return true
	}
	return false
}

// Document returns the current document. The caller may modify it freely.
func (c *Cursor) Document() *domain.Document {
	return c.current.Clone()
}

// Decode decodes the current document into target with the codec rules.
func (c *Cursor) Decode(target any) error {
	if c.current == nil {
		return domain.Errorf(domain.ErrNotFound, "", "cursor has no current document")
	}
	return codec.Decode(domain.Doc(c.current), target)
}

// All drains the remaining documents and closes the cursor.
func (c *Cursor) All() ([]*domain.Document, error) {
	defer c.Close()
	var out []*domain.Document
	for c.Next() {
		out = append(out, c.Document())
	}
	return out, c.err
}

// Err returns the error that stopped iteration, if any.
func (c *Cursor) Err() error {
	return c.err
}

// Close releases the snapshot. Closing twice is a no-op.
func (c *Cursor) Close() error {
	c.closed = true
	c.source = nil
	c.current = nil
	return nil
}
