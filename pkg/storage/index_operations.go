package storage

import (
	"time"

	"github.com/adfharrison1/go-docdb/pkg/aggregation"
	"github.com/adfharrison1/go-docdb/pkg/domain"
	"github.com/adfharrison1/go-docdb/pkg/indexing"
)

// IndexOptions configure CreateIndex.
type IndexOptions struct {
	// Name overrides the generated name such as "name_1_age_-1".
	Name   string
	Unique bool
	// ExpireAfter is recorded on the index but documents never expire.
	ExpireAfter time.Duration
}

// CreateIndex builds an index over the current documents and maintains it on
// every later write. It returns the index name. Building a unique index over
// documents that already repeat a key fails with ErrDuplicateKey and leaves no
// index behind.
func (c *Collection) CreateIndex(keys []indexing.Key, opts *IndexOptions) (string, error) {
	if opts == nil {
		opts = &IndexOptions{}
	}
	spec := indexing.IndexSpec{
		Name:        opts.Name,
		Keys:        append([]indexing.Key{}, keys...),
		Unique:      opts.Unique,
		ExpireAfter: opts.ExpireAfter,
	}
	var name string
	err := c.withWriteLock(func() error {
		var err error
		name, err = c.indexes.CreateIndex(spec, c.entriesLocked())
		return err
	})
	if err != nil {
		return "", err
	}
	c.db.engine.logger.Debugw("created index",
		"database", c.db.name,
		"collection", c.name,
		"index", name,
		"unique", spec.Unique,
	)
	if spec.ExpireAfter > 0 {
		c.db.engine.logger.Warnw("index expiry is not enforced",
			"collection", c.name, "index", name, "expireAfter", spec.ExpireAfter)
	}
	return name, nil
}

// DropIndex removes the named index. The _id_ index cannot be dropped.
func (c *Collection) DropIndex(name string) error {
	err := c.withWriteLock(func() error {
		return c.indexes.DropIndex(name)
	})
	if err != nil {
		return err
	}
	c.db.engine.logger.Debugw("dropped index", "database", c.db.name, "collection", c.name, "index", name)
	return nil
}

// Indexes lists the index definitions in creation order, _id_ first.
func (c *Collection) Indexes() ([]indexing.IndexSpec, error) {
	var specs []indexing.IndexSpec
	err := c.withReadLock(func() error {
		specs = c.indexes.GetIndexes()
		return nil
	})
	return specs, err
}

// Aggregate runs pipeline over the collection in natural order. The input is
// snapshotted under the read lock and the stages run without it.
func (c *Collection) Aggregate(pipeline aggregation.Pipeline) (*Cursor, error) {
	compiled, err := pipeline.Compile()
	if err != nil {
		return nil, err
	}
	var input []*domain.Document
	err = c.withReadLock(func() error {
		entries := c.entriesLocked()
		input = make([]*domain.Document, len(entries))
		for i, e := range entries {
			input[i] = e.Doc
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newSliceCursor(compiled.Run(input)), nil
}
