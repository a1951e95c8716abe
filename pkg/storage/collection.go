package storage

import (
	"sync"

	"github.com/adfharrison1/go-docdb/pkg/codec"
	"github.com/adfharrison1/go-docdb/pkg/domain"
	"github.com/adfharrison1/go-docdb/pkg/indexing"
	"github.com/adfharrison1/go-docdb/pkg/query"
)

// Collection is a set of documents unique by _id. All methods are safe for
// concurrent use: writers are serialized per collection and readers work on a
// snapshot taken when their call starts.
//
// Stored documents are never mutated; a write replaces the stored pointer, so a
// snapshot of pointers is a consistent view.
type Collection struct {
	name string
	db   *Database
	opts CollectionOptions

	mu      sync.RWMutex
	dropped bool
	nextSeq uint64
	// seqs is ascending insertion order and may contain removed entries until
	// the next compaction.
	seqs    []uint64
	docs    map[uint64]*domain.Document
	sizes   map[uint64]int64
	size    int64
	indexes *indexing.IndexEngine
}

func newCollection(db *Database, name string, opts CollectionOptions) *Collection {
	return &Collection{
		name:    name,
		db:      db,
		opts:    opts,
		docs:    make(map[uint64]*domain.Document),
		sizes:   make(map[uint64]int64),
		indexes: indexing.NewIndexEngine(),
	}
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Database returns the owning database.
func (c *Collection) Database() *Database { return c.db }

// Options returns the options the collection was created with.
func (c *Collection) Options() CollectionOptions { return c.opts }

// withReadLock runs fn under the collection read lock.
func (c *Collection) withReadLock(fn func() error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.dropped {
		return domain.Errorf(domain.ErrCollectionDropped, c.name, "collection was dropped")
	}
	return fn()
}

// withWriteLock runs fn under the collection write lock.
func (c *Collection) withWriteLock(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dropped {
		return domain.Errorf(domain.ErrCollectionDropped, c.name, "collection was dropped")
	}
	return fn()
}

// Drop removes the collection from its database and discards its documents.
func (c *Collection) Drop() error {
	if err := c.withWriteLock(func() error {
		c.clearLocked()
		c.dropped = true
		return nil
	}); err != nil {
		return err
	}
	c.db.detach(c)
	c.db.engine.logger.Debugw("dropped collection", "database", c.db.name, "collection", c.name)
	return nil
}

func (c *Collection) markDropped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
	c.dropped = true
}

func (c *Collection) clearLocked() {
	c.seqs = nil
	c.docs = make(map[uint64]*domain.Document)
	c.sizes = make(map[uint64]int64)
	c.size = 0
	c.indexes = indexing.NewIndexEngine()
}

// entriesLocked returns the live documents in natural order.
func (c *Collection) entriesLocked() []indexing.Entry {
	out := make([]indexing.Entry, 0, len(c.docs))
	for _, seq := range c.seqs {
		if doc, ok := c.docs[seq]; ok {
			out = append(out, indexing.Entry{Seq: seq, Doc: doc})
		}
	}
	return out
}

// scanLocked returns, in natural order, the stored documents that may match f.
// An index narrows the scan for equality terms; callers still evaluate the
// full predicate.
func (c *Collection) scanLocked(f query.Filter) []indexing.Entry {
	if seqs, ok := c.indexes.Candidates(query.EqualityTerms(f)); ok {
		out := make([]indexing.Entry, 0, len(seqs))
		for _, seq := range seqs {
			if doc, ok := c.docs[seq]; ok {
				out = append(out, indexing.Entry{Seq: seq, Doc: doc})
			}
		}
		return out
	}
	return c.entriesLocked()
}

// matchLocked returns the entries satisfying pred, stopping after limit
// matches when limit > 0.
func (c *Collection) matchLocked(f query.Filter, pred query.Predicate, limit int) []indexing.Entry {
	var out []indexing.Entry
	for _, e := range c.scanLocked(f) {
		if pred(e.Doc) {
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

// insertLocked stores doc, which must already carry an _id.
func (c *Collection) insertLocked(doc *domain.Document) error {
	seq := c.nextSeq + 1
	if err := c.indexes.CheckUnique(seq, doc); err != nil {
		return err
	}

	var size int64
	if c.opts.Capped {
		n, err := codec.EncodedSize(doc)
		if err != nil {
			return err
		}
		size = int64(n)
		if size > c.opts.SizeInBytes {
			return domain.Errorf(domain.ErrInvalidOptions, c.name,
				"document of %d bytes exceeds capped size %d", size, c.opts.SizeInBytes)
		}
		c.evictLocked(size)
	}

	c.nextSeq = seq
	c.seqs = append(c.seqs, seq)
	c.docs[seq] = doc
	if c.opts.Capped {
		c.sizes[seq] = size
		c.size += size
	}
	c.indexes.UpdateIndexForDocument(seq, nil, doc)
	return nil
}

// evictLocked removes the oldest documents until one more document of
// incoming bytes fits.
func (c *Collection) evictLocked(incoming int64) {
	for len(c.docs) > 0 {
		overCount := c.opts.MaxDocuments > 0 && int64(len(c.docs))+1 > c.opts.MaxDocuments
		overSize := c.size+incoming > c.opts.SizeInBytes
		if !overCount && !overSize {
			return
		}
		for _, seq := range c.seqs {
			if _, ok := c.docs[seq]; ok {
				c.removeLocked(seq)
				break
			}
		}
	}
}

func (c *Collection) removeLocked(seq uint64) {
	doc, ok := c.docs[seq]
	if !ok {
		return
	}
	c.indexes.UpdateIndexForDocument(seq, doc, nil)
	delete(c.docs, seq)
	if c.opts.Capped {
		c.size -= c.sizes[seq]
		delete(c.sizes, seq)
	}
	c.compactLocked()
}

// compactLocked drops removed sequence numbers once they dominate seqs.
func (c *Collection) compactLocked() {
	if len(c.seqs) < 64 || len(c.docs)*2 > len(c.seqs) {
		return
	}
	live := make([]uint64, 0, len(c.docs))
	for _, seq := range c.seqs {
		if _, ok := c.docs[seq]; ok {
			live = append(live, seq)
		}
	}
	c.seqs = live
}

// replaceLocked swaps the document stored at seq for doc after checking the
// unique indexes.
func (c *Collection) replaceLocked(seq uint64, doc *domain.Document) error {
	old, ok := c.docs[seq]
	if !ok {
		return domain.Errorf(domain.ErrNotFound, c.name, "document vanished")
	}
	if err := c.indexes.CheckUnique(seq, doc); err != nil {
		return err
	}
	if c.opts.Capped {
		n, err := codec.EncodedSize(doc)
		if err != nil {
			return err
		}
		size := int64(n)
		if c.size-c.sizes[seq]+size > c.opts.SizeInBytes {
			return domain.Errorf(domain.ErrInvalidUpdate, c.name, "update would grow the capped collection beyond %d bytes", c.opts.SizeInBytes)
		}
		c.size += size - c.sizes[seq]
		c.sizes[seq] = size
	}
	c.indexes.UpdateIndexForDocument(seq, old, doc)
	c.docs[seq] = doc
	return nil
}
