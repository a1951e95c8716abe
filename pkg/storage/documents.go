package storage

import (
	"github.com/adfharrison1/go-docdb/pkg/domain"
	"github.com/adfharrison1/go-docdb/pkg/query"
	"github.com/adfharrison1/go-docdb/pkg/update"
)

// InsertOneResult reports the _id of an inserted document.
type InsertOneResult struct {
	InsertedID domain.Value
}

// InsertManyResult lists the _ids of the documents inserted, in input order.
type InsertManyResult struct {
	InsertedIDs []domain.Value
}

// DeleteResult counts removed documents.
type DeleteResult struct {
	DeletedCount int64
}

// UpdateResult counts matched and actually changed documents.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

// FindOptions shape the result of Find. Skip and Limit apply after sorting;
// a zero Limit means no limit.
type FindOptions struct {
	Sort       query.Sort
	Skip       int64
	Limit      int64
	Projection query.Projection
}

func (o *FindOptions) validate() error {
	if o == nil {
		return nil
	}
	if o.Skip < 0 || o.Limit < 0 {
		return domain.Errorf(domain.ErrInvalidOptions, "", "skip and limit must not be negative")
	}
	if err := o.Sort.Validate(); err != nil {
		return err
	}
	return o.Projection.Validate()
}

// FindOneAndUpdateOptions select which matching document is updated and which
// version is returned.
type FindOneAndUpdateOptions struct {
	Sort query.Sort
	// ReturnAfter returns the updated document instead of the original.
	ReturnAfter bool
	Projection  query.Projection
}

// prepareInsert clones doc and gives it an _id, generated when absent, as its
// first field.
func (c *Collection) prepareInsert(doc *domain.Document) (*domain.Document, error) {
	if doc == nil {
		return nil, domain.Errorf(domain.ErrInvalidOptions, "", "cannot insert a nil document")
	}
	if doc.Has(domain.IDField) {
		return doc.Clone(), nil
	}
	out := domain.NewDocument().Set(domain.IDField, domain.OID(c.db.engine.newID()))
	for _, e := range doc.Elements() {
		out.Set(e.Key, e.Value)
	}
	return out, nil
}

// InsertOne stores doc, generating an ObjectID _id when it has none. It fails
// with ErrDuplicateKey when the _id or another unique key is already present.
func (c *Collection) InsertOne(doc *domain.Document) (InsertOneResult, error) {
	prepared, err := c.prepareInsert(doc)
	if err != nil {
		return InsertOneResult{}, err
	}
	err = c.withWriteLock(func() error {
		return c.insertLocked(prepared)
	})
	if err != nil {
		return InsertOneResult{}, err
	}
	id, _ := prepared.ID()
	return InsertOneResult{InsertedID: id}, nil
}

// InsertMany inserts docs as an ordered bulk: it stops at the first failure,
// keeping the documents inserted before it. A nil opts means ordered.
func (c *Collection) InsertMany(docs []*domain.Document, opts *BulkOptions) (InsertManyResult, error) {
	models := make([]WriteModel, len(docs))
	for i, d := range docs {
		models[i] = InsertOneModel{Document: d}
	}
	res, err := c.BulkWrite(models, opts)

	ids := make([]domain.Value, 0, len(res.InsertedIDs))
	for i := range docs {
		if id, ok := res.InsertedIDs[i]; ok {
			ids = append(ids, id)
		}
	}
	return InsertManyResult{InsertedIDs: ids}, err
}

// DeleteOne removes the first document, in natural order, matching f.
// No match is not an error.
func (c *Collection) DeleteOne(f query.Filter) (DeleteResult, error) {
	return c.deleteMatching(f, 1)
}

// DeleteMany removes every document matching f.
func (c *Collection) DeleteMany(f query.Filter) (DeleteResult, error) {
	return c.deleteMatching(f, 0)
}

func (c *Collection) deleteMatching(f query.Filter, limit int) (DeleteResult, error) {
	pred, err := query.Compile(f)
	if err != nil {
		return DeleteResult{}, err
	}
	var res DeleteResult
	err = c.withWriteLock(func() error {
		res = c.deleteLocked(f, pred, limit)
		return nil
	})
	return res, err
}

func (c *Collection) deleteLocked(f query.Filter, pred query.Predicate, limit int) DeleteResult {
	matches := c.matchLocked(f, pred, limit)
	for _, e := range matches {
		c.removeLocked(e.Seq)
	}
	return DeleteResult{DeletedCount: int64(len(matches))}
}

// UpdateOne applies u to the first document, in natural order, matching f.
func (c *Collection) UpdateOne(f query.Filter, u update.Update) (UpdateResult, error) {
	return c.updateMatching(f, u, 1)
}

// UpdateMany applies u to every document matching f. Documents are updated in
// natural order; if one fails the error is returned and the documents already
// updated stay updated.
func (c *Collection) UpdateMany(f query.Filter, u update.Update) (UpdateResult, error) {
	return c.updateMatching(f, u, 0)
}

func (c *Collection) updateMatching(f query.Filter, u update.Update, limit int) (UpdateResult, error) {
	pred, err := query.Compile(f)
	if err != nil {
		return UpdateResult{}, err
	}
	if err := u.Validate(); err != nil {
		return UpdateResult{}, err
	}
	var res UpdateResult
	err = c.withWriteLock(func() error {
		var err error
		res, err = c.updateLocked(f, pred, u, limit)
		return err
	})
	return res, err
}

func (c *Collection) updateLocked(f query.Filter, pred query.Predicate, u update.Update, limit int) (UpdateResult, error) {
	var res UpdateResult
	for _, e := range c.matchLocked(f, pred, limit) {
		res.MatchedCount++
		next, err := u.Apply(e.Doc)
		if err != nil {
			return res, err
		}
		if next.Equal(e.Doc) {
			continue
		}
		if err := c.replaceLocked(e.Seq, next); err != nil {
			return res, err
		}
		res.ModifiedCount++
	}
	return res, nil
}

// FindOneAndUpdate atomically finds the first document matching f (in natural
// order, or by opts.Sort), applies u and returns the document as it was before
// the update, or after it with opts.ReturnAfter. It returns ErrNotFound when
// nothing matches.
func (c *Collection) FindOneAndUpdate(f query.Filter, u update.Update, opts *FindOneAndUpdateOptions) (*domain.Document, error) {
	if opts == nil {
		opts = &FindOneAndUpdateOptions{}
	}
	pred, err := query.Compile(f)
	if err != nil {
		return nil, err
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Sort.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Projection.Validate(); err != nil {
		return nil, err
	}

	var before, after *domain.Document
	err = c.withWriteLock(func() error {
		limit := 1
		if len(opts.Sort) > 0 {
			limit = 0
		}
		matches := c.matchLocked(f, pred, limit)
		if len(matches) == 0 {
			return domain.Errorf(domain.ErrNotFound, c.name, "no document matches the filter")
		}
		target := matches[0]
		if len(opts.Sort) > 0 {
			for _, e := range matches[1:] {
				if opts.Sort.Compare(e.Doc, target.Doc) < 0 {
					target = e
				}
			}
		}

		next, err := u.Apply(target.Doc)
		if err != nil {
			return err
		}
		before, after = target.Doc, next
		if next.Equal(target.Doc) {
			return nil
		}
		return c.replaceLocked(target.Seq, next)
	})
	if err != nil {
		return nil, err
	}
	if opts.ReturnAfter {
		return opts.Projection.Apply(after), nil
	}
	return opts.Projection.Apply(before), nil
}

// Find returns a cursor over the documents matching f. The set of documents
// is fixed when Find returns; later writes do not affect the cursor.
func (c *Collection) Find(f query.Filter, opts *FindOptions) (*Cursor, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &FindOptions{}
	}
	pred, err := query.Compile(f)
	if err != nil {
		return nil, err
	}

	var snapshot []*domain.Document
	err = c.withReadLock(func() error {
		entries := c.scanLocked(f)
		snapshot = make([]*domain.Document, len(entries))
		for i, e := range entries {
			snapshot[i] = e.Doc
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(opts.Sort) == 0 {
		return newFilterCursor(snapshot, pred, opts.Skip, opts.Limit, opts.Projection), nil
	}

	matched := snapshot[:0]
	for _, d := range snapshot {
		if pred(d) {
			matched = append(matched, d)
		}
	}
	opts.Sort.Apply(matched)
	return newFilterCursor(matched, query.MatchAll, opts.Skip, opts.Limit, opts.Projection), nil
}

// FindOne returns the first document Find would yield, or ErrNotFound.
func (c *Collection) FindOne(f query.Filter, opts *FindOptions) (*domain.Document, error) {
	one := FindOptions{Limit: 1}
	if opts != nil {
		one = *opts
		one.Limit = 1
	}
	cur, err := c.Find(f, &one)
	if err != nil {
		return nil, err
	}
	defer cur.Close()
	if !cur.Next() {
		return nil, domain.Errorf(domain.ErrNotFound, c.name, "no document matches the filter")
	}
	return cur.Document(), nil
}

// CountDocuments counts the documents matching f.
func (c *Collection) CountDocuments(f query.Filter) (int64, error) {
	pred, err := query.Compile(f)
	if err != nil {
		return 0, err
	}
	var n int64
	err = c.withReadLock(func() error {
		for _, e := range c.scanLocked(f) {
			if pred(e.Doc) {
				n++
			}
		}
		return nil
	})
	return n, err
}
