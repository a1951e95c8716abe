package storage

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/adfharrison1/go-docdb/pkg/domain"
	"github.com/adfharrison1/go-docdb/pkg/query"
	"github.com/adfharrison1/go-docdb/pkg/update"
)

// WriteModel is one operation of a bulk write.
type WriteModel interface {
	writeModel()
}

// InsertOneModel inserts a document.
type InsertOneModel struct {
	Document *domain.Document
}

// DeleteOneModel deletes the first matching document.
type DeleteOneModel struct {
	Filter query.Filter
}

// DeleteManyModel deletes every matching document.
type DeleteManyModel struct {
	Filter query.Filter
}

// UpdateOneModel updates the first matching document.
type UpdateOneModel struct {
	Filter query.Filter
	Update update.Update
}

// UpdateManyModel updates every matching document.
type UpdateManyModel struct {
	Filter query.Filter
	Update update.Update
}

func (InsertOneModel) writeModel()  {}
func (DeleteOneModel) writeModel()  {}
func (DeleteManyModel) writeModel() {}
func (UpdateOneModel) writeModel()  {}
func (UpdateManyModel) writeModel() {}

// BulkOptions control failure handling. The zero value is an ordered bulk.
type BulkOptions struct {
	// Unordered attempts every operation regardless of earlier failures.
	Unordered bool
}

// BulkWriteResult aggregates the effect of the operations that succeeded.
type BulkWriteResult struct {
	InsertedCount int64
	MatchedCount  int64
	ModifiedCount int64
	DeletedCount  int64
	// InsertedIDs maps operation index to the inserted _id.
	InsertedIDs map[int]domain.Value
}

// WriteError is the failure of a single bulk operation.
type WriteError struct {
	Index int
	Err   error
}

func (we WriteError) Error() string {
	return fmt.Sprintf("operation %d: %v", we.Index, we.Err)
}

func (we WriteError) Unwrap() error { return we.Err }

// BulkWriteError reports the operations of a bulk write that failed. Operations
// not listed either succeeded or, in an ordered bulk, were never attempted.
type BulkWriteError struct {
	WriteErrors []WriteError
	combined    error
}

func (e *BulkWriteError) Error() string {
	return fmt.Sprintf("bulk write failed: %v", e.combined)
}

// Unwrap exposes every per-operation error to errors.Is and errors.As.
func (e *BulkWriteError) Unwrap() []error {
	return multierr.Errors(e.combined)
}

// BulkWrite applies models in sequence while holding the collection write lock,
// so the batch forms one contiguous stretch of the collection's history.
//
// An ordered bulk stops at the first failing operation; an unordered bulk
// attempts all of them. Either way, operations that succeeded stay applied and
// every failure is reported in a *BulkWriteError.
func (c *Collection) BulkWrite(models []WriteModel, opts *BulkOptions) (BulkWriteResult, error) {
	if opts == nil {
		opts = &BulkOptions{}
	}
	res := BulkWriteResult{InsertedIDs: make(map[int]domain.Value)}
	if len(models) == 0 {
		return res, domain.Errorf(domain.ErrInvalidOptions, "", "bulk write needs at least one operation")
	}

	var (
		writeErrs []WriteError
		combined  error
	)
	lockErr := c.withWriteLock(func() error {
		for i, m := range models {
			if err := c.applyModelLocked(i, m, &res); err != nil {
				we := WriteError{Index: i, Err: err}
				writeErrs = append(writeErrs, we)
				combined = multierr.Append(combined, we)
				if !opts.Unordered {
					break
				}
			}
		}
		return nil
	})
	if lockErr != nil {
		return res, lockErr
	}

	if len(writeErrs) == 0 {
		return res, nil
	}
	c.db.engine.logger.Warnw("bulk write partially failed",
		"database", c.db.name,
		"collection", c.name,
		"operations", len(models),
		"failed", len(writeErrs),
		"ordered", !opts.Unordered,
	)
	return res, &BulkWriteError{WriteErrors: writeErrs, combined: combined}
}

func (c *Collection) applyModelLocked(i int, m WriteModel, res *BulkWriteResult) error {
	switch op := m.(type) {
	case InsertOneModel:
		doc, err := c.prepareInsert(op.Document)
		if err != nil {
			return err
		}
		if err := c.insertLocked(doc); err != nil {
			return err
		}
		id, _ := doc.ID()
		res.InsertedIDs[i] = id
		res.InsertedCount++
	case DeleteOneModel:
		return c.bulkDelete(op.Filter, 1, res)
	case DeleteManyModel:
		return c.bulkDelete(op.Filter, 0, res)
	case UpdateOneModel:
		return c.bulkUpdate(op.Filter, op.Update, 1, res)
	case UpdateManyModel:
		return c.bulkUpdate(op.Filter, op.Update, 0, res)
	default:
		return domain.Errorf(domain.ErrInvalidOptions, "", "unknown write model %T", m)
	}
	return nil
}

func (c *Collection) bulkDelete(f query.Filter, limit int, res *BulkWriteResult) error {
	pred, err := query.Compile(f)
	if err != nil {
		return err
	}
	res.DeletedCount += c.deleteLocked(f, pred, limit).DeletedCount
	return nil
}

func (c *Collection) bulkUpdate(f query.Filter, u update.Update, limit int, res *BulkWriteResult) error {
	pred, err := query.Compile(f)
	if err != nil {
		return err
	}
	if err := u.Validate(); err != nil {
		return err
	}
	r, err := c.updateLocked(f, pred, u, limit)
	res.MatchedCount += r.MatchedCount
	res.ModifiedCount += r.ModifiedCount
	return err
}
