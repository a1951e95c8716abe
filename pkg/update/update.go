// Package update builds and applies field-mutation operations.
//
// Applying an Update never modifies its input: Apply works on a copy and
// returns the new document, so a stored document is only replaced once the
// new version has been fully built.
package update

import (
	"github.com/adfharrison1/go-docdb/pkg/domain"
)

// OpKind identifies a field operation.
type OpKind int

const (
	OpSet OpKind = iota
	OpUnset
	OpInc
)

func (k OpKind) String() string {
	switch k {
	case OpSet:
		return "$set"
	case OpUnset:
		return "$unset"
	case OpInc:
		return "$inc"
	}
	return "unknown"
}

// Op is one field mutation.
type Op struct {
	Kind  OpKind
	Path  string
	Value domain.Value
}

// Update is an ordered list of operations applied to the same document.
// Later operations on a path override earlier ones.
type Update []Op

// Set assigns value at path, creating intermediate documents as needed.
func Set(path string, value domain.Value) Update {
	return Update{{Kind: OpSet, Path: path, Value: value}}
}

// Unset removes path. Removing a missing path is a no-op.
func Unset(path string) Update {
	return Update{{Kind: OpUnset, Path: path}}
}

// Inc adds a numeric delta to path; a missing path is set to the delta.
func Inc(path string, delta domain.Value) Update {
	return Update{{Kind: OpInc, Path: path, Value: delta}}
}

// Combine concatenates updates in order.
func Combine(updates ...Update) Update {
	var out Update
	for _, u := range updates {
		out = append(out, u...)
	}
	if out == nil {
		out = Update{}
	}
	return out
}

// Validate checks the update is well formed: non-empty, valid paths, numeric
// $inc operands and no change to _id.
func (u Update) Validate() error {
	if len(u) == 0 {
		return domain.Errorf(domain.ErrInvalidUpdate, "", "update has no operations")
	}
	for _, op := range u {
		if !domain.ValidPath(op.Path) {
			return domain.Errorf(domain.ErrInvalidUpdate, op.Path, "invalid field path")
		}
		switch op.Kind {
		case OpSet:
		case OpUnset:
			if op.Path == domain.IDField {
				return domain.Errorf(domain.ErrInvalidUpdate, op.Path, "cannot unset _id")
			}
		case OpInc:
			if !op.Value.Kind().IsNumeric() {
				return domain.Errorf(domain.ErrInvalidUpdate, op.Path, "$inc requires a numeric operand, got %s", op.Value.Kind())
			}
			if op.Path == domain.IDField {
				return domain.Errorf(domain.ErrInvalidUpdate, op.Path, "cannot modify _id")
			}
		default:
			return domain.Errorf(domain.ErrInvalidUpdate, op.Path, "unknown operation %d", op.Kind)
		}
	}
	return nil
}

// Apply validates u and returns the updated copy of doc.
func (u Update) Apply(doc *domain.Document) (*domain.Document, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	out := doc.Clone()
	if out == nil {
		out = domain.NewDocument()
	}
	for _, op := range u {
		if err := apply(out, op); err != nil {
			return nil, err
		}
	}

	before, hadID := doc.Get(domain.IDField)
	after, hasID := out.Get(domain.IDField)
	if hadID && (!hasID || !before.Equal(after)) {
		return nil, domain.Errorf(domain.ErrInvalidUpdate, domain.IDField, "_id is immutable")
	}
	return out, nil
}

func apply(doc *domain.Document, op Op) error {
	segs := domain.SplitPath(op.Path)
	switch op.Kind {
	case OpSet:
		return setPath(doc, segs, op.Path, func(domain.Value, bool) (domain.Value, error) {
			return op.Value, nil
		})
	case OpUnset:
		unsetPath(doc, segs)
		return nil
	case OpInc:
		return setPath(doc, segs, op.Path, func(cur domain.Value, exists bool) (domain.Value, error) {
			if !exists {
				return op.Value, nil
			}
			if !cur.Kind().IsNumeric() {
				return domain.Value{}, domain.Errorf(domain.ErrInvalidUpdate, op.Path, "cannot $inc a %s field", cur.Kind())
			}
			sum, _ := domain.Add(cur, op.Value)
			return sum, nil
		})
	}
	return nil
}

// setPath replaces the leaf at segs with fn(current). Intermediate documents are
// created when missing; traversing through a non-document value fails.
func setPath(doc *domain.Document, segs []string, path string, fn func(domain.Value, bool) (domain.Value, error)) error {
	key := segs[0]
	cur, exists := doc.Get(key)
	if len(segs) == 1 {
		v, err := fn(cur, exists)
		if err != nil {
			return err
		}
		doc.Set(key, v)
		return nil
	}

	var child *domain.Document
	switch {
	case !exists:
		child = domain.NewDocument()
	case cur.Kind() == domain.KindDocument:
		child, _ = cur.DocumentValue()
	default:
		return domain.Errorf(domain.ErrInvalidUpdate, path, "cannot create field %q inside a %s", segs[1], cur.Kind())
	}
	if err := setPath(child, segs[1:], path, fn); err != nil {
		return err
	}
	doc.Set(key, domain.Doc(child))
	return nil
}

func unsetPath(doc *domain.Document, segs []string) {
	if len(segs) == 1 {
		doc.Delete(segs[0])
		return
	}
	cur, ok := doc.Get(segs[0])
	if !ok {
		return
	}
	child, ok := cur.DocumentValue()
	if !ok {
		return
	}
	unsetPath(child, segs[1:])
	doc.Set(segs[0], domain.Doc(child))
}
