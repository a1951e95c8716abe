package query

import (
	"github.com/adfharrison1/go-docdb/pkg/domain"
)

// Projection selects the fields returned for each result document.
// The zero Projection returns documents unchanged.
type Projection struct {
	include   bool
	paths     []string
	excludeID bool
}

// Include keeps only the given paths, plus _id.
func Include(paths ...string) Projection {
	return Projection{include: true, paths: paths}
}

// Exclude drops the given paths.
func Exclude(paths ...string) Projection {
	return Projection{paths: paths}
}

// WithoutID also drops _id from an inclusion projection.
func (p Projection) WithoutID() Projection {
	p.excludeID = true
	return p
}

// IsZero reports whether p leaves documents unchanged.
func (p Projection) IsZero() bool {
	return len(p.paths) == 0 && !p.excludeID
}

// Validate checks the projected paths.
func (p Projection) Validate() error {
	for _, path := range p.paths {
		if !domain.ValidPath(path) {
			return domain.Errorf(domain.ErrInvalidFilter, path, "invalid projection path")
		}
	}
	return nil
}

// pathTree is a prefix tree of projected paths; a nil child marks a leaf.
type pathTree map[string]pathTree

func buildTree(paths []string) pathTree {
	root := pathTree{}
	for _, p := range paths {
		node := root
		segs := domain.SplitPath(p)
		for i, seg := range segs {
			child, seen := node[seg]
			if seen && child == nil {
				break // a shorter path already covers this one
			}
			if i == len(segs)-1 {
				node[seg] = nil
				break
			}
			if child == nil {
				child = pathTree{}
				node[seg] = child
			}
			node = child
		}
	}
	return root
}

// Apply returns the projected copy of doc.
func (p Projection) Apply(doc *domain.Document) *domain.Document {
	if p.IsZero() {
		return doc
	}
	tree := buildTree(p.paths)
	if p.include {
		out := includeFields(doc, tree)
		if id, ok := doc.Get(domain.IDField); ok && !p.excludeID {
			if _, listed := tree[domain.IDField]; !listed {
				withID := domain.NewDocument().Set(domain.IDField, id)
				for _, e := range out.Elements() {
					withID.Set(e.Key, e.Value)
				}
				out = withID
			}
		}
		return out
	}
	if p.excludeID {
		tree[domain.IDField] = nil
	}
	return excludeFields(doc, tree)
}

func includeFields(doc *domain.Document, tree pathTree) *domain.Document {
	out := domain.NewDocument()
	for _, e := range doc.Elements() {
		sub, listed := tree[e.Key]
		if !listed {
			continue
		}
		if sub == nil {
			out.Set(e.Key, e.Value)
			continue
		}
		if nested, ok := e.Value.DocumentValue(); ok {
			if kept := includeFields(nested, sub); kept.Len() > 0 {
				out.Set(e.Key, domain.Doc(kept))
			}
		}
	}
	return out
}

func excludeFields(doc *domain.Document, tree pathTree) *domain.Document {
	out := domain.NewDocument()
	for _, e := range doc.Elements() {
		sub, listed := tree[e.Key]
		switch {
		case !listed:
			out.Set(e.Key, e.Value)
		case sub == nil:
			// dropped
		default:
			if nested, ok := e.Value.DocumentValue(); ok {
				out.Set(e.Key, domain.Doc(excludeFields(nested, sub)))
			} else {
				out.Set(e.Key, e.Value)
			}
		}
	}
	return out
}

// ParseProjection converts {"a": 1, "b.c": 1, "_id": 0} style documents.
// Inclusion and exclusion cannot be mixed, except that _id may be excluded
// from an inclusion projection.
func ParseProjection(doc *domain.Document) (Projection, error) {
	var includes, excludes []string
	excludeID := false
	for _, e := range doc.Elements() {
		on, ok := truthy(e.Value)
		if !ok {
			return Projection{}, domain.Errorf(domain.ErrInvalidFilter, e.Key, "projection value must be 0/1 or a boolean")
		}
		switch {
		case on:
			includes = append(includes, e.Key)
		case e.Key == domain.IDField:
			excludeID = true
		default:
			excludes = append(excludes, e.Key)
		}
	}

	var p Projection
	switch {
	case len(includes) > 0 && len(excludes) > 0:
		return Projection{}, domain.Errorf(domain.ErrInvalidFilter, excludes[0], "cannot mix inclusion and exclusion")
	case len(includes) > 0:
		p = Include(includes...)
	default:
		p = Exclude(excludes...)
	}
	if excludeID {
		p = p.WithoutID()
	}
	return p, p.Validate()
}

func truthy(v domain.Value) (bool, bool) {
	if b, ok := v.BoolValue(); ok {
		return b, true
	}
	if f, ok := v.Float64(); ok {
		return f != 0, true
	}
	return false, false
}
