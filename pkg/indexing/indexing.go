package indexing

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/adfharrison1/go-docdb/pkg/domain"
)

// IDIndexName is the name of the mandatory unique index on _id.
const IDIndexName = "_id_"

// Key is one indexed field and its direction (1 or -1).
type Key struct {
	Field     string `json:"field"`
	Direction int    `json:"direction"`
}

// IndexSpec describes an index.
type IndexSpec struct {
	Name   string `json:"name"`
	Keys   []Key  `json:"keys"`
	Unique bool   `json:"unique"`
	// ExpireAfter is stored but documents never expire.
	ExpireAfter time.Duration `json:"expireAfter,omitempty"`
}

// DefaultName builds the conventional index name, e.g. "name_1_age_-1".
func (s IndexSpec) DefaultName() string {
	parts := make([]string, 0, len(s.Keys)*2)
	for _, k := range s.Keys {
		parts = append(parts, k.Field, strconv.Itoa(k.Direction))
	}
	return strings.Join(parts, "_")
}

func (s IndexSpec) fields() string {
	names := make([]string, len(s.Keys))
	for i, k := range s.Keys {
		names[i] = k.Field
	}
	return strings.Join(names, ",")
}

func (s IndexSpec) sameDefinition(o IndexSpec) bool {
	if s.Unique != o.Unique || len(s.Keys) != len(o.Keys) {
		return false
	}
	for i := range s.Keys {
		if s.Keys[i] != o.Keys[i] {
			return false
		}
	}
	return true
}

// Validate checks the keys of s.
func (s IndexSpec) Validate() error {
	if len(s.Keys) == 0 {
		return domain.Errorf(domain.ErrInvalidIndex, "", "index needs at least one key")
	}
	seen := make(map[string]bool, len(s.Keys))
	for _, k := range s.Keys {
		if !domain.ValidPath(k.Field) {
			return domain.Errorf(domain.ErrInvalidIndex, k.Field, "invalid field path")
		}
		if k.Direction != 1 && k.Direction != -1 {
			return domain.Errorf(domain.ErrInvalidIndex, k.Field, "direction must be 1 or -1")
		}
		if seen[k.Field] {
			return domain.Errorf(domain.ErrInvalidIndex, k.Field, "field listed twice")
		}
		seen[k.Field] = true
	}
	if s.ExpireAfter < 0 {
		return domain.Errorf(domain.ErrInvalidIndex, s.fields(), "expireAfter must not be negative")
	}
	return nil
}

// Entry is a stored document together with its insertion sequence number.
type Entry struct {
	Seq uint64
	Doc *domain.Document
}

// Index maps canonical value keys to the sequence numbers of the documents
// holding them.
type Index struct {
	Spec     IndexSpec
	Inverted map[string][]uint64
}

// NewIndex creates an empty index for spec.
func NewIndex(spec IndexSpec) *Index {
	return &Index{
		Spec:     spec,
		Inverted: make(map[string][]uint64),
	}
}

// keysFor returns the distinct index keys doc contributes. Single-field
// indexes are multikey: every resolved value (array elements included) gets an
// entry. Compound indexes key the tuple of the plain field values. A missing
// field is indexed as null.
func (idx *Index) keysFor(doc *domain.Document) []string {
	if len(idx.Spec.Keys) == 1 {
		values := doc.Resolve(idx.Spec.Keys[0].Field)
		if len(values) == 0 {
			return []string{domain.CanonicalKey(domain.Null())}
		}
		seen := make(map[string]bool, len(values))
		keys := make([]string, 0, len(values))
		for _, v := range values {
			k := domain.CanonicalKey(v)
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
		return keys
	}

	tuple := make([]domain.Value, len(idx.Spec.Keys))
	for i, k := range idx.Spec.Keys {
		v, ok := doc.Lookup(k.Field)
		if !ok {
			v = domain.Null()
		}
		tuple[i] = v
	}
	return []string{domain.CanonicalKey(domain.Array(tuple...))}
}

// BuildIndex indexes every entry, failing on the first unique violation.
func (idx *Index) BuildIndex(entries []Entry) error {
	for _, e := range entries {
		if err := idx.conflict(e.Seq, e.Doc); err != nil {
			return err
		}
		idx.add(e.Seq, e.Doc)
	}
	return nil
}

// Query returns the sequence numbers of documents holding value in the
// indexed field.
func (idx *Index) Query(value domain.Value) []uint64 {
	return idx.Inverted[domain.CanonicalKey(value)]
}

// UpdateIndex moves seq from the keys of oldDoc to the keys of newDoc.
// Either document may be nil for inserts and deletes.
func (idx *Index) UpdateIndex(seq uint64, oldDoc, newDoc *domain.Document) {
	if oldDoc != nil {
		idx.remove(seq, oldDoc)
	}
	if newDoc != nil {
		idx.add(seq, newDoc)
	}
}

func (idx *Index) add(seq uint64, doc *domain.Document) {
	for _, k := range idx.keysFor(doc) {
		idx.Inverted[k] = append(idx.Inverted[k], seq)
	}
}

func (idx *Index) remove(seq uint64, doc *domain.Document) {
	for _, k := range idx.keysFor(doc) {
		list := idx.Inverted[k]
		for i, s := range list {
			if s == seq {
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(list) == 0 {
			delete(idx.Inverted, k)
		} else {
			idx.Inverted[k] = list
		}
	}
}

// conflict reports a unique violation if doc, stored as seq, would share a key
// with another document.
func (idx *Index) conflict(seq uint64, doc *domain.Document) error {
	if !idx.Spec.Unique {
		return nil
	}
	for _, k := range idx.keysFor(doc) {
		for _, other := range idx.Inverted[k] {
			if other != seq {
				return domain.Errorf(domain.ErrDuplicateKey, idx.Spec.fields(),
					"index %s dup key %s", idx.Spec.Name, k)
			}
		}
	}
	return nil
}

// IndexEngine holds the indexes of one collection. It is not safe for
// concurrent use; the owning collection serializes access.
type IndexEngine struct {
	indexes map[string]*Index
	order   []string
}

// NewIndexEngine creates an engine holding only the unique _id index.
func NewIndexEngine() *IndexEngine {
	ie := &IndexEngine{indexes: make(map[string]*Index)}
	id := NewIndex(IndexSpec{
		Name:   IDIndexName,
		Keys:   []Key{{Field: domain.IDField, Direction: 1}},
		Unique: true,
	})
	ie.indexes[IDIndexName] = id
	ie.order = append(ie.order, IDIndexName)
	return ie
}

// CreateIndex builds a new index over entries and returns its name. Creating an
// index identical to an existing one is a no-op; reusing a name for a
// different definition fails with ErrInvalidIndex. If the existing documents
// violate a unique spec, nothing is created and ErrDuplicateKey is returned.
func (ie *IndexEngine) CreateIndex(spec IndexSpec, entries []Entry) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	if spec.Name == "" {
		spec.Name = spec.DefaultName()
	}
	if existing, ok := ie.indexes[spec.Name]; ok {
		if existing.Spec.sameDefinition(spec) {
			return spec.Name, nil
		}
		return "", domain.Errorf(domain.ErrInvalidIndex, spec.fields(),
			"index %s already exists with a different definition", spec.Name)
	}
	for _, name := range ie.order {
		if ie.indexes[name].Spec.sameDefinition(spec) {
			return "", domain.Errorf(domain.ErrInvalidIndex, spec.fields(),
				"index with the same keys already exists as %s", name)
		}
	}

	index := NewIndex(spec)
	if err := index.BuildIndex(entries); err != nil {
		return "", err
	}
	ie.indexes[spec.Name] = index
	ie.order = append(ie.order, spec.Name)
	return spec.Name, nil
}

// DropIndex removes the named index. The _id index cannot be dropped.
func (ie *IndexEngine) DropIndex(name string) error {
	if name == IDIndexName {
		return domain.Errorf(domain.ErrInvalidIndex, name, "cannot drop the _id index")
	}
	if _, exists := ie.indexes[name]; !exists {
		return domain.Errorf(domain.ErrNotFound, name, "index does not exist")
	}
	delete(ie.indexes, name)
	for i, n := range ie.order {
		if n == name {
			ie.order = append(ie.order[:i], ie.order[i+1:]...)
			break
		}
	}
	return nil
}

// GetIndexes returns the index specs in creation order.
func (ie *IndexEngine) GetIndexes() []IndexSpec {
	out := make([]IndexSpec, 0, len(ie.order))
	for _, name := range ie.order {
		spec := ie.indexes[name].Spec
		spec.Keys = append([]Key{}, spec.Keys...)
		out = append(out, spec)
	}
	return out
}

// GetIndex returns the named index.
func (ie *IndexEngine) GetIndex(name string) (*Index, bool) {
	idx, ok := ie.indexes[name]
	return idx, ok
}

// CheckUnique verifies that storing doc as seq violates no unique index.
// It must be called before UpdateIndexForDocument so a failed write leaves the
// indexes untouched.
func (ie *IndexEngine) CheckUnique(seq uint64, doc *domain.Document) error {
	for _, name := range ie.order {
		if err := ie.indexes[name].conflict(seq, doc); err != nil {
			return err
		}
	}
	return nil
}

// UpdateIndexForDocument updates every index when a document changes. oldDoc
// is nil for inserts and newDoc is nil for deletes.
func (ie *IndexEngine) UpdateIndexForDocument(seq uint64, oldDoc, newDoc *domain.Document) {
	for _, index := range ie.indexes {
		index.UpdateIndex(seq, oldDoc, newDoc)
	}
}

// Candidates narrows an equality lookup to the documents a single-field index
// says can match. It returns the sequence numbers in ascending order and
// false when no index covers any of the terms.
func (ie *IndexEngine) Candidates(terms map[string]domain.Value) ([]uint64, bool) {
	var best []uint64
	found := false
	for _, name := range ie.order {
		idx := ie.indexes[name]
		if len(idx.Spec.Keys) != 1 {
			continue
		}
		v, ok := terms[idx.Spec.Keys[0].Field]
		if !ok {
			continue
		}
		seqs := idx.Query(v)
		if !found || len(seqs) < len(best) {
			best, found = seqs, true
		}
	}
	if !found {
		return nil, false
	}
	out := append([]uint64{}, best...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, true
}

// ParseKeys converts {"name": 1, "age": -1} into index keys.
func ParseKeys(doc *domain.Document) ([]Key, error) {
	keys := make([]Key, 0, doc.Len())
	for _, e := range doc.Elements() {
		n, ok := e.Value.Int64()
		if !ok {
			return nil, domain.Errorf(domain.ErrInvalidIndex, e.Key, "direction must be 1 or -1")
		}
		keys = append(keys, Key{Field: e.Key, Direction: int(n)})
	}
	return keys, nil
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.Field, k.Direction)
}
