package query

import (
	"sort"
	"strings"

	"github.com/adfharrison1/go-docdb/pkg/domain"
)

// Direction is the order of a sort key.
type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// SortField is one (path, direction) pair.
type SortField struct {
	Path      string
	Direction Direction
}

// Sort is an ordered list of sort keys compared lexicographically.
type Sort []SortField

// Asc and Desc build sort keys.
func Asc(path string) SortField  { return SortField{Path: path, Direction: Ascending} }
func Desc(path string) SortField { return SortField{Path: path, Direction: Descending} }

// By builds a Sort from its keys.
func By(fields ...SortField) Sort { return Sort(fields) }

// Validate checks every path and direction.
func (s Sort) Validate() error {
	for _, f := range s {
		if !domain.ValidPath(f.Path) {
			return domain.Errorf(domain.ErrInvalidFilter, f.Path, "invalid sort path")
		}
		if f.Direction != Ascending && f.Direction != Descending {
			return domain.Errorf(domain.ErrInvalidFilter, f.Path, "sort direction must be 1 or -1")
		}
	}
	return nil
}

// Compare orders a and b by the sort keys. A document missing a key sorts
// before every document that has it, whatever the direction.
func (s Sort) Compare(a, b *domain.Document) int {
	for _, f := range s {
		av, aok := a.Lookup(f.Path)
		bv, bok := b.Lookup(f.Path)
		switch {
		case !aok && !bok:
			continue
		case !aok:
			return -1
		case !bok:
			return 1
		}
		if c := domain.Compare(av, bv); c != 0 {
			return c * int(f.Direction)
		}
	}
	return 0
}

// Apply sorts docs in place. The sort is stable, so ties keep their
// incoming (insertion) order.
func (s Sort) Apply(docs []*domain.Document) {
	if len(s) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return s.Compare(docs[i], docs[j]) < 0
	})
}

func (s Sort) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		if f.Direction == Descending {
			parts[i] = "-" + f.Path
		} else {
			parts[i] = f.Path
		}
	}
	return strings.Join(parts, ",")
}

// ParseSort converts a {"field": 1, "other": -1} document into a Sort.
func ParseSort(doc *domain.Document) (Sort, error) {
	var s Sort
	for _, e := range doc.Elements() {
		n, ok := e.Value.Int64()
		if !ok || (n != 1 && n != -1) {
			return nil, domain.Errorf(domain.ErrInvalidFilter, e.Key, "sort direction must be 1 or -1")
		}
		s = append(s, SortField{Path: e.Key, Direction: Direction(n)})
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
