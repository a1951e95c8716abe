package domain

import (
	"strconv"
	"strings"
)

// SplitPath splits a dotted field path into its segments.
func SplitPath(path string) []string {
	return strings.Split(path, ".")
}

// ValidPath reports whether every segment of a dotted path is non-empty.
func ValidPath(path string) bool {
	if path == "" {
		return false
	}
	for _, seg := range SplitPath(path) {
		if seg == "" {
			return false
		}
	}
	return true
}

// Lookup walks a dotted path through nested documents, and through arrays when
// the segment is a numeric position. It does not fan out over array elements.
func (d *Document) Lookup(path string) (Value, bool) {
	if d == nil {
		return Value{}, false
	}
	segs := SplitPath(path)
	cur, ok := d.values[segs[0]]
	if !ok {
		return Value{}, false
	}
	for _, seg := range segs[1:] {
		switch cur.kind {
		case KindDocument:
			cur, ok = cur.doc.values[seg]
			if !ok {
				return Value{}, false
			}
		case KindArray:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(cur.arr) {
				return Value{}, false
			}
			cur = cur.arr[idx]
		default:
			return Value{}, false
		}
	}
	return cur, true
}

// Resolve returns every value a query predicate on path should be tested against.
// Intermediate arrays fan out over their document elements, and an array found at
// the end of the path contributes both itself and each of its elements.
// An empty result means the path is missing.
func (d *Document) Resolve(path string) []Value {
	if d == nil {
		return nil
	}
	return resolve(Value{kind: KindDocument, doc: d}, SplitPath(path), nil)
}

func resolve(cur Value, segs []string, out []Value) []Value {
	if len(segs) == 0 {
		out = append(out, cur)
		if cur.kind == KindArray {
			out = append(out, cur.arr...)
		}
		return out
	}
	switch cur.kind {
	case KindDocument:
		next, ok := cur.doc.values[segs[0]]
		if !ok {
			return out
		}
		return resolve(next, segs[1:], out)
	case KindArray:
		if idx, err := strconv.Atoi(segs[0]); err == nil && idx >= 0 && idx < len(cur.arr) {
			out = resolve(cur.arr[idx], segs[1:], out)
		}
		for _, e := range cur.arr {
			if e.kind == KindDocument {
				out = resolve(e, segs, out)
			}
		}
	}
	return out
}
