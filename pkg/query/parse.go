package query

import (
	"strings"

	"github.com/adfharrison1/go-docdb/pkg/domain"
)

// ParseFilter converts a MongoDB-style query document into a Filter.
//
//	{"name": "John", "age": {"$gte": 18, "$lt": 65}, "$or": [{"a": 1}, {"b": 2}]}
//
// An empty or nil document yields a nil Filter, which matches everything.
func ParseFilter(doc *domain.Document) (Filter, error) {
	if doc.Len() == 0 {
		return nil, nil
	}
	var terms []Filter
	for _, e := range doc.Elements() {
		f, err := parseTerm(e.Key, e.Value)
		if err != nil {
			return nil, err
		}
		terms = append(terms, f)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return And(terms...), nil
}

func parseTerm(key string, v domain.Value) (Filter, error) {
	if !strings.HasPrefix(key, "$") {
		return parseField(key, v)
	}

	var op LogicOp
	switch key {
	case "$and":
		op = LogicAnd
	case "$or":
		op = LogicOr
	case "$nor":
		op = LogicNor
	default:
		return nil, domain.Errorf(domain.ErrInvalidFilter, key, "unknown top-level operator")
	}
	elems, ok := v.ArrayValue()
	if !ok || len(elems) == 0 {
		return nil, domain.Errorf(domain.ErrInvalidFilter, key, "expects a non-empty array")
	}
	children := make([]Filter, 0, len(elems))
	for _, e := range elems {
		sub, ok := e.DocumentValue()
		if !ok {
			return nil, domain.Errorf(domain.ErrInvalidFilter, key, "array elements must be documents")
		}
		child, err := ParseFilter(sub)
		if err != nil {
			return nil, err
		}
		if child == nil {
			child = Exists(domain.IDField, true)
		}
		children = append(children, child)
	}
	return Logic{Op: op, Children: children}, nil
}

// parseField handles {path: literal} and {path: {$op: operand, ...}}.
func parseField(path string, v domain.Value) (Filter, error) {
	ops, ok := v.DocumentValue()
	if !ok || !isOperatorDoc(ops) {
		return Eq(path, v), nil
	}

	var terms []Filter
	for _, e := range ops.Elements() {
		if e.Key == "$options" {
			continue
		}
		f, err := parseOperator(path, e.Key, e.Value, ops)
		if err != nil {
			return nil, err
		}
		terms = append(terms, f)
	}
	if len(terms) == 0 {
		return nil, domain.Errorf(domain.ErrInvalidFilter, path, "$options without $regex")
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return And(terms...), nil
}

func isOperatorDoc(d *domain.Document) bool {
	keys := d.Keys()
	return len(keys) > 0 && strings.HasPrefix(keys[0], "$")
}

func parseOperator(path, op string, v domain.Value, siblings *domain.Document) (Filter, error) {
	switch op {
	case "$eq":
		return Eq(path, v), nil
	case "$ne":
		return Ne(path, v), nil
	case "$gt":
		return Gt(path, v), nil
	case "$gte":
		return Gte(path, v), nil
	case "$lt":
		return Lt(path, v), nil
	case "$lte":
		return Lte(path, v), nil
	case "$in", "$nin":
		elems, ok := v.ArrayValue()
		if !ok {
			return nil, domain.Errorf(domain.ErrInvalidFilter, path, "%s expects an array", op)
		}
		if op == "$in" {
			return In(path, elems...), nil
		}
		return Nin(path, elems...), nil
	case "$regex":
		pattern, ok := v.StringValue()
		if !ok {
			return nil, domain.Errorf(domain.ErrInvalidFilter, path, "$regex expects a string")
		}
		var options string
		if o, ok := siblings.Get("$options"); ok {
			if options, ok = o.StringValue(); !ok {
				return nil, domain.Errorf(domain.ErrInvalidFilter, path, "$options expects a string")
			}
		}
		return Regex(path, pattern, options), nil
	case "$type":
		return parseType(path, v)
	case "$exists":
		b, ok := v.BoolValue()
		if !ok {
			if n, isNum := v.Int64(); isNum {
				b, ok = n != 0, true
			}
		}
		if !ok {
			return nil, domain.Errorf(domain.ErrInvalidFilter, path, "$exists expects a boolean")
		}
		return Exists(path, b), nil
	case "$not":
		inner, ok := v.DocumentValue()
		if !ok || !isOperatorDoc(inner) {
			return nil, domain.Errorf(domain.ErrInvalidFilter, path, "$not expects an operator document")
		}
		child, err := parseField(path, v)
		if err != nil {
			return nil, err
		}
		return Not(child), nil
	}
	return nil, domain.Errorf(domain.ErrInvalidFilter, path, "unknown operator %s", op)
}

// parseType accepts a type alias ("string", "int", "number", ...) or an
// array of aliases.
func parseType(path string, v domain.Value) (Filter, error) {
	if elems, ok := v.ArrayValue(); ok {
		if len(elems) == 0 {
			return nil, domain.Errorf(domain.ErrInvalidFilter, path, "$type expects at least one type")
		}
		children := make([]Filter, 0, len(elems))
		for _, e := range elems {
			f, err := parseType(path, e)
			if err != nil {
				return nil, err
			}
			children = append(children, f)
		}
		return Or(children...), nil
	}

	alias, ok := v.StringValue()
	if !ok {
		return nil, domain.Errorf(domain.ErrInvalidFilter, path, "$type expects a type name")
	}
	if alias == "number" {
		return Or(
			TypeIs(path, domain.KindInt32),
			TypeIs(path, domain.KindInt64),
			TypeIs(path, domain.KindDouble),
		), nil
	}
	kind, ok := domain.ParseKind(alias)
	if !ok {
		return nil, domain.Errorf(domain.ErrInvalidFilter, path, "unknown type %q", alias)
	}
	return TypeIs(path, kind), nil
}
