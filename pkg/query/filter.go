// Package query implements filter trees, their compilation into predicates,
// sort specifications and projections.
package query

import (
	"regexp"
	"strings"

	"github.com/adfharrison1/go-docdb/pkg/domain"
)

// Op identifies a field-level operator.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
	OpNin
	OpRegex
	OpType
	OpExists
)

var opNames = map[Op]string{
	OpEq:     "$eq",
	OpNe:     "$ne",
	OpGt:     "$gt",
	OpGte:    "$gte",
	OpLt:     "$lt",
	OpLte:    "$lte",
	OpIn:     "$in",
	OpNin:    "$nin",
	OpRegex:  "$regex",
	OpType:   "$type",
	OpExists: "$exists",
}

func (o Op) String() string {
	return opNames[o]
}

// Filter is a node in a predicate tree. Build one with the constructors below
// (Eq, And, Regex, ...) or with ParseFilter. A nil Filter matches every document.
type Filter interface {
	filterNode()
}

// Field is a leaf predicate on the value(s) at Path.
type Field struct {
	Op      Op
	Path    string
	Value   domain.Value
	Values  []domain.Value
	Pattern string
	Options string
	Kind    domain.Kind
}

// Logic combines child filters.
type Logic struct {
	Op       LogicOp
	Children []Filter
}

// LogicOp identifies a boolean combinator.
type LogicOp int

const (
	LogicAnd LogicOp = iota
	LogicOr
	LogicNor
	LogicNot
)

func (Field) filterNode() {}
func (Logic) filterNode() {}

func Eq(path string, v domain.Value) Filter  { return Field{Op: OpEq, Path: path, Value: v} }
func Ne(path string, v domain.Value) Filter  { return Field{Op: OpNe, Path: path, Value: v} }
func Gt(path string, v domain.Value) Filter  { return Field{Op: OpGt, Path: path, Value: v} }
func Gte(path string, v domain.Value) Filter { return Field{Op: OpGte, Path: path, Value: v} }
func Lt(path string, v domain.Value) Filter  { return Field{Op: OpLt, Path: path, Value: v} }
func Lte(path string, v domain.Value) Filter { return Field{Op: OpLte, Path: path, Value: v} }

// In matches when the field equals any of values.
func In(path string, values ...domain.Value) Filter {
	return Field{Op: OpIn, Path: path, Values: values}
}

// Nin matches when the field equals none of values.
func Nin(path string, values ...domain.Value) Filter {
	return Field{Op: OpNin, Path: path, Values: values}
}

// Regex matches string fields against an RE2 pattern. Options may contain
// i, m and s.
func Regex(path, pattern, options string) Filter {
	return Field{Op: OpRegex, Path: path, Pattern: pattern, Options: options}
}

// TypeIs matches when the field holds a value of the given kind.
func TypeIs(path string, kind domain.Kind) Filter {
	return Field{Op: OpType, Path: path, Kind: kind}
}

// Exists matches on the presence (or absence) of a field.
func Exists(path string, exists bool) Filter {
	return Field{Op: OpExists, Path: path, Value: domain.Bool(exists)}
}

func And(children ...Filter) Filter { return Logic{Op: LogicAnd, Children: children} }
func Or(children ...Filter) Filter  { return Logic{Op: LogicOr, Children: children} }
func Nor(children ...Filter) Filter { return Logic{Op: LogicNor, Children: children} }
func Not(child Filter) Filter       { return Logic{Op: LogicNot, Children: []Filter{child}} }

// Predicate reports whether a document satisfies a compiled filter.
type Predicate func(doc *domain.Document) bool

// MatchAll is the predicate of a nil filter.
func MatchAll(*domain.Document) bool { return true }

// Compile validates f and turns it into a Predicate. Empty And/Or/Nor lists,
// invalid paths and bad regular expressions are rejected with ErrInvalidFilter.
func Compile(f Filter) (Predicate, error) {
	if f == nil {
		return MatchAll, nil
	}
	return compile(f)
}

// Matches compiles f and evaluates it against doc.
func Matches(f Filter, doc *domain.Document) (bool, error) {
	pred, err := Compile(f)
	if err != nil {
		return false, err
	}
	return pred(doc), nil
}

func compile(f Filter) (Predicate, error) {
	switch n := f.(type) {
	case Field:
		return compileField(n)
	case *Field:
		if n == nil {
			return nil, domain.Errorf(domain.ErrInvalidFilter, "", "nil field predicate")
		}
		return compileField(*n)
	case Logic:
		return compileLogic(n)
	case *Logic:
		if n == nil {
			return nil, domain.Errorf(domain.ErrInvalidFilter, "", "nil logical predicate")
		}
		return compileLogic(*n)
	case nil:
		return nil, domain.Errorf(domain.ErrInvalidFilter, "", "nil child filter")
	}
	return nil, domain.Errorf(domain.ErrInvalidFilter, "", "unknown filter node %T", f)
}

func compileLogic(n Logic) (Predicate, error) {
	if len(n.Children) == 0 {
		return nil, domain.Errorf(domain.ErrInvalidFilter, "", "%s requires at least one child", n.Op)
	}
	preds := make([]Predicate, len(n.Children))
	for i, c := range n.Children {
		p, err := compile(c)
		if err != nil {
			return nil, err
		}
		preds[i] = p
	}

	switch n.Op {
	case LogicAnd:
		return func(doc *domain.Document) bool {
			for _, p := range preds {
				if !p(doc) {
					return false
				}
			}
			return true
		}, nil
	case LogicOr:
		return func(doc *domain.Document) bool {
			for _, p := range preds {
				if p(doc) {
					return true
				}
			}
			return false
		}, nil
	case LogicNor:
		return func(doc *domain.Document) bool {
			for _, p := range preds {
				if p(doc) {
					return false
				}
			}
			return true
		}, nil
	case LogicNot:
		if len(preds) != 1 {
			return nil, domain.Errorf(domain.ErrInvalidFilter, "", "$not takes exactly one child")
		}
		p := preds[0]
		return func(doc *domain.Document) bool { return !p(doc) }, nil
	}
	return nil, domain.Errorf(domain.ErrInvalidFilter, "", "unknown logical operator %d", n.Op)
}

func (o LogicOp) String() string {
	switch o {
	case LogicAnd:
		return "$and"
	case LogicOr:
		return "$or"
	case LogicNor:
		return "$nor"
	case LogicNot:
		return "$not"
	}
	return "unknown"
}

func compileField(n Field) (Predicate, error) {
	if !domain.ValidPath(n.Path) {
		return nil, domain.Errorf(domain.ErrInvalidFilter, n.Path, "invalid field path")
	}
	path := n.Path

	switch n.Op {
	case OpEq:
		v := n.Value
		return func(doc *domain.Document) bool { return equals(doc.Resolve(path), v) }, nil
	case OpNe:
		v := n.Value
		return func(doc *domain.Document) bool { return !equals(doc.Resolve(path), v) }, nil
	case OpGt, OpGte, OpLt, OpLte:
		return compileRange(n), nil
	case OpIn, OpNin:
		values := append([]domain.Value{}, n.Values...)
		negate := n.Op == OpNin
		return func(doc *domain.Document) bool {
			found := doc.Resolve(path)
			for _, v := range values {
				if equals(found, v) {
					return !negate
				}
			}
			return negate
		}, nil
	case OpRegex:
		re, err := compileRegex(n.Pattern, n.Options)
		if err != nil {
			return nil, domain.Errorf(domain.ErrInvalidFilter, path, "%v", err)
		}
		return func(doc *domain.Document) bool {
			for _, v := range doc.Resolve(path) {
				if s, ok := v.StringValue(); ok && re.MatchString(s) {
					return true
				}
			}
			return false
		}, nil
	case OpType:
		kind := n.Kind
		return func(doc *domain.Document) bool {
			for _, v := range doc.Resolve(path) {
				if v.Kind() == kind {
					return true
				}
			}
			return false
		}, nil
	case OpExists:
		want, ok := n.Value.BoolValue()
		if !ok {
			return nil, domain.Errorf(domain.ErrInvalidFilter, path, "$exists takes a boolean")
		}
		return func(doc *domain.Document) bool { return (len(doc.Resolve(path)) > 0) == want }, nil
	}
	return nil, domain.Errorf(domain.ErrInvalidFilter, path, "unknown operator %d", n.Op)
}

// equals implements query equality over the resolved values of a path.
// Null also matches a missing field.
func equals(found []domain.Value, v domain.Value) bool {
	if len(found) == 0 {
		return v.IsNull()
	}
	for _, x := range found {
		if x.Matches(v) {
			return true
		}
	}
	return false
}

// compileRange builds a comparison predicate. Values of incompatible type
// classes never match.
func compileRange(n Field) Predicate {
	path, v, op := n.Path, n.Value, n.Op
	return func(doc *domain.Document) bool {
		for _, x := range doc.Resolve(path) {
			if !domain.Comparable(x, v) {
				continue
			}
			c := domain.Compare(x, v)
			switch op {
			case OpGt:
				if c > 0 {
					return true
				}
			case OpGte:
				if c >= 0 {
					return true
				}
			case OpLt:
				if c < 0 {
					return true
				}
			case OpLte:
				if c <= 0 {
					return true
				}
			}
		}
		return false
	}
}

func compileRegex(pattern, options string) (*regexp.Regexp, error) {
	var flags strings.Builder
	for _, o := range options {
		switch o {
		case 'i', 'm', 's':
			flags.WriteRune(o)
		default:
			return nil, domain.Errorf(domain.ErrInvalidFilter, "", "unsupported regex option %q", o)
		}
	}
	if flags.Len() > 0 {
		pattern = "(?" + flags.String() + ")" + pattern
	}
	return regexp.Compile(pattern)
}

// EqualityTerms returns the top-level equality constraints of f, looking
// through nested $and nodes. Null comparands are skipped since they also
// match missing fields. The result is used to pick index candidates; the
// full filter must still be evaluated against each candidate.
func EqualityTerms(f Filter) map[string]domain.Value {
	out := make(map[string]domain.Value)
	collectEqualities(f, out)
	return out
}

func collectEqualities(f Filter, out map[string]domain.Value) {
	switch n := f.(type) {
	case Field:
		if n.Op == OpEq && !n.Value.IsNull() {
			if _, seen := out[n.Path]; !seen {
				out[n.Path] = n.Value
			}
		}
	case *Field:
		if n != nil {
			collectEqualities(*n, out)
		}
	case Logic:
		if n.Op == LogicAnd {
			for _, c := range n.Children {
				collectEqualities(c, out)
			}
		}
	case *Logic:
		if n != nil {
			collectEqualities(*n, out)
		}
	}
}
