package aggregation

import (
	"github.com/adfharrison1/go-docdb/pkg/domain"
)

// Operand is an accumulator or group-key input: a field path evaluated per
// document, or a constant.
type Operand struct {
	path    string
	literal domain.Value
}

// FieldRef reads the value at path from each document.
func FieldRef(path string) Operand { return Operand{path: path} }

// Literal is the same value for every document.
func Literal(v domain.Value) Operand { return Operand{literal: v} }

func (o Operand) eval(doc *domain.Document) (domain.Value, bool) {
	if o.path == "" {
		return o.literal, true
	}
	return doc.Lookup(o.path)
}

func (o Operand) validate() error {
	if o.path != "" && !domain.ValidPath(o.path) {
		return domain.Errorf(domain.ErrInvalidPipeline, o.path, "invalid field path")
	}
	return nil
}

// AccOp identifies an accumulator function.
type AccOp int

const (
	AccSum AccOp = iota
	AccAvg
	AccMin
	AccMax
	AccCount
)

// Accumulator computes one output field per group.
type Accumulator struct {
	Field   string
	Op      AccOp
	Operand Operand
}

// Sum adds the numeric operand values of each group. Non-numeric values are
// ignored; an empty sum is Int32(0).
func Sum(field string, operand Operand) Accumulator {
	return Accumulator{Field: field, Op: AccSum, Operand: operand}
}

// Avg is the Double mean of the numeric operand values, or null.
func Avg(field string, operand Operand) Accumulator {
	return Accumulator{Field: field, Op: AccAvg, Operand: operand}
}

// Min is the smallest present, non-null operand value, or null.
func Min(field string, operand Operand) Accumulator {
	return Accumulator{Field: field, Op: AccMin, Operand: operand}
}

// Max is the largest present, non-null operand value, or null.
func Max(field string, operand Operand) Accumulator {
	return Accumulator{Field: field, Op: AccMax, Operand: operand}
}

// Count is the number of documents in the group.
func Count(field string) Accumulator {
	return Accumulator{Field: field, Op: AccCount}
}

// state is the running value of one accumulator within one group.
type state struct {
	op    AccOp
	value domain.Value
	sum   float64
	n     int64
	seen  bool
}

func newState(op AccOp) *state {
	s := &state{op: op}
	if op == AccSum {
		s.value = domain.Int32(0)
	}
	return s
}

func (s *state) add(v domain.Value, present bool) {
	switch s.op {
	case AccCount:
		s.n++
	case AccSum:
		if sum, ok := domain.Add(s.value, v); ok && present {
			s.value = sum
		}
	case AccAvg:
		if f, ok := v.Float64(); ok && present {
			s.sum += f
			s.n++
		}
	case AccMin, AccMax:
		if !present || v.IsNull() {
			return
		}
		if !s.seen {
			s.value, s.seen = v, true
			return
		}
		c := domain.Compare(v, s.value)
		if (s.op == AccMin && c < 0) || (s.op == AccMax && c > 0) {
			s.value = v
		}
	}
}

func (s *state) result() domain.Value {
	switch s.op {
	case AccCount:
		if s.n <= 1<<31-1 {
			return domain.Int32(int32(s.n))
		}
		return domain.Int64(s.n)
	case AccAvg:
		if s.n == 0 {
			return domain.Null()
		}
		return domain.Double(s.sum / float64(s.n))
	case AccMin, AccMax:
		if !s.seen {
			return domain.Null()
		}
	}
	return s.value
}

type groupStage struct {
	key  Operand
	accs []Accumulator
}

// Group partitions documents by key and emits one document per distinct key
// value: {_id: key, <accumulator fields>...}. Documents missing the key field
// group under null. Groups are emitted in order of first appearance.
func Group(key Operand, accs ...Accumulator) Stage {
	return groupStage{key: key, accs: accs}
}

// GroupBy groups on the value at path.
func GroupBy(path string, accs ...Accumulator) Stage {
	return Group(FieldRef(path), accs...)
}

func (g groupStage) compile() (stageFunc, error) {
	if err := g.key.validate(); err != nil {
		return nil, err
	}
	seen := map[string]bool{domain.IDField: true}
	for _, a := range g.accs {
		if a.Field == "" || seen[a.Field] {
			return nil, domain.Errorf(domain.ErrInvalidPipeline, a.Field, "$group output field must be unique and not _id")
		}
		seen[a.Field] = true
		if a.Op < AccSum || a.Op > AccCount {
			return nil, domain.Errorf(domain.ErrInvalidPipeline, a.Field, "unknown accumulator %d", a.Op)
		}
		if err := a.Operand.validate(); err != nil {
			return nil, err
		}
	}
	return g.run, nil
}

type group struct {
	key    domain.Value
	states []*state
}

func (g groupStage) run(docs []*domain.Document) []*domain.Document {
	var order []*group
	byKey := make(map[string]*group)
	for _, d := range docs {
		k, ok := g.key.eval(d)
		if !ok {
			k = domain.Null()
		}
		ck := domain.CanonicalKey(k)
		grp, exists := byKey[ck]
		if !exists {
			grp = &group{key: k, states: make([]*state, len(g.accs))}
			for i, a := range g.accs {
				grp.states[i] = newState(a.Op)
			}
			byKey[ck] = grp
			order = append(order, grp)
		}
		for i, a := range g.accs {
			v, present := a.Operand.eval(d)
			grp.states[i].add(v, present)
		}
	}

	out := make([]*domain.Document, 0, len(order))
	for _, grp := range order {
		doc := domain.NewDocument().Set(domain.IDField, grp.key)
		for i, a := range g.accs {
			doc.Set(a.Field, grp.states[i].result())
		}
		out = append(out, doc)
	}
	return out
}
