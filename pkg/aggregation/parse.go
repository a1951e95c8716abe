package aggregation

import (
	"strings"

	"github.com/adfharrison1/go-docdb/pkg/domain"
	"github.com/adfharrison1/go-docdb/pkg/query"
)

// Parse converts an array of stage documents such as
//
//	[{"$match": {"age": {"$gt": 20}}},
//	 {"$group": {"_id": "$age", "count": {"$sum": 1}}},
//	 {"$sort": {"count": -1}}]
//
// into a Pipeline.
func Parse(stages []domain.Value) (Pipeline, error) {
	p := make(Pipeline, 0, len(stages))
	for i, v := range stages {
		doc, ok := v.DocumentValue()
		if !ok || doc.Len() != 1 {
			return nil, domain.Errorf(domain.ErrInvalidPipeline, "", "stage %d must be a document with exactly one operator", i)
		}
		e := doc.Elements()[0]
		stage, err := parseStage(e.Key, e.Value)
		if err != nil {
			return nil, err
		}
		p = append(p, stage)
	}
	return p, nil
}

func parseStage(name string, arg domain.Value) (Stage, error) {
	switch name {
	case "$match":
		doc, ok := arg.DocumentValue()
		if !ok {
			return nil, domain.Errorf(domain.ErrInvalidPipeline, name, "expects a document")
		}
		f, err := query.ParseFilter(doc)
		if err != nil {
			return nil, err
		}
		return Match(f), nil
	case "$sort":
		doc, ok := arg.DocumentValue()
		if !ok {
			return nil, domain.Errorf(domain.ErrInvalidPipeline, name, "expects a document")
		}
		s, err := query.ParseSort(doc)
		if err != nil {
			return nil, err
		}
		return Sort(s), nil
	case "$skip", "$limit":
		n, ok := arg.Int64()
		if !ok {
			return nil, domain.Errorf(domain.ErrInvalidPipeline, name, "expects a number")
		}
		if name == "$skip" {
			return Skip(n), nil
		}
		return Limit(n), nil
	case "$group":
		doc, ok := arg.DocumentValue()
		if !ok {
			return nil, domain.Errorf(domain.ErrInvalidPipeline, name, "expects a document")
		}
		return parseGroup(doc)
	}
	return nil, domain.Errorf(domain.ErrInvalidPipeline, name, "unknown stage")
}

func parseGroup(doc *domain.Document) (Stage, error) {
	keyVal, ok := doc.Get(domain.IDField)
	if !ok {
		return nil, domain.Errorf(domain.ErrInvalidPipeline, "$group", "a group _id is required")
	}
	key := parseOperand(keyVal)

	var accs []Accumulator
	for _, e := range doc.Elements() {
		if e.Key == domain.IDField {
			continue
		}
		spec, ok := e.Value.DocumentValue()
		if !ok || spec.Len() != 1 {
			return nil, domain.Errorf(domain.ErrInvalidPipeline, e.Key, "accumulator must be a single-operator document")
		}
		a := spec.Elements()[0]
		operand := parseOperand(a.Value)
		switch a.Key {
		case "$sum":
			accs = append(accs, Sum(e.Key, operand))
		case "$avg":
			accs = append(accs, Avg(e.Key, operand))
		case "$min":
			accs = append(accs, Min(e.Key, operand))
		case "$max":
			accs = append(accs, Max(e.Key, operand))
		case "$count":
			accs = append(accs, Count(e.Key))
		default:
			return nil, domain.Errorf(domain.ErrInvalidPipeline, e.Key, "unknown accumulator %s", a.Key)
		}
	}
	return Group(key, accs...), nil
}

// parseOperand treats "$path" strings as field references.
func parseOperand(v domain.Value) Operand {
	if s, ok := v.StringValue(); ok && strings.HasPrefix(s, "$") && len(s) > 1 {
		return FieldRef(s[1:])
	}
	return Literal(v)
}
