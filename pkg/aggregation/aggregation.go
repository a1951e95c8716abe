// Package aggregation evaluates pipelines of stages over document sequences.
package aggregation

import (
	"github.com/adfharrison1/go-docdb/pkg/domain"
	"github.com/adfharrison1/go-docdb/pkg/query"
)

// Stage is one step of a pipeline.
type Stage interface {
	compile() (stageFunc, error)
}

type stageFunc func(docs []*domain.Document) []*domain.Document

// Pipeline is an ordered list of stages evaluated left to right.
type Pipeline []Stage

// Compiled is a validated pipeline ready to run.
type Compiled struct {
	funcs []stageFunc
}

// Compile validates every stage.
func (p Pipeline) Compile() (*Compiled, error) {
	c := &Compiled{funcs: make([]stageFunc, 0, len(p))}
	for _, s := range p {
		if s == nil {
			return nil, domain.Errorf(domain.ErrInvalidPipeline, "", "nil stage")
		}
		fn, err := s.compile()
		if err != nil {
			return nil, err
		}
		c.funcs = append(c.funcs, fn)
	}
	return c, nil
}

// Run feeds docs through every stage. The input slice is not modified.
func (c *Compiled) Run(docs []*domain.Document) []*domain.Document {
	out := append([]*domain.Document{}, docs...)
	for _, fn := range c.funcs {
		out = fn(out)
	}
	return out
}

type matchStage struct {
	filter query.Filter
}

// Match keeps the documents satisfying f.
func Match(f query.Filter) Stage {
	return matchStage{filter: f}
}

func (s matchStage) compile() (stageFunc, error) {
	pred, err := query.Compile(s.filter)
	if err != nil {
		return nil, domain.Errorf(domain.ErrInvalidPipeline, domain.PathOf(err), "$match: %v", err)
	}
	return func(docs []*domain.Document) []*domain.Document {
		out := docs[:0]
		for _, d := range docs {
			if pred(d) {
				out = append(out, d)
			}
		}
		return out
	}, nil
}

type sortStage struct {
	sort query.Sort
}

// Sort orders documents with the same rules as a find sort.
func Sort(s query.Sort) Stage {
	return sortStage{sort: s}
}

func (s sortStage) compile() (stageFunc, error) {
	if len(s.sort) == 0 {
		return nil, domain.Errorf(domain.ErrInvalidPipeline, "", "$sort needs at least one key")
	}
	if err := s.sort.Validate(); err != nil {
		return nil, domain.Errorf(domain.ErrInvalidPipeline, domain.PathOf(err), "$sort: %v", err)
	}
	return func(docs []*domain.Document) []*domain.Document {
		s.sort.Apply(docs)
		return docs
	}, nil
}

type skipStage int64

// Skip drops the first n documents.
func Skip(n int64) Stage { return skipStage(n) }

func (s skipStage) compile() (stageFunc, error) {
	if s < 0 {
		return nil, domain.Errorf(domain.ErrInvalidPipeline, "", "$skip must not be negative")
	}
	n := int64(s)
	return func(docs []*domain.Document) []*domain.Document {
		if n >= int64(len(docs)) {
			return nil
		}
		return docs[n:]
	}, nil
}

type limitStage int64

// Limit keeps at most n documents.
func Limit(n int64) Stage { return limitStage(n) }

func (s limitStage) compile() (stageFunc, error) {
	if s <= 0 {
		return nil, domain.Errorf(domain.ErrInvalidPipeline, "", "$limit must be positive")
	}
	n := int64(s)
	return func(docs []*domain.Document) []*domain.Document {
		if n < int64(len(docs)) {
			return docs[:n]
		}
		return docs
	}, nil
}
