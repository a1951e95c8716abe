package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/go-docdb/pkg/codec"
	"github.com/adfharrison1/go-docdb/pkg/domain"
	"github.com/adfharrison1/go-docdb/pkg/query"
)

func people() []*domain.Document {
	mk := func(name string, age int32, score domain.Value) *domain.Document {
		d := domain.D(
			domain.E{Key: "name", Value: domain.String(name)},
			domain.E{Key: "age", Value: domain.Int32(age)},
		)
		if !score.IsNull() {
			d.Set("score", score)
		}
		return d
	}
	return []*domain.Document{
		mk("John", 26, domain.Int32(10)),
		mk("Ann", 31, domain.Double(2.5)),
		mk("Ivan", 26, domain.Int64(5)),
		mk("Zoe", 40, domain.Null()),
	}
}

func run(t *testing.T, p Pipeline, docs []*domain.Document) []*domain.Document {
	t.Helper()
	c, err := p.Compile()
	require.NoError(t, err)
	return c.Run(docs)
}

func get(t *testing.T, d *domain.Document, key string) domain.Value {
	t.Helper()
	v, ok := d.Get(key)
	require.True(t, ok, "missing %s in %s", key, d)
	return v
}

func TestGroupCountsSharedKey(t *testing.T) {
	out := run(t, Pipeline{
		Match(query.Eq("age", domain.Int32(26))),
		GroupBy("age", Sum("count", Literal(domain.Int32(1)))),
	}, people())

	require.Len(t, out, 1)
	assert.True(t, get(t, out[0], "_id").Equal(domain.Int32(26)))
	assert.True(t, get(t, out[0], "count").Equal(domain.Int32(2)))
}

func TestGroupAccumulators(t *testing.T) {
	out := run(t, Pipeline{
		GroupBy("age",
			Sum("total", FieldRef("score")),
			Avg("avg", FieldRef("score")),
			Min("min", FieldRef("name")),
			Max("max", FieldRef("score")),
			Count("n"),
		),
	}, people())

	require.Len(t, out, 3)
	// first appearance order
	assert.True(t, get(t, out[0], "_id").Equal(domain.Int32(26)))
	assert.True(t, get(t, out[1], "_id").Equal(domain.Int32(31)))
	assert.True(t, get(t, out[2], "_id").Equal(domain.Int32(40)))

	g26 := out[0]
	assert.True(t, get(t, g26, "total").Equal(domain.Int64(15)))
	assert.True(t, get(t, g26, "avg").Equal(domain.Double(7.5)))
	assert.True(t, get(t, g26, "min").Equal(domain.String("Ivan")))
	assert.True(t, get(t, g26, "max").Equal(domain.Int32(10)))
	assert.True(t, get(t, g26, "n").Equal(domain.Int32(2)))

	g31 := out[1]
	assert.True(t, get(t, g31, "total").Equal(domain.Double(2.5)))

	// no score at all
	g40 := out[2]
	assert.True(t, get(t, g40, "total").Equal(domain.Int32(0)))
	assert.True(t, get(t, g40, "avg").IsNull())
	assert.True(t, get(t, g40, "max").IsNull())
}

func TestGroupMissingKeyGroupsUnderNull(t *testing.T) {
	docs := []*domain.Document{
		domain.D(domain.E{Key: "a", Value: domain.Int32(1)}),
		domain.D(domain.E{Key: "b", Value: domain.Int32(1)}),
		domain.D(domain.E{Key: "a", Value: domain.Null()}),
	}
	out := run(t, Pipeline{GroupBy("a", Count("n"))}, docs)
	require.Len(t, out, 2)
	assert.True(t, get(t, out[1], "_id").IsNull())
	assert.True(t, get(t, out[1], "n").Equal(domain.Int32(2)))

	// a constant key puts everything in one group
	out = run(t, Pipeline{Group(Literal(domain.Null()), Count("n"))}, docs)
	require.Len(t, out, 1)
	assert.True(t, get(t, out[0], "n").Equal(domain.Int32(3)))
}

func TestGroupNormalizesNumericKeys(t *testing.T) {
	docs := []*domain.Document{
		domain.D(domain.E{Key: "k", Value: domain.Int32(1)}),
		domain.D(domain.E{Key: "k", Value: domain.Double(1)}),
	}
	out := run(t, Pipeline{GroupBy("k", Count("n"))}, docs)
	require.Len(t, out, 1)
	assert.True(t, get(t, out[0], "n").Equal(domain.Int32(2)))
}

func TestSortSkipLimit(t *testing.T) {
	out := run(t, Pipeline{
		Sort(query.By(query.Desc("age"), query.Asc("name"))),
		Skip(1),
		Limit(2),
	}, people())

	require.Len(t, out, 2)
	assert.True(t, get(t, out[0], "name").Equal(domain.String("Ann")))
	assert.True(t, get(t, out[1], "name").Equal(domain.String("Ivan")))

	assert.Empty(t, run(t, Pipeline{Skip(10)}, people()))
}

func TestRunDoesNotModifyInput(t *testing.T) {
	docs := people()
	first := docs[0]
	run(t, Pipeline{Sort(query.By(query.Asc("name"))), Match(query.Eq("name", domain.String("Zoe")))}, docs)
	assert.Same(t, first, docs[0])
	assert.Len(t, docs, 4)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		stage Stage
	}{
		{"bad match", Match(query.And())},
		{"empty sort", Sort(nil)},
		{"negative skip", Skip(-1)},
		{"zero limit", Limit(0)},
		{"bad key path", GroupBy("a..b")},
		{"duplicate output", GroupBy("a", Count("n"), Count("n"))},
		{"id output", GroupBy("a", Count("_id"))},
		{"bad operand", GroupBy("a", Sum("s", FieldRef("x..y")))},
		{"nil stage", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Pipeline{tt.stage}.Compile()
			assert.ErrorIs(t, err, domain.ErrInvalidPipeline)
		})
	}
}

func parseJSON(t *testing.T, js string) []domain.Value {
	t.Helper()
	doc, err := codec.UnmarshalExtJSON([]byte(`{"p": ` + js + `}`))
	require.NoError(t, err)
	v, _ := doc.Get("p")
	elems, ok := v.ArrayValue()
	require.True(t, ok)
	return elems
}

func TestParse(t *testing.T) {
	p, err := Parse(parseJSON(t, `[
		{"$match": {"age": {"$lt": 35}}},
		{"$group": {"_id": "$age", "count": {"$sum": 1}, "best": {"$max": "$score"}}},
		{"$sort": {"count": -1}},
		{"$limit": 1}
	]`))
	require.NoError(t, err)

	out := run(t, p, people())
	require.Len(t, out, 1)
	assert.True(t, get(t, out[0], "_id").Equal(domain.Int32(26)))
	assert.True(t, get(t, out[0], "count").Equal(domain.Int32(2)))
	assert.True(t, get(t, out[0], "best").Equal(domain.Int32(10)))

	for _, bad := range []string{
		`[1]`,
		`[{"$match": {}, "$sort": {"a": 1}}]`,
		`[{"$project": {"a": 1}}]`,
		`[{"$group": {"count": {"$sum": 1}}}]`,
		`[{"$group": {"_id": null, "c": {"$push": "$a"}}}]`,
		`[{"$limit": "x"}]`,
	} {
		_, err := Parse(parseJSON(t, bad))
		assert.ErrorIs(t, err, domain.ErrInvalidPipeline, bad)
	}
}
