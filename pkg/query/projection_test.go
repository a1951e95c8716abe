package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/go-docdb/pkg/domain"
)

func TestProjectionApply(t *testing.T) {
	tests := []struct {
		name string
		proj Projection
		keys []string
	}{
		{"zero keeps everything", Projection{}, person().Keys()},
		{"include keeps id first", Include("name", "age"), []string{"_id", "name", "age"}},
		{"include without id", Include("name").WithoutID(), []string{"name"}},
		{"include nested", Include("clothes.feet"), []string{"_id", "clothes"}},
		{"include missing", Include("hat"), []string{"_id"}},
		{"exclude", Exclude("clothes", "tags", "pets", "spouse", "joined", "score"), []string{"_id", "name", "age"}},
		{"exclude id", Exclude("name").WithoutID(), []string{"age", "score", "joined", "clothes", "tags", "pets", "spouse"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.proj.Apply(person())
			assert.Equal(t, tt.keys, out.Keys())
		})
	}
}

func TestProjectionNestedPaths(t *testing.T) {
	doc := person()

	in := Include("clothes.feet").Apply(doc)
	clothes, ok := in.Get("clothes")
	require.True(t, ok)
	sub, _ := clothes.DocumentValue()
	assert.Equal(t, []string{"feet"}, sub.Keys())

	out := Exclude("clothes.feet").Apply(doc)
	clothes, ok = out.Get("clothes")
	require.True(t, ok)
	sub, _ = clothes.DocumentValue()
	assert.Equal(t, []string{"torso"}, sub.Keys())

	// the source document is untouched
	orig, _ := doc.Get("clothes")
	sub, _ = orig.DocumentValue()
	assert.Equal(t, 2, sub.Len())
}

func TestParseProjection(t *testing.T) {
	p, err := ParseProjection(domain.D(
		domain.E{Key: "name", Value: domain.Int32(1)},
		domain.E{Key: "_id", Value: domain.Int32(0)},
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, p.Apply(person()).Keys())

	p, err = ParseProjection(domain.D(domain.E{Key: "name", Value: domain.Bool(false)}))
	require.NoError(t, err)
	assert.False(t, p.Apply(person()).Has("name"))

	_, err = ParseProjection(domain.D(
		domain.E{Key: "name", Value: domain.Int32(1)},
		domain.E{Key: "age", Value: domain.Int32(0)},
	))
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)

	_, err = ParseProjection(domain.D(domain.E{Key: "name", Value: domain.String("yes")}))
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
}
