package update

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/go-docdb/pkg/codec"
	"github.com/adfharrison1/go-docdb/pkg/domain"
)

func john() *domain.Document {
	return domain.D(
		domain.E{Key: "_id", Value: domain.Int32(1)},
		domain.E{Key: "name", Value: domain.String("John")},
		domain.E{Key: "age", Value: domain.Int32(26)},
		domain.E{Key: "clothes", Value: domain.Doc(domain.D(
			domain.E{Key: "feet", Value: domain.String("shoes")},
		))},
	)
}

func TestSetLeavesOtherFieldsUnchanged(t *testing.T) {
	orig := john()

	out, err := Set("name", domain.String("Johny")).Apply(orig)
	require.NoError(t, err)

	name, _ := out.Get("name")
	assert.True(t, name.Equal(domain.String("Johny")))
	assert.Equal(t, orig.Keys(), out.Keys())
	for _, k := range []string{"_id", "age", "clothes"} {
		a, _ := orig.Get(k)
		b, _ := out.Get(k)
		assert.True(t, a.Equal(b), k)
	}

	// the input is never mutated
	name, _ = orig.Get("name")
	assert.True(t, name.Equal(domain.String("John")))
}

func TestSetCreatesIntermediateDocuments(t *testing.T) {
	out, err := Set("address.geo.lat", domain.Double(1.5)).Apply(john())
	require.NoError(t, err)

	v, ok := out.Lookup("address.geo.lat")
	require.True(t, ok)
	assert.True(t, v.Equal(domain.Double(1.5)))

	out, err = Set("clothes.torso", domain.String("shirt")).Apply(john())
	require.NoError(t, err)
	clothes, _ := out.Get("clothes")
	sub, _ := clothes.DocumentValue()
	assert.Equal(t, []string{"feet", "torso"}, sub.Keys())
}

func TestCombineLaterOperationsWin(t *testing.T) {
	u := Combine(
		Set("name", domain.String("A")),
		Set("age", domain.Int32(1)),
		Set("name", domain.String("B")),
	)
	out, err := u.Apply(john())
	require.NoError(t, err)

	name, _ := out.Get("name")
	assert.True(t, name.Equal(domain.String("B")))
	age, _ := out.Get("age")
	assert.True(t, age.Equal(domain.Int32(1)))
}

func TestUnsetAndInc(t *testing.T) {
	out, err := Combine(
		Unset("clothes.feet"),
		Unset("missing.path"),
		Inc("age", domain.Int32(1)),
		Inc("visits", domain.Int64(3)),
	).Apply(john())
	require.NoError(t, err)

	_, ok := out.Lookup("clothes.feet")
	assert.False(t, ok)
	age, _ := out.Get("age")
	assert.True(t, age.Equal(domain.Int32(27)))
	visits, _ := out.Get("visits")
	assert.True(t, visits.Equal(domain.Int64(3)))
}

func TestIncNumericTyping(t *testing.T) {
	tests := []struct {
		name  string
		start domain.Value
		delta domain.Value
		want  domain.Value
	}{
		{"int32", domain.Int32(1), domain.Int32(2), domain.Int32(3)},
		{"int32 overflow", domain.Int32(math.MaxInt32), domain.Int32(1), domain.Int64(math.MaxInt32 + 1)},
		{"int64", domain.Int32(1), domain.Int64(2), domain.Int64(3)},
		{"double", domain.Int64(1), domain.Double(0.5), domain.Double(1.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := domain.D(domain.E{Key: "n", Value: tt.start})
			out, err := Inc("n", tt.delta).Apply(doc)
			require.NoError(t, err)
			got, _ := out.Get("n")
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestApplyErrors(t *testing.T) {
	tests := []struct {
		name   string
		update Update
		path   string
	}{
		{"empty combine", Combine(), ""},
		{"bad path", Set("a..b", domain.Int32(1)), "a..b"},
		{"change id", Set("_id", domain.Int32(2)), "_id"},
		{"unset id", Unset("_id"), "_id"},
		{"inc non-numeric operand", Inc("age", domain.String("1")), "age"},
		{"inc non-numeric field", Inc("name", domain.Int32(1)), "name"},
		{"set through scalar", Set("name.first", domain.String("J")), "name.first"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.update.Apply(john())
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidUpdate)
			assert.Equal(t, tt.path, domain.PathOf(err))
		})
	}

	// re-setting the same _id is allowed
	_, err := Set("_id", domain.Int32(1)).Apply(john())
	assert.NoError(t, err)
}

func TestParse(t *testing.T) {
	doc, err := codec.UnmarshalExtJSON([]byte(`{"$set": {"name": "Johny", "clothes.torso": "shirt"}, "$inc": {"age": 1}, "$unset": {"clothes.feet": ""}}`))
	require.NoError(t, err)

	u, err := Parse(doc)
	require.NoError(t, err)
	require.Len(t, u, 4)

	out, err := u.Apply(john())
	require.NoError(t, err)
	name, _ := out.Get("name")
	assert.True(t, name.Equal(domain.String("Johny")))
	age, _ := out.Get("age")
	assert.True(t, age.Equal(domain.Int32(27)))
	_, ok := out.Lookup("clothes.feet")
	assert.False(t, ok)
	torso, _ := out.Lookup("clothes.torso")
	assert.True(t, torso.Equal(domain.String("shirt")))

	for _, bad := range []string{`{}`, `{"$push": {"a": 1}}`, `{"$set": 1}`, `{"name": "x"}`, `{"$inc": {"a": "x"}}`} {
		doc, err := codec.UnmarshalExtJSON([]byte(bad))
		require.NoError(t, err)
		_, err = Parse(doc)
		assert.ErrorIs(t, err, domain.ErrInvalidUpdate, bad)
	}
}
