package codec

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/go-docdb/pkg/domain"
)

type testData struct {
	Data string
}

func TestEncodeDocumentConversion(t *testing.T) {
	id := uuid.New()
	now := time.Now()

	doc, err := DefaultRegistry.EncodeDocument(map[string]any{
		"_id":          id,
		"intVal":       int32(1),
		"longVal":      int64(1),
		"doubleVal":    1.00,
		"stringVal":    "123",
		"byteArrayVal": []byte{1, 2, 3},
		"homListVal":   []string{"123", "231", "321"},
		"hetListVal":   []any{"123", int32(123), 123.123},
		"mapVal":       map[string]any{"a": "b", "c": "d"},
		"utilDateVal":  now,
	})
	require.NoError(t, err)

	tests := []struct {
		key  string
		kind domain.Kind
	}{
		{"_id", domain.KindObjectID},
		{"intVal", domain.KindInt32},
		{"longVal", domain.KindInt64},
		{"doubleVal", domain.KindDouble},
		{"stringVal", domain.KindString},
		{"byteArrayVal", domain.KindBinary},
		{"homListVal", domain.KindArray},
		{"hetListVal", domain.KindArray},
		{"mapVal", domain.KindDocument},
		{"utilDateVal", domain.KindDateTime},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v, ok := doc.Get(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.kind, v.Kind())
		})
	}

	// maps come back as sub-documents, lists as generic slices
	var mapVal *domain.Document
	require.NoError(t, Decode(doc.GetOr("mapVal", domain.Null()), &mapVal))
	assert.True(t, mapVal.Equal(domain.D(
		domain.E{Key: "a", Value: domain.String("b")},
		domain.E{Key: "c", Value: domain.String("d")},
	)))

	var generic any
	require.NoError(t, Decode(doc.GetOr("hetListVal", domain.Null()), &generic))
	assert.Equal(t, []any{"123", int32(123), 123.123}, generic)

	var homList []string
	require.NoError(t, Decode(doc.GetOr("homListVal", domain.Null()), &homList))
	assert.Equal(t, []string{"123", "231", "321"}, homList)

	var gotID uuid.UUID
	require.NoError(t, Decode(doc.GetOr("_id", domain.Null()), &gotID))
	assert.Equal(t, id, gotID)
}

func TestEncodeRejectsUnsupportedTypes(t *testing.T) {
	tests := []struct {
		name  string
		value any
		path  string
	}{
		{"custom struct", testData{Data: "::data::"}, ""},
		{"int slice", []int{1, 2, 3}, ""},
		{"fixed array", [3]int32{1, 2, 3}, ""},
		{"rune slice", []rune{'1', '2', '3'}, ""},
		{"duration", time.Minute, ""},
		{"nested custom", map[string]any{"objVal": testData{}}, "objVal"},
		{"custom in list", []any{"123", 123, testData{}}, "2"},
		{"uint64 overflow", uint64(1 << 63), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.value)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrUnsupportedType))
			assert.Equal(t, tt.path, domain.PathOf(err))
		})
	}
}

func TestNumericWidthConversion(t *testing.T) {
	// same width round-trips exactly
	var i32 int32
	require.NoError(t, Decode(domain.Int32(123), &i32))
	assert.Equal(t, int32(123), i32)

	var i64 int64
	require.NoError(t, Decode(domain.Int64(1<<40), &i64))
	assert.Equal(t, int64(1<<40), i64)

	// different widths convert silently
	require.NoError(t, Decode(domain.Int32(7), &i64))
	assert.Equal(t, int64(7), i64)

	require.NoError(t, Decode(domain.Int64(1<<32+5), &i32))
	assert.Equal(t, int32(5), i32)

	var f float64
	require.NoError(t, Decode(domain.Int64(3), &f))
	assert.Equal(t, 3.0, f)

	require.NoError(t, Decode(domain.Double(2.9), &i32))
	assert.Equal(t, int32(2), i32)

	// int encodes with the platform width
	v, err := Encode(123)
	require.NoError(t, err)
	assert.Equal(t, domain.KindInt64, v.Kind())
}

func TestDecodeTypeMismatch(t *testing.T) {
	var s string
	err := Decode(domain.Int32(1), &s)
	assert.ErrorIs(t, err, domain.ErrTypeMismatch)

	var n int32
	err = Decode(domain.String("1"), &n)
	assert.ErrorIs(t, err, domain.ErrTypeMismatch)

	var list []string
	err = Decode(domain.Array(domain.String("a"), domain.Int32(1)), &list)
	assert.ErrorIs(t, err, domain.ErrTypeMismatch)

	var m map[string]any
	err = Decode(domain.Array(), &m)
	assert.ErrorIs(t, err, domain.ErrTypeMismatch)
}

func TestDecodeGenericAlwaysSucceeds(t *testing.T) {
	values := []domain.Value{
		domain.Null(),
		domain.Bool(true),
		domain.Int32(1),
		domain.Int64(2),
		domain.Double(3.5),
		domain.String("s"),
		domain.Binary([]byte{9}),
		domain.DateTimeMillis(1000),
		domain.OID(domain.NewObjectID()),
		domain.Array(domain.Int32(1)),
		domain.Doc(domain.D(domain.E{Key: "k", Value: domain.Int32(1)})),
	}
	for _, v := range values {
		t.Run(v.Kind().String(), func(t *testing.T) {
			var out any
			require.NoError(t, Decode(v, &out))
			back, err := Encode(out)
			require.NoError(t, err)
			assert.True(t, v.Equal(back), "%s != %s", v, back)
		})
	}
}

func TestRoundTripPreservesDocument(t *testing.T) {
	original := domain.D(
		domain.E{Key: "_id", Value: domain.OID(domain.NewObjectID())},
		domain.E{Key: "n", Value: domain.Int32(26)},
		domain.E{Key: "clothes", Value: domain.Doc(domain.D(
			domain.E{Key: "torso", Value: domain.String("shirt")},
			domain.E{Key: "feet", Value: domain.String("shoes")},
		))},
		domain.E{Key: "when", Value: domain.DateTime(time.Now())},
	)

	encoded, err := Encode(original)
	require.NoError(t, err)

	var decoded *domain.Document
	require.NoError(t, Decode(encoded, &decoded))
	assert.True(t, original.Equal(decoded))
	assert.Equal(t, original.Keys(), decoded.Keys())
}

func TestRegisteredType(t *testing.T) {
	r := NewRegistry()
	Register(r,
		func(d testData) (domain.Value, error) {
			return domain.Doc(domain.D(domain.E{Key: "data", Value: domain.String(d.Data)})), nil
		},
		func(v domain.Value) (testData, error) {
			doc, ok := v.DocumentValue()
			if !ok {
				return testData{}, domain.Errorf(domain.ErrTypeMismatch, "", "want document")
			}
			s, err := Get[string](doc, "data")
			return testData{Data: s}, err
		},
	)

	v, err := r.Encode(map[string]any{"objVal": testData{Data: "::data::"}})
	require.NoError(t, err)

	doc, _ := v.DocumentValue()
	var out testData
	require.NoError(t, r.Decode(doc.GetOr("objVal", domain.Null()), &out))
	assert.Equal(t, "::data::", out.Data)

	// the default registry still rejects it
	_, err = Encode(testData{})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestGet(t *testing.T) {
	doc := domain.D(
		domain.E{Key: "age", Value: domain.Int32(26)},
		domain.E{Key: "clothes", Value: domain.Doc(domain.D(domain.E{Key: "feet", Value: domain.String("shoes")}))},
	)

	age, err := Get[int32](doc, "age")
	require.NoError(t, err)
	assert.Equal(t, int32(26), age)

	feet, err := Get[string](doc, "clothes.feet")
	require.NoError(t, err)
	assert.Equal(t, "shoes", feet)

	_, err = Get[string](doc, "age")
	assert.ErrorIs(t, err, domain.ErrTypeMismatch)
	assert.Equal(t, "age", domain.PathOf(err))

	_, err = Get[string](doc, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
