package storage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/go-docdb/pkg/domain"
	"github.com/adfharrison1/go-docdb/pkg/indexing"
	"github.com/adfharrison1/go-docdb/pkg/query"
)

// LargeDatasetSize is big enough to show the index paying off without
// slowing the suite down.
const LargeDatasetSize = 10000

func loadDataset(tb testing.TB, coll *Collection) {
	tb.Helper()
	docs := make([]*domain.Document, LargeDatasetSize)
	for i := range docs {
		docs[i] = domain.D(
			domain.E{Key: "name", Value: domain.String(fmt.Sprintf("user%d", i))},
			domain.E{Key: "age", Value: domain.Int32(int32(i % 100))},
			domain.E{Key: "city", Value: domain.String(fmt.Sprintf("city%d", i%50))},
		)
	}
	_, err := coll.InsertMany(docs, nil)
	require.NoError(tb, err)
}

func TestIndexedQueryNarrowsScan(t *testing.T) {
	coll := newTestCollection(t)
	loadDataset(t, coll)

	filter := query.And(
		query.Eq("city", domain.String("city7")),
		query.Gte("age", domain.Int32(50)),
	)
	want, err := coll.CountDocuments(filter)
	require.NoError(t, err)

	_, err = coll.CreateIndex([]indexing.Key{{Field: "city", Direction: 1}}, nil)
	require.NoError(t, err)

	coll.mu.RLock()
	scanned := len(coll.scanLocked(filter))
	coll.mu.RUnlock()
	assert.Equal(t, LargeDatasetSize/50, scanned)

	// Same answer with and without the index
	got, err := coll.CountDocuments(filter)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestIndexedQueryMatchesScanForLargeNumbers(t *testing.T) {
	const big = int64(1)<<53 + 1
	plain := newTestCollection(t)
	indexed := newTestCollection(t)
	_, err := indexed.CreateIndex([]indexing.Key{{Field: "n", Direction: 1}}, nil)
	require.NoError(t, err)
	for _, coll := range []*Collection{plain, indexed} {
		_, err := coll.InsertMany([]*domain.Document{
			domain.D(domain.E{Key: "n", Value: domain.Int64(big)}),
			domain.D(domain.E{Key: "n", Value: domain.Int64(big - 1)}),
			domain.D(domain.E{Key: "n", Value: domain.Double(2.5)}),
		}, nil)
		require.NoError(t, err)
	}

	tests := []struct {
		name     string
		filter   query.Filter
		expected int64
	}{
		{"double below int64 value", query.Eq("n", domain.Double(float64(big-1))), 1},
		{"exact int64", query.Eq("n", domain.Int64(big)), 1},
		{"int against fractional double", query.Eq("n", domain.Int32(2)), 0},
		{"in with mixed widths", query.In("n", domain.Double(2.5), domain.Int64(big)), 2},
		{"range", query.Gt("n", domain.Double(float64(big-1))), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want, err := plain.CountDocuments(tt.filter)
			require.NoError(t, err)
			got, err := indexed.CountDocuments(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, want)
			assert.Equal(t, want, got)
		})
	}
}

func BenchmarkFind(b *testing.B) {
	for _, indexed := range []bool{false, true} {
		b.Run(fmt.Sprintf("indexed=%v", indexed), func(b *testing.B) {
			coll := newBenchCollection(b)
			loadDataset(b, coll)
			if indexed {
				_, err := coll.CreateIndex([]indexing.Key{{Field: "name", Direction: 1}}, nil)
				require.NoError(b, err)
			}
			filter := query.Eq("name", domain.String("user4242"))

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := coll.FindOne(filter, nil); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkInsertOne(b *testing.B) {
	coll := newBenchCollection(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := coll.InsertOne(domain.D(domain.E{Key: "n", Value: domain.Int32(int32(i))})); err != nil {
			b.Fatal(err)
		}
	}
}

func newBenchCollection(b *testing.B) *Collection {
	b.Helper()
	db, err := NewEngine().Database("bench")
	require.NoError(b, err)
	coll, err := db.Collection("docs")
	require.NoError(b, err)
	return coll
}
