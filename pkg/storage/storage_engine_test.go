package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/go-docdb/pkg/domain"
	"github.com/adfharrison1/go-docdb/pkg/query"
)

func newTestCollection(t *testing.T, options ...Option) *Collection {
	t.Helper()
	engine := NewEngine(options...)
	db, err := engine.Database("test")
	require.NoError(t, err)
	coll, err := db.Collection("people")
	require.NoError(t, err)
	return coll
}

func named(name string, age int32) *domain.Document {
	return domain.D(
		domain.E{Key: "name", Value: domain.String(name)},
		domain.E{Key: "age", Value: domain.Int32(age)},
	)
}

func TestEngine_DatabaseAndCollectionLifecycle(t *testing.T) {
	engine := NewEngine()

	db, err := engine.Database("app")
	require.NoError(t, err)
	again, err := engine.Database("app")
	require.NoError(t, err)
	assert.Same(t, db, again)

	// A database shows up only once it holds a collection
	assert.Empty(t, engine.DatabaseNames())

	users, err := db.Collection("users")
	require.NoError(t, err)
	_, err = db.Collection("orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, db.ListCollectionNames())
	assert.Equal(t, []string{"app"}, engine.DatabaseNames())

	sameUsers, err := db.Collection("users")
	require.NoError(t, err)
	assert.Same(t, users, sameUsers)
	assert.Equal(t, "users", users.Name())
	assert.Same(t, db, users.Database())
}

func TestEngine_InvalidNames(t *testing.T) {
	engine := NewEngine()
	for _, name := range []string{"", "a$b", "a/b", "nul\x00"} {
		_, err := engine.Database(name)
		assert.ErrorIs(t, err, domain.ErrInvalidOptions, "database %q", name)
	}

	db, err := engine.Database("ok")
	require.NoError(t, err)
	_, err = db.Collection("$cmd")
	assert.ErrorIs(t, err, domain.ErrInvalidOptions)
}

func TestCollection_Drop(t *testing.T) {
	engine := NewEngine()
	db, err := engine.Database("app")
	require.NoError(t, err)
	coll, err := db.Collection("users")
	require.NoError(t, err)
	_, err = coll.InsertOne(named("John", 26))
	require.NoError(t, err)

	require.NoError(t, coll.Drop())
	assert.Empty(t, db.ListCollectionNames())

	// The old handle is unusable
	_, err = coll.InsertOne(named("Ann", 31))
	assert.ErrorIs(t, err, domain.ErrCollectionDropped)
	_, err = coll.CountDocuments(nil)
	assert.ErrorIs(t, err, domain.ErrCollectionDropped)
	assert.ErrorIs(t, coll.Drop(), domain.ErrCollectionDropped)

	// The name can be reused and starts empty
	fresh, err := db.Collection("users")
	require.NoError(t, err)
	n, err := fresh.CountDocuments(nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDatabase_Drop(t *testing.T) {
	engine := NewEngine()
	db, err := engine.Database("app")
	require.NoError(t, err)
	users, err := db.Collection("users")
	require.NoError(t, err)
	_, err = users.InsertOne(named("John", 26))
	require.NoError(t, err)

	require.NoError(t, engine.DropDatabase("app"))
	assert.Empty(t, db.ListCollectionNames())
	assert.Empty(t, engine.DatabaseNames())

	_, err = users.Find(nil, nil)
	assert.ErrorIs(t, err, domain.ErrCollectionDropped)

	// The database stays usable
	users, err = db.Collection("users")
	require.NoError(t, err)
	_, err = users.InsertOne(named("Ann", 31))
	require.NoError(t, err)
}

func TestDatabase_CreateCollection(t *testing.T) {
	engine := NewEngine()
	db, err := engine.Database("app")
	require.NoError(t, err)

	coll, err := db.CreateCollection("log", CollectionOptions{Capped: true, SizeInBytes: 1000})
	require.NoError(t, err)
	assert.Equal(t, CollectionOptions{Capped: true, SizeInBytes: 1024}, coll.Options())

	_, err = db.CreateCollection("log", CollectionOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidOptions)
}

func TestCollectionOptions_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		in      CollectionOptions
		want    CollectionOptions
		wantErr bool
	}{
		{"plain", CollectionOptions{}, CollectionOptions{}, false},
		{"minimum size", CollectionOptions{Capped: true}, CollectionOptions{Capped: true, SizeInBytes: 256}, false},
		{"rounded up", CollectionOptions{Capped: true, SizeInBytes: 257}, CollectionOptions{Capped: true, SizeInBytes: 512}, false},
		{"exact multiple", CollectionOptions{Capped: true, SizeInBytes: 4096, MaxDocuments: 3}, CollectionOptions{Capped: true, SizeInBytes: 4096, MaxDocuments: 3}, false},
		{"negative", CollectionOptions{Capped: true, SizeInBytes: -1}, CollectionOptions{}, true},
		{"limits without capped", CollectionOptions{MaxDocuments: 5}, CollectionOptions{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.normalize()
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidOptions)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCappedCollection_EvictsOldest(t *testing.T) {
	engine := NewEngine()
	db, err := engine.Database("app")
	require.NoError(t, err)
	coll, err := db.CreateCollection("events", CollectionOptions{Capped: true, MaxDocuments: 3, SizeInBytes: 1 << 20})
	require.NoError(t, err)

	for i := int32(0); i < 5; i++ {
		_, err := coll.InsertOne(domain.D(
			domain.E{Key: "_id", Value: domain.Int32(i)},
		))
		require.NoError(t, err)
	}

	docs, err := findAll(t, coll, nil, nil)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	for i, doc := range docs {
		id, _ := doc.ID()
		assert.True(t, id.Equal(domain.Int32(int32(i+2))), "got %v", id)
	}

	// Evicted ids no longer collide
	_, err = coll.InsertOne(domain.D(domain.E{Key: "_id", Value: domain.Int32(0)}))
	require.NoError(t, err)
}

func TestCappedCollection_SizeLimit(t *testing.T) {
	engine := NewEngine()
	db, err := engine.Database("app")
	require.NoError(t, err)
	coll, err := db.CreateCollection("events", CollectionOptions{Capped: true, SizeInBytes: 256})
	require.NoError(t, err)

	payload := domain.String(string(make([]byte, 60)))
	for i := int32(0); i < 10; i++ {
		_, err := coll.InsertOne(domain.D(
			domain.E{Key: "_id", Value: domain.Int32(i)},
			domain.E{Key: "payload", Value: payload},
		))
		require.NoError(t, err)
	}

	n, err := coll.CountDocuments(nil)
	require.NoError(t, err)
	assert.Less(t, n, int64(10))
	assert.Greater(t, n, int64(0))

	last, err := coll.FindOne(query.Eq("_id", domain.Int32(9)), nil)
	require.NoError(t, err)
	assert.NotNil(t, last)

	coll.mu.RLock()
	assert.LessOrEqual(t, coll.size, coll.opts.SizeInBytes)
	coll.mu.RUnlock()

	// A document that can never fit is rejected
	huge := domain.String(string(make([]byte, 512)))
	_, err = coll.InsertOne(domain.D(domain.E{Key: "payload", Value: huge}))
	assert.ErrorIs(t, err, domain.ErrInvalidOptions)
}

func TestEngine_DefaultCollectionOptions(t *testing.T) {
	coll := newTestCollection(t, WithDefaultCollectionOptions(CollectionOptions{Capped: true, MaxDocuments: 1}))
	_, err := coll.InsertOne(named("John", 26))
	require.NoError(t, err)
	_, err = coll.InsertOne(named("Ann", 31))
	require.NoError(t, err)

	n, err := coll.CountDocuments(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestEngine_Stats(t *testing.T) {
	engine := NewEngine()
	db, err := engine.Database("app")
	require.NoError(t, err)
	coll, err := db.Collection("users")
	require.NoError(t, err)
	_, err = coll.InsertMany([]*domain.Document{named("John", 26), named("Ann", 31)}, nil)
	require.NoError(t, err)
	_, err = engine.Database("empty")
	require.NoError(t, err)

	stats := engine.Stats()
	assert.Equal(t, 1, stats.Databases)
	assert.Equal(t, 1, stats.Collections)
	assert.Equal(t, int64(2), stats.Documents)
	assert.Positive(t, stats.NumGoroutines)
}

func findAll(t *testing.T, coll *Collection, f query.Filter, opts *FindOptions) ([]*domain.Document, error) {
	t.Helper()
	cur, err := coll.Find(f, opts)
	if err != nil {
		return nil, err
	}
	return cur.All()
}
