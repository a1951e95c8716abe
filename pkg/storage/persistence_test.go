package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/go-docdb/pkg/domain"
	"github.com/adfharrison1/go-docdb/pkg/indexing"
	"github.com/adfharrison1/go-docdb/pkg/query"
)

func seedEngine(t *testing.T) *Engine {
	t.Helper()
	engine := NewEngine()
	db, err := engine.Database("app")
	require.NoError(t, err)

	users, err := db.Collection("users")
	require.NoError(t, err)
	_, err = users.InsertMany([]*domain.Document{
		domain.D(
			domain.E{Key: "_id", Value: domain.Int32(1)},
			domain.E{Key: "name", Value: domain.String("John")},
			domain.E{Key: "joined", Value: domain.DateTimeMillis(1577836800000)},
			domain.E{Key: "avatar", Value: domain.Binary([]byte{1, 2, 3})},
			domain.E{Key: "score", Value: domain.Double(7.5)},
			domain.E{Key: "visits", Value: domain.Int64(1 << 40)},
			domain.E{Key: "tags", Value: domain.Array(domain.String("a"), domain.Null())},
		),
		domain.D(
			domain.E{Key: "_id", Value: domain.OID(domain.NewObjectID())},
			domain.E{Key: "name", Value: domain.String("Ann")},
			domain.E{Key: "active", Value: domain.Bool(true)},
			domain.E{Key: "address", Value: domain.Doc(domain.D(domain.E{Key: "city", Value: domain.String("Oslo")}))},
		),
	}, nil)
	require.NoError(t, err)
	_, err = users.CreateIndex([]indexing.Key{{Field: "name", Direction: 1}}, &IndexOptions{Unique: true})
	require.NoError(t, err)

	events, err := db.CreateCollection("events", CollectionOptions{Capped: true, MaxDocuments: 2})
	require.NoError(t, err)
	for i := int32(0); i < 3; i++ {
		_, err := events.InsertOne(domain.D(domain.E{Key: "_id", Value: domain.Int32(i)}))
		require.NoError(t, err)
	}
	return engine
}

func TestEngine_SnapshotRoundTrip(t *testing.T) {
	source := seedEngine(t)
	var buf bytes.Buffer
	require.NoError(t, source.SaveSnapshot(&buf))

	target := NewEngine()
	require.NoError(t, target.LoadSnapshot(&buf))
	assert.Equal(t, []string{"app"}, target.DatabaseNames())

	srcDB, _ := source.Database("app")
	dstDB, _ := target.Database("app")
	assert.Equal(t, srcDB.ListCollectionNames(), dstDB.ListCollectionNames())

	for _, name := range srcDB.ListCollectionNames() {
		srcColl, _ := srcDB.Collection(name)
		dstColl, _ := dstDB.Collection(name)

		want, err := findAll(t, srcColl, nil, nil)
		require.NoError(t, err)
		got, err := findAll(t, dstColl, nil, nil)
		require.NoError(t, err)
		require.Len(t, got, len(want), name)
		for i := range want {
			assert.True(t, got[i].Equal(want[i]), "%s[%d]: got %v want %v", name, i, got[i], want[i])
			assert.Equal(t, want[i].Keys(), got[i].Keys())
		}
		assert.Equal(t, srcColl.Options(), dstColl.Options())

		srcSpecs, err := srcColl.Indexes()
		require.NoError(t, err)
		dstSpecs, err := dstColl.Indexes()
		require.NoError(t, err)
		assert.Equal(t, srcSpecs, dstSpecs)
	}

	// Restored unique indexes are enforced
	users, _ := dstDB.Collection("users")
	_, err := users.InsertOne(domain.D(domain.E{Key: "name", Value: domain.String("John")}))
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	// Restored capped collections keep evicting
	events, _ := dstDB.Collection("events")
	_, err = events.InsertOne(domain.D(domain.E{Key: "_id", Value: domain.Int32(3)}))
	require.NoError(t, err)
	n, err := events.CountDocuments(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestEngine_LoadSnapshotReplacesContents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, seedEngine(t).SaveSnapshot(&buf))

	engine := NewEngine()
	db, err := engine.Database("scratch")
	require.NoError(t, err)
	old, err := db.Collection("tmp")
	require.NoError(t, err)

	require.NoError(t, engine.LoadSnapshot(&buf))
	assert.Equal(t, []string{"app"}, engine.DatabaseNames())

	_, err = old.InsertOne(named("John", 26))
	assert.ErrorIs(t, err, domain.ErrCollectionDropped)
}

func TestEngine_LoadSnapshotErrors(t *testing.T) {
	var good bytes.Buffer
	require.NoError(t, seedEngine(t).SaveSnapshot(&good))
	data := good.Bytes()

	var oversized bytes.Buffer
	require.NoError(t, WriteHeader(&oversized, 0))
	require.NoError(t, binary.Write(&oversized, binary.LittleEndian, uint64(1<<32)))
	oversized.Write([]byte{0x10, 'x'})

	tests := []struct {
		name    string
		input   []byte
		wantErr string
	}{
		{"empty", nil, "invalid file header"},
		{"bad magic", append([]byte("NOPE"), data[4:]...), "invalid file format"},
		{"missing length", data[:8], "payload length"},
		{"truncated payload", data[:len(data)-5], ""},
		{"length beyond compression ratio", oversized.Bytes(), "exceeds what 2 compressed bytes can hold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := seedEngine(t)
			err := engine.LoadSnapshot(bytes.NewReader(tt.input))
			require.Error(t, err)
			if tt.wantErr != "" {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			// A failed load leaves the engine as it was
			assert.Equal(t, []string{"app"}, engine.DatabaseNames())
			db, _ := engine.Database("app")
			users, _ := db.Collection("users")
			n, err := users.CountDocuments(nil)
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)
		})
	}
}

func TestEngine_SnapshotSkipsDroppedCollection(t *testing.T) {
	engine := seedEngine(t)
	db, err := engine.Database("app")
	require.NoError(t, err)
	events, err := db.Collection("events")
	require.NoError(t, err)

	// Dropped after its handle was listed but before it was exported
	colls := db.sortedCollections()
	require.Len(t, colls, 2)
	events.mu.Lock()
	events.dropped = true
	events.mu.Unlock()

	data, err := engine.exportSnapshot()
	require.NoError(t, err)
	require.Len(t, data.Databases, 1)
	require.Len(t, data.Databases[0].Collections, 1)
	assert.Equal(t, "users", data.Databases[0].Collections[0].Name)
}

func TestEngine_SnapshotUncompressedPayload(t *testing.T) {
	// An empty engine encodes to a payload too small for lz4 to shrink, so it
	// is stored raw
	var buf bytes.Buffer
	require.NoError(t, NewEngine().SaveSnapshot(&buf))
	header, err := ReadHeader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, FlagUncompressed, header.Flags&FlagUncompressed)

	restored := seedEngine(t)
	require.NoError(t, restored.LoadSnapshot(&buf))
	assert.Empty(t, restored.DatabaseNames())
}

func TestEngine_SnapshotCompressedPayload(t *testing.T) {
	engine := NewEngine()
	db, err := engine.Database("app")
	require.NoError(t, err)
	coll, err := db.Collection("logs")
	require.NoError(t, err)
	for i := int32(0); i < 200; i++ {
		_, err := coll.InsertOne(domain.D(
			domain.E{Key: "_id", Value: domain.Int32(i)},
			domain.E{Key: "message", Value: domain.String("the same log line repeated over and over")},
		))
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	require.NoError(t, engine.SaveSnapshot(&buf))
	header, err := ReadHeader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Zero(t, header.Flags&FlagUncompressed)

	restored := NewEngine()
	require.NoError(t, restored.LoadSnapshot(&buf))
	rdb, _ := restored.Database("app")
	rcoll, _ := rdb.Collection("logs")
	doc, err := rcoll.FindOne(query.Eq("_id", domain.Int32(199)), nil)
	require.NoError(t, err)
	assert.NotNil(t, doc)
	n, err := rcoll.CountDocuments(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(200), n)
}

func TestEngine_SaveAndLoadFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "data"+FileExtension)

	engine := seedEngine(t)
	require.NoError(t, engine.SaveToFile(file))

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	// No temporary files are left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, strings.Contains(entries[0].Name(), ".tmp-"))

	loaded := NewEngine()
	require.NoError(t, loaded.LoadFromFile(file))
	assert.Equal(t, engine.Stats().Documents, loaded.Stats().Documents)
}

func TestEngine_LoadMissingFile(t *testing.T) {
	engine := NewEngine()
	require.NoError(t, engine.LoadFromFile(filepath.Join(t.TempDir(), "missing.godb")))
	assert.Empty(t, engine.DatabaseNames())
}

func TestEngine_RunSnapshots(t *testing.T) {
	file := filepath.Join(t.TempDir(), "periodic.godb")
	engine := seedEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- engine.RunSnapshots(ctx, file, 10*time.Millisecond)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(file)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunSnapshots did not stop")
	}

	loaded := NewEngine()
	require.NoError(t, loaded.LoadFromFile(file))
	assert.Equal(t, []string{"app"}, loaded.DatabaseNames())
}
