package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/adfharrison1/go-docdb/pkg/codec"
	"github.com/adfharrison1/go-docdb/pkg/domain"
	"github.com/adfharrison1/go-docdb/pkg/indexing"
)

// maxSnapshotPayload bounds the length field read from a snapshot.
const maxSnapshotPayload = 1 << 34

// An lz4 block expands at most about 255 times.
const maxCompressionRatio = 255

// SaveSnapshot writes every database to w. Each collection is captured under
// its own read lock, so the snapshot is consistent per collection.
func (e *Engine) SaveSnapshot(w io.Writer) error {
	data, err := e.exportSnapshot()
	if err != nil {
		return err
	}
	payload, err := msgpack.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode MessagePack: %w", err)
	}

	var flags uint8
	body := make([]byte, lz4.CompressBlockBound(len(payload)))
	var compressor lz4.Compressor
	n, err := compressor.CompressBlock(payload, body)
	if err != nil {
		return fmt.Errorf("failed to compress data: %w", err)
	}
	body = body[:n]
	if n == 0 || n >= len(payload) {
		flags |= FlagUncompressed
		body = payload
	}

	if err := WriteHeader(w, flags); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(payload))); err != nil {
		return fmt.Errorf("failed to write payload length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}
	e.logger.Debugw("saved snapshot",
		"databases", len(data.Databases),
		"bytes", len(payload),
		"compressed", flags&FlagUncompressed == 0,
	)
	return nil
}

func (e *Engine) exportSnapshot() (*SnapshotData, error) {
	e.mu.RLock()
	names := make([]string, 0, len(e.databases))
	for name := range e.databases {
		names = append(names, name)
	}
	dbs := make([]*Database, 0, len(names))
	sort.Strings(names)
	for _, name := range names {
		dbs = append(dbs, e.databases[name])
	}
	e.mu.RUnlock()

	data := &SnapshotData{}
	for _, db := range dbs {
		dbSnap := DatabaseSnapshot{Name: db.name}
		for _, coll := range db.sortedCollections() {
			collSnap, err := coll.export()
			if errors.Is(err, domain.ErrCollectionDropped) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to export %s.%s: %w", db.name, coll.name, err)
			}
			dbSnap.Collections = append(dbSnap.Collections, collSnap)
		}
		if len(dbSnap.Collections) > 0 {
			data.Databases = append(data.Databases, dbSnap)
		}
	}
	return data, nil
}

// sortedCollections copies the collection handles under the database lock
// without creating any.
func (d *Database) sortedCollections() []*Collection {
	d.mu.RLock()
	colls := make([]*Collection, 0, len(d.collections))
	for _, coll := range d.collections {
		colls = append(colls, coll)
	}
	d.mu.RUnlock()
	sort.Slice(colls, func(i, j int) bool { return colls[i].name < colls[j].name })
	return colls
}

func (c *Collection) export() (CollectionSnapshot, error) {
	snap := CollectionSnapshot{Name: c.name, Options: c.opts}
	err := c.withReadLock(func() error {
		for _, spec := range c.indexes.GetIndexes() {
			if spec.Name != indexing.IDIndexName {
				snap.Indexes = append(snap.Indexes, spec)
			}
		}
		entries := c.entriesLocked()
		snap.Documents = make([]codec.WireDoc, len(entries))
		for i, entry := range entries {
			snap.Documents[i] = codec.ToWire(entry.Doc)
		}
		return nil
	})
	return snap, err
}

// LoadSnapshot replaces the contents of the engine with the snapshot read
// from r. On error the engine is left unchanged. Handles to collections that
// existed before the load return ErrCollectionDropped.
func (e *Engine) LoadSnapshot(r io.Reader) error {
	header, err := ReadHeader(r)
	if err != nil {
		return fmt.Errorf("invalid file header: %w", err)
	}
	var length uint64
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return fmt.Errorf("failed to read payload length: %w", err)
	}
	if length > maxSnapshotPayload {
		return fmt.Errorf("payload length %d is too large", length)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	payload := body
	if header.Flags&FlagUncompressed == 0 {
		if length > uint64(len(body))*maxCompressionRatio {
			return fmt.Errorf("payload length %d exceeds what %d compressed bytes can hold", length, len(body))
		}
		payload = make([]byte, length)
		n, err := lz4.UncompressBlock(body, payload)
		if err != nil {
			return fmt.Errorf("failed to decompress data: %w", err)
		}
		payload = payload[:n]
	}
	if uint64(len(payload)) != length {
		return fmt.Errorf("payload is %d bytes, header says %d", len(payload), length)
	}

	var data SnapshotData
	if err := msgpack.Unmarshal(payload, &data); err != nil {
		return fmt.Errorf("failed to decode MessagePack: %w", err)
	}

	databases, err := e.importSnapshot(&data)
	if err != nil {
		return err
	}

	e.mu.Lock()
	old := e.databases
	e.databases = databases
	e.mu.Unlock()

	for _, db := range old {
		if err := db.Drop(); err != nil {
			return err
		}
	}
	e.logger.Debugw("loaded snapshot", "databases", len(databases))
	return nil
}

func (e *Engine) importSnapshot(data *SnapshotData) (map[string]*Database, error) {
	databases := make(map[string]*Database, len(data.Databases))
	for _, dbSnap := range data.Databases {
		if err := validateName(dbSnap.Name); err != nil {
			return nil, err
		}
		db := &Database{
			name:        dbSnap.Name,
			engine:      e,
			collections: make(map[string]*Collection),
		}
		for _, collSnap := range dbSnap.Collections {
			coll, err := db.restore(collSnap)
			if err != nil {
				return nil, fmt.Errorf("failed to restore %s.%s: %w", dbSnap.Name, collSnap.Name, err)
			}
			db.collections[coll.name] = coll
		}
		databases[db.name] = db
	}
	return databases, nil
}

// restore rebuilds a collection from its snapshot. Indexes are created first
// so unique constraints are checked as the documents are inserted.
func (d *Database) restore(snap CollectionSnapshot) (*Collection, error) {
	if err := validateName(snap.Name); err != nil {
		return nil, err
	}
	opts, err := snap.Options.normalize()
	if err != nil {
		return nil, err
	}
	coll := newCollection(d, snap.Name, opts)
	for _, spec := range snap.Indexes {
		if _, err := coll.indexes.CreateIndex(spec, nil); err != nil {
			return nil, err
		}
	}
	for _, wire := range snap.Documents {
		doc, err := codec.FromWire(wire)
		if err != nil {
			return nil, err
		}
		if !doc.Has(domain.IDField) {
			return nil, fmt.Errorf("document without _id")
		}
		if err := coll.insertLocked(doc); err != nil {
			return nil, err
		}
	}
	return coll, nil
}

// SaveToFile writes a snapshot to filename through a temporary file in the
// same directory, so an interrupted save never truncates an earlier snapshot.
func (e *Engine) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	var buf bytes.Buffer
	if err := e.SaveSnapshot(&buf); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	e.logger.Infow("saved snapshot file", "file", filename, "bytes", buf.Len())
	return nil
}

// LoadFromFile loads the snapshot in filename. A missing file leaves the
// engine empty and is not an error.
func (e *Engine) LoadFromFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			e.logger.Infow("no snapshot file, starting empty", "file", filename)
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	if err := e.LoadSnapshot(file); err != nil {
		return fmt.Errorf("failed to load %s: %w", filename, err)
	}
	e.logger.Infow("loaded snapshot file", "file", filename)
	return nil
}
