package storage

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/adfharrison1/go-docdb/pkg/codec"
	"github.com/adfharrison1/go-docdb/pkg/indexing"
)

const (
	// MagicBytes identify a snapshot file.
	MagicBytes = "GODB"
	// FormatVersion is the snapshot layout version written by this package.
	FormatVersion = 2
	// FileExtension is the conventional snapshot file extension.
	FileExtension = ".godb"
)

// Header flags.
const (
	// FlagUncompressed marks a payload stored without lz4 compression.
	FlagUncompressed uint8 = 1 << iota
)

// FileHeader is the fixed prefix of a snapshot. It is followed by the
// uncompressed payload length as a little-endian uint64 and the payload.
type FileHeader struct {
	Magic    [4]byte
	Version  uint8
	Flags    uint8
	Reserved [2]byte
}

// WriteHeader writes a header carrying flags.
func WriteHeader(w io.Writer, flags uint8) error {
	header := FileHeader{
		Magic:   [4]byte{'G', 'O', 'D', 'B'},
		Version: FormatVersion,
		Flags:   flags,
	}
	return binary.Write(w, binary.LittleEndian, header)
}

// ReadHeader reads and validates a header.
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if string(header.Magic[:]) != MagicBytes {
		return nil, fmt.Errorf("invalid file format: expected %s, got %q", MagicBytes, string(header.Magic[:]))
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported file version: %d", header.Version)
	}
	return &header, nil
}

// SnapshotData is the msgpack payload of a snapshot.
type SnapshotData struct {
	Databases []DatabaseSnapshot `msgpack:"databases"`
}

// DatabaseSnapshot holds one database.
type DatabaseSnapshot struct {
	Name        string               `msgpack:"name"`
	Collections []CollectionSnapshot `msgpack:"collections"`
}

// CollectionSnapshot holds a collection's options, secondary index
// definitions and documents in natural order.
type CollectionSnapshot struct {
	Name      string               `msgpack:"name"`
	Options   CollectionOptions    `msgpack:"options"`
	Indexes   []indexing.IndexSpec `msgpack:"indexes,omitempty"`
	Documents []codec.WireDoc      `msgpack:"documents"`
}
