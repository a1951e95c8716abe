package storage

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileHeader_WriteAndRead(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, FlagUncompressed))

	// 4 bytes magic + version + flags + 2 reserved
	assert.Len(t, buf.Bytes(), 8)

	header, err := ReadHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, MagicBytes, string(header.Magic[:]))
	assert.EqualValues(t, FormatVersion, header.Version)
	assert.Equal(t, FlagUncompressed, header.Flags)
	assert.Equal(t, [2]byte{0, 0}, header.Reserved)
}

func TestFileHeader_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		header  FileHeader
		wantErr string
	}{
		{
			name:    "magic",
			header:  FileHeader{Magic: [4]byte{'I', 'N', 'V', 'L'}, Version: FormatVersion},
			wantErr: "invalid file format",
		},
		{
			name:    "version",
			header:  FileHeader{Magic: [4]byte{'G', 'O', 'D', 'B'}, Version: 99},
			wantErr: "unsupported file version",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, binary.Write(&buf, binary.LittleEndian, tt.header))
			_, err := ReadHeader(&buf)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFileHeader_Truncated(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader([]byte("GOD")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read header")
}
