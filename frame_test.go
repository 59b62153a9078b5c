package pxl

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameChunkWireFormat(t *testing.T) {
	s := mustSurface(t, 3, 2)
	copy(s.Pix(), []uint8{0, 1, 2, 3, 2, 1})

	f := NewFrameChunk(s, testPalette)

	var buf bytes.Buffer
	n, err := f.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(4+6+PaletteSize*3), n)
	assert.Equal(t, int(n), buf.Len())

	data := buf.Bytes()
	assert.Equal(t, uint16(3), binary.BigEndian.Uint16(data[0:]))
	assert.Equal(t, uint16(2), binary.BigEndian.Uint16(data[2:]))
	assert.Equal(t, []byte{0, 1, 2, 3, 2, 1}, data[4:10])
	assert.Equal(t, []byte{255, 0, 0}, data[10+3:10+6], "palette entry 1")

	read, err := ReadFrameChunk(&buf)
	require.NoError(t, err)
	assert.Equal(t, f, read)

	rs, err := read.Surface()
	require.NoError(t, err)
	assert.Equal(t, s.Pix(), rs.Pix())
	assert.Equal(t, testPalette.Lookup(2), read.PaletteTable().Lookup(2))
}

func TestFrameChunkSnapshot(t *testing.T) {
	s := mustSurface(t, 1, 1)
	f := NewFrameChunk(s, testPalette)
	s.Set(0, 0, 9)

	assert.Equal(t, byte(0), f.Indices[0])
}

func TestFrameChunkMalformed(t *testing.T) {
	f := &FrameChunk{Width: 2, Height: 2, Indices: []byte{1}}
	_, err := f.WriteTo(&bytes.Buffer{})
	assert.Error(t, err)

	_, err = ReadFrameChunk(bytes.NewReader([]byte{0, 2, 0, 2, 1}))
	assert.Error(t, err)
}
