package pxl

import (
	"bufio"
	"encoding/binary"
	"image/color"
	"io"

	"github.com/pkg/errors"
)

// FrameChunk is an indexed frame ready to be sent over the wire: the index
// surface plus the palette needed to resolve it.
type FrameChunk struct {
	Width  int
	Height int

	// Indices holds Width*Height indices, row major.
	Indices []byte

	Palette [PaletteSize]color.RGBA
}

// NewFrameChunk snapshots s and p into a frame chunk.
func NewFrameChunk(s *Surface, p *Palette) *FrameChunk {
	f := &FrameChunk{
		Width:   s.Width(),
		Height:  s.Height(),
		Indices: make([]byte, len(s.Pix())),
		Palette: p.Table(),
	}
	copy(f.Indices, s.Pix())
	return f
}

// Surface returns the indices as a new surface.
func (f *FrameChunk) Surface() (*Surface, error) {
	s, err := NewSurface(f.Width, f.Height)
	if err != nil {
		return nil, err
	}
	copy(s.pix, f.Indices)
	return s, nil
}

// WriteTo writes the frame chunk to a writer: big endian uint16 width and
// height, the indices, then 256 RGB triples.
func (f *FrameChunk) WriteTo(w io.Writer) (int64, error) {
	if f.Width > 0xffff || f.Height > 0xffff || len(f.Indices) != f.Width*f.Height {
		return 0, invalidf("pxl: FrameChunk: WriteTo: malformed %dx%d frame", f.Width, f.Height)
	}

	cw := &countingWriter{w: w}
	wr := bufio.NewWriter(cw)

	binary.Write(wr, binary.BigEndian, uint16(f.Width))
	binary.Write(wr, binary.BigEndian, uint16(f.Height))
	wr.Write(f.Indices)

	for _, c := range f.Palette {
		wr.Write([]byte{c.R, c.G, c.B})
	}

	err := wr.Flush()
	return cw.n, err
}

// ReadFrameChunk reads a frame chunk written by WriteTo.
func ReadFrameChunk(r io.Reader) (*FrameChunk, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	f := &FrameChunk{
		Width:  int(binary.BigEndian.Uint16(header[0:])),
		Height: int(binary.BigEndian.Uint16(header[2:])),
	}

	f.Indices = make([]byte, f.Width*f.Height)
	if _, err := io.ReadFull(r, f.Indices); err != nil {
		return nil, errors.Wrap(err, "pxl: ReadFrameChunk: indices")
	}

	var pal [PaletteSize * 3]byte
	if _, err := io.ReadFull(r, pal[:]); err != nil {
		return nil, errors.Wrap(err, "pxl: ReadFrameChunk: palette")
	}

	for i := range f.Palette {
		f.Palette[i] = color.RGBA{R: pal[i*3], G: pal[i*3+1], B: pal[i*3+2], A: 255}
	}

	return f, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// PaletteTable returns the frame's palette as a palette table.
func (f *FrameChunk) PaletteTable() *Palette {
	colors := make([]color.Color, PaletteSize)
	for i, c := range f.Palette {
		colors[i] = c
	}
	p, _ := NewPalette(colors)
	return p
}
