package pxl

import (
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"sync/atomic"

	// Palette assets may be stored in any of these formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
)

// PaletteSize is the number of entries in a palette table.
const PaletteSize = 256

// BackgroundIndex is the index reserved for the background or transparent
// color by convention.
const BackgroundIndex = 0

// Palette maps 8-bit indices to opaque RGB colors. Every index has an entry;
// indices past the loaded colors are black. A Palette must not be modified
// after it has been handed to a PaletteSlot or a Resolver.
type Palette struct {
	colors  [PaletteSize]color.RGBA
	n       int
	indices map[color.RGBA]uint8
	lab     []colorful.Color

	// size is the layout of the palette image, or a single row.
	size image.Point
}

// NewPalette creates a palette table from the given colors. Position in the
// slice is the index. Supplying more than PaletteSize colors is an error.
func NewPalette(colors []color.Color) (*Palette, error) {
	if len(colors) > PaletteSize {
		return nil, invalidf("pxl: NewPalette: %d colors supplied, at most %d allowed",
			len(colors), PaletteSize)
	}

	p := &Palette{
		n:       len(colors),
		indices: make(map[color.RGBA]uint8, len(colors)),
		lab:     make([]colorful.Color, len(colors)),
		size:    image.Pt(len(colors), 1),
	}

	for i := range p.colors {
		p.colors[i] = color.RGBA{A: 255}
	}

	for i, c := range colors {
		rgb := opaque(c)
		p.colors[i] = rgb
		if _, exists := p.indices[rgb]; !exists {
			p.indices[rgb] = uint8(i)
		}
		p.lab[i], _ = colorful.MakeColor(rgb)
	}

	return p, nil
}

// MustPalette is like NewPalette but panics on error.
func MustPalette(colors ...color.Color) *Palette {
	p, err := NewPalette(colors)
	if err != nil {
		panic(err)
	}
	return p
}

// opaque drops the alpha channel of c, un-premultiplying it first.
func opaque(c color.Color) color.RGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return color.RGBA{R: n.R, G: n.G, B: n.B, A: 255}
}

// Lookup returns the color for index i.
func (p *Palette) Lookup(i uint8) color.RGBA {
	return p.colors[i]
}

// Len returns the number of colors the palette was created with.
func (p *Palette) Len() int {
	return p.n
}

// Colors returns the loaded colors in index order.
func (p *Palette) Colors() color.Palette {
	out := make(color.Palette, p.n)
	for i := range out {
		out[i] = p.colors[i]
	}
	return out
}

// Table returns a copy of the full table.
func (p *Palette) Table() [PaletteSize]color.RGBA {
	return p.colors
}

// Index returns the index of the exact color c. Alpha is ignored.
func (p *Palette) Index(c color.Color) (uint8, bool) {
	i, ok := p.indices[opaque(c)]
	return i, ok
}

// Nearest returns the index of the loaded color perceptually closest to c,
// measured in CIE L*a*b*. An exact match always wins.
func (p *Palette) Nearest(c color.Color) uint8 {
	if i, ok := p.Index(c); ok {
		return i
	}
	if p.n == 0 {
		return BackgroundIndex
	}

	target, _ := colorful.MakeColor(opaque(c))

	best := 0
	bestDist := math.Inf(1)
	for i, col := range p.lab {
		d := target.DistanceLab(col)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}

	return uint8(best)
}

// Linear returns the table converted to linear RGB, which is what the GPU
// display expects in its palette uniform.
func (p *Palette) Linear() [PaletteSize][3]float32 {
	var out [PaletteSize][3]float32
	for i, c := range p.colors {
		col, _ := colorful.MakeColor(c)
		r, g, b := col.LinearRgb()
		out[i] = [3]float32{float32(r), float32(g), float32(b)}
	}
	return out
}

// Rotate returns a new palette with entries first..last (inclusive) rotated
// by one position. It is the building block of palette-cycling effects.
func (p *Palette) Rotate(first, last int) *Palette {
	colors := make([]color.Color, p.n)
	for i := range colors {
		colors[i] = p.colors[i]
	}

	if first >= 0 && last < p.n && first < last {
		carry := colors[last]
		copy(colors[first+1:last+1], colors[first:last])
		colors[first] = carry
	}

	rotated, _ := NewPalette(colors)
	rotated.size = p.size
	return rotated
}

// Size returns the layout the palette was read from: the palette image's
// size, or a single row for palettes built from a color list. Filter images
// are laid out in frames of this size.
func (p *Palette) Size() image.Point {
	return p.size
}

// PaletteFromImage reads a palette from an image. Pixels are read starting
// from the bottom row, left to right, and fully transparent pixels are
// skipped. The first color read is the background color.
func PaletteFromImage(img image.Image) (*Palette, error) {
	b := img.Bounds()

	var colors []color.Color
	for y := b.Max.Y - 1; y >= b.Min.Y; y-- {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.At(x, y)
			if _, _, _, a := c.RGBA(); a == 0 {
				continue
			}
			colors = append(colors, c)
		}
	}

	if len(colors) == 0 {
		return nil, invalidf("pxl: PaletteFromImage: image has no opaque pixels")
	}

	p, err := NewPalette(colors)
	if err != nil {
		return nil, err
	}
	p.size = b.Size()
	return p, nil
}

// DecodePalette decodes a palette image from r.
func DecodePalette(r io.Reader) (*Palette, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "pxl: DecodePalette")
	}

	return PaletteFromImage(img)
}

// LoadPalette loads a palette image from a file.
func LoadPalette(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "pxl: LoadPalette")
	}
	defer f.Close()

	return DecodePalette(f)
}

// PaletteSlot holds the current palette of a pipeline. Replace swaps the
// palette atomically; a resolve reads the slot once per frame, so it sees
// either the old or the new palette in full.
type PaletteSlot struct {
	current atomic.Pointer[Palette]
}

// NewPaletteSlot creates a slot holding p, which may be nil.
func NewPaletteSlot(p *Palette) *PaletteSlot {
	s := new(PaletteSlot)
	if p != nil {
		s.current.Store(p)
	}
	return s
}

// Palette returns the current palette, or nil if none has been set.
func (s *PaletteSlot) Palette() *Palette {
	return s.current.Load()
}

// Replace swaps in a new palette.
func (s *PaletteSlot) Replace(p *Palette) {
	s.current.Store(p)
}
