package pxl

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// Surface is a 2D buffer of palette indices, one byte per texel, stored row
// major. Writes outside the surface are dropped and reads outside it return
// BackgroundIndex.
type Surface struct {
	width  int
	height int
	pix    []uint8
}

// NewSurface creates a surface filled with BackgroundIndex.
func NewSurface(width, height int) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, invalidf("pxl: NewSurface: invalid dimensions %dx%d", width, height)
	}

	return &Surface{
		width:  width,
		height: height,
		pix:    make([]uint8, width*height),
	}, nil
}

// Surface returns s, which lets a Surface act as its own IndexSource.
func (s *Surface) Surface() *Surface {
	return s
}

// Width returns the width of the surface in texels.
func (s *Surface) Width() int { return s.width }

// Height returns the height of the surface in texels.
func (s *Surface) Height() int { return s.height }

// Bounds returns the surface rectangle, anchored at the origin.
func (s *Surface) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.width, s.height)
}

// Pix returns the underlying texels. The slice is only valid until the next
// Resize.
func (s *Surface) Pix() []uint8 {
	return s.pix
}

func (s *Surface) contains(x, y int) bool {
	return uint(x) < uint(s.width) && uint(y) < uint(s.height)
}

// Set writes index i at (x, y). Out of range writes are ignored.
func (s *Surface) Set(x, y int, i uint8) {
	if !s.contains(x, y) {
		return
	}
	s.pix[y*s.width+x] = i
}

// SetChecked is like Set but reports out of range writes.
func (s *Surface) SetChecked(x, y int, i uint8) error {
	if !s.contains(x, y) {
		return errors.Wrapf(ErrOutOfBounds, "pxl: SetChecked: (%d, %d) outside %dx%d",
			x, y, s.width, s.height)
	}
	s.pix[y*s.width+x] = i
	return nil
}

// Index returns the index at (x, y), or BackgroundIndex when out of range.
func (s *Surface) Index(x, y int) uint8 {
	if !s.contains(x, y) {
		return BackgroundIndex
	}
	return s.pix[y*s.width+x]
}

// Fill sets every texel to i.
func (s *Surface) Fill(i uint8) {
	for n := range s.pix {
		s.pix[n] = i
	}
}

// Clear resets every texel to BackgroundIndex.
func (s *Surface) Clear() {
	s.Fill(BackgroundIndex)
}

// Clone returns a deep copy of the surface.
func (s *Surface) Clone() *Surface {
	pix := make([]uint8, len(s.pix))
	copy(pix, s.pix)
	return &Surface{width: s.width, height: s.height, pix: pix}
}

// Resize reallocates the surface. The overlapping top-left region is kept;
// texels that did not exist before are set to BackgroundIndex.
func (s *Surface) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return invalidf("pxl: Resize: invalid dimensions %dx%d", width, height)
	}
	if width == s.width && height == s.height {
		return nil
	}

	pix := make([]uint8, width*height)
	cols := min(width, s.width)
	for y := 0; y < min(height, s.height); y++ {
		copy(pix[y*width:y*width+cols], s.pix[y*s.width:y*s.width+cols])
	}

	s.width = width
	s.height = height
	s.pix = pix
	return nil
}

// Region returns a write handle restricted to r. Handles over disjoint
// rectangles may be used from different goroutines at the same time.
func (s *Surface) Region(r image.Rectangle) *Region {
	return &Region{surface: s, rect: r.Intersect(s.Bounds())}
}

// Image returns a view of the surface as an image.Paletted using palette p.
// The view shares the surface's texels.
func (s *Surface) Image(p *Palette) *image.Paletted {
	table := p.Table()
	pal := make(color.Palette, PaletteSize)
	for i := range pal {
		pal[i] = table[i]
	}

	return &image.Paletted{
		Pix:     s.pix,
		Stride:  s.width,
		Rect:    s.Bounds(),
		Palette: pal,
	}
}

// Region is a clipped write handle onto part of a surface. Coordinates are
// relative to the surface, not the region.
type Region struct {
	surface *Surface
	rect    image.Rectangle
}

// Bounds returns the clipped rectangle the region may write to.
func (r *Region) Bounds() image.Rectangle {
	return r.rect
}

// Set writes index i at (x, y) if it lies within the region.
func (r *Region) Set(x, y int, i uint8) {
	if !image.Pt(x, y).In(r.rect) {
		return
	}
	r.surface.pix[y*r.surface.width+x] = i
}

// Fill sets every texel of the region to i.
func (r *Region) Fill(i uint8) {
	r.each(func(p *uint8) { *p = i })
}

// Apply remaps every texel of the region through f.
func (r *Region) Apply(f *Filter) {
	r.each(func(p *uint8) { *p = f[*p] })
}

// Blit copies src into the region with its top-left corner at at. Texels of
// src holding BackgroundIndex are transparent and leave the destination
// untouched.
func (r *Region) Blit(src *Surface, at image.Point) {
	dst := src.Bounds().Add(at).Intersect(r.rect)
	w := r.surface.width

	for y := dst.Min.Y; y < dst.Max.Y; y++ {
		srow := src.pix[(y-at.Y)*src.width:]
		drow := r.surface.pix[y*w:]
		for x := dst.Min.X; x < dst.Max.X; x++ {
			if i := srow[x-at.X]; i != BackgroundIndex {
				drow[x] = i
			}
		}
	}
}

func (r *Region) each(f func(*uint8)) {
	w := r.surface.width
	for y := r.rect.Min.Y; y < r.rect.Max.Y; y++ {
		row := r.surface.pix[y*w+r.rect.Min.X : y*w+r.rect.Max.X]
		for x := range row {
			f(&row[x])
		}
	}
}

// Filter remaps palette indices to other palette indices, for effects such
// as fades or flashes that must stay within the palette.
type Filter [PaletteSize]uint8

// IdentityFilter returns a filter that maps every index to itself.
func IdentityFilter() *Filter {
	var f Filter
	for i := range f {
		f[i] = uint8(i)
	}
	return &f
}

// Map returns the index i is remapped to.
func (f *Filter) Map(i uint8) uint8 {
	return f[i]
}

// Apply remaps every texel of s through f.
func (f *Filter) Apply(s *Surface) {
	s.Region(s.Bounds()).Apply(f)
}
