package pxl

import (
	"image"
	"os"

	"github.com/pkg/errors"
)

// FiltersFromImage reads filters from an image laid out against pal. Each
// filter is a frame the size of the palette image, and the texel at the
// position palette entry i was read from holds the color i maps to.
// Fully transparent texels map to BackgroundIndex, and entries the frame does
// not cover map to themselves.
//
// Animated filters hold several frames, left to right, wrapping downwards at
// the right edge of the image. Reading stops at the first frame without an
// opaque texel. Every opaque color must be in pal.
func FiltersFromImage(img image.Image, pal *Palette) ([]*Filter, error) {
	if pal == nil {
		return nil, errors.Wrap(ErrUninitialized, "pxl: FiltersFromImage: no palette")
	}

	frame := pal.Size()
	b := img.Bounds()
	if frame.X <= 0 || frame.Y <= 0 || b.Dx() < frame.X || b.Dy() < frame.Y {
		return nil, invalidf("pxl: FiltersFromImage: %dx%d image holds no %dx%d frame",
			b.Dx(), b.Dy(), frame.X, frame.Y)
	}

	perRow := b.Dx() / frame.X
	count := perRow * (b.Dy() / frame.Y)

	var filters []*Filter
	for n := 0; n < count; n++ {
		origin := b.Min.Add(image.Pt(n%perRow*frame.X, n/perRow*frame.Y))

		f, visible, err := readFilterFrame(img, pal, origin, frame)
		if err != nil {
			return nil, errors.Wrapf(err, "pxl: FiltersFromImage: frame %d", n)
		}
		if !visible {
			break
		}
		filters = append(filters, f)
	}

	if len(filters) == 0 {
		return nil, invalidf("pxl: FiltersFromImage: image has no opaque pixels")
	}

	return filters, nil
}

// readFilterFrame reads one frame. Entries are placed the way
// PaletteFromImage reads them: bottom row first, left to right.
func readFilterFrame(img image.Image, pal *Palette, origin, frame image.Point) (*Filter, bool, error) {
	f := IdentityFilter()
	visible := false

	for i := 0; i < frame.X*frame.Y && i < PaletteSize; i++ {
		x := origin.X + i%frame.X
		y := origin.Y + frame.Y - 1 - i/frame.X

		c := img.At(x, y)
		if _, _, _, a := c.RGBA(); a == 0 {
			f[i] = BackgroundIndex
			continue
		}

		index, ok := pal.Index(c)
		if !ok {
			r, g, b, _ := c.RGBA()
			return nil, false, errors.Wrapf(ErrColorNotInPalette,
				"#%02X%02X%02X at (%d, %d)", r>>8, g>>8, b>>8, x, y)
		}

		f[i] = index
		visible = true
	}

	return f, visible, nil
}

// LoadFilters loads a filter image from a file. See FiltersFromImage.
func LoadFilters(path string, pal *Palette) ([]*Filter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "pxl: LoadFilters")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, "pxl: LoadFilters")
	}

	return FiltersFromImage(img, pal)
}
