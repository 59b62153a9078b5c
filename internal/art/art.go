// Package art loads artwork for the commands: an image file indexed either
// with a palette image or with a palette derived by quantization.
package art

import (
	"github.com/pkg/errors"

	"github.com/tmpim/pxl"
)

// Options configure Load.
type Options struct {
	Image string

	// Palette is a palette image. When empty, a palette of up to MaxColors
	// colors is derived from the image.
	Palette   string
	MaxColors int
	Speed     int
	Dither    float64

	// Width and Height are the logical resolution. Zero keeps the image's
	// own size.
	Width  int
	Height int

	Resampling pxl.Resampling
}

// Load loads the artwork described by opts.
func Load(opts Options) (*pxl.Surface, *pxl.Palette, error) {
	img, err := pxl.LoadImage(opts.Image)
	if err != nil {
		return nil, nil, err
	}

	w, h := opts.Width, opts.Height
	if w == 0 && h == 0 {
		w, h = img.Bounds().Dx(), img.Bounds().Dy()
	}

	var pal *pxl.Palette
	if opts.Palette != "" {
		pal, err = pxl.LoadPalette(opts.Palette)
		if err != nil {
			return nil, nil, err
		}
	} else {
		maxColors := opts.MaxColors
		if maxColors == 0 {
			maxColors = pxl.PaletteSize
		}
		speed := opts.Speed
		if speed == 0 {
			speed = 3
		}

		_, pal, err = pxl.Quantize(img, maxColors, speed, opts.Dither)
		if err != nil {
			return nil, nil, errors.Wrap(err, "art: derive palette")
		}
	}

	s, err := pxl.Import(img, pal, w, h, opts.Resampling)
	if err != nil {
		return nil, nil, err
	}

	return s, pal, nil
}
