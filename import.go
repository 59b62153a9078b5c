package pxl

import (
	"image"
	"image/color"
	"os"

	"github.com/disintegration/gift"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// Resampling selects the filter used when art is resized on import.
type Resampling int

// Resampling filters.
const (
	ResampleNearest Resampling = iota
	ResampleLinear
	ResampleLanczos
)

func (r Resampling) filter() gift.Resampling {
	switch r {
	case ResampleLinear:
		return gift.LinearResampling
	case ResampleLanczos:
		return gift.LanczosResampling
	default:
		return gift.NearestNeighborResampling
	}
}

// toNRGBA returns img as an *image.NRGBA anchored at the origin.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}

	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Indexify converts an image into an index surface using palette pal.
// Fully transparent pixels become BackgroundIndex. In strict mode every
// opaque pixel must match a palette color exactly, otherwise
// ErrColorNotInPalette is returned; without it the nearest color is used.
func Indexify(img image.Image, pal *Palette, strict bool) (*Surface, error) {
	src := toNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()

	s, err := NewSurface(w, h)
	if err != nil {
		return nil, errors.Wrap(err, "pxl: Indexify")
	}

	// Art rarely has many distinct colors, so remember what has been
	// matched already.
	seen := make(map[color.NRGBA]uint8)

	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: row[x*4], G: row[x*4+1], B: row[x*4+2], A: row[x*4+3]}
			if c.A == 0 {
				continue
			}
			c.A = 255

			i, ok := seen[c]
			if !ok {
				if strict {
					i, ok = pal.Index(c)
					if !ok {
						return nil, errors.Wrapf(ErrColorNotInPalette,
							"pxl: Indexify: #%02X%02X%02X at (%d, %d)", c.R, c.G, c.B, x, y)
					}
				} else {
					i = pal.Nearest(c)
				}
				seen[c] = i
			}

			s.pix[y*w+x] = i
		}
	}

	return s, nil
}

// Import resizes arbitrary art to width x height and converts it to an index
// surface with the nearest palette colors. Nearest-neighbour resampling
// keeps pixel art crisp; the smoother filters suit photographs.
func Import(img image.Image, pal *Palette, width, height int, resampling Resampling) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, invalidf("pxl: Import: invalid dimensions %dx%d", width, height)
	}

	src := img
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		g := gift.New(gift.Resize(width, height, resampling.filter()))
		g.SetParallelization(true)

		resized := image.NewNRGBA(g.Bounds(img.Bounds()))
		g.Draw(resized, img)
		src = resized
	}

	return Indexify(src, pal, false)
}

// LoadImage decodes an image file in any registered format.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "pxl: LoadImage")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "pxl: LoadImage: %s", path)
	}

	return img, nil
}
