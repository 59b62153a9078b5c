package pxl

import (
	"image"
	"image/color"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// IndexSource provides the index surface to resolve.
type IndexSource interface {
	Surface() *Surface
}

// PaletteSource provides the palette to resolve with.
type PaletteSource interface {
	Palette() *Palette
}

// StaticPalette is a PaletteSource that always returns the same palette.
type StaticPalette struct {
	P *Palette
}

// Palette implements PaletteSource.
func (s StaticPalette) Palette() *Palette {
	return s.P
}

// ResolveOptions control how indices are turned into output pixels.
type ResolveOptions struct {
	// Border is written outside the fitted region.
	Border color.RGBA

	// TransparentIndex makes texels holding BackgroundIndex fully
	// transparent instead of the palette's background color.
	TransparentIndex bool
}

// ResolvePixel computes the output color of viewport pixel (ox, oy). The
// surface is sampled nearest-neighbour only; indices are never blended.
func ResolvePixel(ox, oy int, fit Fit, src *Surface, pal *Palette, opts ResolveOptions) color.RGBA {
	x, y, ok := fit.Texel(ox, oy)
	if !ok {
		return opts.Border
	}

	i := src.Index(x, y)
	if opts.TransparentIndex && i == BackgroundIndex {
		return color.RGBA{}
	}

	return pal.Lookup(i)
}

// Resolver runs the resolve pass: every pixel of the destination is mapped
// through the fit transform onto the index surface and colored through the
// palette. Rows are split into bands that are resolved in parallel.
type Resolver struct {
	Policy       FitPolicy
	PixelPerfect bool
	Options      ResolveOptions

	// Workers limits the number of bands resolved at once. Zero uses
	// runtime.NumCPU.
	Workers int

	fitter Fitter
}

// minBandRows is the smallest number of rows worth handing to a worker.
const minBandRows = 8

// Fit returns the fit the resolver would use for a surface of the given
// size drawn into a viewport of the given size.
func (r *Resolver) Fit(surfaceWidth, surfaceHeight, viewportWidth, viewportHeight int) (Fit, error) {
	return r.fitter.Compute(surfaceWidth, surfaceHeight, viewportWidth, viewportHeight,
		r.Policy, r.PixelPerfect)
}

// Resolve renders src through pal into dst. The current surface and palette
// are read once, up front; if either is missing ErrUninitialized is returned
// and dst is left untouched. A destination without area is not an error, the
// pass is simply skipped.
func (r *Resolver) Resolve(dst *image.RGBA, src IndexSource, pal PaletteSource) error {
	if dst == nil {
		return errors.Wrap(ErrUninitialized, "pxl: Resolve: no destination")
	}
	if src == nil || pal == nil {
		return errors.Wrap(ErrUninitialized, "pxl: Resolve: no source")
	}

	surface := src.Surface()
	if surface == nil {
		return errors.Wrap(ErrUninitialized, "pxl: Resolve: index surface not set")
	}

	palette := pal.Palette()
	if palette == nil {
		return errors.Wrap(ErrUninitialized, "pxl: Resolve: palette not set")
	}

	fit, err := r.Fit(surface.Width(), surface.Height(), dst.Rect.Dx(), dst.Rect.Dy())
	if err != nil {
		return err
	}

	r.ResolveFit(dst, surface, palette, fit)
	return nil
}

// ResolveFit renders surface through palette into dst using an already
// computed fit. The fit's viewport must match dst's size.
func (r *Resolver) ResolveFit(dst *image.RGBA, surface *Surface, palette *Palette, fit Fit) {
	if fit.Empty {
		return
	}

	height := dst.Rect.Dy()
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	band := (height + workers - 1) / workers
	if band < minBandRows {
		band = minBandRows
	}

	var g errgroup.Group
	g.SetLimit(workers)

	for y0 := 0; y0 < height; y0 += band {
		y0, y1 := y0, min(y0+band, height)
		g.Go(func() error {
			r.resolveRows(dst, surface, palette, fit, y0, y1)
			return nil
		})
	}

	g.Wait()
}

func (r *Resolver) resolveRows(dst *image.RGBA, surface *Surface, palette *Palette,
	fit Fit, y0, y1 int) {
	width := dst.Rect.Dx()
	for y := y0; y < y1; y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+width*4]
		for x := 0; x < width; x++ {
			c := ResolvePixel(x, y, fit, surface, palette, r.Options)
			row[x*4+0] = c.R
			row[x*4+1] = c.G
			row[x*4+2] = c.B
			row[x*4+3] = c.A
		}
	}
}
