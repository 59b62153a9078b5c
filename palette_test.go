package pxl

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rgb(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func fullPalette() []color.Color {
	colors := make([]color.Color, PaletteSize)
	for i := range colors {
		colors[i] = rgb(uint8(i), uint8(255-i), uint8(i*7))
	}
	return colors
}

func TestPaletteRoundTrip(t *testing.T) {
	colors := fullPalette()
	slot := NewPaletteSlot(nil)
	slot.Replace(MustPalette(colors...))

	p := slot.Palette()
	require.NotNil(t, p)
	for i := 0; i < PaletteSize; i++ {
		assert.Equal(t, colors[i], p.Lookup(uint8(i)), "index %d", i)
	}
}

func TestPaletteUnsetEntriesAreBlack(t *testing.T) {
	p := MustPalette(rgb(10, 20, 30), rgb(200, 100, 0))

	assert.Equal(t, 2, p.Len())
	assert.Equal(t, rgb(200, 100, 0), p.Lookup(1))
	for i := 2; i < PaletteSize; i++ {
		require.Equal(t, rgb(0, 0, 0), p.Lookup(uint8(i)))
	}
}

func TestPaletteTooManyColors(t *testing.T) {
	colors := append(fullPalette(), rgb(1, 2, 3))

	_, err := NewPalette(colors)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
}

func TestPaletteIndexAndNearest(t *testing.T) {
	p := MustPalette(rgb(0, 0, 0), rgb(255, 0, 0), rgb(0, 0, 255), rgb(255, 0, 0))

	i, ok := p.Index(rgb(255, 0, 0))
	require.True(t, ok)
	assert.Equal(t, uint8(1), i, "duplicates keep the first index")

	_, ok = p.Index(rgb(1, 1, 1))
	assert.False(t, ok)

	assert.Equal(t, uint8(1), p.Nearest(rgb(230, 20, 10)))
	assert.Equal(t, uint8(2), p.Nearest(rgb(10, 20, 220)))
	assert.Equal(t, uint8(0), p.Nearest(rgb(12, 12, 12)))
}

func TestPaletteFromImage(t *testing.T) {
	// Bottom row is read first, transparent pixels are skipped.
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 1, color.NRGBA{R: 1, A: 255})
	img.Set(1, 1, color.NRGBA{R: 2, A: 255})
	img.Set(0, 0, color.NRGBA{R: 3, A: 0})
	img.Set(1, 0, color.NRGBA{R: 4, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	p, err := DecodePalette(&buf)
	require.NoError(t, err)

	assert.Equal(t, 3, p.Len())
	assert.Equal(t, rgb(1, 0, 0), p.Lookup(0))
	assert.Equal(t, rgb(2, 0, 0), p.Lookup(1))
	assert.Equal(t, rgb(4, 0, 0), p.Lookup(2))
	assert.Equal(t, image.Pt(2, 2), p.Size())
	assert.Equal(t, image.Pt(2, 2), p.Rotate(0, 2).Size())
	assert.Equal(t, image.Pt(3, 1), MustPalette(rgb(1, 0, 0), rgb(2, 0, 0), rgb(3, 0, 0)).Size())
}

func TestPaletteFromTransparentImage(t *testing.T) {
	_, err := PaletteFromImage(image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
}

func TestPaletteRotate(t *testing.T) {
	p := MustPalette(rgb(0, 0, 0), rgb(1, 0, 0), rgb(2, 0, 0), rgb(3, 0, 0))
	r := p.Rotate(1, 3)

	assert.Equal(t, rgb(0, 0, 0), r.Lookup(0))
	assert.Equal(t, rgb(3, 0, 0), r.Lookup(1))
	assert.Equal(t, rgb(1, 0, 0), r.Lookup(2))
	assert.Equal(t, rgb(2, 0, 0), r.Lookup(3))
	assert.Equal(t, rgb(1, 0, 0), p.Lookup(1), "source palette is untouched")
}

func TestPaletteLinear(t *testing.T) {
	p := MustPalette(rgb(0, 0, 0), rgb(255, 255, 255), rgb(128, 128, 128))
	lin := p.Linear()

	assert.InDelta(t, 0, lin[0][0], 1e-6)
	assert.InDelta(t, 1, lin[1][1], 1e-6)
	assert.InDelta(t, 0.2158, lin[2][2], 1e-3)
}

func TestPaletteSlotSwapIsWhole(t *testing.T) {
	a := make([]color.Color, PaletteSize)
	b := make([]color.Color, PaletteSize)
	for i := range a {
		a[i] = rgb(10, 10, 10)
		b[i] = rgb(20, 20, 20)
	}
	pa, pb := MustPalette(a...), MustPalette(b...)
	slot := NewPaletteSlot(pa)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if i%2 == 0 {
				slot.Replace(pb)
			} else {
				slot.Replace(pa)
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		p := slot.Palette()
		first := p.Lookup(0)
		for j := 1; j < PaletteSize; j++ {
			require.Equal(t, first, p.Lookup(uint8(j)))
		}
	}
	wg.Wait()
}
