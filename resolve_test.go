package pxl

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPalette = MustPalette(
	rgb(0, 0, 0),
	rgb(255, 0, 0),
	rgb(0, 255, 0),
	rgb(0, 0, 255),
)

func TestResolveNearestNeighbour(t *testing.T) {
	s := mustSurface(t, 2, 2)
	copy(s.Pix(), []uint8{0, 1, 2, 3})

	dst := image.NewRGBA(image.Rect(0, 0, 4, 4))
	r := &Resolver{Policy: FitContain, Workers: 2}
	require.NoError(t, r.Resolve(dst, s, StaticPalette{testPalette}))

	want := [4][4]uint8{
		{0, 0, 1, 1},
		{0, 0, 1, 1},
		{2, 2, 3, 3},
		{2, 2, 3, 3},
	}

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			assert.Equal(t, testPalette.Lookup(want[y][x]), dst.RGBAAt(x, y), "(%d, %d)", x, y)
		}
	}
}

func TestResolveLetterboxBorder(t *testing.T) {
	s := mustSurface(t, 320, 180)
	s.Fill(1)

	border := rgb(1, 2, 3)
	dst := image.NewRGBA(image.Rect(0, 0, 1000, 1000))
	r := &Resolver{Policy: FitContain, Options: ResolveOptions{Border: border}}
	require.NoError(t, r.Resolve(dst, s, StaticPalette{testPalette}))

	for y := 0; y < 1000; y++ {
		want := testPalette.Lookup(1)
		if y < 219 || y >= 781 {
			want = border
		}
		require.Equal(t, want, dst.RGBAAt(0, y), "row %d", y)
		require.Equal(t, want, dst.RGBAAt(999, y), "row %d", y)
	}
}

func TestResolveMatchesResolvePixel(t *testing.T) {
	s := mustSurface(t, 7, 5)
	for i := range s.Pix() {
		s.Pix()[i] = uint8(i % 4)
	}

	dst := image.NewRGBA(image.Rect(0, 0, 37, 23))
	r := &Resolver{Policy: FitContain, Workers: 3, Options: ResolveOptions{Border: rgb(9, 9, 9)}}
	require.NoError(t, r.Resolve(dst, s, StaticPalette{testPalette}))

	fit, err := r.Fit(7, 5, 37, 23)
	require.NoError(t, err)

	for y := 0; y < 23; y++ {
		for x := 0; x < 37; x++ {
			want := ResolvePixel(x, y, fit, s, testPalette, r.Options)
			require.Equal(t, want, dst.RGBAAt(x, y), "(%d, %d)", x, y)
		}
	}
}

func TestResolveTransparentIndex(t *testing.T) {
	s := mustSurface(t, 2, 1)
	copy(s.Pix(), []uint8{0, 2})

	dst := image.NewRGBA(image.Rect(0, 0, 2, 1))
	r := &Resolver{Options: ResolveOptions{TransparentIndex: true}}
	require.NoError(t, r.Resolve(dst, s, StaticPalette{testPalette}))

	assert.Equal(t, uint8(0), dst.RGBAAt(0, 0).A)
	assert.Equal(t, color.RGBA{G: 255, A: 255}, dst.RGBAAt(1, 0))
}

func TestResolveUninitialized(t *testing.T) {
	s := mustSurface(t, 2, 2)
	r := &Resolver{}

	dst := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range dst.Pix {
		dst.Pix[i] = 0xaa
	}

	err := r.Resolve(dst, s, StaticPalette{})
	assert.True(t, errors.Is(err, ErrUninitialized))

	err = r.Resolve(dst, nil, StaticPalette{testPalette})
	assert.True(t, errors.Is(err, ErrUninitialized))

	err = r.Resolve(dst, nilSurface{}, StaticPalette{testPalette})
	assert.True(t, errors.Is(err, ErrUninitialized))

	for _, v := range dst.Pix {
		require.Equal(t, uint8(0xaa), v, "failed resolve wrote to the destination")
	}
}

func TestResolveEmptyViewport(t *testing.T) {
	s := mustSurface(t, 2, 2)
	r := &Resolver{}

	assert.NoError(t, r.Resolve(image.NewRGBA(image.Rect(0, 0, 0, 0)), s, StaticPalette{testPalette}))
}

// nilSurface is an IndexSource whose surface has not been created yet.
type nilSurface struct{}

func (nilSurface) Surface() *Surface { return nil }

func BenchmarkResolve(b *testing.B) {
	s, _ := NewSurface(320, 180)
	for i := range s.Pix() {
		s.Pix()[i] = uint8(i)
	}
	pal := MustPalette(fullPalette()...)
	dst := image.NewRGBA(image.Rect(0, 0, 1920, 1080))
	r := &Resolver{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Resolve(dst, s, StaticPalette{pal})
	}
}
