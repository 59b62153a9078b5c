package pxl

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			c := color.RGBA{R: 255, A: 255}
			if x >= 2 {
				c = color.RGBA{G: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}

	s, p, err := Quantize(img, 16, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Width())
	assert.Equal(t, 4, s.Height())
	assert.LessOrEqual(t, p.Len(), 16)

	left, right := s.Index(0, 0), s.Index(3, 3)
	assert.NotEqual(t, left, right)
	assert.Equal(t, left, s.Index(1, 2))
	assert.InDelta(t, 255, int(p.Lookup(left).R), 4)
	assert.InDelta(t, 255, int(p.Lookup(right).G), 4)
}

func TestQuantizeInvalid(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	for _, n := range []int{0, 1, 257} {
		_, _, err := Quantize(img, n, 10, 0)
		assert.True(t, errors.Is(err, ErrInvalidConfiguration), n)
	}
}
