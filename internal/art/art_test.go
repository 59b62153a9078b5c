package art

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmpim/pxl"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestLoadWithPalette(t *testing.T) {
	dir := t.TempDir()

	pal := image.NewRGBA(image.Rect(0, 0, 3, 1))
	pal.Set(0, 0, color.RGBA{A: 255})
	pal.Set(1, 0, color.RGBA{R: 255, A: 255})
	pal.Set(2, 0, color.RGBA{B: 255, A: 255})
	writePNG(t, filepath.Join(dir, "palette.png"), pal)

	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			c := color.RGBA{R: 250, A: 255}
			if x >= 2 {
				c = color.RGBA{B: 240, G: 10, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	writePNG(t, filepath.Join(dir, "art.png"), img)

	s, p, err := Load(Options{
		Image:   filepath.Join(dir, "art.png"),
		Palette: filepath.Join(dir, "palette.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, 4, s.Width())
	assert.Equal(t, []uint8{1, 1, 2, 2, 1, 1, 2, 2}, s.Pix())

	s, _, err = Load(Options{
		Image:   filepath.Join(dir, "art.png"),
		Palette: filepath.Join(dir, "palette.png"),
		Width:   2,
		Height:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 2}, s.Pix())
}

func TestLoadMissingFiles(t *testing.T) {
	_, _, err := Load(Options{Image: filepath.Join(t.TempDir(), "missing.png")})
	assert.Error(t, err)
}

func TestLoadQuantized(t *testing.T) {
	dir := t.TempDir()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			c := color.RGBA{R: 200, G: 30, B: 30, A: 255}
			if y >= 4 {
				c = color.RGBA{R: 20, G: 40, B: 220, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	writePNG(t, filepath.Join(dir, "art.png"), img)

	s, p, err := Load(Options{Image: filepath.Join(dir, "art.png"), MaxColors: 4})
	require.NoError(t, err)
	assert.LessOrEqual(t, p.Len(), 4)

	top, bottom := s.Index(0, 0), s.Index(0, 7)
	assert.NotEqual(t, top, bottom)
	assert.Equal(t, top, s.Index(7, 3))
	assert.InDelta(t, 200, int(p.Lookup(top).R), 8)
	assert.Equal(t, pxl.PaletteSize, len(p.Table()))
}
