package pxl

import (
	"image"
	"image/color"

	"github.com/1lann/imagequant"
	"github.com/pkg/errors"
)

// Quantize reduces a truecolor image to at most maxColors colors, returning
// the derived palette and the image as an index surface. Speed ranges from
// 1 (slowest, best) to 10, dither from 0 (none) to 1.
//
// Index 0 of the derived palette is whatever color the quantizer placed
// first; callers that reserve BackgroundIndex should remap afterwards.
func Quantize(img image.Image, maxColors, speed int, dither float64) (*Surface, *Palette, error) {
	if maxColors < 2 || maxColors > PaletteSize {
		return nil, nil, invalidf("pxl: Quantize: max colors must be within 2 and %d", PaletteSize)
	}

	attr, err := getAttributes(maxColors, speed)
	if err != nil {
		return nil, nil, errors.Wrap(err, "pxl: Quantize")
	}
	defer attr.Release()

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	quant, err := imagequant.NewImage(attr, imagequant.GoImageToRgba32(img), w, h, 0)
	if err != nil {
		return nil, nil, errors.Wrap(err, "pxl: Quantize: NewImage")
	}
	defer quant.Release()

	res, err := quant.Quantize(attr)
	if err != nil {
		return nil, nil, errors.Wrap(err, "pxl: Quantize")
	}
	defer res.Release()

	err = res.SetDitheringLevel(float32(dither))
	if err != nil {
		return nil, nil, errors.Wrap(err, "pxl: Quantize: SetDitheringLevel")
	}

	indices, err := res.WriteRemappedImage()
	if err != nil {
		return nil, nil, errors.Wrap(err, "pxl: Quantize: WriteRemappedImage")
	}

	colors := res.GetPalette()
	palColors := make([]color.Color, len(colors))
	for i, c := range colors {
		palColors[i] = c
	}

	pal, err := NewPalette(palColors)
	if err != nil {
		return nil, nil, err
	}

	s, err := NewSurface(res.GetImageWidth(), res.GetImageHeight())
	if err != nil {
		return nil, nil, err
	}
	copy(s.pix, indices)

	return s, pal, nil
}

func getAttributes(maxColors, speed int) (*imagequant.Attributes, error) {
	attr, err := imagequant.NewAttributes()
	if err != nil {
		return nil, errors.Wrap(err, "NewAttributes")
	}

	err = attr.SetSpeed(speed)
	if err != nil {
		attr.Release()
		return nil, errors.Wrap(err, "SetSpeed")
	}

	err = attr.SetMaxColors(maxColors)
	if err != nil {
		attr.Release()
		return nil, errors.Wrap(err, "SetMaxColors")
	}

	return attr, nil
}
