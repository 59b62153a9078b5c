package main

import (
	"bytes"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tmpim/pxl"
	"github.com/tmpim/pxl/internal/env"
)

func main() {
	var (
		palettePath = flag.String("palette", "", "set the palette image (derived from the input if empty)")
		size        = flag.String("size", "320x180", "set the logical resolution")
		viewport    = flag.String("viewport", "1920x1080", "set the resolved resolution")
		goroutines  = flag.Int("g", 8, "set the number of concurrent pipelines")
		frames      = flag.Int("n", 100, "set the number of frames per pipeline")
	)
	flag.Parse()

	if flag.Arg(0) == "" {
		panic("must have path to image")
	}

	img, err := pxl.LoadImage(flag.Arg(0))
	if err != nil {
		panic(err)
	}

	w, h, err := env.ParseSize(*size)
	if err != nil {
		panic(err)
	}

	vw, vh, err := env.ParseSize(*viewport)
	if err != nil {
		panic(err)
	}

	var pal *pxl.Palette
	if *palettePath != "" {
		pal, err = pxl.LoadPalette(*palettePath)
	} else {
		_, pal, err = pxl.Quantize(img, pxl.PaletteSize, 10, 0)
	}
	if err != nil {
		panic(err)
	}

	surface, err := pxl.Import(img, pal, w, h, pxl.ResampleNearest)
	if err != nil {
		panic(err)
	}

	log := logrus.New()
	wg := new(sync.WaitGroup)

	start := time.Now()

	for g := 0; g < *goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			p, err := pxl.NewPipeline(pxl.Config{
				Size:   pxl.Fixed(w, h),
				Logger: log,
			}, pal)
			if err != nil {
				panic(err)
			}
			p.Resize(vw, vh)

			dst := image.NewRGBA(image.Rect(0, 0, vw, vh))
			buf := new(bytes.Buffer)

			for i := 0; i < *frames; i++ {
				p.Draw(func(s *pxl.Surface) {
					copy(s.Pix(), surface.Pix())
				})

				if err := p.ResolveInto(dst); err != nil {
					panic(err)
				}

				buf.Reset()
				pxl.NewFrameChunk(surface, pal).WriteTo(buf)
			}
		}()
	}

	wg.Wait()

	took := time.Since(start)
	total := *goroutines * *frames
	fmt.Println("took:", took)
	fmt.Printf("%.1f frames/s at %dx%d\n", float64(total)/took.Seconds(), vw, vh)
}
