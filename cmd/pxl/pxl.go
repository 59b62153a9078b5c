package main

import (
	"flag"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/1lann/imagequant"
	"github.com/sirupsen/logrus"

	"github.com/tmpim/pxl"
	"github.com/tmpim/pxl/internal/art"
	"github.com/tmpim/pxl/internal/env"
)

func main() {
	env.Load(logrus.StandardLogger())

	var (
		palettePath = flag.String("palette", env.String("PXL_PALETTE", ""), "set the palette image (derived from the input if empty)")
		indexedPath = flag.String("i", "indexed.png", "set location of the indexed preview (paletted PNG)")
		outputPath  = flag.String("o", "resolved.png", "set location of the resolved output (PNG)")
		size        = flag.String("size", "", "set the logical resolution (defaults to the input size)")
		viewport    = flag.String("viewport", env.String("PXL_VIEWPORT", "1280x720"), "set the output resolution")
		minPixels   = flag.Int("min-pixels", 0, "derive the logical resolution from the viewport with at least this many pixels")
		colors      = flag.Int("colors", pxl.PaletteSize, "set the number of colors derived when no palette is given")
		speed       = flag.Int("q", 3, "set the quantization speed/quality (1 = slowest, 10 = fastest)")
		dither      = flag.Float64("d", 0.2, "set the amount of allowed dithering (0 = none, 1 = most)")
		smooth      = flag.Bool("smooth", false, "resize with a smooth filter instead of nearest neighbour")
		filterPath  = flag.String("filter", "", "set a filter image laid out like the palette image")
		filterFrame = flag.Int("filter-frame", 0, "set the frame of an animated filter to apply")
		logJSON     = flag.Bool("log-json", env.Bool("PXL_LOG_JSON", false), "log as JSON")
		license     = flag.Bool("license", false, "show licensing disclaimers and exit")
	)
	pipelineFlags := env.RegisterPipelineFlags(flag.CommandLine)
	flag.Parse()

	log := env.Logger(*logJSON)

	if *license {
		log.Println("pxl contains code licensed under GPLv3 through libimagequant:")
		log.Println(imagequant.License())
		os.Exit(0)
	}

	if flag.Arg(0) == "" {
		log.Println("Usage: pxl [options] input_image")
		log.Println("")
		log.Println("pxl indexes an image against a palette of up to 256 colors and")
		log.Println("resolves it to a viewport of any size, keeping pixels sharp.")
		log.Println("")
		log.Println("Options:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *speed < 1 || *speed > 10 {
		log.Fatal("Speed must be within 1 and 10.")
	}

	if *dither < 0 || *dither > 1 {
		log.Fatal("Dither must be within 0 and 1.")
	}

	vw, vh, err := env.ParseSize(*viewport)
	if err != nil {
		log.WithError(err).Fatal("Invalid viewport.")
	}

	start := time.Now()

	opts := art.Options{
		Image:     flag.Arg(0),
		Palette:   *palettePath,
		MaxColors: *colors,
		Speed:     *speed,
		Dither:    *dither,
	}
	if *smooth {
		opts.Resampling = pxl.ResampleLanczos
	}

	screen := pxl.MinPixels(*minPixels)
	switch {
	case *minPixels > 0:
		opts.Width, opts.Height = screen.Compute(vw, vh)
	case *size != "":
		opts.Width, opts.Height, err = env.ParseSize(*size)
		if err != nil {
			log.WithError(err).Fatal("Invalid size.")
		}
	}

	surface, pal, err := art.Load(opts)
	if err != nil {
		log.WithError(err).Fatal("Failed to load image.")
	}

	log.WithFields(logrus.Fields{
		"width":  surface.Width(),
		"height": surface.Height(),
		"colors": pal.Len(),
	}).Info("Image indexed, resolving...")

	scene, err := art.LoadScene(surface, pal, *filterPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load filter.")
	}
	scene.Seek(*filterFrame)

	if *minPixels <= 0 {
		screen = pxl.Fixed(surface.Width(), surface.Height())
	}

	config, err := pipelineFlags.Config("pxl", screen, log)
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration.")
	}

	p, err := pxl.NewPipeline(config, pal)
	if err != nil {
		log.WithError(err).Fatal("Failed to create pipeline.")
	}

	if err := p.Resize(vw, vh); err != nil {
		log.WithError(err).Fatal("Failed to resize pipeline.")
	}

	if err := p.Draw(scene.Draw); err != nil {
		log.WithError(err).Fatal("Failed to draw.")
	}

	frame, err := p.Frame()
	if err != nil {
		log.WithError(err).Fatal("Failed to resolve.")
	}

	if err := writePNG(*indexedPath, p.Snapshot().Image(pal)); err != nil {
		log.WithError(err).Warn("Failed to write indexed preview.")
	}

	if err := writePNG(*outputPath, frame); err != nil {
		log.WithError(err).Fatal("Failed to write output.")
	}

	log.WithField("took", time.Since(start).String()).Infof(
		"Done! Indexed preview outputted to %q, resolved image outputted to %q.",
		*indexedPath, *outputPath)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
