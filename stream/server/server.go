package main

import (
	"flag"
	"time"

	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"github.com/sirupsen/logrus"

	"github.com/tmpim/pxl"
	"github.com/tmpim/pxl/internal/art"
	"github.com/tmpim/pxl/internal/env"
	"github.com/tmpim/pxl/stream"
)

func main() {
	env.Load(logrus.StandardLogger())

	var (
		addr        = flag.String("addr", env.String("PXL_ADDR", ":9999"), "set the address to listen on")
		imagePath   = flag.String("image", env.String("PXL_IMAGE", ""), "set the image shown until something is played")
		palettePath = flag.String("palette", env.String("PXL_PALETTE", ""), "set the palette image (derived from -image if empty)")
		size        = flag.String("size", env.String("PXL_SIZE", "160x90"), "set the logical resolution")
		fps         = flag.Int("fps", env.Int("PXL_FPS", stream.DefaultFramerate), "set the frame rate for cycling and playback")
		cycle       = flag.String("cycle", env.String("PXL_CYCLE", ""), "rotate palette entries first-last every frame, e.g. 1-15")
		logJSON     = flag.Bool("log-json", env.Bool("PXL_LOG_JSON", false), "log as JSON")
	)
	pipelineFlags := env.RegisterPipelineFlags(flag.CommandLine)
	flag.Parse()

	log := env.Logger(*logJSON)

	w, h, err := env.ParseSize(*size)
	if err != nil {
		log.WithError(err).Fatal("invalid size")
	}

	config, err := pipelineFlags.Config("stream", pxl.Fixed(w, h), log)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	if *fps <= 0 {
		log.Fatal("fps must be positive")
	}

	first, last, err := parseCycle(*cycle)
	if err != nil {
		log.WithError(err).Fatal("invalid cycle")
	}

	var pal *pxl.Palette
	var surface *pxl.Surface
	if *imagePath != "" {
		surface, pal, err = art.Load(art.Options{
			Image:   *imagePath,
			Palette: *palettePath,
			Width:   w,
			Height:  h,
		})
		if err != nil {
			log.WithError(err).Fatal("failed to load image")
		}
	} else if *palettePath != "" {
		pal, err = pxl.LoadPalette(*palettePath)
		if err != nil {
			log.WithError(err).Fatal("failed to load palette")
		}
	}

	p, err := pxl.NewPipeline(config, pal)
	if err != nil {
		log.WithError(err).Fatal("failed to create pipeline")
	}

	if surface != nil {
		p.Draw(func(s *pxl.Surface) {
			copy(s.Pix(), surface.Pix())
		})
	}

	srv := stream.NewServer(stream.NewManager("stream", log), p, log)
	if pal != nil {
		if err := srv.PublishFrame(); err != nil {
			log.WithError(err).Warn("failed to publish first frame")
		}
	}

	if last > first {
		go cyclePalette(srv, first, last, *fps)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())

	srv.Register(e.Group("/api"))

	log.WithField("addr", *addr).Info("listening")
	log.Fatal(e.Start(*addr))
}

func cyclePalette(srv *stream.Server, first, last, fps int) {
	t := time.NewTicker(time.Second / time.Duration(fps))
	defer t.Stop()

	for range t.C {
		if srv.Playing() {
			continue
		}

		pal := srv.Pipeline.Palette()
		if pal == nil {
			continue
		}

		srv.Pipeline.SetPalette(pal.Rotate(first, last))
		srv.PublishFrame()
	}
}
