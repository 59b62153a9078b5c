package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"github.com/tmpim/pxl"
	"github.com/tmpim/pxl/internal/env"
	"github.com/tmpim/pxl/stream"
)

// video indexes every frame of a video against a palette and writes them as
// back to back frame chunks. With "-" as input, BMP frames are read from
// stdin instead of going through ffmpeg.
func main() {
	env.Load(logrus.StandardLogger())

	var (
		palettePath = flag.String("palette", env.String("PXL_PALETTE", ""), "set the palette image")
		outputPath  = flag.String("o", "video.pxf", "set location of the output frame file")
		size        = flag.String("size", env.String("PXL_SIZE", "160x90"), "set the logical resolution")
		fps         = flag.Int("fps", env.Int("PXL_FPS", stream.DefaultFramerate), "set the frame rate")
		workers     = flag.Int("workers", 0, "set the number of frames indexed at once (0 = one per CPU)")
		logJSON     = flag.Bool("log-json", env.Bool("PXL_LOG_JSON", false), "log as JSON")
	)
	flag.Parse()

	log := env.Logger(*logJSON)

	if flag.Arg(0) == "" || *palettePath == "" {
		log.Println("Usage: video -palette palette.png [options] input_video|-")
		flag.PrintDefaults()
		os.Exit(1)
	}

	w, h, err := env.ParseSize(*size)
	if err != nil {
		log.WithError(err).Fatal("Invalid size.")
	}

	pal, err := pxl.LoadPalette(*palettePath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load palette.")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var input io.Reader = os.Stdin
	if flag.Arg(0) != "-" {
		cmd := stream.FileCommand(ctx, flag.Arg(0), w, h, *fps)
		cmd.Stderr = os.Stderr
		rd, err := cmd.StdoutPipe()
		if err != nil {
			log.WithError(err).Fatal("Failed to pipe ffmpeg.")
		}
		if err := cmd.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start ffmpeg.")
		}
		defer cmd.Wait()
		input = rd
	}

	file, err := os.Create(*outputPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to create output.")
	}
	defer file.Close()

	out := bufio.NewWriter(file)
	defer out.Flush()

	frames := make(chan *pxl.Surface, *fps)
	errChan := make(chan error, 1)
	go func() {
		errChan <- pxl.DecodeSequence(ctx, input, frames, pxl.SequenceOptions{
			Palette: pal,
			Width:   w,
			Height:  h,
			Workers: *workers,
			Logger:  log,
		})
	}()

	count := 0
	for frame := range frames {
		if _, err := pxl.NewFrameChunk(frame, pal).WriteTo(out); err != nil {
			log.WithError(err).Error("Error writing frame.")
			cancel()
			for range frames {
			}
			break
		}
		count++
	}

	if err := <-errChan; err != nil {
		log.WithError(err).Error("Decoding stopped early.")
	}

	log.WithField("frames", count).Infof("Done! Frames outputted to %q.", *outputPath)
}
