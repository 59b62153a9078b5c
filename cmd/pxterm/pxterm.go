package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"

	"github.com/tmpim/pxl"
	"github.com/tmpim/pxl/internal/art"
	"github.com/tmpim/pxl/internal/env"
	"github.com/tmpim/pxl/term"
)

type viewer struct {
	screen    tcell.Screen
	pipeline  *pxl.Pipeline
	presenter *term.Presenter
	scene     *art.Scene
	log       *logrus.Logger
	cycling   bool
	animating bool
}

func (v *viewer) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
			(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
			return false
		}

		if ev.Key() == tcell.KeyRune {
			switch ev.Rune() {
			case 'p':
				v.cycling = !v.cycling
			case 'f':
				v.animating = !v.animating
			}
		}

	case *tcell.EventResize:
		if err := v.presenter.Resize(); err != nil {
			v.log.WithError(err).Error("resize failed")
		}
		v.screen.Sync()
	}

	return true
}

func (v *viewer) run() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			eventChan <- v.screen.PollEvent()
		}
	}()

	v.show()

	for {
		select {
		case ev := <-eventChan:
			if ev == nil || !v.handleInput(ev) {
				return
			}
			v.show()

		case <-ticker.C:
			changed := false
			if v.cycling {
				pal := v.pipeline.Palette()
				v.pipeline.SetPalette(pal.Rotate(1, pal.Len()-1))
				changed = true
			}
			if v.animating && v.scene.Step() {
				if err := v.pipeline.Draw(v.scene.Draw); err != nil {
					v.log.WithError(err).Error("draw failed")
				}
				changed = true
			}
			if changed {
				v.show()
			}
		}
	}
}

func (v *viewer) show() {
	if err := v.presenter.Show(); err != nil {
		v.log.WithError(err).Error("show failed")
	}
}

func main() {
	env.Load(logrus.StandardLogger())

	var (
		palettePath = flag.String("palette", env.String("PXL_PALETTE", ""), "set the palette image (derived from the image if empty)")
		size        = flag.String("size", env.String("PXL_SIZE", ""), "set the logical resolution (defaults to the image size)")
		filterPath  = flag.String("filter", "", "set a filter image laid out like the palette image, f animates it")
		logPath     = flag.String("log", "", "write logs to this file")
	)
	pipelineFlags := env.RegisterPipelineFlags(flag.CommandLine)
	flag.Parse()

	log := env.Logger(false)
	log.SetOutput(io.Discard)
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage:", os.Args[0], "[options] image")
		flag.PrintDefaults()
		os.Exit(1)
	}

	opts := art.Options{Image: flag.Arg(0), Palette: *palettePath}
	if *size != "" {
		var err error
		opts.Width, opts.Height, err = env.ParseSize(*size)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid size: %v\n", err)
			os.Exit(1)
		}
	}

	surface, pal, err := art.Load(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}

	config, err := pipelineFlags.Config("pxterm", pxl.Fixed(surface.Width(), surface.Height()), log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	p, err := pxl.NewPipeline(config, pal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create pipeline: %v\n", err)
		os.Exit(1)
	}

	scene, err := art.LoadScene(surface, pal, *filterPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load filter: %v\n", err)
		os.Exit(1)
	}
	p.Draw(scene.Draw)

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer screen.Fini()

	v := &viewer{
		screen:    screen,
		pipeline:  p,
		presenter: term.NewPresenter(screen, p),
		scene:     scene,
		log:       log,
	}
	v.run()
}
