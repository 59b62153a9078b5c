package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/tmpim/pxl/internal/art"
	"github.com/tmpim/pxl/internal/env"
)

func init() {
	runtime.LockOSThread()
}

// Config holds the viewer's command line options.
type Config struct {
	Art      art.Options
	Pipeline *env.PipelineFlags
	Width    int
	Height   int
	Cycle    bool
	Log      *logrus.Logger
}

func parseArgs() *Config {
	env.Load(logrus.StandardLogger())

	var c Config
	var size, window string

	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage:", os.Args[0], "[options] image")
		flag.PrintDefaults()
	}

	flag.StringVar(&c.Art.Palette, "palette", env.String("PXL_PALETTE", ""), "set the palette image (derived from the image if empty)")
	flag.StringVar(&size, "size", env.String("PXL_SIZE", ""), "set the logical resolution (defaults to the image size)")
	flag.StringVar(&window, "window", env.String("PXL_WINDOW", "1280x720"), "set the initial window size")
	flag.BoolVar(&c.Cycle, "cycle", false, "start with palette cycling enabled")
	logJSON := flag.Bool("log-json", env.Bool("PXL_LOG_JSON", false), "log as JSON")
	c.Pipeline = env.RegisterPipelineFlags(flag.CommandLine)
	flag.Parse()

	c.Log = env.Logger(*logJSON)

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}
	c.Art.Image = flag.Arg(0)

	var err error
	if size != "" {
		c.Art.Width, c.Art.Height, err = env.ParseSize(size)
		if err != nil {
			c.Log.WithError(err).Fatal("invalid size")
		}
	}

	c.Width, c.Height, err = env.ParseSize(window)
	if err != nil {
		c.Log.WithError(err).Fatal("invalid window size")
	}

	return &c
}

func main() {
	c := parseArgs()
	if err := NewApp(c).Run(); err != nil {
		c.Log.Fatal(err)
	}
}
