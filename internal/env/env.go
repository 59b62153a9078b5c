// Package env holds the configuration plumbing shared by the commands:
// .env loading, PXL_* defaults, logger setup and pipeline flags.
package env

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tmpim/pxl"
)

// Load loads a .env file from the working directory, if there is one.
// Variables already set in the environment take precedence.
func Load(log logrus.FieldLogger) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("failed to load .env")
	}
}

// String returns the environment variable key, or def if it is unset.
func String(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// Int returns the environment variable key as an int, or def if it is unset
// or malformed.
func Int(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return n
}

// Bool returns the environment variable key as a bool, or def if it is
// unset or malformed.
func Bool(key string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return b
}

// ParseSize parses a size of the form "WxH".
func ParseSize(s string) (width, height int, err error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) == 2 {
		width, err = strconv.Atoi(parts[0])
		if err == nil {
			height, err = strconv.Atoi(parts[1])
		}
		if err == nil && width > 0 && height > 0 {
			return width, height, nil
		}
	}

	return 0, 0, errors.Wrapf(pxl.ErrInvalidConfiguration, "env: malformed size %q", s)
}

// Logger returns a logger writing to stderr at the level in PXL_LOG_LEVEL.
func Logger(json bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	if json {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(String("PXL_LOG_LEVEL", "info"))
	if err != nil {
		log.WithError(err).Warn("invalid PXL_LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log
}

// PipelineFlags are the presentation options every command accepts.
type PipelineFlags struct {
	Policy       string
	PixelPerfect bool
	Border       string
	Transparent  bool
	Workers      int
}

// RegisterPipelineFlags registers the presentation flags on fs, with
// defaults taken from PXL_* variables.
func RegisterPipelineFlags(fs *flag.FlagSet) *PipelineFlags {
	f := new(PipelineFlags)
	fs.StringVar(&f.Policy, "policy", String("PXL_POLICY", "fit"),
		"set how the surface fills the viewport (fit, fill, stretch)")
	fs.BoolVar(&f.PixelPerfect, "pixel-perfect", Bool("PXL_PIXEL_PERFECT", false),
		"only scale by whole numbers")
	fs.StringVar(&f.Border, "border", String("PXL_BORDER", "#000000"),
		"set the color around the fitted surface")
	fs.BoolVar(&f.Transparent, "transparent", Bool("PXL_TRANSPARENT", false),
		"resolve index 0 to transparent pixels")
	fs.IntVar(&f.Workers, "workers", Int("PXL_WORKERS", 0),
		"set the number of resolve workers (0 = one per CPU)")
	return f
}

// Config returns a pipeline configuration from the flags.
func (f *PipelineFlags) Config(name string, size pxl.ScreenSize, log logrus.FieldLogger) (pxl.Config, error) {
	policy, err := pxl.ParsePolicy(f.Policy)
	if err != nil {
		return pxl.Config{}, err
	}

	border, err := pxl.ParseColor(f.Border)
	if err != nil {
		return pxl.Config{}, err
	}

	return pxl.Config{
		Name:             name,
		Size:             size,
		Policy:           policy,
		PixelPerfect:     f.PixelPerfect,
		Border:           border,
		TransparentIndex: f.Transparent,
		Workers:          f.Workers,
		Logger:           log,
	}, nil
}
