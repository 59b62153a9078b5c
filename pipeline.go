package pxl

import (
	"image"
	"image/color"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config configures a Pipeline.
type Config struct {
	// Name identifies the pipeline in log output.
	Name string

	Size         ScreenSize
	Policy       FitPolicy
	PixelPerfect bool
	Border       color.RGBA

	// TransparentIndex resolves BackgroundIndex to a transparent pixel, for
	// compositing the output onto further layers.
	TransparentIndex bool

	// Workers limits resolve parallelism. Zero uses every CPU.
	Workers int

	Logger logrus.FieldLogger
}

func (c *Config) validate() error {
	if err := c.Size.validate(); err != nil {
		return err
	}
	if c.Policy < FitContain || c.Policy > FitStretch {
		return invalidf("pxl: NewPipeline: unknown fit policy %d", c.Policy)
	}
	if c.Workers < 0 {
		return invalidf("pxl: NewPipeline: workers must not be negative")
	}
	return nil
}

// ParseColor parses a color of the form "#rrggbb" or "rrggbb".
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.RGBA{}, invalidf("pxl: ParseColor: malformed color %q", s)
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, invalidf("pxl: ParseColor: malformed color %q", s)
	}

	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// Pipeline owns an index surface, a palette slot and a resolver, and
// sequences the two phases of a frame: drawing indices into the surface and
// resolving the surface into colors. The phases never overlap. Independent
// pipelines share nothing and can run side by side.
type Pipeline struct {
	config   Config
	log      logrus.FieldLogger
	palette  *PaletteSlot
	resolver *Resolver

	// phase serializes the draw and resolve phases.
	phase    sync.Mutex
	surface  *Surface
	viewport image.Point
	failing  bool
}

// NewPipeline creates a pipeline. The configuration is validated here and
// a malformed one is rejected with ErrInvalidConfiguration. pal may be nil
// and set later with SetPalette.
func NewPipeline(config Config, pal *Palette) (*Pipeline, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	p := &Pipeline{
		config:  config,
		log:     logger.WithField("pipeline", config.Name),
		palette: NewPaletteSlot(pal),
		resolver: &Resolver{
			Policy:       config.Policy,
			PixelPerfect: config.PixelPerfect,
			Workers:      config.Workers,
			Options: ResolveOptions{
				Border:           config.Border,
				TransparentIndex: config.TransparentIndex,
			},
		},
	}

	if config.Size.IsFixed() {
		w, h := config.Size.Compute(0, 0)
		s, err := NewSurface(w, h)
		if err != nil {
			return nil, err
		}
		p.surface = s
	}

	return p, nil
}

// Config returns the pipeline's configuration.
func (p *Pipeline) Config() Config {
	return p.config
}

// LogicalSize returns the logical resolution. ok is false until it is known,
// which for MinPixels sizes is after the first Resize.
func (p *Pipeline) LogicalSize() (width, height int, ok bool) {
	p.phase.Lock()
	defer p.phase.Unlock()

	if p.surface == nil {
		return 0, 0, false
	}
	return p.surface.Width(), p.surface.Height(), true
}

// Snapshot returns a copy of the surface as it stands between frames, or nil
// if the logical resolution is not known yet. The live surface is only
// handed out during Draw.
func (p *Pipeline) Snapshot() *Surface {
	p.phase.Lock()
	defer p.phase.Unlock()

	if p.surface == nil {
		return nil
	}
	return p.surface.Clone()
}

// Palette implements PaletteSource.
func (p *Pipeline) Palette() *Palette {
	return p.palette.Palette()
}

// SetPalette replaces the palette. A frame being resolved keeps the palette
// it started with.
func (p *Pipeline) SetPalette(pal *Palette) {
	p.palette.Replace(pal)
}

// Viewport returns the current viewport size.
func (p *Pipeline) Viewport() image.Point {
	p.phase.Lock()
	defer p.phase.Unlock()
	return p.viewport
}

// Resize sets the viewport size. For viewport-derived screen sizes the
// surface is resized to the new logical resolution.
func (p *Pipeline) Resize(width, height int) error {
	p.phase.Lock()
	defer p.phase.Unlock()

	p.viewport = image.Pt(width, height)

	if p.config.Size.IsFixed() || width <= 0 || height <= 0 {
		return nil
	}

	lw, lh := p.config.Size.Compute(width, height)
	if p.surface == nil {
		s, err := NewSurface(lw, lh)
		if err != nil {
			return err
		}
		p.surface = s
		return nil
	}

	return p.surface.Resize(lw, lh)
}

// Draw runs fn as the draw phase of a frame. fn has exclusive access to the
// surface until it returns; it may hand disjoint Regions to other goroutines
// as long as they finish before fn returns.
func (p *Pipeline) Draw(fn func(*Surface)) error {
	p.phase.Lock()
	defer p.phase.Unlock()

	if p.surface == nil {
		return errors.Wrap(ErrUninitialized, "pxl: Draw: logical resolution not known yet")
	}

	fn(p.surface)
	return nil
}

// Fit returns the fit for the current surface and viewport.
func (p *Pipeline) Fit() (Fit, error) {
	p.phase.Lock()
	defer p.phase.Unlock()

	if p.surface == nil {
		return Fit{}, errors.Wrap(ErrUninitialized, "pxl: Fit: logical resolution not known yet")
	}

	return p.resolver.Fit(p.surface.Width(), p.surface.Height(), p.viewport.X, p.viewport.Y)
}

// Frame runs the resolve phase and returns a new image of the viewport's
// size. It returns a nil image and no error when the viewport has no area.
func (p *Pipeline) Frame() (*image.RGBA, error) {
	p.phase.Lock()
	defer p.phase.Unlock()

	if p.viewport.X <= 0 || p.viewport.Y <= 0 {
		return nil, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, p.viewport.X, p.viewport.Y))
	if err := p.resolve(dst); err != nil {
		return nil, err
	}

	return dst, nil
}

// ResolveInto runs the resolve phase into dst, whose size is used as the
// viewport for this frame.
func (p *Pipeline) ResolveInto(dst *image.RGBA) error {
	p.phase.Lock()
	defer p.phase.Unlock()

	return p.resolve(dst)
}

func (p *Pipeline) resolve(dst *image.RGBA) error {
	var err error
	if p.surface == nil {
		err = errors.Wrap(ErrUninitialized, "pxl: Frame: index surface not set")
	} else {
		err = p.resolver.Resolve(dst, p.surface, p.palette)
	}

	if err != nil {
		if !p.failing {
			p.log.WithError(err).Error("resolve skipped")
			p.failing = true
		}
		return err
	}

	if p.failing {
		p.log.Info("resolve recovered")
		p.failing = false
	}

	return nil
}
