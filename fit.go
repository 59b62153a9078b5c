package pxl

import (
	"image"
	"math"
	"strings"
	"sync"
)

// FitPolicy selects how the logical resolution is mapped onto the viewport.
type FitPolicy int

// Fit policies.
const (
	// FitContain preserves the aspect ratio and letterboxes (fit).
	FitContain FitPolicy = iota
	// FitCover preserves the aspect ratio and crops (fill).
	FitCover
	// FitStretch scales each axis independently (stretch).
	FitStretch
)

func (p FitPolicy) String() string {
	switch p {
	case FitContain:
		return "fit"
	case FitCover:
		return "fill"
	case FitStretch:
		return "stretch"
	default:
		return "unknown"
	}
}

// ParsePolicy parses "fit", "fill" or "stretch". "contain" and "cover" are
// accepted as aliases.
func ParsePolicy(s string) (FitPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fit", "contain", "":
		return FitContain, nil
	case "fill", "cover":
		return FitCover, nil
	case "stretch":
		return FitStretch, nil
	}
	return FitContain, invalidf("pxl: ParsePolicy: unknown fit policy %q", s)
}

// Fit maps logical texel coordinates onto viewport pixels:
// viewport = logical*scale + offset.
type Fit struct {
	LogicalWidth   int
	LogicalHeight  int
	ViewportWidth  int
	ViewportHeight int

	ScaleX  float64
	ScaleY  float64
	OffsetX float64
	OffsetY float64

	// Empty is set when the viewport has no area and nothing should be drawn.
	Empty bool
}

// ComputeFit computes the transform for the given logical resolution and
// viewport. A logical resolution without area is invalid; a viewport without
// area yields an empty fit.
//
// In pixel perfect mode the scale is quantized to an integer: rounded down
// for FitContain and FitStretch and rounded up for FitCover, so the viewport
// stays covered. The scale is never below 1, so a viewport smaller than the
// logical resolution shows a centered crop, with negative offsets.
func ComputeFit(logicalWidth, logicalHeight, viewportWidth, viewportHeight int,
	policy FitPolicy, pixelPerfect bool) (Fit, error) {
	if logicalWidth <= 0 || logicalHeight <= 0 {
		return Fit{}, invalidf("pxl: ComputeFit: invalid logical resolution %dx%d",
			logicalWidth, logicalHeight)
	}

	f := Fit{
		LogicalWidth:   logicalWidth,
		LogicalHeight:  logicalHeight,
		ViewportWidth:  viewportWidth,
		ViewportHeight: viewportHeight,
	}

	if viewportWidth <= 0 || viewportHeight <= 0 {
		f.Empty = true
		return f, nil
	}

	sx := float64(viewportWidth) / float64(logicalWidth)
	sy := float64(viewportHeight) / float64(logicalHeight)

	switch policy {
	case FitContain:
		s := math.Min(sx, sy)
		if pixelPerfect {
			s = math.Max(1, math.Floor(s))
		}
		f.ScaleX, f.ScaleY = s, s
	case FitCover:
		s := math.Max(sx, sy)
		if pixelPerfect {
			s = math.Ceil(s)
		}
		f.ScaleX, f.ScaleY = s, s
	case FitStretch:
		if pixelPerfect {
			sx = math.Max(1, math.Floor(sx))
			sy = math.Max(1, math.Floor(sy))
		}
		f.ScaleX, f.ScaleY = sx, sy
	default:
		return Fit{}, invalidf("pxl: ComputeFit: unknown fit policy %d", policy)
	}

	f.OffsetX = (float64(viewportWidth) - float64(logicalWidth)*f.ScaleX) / 2
	f.OffsetY = (float64(viewportHeight) - float64(logicalHeight)*f.ScaleY) / 2

	return f, nil
}

// ToLogical maps the centre of viewport pixel (ox, oy) to logical texture
// coordinates.
func (f Fit) ToLogical(ox, oy int) (lx, ly float64) {
	lx = (float64(ox) + 0.5 - f.OffsetX) / f.ScaleX
	ly = (float64(oy) + 0.5 - f.OffsetY) / f.ScaleY
	return
}

// Texel returns the logical texel sampled for viewport pixel (ox, oy), and
// whether that pixel lies inside the fitted region.
func (f Fit) Texel(ox, oy int) (x, y int, ok bool) {
	if f.Empty {
		return 0, 0, false
	}

	lx, ly := f.ToLogical(ox, oy)
	if lx < 0 || ly < 0 || lx >= float64(f.LogicalWidth) || ly >= float64(f.LogicalHeight) {
		return 0, 0, false
	}

	return int(lx), int(ly), true
}

// Rect returns the viewport pixels whose centres fall inside the fitted
// region, clipped to the viewport.
func (f Fit) Rect() image.Rectangle {
	if f.Empty {
		return image.Rectangle{}
	}

	x0 := int(math.Ceil(f.OffsetX - 0.5))
	y0 := int(math.Ceil(f.OffsetY - 0.5))
	x1 := int(math.Ceil(f.OffsetX + float64(f.LogicalWidth)*f.ScaleX - 0.5))
	y1 := int(math.Ceil(f.OffsetY + float64(f.LogicalHeight)*f.ScaleY - 0.5))

	return image.Rect(x0, y0, x1, y1).
		Intersect(image.Rect(0, 0, f.ViewportWidth, f.ViewportHeight))
}

type fitKey struct {
	lw, lh, vw, vh int
	policy         FitPolicy
	pixelPerfect   bool
}

// Fitter caches the most recent fit and only recomputes it when one of its
// inputs changes. It is safe for concurrent use.
type Fitter struct {
	mutex sync.Mutex
	key   fitKey
	fit   Fit
	valid bool
}

// Compute returns the fit for the given inputs, reusing the cached value
// when the inputs are unchanged.
func (c *Fitter) Compute(logicalWidth, logicalHeight, viewportWidth, viewportHeight int,
	policy FitPolicy, pixelPerfect bool) (Fit, error) {
	key := fitKey{logicalWidth, logicalHeight, viewportWidth, viewportHeight, policy, pixelPerfect}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.valid && c.key == key {
		return c.fit, nil
	}

	fit, err := ComputeFit(logicalWidth, logicalHeight, viewportWidth, viewportHeight,
		policy, pixelPerfect)
	if err != nil {
		return Fit{}, err
	}

	c.key = key
	c.fit = fit
	c.valid = true
	return fit, nil
}

// ScreenSize describes the logical resolution: either fixed, or derived from
// the viewport so that it matches the viewport's aspect ratio.
type ScreenSize struct {
	width     int
	height    int
	minPixels int
}

// Fixed returns a fixed logical resolution.
func Fixed(width, height int) ScreenSize {
	return ScreenSize{width: width, height: height}
}

// MinPixels returns a logical resolution that follows the viewport's aspect
// ratio and has an area of roughly n texels.
func MinPixels(n int) ScreenSize {
	return ScreenSize{minPixels: n}
}

// IsFixed reports whether the size is independent of the viewport.
func (s ScreenSize) IsFixed() bool {
	return s.minPixels == 0
}

func (s ScreenSize) validate() error {
	if s.IsFixed() {
		if s.width <= 0 || s.height <= 0 {
			return invalidf("pxl: ScreenSize: invalid logical resolution %dx%d", s.width, s.height)
		}
		return nil
	}
	if s.minPixels < 0 {
		return invalidf("pxl: ScreenSize: invalid pixel count %d", s.minPixels)
	}
	return nil
}

// Compute returns the logical resolution for the given viewport. A derived
// size never drops below 1x1; without a viewport it falls back to a square.
func (s ScreenSize) Compute(viewportWidth, viewportHeight int) (width, height int) {
	if s.IsFixed() {
		return s.width, s.height
	}

	pixels := float64(s.minPixels)
	vw, vh := 1.0, 1.0
	if viewportWidth > 0 && viewportHeight > 0 {
		vw, vh = float64(viewportWidth), float64(viewportHeight)
	}

	w := math.Sqrt(vw * pixels / vh)
	h := pixels / w

	return max(1, int(w)), max(1, int(h))
}
