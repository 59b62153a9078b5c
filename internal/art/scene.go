package art

import (
	"image"

	"github.com/tmpim/pxl"
)

// Scene is a loaded artwork plus an optional, possibly animated, filter.
// Draw is meant to run as a pipeline's draw phase.
type Scene struct {
	Surface *pxl.Surface
	Filters []*pxl.Filter

	frame int
}

// LoadScene loads the filter image at filterPath against pal, if the path
// is not empty.
func LoadScene(surface *pxl.Surface, pal *pxl.Palette, filterPath string) (*Scene, error) {
	scene := &Scene{Surface: surface}
	if filterPath == "" {
		return scene, nil
	}

	filters, err := pxl.LoadFilters(filterPath, pal)
	if err != nil {
		return nil, err
	}
	scene.Filters = filters
	return scene, nil
}

// Frame returns the current filter frame.
func (sc *Scene) Frame() int {
	return sc.frame
}

// Seek selects filter frame n, wrapping around.
func (sc *Scene) Seek(n int) {
	if len(sc.Filters) == 0 {
		return
	}
	sc.frame = ((n % len(sc.Filters)) + len(sc.Filters)) % len(sc.Filters)
}

// Step advances to the next filter frame and reports whether the scene
// changed.
func (sc *Scene) Step() bool {
	if len(sc.Filters) < 2 {
		return false
	}
	sc.Seek(sc.frame + 1)
	return true
}

// Draw copies the artwork into s, clipped to both sizes, and applies the
// current filter frame.
func (sc *Scene) Draw(s *pxl.Surface) {
	s.Clear()
	s.Region(s.Bounds()).Blit(sc.Surface, image.Point{})
	if len(sc.Filters) > 0 {
		sc.Filters[sc.frame].Apply(s)
	}
}
