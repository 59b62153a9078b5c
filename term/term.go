// Package term presents a pipeline on a terminal. Every cell shows two
// vertically stacked pixels using the upper half block character.
package term

import (
	"image"
	"image/color"

	"github.com/gdamore/tcell/v2"
	"github.com/pkg/errors"

	"github.com/tmpim/pxl"
)

// HalfBlock is drawn in every cell. Its foreground is the top pixel and its
// background the bottom pixel.
const HalfBlock = '▀'

// Presenter draws frames of a pipeline onto a tcell screen.
type Presenter struct {
	screen   tcell.Screen
	pipeline *pxl.Pipeline
	frame    *image.RGBA
}

// NewPresenter returns a presenter drawing p onto screen. The screen must
// already be initialized.
func NewPresenter(screen tcell.Screen, p *pxl.Pipeline) *Presenter {
	return &Presenter{
		screen:   screen,
		pipeline: p,
	}
}

// Resize updates the pipeline viewport to the screen size. It must be
// called after every tcell.EventResize.
func (t *Presenter) Resize() error {
	cols, rows := t.screen.Size()
	if err := t.pipeline.Resize(cols, rows*2); err != nil {
		return errors.Wrap(err, "term: resize")
	}

	if cols <= 0 || rows <= 0 {
		t.frame = nil
		return nil
	}

	r := image.Rect(0, 0, cols, rows*2)
	if t.frame == nil || t.frame.Rect != r {
		t.frame = image.NewRGBA(r)
	}

	return nil
}

// Show resolves one frame and shows it.
func (t *Presenter) Show() error {
	if t.frame == nil {
		if err := t.Resize(); err != nil {
			return err
		}
		if t.frame == nil {
			return nil
		}
	}

	if err := t.pipeline.ResolveInto(t.frame); err != nil {
		return err
	}

	cols, rows := t.frame.Rect.Dx(), t.frame.Rect.Dy()/2
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			top, bottom := cellColors(t.frame, x, y)
			style := tcell.StyleDefault.Foreground(top).Background(bottom)
			t.screen.SetContent(x, y, HalfBlock, nil, style)
		}
	}

	t.screen.Show()
	return nil
}

// cellColors returns the colors of the two pixels covered by cell (x, y).
// Transparent pixels use the terminal's default color.
func cellColors(frame *image.RGBA, x, y int) (top, bottom tcell.Color) {
	return toColor(frame.RGBAAt(x, y*2)), toColor(frame.RGBAAt(x, y*2+1))
}

func toColor(c color.RGBA) tcell.Color {
	if c.A == 0 {
		return tcell.ColorDefault
	}
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}
