package main

import (
	"fmt"
	"image/color"
	"strings"
	"time"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"

	"github.com/tmpim/pxl"
	"github.com/tmpim/pxl/gpu"
	"github.com/tmpim/pxl/internal/art"
)

// App defines application context.
type App struct {
	config  *Config
	window  *glfw.Window
	display *gpu.Display
	surface *pxl.Surface
	palette *pxl.Palette
	fitter  pxl.Fitter

	policy       pxl.FitPolicy
	pixelPerfect bool
	border       color.RGBA

	cycling      bool
	lastCycled   time.Time
	titleUpdated time.Time
}

// NewApp creates a new application instance using the given configuration.
func NewApp(config *Config) *App {
	return &App{
		config:  config,
		display: gpu.New(),
		cycling: config.Cycle,
	}
}

// Run runs the application and does not return until the window is closed
// or an error occurred during initialization.
func (a *App) Run() error {
	pipelineConfig, err := a.config.Pipeline.Config("pxview", pxl.Fixed(1, 1), a.config.Log)
	if err != nil {
		return err
	}
	a.policy = pipelineConfig.Policy
	a.pixelPerfect = pipelineConfig.PixelPerfect
	a.border = pipelineConfig.Border

	a.surface, a.palette, err = art.Load(a.config.Art)
	if err != nil {
		return err
	}

	if err := a.initGL(); err != nil {
		return err
	}
	defer a.dispose()

	if err := a.display.Startup(); err != nil {
		return err
	}
	a.display.SetTransparentIndex(pipelineConfig.TransparentIndex)
	a.display.Upload(a.surface)
	a.display.SetPalette(a.palette)

	printHelp(a)

	for !a.window.ShouldClose() {
		if err := a.mainLoop(); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) mainLoop() error {
	if a.cycling && time.Since(a.lastCycled) >= time.Second/20 {
		a.lastCycled = time.Now()
		a.palette = a.palette.Rotate(1, a.palette.Len()-1)
		a.display.SetPalette(a.palette)
	}

	fbw, fbh := a.window.GetFramebufferSize()
	fit, err := a.fitter.Compute(a.surface.Width(), a.surface.Height(), fbw, fbh,
		a.policy, a.pixelPerfect)
	if err != nil {
		return err
	}

	gl.Clear(gl.COLOR_BUFFER_BIT)
	if err := a.display.Draw(fit, a.border); err != nil {
		return err
	}
	a.window.SwapBuffers()

	if time.Since(a.titleUpdated) >= time.Second {
		a.titleUpdated = time.Now()
		a.window.SetTitle(fmt.Sprintf("pxview - %dx%d %s x%.2f",
			a.surface.Width(), a.surface.Height(), a.policy, fit.ScaleX))
	}

	glfw.WaitEventsTimeout(1.0 / 60)
	return nil
}

// dispose ensures GL/GLFW resources are cleaned up.
func (a *App) dispose() {
	a.display.Shutdown()

	if a.window != nil {
		a.window.Destroy()
		a.window = nil
	}

	glfw.Terminate()
}

func (a *App) keyCallback(_ *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}

	switch key {
	case glfw.KeyEscape:
		a.window.SetShouldClose(true)
	case glfw.KeyF1:
		printHelp(a)
	case glfw.KeyP:
		a.cycling = !a.cycling
	case glfw.KeyF:
		a.policy = (a.policy + 1) % (pxl.FitStretch + 1)
		a.config.Log.WithField("policy", a.policy).Info("fit policy changed")
	case glfw.KeyX:
		a.pixelPerfect = !a.pixelPerfect
		a.config.Log.WithField("pixelPerfect", a.pixelPerfect).Info("pixel perfect toggled")
	}
}

// initGL initializes GLFW and OpenGL.
func (a *App) initGL() error {
	err := glfw.Init()
	if err != nil {
		return errors.Wrapf(err, "glfw.Init failed")
	}

	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.Visible, glfw.True)
	glfw.WindowHint(glfw.Focused, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.SRGBCapable, glfw.True)

	a.window, err = glfw.CreateWindow(a.config.Width, a.config.Height, "pxview", nil, nil)
	if err != nil {
		a.dispose()
		return errors.Wrapf(err, "glfw.CreateWindow failed")
	}

	a.window.MakeContextCurrent()
	a.window.SetKeyCallback(a.keyCallback)

	glfw.SwapInterval(1)

	err = gl.Init()
	if err != nil {
		a.dispose()
		return errors.Wrapf(err, "gl.Init failed")
	}

	gl.ClearColor(0, 0, 0, 1.0)
	return nil
}

// printHelp logs a short overview of supported shortcut keys.
func printHelp(a *App) {
	var sb strings.Builder
	sb.WriteString("shortcut keys:\n")
	sb.WriteString(" ESC      Exit.\n")
	sb.WriteString(" F1       Display this help.\n")
	sb.WriteString(" P        Start/Stop palette cycling.\n")
	sb.WriteString(" F        Switch between fit, fill and stretch.\n")
	sb.WriteString(" X        Enable/Disable pixel perfect scaling.")
	a.config.Log.Println(sb.String())
}
