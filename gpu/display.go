// Package gpu resolves index surfaces on the GPU. It expects a current
// OpenGL 4.1 core context, such as one created with glfw.
package gpu

import (
	"image/color"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"github.com/tmpim/pxl"
)

// Display holds the GL resources of one resolve pipeline: the index texture,
// the palette texture and the program doing the lookup. Several displays may
// share a context, each with its own palette.
type Display struct {
	shader     uint32
	vao        uint32
	vbo        uint32
	indexTex   uint32
	paletteTex uint32

	uniforms map[string]int32

	width       int
	height      int
	transparent bool
	initialized bool
	paletteSet  bool
}

// New creates a new display. Startup must be called with a current context
// before anything else.
func New() *Display {
	return &Display{}
}

// SetTransparentIndex makes pxl.BackgroundIndex resolve to transparent
// pixels.
func (d *Display) SetTransparentIndex(v bool) {
	d.transparent = v
}

// Startup initializes GL resources.
func (d *Display) Startup() error {
	var err error

	d.shader, err = compileProgram(vertex, fragment)
	if err != nil {
		return errors.Wrapf(err, "failed to compile shaders")
	}

	gl.UseProgram(d.shader)

	gl.GenVertexArrays(1, &d.vao)
	gl.BindVertexArray(d.vao)

	gl.GenBuffers(1, &d.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(quadVertices)*4, gl.Ptr(quadVertices), gl.STATIC_DRAW)

	vertAttrib := uint32(gl.GetAttribLocation(d.shader, glStr("vertPos")))
	gl.EnableVertexAttribArray(vertAttrib)
	gl.VertexAttribPointer(vertAttrib, 2, gl.FLOAT, false, 2*4, gl.PtrOffset(0))

	d.uniforms = make(map[string]int32)
	for _, name := range []string{"indices", "palette", "scale", "offset", "logical",
		"viewportHeight", "border", "transparent"} {
		d.uniforms[name] = gl.GetUniformLocation(d.shader, glStr(name))
	}

	gl.Uniform1i(d.uniforms["indices"], 0)
	gl.Uniform1i(d.uniforms["palette"], 1)

	// Index rows are tightly packed bytes.
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)

	d.indexTex = makeTexture()
	d.paletteTex = makeTexture()

	// The palette is uploaded as linear color; let GL encode the output.
	gl.Enable(gl.FRAMEBUFFER_SRGB)

	d.initialized = true
	return nil
}

// Shutdown releases GL resources.
func (d *Display) Shutdown() {
	if !d.initialized {
		return
	}

	d.initialized = false
	d.paletteSet = false
	d.width, d.height = 0, 0
	gl.DeleteTextures(1, &d.paletteTex)
	gl.DeleteTextures(1, &d.indexTex)
	gl.DeleteBuffers(1, &d.vbo)
	gl.DeleteVertexArrays(1, &d.vao)
	gl.DeleteProgram(d.shader)
}

// Upload copies the surface into the index texture. Call it between the
// draw phase and Draw.
func (d *Display) Upload(s *pxl.Surface) {
	if !d.initialized {
		return
	}

	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, d.indexTex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.R8, int32(s.Width()), int32(s.Height()), 0,
		gl.RED, gl.UNSIGNED_BYTE, gl.Ptr(s.Pix()))

	d.width = s.Width()
	d.height = s.Height()
}

// SetPalette uploads the palette table. It takes effect from the next Draw.
func (d *Display) SetPalette(p *pxl.Palette) {
	if !d.initialized || p == nil {
		return
	}

	texels := paletteTexels(p)
	gl.ActiveTexture(gl.TEXTURE1)
	gl.BindTexture(gl.TEXTURE_2D, d.paletteTex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGB32F, pxl.PaletteSize, 1, 0,
		gl.RGB, gl.FLOAT, gl.Ptr(texels))
	d.paletteSet = true
}

// Draw resolves the uploaded surface into the current framebuffer. fit must
// have been computed for the uploaded surface and the framebuffer size.
func (d *Display) Draw(fit pxl.Fit, border color.RGBA) error {
	if err := d.ready(); err != nil {
		return err
	}
	if fit.Empty {
		return nil
	}

	u := fitUniforms(fit)
	b := linearColor(border)

	gl.Viewport(0, 0, int32(fit.ViewportWidth), int32(fit.ViewportHeight))
	gl.UseProgram(d.shader)
	gl.Uniform2f(d.uniforms["scale"], u.scale[0], u.scale[1])
	gl.Uniform2f(d.uniforms["offset"], u.offset[0], u.offset[1])
	gl.Uniform2f(d.uniforms["logical"], u.logical[0], u.logical[1])
	gl.Uniform1f(d.uniforms["viewportHeight"], u.viewportHeight)
	gl.Uniform4f(d.uniforms["border"], b[0], b[1], b[2], b[3])
	if d.transparent {
		gl.Uniform1i(d.uniforms["transparent"], 1)
	} else {
		gl.Uniform1i(d.uniforms["transparent"], 0)
	}

	gl.BindVertexArray(d.vao)

	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, d.indexTex)

	gl.ActiveTexture(gl.TEXTURE1)
	gl.BindTexture(gl.TEXTURE_2D, d.paletteTex)

	gl.DrawArrays(gl.TRIANGLES, 0, 6)
	return nil
}

// ready reports whether everything a Draw samples has been uploaded.
func (d *Display) ready() error {
	switch {
	case !d.initialized:
		return errors.Wrap(pxl.ErrUninitialized, "gpu: Draw: display not started")
	case d.width == 0 || d.height == 0:
		return errors.Wrap(pxl.ErrUninitialized, "gpu: Draw: no surface uploaded")
	case !d.paletteSet:
		return errors.Wrap(pxl.ErrUninitialized, "gpu: Draw: no palette uploaded")
	}
	return nil
}

type uniforms struct {
	scale          [2]float32
	offset         [2]float32
	logical        [2]float32
	viewportHeight float32
}

func fitUniforms(fit pxl.Fit) uniforms {
	return uniforms{
		scale:          [2]float32{float32(fit.ScaleX), float32(fit.ScaleY)},
		offset:         [2]float32{float32(fit.OffsetX), float32(fit.OffsetY)},
		logical:        [2]float32{float32(fit.LogicalWidth), float32(fit.LogicalHeight)},
		viewportHeight: float32(fit.ViewportHeight),
	}
}

// paletteTexels flattens the palette into 256 linear RGB texels.
func paletteTexels(p *pxl.Palette) []float32 {
	lin := p.Linear()
	out := make([]float32, 0, len(lin)*3)
	for _, c := range lin {
		out = append(out, c[0], c[1], c[2])
	}
	return out
}

func linearColor(c color.RGBA) [4]float32 {
	col, _ := colorful.MakeColor(c)
	r, g, b := col.LinearRgb()
	return [4]float32{float32(r), float32(g), float32(b), float32(c.A) / 255}
}

var quadVertices = []float32{
	-1, -1,
	1, -1,
	-1, 1,
	1, -1,
	1, 1,
	-1, 1,
}
