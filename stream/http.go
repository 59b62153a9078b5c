package stream

import (
	"bytes"
	"image"
	"image/png"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tmpim/pxl"
)

// MaxFrameSize is the largest viewport side /frame will resolve.
const MaxFrameSize = 4096

// Server exposes a pipeline and its stream over HTTP.
type Server struct {
	Manager  *Manager
	Pipeline *pxl.Pipeline
	Upgrader websocket.Upgrader

	log    logrus.FieldLogger
	player player
}

// NewServer returns a server for p, broadcasting through mgr.
func NewServer(mgr *Manager, p *pxl.Pipeline, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Server{
		Manager:  mgr,
		Pipeline: p,
		Upgrader: websocket.Upgrader{
			HandshakeTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Register adds the API routes to g.
func (s *Server) Register(g *echo.Group) {
	g.GET("/client", s.handleClient)
	g.GET("/state", s.handleState)
	g.GET("/frame", s.handleFrame)
	g.POST("/palette", s.handlePalette)
	g.POST("/play/file", s.handlePlayFile)
	g.POST("/stop", s.handleStop)
}

// PublishFrame snapshots the pipeline's surface and palette and broadcasts
// them.
func (s *Server) PublishFrame() error {
	var frame *pxl.FrameChunk
	err := s.Pipeline.Draw(func(surface *pxl.Surface) {
		if pal := s.Pipeline.Palette(); pal != nil {
			frame = pxl.NewFrameChunk(surface, pal)
		}
	})
	if err != nil {
		return err
	}
	if frame == nil {
		return errors.Wrap(pxl.ErrUninitialized, "stream: PublishFrame: no palette")
	}

	return s.Manager.Publish(frame)
}

func (s *Server) handleClient(c echo.Context) error {
	ws, err := s.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	s.Manager.HandleConn(ws)
	ws.Close()

	return nil
}

func (s *Server) handleState(c echo.Context) error {
	state := s.Manager.State()
	return c.JSON(http.StatusOK, &state)
}

func (s *Server) handleFrame(c echo.Context) error {
	size, err := s.frameSize(c)
	if err != nil {
		return err
	}

	img := image.NewRGBA(image.Rectangle{Max: size})
	if err := s.Pipeline.ResolveInto(img); err != nil {
		if errors.Is(err, pxl.ErrUninitialized) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return err
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		return err
	}

	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}

// frameSize reads the w and h query parameters, defaulting to the pipeline
// viewport and then to the surface size.
func (s *Server) frameSize(c echo.Context) (image.Point, error) {
	size := s.Pipeline.Viewport()
	if size.X <= 0 || size.Y <= 0 {
		if w, h, ok := s.Pipeline.LogicalSize(); ok {
			size = image.Pt(w, h)
		}
	}

	for _, param := range []struct {
		name string
		dst  *int
	}{{"w", &size.X}, {"h", &size.Y}} {
		v := c.QueryParam(param.name)
		if v == "" {
			continue
		}

		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > MaxFrameSize {
			return image.Point{}, echo.NewHTTPError(http.StatusBadRequest,
				"invalid frame "+param.name+": "+v)
		}
		*param.dst = n
	}

	if size.X <= 0 || size.Y <= 0 {
		return image.Point{}, echo.NewHTTPError(http.StatusServiceUnavailable,
			"no frame size known yet")
	}

	return size, nil
}

func (s *Server) handlePalette(c echo.Context) error {
	pal, err := pxl.DecodePalette(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s.Pipeline.SetPalette(pal)
	s.log.WithField("colors", pal.Len()).Info("palette replaced")

	if err := s.PublishFrame(); err != nil && !errors.Is(err, pxl.ErrUninitialized) {
		return err
	}

	state := s.Manager.State()
	return c.JSON(http.StatusOK, &state)
}

func (s *Server) handlePlayFile(c echo.Context) error {
	data, err := ioutil.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}

	path := strings.TrimSpace(string(data))
	if path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file path")
	}

	fps := DefaultFramerate
	if v := c.QueryParam("fps"); v != "" {
		fps, err = strconv.Atoi(v)
		if err != nil || fps <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid fps: "+v)
		}
	}

	if err := s.PlayFile(path, fps); err != nil {
		if errors.Is(err, ErrPlaying) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return err
	}

	state := s.Manager.State()
	return c.JSON(http.StatusOK, &state)
}

func (s *Server) handleStop(c echo.Context) error {
	s.Stop()

	state := s.Manager.State()
	return c.JSON(http.StatusOK, &state)
}
