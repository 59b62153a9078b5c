package stream

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmpim/pxl"
)

var testPalette = pxl.MustPalette(
	color.RGBA{A: 255},
	color.RGBA{R: 255, A: 255},
	color.RGBA{G: 255, A: 255},
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	p, err := pxl.NewPipeline(pxl.Config{
		Size:   pxl.Fixed(2, 1),
		Logger: quietLogger(),
	}, testPalette)
	require.NoError(t, err)
	require.NoError(t, p.Draw(func(s *pxl.Surface) {
		s.Set(0, 0, 1)
		s.Set(1, 0, 2)
	}))

	srv := NewServer(NewManager("test", quietLogger()), p, quietLogger())

	e := echo.New()
	srv.Register(e.Group("/api"))

	ts := httptest.NewServer(e)
	t.Cleanup(ts.Close)

	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server, sub Subscription) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/client"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(Control{ID: "viewer", Subscription: uint32(sub)}))
	return conn
}

func readPacket(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, msgType)
	require.NotEmpty(t, data)
	return data
}

func TestSubscriptionFlags(t *testing.T) {
	sub := SubscriptionFrame | SubscriptionPalette
	assert.True(t, sub.IsSubscribedTo(SubscriptionFrame))
	assert.False(t, sub.IsSubscribedTo(SubscriptionMetadata))
	assert.False(t, sub.IsSubscribedTo(SubscriptionAll))
	assert.True(t, SubscriptionAll.IsSubscribedTo(SubscriptionMetadata))
	assert.False(t, Subscription(0).IsSubscribedTo(SubscriptionFrame))
}

func TestZeroSubscriptionReceivesEverything(t *testing.T) {
	srv, ts := newTestServer(t)
	require.NoError(t, srv.PublishFrame())

	conn := dial(t, ts, 0)
	assert.Equal(t, byte(PacketMetadata), readPacket(t, conn)[0])
	assert.Equal(t, byte(PacketPalette), readPacket(t, conn)[0])
	assert.Equal(t, byte(PacketFrame), readPacket(t, conn)[0])
}

func TestSetMedia(t *testing.T) {
	srv, ts := newTestServer(t)

	conn := dial(t, ts, SubscriptionMetadata)
	readPacket(t, conn)

	srv.Manager.SetMedia("clip", 90*time.Second)

	meta := readPacket(t, conn)
	require.Equal(t, byte(PacketMetadata), meta[0])
	var state State
	require.NoError(t, json.Unmarshal(meta[1:], &state))
	assert.Equal(t, "clip", state.Title)
	assert.Equal(t, int64(90000), state.Duration)

	resp, err := http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, "clip", state.Title)

	_, _, err = srv.startPlayback()
	require.NoError(t, err)
	srv.finishPlayback()
	assert.Equal(t, "", srv.Manager.State().Title)
	assert.Equal(t, int64(0), srv.Manager.State().Duration)
}

func TestConcurrentPublishKeepsPaletteOrder(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dial(t, ts, SubscriptionPalette|SubscriptionMetadata)
	require.Equal(t, byte(PacketMetadata), readPacket(t, conn)[0])

	const publishers, rounds = 4, 25
	surface, err := pxl.NewSurface(2, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < publishers; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				pal := pxl.MustPalette(color.RGBA{A: 255}, color.RGBA{R: uint8(g), G: uint8(i), A: 255})
				assert.NoError(t, srv.Manager.Publish(pxl.NewFrameChunk(surface, pal)))
			}
		}(g)
	}
	wg.Wait()

	swaps := srv.Manager.State().PaletteSwaps
	var last []byte
	for i := uint64(0); i < swaps; i++ {
		last = readPacket(t, conn)
		require.Equal(t, byte(PacketPalette), last[0])
	}

	want := srv.Manager.Latest().Palette[1]
	assert.Equal(t, []byte{want.R, want.G, want.B}, last[4:7])
}

func TestStreamCatchUpAndPublish(t *testing.T) {
	srv, ts := newTestServer(t)
	require.NoError(t, srv.PublishFrame())

	conn := dial(t, ts, SubscriptionFrame|SubscriptionPalette|SubscriptionMetadata)

	meta := readPacket(t, conn)
	require.Equal(t, byte(PacketMetadata), meta[0])
	var state State
	require.NoError(t, json.Unmarshal(meta[1:], &state))
	assert.Equal(t, State{Name: "test", Width: 2, Height: 1, Frames: 1, PaletteSwaps: 1}, state)

	pal := readPacket(t, conn)
	require.Equal(t, byte(PacketPalette), pal[0])
	require.Len(t, pal, 1+pxl.PaletteSize*3)
	assert.Equal(t, []byte{255, 0, 0}, pal[4:7])

	frame := readPacket(t, conn)
	require.Equal(t, byte(PacketFrame), frame[0])
	chunk, err := pxl.ReadFrameChunk(bytes.NewReader(frame[1:]))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, chunk.Indices)

	// Same palette: only the frame is sent.
	require.NoError(t, srv.Pipeline.Draw(func(s *pxl.Surface) { s.Set(0, 0, 2) }))
	require.NoError(t, srv.PublishFrame())
	frame = readPacket(t, conn)
	require.Equal(t, byte(PacketFrame), frame[0])

	// Palette swap: the palette comes first.
	srv.Pipeline.SetPalette(testPalette.Rotate(1, 2))
	require.NoError(t, srv.PublishFrame())
	pal = readPacket(t, conn)
	require.Equal(t, byte(PacketPalette), pal[0])
	assert.Equal(t, []byte{0, 255, 0}, pal[4:7])
	frame = readPacket(t, conn)
	require.Equal(t, byte(PacketFrame), frame[0])

	assert.Equal(t, uint64(3), srv.Manager.State().Frames)
	assert.Equal(t, uint64(2), srv.Manager.State().PaletteSwaps)
}

func TestFrameEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/frame?w=4&h=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 2), img.Bounds())

	r, g, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	r, g, _, _ = img.At(3, 1).RGBA()
	assert.Equal(t, uint32(0), r)
	assert.Equal(t, uint32(0xffff), g)

	for _, q := range []string{"w=0", "h=abc", "w=99999"} {
		resp, err := http.Get(ts.URL + "/api/frame?" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestPaletteEndpoint(t *testing.T) {
	srv, ts := newTestServer(t)

	palImg := image.NewRGBA(image.Rect(0, 0, 3, 1))
	palImg.Set(0, 0, color.RGBA{A: 255})
	palImg.Set(1, 0, color.RGBA{B: 255, A: 255})
	palImg.Set(2, 0, color.RGBA{R: 255, G: 255, A: 255})

	body := new(bytes.Buffer)
	require.NoError(t, png.Encode(body, palImg))

	resp, err := http.Post(ts.URL+"/api/palette", "image/png", body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, color.RGBA{B: 255, A: 255}, srv.Pipeline.Palette().Lookup(1))
	require.NotNil(t, srv.Manager.Latest())
	assert.Equal(t, color.RGBA{B: 255, A: 255}, srv.Manager.Latest().Palette[1])

	resp, err = http.Post(ts.URL+"/api/palette", "image/png", strings.NewReader("not an image"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
