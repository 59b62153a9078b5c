// Package stream broadcasts index frames and palettes to websocket clients.
package stream

import (
	"bytes"
	"encoding/json"
	"image/color"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tmpim/pxl"
)

const writeTimeout = 5 * time.Second

// Subscription is a set of packet kinds a client wants to receive.
type Subscription uint32

// Possible subscription flags.
const (
	SubscriptionFrame = Subscription(1 << iota)
	SubscriptionPalette
	SubscriptionMetadata

	// SubscriptionAll subscribes to every packet kind. A control message
	// with a zero subscription is treated as SubscriptionAll.
	SubscriptionAll = SubscriptionFrame | SubscriptionPalette | SubscriptionMetadata
)

// Possible packet types. Every binary message starts with one of these.
const (
	PacketFrame = iota + 1
	PacketPalette
	PacketMetadata
)

// Control is the message clients send to set their subscriptions.
type Control struct {
	ID           string `json:"id"`
	Subscription uint32 `json:"subscription"`
}

// IsSubscribedTo returns whether or not the client subscription is subscribed
// to the given subscription.
func (s Subscription) IsSubscribedTo(sub Subscription) bool {
	return (s & sub) == sub
}

// Client is a websocket connected client.
type Client struct {
	mutex         *sync.Mutex
	id            string
	conn          *websocket.Conn
	subscriptions Subscription
}

func (c *Client) write(data ...[]byte) error {
	for _, d := range data {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.BinaryMessage, d); err != nil {
			return err
		}
	}
	return nil
}

// State describes the stream. It is sent as the metadata packet.
type State struct {
	Name         string `json:"name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Frames       uint64 `json:"frames"`
	PaletteSwaps uint64 `json:"paletteSwaps"`

	// Title and Duration describe the file being played, if any. Duration
	// is in milliseconds and zero when unknown.
	Title    string `json:"title"`
	Duration int64  `json:"duration"`
}

// Manager keeps track of connected clients and the latest frame.
type Manager struct {
	log logrus.FieldLogger

	clientsMutex *sync.Mutex
	clients      []*Client

	// publishMutex orders publishers, so packets reach every client in
	// the order the state changed.
	publishMutex *sync.Mutex

	frameMutex *sync.Mutex
	latest     *pxl.FrameChunk
	palette    [pxl.PaletteSize]color.RGBA
	state      State
}

// NewManager returns a manager for the stream called name.
func NewManager(name string, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Manager{
		log:          log.WithField("stream", name),
		clientsMutex: new(sync.Mutex),
		publishMutex: new(sync.Mutex),
		frameMutex:   new(sync.Mutex),
		state:        State{Name: name},
	}
}

// State returns the current stream state.
func (m *Manager) State() State {
	m.frameMutex.Lock()
	defer m.frameMutex.Unlock()
	return m.state
}

// Latest returns the last published frame, or nil.
func (m *Manager) Latest() *pxl.FrameChunk {
	m.frameMutex.Lock()
	defer m.frameMutex.Unlock()
	return m.latest
}

// Clients returns the number of connected clients.
func (m *Manager) Clients() int {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()
	return len(m.clients)
}

// Broadcast sends data to every client subscribed to sub.
func (m *Manager) Broadcast(sub Subscription, data ...[]byte) {
	m.clientsMutex.Lock()
	clientCopy := make([]*Client, len(m.clients))
	copy(clientCopy, m.clients)
	m.clientsMutex.Unlock()

	for _, client := range clientCopy {
		client.mutex.Lock()
		if client.subscriptions.IsSubscribedTo(sub) {
			if err := client.write(data...); err != nil {
				m.log.WithError(err).WithField("client", client.id).Debug("broadcast failed")
			}
		}
		client.mutex.Unlock()
	}
}

// Publish broadcasts a frame. Palette subscribers receive a palette packet
// first whenever the frame's palette differs from the previous one.
func (m *Manager) Publish(frame *pxl.FrameChunk) error {
	framePacket, err := encodeFrame(frame)
	if err != nil {
		return errors.Wrap(err, "stream: Publish")
	}

	m.publishMutex.Lock()
	defer m.publishMutex.Unlock()

	m.frameMutex.Lock()
	swapped := m.latest == nil || m.palette != frame.Palette
	m.latest = frame
	m.palette = frame.Palette
	m.state.Width = frame.Width
	m.state.Height = frame.Height
	m.state.Frames++
	if swapped {
		m.state.PaletteSwaps++
	}
	m.frameMutex.Unlock()

	if swapped {
		m.Broadcast(SubscriptionPalette, encodePalette(frame.Palette))
	}
	m.Broadcast(SubscriptionFrame, framePacket)

	return nil
}

// SetMedia records the title and duration of the file being played and
// sends the new state to metadata subscribers. An empty title clears it.
func (m *Manager) SetMedia(title string, duration time.Duration) {
	m.publishMutex.Lock()
	defer m.publishMutex.Unlock()

	m.frameMutex.Lock()
	m.state.Title = title
	m.state.Duration = duration.Milliseconds()
	state := m.state
	m.frameMutex.Unlock()

	data, err := encodeState(&state)
	if err != nil {
		m.log.WithError(err).Error("error encoding state JSON")
		return
	}
	m.Broadcast(SubscriptionMetadata, data)
}

// HandleConn serves a websocket client until it disconnects.
func (m *Manager) HandleConn(conn *websocket.Conn) {
	m.clientsMutex.Lock()
	client := &Client{
		mutex:         new(sync.Mutex),
		conn:          conn,
		subscriptions: 0,
	}
	m.clients = append(m.clients, client)
	m.clientsMutex.Unlock()

	defer func() {
		m.clientsMutex.Lock()
		defer m.clientsMutex.Unlock()

		for i, c := range m.clients {
			if c == client {
				m.clients = append(m.clients[:i], m.clients[i+1:]...)
				return
			}
		}
	}()

	for {
		msgType, data, err := client.conn.ReadMessage()
		if err != nil {
			m.log.WithError(err).WithField("client", client.id).Info("client disconnected")
			return
		}

		if msgType != websocket.BinaryMessage && msgType != websocket.TextMessage {
			continue
		}

		var controlMsg Control
		err = json.Unmarshal(data, &controlMsg)
		if err != nil {
			m.log.WithError(err).Warn("failed to unmarshal control message")
			continue
		}

		sub := Subscription(controlMsg.Subscription)
		if sub == 0 {
			sub = SubscriptionAll
		}

		client.mutex.Lock()
		client.id = controlMsg.ID
		client.subscriptions = sub
		err = client.write(m.catchUp(sub)...)
		client.mutex.Unlock()

		if err != nil {
			m.log.WithError(err).WithField("client", client.id).Debug("catch up failed")
		}
	}
}

// catchUp returns the packets a newly subscribed client needs to present the
// current frame.
func (m *Manager) catchUp(sub Subscription) [][]byte {
	m.frameMutex.Lock()
	latest := m.latest
	state := m.state
	m.frameMutex.Unlock()

	var packets [][]byte

	if sub.IsSubscribedTo(SubscriptionMetadata) {
		d, err := encodeState(&state)
		if err == nil {
			packets = append(packets, d)
		} else {
			m.log.WithError(err).Error("error encoding state JSON")
		}
	}

	if latest == nil {
		return packets
	}

	if sub.IsSubscribedTo(SubscriptionPalette) {
		packets = append(packets, encodePalette(latest.Palette))
	}

	if sub.IsSubscribedTo(SubscriptionFrame) {
		d, err := encodeFrame(latest)
		if err == nil {
			packets = append(packets, d)
		}
	}

	return packets
}

func encodeState(state *State) ([]byte, error) {
	d, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	return append([]byte{PacketMetadata}, d...), nil
}

func encodeFrame(frame *pxl.FrameChunk) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(PacketFrame)
	if _, err := frame.WriteTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodePalette(palette [pxl.PaletteSize]color.RGBA) []byte {
	data := make([]byte, 1, 1+pxl.PaletteSize*3)
	data[0] = PacketPalette
	for _, c := range palette {
		data = append(data, c.R, c.G, c.B)
	}
	return data
}
