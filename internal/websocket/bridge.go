package websocket

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/kyc-voice/domain/entities"
	"github.com/satriahrh/kyc-voice/domain/repositories"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024
)

var (
	ErrDeviceBusy         = errors.New("another device is already connected")
	ErrDeviceDisconnected = errors.New("device disconnected")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Devices are authenticated by JWT before the upgrade
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WriteData is one frame queued for the write pump
type WriteData struct {
	Type    int
	Payload []byte
}

type eventKind int

const (
	eventListeningStart eventKind = iota
	eventAudio
	eventListeningEnd
)

type deviceEvent struct {
	kind eventKind
	data []byte
}

// Bridge exposes one remote device as the session's speaker and microphone.
// Only one device may be attached at a time.
type Bridge struct {
	mu        sync.Mutex
	client    *Client
	connected chan struct{}

	sampleRate     int
	captureTimeout time.Duration
	logger         *zap.Logger
}

var (
	_ repositories.AudioInput  = (*Bridge)(nil)
	_ repositories.AudioOutput = (*Bridge)(nil)
)

// NewBridge creates a bridge. captureTimeout bounds one listening turn.
func NewBridge(sampleRate int, captureTimeout time.Duration, logger *zap.Logger) *Bridge {
	return &Bridge{
		connected:      make(chan struct{}),
		sampleRate:     sampleRate,
		captureTimeout: captureTimeout,
		logger:         logger,
	}
}

// Client is the attached device connection
type Client struct {
	bridge   *Bridge
	conn     *websocket.Conn
	deviceID string
	send     chan WriteData
	events   chan deviceEvent
	done     chan struct{}
	once     sync.Once
	logger   *zap.Logger
}

// Connected reports whether a device is attached
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client != nil
}

// Attach takes ownership of conn and starts its pumps
func (b *Bridge) Attach(conn *websocket.Conn, deviceID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		return ErrDeviceBusy
	}

	client := &Client{
		bridge:   b,
		conn:     conn,
		deviceID: deviceID,
		send:     make(chan WriteData, 256),
		events:   make(chan deviceEvent, 256),
		done:     make(chan struct{}),
		logger:   b.logger.With(zap.String("deviceID", deviceID)),
	}
	b.client = client
	close(b.connected)

	go client.writePump()
	go client.readPump()

	client.logger.Info("Device attached")
	return nil
}

func (b *Bridge) detach(c *Client) {
	b.mu.Lock()
	if b.client == c {
		b.client = nil
		b.connected = make(chan struct{})
	}
	b.mu.Unlock()

	c.once.Do(func() { close(c.done) })
	c.logger.Info("Device detached")
}

// waitForDevice blocks until a device is attached
func (b *Bridge) waitForDevice(ctx context.Context) (*Client, error) {
	for {
		b.mu.Lock()
		client, connected := b.client, b.connected
		b.mu.Unlock()

		if client != nil {
			return client, nil
		}

		b.logger.Info("Waiting for device to connect")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-connected:
		}
	}
}

// HandleWebSocket upgrades an authenticated request and attaches the device
func (b *Bridge) HandleWebSocket(c echo.Context, deviceID string) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		b.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	if err := b.Attach(conn, deviceID); err != nil {
		b.logger.Warn("Rejecting device connection", zap.String("deviceID", deviceID), zap.Error(err))
		_ = conn.WriteMessage(websocket.TextMessage, encode(CreateErrorMessage(err.Error())))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		conn.Close()
	}
	return nil
}

// Play streams synthesized speech to the device between speaking_start and
// speaking_end frames
func (b *Bridge) Play(ctx context.Context, text string, audio <-chan []byte) error {
	c, err := b.waitForDevice(ctx)
	if err != nil {
		return err
	}

	start := newControlMessage(MessageTypeSpeakingStart)
	start.Text = text
	start.SampleRate = b.sampleRate
	start.Encoding = "LINEAR16"
	if err := c.write(ctx, WriteData{Type: websocket.TextMessage, Payload: encode(start)}); err != nil {
		return err
	}

	chunks := 0
	for chunk := range audio {
		if err := c.write(ctx, WriteData{Type: websocket.BinaryMessage, Payload: chunk}); err != nil {
			return err
		}
		chunks++
	}

	c.logger.Debug("Speech sent to device", zap.Int("chunks", chunks))
	return c.write(ctx, WriteData{Type: websocket.TextMessage, Payload: encode(newControlMessage(MessageTypeSpeakingEnd))})
}

// Capture asks the device to record one utterance and collects the binary
// frames until listening_end. A turn that times out without audio is
// entities.ErrNotUnderstood; partial audio is returned as is.
func (b *Bridge) Capture(ctx context.Context) ([]byte, error) {
	c, err := b.waitForDevice(ctx)
	if err != nil {
		return nil, err
	}
	c.drainEvents()

	request := newControlMessage(MessageTypeListeningRequest)
	request.SampleRate = b.sampleRate
	request.Encoding = "LINEAR16"
	request.TimeoutMs = b.captureTimeout.Milliseconds()
	if err := c.write(ctx, WriteData{Type: websocket.TextMessage, Payload: encode(request)}); err != nil {
		return nil, err
	}

	timer := time.NewTimer(b.captureTimeout)
	defer timer.Stop()

	var buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.done:
			return nil, ErrDeviceDisconnected
		case <-timer.C:
			if buf.Len() > 0 {
				c.logger.Warn("Listening turn timed out, using partial audio", zap.Int("bytes", buf.Len()))
				return buf.Bytes(), nil
			}
			return nil, fmt.Errorf("no audio within %s: %w", b.captureTimeout, entities.ErrNotUnderstood)
		case ev := <-c.events:
			switch ev.kind {
			case eventListeningStart:
				buf.Reset()
			case eventAudio:
				buf.Write(ev.data)
			case eventListeningEnd:
				c.logger.Debug("Utterance received", zap.Int("bytes", buf.Len()))
				return buf.Bytes(), nil
			}
		}
	}
}

func (c *Client) write(ctx context.Context, data WriteData) error {
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrDeviceDisconnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drainEvents drops frames left over from an earlier turn
func (c *Client) drainEvents() {
	for {
		select {
		case <-c.events:
		default:
			return
		}
	}
}

func (c *Client) emit(ev deviceEvent) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("Dropping device event, no listener")
	}
}

// readPump pumps frames from the websocket connection to the bridge.
func (c *Client) readPump() {
	defer func() {
		c.bridge.detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.emit(deviceEvent{kind: eventAudio, data: message})
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps frames from the bridge to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage handles control frames from the device
func (c *Client) processMessage(message []byte) {
	msg, err := ParseControlMessage(message)
	if err != nil {
		c.logger.Warn("Invalid control message", zap.Error(err))
		select {
		case c.send <- WriteData{Type: websocket.TextMessage, Payload: encode(CreateErrorMessage(err.Error()))}:
		default:
		}
		return
	}

	switch msg.Type {
	case MessageTypeListeningStart:
		c.emit(deviceEvent{kind: eventListeningStart})
	case MessageTypeListeningEnd:
		c.emit(deviceEvent{kind: eventListeningEnd})
	case MessageTypePing:
		c.logger.Debug("Device ping")
	}
}
