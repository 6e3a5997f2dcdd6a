package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/kyc-voice/domain/entities"
	"github.com/satriahrh/kyc-voice/domain/repositories"
	"github.com/satriahrh/kyc-voice/internal/api"
	kycws "github.com/satriahrh/kyc-voice/internal/websocket"
)

const (
	chunkSize = 1024
	// captureMargin keeps the device turn inside the server's listening window
	captureMargin = 500 * time.Millisecond
)

// PlayerFactory opens an output for raw PCM at sampleRate
type PlayerFactory func(sampleRate int) (repositories.AudioOutput, error)

// RecorderFactory opens an input that records at most timeout of PCM
type RecorderFactory func(sampleRate int, timeout time.Duration) (repositories.AudioInput, error)

// Client is the remote microphone and speaker for a kyc-voice server
type Client struct {
	serverURL   string
	deviceID    string
	secretKey   string
	httpClient  *http.Client
	newPlayer   PlayerFactory
	newRecorder RecorderFactory
	logger      *zap.Logger
}

func NewClient(serverURL, deviceID, secretKey string, newPlayer PlayerFactory, newRecorder RecorderFactory, logger *zap.Logger) *Client {
	return &Client{
		serverURL:   strings.TrimSuffix(serverURL, "/"),
		deviceID:    deviceID,
		secretKey:   secretKey,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		newPlayer:   newPlayer,
		newRecorder: newRecorder,
		logger:      logger.With(zap.String("device_id", deviceID)),
	}
}

// Authenticate exchanges the device credentials for a JWT token
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	body, err := sonic.Marshal(api.DeviceAuthRequest{DeviceID: c.deviceID, SecretKey: c.secretKey})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/api/v1/device/auth", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to authenticate device: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("authentication failed with status %d: %s", resp.StatusCode, data)
	}

	var authResp api.DeviceAuthResponse
	if err := sonic.Unmarshal(data, &authResp); err != nil {
		return "", fmt.Errorf("failed to decode auth response: %w", err)
	}
	c.logger.Info("Device authenticated", zap.Time("expires_at", authResp.ExpiresAt))
	return authResp.Token, nil
}

// Run connects with token and serves speaking and listening turns until ctx
// is done or the server closes the connection
func (c *Client) Run(ctx context.Context, token string) error {
	wsURL := "ws" + strings.TrimPrefix(c.serverURL, "http") + "/ws"
	headers := http.Header{}
	headers.Add("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket connection failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket connection failed: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	c.logger.Info("Connected", zap.String("url", wsURL))

	var (
		speech     bytes.Buffer
		text       string
		sampleRate int
		speaking   bool
	)
	for {
		kind, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		if kind == websocket.BinaryMessage {
			if speaking {
				speech.Write(message)
			}
			continue
		}

		var msg kycws.ControlMessage
		if err := sonic.Unmarshal(message, &msg); err != nil {
			c.logger.Warn("Ignoring malformed control message", zap.Error(err))
			continue
		}

		switch msg.Type {
		case kycws.MessageTypeSpeakingStart:
			speech.Reset()
			text, sampleRate, speaking = msg.Text, msg.SampleRate, true
			c.logger.Info("Speaking", zap.String("text", msg.Text))
		case kycws.MessageTypeSpeakingEnd:
			speaking = false
			if err := c.speak(ctx, text, sampleRate, speech.Bytes()); err != nil {
				c.logger.Warn("Playback failed", zap.Error(err))
			}
		case kycws.MessageTypeListeningRequest:
			if err := c.listen(ctx, conn, msg); err != nil {
				return err
			}
		case kycws.MessageTypeError:
			c.logger.Error("Server error", zap.String("error", msg.Error))
		default:
			c.logger.Debug("Ignoring message", zap.String("type", string(msg.Type)))
		}
	}
}

func (c *Client) speak(ctx context.Context, text string, sampleRate int, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	player, err := c.newPlayer(sampleRate)
	if err != nil {
		return err
	}
	audio := make(chan []byte, 1)
	audio <- bytes.Clone(pcm)
	close(audio)
	return player.Play(ctx, text, audio)
}

// listen records one utterance and streams it back. A silent turn still
// ends with listening_end so the server does not wait out its timeout.
func (c *Client) listen(ctx context.Context, conn *websocket.Conn, request kycws.ControlMessage) error {
	timeout := time.Duration(request.TimeoutMs)*time.Millisecond - captureMargin
	if timeout <= 0 {
		timeout = time.Duration(request.TimeoutMs) * time.Millisecond
	}

	c.logger.Info("Listening", zap.Duration("timeout", timeout))
	var pcm []byte
	recorder, err := c.newRecorder(request.SampleRate, timeout)
	if err == nil {
		pcm, err = recorder.Capture(ctx)
	}
	switch {
	case errors.Is(err, entities.ErrNotUnderstood):
		c.logger.Debug("Nothing recorded")
	case err != nil:
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("Recording failed", zap.Error(err))
	}

	if err := c.send(conn, &kycws.ControlMessage{Type: kycws.MessageTypeListeningStart, SampleRate: request.SampleRate}); err != nil {
		return err
	}
	for start := 0; start < len(pcm); start += chunkSize {
		end := min(start+chunkSize, len(pcm))
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[start:end]); err != nil {
			return fmt.Errorf("failed to send audio chunk: %w", err)
		}
	}
	return c.send(conn, &kycws.ControlMessage{Type: kycws.MessageTypeListeningEnd})
}

func (c *Client) send(conn *websocket.Conn, msg *kycws.ControlMessage) error {
	msg.Timestamp = time.Now().Unix()
	data, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Type, err)
	}
	return nil
}
