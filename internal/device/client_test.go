package device

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/kyc-voice/domain/entities"
	"github.com/satriahrh/kyc-voice/domain/repositories"
	"github.com/satriahrh/kyc-voice/internal/api"
	"github.com/satriahrh/kyc-voice/internal/auth"
	"github.com/satriahrh/kyc-voice/internal/websocket"
)

type played struct {
	text       string
	sampleRate int
	pcm        []byte
}

type fakePlayer struct {
	sampleRate int
	out        chan<- played
}

func (p *fakePlayer) Play(ctx context.Context, text string, audio <-chan []byte) error {
	var pcm []byte
	for chunk := range audio {
		pcm = append(pcm, chunk...)
	}
	p.out <- played{text: text, sampleRate: p.sampleRate, pcm: pcm}
	return nil
}

type fakeRecorder struct {
	pcm []byte
	err error
}

func (r *fakeRecorder) Capture(ctx context.Context) ([]byte, error) {
	return r.pcm, r.err
}

func startServer(t *testing.T) (*httptest.Server, *websocket.Bridge) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	authenticator, err := auth.NewAuthenticator([]byte("0123456789abcdef0123"), "kyc-device-1", "s3cret")
	if err != nil {
		t.Fatalf("NewAuthenticator failed: %v", err)
	}
	bridge := websocket.NewBridge(16000, 2*time.Second, logger)

	e := echo.New()
	api.InitRoutes(e, bridge, authenticator, logger)
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return server, bridge
}

func runDevice(t *testing.T, client *Client) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	token, err := client.Authenticate(ctx)
	if err != nil {
		cancel()
		t.Fatalf("Authenticate failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- client.Run(ctx, token) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run returned %v", err)
		}
	})
}

func waitConnected(t *testing.T, bridge *websocket.Bridge) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !bridge.Connected() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !bridge.Connected() {
		t.Fatal("Device never attached")
	}
}

func TestClient_Authenticate(t *testing.T) {
	server, _ := startServer(t)
	logger := zaptest.NewLogger(t)

	good := NewClient(server.URL, "kyc-device-1", "s3cret", nil, nil, logger)
	if token, err := good.Authenticate(context.Background()); err != nil || token == "" {
		t.Errorf("Expected token, got %q (%v)", token, err)
	}

	bad := NewClient(server.URL, "kyc-device-1", "wrong", nil, nil, logger)
	if _, err := bad.Authenticate(context.Background()); err == nil {
		t.Error("Expected wrong secret to be rejected")
	}
}

func TestClient_SpeakAndListen(t *testing.T) {
	server, bridge := startServer(t)
	plays := make(chan played, 1)

	client := NewClient(server.URL, "kyc-device-1", "s3cret",
		func(sampleRate int) (repositories.AudioOutput, error) {
			return &fakePlayer{sampleRate: sampleRate, out: plays}, nil
		},
		func(sampleRate int, timeout time.Duration) (repositories.AudioInput, error) {
			if timeout <= 0 || timeout > 2*time.Second {
				t.Errorf("Unexpected recorder timeout %s", timeout)
			}
			// larger than one chunk so it is split across frames
			return &fakeRecorder{pcm: make([]byte, 2500)}, nil
		},
		zaptest.NewLogger(t))
	runDevice(t, client)
	waitConnected(t, bridge)

	audio := make(chan []byte, 2)
	audio <- []byte{1, 2}
	audio <- []byte{3}
	close(audio)
	if err := bridge.Play(context.Background(), "May I have your full name please?", audio); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	select {
	case p := <-plays:
		if p.sampleRate != 16000 || len(p.pcm) != 3 {
			t.Errorf("Unexpected playback %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Device never played the prompt")
	}

	pcm, err := bridge.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if len(pcm) != 2500 {
		t.Errorf("Expected 2500 bytes of audio, got %d", len(pcm))
	}
}

func TestClient_SilentTurn(t *testing.T) {
	server, bridge := startServer(t)

	client := NewClient(server.URL, "kyc-device-1", "s3cret",
		func(int) (repositories.AudioOutput, error) { return nil, errors.New("no speaker") },
		func(int, time.Duration) (repositories.AudioInput, error) {
			return &fakeRecorder{err: entities.ErrNotUnderstood}, nil
		},
		zaptest.NewLogger(t))
	runDevice(t, client)
	waitConnected(t, bridge)

	start := time.Now()
	pcm, err := bridge.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if len(pcm) != 0 {
		t.Errorf("Expected no audio, got %d bytes", len(pcm))
	}
	if time.Since(start) > time.Second {
		t.Error("Silent turn should end before the server timeout")
	}
}
