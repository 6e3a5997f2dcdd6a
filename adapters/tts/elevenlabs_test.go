package tts

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestNewElevenLabsTTS(t *testing.T) {
	logger := zaptest.NewLogger(t)

	// Test without API key
	t.Setenv("ELEVEN_LABS_API_KEY", "")
	config := NewElevenLabsConfigFromEnv()
	if _, err := NewElevenLabsTTS(config, logger); err == nil {
		t.Error("Expected error when API key is not set")
	}

	// Test with API key
	t.Setenv("ELEVEN_LABS_API_KEY", "test-api-key")
	t.Setenv("ELEVEN_LABS_STABILITY", "2")

	config = NewElevenLabsConfigFromEnv()
	tts, err := NewElevenLabsTTS(config, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	if tts.apiKey != "test-api-key" {
		t.Errorf("Expected API key 'test-api-key', got '%s'", tts.apiKey)
	}
	if tts.voiceID != defaultVoiceID {
		t.Errorf("Expected default voice ID '%s', got '%s'", defaultVoiceID, tts.voiceID)
	}
	if tts.stability != defaultStability {
		t.Errorf("Out of range stability should be ignored, got %f", tts.stability)
	}
	if tts.SampleRate() != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", tts.SampleRate())
	}
}

func TestValidateElevenLabsConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  ElevenLabsConfig
		wantErr bool
	}{
		{"valid", ElevenLabsConfig{APIKey: "k"}, false},
		{"missing key", ElevenLabsConfig{}, true},
		{"stability too high", ElevenLabsConfig{APIKey: "k", Stability: 1.5}, true},
		{"negative clarity", ElevenLabsConfig{APIKey: "k", Clarity: -0.1}, true},
		{"negative chunk size", ElevenLabsConfig{APIKey: "k", ChunkSize: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateElevenLabsConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateElevenLabsConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestElevenLabsTTS_ConvertTextToSpeech_EmptyText(t *testing.T) {
	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	ctx := context.Background()
	if _, err := tts.ConvertTextToSpeech(ctx, ""); err == nil {
		t.Error("Expected error for empty text")
	}
	if _, err := tts.ConvertTextToSpeech(ctx, "   "); err == nil {
		t.Error("Expected error for whitespace-only text")
	}
}

func TestElevenLabsTTS_ConvertTextToSpeech_Streams(t *testing.T) {
	audio := bytes.Repeat([]byte{0x01, 0x02}, 1500)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "test-api-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/text-to-speech/voice-1/stream") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("output_format") != "pcm_16000" {
			t.Errorf("Unexpected output format %q", r.URL.Query().Get("output_format"))
		}

		body, _ := io.ReadAll(r.Body)
		var req ElevenLabsRequest
		if err := sonic.Unmarshal(body, &req); err != nil {
			t.Errorf("Invalid request body: %v", err)
		}
		if req.Text != "Please provide your 10-digit mobile number." {
			t.Errorf("Unexpected text %q", req.Text)
		}

		w.Header().Set("Content-Type", "audio/pcm")
		_, _ = w.Write(audio)
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{
		APIKey:     "test-api-key",
		APIBaseURL: server.URL,
		VoiceID:    "voice-1",
		ChunkSize:  1000,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	audioChan, err := tts.ConvertTextToSpeech(context.Background(), "Please provide your 10-digit mobile number.")
	if err != nil {
		t.Fatalf("ConvertTextToSpeech failed: %v", err)
	}

	var got []byte
	for chunk := range audioChan {
		if len(chunk) > 1000 {
			t.Errorf("Chunk larger than configured size: %d", len(chunk))
		}
		got = append(got, chunk...)
	}
	if !bytes.Equal(got, audio) {
		t.Errorf("Expected %d audio bytes, got %d", len(audio), len(got))
	}
}

func TestElevenLabsTTS_ConvertTextToSpeech_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota_exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key", APIBaseURL: server.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	_, err = tts.ConvertTextToSpeech(context.Background(), "Hello")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("Expected 429 error, got %v", err)
	}
}

// Integration test - only runs if ELEVEN_LABS_API_KEY is set with real API key
func TestElevenLabsTTS_ConvertTextToSpeech_CancelStopsStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(make([]byte, 64*1024))
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key", APIBaseURL: server.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create TTS: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	audio, err := tts.ConvertTextToSpeech(ctx, "Welcome")
	if err != nil {
		t.Fatalf("ConvertTextToSpeech failed: %v", err)
	}
	<-audio
	cancel()
	time.Sleep(100 * time.Millisecond)

	// only what was already buffered may arrive; the other chunks are never read
	received := 0
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-audio:
			if !ok {
				if received > cap(audio) {
					t.Errorf("Stream kept sending after cancel: %d chunks", received)
				}
				return
			}
			received++
		case <-deadline:
			t.Fatal("Audio channel still open after cancel")
		}
	}
}

func TestElevenLabsTTS_ConvertTextToSpeech_Integration(t *testing.T) {
	apiKey := os.Getenv("ELEVEN_LABS_API_KEY")
	if apiKey == "" || apiKey == "test-api-key" {
		t.Skip("Skipping integration test - set ELEVEN_LABS_API_KEY environment variable with real API key")
	}

	tts, err := NewElevenLabsTTS(NewElevenLabsConfigFromEnv(), zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	audioChan, err := tts.ConvertTextToSpeech(ctx, "Welcome to KYC verification.")
	if err != nil {
		t.Fatalf("Failed to convert text to speech: %v", err)
	}

	totalBytes := 0
	for chunk := range audioChan {
		totalBytes += len(chunk)
	}
	if totalBytes == 0 {
		t.Error("No audio data received")
	}
}
