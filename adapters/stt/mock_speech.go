package stt

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/kyc-voice/domain/entities"
	"github.com/satriahrh/kyc-voice/domain/repositories"
)

// MockSpeechToText replays a fixed list of transcripts, one per utterance.
// An empty transcript behaves like silence.
type MockSpeechToText struct {
	logger      *zap.Logger
	mu          sync.Mutex
	transcripts []string
	next        int
}

// MockSpeechToTextStream is a mock implementation of streaming speech recognition
type MockSpeechToTextStream struct {
	parent        *MockSpeechToText
	audioReceived bool
}

var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger, transcripts ...string) *MockSpeechToText {
	return &MockSpeechToText{
		logger:      logger,
		transcripts: transcripts,
	}
}

// Remaining reports how many scripted transcripts have not been consumed
func (s *MockSpeechToText) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcripts) - s.next
}

func (s *MockSpeechToText) pop() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.transcripts) {
		return "", fmt.Errorf("mock transcript script exhausted after %d utterances", s.next)
	}
	t := s.transcripts[s.next]
	s.next++
	if t == "" {
		return "", fmt.Errorf("no speech detected in audio: %w", entities.ErrNotUnderstood)
	}
	return t, nil
}

// InitTranscribeStreaming creates a new mock streaming session
func (s *MockSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	s.logger.Debug("Initializing mock streaming transcription",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))

	return &MockSpeechToTextStream{parent: s}, nil
}

func (m *MockSpeechToTextStream) Stream(data []byte) error {
	if len(data) > 0 {
		m.audioReceived = true
	}
	return nil
}

// End returns the next scripted transcript
func (m *MockSpeechToTextStream) End() (string, error) {
	if !m.audioReceived {
		return "", fmt.Errorf("no audio data received: %w", entities.ErrNotUnderstood)
	}
	return m.parent.pop()
}

// TranscribeAudio returns the next scripted transcript regardless of the audio
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	s.logger.Debug("Processing mock speech-to-text", zap.Int("audioSize", len(audioData)))
	return s.pop()
}
