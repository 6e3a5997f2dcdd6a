package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/kyc-voice/domain/entities"
	"github.com/satriahrh/kyc-voice/domain/repositories"
)

// Prompter speaks through TTS and listens through STT. Every line is also
// echoed to the console transcript.
type Prompter struct {
	tts         repositories.TextToSpeech
	output      repositories.AudioOutput
	input       repositories.AudioInput
	stt         repositories.SpeechToText
	audioConfig repositories.AudioConfig
	console     io.Writer
	logger      *zap.Logger
}

var _ repositories.Prompter = (*Prompter)(nil)

// NewPrompter creates a speech prompter. console receives the "Bot:"/"You:" transcript.
func NewPrompter(
	tts repositories.TextToSpeech,
	output repositories.AudioOutput,
	input repositories.AudioInput,
	stt repositories.SpeechToText,
	audioConfig repositories.AudioConfig,
	console io.Writer,
	logger *zap.Logger,
) *Prompter {
	return &Prompter{
		tts:         tts,
		output:      output,
		input:       input,
		stt:         stt,
		audioConfig: audioConfig,
		console:     console,
		logger:      logger,
	}
}

// Speak prints text and plays it. Synthesis or playback failures fall back
// to the printed line and are only logged; an interrupted context is returned.
func (p *Prompter) Speak(ctx context.Context, text string) error {
	fmt.Fprintf(p.console, "Bot: %s\n", text)

	// stops the synthesis stream when playback gives up early
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	audio, err := p.tts.ConvertTextToSpeech(streamCtx, text)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Warn("Text-to-speech failed, continuing with console output", zap.Error(err))
		return nil
	}

	if err := p.output.Play(ctx, text, audio); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Warn("Audio playback failed, continuing with console output", zap.Error(err))
	}
	return nil
}

// Listen captures one utterance and transcribes it. Silence, empty audio and
// recognizer failures all report entities.ErrNotUnderstood; only capture
// failures and cancellation are returned as hard errors.
func (p *Prompter) Listen(ctx context.Context) (string, error) {
	fmt.Fprintln(p.console, "Listening...")

	audio, err := p.input.Capture(ctx)
	if err != nil {
		if errors.Is(err, entities.ErrNotUnderstood) {
			return "", err
		}
		return "", fmt.Errorf("failed to capture audio: %w", err)
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("empty capture: %w", entities.ErrNotUnderstood)
	}

	transcript, err := p.stt.TranscribeAudio(ctx, audio, p.audioConfig)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !errors.Is(err, entities.ErrNotUnderstood) {
			p.logger.Warn("Speech recognition failed", zap.Error(err))
		}
		return "", fmt.Errorf("speech recognition: %v: %w", err, entities.ErrNotUnderstood)
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", fmt.Errorf("empty transcript: %w", entities.ErrNotUnderstood)
	}

	fmt.Fprintf(p.console, "You: %s\n", transcript)
	return transcript, nil
}
