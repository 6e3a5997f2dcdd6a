package repositories

import "context"

// AudioInput captures a single utterance from the user's microphone
type AudioInput interface {
	Capture(ctx context.Context) ([]byte, error)
}

// AudioOutput plays synthesized speech. text is what the audio says, for
// outputs that can show it alongside.
type AudioOutput interface {
	Play(ctx context.Context, text string, audio <-chan []byte) error
}
