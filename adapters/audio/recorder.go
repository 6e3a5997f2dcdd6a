package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/kyc-voice/domain/entities"
	"github.com/satriahrh/kyc-voice/domain/repositories"
)

// Recorder captures one utterance from the default microphone
type Recorder struct {
	recorders []Command
	timeout   time.Duration
	logger    *zap.Logger
}

var _ repositories.AudioInput = (*Recorder)(nil)

// NewRecorder creates a recorder from the installed subset of candidates.
// timeout bounds a single capture, including time spent waiting for speech.
func NewRecorder(candidates []Command, timeout time.Duration, logger *zap.Logger) (*Recorder, error) {
	recorders := available(candidates)
	if len(recorders) == 0 {
		return nil, fmt.Errorf("no suitable audio recorder found")
	}
	logger.Debug("Audio recorder selected", zap.String("recorder", recorders[0].Name))
	return &Recorder{recorders: recorders, timeout: timeout, logger: logger}, nil
}

// Capture records raw PCM until the tool exits or the timeout elapses.
// Audio captured before a timeout is still returned.
// A timeout with no audio at all is reported as entities.ErrNotUnderstood.
func (r *Recorder) Capture(parent context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(parent, r.timeout)
	defer cancel()

	var lastErr error
	for _, rec := range r.recorders {
		var out, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, rec.Name, rec.Args...)
		cmd.Stdout = &out
		cmd.Stderr = &stderr

		err := cmd.Run()
		if err == nil || (errors.Is(ctx.Err(), context.DeadlineExceeded) && out.Len() > 0) {
			r.logger.Debug("Captured utterance",
				zap.String("recorder", rec.Name),
				zap.Int("bytes", out.Len()))
			return out.Bytes(), nil
		}
		if parent.Err() != nil {
			return nil, fmt.Errorf("capture cancelled: %w", parent.Err())
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("no speech within %s: %w", r.timeout, entities.ErrNotUnderstood)
		}

		r.logger.Debug("Recorder failed",
			zap.String("recorder", rec.Name),
			zap.String("stderr", stderr.String()),
			zap.Error(err))
		lastErr = err
	}
	return nil, fmt.Errorf("failed to record audio: %w", lastErr)
}
