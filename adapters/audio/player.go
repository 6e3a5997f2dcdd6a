package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"go.uber.org/zap"

	"github.com/satriahrh/kyc-voice/domain/repositories"
)

// Player plays PCM audio through the first local player that works
type Player struct {
	players []Command
	logger  *zap.Logger
}

var _ repositories.AudioOutput = (*Player)(nil)

// NewPlayer creates a player from the installed subset of candidates
func NewPlayer(candidates []Command, logger *zap.Logger) (*Player, error) {
	players := available(candidates)
	if len(players) == 0 {
		return nil, fmt.Errorf("no suitable audio player found")
	}
	logger.Debug("Audio player selected", zap.String("player", players[0].Name))
	return &Player{players: players, logger: logger}, nil
}

// Play buffers the whole utterance before starting the player so that a
// failed synthesis never leaves a half-spoken prompt
func (p *Player) Play(ctx context.Context, text string, audio <-chan []byte) error {
	var buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-audio:
			if !ok {
				return p.play(ctx, buf.Bytes())
			}
			buf.Write(chunk)
		}
	}
}

func (p *Player) play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return fmt.Errorf("no audio received")
	}

	var lastErr error
	for _, player := range p.players {
		cmd := exec.CommandContext(ctx, player.Name, player.Args...)
		cmd.Stdin = bytes.NewReader(pcm)

		if err := cmd.Run(); err != nil {
			p.logger.Debug("Player failed",
				zap.String("player", player.Name),
				zap.Error(err))
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("failed to play audio: %w", lastErr)
}
