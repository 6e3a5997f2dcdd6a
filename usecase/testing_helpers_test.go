package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/satriahrh/kyc-voice/domain/entities"
)

// scriptedPrompter replays a fixed list of listen results and records what was spoken
type scriptedPrompter struct {
	replies  []reply
	listens  int
	spoken   []string
	speakErr error
}

type reply struct {
	text string
	err  error
}

func say(text string) reply { return reply{text: text} }

func silence() reply { return reply{err: entities.ErrNotUnderstood} }

func (p *scriptedPrompter) Speak(ctx context.Context, text string) error {
	p.spoken = append(p.spoken, text)
	return p.speakErr
}

func (p *scriptedPrompter) Listen(ctx context.Context) (string, error) {
	if p.listens >= len(p.replies) {
		return "", errors.New("script exhausted")
	}
	r := p.replies[p.listens]
	p.listens++
	return r.text, r.err
}

func (p *scriptedPrompter) spokeContaining(substr string) int {
	n := 0
	for _, s := range p.spoken {
		if strings.Contains(s, substr) {
			n++
		}
	}
	return n
}

// memorySink keeps saved records in memory
type memorySink struct {
	records []*entities.KYCRecord
	err     error
}

func (s *memorySink) Name() string { return "memory" }

func (s *memorySink) Save(ctx context.Context, record *entities.KYCRecord, session *entities.KYCSession) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

// fixedNormalizer rewrites every transcript to value or fails with err
type fixedNormalizer struct {
	value string
	err   error
	calls int
}

func (n *fixedNormalizer) Normalize(ctx context.Context, field entities.FieldID, transcript string) (string, error) {
	n.calls++
	if n.err != nil {
		return "", n.err
	}
	return n.value, nil
}
