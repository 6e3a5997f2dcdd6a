package repositories

import (
	"context"

	"github.com/satriahrh/kyc-voice/domain/entities"
)

// Prompter is the speak/listen capability a KYC session talks through.
//
// Listen returns entities.ErrNotUnderstood when nothing usable was captured;
// any other error is a collaborator failure.
type Prompter interface {
	Speak(ctx context.Context, text string) error
	Listen(ctx context.Context) (string, error)
}

// TranscriptNormalizer rewrites a raw transcript into the canonical spoken
// form of a field before validation
type TranscriptNormalizer interface {
	Normalize(ctx context.Context, field entities.FieldID, transcript string) (string, error)
}
