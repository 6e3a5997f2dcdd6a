package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/kyc-voice/domain/entities"
	"github.com/satriahrh/kyc-voice/domain/repositories"
	"github.com/satriahrh/kyc-voice/domain/validation"
)

// FieldCollector runs the prompt/listen/validate loop for a single field
type FieldCollector struct {
	prompter   repositories.Prompter
	normalizer repositories.TranscriptNormalizer
	logger     *zap.Logger
}

// NewFieldCollector creates a new field collector. normalizer may be nil.
func NewFieldCollector(
	prompter repositories.Prompter,
	normalizer repositories.TranscriptNormalizer,
	logger *zap.Logger,
) *FieldCollector {
	return &FieldCollector{
		prompter:   prompter,
		normalizer: normalizer,
		logger:     logger,
	}
}

// Collect asks for spec until it is accepted or its attempts run out.
// The returned error is only set for collaborator failures; running out of
// attempts is reported as a Failed outcome.
func (c *FieldCollector) Collect(ctx context.Context, spec entities.FieldSpec, session *entities.KYCSession) (entities.FieldOutcome, error) {
	outcome := entities.FieldOutcome{Field: spec.ID, Status: entities.FieldStatusFailed}
	maxAttempts := spec.MaxAttempts()
	prompt := spec.Prompt

	var last entities.AttemptResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		outcome.Attempts = attempt

		if err := c.prompter.Speak(ctx, prompt); err != nil {
			return outcome, fmt.Errorf("failed to speak %s prompt: %w", spec.ID, err)
		}

		transcript, err := c.prompter.Listen(ctx)
		switch {
		case errors.Is(err, entities.ErrNotUnderstood):
			last = entities.NotUnderstood()
		case err != nil:
			return outcome, fmt.Errorf("failed to listen for %s: %w", spec.ID, err)
		default:
			last = c.validate(ctx, spec, transcript)
		}

		if session != nil {
			session.RecordAttempt(spec.ID, attempt, transcript, last)
		}

		c.logger.Info("Field attempt finished",
			zap.String("field", string(spec.ID)),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", maxAttempts),
			zap.String("outcome", last.Outcome.String()),
			zap.String("reason", last.Reason))

		if last.IsAccepted() {
			outcome.Status = entities.FieldStatusAccepted
			outcome.Value = last.Value
			return outcome, nil
		}

		prompt = correction(spec, last) + " " + spec.Prompt
	}

	outcome.Reason = last.Reason
	outcome.Err = last.Err()
	c.logger.Warn("Field retries exhausted",
		zap.String("field", string(spec.ID)),
		zap.Int("attempts", outcome.Attempts),
		zap.String("reason", outcome.Reason))

	if err := c.prompter.Speak(ctx, fmt.Sprintf("I was unable to verify your %s.", spec.Label)); err != nil {
		return outcome, fmt.Errorf("failed to speak %s failure: %w", spec.ID, err)
	}
	return outcome, nil
}

// validate checks the raw transcript first; the normalizer only gets a say
// when the raw words were not acceptable on their own
func (c *FieldCollector) validate(ctx context.Context, spec entities.FieldSpec, transcript string) entities.AttemptResult {
	validate := spec.Validate
	if validate == nil {
		validate = func(t string) entities.AttemptResult { return validation.Validate(spec.ID, t) }
	}

	result := validate(transcript)
	if result.IsAccepted() || c.normalizer == nil {
		return result
	}

	normalized := c.normalize(ctx, spec.ID, transcript)
	if normalized == transcript {
		return result
	}
	if fixed := validate(normalized); fixed.IsAccepted() {
		c.logger.Info("Accepted normalized transcript",
			zap.String("field", string(spec.ID)),
			zap.String("normalized", normalized))
		return fixed
	}
	return result
}

func (c *FieldCollector) normalize(ctx context.Context, field entities.FieldID, transcript string) string {
	if c.normalizer == nil {
		return transcript
	}

	normalized, err := c.normalizer.Normalize(ctx, field, transcript)
	if err != nil {
		c.logger.Warn("Transcript normalization failed, using raw transcript",
			zap.String("field", string(field)),
			zap.Error(err))
		return transcript
	}
	if normalized == "" {
		return transcript
	}
	return normalized
}

// correction is the hint spoken in front of the prompt on a retry
func correction(spec entities.FieldSpec, result entities.AttemptResult) string {
	if result.Outcome == entities.OutcomeNotUnderstood {
		return "I didn't catch that. " + spec.Hint
	}
	return fmt.Sprintf("That %s doesn't seem valid. %s", spec.Label, spec.Hint)
}
