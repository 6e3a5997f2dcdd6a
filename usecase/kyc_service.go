package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/kyc-voice/domain/entities"
	"github.com/satriahrh/kyc-voice/domain/repositories"
)

const (
	messageWelcome   = "Welcome to KYC verification. I will guide you through a quick verification process."
	messageConfirm   = "Thank you. Let me confirm your details."
	messageComplete  = "Your KYC verification is complete. Thank you."
	messageDeclined  = "You have declined consent. Verification cannot proceed."
	messageSaveError = "I could not save your details. Verification was not completed."
)

// SessionOptions tunes session policy
type SessionOptions struct {
	// RequireConsent aborts the session when the user declines consent
	RequireConsent bool
}

// KYCService orchestrates one KYC session: collect every field in order,
// then persist the record
type KYCService struct {
	prompter  repositories.Prompter
	collector *FieldCollector
	sink      repositories.RecordSink
	specs     []entities.FieldSpec
	options   SessionOptions
	now       func() time.Time
	logger    *zap.Logger
}

// NewKYCService creates a new KYC service. specs must name every KYC field
// exactly once, in collection order.
func NewKYCService(
	prompter repositories.Prompter,
	collector *FieldCollector,
	sink repositories.RecordSink,
	specs []entities.FieldSpec,
	options SessionOptions,
	logger *zap.Logger,
) (*KYCService, error) {
	if len(specs) != len(entities.FieldOrder) {
		return nil, fmt.Errorf("expected %d field specs, got %d", len(entities.FieldOrder), len(specs))
	}
	for i, spec := range specs {
		if spec.ID != entities.FieldOrder[i] {
			return nil, fmt.Errorf("field spec %d must be %s, got %s", i, entities.FieldOrder[i], spec.ID)
		}
	}

	return &KYCService{
		prompter:  prompter,
		collector: collector,
		sink:      sink,
		specs:     specs,
		options:   options,
		now:       time.Now,
		logger:    logger,
	}, nil
}

// SetClock overrides the clock used to stamp records
func (s *KYCService) SetClock(now func() time.Time) {
	s.now = now
}

// RunSession runs the dialogue to completion. On success the persisted record
// is returned; a failed field yields *entities.SessionFailure and a sink
// failure yields *entities.PersistenceError. The session is always returned.
func (s *KYCService) RunSession(ctx context.Context) (*entities.KYCRecord, *entities.KYCSession, error) {
	session := entities.NewKYCSession()
	logger := s.logger.With(zap.String("sessionID", session.ID))
	logger.Info("KYC session started")

	if err := s.prompter.Speak(ctx, messageWelcome); err != nil {
		return nil, session, fmt.Errorf("failed to speak welcome: %w", err)
	}

	values := make(map[entities.FieldID]string, len(s.specs))
	for _, spec := range s.specs {
		state, _ := entities.CollectingState(spec.ID)
		if err := session.Transition(state); err != nil {
			return nil, session, err
		}

		outcome, err := s.collector.Collect(ctx, spec, session)
		if err != nil {
			_ = session.Abort(spec.ID, err)
			logger.Error("Collaborator failed while collecting field",
				zap.String("field", string(spec.ID)),
				zap.Error(err))
			return nil, session, err
		}

		if !outcome.Accepted() {
			cause := entities.ErrRetriesExhausted
			if outcome.Err != nil {
				cause = fmt.Errorf("%w: %w", entities.ErrRetriesExhausted, outcome.Err)
			}
			failure := &entities.SessionFailure{
				Field:  spec.ID,
				Reason: outcome.Reason,
				Cause:  cause,
			}
			_ = session.Abort(spec.ID, failure)
			logger.Warn("KYC session aborted",
				zap.String("field", string(spec.ID)),
				zap.Int("attempts", outcome.Attempts),
				zap.String("reason", outcome.Reason))
			s.say(ctx, logger, fmt.Sprintf("Unable to proceed without a valid %s. Ending verification.", spec.Label))
			return nil, session, failure
		}

		values[spec.ID] = outcome.Value
	}

	record := &entities.KYCRecord{
		Name:    values[entities.FieldName],
		Phone:   values[entities.FieldPhone],
		PAN:     values[entities.FieldPAN],
		Consent: entities.Accepted(values[entities.FieldConsent]).Bool(),
	}

	if !record.Consent && s.options.RequireConsent {
		failure := &entities.SessionFailure{
			Field:  entities.FieldConsent,
			Reason: "consent declined",
			Cause:  entities.ErrConsentDeclined,
		}
		_ = session.Abort(entities.FieldConsent, failure)
		logger.Warn("KYC session aborted, consent declined")
		s.say(ctx, logger, messageDeclined)
		return nil, session, failure
	}

	if err := session.Transition(entities.SessionStatePersisting); err != nil {
		return nil, session, err
	}
	s.readBack(ctx, logger, record)

	record.Timestamp = s.now()
	if err := s.sink.Save(ctx, record, session); err != nil {
		var persistErr *entities.PersistenceError
		if !errors.As(err, &persistErr) {
			persistErr = &entities.PersistenceError{Sink: s.sink.Name(), Err: err}
		}
		_ = session.Abort("", persistErr)
		logger.Error("Failed to persist KYC record", zap.Error(persistErr))
		s.say(ctx, logger, messageSaveError)
		return nil, session, persistErr
	}

	if err := session.Transition(entities.SessionStateDone); err != nil {
		return nil, session, err
	}
	logger.Info("KYC session completed", zap.Int("attempts", len(session.Attempts)))
	s.say(ctx, logger, messageComplete)

	return record, session, nil
}

// readBack speaks the collected details before they are saved
func (s *KYCService) readBack(ctx context.Context, logger *zap.Logger, record *entities.KYCRecord) {
	consent := "Provided"
	if !record.Consent {
		consent = "Declined"
	}

	lines := []string{
		messageConfirm,
		"Name: " + record.Name,
		"Phone: " + record.Phone,
		"PAN: " + record.PAN,
		"Consent: " + consent,
	}
	for _, line := range lines {
		s.say(ctx, logger, line)
	}
}

// say speaks a status line; by the time it is used the session outcome is
// already decided, so failures are only logged
func (s *KYCService) say(ctx context.Context, logger *zap.Logger, text string) {
	if err := s.prompter.Speak(ctx, text); err != nil {
		logger.Warn("Failed to speak message", zap.String("text", text), zap.Error(err))
	}
}
