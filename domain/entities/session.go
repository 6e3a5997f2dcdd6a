package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionState represents where a KYC session is in its lifecycle
type SessionState string

const (
	SessionStateStart             SessionState = "start"
	SessionStateCollectingName    SessionState = "collecting_name"
	SessionStateCollectingPhone   SessionState = "collecting_phone"
	SessionStateCollectingPAN     SessionState = "collecting_pan"
	SessionStateCollectingConsent SessionState = "collecting_consent"
	SessionStatePersisting        SessionState = "persisting"
	SessionStateDone              SessionState = "done"
	SessionStateAborted           SessionState = "aborted"
)

var sessionTransitions = map[SessionState][]SessionState{
	SessionStateStart:             {SessionStateCollectingName},
	SessionStateCollectingName:    {SessionStateCollectingPhone, SessionStateAborted},
	SessionStateCollectingPhone:   {SessionStateCollectingPAN, SessionStateAborted},
	SessionStateCollectingPAN:     {SessionStateCollectingConsent, SessionStateAborted},
	SessionStateCollectingConsent: {SessionStatePersisting, SessionStateAborted},
	SessionStatePersisting:        {SessionStateDone, SessionStateAborted},
}

// CollectingState returns the state a session is in while collecting field
func CollectingState(field FieldID) (SessionState, bool) {
	switch field {
	case FieldName:
		return SessionStateCollectingName, true
	case FieldPhone:
		return SessionStateCollectingPhone, true
	case FieldPAN:
		return SessionStateCollectingPAN, true
	case FieldConsent:
		return SessionStateCollectingConsent, true
	}
	return "", false
}

// AttemptLog is one prompt/listen/validate cycle as seen by the session
type AttemptLog struct {
	Field      FieldID   `json:"field" bson:"field"`
	Attempt    int       `json:"attempt" bson:"attempt"`
	Transcript string    `json:"transcript" bson:"transcript"`
	Outcome    string    `json:"outcome" bson:"outcome"`
	Reason     string    `json:"reason,omitempty" bson:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}

// KYCSession tracks one run of the KYC dialogue
type KYCSession struct {
	ID          string       `json:"id" bson:"session_id"`
	State       SessionState `json:"state" bson:"state"`
	StartedAt   time.Time    `json:"started_at" bson:"started_at"`
	EndedAt     *time.Time   `json:"ended_at,omitempty" bson:"ended_at,omitempty"`
	FailedField FieldID      `json:"failed_field,omitempty" bson:"failed_field,omitempty"`
	Error       string       `json:"error,omitempty" bson:"error,omitempty"`
	Attempts    []AttemptLog `json:"attempts" bson:"attempts"`
}

// NewKYCSession creates a session in the Start state
func NewKYCSession() *KYCSession {
	return &KYCSession{
		ID:        uuid.New().String(),
		State:     SessionStateStart,
		StartedAt: time.Now(),
		Attempts:  make([]AttemptLog, 0),
	}
}

// Transition moves the session to the next state if the move is legal
func (s *KYCSession) Transition(to SessionState) error {
	for _, allowed := range sessionTransitions[s.State] {
		if allowed == to {
			s.State = to
			if s.IsTerminal() {
				now := time.Now()
				s.EndedAt = &now
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State, to)
}

// Abort ends the session at the given field
func (s *KYCSession) Abort(field FieldID, cause error) error {
	if err := s.Transition(SessionStateAborted); err != nil {
		return err
	}
	s.FailedField = field
	if cause != nil {
		s.Error = cause.Error()
	}
	return nil
}

// RecordAttempt appends one cycle to the attempt log
func (s *KYCSession) RecordAttempt(field FieldID, attempt int, transcript string, result AttemptResult) {
	s.Attempts = append(s.Attempts, AttemptLog{
		Field:      field,
		Attempt:    attempt,
		Transcript: transcript,
		Outcome:    result.Outcome.String(),
		Reason:     result.Reason,
		Timestamp:  time.Now(),
	})
}

// IsTerminal reports whether the session reached Done or Aborted
func (s *KYCSession) IsTerminal() bool {
	return s.State == SessionStateDone || s.State == SessionStateAborted
}
