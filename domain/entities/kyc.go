package entities

import (
	"fmt"
	"strconv"
	"time"
)

// FieldID identifies one collectible KYC field
type FieldID string

const (
	FieldName    FieldID = "name"
	FieldPhone   FieldID = "phone"
	FieldPAN     FieldID = "pan"
	FieldConsent FieldID = "consent"
)

// DefaultMaxRetries is the retry budget of every field (3 attempts in total)
const DefaultMaxRetries = 2

// Outcome tags the result of one listen/validate cycle
type Outcome int

const (
	OutcomeNotUnderstood Outcome = iota
	OutcomeRejected
	OutcomeAccepted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	default:
		return "not_understood"
	}
}

// AttemptResult is the validator verdict for a single transcript
type AttemptResult struct {
	Outcome Outcome
	Value   string // normalized value, set when Accepted
	Reason  string // set when Rejected or NotUnderstood
}

// Accepted builds an accepted result
func Accepted(value string) AttemptResult {
	return AttemptResult{Outcome: OutcomeAccepted, Value: value}
}

// Rejected builds a rejected result
func Rejected(reason string) AttemptResult {
	return AttemptResult{Outcome: OutcomeRejected, Reason: reason}
}

// NotUnderstood builds a result for an unusable transcript
func NotUnderstood() AttemptResult {
	return AttemptResult{Outcome: OutcomeNotUnderstood, Reason: "nothing was understood"}
}

// IsAccepted reports whether the attempt produced a value
func (r AttemptResult) IsAccepted() bool {
	return r.Outcome == OutcomeAccepted
}

// Err is nil when accepted, otherwise ErrValidationRejected or ErrNotUnderstood
func (r AttemptResult) Err() error {
	switch r.Outcome {
	case OutcomeAccepted:
		return nil
	case OutcomeRejected:
		return fmt.Errorf("%s: %w", r.Reason, ErrValidationRejected)
	}
	return ErrNotUnderstood
}

// Bool interprets an accepted consent value
func (r AttemptResult) Bool() bool {
	b, _ := strconv.ParseBool(r.Value)
	return b
}

// ValidateFunc maps a raw transcript to an attempt result
type ValidateFunc func(transcript string) AttemptResult

// FieldSpec describes one field of the KYC dialogue
type FieldSpec struct {
	ID         FieldID
	Label      string // spoken name of the field, e.g. "phone number"
	Prompt     string
	Hint       string // expected format, used in corrective messages
	Validate   ValidateFunc
	MaxRetries int
}

// MaxAttempts is the total number of prompt/listen cycles allowed for the field
func (f FieldSpec) MaxAttempts() int {
	if f.MaxRetries < 0 {
		return 1
	}
	return f.MaxRetries + 1
}

// FieldStatus is the terminal state of one field collection
type FieldStatus string

const (
	FieldStatusAccepted FieldStatus = "accepted"
	FieldStatusFailed   FieldStatus = "failed"
)

// FieldOutcome is what the field collector hands back to the session
type FieldOutcome struct {
	Field    FieldID
	Status   FieldStatus
	Value    string
	Attempts int
	Reason   string // last rejection reason when Failed
	Err      error  // verdict of the last attempt when Failed
}

// Accepted reports whether the field produced a value
func (o FieldOutcome) Accepted() bool {
	return o.Status == FieldStatusAccepted
}

// KYCRecord is the persisted result of a completed session
type KYCRecord struct {
	Name      string    `json:"name" bson:"name"`
	Phone     string    `json:"phone" bson:"phone"`
	PAN       string    `json:"pan" bson:"pan"`
	Consent   bool      `json:"consent" bson:"consent"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}
