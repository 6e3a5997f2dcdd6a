package entities

// Prompts spoken for each field. Retries repeat the same wording behind a hint.
const (
	PromptName    = "May I have your full name please?"
	PromptPhone   = "Please provide your 10-digit mobile number."
	PromptPAN     = "Please say your PAN number. That's 10 characters: 5 letters, 4 numbers, and 1 letter."
	PromptConsent = "Do you consent to this KYC verification? Please say yes or no."
)

// FieldOrder is the fixed collection order of a session
var FieldOrder = []FieldID{FieldName, FieldPhone, FieldPAN, FieldConsent}

// NewFieldSpec builds a spec with the default retry budget
func NewFieldSpec(id FieldID, label, prompt, hint string, validate ValidateFunc) FieldSpec {
	return FieldSpec{
		ID:         id,
		Label:      label,
		Prompt:     prompt,
		Hint:       hint,
		Validate:   validate,
		MaxRetries: DefaultMaxRetries,
	}
}
