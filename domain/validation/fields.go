package validation

import "github.com/satriahrh/kyc-voice/domain/entities"

// DefaultFieldSpecs returns the four KYC fields in collection order
func DefaultFieldSpecs() []entities.FieldSpec {
	return []entities.FieldSpec{
		entities.NewFieldSpec(entities.FieldName, "name", entities.PromptName,
			"Please say your full name using letters only.", ValidateName),
		entities.NewFieldSpec(entities.FieldPhone, "phone number", entities.PromptPhone,
			"A mobile number has exactly 10 digits.", ValidatePhone),
		entities.NewFieldSpec(entities.FieldPAN, "PAN", entities.PromptPAN,
			"A PAN is 5 letters, then 4 numbers, then 1 letter.", ValidatePAN),
		entities.NewFieldSpec(entities.FieldConsent, "consent", entities.PromptConsent,
			"Please answer with yes or no.", ValidateConsent),
	}
}
