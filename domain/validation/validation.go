// Package validation turns raw transcripts into normalized KYC field values.
//
// Every function here is pure: no I/O, no logging, and all failures are
// reported through the returned entities.AttemptResult.
package validation

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/satriahrh/kyc-voice/domain/entities"
)

const (
	ReasonNameTooShort   = "name must have at least 2 letters"
	ReasonNameCharacters = "name may only contain letters and spaces"
	ReasonPhoneDigits    = "expected 10 digits"
	ReasonPANFormat      = "expected 5 letters, 4 digits and 1 letter"
	ReasonConsentUnclear = "expected yes or no"
)

var panPattern = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)

var digitWords = map[string]string{
	"zero": "0", "oh": "0", "o": "0",
	"one": "1", "two": "2", "to": "2", "too": "2", "three": "3",
	"four": "4", "for": "4", "five": "5", "six": "6",
	"seven": "7", "eight": "8", "nine": "9",
}

var repeatWords = map[string]int{"double": 2, "triple": 3}

var (
	strongYes = map[string]bool{"yes": true, "yeah": true, "yep": true, "yup": true}
	weakYes   = map[string]bool{
		"sure": true, "agree": true, "consent": true, "okay": true, "ok": true,
		"absolutely": true, "certainly": true,
	}
	negative = map[string]bool{
		"no": true, "nope": true, "nah": true, "not": true, "don't": true, "dont": true,
		"never": true, "decline": true, "disagree": true, "refuse": true,
	}

	// negative words that still mean yes, longest first
	affirmativePhrases = [][]string{
		{"not", "a", "problem"},
		{"do", "not", "mind"},
		{"no", "problem"},
		{"no", "problems"},
		{"no", "objection"},
		{"no", "objections"},
		{"no", "issue"},
		{"why", "not"},
		{"don't", "mind"},
		{"dont", "mind"},
		{"of", "course"},
	}
	unclearPhrases = [][]string{
		{"not", "sure"},
		{"i'm", "not", "sure"},
	}
)

// Validate dispatches to the validator of field
func Validate(field entities.FieldID, transcript string) entities.AttemptResult {
	switch field {
	case entities.FieldName:
		return ValidateName(transcript)
	case entities.FieldPhone:
		return ValidatePhone(transcript)
	case entities.FieldPAN:
		return ValidatePAN(transcript)
	case entities.FieldConsent:
		return ValidateConsent(transcript)
	}
	return entities.Rejected("unknown field " + string(field))
}

// ValidateName accepts letters and spaces, at least two characters long
func ValidateName(transcript string) entities.AttemptResult {
	name := strings.Join(strings.Fields(transcript), " ")
	if name == "" {
		return entities.NotUnderstood()
	}
	if len([]rune(name)) < 2 {
		return entities.Rejected(ReasonNameTooShort)
	}
	for _, r := range name {
		if r != ' ' && !unicode.IsLetter(r) {
			return entities.Rejected(ReasonNameCharacters)
		}
	}
	return entities.Accepted(name)
}

// ValidatePhone accepts exactly 10 digits. Numerals, digit words and
// double/triple may be mixed freely.
func ValidatePhone(transcript string) entities.AttemptResult {
	words := tokens(transcript)
	if len(words) == 0 {
		return entities.NotUnderstood()
	}
	digits := expandSpokenDigits(words)
	if len(digits) != 10 {
		return entities.Rejected(ReasonPhoneDigits)
	}
	return entities.Accepted(digits)
}

// ValidatePAN concatenates spoken characters and checks the PAN layout
func ValidatePAN(transcript string) entities.AttemptResult {
	words := tokens(transcript)
	if len(words) == 0 {
		return entities.NotUnderstood()
	}
	var b strings.Builder
	for _, w := range words {
		if d, ok := digitWords[w]; ok && len(w) > 1 {
			b.WriteString(d)
			continue
		}
		for _, r := range w {
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
				b.WriteRune(unicode.ToUpper(r))
			}
		}
	}
	pan := b.String()
	if !panPattern.MatchString(pan) {
		return entities.Rejected(ReasonPANFormat)
	}
	return entities.Accepted(pan)
}

// ValidateConsent maps a yes/no style answer to "true" or "false". Phrases
// such as "no problem" count as yes and "do not agree" as no; any other mix
// of yes and no words is ambiguous.
func ValidateConsent(transcript string) entities.AttemptResult {
	words := tokens(transcript)
	if len(words) == 0 {
		return entities.NotUnderstood()
	}
	var yes, no, unclear bool
	for i := 0; i < len(words); {
		if n := matchPhrase(words[i:], affirmativePhrases); n > 0 {
			yes = true
			i += n
			continue
		}
		if n := matchPhrase(words[i:], unclearPhrases); n > 0 {
			unclear = true
			i += n
			continue
		}
		w := words[i]
		switch {
		case negative[w] && i+1 < len(words) && (strongYes[words[i+1]] || weakYes[words[i+1]]):
			// "not consent", "don't agree"
			no = true
			i += 2
			continue
		case strongYes[w] || weakYes[w]:
			yes = true
		case negative[w]:
			no = true
		}
		i++
	}
	switch {
	case unclear || (yes && no):
		return entities.Rejected(ReasonConsentUnclear)
	case no:
		return entities.Accepted(strconv.FormatBool(false))
	case yes:
		return entities.Accepted(strconv.FormatBool(true))
	}
	return entities.Rejected(ReasonConsentUnclear)
}

// matchPhrase returns the length of the phrase words starts with, or 0
func matchPhrase(words []string, phrases [][]string) int {
	for _, p := range phrases {
		if len(words) >= len(p) && slices.Equal(words[:len(p)], p) {
			return len(p)
		}
	}
	return 0
}

// tokens lowercases and splits on anything that is not a letter, digit or apostrophe
func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// expandSpokenDigits reads words in order: "nine double 8 76" gives "98876".
// double/triple repeats the next digit only.
func expandSpokenDigits(words []string) string {
	var b strings.Builder
	repeat := 1
	for _, w := range words {
		if n, ok := repeatWords[w]; ok {
			repeat = n
			continue
		}
		d, ok := digitWords[w]
		if !ok {
			d = onlyDigits(w)
		}
		if d == "" {
			repeat = 1
			continue
		}
		b.WriteString(strings.Repeat(d[:1], repeat))
		b.WriteString(d[1:])
		repeat = 1
	}
	return b.String()
}
