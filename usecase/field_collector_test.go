package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/kyc-voice/domain/entities"
	"github.com/satriahrh/kyc-voice/domain/validation"
)

func phoneSpec() entities.FieldSpec {
	return validation.DefaultFieldSpecs()[1]
}

func TestFieldCollector_AcceptsFirstAttempt(t *testing.T) {
	prompter := &scriptedPrompter{replies: []reply{say("9876543210")}}
	collector := NewFieldCollector(prompter, nil, zaptest.NewLogger(t))

	outcome, err := collector.Collect(context.Background(), phoneSpec(), nil)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if !outcome.Accepted() || outcome.Value != "9876543210" {
		t.Fatalf("Expected accepted phone, got %+v", outcome)
	}
	if outcome.Attempts != 1 || prompter.listens != 1 {
		t.Errorf("Expected 1 attempt, got %d attempts and %d listens", outcome.Attempts, prompter.listens)
	}
	if len(prompter.spoken) != 1 || prompter.spoken[0] != entities.PromptPhone {
		t.Errorf("Expected only the prompt to be spoken, got %q", prompter.spoken)
	}
}

func TestFieldCollector_AlwaysRejectingStopsAfterBudget(t *testing.T) {
	for _, retries := range []int{0, 1, 2, 5} {
		spec := entities.FieldSpec{
			ID:         entities.FieldName,
			Label:      "name",
			Prompt:     "Name?",
			Hint:       "Letters only.",
			MaxRetries: retries,
			Validate:   func(string) entities.AttemptResult { return entities.Rejected("never") },
		}
		replies := make([]reply, 20)
		for i := range replies {
			replies[i] = say("anything")
		}
		prompter := &scriptedPrompter{replies: replies}
		collector := NewFieldCollector(prompter, nil, zaptest.NewLogger(t))

		outcome, err := collector.Collect(context.Background(), spec, nil)
		if err != nil {
			t.Fatalf("retries=%d: Collect failed: %v", retries, err)
		}
		if outcome.Accepted() {
			t.Fatalf("retries=%d: expected failure, got %+v", retries, outcome)
		}
		if prompter.listens != retries+1 || outcome.Attempts != retries+1 {
			t.Errorf("retries=%d: expected %d listens, got %d (attempts %d)",
				retries, retries+1, prompter.listens, outcome.Attempts)
		}
		if outcome.Reason != "never" {
			t.Errorf("retries=%d: expected last reason to be kept, got %q", retries, outcome.Reason)
		}
		if prompter.spokeContaining("I was unable to verify your name.") != 1 {
			t.Errorf("retries=%d: expected failure message, got %q", retries, prompter.spoken)
		}
	}
}

func TestFieldCollector_AcceptsOnSecondAttempt(t *testing.T) {
	prompter := &scriptedPrompter{replies: []reply{say("987654321"), say("9876543210"), say("1111111111")}}
	collector := NewFieldCollector(prompter, nil, zaptest.NewLogger(t))
	session := entities.NewKYCSession()

	outcome, err := collector.Collect(context.Background(), phoneSpec(), session)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if !outcome.Accepted() || outcome.Value != "9876543210" {
		t.Fatalf("Expected accepted phone, got %+v", outcome)
	}
	if prompter.listens != 2 {
		t.Errorf("Expected exactly 2 listens, got %d", prompter.listens)
	}
	if len(session.Attempts) != 2 {
		t.Fatalf("Expected 2 logged attempts, got %d", len(session.Attempts))
	}
	if session.Attempts[0].Reason != validation.ReasonPhoneDigits {
		t.Errorf("Expected first attempt reason %q, got %q", validation.ReasonPhoneDigits, session.Attempts[0].Reason)
	}
}

func TestFieldCollector_RetryRepeatsPromptBehindHint(t *testing.T) {
	prompter := &scriptedPrompter{replies: []reply{silence(), say("12"), say("abc")}}
	collector := NewFieldCollector(prompter, nil, zaptest.NewLogger(t))
	spec := phoneSpec()

	outcome, err := collector.Collect(context.Background(), spec, nil)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if outcome.Accepted() {
		t.Fatalf("Expected failure, got %+v", outcome)
	}

	// prompt, not-understood retry, rejected retry, failure message
	if len(prompter.spoken) != 4 {
		t.Fatalf("Expected 4 spoken lines, got %d: %q", len(prompter.spoken), prompter.spoken)
	}
	for i, line := range prompter.spoken[:3] {
		if !strings.HasSuffix(line, spec.Prompt) {
			t.Errorf("line %d should end with the field prompt: %q", i, line)
		}
	}
	if !strings.HasPrefix(prompter.spoken[1], "I didn't catch that.") {
		t.Errorf("Expected not-understood hint, got %q", prompter.spoken[1])
	}
	if !strings.HasPrefix(prompter.spoken[2], "That phone number doesn't seem valid.") {
		t.Errorf("Expected rejection hint, got %q", prompter.spoken[2])
	}
	if !strings.Contains(prompter.spoken[2], spec.Hint) {
		t.Errorf("Expected hint to name the format, got %q", prompter.spoken[2])
	}
}

func TestFieldCollector_CollaboratorErrorIsReturned(t *testing.T) {
	micErr := errors.New("microphone unplugged")
	prompter := &scriptedPrompter{replies: []reply{{err: micErr}}}
	collector := NewFieldCollector(prompter, nil, zaptest.NewLogger(t))

	_, err := collector.Collect(context.Background(), phoneSpec(), nil)
	if !errors.Is(err, micErr) {
		t.Fatalf("Expected microphone error, got %v", err)
	}
	if prompter.listens != 1 {
		t.Errorf("Collaborator errors must not be retried, got %d listens", prompter.listens)
	}
}

func TestFieldCollector_SpeakErrorIsReturned(t *testing.T) {
	prompter := &scriptedPrompter{speakErr: errors.New("speaker gone")}
	collector := NewFieldCollector(prompter, nil, zaptest.NewLogger(t))

	if _, err := collector.Collect(context.Background(), phoneSpec(), nil); err == nil {
		t.Fatal("Expected speak error")
	}
	if prompter.listens != 0 {
		t.Errorf("Should not listen after a failed prompt, got %d listens", prompter.listens)
	}
}

func TestFieldCollector_Normalizer(t *testing.T) {
	specs := validation.DefaultFieldSpecs()
	phoneSpec, panSpec := specs[1], specs[2]

	t.Run("valid raw transcript wins", func(t *testing.T) {
		normalizer := &fixedNormalizer{value: "1111111111"}
		prompter := &scriptedPrompter{replies: []reply{say("9876543210")}}
		collector := NewFieldCollector(prompter, normalizer, zaptest.NewLogger(t))

		outcome, err := collector.Collect(context.Background(), phoneSpec, nil)
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if outcome.Value != "9876543210" || normalizer.calls != 0 {
			t.Errorf("Unexpected outcome %+v after %d normalizer calls", outcome, normalizer.calls)
		}
	})

	t.Run("normalized transcript used when raw is rejected", func(t *testing.T) {
		normalizer := &fixedNormalizer{value: "A B C D E 1 2 3 4 F"}
		prompter := &scriptedPrompter{replies: []reply{say("alpha bravo charlie delta echo twelve thirty four foxtrot")}}
		collector := NewFieldCollector(prompter, normalizer, zaptest.NewLogger(t))

		outcome, err := collector.Collect(context.Background(), panSpec, nil)
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if !outcome.Accepted() || outcome.Value != "ABCDE1234F" || normalizer.calls != 1 {
			t.Errorf("Unexpected outcome %+v after %d normalizer calls", outcome, normalizer.calls)
		}
	})

	t.Run("normalizer failure keeps raw verdict", func(t *testing.T) {
		normalizer := &fixedNormalizer{err: errors.New("quota exceeded")}
		prompter := &scriptedPrompter{replies: []reply{say("98765"), say("98765"), say("98765")}}
		collector := NewFieldCollector(prompter, normalizer, zaptest.NewLogger(t))

		outcome, err := collector.Collect(context.Background(), phoneSpec, nil)
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if outcome.Accepted() || outcome.Reason != validation.ReasonPhoneDigits {
			t.Errorf("Expected raw rejection, got %+v", outcome)
		}
	})
}
